package checker

import (
	"testing"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
)

func TestAnalyzeContent(t *testing.T) {
	tests := []struct {
		name    string
		pageURL string
		body    string
		want    string
	}{
		{
			name:    "http script on https page",
			pageURL: "https://shop.example.com/",
			body:    `<html><script src="http://cdn.example.net/app.js"></script><img src="http://cdn.example.net/a.png"></html>`,
			want:    IssueMixedActiveContent,
		},
		{
			name:    "http stylesheet",
			pageURL: "https://shop.example.com/",
			body:    `<link rel="stylesheet" href="http://cdn.example.net/site.css">`,
			want:    IssueMixedActiveContent,
		},
		{
			name:    "http image only",
			pageURL: "https://shop.example.com/",
			body:    `<IMG SRC='http://cdn.example.net/a.png'>`,
			want:    IssueMixedPassiveContent,
		},
		{
			name:    "password form on http page",
			pageURL: "http://bank.example.com/login",
			body:    `<form method="post"><input name="u"><input type="password" name="p"></form>`,
			want:    IssueInsecurePassword,
		},
		{
			name:    "password form posting to http",
			pageURL: "https://bank.example.com/login",
			body:    `<form action="http://bank.example.com/auth"><input type=password></form>`,
			want:    IssueInsecurePassword,
		},
		{
			name:    "password form posting elsewhere",
			pageURL: "https://bank.example.com/login",
			body:    `<form action="https://collector.evil.example/p.php"><input type="password"></form>`,
			want:    IssueExternalFormAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := evidence.NewRiskReport(evidence.DomainNetwork)
			analyzeContent(&report, tt.body, tt.pageURL)

			ids := report.IssueIDs()
			if len(ids) != 1 || ids[0] != tt.want {
				t.Fatalf("issues = %v, want [%s]", ids, tt.want)
			}
		})
	}
}

func TestAnalyzeContent_Clean(t *testing.T) {
	bodies := []string{
		"",
		`<script src="https://cdn.example.net/app.js"></script><form action="/auth"><input type="password"></form>`,
		`<form action="https://bank.example.com/search"><input name="q"></form>`,
		`<a href="http://other.example/">plain links are fine</a>`,
	}
	for _, body := range bodies {
		report := evidence.NewRiskReport(evidence.DomainNetwork)
		analyzeContent(&report, body, "https://bank.example.com/")
		if len(report.Issues) != 0 {
			t.Errorf("body %q produced %v", body, report.IssueIDs())
		}
	}
}

func TestAnalyzeContent_ThirdPartyScripts(t *testing.T) {
	body := `<script src="/static/app.js"></script>
<script src="https://cdn.example.net/lib.js"></script>
<script src="//tracker.example.org/t.js"></script>
<script src='https://cdn.example.net/lib.js'></script>
<script src="data:text/javascript,alert(1)"></script>`

	report := evidence.NewRiskReport(evidence.DomainNetwork)
	analyzeContent(&report, body, "https://bank.example.com/login")

	if got := report.ExtractedFields["thirdPartyScripts"]; got != "2" {
		t.Fatalf("thirdPartyScripts = %q, want 2", got)
	}
	if got := report.ExtractedFields["thirdPartyScriptHosts"]; got != "cdn.example.net,tracker.example.org" {
		t.Fatalf("thirdPartyScriptHosts = %q", got)
	}
	if len(report.Issues) != 0 {
		t.Fatalf("third-party scripts alone are not a finding, got %v", report.IssueIDs())
	}
}
