package checker

import (
	"strings"
	"testing"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
)

func TestAnalyzeCookies(t *testing.T) {
	report := evidence.NewRiskReport(evidence.DomainNetwork)
	setCookie := "session=abc123; Path=/\nprefs=dark; Path=/; Secure; HttpOnly"

	analyzeCookies(&report, setCookie, true)

	if !report.HasIssue(IssueInsecureCookie) {
		t.Fatalf("expected %s issue, got %v", IssueInsecureCookie, report.IssueIDs())
	}
	if !strings.Contains(report.Issues[0].Description, "session") {
		t.Errorf("expected session cookie to be named: %s", report.Issues[0].Description)
	}
	if strings.Contains(report.Issues[0].Description, "prefs") {
		t.Errorf("prefs cookie has both flags and should not be named: %s", report.Issues[0].Description)
	}
	if report.RiskScore != insecureCookieDelta {
		t.Errorf("expected score %v, got %v", insecureCookieDelta, report.RiskScore)
	}
}

func TestAnalyzeCookies_SecureNotRequiredOverHTTP(t *testing.T) {
	report := evidence.NewRiskReport(evidence.DomainNetwork)

	analyzeCookies(&report, "id=1; HttpOnly", false)

	if len(report.Issues) != 0 {
		t.Fatalf("expected no findings over plain HTTP when HttpOnly is set, got %v", report.IssueIDs())
	}
}

func TestAnalyzeCookies_NoSetCookie(t *testing.T) {
	report := evidence.NewRiskReport(evidence.DomainNetwork)

	analyzeCookies(&report, "", true)

	if len(report.Issues) != 0 {
		t.Fatalf("expected no findings, got %d", len(report.Issues))
	}
}
