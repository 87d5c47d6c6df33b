package checker

import (
	"net/textproto"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
)

// Network posture issue slugs
const (
	IssueMissingHSTS               = "missing_hsts"
	IssueMissingCSP                = "missing_csp"
	IssueMissingXFrameOptions      = "missing_x_frame_options"
	IssueMissingXContentTypeOption = "missing_x_content_type_options"
	IssueMissingReferrerPolicy     = "missing_referrer_policy"
	IssueWeakHSTS                  = "weak_hsts"
	IssueWeakCSP                   = "weak_csp"
	IssueInvalidXFrameOptions      = "invalid_x_frame_options"
	IssueInvalidXContentTypeOption = "invalid_x_content_type_options"
	IssueWeakReferrerPolicy        = "weak_referrer_policy"
	IssueServerBanner              = "server_banner_disclosure"
)

const (
	missingHeaderDelta = 0.05
	weakHSTSDelta      = 0.03
	weakHeaderDelta    = 0.02
	bannerDelta        = 0.02

	// hstsMinMaxAge is six months
	hstsMinMaxAge = 15552000
)

// securityHeaderSpec defines a header whose absence is a finding and whose
// value can additionally be judged weak.
type securityHeaderSpec struct {
	Name           string
	MissingID      string
	Recommendation string
	// CheckFunc returns the weak-value issue slug and description, or "" when the value is acceptable
	CheckFunc func(value string) (string, string)
	WeakDelta float64
}

// securityHeaderSpecs is ordered so reports list issues in a stable order
var securityHeaderSpecs = []securityHeaderSpec{
	{
		Name:           "Strict-Transport-Security",
		MissingID:      IssueMissingHSTS,
		Recommendation: "Add 'Strict-Transport-Security: max-age=31536000; includeSubDomains'",
		CheckFunc:      checkHSTS,
		WeakDelta:      weakHSTSDelta,
	},
	{
		Name:           "Content-Security-Policy",
		MissingID:      IssueMissingCSP,
		Recommendation: "Implement a strict Content-Security-Policy",
		CheckFunc:      checkCSP,
		WeakDelta:      weakHeaderDelta,
	},
	{
		Name:           "X-Frame-Options",
		MissingID:      IssueMissingXFrameOptions,
		Recommendation: "Add 'X-Frame-Options: DENY' or 'SAMEORIGIN'",
		CheckFunc:      checkXFrameOptions,
		WeakDelta:      weakHeaderDelta,
	},
	{
		Name:           "X-Content-Type-Options",
		MissingID:      IssueMissingXContentTypeOption,
		Recommendation: "Add 'X-Content-Type-Options: nosniff'",
		CheckFunc:      checkXContentTypeOptions,
		WeakDelta:      weakHeaderDelta,
	},
	{
		Name:           "Referrer-Policy",
		MissingID:      IssueMissingReferrerPolicy,
		Recommendation: "Add 'Referrer-Policy: strict-origin-when-cross-origin'",
		CheckFunc:      checkReferrerPolicy,
		WeakDelta:      weakHeaderDelta,
	},
}

// informationDisclosureHeaders lists headers that should be removed/obfuscated
var informationDisclosureHeaders = []string{
	"Server",
	"X-Powered-By",
	"X-AspNet-Version",
	"X-AspNetMvc-Version",
}

// canonicalHeaders re-keys a header mapping with canonical MIME header names
func canonicalHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// analyzeSecurityHeaders adds one LOW issue per missing header and a smaller
// one per header whose value is present but weak.
func analyzeSecurityHeaders(report *evidence.RiskReport, headers map[string]string) {
	for _, spec := range securityHeaderSpecs {
		value, ok := headers[textproto.CanonicalMIMEHeaderKey(spec.Name)]
		if !ok || value == "" {
			report.AddIssue(evidence.Issue{
				ID:          spec.MissingID,
				Severity:    evidence.SeverityLow,
				Description: spec.Name + " header is missing. " + spec.Recommendation,
			}, missingHeaderDelta)
			continue
		}
		if id, description := spec.CheckFunc(value); id != "" {
			report.AddIssue(evidence.Issue{
				ID:          id,
				Severity:    evidence.SeverityLow,
				Description: description,
			}, spec.WeakDelta)
		}
	}

	for _, name := range informationDisclosureHeaders {
		value := headers[textproto.CanonicalMIMEHeaderKey(name)]
		if value != "" && strings.ContainsAny(value, "0123456789") {
			report.AddIssue(evidence.Issue{
				ID:          IssueServerBanner,
				Severity:    evidence.SeverityLow,
				Description: name + " header discloses software version: " + value,
			}, bannerDelta)
			report.SetField("server", value)
			return
		}
	}
}

// checkHSTS flags a missing, zero or short max-age
func checkHSTS(value string) (string, string) {
	value = strings.ToLower(value)
	for _, directive := range strings.Split(value, ";") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "max-age=") {
			continue
		}
		maxAge, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(directive, "max-age="), `"`))
		switch {
		case err != nil:
			return IssueWeakHSTS, "HSTS max-age is not a number"
		case maxAge == 0:
			return IssueWeakHSTS, "HSTS max-age is set to 0 (HSTS disabled)"
		case maxAge < hstsMinMaxAge:
			return IssueWeakHSTS, "HSTS max-age is shorter than six months"
		}
		return "", ""
	}
	return IssueWeakHSTS, "HSTS header is missing the 'max-age' directive"
}

// checkCSP flags policies that allow inline or wildcard script sources
func checkCSP(value string) (string, string) {
	directives := parseCSPDirectives(strings.ToLower(value))
	sources, ok := directives["script-src"]
	if !ok {
		sources, ok = directives["default-src"]
	}
	if !ok {
		return IssueWeakCSP, "Content-Security-Policy defines neither script-src nor default-src"
	}
	for _, token := range sources {
		switch token {
		case "'unsafe-inline'", "'unsafe-eval'", "*", "data:":
			return IssueWeakCSP, "Content-Security-Policy script sources allow " + token
		}
	}
	return "", ""
}

func parseCSPDirectives(value string) map[string][]string {
	result := make(map[string][]string)
	for _, part := range strings.Split(value, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		result[fields[0]] = fields[1:]
	}
	return result
}

// checkXFrameOptions accepts DENY and SAMEORIGIN only
func checkXFrameOptions(value string) (string, string) {
	switch strings.ToUpper(value) {
	case "DENY", "SAMEORIGIN":
		return "", ""
	}
	return IssueInvalidXFrameOptions, "X-Frame-Options has unsupported value " + strconv.Quote(value)
}

// checkXContentTypeOptions accepts nosniff only
func checkXContentTypeOptions(value string) (string, string) {
	if strings.EqualFold(value, "nosniff") {
		return "", ""
	}
	return IssueInvalidXContentTypeOption, "X-Content-Type-Options should be 'nosniff', got " + strconv.Quote(value)
}

// checkReferrerPolicy flags policies that leak full URLs cross-origin
func checkReferrerPolicy(value string) (string, string) {
	for _, policy := range strings.Split(strings.ToLower(value), ",") {
		switch strings.TrimSpace(policy) {
		case "unsafe-url", "no-referrer-when-downgrade":
			return IssueWeakReferrerPolicy, "Referrer-Policy " + strings.TrimSpace(policy) + " leaks full URLs"
		}
	}
	return "", ""
}
