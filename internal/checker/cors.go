package checker

import (
	"strings"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
)

const (
	IssuePermissiveCORS = "permissive_cors"

	permissiveCORSDelta = 0.1
	nullOriginCORSDelta = 0.05
)

// analyzeCORS flags cross-origin policies that let any site read
// credentialed responses. A bare wildcard origin is common for public
// assets and is not reported.
func analyzeCORS(report *evidence.RiskReport, headers map[string]string) {
	origin := strings.TrimSpace(headers["Access-Control-Allow-Origin"])
	credentials := strings.EqualFold(strings.TrimSpace(headers["Access-Control-Allow-Credentials"]), "true")

	switch {
	case origin == "*" && credentials:
		report.AddIssue(evidence.Issue{
			ID:          IssuePermissiveCORS,
			Severity:    evidence.SeverityMedium,
			Description: "CORS allows any origin together with credentials",
		}, permissiveCORSDelta)
	case strings.EqualFold(origin, "null"):
		report.AddIssue(evidence.Issue{
			ID:          IssuePermissiveCORS,
			Severity:    evidence.SeverityLow,
			Description: "CORS trusts the 'null' origin (sandboxed and file pages)",
		}, nullOriginCORSDelta)
	}
}
