package scan

import (
	"time"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/scoring"
)

// Result is the outcome of a successful session
type Result struct {
	SessionID   string                  `json:"session_id"`
	TargetType  evidence.ScanTargetType `json:"target_type"`
	Target      string                  `json:"target"`
	Verdict     scoring.Verdict         `json:"verdict"`
	Breakdown   scoring.Breakdown       `json:"breakdown"`
	Reports     []evidence.RiskReport   `json:"reports"`
	ML          *evidence.MlReport      `json:"ml,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt time.Time               `json:"completed_at"`
}

// Report returns the report of the given domain, if present
func (r *Result) Report(domain string) (evidence.RiskReport, bool) {
	for _, report := range r.Reports {
		if report.Domain == domain {
			return report, true
		}
	}
	return evidence.RiskReport{}, false
}

// Issues flattens the issues of every report, in report order
func (r *Result) Issues() []evidence.Issue {
	var issues []evidence.Issue
	for _, report := range r.Reports {
		issues = append(issues, report.Issues...)
	}
	return issues
}
