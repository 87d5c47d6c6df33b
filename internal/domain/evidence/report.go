package evidence

import (
	"math"
	"sort"
)

// Severity is the weight class of a single Issue
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Rank orders severities so the highest can be picked without string comparison
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Issue is a single named finding emitted by an evaluator.
// ID is a stable slug from the evaluator's documented vocabulary.
type Issue struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Domain names used to label reports
const (
	DomainProxy   = "proxy"
	DomainNetwork = "network"
	DomainURL     = "url"
	DomainWifi    = "wifi"
	DomainText    = "text"
)

// RiskReport is the per-domain output of an evaluator
type RiskReport struct {
	Domain          string            `json:"domain"`
	RiskScore       float64           `json:"risk_score"`
	Issues          []Issue           `json:"issues"`
	ExtractedFields map[string]string `json:"extracted_fields,omitempty"`
	// Partial marks reports built from incomplete evidence (unparseable input,
	// unreachable target). The aggregator lowers its confidence for them.
	Partial bool `json:"partial,omitempty"`
}

// NewRiskReport creates an empty report for the given domain
func NewRiskReport(domain string) RiskReport {
	return RiskReport{
		Domain:          domain,
		Issues:          []Issue{},
		ExtractedFields: map[string]string{},
	}
}

// AddIssue appends an issue and raises the score by delta.
// Negative deltas are ignored so the score never decreases.
func (r *RiskReport) AddIssue(issue Issue, delta float64) {
	r.Issues = append(r.Issues, issue)
	if delta > 0 && !math.IsNaN(delta) {
		r.RiskScore = ClampScore(r.RiskScore + delta)
	}
}

// ApplyFloor lifts the score to floor when it sits below it.
func (r *RiskReport) ApplyFloor(floor float64) {
	if r.RiskScore < floor {
		r.RiskScore = ClampScore(floor)
	}
}

// SetField records an extracted field; empty values are skipped
func (r *RiskReport) SetField(key, value string) {
	if value == "" {
		return
	}
	if r.ExtractedFields == nil {
		r.ExtractedFields = map[string]string{}
	}
	r.ExtractedFields[key] = value
}

// HasIssue reports whether an issue with the given slug is present
func (r RiskReport) HasIssue(id string) bool {
	for _, issue := range r.Issues {
		if issue.ID == id {
			return true
		}
	}
	return false
}

// IssueIDs returns the sorted, de-duplicated issue slugs
func (r RiskReport) IssueIDs() []string {
	seen := make(map[string]struct{}, len(r.Issues))
	ids := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		if _, ok := seen[issue.ID]; ok {
			continue
		}
		seen[issue.ID] = struct{}{}
		ids = append(ids, issue.ID)
	}
	sort.Strings(ids)
	return ids
}

// MaxSeverity returns the highest severity among the issues, or "" when there are none
func (r RiskReport) MaxSeverity() Severity {
	var max Severity
	for _, issue := range r.Issues {
		if issue.Severity.Rank() > max.Rank() {
			max = issue.Severity
		}
	}
	return max
}

// ClampScore bounds a score to [0,1] and rounds it to four decimals so
// repeated evaluations serialize identically.
func ClampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return math.Round(score*10000) / 10000
}
