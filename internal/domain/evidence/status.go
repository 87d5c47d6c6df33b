package evidence

// Status is the categorical outcome of an assessment
type Status string

const (
	StatusClean      Status = "CLEAN"
	StatusSuspicious Status = "SUSPICIOUS"
	StatusMalicious  Status = "MALICIOUS"
)

// Confidence expresses how much corroborating evidence backs a verdict
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Score thresholds shared by every evaluator and by the aggregator.
const (
	MaliciousThreshold = 0.6
	CleanThreshold     = 0.3
)

// StatusForScore maps a score to a status: >= 0.6 malicious, < 0.3 clean.
func StatusForScore(score float64) Status {
	switch {
	case score >= MaliciousThreshold:
		return StatusMalicious
	case score < CleanThreshold:
		return StatusClean
	default:
		return StatusSuspicious
	}
}

// RiskCategory is the three-level bucket used by the Wi-Fi and text evaluators
type RiskCategory string

const (
	RiskLow    RiskCategory = "LOW"
	RiskMedium RiskCategory = "MEDIUM"
	RiskHigh   RiskCategory = "HIGH"
)
