package checker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Wi-Fi issue slugs
const (
	IssueOpenNetwork   = "open_network"
	IssueWEPEncryption = "wep_encryption"
	IssueLegacyWPA     = "legacy_wpa"
	IssueWPA2Personal  = "wpa2_personal"
	IssueCaptivePortal = "captive_portal"
	IssueWeakSignal    = "weak_signal"
	IssueHiddenSSID    = "hidden_ssid"
	IssueLureSSID      = "lure_ssid"
	IssueARPSpoofing   = "arp_spoofing"
)

const (
	wifiHighThreshold   = 0.7
	wifiMediumThreshold = 0.45

	weakSignalDbm = -80

	captivePortalDelta = 0.25
	weakSignalDelta    = 0.05
	hiddenSSIDDelta    = 0.05
	lureSSIDDelta      = 0.1
	arpSpoofingDelta   = 0.35
	arpExtraDelta      = 0.05
	arpExtraCap        = 0.15
)

type encryptionRule struct {
	issueID        string
	severity       evidence.Severity
	delta          float64
	description    string
	recommendation string
}

var encryptionRules = map[evidence.EncryptionType]*encryptionRule{
	evidence.EncryptionOpen: {
		issueID:        IssueOpenNetwork,
		severity:       evidence.SeverityHigh,
		delta:          0.5,
		description:    "Network is open; traffic is sent unencrypted over the air",
		recommendation: "Avoid entering credentials on this network and use a trusted VPN",
	},
	evidence.EncryptionWEP: {
		issueID:        IssueWEPEncryption,
		severity:       evidence.SeverityHigh,
		delta:          0.45,
		description:    "WEP encryption can be broken within minutes",
		recommendation: "Treat this network as open and use a trusted VPN",
	},
	evidence.EncryptionWPA: {
		issueID:        IssueLegacyWPA,
		severity:       evidence.SeverityMedium,
		delta:          0.3,
		description:    "WPA (TKIP) is deprecated and vulnerable to key recovery attacks",
		recommendation: "Prefer networks offering WPA2 or WPA3",
	},
	evidence.EncryptionWPA2: {
		issueID:        IssueWPA2Personal,
		severity:       evidence.SeverityLow,
		delta:          0.1,
		description:    "WPA2 shared-key networks allow anyone with the password to observe other clients",
		recommendation: "Prefer WPA3 where available",
	},
	evidence.EncryptionWPA3: nil,
}

// Tokens seen in SSIDs used as bait for opportunistic connections
var lureSSIDTokens = []string{
	"free", "guest", "public", "airport", "hotel", "starbucks", "gratis",
	"رایگان", "مهمان", "عمومی",
}

const (
	recommendCaptive = "Do not enter personal data on the captive portal; verify the venue's official network name"
	recommendSignal  = "Move closer to the access point; weak signals make evil-twin attacks easier"
	recommendHidden  = "Confirm the hidden network with its operator before trusting it"
	recommendLure    = "Network name resembles a public hotspot lure; confirm it with the venue"
	recommendARP     = "Disconnect now: ARP anomalies indicate an active man-in-the-middle on this network"
)

// WifiAssessment is the Wi-Fi evaluator output
type WifiAssessment struct {
	SSID            string                `json:"ssid"`
	RiskScore       float64               `json:"risk_score"`
	RiskCategory    evidence.RiskCategory `json:"risk_category"`
	Recommendations []string              `json:"recommendations"`
	Issues          []evidence.Issue      `json:"issues"`
	ObservedAt      time.Time             `json:"observed_at"`

	fields map[string]string
}

// WifiCategoryForScore maps a score to a category: >= 0.7 HIGH, < 0.45 LOW
func WifiCategoryForScore(score float64) evidence.RiskCategory {
	switch {
	case score >= wifiHighThreshold:
		return evidence.RiskHigh
	case score < wifiMediumThreshold:
		return evidence.RiskLow
	default:
		return evidence.RiskMedium
	}
}

// EvaluateWifi assesses a wireless network snapshot. ARP indicators are never
// suppressed: they lift the score to at least MEDIUM and always produce a recommendation.
func EvaluateWifi(s evidence.WifiNetworkSnapshot, observedAt time.Time) (WifiAssessment, error) {
	rule, known := encryptionRules[s.EncryptionType]
	if !known {
		return WifiAssessment{}, fmt.Errorf("%w: unknown encryption type %q", sharedErrors.ErrInvalidSnapshot, s.EncryptionType)
	}

	report := evidence.NewRiskReport(evidence.DomainWifi)
	var recommendations []string
	add := func(issue evidence.Issue, delta float64, recommendation string) {
		report.AddIssue(issue, delta)
		recommendations = appendUnique(recommendations, recommendation)
	}

	if rule != nil {
		add(evidence.Issue{ID: rule.issueID, Severity: rule.severity, Description: rule.description}, rule.delta, rule.recommendation)
	}

	if s.CaptivePortalSuspected {
		add(evidence.Issue{
			ID:          IssueCaptivePortal,
			Severity:    evidence.SeverityMedium,
			Description: "A captive portal intercepts traffic on this network",
		}, captivePortalDelta, recommendCaptive)
	}

	if s.SignalLevelDbm != 0 && s.SignalLevelDbm < weakSignalDbm {
		add(evidence.Issue{
			ID:          IssueWeakSignal,
			Severity:    evidence.SeverityLow,
			Description: fmt.Sprintf("Signal level %d dBm is weak", s.SignalLevelDbm),
		}, weakSignalDelta, recommendSignal)
	}

	ssid := strings.TrimSpace(s.SSID)
	if ssid == "" || strings.EqualFold(ssid, "<unknown ssid>") {
		add(evidence.Issue{
			ID:          IssueHiddenSSID,
			Severity:    evidence.SeverityLow,
			Description: "Network does not broadcast its name",
		}, hiddenSSIDDelta, recommendHidden)
	} else if token, ok := lureToken(ssid); ok {
		add(evidence.Issue{
			ID:          IssueLureSSID,
			Severity:    evidence.SeverityLow,
			Description: fmt.Sprintf("Network name contains %q, common in rogue hotspots", token),
		}, lureSSIDDelta, recommendLure)
	}

	if len(s.ARPIndicators) > 0 {
		indicators := arpLabels(s.ARPIndicators)
		extra := arpExtraDelta * float64(len(indicators)-1)
		if extra > arpExtraCap {
			extra = arpExtraCap
		}
		add(evidence.Issue{
			ID:          IssueARPSpoofing,
			Severity:    evidence.SeverityHigh,
			Description: "ARP anomalies observed: " + strings.Join(indicators, ", "),
		}, arpSpoofingDelta+extra, recommendARP)
		report.ApplyFloor(wifiMediumThreshold)
	}

	if recommendations == nil {
		recommendations = []string{}
	}

	assessment := WifiAssessment{
		SSID:            ssid,
		RiskScore:       report.RiskScore,
		RiskCategory:    WifiCategoryForScore(report.RiskScore),
		Recommendations: recommendations,
		Issues:          report.Issues,
		ObservedAt:      observedAt,
		fields: map[string]string{
			"ssid":       ssid,
			"bssid":      strings.ToLower(strings.TrimSpace(s.BSSID)),
			"encryption": string(s.EncryptionType),
			"signalDbm":  strconv.Itoa(s.SignalLevelDbm),
			"metered":    strconv.FormatBool(s.IsMetered),
		},
	}
	if s.LinkSpeedMbps > 0 {
		assessment.fields["linkSpeedMbps"] = strconv.Itoa(s.LinkSpeedMbps)
	}
	return assessment, nil
}

// Report converts the assessment into a risk report for aggregation
func (a WifiAssessment) Report() evidence.RiskReport {
	report := evidence.NewRiskReport(evidence.DomainWifi)
	report.RiskScore = a.RiskScore
	report.Issues = append(report.Issues, a.Issues...)
	for k, v := range a.fields {
		report.SetField(k, v)
	}
	report.SetField("category", string(a.RiskCategory))
	if !a.ObservedAt.IsZero() {
		report.SetField("observedAt", a.ObservedAt.UTC().Format(time.RFC3339))
	}
	return report
}

func lureToken(ssid string) (string, bool) {
	folded := cases.Fold().String(norm.NFKC.String(ssid))
	for _, token := range lureSSIDTokens {
		if strings.Contains(folded, token) {
			return token, true
		}
	}
	return "", false
}

// arpLabels keeps one label per reported indicator. A blank entry is still an
// observed anomaly, only without a description.
func arpLabels(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v == "" {
			v = "unspecified"
		}
		out = append(out, v)
	}
	return out
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
