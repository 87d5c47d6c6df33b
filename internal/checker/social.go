package checker

import (
	"sort"
	"strings"
	"unicode"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Indicator is a social-engineering manipulation category
type Indicator string

const (
	IndicatorUrgency           Indicator = "URGENCY"
	IndicatorPaymentRequest    Indicator = "PAYMENT_REQUEST"
	IndicatorCredentialRequest Indicator = "CREDENTIAL_REQUEST"
	IndicatorImpersonation     Indicator = "IMPERSONATION"
	IndicatorPrizeLure         Indicator = "PRIZE_LURE"
	IndicatorSuspiciousLink    Indicator = "SUSPICIOUS_LINK"
)

var indicatorWeights = map[Indicator]float64{
	IndicatorUrgency:           0.25,
	IndicatorPaymentRequest:    0.35,
	IndicatorCredentialRequest: 0.4,
	IndicatorImpersonation:     0.3,
	IndicatorPrizeLure:         0.25,
	IndicatorSuspiciousLink:    0.2,
}

var indicatorSeverity = map[Indicator]evidence.Severity{
	IndicatorUrgency:           evidence.SeverityLow,
	IndicatorPaymentRequest:    evidence.SeverityMedium,
	IndicatorCredentialRequest: evidence.SeverityHigh,
	IndicatorImpersonation:     evidence.SeverityMedium,
	IndicatorPrizeLure:         evidence.SeverityLow,
	IndicatorSuspiciousLink:    evidence.SeverityLow,
}

const (
	textHighThreshold   = 0.6
	textMediumThreshold = 0.25
)

// IndicatorSet is a sorted set of indicators
type IndicatorSet []Indicator

// Contains reports whether the set holds ind
func (s IndicatorSet) Contains(ind Indicator) bool {
	for _, v := range s {
		if v == ind {
			return true
		}
	}
	return false
}

// RuleMatch records which rule fired and on what text
type RuleMatch struct {
	Rule      string    `json:"rule"`
	Language  string    `json:"language"`
	Indicator Indicator `json:"indicator"`
	Excerpt   string    `json:"excerpt"`
}

// SocialEngineeringReport is the text evaluator output
type SocialEngineeringReport struct {
	RiskLevel  evidence.RiskCategory `json:"risk_level"`
	Score      float64               `json:"score"`
	Indicators IndicatorSet          `json:"indicators"`
	Matches    []RuleMatch           `json:"matches"`
	Languages  []string              `json:"languages"`
}

// AnalyzeText scans a message against the rule table. Each indicator counts
// once regardless of how many rules matched it. Cue rules only count when at
// least two indicator categories matched.
func AnalyzeText(message string) SocialEngineeringReport {
	normalized := NormalizeText(message)
	report := SocialEngineeringReport{
		RiskLevel:  evidence.RiskLow,
		Indicators: IndicatorSet{},
		Matches:    []RuleMatch{},
		Languages:  detectLanguages(normalized),
	}
	if normalized == "" {
		return report
	}

	type hit struct {
		match RuleMatch
		cue   bool
	}
	var hits []hit
	categories := map[Indicator]bool{}
	for _, rule := range textRules {
		loc := rule.pattern.FindStringIndex(normalized)
		if loc == nil {
			continue
		}
		hits = append(hits, hit{
			match: RuleMatch{
				Rule:      rule.name,
				Language:  rule.language,
				Indicator: rule.indicator,
				Excerpt:   strings.TrimFunc(normalized[loc[0]:loc[1]], isBoundaryRune),
			},
			cue: rule.cue,
		})
		categories[rule.indicator] = true
	}

	if token, ok := mixedScriptToken(normalized); ok {
		hits = append(hits, hit{match: RuleMatch{
			Rule:      "mixed_script_token",
			Language:  "any",
			Indicator: IndicatorImpersonation,
			Excerpt:   token,
		}})
		categories[IndicatorImpersonation] = true
	}

	corroborated := len(categories) >= 2
	seen := map[Indicator]bool{}
	for _, h := range hits {
		if h.cue && !corroborated {
			continue
		}
		report.Matches = append(report.Matches, h.match)
		seen[h.match.Indicator] = true
	}

	for ind := range seen {
		report.Indicators = append(report.Indicators, ind)
	}
	sort.Slice(report.Indicators, func(i, j int) bool { return report.Indicators[i] < report.Indicators[j] })

	var score float64
	for _, ind := range report.Indicators {
		score += indicatorWeights[ind]
	}

	report.Score = evidence.ClampScore(score)
	report.RiskLevel = textLevel(report.Score, report.Indicators)
	return report
}

// Report converts the analysis into a risk report for aggregation
func (r SocialEngineeringReport) Report() evidence.RiskReport {
	report := evidence.NewRiskReport(evidence.DomainText)
	for _, ind := range r.Indicators {
		var excerpts []string
		for _, m := range r.Matches {
			if m.Indicator == ind && m.Excerpt != "" {
				excerpts = appendUnique(excerpts, m.Excerpt)
			}
		}
		report.AddIssue(evidence.Issue{
			ID:          "se_" + strings.ToLower(string(ind)),
			Severity:    indicatorSeverity[ind],
			Description: strings.ToLower(strings.ReplaceAll(string(ind), "_", " ")) + " cue: " + strings.Join(excerpts, ", "),
		}, indicatorWeights[ind])
	}
	report.SetField("riskLevel", string(r.RiskLevel))
	report.SetField("languages", strings.Join(r.Languages, ","))
	return report
}

// textLevel maps a score to a level. Pressure alone is not manipulation, so a
// lone URGENCY indicator stays LOW.
func textLevel(score float64, indicators IndicatorSet) evidence.RiskCategory {
	switch {
	case len(indicators) == 1 && indicators[0] == IndicatorUrgency:
		return evidence.RiskLow
	case score >= textHighThreshold:
		return evidence.RiskHigh
	case score >= textMediumThreshold:
		return evidence.RiskMedium
	default:
		return evidence.RiskLow
	}
}

var arabicScriptReplacer = strings.NewReplacer(
	"\u064a", "\u06cc", // Arabic yeh
	"\u0649", "\u06cc", // alef maksura
	"\u0643", "\u06a9", // Arabic kaf
	"\u0629", "\u0647", // teh marbuta
	"\u0623", "\u0627", // alef with hamza above
	"\u0625", "\u0627", // alef with hamza below
	"\u0671", "\u0627", // alef wasla
	"\u200c", " ",      // zero-width non-joiner
)

// NormalizeText prepares text for matching: NFKC, case folding, unified
// Arabic-script letter variants, ASCII digits and collapsed whitespace.
// Invisible formatting characters and diacritics are dropped.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = arabicScriptReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '\u06f0' && r <= '\u06f9': // Persian digits
			return '0' + (r - '\u06f0')
		case r >= '\u0660' && r <= '\u0669': // Arabic-Indic digits
			return '0' + (r - '\u0660')
		case r == '\u0640': // tatweel
			return -1
		case r >= '\u064b' && r <= '\u065f', r == '\u0670': // harakat
			return -1
		case unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func detectLanguages(s string) []string {
	var latin, arabic bool
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Latin, r):
			latin = true
		case unicode.Is(unicode.Arabic, r):
			arabic = true
		}
	}
	langs := []string{}
	if latin {
		langs = append(langs, "en")
	}
	if arabic {
		langs = append(langs, "fa")
	}
	return langs
}

// mixedScriptToken finds a word mixing Latin with Cyrillic or Greek letters,
// the usual shape of homoglyph brand spoofing ("pаypal" with a Cyrillic а).
func mixedScriptToken(s string) (string, bool) {
	for _, token := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) {
		var latin, confusable bool
		for _, r := range token {
			switch {
			case unicode.Is(unicode.Latin, r):
				latin = true
			case unicode.Is(unicode.Cyrillic, r), unicode.Is(unicode.Greek, r):
				confusable = true
			}
		}
		if latin && confusable {
			return token, true
		}
	}
	return "", false
}

func isBoundaryRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
