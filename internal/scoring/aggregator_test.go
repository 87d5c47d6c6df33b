package scoring

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func report(domain string, score float64, partial bool) evidence.RiskReport {
	r := evidence.NewRiskReport(domain)
	r.RiskScore = score
	r.Partial = partial
	return r
}

func TestAggregate_SingleReportKeepsDomainThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  evidence.Status
	}{
		{0.65, evidence.StatusMalicious},
		{0.6, evidence.StatusMalicious},
		{0.45, evidence.StatusSuspicious},
		{0.3, evidence.StatusSuspicious},
		{0.1, evidence.StatusClean},
	}
	for _, tc := range tests {
		verdict, err := Aggregate([]evidence.RiskReport{report(evidence.DomainProxy, tc.score, false)}, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, verdict.Status(), "score %.2f", tc.score)
		assert.Equal(t, tc.score, verdict.Score())
		assert.Equal(t, evidence.ConfidenceMedium, verdict.Confidence())
	}
}

func TestAggregate_CorroborationAddsBoundedResidual(t *testing.T) {
	verdict, err := Aggregate([]evidence.RiskReport{
		report(evidence.DomainNetwork, 0.65, false),
		report(evidence.DomainURL, 0.65, false),
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.8125, verdict.Score(), 1e-9)
	assert.Equal(t, evidence.StatusMalicious, verdict.Status())
	assert.Equal(t, evidence.ConfidenceHigh, verdict.Confidence())

	verdict, err = Aggregate([]evidence.RiskReport{
		report(evidence.DomainNetwork, 0.5, false),
		report(evidence.DomainURL, 0.7, false),
		report(evidence.DomainWifi, 0.5, false),
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, verdict.Score(), 1e-9, "residual must be capped at 0.2")
}

func TestAggregate_WeakReportsDoNotDiluteStrongOne(t *testing.T) {
	verdict, err := Aggregate([]evidence.RiskReport{
		report(evidence.DomainNetwork, 0.1, false),
		report(evidence.DomainProxy, 0.7, false),
		report(evidence.DomainURL, 0.1, false),
		report(evidence.DomainWifi, 0.1, false),
	}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, verdict.Score(), 0.7)
	assert.Equal(t, evidence.StatusMalicious, verdict.Status())
}

func TestAggregate_MLSignalNeverLowersScore(t *testing.T) {
	reports := []evidence.RiskReport{report(evidence.DomainNetwork, 0.8, false)}

	tests := map[string]*evidence.MlReport{
		"absent":          nil,
		"low confidence":  {Score: 0.0, Confidence: 0.2},
		"confident clean": {Score: 0.05, Confidence: 0.99},
		"nan":             {Score: math.NaN(), Confidence: 0.9},
	}
	for name, ml := range tests {
		t.Run(name, func(t *testing.T) {
			verdict, err := Aggregate(reports, ml)
			require.NoError(t, err)
			assert.Equal(t, 0.8, verdict.Score())
			assert.Equal(t, evidence.StatusMalicious, verdict.Status())
		})
	}
}

func TestAggregator_MLSignalCanRaiseScore(t *testing.T) {
	agg := NewAggregator(DefaultPolicy(), zaptest.NewLogger(t))

	verdict, breakdown, err := agg.Evaluate(Input{
		Reports: []evidence.RiskReport{report(evidence.DomainURL, 0.4, false)},
		ML:      &evidence.MlReport{Score: 0.9, Confidence: 0.8, Model: "phish-lite"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.6, verdict.Score())
	assert.Equal(t, evidence.StatusMalicious, verdict.Status())
	assert.Equal(t, evidence.ConfidenceMedium, verdict.Confidence())
	assert.True(t, breakdown.MLUsed)
	assert.Equal(t, 0.2, breakdown.MLLift)
	assert.Equal(t, evidence.DomainURL, breakdown.AnchorDomain)

	verdict, _, err = agg.Evaluate(Input{
		Reports: []evidence.RiskReport{report(evidence.DomainURL, 0.4, false)},
		ML:      &evidence.MlReport{Score: 0.9, Confidence: 0.49},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.4, verdict.Score())
}

func TestAggregator_TrustedMLAgreementRaisesConfidence(t *testing.T) {
	agg := NewAggregator(DefaultPolicy(), nil)
	verdict, err := agg.Aggregate(Input{
		Reports: []evidence.RiskReport{report(evidence.DomainText, 0.7, false)},
		ML:      &evidence.MlReport{Score: 0.65, Confidence: 0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, evidence.ConfidenceHigh, verdict.Confidence())
}

func TestAggregator_PrivacyEventsAreWeakSignals(t *testing.T) {
	events := make([]evidence.PrivacyEvent, 0, 12)
	for i := 0; i < 10; i++ {
		events = append(events, evidence.PrivacyEvent{Type: "camera", Confidence: 0.9, Priority: 3})
	}
	events = append(events,
		evidence.PrivacyEvent{Type: "location", Confidence: 0.2, Priority: 5},
		evidence.PrivacyEvent{Type: "microphone", Confidence: 0.9, Priority: 1},
	)

	agg := NewAggregator(DefaultPolicy(), nil)
	verdict, breakdown, err := agg.Evaluate(Input{
		Reports:       []evidence.RiskReport{report(evidence.DomainWifi, 0.5, false)},
		PrivacyEvents: events,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.1, breakdown.Privacy)
	assert.Equal(t, 0.6, verdict.Score())

	verdict, _, err = agg.Evaluate(Input{
		Reports:       []evidence.RiskReport{report(evidence.DomainWifi, 0.5, false), report(evidence.DomainURL, 0.5, false)},
		PrivacyEvents: events,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.7, verdict.Score(), "privacy shares the residual cap")
}

func TestAggregate_PartialReportsLowerConfidence(t *testing.T) {
	verdict, err := Aggregate([]evidence.RiskReport{
		report(evidence.DomainNetwork, 0, true),
		report(evidence.DomainProxy, 0, true),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusClean, verdict.Status())
	assert.Equal(t, evidence.ConfidenceLow, verdict.Confidence())
}

func TestAggregate_FallbackOnInvalidInput(t *testing.T) {
	tests := map[string][]evidence.RiskReport{
		"no reports": nil,
		"nan score":  {report(evidence.DomainURL, math.NaN(), false)},
		"inf score":  {report(evidence.DomainURL, math.Inf(1), false)},
	}
	for name, reports := range tests {
		t.Run(name, func(t *testing.T) {
			verdict, err := Aggregate(reports, nil)
			require.ErrorIs(t, err, sharedErrors.ErrAggregation)
			assert.Equal(t, evidence.StatusSuspicious, verdict.Status())
			assert.Equal(t, evidence.ConfidenceLow, verdict.Confidence())
			assert.Equal(t, 0.45, verdict.Score())
		})
	}
}

func TestAggregate_AddingReportNeverLowersScore(t *testing.T) {
	base := []evidence.RiskReport{report(evidence.DomainProxy, 0.55, false)}
	before, err := Aggregate(base, nil)
	require.NoError(t, err)

	for _, extra := range []float64{0, 0.1, 0.3, 0.6, 0.95} {
		after, err := Aggregate(append(base[:1:1], report(evidence.DomainURL, extra, false)), nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, after.Score(), before.Score(), "extra report %.2f", extra)
	}
}

func TestVerdict_JSON(t *testing.T) {
	verdict := RestoreVerdict(evidence.StatusMalicious, 0.81254, evidence.ConfidenceHigh)

	data, err := json.Marshal(verdict)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"MALICIOUS","score":0.8125,"confidence":"HIGH"}`, string(data))

	var decoded Verdict
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, verdict, decoded)
	assert.False(t, decoded.IsZero())
	assert.True(t, Verdict{}.IsZero())
}
