package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"go.uber.org/zap"
)

// MLScorer is the on-device classifier collaborator. A nil report means no signal.
type MLScorer interface {
	Score(ctx context.Context, url, html string) (*evidence.MlReport, error)
}

// Policy holds the knobs of the max-plus-residual combination
type Policy struct {
	// ResidualWeight scales the sum of the non-dominant report scores.
	ResidualWeight float64
	// ResidualCap bounds everything added on top of the dominant score,
	// privacy events included.
	ResidualCap float64
	// PrivacyEventWeight is added per qualifying privacy event, up to PrivacyCap.
	PrivacyEventWeight float64
	PrivacyCap         float64
	PrivacyMinPriority int
	// MLMinConfidence below which the ML signal is ignored.
	MLMinConfidence float64
	// MLBlend is the share of the gap between ML score and heuristic score
	// that a fully confident ML signal may close.
	MLBlend float64
	// FallbackScore is used when aggregation cannot produce a score.
	FallbackScore float64
}

// DefaultPolicy returns the policy used by the engine
func DefaultPolicy() Policy {
	return Policy{
		ResidualWeight:     0.25,
		ResidualCap:        0.2,
		PrivacyEventWeight: 0.02,
		PrivacyCap:         0.1,
		PrivacyMinPriority: 2,
		MLMinConfidence:    0.5,
		MLBlend:            0.5,
		FallbackScore:      0.45,
	}
}

// Input is everything the aggregator looks at for one scan
type Input struct {
	Reports       []evidence.RiskReport
	ML            *evidence.MlReport
	PrivacyEvents []evidence.PrivacyEvent
}

// Breakdown explains how a verdict score was reached
type Breakdown struct {
	AnchorDomain string  `json:"anchor_domain"`
	Anchor       float64 `json:"anchor"`
	Residual     float64 `json:"residual"`
	Privacy      float64 `json:"privacy"`
	MLLift       float64 `json:"ml_lift"`
	MLUsed       bool    `json:"ml_used"`
}

// Aggregator merges per-domain reports into one verdict
type Aggregator struct {
	policy Policy
	logger *zap.Logger
}

// NewAggregator creates an aggregator. A nil logger disables logging.
func NewAggregator(policy Policy, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{policy: policy, logger: logger}
}

var defaultAggregator = NewAggregator(DefaultPolicy(), nil)

// Aggregate combines reports and an optional ML signal with the default policy.
// On error the returned verdict is the SUSPICIOUS/LOW fallback.
func Aggregate(reports []evidence.RiskReport, ml *evidence.MlReport) (Verdict, error) {
	verdict, _, err := defaultAggregator.Evaluate(Input{Reports: reports, ML: ml})
	return verdict, err
}

// Aggregate is Evaluate without the breakdown
func (a *Aggregator) Aggregate(in Input) (Verdict, error) {
	verdict, _, err := a.Evaluate(in)
	return verdict, err
}

// Evaluate computes the verdict and the breakdown behind it.
//
// The highest report score anchors the result; the other reports and qualifying
// privacy events add a bounded residual. A trusted ML signal can only raise the score.
func (a *Aggregator) Evaluate(in Input) (Verdict, Breakdown, error) {
	if err := validateReports(in.Reports); err != nil {
		a.logger.Warn("aggregation fell back to default verdict", zap.Error(err))
		return a.fallback(), Breakdown{}, err
	}

	anchorIdx := dominantReport(in.Reports)
	anchor := in.Reports[anchorIdx]

	var others float64
	for i, report := range in.Reports {
		if i == anchorIdx {
			continue
		}
		others += evidence.ClampScore(report.RiskScore)
	}

	privacy := math.Min(a.policy.PrivacyCap, a.policy.PrivacyEventWeight*float64(a.qualifyingEvents(in.PrivacyEvents)))
	residual := math.Min(a.policy.ResidualCap, a.policy.ResidualWeight*others+privacy)
	score := evidence.ClampScore(anchor.RiskScore + residual)

	breakdown := Breakdown{
		AnchorDomain: anchor.Domain,
		Anchor:       evidence.ClampScore(anchor.RiskScore),
		Residual:     evidence.ClampScore(residual),
		Privacy:      evidence.ClampScore(privacy),
	}

	mlTrusted := a.trustedML(in.ML)
	if mlTrusted {
		mlScore := evidence.ClampScore(in.ML.Score)
		if mlScore > score {
			lifted := evidence.ClampScore(score + (mlScore-score)*in.ML.Confidence*a.policy.MLBlend)
			breakdown.MLLift = evidence.ClampScore(lifted - score)
			breakdown.MLUsed = true
			score = lifted
		}
	}

	status := evidence.StatusForScore(score)
	verdict := Verdict{
		status:     status,
		score:      score,
		confidence: confidenceFor(in.Reports, status, mlTrusted && evidence.StatusForScore(in.ML.Score) == status),
	}

	a.logger.Debug("aggregated verdict",
		zap.String("status", string(verdict.status)),
		zap.Float64("score", verdict.score),
		zap.String("confidence", string(verdict.confidence)),
		zap.String("anchor", breakdown.AnchorDomain),
		zap.Int("reports", len(in.Reports)))

	return verdict, breakdown, nil
}

func (a *Aggregator) fallback() Verdict {
	score := evidence.ClampScore(a.policy.FallbackScore)
	return Verdict{
		status:     evidence.StatusSuspicious,
		score:      score,
		confidence: evidence.ConfidenceLow,
	}
}

func (a *Aggregator) trustedML(ml *evidence.MlReport) bool {
	if ml == nil || math.IsNaN(ml.Score) || math.IsNaN(ml.Confidence) {
		return false
	}
	return ml.Confidence >= a.policy.MLMinConfidence && ml.Confidence <= 1
}

func (a *Aggregator) qualifyingEvents(events []evidence.PrivacyEvent) int {
	count := 0
	for _, event := range events {
		if event.Confidence >= 0.5 && event.Priority >= a.policy.PrivacyMinPriority {
			count++
		}
	}
	return count
}

func validateReports(reports []evidence.RiskReport) error {
	if len(reports) == 0 {
		return fmt.Errorf("%w: no reports", sharedErrors.ErrAggregation)
	}
	for _, report := range reports {
		if math.IsNaN(report.RiskScore) || math.IsInf(report.RiskScore, 0) {
			return fmt.Errorf("%w: %s report has non-finite score", sharedErrors.ErrAggregation, report.Domain)
		}
	}
	return nil
}

// dominantReport picks the highest score, breaking ties on the most severe issue
func dominantReport(reports []evidence.RiskReport) int {
	best := 0
	for i := 1; i < len(reports); i++ {
		cur, top := reports[i], reports[best]
		if cur.RiskScore > top.RiskScore ||
			(cur.RiskScore == top.RiskScore && cur.MaxSeverity().Rank() > top.MaxSeverity().Rank()) {
			best = i
		}
	}
	return best
}

func confidenceFor(reports []evidence.RiskReport, status evidence.Status, mlAgrees bool) evidence.Confidence {
	complete, agreeing := 0, 0
	for _, report := range reports {
		if report.Partial {
			continue
		}
		complete++
		if evidence.StatusForScore(report.RiskScore) == status {
			agreeing++
		}
	}

	switch {
	case complete == 0:
		return evidence.ConfidenceLow
	case agreeing >= 2, agreeing == 1 && mlAgrees:
		return evidence.ConfidenceHigh
	default:
		return evidence.ConfidenceMedium
	}
}
