package scoring

import (
	"encoding/json"
	"fmt"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
)

// Verdict is the final decision over all evidence of one scan.
// Only the aggregator creates verdicts; persisted ones are brought back with RestoreVerdict.
type Verdict struct {
	status     evidence.Status
	score      float64
	confidence evidence.Confidence
}

// RestoreVerdict rebuilds a verdict from persisted data
func RestoreVerdict(status evidence.Status, score float64, confidence evidence.Confidence) Verdict {
	return Verdict{
		status:     status,
		score:      evidence.ClampScore(score),
		confidence: confidence,
	}
}

func (v Verdict) Status() evidence.Status {
	return v.status
}

func (v Verdict) Score() float64 {
	return v.score
}

func (v Verdict) Confidence() evidence.Confidence {
	return v.confidence
}

// IsZero reports whether the verdict was never set
func (v Verdict) IsZero() bool {
	return v.status == ""
}

func (v Verdict) String() string {
	return fmt.Sprintf("%s (score %.2f, confidence %s)", v.status, v.score, v.confidence)
}

type verdictDTO struct {
	Status     evidence.Status     `json:"status"`
	Score      float64             `json:"score"`
	Confidence evidence.Confidence `json:"confidence"`
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(verdictDTO{Status: v.status, Score: v.score, Confidence: v.confidence})
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	var dto verdictDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("%w: verdict: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	*v = RestoreVerdict(dto.Status, dto.Score, dto.Confidence)
	return nil
}
