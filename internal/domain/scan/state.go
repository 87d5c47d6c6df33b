package scan

import (
	"encoding/json"
	"time"
)

// StateKind tags the variant of a State
type StateKind string

const (
	KindProgress StateKind = "progress"
	KindSuccess  StateKind = "success"
	KindFailure  StateKind = "failure"
)

// State is one event on a session timeline.
// Progress carries Stage and Message, Success carries Result, Failure carries Err.
type State struct {
	Kind      StateKind
	SessionID string
	Seq       uint64
	Stage     string
	Message   string
	Result    *Result
	Err       error
	Timestamp time.Time
}

// Terminal reports whether the event closes the timeline
func (s State) Terminal() bool {
	return s.Kind == KindSuccess || s.Kind == KindFailure
}

type stateDTO struct {
	Kind      StateKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s State) MarshalJSON() ([]byte, error) {
	dto := stateDTO{
		Kind:      s.Kind,
		SessionID: s.SessionID,
		Seq:       s.Seq,
		Stage:     s.Stage,
		Message:   s.Message,
		Result:    s.Result,
		Timestamp: s.Timestamp,
	}
	if s.Err != nil {
		dto.Error = s.Err.Error()
	}
	return json.Marshal(dto)
}
