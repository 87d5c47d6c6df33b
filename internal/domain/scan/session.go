package scan

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
)

// Phase is the lifecycle position of a session
type Phase string

const (
	PhaseCreated   Phase = "created"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Pipeline checkpoints reported through Progress events
const (
	StageParsing      = "parsing"
	StageNetworkCheck = "network-check"
	StageURLCheck     = "url-check"
	StageProxyCheck   = "proxy-check"
	StageWifiCheck    = "wifi-check"
	StageTextAnalysis = "text-analysis"
	StageMLSignal     = "ml-signal"
	StageScoring      = "scoring"
)

// Session is one end-to-end scan of a single target.
// Every accepted transition yields exactly one State with the next sequence number,
// and once a terminal state has been produced the session rejects further transitions.
type Session struct {
	mu          sync.Mutex
	id          string
	request     evidence.ScanRequest
	createdAt   time.Time
	completedAt time.Time
	phase       Phase
	stage       string
	seq         uint64
	err         error
	result      *Result
	now         func() time.Time
}

// NewSession validates the request and creates a session in the created phase
func NewSession(req evidence.ScanRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		id:        uuid.NewString(),
		request:   req,
		createdAt: time.Now().UTC(),
		phase:     PhaseCreated,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start moves a created session into its first stage
func (s *Session) Start(stage, message string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseCreated {
		return State{}, s.transitionError("start")
	}
	s.phase = PhaseRunning
	s.stage = stage
	return s.emit(State{Kind: KindProgress, Stage: stage, Message: message}), nil
}

// Advance records a new pipeline checkpoint of a running session
func (s *Session) Advance(stage, message string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseRunning {
		return State{}, s.transitionError("advance")
	}
	s.stage = stage
	return s.emit(State{Kind: KindProgress, Stage: stage, Message: message}), nil
}

// Succeed completes a running session with its result
func (s *Session) Succeed(result *Result) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseRunning {
		return State{}, s.transitionError("succeed")
	}
	if result == nil {
		return State{}, fmt.Errorf("%w: succeed without a result", sharedErrors.ErrInvalidTransition)
	}
	s.phase = PhaseSucceeded
	s.completedAt = s.now()
	s.result = result
	return s.emit(State{Kind: KindSuccess, Stage: s.stage, Result: result}), nil
}

// Fail terminates the session with the originating error
func (s *Session) Fail(cause error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseSucceeded || s.phase == PhaseFailed {
		return State{}, s.transitionError("fail")
	}
	if cause == nil {
		cause = sharedErrors.ErrEvaluation
	}
	s.phase = PhaseFailed
	s.completedAt = s.now()
	s.err = cause
	return s.emit(State{Kind: KindFailure, Stage: s.stage, Err: cause}), nil
}

func (s *Session) emit(state State) State {
	s.seq++
	state.SessionID = s.id
	state.Seq = s.seq
	state.Timestamp = s.now()
	return state
}

func (s *Session) transitionError(op string) error {
	if s.phase == PhaseSucceeded || s.phase == PhaseFailed {
		return fmt.Errorf("%w: cannot %s session %s", sharedErrors.ErrSessionTerminated, op, s.id)
	}
	return fmt.Errorf("%w: cannot %s session %s in phase %s", sharedErrors.ErrInvalidTransition, op, s.id, s.phase)
}

// Getters

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Request() evidence.ScanRequest {
	return s.request
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) CompletedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedAt
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Stage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Terminal reports whether the session has succeeded or failed
func (s *Session) Terminal() bool {
	p := s.Phase()
	return p == PhaseSucceeded || p == PhaseFailed
}
