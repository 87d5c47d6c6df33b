package scan

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(evidence.ScanRequest{TargetType: evidence.TargetTextMessage, RawInput: "hello"})
	require.NoError(t, err)
	return s
}

func TestNewSession_RejectsInvalidRequest(t *testing.T) {
	_, err := NewSession(evidence.ScanRequest{TargetType: evidence.TargetURL})
	assert.ErrorIs(t, err, sharedErrors.ErrEmptyInput)
}

func TestSession_HappyPathEmitsOrderedEvents(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, PhaseCreated, s.Phase())
	assert.NotEmpty(t, s.ID())

	first, err := s.Start(StageParsing, "")
	require.NoError(t, err)
	second, err := s.Advance(StageTextAnalysis, "matching rules")
	require.NoError(t, err)
	third, err := s.Advance(StageScoring, "")
	require.NoError(t, err)
	terminal, err := s.Succeed(&Result{SessionID: s.ID()})
	require.NoError(t, err)

	events := []State{first, second, third, terminal}
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, s.ID(), ev.SessionID)
		assert.Equal(t, i == len(events)-1, ev.Terminal())
	}
	assert.Equal(t, KindSuccess, terminal.Kind)
	assert.Equal(t, StageScoring, terminal.Stage)
	assert.Equal(t, PhaseSucceeded, s.Phase())
	assert.NotNil(t, s.Result())
	assert.False(t, s.CompletedAt().IsZero())
	assert.True(t, s.Terminal())
}

func TestSession_ExactlyOneTerminalEvent(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Start(StageParsing, "")
	require.NoError(t, err)

	cause := errors.New("evaluator exploded")
	failure, err := s.Fail(cause)
	require.NoError(t, err)
	assert.Equal(t, KindFailure, failure.Kind)
	assert.Same(t, cause, failure.Err)

	_, err = s.Fail(cause)
	assert.ErrorIs(t, err, sharedErrors.ErrSessionTerminated)
	_, err = s.Succeed(&Result{})
	assert.ErrorIs(t, err, sharedErrors.ErrSessionTerminated)
	_, err = s.Advance(StageScoring, "")
	assert.ErrorIs(t, err, sharedErrors.ErrSessionTerminated)
	assert.Equal(t, cause, s.Err())
}

func TestSession_InvalidTransitions(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Advance(StageScoring, "")
	assert.ErrorIs(t, err, sharedErrors.ErrInvalidTransition)
	_, err = s.Succeed(&Result{})
	assert.ErrorIs(t, err, sharedErrors.ErrInvalidTransition)

	_, err = s.Start(StageParsing, "")
	require.NoError(t, err)
	_, err = s.Start(StageParsing, "")
	assert.ErrorIs(t, err, sharedErrors.ErrInvalidTransition)
	_, err = s.Succeed(nil)
	assert.ErrorIs(t, err, sharedErrors.ErrInvalidTransition)
}

func TestSession_FailFromCreated(t *testing.T) {
	s := newTestSession(t)
	state, err := s.Fail(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.Seq)
	assert.ErrorIs(t, state.Err, sharedErrors.ErrEvaluation)
}

func TestState_MarshalJSON(t *testing.T) {
	s := newTestSession(t)
	state, err := s.Fail(errors.New("boom"))
	require.NoError(t, err)

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "failure", decoded["kind"])
	assert.Equal(t, "boom", decoded["error"])
	assert.Equal(t, s.ID(), decoded["session_id"])
	assert.NotContains(t, decoded, "result")
}

func TestResult_ReportLookup(t *testing.T) {
	proxy := evidence.NewRiskReport(evidence.DomainProxy)
	proxy.AddIssue(evidence.Issue{ID: "private_endpoint", Severity: evidence.SeverityMedium}, 0.35)
	result := &Result{Reports: []evidence.RiskReport{proxy, evidence.NewRiskReport(evidence.DomainURL)}}

	got, ok := result.Report(evidence.DomainProxy)
	require.True(t, ok)
	assert.Equal(t, 0.35, got.RiskScore)
	_, ok = result.Report(evidence.DomainWifi)
	assert.False(t, ok)
	assert.Len(t, result.Issues(), 1)
}
