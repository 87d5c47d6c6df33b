package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
	"github.com/khanhnv2901/seca-guard/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"go.uber.org/zap"
)

// Starter launches scan sessions; implemented by the application orchestrator
type Starter interface {
	Start(ctx context.Context, req evidence.ScanRequest) (*scan.Session, <-chan scan.State, error)
}

// SessionView is the API projection of a tracked session
type SessionView struct {
	ID         string                  `json:"id"`
	TargetType evidence.ScanTargetType `json:"target_type"`
	Phase      scan.Phase              `json:"phase"`
	Stage      string                  `json:"stage,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	Events     int                     `json:"events"`
	Result     *scan.Result            `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

type trackedSession struct {
	view        SessionView
	events      []scan.State
	subscribers map[chan scan.State]struct{}
	done        bool
}

// SessionTracker runs sessions in the background and keeps their timelines
// in memory so API clients can poll them or stream them as they happen.
type SessionTracker struct {
	mu          sync.RWMutex
	starter     Starter
	sessions    map[string]*trackedSession
	maxSessions int // Maximum number of finished sessions to keep in memory
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionTracker creates a tracker. Sessions outlive the HTTP request that
// submitted them and are cancelled by Close.
func NewSessionTracker(starter Starter, logger *zap.Logger) *SessionTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionTracker{
		starter:     starter,
		sessions:    make(map[string]*trackedSession),
		maxSessions: 1000, // Default: keep last 1000 sessions
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Submit starts a session and returns its initial view
func (t *SessionTracker) Submit(req evidence.ScanRequest) (SessionView, error) {
	if err := t.ctx.Err(); err != nil {
		return SessionView{}, fmt.Errorf("tracker closed: %w", err)
	}
	session, events, err := t.starter.Start(t.ctx, req)
	if err != nil {
		return SessionView{}, err
	}

	tracked := &trackedSession{
		view: SessionView{
			ID:         session.ID(),
			TargetType: req.TargetType,
			Phase:      scan.PhaseCreated,
			StartedAt:  session.CreatedAt(),
		},
		subscribers: make(map[chan scan.State]struct{}),
	}

	t.mu.Lock()
	t.sessions[session.ID()] = tracked
	t.pruneLocked()
	view := tracked.view
	t.mu.Unlock()

	t.wg.Add(1)
	go t.consume(session.ID(), events)
	return view, nil
}

func (t *SessionTracker) consume(id string, events <-chan scan.State) {
	defer t.wg.Done()
	for st := range events {
		t.record(id, st)
	}
	t.finish(id)
}

func (t *SessionTracker) record(id string, st scan.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.sessions[id]
	if !ok {
		return
	}
	tracked.events = append(tracked.events, st)
	tracked.view.Events = len(tracked.events)
	if st.Stage != "" {
		tracked.view.Stage = st.Stage
	}

	switch st.Kind {
	case scan.KindProgress:
		tracked.view.Phase = scan.PhaseRunning
	case scan.KindSuccess:
		tracked.view.Phase = scan.PhaseSucceeded
		tracked.view.Result = st.Result
	case scan.KindFailure:
		tracked.view.Phase = scan.PhaseFailed
		if st.Err != nil {
			tracked.view.Error = st.Err.Error()
		}
	}
	if st.Terminal() {
		finished := st.Timestamp
		tracked.view.FinishedAt = &finished
	}

	for ch := range tracked.subscribers {
		select {
		case ch <- st:
		default:
			// Buffers hold a full timeline; a full buffer means the reader is gone
			t.logger.Warn("dropping session event for slow subscriber", zap.String("session_id", id), zap.Uint64("seq", st.Seq))
		}
	}
}

// finish closes subscribers once the session stream has ended
func (t *SessionTracker) finish(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.sessions[id]
	if !ok {
		return
	}
	tracked.done = true
	if tracked.view.FinishedAt == nil {
		// Stream closed without a terminal event: the tracker was shut down
		now := time.Now().UTC()
		tracked.view.FinishedAt = &now
		tracked.view.Phase = scan.PhaseFailed
		tracked.view.Error = context.Canceled.Error()
	}
	for ch := range tracked.subscribers {
		delete(tracked.subscribers, ch)
		close(ch)
	}
}

// Get returns a snapshot of a session
func (t *SessionTracker) Get(id string) (SessionView, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tracked, ok := t.sessions[id]
	if !ok {
		return SessionView{}, fmt.Errorf("%w: %s", sharedErrors.ErrSessionNotFound, id)
	}
	return tracked.view, nil
}

// List returns sessions newest first
func (t *SessionTracker) List(limit int) []SessionView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	views := make([]SessionView, 0, len(t.sessions))
	for _, tracked := range t.sessions {
		views = append(views, tracked.view)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].StartedAt.Equal(views[j].StartedAt) {
			return views[i].ID > views[j].ID
		}
		return views[i].StartedAt.After(views[j].StartedAt)
	})

	if limit > 0 && limit < len(views) {
		views = views[:limit]
	}
	return views
}

// Subscribe returns the events recorded so far and a channel carrying the
// rest, closed after the terminal event. The channel is nil when the
// session has already finished.
func (t *SessionTracker) Subscribe(id string) ([]scan.State, <-chan scan.State, func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.sessions[id]
	if !ok {
		return nil, nil, func() {}, fmt.Errorf("%w: %s", sharedErrors.ErrSessionNotFound, id)
	}
	replay := append([]scan.State(nil), tracked.events...)
	if tracked.done {
		return replay, nil, func() {}, nil
	}

	ch := make(chan scan.State, constants.SessionEventBuffer*2)
	tracked.subscribers[ch] = struct{}{}
	return replay, ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := tracked.subscribers[ch]; ok {
			delete(tracked.subscribers, ch)
			close(ch)
		}
	}, nil
}

// Close cancels running sessions and waits for their streams to end
func (t *SessionTracker) Close() {
	t.cancel()
	t.wg.Wait()
}

// SetMaxSessions configures the maximum number of sessions to retain in memory
func (t *SessionTracker) SetMaxSessions(max int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if max > 0 {
		t.maxSessions = max
	}
}

// pruneLocked removes the oldest finished sessions beyond the limit
func (t *SessionTracker) pruneLocked() {
	if len(t.sessions) <= t.maxSessions {
		return
	}

	type finishedSession struct {
		id string
		at time.Time
	}
	var finished []finishedSession
	for id, tracked := range t.sessions {
		if tracked.done && tracked.view.FinishedAt != nil {
			finished = append(finished, finishedSession{id: id, at: *tracked.view.FinishedAt})
		}
	}

	// Sort oldest first
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].at.Before(finished[j].at)
	})

	toRemove := len(t.sessions) - t.maxSessions
	if toRemove > len(finished) {
		toRemove = len(finished)
	}
	for i := 0; i < toRemove; i++ {
		delete(t.sessions, finished[i].id)
	}
}

// IsNotFound reports whether err means the session is unknown
func IsNotFound(err error) bool {
	return errors.Is(err, sharedErrors.ErrSessionNotFound)
}
