package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/checker"
	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
	"github.com/khanhnv2901/seca-guard/internal/scoring"
	"github.com/khanhnv2901/seca-guard/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options wires the collaborators of an Orchestrator. Only Logger may be
// left out safely; a nil Fetcher, ML or History disables that collaborator.
type Options struct {
	Fetcher    checker.Fetcher
	ML         scoring.MLScorer
	History    scan.HistoryRepository
	Aggregator *scoring.Aggregator
	Logger     *zap.Logger
	// Timeout bounds the evaluation phase of one session; <= 0 means none
	Timeout time.Duration
}

// Orchestrator drives scan sessions: it dispatches a request to the
// evaluators of its target type, joins them, aggregates a verdict and
// persists the result.
type Orchestrator struct {
	fetcher    checker.Fetcher
	ml         scoring.MLScorer
	history    scan.HistoryRepository
	aggregator *scoring.Aggregator
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

// NewOrchestrator creates a new scan orchestrator
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	aggregator := opts.Aggregator
	if aggregator == nil {
		aggregator = scoring.NewAggregator(scoring.DefaultPolicy(), logger.Named("scoring"))
	}
	return &Orchestrator{
		fetcher:    opts.Fetcher,
		ml:         opts.ML,
		history:    opts.History,
		aggregator: aggregator,
		logger:     logger,
		timeout:    opts.Timeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start validates req, creates its session and runs it in the background.
// The returned channel yields the session timeline and is closed after the
// terminal event, or as soon as ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context, req evidence.ScanRequest) (*scan.Session, <-chan scan.State, error) {
	session, err := scan.NewSession(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	out := make(chan scan.State, constants.SessionEventBuffer)
	go o.run(ctx, session, out)
	return session, out, nil
}

// Run executes a session synchronously and returns its events.
// The error is the cause of a Failure event.
func (o *Orchestrator) Run(ctx context.Context, req evidence.ScanRequest) (*scan.Result, []scan.State, error) {
	session, events, err := o.Start(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	var states []scan.State
	for st := range events {
		states = append(states, st)
	}
	if err := ctx.Err(); err != nil && !session.Terminal() {
		return nil, states, err
	}
	if cause := session.Err(); cause != nil {
		return nil, states, cause
	}
	return session.Result(), states, nil
}

// task is one evaluator invocation within a session
type task struct {
	stage    string
	domain   string
	failOpen bool
	run      func(ctx context.Context) (evidence.RiskReport, error)
}

// outcome of a task after the join
type outcome struct {
	report evidence.RiskReport
	err    error
}

func (o *Orchestrator) run(ctx context.Context, session *scan.Session, out chan<- scan.State) {
	defer close(out)

	log := o.logger.With(zap.String("session_id", session.ID()))
	req := session.Request()

	emit := func(st scan.State, err error) bool {
		if err != nil {
			log.Error("session bookkeeping failed", zap.Error(err))
			return false
		}
		select {
		case out <- st:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(cause error) {
		st, err := session.Fail(cause)
		log.Warn("scan failed", zap.Error(cause))
		emit(st, err)
	}

	if !emit(session.Start(scan.StageParsing, "parsing "+string(req.TargetType)+" target")) {
		fail(ctx.Err())
		return
	}

	evalCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var page checker.FetchedMeta
	tasks := o.plan(req, &page)
	for _, t := range tasks {
		if !emit(session.Advance(t.stage, "running "+t.domain+" evaluator")) {
			fail(ctx.Err())
			return
		}
	}

	reports, err := o.join(evalCtx, log, tasks)
	if err != nil {
		fail(err)
		return
	}

	var ml *evidence.MlReport
	if req.TargetType == evidence.TargetURL && o.ml != nil {
		if !emit(session.Advance(scan.StageMLSignal, "requesting classifier signal")) {
			fail(ctx.Err())
			return
		}
		ml = o.mlSignal(evalCtx, log, page)
	}

	if !emit(session.Advance(scan.StageScoring, "aggregating reports")) {
		fail(ctx.Err())
		return
	}
	verdict, breakdown, err := o.aggregator.Evaluate(scoring.Input{
		Reports:       reports,
		ML:            ml,
		PrivacyEvents: req.PrivacyEvents,
	})
	if err != nil {
		// The fallback verdict is still a verdict
		log.Warn("aggregation degraded", zap.Error(err))
	}

	result := &scan.Result{
		SessionID:   session.ID(),
		TargetType:  req.TargetType,
		Target:      targetLabel(req),
		Verdict:     verdict,
		Breakdown:   breakdown,
		Reports:     reports,
		ML:          ml,
		StartedAt:   session.CreatedAt(),
		CompletedAt: o.now(),
	}

	if o.history != nil {
		if err := o.history.Save(ctx, result); err != nil {
			log.Warn("failed to persist scan result", zap.Error(err))
		}
	}

	log.Info("scan completed",
		zap.String("target_type", string(req.TargetType)),
		zap.String("status", string(verdict.Status())),
		zap.Float64("score", verdict.Score()))
	emit(session.Succeed(result))
}

// plan selects the evaluators for the request's target type. The network
// task stores the fetched page into page for the ML step.
func (o *Orchestrator) plan(req evidence.ScanRequest, page *checker.FetchedMeta) []task {
	var tasks []task
	switch req.TargetType {
	case evidence.TargetURL:
		tasks = append(tasks,
			task{stage: scan.StageURLCheck, domain: evidence.DomainURL, run: func(ctx context.Context) (evidence.RiskReport, error) {
				return checker.URLEvaluator{}.Evaluate(ctx, req.RawInput)
			}},
			task{stage: scan.StageNetworkCheck, domain: evidence.DomainNetwork, failOpen: true, run: func(ctx context.Context) (evidence.RiskReport, error) {
				meta, report, err := checker.NetworkEvaluator{Fetcher: o.fetcher}.Inspect(ctx, req.RawInput)
				*page = meta
				return report, err
			}},
		)
	case evidence.TargetProxyConfig:
		tasks = append(tasks, task{stage: scan.StageProxyCheck, domain: evidence.DomainProxy, run: func(ctx context.Context) (evidence.RiskReport, error) {
			return checker.ProxyEvaluator{}.Evaluate(ctx, req.RawInput)
		}})
	case evidence.TargetTextMessage:
		tasks = append(tasks, task{stage: scan.StageTextAnalysis, domain: evidence.DomainText, run: func(ctx context.Context) (evidence.RiskReport, error) {
			return checker.TextEvaluator{}.Evaluate(ctx, req.RawInput)
		}})
	case evidence.TargetWifiNetwork:
		tasks = append(tasks, o.wifiTask(req, false))
		return tasks
	}

	// The network the scan ran on is extra evidence for the other targets
	if req.Wifi != nil {
		tasks = append(tasks, o.wifiTask(req, true))
	}
	return tasks
}

func (o *Orchestrator) wifiTask(req evidence.ScanRequest, failOpen bool) task {
	return task{stage: scan.StageWifiCheck, domain: evidence.DomainWifi, failOpen: failOpen, run: func(ctx context.Context) (evidence.RiskReport, error) {
		if err := ctx.Err(); err != nil {
			return evidence.RiskReport{}, checker.NewEvaluationError(evidence.DomainWifi, err)
		}
		snapshot, err := wifiSnapshot(req)
		if err != nil {
			return evidence.RiskReport{}, checker.NewEvaluationError(evidence.DomainWifi, err)
		}
		observedAt := req.ObservedAt
		if observedAt.IsZero() {
			observedAt = o.now()
		}
		assessment, err := checker.EvaluateWifi(snapshot, observedAt)
		if err != nil {
			return evidence.RiskReport{}, checker.NewEvaluationError(evidence.DomainWifi, err)
		}
		return assessment.Report(), nil
	}}
}

// join runs every task concurrently and waits for all of them. Errors from
// fail-open tasks degrade to their partial report; any other error fails
// the session with the first such error in task order.
func (o *Orchestrator) join(ctx context.Context, log *zap.Logger, tasks []task) ([]evidence.RiskReport, error) {
	outcomes := make([]outcome, len(tasks))

	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			report, err := runGuarded(ctx, t)
			outcomes[i] = outcome{report: report, err: err}
			// Siblings keep running; errors are inspected after the join
			return nil
		})
	}
	_ = g.Wait()

	reports := make([]evidence.RiskReport, 0, len(tasks))
	var failures []error
	for i, t := range tasks {
		oc := outcomes[i]
		if oc.err == nil {
			reports = append(reports, oc.report)
			continue
		}
		if t.failOpen {
			log.Warn("evaluator degraded", zap.String("domain", t.domain), zap.Error(oc.err))
			if oc.report.Domain != "" {
				oc.report.Partial = true
				reports = append(reports, oc.report)
			}
			continue
		}
		failures = append(failures, oc.err)
	}

	if len(failures) > 0 {
		if len(reports) == 0 && len(failures) > 1 {
			return nil, fmt.Errorf("%w: %w", sharedErrors.ErrAllEvaluatorsFail, errors.Join(failures...))
		}
		return nil, failures[0]
	}
	if len(reports) == 0 {
		return nil, sharedErrors.ErrAllEvaluatorsFail
	}
	return reports, nil
}

func runGuarded(ctx context.Context, t task) (report evidence.RiskReport, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = checker.NewEvaluationError(t.domain, fmt.Errorf("panic: %v", rec))
		}
	}()
	report, err = t.run(ctx)
	if err != nil {
		err = checker.NewEvaluationError(t.domain, err)
	}
	return report, err
}

// mlSignal asks the classifier about the fetched page. Any failure means no signal.
func (o *Orchestrator) mlSignal(ctx context.Context, log *zap.Logger, page checker.FetchedMeta) (report *evidence.MlReport) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn("classifier panicked", zap.Any("panic", rec))
			report = nil
		}
	}()
	target := page.URL
	if page.FinalURL != "" {
		target = page.FinalURL
	}
	report, err := o.ml.Score(ctx, target, page.Body)
	if err != nil {
		log.Warn("classifier signal unavailable", zap.Error(err))
		return nil
	}
	return report
}

func wifiSnapshot(req evidence.ScanRequest) (evidence.WifiNetworkSnapshot, error) {
	if req.TargetType != evidence.TargetWifiNetwork || req.Wifi != nil {
		if req.Wifi == nil {
			return evidence.WifiNetworkSnapshot{}, sharedErrors.ErrInvalidSnapshot
		}
		return *req.Wifi, nil
	}
	return checker.DecodeWifiSnapshot(req.RawInput)
}

func targetLabel(req evidence.ScanRequest) string {
	if req.TargetType == evidence.TargetWifiNetwork {
		if req.Wifi != nil {
			return req.Wifi.SSID
		}
		if snapshot, err := checker.DecodeWifiSnapshot(req.RawInput); err == nil {
			return snapshot.SSID
		}
	}
	return req.RawInput
}
