package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	sharedErrors "github.com/khanhnv2901/seca-guard/internal/shared/errors"
	"golang.org/x/time/rate"
)

// Evaluator is the interface every domain evaluator satisfies
type Evaluator interface {
	// Domain returns the evidence domain of the produced reports (e.g. "proxy", "text")
	Domain() string

	// Evaluate scores a single raw input
	Evaluate(ctx context.Context, input string) (evidence.RiskReport, error)
}

// FailOpen is implemented by evaluators whose errors degrade to a partial
// report instead of failing the scan.
type FailOpen interface {
	FailOpen() bool
}

// EvaluationError reports a failure inside one evaluator
type EvaluationError struct {
	Domain string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s evaluator: %v", e.Domain, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Is makes every EvaluationError match ErrEvaluation
func (e *EvaluationError) Is(target error) bool {
	return target == sharedErrors.ErrEvaluation
}

// NewEvaluationError wraps err unless it already is an EvaluationError
func NewEvaluationError(domain string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	return &EvaluationError{Domain: domain, Err: err}
}

// ProxyEvaluator scores proxy links and JSON client configurations
type ProxyEvaluator struct{}

func (ProxyEvaluator) Domain() string { return evidence.DomainProxy }

func (ProxyEvaluator) Evaluate(ctx context.Context, input string) (evidence.RiskReport, error) {
	if err := ctx.Err(); err != nil {
		return evidence.RiskReport{}, NewEvaluationError(evidence.DomainProxy, err)
	}
	return EvaluateProxyConfig(input), nil
}

// URLEvaluator scores the lexical shape of a URL
type URLEvaluator struct{}

func (URLEvaluator) Domain() string { return evidence.DomainURL }

func (URLEvaluator) Evaluate(ctx context.Context, input string) (evidence.RiskReport, error) {
	if err := ctx.Err(); err != nil {
		return evidence.RiskReport{}, NewEvaluationError(evidence.DomainURL, err)
	}
	return EvaluateURL(input), nil
}

// TextEvaluator scores a message for social-engineering cues
type TextEvaluator struct{}

func (TextEvaluator) Domain() string { return evidence.DomainText }

func (TextEvaluator) Evaluate(ctx context.Context, input string) (evidence.RiskReport, error) {
	if err := ctx.Err(); err != nil {
		return evidence.RiskReport{}, NewEvaluationError(evidence.DomainText, err)
	}
	return AnalyzeText(input).Report(), nil
}

// WifiEvaluator scores a JSON encoded WifiNetworkSnapshot
type WifiEvaluator struct {
	Now func() time.Time
}

func (WifiEvaluator) Domain() string { return evidence.DomainWifi }

func (e WifiEvaluator) Evaluate(ctx context.Context, input string) (evidence.RiskReport, error) {
	if err := ctx.Err(); err != nil {
		return evidence.RiskReport{}, NewEvaluationError(evidence.DomainWifi, err)
	}
	snapshot, err := DecodeWifiSnapshot(input)
	if err != nil {
		return evidence.RiskReport{}, NewEvaluationError(evidence.DomainWifi, err)
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	assessment, err := EvaluateWifi(snapshot, now().UTC())
	if err != nil {
		return evidence.RiskReport{}, NewEvaluationError(evidence.DomainWifi, err)
	}
	return assessment.Report(), nil
}

// DecodeWifiSnapshot reads a snapshot from its JSON form
func DecodeWifiSnapshot(input string) (evidence.WifiNetworkSnapshot, error) {
	var snapshot evidence.WifiNetworkSnapshot
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(strings.TrimSpace(input), &snapshot); err != nil {
		return snapshot, fmt.Errorf("%w: %v", sharedErrors.ErrInvalidSnapshot, err)
	}
	return snapshot, nil
}

// NetworkEvaluator fetches a URL and scores its network posture. Fetch
// failures still produce a partial report next to the error.
type NetworkEvaluator struct {
	Fetcher Fetcher
}

func (NetworkEvaluator) Domain() string { return evidence.DomainNetwork }

func (NetworkEvaluator) FailOpen() bool { return true }

func (e NetworkEvaluator) Evaluate(ctx context.Context, input string) (evidence.RiskReport, error) {
	_, report, err := e.Inspect(ctx, input)
	return report, err
}

// Inspect is Evaluate that also returns the fetched metadata
func (e NetworkEvaluator) Inspect(ctx context.Context, rawURL string) (FetchedMeta, evidence.RiskReport, error) {
	target := NormalizeHTTPTarget(rawURL)
	if target == "" {
		target = rawURL
	}
	if e.Fetcher == nil {
		meta := FetchedMeta{URL: target}
		return meta, EvaluateNetworkPosture(meta), NewEvaluationError(evidence.DomainNetwork, sharedErrors.ErrNoResponse)
	}

	meta, err := e.Fetcher.Fetch(ctx, target)
	if err != nil {
		meta = FetchedMeta{URL: target}
		return meta, EvaluateNetworkPosture(meta), NewEvaluationError(evidence.DomainNetwork, err)
	}
	return meta, EvaluateNetworkPosture(meta), nil
}

// BatchItem is the outcome of one input of a batch
type BatchItem[T any] struct {
	Index    int
	Input    string
	Value    T
	Err      error
	Duration time.Duration
}

// ObserveFunc is called once per finished batch item, from the worker goroutine
type ObserveFunc[T any] func(item BatchItem[T])

// Runner orchestrates batch execution with concurrency and rate limiting
type Runner struct {
	Concurrency int           // Maximum number of concurrent tasks
	RateLimit   int           // Tasks started per second; <= 0 means unlimited
	Timeout     time.Duration // Timeout for each task; <= 0 means none
}

// RunBatch executes task for every input using a worker pool. Results keep
// the order of inputs. A panicking task is reported as an EvaluationError.
func RunBatch[T any](ctx context.Context, r *Runner, inputs []string, domain string, task func(context.Context, string) (T, error), observe ObserveFunc[T]) []BatchItem[T] {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
	}

	// Worker pool
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]BatchItem[T], len(inputs))

	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()

			// Acquire semaphore
			sem <- struct{}{}
			defer func() { <-sem }()

			item := BatchItem[T]{Index: i, Input: input}
			start := time.Now()

			if err := limiter.Wait(ctx); err != nil {
				item.Err = NewEvaluationError(domain, err)
			} else {
				taskCtx, cancel := ctx, context.CancelFunc(func() {})
				if r.Timeout > 0 {
					taskCtx, cancel = context.WithTimeout(ctx, r.Timeout)
				}
				item.Value, item.Err = runTask(taskCtx, domain, input, task)
				cancel()
			}
			item.Duration = time.Since(start)

			if observe != nil {
				observe(item)
			}
			results[i] = item
		}(i, input)
	}

	wg.Wait()
	return results
}

// Evaluate runs one evaluator over a batch of inputs
func (r *Runner) Evaluate(ctx context.Context, inputs []string, ev Evaluator, observe ObserveFunc[evidence.RiskReport]) []BatchItem[evidence.RiskReport] {
	return RunBatch(ctx, r, inputs, ev.Domain(), ev.Evaluate, observe)
}

func runTask[T any](ctx context.Context, domain, input string, task func(context.Context, string) (T, error)) (value T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = NewEvaluationError(domain, fmt.Errorf("panic: %v", rec))
		}
	}()
	return task(ctx, input)
}
