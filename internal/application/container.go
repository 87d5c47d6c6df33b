package application

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	scanapp "github.com/khanhnv2901/seca-guard/internal/application/scan"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
	"github.com/khanhnv2901/seca-guard/internal/infrastructure/fetch"
	"github.com/khanhnv2901/seca-guard/internal/infrastructure/ml"
	"github.com/khanhnv2901/seca-guard/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/seca-guard/internal/infrastructure/persistence/postgres"
	"github.com/khanhnv2901/seca-guard/internal/scoring"
	"go.uber.org/zap"
)

// History backends
const (
	HistoryJSON     = "json"
	HistoryPostgres = "postgres"
	HistoryNone     = "none"
)

// Config selects the collaborators wired into the engine
type Config struct {
	DataDir string

	HistoryBackend string
	PostgresDSN    string

	FetchTimeout time.Duration
	RateLimit    int
	CaptureBody  bool
	UserAgent    string
	NameServers  []string
	DNSTimeout   time.Duration

	// MLCommand enables the external classifier when non-empty
	MLCommand string
	MLArgs    []string
	MLTimeout time.Duration

	ScanTimeout time.Duration
	Logger      *zap.Logger
}

// Container holds all application services and repositories
// This is a simple dependency injection container
type Container struct {
	History      scan.HistoryRepository
	Fetcher      *fetch.HTTPFetcher
	ML           scoring.MLScorer
	Aggregator   *scoring.Aggregator
	Orchestrator *scanapp.Orchestrator

	closers []func()
}

// NewContainer creates a new application service container
func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{}

	history, err := c.openHistory(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.History = history

	var resolver *fetch.Resolver
	if cfg.DNSTimeout > 0 || len(cfg.NameServers) > 0 {
		resolver = fetch.NewResolver(cfg.DNSTimeout, cfg.NameServers)
	}
	c.Fetcher = fetch.NewHTTPFetcher(fetch.Options{
		Timeout:     cfg.FetchTimeout,
		RateLimit:   cfg.RateLimit,
		CaptureBody: cfg.CaptureBody || cfg.MLCommand != "",
		UserAgent:   cfg.UserAgent,
		Resolver:    resolver,
		Logger:      logger.Named("fetch"),
	})
	c.closers = append(c.closers, c.Fetcher.Close)

	c.ML = ml.Disabled{}
	if cfg.MLCommand != "" {
		c.ML = ml.NewExternal(ml.ExternalConfig{
			Command: cfg.MLCommand,
			Args:    cfg.MLArgs,
			Timeout: cfg.MLTimeout,
		})
	}

	c.Aggregator = scoring.NewAggregator(scoring.DefaultPolicy(), logger.Named("scoring"))
	c.Orchestrator = scanapp.NewOrchestrator(scanapp.Options{
		Fetcher:    c.Fetcher,
		ML:         c.ML,
		History:    c.History,
		Aggregator: c.Aggregator,
		Logger:     logger.Named("scan"),
		Timeout:    cfg.ScanTimeout,
	})
	return c, nil
}

func (c *Container) openHistory(ctx context.Context, cfg Config, logger *zap.Logger) (scan.HistoryRepository, error) {
	switch cfg.HistoryBackend {
	case "", HistoryJSON:
		repo, err := json.NewHistoryRepository(filepath.Join(cfg.DataDir, "history"))
		if err != nil {
			return nil, fmt.Errorf("failed to create history repository: %w", err)
		}
		return repo, nil
	case HistoryPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres history requires a DSN")
		}
		store, pool, err := postgres.Open(ctx, cfg.PostgresDSN, logger.Named("history"))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres history: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		return store, nil
	case HistoryNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown history backend %q (want %s, %s or %s)", cfg.HistoryBackend, HistoryJSON, HistoryPostgres, HistoryNone)
}

// Check reports whether the history backend is reachable
func (c *Container) Check(ctx context.Context) error {
	if c.History == nil {
		return nil
	}
	_, err := c.History.List(ctx, 1)
	return err
}

// Close releases pooled connections
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
