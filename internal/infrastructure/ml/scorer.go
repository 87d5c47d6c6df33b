// Package ml provides implementations of the on-device classifier
// collaborator consumed by the risk aggregator.
package ml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/scoring"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidReport is returned when a classifier answers outside [0,1]
var ErrInvalidReport = errors.New("invalid classifier report")

// Disabled never produces a signal
type Disabled struct{}

var _ scoring.MLScorer = Disabled{}

func (Disabled) Score(ctx context.Context, _, _ string) (*evidence.MlReport, error) {
	return nil, ctx.Err()
}

// Static always returns the same report. Useful for replaying a known
// classifier output and in tests.
type Static struct {
	Report evidence.MlReport
}

func (s Static) Score(ctx context.Context, _, _ string) (*evidence.MlReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate(s.Report); err != nil {
		return nil, err
	}
	report := s.Report
	return &report, nil
}

// ExternalConfig describes a classifier process
type ExternalConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	Timeout time.Duration
}

// External runs a classifier process per request. The URL is passed as the
// last argument, the page HTML on stdin, and the process prints an MlReport
// as JSON on stdout.
type External struct {
	command string
	args    []string
	env     map[string]string
	timeout time.Duration
}

var _ scoring.MLScorer = (*External)(nil)

// NewExternal creates an External scorer
func NewExternal(cfg ExternalConfig) *External {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &External{
		command: cfg.Command,
		args:    cfg.Args,
		env:     cfg.Env,
		timeout: timeout,
	}
}

func (e *External) Score(ctx context.Context, url, html string) (*evidence.MlReport, error) {
	if e.command == "" {
		return nil, errors.New("classifier command is empty")
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append([]string{}, e.args...)
	args = append(args, url)

	cmd := exec.CommandContext(runCtx, e.command, args...)
	cmd.Stdin = strings.NewReader(html)
	cmd.Env = os.Environ()
	for k, v := range e.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("classifier failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("classifier failed: %w", err)
	}

	var report evidence.MlReport
	if err := json.Unmarshal(output, &report); err != nil {
		return nil, fmt.Errorf("invalid classifier output: %w", err)
	}
	if err := validate(report); err != nil {
		return nil, err
	}
	return &report, nil
}

func validate(r evidence.MlReport) error {
	if r.Score < 0 || r.Score > 1 || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: score=%v confidence=%v", ErrInvalidReport, r.Score, r.Confidence)
	}
	return nil
}
