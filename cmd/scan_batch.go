package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/checker"
	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var batchTargetType string

var scanBatchCmd = &cobra.Command{
	Use:   "batch --file <inputs>",
	Short: "Scan many inputs, one per line",
	Long: `Scan every non-blank line of a file (use - for stdin) as its own session.
Lines starting with # are skipped. Wi-Fi snapshots are read as one JSON object
per line.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetType, err := evidence.ParseTargetType(batchTargetType)
		if err != nil {
			return err
		}
		if scanOpts.InputFile == "" {
			return errors.New("--file is required")
		}
		data, err := readInputSource(scanOpts.InputFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		inputs := splitInputLines(data)
		if len(inputs) == 0 {
			return errors.New("no inputs found")
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return runBatchScan(ctx, cmd, targetType, inputs)
	},
}

// batchEntry is one line of batch output
type batchEntry struct {
	Input     string       `json:"input"`
	SessionID string       `json:"session_id,omitempty"`
	Status    string       `json:"status"`
	Score     float64      `json:"score"`
	Error     string       `json:"error,omitempty"`
	Result    *scan.Result `json:"result,omitempty"`
}

func runBatchScan(ctx context.Context, cmd *cobra.Command, targetType evidence.ScanTargetType, inputs []string) error {
	appCtx := getAppContext(cmd)
	services, err := appCtx.Container(ctx)
	if err != nil {
		return err
	}
	runtimeCfg := appCtx.Config.Scan

	// Every input shares the same optional context
	template, err := scanRequestTemplate(cmd, targetType)
	if err != nil {
		return err
	}

	var progress *progressPrinter
	if runtimeCfg.ProgressEnabled {
		progress = newProgressPrinter(cmd.ErrOrStderr(), len(inputs), string(targetType))
		progress.Start()
	}

	runner := &checker.Runner{
		Concurrency: runtimeCfg.Concurrency,
		Timeout:     time.Duration(runtimeCfg.ScanTimeoutSecs) * time.Second,
	}
	task := func(ctx context.Context, input string) (*scan.Result, error) {
		req := template
		req.RawInput = input
		req.ObservedAt = time.Now().UTC()
		result, _, err := services.Orchestrator.Run(ctx, req)
		return result, err
	}
	observe := func(item checker.BatchItem[*scan.Result]) {
		if progress == nil {
			return
		}
		var status evidence.Status
		if item.Err == nil && item.Value != nil {
			status = item.Value.Verdict.Status()
		}
		progress.Increment(status, item.Duration.Seconds())
	}

	items := checker.RunBatch(ctx, runner, inputs, string(targetType), task, observe)
	if progress != nil {
		progress.Stop()
	}

	entries := make([]batchEntry, 0, len(items))
	var worst *scan.Result
	failed := 0
	for _, item := range items {
		entry := batchEntry{Input: item.Input}
		if item.Err != nil || item.Value == nil {
			failed++
			entry.Status = "FAILED"
			if item.Err != nil {
				entry.Error = item.Err.Error()
			}
			appCtx.Logger.Warn("batch input failed", zap.Int("index", item.Index), zap.Error(item.Err))
		} else {
			entry.SessionID = item.Value.SessionID
			entry.Status = string(item.Value.Verdict.Status())
			entry.Score = item.Value.Verdict.Score()
			if worst == nil || item.Value.Verdict.Score() > worst.Verdict.Score() {
				worst = item.Value
			}
			if scanOpts.Output == outputJSON {
				entry.Result = item.Value
			}
		}
		entries = append(entries, entry)
	}

	if err := writeBatch(cmd.OutOrStdout(), entries, scanOpts.Output); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}
	if failed == len(items) {
		return fmt.Errorf("all %d inputs failed", failed)
	}
	return checkFailOn(worst)
}

func writeBatch(w io.Writer, entries []batchEntry, format string) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tSCORE\tINPUT")
	for i, e := range entries {
		score := fmt.Sprintf("%.2f", e.Score)
		input := displayTarget(e.Input)
		if e.Error != "" {
			score = "-"
			input += "  (" + strings.TrimSpace(e.Error) + ")"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, formatStatusWithColor(e.Status), score, input)
	}
	return tw.Flush()
}

func init() {
	scanBatchCmd.Flags().StringVarP(&batchTargetType, "type", "t", string(evidence.TargetURL), "input type: url, proxy, wifi or text")
	scanBatchCmd.Flags().StringVarP(&scanOpts.InputFile, "file", "f", "", "file with one input per line (- for stdin)")
	scanBatchCmd.Flags().IntVar(&cliConfig.Scan.Concurrency, "concurrency", cliConfig.Scan.Concurrency, "sessions run in parallel")
}
