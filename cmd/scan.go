package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/checker"
	"github.com/khanhnv2901/seca-guard/internal/domain/evidence"
	"github.com/khanhnv2901/seca-guard/internal/domain/scan"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// scanOptions holds the flags shared by every scan subcommand
type scanOptions struct {
	Output            string
	FailOn            string
	InputFile         string
	WifiFile          string
	PrivacyEventsFile string
}

var scanOpts scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Assess a URL, proxy config, Wi-Fi network or message",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		switch scanOpts.Output {
		case outputText, outputJSON:
		default:
			return fmt.Errorf("unknown output format %q (want %s or %s)", scanOpts.Output, outputText, outputJSON)
		}
		_, err := parseFailOn(scanOpts.FailOn)
		return err
	},
}

var scanURLCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Check a URL for phishing markers and network posture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleScan(cmd, evidence.TargetURL, args)
	},
}

var scanProxyCmd = &cobra.Command{
	Use:   "proxy [link]",
	Short: "Check a proxy share link or client JSON config",
	Long: `Check a proxy configuration. The input is a share link (vless://, vmess://,
trojan://, ss://, ...) given as an argument, or a link or JSON client config
read with --file (use - for stdin).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleScan(cmd, evidence.TargetProxyConfig, args)
	},
}

var scanWifiCmd = &cobra.Command{
	Use:   "wifi [snapshot-json]",
	Short: "Assess a Wi-Fi network snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleScan(cmd, evidence.TargetWifiNetwork, args)
	},
}

var scanTextCmd = &cobra.Command{
	Use:   "text [message]",
	Short: "Check a message for social-engineering patterns",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingleScan(cmd, evidence.TargetTextMessage, args)
	},
}

func runSingleScan(cmd *cobra.Command, targetType evidence.ScanTargetType, args []string) error {
	input, err := resolveScanInput(cmd, args)
	if err != nil {
		return err
	}
	req, err := buildScanRequest(cmd, targetType, input)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	appCtx := getAppContext(cmd)
	services, err := appCtx.Container(ctx)
	if err != nil {
		return err
	}

	_, events, err := services.Orchestrator.Start(ctx, req)
	if err != nil {
		return err
	}

	showProgress := appCtx.Config.Scan.ProgressEnabled && scanOpts.Output == outputText
	var last scan.State
	for st := range events {
		last = st
		if showProgress && st.Kind == scan.KindProgress {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %-14s %s\n", colorInfo("→"), st.Stage, st.Message)
		}
	}

	switch last.Kind {
	case scan.KindSuccess:
		appCtx.Logger.Info("scan finished",
			zap.String("session_id", last.SessionID),
			zap.String("status", string(last.Result.Verdict.Status())),
		)
		if err := writeResult(cmd.OutOrStdout(), last.Result, scanOpts.Output); err != nil {
			return err
		}
		return checkFailOn(last.Result)
	case scan.KindFailure:
		return fmt.Errorf("scan failed: %w", last.Err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scan interrupted: %w", err)
	}
	return errors.New("scan ended without a result")
}

// resolveScanInput takes the positional argument or the --file contents
func resolveScanInput(cmd *cobra.Command, args []string) (string, error) {
	if scanOpts.InputFile != "" {
		if len(args) > 0 {
			return "", errors.New("give the input as an argument or with --file, not both")
		}
		data, err := readInputSource(scanOpts.InputFile, cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", errors.New("an input argument or --file is required")
	}
	return args[0], nil
}

// buildScanRequest assembles and validates the request for one input
func buildScanRequest(cmd *cobra.Command, targetType evidence.ScanTargetType, input string) (evidence.ScanRequest, error) {
	req, err := scanRequestTemplate(cmd, targetType)
	if err != nil {
		return req, err
	}
	req.RawInput = strings.TrimSpace(input)
	return req, req.Validate()
}

// scanRequestTemplate loads the optional Wi-Fi context snapshot and privacy
// events shared by every input of a command.
func scanRequestTemplate(cmd *cobra.Command, targetType evidence.ScanTargetType) (evidence.ScanRequest, error) {
	req := evidence.ScanRequest{
		TargetType: targetType,
		ObservedAt: time.Now().UTC(),
	}

	if scanOpts.WifiFile != "" {
		data, err := readInputSource(scanOpts.WifiFile, cmd.InOrStdin())
		if err != nil {
			return req, fmt.Errorf("wifi snapshot: %w", err)
		}
		snapshot, err := checker.DecodeWifiSnapshot(string(data))
		if err != nil {
			return req, err
		}
		req.Wifi = &snapshot
	}

	if scanOpts.PrivacyEventsFile != "" {
		data, err := readInputSource(scanOpts.PrivacyEventsFile, cmd.InOrStdin())
		if err != nil {
			return req, fmt.Errorf("privacy events: %w", err)
		}
		if err := json.Unmarshal(data, &req.PrivacyEvents); err != nil {
			return req, fmt.Errorf("privacy events: %w", err)
		}
	}
	return req, nil
}

func parseFailOn(value string) (evidence.Status, error) {
	switch status := evidence.Status(strings.ToUpper(strings.TrimSpace(value))); status {
	case "":
		return "", nil
	case evidence.StatusClean, evidence.StatusSuspicious, evidence.StatusMalicious:
		return status, nil
	}
	return "", &UnknownStatusError{Value: value}
}

func statusRank(s evidence.Status) int {
	switch s {
	case evidence.StatusMalicious:
		return 2
	case evidence.StatusSuspicious:
		return 1
	}
	return 0
}

func checkFailOn(result *scan.Result) error {
	threshold, _ := parseFailOn(scanOpts.FailOn)
	if threshold == "" || result == nil {
		return nil
	}
	status := result.Verdict.Status()
	if statusRank(status) >= statusRank(threshold) {
		return &VerdictThresholdError{Target: result.Target, Status: status, Threshold: threshold}
	}
	return nil
}

// signalContext cancels on SIGINT/SIGTERM so running sessions stop cleanly
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func writeResult(w io.Writer, result *scan.Result, format string) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	renderResult(w, result)
	return nil
}

func init() {
	flags := scanCmd.PersistentFlags()
	flags.StringVar(&scanOpts.Output, "output", outputText, "output format: text or json")
	flags.StringVar(&scanOpts.FailOn, "fail-on", "", "exit with status 2 when the verdict is at least this status")
	flags.StringVar(&scanOpts.WifiFile, "wifi-file", "", "JSON snapshot of the Wi-Fi network the scan runs on")
	flags.StringVar(&scanOpts.PrivacyEventsFile, "privacy-events", "", "JSON array of privacy sensor events to weigh in")
	flags.IntVar(&cliConfig.Scan.TimeoutSecs, "timeout", cliConfig.Scan.TimeoutSecs, "network fetch timeout in seconds")
	flags.IntVar(&cliConfig.Scan.RateLimit, "rate-limit", cliConfig.Scan.RateLimit, "network fetches per second (0 = unlimited)")
	flags.BoolVar(&cliConfig.Scan.CaptureBody, "capture-body", cliConfig.Scan.CaptureBody, "read page bodies for content checks")
	flags.BoolVar(&cliConfig.Scan.ProgressEnabled, "progress", cliConfig.Scan.ProgressEnabled, "show stage progress on stderr")
	flags.StringVar(&cliConfig.Scan.ML.Command, "ml-command", "", "external classifier invoked for URL scans")

	for _, c := range []*cobra.Command{scanProxyCmd, scanWifiCmd, scanTextCmd} {
		c.Flags().StringVarP(&scanOpts.InputFile, "file", "f", "", "read the input from a file (- for stdin)")
	}

	scanCmd.AddCommand(scanURLCmd, scanProxyCmd, scanWifiCmd, scanTextCmd, scanBatchCmd)
}
