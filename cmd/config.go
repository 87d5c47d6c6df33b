package cmd

import (
	"strings"

	"github.com/khanhnv2901/seca-guard/internal/application"
	"github.com/khanhnv2901/seca-guard/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultHTTPTimeoutSeconds = 10
	defaultDNSTimeoutSeconds  = 5
	defaultMLTimeoutSeconds   = 10
	defaultScanTimeoutSeconds = 60
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Log     observability.LogConfig
	History HistoryConfig
	Scan    ScanRuntimeConfig
}

// HistoryConfig selects where finished scans are stored.
type HistoryConfig struct {
	Backend     string
	PostgresDSN string
}

// ScanRuntimeConfig consolidates flag-driven settings for scan commands.
type ScanRuntimeConfig struct {
	Concurrency     int
	RateLimit       int
	TimeoutSecs     int
	ScanTimeoutSecs int
	CaptureBody     bool
	UserAgent       string
	ProgressEnabled bool
	DNS             DNSConfig
	ML              MLConfig
}

// DNSConfig groups DNS-specific runtime options.
type DNSConfig struct {
	Nameservers []string
	Timeout     int
}

// MLConfig points at an optional external classifier.
type MLConfig struct {
	Command     string
	Args        []string
	TimeoutSecs int
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Log: observability.DefaultLogConfig(),
		History: HistoryConfig{
			Backend: application.HistoryJSON,
		},
		Scan: ScanRuntimeConfig{
			Concurrency:     4,
			RateLimit:       5,
			TimeoutSecs:     defaultHTTPTimeoutSeconds,
			ScanTimeoutSecs: defaultScanTimeoutSeconds,
			ProgressEnabled: true,
			DNS: DNSConfig{
				Nameservers: []string{},
				Timeout:     defaultDNSTimeoutSeconds,
			},
			ML: MLConfig{
				TimeoutSecs: defaultMLTimeoutSeconds,
			},
		},
	}
}

// applyConfigDefaults merges config file and SECA_GUARD_* environment values
// into the runtime config when the user did not explicitly set the
// corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()

	applyStringDefault(flags, "log-level", "log.level", func(v string) { cliConfig.Log.Level = v })
	applyStringDefault(flags, "log-format", "log.format", func(v string) { cliConfig.Log.Format = v })
	applyStringDefault(flags, "log-file", "log.file", func(v string) { cliConfig.Log.File = v })
	if viper.IsSet("log.max_size_mb") {
		cliConfig.Log.MaxSizeMB = viper.GetInt("log.max_size_mb")
	}
	if viper.IsSet("log.max_backups") {
		cliConfig.Log.MaxBackups = viper.GetInt("log.max_backups")
	}

	applyStringDefault(flags, "history", "history.backend", func(v string) { cliConfig.History.Backend = v })
	applyStringDefault(flags, "postgres-dsn", "history.postgres_dsn", func(v string) { cliConfig.History.PostgresDSN = v })

	if viper.IsSet("scan.timeout_secs") {
		applyIntDefault(flags, "timeout", viper.GetInt("scan.timeout_secs"), func(v int) { cliConfig.Scan.TimeoutSecs = v })
	}
	if viper.IsSet("scan.concurrency") {
		applyIntDefault(flags, "concurrency", viper.GetInt("scan.concurrency"), func(v int) { cliConfig.Scan.Concurrency = v })
	}
	if viper.IsSet("scan.rate_limit") {
		applyIntDefault(flags, "rate-limit", viper.GetInt("scan.rate_limit"), func(v int) { cliConfig.Scan.RateLimit = v })
	}
	if viper.IsSet("scan.session_timeout_secs") {
		cliConfig.Scan.ScanTimeoutSecs = viper.GetInt("scan.session_timeout_secs")
	}
	if viper.IsSet("scan.capture_body") {
		applyBoolDefault(flags, "capture-body", viper.GetBool("scan.capture_body"), func(v bool) { cliConfig.Scan.CaptureBody = v })
	}
	if viper.IsSet("scan.progress") {
		applyBoolDefault(flags, "progress", viper.GetBool("scan.progress"), func(v bool) { cliConfig.Scan.ProgressEnabled = v })
	}
	if viper.IsSet("scan.user_agent") {
		cliConfig.Scan.UserAgent = viper.GetString("scan.user_agent")
	}

	if viper.IsSet("dns.nameservers") {
		cliConfig.Scan.DNS.Nameservers = viper.GetStringSlice("dns.nameservers")
	}
	if viper.IsSet("dns.timeout_secs") {
		cliConfig.Scan.DNS.Timeout = viper.GetInt("dns.timeout_secs")
	}

	applyStringDefault(flags, "ml-command", "ml.command", func(v string) { cliConfig.Scan.ML.Command = v })
	if viper.IsSet("ml.args") {
		cliConfig.Scan.ML.Args = viper.GetStringSlice("ml.args")
	}
	if viper.IsSet("ml.timeout_secs") {
		cliConfig.Scan.ML.TimeoutSecs = viper.GetInt("ml.timeout_secs")
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

// applyStringDefault copies a non-empty viper key into the config unless the
// flag was given on the command line.
func applyStringDefault(flags *pflag.FlagSet, name, key string, setter func(string)) {
	if flags == nil || setter == nil || !viper.IsSet(key) {
		return
	}
	value := strings.TrimSpace(viper.GetString(key))
	if value == "" {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
