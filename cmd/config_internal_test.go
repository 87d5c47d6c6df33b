package cmd

import (
	"testing"

	"github.com/khanhnv2901/seca-guard/internal/application"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyIntDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("timeout", 0, "")

	var applied int
	applyIntDefault(flags, "timeout", 15, func(v int) {
		applied = v
	})
	assert.Equal(t, 15, applied)

	// When flag already set, setter should not run.
	require.NoError(t, flags.Set("timeout", "7"))
	applied = 0
	applyIntDefault(flags, "timeout", 20, func(v int) {
		applied = v
	})
	assert.Zero(t, applied, "setter should not run when flag overridden")
}

func TestApplyBoolDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("progress", false, "")

	applied := false
	applyBoolDefault(flags, "progress", true, func(v bool) {
		applied = v
	})
	assert.True(t, applied)

	require.NoError(t, flags.Set("progress", "false"))
	applied = true
	applyBoolDefault(flags, "progress", false, func(v bool) {
		applied = v
	})
	assert.True(t, applied, "setter should not change value when flag already set")
}

func TestApplyStringDefault(t *testing.T) {
	t.Cleanup(viper.Reset)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("history", "", "")

	var applied string
	applyStringDefault(flags, "history", "history.backend", func(v string) { applied = v })
	assert.Empty(t, applied, "unset keys are ignored")

	viper.Set("history.backend", "   ")
	applyStringDefault(flags, "history", "history.backend", func(v string) { applied = v })
	assert.Empty(t, applied, "blank values are ignored")

	viper.Set("history.backend", " postgres ")
	applyStringDefault(flags, "history", "history.backend", func(v string) { applied = v })
	assert.Equal(t, "postgres", applied)

	applied = ""
	require.NoError(t, flags.Set("history", "none"))
	applyStringDefault(flags, "history", "history.backend", func(v string) { applied = v })
	assert.Empty(t, applied, "explicit flags win over config")
}

func TestNewCLIConfigDefaults(t *testing.T) {
	cfg := newCLIConfig()

	assert.Equal(t, application.HistoryJSON, cfg.History.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Scan.Concurrency)
	assert.Equal(t, defaultHTTPTimeoutSeconds, cfg.Scan.TimeoutSecs)
	assert.Equal(t, defaultScanTimeoutSeconds, cfg.Scan.ScanTimeoutSecs)
	assert.True(t, cfg.Scan.ProgressEnabled)
	assert.Empty(t, cfg.Scan.ML.Command)
	assert.NotNil(t, cfg.Scan.DNS.Nameservers)
}

func TestApplyConfigDefaults(t *testing.T) {
	saved := *cliConfig
	t.Cleanup(func() {
		*cliConfig = saved
		viper.Reset()
	})

	viper.Set("log.level", "debug")
	viper.Set("log.max_size_mb", 50)
	viper.Set("history.backend", application.HistoryNone)
	viper.Set("scan.timeout_secs", 3)
	viper.Set("scan.session_timeout_secs", 30)
	viper.Set("dns.nameservers", []string{"1.1.1.1:53"})
	viper.Set("ml.command", "/usr/local/bin/classify")
	viper.Set("ml.args", []string{"--json"})

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("timeout", 10, "")
	require.NoError(t, cmd.Flags().Set("timeout", "8"))

	applyConfigDefaults(cmd)

	assert.Equal(t, "debug", cliConfig.Log.Level)
	assert.Equal(t, 50, cliConfig.Log.MaxSizeMB)
	assert.Equal(t, application.HistoryNone, cliConfig.History.Backend)
	assert.Equal(t, saved.Scan.TimeoutSecs, cliConfig.Scan.TimeoutSecs, "changed flag keeps its value")
	assert.Equal(t, 30, cliConfig.Scan.ScanTimeoutSecs)
	assert.Equal(t, []string{"1.1.1.1:53"}, cliConfig.Scan.DNS.Nameservers)
	assert.Equal(t, "/usr/local/bin/classify", cliConfig.Scan.ML.Command)
	assert.Equal(t, []string{"--json"}, cliConfig.Scan.ML.Args)
}
