package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-guard/internal/application"
	"github.com/khanhnv2901/seca-guard/internal/observability"
	"github.com/khanhnv2901/seca-guard/internal/shared/security"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "SECA_GUARD"

var cfgFile string
var dataDir string

// AppContext carries what every command needs. Services are built on first
// use so commands like version never touch the history backend.
type AppContext struct {
	Logger  *zap.Logger
	DataDir string
	Config  *CLIConfig

	mu       sync.Mutex
	Services *application.Container
}

var globalAppContext *AppContext

func storeAppContext(_ *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
}

func getAppContext(_ *cobra.Command) *AppContext {
	if globalAppContext == nil {
		globalAppContext = &AppContext{Logger: zap.NewNop(), Config: cliConfig}
	}
	return globalAppContext
}

// Container returns the application services, creating them on first call
func (a *AppContext) Container(ctx context.Context) (*application.Container, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Services != nil {
		return a.Services, nil
	}

	cfg := a.Config
	services, err := application.NewContainer(ctx, application.Config{
		DataDir:        a.DataDir,
		HistoryBackend: cfg.History.Backend,
		PostgresDSN:    cfg.History.PostgresDSN,
		FetchTimeout:   time.Duration(cfg.Scan.TimeoutSecs) * time.Second,
		RateLimit:      cfg.Scan.RateLimit,
		CaptureBody:    cfg.Scan.CaptureBody,
		UserAgent:      cfg.Scan.UserAgent,
		NameServers:    cfg.Scan.DNS.Nameservers,
		DNSTimeout:     time.Duration(cfg.Scan.DNS.Timeout) * time.Second,
		MLCommand:      cfg.Scan.ML.Command,
		MLArgs:         cfg.Scan.ML.Args,
		MLTimeout:      time.Duration(cfg.Scan.ML.TimeoutSecs) * time.Second,
		ScanTimeout:    time.Duration(cfg.Scan.ScanTimeoutSecs) * time.Second,
		Logger:         a.Logger,
	})
	if err != nil {
		return nil, err
	}
	a.Services = services
	return services, nil
}

// Close releases the services and flushes the logger
func (a *AppContext) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Services != nil {
		a.Services.Close()
		a.Services = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

var rootCmd = &cobra.Command{
	Use:           "seca-guard",
	Short:         "Threat assessment for URLs, proxy configs, Wi-Fi networks and messages",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		applyConfigDefaults(cmd)

		logger, err := observability.NewLogger(cliConfig.Log, nil)
		if err != nil {
			return err
		}

		dir := dataDir
		if !cmd.Flags().Changed("data-dir") && viper.IsSet("data_dir") {
			dir = viper.GetString("data_dir")
		}
		if dir == "" {
			dir, err = getDataDir()
		} else {
			dir, err = security.ExpandPath(dir)
		}
		if err != nil {
			return fmt.Errorf("failed to resolve data directory: %w", err)
		}

		storeAppContext(cmd, &AppContext{
			Logger:  logger,
			DataDir: dir,
			Config:  cliConfig,
		})
		logger.Debug("configuration loaded",
			zap.String("data_dir", dir),
			zap.String("history", cliConfig.History.Backend),
			zap.String("config_file", viper.ConfigFileUsed()),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		getAppContext(cmd).Close()
	},
}

func initConfig() error {
	if cfgFile != "" {
		path, err := security.ExpandPath(cfgFile)
		if err != nil {
			return err
		}
		viper.SetConfigFile(path)
	} else {
		home, err := homedir.Dir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".seca-guard")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine; a broken or missing explicit one is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// PersistentPostRun is skipped when a command fails
		getAppContext(rootCmd).Close()
		fmt.Fprintln(os.Stderr, colorError("Error:"), err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seca-guard.yaml)")
	flags.StringVar(&dataDir, "data-dir", "", "directory for scan history (default is the per-user data directory)")
	flags.StringVar(&cliConfig.Log.Level, "log-level", cliConfig.Log.Level, "log level: debug, info, warn, error")
	flags.StringVar(&cliConfig.Log.Format, "log-format", cliConfig.Log.Format, "log format: console or json")
	flags.StringVar(&cliConfig.Log.File, "log-file", "", "also write JSON logs to this file, rotated by size")
	flags.StringVar(&cliConfig.History.Backend, "history", cliConfig.History.Backend, "history backend: json, postgres or none")
	flags.StringVar(&cliConfig.History.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string for --history=postgres")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
