package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kidoz/display-priority-manager/internal/config"
	"github.com/kidoz/display-priority-manager/internal/logging"
	"github.com/kidoz/display-priority-manager/internal/telemetry"
)

// Version is overridden at build time with -ldflags "-X ...cmd.Version=...".
var Version = "2.0.0"

var (
	cfgFile      string
	flagMode     string
	flagVerbose  bool
	flagDebug    bool
	flagForce    bool
	flagDryRun   bool
	flagRetries  int
	flagWait     int
	flagLogFile  string
	flagSyslog   bool
	flagVersion  bool
	cfg          *config.Config
	log          *zap.Logger
	logCleanup   func()
	otelShutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "display-priority-manager",
	Short: "Keep the laptop panel primary on a docked Dell Precision 7780",
	Long: `Display Priority Manager restores the internal panel as the primary
display after docking a Dell Precision 7780 running on its discrete GPU.

It checks the hardware, reads the output priorities reported by
kscreen-doctor, and when the internal panel has lost priority 1 it
reassigns priorities in a single kscreen-doctor call, retrying a
bounded number of times.

Modes:
  auto     - Automatically select best method (default)
  kscreen  - Use kscreen-doctor to set priorities
  config   - Monitor and modify KScreen config files (not implemented)
  library  - Use LD_PRELOAD library injection (not implemented)
  check    - Check current configuration only
  daemon   - Run as daemon monitoring for changes (not implemented)`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that handle their own config
		if flagVersion || cmd.Name() == "version" || cmd.Name() == "migrate-config" {
			return nil
		}

		var err error
		cfg, err = loadConfig(cmd.Flags())
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: err}
		}

		log, logCleanup = logging.New(cfg.Log)

		otelShutdown, err = telemetry.Init(context.Background(), &cfg.Telemetry, Version, cfg.Log.Verbose || cfg.Log.Debug)
		if err != nil {
			return &ExitError{Code: ExitConfigError, Err: fmt.Errorf("failed to init telemetry: %w", err)}
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdown()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagVersion {
			printVersion(cmd)
			return nil
		}
		return runFix(cmd)
	},
}

// Execute runs the root command and exits with the matching status.
func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when RunE fails.
	_ = shutdown()
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Err)
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(ExitFailure)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file path (default: first of the standard search paths)")
	pf.StringVarP(&flagMode, "mode", "m", string(config.ModeAuto), "fix mode: auto, kscreen, config, library, check, daemon")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVarP(&flagDebug, "debug", "d", false, "enable debug output (implies --verbose)")
	pf.BoolVarP(&flagForce, "force", "f", false, "force fix even if hardware doesn't match")
	pf.BoolVarP(&flagDryRun, "dry-run", "n", false, "show what would be done without making changes")
	pf.IntVarP(&flagRetries, "retries", "r", 3, "maximum retry attempts")
	pf.IntVarP(&flagWait, "wait", "w", 5, "wait time between retries in seconds")
	pf.StringVarP(&flagLogFile, "log", "l", config.DefaultLogFile, "log file path")
	pf.BoolVarP(&flagSyslog, "syslog", "s", false, "use syslog for logging")
	rootCmd.Flags().BoolVarP(&flagVersion, "version", "V", false, "show version information")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ExitError{Code: ExitConfigError, Err: err}
	})
}

// loadConfig reads the config file and env, then applies every flag the
// user set explicitly.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.FindConfigPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(flags, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func applyFlags(flags *pflag.FlagSet, c *config.Config) error {
	if flags.Changed("mode") {
		mode, err := config.ParseMode(flagMode)
		if err != nil {
			return err
		}
		c.Fix.Mode = mode
	}
	if flags.Changed("verbose") {
		c.Log.Verbose = flagVerbose
	}
	if flags.Changed("debug") {
		c.Log.Debug = flagDebug
		if flagDebug {
			c.Log.Verbose = true
		}
	}
	if flags.Changed("force") {
		c.Fix.Force = flagForce
	}
	if flags.Changed("dry-run") {
		c.Fix.DryRun = flagDryRun
	}
	if flags.Changed("retries") {
		c.Fix.MaxRetries = flagRetries
	}
	if flags.Changed("wait") {
		c.Fix.RetryDelay = flagWait
	}
	if flags.Changed("log") {
		c.Log.File = flagLogFile
	}
	if flags.Changed("syslog") {
		c.Log.Syslog = flagSyslog
	}
	return nil
}

func shutdown() error {
	var err error
	if otelShutdown != nil {
		err = otelShutdown(context.Background())
		otelShutdown = nil
	}
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	return err
}

func GetConfig() *config.Config {
	return cfg
}

func GetLogger() *zap.Logger {
	return log
}
