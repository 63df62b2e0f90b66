// Package cli provides the command-line interface for scanwrap.
// It implements the Cobra-based commands for one-off scans, parsing
// existing report files, stored reports, schedules and the API server.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/scanwrap/internal/config"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/metrics"
	"github.com/anstrom/scanwrap/internal/scanning"
)

const envPrefix = "SCANWRAP"

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scanwrap",
	Short: "Run nmap and work with its reports",
	Long: `scanwrap runs nmap with all three report formats enabled, parses the
results into per-host records and removes the report files afterwards.

Reports can be printed, stored in PostgreSQL, served over HTTP or produced
on a cron schedule.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
	if err := viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind log-level flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	initLogging()
}

// getConfigFilePath returns the config file in effect.
func getConfigFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return "config.yaml"
}

// loadConfig loads the config file and applies SCANWRAP_* overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies environment and flag values bound in viper onto cfg.
func applyOverrides(cfg *config.Config) {
	if v := viper.GetString("scanner.executable"); v != "" {
		cfg.Scanner.Executable = v
	}
	if v := viper.GetString("scanner.temp_dir"); v != "" {
		cfg.Scanner.TempDir = v
	}
	if v := viper.GetInt("scanner.max_concurrent"); v > 0 {
		cfg.Scanner.MaxConcurrent = v
	}
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("database.password"); v != "" {
		cfg.Database.Password = v
	}
	if v := viper.GetInt("api.port"); v > 0 {
		cfg.API.Port = v
	}
	// Supplying keys always switches authentication on.
	if v := viper.GetStringSlice("api.api_keys"); len(v) > 0 {
		cfg.API.APIKeys = v
		cfg.API.AuthEnabled = true
	}
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logConfig := cfg.LogConfig()
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	logging.SetDefault(logger)

	if verbose {
		logging.Debug("Structured logging initialized", "level", logConfig.Level, "format", logConfig.Format)
	}
}

// newSessionFactory builds sessions from the scanner section of cfg.
func newSessionFactory(cfg *config.Config, recorder metrics.Recorder) func(targets, args []string) (*scanning.Session, error) {
	return func(targets, args []string) (*scanning.Session, error) {
		extra := make([]string, 0, len(cfg.Scanner.DefaultArgs)+len(args))
		extra = append(extra, cfg.Scanner.DefaultArgs...)
		extra = append(extra, args...)

		return scanning.NewSession(targets,
			scanning.WithExecutable(cfg.Scanner.Executable),
			scanning.WithArgs(extra...),
			scanning.WithNameGenerator(scanning.TempNameGenerator(cfg.Scanner.TempDir)),
			scanning.WithRecorder(recorder),
			scanning.WithLogger(logging.Default()))
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}
