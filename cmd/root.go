package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/glossa/internal/config"
	"github.com/conneroisu/glossa/internal/logging"
	"github.com/conneroisu/glossa/internal/orchestrator"
)

// httpTimeout bounds every http(s) include and dictionary fetch.
const httpTimeout = 30 * time.Second

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "glossa",
	Short: "Assemble and localize XML content documents",
	Long: `Glossa assembles XML content documents from their includes, localizes
them against per-locale dictionaries with fallback chains, and keeps the
generated outputs current as sources and dictionaries change.

Quick Start:
  glossa resolve site/index.xml           Print the assembled document
  glossa localize site/index.xml --all    Generate every locale
  glossa dict site                        Summarize dictionaries
  glossa watch site/index.xml             Regenerate on change`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it until
// it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .glossa.yml, can also use GLOSSA_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig selects the configuration file.
//
// Priority (highest to lowest):
//  1. --config flag
//  2. GLOSSA_CONFIG_FILE environment variable
//  3. .glossa.yml in the current directory
//
// Every key can also be set through a GLOSSA_ variable, with dots replaced
// by underscores (GLOSSA_CONTENT_ROOT, GLOSSA_LOG_LEVEL).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("GLOSSA_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".glossa")
	}

	viper.SetEnvPrefix("GLOSSA")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// environment is what every pipeline command works with.
type environment struct {
	config       *config.Config
	logger       logging.Logger
	orchestrator *orchestrator.Orchestrator
}

func newEnvironment() (*environment, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newEnvironmentFor(cfg)
}

// absolutize makes the configured directories absolute, so dependency
// paths recorded during generation compare equal to watcher events.
func absolutize(cfg *config.Config) error {
	for _, p := range []*string{&cfg.Content.Root, &cfg.Content.Output, &cfg.Content.Assets, &cfg.Template} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return err
		}
		*p = abs
	}
	return nil
}

func newEnvironmentFor(cfg *config.Config) (*environment, error) {
	if err := absolutize(cfg); err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	o, err := orchestrator.New(cfg, orchestrator.Options{
		HTTPClient: &http.Client{Timeout: httpTimeout},
	}, logger)
	if err != nil {
		return nil, err
	}
	return &environment{config: cfg, logger: logger, orchestrator: o}, nil
}

func newLogger(cfg config.LogConfig) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	switch cfg.Format {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("unsupported log format: %s (supported: text, json)", cfg.Format)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    os.Stderr,
		Component: "glossa",
	}), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
