// Package cli implements the devflow command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/devflow/internal/app"
	"github.com/hyperjump/devflow/internal/config"
	"github.com/hyperjump/devflow/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/devflow/config.yaml"

var (
	configPath   string
	debugMode    bool
	serverURL    string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "devflow",
	Short: "Personal knowledge base with semantic retrieval",
	Long: `DevFlow ingests notes, files, bookmarks and web pages into a vector index and
answers questions from what it has indexed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_, err := ParseOutputFormat(outputFormat)
		return err
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", defaultConfigPath, "config file path")
	pf.BoolVar(&debugMode, "debug", false, "enable debug logging")
	pf.StringVar(&serverURL, "server", os.Getenv("DEVFLOW_SERVER"),
		"server URL; when empty the local index is opened directly")
	pf.StringVarP(&outputFormat, "output", "o", "text", "output format: text or json")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func format() OutputFormat {
	f, _ := ParseOutputFormat(outputFormat)
	return f
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence so that running from a project dir uses the project's config.
// A missing default config yields the built-in defaults. Returns the config and the path
// that was loaded (used when saving watch directories).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newLogger builds the process logger. Outside debug mode, commands other than serve only
// report warnings so that their output stays readable.
func newLogger(cfg *config.Config, quiet bool) (*zap.Logger, error) {
	debug := cfg.Debug || debugMode
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, err
	}
	if quiet && !debug {
		logger = logger.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}
	return logger, nil
}

// openComponents loads the config and opens the local index. The returned func releases it.
func openComponents(ctx context.Context) (*app.Components, func(), error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return c, func() {
		if err := c.Close(context.Background()); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
		_ = logger.Sync()
	}, nil
}
