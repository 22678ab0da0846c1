// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rp2-ai/rp2-ai-helper/internal/config"
	"github.com/rp2-ai/rp2-ai-helper/internal/extension"
	"github.com/rp2-ai/rp2-ai-helper/internal/logging"
	"github.com/rp2-ai/rp2-ai-helper/internal/ollama"
	"github.com/rp2-ai/rp2-ai-helper/internal/panel"
	"github.com/rp2-ai/rp2-ai-helper/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app carries the global flags and the loaded configuration. The config
// is swapped on reload, so readers go through config().
type app struct {
	configPath string
	model      string
	url        string
	logLevel   string

	mu     sync.RWMutex
	cfg    *config.Config
	logger *zap.Logger
}

func (a *app) config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *app) setConfig(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

// setup loads the configuration and builds the logger before any command
// that needs them.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := a.applyFlags(cfg); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}

	a.setConfig(cfg)
	a.logger = logger
	return nil
}

// applyFlags lays command-line overrides over cfg and revalidates.
func (a *app) applyFlags(cfg *config.Config) error {
	if a.model != "" {
		cfg.Ollama.Model = a.model
	}
	if a.url != "" {
		cfg.Ollama.URL = a.url
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// reload installs a config re-read from disk. New panels pick it up;
// open panels keep the generator they were created with.
func (a *app) reload(cfg *config.Config, err error) {
	if err != nil {
		a.logger.Warn("Config reload failed, keeping previous settings", zap.Error(err))
		return
	}
	if err := a.applyFlags(cfg); err != nil {
		a.logger.Warn("Reloaded config rejected", zap.Error(err))
		return
	}
	a.setConfig(cfg)
	a.logger.Info("Config reloaded",
		zap.String("model", cfg.Ollama.Model),
		zap.String("url", cfg.Ollama.URL),
		zap.String("overlap", cfg.Panel.Overlap))
}

func (a *app) configFile() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ConfigPath()
}

// newClient builds an Ollama client from the current config.
func (a *app) newClient() *ollama.Client {
	cc := a.config().ClientConfig()
	cc.Logger = a.logger.Named("ollama")
	return ollama.NewClientWithConfig(cc)
}

// newExtension builds and activates the extension every panel surface
// opens its panels through.
func (a *app) newExtension() *extension.Extension {
	ext := extension.New(extension.Options{
		Generator: func() panel.Generator { return a.newClient() },
		Session: func() panel.SessionOptions {
			cfg := a.config()
			overlap, err := panel.ParseOverlapPolicy(cfg.Panel.Overlap)
			if err != nil {
				overlap = panel.OverlapReject
			}
			return panel.SessionOptions{
				Title:      cfg.Panel.Title,
				Controller: panel.ControllerOptions{Overlap: overlap},
			}
		},
		Logger: a.logger.Named("panel"),
	})
	ext.Activate()
	return ext
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "rp2-ai-helper",
		Short: "Ask a local Ollama model about your RP2040 code",
		Long: `rp2-ai-helper opens an assistant panel backed by a local Ollama model.

With no subcommand it opens the panel in the terminal. Use "serve" for a
browser panel or "stdio" to embed the panel in an editor.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		RunE: a.runPanel,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.rp2-ai-helper/config.toml)")
	flags.StringVarP(&a.model, "model", "m", "", "Ollama model name")
	flags.StringVar(&a.url, "url", "", "Ollama base URL")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newPanelCmd(a),
		newServeCmd(a),
		newStdioCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newStatusCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError(err.Error()))
		return 1
	}
	return 0
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// skipSetup is used by commands that must work without a valid config.
func skipSetup(cmd *cobra.Command, args []string) error {
	return nil
}
