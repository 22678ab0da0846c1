// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rp2-ai/rp2-ai-helper/internal/config"
	"github.com/rp2-ai/rp2-ai-helper/internal/webview"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant panel to a browser",
		Long: `Serve the panel page and its websocket. Each browser tab is one panel.

With --watch, edits to the config file apply to panels opened afterwards.
The listen address is read once at start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			cfg := a.config()
			if addr == "" {
				addr = cfg.Server.Addr
			}

			ext := a.newExtension()
			defer ext.Deactivate()

			srv := webview.New(ext, webview.Options{
				Addr:              addr,
				Title:             cfg.Panel.Title,
				MessagesPerSecond: cfg.Server.MessagesPerSecond,
				Burst:             cfg.Server.Burst,
				Logger:            a.logger.Named("webview"),
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx)
			})

			if watch {
				w, err := a.newWatcher()
				if err != nil {
					a.logger.Warn("Config watching disabled", zap.Error(err))
				} else {
					a.logger.Info("Watching config", zap.String("path", w.Path()))
					g.Go(func() error {
						return w.Run(gctx, a.reload)
					})
				}
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Panel available at http://%s/\n", addr)
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the config file when it changes")
	return cmd
}

func (a *app) newWatcher() (*config.Watcher, error) {
	path, err := a.configFile()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	return config.NewWatcher(path, config.DefaultDebounce)
}
