package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/app"
	"github.com/ayusman/mukha/internal/config"
	"github.com/ayusman/mukha/internal/server"
	"github.com/ayusman/mukha/internal/store"
)

func newServeCmd(e *env) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		Long: `Start the local dashboard. It lists users and attempts, registers and
authenticates through the camera, and shows the annotated capture live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = e.cfg.Server.Addr
			}

			a, closeApp, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if watch {
				go runWatch(ctx, a, e.log, nil)
			}

			return newServer(e, a).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "also authenticate on camera motion")
	return cmd
}

func newServer(e *env, a *app.App) *server.Server {
	staticDir := e.cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		e.log.Info("serving static files", zap.String("dir", staticDir))
	}

	return server.New(server.Config{
		StaticDir: staticDir,
		Store:     a.Store(),
		Flows:     a,
		Preview:   a.Preview(),
		Logger:    e.log.Named("server"),
	})
}

// runWatch runs the motion-gated loop until ctx is done. onMatch is called
// with the name of every recognized user.
func runWatch(ctx context.Context, a *app.App, log *zap.Logger, onMatch func(string)) error {
	err := a.Watch(ctx, func(res app.AuthResult, err error) {
		if err != nil {
			return
		}
		log.Info("watch attempt", zap.String("outcome", res.Outcome), zap.String("user", res.MatchedUser))
		if res.Outcome == store.OutcomeMatched && onMatch != nil {
			onMatch(res.MatchedUser)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("watch stopped", zap.Error(err))
	}
	return err
}

// findWebDir searches for the dashboard files in common locations: "web",
// "../web", "../../web" and ~/.mukha/web. It returns the first existing
// directory or an empty string.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.Dir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
