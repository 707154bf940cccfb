package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/app"
	"github.com/ayusman/mukha/internal/store"
	"github.com/ayusman/mukha/internal/tray"
)

func newTrayCmd(e *env) *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "tray",
		Short: "Run in the system tray with the dashboard and motion watching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			t := tray.New()
			if last, err := a.Store().Settings().Get(store.SettingLastUser); err == nil {
				t.SetLastUser(last)
			}

			addr := e.cfg.Server.Addr
			srv := newServer(e, a)
			go func() {
				if err := srv.ListenAndServe(ctx, addr); err != nil {
					e.log.Error("dashboard server stopped", zap.Error(err))
				}
			}()

			w := &watcher{app: a, log: e.log, onMatch: t.SetLastUser}
			if !noWatch {
				w.start(ctx)
			}

			t.OnAuthenticate(func() {
				res, err := a.Authenticate(ctx)
				if err != nil {
					e.log.Warn("tray authentication failed", zap.Error(err))
					return
				}
				if res.Matched {
					t.SetLastUser(res.MatchedUser)
				}
			})
			t.OnToggle(func(enabled bool) {
				if enabled {
					w.start(ctx)
				} else {
					w.stop()
				}
			})
			t.OnDashboard(func() {
				if err := openBrowser(dashboardURL(addr)); err != nil {
					e.log.Warn("cannot open browser", zap.Error(err))
				}
			})
			t.OnQuit(cancel)

			go func() {
				<-ctx.Done()
				t.Quit()
			}()

			t.Run()
			w.stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "start with motion watching paused")
	return cmd
}

// watcher starts and stops the watch loop from the tray toggle.
type watcher struct {
	app     *app.App
	log     *zap.Logger
	onMatch func(string)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (w *watcher) start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	go func() {
		defer close(done)
		runWatch(ctx, w.app, w.log, w.onMatch)
	}()
}

func (w *watcher) stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// dashboardURL turns a listen address into a browsable URL.
func dashboardURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	default:
		return errors.New("unsupported platform " + runtime.GOOS)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	go cmd.Wait()
	return nil
}
