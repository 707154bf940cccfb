package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/app"
	"github.com/ayusman/mukha/internal/config"
	"github.com/ayusman/mukha/internal/logging"
	"github.com/ayusman/mukha/internal/store"
)

// env is the state shared by all commands once the root pre-run is done.
type env struct {
	configPath string
	envFile    string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "mukha",
		Short: "Liveness-gated face authentication",
		Long: `Mukha enrolls faces from the webcam and authenticates them after a
liveness check (blinks and head movement). It can run once from the command
line, watch the camera for motion, or serve a local dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init()
		},
	}

	root.PersistentFlags().StringVar(&e.configPath, "config", "", "config file (default ~/.mukha/config.yaml)")
	root.PersistentFlags().StringVar(&e.envFile, "env-file", ".env", "dotenv file with MUKHA_* variables")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newRegisterCmd(e),
		newAuthCmd(e),
		newUsersCmd(e),
		newAttemptsCmd(e),
		newServeCmd(e),
		newWatchCmd(e),
		newTrayCmd(e),
		newVersionCmd(),
	)
	return root
}

// init loads .env, the config file and sets up logging.
func (e *env) init() error {
	// .env file is optional, don't fail if not found
	if err := config.LoadDotEnv(e.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if e.logLevel != "" {
		cfg.Log.Level = e.logLevel
	}

	log, err := logging.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	e.cfg = cfg
	e.log = log
	return nil
}

func (e *env) openStore() (*store.Store, error) {
	st, err := store.New(e.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", e.cfg.Store.Path, err)
	}
	return st, nil
}

// openApp opens the store and builds the application. The returned func
// releases both.
func (e *env) openApp() (*app.App, func(), error) {
	st, err := e.openStore()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.FromConfig(e.cfg, st, e.log)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			e.log.Warn("closing app", zap.Error(err))
		}
		st.Close()
		_ = e.log.Sync()
	}, nil
}
