package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/config"
	"github.com/ayusman/mukha/internal/detector"
	"github.com/ayusman/mukha/internal/plugin"
	"github.com/ayusman/mukha/internal/store"
	"github.com/ayusman/mukha/internal/voice"
)

// FromConfig builds an App with the real camera, face service, speaker and
// plugins described by cfg. When the face service is unavailable a mock
// detector that never sees a face is used, so captures time out instead of
// matching.
func FromConfig(cfg *config.Config, st *store.Store, log *zap.Logger) (*App, error) {
	if st == nil {
		return nil, fmt.Errorf("app: store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var det detector.Detector
	if d, err := detector.Open(cfg.Detector, log.Named("detector")); err == nil {
		det = d
		log.Info("using face service", zap.String("encoder", cfg.Detector.Encoder))
	} else {
		log.Warn("face service not available, using mock detector", zap.Error(err))
		det = detector.NewMockDetector()
	}

	plugins := plugin.NewManager(cfg.Plugins.Dir)
	if err := plugins.Discover(); err != nil {
		log.Warn("plugin discovery failed", zap.String("dir", cfg.Plugins.Dir), zap.Error(err))
	}
	log.Debug("plugins discovered", zap.Int("count", len(plugins.List())))

	return New(Config{
		Store:    st,
		Camera:   capture.NewCamera(cfg.Camera),
		Detector: det,
		Speaker:  voice.New(cfg.Voice, log.Named("voice")),
		Hooks:    plugin.NewDispatcher(plugins, plugin.NewExecutor(cfg.Plugins.TimeoutMs), log.Named("plugin")),
		Logger:   log,

		Liveness:            cfg.Liveness,
		Gate:                cfg.Capture.Gate,
		Threshold:           cfg.Match.BaseThreshold,
		RegistrationSamples: cfg.Capture.RegistrationSamples,
		AuthSamples:         cfg.Capture.AuthSamples,
		MaxDuration:         time.Duration(cfg.Capture.MaxDurationSec) * time.Second,
		Watch: WatchConfig{
			IdleFPS:         cfg.Watch.IdleFPS,
			ActiveFPS:       cfg.Watch.ActiveFPS,
			IdleTimeout:     time.Duration(cfg.Watch.IdleTimeoutMs) * time.Millisecond,
			MotionThreshold: cfg.Watch.MotionThreshold,
			Cooldown:        time.Duration(cfg.Watch.CooldownSec) * time.Second,
		},
	}), nil
}
