package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mukha/internal/capture"
)

// Watch loop defaults.
const (
	// IdleFPS is the frame rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the frame rate after motion was seen.
	ActiveFPS = 15
	// IdleTimeout is how long without motion before returning to idle.
	IdleTimeout = 2 * time.Second
	// Cooldown is the minimum time between two watch-triggered attempts.
	Cooldown = 10 * time.Second
)

// WatchConfig tunes the watch loop.
type WatchConfig struct {
	IdleFPS         int
	ActiveFPS       int
	IdleTimeout     time.Duration
	MotionThreshold float64
	Cooldown        time.Duration
}

func (c WatchConfig) withDefaults() WatchConfig {
	if c.IdleFPS <= 0 {
		c.IdleFPS = IdleFPS
	}
	if c.ActiveFPS <= 0 {
		c.ActiveFPS = ActiveFPS
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = IdleTimeout
	}
	if c.MotionThreshold <= 0 {
		c.MotionThreshold = capture.DefaultMotionThreshold
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	return c
}

// AttemptHandler receives the result of each watch-triggered attempt.
type AttemptHandler func(AuthResult, error)

// Watch runs until ctx is cancelled. The camera is polled at IdleFPS; motion
// switches to ActiveFPS and starts an authentication attempt, at most once
// per cooldown. After IdleTimeout without motion the loop returns to idle.
// Frames are skipped while another capture holds the camera.
func (a *App) Watch(ctx context.Context, onAttempt AttemptHandler) error {
	cfg := a.config.Watch

	release, err := a.acquireCamera()
	if err != nil {
		return err
	}
	defer release()

	motion := capture.NewMotionDetector(cfg.MotionThreshold)
	defer motion.Close()

	camera := a.config.Camera
	camera.SetFPS(cfg.IdleFPS)

	activeMode := false
	lastMotion := time.Time{}
	lastAttempt := time.Time{}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.IdleFPS))
	defer ticker.Stop()

	setMode := func(active bool) {
		activeMode = active
		fps := cfg.IdleFPS
		if active {
			fps = cfg.ActiveFPS
		}
		camera.SetFPS(fps)
		ticker.Reset(time.Second / time.Duration(fps))
		a.log.Debug("watch mode", zap.Bool("active", active), zap.Int("fps", fps))
	}

	a.log.Info("watch started")
	for {
		select {
		case <-ctx.Done():
			a.log.Info("watch stopped")
			return nil
		case <-ticker.C:
		}

		moved, ok := a.pollMotion(motion)
		if !ok {
			continue
		}

		now := time.Now()
		if moved {
			lastMotion = now
			if !activeMode {
				setMode(true)
			}
		} else if activeMode && now.Sub(lastMotion) > cfg.IdleTimeout {
			setMode(false)
			continue
		}

		if !activeMode || (!lastAttempt.IsZero() && now.Sub(lastAttempt) < cfg.Cooldown) {
			continue
		}

		if n, err := a.config.Store.Users().Count(); err != nil || n == 0 {
			continue
		}

		lastAttempt = now
		res, err := a.Authenticate(ctx)
		if errors.Is(err, ErrSessionActive) {
			continue
		}
		if err != nil && ctx.Err() == nil {
			a.log.Warn("watch attempt failed", zap.Error(err))
		}
		if onAttempt != nil {
			onAttempt(res, err)
		}

		// The attempt moved the baseline on.
		motion.Reset()
		lastAttempt = time.Now()
		setMode(false)
	}
}

// pollMotion reads one frame unless a capture is running. ok is false when
// no frame was examined.
func (a *App) pollMotion(motion *capture.MotionDetector) (moved, ok bool) {
	if !a.session.TryLock() {
		return false, false
	}
	defer a.session.Unlock()

	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		a.log.Debug("watch frame read failed", zap.Error(err))
		return false, false
	}
	defer frame.Close()

	moved, changed := motion.Detect(frame)
	if moved {
		a.log.Debug("watch motion", zap.Float64("changed_percent", changed))
	}
	return moved, true
}
