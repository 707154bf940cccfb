// Package app ties capture, matching, storage, voice and hooks together into
// the registration, authentication and watch flows.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/detector"
	"github.com/ayusman/mukha/internal/liveness"
	"github.com/ayusman/mukha/internal/match"
	"github.com/ayusman/mukha/internal/plugin"
	"github.com/ayusman/mukha/internal/store"
	"github.com/ayusman/mukha/internal/voice"
)

// Flow defaults.
const (
	RegistrationSamples = 5
	AuthSamples         = 3
)

// Flow errors.
var (
	// ErrSessionActive is returned when a capture is requested while another
	// one is running.
	ErrSessionActive = errors.New("a capture session is already active")
	// ErrCaptureFailed is returned when registration could not confirm the
	// required samples in time.
	ErrCaptureFailed = errors.New("face capture failed")
	// ErrInvalidName is returned for an empty user name.
	ErrInvalidName = errors.New("invalid user name")
)

// DuplicateIdentityError is returned when a face being registered already
// belongs to another user.
type DuplicateIdentityError struct {
	User       string
	Similarity float64
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("face already registered as %s (similarity %.3f)", e.User, e.Similarity)
}

// Config holds the collaborators and settings of an App. Store, Camera and
// Detector are required.
type Config struct {
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	Speaker  voice.Speaker
	Hooks    *plugin.Dispatcher
	Logger   *zap.Logger

	Liveness            liveness.Config
	Gate                capture.Gate
	Threshold           float64
	RegistrationSamples int
	AuthSamples         int
	MaxDuration         time.Duration
	Watch               WatchConfig
}

// App is the face authentication application. It owns the camera and
// detector for the life of the process and runs at most one capture at a
// time.
type App struct {
	config  Config
	matcher *match.Matcher
	speaker voice.Speaker
	preview *Preview
	log     *zap.Logger

	// session is held for the whole of a register or authenticate flow.
	session sync.Mutex

	camMu     sync.Mutex
	camRefs   int
	camOpened bool
}

// New creates an App, filling unset settings with defaults.
func New(config Config) *App {
	if config.Threshold <= 0 {
		config.Threshold = match.BaseThreshold
	}
	if config.RegistrationSamples <= 0 {
		config.RegistrationSamples = RegistrationSamples
	}
	if config.AuthSamples <= 0 {
		config.AuthSamples = AuthSamples
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = capture.DefaultMaxDuration
	}
	config.Watch = config.Watch.withDefaults()

	speaker := config.Speaker
	if speaker == nil {
		speaker = voice.Nop{}
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &App{
		config:  config,
		matcher: match.New(config.Threshold),
		speaker: speaker,
		preview: NewPreview(),
		log:     log,
	}
}

// Store returns the profile store.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Preview returns the live capture preview.
func (a *App) Preview() *Preview {
	return a.preview
}

// Matcher returns the similarity matcher.
func (a *App) Matcher() *match.Matcher {
	return a.matcher
}

// Busy reports whether a capture flow is running.
func (a *App) Busy() bool {
	if a.session.TryLock() {
		a.session.Unlock()
		return false
	}
	return true
}

// Close releases the camera, detector and speaker.
func (a *App) Close() error {
	var errs []error

	a.camMu.Lock()
	if a.camOpened {
		errs = append(errs, a.config.Camera.Close())
		a.camOpened = false
	}
	a.camRefs = 0
	a.camMu.Unlock()

	if a.config.Detector != nil {
		errs = append(errs, a.config.Detector.Close())
	}
	errs = append(errs, a.speaker.Close())

	return errors.Join(errs...)
}

// acquireCamera opens the camera if needed. The camera is closed again when
// the last holder releases it, unless it was already open.
func (a *App) acquireCamera() (func(), error) {
	a.camMu.Lock()
	defer a.camMu.Unlock()

	if a.camRefs == 0 && !a.config.Camera.IsOpen() {
		if err := a.config.Camera.Open(); err != nil {
			return nil, fmt.Errorf("open camera: %w", err)
		}
		a.camOpened = true
	}
	a.camRefs++

	var once sync.Once
	return func() {
		once.Do(func() {
			a.camMu.Lock()
			defer a.camMu.Unlock()
			a.camRefs--
			if a.camRefs == 0 && a.camOpened {
				if err := a.config.Camera.Close(); err != nil {
					a.log.Warn("closing camera", zap.Error(err))
				}
				a.camOpened = false
			}
		})
	}, nil
}

// runCapture captures required samples. The caller holds the session lock.
func (a *App) runCapture(ctx context.Context, kind string, required int) (capture.Result, error) {
	release, err := a.acquireCamera()
	if err != nil {
		return capture.Result{}, err
	}
	defer release()

	a.preview.begin(kind)
	defer a.preview.end()

	s := capture.NewSession(a.config.Camera, a.config.Detector, capture.SessionConfig{
		Liveness: a.config.Liveness,
		Gate:     a.config.Gate,
		Speaker:  a.speaker,
		Logger:   a.log,
		OnFrame:  a.onFrame,
	})
	return s.Capture(ctx, required, a.config.MaxDuration), nil
}

// onFrame annotates and publishes a processed frame.
func (a *App) onFrame(frame *gocv.Mat, st capture.Status) {
	var jpeg []byte
	if frame != nil && a.preview.wantsFrames() {
		capture.DrawOverlay(frame, st)
		b, err := capture.EncodeJPEG(frame)
		if err != nil {
			a.log.Debug("preview encode failed", zap.Error(err))
		} else {
			jpeg = b
		}
	}
	a.preview.publish(jpeg, st)
}

// profiles converts stored users into matcher profiles, in enrollment order.
func profiles(users []*store.User) []*match.Profile {
	out := make([]*match.Profile, len(users))
	for i, u := range users {
		out[i] = &match.Profile{
			Name:          u.Name,
			Embeddings:    u.Embeddings,
			HasGlasses:    u.HasGlasses,
			HasFacialHair: u.HasFacialHair,
		}
	}
	return out
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}
