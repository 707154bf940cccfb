package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/detector"
	"github.com/ayusman/mukha/internal/liveness"
	"github.com/ayusman/mukha/internal/voice"
)

// Capture defaults.
const (
	// DefaultMaxDuration is the time budget for one capture.
	DefaultMaxDuration = 30 * time.Second
	// readRetryDelay is how long to wait after a failed frame read.
	readRetryDelay = 50 * time.Millisecond
)

// ErrCaptureTimeout is returned when the required samples were not
// confirmed within the time budget.
var ErrCaptureTimeout = errors.New("capture timed out")

// Outcome is how a capture ended.
type Outcome int

const (
	Completed Outcome = iota
	TimedOut
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the outcome of a capture. Samples holds what was confirmed
// before the capture ended; only a Completed result may be used.
type Result struct {
	Outcome  Outcome
	Samples  []liveness.Sample
	Required int
	Elapsed  time.Duration
	cause    error
}

// OK reports whether the capture completed.
func (r Result) OK() bool {
	return r.Outcome == Completed
}

// Err returns nil for a completed capture, an error wrapping
// ErrCaptureTimeout for a timeout, and the context error for a cancellation.
func (r Result) Err() error {
	switch r.Outcome {
	case Completed:
		return nil
	case TimedOut:
		return fmt.Errorf("%w: %d of %d samples after %s",
			ErrCaptureTimeout, len(r.Samples), r.Required, r.Elapsed.Round(time.Millisecond))
	default:
		if r.cause != nil {
			return fmt.Errorf("capture cancelled: %w", r.cause)
		}
		return context.Canceled
	}
}

// FrameHandler receives every processed frame with its status. The frame is
// closed after the handler returns; a nil frame means the read failed.
type FrameHandler func(frame *gocv.Mat, st Status)

// SessionConfig configures a capture session.
type SessionConfig struct {
	Liveness liveness.Config
	Gate     Gate
	Speaker  voice.Speaker
	Logger   *zap.Logger
	OnFrame  FrameHandler
}

// Session runs liveness-gated sample capture against one camera and
// detector. Frames are processed strictly one at a time.
type Session struct {
	camera   Camera
	detector detector.Detector
	cfg      SessionConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewSession creates a capture session. Zero-valued liveness and gate
// settings fall back to the defaults.
func NewSession(camera Camera, det detector.Detector, cfg SessionConfig) *Session {
	if cfg.Liveness == (liveness.Config{}) {
		cfg.Liveness = liveness.DefaultConfig()
	}
	if cfg.Gate == (Gate{}) {
		cfg.Gate = DefaultGate()
	}
	if cfg.Speaker == nil {
		cfg.Speaker = voice.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		camera:   camera,
		detector: det,
		cfg:      cfg,
		logger:   logger.Named("capture"),
		now:      time.Now,
	}
}

// Capture collects required liveness-confirmed samples, giving up after
// maxDuration (DefaultMaxDuration when zero) or when ctx is cancelled.
func (s *Session) Capture(ctx context.Context, required int, maxDuration time.Duration) Result {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	start := s.now()
	res := Result{Required: required}

	budget, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()

	tracker := liveness.NewTracker(s.cfg.Liveness)
	tracker.Begin()

	lastPrompt := Prompt(-1)
	s.logger.Info("capture started", zap.Int("required", required), zap.Duration("budget", maxDuration))

	for {
		if len(res.Samples) >= required {
			res.Outcome = Completed
			break
		}
		if err := budget.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.Outcome = Cancelled
				res.cause = ctxErr
			} else {
				res.Outcome = TimedOut
			}
			break
		}

		res.Elapsed = s.now().Sub(start)
		st := s.step(budget, tracker, &res, max(maxDuration-res.Elapsed, 0))
		if st.Prompt != lastPrompt {
			s.cfg.Speaker.Say(Phrase(st.Prompt))
			lastPrompt = st.Prompt
		}
	}

	res.Elapsed = s.now().Sub(start)
	s.logger.Info("capture finished",
		zap.Stringer("outcome", res.Outcome),
		zap.Int("samples", len(res.Samples)),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

// step processes one frame: read, detect, gate, track, publish.
func (s *Session) step(ctx context.Context, tracker *liveness.Tracker, res *Result, remaining time.Duration) Status {
	cfg := tracker.Config()
	st := Status{
		Elapsed:           res.Elapsed,
		Remaining:         remaining,
		Position:          PositionNoFace,
		RequiredBlinks:    cfg.RequiredBlinks,
		RequiredHeadMoves: cfg.RequiredHeadMoves,
		Samples:           len(res.Samples),
		Required:          res.Required,
	}
	fillCounts := func() {
		ls := tracker.State()
		st.Blinks = ls.BlinkCount
		st.HeadMoves = ls.HeadMoveCount
	}

	frame, err := s.camera.ReadFrame()
	if err != nil {
		s.logger.Debug("frame read failed", zap.Error(err))
		fillCounts()
		st.Prompt = PromptFor(st)
		st.Instruction = Instruction(st)
		s.publish(nil, st)

		t := time.NewTimer(readRetryDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		return st
	}
	defer frame.Close()

	face, err := s.detector.Detect(frame)
	if err != nil {
		s.logger.Warn("face detection failed", zap.Error(err))
		face = nil
	}

	st.FacePresent = face != nil
	if face != nil {
		st.Box = face.Box
	}
	st.Position = s.cfg.Gate.Evaluate(face, frame.Cols(), frame.Rows())

	if st.Position == PositionOK {
		u := tracker.Observe(face)
		if u.Sample != nil {
			res.Samples = append(res.Samples, *u.Sample)
			st.Samples = len(res.Samples)
			s.logger.Info("sample captured", zap.Int("sample", st.Samples), zap.Int("required", res.Required))
			if st.Samples < res.Required {
				s.cfg.Speaker.Say(fmt.Sprintf("Sample %d of %d captured", st.Samples, res.Required))
			}
		}
	}

	fillCounts()
	st.Prompt = PromptFor(st)
	st.Instruction = Instruction(st)
	s.publish(frame, st)
	return st
}

func (s *Session) publish(frame *gocv.Mat, st Status) {
	if s.cfg.OnFrame == nil {
		return
	}
	s.cfg.OnFrame(frame, st)
}
