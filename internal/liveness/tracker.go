package liveness

import (
	"math"
	"slices"

	"github.com/ayusman/mukha/internal/detector"
)

// Phase is the tracker's position in the capture state machine.
type Phase int

const (
	// PhaseIdle means no capture is in progress.
	PhaseIdle Phase = iota
	// PhaseTracking means frames are being accumulated for the next sample.
	PhaseTracking
	// PhaseConfirmed is entered for the frame that completes a sample.
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTracking:
		return "tracking"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Sample is a face encoding captured from a subject confirmed to be live.
type Sample struct {
	Encoding   []float64 `json:"encoding"`
	Glasses    bool      `json:"has_glasses"`
	FacialHair bool      `json:"has_facial_hair"`
}

// Update is the outcome of observing one frame.
type Update struct {
	Events
	Phase         Phase
	BlinkCount    int
	HeadMoveCount int
	// Sample is set when the frame confirmed liveness.
	Sample *Sample
	// Skipped is set when the frame carried no usable eye geometry.
	Skipped bool
}

// Tracker runs the liveness state machine for one capture session.
// It is not safe for concurrent use.
type Tracker struct {
	cfg   Config
	state State
	phase Phase
}

// NewTracker creates an idle tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Begin moves an idle tracker to tracking.
func (t *Tracker) Begin() {
	if t.phase == PhaseIdle {
		t.phase = PhaseTracking
	}
}

// Observe consumes one positioned face. When the challenge is satisfied the
// face becomes a Sample, the state is reset and the tracker resumes tracking
// for the next sample.
func (t *Tracker) Observe(face *detector.Face) Update {
	t.Begin()
	if t.phase == PhaseConfirmed {
		t.phase = PhaseTracking
	}

	if face == nil {
		return t.update(Events{}, nil, true)
	}

	ear := face.Landmarks.AverageEAR()
	if math.IsInf(ear, 0) || math.IsNaN(ear) {
		return t.update(Events{}, nil, true)
	}

	var ev Events
	t.state, ev = Step(t.cfg, t.state, ear, face.Landmarks.Nose())

	if !t.state.Satisfied(t.cfg) {
		return t.update(ev, nil, false)
	}

	appearance := detector.Classify(&face.Landmarks)
	sample := &Sample{
		Encoding:   slices.Clone(face.Encoding),
		Glasses:    appearance.Glasses,
		FacialHair: appearance.FacialHair,
	}

	u := t.update(ev, sample, false)
	u.Phase = PhaseConfirmed
	t.phase = PhaseConfirmed
	t.state = State{}
	return u
}

// Reset discards accumulated progress and returns the tracker to idle.
func (t *Tracker) Reset() {
	t.state = State{}
	t.phase = PhaseIdle
}

// State returns a copy of the current challenge state.
func (t *Tracker) State() State {
	return t.state.Clone()
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	return t.phase
}

// Config returns the tracker's challenge parameters.
func (t *Tracker) Config() Config {
	return t.cfg
}

func (t *Tracker) update(ev Events, sample *Sample, skipped bool) Update {
	return Update{
		Events:        ev,
		Phase:         t.phase,
		BlinkCount:    t.state.BlinkCount,
		HeadMoveCount: t.state.HeadMoveCount,
		Sample:        sample,
		Skipped:       skipped,
	}
}
