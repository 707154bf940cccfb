// Package liveness implements the blink and head-movement challenge that
// gates face sample capture.
package liveness

import (
	"math"
	"slices"

	"github.com/ayusman/mukha/internal/detector"
)

// Liveness defaults.
const (
	// HeadMoveThreshold is the per-axis nose displacement in pixels that counts as a head move.
	HeadMoveThreshold = 25.0
	// RequiredBlinks is the number of blinks needed per sample.
	RequiredBlinks = 3
	// RequiredHeadMoves is the number of head moves needed per sample.
	RequiredHeadMoves = 2
	// HistoryLimit caps the EAR history; only the last few entries are ever inspected.
	HistoryLimit = 64

	// blinkWarmup and moveWarmup are the history lengths that must be
	// exceeded before blinks and head moves can be counted.
	blinkWarmup = 3
	moveWarmup  = 5
)

// Config holds the liveness challenge parameters.
type Config struct {
	EARThreshold      float64 `yaml:"ear_threshold"`
	HeadMoveThreshold float64 `yaml:"head_move_threshold"`
	RequiredBlinks    int     `yaml:"required_blinks"`
	RequiredHeadMoves int     `yaml:"required_head_moves"`
}

// DefaultConfig returns the standard challenge: three blinks and two head turns.
func DefaultConfig() Config {
	return Config{
		EARThreshold:      detector.EARThreshold,
		HeadMoveThreshold: HeadMoveThreshold,
		RequiredBlinks:    RequiredBlinks,
		RequiredHeadMoves: RequiredHeadMoves,
	}
}

// State is the accumulated challenge progress for the sample being captured.
type State struct {
	BlinkCount    int             `json:"blink_count"`
	HeadMoveCount int             `json:"head_move_count"`
	EARHistory    []float64       `json:"ear_history"`
	LastNose      *detector.Point `json:"last_nose,omitempty"`
}

// Events reports what a single transition detected.
type Events struct {
	Blink    bool
	HeadMove bool
}

// Satisfied reports whether the state meets the configured challenge.
func (s State) Satisfied(cfg Config) bool {
	return s.BlinkCount >= cfg.RequiredBlinks && s.HeadMoveCount >= cfg.RequiredHeadMoves
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.EARHistory = slices.Clone(s.EARHistory)
	if s.LastNose != nil {
		nose := *s.LastNose
		out.LastNose = &nose
	}
	return out
}

// Step applies one observed frame to the state and returns the new state.
// The input state is never modified.
func Step(cfg Config, s State, ear float64, nose detector.Point) (State, Events) {
	var ev Events
	next := s.Clone()

	next.EARHistory = append(next.EARHistory, ear)
	if len(next.EARHistory) > HistoryLimit {
		next.EARHistory = slices.Clone(next.EARHistory[len(next.EARHistory)-HistoryLimit:])
	}
	n := len(next.EARHistory)

	// Falling edge: open on the previous frame, closed on this one.
	if n > blinkWarmup && ear < cfg.EARThreshold && next.EARHistory[n-2] >= cfg.EARThreshold {
		next.BlinkCount++
		ev.Blink = true
	}

	if next.LastNose != nil && n > moveWarmup {
		dx := math.Abs(nose.X - next.LastNose.X)
		dy := math.Abs(nose.Y - next.LastNose.Y)
		if dx > cfg.HeadMoveThreshold || dy > cfg.HeadMoveThreshold {
			next.HeadMoveCount++
			ev.HeadMove = true
		}
	}

	next.LastNose = &detector.Point{X: nose.X, Y: nose.Y}
	return next, ev
}
