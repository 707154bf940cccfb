package capture

import (
	"image"
	"math"

	"github.com/ayusman/mukha/internal/detector"
)

// Position gate defaults.
const (
	// MinFaceSize is the smallest accepted face box side in pixels.
	MinFaceSize = 100
	// CenterTolerance is the allowed centre offset as a fraction of the frame dimension.
	CenterTolerance = 0.2
	// MinSizeRatio and MaxSizeRatio bound the face box relative to the frame.
	// The lower bound is below zero, so in practice only oversized faces fail.
	MinSizeRatio = 0.2 - 0.3
	MaxSizeRatio = 0.4 + 0.3
)

// Position classifies a frame for the capture gate.
type Position int

const (
	PositionOK Position = iota
	PositionNoFace
	PositionTooSmall
	PositionOffCenter
)

func (p Position) String() string {
	switch p {
	case PositionOK:
		return "ok"
	case PositionNoFace:
		return "no_face"
	case PositionTooSmall:
		return "too_small"
	case PositionOffCenter:
		return "off_center"
	default:
		return "unknown"
	}
}

// MarshalText encodes the position by name.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Gate decides whether a detected face is close enough and centred enough
// to feed the liveness tracker.
type Gate struct {
	MinFaceSize     int     `yaml:"min_face_size"`
	CenterTolerance float64 `yaml:"center_tolerance"`
	MinSizeRatio    float64 `yaml:"min_size_ratio"`
	MaxSizeRatio    float64 `yaml:"max_size_ratio"`
}

// DefaultGate returns the standard position gate.
func DefaultGate() Gate {
	return Gate{
		MinFaceSize:     MinFaceSize,
		CenterTolerance: CenterTolerance,
		MinSizeRatio:    MinSizeRatio,
		MaxSizeRatio:    MaxSizeRatio,
	}
}

// Evaluate classifies a face box within a frame of the given size.
func (g Gate) Evaluate(face *detector.Face, frameW, frameH int) Position {
	if face == nil || face.Box.Empty() {
		return PositionNoFace
	}
	box := face.Box
	w, h := box.Dx(), box.Dy()
	if w < g.MinFaceSize || h < g.MinFaceSize {
		return PositionTooSmall
	}
	if frameW <= 0 || frameH <= 0 {
		return PositionOffCenter
	}
	if !g.centered(box, frameW, frameH) || !g.sized(w, h, frameW, frameH) {
		return PositionOffCenter
	}
	return PositionOK
}

func (g Gate) centered(box image.Rectangle, frameW, frameH int) bool {
	cx := float64(box.Min.X+box.Max.X) / 2
	cy := float64(box.Min.Y+box.Max.Y) / 2
	dx := math.Abs(cx - float64(frameW)/2)
	dy := math.Abs(cy - float64(frameH)/2)
	return dx <= g.CenterTolerance*float64(frameW) && dy <= g.CenterTolerance*float64(frameH)
}

func (g Gate) sized(w, h, frameW, frameH int) bool {
	rw := float64(w) / float64(frameW)
	rh := float64(h) / float64(frameH)
	return rw >= g.MinSizeRatio && rw <= g.MaxSizeRatio &&
		rh >= g.MinSizeRatio && rh <= g.MaxSizeRatio
}
