// Package detector provides face detection interfaces, landmark geometry and
// appearance classification for the liveness-gated capture pipeline.
package detector

import (
	"image"
	"math"
)

// Face landmark indices following the 68-point iBUG/dlib convention.
// See: https://ibug.doc.ic.ac.uk/resources/facial-point-annotations/
const (
	JawLeft       = 0
	Chin          = 8
	JawRight      = 16
	NoseBridge    = 27
	NoseTip       = 33 // centre of the lower nose contour (31-35)
	LeftEyeStart  = 36
	RightEyeStart = 42
	MouthStart    = 48
	NumLandmarks  = 68

	// EyePoints is the number of contour points per eye.
	EyePoints = 6
	// EncodingSize is the dimensionality of a face encoding.
	EncodingSize = 128
)

// Point represents a 2D point in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmarks is the ordered 68-point landmark set of a single face.
type Landmarks [NumLandmarks]Point

// Face is a single per-frame observation produced by a Detector.
type Face struct {
	Landmarks Landmarks       `json:"landmarks"`
	Encoding  []float64       `json:"encoding"`
	Box       image.Rectangle `json:"box"`
	Score     float64         `json:"score"`
}

// Distance calculates the Euclidean distance between two 2D points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// EyeAspectRatio computes (|p1-p5| + |p2-p4|) / (2 * |p0-p3|) for an ordered
// six-point eye contour. A zero-width eye (p0 == p3) has no defined ratio and
// yields +Inf, which callers must treat as "no eye".
func EyeAspectRatio(eye [EyePoints]Point) float64 {
	width := Distance(eye[0], eye[3])
	if width == 0 {
		return math.Inf(1)
	}
	return (Distance(eye[1], eye[5]) + Distance(eye[2], eye[4])) / (2 * width)
}

// LeftEye returns the six contour points of the subject's left eye.
func (l *Landmarks) LeftEye() [EyePoints]Point {
	var eye [EyePoints]Point
	copy(eye[:], l[LeftEyeStart:LeftEyeStart+EyePoints])
	return eye
}

// RightEye returns the six contour points of the subject's right eye.
func (l *Landmarks) RightEye() [EyePoints]Point {
	var eye [EyePoints]Point
	copy(eye[:], l[RightEyeStart:RightEyeStart+EyePoints])
	return eye
}

// Nose returns the tracked nose position.
func (l *Landmarks) Nose() Point {
	return l[NoseTip]
}

// AverageEAR returns the mean eye aspect ratio of both eyes.
// The result is +Inf when either eye is degenerate.
func (l *Landmarks) AverageEAR() float64 {
	return (EyeAspectRatio(l.LeftEye()) + EyeAspectRatio(l.RightEye())) / 2
}

// Translate returns a copy of the landmarks shifted by (dx, dy).
func (l *Landmarks) Translate(dx, dy float64) Landmarks {
	var out Landmarks
	for i, p := range l {
		out[i] = Point{X: p.X + dx, Y: p.Y + dy}
	}
	return out
}
