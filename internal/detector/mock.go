package detector

import (
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It plays back a scripted sequence of faces, one per Detect call.
type MockDetector struct {
	faces []*Face
	index int
	loop  bool
	err   error
	calls int
	mu    sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFace makes every Detect call return the given face (nil for no face).
func (m *MockDetector) SetFace(f *Face) {
	m.SetSequence([]*Face{f}, true)
}

// SetSequence sets the faces returned by successive Detect calls. Once the
// sequence is exhausted Detect returns no face, unless loop is set.
func (m *MockDetector) SetSequence(faces []*Face, loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
	m.index = 0
	m.loop = loop
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted face or the configured error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.faces) == 0 {
		return nil, nil
	}
	if m.index >= len(m.faces) {
		if !m.loop {
			return nil, nil
		}
		m.index = 0
	}

	f := m.faces[m.index]
	m.index++
	if f == nil {
		return nil, nil
	}
	clone := *f
	return &clone, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Synthetic face defaults.
const (
	OpenEAR   = 0.30
	ClosedEAR = 0.10
)

// FaceSpec describes a synthetic face for tests and demos.
type FaceSpec struct {
	CenterX, CenterY float64
	Size             float64   // box side in pixels (default 200)
	EAR              float64   // eye aspect ratio of both eyes (default OpenEAR)
	JawRatio         float64   // jaw width / chin-to-nose distance (default 2.5)
	Encoding         []float64 // copied into the face
}

// SyntheticFace builds a geometrically consistent 68-point face whose eye
// aspect ratio and jaw ratio are exactly the requested ones.
func SyntheticFace(spec FaceSpec) *Face {
	if spec.Size <= 0 {
		spec.Size = 200
	}
	if spec.EAR == 0 {
		spec.EAR = OpenEAR
	}
	if spec.JawRatio <= 0 {
		spec.JawRatio = 2.5
	}

	cx, cy, w := spec.CenterX, spec.CenterY, spec.Size
	var lm Landmarks

	noseY := cy + 0.1*w
	chinY := noseY + w/spec.JawRatio
	jawTop := cy - 0.05*w

	// Jaw: half ellipse from left ear to right ear through the chin.
	for i := 0; i <= 16; i++ {
		t := math.Pi * float64(i) / 16
		lm[i] = Point{X: cx - (w/2)*math.Cos(t), Y: jawTop + (chinY-jawTop)*math.Sin(t)}
	}
	lm[Chin] = Point{X: cx, Y: chinY}

	// Eyebrows.
	for i := 0; i < 5; i++ {
		off := float64(i) * 0.065 * w
		lm[17+i] = Point{X: cx - 0.35*w + off, Y: cy - 0.25*w}
		lm[22+i] = Point{X: cx + 0.09*w + off, Y: cy - 0.25*w}
	}

	// Nose bridge and lower contour.
	for i := 0; i < 4; i++ {
		lm[NoseBridge+i] = Point{X: cx, Y: cy - 0.15*w + float64(i)*0.06*w}
	}
	for i := 0; i < 5; i++ {
		lm[31+i] = Point{X: cx + float64(i-2)*0.04*w, Y: noseY}
	}

	setEye(&lm, LeftEyeStart, cx-0.2*w, cy-0.12*w, 0.16*w, spec.EAR)
	setEye(&lm, RightEyeStart, cx+0.2*w, cy-0.12*w, 0.16*w, spec.EAR)

	// Mouth: outer 12 and inner 8 points on ellipses.
	mouthY := cy + 0.28*w
	for i := 0; i < 12; i++ {
		t := 2 * math.Pi * float64(i) / 12
		lm[MouthStart+i] = Point{X: cx - 0.15*w*math.Cos(t), Y: mouthY + 0.05*w*math.Sin(t)}
	}
	for i := 0; i < 8; i++ {
		t := 2 * math.Pi * float64(i) / 8
		lm[60+i] = Point{X: cx - 0.1*w*math.Cos(t), Y: mouthY + 0.02*w*math.Sin(t)}
	}

	half := int(math.Round(w / 2))
	icx, icy := int(math.Round(cx)), int(math.Round(cy))

	f := &Face{
		Landmarks: lm,
		Box:       image.Rect(icx-half, icy-half, icx+half, icy+half),
		Score:     1,
	}
	if spec.Encoding != nil {
		f.Encoding = append([]float64(nil), spec.Encoding...)
	}
	return f
}

// setEye writes a six-point eye contour centred at (ex, ey) with the given
// width and aspect ratio: EAR = 2v / width where v is the lid offset.
func setEye(lm *Landmarks, start int, ex, ey, width, ear float64) {
	v := ear * width / 2
	lm[start+0] = Point{X: ex - width/2, Y: ey}
	lm[start+1] = Point{X: ex - width/6, Y: ey - v}
	lm[start+2] = Point{X: ex + width/6, Y: ey - v}
	lm[start+3] = Point{X: ex + width/2, Y: ey}
	lm[start+4] = Point{X: ex + width/6, Y: ey + v}
	lm[start+5] = Point{X: ex - width/6, Y: ey + v}
}

// HeadTurnOffset is the horizontal nose displacement used by LivenessSequence.
const HeadTurnOffset = 30.0

// LivenessSequence returns the frames of a subject who blinks three times and
// then turns their head twice, which is exactly enough for one confirmed
// sample under the default liveness settings. The confirming frame has open
// eyes. The sequence is repeated `samples` times.
func LivenessSequence(spec FaceSpec, samples int) []*Face {
	open := spec
	open.EAR = OpenEAR
	closed := spec
	closed.EAR = ClosedEAR
	turned := open
	turned.CenterX += HeadTurnOffset

	one := []*Face{
		SyntheticFace(open), SyntheticFace(open), SyntheticFace(open), SyntheticFace(open),
		SyntheticFace(closed), // blink 1
		SyntheticFace(open),
		SyntheticFace(closed), // blink 2
		SyntheticFace(open),
		SyntheticFace(closed), // blink 3
		SyntheticFace(turned), // head move 1
		SyntheticFace(open),   // head move 2, confirmed
	}

	seq := make([]*Face, 0, len(one)*samples)
	for i := 0; i < samples; i++ {
		seq = append(seq, one...)
	}
	return seq
}
