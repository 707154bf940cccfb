package detector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
	}{
		{"same point", Point{1, 1}, Point{1, 1}, 0},
		{"3-4-5 triangle", Point{0, 0}, Point{3, 4}, 5},
		{"negative coordinates", Point{-1, -1}, Point{2, 3}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, Distance(tt.a, tt.b), epsilon)
			require.InDelta(t, tt.want, Distance(tt.b, tt.a), epsilon)
		})
	}
}

func TestEyeAspectRatio(t *testing.T) {
	t.Run("matches the closed-form ratio", func(t *testing.T) {
		eye := [EyePoints]Point{
			{0, 0}, {2, -1}, {4, -1}, {6, 0}, {4, 1}, {2, 1},
		}
		// (2 + 2) / (2 * 6)
		require.InDelta(t, 1.0/3.0, EyeAspectRatio(eye), epsilon)
	})

	t.Run("closed eye has zero ratio", func(t *testing.T) {
		eye := [EyePoints]Point{
			{0, 0}, {2, 0}, {4, 0}, {6, 0}, {4, 0}, {2, 0},
		}
		require.InDelta(t, 0, EyeAspectRatio(eye), epsilon)
	})

	t.Run("degenerate eye width yields +Inf", func(t *testing.T) {
		eye := [EyePoints]Point{
			{3, 0}, {2, -1}, {4, -1}, {3, 0}, {4, 1}, {2, 1},
		}
		ear := EyeAspectRatio(eye)
		require.True(t, math.IsInf(ear, 1), "expected +Inf, got %f", ear)
	})

	t.Run("all points coincide", func(t *testing.T) {
		var eye [EyePoints]Point
		require.True(t, math.IsInf(EyeAspectRatio(eye), 1))
	})
}

func TestSyntheticFace_Geometry(t *testing.T) {
	face := SyntheticFace(FaceSpec{CenterX: 320, CenterY: 240, EAR: 0.27})

	require.InDelta(t, 0.27, EyeAspectRatio(face.Landmarks.LeftEye()), 1e-6)
	require.InDelta(t, 0.27, EyeAspectRatio(face.Landmarks.RightEye()), 1e-6)
	require.InDelta(t, 0.27, face.Landmarks.AverageEAR(), 1e-6)
	require.Equal(t, 200, face.Box.Dx())
	require.Equal(t, 200, face.Box.Dy())
	require.InDelta(t, 320, face.Landmarks.Nose().X, 1e-6)
}

func TestLandmarks_Translate(t *testing.T) {
	face := SyntheticFace(FaceSpec{CenterX: 100, CenterY: 100})
	moved := face.Landmarks.Translate(30, -10)

	require.InDelta(t, face.Landmarks.Nose().X+30, moved.Nose().X, epsilon)
	require.InDelta(t, face.Landmarks.Nose().Y-10, moved.Nose().Y, epsilon)
	require.InDelta(t, face.Landmarks.AverageEAR(), moved.AverageEAR(), 1e-9)
}

func TestDetectGlasses(t *testing.T) {
	tests := []struct {
		name string
		ear  float64
		want bool
	}{
		{"open eyes", 0.30, false},
		{"blink-level ratio above cutoff", 0.15, false},
		{"just below cutoff", 0.14, true},
		{"flattened contour", 0.05, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			face := SyntheticFace(FaceSpec{CenterX: 320, CenterY: 240, EAR: tt.ear})
			require.Equal(t, tt.want, DetectGlasses(&face.Landmarks))
		})
	}

	t.Run("one eye below cutoff is enough", func(t *testing.T) {
		face := SyntheticFace(FaceSpec{CenterX: 320, CenterY: 240})
		setEye(&face.Landmarks, RightEyeStart, 360, 216, 32, 0.1)
		require.True(t, DetectGlasses(&face.Landmarks))
	})

	t.Run("degenerate eyes never signal glasses", func(t *testing.T) {
		var lm Landmarks
		require.False(t, DetectGlasses(&lm))
	})

	t.Run("nil landmarks", func(t *testing.T) {
		require.False(t, DetectGlasses(nil))
	})
}

func TestDetectFacialHair(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  bool
	}{
		{"typical face", 2.5, false},
		{"just below the ratio", 4.1, false},
		{"wide jaw", 4.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			face := SyntheticFace(FaceSpec{CenterX: 320, CenterY: 240, JawRatio: tt.ratio})
			require.Equal(t, tt.want, DetectFacialHair(&face.Landmarks))
		})
	}

	t.Run("zero chin to nose distance", func(t *testing.T) {
		var lm Landmarks
		lm[JawRight] = Point{X: 100}
		require.False(t, DetectFacialHair(&lm))
	})
}

func TestClassify(t *testing.T) {
	face := SyntheticFace(FaceSpec{CenterX: 320, CenterY: 240, EAR: 0.1, JawRatio: 5})
	got := Classify(&face.Landmarks)
	require.Equal(t, Appearance{Glasses: true, FacialHair: true}, got)
}

func TestMockDetector(t *testing.T) {
	t.Run("returns no face by default", func(t *testing.T) {
		mock := NewMockDetector()

		face, err := mock.Detect(nil)

		require.NoError(t, err)
		require.Nil(t, face)
	})

	t.Run("plays back a sequence then stops", func(t *testing.T) {
		mock := NewMockDetector()
		a := SyntheticFace(FaceSpec{CenterX: 1})
		b := SyntheticFace(FaceSpec{CenterX: 2})
		mock.SetSequence([]*Face{a, nil, b}, false)

		f, _ := mock.Detect(nil)
		require.NotNil(t, f)
		require.InDelta(t, 1, f.Landmarks.Nose().X, 1e-6)

		f, _ = mock.Detect(nil)
		require.Nil(t, f)

		f, _ = mock.Detect(nil)
		require.InDelta(t, 2, f.Landmarks.Nose().X, 1e-6)

		f, _ = mock.Detect(nil)
		require.Nil(t, f)
		require.Equal(t, 4, mock.Calls())
	})

	t.Run("looping sequence restarts", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetFace(SyntheticFace(FaceSpec{CenterX: 5}))
		for i := 0; i < 3; i++ {
			f, err := mock.Detect(nil)
			require.NoError(t, err)
			require.NotNil(t, f)
		}
	})

	t.Run("returned faces are copies", func(t *testing.T) {
		mock := NewMockDetector()
		orig := SyntheticFace(FaceSpec{CenterX: 5})
		mock.SetFace(orig)

		f, _ := mock.Detect(nil)
		f.Score = 0
		require.Equal(t, 1.0, orig.Score)
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		face, err := mock.Detect(nil)

		require.ErrorIs(t, err, expectedErr)
		require.Nil(t, face)
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*ServiceDetector)(nil)
		var _ Encoder = (*DlibEncoder)(nil)
	})
}

func TestLivenessSequence(t *testing.T) {
	seq := LivenessSequence(FaceSpec{CenterX: 320, CenterY: 240}, 2)
	require.Len(t, seq, 22)

	last := seq[10]
	require.InDelta(t, OpenEAR, last.Landmarks.AverageEAR(), 1e-6)
	require.InDelta(t, HeadTurnOffset, seq[9].Landmarks.Nose().X-seq[8].Landmarks.Nose().X, 1e-6)
}

func TestParseServiceResponse(t *testing.T) {
	t.Run("skips faces with partial landmarks", func(t *testing.T) {
		faces, err := parseServiceResponse([]byte(`{"faces":[{"box":[0,0,10,10],"landmarks":[[1,2]],"encoding":[]}]}`))
		require.NoError(t, err)
		require.Empty(t, faces)
	})

	t.Run("decodes a full face", func(t *testing.T) {
		line := `{"faces":[{"box":[10,20,110,140],"landmarks":[` + repeatPoints(NumLandmarks) + `],"encoding":[0.1,0.2],"score":0.9}]}`
		faces, err := parseServiceResponse([]byte(line))
		require.NoError(t, err)
		require.Len(t, faces, 1)
		require.Equal(t, 100, faces[0].Box.Dx())
		require.Equal(t, 120, faces[0].Box.Dy())
		require.Equal(t, []float64{0.1, 0.2}, faces[0].Encoding)
		require.Equal(t, Point{X: 3, Y: 4}, faces[0].Landmarks[67])
	})

	t.Run("service error", func(t *testing.T) {
		_, err := parseServiceResponse([]byte(`{"faces":[],"error":"model missing"}`))
		require.ErrorContains(t, err, "model missing")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := parseServiceResponse([]byte(`not json`))
		require.Error(t, err)
	})
}

func TestLargest(t *testing.T) {
	small := *SyntheticFace(FaceSpec{CenterX: 100, CenterY: 100, Size: 120})
	big := *SyntheticFace(FaceSpec{CenterX: 300, CenterY: 200, Size: 220})

	got := largest([]Face{small, big})
	require.NotNil(t, got)
	require.Equal(t, 220, got.Box.Dx())
	require.Nil(t, largest(nil))
}

func repeatPoints(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "[3,4]"
	}
	return s
}
