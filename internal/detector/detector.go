package detector

import "gocv.io/x/gocv"

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the primary (largest) face.
	// Returns nil if no face is detected.
	Detect(frame *gocv.Mat) (*Face, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Encoder computes a face encoding for a JPEG-encoded frame.
type Encoder interface {
	Encode(jpeg []byte) ([]float64, error)
	Close() error
}

// Encoder names accepted in Config.Encoder.
const (
	EncoderService = "service"
	EncoderDlib    = "dlib"
)

// Config holds configuration options for face detection.
type Config struct {
	// ScriptPath is the face service script. Empty means search the usual locations.
	ScriptPath string `yaml:"script_path"`

	// Python is the interpreter used to run the service. Empty means venv or python3.
	Python string `yaml:"python"`

	// Upsample is the number of times the service upsamples the frame when detecting.
	Upsample int `yaml:"upsample"`

	// IdleTimeoutSec shuts the service down after this many idle seconds.
	IdleTimeoutSec int `yaml:"idle_timeout_sec"`

	// Encoder selects where encodings come from: the service itself, or
	// the in-process dlib recognizer loaded from ModelsDir.
	Encoder   string `yaml:"encoder"`
	ModelsDir string `yaml:"models_dir"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Upsample:       1,
		IdleTimeoutSec: 30,
		Encoder:        EncoderService,
	}
}

// largest returns the face with the biggest bounding box area.
func largest(faces []Face) *Face {
	if len(faces) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(faces); i++ {
		a := faces[i].Box.Dx() * faces[i].Box.Dy()
		b := faces[best].Box.Dx() * faces[best].Box.Dy()
		if a > b {
			best = i
		}
	}
	f := faces[best]
	return &f
}
