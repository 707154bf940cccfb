package detector

import (
	"fmt"
	"sync"

	face "github.com/Kagami/go-face"
)

// DlibEncoder computes face encodings in-process with dlib's ResNet model.
// modelsDir must contain the go-face model files
// (dlib_face_recognition_resnet_model_v1.dat, shape_predictor_5_face_landmarks.dat,
// mmod_human_face_detector.dat).
type DlibEncoder struct {
	rec *face.Recognizer
	mu  sync.Mutex
}

// NewDlibEncoder loads the recognizer models from modelsDir.
func NewDlibEncoder(modelsDir string) (*DlibEncoder, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	return &DlibEncoder{rec: rec}, nil
}

// Encode returns the descriptor of the single face in the JPEG image.
// A nil encoding with no error means no face was found; the matcher treats
// it as maximally distant.
func (e *DlibEncoder) Encode(jpeg []byte) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.rec.RecognizeSingle(jpeg)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}

	enc := make([]float64, len(f.Descriptor))
	for i, v := range f.Descriptor {
		enc[i] = float64(v)
	}
	return enc, nil
}

// Close releases the recognizer.
func (e *DlibEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.Close()
	return nil
}
