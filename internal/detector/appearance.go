package detector

// Appearance thresholds.
const (
	// EARThreshold is the eye aspect ratio below which an eye is considered closed.
	EARThreshold = 0.21
	// GlassesEARFactor scales EARThreshold into the glasses cutoff. Frames
	// distort the eye contour and push the apparent ratio down.
	GlassesEARFactor = 0.7
	// FacialHairRatio is the jaw-width to chin-nose ratio above which facial
	// hair is assumed.
	FacialHairRatio = 4.2
)

// Appearance holds the boolean appearance flags derived from landmark geometry.
type Appearance struct {
	Glasses    bool `json:"has_glasses"`
	FacialHair bool `json:"has_facial_hair"`
}

// Classify derives both appearance flags from the landmarks.
func Classify(l *Landmarks) Appearance {
	return Appearance{
		Glasses:    DetectGlasses(l),
		FacialHair: DetectFacialHair(l),
	}
}

// DetectGlasses reports whether either eye's aspect ratio falls below the
// glasses cutoff. A degenerate eye never signals glasses.
func DetectGlasses(l *Landmarks) bool {
	if l == nil {
		return false
	}
	cutoff := EARThreshold * GlassesEARFactor
	return EyeAspectRatio(l.LeftEye()) < cutoff || EyeAspectRatio(l.RightEye()) < cutoff
}

// DetectFacialHair reports whether the jaw is unusually wide relative to the
// chin-to-nose distance.
func DetectFacialHair(l *Landmarks) bool {
	if l == nil {
		return false
	}
	chinToNose := Distance(l[Chin], l[NoseTip])
	if chinToNose == 0 {
		return false
	}
	jawWidth := Distance(l[JawLeft], l[JawRight])
	return jawWidth/chinToNose > FacialHairRatio
}
