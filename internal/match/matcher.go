// Package match compares captured face samples against enrolled profiles.
package match

import (
	"math"

	"github.com/ayusman/mukha/internal/detector"
	"github.com/ayusman/mukha/internal/liveness"
)

const (
	// BaseThreshold is the default similarity acceptance base.
	BaseThreshold = 0.65
	// FloorFactor scales the base into the hard per-sample floor.
	FloorFactor = 0.9

	// MaxDistance is returned for absent or malformed encodings.
	MaxDistance = math.MaxFloat64

	// NoSimilarity is the similarity at MaxDistance. It stays finite so
	// scores can always be encoded.
	NoSimilarity = 1 - MaxDistance
)

// Profile is the matcher's view of an enrolled user. HasGlasses and
// HasFacialHair run parallel to Embeddings; a missing flag reads as false.
type Profile struct {
	Name          string
	Embeddings    [][]float64
	HasGlasses    []bool
	HasFacialHair []bool
}

func (p *Profile) glasses(i int) bool {
	return i < len(p.HasGlasses) && p.HasGlasses[i]
}

func (p *Profile) facialHair(i int) bool {
	return i < len(p.HasFacialHair) && p.HasFacialHair[i]
}

// SampleScore is the best similarity of one captured sample against one user.
type SampleScore struct {
	SampleIndex int     `json:"sample_index"`
	User        string  `json:"user"`
	Similarity  float64 `json:"similarity"`
}

// Result is the outcome of an authentication pass.
type Result struct {
	MatchedUser string        `json:"matched_user,omitempty"`
	Matched     bool          `json:"matched"`
	Confidence  float64       `json:"confidence"`
	PerSample   []SampleScore `json:"per_sample,omitempty"`
}

// Best is the result of scanning one profile's embeddings for one sample.
type Best struct {
	Similarity float64
	// Index of the embedding that produced Similarity, -1 if none.
	Index int
	// EarlyExit is set when the scan stopped before the last embedding.
	EarlyExit bool
}

// Duplicate describes a stored embedding that is too close to a new face.
type Duplicate struct {
	User       string
	Index      int
	Similarity float64
}

// FaceDistance returns the Euclidean distance between two encodings, or
// MaxDistance if either is not a full-length encoding.
func FaceDistance(a, b []float64) float64 {
	if len(a) != detector.EncodingSize || len(b) != detector.EncodingSize {
		return MaxDistance
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Similarity is 1 - FaceDistance. It is not clamped and goes hugely
// negative for malformed encodings.
func Similarity(a, b []float64) float64 {
	return 1 - FaceDistance(a, b)
}

// Matcher applies appearance-aware thresholds on top of Similarity.
type Matcher struct {
	Base float64
}

// New creates a matcher with the given base threshold.
func New(base float64) *Matcher {
	return &Matcher{Base: base}
}

// Default creates a matcher with BaseThreshold.
func Default() *Matcher {
	return New(BaseThreshold)
}

// DynamicThreshold relaxes the base by 5% per appearance flag that differs
// between the authenticating sample and the stored embedding.
func (m *Matcher) DynamicThreshold(authGlasses, authHair, regGlasses, regHair bool) float64 {
	matches := 0
	if authGlasses == regGlasses {
		matches++
	}
	if authHair == regHair {
		matches++
	}
	switch matches {
	case 2:
		return m.Base
	case 1:
		return m.Base * 0.95
	default:
		return m.Base * 0.90
	}
}

// Floor is the similarity every sample must reach regardless of appearance.
func (m *Matcher) Floor() float64 {
	return m.Base * FloorFactor
}

// BestSimilarity scans the profile's embeddings in order and returns the
// highest similarity seen. The scan stops once an embedding meets its own
// dynamic threshold. A profile without embeddings scores NoSimilarity.
func (m *Matcher) BestSimilarity(sample liveness.Sample, p *Profile) Best {
	best := Best{Similarity: NoSimilarity, Index: -1}
	for i, emb := range p.Embeddings {
		sim := Similarity(sample.Encoding, emb)
		if sim > best.Similarity {
			best.Similarity = sim
			best.Index = i
		}
		thr := m.DynamicThreshold(sample.Glasses, sample.FacialHair, p.glasses(i), p.facialHair(i))
		if sim >= thr {
			best.EarlyExit = i < len(p.Embeddings)-1
			break
		}
	}
	return best
}

// Authenticate decides which profile, if any, the samples belong to. Every
// sample must clear the floor for a user to be considered; the user's
// confidence is their weakest sample. The highest confidence wins and
// earlier profiles win ties.
func (m *Matcher) Authenticate(samples []liveness.Sample, profiles []*Profile) Result {
	var res Result
	if len(samples) == 0 || len(profiles) == 0 {
		return res
	}

	floor := m.Floor()
	for _, p := range profiles {
		if p == nil {
			continue
		}
		confidence := math.Inf(1)
		accepted := true
		for i, s := range samples {
			best := m.BestSimilarity(s, p)
			res.PerSample = append(res.PerSample, SampleScore{
				SampleIndex: i,
				User:        p.Name,
				Similarity:  best.Similarity,
			})
			if best.Similarity < floor {
				accepted = false
				break
			}
			confidence = math.Min(confidence, best.Similarity)
		}
		if accepted && (!res.Matched || confidence > res.Confidence) {
			res.Matched = true
			res.MatchedUser = p.Name
			res.Confidence = confidence
		}
	}
	return res
}

// CheckDuplicate compares a new face against every stored embedding of every
// profile other than exclude. Any similarity above the base is a duplicate.
func (m *Matcher) CheckDuplicate(first liveness.Sample, profiles []*Profile, exclude string) (Duplicate, bool) {
	for _, p := range profiles {
		if p == nil || p.Name == exclude {
			continue
		}
		for i, emb := range p.Embeddings {
			if sim := Similarity(first.Encoding, emb); sim > m.Base {
				return Duplicate{User: p.Name, Index: i, Similarity: sim}, true
			}
		}
	}
	return Duplicate{}, false
}
