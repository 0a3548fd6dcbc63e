// Package features converts health samples into model feature vectors.
package features

import (
	"fmt"

	vio "github.com/hed1ad/vitalguard/pkg/io"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Compile-time interface guard.
var _ vio.FeatureExtractor = (*Encoder)(nil)

// Feature column order of every vector produced by the encoder.
var featureNames = []string{vitals.FieldHeartRate, vitals.FieldBloodOxygen, "activity_code"}

// Vector is the fixed-order numeric encoding of a HealthSample.
type Vector []float64

// UnknownCategoryError is returned for an activity outside the encoder vocabulary.
type UnknownCategoryError struct {
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown activity category %q", e.Value)
}

// Encoder maps activity levels to ordinal codes. It is read-only after construction.
type Encoder struct {
	vocabulary []vitals.ActivityLevel
	codes      map[vitals.ActivityLevel]int
}

// NewEncoder returns an encoder over the canonical vocabulary (low=0, moderate=1, high=2).
func NewEncoder() *Encoder {
	e, _ := FromVocabulary(vitals.Activities())
	return e
}

// FromVocabulary rebuilds an encoder from a stored vocabulary.
// The vocabulary must match the canonical one exactly, in order.
func FromVocabulary(vocab []vitals.ActivityLevel) (*Encoder, error) {
	canonical := vitals.Activities()
	if len(vocab) != len(canonical) {
		return nil, fmt.Errorf("vocabulary has %d categories, want %d", len(vocab), len(canonical))
	}

	e := &Encoder{
		vocabulary: make([]vitals.ActivityLevel, len(vocab)),
		codes:      make(map[vitals.ActivityLevel]int, len(vocab)),
	}
	for i, a := range vocab {
		if a != canonical[i] {
			return nil, fmt.Errorf("vocabulary position %d is %q, want %q", i, a, canonical[i])
		}
		e.vocabulary[i] = a
		e.codes[a] = i
	}
	return e, nil
}

// Vocabulary returns the categories in code order.
func (e *Encoder) Vocabulary() []vitals.ActivityLevel {
	out := make([]vitals.ActivityLevel, len(e.vocabulary))
	copy(out, e.vocabulary)
	return out
}

// Encode returns the code for an activity level.
func (e *Encoder) Encode(a vitals.ActivityLevel) (int, error) {
	code, ok := e.codes[a]
	if !ok {
		return 0, &UnknownCategoryError{Value: string(a)}
	}
	return code, nil
}

// EncodeSample builds the feature vector for s.
func (e *Encoder) EncodeSample(s vitals.HealthSample) (Vector, error) {
	code, err := e.Encode(s.ActivityLevel)
	if err != nil {
		return nil, err
	}
	return Vector{float64(s.HeartRate), float64(s.BloodOxygen), float64(code)}, nil
}

// EncodeAll encodes every sample, failing on the first unknown category.
func (e *Encoder) EncodeAll(samples []vitals.HealthSample) ([][]float64, error) {
	out := make([][]float64, len(samples))
	for i, s := range samples {
		v, err := e.EncodeSample(s)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Extract implements io.FeatureExtractor for HealthSample values.
func (e *Encoder) Extract(data any) ([]float64, error) {
	switch s := data.(type) {
	case vitals.HealthSample:
		return e.EncodeSample(s)
	case *vitals.HealthSample:
		return e.EncodeSample(*s)
	default:
		return nil, fmt.Errorf("cannot extract features from %T", data)
	}
}

// FeatureNames returns the names of the vector columns.
func (e *Encoder) FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}
