// Package model fits, scores and persists the vital-sign anomaly model.
package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hed1ad/vitalguard/pkg/dataset"
	"github.com/hed1ad/vitalguard/pkg/detectors"
	"github.com/hed1ad/vitalguard/pkg/detectors/iforest"
	"github.com/hed1ad/vitalguard/pkg/features"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Info describes how a model was trained.
type Info struct {
	RunID         string
	TrainedAt     time.Time
	Seed          int64
	CorpusSeed    int64
	Contamination float64
	CorpusSize    int
	Threshold     float64
	Training      iforest.Stats
}

// ErrContaminationMismatch is returned when a generated corpus was drawn with a different
// anomaly share than the forest is asked to assume.
var ErrContaminationMismatch = errors.New("corpus contamination differs from training contamination")

// Model pairs a fitted encoder with a fitted detector. It is read-only once built.
type Model struct {
	encoder  *features.Encoder
	detector detectors.Detector
	info     Info
}

// Fit trains a model on every sample in corpus.
func Fit(corpus dataset.Corpus, cfg detectors.Config) (*Model, error) {
	if len(corpus.Samples) == 0 {
		return nil, errors.New("empty training corpus")
	}
	// Corpora read from CSV carry no contamination and are taken as given.
	if corpus.Contamination > 0 && math.Abs(corpus.Contamination-cfg.Contamination) > 1e-9 {
		return nil, fmt.Errorf("%w: corpus %v, training %v", ErrContaminationMismatch, corpus.Contamination, cfg.Contamination)
	}

	enc := features.NewEncoder()
	rows, err := enc.EncodeAll(corpus.Samples)
	if err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}

	forest := iforest.New(iforest.WithConfig(cfg))
	if err := forest.Fit(rows); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	return &Model{
		encoder:  enc,
		detector: forest,
		info: Info{
			RunID:         uuid.NewString(),
			TrainedAt:     time.Now().UTC(),
			Seed:          cfg.RandomSeed,
			CorpusSeed:    corpus.Seed,
			Contamination: cfg.Contamination,
			CorpusSize:    len(corpus.Samples),
			Threshold:     forest.Threshold(),
			Training:      forest.Stats(),
		},
	}, nil
}

// Encoder returns the encoder fitted with the model.
func (m *Model) Encoder() *features.Encoder {
	return m.encoder
}

// Info returns training metadata.
func (m *Model) Info() Info {
	return m.info
}

// Threshold returns the raw score above which a vector is labelled Anomaly.
func (m *Model) Threshold() float64 {
	return m.info.Threshold
}

// Score returns the binary label and the raw isolation score (higher is more anomalous).
func (m *Model) Score(v features.Vector) (vitals.Result, float64, error) {
	s, err := m.detector.Evaluate(v)
	if err != nil {
		return "", 0, err
	}
	if s.IsAnomaly {
		return vitals.ResultAnomaly, s.Value, nil
	}
	return vitals.ResultNormal, s.Value, nil
}

// RawScore encodes s and returns only the raw score.
func (m *Model) RawScore(s vitals.HealthSample) (float64, error) {
	v, err := m.encoder.Extract(s)
	if err != nil {
		return 0, err
	}
	return m.detector.PredictOne(v)
}
