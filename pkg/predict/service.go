// Package predict composes validation, encoding, model scoring and risk scoring behind a
// single Predict operation.
package predict

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/pkg/features"
	"github.com/hed1ad/vitalguard/pkg/model"
	"github.com/hed1ad/vitalguard/pkg/risk"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// State is the lifecycle state of a Service.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateServing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateServing:
		return "serving"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotServing is returned by Predict outside the Serving state.
	ErrNotServing = errors.New("prediction service is not serving")
	// ErrAlreadyLoaded is returned when Load is called more than once.
	ErrAlreadyLoaded = errors.New("prediction service already loaded")
)

// Request is the raw input record. Nil fields are reported as missing.
type Request struct {
	HeartRate     *int   `json:"heart_rate"`
	BloodOxygen   *int   `json:"blood_oxygen"`
	ActivityLevel string `json:"activity_level"`
}

// NewRequest builds a Request from plain values.
func NewRequest(heartRate, bloodOxygen int, activity string) Request {
	return Request{HeartRate: &heartRate, BloodOxygen: &bloodOxygen, ActivityLevel: activity}
}

// Service owns the loaded model. Predict is safe for concurrent use once Serving.
type Service struct {
	logger  *zap.Logger
	riskCfg risk.Config

	state atomic.Int32
	err   error

	// Written once by Load before the state becomes Serving; read-only afterwards.
	model  *model.Model
	scorer *risk.Scorer
}

// New creates an uninitialized service.
func New(logger *zap.Logger, riskCfg risk.Config) *Service {
	return &Service{logger: logger, riskCfg: riskCfg}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Ready reports whether the service is Serving, or the reason it is not.
func (s *Service) Ready() error {
	switch st := s.State(); st {
	case StateServing:
		return nil
	case StateFailed:
		return fmt.Errorf("%w: %v", ErrNotServing, s.err)
	default:
		return fmt.Errorf("%w: %s", ErrNotServing, st)
	}
}

// Model returns the loaded model, or nil before Serving.
func (s *Service) Model() *model.Model {
	if s.State() != StateServing {
		return nil
	}
	return s.model
}

// Load reads the artifact at path and enters Serving, or Failed on any error.
func (s *Service) Load(path string) error {
	if !s.state.CAS(int32(StateUninitialized), int32(StateLoading)) {
		return ErrAlreadyLoaded
	}

	s.logger.Info("loading model artifact", zap.String("path", path))

	m, err := model.Load(path)
	if err != nil {
		return s.fail(err)
	}
	return s.install(m)
}

// Use installs an in-memory model, following the same transitions as Load.
func (s *Service) Use(m *model.Model) error {
	if !s.state.CAS(int32(StateUninitialized), int32(StateLoading)) {
		return ErrAlreadyLoaded
	}
	return s.install(m)
}

func (s *Service) install(m *model.Model) error {
	surface, err := risk.BuildSurface(s.riskCfg, m.RawScore)
	if err != nil {
		return s.fail(fmt.Errorf("build score surface: %w", err))
	}
	scorer, err := risk.NewScorer(s.riskCfg, m.Threshold(), risk.WithSurface(surface))
	if err != nil {
		return s.fail(err)
	}

	s.model = m
	s.scorer = scorer
	s.state.Store(int32(StateServing))

	info := m.Info()
	s.logger.Info("prediction service serving",
		zap.String("run_id", info.RunID),
		zap.Time("trained_at", info.TrainedAt),
		zap.Int64("seed", info.Seed),
		zap.Float64("contamination", info.Contamination),
		zap.Float64("threshold", info.Threshold),
	)
	return nil
}

func (s *Service) fail(err error) error {
	s.err = err
	s.state.Store(int32(StateFailed))
	s.logger.Error("prediction service failed to load", zap.Error(err))
	return err
}

// Validate checks a raw request and returns the normalized sample.
func Validate(req Request) (vitals.HealthSample, error) {
	if req.HeartRate == nil {
		return vitals.HealthSample{}, &vitals.ValidationError{Field: vitals.FieldHeartRate, Reason: "is required"}
	}
	if req.BloodOxygen == nil {
		return vitals.HealthSample{}, &vitals.ValidationError{Field: vitals.FieldBloodOxygen, Reason: "is required"}
	}

	s := vitals.HealthSample{
		HeartRate:     *req.HeartRate,
		BloodOxygen:   *req.BloodOxygen,
		ActivityLevel: vitals.ActivityLevel(req.ActivityLevel),
	}
	if err := s.Validate(); err != nil {
		return vitals.HealthSample{}, err
	}

	act, err := vitals.ParseActivity(req.ActivityLevel)
	if err != nil {
		return vitals.HealthSample{}, err
	}
	s.ActivityLevel = act
	return s, nil
}

// Predict validates req and scores it.
func (s *Service) Predict(req Request) (vitals.PredictionResult, error) {
	if s.State() != StateServing {
		return vitals.PredictionResult{}, ErrNotServing
	}

	sample, err := Validate(req)
	if err != nil {
		return vitals.PredictionResult{}, err
	}

	vec, err := s.model.Encoder().EncodeSample(sample)
	if err != nil {
		var uerr *features.UnknownCategoryError
		if errors.As(err, &uerr) {
			return vitals.PredictionResult{}, &vitals.ValidationError{Field: vitals.FieldActivityLevel, Reason: uerr.Error()}
		}
		return vitals.PredictionResult{}, err
	}

	label, raw, err := s.model.Score(vec)
	if err != nil {
		return vitals.PredictionResult{}, fmt.Errorf("score: %w", err)
	}

	a := s.scorer.Score(label, raw, sample)

	s.logger.Debug("prediction",
		zap.Stringer("sample", sample),
		zap.String("label", string(label)),
		zap.Float64("raw", raw),
		zap.Float64("signal", a.Signal),
		zap.Float64("penalty", a.Penalty),
		zap.Int("risk_score", a.RiskScore),
		zap.String("result", string(a.Result)),
	)

	return vitals.PredictionResult{
		Result:    a.Result,
		Status:    a.Status,
		RiskScore: a.RiskScore,
		InputData: sample,
	}, nil
}
