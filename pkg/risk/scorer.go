// Package risk turns model output into a bounded 0-100 risk score and a Normal/Anomaly verdict.
//
// The score blends two signals:
//
//	m = clamp01(0.5 + (s - threshold) / (2 * ModelScale))
//	p = clamp01(hrDeviation/HeartRateSpan + oxygenDeviation/OxygenSpan)
//	risk = round(100 * clamp01(ModelWeight*m + PenaltyWeight*p))
//
// where s is the raw isolation score, raised to its Surface envelope when one is attached,
// and deviations are distances outside the clinically normal bands.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Band is a closed clinically normal interval.
type Band struct {
	Low  float64 `mapstructure:"low"`
	High float64 `mapstructure:"high"`
}

// Deviation returns the distance of v outside the band, or zero inside it.
func (b Band) Deviation(v float64) float64 {
	switch {
	case v < b.Low:
		return b.Low - v
	case v > b.High:
		return v - b.High
	default:
		return 0
	}
}

// Config holds the risk formula constants.
type Config struct {
	HeartRateBand   Band    `mapstructure:"heart_rate_band"`
	BloodOxygenBand Band    `mapstructure:"blood_oxygen_band"`
	HeartRateSpan   float64 `mapstructure:"heart_rate_span"`
	OxygenSpan      float64 `mapstructure:"oxygen_span"`

	// ModelScale is the raw-score distance from the threshold that moves m by 0.5.
	ModelScale    float64 `mapstructure:"model_scale"`
	ModelWeight   float64 `mapstructure:"model_weight"`
	PenaltyWeight float64 `mapstructure:"penalty_weight"`

	// WarningThreshold is the risk score at or above which a reading is an Anomaly.
	WarningThreshold int `mapstructure:"warning_threshold"`
}

// DefaultConfig returns the reference constants.
func DefaultConfig() Config {
	return Config{
		HeartRateBand:    Band{Low: 60, High: 100},
		BloodOxygenBand:  Band{Low: 95, High: 100},
		HeartRateSpan:    30,
		OxygenSpan:       10,
		ModelScale:       0.1,
		ModelWeight:      0.6,
		PenaltyWeight:    0.6,
		WarningThreshold: 50,
	}
}

// Validate checks the constants.
func (c Config) Validate() error {
	if c.HeartRateBand.Low > c.HeartRateBand.High {
		return errors.New("heart rate band is inverted")
	}
	if c.BloodOxygenBand.Low > c.BloodOxygenBand.High {
		return errors.New("blood oxygen band is inverted")
	}
	if c.HeartRateSpan <= 0 || c.OxygenSpan <= 0 || c.ModelScale <= 0 {
		return errors.New("spans and model scale must be positive")
	}
	if c.ModelWeight < 0 || c.PenaltyWeight < 0 {
		return errors.New("weights must not be negative")
	}
	if c.WarningThreshold < 0 || c.WarningThreshold > 100 {
		return fmt.Errorf("warning threshold %d outside [0, 100]", c.WarningThreshold)
	}
	return nil
}

// Assessment is the scored outcome for one reading.
type Assessment struct {
	Result    vitals.Result
	Status    vitals.Status
	RiskScore int
	// Signal and Penalty are the blended components, each in [0, 1].
	Signal  float64
	Penalty float64
}

// Scorer computes assessments. It is immutable and safe for concurrent use.
type Scorer struct {
	cfg       Config
	threshold float64
	surface   *Surface
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithSurface makes the scorer use the monotone envelope of the model score.
func WithSurface(s *Surface) Option {
	return func(sc *Scorer) {
		sc.surface = s
	}
}

// NewScorer returns a scorer for a model whose label threshold is threshold.
func NewScorer(cfg Config, threshold float64, opts ...Option) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("risk config: %w", err)
	}
	s := &Scorer{cfg: cfg, threshold: threshold}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the scorer constants.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score converts a model label and raw score for sample into an Assessment.
func (s *Scorer) Score(label vitals.Result, raw float64, sample vitals.HealthSample) Assessment {
	score := raw
	if s.surface != nil {
		if env, ok := s.surface.Envelope(sample); ok && env > score {
			score = env
		}
	}

	m := clamp01(0.5 + (score-s.threshold)/(2*s.cfg.ModelScale))
	p := s.penalty(sample)
	risk := int(math.Round(100 * clamp01(s.cfg.ModelWeight*m+s.cfg.PenaltyWeight*p)))

	result := vitals.ResultNormal
	if label == vitals.ResultAnomaly || risk >= s.cfg.WarningThreshold {
		result = vitals.ResultAnomaly
	}

	return Assessment{
		Result:    result,
		Status:    vitals.StatusFor(result),
		RiskScore: risk,
		Signal:    m,
		Penalty:   p,
	}
}

func (s *Scorer) penalty(sample vitals.HealthSample) float64 {
	hr := s.cfg.HeartRateBand.Deviation(float64(sample.HeartRate)) / s.cfg.HeartRateSpan
	o2 := s.cfg.BloodOxygenBand.Deviation(float64(sample.BloodOxygen)) / s.cfg.OxygenSpan
	return clamp01(hr + o2)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
