// Package dataset generates reproducible synthetic training corpora of vital-sign readings.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Normal describes a clipped normal distribution.
type Normal struct {
	Mean   float64 `mapstructure:"mean"`
	StdDev float64 `mapstructure:"stddev"`
	Min    float64 `mapstructure:"min"`
	Max    float64 `mapstructure:"max"`
}

// Range describes a uniform distribution over [Min, Max].
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// ActivityWeight is the relative frequency of one activity level.
type ActivityWeight struct {
	Activity vitals.ActivityLevel `mapstructure:"activity"`
	Weight   float64              `mapstructure:"weight"`
}

// Config holds every distribution parameter used by the generator.
type Config struct {
	Samples       int     `mapstructure:"samples"`
	Contamination float64 `mapstructure:"contamination"`

	HeartRate   Normal           `mapstructure:"heart_rate"`
	BloodOxygen Normal           `mapstructure:"blood_oxygen"`
	Activity    []ActivityWeight `mapstructure:"activity"`

	// HeartRateAnomalyShare is the fraction of injected anomalies that alter heart rate;
	// the rest lower blood oxygen.
	HeartRateAnomalyShare float64 `mapstructure:"heart_rate_anomaly_share"`
	LowHeartRate          Range   `mapstructure:"low_heart_rate"`
	HighHeartRate         Range   `mapstructure:"high_heart_rate"`
	LowBloodOxygen        Range   `mapstructure:"low_blood_oxygen"`
}

// DefaultConfig returns the reference distributions.
func DefaultConfig() Config {
	return Config{
		Samples:       100,
		Contamination: 0.1,
		HeartRate:     Normal{Mean: 75, StdDev: 12, Min: 40, Max: 120},
		BloodOxygen:   Normal{Mean: 98, StdDev: 2, Min: 85, Max: 100},
		Activity: []ActivityWeight{
			{Activity: vitals.ActivityLow, Weight: 0.3},
			{Activity: vitals.ActivityModerate, Weight: 0.5},
			{Activity: vitals.ActivityHigh, Weight: 0.2},
		},
		HeartRateAnomalyShare: 0.5,
		LowHeartRate:          Range{Min: 40, Max: 48},
		HighHeartRate:         Range{Min: 150, Max: 190},
		LowBloodOxygen:        Range{Min: 80, Max: 90},
	}
}

// Validate checks that the configuration can only produce valid samples.
func (c Config) Validate() error {
	if c.Samples <= 0 {
		return errors.New("samples must be positive")
	}
	if c.Contamination < 0 || c.Contamination > 0.5 {
		return fmt.Errorf("contamination %v outside [0, 0.5]", c.Contamination)
	}
	if c.HeartRateAnomalyShare < 0 || c.HeartRateAnomalyShare > 1 {
		return fmt.Errorf("heart rate anomaly share %v outside [0, 1]", c.HeartRateAnomalyShare)
	}
	if err := c.HeartRate.check("heart_rate", vitals.MinHeartRate, vitals.MaxHeartRate); err != nil {
		return err
	}
	if err := c.BloodOxygen.check("blood_oxygen", vitals.MinBloodOxygen, vitals.MaxBloodOxygen); err != nil {
		return err
	}
	if err := c.LowHeartRate.check("low_heart_rate", vitals.MinHeartRate, vitals.MaxHeartRate); err != nil {
		return err
	}
	if err := c.HighHeartRate.check("high_heart_rate", vitals.MinHeartRate, vitals.MaxHeartRate); err != nil {
		return err
	}
	if err := c.LowBloodOxygen.check("low_blood_oxygen", vitals.MinBloodOxygen, vitals.MaxBloodOxygen); err != nil {
		return err
	}

	if len(c.Activity) == 0 {
		return errors.New("activity weights are empty")
	}
	for _, w := range c.Activity {
		if a, err := vitals.ParseActivity(string(w.Activity)); err != nil || a != w.Activity {
			return fmt.Errorf("activity weight: unknown activity %q", w.Activity)
		}
		if w.Weight <= 0 {
			return fmt.Errorf("activity %s weight must be positive", w.Activity)
		}
	}
	return nil
}

func (n Normal) check(name string, lo, hi float64) error {
	if n.StdDev < 0 {
		return fmt.Errorf("%s stddev must not be negative", name)
	}
	return Range{Min: n.Min, Max: n.Max}.check(name, lo, hi)
}

func (r Range) check(name string, lo, hi float64) error {
	if r.Min > r.Max {
		return fmt.Errorf("%s min %v above max %v", name, r.Min, r.Max)
	}
	if r.Min < lo || r.Max > hi {
		return fmt.Errorf("%s [%v, %v] outside physical bounds [%v, %v]", name, r.Min, r.Max, lo, hi)
	}
	return nil
}

// Corpus is an ordered training set and the parameters that produced it.
type Corpus struct {
	Seed          int64
	Contamination float64
	Samples       []vitals.HealthSample
	// Injected holds the ascending indices of samples drawn from anomaly distributions.
	Injected []int
}

// Generator draws corpora from a fixed configuration.
type Generator struct {
	cfg Config
}

// NewGenerator validates cfg and returns a generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dataset config: %w", err)
	}
	return &Generator{cfg: cfg}, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Generate returns the corpus for seed. Equal seeds yield identical corpora.
func (g *Generator) Generate(seed int64) Corpus {
	rng := rand.New(rand.NewSource(seed))
	n := g.cfg.Samples

	samples := make([]vitals.HealthSample, n)
	for i := range samples {
		samples[i] = vitals.HealthSample{
			HeartRate:     round(g.cfg.HeartRate.draw(rng)),
			BloodOxygen:   round(g.cfg.BloodOxygen.draw(rng)),
			ActivityLevel: g.drawActivity(rng),
		}
	}

	nAnomalies := int(math.Round(float64(n) * g.cfg.Contamination))
	injected := rng.Perm(n)[:nAnomalies]
	for _, idx := range injected {
		if rng.Float64() < g.cfg.HeartRateAnomalyShare {
			band := g.cfg.HighHeartRate
			if rng.Float64() < 0.5 {
				band = g.cfg.LowHeartRate
			}
			samples[idx].HeartRate = round(band.draw(rng))
		} else {
			samples[idx].BloodOxygen = round(g.cfg.LowBloodOxygen.draw(rng))
		}
	}

	return Corpus{
		Seed:          seed,
		Contamination: g.cfg.Contamination,
		Samples:       samples,
		Injected:      sortedCopy(injected),
	}
}

func (g *Generator) drawActivity(rng *rand.Rand) vitals.ActivityLevel {
	var total float64
	for _, w := range g.cfg.Activity {
		total += w.Weight
	}

	u := rng.Float64() * total
	for _, w := range g.cfg.Activity {
		if u < w.Weight {
			return w.Activity
		}
		u -= w.Weight
	}
	return g.cfg.Activity[len(g.cfg.Activity)-1].Activity
}

func (n Normal) draw(rng *rand.Rand) float64 {
	v := n.Mean + rng.NormFloat64()*n.StdDev
	return math.Min(n.Max, math.Max(n.Min, v))
}

func (r Range) draw(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

func round(v float64) int {
	return int(math.Round(v))
}

func sortedCopy(idx []int) []int {
	out := make([]int, len(idx))
	copy(out, idx)
	sort.Ints(out)
	return out
}
