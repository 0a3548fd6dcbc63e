package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

const testThreshold = 0.55

func sample(hr, o2 int, act vitals.ActivityLevel) vitals.HealthSample {
	return vitals.HealthSample{HeartRate: hr, BloodOxygen: o2, ActivityLevel: act}
}

// bumpy is a deliberately non-monotone stand-in for a random-partition model.
func bumpy(s vitals.HealthSample) (float64, error) {
	v := 0.45 + 0.08*math.Sin(float64(s.HeartRate)/3) + 0.05*math.Cos(float64(s.BloodOxygen))
	if s.ActivityLevel == vitals.ActivityHigh {
		v += 0.02
	}
	return v, nil
}

func TestBandDeviation(t *testing.T) {
	b := Band{Low: 60, High: 100}
	assert.Equal(t, 0.0, b.Deviation(60))
	assert.Equal(t, 0.0, b.Deviation(80))
	assert.Equal(t, 0.0, b.Deviation(100))
	assert.Equal(t, 19.0, b.Deviation(41))
	assert.Equal(t, 80.0, b.Deviation(180))
}

func TestScore(t *testing.T) {
	sc, err := NewScorer(DefaultConfig(), testThreshold)
	require.NoError(t, err)

	tests := []struct {
		name       string
		label      vitals.Result
		raw        float64
		sample     vitals.HealthSample
		wantResult vitals.Result
		wantRisk   int
	}{
		{
			name:       "typical reading well below threshold",
			label:      vitals.ResultNormal,
			raw:        0.40,
			sample:     sample(75, 98, vitals.ActivityModerate),
			wantResult: vitals.ResultNormal,
			wantRisk:   0,
		},
		{
			name:       "raw exactly at threshold",
			label:      vitals.ResultNormal,
			raw:        testThreshold,
			sample:     sample(75, 98, vitals.ActivityModerate),
			wantResult: vitals.ResultNormal,
			wantRisk:   30,
		},
		{
			name:       "model flags despite low score",
			label:      vitals.ResultAnomaly,
			raw:        0.56,
			sample:     sample(75, 98, vitals.ActivityLow),
			wantResult: vitals.ResultAnomaly,
			wantRisk:   33,
		},
		{
			name:       "penalty alone crosses warning threshold",
			label:      vitals.ResultNormal,
			raw:        0.40,
			sample:     sample(180, 80, vitals.ActivityHigh),
			wantResult: vitals.ResultAnomaly,
			wantRisk:   60,
		},
		{
			name:       "both signals saturate",
			label:      vitals.ResultAnomaly,
			raw:        0.80,
			sample:     sample(180, 80, vitals.ActivityHigh),
			wantResult: vitals.ResultAnomaly,
			wantRisk:   100,
		},
		{
			name:       "low heart rate at rest",
			label:      vitals.ResultNormal,
			raw:        0.45,
			sample:     sample(41, 99, vitals.ActivityLow),
			wantResult: vitals.ResultNormal,
			wantRisk:   38,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sc.Score(tt.label, tt.raw, tt.sample)
			assert.Equal(t, tt.wantResult, got.Result)
			assert.Equal(t, vitals.StatusFor(tt.wantResult), got.Status)
			assert.Equal(t, tt.wantRisk, got.RiskScore)
		})
	}
}

func TestScoreBoundedAndConsistent(t *testing.T) {
	sc, err := NewScorer(DefaultConfig(), testThreshold)
	require.NoError(t, err)

	for hr := vitals.MinHeartRate; hr <= vitals.MaxHeartRate; hr += 5 {
		for o2 := vitals.MinBloodOxygen; o2 <= vitals.MaxBloodOxygen; o2 += 3 {
			for _, raw := range []float64{0, 0.3, 0.55, 0.9, 1} {
				for _, label := range []vitals.Result{vitals.ResultNormal, vitals.ResultAnomaly} {
					a := sc.Score(label, raw, sample(hr, o2, vitals.ActivityModerate))
					assert.GreaterOrEqual(t, a.RiskScore, 0)
					assert.LessOrEqual(t, a.RiskScore, 100)
					assert.Equal(t, a.Result == vitals.ResultAnomaly, a.Status == vitals.StatusWarning)
					if label == vitals.ResultAnomaly {
						assert.Equal(t, vitals.ResultAnomaly, a.Result)
					}
				}
			}
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted heart band", func(c *Config) { c.HeartRateBand = Band{Low: 100, High: 60} }},
		{"inverted oxygen band", func(c *Config) { c.BloodOxygenBand = Band{Low: 100, High: 95} }},
		{"zero span", func(c *Config) { c.OxygenSpan = 0 }},
		{"zero model scale", func(c *Config) { c.ModelScale = 0 }},
		{"negative weight", func(c *Config) { c.ModelWeight = -1 }},
		{"threshold above 100", func(c *Config) { c.WarningThreshold = 101 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewScorer(cfg, testThreshold)
			assert.Error(t, err)
		})
	}
}

func TestSurfaceEnvelope(t *testing.T) {
	surface, err := BuildSurface(DefaultConfig(), bumpy)
	require.NoError(t, err)

	for _, act := range vitals.Activities() {
		// inside both bands the envelope is the raw score itself
		inside := sample(80, 97, act)
		env, ok := surface.Envelope(inside)
		require.True(t, ok)
		raw, _ := bumpy(inside)
		assert.Equal(t, raw, env)

		// never below the raw score anywhere
		for hr := vitals.MinHeartRate; hr <= vitals.MaxHeartRate; hr++ {
			for o2 := vitals.MinBloodOxygen; o2 <= vitals.MaxBloodOxygen; o2++ {
				s := sample(hr, o2, act)
				env, ok := surface.Envelope(s)
				require.True(t, ok)
				raw, _ := bumpy(s)
				assert.GreaterOrEqual(t, env, raw)
			}
		}
	}

	_, ok := surface.Envelope(sample(30, 97, vitals.ActivityLow))
	assert.False(t, ok)
	_, ok = surface.Envelope(sample(80, 97, "unknown"))
	assert.False(t, ok)
}

func TestSurfacePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := BuildSurface(DefaultConfig(), func(vitals.HealthSample) (float64, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestRiskMonotoneWithSurface(t *testing.T) {
	cfg := DefaultConfig()
	surface, err := BuildSurface(cfg, bumpy)
	require.NoError(t, err)
	sc, err := NewScorer(cfg, 0.5, WithSurface(surface))
	require.NoError(t, err)

	risk := func(hr, o2 int, act vitals.ActivityLevel) int {
		s := sample(hr, o2, act)
		raw, _ := bumpy(s)
		return sc.Score(vitals.ResultNormal, raw, s).RiskScore
	}

	for _, act := range vitals.Activities() {
		for o2 := vitals.MinBloodOxygen; o2 <= vitals.MaxBloodOxygen; o2++ {
			// heart rate above the band
			for hr := int(cfg.HeartRateBand.High); hr < vitals.MaxHeartRate; hr++ {
				assert.LessOrEqual(t, risk(hr, o2, act), risk(hr+1, o2, act), "hr %d->%d spo2 %d %s", hr, hr+1, o2, act)
			}
			// heart rate below the band
			for hr := int(cfg.HeartRateBand.Low); hr > vitals.MinHeartRate; hr-- {
				assert.LessOrEqual(t, risk(hr, o2, act), risk(hr-1, o2, act), "hr %d->%d spo2 %d %s", hr, hr-1, o2, act)
			}
		}
		for hr := vitals.MinHeartRate; hr <= vitals.MaxHeartRate; hr++ {
			// oxygen below the band
			for o2 := int(cfg.BloodOxygenBand.Low); o2 > vitals.MinBloodOxygen; o2-- {
				assert.LessOrEqual(t, risk(hr, o2, act), risk(hr, o2-1, act), "spo2 %d->%d hr %d %s", o2, o2-1, hr, act)
			}
		}
	}
}
