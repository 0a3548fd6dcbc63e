package features

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

func TestEncode(t *testing.T) {
	e := NewEncoder()

	tests := []struct {
		activity vitals.ActivityLevel
		wantCode int
	}{
		{vitals.ActivityLow, 0},
		{vitals.ActivityModerate, 1},
		{vitals.ActivityHigh, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.activity), func(t *testing.T) {
			code, err := e.Encode(tt.activity)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestEncodeRejectsUnknown(t *testing.T) {
	e := NewEncoder()

	for _, bad := range []vitals.ActivityLevel{"", "LOW", "Moderate", "extreme", " low"} {
		t.Run(string(bad), func(t *testing.T) {
			_, err := e.Encode(bad)
			var uerr *UnknownCategoryError
			require.True(t, errors.As(err, &uerr))
			assert.Equal(t, string(bad), uerr.Value)
		})
	}
}

func TestEncodeSample(t *testing.T) {
	e := NewEncoder()

	v, err := e.EncodeSample(vitals.HealthSample{HeartRate: 82, BloodOxygen: 96, ActivityLevel: vitals.ActivityHigh})
	require.NoError(t, err)
	assert.Equal(t, Vector{82, 96, 2}, v)

	_, err = e.EncodeSample(vitals.HealthSample{HeartRate: 82, BloodOxygen: 96, ActivityLevel: "resting"})
	assert.Error(t, err)
}

func TestEncodeAll(t *testing.T) {
	e := NewEncoder()
	samples := []vitals.HealthSample{
		{HeartRate: 70, BloodOxygen: 99, ActivityLevel: vitals.ActivityLow},
		{HeartRate: 120, BloodOxygen: 94, ActivityLevel: vitals.ActivityHigh},
	}

	rows, err := e.EncodeAll(samples)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{70, 99, 0}, {120, 94, 2}}, rows)

	samples = append(samples, vitals.HealthSample{HeartRate: 70, BloodOxygen: 99, ActivityLevel: "?"})
	_, err = e.EncodeAll(samples)
	assert.ErrorContains(t, err, "sample 2")
}

func TestFromVocabulary(t *testing.T) {
	e, err := FromVocabulary(vitals.Activities())
	require.NoError(t, err)
	assert.Equal(t, vitals.Activities(), e.Vocabulary())

	_, err = FromVocabulary([]vitals.ActivityLevel{vitals.ActivityHigh, vitals.ActivityLow, vitals.ActivityModerate})
	assert.Error(t, err)

	_, err = FromVocabulary([]vitals.ActivityLevel{vitals.ActivityLow})
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	e := NewEncoder()
	s := vitals.HealthSample{HeartRate: 60, BloodOxygen: 97, ActivityLevel: vitals.ActivityModerate}

	v, err := e.Extract(s)
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 97, 1}, v)

	v, err = e.Extract(&s)
	require.NoError(t, err)
	assert.Len(t, v, len(e.FeatureNames()))

	_, err = e.Extract("not a sample")
	assert.Error(t, err)
}

func TestEncoderConcurrentUse(t *testing.T) {
	e := NewEncoder()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := vitals.Activities()[i%3]
			code, err := e.Encode(a)
			assert.NoError(t, err)
			assert.Equal(t, i%3, code)
		}(i)
	}
	wg.Wait()
}
