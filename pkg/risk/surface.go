package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// RawFunc returns the raw model score for a sample.
type RawFunc func(vitals.HealthSample) (float64, error)

const (
	hrCells = vitals.MaxHeartRate - vitals.MinHeartRate + 1
	o2Cells = vitals.MaxBloodOxygen - vitals.MinBloodOxygen + 1
)

// Surface is the precomputed envelope of the model score over the integer input domain.
//
// For a reading x, the envelope is the largest raw score over the lattice rectangle between x
// and its projection onto the normal bands. It is at least the raw score at x and never
// decreases as heart rate or blood oxygen moves further from its band.
type Surface struct {
	envelope map[vitals.ActivityLevel][]float64
}

// BuildSurface evaluates raw on every valid reading and folds the scores into envelopes.
func BuildSurface(cfg Config, raw RawFunc) (*Surface, error) {
	hrOrder := outward(vitals.MinHeartRate, hrCells, cfg.HeartRateBand)
	o2Order := outward(vitals.MinBloodOxygen, o2Cells, cfg.BloodOxygenBand)

	s := &Surface{envelope: make(map[vitals.ActivityLevel][]float64, len(vitals.Activities()))}
	for _, act := range vitals.Activities() {
		grid := make([]float64, hrCells*o2Cells)
		for h := 0; h < hrCells; h++ {
			for o := 0; o < o2Cells; o++ {
				v, err := raw(vitals.HealthSample{
					HeartRate:     vitals.MinHeartRate + h,
					BloodOxygen:   vitals.MinBloodOxygen + o,
					ActivityLevel: act,
				})
				if err != nil {
					return nil, fmt.Errorf("score %s hr=%d spo2=%d: %w", act, vitals.MinHeartRate+h, vitals.MinBloodOxygen+o, err)
				}
				grid[h*o2Cells+o] = v
			}
		}

		// Cells closer to the bands are final before any cell that depends on them.
		for _, h := range hrOrder {
			for _, o := range o2Order {
				v := grid[h*o2Cells+o]
				if nh, ok := inward(vitals.MinHeartRate, hrCells, h, cfg.HeartRateBand); ok {
					v = math.Max(v, grid[nh*o2Cells+o])
				}
				if no, ok := inward(vitals.MinBloodOxygen, o2Cells, o, cfg.BloodOxygenBand); ok {
					v = math.Max(v, grid[h*o2Cells+no])
				}
				grid[h*o2Cells+o] = v
			}
		}
		s.envelope[act] = grid
	}
	return s, nil
}

// Envelope returns the envelope score for sample; ok is false outside the domain.
func (s *Surface) Envelope(sample vitals.HealthSample) (float64, bool) {
	grid, ok := s.envelope[sample.ActivityLevel]
	if !ok {
		return 0, false
	}
	h := sample.HeartRate - vitals.MinHeartRate
	o := sample.BloodOxygen - vitals.MinBloodOxygen
	if h < 0 || h >= hrCells || o < 0 || o >= o2Cells {
		return 0, false
	}
	return grid[h*o2Cells+o], true
}

// outward lists cell offsets ordered by deviation from band, nearest first.
func outward(base, cells int, band Band) []int {
	order := make([]int, cells)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return band.Deviation(float64(base+order[a])) < band.Deviation(float64(base+order[b]))
	})
	return order
}

// inward returns the neighbouring cell one step toward band, if the cell lies outside it.
func inward(base, cells, cell int, band Band) (int, bool) {
	v := float64(base + cell)
	switch {
	case v < band.Low && cell+1 < cells:
		return cell + 1, true
	case v > band.High && cell > 0:
		return cell - 1, true
	default:
		return 0, false
	}
}
