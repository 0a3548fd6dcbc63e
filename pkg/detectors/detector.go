// Package detectors provides unsupervised anomaly detection algorithms.
package detectors

// Detector is the common interface for all anomaly detection algorithms.
type Detector interface {
	// Fit trains the detector on historical data.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// Predict returns anomaly scores for the given samples.
	// Scores are normalized to [0, 1] where higher values indicate anomalies.
	Predict(data [][]float64) ([]float64, error)

	// PredictOne returns the anomaly score for a single sample.
	PredictOne(sample []float64) (float64, error)

	// Evaluate scores a single sample and classifies it against the threshold.
	Evaluate(sample []float64) (Score, error)

	// Threshold returns the score above which a sample is anomalous.
	Threshold() float64

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Score represents an anomaly detection result.
type Score struct {
	// Value is the anomaly score in [0, 1].
	Value float64
	// IsAnomaly indicates if the score exceeds the threshold.
	IsAnomaly bool
	// Features contains the original input features.
	Features []float64
}

// Config holds common configuration for detectors.
type Config struct {
	// Trees is the ensemble size.
	Trees int `mapstructure:"trees"`
	// SampleSize is the per-tree subsample size.
	SampleSize int `mapstructure:"sample_size"`
	// Contamination is the expected proportion of anomalies in training data.
	Contamination float64 `mapstructure:"contamination"`
	// RandomSeed for reproducibility.
	RandomSeed int64 `mapstructure:"seed"`
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Trees:         100,
		SampleSize:    256,
		Contamination: 0.1,
		RandomSeed:    42,
	}
}
