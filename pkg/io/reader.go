// Package io provides input/output contracts for health sample data.
package io

import "github.com/hed1ad/vitalguard/pkg/vitals"

// Header is the column layout used for tabular sample files.
var Header = []string{vitals.FieldHeartRate, vitals.FieldBloodOxygen, vitals.FieldActivityLevel}

// Reader is the interface for reading samples from various sources.
type Reader interface {
	// Read returns the complete dataset.
	Read() ([]vitals.HealthSample, error)

	// Close releases resources.
	Close() error
}

// FeatureExtractor extracts numerical features from raw data.
type FeatureExtractor interface {
	// Extract converts raw input to feature vector.
	Extract(data any) ([]float64, error)

	// FeatureNames returns the names of extracted features.
	FeatureNames() []string
}

// Writer is the interface for writing samples.
type Writer interface {
	// Write outputs a single sample.
	Write(sample vitals.HealthSample) error

	// WriteAll outputs multiple samples.
	WriteAll(samples []vitals.HealthSample) error

	// Close flushes and releases resources.
	Close() error
}
