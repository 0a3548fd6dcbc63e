// Package vitals defines the health reading data model shared by training and inference.
package vitals

import (
	"fmt"
	"strings"
)

// Physical bounds accepted for a single reading.
const (
	MinHeartRate   = 40
	MaxHeartRate   = 200
	MinBloodOxygen = 70
	MaxBloodOxygen = 100
)

// Field names used in requests, responses and validation errors.
const (
	FieldHeartRate     = "heart_rate"
	FieldBloodOxygen   = "blood_oxygen"
	FieldActivityLevel = "activity_level"
)

// ActivityLevel is the categorical activity feature.
type ActivityLevel string

// Known activity levels.
const (
	ActivityLow      ActivityLevel = "low"
	ActivityModerate ActivityLevel = "moderate"
	ActivityHigh     ActivityLevel = "high"
)

// Activities returns the activity vocabulary in encoding order.
func Activities() []ActivityLevel {
	return []ActivityLevel{ActivityLow, ActivityModerate, ActivityHigh}
}

// ParseActivity normalizes s and checks it against the vocabulary.
func ParseActivity(s string) (ActivityLevel, error) {
	a := ActivityLevel(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Activities() {
		if a == known {
			return a, nil
		}
	}
	return "", &ValidationError{
		Field:  FieldActivityLevel,
		Reason: "must be low, moderate, or high",
	}
}

// HealthSample is one observation, synthetic or submitted.
type HealthSample struct {
	HeartRate     int           `json:"heart_rate"`
	BloodOxygen   int           `json:"blood_oxygen"`
	ActivityLevel ActivityLevel `json:"activity_level"`
}

// Validate checks the sample against the physical bounds and the vocabulary.
func (s HealthSample) Validate() error {
	if s.HeartRate < MinHeartRate || s.HeartRate > MaxHeartRate {
		return &ValidationError{
			Field:  FieldHeartRate,
			Reason: fmt.Sprintf("must be between %d and %d bpm", MinHeartRate, MaxHeartRate),
		}
	}
	if s.BloodOxygen < MinBloodOxygen || s.BloodOxygen > MaxBloodOxygen {
		return &ValidationError{
			Field:  FieldBloodOxygen,
			Reason: fmt.Sprintf("must be between %d and %d%%", MinBloodOxygen, MaxBloodOxygen),
		}
	}
	if _, err := ParseActivity(string(s.ActivityLevel)); err != nil {
		return err
	}
	return nil
}

func (s HealthSample) String() string {
	return fmt.Sprintf("hr=%d spo2=%d activity=%s", s.HeartRate, s.BloodOxygen, s.ActivityLevel)
}

// Result is the binary verdict of a prediction.
type Result string

const (
	ResultNormal  Result = "Normal"
	ResultAnomaly Result = "Anomaly"
)

// Status is the display status paired with a Result.
type Status string

const (
	StatusNormal  Status = "normal"
	StatusWarning Status = "warning"
)

// StatusFor returns the status that goes with r.
func StatusFor(r Result) Status {
	if r == ResultAnomaly {
		return StatusWarning
	}
	return StatusNormal
}

// PredictionResult is the response produced for a single reading.
type PredictionResult struct {
	Result    Result       `json:"result"`
	Status    Status       `json:"status"`
	RiskScore int          `json:"risk_score"`
	InputData HealthSample `json:"input_data"`
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
