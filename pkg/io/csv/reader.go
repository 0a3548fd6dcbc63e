// Package csv reads and writes health samples as CSV.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	vio "github.com/hed1ad/vitalguard/pkg/io"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

var (
	_ vio.Reader = (*Reader)(nil)
	_ vio.Writer = (*Writer)(nil)
)

// Reader reads samples from CSV files.
type Reader struct {
	closer    io.Closer
	reader    *csv.Reader
	hasHeader bool
	headers   []string
	line      int
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// NewReader creates a new CSV reader over a file.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := newReader(file, file, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// NewStreamReader creates a CSV reader over an arbitrary stream.
func NewStreamReader(src io.Reader, opts ...Option) (*Reader, error) {
	return newReader(src, nil, opts...)
}

func newReader(src io.Reader, closer io.Closer, opts ...Option) (*Reader, error) {
	r := &Reader{
		closer:    closer,
		reader:    csv.NewReader(src),
		hasHeader: true,
	}
	r.reader.FieldsPerRecord = len(vio.Header)
	r.reader.TrimLeadingSpace = true

	for _, opt := range opts {
		opt(r)
	}

	// Read header if present
	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if err := checkHeader(headers); err != nil {
			return nil, err
		}
		r.headers = headers
		r.line++
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Read returns all rows as validated samples. Any malformed row fails the read.
func (r *Reader) Read() ([]vitals.HealthSample, error) {
	var samples []vitals.HealthSample

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		r.line++
		if err != nil {
			return nil, err
		}

		s, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		samples = append(samples, s)
	}

	return samples, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func checkHeader(headers []string) error {
	for i, want := range vio.Header {
		if strings.TrimSpace(headers[i]) != want {
			return fmt.Errorf("column %d is %q, want %q", i, headers[i], want)
		}
	}
	return nil
}

// parseRow converts a record to a validated sample.
func parseRow(record []string) (vitals.HealthSample, error) {
	if len(record) == 0 {
		return vitals.HealthSample{}, errors.New("empty row")
	}

	hr, err := strconv.Atoi(strings.TrimSpace(record[0]))
	if err != nil {
		return vitals.HealthSample{}, fmt.Errorf("%s: %w", vitals.FieldHeartRate, err)
	}
	spo2, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil {
		return vitals.HealthSample{}, fmt.Errorf("%s: %w", vitals.FieldBloodOxygen, err)
	}
	activity, err := vitals.ParseActivity(record[2])
	if err != nil {
		return vitals.HealthSample{}, err
	}

	s := vitals.HealthSample{HeartRate: hr, BloodOxygen: spo2, ActivityLevel: activity}
	if err := s.Validate(); err != nil {
		return vitals.HealthSample{}, err
	}
	return s, nil
}
