package csv

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	vio "github.com/hed1ad/vitalguard/pkg/io"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Writer writes samples as CSV rows.
type Writer struct {
	w           *csv.Writer
	closer      io.Closer
	wroteHeader bool
}

// NewWriter creates a writer over dst. If dst is an io.Closer it is closed by Close;
// wrap dst to hide Close when the caller keeps ownership, as with stdout.
func NewWriter(dst io.Writer) *Writer {
	w := &Writer{w: csv.NewWriter(dst)}
	if c, ok := dst.(io.Closer); ok {
		w.closer = c
	}
	return w
}

// Write outputs a single sample, emitting the header first.
func (w *Writer) Write(s vitals.HealthSample) error {
	if !w.wroteHeader {
		if err := w.w.Write(vio.Header); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	return w.w.Write([]string{
		strconv.Itoa(s.HeartRate),
		strconv.Itoa(s.BloodOxygen),
		string(s.ActivityLevel),
	})
}

// WriteAll outputs multiple samples and flushes.
func (w *Writer) WriteAll(samples []vitals.HealthSample) error {
	for _, s := range samples {
		if err := w.Write(s); err != nil {
			return err
		}
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes buffered rows and closes the destination when possible.
// The destination is closed even when the flush fails.
func (w *Writer) Close() error {
	w.w.Flush()
	flushErr := w.w.Error()
	if w.closer == nil {
		return flushErr
	}
	return errors.Join(flushErr, w.closer.Close())
}
