package model

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hed1ad/vitalguard/pkg/detectors/iforest"
	"github.com/hed1ad/vitalguard/pkg/features"
	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Artifact format identification. Any other tag or version is refused on load.
const (
	FormatTag     = "vitalguard/model"
	FormatVersion = 1
)

var (
	// ErrArtifactMissing is returned when no artifact exists at the path or it cannot be opened.
	ErrArtifactMissing = errors.New("model artifact missing")
	// ErrArtifactCorrupt is returned when the artifact cannot be decoded or has the wrong format.
	ErrArtifactCorrupt = errors.New("model artifact corrupt")
)

// header precedes the body so version checks never touch the payload.
type header struct {
	Format  string
	Version int
}

type body struct {
	RunID         string
	TrainedAt     time.Time
	Seed          int64
	CorpusSeed    int64
	Contamination float64
	CorpusSize    int
	Vocabulary    []vitals.ActivityLevel
	Training      iforest.Stats
	Forest        []byte
}

// Encode writes the artifact to w.
func (m *Model) Encode(w io.Writer) error {
	forest, err := m.detector.Save()
	if err != nil {
		return fmt.Errorf("serialize forest: %w", err)
	}

	enc := gob.NewEncoder(w)
	if err := enc.Encode(header{Format: FormatTag, Version: FormatVersion}); err != nil {
		return err
	}
	return enc.Encode(body{
		RunID:         m.info.RunID,
		TrainedAt:     m.info.TrainedAt,
		Seed:          m.info.Seed,
		CorpusSeed:    m.info.CorpusSeed,
		Contamination: m.info.Contamination,
		CorpusSize:    m.info.CorpusSize,
		Vocabulary:    m.encoder.Vocabulary(),
		Training:      m.info.Training,
		Forest:        forest,
	})
}

// Save writes the artifact to path atomically: readers see either the old file or the new one.
func (m *Model) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := m.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// Decode reads an artifact from r.
func Decode(r io.Reader) (*Model, error) {
	dec := gob.NewDecoder(r)

	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrArtifactCorrupt, err)
	}
	if h.Format != FormatTag {
		return nil, fmt.Errorf("%w: format %q, want %q", ErrArtifactCorrupt, h.Format, FormatTag)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrArtifactCorrupt, h.Version, FormatVersion)
	}

	var b body
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrArtifactCorrupt, err)
	}

	enc, err := features.FromVocabulary(b.Vocabulary)
	if err != nil {
		return nil, fmt.Errorf("%w: encoder: %v", ErrArtifactCorrupt, err)
	}

	forest := iforest.New()
	if err := forest.Load(b.Forest); err != nil {
		return nil, fmt.Errorf("%w: forest: %v", ErrArtifactCorrupt, err)
	}
	if want := len(enc.FeatureNames()); forest.Features() != want {
		return nil, fmt.Errorf("%w: forest takes %d features, encoder yields %d", ErrArtifactCorrupt, forest.Features(), want)
	}
	threshold := forest.Threshold()
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside [0, 1]", ErrArtifactCorrupt, threshold)
	}

	return &Model{
		encoder:  enc,
		detector: forest,
		info: Info{
			RunID:         b.RunID,
			TrainedAt:     b.TrainedAt,
			Seed:          b.Seed,
			CorpusSeed:    b.CorpusSeed,
			Contamination: b.Contamination,
			CorpusSize:    b.CorpusSize,
			Threshold:     threshold,
			Training:      b.Training,
		},
	}, nil
}

// Load reads the artifact at path.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	if err != nil {
		// Any other open failure still means there is no usable artifact at path.
		return nil, fmt.Errorf("%w: unreadable %s: %v", ErrArtifactMissing, path, err)
	}
	defer f.Close()

	return Decode(f)
}
