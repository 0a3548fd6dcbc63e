package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hed1ad/vitalguard/internal/version"
	"github.com/hed1ad/vitalguard/pkg/dataset"
	"github.com/hed1ad/vitalguard/pkg/detectors"
	"github.com/hed1ad/vitalguard/pkg/risk"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	v, err := Load("")
	require.NoError(t, err)

	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "./data/model.gob", cfg.Model.Path)
	assert.Equal(t, detectors.DefaultConfig(), cfg.Training)
	assert.Equal(t, dataset.DefaultConfig(), cfg.Dataset)
	assert.Equal(t, risk.DefaultConfig(), cfg.Risk)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitalguard.yaml")
	content := `
server:
  port: 8080
model:
  path: /var/lib/vitalguard/model.gob
risk:
  warning_threshold: 60
training:
  trees: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("VITALGUARD_SERVER_PORT", "9090")
	t.Setenv("VITALGUARD_LOGGING_LEVEL", "debug")

	v, err := Load(path)
	require.NoError(t, err)
	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/vitalguard/model.gob", cfg.Model.Path)
	assert.Equal(t, 60, cfg.Risk.WarningThreshold)
	assert.Equal(t, 50, cfg.Training.Trees)
	assert.Equal(t, detectors.DefaultConfig().SampleSize, cfg.Training.SampleSize)
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	v, err := Load(filepath.Join("..", "..", "configs", "vitalguard.yaml"))
	require.NoError(t, err)
	fromFile, err := Decode(v)
	require.NoError(t, err)

	t.Chdir(t.TempDir())
	v, err = Load("")
	require.NoError(t, err)
	defaults, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, defaults, fromFile)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		want    zapcore.Level
		wantErr bool
	}{
		{"json info", "info", "json", zapcore.InfoLevel, false},
		{"console debug", "debug", "console", zapcore.DebugLevel, false},
		{"text alias", "WARN", "text", zapcore.WarnLevel, false},
		{"empty format", "warn", "", zapcore.WarnLevel, false},
		{"bad level", "loud", "json", 0, true},
		{"bad format", "info", "xml", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			v, err := Load("")
			require.NoError(t, err)
			v.Set("logging.level", tt.level)
			v.Set("logging.format", tt.format)

			logger, err := NewLogger(v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger("info", "json", &buf)
	require.NoError(t, err)

	logger.Debug("dropped")
	logger.Info("model loaded", zap.Duration("took", 1500*time.Millisecond))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "model loaded", entry["msg"])
	assert.Equal(t, "vitalguard", entry["service"])
	assert.Equal(t, version.Short(), entry["version"])
	assert.Equal(t, "1.5s", entry["took"])
	ts, ok := entry["ts"].(string)
	require.True(t, ok)
	_, err = time.Parse("2006-01-02T15:04:05.000Z0700", ts)
	assert.NoError(t, err)

	buf.Reset()
	logger, err = newLogger("info", "console", &buf)
	require.NoError(t, err)
	logger.Warn("slow")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), `"service": "vitalguard"`)
}
