// Package config loads vitalguard configuration from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hed1ad/vitalguard/pkg/dataset"
	"github.com/hed1ad/vitalguard/pkg/detectors"
	"github.com/hed1ad/vitalguard/pkg/risk"
)

// EnvPrefix is prepended to environment overrides, e.g. VITALGUARD_SERVER_PORT.
const EnvPrefix = "VITALGUARD"

// Config is the typed view of all settings.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Model     ModelConfig      `mapstructure:"model"`
	Training  detectors.Config `mapstructure:"training"`
	Dataset   dataset.Config   `mapstructure:"dataset"`
	Risk      risk.Config      `mapstructure:"risk"`
	RateLimit RateLimitConfig  `mapstructure:"ratelimit"`
	CORS      CORSConfig       `mapstructure:"cors"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address as host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig selects the zap level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ModelConfig locates the model artifact.
type ModelConfig struct {
	Path string `mapstructure:"path"`
}

// RateLimitConfig bounds per-client prediction traffic.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from configPath (or vitalguard.yaml in the usual places)
// and the environment.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("vitalguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/vitalguard")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return v, nil
}

// Decode unmarshals v into a Config.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("model.path", "./data/model.gob")

	train := detectors.DefaultConfig()
	v.SetDefault("training.trees", train.Trees)
	v.SetDefault("training.sample_size", train.SampleSize)
	v.SetDefault("training.contamination", train.Contamination)
	v.SetDefault("training.seed", train.RandomSeed)

	ds := dataset.DefaultConfig()
	v.SetDefault("dataset.samples", ds.Samples)
	v.SetDefault("dataset.contamination", ds.Contamination)
	v.SetDefault("dataset.heart_rate", normalMap(ds.HeartRate))
	v.SetDefault("dataset.blood_oxygen", normalMap(ds.BloodOxygen))
	activity := make([]map[string]any, len(ds.Activity))
	for i, w := range ds.Activity {
		activity[i] = map[string]any{"activity": string(w.Activity), "weight": w.Weight}
	}
	v.SetDefault("dataset.activity", activity)
	v.SetDefault("dataset.heart_rate_anomaly_share", ds.HeartRateAnomalyShare)
	v.SetDefault("dataset.low_heart_rate", rangeMap(ds.LowHeartRate))
	v.SetDefault("dataset.high_heart_rate", rangeMap(ds.HighHeartRate))
	v.SetDefault("dataset.low_blood_oxygen", rangeMap(ds.LowBloodOxygen))

	rc := risk.DefaultConfig()
	v.SetDefault("risk.heart_rate_band.low", rc.HeartRateBand.Low)
	v.SetDefault("risk.heart_rate_band.high", rc.HeartRateBand.High)
	v.SetDefault("risk.blood_oxygen_band.low", rc.BloodOxygenBand.Low)
	v.SetDefault("risk.blood_oxygen_band.high", rc.BloodOxygenBand.High)
	v.SetDefault("risk.heart_rate_span", rc.HeartRateSpan)
	v.SetDefault("risk.oxygen_span", rc.OxygenSpan)
	v.SetDefault("risk.model_scale", rc.ModelScale)
	v.SetDefault("risk.model_weight", rc.ModelWeight)
	v.SetDefault("risk.penalty_weight", rc.PenaltyWeight)
	v.SetDefault("risk.warning_threshold", rc.WarningThreshold)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 20)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})
}

func normalMap(n dataset.Normal) map[string]any {
	return map[string]any{"mean": n.Mean, "stddev": n.StdDev, "min": n.Min, "max": n.Max}
}

func rangeMap(r dataset.Range) map[string]any {
	return map[string]any{"min": r.Min, "max": r.Max}
}
