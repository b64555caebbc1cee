package config

import (
	"time"

	"github.com/rileyhilliard/trainwatch/internal/metrics"
	"github.com/rileyhilliard/trainwatch/internal/server"
	"github.com/rileyhilliard/trainwatch/internal/simulate"
	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// Training sources.
const (
	SourceLive      = "live"
	SourceSimulated = "simulated"
)

// DefaultServerURL is where a locally started `trainwatch serve` listens.
const DefaultServerURL = "http://localhost:8080"

// Config represents the complete .trainwatch.yaml configuration file.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Training  TrainingConfig  `mapstructure:"training"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Simulate  SimulateConfig  `mapstructure:"simulate"`
	Serve     ServeConfig     `mapstructure:"serve"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig locates the training service.
type ServerConfig struct {
	URL            string        `mapstructure:"url"`
	StartPath      string        `mapstructure:"start_path"`
	StatusPath     string        `mapstructure:"status_path"`
	SubscribePath  string        `mapstructure:"subscribe_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TrainingConfig controls what a start request asks for.
type TrainingConfig struct {
	Epochs int `mapstructure:"epochs"`

	// Source is "live" or "simulated".
	Source string `mapstructure:"source"`
}

// ReconnectConfig is the stream reconnection policy.
type ReconnectConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// DashboardConfig controls the terminal dashboard.
type DashboardConfig struct {
	// HistorySize caps retained loss points. 0 keeps everything.
	HistorySize   int           `mapstructure:"history_size"`
	FPSSamples    int           `mapstructure:"fps_samples"`
	ToastDuration time.Duration `mapstructure:"toast_duration"`
}

// SimulateConfig controls the offline metric generator.
type SimulateConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	MaxBatches int           `mapstructure:"max_batches"`
	BatchSize  int           `mapstructure:"batch_size"`
	Samples    int           `mapstructure:"samples"`
}

// ServeConfig controls the bundled mock training service.
type ServeConfig struct {
	Addr            string        `mapstructure:"addr"`
	Interval        time.Duration `mapstructure:"interval"`
	BatchesPerEpoch int           `mapstructure:"batches_per_epoch"`

	// DropAfter closes each stream after that many frames. 0 never drops.
	DropAfter int `mapstructure:"drop_after"`
	// AbortAfter ends each run with an error frame after that many
	// batches. 0 never aborts.
	AbortAfter int `mapstructure:"abort_after"`
}

// MetricsConfig exposes client telemetry. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `mapstructure:"level"`

	// File receives logs while the dashboard owns the terminal.
	File string `mapstructure:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	policy := stream.DefaultPolicy()
	return &Config{
		Server: ServerConfig{
			URL:            DefaultServerURL,
			StartPath:      training.DefaultStartPath,
			StatusPath:     training.DefaultStatusPath,
			SubscribePath:  training.DefaultSubscribePath,
			RequestTimeout: 10 * time.Second,
		},
		Training: TrainingConfig{
			Epochs: training.DefaultEpochs,
			Source: SourceLive,
		},
		Reconnect: ReconnectConfig{
			InitialDelay: policy.InitialDelay,
			Multiplier:   policy.Multiplier,
			MaxDelay:     policy.MaxDelay,
			MaxRetries:   policy.MaxRetries,
		},
		Dashboard: DashboardConfig{
			HistorySize:   0,
			FPSSamples:    metrics.DefaultFPSSamples,
			ToastDuration: 4 * time.Second,
		},
		Simulate: SimulateConfig{
			Interval:   simulate.DefaultInterval,
			MaxBatches: simulate.DefaultMaxBatches,
			BatchSize:  simulate.DefaultBatchSize,
			Samples:    simulate.DefaultSamples,
		},
		Serve: ServeConfig{
			Addr:            server.DefaultAddr,
			Interval:        server.DefaultInterval,
			BatchesPerEpoch: server.DefaultBatchesPerEpoch,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Policy converts the reconnect section to a stream policy.
func (r ReconnectConfig) Policy() stream.Policy {
	return stream.Policy{
		InitialDelay: r.InitialDelay,
		Multiplier:   r.Multiplier,
		MaxDelay:     r.MaxDelay,
		MaxRetries:   r.MaxRetries,
	}
}

// ClientOptions converts the server section to training client options.
func (s ServerConfig) ClientOptions() training.ClientOptions {
	return training.ClientOptions{
		BaseURL:       s.URL,
		StartPath:     s.StartPath,
		StatusPath:    s.StatusPath,
		SubscribePath: s.SubscribePath,
		Timeout:       s.RequestTimeout,
	}
}

// Options converts the simulate section to generator options.
func (s SimulateConfig) Options(seed int64) simulate.Options {
	return simulate.Options{
		Interval:   s.Interval,
		MaxBatches: s.MaxBatches,
		BatchSize:  s.BatchSize,
		Samples:    s.Samples,
		Seed:       seed,
	}
}
