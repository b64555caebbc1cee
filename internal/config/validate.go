package config

import (
	"fmt"
	"net/url"

	"github.com/rileyhilliard/trainwatch/internal/errors"
	"github.com/rileyhilliard/trainwatch/internal/logger"
)

// Validate checks the config and returns the first problem as a CONFIG error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	checks := []struct {
		section string
		check   func(*Config) error
	}{
		{"server", validateServer},
		{"training", validateTraining},
		{"reconnect", validateReconnect},
		{"dashboard", validateDashboard},
		{"simulate", validateSimulate},
		{"serve", validateServe},
		{"log", validateLog},
	}
	for _, c := range checks {
		if err := c.check(cfg); err != nil {
			if errors.IsCode(err, errors.ErrConfig) {
				return err
			}
			return errors.New(errors.ErrConfig, err.Error(),
				fmt.Sprintf("Check the '%s' section in your %s.", c.section, ConfigFileName))
		}
	}
	return nil
}

func validateServer(cfg *Config) error {
	u, err := url.Parse(cfg.Server.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server.url %q must be an http(s) URL like http://localhost:8080", cfg.Server.URL)
	}
	paths := []struct{ key, value string }{
		{"server.start_path", cfg.Server.StartPath},
		{"server.status_path", cfg.Server.StatusPath},
		{"server.subscribe_path", cfg.Server.SubscribePath},
	}
	for _, p := range paths {
		if p.value == "" || p.value[0] != '/' {
			return fmt.Errorf("%s %q must start with /", p.key, p.value)
		}
	}
	if cfg.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout can't be negative")
	}
	return nil
}

func validateTraining(cfg *Config) error {
	if cfg.Training.Epochs < 1 {
		return fmt.Errorf("training.epochs must be at least 1, got %d", cfg.Training.Epochs)
	}
	switch cfg.Training.Source {
	case SourceLive, SourceSimulated:
		return nil
	default:
		return fmt.Errorf("training.source %q must be %q or %q", cfg.Training.Source, SourceLive, SourceSimulated)
	}
}

func validateReconnect(cfg *Config) error {
	return cfg.Reconnect.Policy().Validate()
}

func validateDashboard(cfg *Config) error {
	if cfg.Dashboard.HistorySize < 0 {
		return fmt.Errorf("dashboard.history_size can't be negative (use 0 to keep everything)")
	}
	if cfg.Dashboard.FPSSamples < 0 {
		return fmt.Errorf("dashboard.fps_samples can't be negative")
	}
	if cfg.Dashboard.ToastDuration < 0 {
		return fmt.Errorf("dashboard.toast_duration can't be negative")
	}
	return nil
}

func validateSimulate(cfg *Config) error {
	s := cfg.Simulate
	if s.Interval < 0 || s.MaxBatches < 0 || s.BatchSize < 0 || s.Samples < 0 {
		return fmt.Errorf("simulate values can't be negative")
	}
	return nil
}

func validateServe(cfg *Config) error {
	if cfg.Serve.DropAfter < 0 {
		return fmt.Errorf("serve.drop_after can't be negative (use 0 to never drop)")
	}
	if cfg.Serve.AbortAfter < 0 {
		return fmt.Errorf("serve.abort_after can't be negative (use 0 to never abort)")
	}
	if cfg.Serve.BatchesPerEpoch < 0 {
		return fmt.Errorf("serve.batches_per_epoch can't be negative")
	}
	return nil
}

func validateLog(cfg *Config) error {
	if !logger.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", cfg.Log.Level)
	}
	return nil
}
