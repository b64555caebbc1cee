package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/rileyhilliard/trainwatch/internal/errors"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".trainwatch.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/trainwatch"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. TRAINWATCH_SERVER_URL.
	EnvPrefix = "TRAINWATCH"
)

// Load reads config from path, layering it over the defaults and applying
// TRAINWATCH_* environment overrides. An empty path loads defaults and env only.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found: "+path,
					"Run 'trainwatch init' to create a config file, or specify one with --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+displayPath(path))
	}
	cfg.Log.File = ExpandTilde(cfg.Log.File)

	return cfg, nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .trainwatch.yaml in current directory
// 3. .trainwatch.yaml in parent directories (stops at git root or home)
// 4. ~/.config/trainwatch/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	home, _ := os.UserHomeDir()
	if path := findUpward(cwd, home); path != "" {
		return path, nil
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// findUpward checks dir and its parents for ConfigFileName, stopping after
// a git root and never climbing to or above home.
func findUpward(dir, home string) string {
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return ""
		}

		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && parent == home) {
			return ""
		}
		dir = parent
	}
}

// LoadOrDefault finds and loads the config, falling back to defaults (plus
// env overrides) when no file exists. It returns the path that was used.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

// setDefaults registers every key so env overrides and Unmarshal see it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.start_path", d.Server.StartPath)
	v.SetDefault("server.status_path", d.Server.StatusPath)
	v.SetDefault("server.subscribe_path", d.Server.SubscribePath)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)

	v.SetDefault("training.epochs", d.Training.Epochs)
	v.SetDefault("training.source", d.Training.Source)

	v.SetDefault("reconnect.initial_delay", d.Reconnect.InitialDelay)
	v.SetDefault("reconnect.multiplier", d.Reconnect.Multiplier)
	v.SetDefault("reconnect.max_delay", d.Reconnect.MaxDelay)
	v.SetDefault("reconnect.max_retries", d.Reconnect.MaxRetries)

	v.SetDefault("dashboard.history_size", d.Dashboard.HistorySize)
	v.SetDefault("dashboard.fps_samples", d.Dashboard.FPSSamples)
	v.SetDefault("dashboard.toast_duration", d.Dashboard.ToastDuration)

	v.SetDefault("simulate.interval", d.Simulate.Interval)
	v.SetDefault("simulate.max_batches", d.Simulate.MaxBatches)
	v.SetDefault("simulate.batch_size", d.Simulate.BatchSize)
	v.SetDefault("simulate.samples", d.Simulate.Samples)

	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.interval", d.Serve.Interval)
	v.SetDefault("serve.batches_per_epoch", d.Serve.BatchesPerEpoch)
	v.SetDefault("serve.drop_after", d.Serve.DropAfter)
	v.SetDefault("serve.abort_after", d.Serve.AbortAfter)

	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

func displayPath(path string) string {
	if path == "" {
		return "the environment"
	}
	return path
}
