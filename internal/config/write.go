package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/trainwatch/internal/errors"
)

const fileHeader = `# trainwatch configuration
# Every key can be overridden with TRAINWATCH_<SECTION>_<KEY>, e.g. TRAINWATCH_SERVER_URL.
`

// Marshal renders cfg as commented YAML with durations in Go syntax ("1s").
func Marshal(cfg *Config) ([]byte, error) {
	doc := mapping(
		section("server", "Training service the dashboard connects to",
			field("url", str(cfg.Server.URL)),
			field("start_path", str(cfg.Server.StartPath)),
			field("status_path", str(cfg.Server.StatusPath)),
			field("subscribe_path", str(cfg.Server.SubscribePath)),
			field("request_timeout", dur(cfg.Server.RequestTimeout)),
		),
		section("training", "source is live or simulated",
			field("epochs", integer(cfg.Training.Epochs)),
			field("source", str(cfg.Training.Source)),
		),
		section("reconnect", "delay = min(initial_delay * multiplier^attempt, max_delay)",
			field("initial_delay", dur(cfg.Reconnect.InitialDelay)),
			field("multiplier", float(cfg.Reconnect.Multiplier)),
			field("max_delay", dur(cfg.Reconnect.MaxDelay)),
			field("max_retries", integer(cfg.Reconnect.MaxRetries)),
		),
		section("dashboard", "history_size 0 keeps every loss point",
			field("history_size", integer(cfg.Dashboard.HistorySize)),
			field("fps_samples", integer(cfg.Dashboard.FPSSamples)),
			field("toast_duration", dur(cfg.Dashboard.ToastDuration)),
		),
		section("simulate", "",
			field("interval", dur(cfg.Simulate.Interval)),
			field("max_batches", integer(cfg.Simulate.MaxBatches)),
			field("batch_size", integer(cfg.Simulate.BatchSize)),
			field("samples", integer(cfg.Simulate.Samples)),
		),
		section("serve", "Mock service started by 'trainwatch serve'",
			field("addr", str(cfg.Serve.Addr)),
			field("interval", dur(cfg.Serve.Interval)),
			field("batches_per_epoch", integer(cfg.Serve.BatchesPerEpoch)),
			field("drop_after", integer(cfg.Serve.DropAfter)),
			field("abort_after", integer(cfg.Serve.AbortAfter)),
		),
		section("metrics", "Prometheus listen address for watch, empty disables",
			field("addr", str(cfg.Metrics.Addr)),
		),
		section("log", "",
			field("level", str(cfg.Log.Level)),
			field("file", str(cfg.Log.File)),
		),
	)

	root := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}
	data, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return append([]byte(fileHeader), data...), nil
}

// WriteFile writes cfg to path. It refuses to replace an existing file
// unless overwrite is set.
func WriteFile(path string, cfg *Config, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Config file already exists: %s", path),
			"Use --force to overwrite")
	}

	data, err := Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to generate config",
			"This shouldn't happen - please report this bug")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write config file: %s", path),
			"Check directory permissions")
	}
	return nil
}

type pair struct {
	key     string
	comment string
	value   *yaml.Node
}

func (p pair) keyNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.key, HeadComment: p.comment}
}

func mapping(pairs ...pair) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range pairs {
		n.Content = append(n.Content, p.keyNode(), p.value)
	}
	return n
}

func section(key, comment string, fields ...pair) pair {
	return pair{key: key, comment: comment, value: mapping(fields...)}
}

func field(key string, value *yaml.Node) pair {
	return pair{key: key, value: value}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func str(s string) *yaml.Node { return scalar("!!str", s) }

func integer(i int) *yaml.Node { return scalar("!!int", strconv.Itoa(i)) }

func float(f float64) *yaml.Node {
	v := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(v, ".eEn") {
		v += ".0"
	}
	return scalar("!!float", v)
}

func dur(d time.Duration) *yaml.Node { return str(d.String()) }
