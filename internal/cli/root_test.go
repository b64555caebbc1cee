package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/trainwatch/internal/config"
	"github.com/rileyhilliard/trainwatch/internal/errors"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"watch", "start", "status", "serve", "init", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootLoadsConfigFile(t *testing.T) {
	path := writeConfig(t, "server:\n  url: http://example.test:9000\ntraining:\n  epochs: 7\n")

	g := &globals{configPath: path}
	require.NoError(t, g.load())
	assert.Equal(t, "http://example.test:9000", g.cfg.Server.URL)
	assert.Equal(t, 7, g.cfg.Training.Epochs)
	assert.Equal(t, path, g.cfgFile)
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "training:\n  epochs: 0\n")

	_, err := runCLI(t, "--config", path, "status")
	require.Error(t, err)

	var twErr *errors.Error
	require.ErrorAs(t, err, &twErr)
	assert.Equal(t, errors.ErrConfig, twErr.Code)
	assert.Contains(t, twErr.Message, "epochs")
}

func TestRootMissingConfigFile(t *testing.T) {
	_, err := runCLI(t, "--config", "/nonexistent/.trainwatch.yaml", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNoConfigCommandsSkipLoading(t *testing.T) {
	out, err := runCLI(t, "--config", "/nonexistent/.trainwatch.yaml", "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestLogOptions(t *testing.T) {
	g := &globals{cfg: config.DefaultConfig()}
	g.cfg.Log.Level = "warn"
	assert.Equal(t, "warn", g.logOptions(nil).Level)

	g.debug = true
	g.noColor = true
	opts := g.logOptions(nil)
	assert.Equal(t, "debug", opts.Level)
	assert.True(t, opts.NoColor)
}

func TestOverrideOnlyWhenChanged(t *testing.T) {
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().Int("epochs", 0, "")
	cmd.Flags().String("addr", "", "")

	require.NoError(t, cmd.ParseFlags([]string{"--epochs", "9"}))

	epochs, addr := 3, ":8080"
	require.NoError(t, overrideInt(cmd, "epochs", &epochs))
	require.NoError(t, overrideString(cmd, "addr", &addr))
	assert.Equal(t, 9, epochs)
	assert.Equal(t, ":8080", addr)
}

func TestValidateEpochs(t *testing.T) {
	assert.NoError(t, validateEpochs(1))
	err := validateEpochs(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--epochs must be at least 1")
}
