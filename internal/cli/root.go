package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/trainwatch/internal/config"
	"github.com/rileyhilliard/trainwatch/internal/logger"
	"github.com/rileyhilliard/trainwatch/internal/ui"
)

// globals carries persistent flag values and the loaded config into each
// subcommand.
type globals struct {
	configPath string
	debug      bool
	noColor    bool

	cfg     *config.Config
	cfgFile string
}

// logOptions returns the logger options implied by config and flags.
func (g *globals) logOptions(out io.Writer) logger.Options {
	level := g.cfg.Log.Level
	if g.debug {
		level = "debug"
	}
	return logger.Options{Level: level, Output: out, NoColor: g.noColor}
}

// newRootCmd builds the command tree. Commands that don't need config
// (version, init) skip loading it.
func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "trainwatch",
		Short: "Live dashboard for model training metrics",
		Long: `trainwatch follows a training service's metric stream and draws loss,
predictions and frame rate in the terminal. Dropped streams reconnect with
bounded exponential backoff.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.noColor || os.Getenv("NO_COLOR") != "" {
				g.noColor = true
				ui.DisableColors()
			}
			if cmd.Annotations[annotationNoConfig] == "true" {
				return nil
			}
			return g.load()
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default: search for "+config.ConfigFileName+")")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newWatchCmd(g),
		newStartCmd(g),
		newStatusCmd(g),
		newServeCmd(g),
		newInitCmd(g),
		newVersionCmd(),
	)
	return root
}

const annotationNoConfig = "trainwatch/no-config"

func (g *globals) load() error {
	cfg, path, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	g.cfg = cfg
	g.cfgFile = path

	logger.Setup(g.logOptions(os.Stderr))
	if path != "" {
		logger.NewEnvLogger("cli").Debug("loaded config from %s", path)
	}
	return nil
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := ExecuteContext(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ExecuteContext runs the CLI with args.
func ExecuteContext(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
