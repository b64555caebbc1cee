package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/trainwatch/internal/config"
	"github.com/rileyhilliard/trainwatch/internal/errors"
	"github.com/rileyhilliard/trainwatch/internal/training"
	"github.com/rileyhilliard/trainwatch/internal/ui"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Server         string // Pre-specified training service URL
	Epochs         int    // Pre-specified epoch count, 0 for the default
	Source         string // "live" or "simulated"
	Overwrite      bool   // Overwrite existing config without asking
	NonInteractive bool   // Skip prompts, use flags and defaults
	Dir            string // Directory to write into, "" for the working directory
	Out            io.Writer
}

func newInitCmd(g *globals) *cobra.Command {
	opts := InitOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a " + config.ConfigFileName + " in the current directory",
		Long: `Create a trainwatch config file in the current directory.

Prompts for the training service URL, the default epoch count and the
metric source, then checks that the service answers before saving.

Examples:
  trainwatch init
  trainwatch init --server http://gpu-box:5000 --non-interactive
  trainwatch init --source simulated --non-interactive --force`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Out = cmd.OutOrStdout()
			return Init(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Server, "server", "", "training service URL")
	cmd.Flags().IntVar(&opts.Epochs, "epochs", 0, "default number of epochs")
	cmd.Flags().StringVar(&opts.Source, "source", "", "metric source: live or simulated")
	cmd.Flags().BoolVarP(&opts.Overwrite, "force", "f", false, "overwrite an existing config")
	cmd.Flags().BoolVar(&opts.NonInteractive, "non-interactive", false, "don't prompt; use flags and defaults")
	return cmd
}

// Init creates a new .trainwatch.yaml configuration file.
func Init(ctx context.Context, opts InitOptions) error {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	configPath := filepath.Join(dir, config.ConfigFileName)
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if exists(configPath) && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", configPath),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", config.ConfigFileName)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		opts.Overwrite = true
	}

	cfg := config.DefaultConfig()
	if err := collect(cfg, opts); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if !opts.NonInteractive && cfg.Training.Source == config.SourceLive {
		save, err := checkServer(ctx, cfg, out)
		if err != nil {
			return err
		}
		if !save {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := config.WriteFile(configPath, cfg, opts.Overwrite); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Created %s\n\n", ui.SymbolSuccess, configPath)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  trainwatch watch      - Start training and open the dashboard")
	fmt.Fprintln(out, "  trainwatch status     - Ask the service what it's doing")
	fmt.Fprintln(out, "  trainwatch serve      - Run a local stand-in service")
	return nil
}

// collect fills cfg from flags and, unless non-interactive, prompts.
func collect(cfg *config.Config, opts InitOptions) error {
	if opts.Server != "" {
		cfg.Server.URL = opts.Server
	}
	if opts.Epochs != 0 {
		cfg.Training.Epochs = opts.Epochs
	}
	if opts.Source != "" {
		cfg.Training.Source = opts.Source
	}
	if opts.NonInteractive {
		return nil
	}

	epochs := strconv.Itoa(cfg.Training.Epochs)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Metric source").
				Description("Where the dashboard gets its metrics").
				Options(
					huh.NewOption("Training service", config.SourceLive),
					huh.NewOption("Simulated metrics", config.SourceSimulated),
				).
				Value(&cfg.Training.Source),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Training service URL").
				Description("Base URL of the service that runs training").
				Placeholder(config.DefaultServerURL).
				Value(&cfg.Server.URL).
				Validate(validateURL),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Epochs").
				Description("How many epochs a start request asks for").
				Placeholder("3").
				Value(&epochs).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 1 {
						return fmt.Errorf("epochs must be a whole number of at least 1")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive flag")
	}

	n, _ := strconv.Atoi(strings.TrimSpace(epochs))
	cfg.Training.Epochs = n
	cfg.Server.URL = strings.TrimSpace(cfg.Server.URL)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("enter an http:// or https:// URL")
	}
	return nil
}

// checkServer asks the service for its status. On failure the user may
// still save the config.
func checkServer(ctx context.Context, cfg *config.Config, out io.Writer) (bool, error) {
	client, err := training.NewClient(cfg.Server.ClientOptions())
	if err != nil {
		return false, err
	}

	fmt.Fprintln(out)
	spinner := ui.NewSpinner("Checking " + cfg.Server.URL)
	spinner.Start()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = client.Status(ctx)
	spinner.Finish(err)
	if err != nil {

		var saveAnyway bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Save config anyway? (You can start the service later)").
					Value(&saveAnyway),
			),
		)
		if formErr := form.Run(); formErr != nil {
			return false, errors.WrapWithCode(err, errors.ErrTraining,
				fmt.Sprintf("Couldn't reach %s", cfg.Server.URL),
				"Check that the training service is running")
		}
		return saveAnyway, nil
	}

	fmt.Fprintln(out)
	return true, nil
}
