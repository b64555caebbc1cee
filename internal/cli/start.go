package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/trainwatch/internal/logger"
	"github.com/rileyhilliard/trainwatch/internal/training"
	"github.com/rileyhilliard/trainwatch/internal/ui"
)

type startOptions struct {
	epochs int
	json   bool
}

func newStartCmd(g *globals) *cobra.Command {
	o := &startOptions{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Ask the training service to start a run",
		Long: `Send one start request to the training service and print its answer.
Nothing is streamed; use 'trainwatch watch' to follow the run.

Examples:
  trainwatch start
  trainwatch start --epochs 10
  trainwatch start --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, g, o)
		},
	}
	cmd.Flags().IntVar(&o.epochs, "epochs", 0, "number of epochs (default from training.epochs)")
	cmd.Flags().BoolVar(&o.json, "json", false, "output in JSON format")
	return cmd
}

func runStart(cmd *cobra.Command, g *globals, o *startOptions) error {
	epochs := g.cfg.Training.Epochs
	if err := overrideInt(cmd, "epochs", &epochs); err != nil {
		return err
	}
	if err := validateEpochs(epochs); err != nil {
		return err
	}

	client, err := training.NewClient(g.cfg.Server.ClientOptions())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.json {
		resp, err := client.Start(cmd.Context(), epochs)
		if err != nil {
			_ = WriteJSONFromError(out, err)
			return err
		}
		return WriteJSONSuccess(out, resp)
	}

	spinner := ui.NewSpinner(fmt.Sprintf("Starting %d epochs on %s", epochs, g.cfg.Server.URL))
	spinner.SetOutput(cmd.ErrOrStderr())
	spinner.Start()

	resp, err := client.Start(cmd.Context(), epochs)
	logger.NewEnvLogger("cli").Debug("start request took %s", spinner.Elapsed())
	if err != nil {
		spinner.Finish(err)
		return err
	}
	spinner.Success(resp.Status)

	if resp.Message != "" {
		fmt.Fprintln(out, resp.Message)
	}
	return nil
}
