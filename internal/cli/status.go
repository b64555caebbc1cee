package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/trainwatch/internal/training"
	"github.com/rileyhilliard/trainwatch/internal/ui"
)

func newStatusCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the training service status",
		Long: `Ask the training service whether a run is ready, in progress or finished.

Examples:
  trainwatch status
  trainwatch status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, g, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")
	return cmd
}

func runStatus(cmd *cobra.Command, g *globals, asJSON bool) error {
	client, err := training.NewClient(g.cfg.Server.ClientOptions())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	resp, err := client.Status(cmd.Context())
	if asJSON {
		if err != nil {
			_ = WriteJSONFromError(out, err)
			return err
		}
		return WriteJSONSuccess(out, resp)
	}
	if err != nil {
		return err
	}

	renderStatus(out, g.cfg.Server.URL, resp)
	return nil
}

func renderStatus(w io.Writer, url string, resp *training.StatusResponse) {
	symbol, color := ui.SymbolPending, ui.ColorMuted
	switch resp.Status {
	case training.StatusTraining:
		symbol, color = ui.SymbolProgress, ui.ColorWarning
	case training.StatusFinished:
		symbol, color = ui.SymbolSuccess, ui.ColorSuccess
	}

	label := lipgloss.NewStyle().Foreground(ui.ColorSecondary)
	fmt.Fprintf(w, "%s %s\n", lipgloss.NewStyle().Foreground(color).Bold(true).Render(symbol), resp.Status)
	fmt.Fprintf(w, "  %s %s\n", label.Render("server:"), url)
	if resp.Epoch > 0 {
		fmt.Fprintf(w, "  %s %d\n", label.Render("epoch:"), resp.Epoch)
	}
	if resp.Message != "" {
		fmt.Fprintf(w, "  %s %s\n", label.Render("message:"), resp.Message)
	}
}
