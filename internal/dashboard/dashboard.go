// Package dashboard provides the interactive Bubble Tea TUI that shows live
// training progress: connection state, current metrics, the loss curve,
// per-sample predictions, frame rate and notifications.
package dashboard

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows model until the user quits or ctx is cancelled. The bridge is
// attached to the program for the duration of the run.
func Run(ctx context.Context, model Model, bridge *Bridge) error {
	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	bridge.Attach(program)
	defer bridge.Attach(nil)

	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
