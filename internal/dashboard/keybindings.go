package dashboard

import tea "github.com/charmbracelet/bubbletea"

// Key bindings as constants for consistency.
const (
	KeyQuit       = "q"
	KeyQuitAlt    = "ctrl+c"
	KeyStart      = "s"
	KeyStop       = "x"
	KeyReset      = "r"
	KeyToggleHelp = "?"
	KeyClose      = "esc"
)

// HandleKeyMsg processes keyboard input and returns updated model state and command.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key == KeyClose {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return true, tea.Quit

	case KeyStart:
		if m.state.Active() {
			return true, nil
		}
		m.lastErr = nil
		return true, m.startCmd()

	case KeyStop:
		return true, m.stopCmd()

	case KeyReset:
		m.history.Reset()
		m.latest = nil
		m.received = 0
		return true, nil
	}

	return false, nil
}
