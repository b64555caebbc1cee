package stream

import (
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a user-facing notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is a toast-style message for the user.
type Notification struct {
	Key     string
	Level   Level
	Message string
	// Duration is how long the message should stay visible; 0 means the
	// renderer's default.
	Duration time.Duration
	// Episode identifies the failure episode the notification belongs to.
	Episode string
}

// Notifier renders a notification.
type Notifier func(Notification)

// Notification keys used by the Manager.
const (
	KeyReconnecting = "reconnecting"
	KeyReconnected  = "reconnected"
	KeyFailed       = "training-error"
)

// GateState tracks what the user has been told during the current episode.
type GateState int

const (
	GateQuiet GateState = iota
	GateWarned
	GateAnnounced
)

// String returns the gate state name.
func (s GateState) String() string {
	switch s {
	case GateQuiet:
		return "quiet"
	case GateWarned:
		return "warned"
	case GateAnnounced:
		return "announced"
	default:
		return "unknown"
	}
}

// Gate suppresses duplicate notifications within one failure episode.
// Not safe for concurrent use; the Manager owns it from its loop goroutine.
type Gate struct {
	state   GateState
	episode string
	shown   map[string]bool
}

// NewGate returns a quiet gate with a fresh episode id.
func NewGate() *Gate {
	g := &Gate{}
	g.Reset()
	return g
}

// State returns the current gate state.
func (g *Gate) State() GateState {
	return g.state
}

// Episode returns the id of the current episode.
func (g *Gate) Episode() string {
	return g.episode
}

// Reset starts a new episode: all keys become showable again.
func (g *Gate) Reset() {
	g.state = GateQuiet
	g.episode = uuid.NewString()
	g.shown = make(map[string]bool)
}

// NotifyOnce renders n under key unless that key was already shown this
// episode, or the episode was already announced as failed. It reports
// whether render was called.
func (g *Gate) NotifyOnce(key string, n Notification, render Notifier) bool {
	if g.state == GateAnnounced || g.shown[key] {
		return false
	}
	g.shown[key] = true
	n.Key = key
	n.Episode = g.episode
	if render != nil {
		render(n)
	}
	return true
}

// Warn emits the reconnecting warning once per episode (Quiet -> Warned).
func (g *Gate) Warn(n Notification, render Notifier) bool {
	if g.state != GateQuiet {
		return false
	}
	n.Level = LevelWarning
	if !g.NotifyOnce(KeyReconnecting, n, render) {
		return false
	}
	g.state = GateWarned
	return true
}

// Recover emits the reconnected message and ends the episode (Warned -> Quiet).
// It is a no-op unless a warning was shown.
func (g *Gate) Recover(n Notification, render Notifier) bool {
	if g.state != GateWarned {
		return false
	}
	n.Level = LevelSuccess
	shown := g.NotifyOnce(KeyReconnected, n, render)
	g.Reset()
	return shown
}

// Fail emits the terminal error once and locks the gate (-> Announced)
// until the next Reset.
func (g *Gate) Fail(n Notification, render Notifier) bool {
	if g.state == GateAnnounced {
		return false
	}
	n.Level = LevelError
	shown := g.NotifyOnce(KeyFailed, n, render)
	g.state = GateAnnounced
	return shown
}
