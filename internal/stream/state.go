package stream

import "time"

// ConnectionState is the lifecycle state of a Manager's subscription.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateLive
	StateReconnecting
	StateFailed
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether a session is in progress (start would be a no-op).
func (s ConnectionState) Active() bool {
	return s == StateConnecting || s == StateLive || s == StateReconnecting
}

// RetryState is the Manager's reconnection bookkeeping.
type RetryState struct {
	Attempt        int
	LastDelay      time.Duration
	IsReconnecting bool
}

// StatusChange describes one state transition. A repeated entry into
// StateReconnecting is reported each time another retry is scheduled.
type StatusChange struct {
	From  ConnectionState
	To    ConnectionState
	Retry RetryState
	// MaxRetries is the policy ceiling, for "attempt n/max" displays.
	MaxRetries int
	// Reason is a short description of what caused the transition.
	Reason string
	// Err is set on entry to StateFailed. It has code errors.ErrStream.
	Err error
	At  time.Time
}
