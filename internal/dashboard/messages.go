package dashboard

import (
	"time"

	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// MetricMsg carries one received training metric.
type MetricMsg struct {
	Metric training.Metric
	At     time.Time
}

// StatusMsg carries a connection state transition.
type StatusMsg struct {
	Change stream.StatusChange
}

// NotifyMsg carries a user-facing notification.
type NotifyMsg struct {
	Notification stream.Notification
}

// startedMsg reports the result of a start command.
type startedMsg struct {
	err error
}

// stoppedMsg signals a stop command has completed.
type stoppedMsg struct{}

// toastExpiredMsg removes a toast once its duration has elapsed.
type toastExpiredMsg struct {
	id int
}
