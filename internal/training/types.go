// Package training holds the wire types exchanged with a training service and
// an HTTP client for its start/status calls.
package training

// Metric is one batch worth of training progress as pushed on the stream.
type Metric struct {
	Epoch     int       `json:"epoch"`
	Batch     int       `json:"batch"`
	BatchSize int       `json:"batch_size"`
	BatchLoss float64   `json:"batch_loss"`
	Preds     []int     `json:"preds"`
	Truths    []int     `json:"truths"`
	Scores    []float64 `json:"scores"`
	ImageIDs  []int     `json:"image_ids"`
}

// LossPoint is the (batch, loss) pair plotted on the loss curve.
type LossPoint struct {
	Batch int     `json:"batch"`
	Loss  float64 `json:"loss"`
}

// LossPoint derives the loss curve point for this metric.
func (m Metric) LossPoint() LossPoint {
	return LossPoint{Batch: m.Batch, Loss: m.BatchLoss}
}

// Accuracy returns the fraction of predictions matching their truth label.
// Returns 0 when there are no comparable samples.
func (m Metric) Accuracy() float64 {
	n := len(m.Preds)
	if len(m.Truths) < n {
		n = len(m.Truths)
	}
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if m.Preds[i] == m.Truths[i] {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// StartRequest is the body of the start call.
type StartRequest struct {
	NumEpochs int `json:"numEpochs"`
}

// StartResponse is returned by a successful start call.
type StartResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Status values reported by the training service.
const (
	StatusReady          = "ready"
	StatusTraining       = "training"
	StatusFinished       = "finished"
	StatusStarted        = "started"
	StatusAlreadyRunning = "already_running"
)

// StatusResponse is returned by the status call.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Epoch   int    `json:"epoch"`
}

// ErrorResponse is the body the service sends when it refuses a request.
// The same shape is used as a terminal frame on the metric stream.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DefaultEpochs is used when a start request asks for zero or fewer epochs.
const DefaultEpochs = 3
