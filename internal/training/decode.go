package training

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageKind classifies a decoded stream frame.
type MessageKind int

const (
	// KindMetric is a regular training metric.
	KindMetric MessageKind = iota
	// KindError is a terminal error reported by the server inside the payload.
	KindError
)

// Message is a decoded stream frame.
type Message struct {
	Kind   MessageKind
	Metric Metric
	Error  string
}

// ErrMalformed is returned (wrapped) when a frame is not a JSON object.
var ErrMalformed = errors.New("malformed stream payload")

// wireMessage accepts both image_ids and the camelCase imageIds key some
// proxies emit.
type wireMessage struct {
	Metric
	ImageIDsCamel []int           `json:"imageIds"`
	Error         json.RawMessage `json:"error"`
}

// DecodeMessage parses one stream frame. A truthy "error" field of any JSON
// type makes the frame a KindError message regardless of any other fields.
// null, false, 0 and "" are not errors.
func DecodeMessage(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Message{}, fmt.Errorf("%w: empty frame", ErrMalformed)
	}

	var w wireMessage
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if text := errorText(w.Error); text != "" {
		return Message{Kind: KindError, Error: text}, nil
	}

	m := w.Metric
	if len(m.ImageIDs) == 0 && len(w.ImageIDsCamel) > 0 {
		m.ImageIDs = w.ImageIDsCamel
	}
	if m.Preds == nil {
		m.Preds = []int{}
	}
	if m.Truths == nil {
		m.Truths = []int{}
	}
	if m.Scores == nil {
		m.Scores = []float64{}
	}
	if m.ImageIDs == nil {
		m.ImageIDs = []int{}
	}

	return Message{Kind: KindMetric, Metric: m}, nil
}

// errorText returns the message of a truthy error value, or "" when raw is
// absent or falsy. Strings are unquoted; other values keep their JSON text.
func errorText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", `""`:
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && n == 0 {
		return ""
	}
	return string(raw)
}

// EncodeMetric renders a metric as a stream frame payload.
func EncodeMetric(m Metric) ([]byte, error) {
	return json.Marshal(m)
}

// EncodeError renders a terminal error frame payload.
func EncodeError(msg string) ([]byte, error) {
	return json.Marshal(ErrorResponse{Error: msg})
}
