package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rileyhilliard/trainwatch/internal/telemetry"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// AbortPath ends the current run with an error frame on every stream.
const AbortPath = "/api/training/abort"

// Handler returns the HTTP routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+training.DefaultStartPath, s.handleStart)
	mux.HandleFunc("GET "+training.DefaultStatusPath, s.handleStatus)
	mux.HandleFunc("GET "+training.DefaultSubscribePath, s.handleSubscribe)
	mux.HandleFunc("POST "+AbortPath, s.handleAbort)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", telemetry.Handler())
	return mux
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req training.StartRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, training.ErrorResponse{Error: "could not read request body"})
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, training.ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	resp, _ := s.StartTraining(req.NumEpochs)
	writeJSON(w, http.StatusOK, resp)
}

// AbortRequest is the optional body of the abort call.
type AbortRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	var req AbortRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, training.ErrorResponse{Error: "could not read request body"})
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, training.ErrorResponse{Error: "invalid request body"})
			return
		}
	}
	if req.Message == "" {
		req.Message = AbortMessage
	}

	s.Abort(req.Message)
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, training.ErrorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	sub := s.subscribe()
	defer s.unsubscribe(sub)
	s.log.Debug("subscriber connected from %s", r.RemoteAddr)

	sent := 0
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.stopping:
			return
		case frame := <-sub.frames:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				s.log.Debug("write to subscriber: %v", err)
				return
			}
			flusher.Flush()
			telemetry.ServerFrames.Inc()
			sent++
			if s.opts.DropAfter > 0 && sent >= s.opts.DropAfter {
				s.log.Info("dropping subscriber after %d frames", sent)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
