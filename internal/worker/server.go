package worker

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/petervdpas/airwaves/internal/mq"
	"github.com/petervdpas/airwaves/internal/session"
)

// Server exposes a Worker running in its own process:
//
//	POST /start   session.StartParams -> 204
//	POST /stop    -> 204 once torn down
//	GET  /status  -> session.Status
//	GET  /mq      websocket bridge (telemetry out, commands in)
type Server struct {
	worker *Worker
	mux    *http.ServeMux
}

func NewServer(w *Worker, bus *mq.Bus) *Server {
	s := &Server{worker: w, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /start", s.handleStart)
	s.mux.HandleFunc("POST /stop", s.handleStop)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.Handle("GET /mq", mq.NewBridge(bus, mq.TopicTelemetry, mq.TopicCommand))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var p session.StartParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	err := s.worker.Start(r.Context(), p)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrInvalidParams):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.worker.Stop(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.worker.Status(r.Context()))
}
