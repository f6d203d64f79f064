package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/pipeline"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/processor"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/stream"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/zoomevents"
)

// StreamStatus is what health checks need from the connection manager.
type StreamStatus interface {
	IsConnected() bool
	State() stream.State
}

// QueueStatus reports dispatcher backlog.
type QueueStatus interface {
	QueueLen() int
}

type Server struct {
	stream StreamStatus
	queue  QueueStatus
	proc   *processor.Processor
	router chi.Router
	port   int
}

func NewServer(st StreamStatus, q QueueStatus, proc *processor.Processor, port int) *Server {
	srv := &Server{
		stream: st,
		queue:  q,
		proc:   proc,
		port:   port,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// Liveness stays green as long as the process runs; readiness follows
	// the stream connection.
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "OK")
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !srv.stream.IsConnected() {
			http.Error(w, "event stream not connected", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "OK")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)
		r.Post("/process", srv.handleProcess)
	})

	srv.router = r
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("starting HTTP API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"service":      "zoom-middleware",
		"stream_state": s.stream.State().String(),
		"queue_len":    s.queue.QueueLen(),
	})
}

// handleProcess feeds a synthetic recording.completed event through the
// pipeline and returns the processing summary. Used for replays and manual
// testing; the response is a structured summary, never a stack trace.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var ev zoomevents.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event JSON"})
		return
	}

	summary, err := s.proc.Process(r.Context(), ev)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
			return
		}
		slog.Error("on-demand processing failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
