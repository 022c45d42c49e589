package boardflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server exposes the pipeline and orchestrator over HTTP.
//
// Endpoints:
//
//	POST /v1/assistant        - run the pipeline, JSON result
//	POST /v1/assistant/stream - run the pipeline, SSE event stream
//	POST /v1/agent            - run the orchestrator, JSON result
//	POST /v1/agent/stream     - run the orchestrator, SSE event stream
//	GET  /healthz             - liveness probe
//
/// The server is stateless: every request carries the full board snapshot
// and the response carries effects for the caller to apply. Two requests
// never share state, so no locking beyond the listener's own.
type Server struct {
	cfg          *Config
	pipeline     *Pipeline
	orchestrator *Orchestrator
	logger       *zap.Logger
	httpServer   *http.Server
}

// NewServer wires the HTTP layer around an assembled pipeline and
// orchestrator.
func NewServer(cfg *Config, pipeline *Pipeline, orchestrator *Orchestrator, logger *zap.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		pipeline:     pipeline,
		orchestrator: orchestrator,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/assistant", s.handleAssistant)
	mux.HandleFunc("POST /v1/assistant/stream", s.handleAssistantStream)
	mux.HandleFunc("POST /v1/agent", s.handleAgent)
	mux.HandleFunc("POST /v1/agent/stream", s.handleAgentStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Handler returns the routing handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is canceled, then drains within the configured
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Listen, err)
	}
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// instructionRequest is the body of every POST endpoint.
type instructionRequest struct {
	Instruction string    `json:"instruction"`
	Snapshot    *Snapshot `json:"snapshot"`
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*instructionRequest, bool) {
	var req instructionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("malformed request: %v", err))
		return nil, false
	}
	if req.Instruction == "" {
		s.respondError(w, http.StatusBadRequest, "instruction must not be empty")
		return nil, false
	}
	if req.Snapshot == nil {
		req.Snapshot = NewSnapshot()
	}
	return &req, true
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	result := s.pipeline.Run(r.Context(), req.Instruction, req.Snapshot)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAssistantStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	s.streamEvents(w, r, s.pipeline.Stream(r.Context(), req.Instruction, req.Snapshot))
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	result := s.orchestrator.Run(r.Context(), req.Instruction, req.Snapshot)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAgentStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	s.streamEvents(w, r, s.orchestrator.Stream(r.Context(), req.Instruction, req.Snapshot))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// streamEvents writes an event sequence as server-sent events. Each
/// event is "event: <type>" plus one data line of JSON; the sequence ends
// after its single done or error event. A client disconnect stops the
// stream early without aborting the in-flight run.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, events iter.Seq[Event]) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			s.logger.Warn("unmarshalable event dropped",
				zap.String("type", string(ev.Type)), zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			s.logger.Debug("client went away", zap.Error(err))
			return
		}
		flusher.Flush()
		if r.Context().Err() != nil {
			return
		}
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response write failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
