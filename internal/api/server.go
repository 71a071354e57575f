package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/metrics"
	"github.com/JakeFAU/cidades-pipeline/internal/worker"
)

// maxPushBody bounds a Pub/Sub push request body.
const maxPushBody = 1 << 20

// DirectoryRunner runs the directory stage.
type DirectoryRunner interface {
	Run(ctx context.Context) crawler.Result
}

// StubProcessor runs the detail stage for one queue message.
type StubProcessor interface {
	Process(ctx context.Context, body []byte) (worker.Report, error)
}

// Server wires HTTP handlers to the pipeline stages.
type Server struct {
	router    chi.Router
	directory DirectoryRunner
	detail    StubProcessor
	logger    *zap.Logger
	ready     atomic.Bool
}

// NewServer constructs a Server with middleware and routes. The server
// reports ready immediately; call SetReady(false) while draining.
func NewServer(directory DirectoryRunner, detail StubProcessor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		directory: directory,
		detail:    detail,
		logger:    logger,
	}
	s.ready.Store(true)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/directory", s.runDirectory)
		r.Post("/pubsub/push", s.pubsubPush)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady flips the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// runDirectory relays the stage Result: its status code, and its body as JSON
// when the body already is JSON.
func (s *Server) runDirectory(w http.ResponseWriter, r *http.Request) {
	result := s.directory.Run(r.Context())
	if json.Valid([]byte(result.Body)) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(result.StatusCode)
		_, _ = w.Write([]byte(result.Body))
		return
	}
	s.writeJSON(w, result.StatusCode, map[string]string{"message": result.Body})
}

// pushEnvelope is the body Pub/Sub sends to push endpoints.
type pushEnvelope struct {
	Message struct {
		Data        []byte            `json:"data"`
		MessageID   string            `json:"messageId"`
		Attributes  map[string]string `json:"attributes"`
		PublishTime time.Time         `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// pubsubPush answers 2xx to ack and anything else to have Pub/Sub redeliver.
// Stubs that can never be processed are acked with 202 so they are dropped.
func (s *Server) pubsubPush(w http.ResponseWriter, r *http.Request) {
	var env pushEnvelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPushBody)).Decode(&env); err != nil {
		s.dropPush(w, s.logger, fmt.Errorf("invalid push envelope: %w", err))
		return
	}
	logger := s.logger.With(zap.String("message_id", env.Message.MessageID))
	if len(env.Message.Data) == 0 {
		s.dropPush(w, logger, errors.New("push message has no data"))
		return
	}

	report, err := s.detail.Process(r.Context(), env.Message.Data)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, report)
	case errors.Is(err, crawler.ErrInvalidInput):
		s.dropPush(w, logger, err)
	default:
		logger.Error("Push message failed; requesting redelivery", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// dropPush acknowledges a message that can never succeed. Pub/Sub redelivers
// any non-2xx push response, so a poison message gets 202.
func (s *Server) dropPush(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Warn("Dropping unprocessable push message", zap.Error(err))
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "dropped", "error": err.Error()})
}

type requestIDKey struct{}

// RequestID returns the ID assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("Request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
