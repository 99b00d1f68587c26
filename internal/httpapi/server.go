// Package httpapi exposes the pipeline over HTTP: health, metrics, schema
// normalization and full response processing.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/dshills/surveyrecon/internal/config"
	"github.com/dshills/surveyrecon/internal/ingest"
	"github.com/dshills/surveyrecon/internal/pipeline"
	"github.com/dshills/surveyrecon/internal/schema"
)

const shutdownTimeout = 10 * time.Second

// Server routes requests to a pipeline.Runner.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *Metrics
	runner  *pipeline.Runner
	router  chi.Router
}

// New builds a Server. A nil cfg selects config.Default and a nil logger
// discards logs.
func New(cfg *config.Config, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, logger: logger, metrics: NewMetrics()}
	s.runner = pipeline.New(cfg, logger, pipeline.WithObserver(s.metrics))
	s.router = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", s.metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/normalize", s.normalize)
		r.Post("/process", s.process)
	})
	return r
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	<-errc
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		s.metrics.observeRequest(route, status)
		s.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)))
	})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Status:    "ok",
		Service:   pipeline.Tool,
		Version:   pipeline.Version,
		Timestamp: time.Now().UTC(),
	})
}

// errorResponse is the body of every failed request. Report or Diagnostics
// carry what was produced before a fatal pipeline error.
type errorResponse struct {
	Error       string              `json:"error"`
	Diagnostics *schema.Diagnostics `json:"diagnostics,omitempty"`
	Report      *pipeline.Report    `json:"report,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, body errorResponse) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// readBody reads the request body under the configured size limit. It writes
// the error response itself and reports false on failure.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := r.Body
	if limit := s.cfg.MaxBodyBytes(); limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return nil, false
		}
		s.fail(w, r, http.StatusBadRequest, errorResponse{Error: "read body: " + err.Error()})
		return nil, false
	}
	if len(data) == 0 {
		s.fail(w, r, http.StatusBadRequest, errorResponse{Error: "empty request body"})
		return nil, false
	}
	return data, true
}

// normalize accepts the schema itself as the body: script text, a JSON
// object or a JSON array.
func (s *Server) normalize(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	res, err := s.runner.Normalize(string(data))
	if err != nil {
		s.fail(w, r, http.StatusUnprocessableEntity, errorResponse{
			Error:       err.Error(),
			Diagnostics: &res.Diagnostics,
		})
		return
	}
	render.JSON(w, r, res)
}

// processRequest is the body of POST /api/process. Schema is either a JSON
// string holding script text or an inline JSON object or array.
type processRequest struct {
	Schema  json.RawMessage  `json:"schema"`
	Headers []string         `json:"headers,omitempty"`
	Rows    []map[string]any `json:"rows"`
}

func (req processRequest) schemaText() (string, error) {
	raw := req.Schema
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("missing schema")
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("schema: %w", err)
		}
		return text, nil
	}
	return string(raw), nil
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var req processRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, errorResponse{Error: "decode request: " + err.Error()})
		return
	}
	text, err := req.schemaText()
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rep, err := s.runner.Run(r.Context(), text, ingest.FromRows(req.Headers, req.Rows))
	if err != nil {
		s.fail(w, r, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Report: rep})
		return
	}
	render.JSON(w, r, rep)
}
