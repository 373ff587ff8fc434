package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/diagramflow"
	"github.com/aretw0/diagramflow/internal/logging"
	"github.com/aretw0/diagramflow/internal/runtime"
	"github.com/aretw0/diagramflow/internal/validator"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds JSON request bodies. 400 lines of diagram source fit comfortably.
const maxBodyBytes = 1 << 20

// Server exposes a Studio over HTTP.
type Server struct {
	Studio  ports.Studio
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// SourceRequest is the body of PUT /source and POST /validate.
type SourceRequest struct {
	Source string `json:"source"`
}

// ThemeRequest is the body of PUT /theme.
type ThemeRequest struct {
	Theme string `json:"theme"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Session *domain.Session `json:"session,omitempty"`
}

// NewHandler creates a new HTTP handler for the studio.
func NewHandler(studio ports.Studio, opts ...Option) http.Handler {
	server := &Server{
		Studio: studio,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/session", server.GetSession)
	r.Put("/source", server.PutSource)
	r.Put("/theme", server.PutTheme)
	r.Post("/save", server.Save)
	r.Post("/restore", server.Restore)
	r.Post("/reset", server.Reset)
	r.Post("/validate", server.Validate)
	r.Get("/artifact", server.GetArtifact)
	r.Post("/export/{format}", server.Export)
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "diagramflow-http",
		"version": strings.TrimSpace(diagramflow.Version),
	})
}

// GetSession handles the GET /session request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Studio.Snapshot())
}

// PutSource handles the PUT /source request. With ?wait=true the response is sent
// after the debounced render finished.
func (s *Server) PutSource(w http.ResponseWriter, r *http.Request) {
	var body SourceRequest
	if !s.decode(w, r, &body) {
		return
	}

	session := s.Studio.OnChange(validator.Sanitize(body.Source))
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		s.Studio.Flush()
		session = s.Studio.Snapshot()
	}
	s.writeJSON(w, http.StatusOK, session)
}

// PutTheme handles the PUT /theme request.
func (s *Server) PutTheme(w http.ResponseWriter, r *http.Request) {
	var body ThemeRequest
	if !s.decode(w, r, &body) {
		return
	}
	theme, err := domain.ParseTheme(body.Theme)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Studio.SetTheme(r.Context(), theme))
}

// Save handles the POST /save request.
func (s *Server) Save(w http.ResponseWriter, r *http.Request) {
	session, err := s.Studio.Save(r.Context())
	switch {
	case errors.Is(err, domain.ErrNothingToSave):
		s.writeError(w, http.StatusConflict, err, &session)
	case err != nil:
		s.logger.Error("Save failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err, &session)
	default:
		s.writeJSON(w, http.StatusOK, session)
	}
}

// Restore handles the POST /restore request.
func (s *Server) Restore(w http.ResponseWriter, r *http.Request) {
	session, err := s.Studio.Restore(r.Context())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, errors.New("no saved diagram"), &session)
	case err != nil:
		s.logger.Error("Restore failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err, &session)
	default:
		s.writeJSON(w, http.StatusOK, session)
	}
}

// Reset handles the POST /reset request.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Studio.Reset())
}

// Validate handles the POST /validate request. The session is not touched.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	var body SourceRequest
	if !s.decode(w, r, &body) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.Studio.Validate(validator.Sanitize(body.Source)))
}

// GetArtifact handles the GET /artifact request, returning the rendered SVG.
func (s *Server) GetArtifact(w http.ResponseWriter, r *http.Request) {
	session := s.Studio.Snapshot()
	if session.Artifact.Empty() {
		s.writeError(w, http.StatusNotFound, domain.ErrNoArtifact, &session)
		return
	}
	w.Header().Set("Content-Type", domain.FormatVector.MIME())
	w.Header().Set("X-Render-Id", session.Artifact.RenderID)
	_, _ = io.WriteString(w, session.Artifact.Markup)
}

// Export handles the POST /export/{format} request, answering with an attachment.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	format, err := domain.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, nil)
		return
	}

	_, err = s.Studio.ExportTo(r.Context(), format, attachment{w})
	if err == nil {
		return
	}

	session := s.Studio.Snapshot()
	var exportErr *domain.ExportError
	switch {
	case errors.Is(err, domain.ErrExportUnavailable), errors.Is(err, domain.ErrNoArtifact):
		s.writeError(w, http.StatusConflict, err, &session)
	case errors.As(err, &exportErr) && exportErr.Step == runtime.StepDeliver:
		// The client is gone or the body is half written; nothing useful to send.
		s.logger.Warn("Export delivery failed", "err", err)
	default:
		s.logger.Error("Export failed", "format", format, "err", err)
		s.writeError(w, http.StatusInternalServerError, err, &session)
	}
}

// attachment delivers an export as the HTTP response body.
type attachment struct {
	w http.ResponseWriter
}

func (a attachment) Deliver(_ context.Context, d domain.Download) error {
	a.w.Header().Set("Content-Type", d.MIME)
	a.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Name))
	a.w.Header().Set("Content-Length", strconv.Itoa(len(d.Payload)))
	a.w.WriteHeader(http.StatusOK)
	_, err := a.w.Write(d.Payload)
	return err
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"), nil)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error, session *domain.Session) {
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), Session: session})
}
