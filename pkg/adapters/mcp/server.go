package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/diagramflow"
	"github.com/aretw0/diagramflow/internal/logging"
	"github.com/aretw0/diagramflow/internal/validator"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const artifactURI = "diagramflow://artifact"

// SessionResponse is the structured result shared by the session tools.
type SessionResponse struct {
	Session domain.Session `json:"session" jsonschema_description:"The current studio session"`
}

// Server exposes a Studio as an MCP server.
type Server struct {
	studio    ports.Studio
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger. MCP over stdio must not log to stdout.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(studio ports.Studio, opts ...Option) *Server {
	s := &Server{
		studio:    studio,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("diagramflow-mcp", strings.TrimSpace(diagramflow.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: validate_diagram
	s.mcpServer.AddTool(mcp.NewTool("validate_diagram",
		mcp.WithDescription("Check Mermaid source against the structural rules without changing the session."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Mermaid diagram source")),
		mcp.WithOutputSchema[domain.ValidationResult](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	// TOOL: set_source
	s.mcpServer.AddTool(mcp.NewTool("set_source",
		mcp.WithDescription("Replace the diagram source and wait for it to render."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Mermaid diagram source")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleSetSource))

	// TOOL: set_theme
	s.mcpServer.AddTool(mcp.NewTool("set_theme",
		mcp.WithDescription("Switch between the light and dark theme."),
		mcp.WithString("theme", mcp.Required(), mcp.Enum(string(domain.ThemeLight), string(domain.ThemeDark))),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleSetTheme))

	// TOOL: save_diagram
	s.mcpServer.AddTool(mcp.NewTool("save_diagram",
		mcp.WithDescription("Save the current diagram as a new record."),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleSave))

	// TOOL: restore_diagram
	s.mcpServer.AddTool(mcp.NewTool("restore_diagram",
		mcp.WithDescription("Load the most recently saved diagram."),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleRestore))

	// TOOL: get_session
	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the current studio session."),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetSession))

	// TOOL: export_diagram
	s.mcpServer.AddTool(mcp.NewTool("export_diagram",
		mcp.WithDescription("Export the rendered diagram as PNG or SVG."),
		mcp.WithString("format", mcp.Required(), mcp.Enum("png", "svg")),
	), s.handleExport)
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.ValidationResult, error) {
	source, _ := args["source"].(string)
	return s.studio.Validate(validator.Sanitize(source)), nil
}

func (s *Server) handleSetSource(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	source, _ := args["source"].(string)
	s.studio.OnChange(validator.Sanitize(source))
	s.studio.Flush()
	return SessionResponse{Session: s.studio.Snapshot()}, nil
}

func (s *Server) handleSetTheme(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	name, _ := args["theme"].(string)
	theme, err := domain.ParseTheme(name)
	if err != nil {
		return SessionResponse{}, err
	}
	s.studio.SetTheme(ctx, theme)
	s.studio.Flush()
	return SessionResponse{Session: s.studio.Snapshot()}, nil
}

func (s *Server) handleSave(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	session, err := s.studio.Save(ctx)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("save failed: %w", err)
	}
	return SessionResponse{Session: session}, nil
}

func (s *Server) handleRestore(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	if _, err := s.studio.Restore(ctx); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return SessionResponse{}, errors.New("no saved diagram")
		}
		return SessionResponse{}, fmt.Errorf("restore failed: %w", err)
	}
	s.studio.Flush()
	return SessionResponse{Session: s.studio.Snapshot()}, nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	return SessionResponse{Session: s.studio.Snapshot()}, nil
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := domain.ParseFormat(request.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var captured domain.Download
	sink := ports.SinkFunc(func(_ context.Context, d domain.Download) error {
		captured = d
		return nil
	})
	if _, err := s.studio.ExportTo(ctx, format, sink); err != nil {
		s.logger.Warn("MCP Export failed", "format", format, "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	if format == domain.FormatVector {
		return mcp.NewToolResultText(string(captured.Payload)), nil
	}
	return mcp.NewToolResultImage(captured.Name, base64.StdEncoding.EncodeToString(captured.Payload), captured.MIME), nil
}

func (s *Server) registerResources() {
	// EXPOSE: diagramflow://artifact
	s.mcpServer.AddResource(mcp.NewResource(artifactURI, "Rendered Diagram",
		mcp.WithMIMEType(domain.FormatVector.MIME()),
	), s.readArtifact)
}

func (s *Server) readArtifact(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	session := s.studio.Snapshot()
	if session.Artifact.Empty() {
		return nil, domain.ErrNoArtifact
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      artifactURI,
			MIMEType: domain.FormatVector.MIME(),
			Text:     session.Artifact.Markup,
		},
	}, nil
}
