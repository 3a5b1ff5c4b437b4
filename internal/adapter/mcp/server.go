// Package mcp exposes schedule computation and stored snapshots as Model
// Context Protocol tools and resources over streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/PertForge/internal/domain/snapshot"
	"github.com/Strob0t/PertForge/internal/service"
)

// ScheduleComputer computes and renders schedules.
type ScheduleComputer interface {
	Compute(ctx context.Context, req service.Request) (*service.Response, error)
	Render(ctx context.Context, req service.Request, dates bool) (string, error)
}

// SnapshotReader reads stored snapshots.
type SnapshotReader interface {
	List(ctx context.Context) ([]snapshot.Summary, error)
	Get(ctx context.Context, id string) (*snapshot.Snapshot, error)
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	// Middleware wraps the MCP HTTP handler, outermost first.
	Middleware []func(http.Handler) http.Handler
}

// ServerDeps are the services behind the tools. Nil members make the
// corresponding tools report an error.
type ServerDeps struct {
	Schedules ScheduleComputer
	Snapshots SnapshotReader
}

// Server is the MCP server.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	httpSrv   *http.Server
	addr      net.Addr
}

// NewServer creates a server with all tools and resources registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcpServer }

// Handler returns the streamable HTTP handler wrapped in the configured
// middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	for i := len(s.cfg.Middleware) - 1; i >= 0; i-- {
		h = s.cfg.Middleware[i](h)
	}
	return h
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}
	s.addr = ln.Addr()
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	slog.Info("mcp server started", "addr", s.addr.String())
	return nil
}

// Addr returns the bound address once Start has returned.
func (s *Server) Addr() net.Addr { return s.addr }

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(text)},
	}
}
