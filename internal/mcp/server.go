// Package mcp exposes the engine entry points as MCP tools over stdio.
package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"ctxopt/internal/adapter/fs"
	"ctxopt/internal/logging"
	"ctxopt/internal/usecase"
)

const (
	// ServerName is the MCP server name
	ServerName = "ctxopt"
	// ServerVersion is the current server version
	ServerVersion = "0.1.0"
)

// Server wraps the MCP server with the engine it serves.
type Server struct {
	mcp     *server.MCPServer
	engine  *usecase.Engine
	watcher *fs.Watcher
	logger  *slog.Logger
}

// NewServer creates a server with every tool registered.
func NewServer(engine *usecase.Engine, logger *slog.Logger) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		engine: engine,
		logger: logging.OrDiscard(logger).With("component", "mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(optimizeFileTool(), s.handleOptimizeFile)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(analyzeQueryTool(), s.handleAnalyzeQuery)
	s.mcp.AddTool(getBudgetStatusTool(), s.handleGetBudgetStatus)
	s.mcp.AddTool(getCacheStatsTool(), s.handleGetCacheStats)
	s.mcp.AddTool(resetBudgetTool(), s.handleResetBudget)
}

// Watch invalidates cached extractions of files changed under root and,
// when the engine has an indexer, re-indexes them.
func (s *Server) Watch(ctx context.Context, root string, w *fs.Watcher) error {
	s.watcher = w
	return w.Watch(root, func(path string) {
		s.onChange(ctx, path)
	})
}

func (s *Server) onChange(ctx context.Context, path string) {
	if n := s.engine.InvalidateFile(path); n > 0 {
		s.logger.Debug("invalidated cached extractions", "file", path, "entries", n)
	}
	idx := s.engine.Indexer()
	if idx == nil {
		return
	}
	if err := idx.IndexFile(ctx, path); err != nil {
		s.logger.Warn("re-index failed", "file", path, "error", err)
	}
}

// Serve runs the MCP protocol on stdin and stdout until ctx is cancelled
// or stdin is closed.
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO is Serve over arbitrary streams. Cancellation is a clean
// shutdown.
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	defer func() {
		if s.watcher != nil {
			_ = s.watcher.Stop()
		}
	}()
	s.logger.Info("serving on stdio")

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
