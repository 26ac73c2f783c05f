// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the clueword session store to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/sessionservice"
)

const formatURI = "clueword://session-format"

// Server wraps the MCP server with session tools.
type Server struct {
	mcp *server.MCPServer
	svc *sessionservice.Service
}

// New creates a new MCP server with all session tools registered.
func New(svc *sessionservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Clueword",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List saved annotation sessions, most recently updated first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of sessions (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Number of sessions to skip")),
	), s.listSessions)

	s.mcp.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Read one session including case metadata and both tracks' clueword annotations."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Session id")),
	), s.getSession)

	s.mcp.AddTool(mcp.NewTool("delete_session",
		mcp.WithDescription("Delete a saved session. Audio files are not touched."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Session id")),
	), s.deleteSession)

	s.mcp.AddTool(mcp.NewTool("get_session_contract",
		mcp.WithDescription("Returns the clueword session format. "+
			"Read it before interpreting annotation times or track names."),
	), s.getSessionContract)

	// Resource: session format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Session Format Contract",
			mcp.WithResourceDescription("Wire format of a stored clueword session."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSessionFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	offset := req.GetInt("offset", 0)
	if limit <= 0 || offset < 0 {
		return mcp.NewToolResultError("limit must be positive and offset non-negative"), nil
	}
	sessions, total, err := s.svc.List(ctx, limit, offset)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"sessions": sessions, "total": total})
}

func (s *Server) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.svc.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %d", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sess)
}

func (s *Server) deleteSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %d", id)), nil
	} else if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) getSessionContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SessionFormatContract), nil
}

func (s *Server) readSessionFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     SessionFormatContract,
		},
	}, nil
}

func requireID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid session id: %d", id)
	}
	return int64(id), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
