package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/clueword/internal/models"
	"github.com/starford/clueword/internal/sessionservice"
	"github.com/starford/clueword/internal/testutil"
)

func testServer(t *testing.T) (*Server, *sessionservice.Service) {
	t.Helper()
	svc := sessionservice.NewService(testutil.TestDB(t), nil)
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_sessions":
		result, err = srv.listSessions(ctx, req)
	case "get_session":
		result, err = srv.getSession(ctx, req)
	case "delete_session":
		result, err = srv.deleteSession(ctx, req)
	case "get_session_contract":
		result, err = srv.getSessionContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func seed(t *testing.T, svc *sessionservice.Service, name string) *models.Session {
	t.Helper()
	sess, _, err := svc.Save(context.Background(), testutil.Payload(name))
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestGetSession(t *testing.T) {
	srv, svc := testServer(t)
	sess := seed(t, svc, "Case-001")

	r := callTool(t, srv, "get_session", map[string]interface{}{"id": float64(sess.ID)})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var got models.Session
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatal(err)
	}
	if got.SessionName != "Case-001" || len(got.Annotations.Question) != 1 {
		t.Errorf("session = %+v", got)
	}
}

func TestGetSessionMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_session", map[string]interface{}{"id": float64(99)})
	if !r.IsError || !strings.Contains(resultText(r), "not found") {
		t.Errorf("missing session = %q", resultText(r))
	}

	r = callTool(t, srv, "get_session", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error without id")
	}
}

func TestListSessions(t *testing.T) {
	srv, svc := testServer(t)
	seed(t, svc, "a")
	seed(t, svc, "b")

	r := callTool(t, srv, "list_sessions", map[string]interface{}{"limit": float64(1)})
	var out struct {
		Sessions []models.SessionSummary `json:"sessions"`
		Total    int                     `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 2 || len(out.Sessions) != 1 {
		t.Errorf("list = %+v", out)
	}

	r = callTool(t, srv, "list_sessions", map[string]interface{}{"limit": float64(-1)})
	if !r.IsError {
		t.Error("negative limit accepted")
	}
}

func TestDeleteSession(t *testing.T) {
	srv, svc := testServer(t)
	sess := seed(t, svc, "bye")

	r := callTool(t, srv, "delete_session", map[string]interface{}{"id": float64(sess.ID)})
	if r.IsError {
		t.Fatalf("delete: %s", resultText(r))
	}
	r = callTool(t, srv, "delete_session", map[string]interface{}{"id": float64(sess.ID)})
	if !r.IsError {
		t.Error("second delete should fail")
	}
}

func TestSessionContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_session_contract", nil)
	if !strings.Contains(resultText(r), `"annotations"`) {
		t.Error("contract does not describe annotations")
	}

	contents, err := srv.readSessionFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != formatURI {
		t.Errorf("resource = %+v", contents[0])
	}
}
