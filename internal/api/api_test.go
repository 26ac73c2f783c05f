package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/starford/clueword/internal/models"
	"github.com/starford/clueword/internal/sessionservice"
	"github.com/starford/clueword/internal/testutil"
)

// testEnv sets up a temp SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*sessionservice.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

// testEnvWithSSE creates a router; sseHandler may be nil.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*sessionservice.Service, http.Handler) {
	t.Helper()
	svc := sessionservice.NewService(testutil.TestDB(t), nil)
	return svc, NewRouter(svc, authEnabled, token, sseHandler)
}

func saveSession(t *testing.T, router http.Handler, p models.SessionPayload) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(p)
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetSession(t *testing.T) {
	_, router := testEnv(t, "")

	w := saveSession(t, router, testutil.Payload("Case-001"))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created models.Session
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == 0 {
		t.Fatal("server did not assign an id")
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+strconv.FormatInt(created.ID, 10), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got models.Session
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.SessionName != "Case-001" {
		t.Errorf("name = %q", got.SessionName)
	}
	if len(got.Annotations.Question) != 1 || got.Annotations.Question[0].Label != "hello" {
		t.Errorf("annotations = %+v", got.Annotations)
	}
	if !got.BandpassEnabled {
		t.Error("bandpass flag lost")
	}
}

func TestUpdateKeepsID(t *testing.T) {
	_, router := testEnv(t, "")

	w := saveSession(t, router, testutil.Payload("Case-001"))
	var created models.Session
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	p := testutil.Payload("Case-001")
	p.SessionID = &created.ID
	p.Annotations.Control = nil
	w = saveSession(t, router, p)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var updated models.Session
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.ID != created.ID {
		t.Errorf("id changed: %d -> %d", created.ID, updated.ID)
	}
	if len(updated.Annotations.Control) != 0 {
		t.Errorf("control annotations = %d, want 0", len(updated.Annotations.Control))
	}
}

func TestSaveSession_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	w := saveSession(t, router, testutil.Payload(""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank name = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte("{not json")))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestSaveSession_UnknownID(t *testing.T) {
	_, router := testEnv(t, "")

	id := int64(4242)
	p := testutil.Payload("ghost")
	p.SessionID = &id
	w := saveSession(t, router, p)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id = %d, want 404", w.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	_, router := testEnv(t, "")

	w := saveSession(t, router, testutil.Payload("bye"))
	var created models.Session
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	path := "/sessions/" + strconv.FormatInt(created.ID, 10)

	req := httptest.NewRequest(http.MethodDelete, path, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, path, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, path, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListSessions(t *testing.T) {
	_, router := testEnv(t, "")

	for _, name := range []string{"a", "b"} {
		saveSession(t, router, testutil.Payload(name))
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp SessionListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Sessions) != 2 {
		t.Fatalf("list = %+v", resp)
	}
	if resp.Sessions[0].SessionName != "b" {
		t.Errorf("newest first: got %q", resp.Sessions[0].SessionName)
	}
}

func TestGetSession_BadID(t *testing.T) {
	_, router := testEnv(t, "")

	for _, path := range []string{"/sessions/abc", "/sessions/0", "/sessions/-3"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", path, w.Code)
		}
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(testutil.Payload("auth"))
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func blockingSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE())

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

func TestSSEEvents_NotMountedWithoutHandler(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("events without handler = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/sessions?access_token=secret123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("query token = %d, want 200", w.Code)
	}
}
