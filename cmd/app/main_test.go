package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/clueword/internal/api"
	"github.com/starford/clueword/internal/sessionservice"
	"github.com/starford/clueword/internal/testutil"
)

type testEnv struct {
	config  string
	exports string
	svc     *sessionservice.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	svc := sessionservice.NewService(testutil.TestDB(t), nil)
	r := chi.NewRouter()
	r.Mount("/api", api.NewRouter(svc, false, "", nil))
	r.Post("/process", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("annotations") == "" {
			http.Error(w, `{"error":"missing annotations"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK-archive"))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	exports := filepath.Join(dir, "exports")
	config := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("app:\n  log_level: error\nclient:\n  base_url: %s\n  timeout: 5s\nexports:\n  dir: %s\n", srv.URL, exports)
	if err := os.WriteFile(config, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return &testEnv{config: config, exports: exports, svc: svc}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(context.Background(), append([]string{"cluewordd", "-c", e.config}, args...))
	return out.String(), err
}

func TestSessionsList(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "sessions", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No sessions") {
		t.Errorf("empty list output = %q", out)
	}

	if _, _, err := env.svc.Save(context.Background(), testutil.Payload("Case-001")); err != nil {
		t.Fatal(err)
	}
	out, err = env.run(t, "sessions", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"Case-001", "CN-1", "Speaker"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestSessionsShowAndDelete(t *testing.T) {
	env := newTestEnv(t)
	sess, _, err := env.svc.Save(context.Background(), testutil.Payload("Case-002"))
	if err != nil {
		t.Fatal(err)
	}
	id := strconv.FormatInt(sess.ID, 10)

	out, err := env.run(t, "sessions", "show", id)
	if err != nil || !strings.Contains(out, `"session_name": "Case-002"`) {
		t.Fatalf("show = %q, %v", out, err)
	}
	out, err = env.run(t, "sessions", "show", "--track", "control", id)
	if err != nil || !strings.Contains(out, "hello") || !strings.Contains(out, "1.250") {
		t.Fatalf("show --track = %q, %v", out, err)
	}
	if _, err := env.run(t, "sessions", "show", "--track", "left", id); err == nil {
		t.Error("unknown track accepted")
	}
	if _, err := env.run(t, "sessions", "delete", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.run(t, "sessions", "show", id); err == nil {
		t.Error("show after delete should fail")
	}
	if _, err := env.run(t, "sessions", "show", "abc"); err == nil {
		t.Error("non-numeric id accepted")
	}
}

func TestRestoreAndExport(t *testing.T) {
	env := newTestEnv(t)
	sess, _, err := env.svc.Save(context.Background(), testutil.Payload("Case-003"))
	if err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "restore", "--export", "case-003.zip", strconv.FormatInt(sess.ID, 10))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	for _, want := range []string{`"Case-003"`, "question", "control", "Exported 10 bytes"} {
		if !strings.Contains(out, want) {
			t.Errorf("restore output missing %q:\n%s", want, out)
		}
	}
	data, err := os.ReadFile(filepath.Join(env.exports, "case-003.zip"))
	if err != nil || string(data) != "PK-archive" {
		t.Fatalf("archive = %q, %v", data, err)
	}

	out, err = env.run(t, "exports", "list")
	if err != nil || !strings.Contains(out, "case-003.zip") {
		t.Errorf("exports list = %q, %v", out, err)
	}
	if _, err := env.run(t, "exports", "delete", "case-003.zip"); err != nil {
		t.Fatalf("exports delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.exports, "case-003.zip")); !os.IsNotExist(err) {
		t.Errorf("archive still present: %v", err)
	}
}

func TestRestoreMissingSession(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run(t, "restore", "42"); err == nil {
		t.Error("restore of a missing session should fail")
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Name"}, [][]string{{"1"}}, []columnAlignment{alignRight})
	if !strings.Contains(out, "ID") || !strings.Contains(out, "1") {
		t.Errorf("table = %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("no headers should render nothing")
	}
}
