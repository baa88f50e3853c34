package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rastow/panerun/internal/tmux"
	"github.com/rastow/panerun/internal/track"
)

type fakeTransport struct {
	mu        sync.Mutex
	sends     []string
	keys      []string
	panes     []tmux.PaneInfo
	sessions  []tmux.SessionInfo
	windows   []tmux.WindowInfo
	listErr   error
	createErr error
}

func (f *fakeTransport) HostName() string { return "local" }

func (f *fakeTransport) SendText(target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, text)
	return nil
}

func (f *fakeTransport) SendEnter(target string) error { return nil }

func (f *fakeTransport) SendKey(target, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeTransport) Capture(target string, lines int) (string, error) { return "$ ", nil }

func (f *fakeTransport) ListSessions() ([]tmux.SessionInfo, error) {
	return f.sessions, f.listErr
}

func (f *fakeTransport) ListWindows(session string) ([]tmux.WindowInfo, error) {
	return f.windows, f.listErr
}

func (f *fakeTransport) ListPanes(target string) ([]tmux.PaneInfo, error) {
	return f.panes, f.listErr
}

func (f *fakeTransport) PaneInfo(target string) (tmux.PaneInfo, error) {
	if len(f.panes) > 0 {
		return f.panes[0], nil
	}
	return tmux.PaneInfo{}, fmt.Errorf("%w: no panes", tmux.ErrTransport)
}

func (f *fakeTransport) HasSession(name string) bool { return true }

func (f *fakeTransport) CreateSession(name, workDir string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return "%5", nil
}

func (f *fakeTransport) CreateWindow(session, name, workDir string) (string, error) {
	return "%6", nil
}

func (f *fakeTransport) SplitPane(target string, vertical bool, workDir string) (string, error) {
	return "%7", nil
}

func (f *fakeTransport) KillSession(name string) error   { return nil }
func (f *fakeTransport) AttachSession(name string) error { return nil }

func newTestServer() (*Server, *fakeTransport) {
	ft := &fakeTransport{}
	eng := track.NewEngine(ft, track.NewRegistry(), track.Options{RetryGrace: time.Hour})
	return NewServer(eng, ft, Options{}), ft
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var resp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer()
	rec := doJSON(t, s, http.MethodGet, "/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("body = %v", resp)
	}
}

func TestSubmitPollCancelFlow(t *testing.T) {
	s, ft := newTestServer()

	rec := doJSON(t, s, http.MethodPost, "/v1/executions",
		`{"pane": "%1", "command": "echo hi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created track.Execution
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Status != track.StatusPending {
		t.Fatalf("created = %+v", created)
	}
	if len(ft.sends) != 1 || !strings.Contains(ft.sends[0], "echo hi") {
		t.Errorf("sent = %v", ft.sends)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/executions/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("poll status = %d", rec.Code)
	}
	var polled track.Execution
	if err := json.Unmarshal(rec.Body.Bytes(), &polled); err != nil {
		t.Fatal(err)
	}
	if polled.Terminal() {
		t.Fatalf("poll = %+v", polled)
	}

	rec = doJSON(t, s, http.MethodPost, "/v1/executions/"+created.ID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	var cancelled track.Execution
	if err := json.Unmarshal(rec.Body.Bytes(), &cancelled); err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != track.StatusCancelled || !cancelled.Aborted {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	if len(ft.keys) != 1 || ft.keys[0] != "C-c" {
		t.Errorf("keys = %v", ft.keys)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/executions?active=true", "")
	var active struct {
		Executions []track.Execution `json:"executions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &active); err != nil {
		t.Fatal(err)
	}
	if len(active.Executions) != 0 {
		t.Errorf("active after cancel = %+v", active.Executions)
	}

	rec = doJSON(t, s, http.MethodDelete, "/v1/executions", "")
	var cleaned map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &cleaned); err != nil {
		t.Fatal(err)
	}
	if cleaned["evicted"] != 1 {
		t.Errorf("evicted = %d, want 1", cleaned["evicted"])
	}
}

func TestSubmitValidation(t *testing.T) {
	s, _ := newTestServer()

	tests := []struct {
		name string
		body string
	}{
		{"missing pane", `{"command": "ls"}`},
		{"missing command", `{"pane": "%1"}`},
		{"unknown field", `{"pane": "%1", "command": "ls", "bogus": 1}`},
		{"bad timeout", `{"pane": "%1", "command": "ls", "timeout": "soon"}`},
		{"not json", `pane=1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/v1/executions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
			}
			if e := decodeError(t, rec); e.Code != "invalid_request" {
				t.Errorf("code = %s", e.Code)
			}
		})
	}
}

func TestPollUnknownID(t *testing.T) {
	s, _ := newTestServer()
	rec := doJSON(t, s, http.MethodGet, "/v1/executions/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "not_found" {
		t.Errorf("code = %s", e.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer()

	rec := doJSON(t, s, http.MethodPut, "/v1/executions", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Errorf("Allow = %q", allow)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/executions/some-id/cancel", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("cancel GET status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow = %q", allow)
	}
}

func TestCleanupValidation(t *testing.T) {
	s, _ := newTestServer()
	rec := doJSON(t, s, http.MethodDelete, "/v1/executions?max_age=banana", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListPanes(t *testing.T) {
	s, ft := newTestServer()
	ft.panes = []tmux.PaneInfo{
		{ID: "%1", Session: "work", WindowIndex: 0, PaneIndex: 0, CurrentPath: "/srv", Active: true},
	}

	rec := doJSON(t, s, http.MethodGet, "/v1/panes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Panes []tmux.PaneInfo `json:"panes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Panes) != 1 || resp.Panes[0].ID != "%1" {
		t.Errorf("panes = %+v", resp.Panes)
	}
}

func TestTransportFailureMapsToBadGateway(t *testing.T) {
	s, ft := newTestServer()
	ft.listErr = tmux.ErrNoServer

	rec := doJSON(t, s, http.MethodGet, "/v1/panes", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "transport_failed" {
		t.Errorf("code = %s", e.Code)
	}
}

func TestCreateSession(t *testing.T) {
	s, ft := newTestServer()

	rec := doJSON(t, s, http.MethodPost, "/v1/sessions", `{"name": "work", "dir": "/srv"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["target"] != "%5" {
		t.Errorf("target = %q", resp["target"])
	}

	ft.createErr = fmt.Errorf("%w: work", tmux.ErrSessionExists)
	rec = doJSON(t, s, http.MethodPost, "/v1/sessions", `{"name": "work"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "session_exists" {
		t.Errorf("code = %s", e.Code)
	}
}

func TestSubmitWithTimeoutVariants(t *testing.T) {
	s, _ := newTestServer()

	for _, timeout := range []string{"", "30s", "0", "off"} {
		body := fmt.Sprintf(`{"pane": "%%1", "command": "ls", "timeout": %q}`, timeout)
		rec := doJSON(t, s, http.MethodPost, "/v1/executions", body)
		if rec.Code != http.StatusCreated {
			t.Errorf("timeout %q: status = %d body = %s", timeout, rec.Code, rec.Body.String())
		}
	}
}
