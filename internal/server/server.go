// Package server exposes the tracking engine over a local JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	telem "github.com/rastow/panerun/internal/otel"
	"github.com/rastow/panerun/internal/tmux"
	"github.com/rastow/panerun/internal/track"
)

// Options tune the serving loop.
type Options struct {
	// Addr is the listen address. Defaults to a loopback port.
	Addr string
	// LockPath guards against a second serve instance.
	LockPath string
	// SweepInterval is the cadence of the timeout sweeper. Zero
	// disables it.
	SweepInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:7171"
	}
	if o.LockPath == "" {
		o.LockPath = filepath.Join(os.TempDir(), "panerun-serve.lock")
	}
	return o
}

// Server wires the engine and transport behind an http.Server. One
// instance per machine; a file lock rejects the second.
type Server struct {
	engine    *track.Engine
	transport tmux.Transport
	opts      Options

	httpSrv  *http.Server
	listener net.Listener
	lock     *flock.Flock

	shutdown    sync.Once
	shutdownErr error
}

func NewServer(engine *track.Engine, transport tmux.Transport, opts Options) *Server {
	mux := http.NewServeMux()
	s := &Server{
		engine:    engine,
		transport: transport,
		opts:      opts.withDefaults(),
		httpSrv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/v1/health", s.healthHandler)
	mux.HandleFunc("/v1/executions", s.executionsHandler)
	mux.HandleFunc("/v1/executions/", s.executionByIDHandler)
	mux.HandleFunc("/v1/detect", s.detectHandler)
	mux.HandleFunc("/v1/panes", s.panesHandler)
	mux.HandleFunc("/v1/sessions", s.sessionsHandler)
	mux.HandleFunc("/v1/windows", s.windowsHandler)
	return s
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start acquires the instance lock, listens and serves until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	fl := flock.New(s.opts.LockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring serve lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another serve instance holds %s", s.opts.LockPath)
	}
	s.lock = fl

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.lock.Unlock() //nolint:errcheck
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.listener = ln
	log.Printf("panerun: serving on %s", ln.Addr())

	if s.opts.SweepInterval > 0 {
		go func() {
			ticker := time.NewTicker(s.opts.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := s.engine.SweepTimeouts(ctx); n > 0 {
						log.Printf("panerun: swept %d timed out executions", n)
					}
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

// Shutdown stops the listener gracefully and releases the lock.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Do(func() {
		var errs []error
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if s.lock != nil {
			if err := s.lock.Unlock(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			s.shutdownErr = fmt.Errorf("shutdown errors: %v", errs)
		}
	})
	return s.shutdownErr
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": telem.Version,
	})
}

type submitRequest struct {
	Pane    string `json:"pane"`
	Command string `json:"command"`
	Timeout string `json:"timeout"`
	Detect  bool   `json:"detect"`
	Hooks   *bool  `json:"hooks"`
}

func (s *Server) executionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var list []track.Execution
		if r.URL.Query().Get("active") == "true" {
			list = s.engine.ListActive()
		} else {
			list = s.engine.ListAll()
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"executions": list})
	case http.MethodPost:
		s.submitExecution(w, r)
	case http.MethodDelete:
		maxAge := time.Duration(0)
		if raw := r.URL.Query().Get("max_age"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d < 0 {
				s.writeError(w, http.StatusBadRequest, "invalid_request", "max_age must be a non-negative duration")
				return
			}
			maxAge = d
		}
		n := s.engine.CleanupOld(maxAge)
		s.writeJSON(w, http.StatusOK, map[string]int{"evicted": n})
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) submitExecution(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	req.Pane = strings.TrimSpace(req.Pane)
	if req.Pane == "" || strings.TrimSpace(req.Command) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "pane and command are required")
		return
	}

	timeout, err := parseTimeout(req.Timeout)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if req.Detect {
		if _, err := s.engine.DetectShell(r.Context(), req.Pane); err != nil {
			s.writeEngineError(w, err)
			return
		}
	}

	rec, err := s.engine.Submit(r.Context(), req.Pane, req.Command, track.SubmitOptions{Timeout: timeout, UseHooks: req.Hooks})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) executionByIDHandler(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/executions/"), "/")
	if tail == "" {
		s.writeError(w, http.StatusNotFound, "not_found", "execution route not found")
		return
	}

	if id, ok := strings.CutSuffix(tail, "/cancel"); ok {
		if r.Method != http.MethodPost {
			s.methodNotAllowed(w, http.MethodPost)
			return
		}
		rec, err := s.engine.Cancel(r.Context(), id)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, rec)
		return
	}

	if strings.Contains(tail, "/") {
		s.writeError(w, http.StatusNotFound, "not_found", "execution route not found")
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	rec, err := s.engine.Poll(r.Context(), tail)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type detectRequest struct {
	Pane string `json:"pane"`
}

func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var req detectRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	req.Pane = strings.TrimSpace(req.Pane)
	if req.Pane == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "pane is required")
		return
	}
	info, err := s.engine.DetectShell(r.Context(), req.Pane)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"shell":      info.ShellName,
		"workingDir": info.WorkingDir,
		"systemInfo": info.SystemInfo,
	})
}

func (s *Server) panesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	panes, err := s.transport.ListPanes(r.URL.Query().Get("target"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"panes": panes})
}

type createSessionRequest struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := s.transport.ListSessions()
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
	case http.MethodPost:
		var req createSessionRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
			return
		}
		target, err := s.transport.CreateSession(req.Name, req.Dir)
		if err != nil {
			if errors.Is(err, tmux.ErrSessionExists) {
				s.writeError(w, http.StatusConflict, "session_exists", err.Error())
				return
			}
			s.writeEngineError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, map[string]string{"target": target})
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) windowsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	windows, err := s.transport.ListWindows(r.URL.Query().Get("session"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"windows": windows})
}

// parseTimeout maps the wire field onto the engine's submit convention:
// empty inherits the default, "0"/"off" disables the deadline.
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if raw == "0" || raw == "off" {
		return -1, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("timeout must be a duration: %v", err)
	}
	if d <= 0 {
		return -1, nil
	}
	return d, nil
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, track.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tmux.ErrTransport):
		s.writeError(w, http.StatusBadGateway, "transport_failed", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: msg}})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allow ...string) {
	if len(allow) > 0 {
		w.Header().Set("Allow", strings.Join(allow, ", "))
	}
	s.writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
}
