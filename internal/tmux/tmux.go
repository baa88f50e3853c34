package tmux

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Local runs tmux commands on the local machine. The zero value uses the
// real tmux binary; tests supply a scripted Runner.
type Local struct {
	Runner Runner
}

func NewLocal() *Local { return &Local{} }

func (l *Local) HostName() string { return "" }

func (l *Local) runner() Runner {
	if l.Runner != nil {
		return l.Runner
	}
	return execRunner{}
}

func (l *Local) run(args ...string) (string, error) {
	out, err := l.runner().Run("tmux", args...)
	if err != nil {
		return "", wrapError(args[0], err)
	}
	return out, nil
}

// SendText sends text as literal keystrokes. -l disables key-name
// interpretation and -- keeps leading dashes out of tmux's flag parser.
func (l *Local) SendText(target, text string) error {
	_, err := l.run("send-keys", "-t", target, "-l", "--", text)
	return err
}

// SendEnter presses Enter; kept separate from SendText so callers can
// wait out bracketed paste first.
func (l *Local) SendEnter(target string) error {
	_, err := l.run("send-keys", "-t", target, "Enter")
	return err
}

// SendKey sends a named key such as "C-c".
func (l *Local) SendKey(target, key string) error {
	_, err := l.run("send-keys", "-t", target, key)
	return err
}

// Capture returns the last N lines of a pane, scrollback included,
// with wrapped lines joined.
func (l *Local) Capture(target string, lines int) (string, error) {
	return l.run("capture-pane", "-t", target, "-p", "-J", "-S", fmt.Sprintf("-%d", lines))
}

func (l *Local) ListSessions() ([]SessionInfo, error) {
	out, err := l.run("list-sessions", "-F", sessionFormat)
	if err != nil {
		// no server means no sessions, not a failure
		if errors.Is(err, ErrNoServer) {
			return nil, nil
		}
		return nil, err
	}
	return parseSessionList(out), nil
}

func (l *Local) ListWindows(session string) ([]WindowInfo, error) {
	out, err := l.run("list-windows", "-t", session, "-F", windowFormat)
	if err != nil {
		return nil, err
	}
	return parseWindowList(out), nil
}

// ListPanes lists panes under target, or every pane on the server when
// target is empty.
func (l *Local) ListPanes(target string) ([]PaneInfo, error) {
	args := []string{"list-panes", "-F", paneFormat}
	if target == "" {
		args = append(args, "-a")
	} else {
		args = append(args, "-s", "-t", target)
	}
	out, err := l.run(args...)
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil
		}
		return nil, err
	}
	return parsePaneList(out), nil
}

func (l *Local) PaneInfo(target string) (PaneInfo, error) {
	out, err := l.run("display-message", "-t", target, "-p", paneFormat)
	if err != nil {
		return PaneInfo{}, err
	}
	info, ok := parsePaneLine(strings.TrimSpace(out))
	if !ok {
		return PaneInfo{}, fmt.Errorf("tmux display-message: %w: unexpected output %q", ErrTransport, out)
	}
	return info, nil
}

func (l *Local) HasSession(name string) bool {
	_, err := l.run("has-session", "-t", "="+name)
	return err == nil
}

// CreateSession creates a detached session and returns the id of its
// first pane.
func (l *Local) CreateSession(name, workDir string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("invalid session name %q", name)
	}
	args := []string{"new-session", "-d", "-s", name, "-P", "-F", "#{pane_id}"}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	out, err := l.run(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (l *Local) CreateWindow(session, name, workDir string) (string, error) {
	args := []string{"new-window", "-d", "-t", session, "-P", "-F", "#{pane_id}"}
	if name != "" {
		if !validName(name) {
			return "", fmt.Errorf("invalid window name %q", name)
		}
		args = append(args, "-n", name)
	}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	out, err := l.run(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (l *Local) SplitPane(target string, vertical bool, workDir string) (string, error) {
	direction := "-h"
	if vertical {
		direction = "-v"
	}
	args := []string{"split-window", "-d", direction, "-t", target, "-P", "-F", "#{pane_id}"}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	out, err := l.run(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (l *Local) KillSession(name string) error {
	_, err := l.run("kill-session", "-t", "="+name)
	return err
}

// filterTMUX removes the TMUX env var so we can attach from within tmux.
func filterTMUX(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "TMUX=") {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// AttachSession runs tmux attach as a child process (returns on detach).
func (l *Local) AttachSession(name string) error {
	tmuxBin, err := exec.LookPath("tmux")
	if err != nil {
		return fmt.Errorf("tmux not found: %w", err)
	}
	cmd := exec.Command(tmuxBin, "attach-session", "-t", "="+name)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = filterTMUX(os.Environ())
	return cmd.Run()
}
