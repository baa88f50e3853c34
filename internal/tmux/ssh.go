package tmux

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// SSH runs tmux commands on a remote host over a ControlMaster-
// multiplexed connection, so repeated polls reuse one TCP session.
type SSH struct {
	Nickname string
	Host     string
	User     string
	SSHKey   string
	Runner   Runner
}

func (s *SSH) HostName() string { return s.Nickname }

func (s *SSH) runner() Runner {
	if s.Runner != nil {
		return s.Runner
	}
	return execRunner{}
}

func (s *SSH) sshArgs() []string {
	args := []string{
		"-o", "ControlMaster=auto",
		"-o", "ControlPath=/tmp/panerun-ssh-%r@%h:%p",
		"-o", "ControlPersist=60",
		"-o", "StrictHostKeyChecking=accept-new",
	}
	if s.SSHKey != "" {
		args = append(args, "-i", s.SSHKey)
	}
	args = append(args, s.userHost())
	return args
}

func (s *SSH) userHost() string {
	if s.User == "" {
		return s.Host
	}
	return fmt.Sprintf("%s@%s", s.User, s.Host)
}

// run quotes each tmux argument for the remote shell and executes the
// whole invocation over ssh.
func (s *SSH) run(args ...string) (string, error) {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, "tmux")
	for _, a := range args {
		quoted = append(quoted, shellQuote(a))
	}
	sshCmd := append(s.sshArgs(), strings.Join(quoted, " "))
	out, err := s.runner().Run("ssh", sshCmd...)
	if err != nil {
		return "", wrapError(args[0], err)
	}
	return out, nil
}

func (s *SSH) SendText(target, text string) error {
	_, err := s.run("send-keys", "-t", target, "-l", "--", text)
	return err
}

func (s *SSH) SendEnter(target string) error {
	_, err := s.run("send-keys", "-t", target, "Enter")
	return err
}

func (s *SSH) SendKey(target, key string) error {
	_, err := s.run("send-keys", "-t", target, key)
	return err
}

func (s *SSH) Capture(target string, lines int) (string, error) {
	return s.run("capture-pane", "-t", target, "-p", "-J", "-S", fmt.Sprintf("-%d", lines))
}

func (s *SSH) ListSessions() ([]SessionInfo, error) {
	out, err := s.run("list-sessions", "-F", sessionFormat)
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil
		}
		return nil, err
	}
	return parseSessionList(out), nil
}

func (s *SSH) ListWindows(session string) ([]WindowInfo, error) {
	out, err := s.run("list-windows", "-t", session, "-F", windowFormat)
	if err != nil {
		return nil, err
	}
	return parseWindowList(out), nil
}

func (s *SSH) ListPanes(target string) ([]PaneInfo, error) {
	args := []string{"list-panes", "-F", paneFormat}
	if target == "" {
		args = append(args, "-a")
	} else {
		args = append(args, "-s", "-t", target)
	}
	out, err := s.run(args...)
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil
		}
		return nil, err
	}
	return parsePaneList(out), nil
}

func (s *SSH) PaneInfo(target string) (PaneInfo, error) {
	out, err := s.run("display-message", "-t", target, "-p", paneFormat)
	if err != nil {
		return PaneInfo{}, err
	}
	info, ok := parsePaneLine(strings.TrimSpace(out))
	if !ok {
		return PaneInfo{}, fmt.Errorf("tmux display-message: %w: unexpected output %q", ErrTransport, out)
	}
	return info, nil
}

func (s *SSH) HasSession(name string) bool {
	_, err := s.run("has-session", "-t", "="+name)
	return err == nil
}

func (s *SSH) CreateSession(name, workDir string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("invalid session name %q", name)
	}
	args := []string{"new-session", "-d", "-s", name, "-P", "-F", "#{pane_id}"}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	out, err := s.run(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *SSH) CreateWindow(session, name, workDir string) (string, error) {
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
	out, err := s.run(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *SSH) SplitPane(target string, vertical bool, workDir string) (string, error) {
	direction := "-h"
	if vertical {
		direction = "-v"
	}
	args := []string{"split-window", "-d", direction, "-t", target, "-P", "-F", "#{pane_id}"}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	out, err := s.run(args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *SSH) KillSession(name string) error {
	_, err := s.run("kill-session", "-t", "="+name)
	return err
}

// AttachSession opens an interactive remote attach with a forced TTY.
func (s *SSH) AttachSession(name string) error {
	args := []string{"-t"}
	args = append(args, s.sshArgs()...)
	args = append(args, fmt.Sprintf("tmux attach-session -t %s", shellQuote("="+name)))
	cmd := exec.Command("ssh", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = filterTMUX(os.Environ())
	return cmd.Run()
}

// shellQuote wraps a string in single quotes, escaping any single quotes
// inside.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}
