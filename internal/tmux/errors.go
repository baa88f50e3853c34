package tmux

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTransport is the base kind for every failed tmux invocation. All
// errors returned by a Transport match it via errors.Is.
var ErrTransport = errors.New("transport invocation failed")

// Well-known stderr shapes mapped onto the base kind.
var (
	ErrNoServer        = fmt.Errorf("%w: no server running", ErrTransport)
	ErrSessionExists   = fmt.Errorf("%w: session already exists", ErrTransport)
	ErrSessionNotFound = fmt.Errorf("%w: session not found", ErrTransport)
)

// wrapError classifies a failed invocation by its stderr text. op is the
// tmux subcommand that failed.
func wrapError(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no server running"),
		strings.Contains(msg, "error connecting to"):
		return fmt.Errorf("tmux %s: %w", op, ErrNoServer)
	case strings.Contains(msg, "duplicate session"):
		return fmt.Errorf("tmux %s: %w", op, ErrSessionExists)
	case strings.Contains(msg, "session not found"),
		strings.Contains(msg, "can't find session"),
		strings.Contains(msg, "can't find window"),
		strings.Contains(msg, "can't find pane"):
		return fmt.Errorf("tmux %s: %w", op, ErrSessionNotFound)
	}
	return fmt.Errorf("tmux %s: %w: %s", op, ErrTransport, msg)
}
