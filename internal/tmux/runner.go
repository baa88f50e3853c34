package tmux

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
)

// Runner executes a single external command and returns its stdout.
// The seam exists so transports can be exercised with scripted fakes.
type Runner interface {
	Run(name string, args ...string) (string, error)
}

// execRunner shells out for real, capturing stderr into the error.
type execRunner struct{}

func (execRunner) Run(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.New(msg)
	}
	return stdout.String(), nil
}
