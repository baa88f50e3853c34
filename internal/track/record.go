package track

import "time"

// Status is the lifecycle state of a tracked execution. Transitions are
// one-directional: pending, optionally running, then exactly one
// terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// Execution is one tracked command on one pane. EndedAt is set exactly
// once, when the record turns terminal; ExitCode only accompanies
// completed and error.
type Execution struct {
	ID         string     `json:"id"`
	PaneTarget string     `json:"paneTarget"`
	Command    string     `json:"command"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	ExitCode   *int       `json:"exitCode,omitempty"`
	Output     string     `json:"output"`
	ShellType  string     `json:"shellType"`
	WorkingDir string     `json:"workingDir,omitempty"`
	RetryCount int        `json:"retryCount"`
	Aborted    bool       `json:"aborted"`

	// engine-owned tracking state, never serialized
	startMarker string
	endMarker   string
	composite   string
	deadline    time.Time
	lastSentAt  time.Time
}

func (e Execution) Terminal() bool { return e.Status.Terminal() }

// finish moves a record into a terminal state, stamping EndedAt once.
func (e *Execution) finish(s Status, now time.Time) {
	e.Status = s
	e.EndedAt = &now
}
