package tmux

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Transport abstracts pane operations so they can run against a local
// tmux server or a remote one over SSH. Every method is a stateless
// wrapper around a single tmux invocation (SendLine composes two).
type Transport interface {
	HostName() string
	SendText(target, text string) error
	SendEnter(target string) error
	SendKey(target, key string) error
	Capture(target string, lines int) (string, error)
	ListSessions() ([]SessionInfo, error)
	ListWindows(session string) ([]WindowInfo, error)
	ListPanes(target string) ([]PaneInfo, error)
	PaneInfo(target string) (PaneInfo, error)
	HasSession(name string) bool
	CreateSession(name, workDir string) (string, error)
	CreateWindow(session, name, workDir string) (string, error)
	SplitPane(target string, vertical bool, workDir string) (string, error)
	KillSession(name string) error
	AttachSession(name string) error
}

type SessionInfo struct {
	Name          string
	AttachedCount int
	Windows       int
	Created       time.Time
}

type WindowInfo struct {
	Session string
	Index   int
	Name    string
	Active  bool
	Panes   int
}

type PaneInfo struct {
	ID          string // unique %N pane id, the preferred target form
	Session     string
	WindowIndex int
	PaneIndex   int
	CurrentPath string
	Width       int
	Height      int
	Active      bool
	Title       string
}

// Target returns the session:window.pane form, readable in listings.
func (p PaneInfo) Target() string {
	return p.Session + ":" + strconv.Itoa(p.WindowIndex) + "." + strconv.Itoa(p.PaneIndex)
}

const (
	// enterDelay separates literal text from the Enter keypress; tmux
	// 3.2+ bracketed paste can swallow an immediately following Enter.
	enterDelay = 100 * time.Millisecond

	sessionFormat = "#{session_name}\t#{session_attached}\t#{session_windows}\t#{session_created}"
	windowFormat  = "#{session_name}\t#{window_index}\t#{window_name}\t#{window_active}\t#{window_panes}"
	paneFormat    = "#{pane_id}\t#{session_name}\t#{window_index}\t#{pane_index}\t#{pane_current_path}\t#{pane_width}\t#{pane_height}\t#{pane_active}\t#{pane_title}"
)

// Sender is the minimal text-injection surface of a Transport.
type Sender interface {
	SendText(target, text string) error
	SendEnter(target string) error
}

// SendLine sends text literally, waits out the paste delay, then presses
// Enter.
func SendLine(s Sender, target, text string) error {
	if err := s.SendText(target, text); err != nil {
		return err
	}
	time.Sleep(enterDelay)
	return s.SendEnter(target)
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

func validName(name string) bool {
	return nameRe.MatchString(name)
}

func parseSessionList(output string) []SessionInfo {
	var sessions []SessionInfo
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) != 4 {
			continue
		}
		attached, _ := strconv.Atoi(parts[1])
		windows, _ := strconv.Atoi(parts[2])
		createdUnix, _ := strconv.ParseInt(parts[3], 10, 64)
		sessions = append(sessions, SessionInfo{
			Name:          parts[0],
			AttachedCount: attached,
			Windows:       windows,
			Created:       time.Unix(createdUnix, 0),
		})
	}
	return sessions
}

func parseWindowList(output string) []WindowInfo {
	var windows []WindowInfo
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 5)
		if len(parts) != 5 {
			continue
		}
		index, _ := strconv.Atoi(parts[1])
		panes, _ := strconv.Atoi(parts[4])
		windows = append(windows, WindowInfo{
			Session: parts[0],
			Index:   index,
			Name:    parts[2],
			Active:  parts[3] == "1",
			Panes:   panes,
		})
	}
	return windows
}

func parsePaneList(output string) []PaneInfo {
	var panes []PaneInfo
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		if p, ok := parsePaneLine(line); ok {
			panes = append(panes, p)
		}
	}
	return panes
}

func parsePaneLine(line string) (PaneInfo, bool) {
	parts := strings.SplitN(line, "\t", 9)
	if len(parts) != 9 {
		return PaneInfo{}, false
	}
	windowIndex, _ := strconv.Atoi(parts[2])
	paneIndex, _ := strconv.Atoi(parts[3])
	width, _ := strconv.Atoi(parts[5])
	height, _ := strconv.Atoi(parts[6])
	return PaneInfo{
		ID:          parts[0],
		Session:     parts[1],
		WindowIndex: windowIndex,
		PaneIndex:   paneIndex,
		CurrentPath: parts[4],
		Width:       width,
		Height:      height,
		Active:      parts[7] == "1",
		Title:       parts[8],
	}, true
}
