package track

import (
	"strconv"
	"strings"

	"github.com/rastow/panerun/internal/shell"
)

const (
	startMarkerPrefix = "__PANERUN_BEGIN__"
	endMarkerPrefix   = "__PANERUN_END__"
)

// markersFor derives the per-execution marker pair from the record id,
// so no two executions can ever confuse each other's brackets.
func markersFor(id string) (start, end string) {
	token := strings.ReplaceAll(id, "-", "")
	return startMarkerPrefix + token + "__", endMarkerPrefix + token + "__"
}

// wrapCommand builds the composite line for the inline protocol: echo
// the start marker, run the command untouched, capture its status, echo
// the end marker carrying the status. Markers are quoted against the
// target shell; $? is captured before the trailing echo can clobber it.
func wrapCommand(d shell.Dialect, command, start, end string) string {
	return d.CommandPrefix() +
		"echo " + shell.Quote(start) + "; " +
		command +
		"; __pr_ec=$?; echo " + shell.Quote(end) + ":$__pr_ec"
}

// hookCommand builds the composite for the hook protocol: only the
// start marker is inlined, the installed hook emits the end line.
func hookCommand(d shell.Dialect, command, start string) string {
	return d.CommandPrefix() + "echo " + shell.Quote(start) + "; " + command
}

type scanResult struct {
	startLine int // last line containing the start marker, -1 if absent
	endLine   int // last line after startLine containing the end marker, -1 if absent
	output    string
	exitCode  *int
}

// scanMarkers resolves the newest occurrence of a marker pair in a
// clean capture. The typed composite line itself contains both markers,
// so the end marker only counts on a line after the last start
// sighting; a retry re-send resolves to its newest pair the same way.
func scanMarkers(capture, start, end string) scanResult {
	lines := strings.Split(capture, "\n")
	res := scanResult{startLine: -1, endLine: -1}

	for i, line := range lines {
		if strings.Contains(line, start) {
			res.startLine = i
		}
	}
	if res.startLine == -1 {
		return res
	}

	for i := len(lines) - 1; i > res.startLine; i-- {
		if strings.Contains(lines[i], end) {
			res.endLine = i
			break
		}
	}
	if res.endLine == -1 {
		return res
	}

	res.output = strings.TrimSpace(strings.Join(lines[res.startLine+1:res.endLine], "\n"))
	res.exitCode = parseExitCode(capture, end)
	return res
}

// parseExitCode finds the last "<end>:<digits>" token in the capture.
// Tokens without digits (the typed line shows the unexpanded variable)
// are skipped. Returns nil when no usable token exists.
func parseExitCode(capture, end string) *int {
	needle := end + ":"
	idx := strings.LastIndex(capture, needle)
	for idx >= 0 {
		rest := capture[idx+len(needle):]
		n := 0
		for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		if n > 0 {
			if code, err := strconv.Atoi(rest[:n]); err == nil {
				return &code
			}
		}
		idx = strings.LastIndex(capture[:idx], needle)
	}
	return nil
}
