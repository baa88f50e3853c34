package shell

import (
	"regexp"
	"strings"
)

// DetectionWindow is how many trailing lines of a capture the parser
// inspects for identity tags.
const DetectionWindow = 10

// DetectionInfo is the parsed result of a detection probe.
type DetectionInfo struct {
	Shell      Dialect
	ShellName  string
	WorkingDir string
	SystemInfo string
}

const (
	shellTypeTag  = "SHELL_TYPE="
	pwdPathTag    = "PWD_PATH="
	systemInfoTag = "SYSTEM_INFO="
)

var ansiRe = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\))`)

// StripANSI removes ANSI escape sequences so marker and tag scans see
// the plain text the shell emitted.
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// CleanScreen normalizes a raw capture: escapes stripped, \r\n and bare
// \r collapsed to \n.
func CleanScreen(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ParseDetection scans the last DetectionWindow lines of a capture for
// the tagged identity lines the detection probe prints. Both SHELL_TYPE
// and PWD_PATH must be present; SYSTEM_INFO is optional. Returns nil
// when either required tag is missing. Later occurrences win, so a
// re-probed pane resolves to its newest answer.
func ParseDetection(capture string) *DetectionInfo {
	lines := strings.Split(CleanScreen(capture), "\n")
	if len(lines) > DetectionWindow {
		lines = lines[len(lines)-DetectionWindow:]
	}

	var shellName, workingDir, systemInfo string
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		switch {
		case strings.HasPrefix(line, shellTypeTag):
			shellName = line[len(shellTypeTag):]
		case strings.HasPrefix(line, pwdPathTag):
			workingDir = line[len(pwdPathTag):]
		case strings.HasPrefix(line, systemInfoTag):
			systemInfo = line[len(systemInfoTag):]
		}
	}

	if shellName == "" || workingDir == "" {
		return nil
	}
	return &DetectionInfo{
		Shell:      ForName(shellName),
		ShellName:  shellName,
		WorkingDir: workingDir,
		SystemInfo: systemInfo,
	}
}
