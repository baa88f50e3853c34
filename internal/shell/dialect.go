package shell

import (
	"strings"
)

// Dialect identifies a shell family. The set is closed: anything
// unrecognized maps to Unknown, which reuses the sh scripts as the safe
// fallback.
type Dialect int

const (
	Bash Dialect = iota
	Zsh
	Sh
	Unknown
)

// ForName resolves a reported shell name to a dialect. Names are
// trimmed and lower-cased first.
func ForName(name string) Dialect {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bash", "posix-bash":
		return Bash
	case "zsh":
		return Zsh
	case "sh", "dash", "ash", "posix-sh":
		return Sh
	default:
		return Unknown
	}
}

func (d Dialect) Type() string {
	switch d {
	case Bash:
		return "bash"
	case Zsh:
		return "zsh"
	case Sh:
		return "sh"
	default:
		return "unknown"
	}
}

func (d Dialect) String() string { return d.Type() }

// sentinelPath is the rearm file used by the sh trap hook and touched by
// the sh command prefix.
const sentinelPath = `"${TMPDIR:-/tmp}/.panerun-mark"`

// DetectionScript returns a probe that prints the tagged identity lines
// on any POSIX-family shell. The same probe serves every dialect: it
// self-identifies through version variables, so it also works on a pane
// whose shell is not yet known.
func (d Dialect) DetectionScript() string {
	return `if [ -n "$ZSH_VERSION" ]; then echo "SHELL_TYPE=zsh"; ` +
		`elif [ -n "$BASH_VERSION" ]; then echo "SHELL_TYPE=bash"; ` +
		`else echo "SHELL_TYPE=sh"; fi; ` +
		`echo "PWD_PATH=$PWD"; ` +
		`echo "SYSTEM_INFO=$(uname -sr 2>/dev/null || echo unknown)"`
}

// SetupScript installs a post-command hook that emits the end marker and
// exit code after the tracked command runs. The hook captures $? before
// anything else, skips its own installation line via an arming pass,
// fires only for a command line carrying the start marker, and
// uninstalls itself exactly once behind the __pr_done flag.
func (d Dialect) SetupScript(startMarker, endMarker string) string {
	switch d {
	case Bash:
		return `__pr_done=; __pr_armed=; __pr_saved_pc="$PROMPT_COMMAND"; ` +
			`__pr_hook() { local __pr_ec=$?; ` +
			`if [ -n "$__pr_done" ]; then return $__pr_ec; fi; ` +
			`if [ -z "$__pr_armed" ]; then __pr_armed=1; return $__pr_ec; fi; ` +
			`local __pr_last; __pr_last=$(fc -ln -1 2>/dev/null); ` +
			`case "$__pr_last" in *"` + startMarker + `"*) __pr_done=1; ` +
			`echo "` + endMarker + `:$__pr_ec"; ` +
			`PROMPT_COMMAND="$__pr_saved_pc"; unset -f __pr_hook;; esac; ` +
			`return $__pr_ec; }; ` +
			`PROMPT_COMMAND="__pr_hook${PROMPT_COMMAND:+; $PROMPT_COMMAND}"`
	case Zsh:
		return `__pr_done=; __pr_armed=; ` +
			`__pr_hook() { local __pr_ec=$?; ` +
			`if [ -n "$__pr_done" ]; then return $__pr_ec; fi; ` +
			`if [ -z "$__pr_armed" ]; then __pr_armed=1; return $__pr_ec; fi; ` +
			`local __pr_last; __pr_last=$(fc -ln -1 2>/dev/null); ` +
			`case "$__pr_last" in *"` + startMarker + `"*) __pr_done=1; ` +
			`echo "` + endMarker + `:$__pr_ec"; ` +
			`precmd_functions=(${precmd_functions:#__pr_hook}); unset -f __pr_hook;; esac; ` +
			`return $__pr_ec; }; ` +
			`precmd_functions+=(__pr_hook)`
	default:
		// Plain sh has no per-prompt hook. The trap fires on shell exit
		// and only when the prefix has touched the sentinel, so it can
		// never block an interactive session; the inline wrapper is the
		// reliable completion path for this family.
		return `__pr_sentinel=` + sentinelPath + `; ` +
			`trap 'if [ -e "$__pr_sentinel" ]; then echo "` + endMarker + `:$?"; rm -f "$__pr_sentinel"; fi' EXIT`
	}
}

// CleanupScript removes everything SetupScript installed, whether or not
// the hook ever fired.
func (d Dialect) CleanupScript() string {
	switch d {
	case Bash:
		return `unset -f __pr_hook 2>/dev/null; PROMPT_COMMAND="$__pr_saved_pc"; ` +
			`unset __pr_saved_pc __pr_done __pr_armed`
	case Zsh:
		return `precmd_functions=(${precmd_functions:#__pr_hook}); ` +
			`unset -f __pr_hook 2>/dev/null; unset __pr_done __pr_armed`
	default:
		return `trap - EXIT; rm -f ` + sentinelPath + `; unset __pr_sentinel`
	}
}

// CommandPrefix is prepended to every submitted command line. Empty for
// shells with real hooks; sh rearms its exit trap through the sentinel.
func (d Dialect) CommandPrefix() string {
	switch d {
	case Bash, Zsh:
		return ""
	default:
		return `touch ` + sentinelPath + `; `
	}
}

// Quote wraps s in single quotes with embedded single quotes escaped,
// safe to splice into a command line for any POSIX-family shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// HookSupported reports whether the dialect has a real post-command
// hook, making the hook protocol usable for exit reporting.
func (d Dialect) HookSupported() bool {
	return d == Bash || d == Zsh
}
