package shell

import (
	"strings"
	"testing"
)

func TestForName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Dialect
	}{
		{"bash", "bash", Bash},
		{"bash padded", "  Bash ", Bash},
		{"posix-bash alias", "posix-bash", Bash},
		{"zsh upper", "ZSH", Zsh},
		{"sh", "sh", Sh},
		{"dash", "dash", Sh},
		{"ash", "ash", Sh},
		{"posix-sh alias", "posix-sh", Sh},
		{"fish unsupported", "fish", Unknown},
		{"empty", "", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForName(tt.in); got != tt.want {
				t.Errorf("ForName(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTypeNames(t *testing.T) {
	want := map[Dialect]string{Bash: "bash", Zsh: "zsh", Sh: "sh", Unknown: "unknown"}
	for d, name := range want {
		if got := d.Type(); got != name {
			t.Errorf("%v.Type() = %q, want %q", d, got, name)
		}
	}
}

func TestUnknownReusesShScripts(t *testing.T) {
	start, end := "S_MARK", "E_MARK"
	if Unknown.SetupScript(start, end) != Sh.SetupScript(start, end) {
		t.Error("Unknown setup should match sh")
	}
	if Unknown.CleanupScript() != Sh.CleanupScript() {
		t.Error("Unknown cleanup should match sh")
	}
	if Unknown.CommandPrefix() != Sh.CommandPrefix() {
		t.Error("Unknown prefix should match sh")
	}
	if Unknown.Type() == Sh.Type() {
		t.Error("Unknown should keep its own name")
	}
}

func TestSetupScriptBash(t *testing.T) {
	script := Bash.SetupScript("PR_S_1", "PR_E_1")

	if !strings.Contains(script, `__pr_hook() { local __pr_ec=$?;`) {
		t.Error("hook must capture $? before anything else")
	}
	if !strings.Contains(script, "PROMPT_COMMAND=\"__pr_hook") {
		t.Error("hook must be spliced into PROMPT_COMMAND")
	}
	if !strings.Contains(script, `case "$__pr_last" in *"PR_S_1"*)`) {
		t.Error("hook must fire only for lines carrying the start marker")
	}
	if !strings.Contains(script, `echo "PR_E_1:$__pr_ec"`) {
		t.Error("hook must emit the end marker with the captured exit code")
	}
	if !strings.Contains(script, "__pr_done=1") || !strings.Contains(script, `if [ -n "$__pr_done" ]`) {
		t.Error("hook must be one-shot")
	}
	if !strings.Contains(script, `if [ -z "$__pr_armed" ]`) {
		t.Error("hook must skip its own installation line")
	}
	if !strings.Contains(script, "unset -f __pr_hook") {
		t.Error("hook must uninstall itself after firing")
	}
}

func TestSetupScriptZsh(t *testing.T) {
	script := Zsh.SetupScript("PR_S_2", "PR_E_2")

	if !strings.Contains(script, "precmd_functions+=(__pr_hook)") {
		t.Error("hook must register as a precmd function")
	}
	if !strings.Contains(script, "${precmd_functions:#__pr_hook}") {
		t.Error("hook must remove itself from precmd_functions")
	}
	if !strings.Contains(script, `local __pr_ec=$?`) {
		t.Error("hook must capture $? first")
	}
	if !strings.Contains(script, `echo "PR_E_2:$__pr_ec"`) {
		t.Error("hook must emit the end marker with the exit code")
	}
}

func TestSetupScriptSh(t *testing.T) {
	script := Sh.SetupScript("PR_S_3", "PR_E_3")

	if !strings.Contains(script, "trap '") || !strings.Contains(script, "' EXIT") {
		t.Error("sh fallback must install an EXIT trap")
	}
	if !strings.Contains(script, `if [ -e "$__pr_sentinel" ]`) {
		t.Error("trap must be gated on the sentinel file")
	}
	if !strings.Contains(script, `echo "PR_E_3:$?"`) {
		t.Error("trap must emit the end marker with the exit code")
	}
	if !strings.Contains(script, `rm -f "$__pr_sentinel"`) {
		t.Error("trap must clear the sentinel to rearm")
	}
	if strings.Contains(script, "PR_S_3") {
		t.Error("sh trap has no command-line compare, start marker unused")
	}
}

func TestCleanupScripts(t *testing.T) {
	if s := Bash.CleanupScript(); !strings.Contains(s, `PROMPT_COMMAND="$__pr_saved_pc"`) {
		t.Errorf("bash cleanup must restore PROMPT_COMMAND: %s", s)
	}
	if s := Zsh.CleanupScript(); !strings.Contains(s, "${precmd_functions:#__pr_hook}") {
		t.Errorf("zsh cleanup must drop the precmd function: %s", s)
	}
	if s := Sh.CleanupScript(); !strings.Contains(s, "trap - EXIT") {
		t.Errorf("sh cleanup must clear the trap: %s", s)
	}
}

func TestCommandPrefix(t *testing.T) {
	if got := Bash.CommandPrefix(); got != "" {
		t.Errorf("bash prefix: got %q, want empty", got)
	}
	if got := Zsh.CommandPrefix(); got != "" {
		t.Errorf("zsh prefix: got %q, want empty", got)
	}
	for _, d := range []Dialect{Sh, Unknown} {
		got := d.CommandPrefix()
		if !strings.HasPrefix(got, "touch ") || !strings.HasSuffix(got, "; ") {
			t.Errorf("%v prefix must touch the sentinel: %q", d, got)
		}
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", "'abc'"},
		{"a b", "'a b'"},
		{"it's", `'it'"'"'s'`},
		{"''", `''"'"''"'"''`},
		{"", "''"},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestHookSupported(t *testing.T) {
	if !Bash.HookSupported() || !Zsh.HookSupported() {
		t.Error("bash and zsh have real hooks")
	}
	if Sh.HookSupported() || Unknown.HookSupported() {
		t.Error("sh and unknown have no per-prompt hook")
	}
}

func TestDetectionProbeShape(t *testing.T) {
	script := Bash.DetectionScript()

	for _, tag := range []string{"SHELL_TYPE=zsh", "SHELL_TYPE=bash", "SHELL_TYPE=sh", "PWD_PATH=$PWD", "SYSTEM_INFO="} {
		if !strings.Contains(script, tag) {
			t.Errorf("probe missing %q: %s", tag, script)
		}
	}
	// An exported BASH_VERSION can leak into a child zsh, so the
	// ZSH_VERSION test must come first.
	if strings.Index(script, "ZSH_VERSION") > strings.Index(script, "BASH_VERSION") {
		t.Error("probe must test ZSH_VERSION before BASH_VERSION")
	}
	if script != Sh.DetectionScript() || script != Unknown.DetectionScript() {
		t.Error("every dialect shares the self-identifying probe")
	}
}
