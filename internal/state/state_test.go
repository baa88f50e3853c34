package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rastow/panerun/internal/track"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenAt(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func terminalRecord(id string, status track.Status, endedAgo time.Duration) track.Execution {
	started := time.Now().Add(-endedAgo - time.Minute)
	ended := time.Now().Add(-endedAgo)
	code := 0
	if status == track.StatusError {
		code = 1
	}
	e := track.Execution{
		ID:         id,
		PaneTarget: "%1",
		Command:    "echo hi",
		Status:     status,
		StartedAt:  started,
		EndedAt:    &ended,
		Output:     "hi",
		ShellType:  "bash",
		WorkingDir: "/home/dev",
	}
	if status == track.StatusCompleted || status == track.StatusError {
		e.ExitCode = &code
	}
	return e
}

func TestRecordRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := terminalRecord("exec-1", track.StatusCompleted, time.Minute)
	want.Aborted = false
	want.RetryCount = 2
	if err := s.Record(want); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	e := got[0]
	if e.ID != want.ID || e.PaneTarget != want.PaneTarget || e.Command != want.Command {
		t.Errorf("identity fields: %+v", e)
	}
	if e.Status != track.StatusCompleted {
		t.Errorf("status = %s", e.Status)
	}
	if e.ExitCode == nil || *e.ExitCode != 0 {
		t.Errorf("exit code = %v", e.ExitCode)
	}
	if e.EndedAt == nil || !e.EndedAt.Equal(want.EndedAt.UTC()) {
		t.Errorf("ended at = %v, want %v", e.EndedAt, want.EndedAt)
	}
	if !e.StartedAt.Equal(want.StartedAt.UTC()) {
		t.Errorf("started at = %v, want %v", e.StartedAt, want.StartedAt)
	}
	if e.RetryCount != 2 || e.ShellType != "bash" || e.WorkingDir != "/home/dev" {
		t.Errorf("detail fields: %+v", e)
	}
}

func TestRecordUpsert(t *testing.T) {
	s := openTestStore(t)

	rec := terminalRecord("exec-1", track.StatusCompleted, time.Minute)
	if err := s.Record(rec); err != nil {
		t.Fatal(err)
	}
	rec.Status = track.StatusError
	one := 1
	rec.ExitCode = &one
	if err := s.Record(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert duplicated the row: %d records", len(got))
	}
	if got[0].Status != track.StatusError || *got[0].ExitCode != 1 {
		t.Errorf("upsert did not replace fields: %+v", got[0])
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	s := openTestStore(t)

	for i, age := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		rec := terminalRecord([]string{"a", "b", "c"}[i], track.StatusCompleted, age)
		if err := s.Record(rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("limit ignored: %d records", len(got))
	}
	// b ended an hour ago, c two hours ago
	if got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("order = %s, %s; want b, c", got[0].ID, got[1].ID)
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)

	if err := s.Record(terminalRecord("old", track.StatusCompleted, 48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(terminalRecord("fresh", track.StatusCompleted, time.Minute)); err != nil {
		t.Fatal(err)
	}

	n, err := s.Prune(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}

	got, _ := s.List(10)
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("surviving records: %+v", got)
	}
}

func TestPaneHooks(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetPaneHooks("%1", true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPaneHooks("work:2.1", true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPaneHooks("%1", false); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadHookPanes()
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := got["%1"]; !ok || v {
		t.Errorf("disabled pane: got %v, %v; want explicit false", v, ok)
	}
	if !got["work:2.1"] {
		t.Error("enabled pane missing from hook set")
	}
	if _, ok := got["%9"]; ok {
		t.Error("never-configured pane should be absent")
	}
}
