// Package panes joins live tmux pane listings with what the tracking
// engine knows about each pane.
package panes

import (
	"fmt"
	"sort"
	"time"

	"github.com/rastow/panerun/internal/tmux"
	"github.com/rastow/panerun/internal/track"
)

// View is one pane enriched with tracking state. Shell and WorkingDir
// come from the detection cache and stay empty until a probe ran.
type View struct {
	tmux.PaneInfo
	Shell      string
	WorkingDir string
	Active     int          // non-terminal executions targeting this pane
	LastStatus track.Status // newest execution's status, "" when untracked
	LastAge    time.Duration
}

// List returns all panes under target (every pane when target is empty),
// each joined with the engine's detection cache and execution registry.
// Executions match a pane by its %id or its session:window.pane form.
func List(tr tmux.Transport, eng *track.Engine, target string) ([]View, error) {
	infos, err := tr.ListPanes(target)
	if err != nil {
		return nil, err
	}

	recs := eng.ListAll()
	views := make([]View, 0, len(infos))
	for _, info := range infos {
		v := View{PaneInfo: info}
		if det := eng.Detection(info.ID); det != nil {
			v.Shell = det.ShellName
			v.WorkingDir = det.WorkingDir
		}
		for _, rec := range recs {
			if rec.PaneTarget != info.ID && rec.PaneTarget != info.Target() {
				continue
			}
			if !rec.Terminal() {
				v.Active++
			}
			if v.LastStatus == "" {
				v.LastStatus = rec.Status
				v.LastAge = time.Since(rec.StartedAt)
			}
		}
		views = append(views, v)
	}
	Sort(views)
	return views, nil
}

// viewPriority ranks panes for display (lower shows first).
func viewPriority(v View) int {
	switch {
	case v.Active > 0:
		return 0
	case v.LastStatus != "":
		return 1
	default:
		return 2
	}
}

// Sort orders panes with running work first, then previously tracked
// panes, then the rest in session:window.pane order.
func Sort(views []View) {
	sort.SliceStable(views, func(i, j int) bool {
		pi, pj := viewPriority(views[i]), viewPriority(views[j])
		if pi != pj {
			return pi < pj
		}
		if views[i].Session != views[j].Session {
			return views[i].Session < views[j].Session
		}
		if views[i].WindowIndex != views[j].WindowIndex {
			return views[i].WindowIndex < views[j].WindowIndex
		}
		return views[i].PaneIndex < views[j].PaneIndex
	})
}

// FormatDurationCoarse formats a duration using only the largest unit.
func FormatDurationCoarse(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %dh", days, hours)
}
