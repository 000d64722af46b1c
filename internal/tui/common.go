package tui

import (
	"fmt"
	"time"

	"github.com/sadopc/punchclock/internal/session"
	"github.com/sadopc/punchclock/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTimer viewState = iota
	viewHistory
	viewReports
	viewSettings
)

var viewNames = []string{"Timer", "History", "Reports", "Settings"}

// --- Messages ---

// sessionEventMsg carries a controller event into the program.
type sessionEventMsg session.Event

type timerStartedMsg struct {
	period *store.TrackedPeriod
}

type timerStoppedMsg struct {
	period *store.TrackedPeriod
}

type photoAttachedMsg struct {
	image *store.Image
}

type periodsClearedMsg struct {
	removed int64
}

type statusMsg struct {
	text    string
	isError bool
}

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs int64) string {
	return formatDuration(time.Duration(secs) * time.Second)
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

func formatLocation(l store.Location) string {
	return fmt.Sprintf("%.4f, %.4f", l.Latitude, l.Longitude)
}

// utcDay returns the UTC midnight at or before t.
func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func errStatus(prefix string, err error) statusMsg {
	return statusMsg{text: fmt.Sprintf("%s: %v", prefix, err), isError: true}
}
