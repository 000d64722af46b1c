package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/punchclock/internal/adapter/auth"
	"github.com/sadopc/punchclock/internal/adapter/photo"
	"github.com/sadopc/punchclock/internal/session"
	"github.com/sadopc/punchclock/internal/store"
)

type formKind int

const (
	formNone formKind = iota
	formPIN
	formPhoto
)

// timerModel is the main view: the running session, today's total and the
// most recent periods. All controller calls run inside tea.Cmds.
type timerModel struct {
	ctrl          *session.Controller
	store         *store.Store
	userID        int64
	gate          session.AuthPort
	secrets       *auth.Pending
	maxPhotoBytes int64
	width         int
	height        int

	state        session.State
	elapsed      time.Duration
	period       *store.TrackedPeriod
	lastNotified time.Duration
	busy         bool

	todayTotal int64
	todayCount int
	photoCount int
	dailyGoal  time.Duration
	recent     []store.TrackedPeriod

	formActive bool
	formKind   formKind
	form       *huh.Form

	// Form values as pointers (survive value copies)
	pin       *string
	photoPath *string
}

func newTimerModel(d Deps) timerModel {
	pin, path := "", ""
	t := timerModel{
		ctrl:          d.Controller,
		store:         d.Store,
		userID:        d.Controller.UserID(),
		gate:          d.Gate,
		secrets:       d.Secrets,
		maxPhotoBytes: d.MaxPhotoBytes,
		dailyGoal:     8 * time.Hour,
		pin:           &pin,
		photoPath:     &path,
	}
	t.sync()
	return t
}

func (t timerModel) Init() tea.Cmd {
	return tea.Batch(t.load(), t.loadData())
}

func (t *timerModel) setSize(w, h int) {
	t.width = w
	t.height = h
}

func (t timerModel) running() bool { return t.state == session.StateRunning }

// sync copies the controller's state into the model.
func (t *timerModel) sync() {
	t.state = t.ctrl.State()
	t.elapsed = t.ctrl.Elapsed()
	t.period = t.ctrl.Current()
}

type timerDataMsg struct {
	todayTotal int64
	todayCount int
	photoCount int
	dailyGoal  time.Duration
	recent     []store.TrackedPeriod
}

type timerFailedMsg struct {
	action string
	err    error
}

// load picks up a period left open by an earlier run.
func (t timerModel) load() tea.Cmd {
	ctrl := t.ctrl
	return func() tea.Msg {
		if err := ctrl.Load(context.Background()); err != nil {
			return timerFailedMsg{action: "Load", err: err}
		}
		return nil
	}
}

func (t timerModel) loadData() tea.Cmd {
	s, uid := t.store, t.userID
	return func() tea.Msg {
		ctx := context.Background()
		day := utcDay(time.Now())
		msg := timerDataMsg{dailyGoal: s.SettingSeconds(ctx, "daily_goal", 8*time.Hour)}

		totals, _ := s.DailyTotals(ctx, uid, day, day.AddDate(0, 0, 1))
		for _, dt := range totals {
			msg.todayTotal += dt.TotalSeconds
			msg.todayCount += dt.PeriodCount
		}

		periods, _ := s.ListPeriods(ctx, uid)
		if len(periods) > 5 {
			periods = periods[:5]
		}
		msg.recent = periods
		if len(periods) > 0 && periods[0].IsOpen() {
			counts, _ := s.ImageCounts(ctx, uid)
			msg.photoCount = counts[periods[0].ID]
		}
		return msg
	}
}

func (t timerModel) update(msg tea.Msg) (timerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case timerDataMsg:
		t.todayTotal = msg.todayTotal
		t.todayCount = msg.todayCount
		t.photoCount = msg.photoCount
		t.dailyGoal = msg.dailyGoal
		t.recent = msg.recent
		return t, nil

	case sessionEventMsg:
		t.state = msg.State
		t.elapsed = msg.Elapsed
		t.period = msg.Period
		if !t.running() && t.formActive {
			t.closeForm()
		}
		switch msg.Kind {
		case session.EventNotified:
			t.lastNotified = msg.Total
		case session.EventStarted, session.EventResumed, session.EventStopped, session.EventPhotoAttached:
			if msg.Kind == session.EventStopped {
				t.lastNotified = 0
			}
			return t, t.loadData()
		}
		return t, nil

	case timerStartedMsg, timerStoppedMsg:
		t.busy = false
		t.sync()
		if !t.running() {
			t.lastNotified = 0
		}
		return t, t.loadData()

	case photoAttachedMsg:
		return t, t.loadData()

	case timerFailedMsg:
		t.busy = false
		t.sync()
		text := describeError(msg.action, msg.err)
		return t, func() tea.Msg { return statusMsg{text: text, isError: true} }

	case tea.KeyMsg:
		if t.formActive && t.form != nil {
			return t.updateForm(msg)
		}
		switch {
		case key.Matches(msg, keys.Start):
			if t.busy || t.running() {
				return t, nil
			}
			t.busy = true
			return t, t.startCmd()

		case key.Matches(msg, keys.Stop):
			if t.busy || !t.running() {
				return t, nil
			}
			if t.needsPIN() {
				return t.showPINForm()
			}
			t.busy = true
			return t, t.stopCmd()

		case key.Matches(msg, keys.Attach):
			if !t.running() {
				return t, func() tea.Msg {
					return statusMsg{text: "Start the timer before attaching a photo", isError: true}
				}
			}
			return t.showPhotoForm()
		}

	default:
		if t.formActive && t.form != nil {
			return t.updateForm(msg)
		}
	}
	return t, nil
}

func (t *timerModel) closeForm() {
	t.formActive = false
	t.form = nil
	t.formKind = formNone
}

func (t timerModel) needsPIN() bool {
	return t.gate != nil && t.secrets != nil && t.gate.Available(context.Background())
}

func (t timerModel) startCmd() tea.Cmd {
	ctrl := t.ctrl
	return func() tea.Msg {
		p, err := ctrl.Start(context.Background())
		if err != nil {
			return timerFailedMsg{action: "Start", err: err}
		}
		return timerStartedMsg{period: p}
	}
}

func (t timerModel) stopCmd() tea.Cmd {
	ctrl := t.ctrl
	return func() tea.Msg {
		p, err := ctrl.Stop(context.Background())
		if err != nil {
			return timerFailedMsg{action: "Stop", err: err}
		}
		return timerStoppedMsg{period: p}
	}
}

func (t timerModel) attachCmd(path string) tea.Cmd {
	ctrl := t.ctrl
	src := photo.File{Path: photo.Fixed(expandHome(path)), MaxBytes: t.maxPhotoBytes}
	return func() tea.Msg {
		ctx := context.Background()
		content, err := src.Capture(ctx)
		if err != nil {
			return timerFailedMsg{action: "Attach", err: err}
		}
		if len(content) == 0 {
			return statusMsg{text: "No photo attached"}
		}
		img, err := ctrl.AttachPhoto(ctx, content)
		if err != nil {
			return timerFailedMsg{action: "Attach", err: err}
		}
		if img == nil {
			return statusMsg{text: "Timer is not running, photo discarded", isError: true}
		}
		return photoAttachedMsg{image: img}
	}
}

func (t timerModel) showPINForm() (timerModel, tea.Cmd) {
	*t.pin = ""
	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("PIN").
				Description(session.DefaultAuthPrompt).
				EchoMode(huh.EchoModePassword).
				Value(t.pin),
		),
	).WithShowHelp(true)
	t.formKind = formPIN
	t.formActive = true
	return t, t.form.Init()
}

func (t timerModel) showPhotoForm() (timerModel, tea.Cmd) {
	*t.photoPath = ""
	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Photo file").
				Description("Leave empty to cancel").
				Placeholder("~/Pictures/desk.jpg").
				Value(t.photoPath),
		),
	).WithShowHelp(true)
	t.formKind = formPhoto
	t.formActive = true
	return t, t.form.Init()
}

func (t timerModel) updateForm(msg tea.Msg) (timerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			t.closeForm()
			return t, nil
		}
	}

	form, cmd := t.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.form = f
	}

	if t.form.State == huh.StateCompleted {
		kind := t.formKind
		t.closeForm()
		switch kind {
		case formPIN:
			t.secrets.Put(*t.pin)
			*t.pin = ""
			t.busy = true
			return t, t.stopCmd()
		case formPhoto:
			return t, t.attachCmd(*t.photoPath)
		}
	}

	return t, cmd
}

func describeError(action string, err error) string {
	switch {
	case errors.Is(err, session.ErrAuthDenied):
		return "Wrong PIN, timer still running"
	case errors.Is(err, session.ErrLocationUnavailable):
		return "Location unavailable, set location in the config file"
	case errors.Is(err, session.ErrOpenPeriodExists):
		return "A period is already open, restart to resume it"
	case errors.Is(err, session.ErrNoOpenPeriod):
		return "The period was already closed elsewhere"
	case errors.Is(err, photo.ErrTooLarge), errors.Is(err, photo.ErrNotImage):
		return err.Error()
	}
	return fmt.Sprintf("%s failed: %v", action, err)
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

func (t timerModel) view() string {
	if t.width < 20 {
		return "Terminal too small"
	}

	contentWidth := t.width - 4
	timerPanel := t.renderTimerPanel(contentWidth)

	if t.formActive && t.form != nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			timerPanel,
			activePanelStyle.Width(contentWidth).Render(t.form.View()),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		timerPanel,
		t.renderTodayPanel(contentWidth),
		t.renderRecentPanel(contentWidth),
	)
}

func (t timerModel) renderTimerPanel(w int) string {
	timeStr := formatDuration(t.elapsed)

	if t.running() {
		timeDisplay := timerRunningStyle.Width(w - 6).Render(timeStr)
		indicator := successStyle.Render("●  RUNNING")
		if t.busy {
			timeDisplay = timerBusyStyle.Width(w - 6).Render(timeStr)
			indicator = warningStyle.Render("…  STOPPING")
		}

		var details []string
		if t.period != nil {
			details = append(details,
				"since "+t.period.Start.Local().Format("15:04"),
				formatLocation(t.period.Location),
			)
		}
		details = append(details, fmt.Sprintf("%d photo(s)", t.photoCount))
		lines := []string{timeDisplay, indicator, highlightStyle.Render(strings.Join(details, "  ·  "))}
		if t.lastNotified > 0 {
			lines = append(lines, mutedStyle.Render("last reminder at "+formatDuration(t.lastNotified)))
		}
		return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
	}

	timeDisplay := timerIdleStyle.Width(w - 6).Render("00:00:00")
	indicator := mutedStyle.Render("■  STOPPED")
	if t.busy {
		indicator = warningStyle.Render("…  STARTING")
	}
	hint := mutedStyle.Render("Press s to start tracking")

	content := lipgloss.JoinVertical(lipgloss.Center,
		timeDisplay,
		indicator,
		hint,
	)
	return panelStyle.Width(w).Render(content)
}

func (t timerModel) renderTodayPanel(w int) string {
	total := t.todayTotal
	if t.running() {
		total += int64(t.elapsed / time.Second)
	}
	title := titleStyle.Render("Today")
	header := fmt.Sprintf("%s  %s", title, highlightStyle.Render(formatSeconds(total)))

	goal := int64(t.dailyGoal / time.Second)
	if goal <= 0 {
		return panelStyle.Width(w).Render(header)
	}

	barWidth := w - 24
	if barWidth < 10 {
		barWidth = 10
	}
	ratio := float64(total) / float64(goal)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(barWidth))
	style := barStyle
	if total >= goal {
		style = barGoalStyle
	}
	bar := style.Render(strings.Repeat("█", filled)) + barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
	progress := fmt.Sprintf("  %s  %s / %s", bar, formatHours(total), formatHours(goal))
	count := mutedStyle.Render(fmt.Sprintf("  %d closed period(s)", t.todayCount))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, progress, count))
}

func (t timerModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Periods")
	if len(t.recent) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No periods yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	now := time.Now()
	var rows []string
	rows = append(rows, title)
	for _, p := range t.recent {
		status := "✓"
		dur := formatDuration(p.Total(now))
		if p.IsOpen() {
			status = "●"
			dur = "running"
		}
		rows = append(rows, fmt.Sprintf("  %s %s  %-10s %s",
			status, p.Start.Local().Format("Jan 02 15:04"), dur, mutedStyle.Render(formatLocation(p.Location))))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
