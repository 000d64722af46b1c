package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/punchclock/internal/adapter/auth"
	"github.com/sadopc/punchclock/internal/export"
	"github.com/sadopc/punchclock/internal/session"
	"github.com/sadopc/punchclock/internal/store"
)

// Deps is everything the interface needs from the host.
type Deps struct {
	Store      *store.Store
	Controller *session.Controller
	User       *store.User

	// Gate reports whether stopping needs a PIN; Secrets receives the PIN
	// typed into the stop form before Stop is called.
	Gate    session.AuthPort
	Secrets *auth.Pending

	MaxPhotoBytes int64
}

// Bridge delivers controller events and reminders to a running program.
// Messages sent before the program is attached are dropped.
type Bridge struct {
	mu sync.Mutex
	p  *tea.Program
}

func NewBridge() *Bridge { return &Bridge{} }

func (b *Bridge) attach(p *tea.Program) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Forward is a session.Listener.
func (b *Bridge) Forward(ev session.Event) { b.send(sessionEventMsg(ev)) }

// Push shows an elapsed time reminder.
func (b *Bridge) Push(elapsed time.Duration) { b.send(reminderMsg{elapsed: elapsed}) }

type reminderMsg struct {
	elapsed time.Duration
}

// Run blocks until the user quits. The controller is loaded from the
// store once the program is running.
func Run(d Deps, b *Bridge) error {
	p := tea.NewProgram(NewApp(d), tea.WithAltScreen())
	b.attach(p)
	defer b.attach(nil)
	_, err := p.Run()
	return err
}

// App is the root Bubble Tea model.
type App struct {
	store  *store.Store
	user   *store.User
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	timer    timerModel
	history  historyModel
	reports  reportsModel
	settings settingsModel

	help   help.Model
	status string
	failed bool
}

func NewApp(d Deps) App {
	h := help.New()
	h.ShowAll = false

	uid := d.Controller.UserID()
	return App{
		store:      d.Store,
		user:       d.User,
		activeView: viewTimer,
		timer:      newTimerModel(d),
		history:    newHistoryModel(d.Store, uid),
		reports:    newReportsModel(d.Store, uid),
		settings:   newSettingsModel(d.Store),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return a.timer.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.timer.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewTimer
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewHistory
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewReports
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewSettings
			return a, a.refreshCurrentView()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	// Session traffic always goes to the timer, whichever view is showing.
	case sessionEventMsg, timerDataMsg, timerFailedMsg:
		var cmd tea.Cmd
		a.timer, cmd = a.timer.update(msg)
		return a, cmd

	case timerStartedMsg:
		a.setStatus("Timer started", false)
		return a.updateTimer(msg)

	case timerStoppedMsg:
		if msg.period != nil {
			now := time.Now()
			a.setStatus("Timer stopped after "+formatDuration(msg.period.Total(now)), false)
		} else {
			a.setStatus("Timer was not running", false)
		}
		return a.updateTimer(msg)

	case photoAttachedMsg:
		a.setStatus(fmt.Sprintf("Photo attached (%s)", formatBytes(len(msg.image.Content))), false)
		return a.updateTimer(msg)

	case periodsClearedMsg:
		a.setStatus(fmt.Sprintf("Cleared %d period(s)", msg.removed), false)
		var cmd tea.Cmd
		a.history, cmd = a.history.update(msg)
		return a, tea.Batch(cmd, a.timer.loadData())

	case reminderMsg:
		a.setStatus("Reminder: "+formatDuration(msg.elapsed)+" tracked", false)
		return a, nil

	case settingsSavedMsg:
		a.setStatus("Settings saved", false)
		return a, nil

	case statusMsg:
		a.setStatus(msg.text, msg.isError)
		return a, nil

	case exportDoneMsg:
		a.setStatus("Exported to "+msg.path, false)
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a *App) setStatus(text string, failed bool) {
	a.status = text
	a.failed = failed
}

func (a App) updateTimer(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.timer, cmd = a.timer.update(msg)
	if a.activeView == viewHistory {
		return a, tea.Batch(cmd, a.history.refresh())
	}
	return a, cmd
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTimer:
		a.timer, cmd = a.timer.update(msg)
	case viewHistory:
		a.history, cmd = a.history.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewTimer:
		return a.timer.formActive
	case viewHistory:
		return a.history.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewTimer:
		return a.timer.loadData()
	case viewHistory:
		return a.history.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTimer:
		content = a.timer.view()
	case viewHistory:
		content = a.history.view()
	case viewReports:
		content = a.reports.view()
	case viewSettings:
		content = a.settings.view()
	}

	contentHeight := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	name := "punchclock"
	if a.user != nil {
		name += " · " + a.user.Name
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render(name)
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.failed {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	timerInfo := ""
	if a.timer.running() {
		timerInfo = successStyle.Render(" ● " + formatDuration(a.timer.elapsed))
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"csv", "json"}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	var rows []string
	rows = append(rows, title, "")
	for i, f := range []string{"CSV", "JSON"} {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		home, err := os.UserHomeDir()
		if err != nil {
			return a, func() tea.Msg { return errStatus("Export error", err) }
		}
		return a, a.doExport(exportFormats[a.exportCursor], home)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

// doExport writes every period of the current user into dir.
func (a App) doExport(format, dir string) tea.Cmd {
	s, uid := a.store, a.timer.userID
	return func() tea.Msg {
		ctx := context.Background()
		periods, err := s.ListPeriods(ctx, uid)
		if err != nil {
			return errStatus("Export error", err)
		}
		counts, err := s.ImageCounts(ctx, uid)
		if err != nil {
			return errStatus("Export error", err)
		}

		now := time.Now()
		path := filepath.Join(dir, fmt.Sprintf("punchclock-export-%s.%s", now.Format("2006-01-02"), format))
		if format == "json" {
			err = export.ToJSON(periods, counts, now, path)
		} else {
			err = export.ToCSV(periods, counts, now, path)
		}
		if err != nil {
			return errStatus(fmt.Sprintf("%s error", format), err)
		}
		return exportDoneMsg{path: path}
	}
}
