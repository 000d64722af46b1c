package tui

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/punchclock/internal/store"
)

var settingLabels = map[string]string{
	"notify_interval": "Reminder interval",
	"tick_interval":   "Display tick",
	"daily_goal":      "Daily goal",
	"require_auth":    "PIN to stop",
}

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	notifyInterval *string
	tickInterval   *string
	dailyGoal      *string
	requireAuth    *bool
}

func newSettingsModel(s *store.Store) settingsModel {
	ni, ti, dg := "", "", ""
	ra := true
	return settingsModel{
		store:          s,
		notifyInterval: &ni,
		tickInterval:   &ti,
		dailyGoal:      &dg,
		requireAuth:    &ra,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings []store.Setting
}

type settingsSavedMsg struct{}

func (s settingsModel) refresh() tea.Cmd {
	st := s.store
	return func() tea.Msg {
		settings, err := st.GetAllSettings(context.Background())
		if err != nil {
			return errStatus("Load settings", err)
		}
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Edit) {
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.notifyInterval = secsToMin(s.getVal("notify_interval", "60"))
	*s.tickInterval = s.getVal("tick_interval", "1")
	*s.dailyGoal = secsToHours(s.getVal("daily_goal", "28800"))
	*s.requireAuth = s.getVal("require_auth", "true") != "false"

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Reminder interval (min)").Value(s.notifyInterval).Validate(positiveInt),
			huh.NewInput().Title("Display tick (sec)").Value(s.tickInterval).Validate(positiveInt),
		).Title("Timer"),
		huh.NewGroup(
			huh.NewInput().Title("Daily goal (hours)").Value(s.dailyGoal).Validate(positiveFloat),
			huh.NewConfirm().Title("Require PIN to stop").Value(s.requireAuth),
		).Title("General"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.form = nil
		return s, tea.Sequence(s.saveSettings(), s.refresh())
	}

	return s, cmd
}

func (s settingsModel) saveSettings() tea.Cmd {
	st := s.store
	values := map[string]string{
		"notify_interval": minToSecs(*s.notifyInterval),
		"tick_interval":   *s.tickInterval,
		"daily_goal":      hoursToSecs(*s.dailyGoal),
		"require_auth":    strconv.FormatBool(*s.requireAuth),
	}
	return func() tea.Msg {
		ctx := context.Background()
		for k, v := range values {
			if err := st.SetSetting(ctx, k, v); err != nil {
				return errStatus("Save settings", err)
			}
		}
		return settingsSavedMsg{}
	}
}

func (s settingsModel) getVal(k, fallback string) string {
	for _, setting := range s.settings {
		if setting.Key == k {
			return setting.Value
		}
	}
	return fallback
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	var rows []string
	rows = append(rows, title, "")

	for _, setting := range s.settings {
		name := settingLabels[setting.Key]
		if name == "" {
			name = setting.Key
		}
		label := lipgloss.NewStyle().Width(24).Render(name)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}

	rows = append(rows, "",
		mutedStyle.Render("Press enter to edit settings"),
		mutedStyle.Render("Interval changes apply on the next launch"),
	)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case "notify_interval":
		if secs, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%d min", secs/60)
		}
	case "tick_interval":
		return v + " sec"
	case "daily_goal":
		if secs, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%.1f hours", float64(secs)/3600)
		}
	case "require_auth":
		if v == "true" {
			return "on"
		}
		return "off"
	}
	return v
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a whole number above zero")
	}
	return nil
}

func positiveFloat(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return fmt.Errorf("enter a number above zero")
	}
	return nil
}

func secsToMin(s string) string {
	if secs, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(secs / 60)
	}
	return s
}

func minToSecs(s string) string {
	if mins, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(mins * 60)
	}
	return s
}

func secsToHours(s string) string {
	if secs, err := strconv.Atoi(s); err == nil {
		return fmt.Sprintf("%.1f", float64(secs)/3600)
	}
	return s
}

func hoursToSecs(s string) string {
	if hours, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.Itoa(int(hours * 3600))
	}
	return s
}
