package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/punchclock/internal/store"
)

type historyModel struct {
	store  *store.Store
	userID int64
	width  int
	height int

	periods []store.TrackedPeriod
	counts  map[int64]int
	cursor  int

	viewingImages bool
	images        []store.Image

	formActive bool
	form       *huh.Form
	confirm    *bool // survives value copies
}

func newHistoryModel(s *store.Store, userID int64) historyModel {
	confirm := false
	return historyModel{
		store:   s,
		userID:  userID,
		counts:  map[int64]int{},
		confirm: &confirm,
	}
}

func (h *historyModel) setSize(w, ht int) {
	h.width = w
	h.height = ht
}

type historyDataMsg struct {
	periods []store.TrackedPeriod
	counts  map[int64]int
}

type imagesDataMsg struct {
	images []store.Image
}

func (h historyModel) refresh() tea.Cmd {
	s, uid := h.store, h.userID
	return func() tea.Msg {
		ctx := context.Background()
		periods, err := s.ListPeriods(ctx, uid)
		if err != nil {
			return errStatus("Load history", err)
		}
		counts, err := s.ImageCounts(ctx, uid)
		if err != nil {
			return errStatus("Load history", err)
		}
		return historyDataMsg{periods: periods, counts: counts}
	}
}

func (h historyModel) loadImages() tea.Cmd {
	if h.cursor >= len(h.periods) {
		return nil
	}
	s, pid := h.store, h.periods[h.cursor].ID
	return func() tea.Msg {
		images, err := s.ListImages(context.Background(), pid)
		if err != nil {
			return errStatus("Load photos", err)
		}
		return imagesDataMsg{images: images}
	}
}

func (h historyModel) clear() tea.Cmd {
	s, uid := h.store, h.userID
	return func() tea.Msg {
		n, err := s.ClearPeriods(context.Background(), uid)
		if err != nil {
			return errStatus("Clear failed", err)
		}
		return periodsClearedMsg{removed: n}
	}
}

func (h historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	if h.formActive && h.form != nil {
		return h.updateForm(msg)
	}

	switch msg := msg.(type) {
	case historyDataMsg:
		h.periods = msg.periods
		h.counts = msg.counts
		if h.cursor >= len(h.periods) {
			h.cursor = max(0, len(h.periods)-1)
		}
		return h, nil

	case imagesDataMsg:
		h.images = msg.images
		return h, nil

	case periodsClearedMsg:
		h.viewingImages = false
		h.cursor = 0
		return h, h.refresh()

	case tea.KeyMsg:
		if h.viewingImages {
			if key.Matches(msg, keys.Back) {
				h.viewingImages = false
				h.images = nil
			}
			return h, nil
		}
		switch {
		case key.Matches(msg, keys.Up):
			if h.cursor > 0 {
				h.cursor--
			}
		case key.Matches(msg, keys.Down):
			if h.cursor < len(h.periods)-1 {
				h.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if len(h.periods) > 0 {
				h.viewingImages = true
				return h, h.loadImages()
			}
		case key.Matches(msg, keys.Clear):
			if len(h.periods) > 0 {
				return h.showConfirmForm()
			}
		}
	}
	return h, nil
}

func (h historyModel) showConfirmForm() (historyModel, tea.Cmd) {
	*h.confirm = false
	h.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Clear history?").
				Description("Deletes every closed period and its photos. A running period is kept.").
				Affirmative("Clear").
				Negative("Cancel").
				Value(h.confirm),
		),
	).WithShowHelp(true)
	h.formActive = true
	return h, h.form.Init()
}

func (h historyModel) updateForm(msg tea.Msg) (historyModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			h.formActive = false
			h.form = nil
			return h, nil
		}
	}

	form, cmd := h.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		h.form = f
	}

	if h.form.State == huh.StateCompleted {
		h.formActive = false
		h.form = nil
		if *h.confirm {
			return h, h.clear()
		}
		return h, nil
	}

	return h, cmd
}

func (h historyModel) view() string {
	if h.width < 20 {
		return "Terminal too small"
	}
	w := h.width - 4

	if h.formActive && h.form != nil {
		return activePanelStyle.Width(w).Render(h.form.View())
	}
	if h.viewingImages {
		return h.renderImages(w)
	}

	title := titleStyle.Render("History")
	if len(h.periods) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No periods recorded yet"),
		))
	}

	now := time.Now()
	var total time.Duration
	rows := []string{
		title,
		mutedStyle.Render(fmt.Sprintf("  %-16s %-16s %-10s %-22s %s", "Start", "End", "Duration", "Location", "Photos")),
	}

	// Keep the cursor row on screen
	visible := max(h.height-8, 3)
	offset := 0
	if h.cursor >= visible {
		offset = h.cursor - visible + 1
	}

	for i, p := range h.periods {
		total += p.Total(now)
		if i < offset || i >= offset+visible {
			continue
		}
		end := "running"
		if !p.IsOpen() {
			end = p.End.Local().Format("Jan 02 15:04")
		}
		line := fmt.Sprintf("%-16s %-16s %-10s %-22s %d",
			p.Start.Local().Format("Jan 02 15:04"),
			end,
			formatDuration(p.Total(now)),
			formatLocation(p.Location),
			h.counts[p.ID],
		)
		if i == h.cursor {
			rows = append(rows, selectedItemStyle.Render("> "+line))
		} else {
			rows = append(rows, normalItemStyle.Render("  "+line))
		}
	}

	rows = append(rows, "",
		mutedStyle.Render(fmt.Sprintf("  %d period(s), %s total", len(h.periods), formatDuration(total))),
		mutedStyle.Render("  enter: photos  c: clear history"),
	)
	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (h historyModel) renderImages(w int) string {
	var rows []string
	if h.cursor < len(h.periods) {
		p := h.periods[h.cursor]
		rows = append(rows, titleStyle.Render("Photos for "+p.Start.Local().Format("Jan 02 15:04")))
	}
	if len(h.images) == 0 {
		rows = append(rows, mutedStyle.Render("No photos attached"))
	}
	for _, img := range h.images {
		rows = append(rows, fmt.Sprintf("  #%-5d %s  %s",
			img.ID, img.CreatedAt.Local().Format("15:04:05"), formatBytes(len(img.Content))))
	}
	rows = append(rows, "", mutedStyle.Render("  esc: back"))
	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
