package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/punchclock/internal/store"
)

type reportMode int

const (
	reportDaily reportMode = iota
	reportWeekly
)

type reportsModel struct {
	store  *store.Store
	userID int64
	width  int
	height int

	mode   reportMode
	totals []store.DailyTotal
	goal   time.Duration
	offset int // weeks or 7-day blocks back from today (0 = current)

	chart barchart.Model
}

func newReportsModel(s *store.Store, userID int64) reportsModel {
	return reportsModel{
		store:  s,
		userID: userID,
		goal:   8 * time.Hour,
		chart:  barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	totals []store.DailyTotal
	goal   time.Duration
}

func (r reportsModel) refresh() tea.Cmd {
	s, uid := r.store, r.userID
	from, to := r.dateRange(time.Now())
	return func() tea.Msg {
		ctx := context.Background()
		totals, err := s.DailyTotals(ctx, uid, from, to)
		if err != nil {
			return errStatus("Load reports", err)
		}
		return reportsDataMsg{
			totals: totals,
			goal:   s.SettingSeconds(ctx, "daily_goal", 8*time.Hour),
		}
	}
}

// dateRange returns the UTC days [from, to) covered by the current mode and offset.
func (r reportsModel) dateRange(now time.Time) (time.Time, time.Time) {
	today := utcDay(now)

	switch r.mode {
	case reportWeekly:
		weekday := today.Weekday()
		if weekday == time.Sunday {
			weekday = 7
		}
		startOfWeek := today.AddDate(0, 0, -int(weekday-time.Monday))
		startOfWeek = startOfWeek.AddDate(0, 0, -7*r.offset)
		return startOfWeek, startOfWeek.AddDate(0, 0, 7)
	default:
		end := today.AddDate(0, 0, 1-7*r.offset)
		return end.AddDate(0, 0, -7), end
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.totals = msg.totals
		r.goal = msg.goal
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Mode):
			if r.mode == reportDaily {
				r.mode = reportWeekly
			} else {
				r.mode = reportDaily
			}
			r.offset = 0
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r reportsModel) totalFor(day string) (store.DailyTotal, bool) {
	for _, t := range r.totals {
		if t.Date == day {
			return t, true
		}
	}
	return store.DailyTotal{}, false
}

func (r *reportsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	goal := int64(r.goal / time.Second)
	from, to := r.dateRange(time.Now())

	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		value := barchart.BarValue{Name: "", Value: 0, Style: barEmptyStyle}
		if t, ok := r.totalFor(d.Format("2006-01-02")); ok {
			style := barStyle
			if goal > 0 && t.TotalSeconds >= goal {
				style = barGoalStyle
			}
			value = barchart.BarValue{Name: "tracked", Value: float64(t.TotalSeconds) / 3600.0, Style: style}
		}
		bars = append(bars, barchart.BarData{
			Label:  d.Format("Mon 02"),
			Values: []barchart.BarValue{value},
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	dailyTab := inactiveTabStyle.Render("Daily")
	weeklyTab := inactiveTabStyle.Render("Weekly")
	if r.mode == reportDaily {
		dailyTab = activeTabStyle.Render("Daily")
	} else {
		weeklyTab = activeTabStyle.Render("Weekly")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, dailyTab, weeklyTab)

	from, to := r.dateRange(time.Now())
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s to %s", from.Format("Jan 02"), to.AddDate(0, 0, -1).Format("Jan 02, 2006")))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", modeTabs, "  ", dateLabel,
	)

	nav := mutedStyle.Render("  ←/→: navigate  m: switch mode")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", r.renderSummaryTable(w), "", nav,
		),
	)
}

func (r reportsModel) renderSummaryTable(w int) string {
	if len(r.totals) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	goal := int64(r.goal / time.Second)
	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-12s %10s %8s  %s", "Date", "Duration", "Periods", "Goal")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 44))))

	var sum int64
	for _, t := range r.totals {
		sum += t.TotalSeconds
		mark := mutedStyle.Render("·")
		if goal > 0 && t.TotalSeconds >= goal {
			mark = successStyle.Render("✓")
		}
		rows = append(rows, fmt.Sprintf("  %-12s %10s %8d  %s",
			t.Date, formatSeconds(t.TotalSeconds), t.PeriodCount, mark,
		))
	}
	rows = append(rows, highlightStyle.Render(fmt.Sprintf("  %-12s %10s", "Total", formatSeconds(sum))))

	return strings.Join(rows, "\n")
}
