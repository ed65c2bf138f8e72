package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/ledgeradmin/internal/chart"
	"github.com/verte-zerg/ledgeradmin/internal/dashboard"
	"github.com/verte-zerg/ledgeradmin/internal/gateway"
)

const plotHeight = 8

type reportLoadedMsg struct {
	report dashboard.Report
	err    error
}

func (m reportLoadedMsg) failed() error { return m.err }

type dashboardScreen struct {
	deps *deps
	ctx  context.Context

	report  *dashboard.Report
	loading bool
	errMsg  string
}

func newDashboardScreen(ctx context.Context, d *deps) *dashboardScreen {
	return &dashboardScreen{deps: d, ctx: ctx, loading: true}
}

func (s *dashboardScreen) Init() tea.Cmd {
	api, ctx := s.deps.api, s.ctx
	return func() tea.Msg {
		report, err := dashboard.BuildReport(ctx, api)
		return reportLoadedMsg{report: report, err: err}
	}
}

func (s *dashboardScreen) Capturing() bool { return false }

func (s *dashboardScreen) Help() string { return "r: refresh  2: manage users  3: manage books" }

func (s *dashboardScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case reportLoadedMsg:
		s.loading = false
		if msg.err != nil {
			s.errMsg = gateway.UserMessage(msg.err)
			return s, nil
		}
		s.errMsg = ""
		s.report = &msg.report
	case tea.KeyMsg:
		if msg.String() == "r" {
			s.loading = true
			return s, s.Init()
		}
	}
	return s, nil
}

func (s *dashboardScreen) View(width, height int) string {
	switch {
	case s.errMsg != "":
		return errorStyle.Render(wrapText("Error: "+s.errMsg, width))
	case s.report == nil:
		return "Loading dashboard..."
	}
	parts := []string{titleStyle.Render("Dashboard Overview"), renderCards(s.report.Cards, width)}
	series := make([]chart.Series, 0, len(s.report.Series))
	trends := make([]string, 0, len(s.report.Series))
	for _, st := range s.report.Series {
		series = append(series, chart.Series{Name: st.Name, Values: chart.Ints(st.Values)})
		style := positiveText
		if !st.Trend.IsPositive {
			style = negativeText
		}
		trends = append(trends, st.Name+" "+style.Render(st.Trend.String()))
	}
	plot := chart.Render(series, chart.Options{
		Title:  "Monthly activity",
		Width:  chart.WidthFor(width),
		Height: plotHeight,
		Labels: chart.MonthLabels,
		Color:  true,
	})
	parts = append(parts, strings.TrimRight(plot, "\n"), headerStyle.Render("Trend vs last month: ")+strings.Join(trends, "  "))
	if s.loading {
		parts = append(parts, headerStyle.Render("Refreshing..."))
	}
	return strings.Join(parts, "\n\n")
}

func renderCards(cards []dashboard.Card, width int) string {
	rendered := make([]string, 0, len(cards))
	for _, c := range cards {
		var extra []string
		if c.Sub != "" {
			sub := cardTitleStyle.Render(c.Sub)
			if g := c.GrowthLabel(); g != "" {
				style := positiveText
				if c.Growth < 0 {
					style = negativeText
				}
				sub += " " + style.Render(g)
			}
			extra = append(extra, sub)
		}
		rendered = append(rendered, metricCard(c.Title, c.Value, extra...))
	}
	if width < 80 {
		return strings.Join(rendered, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}
