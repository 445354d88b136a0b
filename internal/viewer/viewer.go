// Package viewer implements the stored-session browser TUI: pick a
// smoke from disk, scrub a time cursor across its chart, and read the
// per-channel values at the cursor.
package viewer

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/smoker/internal/chart"
	"github.com/luki/smoker/internal/sample"
	"github.com/luki/smoker/internal/series"
	"github.com/luki/smoker/internal/store"
)

// Run launches the session viewer over the data directory.
func Run(dataDir string) {
	st, err := store.New(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	sessions, err := st.ListSessions()
	if err != nil || len(sessions) == 0 {
		fmt.Fprintf(os.Stderr, "No stored sessions found in %s\n", dataDir)
		os.Exit(1)
	}

	p := tea.NewProgram(
		initModel(st, sessions),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("52")
	colorTitleFg  = lipgloss.Color("214")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorErr      = lipgloss.Color("196")
)

// ── Model ────────────────────────────────────────────────────────────

type model struct {
	store    *store.Store
	sessions []string
	sessIdx  int

	series *series.Series
	cursor int
	width  int
	height int
	err    error
}

func initModel(st *store.Store, sessions []string) model {
	m := model{store: st, sessions: sessions, series: series.New(nil)}
	m.loadSession()
	return m
}

func (m *model) loadSession() {
	recs, err := m.store.LoadSession(m.sessions[m.sessIdx])
	if err != nil {
		m.err = err
		m.series.Replace(nil)
		m.cursor = -1
		return
	}
	m.err = nil

	var samples []sample.Sample
	for _, rec := range recs {
		if rec.Finite() && rec.NonZero() {
			samples = append(samples, rec.Sample)
		}
	}
	m.series.Replace(samples)

	m.cursor = m.series.Len() - 1
}

// ── Init / Update ────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "left", "h":
			if m.cursor > 0 {
				m.cursor--
			}
		case "right", "l":
			if m.cursor < m.series.Len()-1 {
				m.cursor++
			}
		case "shift+left", "H":
			m.cursor -= 10
			if m.cursor < 0 && m.series.Len() > 0 {
				m.cursor = 0
			}
		case "shift+right", "L":
			m.cursor += 10
			if m.cursor >= m.series.Len() {
				m.cursor = m.series.Len() - 1
			}
		case "home":
			if m.series.Len() > 0 {
				m.cursor = 0
			}
		case "end":
			m.cursor = m.series.Len() - 1

		case "[":
			if m.sessIdx < len(m.sessions)-1 {
				m.sessIdx++
				m.loadSession()
			}
		case "]":
			if m.sessIdx > 0 {
				m.sessIdx--
				m.loadSession()
			}
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionMotion {
			if i := chart.NearestIndex(m.series, msg.X-chart.YAxisWidth, m.viewport()); i >= 0 {
				m.cursor = i
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// ── View ─────────────────────────────────────────────────────────────

func (m model) viewport() series.Viewport {
	plotW := m.width - chart.YAxisWidth - 2
	if plotW < 20 {
		plotW = 20
	}
	plotH := plotW / 4
	if max := m.height - 7; plotH > max && max > 4 {
		plotH = max
	}
	return series.FitViewport(m.series, plotW, plotH)
}

func (m model) View() string {
	if m.width == 0 {
		return "  Loading..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string
	sections = append(sections, m.renderTitleBar(contentWidth))

	if m.err != nil {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(colorErr).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v", m.err)))
	}

	if m.series.Empty() {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("Session holds no plottable samples"))
	} else {
		sections = append(sections, chart.Render(m.series, m.viewport(), m.cursor))
		sections = append(sections, m.renderStats(contentWidth))
	}

	sections = append(sections, m.renderFooter(contentWidth))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("SMOKER SESSIONS")

	pos := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("%s  (%d/%d)", m.sessions[m.sessIdx], m.sessIdx+1, len(m.sessions)))

	gap := width - lipgloss.Width(logo) - lipgloss.Width(pos) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + pos)
}

func (m model) renderStats(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	first, last := m.series.At(0).Time, m.series.Last().Time

	peak := 0.0
	for i := 0; i < m.series.Len(); i++ {
		if v := m.series.At(i).Max(); v > peak {
			peak = v
		}
	}

	stats := dimS.Render(" samples ") + valS.Render(fmt.Sprintf("%d", m.series.Len())) +
		dimS.Render("  span ") + valS.Render(fmtSpan(last.Sub(first))) +
		dimS.Render("  peak ") + valS.Render(fmt.Sprintf("%.0f°F", peak))

	return lipgloss.NewStyle().Width(width).Render(stats)
}

func (m model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	labS := lipgloss.NewStyle().Foreground(colorLabel)

	keys := dimS.Render("q") + labS.Render(":quit") +
		dimS.Render("  h/l") + labS.Render(":scrub") +
		dimS.Render("  H/L") + labS.Render(":jump") +
		dimS.Render("  [/]") + labS.Render(":session")

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(keys)
}

func fmtSpan(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	min := (d - h*time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, min)
	}
	return fmt.Sprintf("%dm", min)
}
