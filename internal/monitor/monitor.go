// Package monitor implements the live smoke monitoring TUI using
// BubbleTea: a four-channel temperature chart fed by the websocket
// relay, with mouse hover inspection of individual samples.
package monitor

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/luki/smoker/internal/chart"
	"github.com/luki/smoker/internal/sample"
	"github.com/luki/smoker/internal/series"
	"github.com/luki/smoker/internal/state"
	"github.com/luki/smoker/internal/ws"
)

const (
	reconnectDelay = 2 * time.Second
	// resizeDebounce coalesces bursts of resize events; the chart is
	// refit once per burst, not once per pixel step.
	resizeDebounce = 120 * time.Millisecond
)

// ── Messages ─────────────────────────────────────────────────────────

type connectedMsg struct{ conn *websocket.Conn }

type frameMsg ws.Frame

type historyMsg struct {
	recs []sample.Record
	st   state.State
}

type resizeDoneMsg struct{ seq int }

type reconnectMsg struct{}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the live monitor.
type Model struct {
	baseURL string
	conn    *websocket.Conn

	series  *series.Series
	smoking bool
	smokeID string

	width   int
	height  int
	pendW   int
	pendH   int
	sizeSeq int

	hover      int
	err        error
	frameCount int
	lastFrame  time.Time
	startTime  time.Time
}

// New creates the initial model. baseURL is the backend's HTTP address,
// e.g. http://localhost:8812.
func New(baseURL string) Model {
	return Model{
		baseURL:   strings.TrimRight(baseURL, "/"),
		series:    series.New(nil),
		hover:     -1,
		startTime: time.Now(),
	}
}

// ── Commands ─────────────────────────────────────────────────────────

func (m Model) connectCmd() tea.Cmd {
	url := wsURL(m.baseURL)
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return errMsg{fmt.Errorf("dial %s: %w", url, err)}
		}
		return connectedMsg{conn}
	}
}

func wsURL(base string) string {
	url := strings.Replace(base, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	return url + "/ws"
}

func readCmd(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		var frame ws.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return errMsg{fmt.Errorf("read frame: %w", err)}
		}
		return frameMsg(frame)
	}
}

// loadHistoryCmd backfills the chart from the live session's stored
// samples, so a monitor joining mid-smoke starts with the full curve.
func (m Model) loadHistoryCmd() tea.Cmd {
	base := m.baseURL
	return func() tea.Msg {
		var st state.State
		if err := getJSON(base+"/api/state", &st); err != nil {
			return errMsg{err}
		}

		var rows []json.RawMessage
		if err := getJSON(base+"/api/sessions/current/temps", &rows); err != nil {
			return errMsg{err}
		}

		var recs []sample.Record
		for _, row := range rows {
			rec, err := sample.ParseRaw(row)
			if err != nil {
				continue
			}
			recs = append(recs, rec)
		}
		return historyMsg{recs: recs, st: st}
	}
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func reconnectCmd() tea.Cmd {
	return tea.Tick(reconnectDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.connectCmd(), m.loadHistoryCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.conn != nil {
				m.conn.Close()
			}
			return m, tea.Quit
		case "r":
			return m, m.loadHistoryCmd()
		case "esc":
			m.hover = -1
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionMotion {
			col := msg.X - chart.YAxisWidth
			if v := m.viewport(); col >= 0 && col < v.Width {
				m.hover = chart.NearestIndex(m.series, col, v)
			} else {
				m.hover = -1
			}
		}

	case tea.WindowSizeMsg:
		m.pendW, m.pendH = msg.Width, msg.Height
		if m.width == 0 {
			m.width, m.height = msg.Width, msg.Height
			return m, nil
		}
		m.sizeSeq++
		seq := m.sizeSeq
		return m, tea.Tick(resizeDebounce, func(time.Time) tea.Msg {
			return resizeDoneMsg{seq}
		})

	case resizeDoneMsg:
		// Stale timers from earlier resize steps are ignored.
		if msg.seq == m.sizeSeq {
			m.width, m.height = m.pendW, m.pendH
		}

	case connectedMsg:
		m.conn = msg.conn
		m.err = nil
		return m, readCmd(m.conn)

	case frameMsg:
		m = m.onFrame(ws.Frame(msg))
		var cmds []tea.Cmd
		if frame := ws.Frame(msg); frame.Channel == ws.ChannelRefresh {
			cmds = append(cmds, m.loadHistoryCmd())
		}
		if m.conn != nil {
			cmds = append(cmds, readCmd(m.conn))
		}
		return m, tea.Batch(cmds...)

	case historyMsg:
		samples := make([]sample.Sample, 0, len(msg.recs))
		for _, rec := range msg.recs {
			if rec.Finite() && rec.NonZero() {
				samples = append(samples, rec.Sample)
			}
		}
		m.series.Replace(samples)
		m.smoking = msg.st.Smoking
		m.smokeID = msg.st.SmokeID
		m.hover = -1

	case reconnectMsg:
		return m, m.connectCmd()

	case errMsg:
		m.err = msg.err
		m.conn = nil
		return m, reconnectCmd()
	}

	return m, nil
}

func (m Model) onFrame(frame ws.Frame) Model {
	switch frame.Channel {
	case ws.ChannelEvents:
		rec, err := sample.ParseRaw([]byte(frame.Data))
		if err != nil {
			return m
		}
		m.frameCount++
		m.lastFrame = time.Now()
		m.series.Append(rec.Sample, m.smoking)

	case ws.ChannelSmokeUpdate:
		m.smokeID = frame.Data
		m.smoking = frame.Data != ""

	case ws.ChannelClear:
		m.series.Replace(nil)
		m.hover = -1
	}
	return m
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("52")
	colorTitleFg  = lipgloss.Color("214")
	colorDim      = lipgloss.Color("240")
	colorLabel    = lipgloss.Color("252")
	colorLive     = lipgloss.Color("78")
	colorIdle     = lipgloss.Color("243")
	colorErr      = lipgloss.Color("196")
	colorFooterBg = lipgloss.Color("235")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) viewport() series.Viewport {
	plotW := m.width - chart.YAxisWidth - 2
	if plotW < 20 {
		plotW = 20
	}
	// Terminal cells are roughly twice as tall as wide, so a quarter of
	// the width reads as a 2:1 chart.
	plotH := plotW / 4
	if max := m.height - 6; plotH > max && max > 4 {
		plotH = max
	}
	return series.FitViewport(m.series, plotW, plotH)
}

func (m Model) View() string {
	if m.width == 0 {
		return "  Connecting..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string
	sections = append(sections, m.renderTitleBar(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorErr).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v (retrying)", m.err))
		sections = append(sections, errBox)
	}

	if m.series.Empty() {
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("Waiting for temperature data...")
		sections = append(sections, waiting)
	} else {
		sections = append(sections, chart.Render(m.series, m.viewport(), m.hover))
	}

	sections = append(sections, m.renderFooter(contentWidth))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("SMOKER MONITOR")

	var statusParts []string

	if m.smoking {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorLive).Bold(true).Render("SMOKING"))
		if m.smokeID != "" {
			statusParts = append(statusParts, lipgloss.NewStyle().
				Foreground(colorDim).Render(m.smokeID))
		}
	} else {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorIdle).Render("IDLE"))
	}

	if !m.lastFrame.IsZero() {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorDim).
			Render(fmt.Sprintf("%d frames, last %s", m.frameCount, m.lastFrame.Format("15:04:05"))))
	}

	statusParts = append(statusParts, lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("up %s", fmtDuration(time.Since(m.startTime)))))

	sep := lipgloss.NewStyle().Foreground(colorDim).Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m Model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)

	var legendParts []string
	for _, c := range sample.Channels {
		legendParts = append(legendParts,
			chart.ChannelStyle(c).Render("██")+dimS.Render(" "+c.Label()))
	}
	legend := strings.Join(legendParts, " ")

	keys := dimS.Render("q") + lipgloss.NewStyle().Foreground(colorLabel).Render(":quit") +
		dimS.Render("  r") + lipgloss.NewStyle().Foreground(colorLabel).Render(":reload") +
		dimS.Render("  mouse") + lipgloss.NewStyle().Foreground(colorLabel).Render(":inspect")

	gap := width - lipgloss.Width(legend) - lipgloss.Width(keys) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + strings.Repeat(" ", gap) + keys)
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	min := d / time.Minute
	s := (d - min*time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, min, s)
	}
	return fmt.Sprintf("%dm%02ds", min, s)
}
