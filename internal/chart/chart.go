// Package chart renders a four-channel temperature series as colored
// polylines on a cell grid, with axes, nearest-sample lookup, and a
// hover tooltip. Lookup and label formatting are pure functions so they
// test without a terminal.
package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/smoker/internal/sample"
	"github.com/luki/smoker/internal/series"
)

// YAxisWidth is the left gutter reserved for temperature labels. Hosts
// subtract it when translating pointer columns into plot columns.
const YAxisWidth = 7

var channelColors = map[sample.Channel]lipgloss.Color{
	sample.Chamber: lipgloss.Color("22"),
	sample.Probe1:  lipgloss.Color("24"),
	sample.Probe2:  lipgloss.Color("32"),
	sample.Probe3:  lipgloss.Color("67"),
}

// drawOrder paints chamber last so it wins cell collisions.
var drawOrder = [...]sample.Channel{sample.Probe3, sample.Probe2, sample.Probe1, sample.Chamber}

var (
	axisStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	gridStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	tooltipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("232")).Background(lipgloss.Color("255"))
)

// ChannelStyle returns the line style for a channel, for legends.
func ChannelStyle(c sample.Channel) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(channelColors[c])
}

// NearestIndex finds the sample nearest to the timestamp under a plot
// column. Center bisection: the boundary between two samples is the
// midpoint of their timestamps, and ties resolve toward the lower index.
// Returns -1 for an empty series.
func NearestIndex(s *series.Series, col int, v series.Viewport) int {
	if s.Empty() {
		return -1
	}

	target := v.TimeAt(col)
	i := sort.Search(s.Len(), func(i int) bool {
		return !s.At(i).Time.Before(target)
	})
	if i == 0 {
		return 0
	}
	if i >= s.Len() {
		return s.Len() - 1
	}

	before := target.Sub(s.At(i - 1).Time)
	after := s.At(i).Time.Sub(target)
	if before <= after {
		return i - 1
	}
	return i
}

// TooltipLines builds the hover label: local time first, then one line
// per channel. Values are rounded to whole degrees for display only.
func TooltipLines(smp sample.Sample) []string {
	lines := []string{smp.Time.Local().Format("15:04:05")}
	for _, c := range sample.Channels {
		lines = append(lines, formatValue(c.Label(), smp.Value(c)))
	}
	return lines
}

func formatValue(label string, v float64) string {
	if math.IsNaN(v) {
		return fmt.Sprintf("%s: --°F", label)
	}
	return fmt.Sprintf("%s: %.0f°F", label, math.Round(v))
}

type cell struct {
	r       rune
	channel int // index into drawOrder colors, -1 = background
	tip     bool
}

// Render draws the series into a block of styled lines: gutter labels,
// the four polylines, an x axis of local times, and, when hover is a
// valid index, a tooltip anchored at that sample's chamber coordinate.
func Render(s *series.Series, v series.Viewport, hover int) string {
	if v.Width <= 0 || v.Height <= 0 {
		return ""
	}

	grid := make([][]cell, v.Height)
	for r := range grid {
		grid[r] = make([]cell, v.Width)
		for c := range grid[r] {
			grid[r][c] = cell{r: ' ', channel: -1}
		}
	}

	for _, ch := range drawOrder {
		plotChannel(grid, s, v, ch)
	}

	if hover >= 0 && hover < s.Len() {
		stampTooltip(grid, s.At(hover), v)
	}

	var sb strings.Builder
	for r := 0; r < v.Height; r++ {
		sb.WriteString(yLabel(v, r))
		sb.WriteString(renderRow(grid[r]))
		sb.WriteByte('\n')
	}
	sb.WriteString(xAxis(s, v))
	return sb.String()
}

// plotChannel marks one cell per column, linearly interpolating between
// neighboring samples so the polyline reads as connected.
func plotChannel(grid [][]cell, s *series.Series, v series.Viewport, ch sample.Channel) {
	color := channelIndex(ch)

	var prevCol int
	var prevVal float64
	havePrev := false

	for i := 0; i < s.Len(); i++ {
		val := s.At(i).Value(ch)
		if math.IsNaN(val) {
			havePrev = false
			continue
		}
		col := v.XCol(s.At(i).Time)

		if havePrev && col > prevCol {
			for c := prevCol + 1; c < col; c++ {
				frac := float64(c-prevCol) / float64(col-prevCol)
				interp := prevVal + frac*(val-prevVal)
				mark(grid, v.YRow(interp), c, '·', color)
			}
		}
		mark(grid, v.YRow(val), col, '•', color)

		prevCol, prevVal, havePrev = col, val, true
	}
}

func channelIndex(ch sample.Channel) int {
	for i, c := range drawOrder {
		if c == ch {
			return i
		}
	}
	return -1
}

func mark(grid [][]cell, row, col int, r rune, channel int) {
	if row < 0 || row >= len(grid) || col < 0 || col >= len(grid[row]) {
		return
	}
	grid[row][col] = cell{r: r, channel: channel}
}

// stampTooltip lays the sized tooltip box into the grid above the
// anchor (below when there is no headroom) with a callout pointer
// between the box and the sample's chamber coordinate.
func stampTooltip(grid [][]cell, smp sample.Sample, v series.Viewport) {
	lines := TooltipLines(smp)

	textW := 0
	for _, l := range lines {
		if w := lipgloss.Width(l); w > textW {
			textW = w
		}
	}
	boxW := textW + 2
	boxH := len(lines)

	anchorCol := v.XCol(smp.Time)
	anchorRow := v.YRow(smp.Chamber)

	if boxW > v.Width {
		return // viewport narrower than the tooltip
	}
	left := clamp(anchorCol-boxW/2, 0, v.Width-boxW)

	top := anchorRow - boxH - 1
	pointer := '▼'
	pointerRow := anchorRow - 1
	if top < 0 {
		top = anchorRow + 2
		pointer = '▲'
		pointerRow = anchorRow + 1
		if top+boxH > v.Height {
			return // nowhere to put it
		}
	}

	for i, line := range lines {
		row := top + i
		runes := []rune(" " + line)
		for c := 0; c < boxW; c++ {
			r := ' '
			if c < len(runes) {
				r = runes[c]
			}
			if row >= 0 && row < v.Height && left+c < v.Width {
				grid[row][left+c] = cell{r: r, channel: -1, tip: true}
			}
		}
	}

	if pointerRow >= 0 && pointerRow < v.Height && anchorCol >= 0 && anchorCol < v.Width {
		grid[pointerRow][anchorCol] = cell{r: pointer, channel: -1, tip: true}
	}
}

func renderRow(row []cell) string {
	var sb strings.Builder
	for _, c := range row {
		switch {
		case c.tip:
			sb.WriteString(tooltipStyle.Render(string(c.r)))
		case c.channel >= 0:
			sb.WriteString(lipgloss.NewStyle().Foreground(channelColors[drawOrder[c.channel]]).Render(string(c.r)))
		default:
			sb.WriteString(gridStyle.Render(string(c.r)))
		}
	}
	return sb.String()
}

// yLabel renders the gutter for one row: a temperature tick at the top,
// middle, and bottom, a bare border elsewhere.
func yLabel(v series.Viewport, row int) string {
	tickRows := map[int]float64{
		0:            v.YMax(),
		v.Height / 2: v.YMax() / 2,
		v.Height - 1: 0,
	}
	if temp, ok := tickRows[row]; ok {
		return axisStyle.Render(fmt.Sprintf("%4.0f°┤", temp)) + " "
	}
	return axisStyle.Render(strings.Repeat(" ", 5)+"│") + " "
}

// xAxis renders local start, middle, and end times under the plot.
func xAxis(s *series.Series, v series.Viewport) string {
	pad := strings.Repeat(" ", YAxisWidth-1)
	if s.Empty() || v.Width < 24 {
		return pad
	}

	start := s.At(0).Time.Local().Format("15:04:05")
	mid := v.TimeAt(v.Width / 2).Local().Format("15:04:05")
	end := s.At(s.Len() - 1).Time.Local().Format("15:04:05")

	gap := v.Width - len(start) - len(mid) - len(end)
	if gap < 2 {
		return pad + axisStyle.Render(start)
	}
	lgap := strings.Repeat(" ", gap/2)
	rgap := strings.Repeat(" ", gap-gap/2)
	return pad + axisStyle.Render(start+lgap+mid+rgap+end)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
