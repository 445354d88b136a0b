// Package series maintains the in-memory time series behind a live
// chart: an append-only ordered run of samples plus the viewport
// geometry that maps it onto a cell grid.
package series

import (
	"time"

	"github.com/luki/smoker/internal/sample"
)

// Series is an ordered four-channel time series. Append-only during a
// live smoke; replaced wholesale when historical data is loaded. One
// renderer instance owns one Series.
type Series struct {
	samples []sample.Sample
}

// New builds a series from an initial run of samples (may be nil).
func New(initial []sample.Sample) *Series {
	s := &Series{}
	s.Replace(initial)
	return s
}

// Replace swaps in a whole new run, copying so the caller's slice stays
// independent.
func (s *Series) Replace(samples []sample.Sample) {
	s.samples = make([]sample.Sample, len(samples))
	copy(s.samples, samples)
}

// Append adds a live sample. Nothing is appended unless a smoke is
// active and all four channels are finite and non-zero: a zero reading
// means the sensor has not started reporting, not zero degrees.
// Reports whether the series changed.
func (s *Series) Append(smp sample.Sample, smoking bool) bool {
	if !smoking {
		return false
	}
	if !smp.Finite() || !smp.NonZero() {
		return false
	}
	s.samples = append(s.samples, smp)
	return true
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.samples)
}

// Empty reports whether there is nothing to plot.
func (s *Series) Empty() bool {
	return len(s.samples) == 0
}

// At returns the i'th sample.
func (s *Series) At(i int) sample.Sample {
	return s.samples[i]
}

// Last returns the most recent sample, or a zero sample when empty.
func (s *Series) Last() sample.Sample {
	if len(s.samples) == 0 {
		return sample.Sample{}
	}
	return s.samples[len(s.samples)-1]
}

// yHeadroom keeps the hottest polyline off the top edge, matching the
// [0, 1.15*max] y-domain.
const yHeadroom = 1.15

// Viewport maps timestamps and temperatures onto a Width x Height cell
// grid. Derived state: recomputed whenever the series or the container
// size changes, never persisted.
type Viewport struct {
	Width  int
	Height int

	t0, t1 time.Time
	yMax   float64
}

// FitViewport computes scales for the full series domain: x spans
// [min,max] timestamp, y spans [0, 1.15 * hottest reading].
func FitViewport(s *Series, width, height int) Viewport {
	v := Viewport{Width: width, Height: height, yMax: 1}
	if s.Empty() {
		return v
	}

	v.t0 = s.At(0).Time
	v.t1 = s.At(s.Len() - 1).Time

	peak := 0.0
	for i := 0; i < s.Len(); i++ {
		if m := s.At(i).Max(); m > peak {
			peak = m
		}
	}
	if peak > 0 {
		v.yMax = peak * yHeadroom
	}
	return v
}

// YMax returns the top of the temperature domain.
func (v Viewport) YMax() float64 {
	return v.yMax
}

// XCol maps a timestamp to a column, clamped to the plot.
func (v Viewport) XCol(t time.Time) int {
	if v.Width <= 1 {
		return 0
	}
	span := v.t1.Sub(v.t0)
	if span <= 0 {
		return 0
	}
	frac := float64(t.Sub(v.t0)) / float64(span)
	col := int(frac*float64(v.Width-1) + 0.5)
	return clamp(col, 0, v.Width-1)
}

// TimeAt inverts the x scale: the timestamp at a column.
func (v Viewport) TimeAt(col int) time.Time {
	if v.Width <= 1 {
		return v.t0
	}
	col = clamp(col, 0, v.Width-1)
	span := v.t1.Sub(v.t0)
	return v.t0.Add(time.Duration(float64(span) * float64(col) / float64(v.Width-1)))
}

// YRow maps a temperature to a row; row 0 is the top of the plot.
func (v Viewport) YRow(temp float64) int {
	if v.Height <= 1 {
		return 0
	}
	frac := temp / v.yMax
	row := int((1-frac)*float64(v.Height-1) + 0.5)
	return clamp(row, 0, v.Height-1)
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
