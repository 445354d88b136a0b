package series

import (
	"math"
	"testing"
	"time"

	"github.com/luki/smoker/internal/sample"
)

var base = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func smp(offset time.Duration, chamber, p1, p2, p3 float64) sample.Sample {
	return sample.Sample{
		Chamber: chamber, Probe1: p1, Probe2: p2, Probe3: p3,
		Time: base.Add(offset),
	}
}

func TestAppendGuards(t *testing.T) {
	good := smp(0, 225, 150, 160, 170)

	s := New(nil)
	if s.Append(good, false) {
		t.Error("append with smoking=false must not mutate the series")
	}
	if s.Len() != 0 {
		t.Fatalf("series mutated: len %d", s.Len())
	}

	zeroChamber := good
	zeroChamber.Chamber = 0
	if s.Append(zeroChamber, true) {
		t.Error("zero chamber is a sentinel, not data")
	}

	nanProbe := good
	nanProbe.Probe3 = math.NaN()
	if s.Append(nanProbe, true) {
		t.Error("NaN channel must not be appended")
	}

	if !s.Append(good, true) {
		t.Error("valid live sample must append")
	}
	if s.Len() != 1 {
		t.Errorf("len: got %d, want 1", s.Len())
	}
}

func TestReplaceCopies(t *testing.T) {
	initial := []sample.Sample{smp(0, 200, 100, 110, 120)}
	s := New(initial)

	initial[0].Chamber = 999
	if s.At(0).Chamber != 200 {
		t.Error("series must not alias the caller's slice")
	}
}

func TestFitViewportDomains(t *testing.T) {
	s := New([]sample.Sample{
		smp(0, 200, 100, 110, 120),
		smp(10*time.Second, 260, 140, 150, 160),
	})
	v := FitViewport(s, 100, 40)

	want := 260 * 1.15
	if math.Abs(v.YMax()-want) > 1e-9 {
		t.Errorf("YMax: got %v, want %v", v.YMax(), want)
	}

	if got := v.XCol(base); got != 0 {
		t.Errorf("XCol(t0): got %d, want 0", got)
	}
	if got := v.XCol(base.Add(10 * time.Second)); got != 99 {
		t.Errorf("XCol(t1): got %d, want 99", got)
	}

	// Top of the domain is row 0, zero degrees the bottom row.
	if got := v.YRow(v.YMax()); got != 0 {
		t.Errorf("YRow(yMax): got %d, want 0", got)
	}
	if got := v.YRow(0); got != 39 {
		t.Errorf("YRow(0): got %d, want 39", got)
	}
}

func TestTimeAtInvertsXCol(t *testing.T) {
	s := New([]sample.Sample{
		smp(0, 200, 100, 110, 120),
		smp(100*time.Second, 260, 140, 150, 160),
	})
	v := FitViewport(s, 101, 40)

	for _, col := range []int{0, 25, 50, 100} {
		got := v.XCol(v.TimeAt(col))
		if got != col {
			t.Errorf("XCol(TimeAt(%d)) = %d", col, got)
		}
	}
}

func TestEmptyViewportIsSafe(t *testing.T) {
	v := FitViewport(New(nil), 80, 20)
	if got := v.XCol(base); got != 0 {
		t.Errorf("XCol on empty domain: got %d", got)
	}
	if got := v.YRow(100); got < 0 || got > 19 {
		t.Errorf("YRow out of range: %d", got)
	}
}
