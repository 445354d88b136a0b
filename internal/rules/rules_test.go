package rules

import (
	"math"
	"testing"
	"time"

	"github.com/luki/smoker/internal/sample"
)

var t0 = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func absoluteRule(watched sample.Channel, cmp Comparator, threshold float64) *Rule {
	return &Rule{
		ID:         NewID(),
		Watched:    watched,
		Comparator: cmp,
		Mode:       Absolute,
		Threshold:  threshold,
		Message:    "test rule",
	}
}

func TestAbsoluteFires(t *testing.T) {
	e := NewEvaluator(0)
	r := absoluteRule(sample.Chamber, GreaterThan, 300)
	s := sample.Sample{Chamber: 350, Probe1: 100, Probe2: 100, Probe3: 100}

	fired := e.Evaluate(s, []*Rule{r}, t0)
	if len(fired) != 1 {
		t.Fatalf("fired: got %d, want 1", len(fired))
	}
	if !r.LastFiredAt.Equal(t0) {
		t.Errorf("LastFiredAt: got %v, want %v", r.LastFiredAt, t0)
	}
}

func TestCooldown(t *testing.T) {
	e := NewEvaluator(0)
	r := absoluteRule(sample.Chamber, GreaterThan, 300)
	s := sample.Sample{Chamber: 350, Probe1: 100, Probe2: 100, Probe3: 100}

	if got := e.Evaluate(s, []*Rule{r}, t0); len(got) != 1 {
		t.Fatalf("initial firing: got %d, want 1", len(got))
	}
	if got := e.Evaluate(s, []*Rule{r}, t0.Add(5*time.Minute)); len(got) != 0 {
		t.Errorf("t0+5m: got %d fired, want 0 (cooldown)", len(got))
	}
	if got := e.Evaluate(s, []*Rule{r}, t0.Add(11*time.Minute)); len(got) != 1 {
		t.Errorf("t0+11m: got %d fired, want 1", len(got))
	}
}

func TestNaNNeverFires(t *testing.T) {
	e := NewEvaluator(0)

	watched := absoluteRule(sample.Probe1, GreaterThan, 100)
	watchedLess := absoluteRule(sample.Probe1, LessThan, 100)
	s := sample.Sample{Chamber: 225, Probe1: math.NaN(), Probe2: 150, Probe3: 150}

	if got := e.Evaluate(s, []*Rule{watched, watchedLess}, t0); len(got) != 0 {
		t.Errorf("NaN watched value fired %d rules, want 0", len(got))
	}

	// NaN on the reference side of a relative rule.
	rel := &Rule{
		ID:         NewID(),
		Watched:    sample.Chamber,
		Comparator: GreaterThan,
		Mode:       RelativeToProbe,
		Reference:  sample.Probe1,
		Offset:     10,
		Message:    "chamber runs hot",
	}
	if got := e.Evaluate(s, []*Rule{rel}, t0); len(got) != 0 {
		t.Errorf("NaN compare value fired %d rules, want 0", len(got))
	}
}

func TestRelativeToProbe(t *testing.T) {
	e := NewEvaluator(0)
	r := &Rule{
		ID:         NewID(),
		Watched:    sample.Probe1,
		Comparator: GreaterThan,
		Mode:       RelativeToProbe,
		Reference:  sample.Probe2,
		Offset:     10,
		Message:    "probe1 exceeds probe2",
	}

	below := sample.Sample{Chamber: 225, Probe1: 155, Probe2: 150, Probe3: 150}
	if got := e.Evaluate(below, []*Rule{r}, t0); len(got) != 0 {
		t.Errorf("155 > 150+10 should not fire, got %d", len(got))
	}

	above := sample.Sample{Chamber: 225, Probe1: 165, Probe2: 150, Probe3: 150}
	if got := e.Evaluate(above, []*Rule{r}, t0); len(got) != 1 {
		t.Errorf("165 > 150+10 should fire, got %d", len(got))
	}
}

func TestRulesAreIndependent(t *testing.T) {
	e := NewEvaluator(0)
	hot := absoluteRule(sample.Chamber, GreaterThan, 300)
	cold := absoluteRule(sample.Probe1, LessThan, 120)
	idle := absoluteRule(sample.Probe2, GreaterThan, 999)

	s := sample.Sample{Chamber: 350, Probe1: 100, Probe2: 150, Probe3: 150}
	fired := e.Evaluate(s, []*Rule{hot, cold, idle}, t0)

	if len(fired) != 2 {
		t.Fatalf("fired: got %d, want 2", len(fired))
	}
	if !idle.LastFiredAt.IsZero() {
		t.Error("idle rule must not be touched")
	}
	if hot.LastFiredAt.IsZero() || cold.LastFiredAt.IsZero() {
		t.Error("both matching rules must fire in one pass")
	}
}

func TestValidate(t *testing.T) {
	good := absoluteRule(sample.Chamber, GreaterThan, 300)
	if err := good.Validate(); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}

	bad := *good
	bad.Comparator = ">="
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unsupported comparator")
	}

	noMsg := *good
	noMsg.Message = ""
	if err := noMsg.Validate(); err == nil {
		t.Error("expected error for empty message")
	}
}
