// Package rules implements threshold rules over temperature samples with
// a per-rule firing cooldown.
package rules

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/luki/smoker/internal/sample"
)

// Comparator selects the comparison applied to (watched, compare).
type Comparator string

const (
	GreaterThan Comparator = ">"
	LessThan    Comparator = "<"
)

// Valid reports whether the comparator is supported.
func (c Comparator) Valid() bool {
	return c == GreaterThan || c == LessThan
}

// Mode selects where the compare value comes from.
type Mode string

const (
	// Absolute compares against a fixed threshold temperature.
	Absolute Mode = "absolute"
	// RelativeToProbe compares against another channel plus an offset.
	RelativeToProbe Mode = "relative"
)

// Rule watches one channel of every forwarded sample. LastFiredAt is
// mutated in place when the rule fires; persisting the updated set is the
// caller's job.
type Rule struct {
	ID          string         `json:"id"`
	Watched     sample.Channel `json:"watchedProbe"`
	Comparator  Comparator     `json:"comparator"`
	Mode        Mode           `json:"mode"`
	Threshold   float64        `json:"thresholdValue,omitempty"`
	Reference   sample.Channel `json:"referenceProbe,omitempty"`
	Offset      float64        `json:"offset,omitempty"`
	Message     string         `json:"message"`
	LastFiredAt time.Time      `json:"lastFiredAt"`
}

// Validate checks rule invariants.
func (r Rule) Validate() error {
	if r.Message == "" {
		return errors.New("rule: empty message")
	}
	if !r.Comparator.Valid() {
		return errors.New("rule: invalid comparator")
	}
	if r.Mode != Absolute && r.Mode != RelativeToProbe {
		return errors.New("rule: invalid mode")
	}
	return nil
}

// NewID returns a fresh rule identifier.
func NewID() string {
	return uuid.NewString()
}

// DefaultCooldown is the minimum time between two firings of one rule.
const DefaultCooldown = 10 * time.Minute

// Evaluator applies a rule set to samples.
type Evaluator struct {
	Cooldown time.Duration
}

// NewEvaluator returns an evaluator with the given cooldown, or the
// default when zero.
func NewEvaluator(cooldown time.Duration) Evaluator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return Evaluator{Cooldown: cooldown}
}

// Evaluate runs every rule against the sample and returns the ones that
// fired. Rules are independent: one firing never affects another in the
// same pass. Fired rules have LastFiredAt set to now; the full (mutated)
// slice remains the caller's to persist.
//
// NaN on either operand never fires. NaN comparisons are false in Go,
// but the check is explicit rather than incidental.
func (e Evaluator) Evaluate(s sample.Sample, rs []*Rule, now time.Time) []*Rule {
	var fired []*Rule
	for _, r := range rs {
		watched := s.Value(r.Watched)

		var compare float64
		switch r.Mode {
		case RelativeToProbe:
			compare = s.Value(r.Reference) + r.Offset
		default:
			compare = r.Threshold
		}

		if math.IsNaN(watched) || math.IsNaN(compare) {
			continue
		}

		var hit bool
		switch r.Comparator {
		case GreaterThan:
			hit = watched > compare
		case LessThan:
			hit = watched < compare
		}
		if !hit {
			continue
		}

		if now.Sub(r.LastFiredAt) < e.Cooldown {
			continue
		}

		r.LastFiredAt = now
		fired = append(fired, r)
	}
	return fired
}
