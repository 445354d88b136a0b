// Package sample defines the four-channel temperature sample produced by
// the smoker probes, best-effort parsing of raw device events, and the
// advisory range classification applied before a sample is forwarded.
package sample

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Channel identifies one of the four temperature readings in a sample.
type Channel int

const (
	Chamber Channel = iota
	Probe1
	Probe2
	Probe3
)

var channelLabels = [...]string{"Chamber", "Probe1", "Probe2", "Probe3"}

// Channels lists all channels in display order.
var Channels = [...]Channel{Chamber, Probe1, Probe2, Probe3}

// Label returns the display name for the channel.
func (c Channel) Label() string {
	if c < Chamber || c > Probe3 {
		return "Unknown"
	}
	return channelLabels[c]
}

// ParseChannel resolves a display label back to a channel.
func ParseChannel(s string) (Channel, error) {
	for _, c := range Channels {
		if strings.EqualFold(s, c.Label()) {
			return c, nil
		}
	}
	return Chamber, fmt.Errorf("unknown channel %q", s)
}

// MarshalJSON encodes the channel as its display label.
func (c Channel) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Label())
}

// UnmarshalJSON decodes a display label.
func (c *Channel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseChannel(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Sample is one immutable four-channel temperature reading. Fields may be
// NaN when upstream parsing failed; NaN is a representable invalid state,
// not an error.
type Sample struct {
	Chamber float64
	Probe1  float64
	Probe2  float64
	Probe3  float64
	Time    time.Time
}

// Value returns the reading for the given channel.
func (s Sample) Value(c Channel) float64 {
	switch c {
	case Chamber:
		return s.Chamber
	case Probe1:
		return s.Probe1
	case Probe2:
		return s.Probe2
	case Probe3:
		return s.Probe3
	}
	return math.NaN()
}

// Max returns the hottest reading across all four channels.
func (s Sample) Max() float64 {
	m := s.Chamber
	for _, c := range []float64{s.Probe1, s.Probe2, s.Probe3} {
		if c > m {
			m = c
		}
	}
	return m
}

// Finite reports whether all four readings are plain finite numbers.
func (s Sample) Finite() bool {
	for _, c := range Channels {
		v := s.Value(c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NonZero reports whether no channel reads exactly zero. A zero reading
// means "sensor not yet reporting", not a real zero-degree measurement.
func (s Sample) NonZero() bool {
	for _, c := range Channels {
		if s.Value(c) == 0 {
			return false
		}
	}
	return true
}

// Record carries a parsed sample together with the original string forms
// of each reading, so storage can round-trip the device formatting
// exactly. SessionID is stamped by the ingestion bridge.
type Record struct {
	Sample
	ChamberRaw string
	Probe1Raw  string
	Probe2Raw  string
	Probe3Raw  string
	SessionID  string
}

// rawEvent mirrors the device payload. Temperatures usually arrive as
// JSON strings but some firmware sends bare numbers; flexString accepts
// both and preserves the original text.
type rawEvent struct {
	ProbeTemp1  flexString `json:"probeTemp1"`
	ProbeTemp2  flexString `json:"probeTemp2"`
	ProbeTemp3  flexString `json:"probeTemp3"`
	ChamberTemp flexString `json:"chamberTemp"`
	Date        flexString `json:"date"`
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// ParseRaw decodes a raw device event. A JSON-level failure is returned
// as an error; a non-numeric temperature field is not: it parses to NaN
// and flows through for classification.
func ParseRaw(raw []byte) (Record, error) {
	var ev rawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Record{}, fmt.Errorf("parse raw event: %w", err)
	}

	rec := Record{
		ChamberRaw: string(ev.ChamberTemp),
		Probe1Raw:  string(ev.ProbeTemp1),
		Probe2Raw:  string(ev.ProbeTemp2),
		Probe3Raw:  string(ev.ProbeTemp3),
	}
	rec.Chamber = toFloat(string(ev.ChamberTemp))
	rec.Probe1 = toFloat(string(ev.ProbeTemp1))
	rec.Probe2 = toFloat(string(ev.ProbeTemp2))
	rec.Probe3 = toFloat(string(ev.ProbeTemp3))
	rec.Time = toTime(string(ev.Date))
	return rec, nil
}

func toFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// toTime accepts RFC3339 or epoch milliseconds; anything else falls back
// to the receive time so a sample is never unplottable.
func toTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Now()
}

// Class is the advisory range classification of a sample. It never
// blocks forwarding; it exists so odd readings are visible in logs.
type Class int

const (
	Nominal Class = iota
	TooCold
	Invalid
	TooHot
)

func (c Class) String() string {
	switch c {
	case TooCold:
		return "too_cold"
	case Invalid:
		return "invalid"
	case TooHot:
		return "too_hot"
	}
	return "nominal"
}

const (
	coldLimit = -30.0
	hotLimit  = 500.0
)

// Classify inspects the chamber and first meat probe. Order matters: a
// below-range reading wins over NaN, NaN over above-range. NaN compares
// false against the cold limit, so the NaN check must be explicit.
func Classify(chamber, meat float64) Class {
	if chamber < coldLimit || meat < coldLimit {
		return TooCold
	}
	if math.IsNaN(chamber) || math.IsNaN(meat) {
		return Invalid
	}
	if chamber > hotLimit || meat > hotLimit {
		return TooHot
	}
	return Nominal
}
