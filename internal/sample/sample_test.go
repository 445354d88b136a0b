package sample

import (
	"math"
	"testing"
	"time"
)

func TestParseRaw(t *testing.T) {
	raw := []byte(`{"probeTemp1":"150.5","probeTemp2":"160","probeTemp3":"170","chamberTemp":"225.2","date":"2026-08-30T12:00:00Z"}`)

	rec, err := ParseRaw(raw)
	if err != nil {
		t.Fatalf("ParseRaw: %v", err)
	}

	if rec.Chamber != 225.2 {
		t.Errorf("Chamber: got %v, want 225.2", rec.Chamber)
	}
	if rec.Probe1 != 150.5 {
		t.Errorf("Probe1: got %v, want 150.5", rec.Probe1)
	}
	if rec.ChamberRaw != "225.2" {
		t.Errorf("ChamberRaw: got %q, want %q", rec.ChamberRaw, "225.2")
	}
	if rec.Probe2Raw != "160" {
		t.Errorf("Probe2Raw: got %q, want %q", rec.Probe2Raw, "160")
	}

	want := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if !rec.Time.Equal(want) {
		t.Errorf("Time: got %v, want %v", rec.Time, want)
	}
}

func TestParseRawNumericFields(t *testing.T) {
	raw := []byte(`{"probeTemp1":150,"probeTemp2":160,"probeTemp3":170,"chamberTemp":225,"date":"2026-08-30T12:00:00Z"}`)

	rec, err := ParseRaw(raw)
	if err != nil {
		t.Fatalf("ParseRaw: %v", err)
	}
	if rec.Chamber != 225 {
		t.Errorf("Chamber: got %v, want 225", rec.Chamber)
	}
	if rec.ChamberRaw != "225" {
		t.Errorf("ChamberRaw: got %q, want %q", rec.ChamberRaw, "225")
	}
}

func TestParseRawMalformed(t *testing.T) {
	if _, err := ParseRaw([]byte("not json at all")); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestParseRawNonNumericTempIsNaN(t *testing.T) {
	raw := []byte(`{"probeTemp1":"x","probeTemp2":"160","probeTemp3":"170","chamberTemp":"225","date":"2026-08-30T12:00:00Z"}`)

	rec, err := ParseRaw(raw)
	if err != nil {
		t.Fatalf("ParseRaw: %v", err)
	}
	if !math.IsNaN(rec.Probe1) {
		t.Errorf("Probe1: got %v, want NaN", rec.Probe1)
	}
	if rec.Probe1Raw != "x" {
		t.Errorf("Probe1Raw: got %q, want %q", rec.Probe1Raw, "x")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		chamber, meat float64
		want          Class
	}{
		{"too cold chamber", -35, 70, TooCold},
		{"too cold meat", 100, -40, TooCold},
		{"boundary -30 is not too cold", -30, 70, Nominal},
		{"too hot", 600, 70, TooHot},
		{"nan chamber", math.NaN(), 70, Invalid},
		{"nan meat", 225, math.NaN(), Invalid},
		{"nominal", 225, 150, Nominal},
	}

	for _, tt := range tests {
		if got := Classify(tt.chamber, tt.meat); got != tt.want {
			t.Errorf("%s: Classify(%v, %v) = %v, want %v", tt.name, tt.chamber, tt.meat, got, tt.want)
		}
	}
}

func TestSampleGuards(t *testing.T) {
	good := Sample{Chamber: 225, Probe1: 150, Probe2: 160, Probe3: 170}
	if !good.Finite() || !good.NonZero() {
		t.Error("expected good sample to pass both guards")
	}

	zero := good
	zero.Chamber = 0
	if zero.NonZero() {
		t.Error("zero chamber must fail the non-zero guard")
	}

	nan := good
	nan.Probe2 = math.NaN()
	if nan.Finite() {
		t.Error("NaN probe must fail the finite guard")
	}

	if got := good.Max(); got != 225 {
		t.Errorf("Max: got %v, want 225", got)
	}
}

func TestChannelRoundTrip(t *testing.T) {
	for _, c := range Channels {
		got, err := ParseChannel(c.Label())
		if err != nil {
			t.Fatalf("ParseChannel(%q): %v", c.Label(), err)
		}
		if got != c {
			t.Errorf("round trip %v: got %v", c, got)
		}
	}

	if _, err := ParseChannel("Probe9"); err == nil {
		t.Error("expected error for unknown channel")
	}
}
