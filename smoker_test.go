package main

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestDeviceWSURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8812":  "ws://localhost:8812/ws",
		"https://smoker.example": "wss://smoker.example/ws",
		"http://host:8812/":      "ws://host:8812/ws",
	}
	for in, want := range cases {
		if got := deviceWSURL(in); got != want {
			t.Errorf("deviceWSURL(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestCookEmitsDeviceShapedEvents(t *testing.T) {
	sim := newCook()

	// glitch=0 means every frame must be a well-formed event.
	for i := 0; i < 50; i++ {
		raw := sim.nextEvent(0)

		var ev map[string]string
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			t.Fatalf("frame %d not JSON: %v", i, err)
		}
		for _, key := range []string{"chamberTemp", "probeTemp1", "probeTemp2", "probeTemp3", "date"} {
			if ev[key] == "" {
				t.Fatalf("frame %d missing %s: %s", i, key, raw)
			}
		}
		if strings.Contains(ev["chamberTemp"], " ") {
			t.Errorf("chamberTemp not a bare number: %q", ev["chamberTemp"])
		}
	}
}

func TestCookRampsTowardTarget(t *testing.T) {
	sim := newCook()
	start := sim.chamber

	for i := 0; i < 500; i++ {
		sim.step()
	}

	if sim.chamber <= start+50 {
		t.Errorf("chamber did not ramp: start %.1f, now %.1f", start, sim.chamber)
	}
	if sim.chamber > sim.target+30 {
		t.Errorf("chamber overshot target %.1f: %.1f", sim.target, sim.chamber)
	}
}
