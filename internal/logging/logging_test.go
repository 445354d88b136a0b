package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestHelpersWriteThroughGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{Level: "info", Format: "console"}) })

	Info().Str("component", "test").Msg("hello")
	Warn().Msg("careful")
	Error().Msg("broken")

	out := buf.String()
	for _, want := range []string{
		`"level":"info"`, `"component":"test"`, `"message":"hello"`,
		`"level":"warn"`, `"level":"error"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{Level: "info", Format: "console"}) })

	Debug().Msg("noise")
	if buf.Len() != 0 {
		t.Errorf("debug logged at info level: %s", buf.String())
	}

	Init(Config{Level: "debug", Format: "json", Output: &buf})
	Debug().Msg("signal")
	if !strings.Contains(buf.String(), `"message":"signal"`) {
		t.Errorf("debug suppressed at debug level: %s", buf.String())
	}
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "shouting", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{Level: "info", Format: "console"}) })

	Info().Msg("still works")
	if !strings.Contains(buf.String(), `"message":"still works"`) {
		t.Errorf("info lost under fallback level: %s", buf.String())
	}
}
