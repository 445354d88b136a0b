package viewer

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/luki/smoker/internal/sample"
	"github.com/luki/smoker/internal/store"
)

func seedStore(t *testing.T, sessions map[string]int) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for id, n := range sessions {
		for i := 0; i < n; i++ {
			rec := sample.Record{
				ChamberRaw: "225", Probe1Raw: "150", Probe2Raw: "160", Probe3Raw: "170",
				SessionID: id,
			}
			rec.Time = base.Add(time.Duration(i) * time.Minute)
			if err := st.AppendSample(rec); err != nil {
				t.Fatal(err)
			}
		}
	}
	return st
}

func keyPress(t *testing.T, m model, key string) model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	got, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return got
}

func newViewer(t *testing.T, sessions map[string]int) model {
	t.Helper()
	st := seedStore(t, sessions)
	ids, err := st.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	return initModel(st, ids)
}

func TestInitialCursorAtLastSample(t *testing.T) {
	m := newViewer(t, map[string]int{"smoke-1": 5})

	if m.series.Len() != 5 {
		t.Fatalf("loaded samples: got %d, want 5", m.series.Len())
	}
	if m.cursor != 4 {
		t.Errorf("cursor: got %d, want 4", m.cursor)
	}
}

func TestScrubKeysMoveAndClampCursor(t *testing.T) {
	m := newViewer(t, map[string]int{"smoke-1": 3})

	m = keyPress(t, m, "h")
	if m.cursor != 1 {
		t.Errorf("after h: cursor %d, want 1", m.cursor)
	}

	m = keyPress(t, m, "h")
	m = keyPress(t, m, "h")
	if m.cursor != 0 {
		t.Errorf("cursor must clamp at 0, got %d", m.cursor)
	}

	m = keyPress(t, m, "l")
	if m.cursor != 1 {
		t.Errorf("after l: cursor %d, want 1", m.cursor)
	}

	m = keyPress(t, m, "L")
	if m.cursor != 2 {
		t.Errorf("jump must clamp at the last sample, got %d", m.cursor)
	}
}

func TestSessionSwitchReloadsSeries(t *testing.T) {
	m := newViewer(t, map[string]int{"smoke-1": 2, "smoke-2": 6})

	// ListSessions orders newest name first: smoke-2 loads initially.
	if m.series.Len() != 6 {
		t.Fatalf("initial session samples: got %d, want 6", m.series.Len())
	}

	m = keyPress(t, m, "[")
	if m.sessIdx != 1 || m.series.Len() != 2 {
		t.Errorf("after [: sessIdx=%d len=%d, want 1 and 2", m.sessIdx, m.series.Len())
	}
	if m.cursor != 1 {
		t.Errorf("cursor after switch: got %d, want 1", m.cursor)
	}

	m = keyPress(t, m, "]")
	if m.sessIdx != 0 || m.series.Len() != 6 {
		t.Errorf("after ]: sessIdx=%d len=%d, want 0 and 6", m.sessIdx, m.series.Len())
	}
}

func TestViewRendersWithoutSamples(t *testing.T) {
	st := seedStore(t, nil)
	m := initModel(st, []string{"ghost"})
	m.width, m.height = 80, 24

	// Ghost session: LoadSession fails, series stays empty.
	out := m.View()
	if out == "" {
		t.Error("view must render an error state, not nothing")
	}
}

func TestSeedOrderSanity(t *testing.T) {
	st := seedStore(t, map[string]int{"a": 1, "b": 1})
	ids, err := st.ListSessions()
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(ids) != "[b a]" {
		t.Errorf("session order: %v", ids)
	}
}
