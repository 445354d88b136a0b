// Package state holds the single global session record: which smoke is
// current and whether it is live. The bridge reads it at processing time;
// rapid toggles may race with in-flight events, which is accepted.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// State is the current-session record.
type State struct {
	SmokeID string `json:"smokeId"`
	Smoking bool   `json:"smoking"`
}

// File persists the state record as a JSON document. A missing file reads
// as the zero state, not an error.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile stores state under dir.
func NewFile(dir string) *File {
	return &File{path: filepath.Join(dir, "state.json")}
}

// Current returns the stored state, or the zero state when none exists.
func (f *File) Current() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

// Set replaces the stored state.
func (f *File) Set(st State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
