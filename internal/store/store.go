// Package store handles persistent storage for the smoker backend:
// per-session CSV sample logs, plus JSON documents for the rule set and
// the push subscriber registry. Sample temperatures are written as the
// exact strings the device sent, so stored data round-trips the original
// formatting.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/luki/smoker/internal/notify"
	"github.com/luki/smoker/internal/rules"
	"github.com/luki/smoker/internal/sample"
)

const (
	sessionsDir = "sessions"
	timeLayout  = time.RFC3339
)

// Store is the disk-backed document store. Sample files are stored as
// <dir>/sessions/<sessionID>.csv with the format:
//
//	time,chamber,probe1,probe2,probe3
type Store struct {
	dir string

	mu         sync.Mutex
	current    *os.File
	writer     *csv.Writer
	curSession string
}

// New creates a store rooted at dir, creating directories as needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, sessionsDir), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory root.
func (s *Store) Dir() string {
	return s.dir
}

// AppendSample appends one record to its session's CSV file, rotating the
// open file when the session changes.
func (s *Store) AppendSample(rec sample.Record) error {
	if rec.SessionID == "" {
		return errors.New("append sample: empty session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.curSession != rec.SessionID || s.current == nil {
		s.closeLocked()
		f, err := os.OpenFile(s.sessionPath(rec.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		s.current = f
		s.writer = csv.NewWriter(f)
		s.curSession = rec.SessionID

		info, _ := f.Stat()
		if info.Size() == 0 {
			s.writer.Write([]string{"time", "chamber", "probe1", "probe2", "probe3"})
		}
	}

	s.writer.Write([]string{
		rec.Time.Format(timeLayout),
		rec.ChamberRaw,
		rec.Probe1Raw,
		rec.Probe2Raw,
		rec.Probe3Raw,
	})
	s.writer.Flush()
	return s.writer.Error()
}

// Close flushes and closes the current session file.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Store) closeLocked() {
	if s.writer != nil {
		s.writer.Flush()
	}
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
	s.curSession = ""
}

// ListSessions returns stored session IDs, newest name first.
func (s *Store) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, sessionsDir))
	if err != nil {
		return nil, err
	}

	var sessions []string
	for i := len(entries) - 1; i >= 0; i-- {
		name := entries[i].Name()
		if strings.HasSuffix(name, ".csv") {
			sessions = append(sessions, strings.TrimSuffix(name, ".csv"))
		}
	}
	return sessions, nil
}

// LoadSession reads all records for one session. Rows that fail to parse
// are skipped rather than aborting the load; non-numeric temperature
// cells load as NaN with their original text preserved.
func (s *Store) LoadSession(id string) ([]sample.Record, error) {
	f, err := os.Open(s.sessionPath(id))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var recs []sample.Record
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == "time" {
			continue
		}
		if len(row) < 5 {
			continue
		}

		t, err := time.Parse(timeLayout, row[0])
		if err != nil {
			continue
		}

		rec := sample.Record{
			ChamberRaw: row[1],
			Probe1Raw:  row[2],
			Probe2Raw:  row[3],
			Probe3Raw:  row[4],
			SessionID:  id,
		}
		rec.Time = t
		rec.Chamber = parseTemp(row[1])
		rec.Probe1 = parseTemp(row[2])
		rec.Probe2 = parseTemp(row[3])
		rec.Probe3 = parseTemp(row[4])
		recs = append(recs, rec)
	}
	return recs, nil
}

func parseTemp(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (s *Store) sessionPath(id string) string {
	// Session IDs come from uuid or user input; keep them path-safe.
	return filepath.Join(s.dir, sessionsDir, filepath.Base(id)+".csv")
}

// ── Rule set ─────────────────────────────────────────────────────────

// LoadRules reads the full rule set. A missing file is an empty set.
func (s *Store) LoadRules() ([]*rules.Rule, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "rules.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var rs []*rules.Rule
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return rs, nil
}

// SaveRules replaces the stored rule set wholesale. There is no partial
// update contract.
func (s *Store) SaveRules(rs []*rules.Rule) error {
	if rs == nil {
		rs = []*rules.Rule{}
	}
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "rules.json"), data, 0644); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	return nil
}

// ── Subscriptions ────────────────────────────────────────────────────

// ErrSubscriptionExists reports a duplicate registration for an endpoint.
var ErrSubscriptionExists = errors.New("subscription already exists")

// LoadSubscriptions reads the subscriber registry. Missing file = empty.
func (s *Store) LoadSubscriptions() ([]notify.Subscription, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "subscriptions.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}

	var subs []notify.Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	return subs, nil
}

// AddSubscription registers a new delivery target. Each endpoint may be
// registered once.
func (s *Store) AddSubscription(sub notify.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.LoadSubscriptions()
	if err != nil {
		return err
	}
	for _, existing := range subs {
		if existing.Endpoint == sub.Endpoint {
			return ErrSubscriptionExists
		}
	}

	subs = append(subs, sub)
	data, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("encode subscriptions: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "subscriptions.json"), data, 0644); err != nil {
		return fmt.Errorf("write subscriptions: %w", err)
	}
	return nil
}
