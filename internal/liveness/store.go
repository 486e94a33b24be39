package liveness

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// File names for the durable cells kept under the skill directory.
// Any process with filesystem access to the directory can observe
// supervisor state through them without IPC.
const (
	PIDFileName        = ".mcp.pid"
	LastActiveFileName = ".mcp.last_active"
)

// Store persists worker identity and heartbeat as two plain-text files
// under a skill directory. The PID on disk is the source of truth for
// liveness shared across independent supervisor instances; both cells
// are overwritten wholesale on every update, never appended or locked.
type Store struct {
	dir string
}

func New(dir string) *Store { return &Store{dir: dir} }

func (s *Store) Dir() string { return s.dir }

// PIDPath returns the path of the identity cell.
func (s *Store) PIDPath() string { return filepath.Join(s.dir, PIDFileName) }

// LastActivePath returns the path of the heartbeat cell.
func (s *Store) LastActivePath() string { return filepath.Join(s.dir, LastActiveFileName) }

// ReadPID parses the identity cell. A missing or malformed file yields an error.
func (s *Store) ReadPID() (int, error) {
	b, err := os.ReadFile(s.PIDPath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// WritePID records the worker PID as decimal text.
func (s *Store) WritePID(pid int) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(s.PIDPath(), []byte(strconv.Itoa(pid)), 0o600)
}

// IsAlive reports whether the recorded worker still exists. Any read,
// parse, or probe failure counts as not alive so callers degrade toward
// spawning a fresh worker rather than trusting a stale identity.
func (s *Store) IsAlive() bool {
	pid, err := s.ReadPID()
	if err != nil {
		return false
	}
	return pidAlive(pid)
}

// WriteLastActive records the heartbeat as decimal epoch seconds.
func (s *Store) WriteLastActive(t time.Time) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return err
	}
	secs := float64(t.UnixNano()) / float64(time.Second)
	return os.WriteFile(s.LastActivePath(), []byte(strconv.FormatFloat(secs, 'f', 6, 64)), 0o600)
}

// ReadLastActive returns the recorded heartbeat time. The second return
// is false when the cell is absent or unparseable.
func (s *Store) ReadLastActive() (time.Time, bool) {
	b, err := os.ReadFile(s.LastActivePath())
	if err != nil {
		return time.Time{}, false
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, int64(secs*float64(time.Second))), true
}

// Clear removes both cells. Removal of an already-absent file is not an
// error; cleanup must never block shutdown.
func (s *Store) Clear() {
	_ = os.Remove(s.PIDPath())
	_ = os.Remove(s.LastActivePath())
}
