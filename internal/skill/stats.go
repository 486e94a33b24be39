package skill

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StatsFileName is the per-skill invocation counter file.
const StatsFileName = ".mcp.stats.json"

// Stats tracks tool invocations against a skill's worker.
type Stats struct {
	Invocations int       `json:"invocations"`
	Errors      int       `json:"errors"`
	LastInvoked time.Time `json:"last_invoked,omitzero"`
	LastReset   time.Time `json:"last_reset,omitzero"`
}

// LoadStats reads the stats file; an absent or unreadable file yields
// zeroed stats, never an error.
func LoadStats(dir string) Stats {
	var s Stats
	b, err := os.ReadFile(filepath.Join(dir, StatsFileName))
	if err != nil {
		return s
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return Stats{}
	}
	return s
}

// SaveStats overwrites the stats file wholesale.
func SaveStats(dir string, s Stats) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, StatsFileName), b, 0o600)
}

// RecordInvocation bumps the counters after a tool call. Best-effort;
// a failed write is not worth failing the invocation for.
func RecordInvocation(dir string, failed bool) {
	s := LoadStats(dir)
	s.Invocations++
	if failed {
		s.Errors++
	}
	s.LastInvoked = time.Now()
	_ = SaveStats(dir, s)
}

// ResetStats zeroes the counters, keeping the reset time.
func ResetStats(dir string) error {
	return SaveStats(dir, Stats{LastReset: time.Now()})
}
