package skill

import (
	"time"

	"github.com/mcpskill/mcpskill/internal/liveness"
)

// WorkerStatus is the observable supervisor state of a skill directory.
type WorkerStatus struct {
	Running    bool      `json:"running"`
	PID        int       `json:"pid,omitempty"`
	LastActive time.Time `json:"last_active,omitzero"`
	IdleFor    string    `json:"idle_for,omitempty"`
}

// Status combines worker liveness with a skill's invocation stats.
type Status struct {
	Name   string       `json:"name"`
	Path   string       `json:"path"`
	Worker WorkerStatus `json:"worker"`
	Stats  Stats        `json:"stats"`
}

// GetStatus inspects a skill directory: the durable liveness cells plus
// the stats file. The skill.json must be loadable to name the skill.
func GetStatus(dir string) (*Status, error) {
	cfg, err := LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	st := liveness.New(dir)
	out := &Status{Name: cfg.Name, Path: dir, Stats: LoadStats(dir)}
	if st.IsAlive() {
		out.Worker.Running = true
		out.Worker.PID, _ = st.ReadPID()
	}
	if last, ok := st.ReadLastActive(); ok {
		out.Worker.LastActive = last
		out.Worker.IdleFor = time.Since(last).Round(time.Second).String()
	}
	return out, nil
}
