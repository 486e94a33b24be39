package history

import (
	"context"
	"time"
)

// EventType defines the kind of worker lifecycle event.
type EventType string

const (
	EventSpawn       EventType = "spawn"
	EventIdleTimeout EventType = "idle_timeout"
	EventReconcile   EventType = "reconcile"
	EventStop        EventType = "stop"
)

// Event represents a worker lifecycle event exported to external systems.
// IdleFor is only meaningful for EventIdleTimeout.
type Event struct {
	Type       EventType     `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
	Skill      string        `json:"skill"`
	PID        int           `json:"pid"`
	IdleFor    time.Duration `json:"idle_for,omitempty"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
