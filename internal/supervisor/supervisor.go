package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcpskill/mcpskill/internal/history"
	"github.com/mcpskill/mcpskill/internal/liveness"
	"github.com/mcpskill/mcpskill/internal/metrics"
	"github.com/mcpskill/mcpskill/internal/worker"
)

// Defaults for the keep-alive policy, matching the skill config defaults.
const (
	DefaultIdleTimeout   = time.Hour
	DefaultCheckInterval = time.Minute

	// stopWait bounds how long Stop waits for the monitor to exit and
	// for a terminated worker to be reaped.
	stopWait = 5 * time.Second
)

// Config holds the keep-alive policy. Immutable after New.
type Config struct {
	Enabled       bool
	IdleTimeout   time.Duration
	CheckInterval time.Duration
}

// Normalized returns cfg with non-positive durations replaced by defaults.
func (c Config) Normalized() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	return c
}

// Supervisor keeps one MCP worker per skill directory alive across tool
// invocations, terminates it after the configured idle period, and
// reconciles on-disk state when the worker dies outside its control.
//
// The PID on disk is the source of truth for liveness shared with other
// supervisor instances pointed at the same skill directory; the local
// handle is only a fast path for the instance that spawned the worker.
// Two independent instances can race to spawn; callers needing strict
// cross-process exclusivity must add their own lock file.
type Supervisor struct {
	spec  worker.Spec
	cfg   Config
	store *liveness.Store
	log   *slog.Logger
	sinks []history.Sink

	mu      sync.Mutex
	handle  *worker.Handle
	started bool
	stopped bool
	cancel  context.CancelFunc
	monDone chan struct{}
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the slog logger used for monitor diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHistorySinks configures destinations for worker lifecycle events.
// Sink failures never affect supervision.
func WithHistorySinks(sinks ...history.Sink) Option {
	return func(s *Supervisor) { s.sinks = append([]history.Sink(nil), sinks...) }
}

// New builds a Supervisor for the given worker spec. Ownership is
// explicit: the caller that needs supervision constructs and holds it.
func New(spec worker.Spec, cfg Config, opts ...Option) *Supervisor {
	s := &Supervisor{
		spec:  spec,
		cfg:   cfg.Normalized(),
		store: liveness.New(spec.SkillDir),
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store exposes the durable liveness cells, mainly for status queries.
func (s *Supervisor) Store() *liveness.Store { return s.store }

// Start launches the background monitor and performs an initial spawn
// (or reuse). It is a no-op when the supervisor is disabled. Calling
// Start on an already-started supervisor is a no-op.
func (s *Supervisor) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	s.mu.Lock()
	if s.started && !s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.stopped = false
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.monDone = make(chan struct{})
	go s.monitor(ctx, s.monDone)
	s.mu.Unlock()

	_, err := s.GetOrCreate()
	return err
}

// GetOrCreate is the primary caller-facing entry point. It returns nil
// when disabled; reuses the running worker (updating the heartbeat) when
// the durable state says one is alive; otherwise spawns a fresh worker.
// When another supervisor instance owns the running worker, the returned
// handle is nil even though the heartbeat was updated.
func (s *Supervisor) GetOrCreate() (*worker.Handle, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.IsAlive() {
		// Using the worker proves it is not idle; couple the two so the
		// monitor's idle computation stays correct.
		s.heartbeatLocked()
		return s.handle, nil
	}

	h, err := worker.Spawn(s.spec, s.store)
	if err != nil {
		return nil, err
	}
	s.handle = h
	metrics.IncSpawn(s.spec.Name)
	s.log.Info("worker started", "skill", s.spec.Name, "pid", h.PID())
	s.emit(history.Event{Type: history.EventSpawn, OccurredAt: time.Now(), Skill: s.spec.Name, PID: h.PID()})
	return h, nil
}

// UpdateHeartbeat records now as the worker's last-active time. It is a
// no-op when the supervisor is disabled.
func (s *Supervisor) UpdateHeartbeat() {
	if !s.cfg.Enabled {
		return
	}
	s.mu.Lock()
	s.heartbeatLocked()
	s.mu.Unlock()
}

func (s *Supervisor) heartbeatLocked() {
	_ = s.store.WriteLastActive(time.Now())
	metrics.IncHeartbeat(s.spec.Name)
}

// Stop shuts the supervisor down: it cancels the monitor, waits for it
// within a bound, terminates a locally-held worker, and clears durable
// state unconditionally. It is idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	monDone := s.monDone
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if monDone != nil {
		select {
		case <-monDone:
		case <-time.After(stopWait):
			// Shutdown must be bounded; proceed regardless.
		}
	}
	if h != nil {
		_ = h.Terminate(stopWait)
		s.emit(history.Event{Type: history.EventStop, OccurredAt: time.Now(), Skill: s.spec.Name, PID: h.PID()})
	}
	s.store.Clear()
}

// monitor re-checks liveness and idle duration every CheckInterval until
// the context is cancelled. Cancellation preempts the sleep so shutdown
// latency is bounded by intent, not by the interval. A bad tick never
// kills the loop.
func (s *Supervisor) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Supervisor) tick() {
	if s.store.IsAlive() {
		s.checkIdle()
		return
	}
	s.reconcile()
}

// reconcile clears stale durable cells left behind by a worker that died
// or was killed outside supervisor control. Not an error, just state
// drift to repair; only observed when an identity was actually recorded.
func (s *Supervisor) reconcile() {
	pid, err := s.store.ReadPID()
	if err != nil {
		return
	}
	s.store.Clear()
	s.mu.Lock()
	s.handle = nil
	s.mu.Unlock()
	metrics.IncReconcile(s.spec.Name)
	s.log.Info("worker died outside supervisor control, cleared state", "skill", s.spec.Name, "pid", pid)
	s.emit(history.Event{Type: history.EventReconcile, OccurredAt: time.Now(), Skill: s.spec.Name, PID: pid})
}

// checkIdle terminates the worker once it has been idle past the
// timeout. A missing heartbeat cell means there is nothing to compare
// against yet, so the tick is skipped. Signal delivery to an
// already-gone process counts as terminated.
func (s *Supervisor) checkIdle() {
	last, ok := s.store.ReadLastActive()
	if !ok {
		return
	}
	idle := time.Since(last)
	if idle <= s.cfg.IdleTimeout {
		return
	}
	pid, err := s.store.ReadPID()
	if err != nil {
		return
	}
	_ = worker.SignalTerm(pid)
	s.store.Clear()
	s.mu.Lock()
	s.handle = nil
	s.mu.Unlock()
	metrics.IncIdleTermination(s.spec.Name, idle.Seconds())
	s.log.Warn("worker idle past timeout, terminated",
		"skill", s.spec.Name, "pid", pid, "idle", idle.Round(time.Second), "timeout", s.cfg.IdleTimeout)
	s.emit(history.Event{Type: history.EventIdleTimeout, OccurredAt: time.Now(), Skill: s.spec.Name, PID: pid, IdleFor: idle})
}

// emit sends an event to all sinks best-effort with a short deadline.
func (s *Supervisor) emit(e history.Event) {
	if len(s.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, sink := range s.sinks {
		if err := sink.Send(ctx, e); err != nil {
			s.log.Debug("history sink send failed", "skill", s.spec.Name, "event", string(e.Type), "error", err)
		}
	}
}
