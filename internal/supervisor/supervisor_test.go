package supervisor

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/mcpskill/mcpskill/internal/worker"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix-only test")
	}
}

func waitUntil(timeout, step time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(step)
	}
	return fn()
}

func sleepSpec(dir, dur string) worker.Spec {
	return worker.Spec{Name: "test", Command: "/bin/sh", Args: []string{"-c", "sleep " + dur}, SkillDir: dir}
}

// exitedPID returns the PID of a process that has already exited.
func exitedPID(t *testing.T) int {
	t.Helper()
	// #nosec G204
	cmd := exec.Command("/bin/sh", "-c", "true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	return cmd.Process.Pid
}

func noDurableFiles(t *testing.T, s *Supervisor) {
	t.Helper()
	for _, p := range []string{s.store.PIDPath(), s.store.LastActivePath()} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s absent, stat err=%v", p, err)
		}
	}
}

func TestDisabledSupervisorIsNoOp(t *testing.T) {
	dir := t.TempDir()
	s := New(sleepSpec(dir, "5"), Config{Enabled: false})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h, err := s.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if h != nil {
		t.Fatalf("disabled supervisor must not return a handle")
	}
	s.UpdateHeartbeat()
	s.Stop()
	noDurableFiles(t, s)
}

func TestGetOrCreateSpawnsOnce(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	s := New(sleepSpec(dir, "5"), Config{Enabled: true})
	defer s.Stop()

	before := time.Now()
	h, err := s.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if h == nil {
		t.Fatalf("expected a handle from fresh spawn")
	}
	pid, err := s.store.ReadPID()
	if err != nil || pid != h.PID() {
		t.Fatalf("pid file: pid=%d err=%v want %d", pid, err, h.PID())
	}
	last, ok := s.store.ReadLastActive()
	if !ok || last.Before(before.Add(-time.Second)) {
		t.Fatalf("heartbeat not fresh after spawn: %v ok=%v", last, ok)
	}

	// Second call must reuse, not spawn: same handle, same pid on disk.
	h2, err := s.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate reuse: %v", err)
	}
	if h2 != h {
		t.Fatalf("reuse must return the existing handle")
	}
	if pid2, _ := s.store.ReadPID(); pid2 != pid {
		t.Fatalf("reuse must not rewrite identity: %d != %d", pid2, pid)
	}
	_ = h.Terminate(time.Second)
}

func TestGetOrCreateReuseUpdatesHeartbeat(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	s := New(sleepSpec(dir, "5"), Config{Enabled: true})
	defer s.Stop()

	h, err := s.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	stale := time.Now().Add(-time.Hour)
	if err := s.store.WriteLastActive(stale); err != nil {
		t.Fatalf("WriteLastActive: %v", err)
	}
	if _, err := s.GetOrCreate(); err != nil {
		t.Fatalf("GetOrCreate reuse: %v", err)
	}
	last, ok := s.store.ReadLastActive()
	if !ok || !last.After(stale.Add(time.Minute)) {
		t.Fatalf("reuse must refresh heartbeat, got %v", last)
	}
	_ = h.Terminate(time.Second)
}

func TestGetOrCreateSpawnErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	spec := worker.Spec{Name: "bad", Command: "/no/such/binary", SkillDir: dir}
	s := New(spec, Config{Enabled: true})
	if _, err := s.GetOrCreate(); err == nil {
		t.Fatalf("expected spawn failure to propagate")
	}
	noDurableFiles(t, s)
}

func TestReconcileClearsStaleState(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	s := New(sleepSpec(dir, "5"), Config{Enabled: true})

	// Durable state points at a worker that never existed under this
	// supervisor and is already gone.
	if err := s.store.WritePID(exitedPID(t)); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	if err := s.store.WriteLastActive(time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("WriteLastActive: %v", err)
	}

	s.tick()
	noDurableFiles(t, s)
}

func TestIdleTimeoutTerminatesWorker(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	s := New(sleepSpec(dir, "10"), Config{
		Enabled:       true,
		IdleTimeout:   2 * time.Second,
		CheckInterval: 100 * time.Millisecond,
	})
	defer s.Stop()

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h, err := s.GetOrCreate()
	if err != nil || h == nil {
		t.Fatalf("GetOrCreate: h=%v err=%v", h, err)
	}

	// Backdate the heartbeat past the timeout and let the monitor tick.
	if err := s.store.WriteLastActive(time.Now().Add(-3 * time.Second)); err != nil {
		t.Fatalf("WriteLastActive: %v", err)
	}
	ok := waitUntil(3*time.Second, 20*time.Millisecond, func() bool {
		_, pidErr := s.store.ReadPID()
		_, lastOK := s.store.ReadLastActive()
		return pidErr != nil && !lastOK
	})
	if !ok {
		t.Fatalf("monitor did not clear durable state after idle timeout")
	}
	if !waitUntil(2*time.Second, 20*time.Millisecond, func() bool { return !h.Alive() }) {
		t.Fatalf("worker not terminated after idle timeout")
	}
}

func TestFreshHeartbeatSurvivesMonitor(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	s := New(sleepSpec(dir, "10"), Config{
		Enabled:       true,
		IdleTimeout:   time.Hour,
		CheckInterval: 50 * time.Millisecond,
	})
	defer s.Stop()

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(300 * time.Millisecond) // several ticks
	if !s.store.IsAlive() {
		t.Fatalf("active worker must survive monitor ticks")
	}
}

func TestMissingHeartbeatSkipsTick(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	s := New(sleepSpec(dir, "5"), Config{Enabled: true, IdleTimeout: time.Millisecond})
	defer s.Stop()

	h, err := s.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	// Remove only the heartbeat: nothing to compare against, so the
	// tick must leave the identity alone.
	if err := os.Remove(s.store.LastActivePath()); err != nil {
		t.Fatalf("remove heartbeat: %v", err)
	}
	s.tick()
	if _, err := s.store.ReadPID(); err != nil {
		t.Fatalf("tick without heartbeat must not clear identity")
	}
	_ = h.Terminate(time.Second)
}

func TestStopTerminatesAndClears(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	s := New(sleepSpec(dir, "10"), Config{Enabled: true})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h, err := s.GetOrCreate()
	if err != nil || h == nil {
		t.Fatalf("GetOrCreate: h=%v err=%v", h, err)
	}

	start := time.Now()
	s.Stop()
	if elapsed := time.Since(start); elapsed > 12*time.Second {
		t.Fatalf("Stop not bounded: %v", elapsed)
	}
	noDurableFiles(t, s)
	if !waitUntil(2*time.Second, 20*time.Millisecond, func() bool { return !h.Alive() }) {
		t.Fatalf("worker survived Stop")
	}
}

func TestStopIdempotent(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	s := New(sleepSpec(dir, "5"), Config{Enabled: true})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	s.Stop() // second Stop must be a no-op
	noDurableFiles(t, s)
}

func TestNormalizedDefaults(t *testing.T) {
	c := Config{Enabled: true}.Normalized()
	if c.IdleTimeout != DefaultIdleTimeout {
		t.Fatalf("IdleTimeout default: %v", c.IdleTimeout)
	}
	if c.CheckInterval != DefaultCheckInterval {
		t.Fatalf("CheckInterval default: %v", c.CheckInterval)
	}
}
