package worker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mcpskill/mcpskill/internal/env"
	"github.com/mcpskill/mcpskill/internal/liveness"
)

// Handle is a live reference to a spawned worker. Its stdin/stdout are
// reserved for the tool-invocation caller; the launcher never interprets
// that traffic. Exactly one goroutine (started by Spawn) reaps the child.
type Handle struct {
	cmd    *exec.Cmd
	pid    int
	stdin  io.WriteCloser
	stdout io.ReadCloser

	errCloser io.WriteCloser

	mu       sync.Mutex
	waitDone chan struct{}
	waitErr  error
}

// Spawn starts the worker described by spec with the parent environment
// overlaid by spec.Env and stdin/stdout wired as pipes. Immediately after
// a successful start it records the PID and resets the heartbeat in st;
// both writes are best-effort bookkeeping and never invalidate the
// returned handle.
func Spawn(spec Spec, st *liveness.Store) (*Handle, error) {
	if spec.Command == "" {
		return nil, errors.New("worker: empty command")
	}
	// #nosec G204 -- command comes from the operator-supplied MCP config
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = env.Merge(spec.Env)
	if spec.SkillDir != "" {
		cmd.Dir = spec.SkillDir
	}
	configureSysProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var errCloser io.WriteCloser
	if w := spec.Log.StderrWriter(spec.Name); w != nil {
		cmd.Stderr = w
		errCloser = w
	} else {
		cmd.Stderr, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}

	if err := cmd.Start(); err != nil {
		if errCloser != nil {
			_ = errCloser.Close()
		}
		return nil, fmt.Errorf("worker: start %s: %w", spec.Command, err)
	}

	h := &Handle{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		stdin:     stdin,
		stdout:    stdout,
		errCloser: errCloser,
		waitDone:  make(chan struct{}),
	}
	go h.reap()

	// Spawn and first heartbeat are one unit of bookkeeping from the
	// caller's perspective; a failed write leaves the handle valid and
	// is repaired on the next heartbeat.
	_ = st.WritePID(h.pid)
	_ = st.WriteLastActive(time.Now())

	return h, nil
}

// reap is the single waiter on the child. It closes waitDone once the
// process has been collected so Terminate can bound its wait.
func (h *Handle) reap() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.waitErr = err
	h.mu.Unlock()
	if h.errCloser != nil {
		_ = h.errCloser.Close()
	}
	close(h.waitDone)
}

func (h *Handle) PID() int { return h.pid }

// Stdin is the worker's standard input for message traffic.
func (h *Handle) Stdin() io.WriteCloser { return h.stdin }

// Stdout is the worker's standard output for message traffic.
func (h *Handle) Stdout() io.Reader { return h.stdout }

// Alive reports whether the child has not yet been reaped.
func (h *Handle) Alive() bool {
	select {
	case <-h.waitDone:
		return false
	default:
		return true
	}
}

// Wait blocks until the worker exits and returns its exit error.
func (h *Handle) Wait() error {
	<-h.waitDone
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitErr
}

// SignalTerm sends a graceful termination request to an arbitrary PID.
// The monitor uses it for workers recorded on disk by another supervisor
// instance, where no local handle exists.
func SignalTerm(pid int) error { return terminateProcess(pid) }

// Terminate requests a graceful stop and escalates to a forced kill if
// the worker has not exited within wait. Signaling an already-gone
// process is treated as success.
func (h *Handle) Terminate(wait time.Duration) error {
	if !h.Alive() {
		return nil
	}
	_ = terminateProcess(h.pid)
	select {
	case <-h.waitDone:
	case <-time.After(wait):
		_ = killProcess(h.pid)
		select {
		case <-h.waitDone:
		case <-time.After(200 * time.Millisecond):
			// best-effort
		}
	}
	return nil
}
