package qrunner

import (
	"context"
	"time"
)

// RunStatus represents the final state of an invocation
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Backend names accepted in configuration.
const (
	BackendLocal  = "local"
	BackendDocker = "docker"
	BackendK8s    = "k8s"
	BackendDryRun = "dry-run"
)

// Backends lists every backend name in a stable order.
func Backends() []string {
	return []string{BackendLocal, BackendDocker, BackendK8s, BackendDryRun}
}

// Spec describes one process to run to completion.
type Spec struct {
	ID         string            // unique per invocation; used for container and job names
	Name       string            // human-readable name for logs
	Args       []string          // argv, Args[0] is the executable
	Env        map[string]string // extra environment variables
	WorkingDir string            // relative output prefixes resolve against this
}

// Result is what an Invoker observed about a finished process.
type Result struct {
	Backend    string    `json:"backend"`
	Status     RunStatus `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Stdout     string    `json:"stdout,omitempty"` // tail only, see OutputLimit
	Stderr     string    `json:"stderr,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded reports a zero exit.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == RunStatusSucceeded
}

// Duration is the wall time between start and finish.
func (r *Result) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Invoker runs a Spec synchronously.
//
// A non-nil error means the process could not be started or observed.
// A process that ran and exited non-zero is reported through
// Result.ExitCode with a nil error.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, spec Spec) (*Result, error)
}

// OutputLimit bounds how much of stdout and stderr a Result keeps.
const OutputLimit = 64 * 1024

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if t.limit > 0 && len(t.buf) > t.limit {
		t.buf = append(t.buf[:0], t.buf[len(t.buf)-t.limit:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

func statusForExit(code int) RunStatus {
	if code == 0 {
		return RunStatusSucceeded
	}
	return RunStatusFailed
}
