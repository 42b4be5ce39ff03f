package qrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// LocalRunner executes the smr binary as a child process of this one.
type LocalRunner struct {
	logDir      string // per-invocation stdout.log/stderr.log, optional
	outputLimit int
	env         map[string]string
}

// LocalRunnerOption configures a LocalRunner
type LocalRunnerOption func(*LocalRunner)

// WithLogDir keeps full stdout and stderr under <dir>/<spec.ID>/
func WithLogDir(dir string) LocalRunnerOption {
	return func(r *LocalRunner) {
		r.logDir = dir
	}
}

// WithOutputLimit overrides OutputLimit for captured output.
func WithOutputLimit(n int) LocalRunnerOption {
	return func(r *LocalRunner) {
		r.outputLimit = n
	}
}

// WithEnv adds environment variables to every process.
func WithEnv(env map[string]string) LocalRunnerOption {
	return func(r *LocalRunner) {
		r.env = env
	}
}

func NewLocalRunner(opts ...LocalRunnerOption) *LocalRunner {
	r := &LocalRunner{
		outputLimit: OutputLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *LocalRunner) Name() string {
	return BackendLocal
}

func (r *LocalRunner) Invoke(ctx context.Context, spec Spec) (*Result, error) {
	if len(spec.Args) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, spec.Args[0], spec.Args[1:]...)
	if spec.WorkingDir != "" {
		cmd.Dir = spec.WorkingDir
	}

	cmd.Env = os.Environ()
	for k, v := range r.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if spec.ID != "" {
		cmd.Env = append(cmd.Env, fmt.Sprintf("QSMR_INVOCATION_ID=%s", spec.ID))
	}

	stdout := newTailBuffer(r.outputLimit)
	stderr := newTailBuffer(r.outputLimit)
	var stdoutW, stderrW io.Writer = stdout, stderr

	if r.logDir != "" && spec.ID != "" {
		logDir := filepath.Join(r.logDir, spec.ID)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logFile, err := os.Create(filepath.Join(logDir, "stdout.log"))
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		defer logFile.Close()
		stderrFile, err := os.Create(filepath.Join(logDir, "stderr.log"))
		if err != nil {
			return nil, fmt.Errorf("failed to create stderr file: %w", err)
		}
		defer stderrFile.Close()
		stdoutW = io.MultiWriter(stdout, logFile)
		stderrW = io.MultiWriter(stderr, stderrFile)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	result := &Result{
		Backend:   BackendLocal,
		StartedAt: time.Now(),
	}
	err := cmd.Run()
	result.FinishedAt = time.Now()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err == nil {
		result.Status = RunStatusSucceeded
		return result, nil
	}

	// Context first: a killed process also surfaces as an ExitError.
	if ctx.Err() != nil {
		result.Status = RunStatusCancelled
		result.ExitCode = -1
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.Status = statusForExit(result.ExitCode)
		return result, nil
	}

	result.Status = RunStatusFailed
	result.ExitCode = -1
	return result, fmt.Errorf("failed to start %s: %w", spec.Args[0], err)
}

var _ Invoker = (*LocalRunner)(nil)
