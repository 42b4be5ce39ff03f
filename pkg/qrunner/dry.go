package qrunner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// DryRunner prints and records specs without running anything.
type DryRunner struct {
	out   io.Writer
	mu    sync.Mutex
	specs []Spec
}

// NewDryRunner writes one command line per invocation to out (may be nil).
func NewDryRunner(out io.Writer) *DryRunner {
	return &DryRunner{out: out}
}

func (r *DryRunner) Name() string {
	return BackendDryRun
}

func (r *DryRunner) Invoke(ctx context.Context, spec Spec) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()

	if r.out != nil {
		fmt.Fprintln(r.out, strings.Join(spec.Args, " "))
	}

	now := time.Now()
	return &Result{
		Backend:    BackendDryRun,
		Status:     RunStatusSucceeded,
		StartedAt:  now,
		FinishedAt: now,
	}, nil
}

// Specs returns a copy of everything seen so far.
func (r *DryRunner) Specs() []Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Spec(nil), r.specs...)
}

var _ Invoker = (*DryRunner)(nil)
