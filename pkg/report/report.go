// Package report records what a batch run did, one entry per invocation,
// and persists it for later inspection.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/quatton/qsmr/pkg/smr"
)

// ErrNotFound is returned when no report has the requested ID.
var ErrNotFound = errors.New("report not found")

// Report describes one execution of one job.
type Report struct {
	ID          string       `json:"id"`
	Job         smr.Job      `json:"job"`
	Backend     string       `json:"backend"`
	Policy      string       `json:"policy"`
	OutputDir   string       `json:"output_dir"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Error       string       `json:"error,omitempty"` // why the job stopped early, if it did
	Invocations []Invocation `json:"invocations"`
}

// Invocation is the observed outcome of one smr command.
type Invocation struct {
	Seq       int           `json:"seq"`
	SNP       string        `json:"snp"`
	Outcome   string        `json:"outcome"`
	OutPrefix string        `json:"out_prefix"`
	Command   []string      `json:"command"`
	Status    string        `json:"status"`
	ExitCode  int           `json:"exit_code"`
	Attempts  int           `json:"attempts"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
}

// Succeeded reports a zero exit without dispatch error.
func (i Invocation) Succeeded() bool {
	return i.Status == "succeeded" && i.Error == ""
}

// Summary counts invocations by outcome.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summary counts the recorded invocations.
func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Invocations)}
	for _, inv := range r.Invocations {
		if inv.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// Failed returns the invocations that did not succeed.
func (r *Report) Failed() []Invocation {
	var failed []Invocation
	for _, inv := range r.Invocations {
		if !inv.Succeeded() {
			failed = append(failed, inv)
		}
	}
	return failed
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Label string
	Limit int
}

// Store persists reports.
type Store interface {
	Save(ctx context.Context, r *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	// List returns reports newest first.
	List(ctx context.Context, f Filter) ([]*Report, error)
}
