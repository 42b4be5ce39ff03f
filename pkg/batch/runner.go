// Package batch runs SMR jobs: it claims the label, creates the output
// directory, dispatches every (outcome, SNP) invocation in order and
// records what happened.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/qsmr/pkg/kv"
	"github.com/quatton/qsmr/pkg/qart"
	"github.com/quatton/qsmr/pkg/qerr"
	"github.com/quatton/qsmr/pkg/qlog"
	"github.com/quatton/qsmr/pkg/qrunner"
	"github.com/quatton/qsmr/pkg/report"
	"github.com/quatton/qsmr/pkg/smr"
	"github.com/spf13/afero"
)

// Report is the record of one RunBatch call.
type Report = report.Report

// DefaultLeaseTTL applies when Config.LeaseTTL is zero. The lease is
// refreshed before each invocation, so the TTL must only outlive the
// slowest single invocation.
const DefaultLeaseTTL = 24 * time.Hour

// Config wires a Runner. Planner and Invoker are required; the rest are
// optional.
type Config struct {
	Planner smr.Planner
	Invoker qrunner.Invoker
	Policy  Policy

	// Fs is where output directories are created. Defaults to the OS.
	Fs afero.Fs
	// WorkingDir is passed to every invocation so relative prefixes
	// resolve the same way for every backend.
	WorkingDir string

	// Locks, when set, guards each label with a lease.
	Locks     kv.Store
	LeaseTTL  time.Duration
	LockKeyFn func(label string) string

	Artifacts qart.Store
	Reports   report.Store
	Logger    *qlog.Logger
}

type Runner struct {
	cfg Config
	fs  afero.Fs
	log *qlog.Logger
	now func() time.Time
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Invoker == nil {
		return nil, qerr.New(qerr.CodeConfig, errors.New("batch runner requires an invoker"))
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, qerr.New(qerr.CodeConfig, err)
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = qlog.Discard()
	}
	if cfg.LeaseTTL == 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}
	if cfg.LockKeyFn == nil {
		cfg.LockKeyFn = LockKey
	}
	return &Runner{cfg: cfg, fs: cfg.Fs, log: cfg.Logger, now: time.Now}, nil
}

// LockKey is the default lease key for a label.
func LockKey(label string) string {
	return "qsmr:label:" + label
}

// RunBatch executes every invocation of job.
//
// Pre-flight failures (invalid job, held label, existing output directory)
// return a nil report and dispatch nothing. Once dispatching has started a
// report is always returned, together with an error when the halt policy
// stopped the job or the context was cancelled.
func (r *Runner) RunBatch(ctx context.Context, job smr.Job) (*Report, error) {
	invocations, err := r.cfg.Planner.Plan(job)
	if err != nil {
		return nil, err
	}

	batchID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch id: %w", err)
	}
	log := r.log.With("batch", batchID.String(), "label", job.Label)

	var lease *kv.Lease
	if r.cfg.Locks != nil {
		lease, err = kv.AcquireLease(ctx, r.cfg.Locks, r.cfg.LockKeyFn(job.Label), r.cfg.LeaseTTL)
		if errors.Is(err, kv.ErrLeaseHeld) {
			return nil, qerr.Newf(qerr.CodeLabelLocked, "label %q is being processed by another run", job.Label)
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to release label lease", "error", err)
			}
		}()
	}

	outDir := smr.OutputDir(r.cfg.Planner.Root, job.Label)
	if err := r.createOutputDir(outDir); err != nil {
		return nil, err
	}
	log.Info("created output directory", "dir", outDir, "invocations", len(invocations))

	rep := &Report{
		ID:          batchID.String(),
		Job:         job,
		Backend:     r.cfg.Invoker.Name(),
		Policy:      string(r.cfg.Policy.mode()),
		OutputDir:   outDir,
		StartedAt:   r.now().UTC(),
		Invocations: make([]report.Invocation, 0, len(invocations)),
	}

	runErr := r.dispatch(ctx, log, rep, invocations, lease)
	if runErr != nil {
		rep.Error = runErr.Error()
	}
	rep.FinishedAt = r.now().UTC()

	r.finish(ctx, log, rep, outDir)
	return rep, runErr
}

// localPath maps an output path onto r.fs. Relative paths are resolved
// against WorkingDir, the same directory the invoked process runs in.
func (r *Runner) localPath(p string) string {
	p = strings.TrimRight(p, "/")
	if r.cfg.WorkingDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.cfg.WorkingDir, p)
}

// createOutputDir creates dir and any missing parents. Only an existing
// leaf is an error.
func (r *Runner) createOutputDir(dir string) error {
	path := r.localPath(dir)
	exists, err := afero.Exists(r.fs, path)
	if err != nil {
		return fmt.Errorf("failed to check output directory %s: %w", dir, err)
	}
	if exists {
		return qerr.Newf(qerr.CodeOutputDirExists, "output directory %s already exists", dir)
	}
	if err := r.fs.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}

func (r *Runner) dispatch(ctx context.Context, log *qlog.Logger, rep *Report, invocations []smr.Invocation, lease *kv.Lease) error {
	for i, inv := range invocations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && lease != nil {
			if err := r.renew(ctx, log, lease); err != nil {
				return err
			}
		}

		rec := r.invoke(ctx, log, rep.ID, i, inv)
		rep.Invocations = append(rep.Invocations, rec)

		if rec.Succeeded() {
			log.Info("invocation succeeded", "seq", i, "snp", inv.SNP, "outcome", inv.Outcome.Basename(), "attempts", rec.Attempts)
			continue
		}

		log.Warn("invocation failed",
			"seq", i,
			"snp", inv.SNP,
			"outcome", inv.Outcome.Basename(),
			"exit", rec.ExitCode,
			"attempts", rec.Attempts,
			"error", rec.Error,
		)
		if rec.Status == string(qrunner.RunStatusCancelled) && ctx.Err() != nil {
			return ctx.Err()
		}
		if r.cfg.Policy.mode() == PolicyHalt {
			return qerr.Newf(qerr.CodeInvocationFailed, "invocation %d (%s, %s) failed with exit code %d",
				i, inv.SNP, inv.Outcome.Basename(), rec.ExitCode)
		}
	}
	return nil
}

// renew extends the label lease by LeaseTTL. A lost lease stops the job;
// a store error is only logged and retried before the next invocation.
func (r *Runner) renew(ctx context.Context, log *qlog.Logger, lease *kv.Lease) error {
	err := lease.Refresh(ctx, r.cfg.LeaseTTL)
	if errors.Is(err, kv.ErrLeaseLost) {
		return qerr.Newf(qerr.CodeLabelLocked, "lease on %s was lost; another run may own the label", lease.Key())
	}
	if err != nil {
		log.Warn("failed to refresh label lease", "error", err)
	}
	return nil
}

// invoke dispatches one invocation, retrying per policy.
func (r *Runner) invoke(ctx context.Context, log *qlog.Logger, batchID string, seq int, inv smr.Invocation) report.Invocation {
	rec := report.Invocation{
		Seq:       seq,
		SNP:       inv.SNP,
		Outcome:   inv.Outcome.Path(),
		OutPrefix: inv.OutPrefix,
		Command:   inv.Args,
		StartedAt: r.now().UTC(),
	}

	attempts := r.cfg.Policy.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		rec.Attempts = attempt
		if attempt > 1 {
			log.Info("retrying invocation", "seq", seq, "attempt", attempt)
		}

		spec := qrunner.Spec{
			ID:         fmt.Sprintf("%s-%d-%d", batchID, seq, attempt),
			Name:       fmt.Sprintf("%s %s %s", inv.Job.Gene, inv.SNP, inv.Outcome.Basename()),
			Args:       inv.Args,
			WorkingDir: r.cfg.WorkingDir,
		}
		log.Debug("dispatching", "cmd", inv.CommandLine())

		res, err := r.attempt(ctx, spec)
		rec.Error = ""
		if err != nil {
			rec.Error = err.Error()
		}
		if res != nil {
			rec.Status = string(res.Status)
			rec.ExitCode = res.ExitCode
			rec.Stderr = res.Stderr
		} else {
			rec.Status = string(qrunner.RunStatusFailed)
			rec.ExitCode = -1
		}
		if rec.Succeeded() || ctx.Err() != nil {
			break
		}
	}
	rec.Duration = r.now().UTC().Sub(rec.StartedAt)
	return rec
}

func (r *Runner) attempt(ctx context.Context, spec qrunner.Spec) (*qrunner.Result, error) {
	if r.cfg.Policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Policy.Timeout)
		defer cancel()
	}
	return r.cfg.Invoker.Invoke(ctx, spec)
}

// finish uploads artifacts and saves the report. Failures here are logged
// and never change the job outcome.
func (r *Runner) finish(ctx context.Context, log *qlog.Logger, rep *Report, outDir string) {
	ctx = context.WithoutCancel(ctx)

	if r.cfg.Artifacts != nil {
		artifacts, err := qart.UploadDir(ctx, r.cfg.Artifacts, r.fs, r.localPath(outDir), rep.ID, rep.Job.Label)
		if err != nil {
			log.Warn("failed to upload artifacts", "error", err)
		} else {
			log.Info("uploaded artifacts", "count", len(artifacts), "prefix", qart.BatchPrefix(rep.ID, rep.Job.Label))
		}
	}

	if r.cfg.Reports != nil {
		if err := r.cfg.Reports.Save(ctx, rep); err != nil {
			log.Warn("failed to save report", "error", err)
		}
	}

	s := rep.Summary()
	log.Info("batch finished", "total", s.Total, "succeeded", s.Succeeded, "failed", s.Failed, "duration", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
}

// RunAll runs jobs strictly in order. A pre-flight error or a halted job
// stops the remaining jobs; the reports gathered so far are returned with
// the error.
func (r *Runner) RunAll(ctx context.Context, jobs []smr.Job) ([]*Report, error) {
	reports := make([]*Report, 0, len(jobs))
	for _, job := range jobs {
		rep, err := r.RunBatch(ctx, job)
		if rep != nil {
			reports = append(reports, rep)
		}
		if err != nil {
			return reports, fmt.Errorf("job %s (%s): %w", job.Label, job.Gene, err)
		}
	}
	return reports, nil
}
