// Package app turns a loaded qconfig.Config into a ready batch runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quatton/qsmr/pkg/batch"
	"github.com/quatton/qsmr/pkg/db"
	"github.com/quatton/qsmr/pkg/k8s"
	"github.com/quatton/qsmr/pkg/kv"
	"github.com/quatton/qsmr/pkg/qart"
	"github.com/quatton/qsmr/pkg/qconfig"
	"github.com/quatton/qsmr/pkg/qerr"
	"github.com/quatton/qsmr/pkg/qlog"
	"github.com/quatton/qsmr/pkg/qrunner"
	"github.com/quatton/qsmr/pkg/report"
	"github.com/spf13/afero"
)

type Options struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// DryRunOut receives command lines when the backend is dry-run.
	DryRunOut io.Writer
}

// App owns everything a run needs and closes it again.
type App struct {
	Config  *qconfig.Config
	Runner  *batch.Runner
	Reports report.Store
	Logger  *qlog.Logger

	closers []func() error
}

func New(ctx context.Context, cfg *qconfig.Config, logger *qlog.Logger, opts Options) (*App, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	a := &App{Config: cfg, Logger: logger}

	workDir, err := WorkingDir(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Backend == qrunner.BackendK8s {
		if err := checkK8sDirs(cfg, workDir); err != nil {
			return nil, err
		}
	}

	invoker, err := a.newInvoker(cfg, workDir, opts.DryRunOut)
	if err != nil {
		a.Close()
		return nil, err
	}

	reports, err := a.newReportStore(ctx, cfg, opts.Fs)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Reports = reports

	bcfg := batch.Config{
		Planner:    cfg.Planner(),
		Invoker:    invoker,
		Policy:     cfg.Policy,
		Fs:         opts.Fs,
		WorkingDir: workDir,
		LeaseTTL:   cfg.Lock.TTL,
		Reports:    reports,
		Logger:     logger,
	}

	if cfg.Lock.Enabled {
		store, err := kv.NewValkeyStore(ctx, cfg.Lock.ValkeyConfig)
		if err != nil {
			a.Close()
			return nil, qerr.New(qerr.CodeConfig, fmt.Errorf("connecting to lock store: %w", err))
		}
		a.closers = append(a.closers, store.Close)
		bcfg.Locks = store
	}

	if cfg.Artifacts.Enabled {
		store, err := OpenArtifacts(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("preparing artifact bucket: %w", err)
		}
		bcfg.Artifacts = store
	}

	a.Runner, err = batch.NewRunner(bcfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// checkK8sDirs makes sure the output directory the runner creates on this
// host is the one the pods see through the data claim.
func checkK8sDirs(cfg *qconfig.Config, workDir string) error {
	if err := cfg.K8s.CheckSharedDir(workDir); err != nil {
		return qerr.New(qerr.CodeConfig, fmt.Errorf("workingDir: %w", err))
	}
	if filepath.IsAbs(cfg.OutputRoot) {
		if err := cfg.K8s.CheckSharedDir(cfg.OutputRoot); err != nil {
			return qerr.New(qerr.CodeConfig, fmt.Errorf("outputRoot: %w", err))
		}
	}
	return nil
}

func (a *App) newInvoker(cfg *qconfig.Config, workDir string, dryOut io.Writer) (qrunner.Invoker, error) {
	switch cfg.Backend {
	case qrunner.BackendLocal:
		opts := []qrunner.LocalRunnerOption{qrunner.WithEnv(cfg.Env)}
		if cfg.Local.LogDir != "" {
			opts = append(opts, qrunner.WithLogDir(resolveIn(workDir, cfg.Local.LogDir)))
		}
		return qrunner.NewLocalRunner(opts...), nil
	case qrunner.BackendDocker:
		r, err := qrunner.NewDockerRunner(cfg.Docker)
		if err != nil {
			return nil, fmt.Errorf("connecting to docker: %w", err)
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	case qrunner.BackendK8s:
		client, err := k8s.NewClient(cfg.K8s.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to kubernetes: %w", err)
		}
		return qrunner.NewK8sRunner(client, cfg.K8s), nil
	case qrunner.BackendDryRun:
		return qrunner.NewDryRunner(dryOut), nil
	default:
		return nil, qerr.Newf(qerr.CodeConfig, "unknown backend %q", cfg.Backend)
	}
}

func (a *App) newReportStore(ctx context.Context, cfg *qconfig.Config, fs afero.Fs) (report.Store, error) {
	return OpenReports(ctx, cfg, fs, a.Logger, &a.closers)
}

// OpenReports opens the configured report store. Anything that must be
// closed later is appended to closers.
func OpenReports(ctx context.Context, cfg *qconfig.Config, fs afero.Fs, logger *qlog.Logger, closers *[]func() error) (report.Store, error) {
	switch cfg.Reports.Backend {
	case qconfig.ReportsNone:
		return nil, nil
	case qconfig.ReportsDB:
		database, err := db.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("opening report database: %w", err)
		}
		*closers = append(*closers, database.Close)
		if err := db.Migrate(ctx, database, logger); err != nil {
			return nil, err
		}
		return report.NewDBStore(database), nil
	default:
		workDir, err := WorkingDir(cfg)
		if err != nil {
			return nil, err
		}
		return report.NewFileStore(fs, resolveIn(workDir, cfg.Reports.Dir)), nil
	}
}

// resolveIn anchors a relative path at workDir, the same directory output
// roots resolve against.
func resolveIn(workDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workDir, p)
}

// OpenArtifacts connects to the configured bucket.
func OpenArtifacts(cfg *qconfig.Config) (*qart.S3Store, error) {
	if !cfg.Artifacts.Enabled {
		return nil, qerr.Newf(qerr.CodeConfig, "artifacts.enabled is false; no artifact store configured")
	}
	store, err := qart.NewS3Store(cfg.Artifacts.S3Config)
	if err != nil {
		return nil, qerr.New(qerr.CodeConfig, err)
	}
	return store, nil
}

// WorkingDir resolves workingDir against the project directory holding the
// config file, or the current directory when no file was used. Output
// roots, reports.dir and local.logDir all resolve against it.
func WorkingDir(cfg *qconfig.Config) (string, error) {
	if filepath.IsAbs(cfg.WorkingDir) {
		return cfg.WorkingDir, nil
	}

	var baseDir string
	if used := cfg.ConfigFileUsed(); used != "" {
		abs, err := filepath.Abs(used)
		if err != nil {
			return "", fmt.Errorf("resolving config path: %w", err)
		}
		baseDir = filepath.Dir(abs)
		// .qsmr/config.yaml overrides belong to the project one level up.
		if filepath.Base(baseDir) == qconfig.ConfigRoot {
			baseDir = filepath.Dir(baseDir)
		}
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		baseDir = wd
	}
	return filepath.Join(baseDir, cfg.WorkingDir), nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
