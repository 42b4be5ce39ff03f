package services

import (
	"context"
	"fmt"

	"github.com/quatton/qsmr/pkg/db"
	"github.com/quatton/qsmr/pkg/qapi/config"
	"github.com/quatton/qsmr/pkg/qart"
	"github.com/quatton/qsmr/pkg/qlog"
	"github.com/quatton/qsmr/pkg/report"
	"github.com/spf13/afero"
)

type Services struct {
	Reports   report.Store
	Artifacts qart.Store // nil when artifact storage is not configured

	closers []func() error
}

// NewServices opens the report store and, when configured, the artifact
// store described by cfg.
func NewServices(ctx context.Context, cfg *config.EnvConfig, logger *qlog.Logger) (*Services, error) {
	svcs := &Services{}

	switch cfg.ReportsBackend {
	case "db":
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		svcs.closers = append(svcs.closers, database.Close)
		if cfg.Migrate {
			if err := db.Migrate(ctx, database, logger); err != nil {
				svcs.Close()
				return nil, err
			}
		}
		svcs.Reports = report.NewDBStore(database)
	default:
		svcs.Reports = report.NewFileStore(afero.NewOsFs(), cfg.ReportsDir)
	}

	if cfg.S3Endpoint != "" {
		store, err := qart.NewS3Store(qart.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			svcs.Close()
			return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
		}
		svcs.Artifacts = store
	}

	return svcs, nil
}

// WithStores builds Services around existing stores.
func WithStores(reports report.Store, artifacts qart.Store) *Services {
	return &Services{Reports: reports, Artifacts: artifacts}
}

func (s *Services) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
