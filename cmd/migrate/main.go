package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/quatton/qsmr/pkg/db"
	"github.com/quatton/qsmr/pkg/qlog"
)

func main() {
	rollback := flag.Bool("rollback", false, "roll back the last migration group instead of migrating")
	flag.Parse()

	logger := qlog.NewDefault()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found")
	} else {
		logger.Info("loaded .env file")
	}

	ctx := context.Background()

	var cfg db.Config
	if err := envconfig.Process("DB", &cfg); err != nil {
		logger.Fatalf("failed to process env vars: %v", err)
	}

	database, err := db.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	if *rollback {
		err = db.Rollback(ctx, database, logger)
	} else {
		err = db.Migrate(ctx, database, logger)
	}
	if err != nil {
		logger.Fatalf("failed to migrate: %v", err)
	}
}
