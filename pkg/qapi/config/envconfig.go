package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/quatton/qsmr/pkg/db"
)

type EnvConfig struct {
	Port           string `envconfig:"PORT" default:"3000"`
	Environment    string `envconfig:"ENVIRONMENT" default:"development"`
	ReportsBackend string `envconfig:"REPORTS_BACKEND" default:"file"`
	ReportsDir     string `envconfig:"REPORTS_DIR" default:".qsmr/reports"`
	Migrate        bool   `envconfig:"MIGRATE" default:"false"`

	// Artifact links are only served when S3_ENDPOINT is set.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"qsmr-artifacts"`
	S3Region    string `envconfig:"S3_REGION"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`

	DB db.Config `envconfig:"DB"`
}

// IsDev returns true if the application is running in development environment
func IsDev() bool {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	return env == "development" || env == "dev" || env == ""
}

func ValidateEnv() (*EnvConfig, error) {
	if IsDev() {
		if err := godotenv.Load(); err != nil {
			log.Println("ℹ No .env file found")
		} else {
			log.Println("✓ Loaded .env file")
		}
	}

	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var errors []string

	switch cfg.ReportsBackend {
	case "file", "db":
	default:
		errors = append(errors, "  ❌ REPORTS_BACKEND must be file or db")
	}

	if cfg.ReportsBackend == "file" && cfg.ReportsDir == "" {
		errors = append(errors, "  ❌ REPORTS_DIR is required for the file backend")
	}

	if cfg.S3Endpoint != "" && (cfg.S3AccessKey == "" || cfg.S3SecretKey == "") {
		errors = append(errors, "  ❌ S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return &cfg, nil
}

func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func (c *EnvConfig) Print(fmtr func(string, ...interface{})) {
	fmtr("📋 Configuration:\n")
	fmtr("  Environment: %s\n", c.Environment)
	fmtr("  Port: %s\n", c.Port)

	if c.ReportsBackend == "db" {
		fmtr("  Reports: db %s@%s:%d/%s (sslmode=%s)\n", c.DB.User, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
	} else {
		fmtr("  Reports: file %s\n", c.ReportsDir)
	}

	if c.S3Endpoint != "" {
		fmtr("  Artifacts: ✓ %s/%s\n", c.S3Endpoint, c.S3Bucket)
		fmtr("    Access Key: %s\n", MaskSecret(c.S3AccessKey))
	} else {
		fmtr("  Artifacts: ✗ Disabled\n")
	}
}
