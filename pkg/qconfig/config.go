// Package qconfig loads qsmr settings from qsmr.yaml, .qsmr/config.yaml and
// QSMR_* environment variables.
package qconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/quatton/qsmr/pkg/batch"
	"github.com/quatton/qsmr/pkg/db"
	"github.com/quatton/qsmr/pkg/kv"
	"github.com/quatton/qsmr/pkg/qart"
	"github.com/quatton/qsmr/pkg/qerr"
	"github.com/quatton/qsmr/pkg/qrunner"
	"github.com/quatton/qsmr/pkg/smr"
	"github.com/spf13/viper"
)

type SMRConfig struct {
	smr.Params `mapstructure:",squash"`

	Binary string `mapstructure:"binary"`
}

type ArtifactsConfig struct {
	qart.S3Config `mapstructure:",squash"`

	Enabled bool `mapstructure:"enabled"`
}

type LockConfig struct {
	kv.ValkeyConfig `mapstructure:",squash"`

	Enabled bool `mapstructure:"enabled"`
	// TTL must outlive one invocation; the lease is refreshed between them.
	TTL time.Duration `mapstructure:"ttl"`
}

// Report store backends.
const (
	ReportsFile = "file"
	ReportsDB   = "db"
	ReportsNone = "none"
)

type LocalConfig struct {
	// LogDir keeps full stdout and stderr per invocation. Empty disables it.
	LogDir string `mapstructure:"logDir"`
}

type ReportsConfig struct {
	Backend string `mapstructure:"backend"` // file, db or none
	Dir     string `mapstructure:"dir"`
}

type Config struct {
	SMR        SMRConfig    `mapstructure:"smr"`
	OutputRoot string       `mapstructure:"outputRoot"`
	WorkingDir string       `mapstructure:"workingDir"`
	Backend    string       `mapstructure:"backend"`
	Policy     batch.Policy `mapstructure:"policy"`

	// Env is added to the environment of every local invocation.
	Env map[string]string `mapstructure:"env"`

	Local     LocalConfig             `mapstructure:"local"`
	Docker    qrunner.ContainerConfig `mapstructure:"docker"`
	K8s       qrunner.K8sConfig       `mapstructure:"k8s"`
	Artifacts ArtifactsConfig         `mapstructure:"artifacts"`
	Lock      LockConfig              `mapstructure:"lock"`
	Reports   ReportsConfig           `mapstructure:"reports"`
	Database  db.Config               `mapstructure:"database"`

	Outcomes []string  `mapstructure:"outcomes"`
	Jobs     []smr.Job `mapstructure:"jobs"`

	v *viper.Viper // instance-specific viper
}

const (
	EnvPrefix  = "QSMR"
	ConfigName = "qsmr"
	ConfigRoot = ".qsmr"
)

// LoadConfig creates a Config backed by its own viper instance.
// An empty cfgFile searches the working directory.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, qerr.New(qerr.CodeConfig, fmt.Errorf("reading config file %s: %w", cfgFile, err))
		}
	} else {
		// Project config (tracked)
		for _, name := range []string{"qsmr.yaml", "qsmr.yml", ".qsmr.yaml"} {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				if err := v.ReadInConfig(); err != nil {
					return nil, qerr.New(qerr.CodeConfig, fmt.Errorf("reading config file %s: %w", name, err))
				}
				break
			}
		}

		// Local overrides (untracked)
		localConfigPath := filepath.Join(ConfigRoot, "config.yaml")
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, qerr.New(qerr.CodeConfig, fmt.Errorf("merging local config: %w", err))
			}
		}
	}

	return FromViper(v)
}

// FromViper decodes an already populated viper instance. Callers that bind
// flags rebuild the Config with it after parsing.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, qerr.New(qerr.CodeConfig, fmt.Errorf("unmarshaling config: %w", err))
	}
	cfg.v = v

	if err := cfg.expandPaths(); err != nil {
		return nil, qerr.New(qerr.CodeConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail mid-run.
func (c *Config) Validate() error {
	var problems []string
	if c.SMR.Binary == "" {
		problems = append(problems, "smr.binary is empty")
	}
	if err := c.SMR.Params.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if !slices.Contains(qrunner.Backends(), c.Backend) {
		problems = append(problems, fmt.Sprintf("unknown backend %q (want one of %s)", c.Backend, strings.Join(qrunner.Backends(), ", ")))
	}
	if err := c.Policy.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Backend == qrunner.BackendK8s {
		if c.K8s.DataClaim == "" {
			problems = append(problems, "k8s.dataClaim is required for the k8s backend")
		} else {
			for _, dir := range []string{c.WorkingDir, c.OutputRoot} {
				if !filepath.IsAbs(dir) {
					continue
				}
				if err := c.K8s.CheckSharedDir(dir); err != nil {
					problems = append(problems, err.Error())
				}
			}
		}
	}
	switch c.Reports.Backend {
	case ReportsFile, ReportsDB, ReportsNone:
	default:
		problems = append(problems, fmt.Sprintf("unknown reports backend %q (want file, db or none)", c.Reports.Backend))
	}
	seen := make(map[string]bool, len(c.Jobs))
	for _, job := range c.Jobs {
		if seen[job.Label] {
			problems = append(problems, fmt.Sprintf("duplicate job label %q", job.Label))
		}
		seen[job.Label] = true
	}
	if len(problems) > 0 {
		return qerr.Newf(qerr.CodeConfig, "invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Planner builds the planner for the configured binary, outcomes and params.
func (c *Config) Planner() smr.Planner {
	return smr.Planner{
		Binary:   c.SMR.Binary,
		Root:     c.OutputRoot,
		Params:   c.SMR.Params,
		Outcomes: smr.Outcomes(c.Outcomes...),
	}
}

// SelectJobs returns the jobs with the given labels in the order given.
// No labels selects every configured job.
func (c *Config) SelectJobs(labels ...string) ([]smr.Job, error) {
	if len(labels) == 0 {
		return c.Jobs, nil
	}
	byLabel := make(map[string]smr.Job, len(c.Jobs))
	for _, job := range c.Jobs {
		byLabel[job.Label] = job
	}
	jobs := make([]smr.Job, 0, len(labels))
	for _, label := range labels {
		job, ok := byLabel[label]
		if !ok {
			return nil, qerr.Newf(qerr.CodeConfig, "no job with label %q", label)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Get returns a raw value from the underlying viper instance.
func (c *Config) Get(key string) interface{} {
	if c.v == nil {
		return nil
	}
	return c.v.Get(key)
}

// Viper returns the underlying viper instance
func (c *Config) Viper() *viper.Viper {
	return c.v
}

// ConfigFileUsed returns the config file that was used (if any)
func (c *Config) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}
