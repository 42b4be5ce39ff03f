package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/quatton/qsmr/pkg/qconfig"
	"github.com/quatton/qsmr/pkg/qlog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type contextKey string

const configContextKey contextKey = "qsmrconfig"

var (
	cfgFile string
	verbose bool
	quiet   bool

	rootCmd = &cobra.Command{
		Use:   "qsmr",
		Short: "Run SMR analyses over configured genes, SNPs and outcomes",
		Long: `qsmr runs the SMR tool for every (outcome, SNP) pair of each configured
job. Each job writes into its own <outputRoot>/<label>/ directory, which must
not exist yet. Jobs, outcomes and the smr binary come from qsmr.yaml,
.qsmr/config.yaml and QSMR_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := qconfig.LoadConfig(cfgFile)
			if err != nil {
				return err
			}

			if err := bindFlags(cfg, cmd.Flags()); err != nil {
				return err
			}
			// Re-decode so bound flags take effect.
			cfg, err = qconfig.FromViper(cfg.Viper())
			if err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), configContextKey, cfg)
			cmd.SetContext(ctx)

			return nil
		},
	}
)

// flagKeys maps command flags onto config keys.
var flagKeys = map[string]string{
	"backend":     "backend",
	"on-failure":  "policy.onFailure",
	"retries":     "policy.retries",
	"timeout":     "policy.timeout",
	"output-root": "outputRoot",
	"upload":      "artifacts.enabled",
	"lock":        "lock.enabled",
	"reports":     "reports.backend",
}

func bindFlags(cfg *qconfig.Config, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := cfg.Viper().BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// GetConfig retrieves the Config from the command context
func GetConfig(cmd *cobra.Command) (*qconfig.Config, error) {
	cfg, ok := cmd.Context().Value(configContextKey).(*qconfig.Config)
	if !ok {
		return nil, errors.New("no config in context")
	}
	return cfg, nil
}

func newLogger() *qlog.Logger {
	return qlog.NewForFlags(verbose, quiet)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	return exitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML). Searches: qsmr.yaml, qsmr.yml, .qsmr.yaml, then merges .qsmr/config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output, including every command line")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only show warnings and errors")
}
