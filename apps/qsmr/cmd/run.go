package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/quatton/qsmr/apps/qsmr/internal/app"
	"github.com/quatton/qsmr/pkg/batch"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [label...]",
	Short: "Run the configured jobs",
	Long: `Run every configured job, or only the jobs with the given labels, in order.

For each job the output directory <outputRoot>/<label>/ is created first;
if it already exists the job and every job after it are skipped. Then smr
is invoked once per (outcome, SNP) pair, outcomes in the outer loop.

Examples:
  # Run all jobs locally
  qsmr run

  # Run one job in Docker and stop at the first failure
  qsmr run --backend docker --on-failure halt HMGCR_eQTLGEN

  # Retry failed invocations twice, giving each attempt two hours
  qsmr run --on-failure retry --retries 2 --timeout 2h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger()

		jobs, err := cfg.SelectJobs(args...)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg, logger, app.Options{DryRunOut: cmd.OutOrStdout()})
		if err != nil {
			return err
		}
		defer a.Close()

		logger.Info("starting run", "jobs", len(jobs), "outcomes", len(cfg.Outcomes), "backend", cfg.Backend, "policy", cfg.Policy.OnFailure)

		reports, runErr := a.Runner.RunAll(cmd.Context(), jobs)
		printSummary(cmd.OutOrStdout(), reports)

		if runErr != nil {
			return runErr
		}
		for _, r := range reports {
			if r.Summary().Failed > 0 {
				return errInvocationsFailed
			}
		}
		return nil
	},
}

func printSummary(w io.Writer, reports []*batch.Report) {
	if len(reports) == 0 {
		return
	}
	fmt.Fprintf(w, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	for _, r := range reports {
		s := r.Summary()
		mark := "✓"
		if s.Failed > 0 || r.Error != "" {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %-28s %3d/%-3d ok  %s  (batch %s)\n",
			mark, r.Job.Label, s.Succeeded, s.Total, r.FinishedAt.Sub(r.StartedAt).Round(time.Second), r.ID)
		for _, inv := range r.Failed() {
			fmt.Fprintf(w, "    exit %d: %s %s\n", inv.ExitCode, inv.SNP, inv.Outcome)
		}
	}
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("backend", "", "Where smr runs: local, docker, k8s or dry-run")
	runCmd.Flags().String("on-failure", "", "What a failed invocation does: ignore, halt or retry")
	runCmd.Flags().Int("retries", 0, "Extra attempts per invocation with --on-failure retry")
	runCmd.Flags().Duration("timeout", 0, "Limit per invocation attempt (0 = none)")
	runCmd.Flags().String("output-root", "", "Directory that receives one <label>/ directory per job")
	runCmd.Flags().Bool("upload", false, "Upload each job's output directory to the artifact store")
	runCmd.Flags().Bool("lock", false, "Guard each label with a lease in the lock store")
	runCmd.Flags().String("reports", "", "Report store: file, db or none")
}
