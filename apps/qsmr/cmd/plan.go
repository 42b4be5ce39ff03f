package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [label...]",
	Short: "Print every command line without running anything",
	Long: `Print the smr command line of every invocation the run command would
dispatch, in dispatch order. Nothing is created or executed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig(cmd)
		if err != nil {
			return err
		}

		jobs, err := cfg.SelectJobs(args...)
		if err != nil {
			return err
		}

		planner := cfg.Planner()
		out := cmd.OutOrStdout()
		total := 0
		for _, job := range jobs {
			invocations, err := planner.Plan(job)
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Label, err)
			}
			fmt.Fprintf(out, "# %s (%s): %d invocations\n", job.Label, job.Gene, len(invocations))
			for _, inv := range invocations {
				fmt.Fprintln(out, inv.CommandLine())
			}
			total += len(invocations)
		}
		newLogger().Debug("planned", "jobs", len(jobs), "invocations", total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().String("output-root", "", "Directory that receives one <label>/ directory per job")
}
