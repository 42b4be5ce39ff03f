package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/quatton/qsmr/apps/qsmr/internal/app"
	"github.com/quatton/qsmr/pkg/qart"
	"github.com/quatton/qsmr/pkg/qerr"
	"github.com/quatton/qsmr/pkg/report"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	reportsLabel string
	reportsLimit int
	reportsJSON  bool
	fetchDest    string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect stored batch reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batch reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openReports(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		list, err := store.List(cmd.Context(), report.Filter{Label: reportsLabel, Limit: reportsLimit})
		if err != nil {
			return err
		}

		if reportsJSON {
			return writeJSON(cmd, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No reports found")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BATCH\tLABEL\tGENE\tBACKEND\tSTARTED\tOK\tFAILED")
		for _, r := range list {
			s := r.Summary()
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
				r.ID, r.Job.Label, r.Job.Gene, r.Backend, r.StartedAt.Local().Format(time.DateTime), s.Succeeded, s.Failed)
		}
		return w.Flush()
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show one batch report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openReports(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		r, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if reportsJSON {
			return writeJSON(cmd, r)
		}

		out := cmd.OutOrStdout()
		s := r.Summary()
		fmt.Fprintf(out, "Batch:    %s\n", r.ID)
		fmt.Fprintf(out, "Job:      %s (%s, SNPs %v)\n", r.Job.Label, r.Job.Gene, r.Job.SNPs)
		fmt.Fprintf(out, "Backend:  %s, policy %s\n", r.Backend, r.Policy)
		fmt.Fprintf(out, "Output:   %s\n", r.OutputDir)
		fmt.Fprintf(out, "Started:  %s\n", r.StartedAt.Local().Format(time.DateTime))
		fmt.Fprintf(out, "Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
		fmt.Fprintf(out, "Result:   %d/%d succeeded\n", s.Succeeded, s.Total)
		if r.Error != "" {
			fmt.Fprintf(out, "Stopped:  %s\n", r.Error)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\n#\tSNP\tOUTCOME\tSTATUS\tEXIT\tTRIES\tDURATION")
		for _, inv := range r.Invocations {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
				inv.Seq, inv.SNP, inv.Outcome, inv.Status, inv.ExitCode, inv.Attempts, inv.Duration.Round(time.Millisecond))
		}
		return w.Flush()
	},
}

var reportsFetchCmd = &cobra.Command{
	Use:   "fetch <batch-id>",
	Short: "Download the outputs a batch uploaded",
	Long: `Download every artifact uploaded for a batch into a local directory.
By default files land in ./artifacts/<batch-id>/<label>/.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig(cmd)
		if err != nil {
			return err
		}
		artifacts, err := app.OpenArtifacts(cfg)
		if err != nil {
			return err
		}

		store, closeFn, err := openReports(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		r, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		dest := fetchDest
		if dest == "" {
			dest = filepath.Join("artifacts", r.ID, r.Job.Label)
		}
		got, err := qart.DownloadDir(cmd.Context(), artifacts, afero.NewOsFs(), qart.BatchPrefix(r.ID, r.Job.Label), dest)
		if err != nil {
			return err
		}
		if len(got) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No artifacts uploaded for batch %s\n", r.ID)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d files to %s\n", len(got), dest)
		return nil
	},
}

func openReports(cmd *cobra.Command) (report.Store, func() error, error) {
	cfg, err := GetConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error
	closeAll := func() error {
		for _, c := range closers {
			c()
		}
		return nil
	}

	store, err := app.OpenReports(cmd.Context(), cfg, afero.NewOsFs(), newLogger(), &closers)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, qerr.Newf(qerr.CodeConfig, "reports.backend is none; nothing to read")
	}
	return store, closeAll, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsFetchCmd)

	reportsCmd.PersistentFlags().BoolVar(&reportsJSON, "json", false, "Print JSON")
	reportsCmd.PersistentFlags().String("reports", "", "Report store: file or db")
	reportsListCmd.Flags().StringVarP(&reportsLabel, "label", "l", "", "Only reports for this label")
	reportsFetchCmd.Flags().StringVarP(&fetchDest, "dest", "d", "", "Directory to download into")
	reportsListCmd.Flags().IntVarP(&reportsLimit, "limit", "n", 20, "Maximum number of reports (0 = all)")
}
