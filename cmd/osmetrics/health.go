package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/health"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
)

var (
	healthTheme string
	healthDate  string
)

var healthCmd = &cobra.Command{
	Use:   "health <repository>",
	Short: "Score a repository from stored records",
	Long: `Evaluate the health themes of a repository from the generic counts in
the configured store, save the report and print it. Use the sqlite store so
counts written by serve or replay --write are visible.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		day := time.Now().UTC()
		if healthDate != "" {
			if day, err = time.Parse(model.DateLayout, healthDate); err != nil {
				return fmt.Errorf("invalid --date %q: %w", healthDate, err)
			}
		}

		svc, err := newService(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Stop(ctx) }()

		report, err := svc.EvaluateHealth(ctx, args[0], healthTheme, day)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), output, report, func(tw *tabwriter.Writer) {
			printReport(tw, report)
		})
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthTheme, "theme", "", "Theme to evaluate (default: all)")
	healthCmd.Flags().StringVar(&healthDate, "date", "", "Day, yyyy-mm-dd (default today)")
	rootCmd.AddCommand(healthCmd)
}

func printReport(tw *tabwriter.Writer, r health.Report) {
	fmt.Fprintf(tw, "%s\t%s\n\n", r.Repository, r.Date)
	fmt.Fprintln(tw, "THEME\tFACTOR\tOBSERVED\tTHRESHOLD\tCLASSIFICATION")
	for _, th := range r.Themes {
		for _, f := range th.Factors {
			threshold := "-"
			if f.Threshold != nil {
				threshold = fmt.Sprint(*f.Threshold)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", th.Theme, f.Request.Factor, f.Observed, threshold, f.Classification)
		}
	}
	fmt.Fprintln(tw)
	for _, item := range r.ActionItems {
		fmt.Fprintf(tw, "- %s\n", item)
	}
}
