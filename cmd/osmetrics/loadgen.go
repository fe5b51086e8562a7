package main

import (
	"fmt"
	"runtime"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/loadgen"
)

var loadCfg = loadgen.Config{}

var loadgenCmd = &cobra.Command{
	Use:   "loadgen",
	Short: "Drive a running server with synthetic deliveries",
	Long: `Send synthetic GitHub deliveries, including redeliveries, to a running
server and check that the stored community counts match what was sent.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadCfg
		if cfg.Repository == "" {
			cfg.Repository = "loadgen/" + uuid.NewString()[:8]
		}
		st, err := loadgen.Run(cmd.Context(), cfg)
		if rerr := render(cmd.OutOrStdout(), output, st, func(tw *tabwriter.Writer) {
			printLoadStats(tw, cfg, st)
		}); rerr != nil {
			return rerr
		}
		return err
	},
}

func init() {
	f := loadgenCmd.Flags()
	f.StringVar(&loadCfg.BaseURL, "url", "http://localhost:9080", "Base URL of the server")
	f.IntVar(&loadCfg.Deliveries, "deliveries", 10_000, "Unique deliveries to send")
	f.IntVar(&loadCfg.Duplicates, "duplicates", 100, "Redeliveries of already sent ids")
	f.IntVar(&loadCfg.Workers, "workers", runtime.NumCPU()*2, "Concurrent senders")
	f.StringVar(&loadCfg.Repository, "repository", "", "Repository name in payloads (default: random)")
	f.DurationVar(&loadCfg.Timeout, "timeout", 30*time.Second, "Per request timeout")
	f.DurationVar(&loadCfg.Settle, "settle", 2*time.Minute, "How long to wait for counts to converge")
	f.Uint64Var(&loadCfg.Seed, "seed", 1, "Generator seed")
	rootCmd.AddCommand(loadgenCmd)
}

func printLoadStats(tw *tabwriter.Writer, cfg loadgen.Config, st loadgen.Stats) {
	fmt.Fprintf(tw, "repository\t%s\n", cfg.Repository)
	fmt.Fprintf(tw, "generated\t%d\n", st.Generated)
	fmt.Fprintf(tw, "accepted\t%d\n", st.Accepted)
	fmt.Fprintf(tw, "duplicates\t%d\n", st.Duplicates)
	fmt.Fprintf(tw, "failed\t%d\n", st.Failed)
	fmt.Fprintf(tw, "duration\t%s\n\n", st.Duration.Round(time.Millisecond))

	metrics := make([]string, 0, len(st.Expected))
	for m := range st.Expected {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	fmt.Fprintln(tw, "METRIC\tEXPECTED\tOBSERVED")
	for _, m := range metrics {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", m, st.Expected[m], st.Observed[m])
	}
}
