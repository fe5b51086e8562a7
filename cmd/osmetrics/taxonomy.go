package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/builder"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/taxonomy"
)

type kindInfo struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Verb    string `json:"verb,omitempty"`
	Scored  bool   `json:"scored"`
}

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "List the recognized event kinds",
	Long:  `List every recognized event kind in subscription order and whether it produces metric records.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var kinds []kindInfo
		for _, k := range taxonomy.All() {
			kinds = append(kinds, kindInfo{Kind: k.String(), Subject: k.Subject(), Verb: k.Verb(), Scored: builder.Scored(k)})
		}
		return render(cmd.OutOrStdout(), output, kinds, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "KIND\tSUBJECT\tVERB\tSCORED")
			for _, k := range kinds {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", k.Kind, k.Subject, k.Verb, k.Scored)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(taxonomyCmd)
}
