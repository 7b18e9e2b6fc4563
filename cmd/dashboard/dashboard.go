package dashboard

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamidy7424/GeneNFT-Z/cmd/cli"
	"github.com/adamidy7424/GeneNFT-Z/internal/analysis"
	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
)

// Command creates the dashboard command
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize every record on the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cli.Open(cmd, settings)
			if err != nil {
				return err
			}
			defer a.Close()

			set, err := a.Records.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			s := analysis.Summarize(set.Records(), time.Now())
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), s)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total records:     %d\n", s.Total)
			fmt.Fprintf(out, "verified:          %d\n", s.Verified)
			fmt.Fprintf(out, "average research:  %.1f\n", s.AverageResearch)
			fmt.Fprintf(out, "created this week: %d\n", s.RecentThisWeek)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
