package analyze

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamidy7424/GeneNFT-Z/cmd/cli"
	"github.com/adamidy7424/GeneNFT-Z/internal/analysis"
	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
)

// Command creates the analyze command, which scores a record from its
// public fields and the best known gene value
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analyze [key]",
		Short: "Show the derived analysis of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cli.Open(cmd, settings)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.Records.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res := analysis.Analyze(r, a.Estimates.Best(r), time.Now())
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", r.Name, r.Key)
			fmt.Fprintf(out, "  uniqueness:         %d%%\n", analysis.DisplayPercent(res.Uniqueness))
			fmt.Fprintf(out, "  research potential: %d%%\n", analysis.DisplayPercent(res.ResearchPotential))
			fmt.Fprintf(out, "  compatibility:      %d%%\n", analysis.DisplayPercent(res.Compatibility))
			fmt.Fprintf(out, "  privacy risk:       %.1f\n", res.PrivacyRisk)
			fmt.Fprintf(out, "  market value:       %d\n", res.MarketValue)
			fmt.Fprintf(out, "  gene source:        %s\n", res.Source)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
