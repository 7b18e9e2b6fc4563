package records

import (
	"github.com/spf13/cobra"

	"github.com/adamidy7424/GeneNFT-Z/cmd/cli"
	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
)

// Command creates the records command with its list and show subcommands
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List and inspect genetic NFT records",
	}
	cmd.AddCommand(listCommand(settings), showCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var (
		search       string
		verifiedOnly bool
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every record on the ledger",
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
			list := set.Filter(search, verifiedOnly)
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), list)
			}
			return cli.PrintRecords(cmd.OutOrStdout(), list, a.Estimates.Best)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only records whose name contains this text")
	cmd.Flags().BoolVar(&verifiedOnly, "verified", false, "Only verified records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [key]",
		Short: "Show a single record",
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
			if asJSON {
				return cli.PrintJSON(cmd.OutOrStdout(), r)
			}
			return cli.PrintRecords(cmd.OutOrStdout(), []genetic.Record{r}, a.Estimates.Best)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
