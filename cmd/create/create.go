package create

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamidy7424/GeneNFT-Z/cmd/cli"
	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/workflow"
)

// Command creates the create command, which encrypts a gene value and mints
// a new record
func Command(settings *conf.Settings) *cobra.Command {
	var req workflow.CreateRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Encrypt a gene value and create a genetic NFT",
		Long: `Encrypt a gene value against the contract and submit it together with
the public name and research score. The command waits for the transaction
to be confirmed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cli.Open(cmd, settings)
			if err != nil {
				return err
			}
			defer a.Close()

			sc, err := a.SessionContext(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Creator.Create(cmd.Context(), sc, req)
			if err != nil && !(res != nil && errors.IsCategory(err, errors.CategoryFinality)) {
				return err
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "transaction %s submitted but not yet confirmed\n", res.Tx)
			}
			return cli.PrintJSON(cmd.OutOrStdout(), res)
		},
	}
	setupFlags(cmd, &req)
	return cmd
}

func setupFlags(cmd *cobra.Command, req *workflow.CreateRequest) {
	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Public name of the record")
	cmd.Flags().StringVarP(&req.GeneValue, "gene", "g", "", "Gene value to encrypt, digits only")
	cmd.Flags().Int64VarP(&req.ResearchScore, "research", "r", 0, "Public research score")
	_ = cmd.MarkFlagRequired("gene")
}
