package verify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamidy7424/GeneNFT-Z/cmd/cli"
	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
)

// Command creates the verify command, which decrypts a record and records
// the plaintext on the ledger
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [key]",
		Short: "Decrypt a record and verify it on-chain",
		Args:  cobra.ExactArgs(1),
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
			res, err := a.Verifier.Verify(cmd.Context(), sc, args[0])
			if err != nil && !(res != nil && errors.IsCategory(err, errors.CategoryFinality)) {
				return err
			}

			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "verification submitted but not yet confirmed; value is a local estimate")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:      %s\n", res.Key)
			fmt.Fprintf(out, "outcome:  %s\n", res.Outcome)
			fmt.Fprintf(out, "value:    %s\n", cli.FormatValue(res.Value))
			if res.Tx != "" {
				fmt.Fprintf(out, "tx:       %s\n", res.Tx)
			}
			fmt.Fprintf(out, "attempts: %d\n", res.Attempts)
			return nil
		},
	}
}
