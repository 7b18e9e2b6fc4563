package serve

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adamidy7424/GeneNFT-Z/cmd/cli"
	"github.com/adamidy7424/GeneNFT-Z/internal/api"
	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// Command creates the serve command, which exposes the record workflows
// over HTTP until interrupted
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the records API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cli.Open(cmd, settings)
			if err != nil {
				return err
			}
			defer a.Close()

			log := api.GetLogger()
			controller := api.NewController(a.Records, a.Estimates, a.Creator, a.Verifier, a.Session, log)
			server := api.New(api.ConfigFromSettings(settings), controller,
				api.WithMetrics(a.Metrics),
				api.WithLogger(log))

			if _, err := a.Records.Refresh(cmd.Context()); err != nil {
				log.Warn("initial record load failed", logger.Error(err))
			}
			return server.Run(cmd.Context())
		},
	}
	setupFlags(cmd)
	return cmd
}

func setupFlags(cmd *cobra.Command) {
	cmd.Flags().String("listen", "", "Address to listen on, overrides api.listen")
	_ = viper.BindPFlag("api.listen", cmd.Flags().Lookup("listen"))
}
