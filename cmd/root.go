package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adamidy7424/GeneNFT-Z/cmd/analyze"
	"github.com/adamidy7424/GeneNFT-Z/cmd/config"
	"github.com/adamidy7424/GeneNFT-Z/cmd/create"
	"github.com/adamidy7424/GeneNFT-Z/cmd/dashboard"
	"github.com/adamidy7424/GeneNFT-Z/cmd/records"
	"github.com/adamidy7424/GeneNFT-Z/cmd/serve"
	"github.com/adamidy7424/GeneNFT-Z/cmd/verify"
	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled from
// the config file, environment and flags before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "genenft",
		Short:         "GeneNFT-Z CLI",
		Long:          "Create, list, verify and analyze privacy-preserving genetic NFT records.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	subcommands := []*cobra.Command{
		records.Command(settings),
		create.Command(settings),
		verify.Command(settings),
		analyze.Command(settings),
		dashboard.Command(settings),
		serve.Command(settings),
		config.Command(),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[config.SkipLoad] == "true" {
			return nil
		}
		return initialize(configFile, settings)
	}

	return rootCmd
}

// initialize loads the settings and installs the global logger
func initialize(configFile string, settings *conf.Settings) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config.yaml")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("account", "", "Account that signs transactions, overrides wallet.account")

	if err := viper.BindPFlag("debug", flags.Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("wallet.account", flags.Lookup("account")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
