package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
)

// SkipLoad marks commands that run without loading the config file
const SkipLoad = "genenft/skip-load"

// Command creates the config command
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(initCommand())
	return cmd
}

func initCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a default config.yaml with a new devnet key",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{SkipLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := conf.DefaultConfigFile()
			if len(args) == 1 {
				path = args[0]
			}
			if err := conf.WriteDefaultConfig(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
