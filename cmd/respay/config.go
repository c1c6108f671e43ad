package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/resident-payments/config"
)

var configInitPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write the default configuration as YAML. An existing file is never
overwritten.

Examples:
  respay config init
  respay config init --path /etc/respay/respay.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(configInitPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configInitPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "respay.yaml", "file to create")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
