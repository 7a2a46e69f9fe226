package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petems/microdrop/internal/config"
)

var writeDefaultForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configWriteDefaultCmd = &cobra.Command{
	Use:   "write-default",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.WriteDefault(cfgFile, writeDefaultForce)
		if err != nil {
			return err
		}
		fmt.Printf("Default configuration written to: %s\n", path)
		return nil
	},
}

func init() {
	configWriteDefaultCmd.Flags().BoolVar(&writeDefaultForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configWriteDefaultCmd)
}
