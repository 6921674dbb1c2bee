/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/replaykit/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration and data directory",
	Long: `Write a default configuration file and create the log and snapshot
directories below the data directory.

Examples:
  replaykit init
  replaykit init --data-dir ./replays --config ./replaykit.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")
		return runInit(cmd, configPath, dataDir, force)
	},
}

func runInit(cmd *cobra.Command, configPath, dataDir string, force bool) error {
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	if config.ConfigExists(configPath) && !force {
		cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
		return nil
	}

	cfg, err := config.BootstrapConfig(configPath, dataDir)
	if err != nil {
		return err
	}

	cmd.Printf("Configuration written to %s\n", configPath)
	cmd.Printf("Message logs: %s\n", cfg.LogDir())
	cmd.Printf("Snapshots:    %s\n", cfg.SnapshotDir())
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
