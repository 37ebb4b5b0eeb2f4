package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "vcenter-bridge",
	Short: "Dashboard bridge between vCenter inventories and the asset database",
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
}
