package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage background tasks",
	Long:  `List, trigger and inspect the server's background tasks. Requires an authenticated session (cirrus login) with admin privileges.`,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
