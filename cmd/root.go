package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "partybot",
	Short: "Party scheduling bot",
	Long:  `Discord bot that schedules grouped activity sessions with role-limited lanes`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
