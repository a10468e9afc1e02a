// Package cmd holds the CLI entrypoints.
package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "atelier",
	Short: "Atelier - a conversational assistant that builds versioned artifacts",
	Long: `Atelier is a conversational assistant. Beyond plain chat it delegates to
specialist agents that create and edit documents, code, and diagrams as
versioned artifacts, search the web, and read repository pages.

Running atelier without arguments starts an interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
