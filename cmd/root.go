// Package cmd implements the parley command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - a tool-using chat assistant for your terminal",
	Long: `Parley is a conversational assistant that answers questions with the
help of registered tools. The model decides per turn whether to answer
directly or to call a tool (calculator, knowledge base) and folds the
results into its reply.

Running parley without arguments starts the interactive chat interface.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
