package cli

import (
	"github.com/spf13/cobra"

	"tripwatch/internal/app"
)

var (
	analyzeInput string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute cost metrics for a JSON batch of priced items",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AnalyzeOptions{
			InputPath: analyzeInput,
		}

		return getApp().Analyze(cmd.Context(), opts)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "Path to a JSON array of priced items")
}
