package cli

import (
	"github.com/spf13/cobra"

	"candle-diff/internal/app"
)

var (
	chartInput  string
	chartOutput string
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render the PNG chart from an existing JSON artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ChartOptions{
			Input:  chartInput,
			Output: chartOutput,
		}

		return getApp().Chart(cmd.Context(), opts)
	},
}

func init() {
	chartCmd.Flags().StringVar(&chartInput, "input", "", "JSON artifact to read (defaults to the configured output path)")
	chartCmd.Flags().StringVar(&chartOutput, "output", "", "PNG path to write (defaults to the configured output path)")
}
