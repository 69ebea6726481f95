package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"candle-diff/internal/app"
)

var (
	showInput string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the tail of the latest JSON artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Input: showInput,
			Limit: showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showInput, "input", "", "JSON artifact to read (defaults to the configured output path)")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
}
