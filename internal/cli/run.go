package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"candle-diff/internal/app"
)

var (
	runRows  int
	runChart bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch both venues once and write the aligned divergence artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runRows < 0 {
			return fmt.Errorf("--rows cannot be negative")
		}

		opts := app.RunOptions{
			Rows:  runRows,
			Chart: runChart,
		}

		summary, err := getApp().Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows successfully.\n", summary.Rows)
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runRows, "rows", 0, "Override window size in minutes (defaults to config)")
	runCmd.Flags().BoolVar(&runChart, "chart", false, "Also render the PNG chart artifact")
}
