package app

import (
	"context"

	"candle-diff/internal/artifact"
)

// Chart renders the PNG chart from a previously written JSON artifact,
// without refetching anything.
func (a *App) Chart(ctx context.Context, opts ChartOptions) error {
	paths := a.artifactPaths()

	input := opts.Input
	if input == "" {
		input = paths.JSON
	}
	output := opts.Output
	if output == "" {
		output = paths.Chart
	}

	rows, err := artifact.ReadJSON(input)
	if err != nil {
		return err
	}

	if err := artifact.WriteChartPNG(output, rows); err != nil {
		return err
	}

	a.Logger.Info().
		Str("input", input).
		Str("output", output).
		Int("rows", len(rows)).
		Msg("chart rendered")
	return nil
}
