package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"candle-diff/internal/artifact"
)

// Show prints the tail of the JSON artifact as a table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	path := opts.Input
	if path == "" {
		path = a.artifactPaths().JSON
	}

	rows, err := artifact.ReadJSON(path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no rows found")
		return nil
	}

	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[len(rows)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tBinance\tReya\tAbsDiff\tDiff%\tUpdated (UTC)")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			time.UnixMilli(row.MinuteMS).UTC().Format(artifact.TimeLayout),
			cell(row.BinanceClose),
			cell(row.ReyaClose),
			cell(row.AbsDiff),
			cell(row.DiffPct),
			row.UpdatedAt.UTC().Format(artifact.TimeLayout),
		)
	}

	return writer.Flush()
}

func cell(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
