package artifact

import (
	"errors"
	"os"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"candle-diff/internal/reconcile"
)

// WriteChartPNG renders both venues' closes on the primary axis and diff_pct
// on the secondary axis. Null values become gaps in the affected series.
func WriteChartPNG(path string, rows []reconcile.Row) error {
	var (
		binanceX, reyaX, pctX []time.Time
		binanceY, reyaY, pctY []float64
	)
	for _, row := range rows {
		ts := time.UnixMilli(row.MinuteMS).UTC()
		if row.BinanceClose != nil {
			binanceX = append(binanceX, ts)
			binanceY = append(binanceY, row.BinanceClose.InexactFloat64())
		}
		if row.ReyaClose != nil {
			reyaX = append(reyaX, ts)
			reyaY = append(reyaY, row.ReyaClose.InexactFloat64())
		}
		if row.DiffPct != nil {
			pctX = append(pctX, ts)
			pctY = append(pctY, row.DiffPct.InexactFloat64())
		}
	}

	series := make([]chart.Series, 0, 3)
	if len(binanceY) > 1 {
		series = append(series, chart.TimeSeries{
			Name:    "Binance mark close",
			XValues: binanceX,
			YValues: binanceY,
		})
	}
	if len(reyaY) > 1 {
		series = append(series, chart.TimeSeries{
			Name:    "Reya close",
			XValues: reyaX,
			YValues: reyaY,
		})
	}
	if len(pctY) > 1 {
		series = append(series, chart.TimeSeries{
			Name:    "Diff %",
			XValues: pctX,
			YValues: pctY,
			YAxis:   chart.YAxisSecondary,
		})
	}
	if len(series) == 0 {
		return errors.New("not enough data points to chart")
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Close (USD)",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Diff (%)",
			ValueFormatter: priceFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return writeAtomic(path, func(f *os.File) error {
		return graph.Render(chart.PNG, f)
	})
}
