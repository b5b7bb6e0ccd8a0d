package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"tripwatch/internal/datewindow"
)

// Window analyzes the date window around a travel date and prints the report.
func (a *App) Window(ctx context.Context, opts WindowOptions) error {
	if opts.Origin == "" || opts.Destination == "" {
		return errors.New("--origin and --destination must be provided")
	}
	if opts.Center.IsZero() {
		return errors.New("--date must be provided")
	}

	days := opts.Days
	if days <= 0 {
		days = a.Config.Window.Days
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = a.Config.Window.TopN
	}

	optimizer := datewindow.New(datewindow.Options{
		Analyzer:   a.newAnalyzer(),
		WindowDays: days,
		TopN:       topN,
	}, a.Logger)

	client := a.newFeed()
	report := optimizer.AnalyzeWindow(ctx, opts.Origin, opts.Destination, opts.Center, client.FetchFunc(), days)

	printReport(report)

	if opts.CSVPath != "" {
		if err := writeStatsCSV(opts.CSVPath, report.Stats); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeStatsPNG(opts.PNGPath, report.Stats); err != nil {
			return err
		}
	}

	return nil
}

func printReport(report datewindow.Report) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tDay\tAvg\tMin\tMax\tItems")
	for _, stats := range report.Stats {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%d\n",
			stats.Date.Format("2006-01-02"),
			stats.DayOfWeek,
			formatDecimal(stats.AveragePrice, 2),
			formatDecimal(stats.MinPrice, 2),
			formatDecimal(stats.MaxPrice, 2),
			stats.ItemCount,
		)
	}
	writer.Flush()

	fmt.Fprintf(os.Stdout, "\ntrend: %s, price range %s - %s\n",
		report.Trend, formatDecimal(report.Range.Min, 2), formatDecimal(report.Range.Max, 2))
	if report.Peak != nil {
		fmt.Fprintf(os.Stdout, "peak date: %s (%s)\n",
			report.Peak.Date.Format("2006-01-02"), formatDecimal(report.Peak.AveragePrice, 2))
	}
	if report.OffPeak != nil {
		fmt.Fprintf(os.Stdout, "off-peak date: %s (%s), savings vs peak %s%%\n",
			report.OffPeak.Date.Format("2006-01-02"),
			formatDecimal(report.OffPeak.AveragePrice, 2),
			formatDecimal(report.OffPeakSavingsPct, 1))
	}
	for i, rec := range report.Recommendations {
		fmt.Fprintf(os.Stdout, "recommendation %d: %s avg %s, save %s (%s%%) %s\n",
			i+1,
			rec.Date.Format("2006-01-02"),
			formatDecimal(rec.AveragePrice, 2),
			formatDecimal(rec.SavingsAmount, 2),
			formatDecimal(rec.SavingsPct, 1),
			rec.DealLevel,
		)
	}
}

func writeStatsCSV(path string, stats []datewindow.DateStats) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"date", "day_of_week", "average_price", "min_price", "max_price", "item_count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, s := range stats {
		record := []string{
			s.Date.Format("2006-01-02"),
			s.DayOfWeek,
			s.AveragePrice.String(),
			s.MinPrice.String(),
			s.MaxPrice.String(),
			fmt.Sprintf("%d", s.ItemCount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeStatsPNG(path string, stats []datewindow.DateStats) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	priced := make([]datewindow.DateStats, 0, len(stats))
	for _, s := range stats {
		if s.ItemCount > 0 {
			priced = append(priced, s)
		}
	}
	if len(priced) < 2 {
		return errors.New("not enough priced dates to chart")
	}

	x := make([]time.Time, len(priced))
	avg := make([]float64, len(priced))
	minP := make([]float64, len(priced))
	maxP := make([]float64, len(priced))

	for i, s := range priced {
		x[i] = s.Date
		avg[i] = s.AveragePrice.InexactFloat64()
		minP[i] = s.MinPrice.InexactFloat64()
		maxP[i] = s.MaxPrice.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Average",
				XValues: x,
				YValues: avg,
			},
			chart.TimeSeries{
				Name:    "Min",
				XValues: x,
				YValues: minP,
			},
			chart.TimeSeries{
				Name:    "Max",
				XValues: x,
				YValues: maxP,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
