package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"tripwatch/internal/pricing"
)

// Analyze reads a JSON batch of priced items and prints cost metrics.
func (a *App) Analyze(_ context.Context, opts AnalyzeOptions) error {
	if opts.InputPath == "" {
		return errors.New("--input must be provided")
	}

	data, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var items []pricing.PricedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, "no items in batch")
		return nil
	}

	analyzer := a.newAnalyzer()
	annotated := analyzer.AddCostMetrics(items)
	outliers := analyzer.PriceOutliers(items)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tKind\tPrice\tTier\tScore\tSavings%\tDeal")
	for _, item := range annotated {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.ID,
			item.Kind,
			formatDecimal(item.Price, 2),
			item.Metrics.Tier,
			formatDecimal(item.Metrics.EffectivenessScore, 2),
			formatDecimal(item.Metrics.SavingsVsAveragePct, 1),
			item.Metrics.DealIndicator,
		)
	}
	writer.Flush()

	fmt.Fprintf(os.Stdout, "\naverage price: %s, std dev: %s\n",
		formatDecimal(outliers.AveragePrice, 2), formatDecimal(outliers.StdDev, 2))
	for _, item := range outliers.Cheap {
		fmt.Fprintf(os.Stdout, "unusually cheap: %s (%s)\n", item.ID, formatDecimal(item.Price, 2))
	}
	for _, item := range outliers.Expensive {
		fmt.Fprintf(os.Stdout, "unusually expensive: %s (%s)\n", item.ID, formatDecimal(item.Price, 2))
	}

	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
