package datewindow

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tripwatch/internal/pricing"
)

// FetchFunc supplies the priced items available for one travel date. The
// optimizer treats a failed fetch as an empty date and never caches results.
type FetchFunc func(ctx context.Context, origin, destination string, date time.Time) ([]pricing.PricedItem, error)

// Trend labels the direction of prices across an analyzed window.
type Trend string

const (
	TrendIncreasing       Trend = "increasing"
	TrendDecreasing       Trend = "decreasing"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// stableBandPct is the relative change magnitude below which a window counts
// as stable.
var stableBandPct = decimal.NewFromInt(5)

// DateStats aggregates the priced items seen on one calendar date. A date
// with no items carries zero prices and a zero count.
type DateStats struct {
	Date         time.Time       `json:"date"`
	DayOfWeek    string          `json:"day_of_week"`
	AveragePrice decimal.Decimal `json:"average_price"`
	MinPrice     decimal.Decimal `json:"min_price"`
	MaxPrice     decimal.Decimal `json:"max_price"`
	ItemCount    int             `json:"item_count"`
}

// Recommendation is one of the top-N cheapest dates in a window, annotated
// with savings against the mean of all priced dates.
type Recommendation struct {
	DateStats
	SavingsAmount decimal.Decimal `json:"savings_amount"`
	SavingsPct    decimal.Decimal `json:"savings_percentage"`
	DealLevel     string          `json:"deal_level"`
}

// PriceRange spans the cheapest and most expensive observed item prices.
type PriceRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Report is a fresh, uncached analysis of a symmetric date window around a
// center travel date.
type Report struct {
	Origin            string           `json:"origin"`
	Destination       string           `json:"destination"`
	CenterDate        time.Time        `json:"center_date"`
	WindowDays        int              `json:"window_days"`
	Stats             []DateStats      `json:"date_statistics"`
	Peak              *DateStats       `json:"peak_date,omitempty"`
	OffPeak           *DateStats       `json:"off_peak_date,omitempty"`
	Recommendations   []Recommendation `json:"recommendations"`
	Trend             Trend            `json:"trend"`
	Range             PriceRange       `json:"price_range"`
	CenterAverage     decimal.Decimal  `json:"center_average_price"`
	OffPeakSavingsPct decimal.Decimal  `json:"off_peak_savings_pct"`
}

// Options tune the optimizer. Zero values fall back to defaults.
type Options struct {
	Analyzer   *pricing.Analyzer
	WindowDays int
	TopN       int
}

// Optimizer finds cheap and stable travel dates around a center date. Every
// method is a pure function of its inputs except the caller-supplied fetch
// callback.
type Optimizer struct {
	analyzer   *pricing.Analyzer
	windowDays int
	topN       int
	logger     zerolog.Logger
}

// New constructs an optimizer.
func New(opts Options, logger zerolog.Logger) *Optimizer {
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = pricing.New(pricing.Options{})
	}
	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = 7
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = 3
	}
	return &Optimizer{
		analyzer:   analyzer,
		windowDays: windowDays,
		topN:       topN,
		logger:     logger.With().Str("component", "datewindow").Logger(),
	}
}

// AnalyzeWindow fetches items for every date in the inclusive symmetric
// window and derives the full report. A fetch failure on one date is logged
// and treated as "no items that date"; it never aborts the analysis.
func (o *Optimizer) AnalyzeWindow(ctx context.Context, origin, destination string, center time.Time, fetch FetchFunc, windowDays int) Report {
	if windowDays <= 0 {
		windowDays = o.windowDays
	}
	center = truncateDay(center)

	stats := make([]DateStats, 0, 2*windowDays+1)
	for offset := -windowDays; offset <= windowDays; offset++ {
		date := center.AddDate(0, 0, offset)
		items, err := fetch(ctx, origin, destination, date)
		if err != nil {
			o.logger.Warn().Err(err).
				Str("origin", origin).
				Str("destination", destination).
				Str("date", date.Format(time.DateOnly)).
				Msg("fetch failed; treating date as empty")
			items = nil
		}
		stats = append(stats, o.statsFor(date, items))
	}

	report := Report{
		Origin:          origin,
		Destination:     destination,
		CenterDate:      center,
		WindowDays:      windowDays,
		Stats:           stats,
		Peak:            o.PeakDate(stats),
		OffPeak:         o.OffPeakDate(stats),
		Recommendations: o.RecommendDates(stats, o.topN),
		Trend:           o.PriceTrend(stats),
		Range:           priceRange(stats),
	}
	for _, s := range stats {
		if s.Date.Equal(center) {
			report.CenterAverage = s.AveragePrice
		}
	}
	if report.OffPeak != nil {
		report.OffPeakSavingsPct = o.SavingsPotential(report.OffPeak.AveragePrice, report.CenterAverage)
	}
	return report
}

// DateStatistics derives one statistic per input date, independent of any
// window semantics.
func (o *Optimizer) DateStatistics(batches map[time.Time][]pricing.PricedItem) map[time.Time]DateStats {
	out := make(map[time.Time]DateStats, len(batches))
	for date, items := range batches {
		day := truncateDay(date)
		out[day] = o.statsFor(day, items)
	}
	return out
}

// PeakDate returns the date with the highest average price, considering only
// dates that actually had priced items. Ties go to the earliest date.
func (o *Optimizer) PeakDate(stats []DateStats) *DateStats {
	return pickDate(stats, func(candidate, best DateStats) bool {
		return candidate.AveragePrice.GreaterThan(best.AveragePrice)
	})
}

// OffPeakDate returns the date with the lowest non-zero average price.
func (o *Optimizer) OffPeakDate(stats []DateStats) *DateStats {
	return pickDate(stats, func(candidate, best DateStats) bool {
		return candidate.AveragePrice.LessThan(best.AveragePrice)
	})
}

// SavingsPotential computes the percent saved by paying datePrice instead of
// reference. A non-positive reference yields zero.
func (o *Optimizer) SavingsPotential(datePrice, reference decimal.Decimal) decimal.Decimal {
	return pricing.SavingsPercent(datePrice, reference)
}

// RecommendDates lists the topN cheapest priced dates, annotated with savings
// against the mean average price of all priced dates in the set.
func (o *Optimizer) RecommendDates(stats []DateStats, topN int) []Recommendation {
	if topN <= 0 {
		topN = o.topN
	}

	valid := make([]DateStats, 0, len(stats))
	sum := decimal.Zero
	for _, s := range stats {
		if s.ItemCount == 0 {
			continue
		}
		valid = append(valid, s)
		sum = sum.Add(s.AveragePrice)
	}
	if len(valid) == 0 {
		return []Recommendation{}
	}
	baseline := sum.Div(decimal.NewFromInt(int64(len(valid))))

	sort.Slice(valid, func(i, j int) bool {
		cmp := valid[i].AveragePrice.Cmp(valid[j].AveragePrice)
		if cmp == 0 {
			return valid[i].Date.Before(valid[j].Date)
		}
		return cmp < 0
	})
	if len(valid) > topN {
		valid = valid[:topN]
	}

	out := make([]Recommendation, 0, len(valid))
	for _, s := range valid {
		pct := pricing.SavingsPercent(s.AveragePrice, baseline)
		out = append(out, Recommendation{
			DateStats:     s,
			SavingsAmount: baseline.Sub(s.AveragePrice),
			SavingsPct:    pct,
			DealLevel:     o.analyzer.DealLevel(pct),
		})
	}
	return out
}

// PriceTrend compares the mean of the first and second halves of the
// chronologically ordered priced dates. Fewer than two priced dates cannot
// support a trend.
func (o *Optimizer) PriceTrend(stats []DateStats) Trend {
	ordered := append([]DateStats(nil), stats...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	prices := make([]decimal.Decimal, 0, len(ordered))
	for _, s := range ordered {
		if s.ItemCount == 0 || !s.AveragePrice.IsPositive() {
			continue
		}
		prices = append(prices, s.AveragePrice)
	}
	if len(prices) < 2 {
		return TrendInsufficientData
	}

	half := len(prices) / 2
	firstMean := meanOf(prices[:half])
	secondMean := meanOf(prices[half:])
	if !firstMean.IsPositive() {
		return TrendInsufficientData
	}

	change := secondMean.Sub(firstMean).Div(firstMean).Mul(decimal.NewFromInt(100))
	switch {
	case change.Abs().LessThan(stableBandPct):
		return TrendStable
	case change.IsPositive():
		return TrendIncreasing
	default:
		return TrendDecreasing
	}
}

func (o *Optimizer) statsFor(date time.Time, items []pricing.PricedItem) DateStats {
	stats := DateStats{
		Date:      date,
		DayOfWeek: date.Weekday().String(),
		ItemCount: len(items),
	}
	if len(items) == 0 {
		return stats
	}

	stats.AveragePrice = o.analyzer.AveragePrice(items)
	if cheapest, ok := o.analyzer.CheapestItem(items); ok {
		stats.MinPrice = cheapest.Price
	}
	for _, item := range items {
		if item.Price.GreaterThan(stats.MaxPrice) {
			stats.MaxPrice = item.Price
		}
	}
	return stats
}

func pickDate(stats []DateStats, better func(candidate, best DateStats) bool) *DateStats {
	var best *DateStats
	for i := range stats {
		if !stats[i].AveragePrice.IsPositive() {
			continue
		}
		if best == nil || better(stats[i], *best) {
			best = &stats[i]
		}
	}
	if best == nil {
		return nil
	}
	found := *best
	return &found
}

func priceRange(stats []DateStats) PriceRange {
	var r PriceRange
	started := false
	for _, s := range stats {
		if s.ItemCount == 0 {
			continue
		}
		if !started {
			r.Min, r.Max = s.MinPrice, s.MaxPrice
			started = true
			continue
		}
		if s.MinPrice.LessThan(r.Min) {
			r.Min = s.MinPrice
		}
		if s.MaxPrice.GreaterThan(r.Max) {
			r.Max = s.MaxPrice
		}
	}
	return r
}

func meanOf(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
