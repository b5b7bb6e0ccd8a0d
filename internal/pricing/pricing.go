package pricing

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Tier buckets an item by absolute price.
type Tier string

const (
	TierBudget  Tier = "budget"
	TierEconomy Tier = "economy"
	TierPremium Tier = "premium"
)

// Deal levels shared by the cost analyzer and the date optimizer.
const (
	DealGood        = "good"
	DealGreat       = "great"
	DealExceptional = "exceptional"
)

// Deal indicator labels, highest priority first.
const (
	IndicatorCheapest           = "cheapest"
	IndicatorBestValue          = "best_value"
	IndicatorExceptionalSavings = "exceptional_savings"
	IndicatorGreatDeal          = "great_deal"
)

// PricedItem is any upstream offer carrying a price and optionally a duration.
// The analyzer never mutates an input item; it annotates copies.
type PricedItem struct {
	ID              string            `json:"id"`
	Kind            string            `json:"kind,omitempty"`
	Origin          string            `json:"origin,omitempty"`
	Destination     string            `json:"destination,omitempty"`
	Price           decimal.Decimal   `json:"price"`
	Currency        string            `json:"currency,omitempty"`
	DurationMinutes int               `json:"duration_minutes,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// CostMetrics is the annotation attached to a priced item by AddCostMetrics.
type CostMetrics struct {
	Tier                Tier            `json:"price_tier"`
	EffectivenessScore  decimal.Decimal `json:"cost_effectiveness_score"`
	SavingsVsAveragePct decimal.Decimal `json:"savings_vs_average"`
	GreatDeal           bool            `json:"is_great_deal"`
	ExceptionalSavings  bool            `json:"is_exceptional_savings"`
	Cheapest            bool            `json:"is_cheapest"`
	BestValue           bool            `json:"is_best_value"`
	DealIndicator       string          `json:"deal_indicator,omitempty"`
}

// AnnotatedItem pairs a copy of the input item with its computed metrics.
type AnnotatedItem struct {
	PricedItem
	Metrics CostMetrics `json:"metrics"`
}

// Outliers reports items priced unusually far from the batch mean.
type Outliers struct {
	Cheap        []PricedItem
	Expensive    []PricedItem
	AveragePrice decimal.Decimal
	StdDev       decimal.Decimal
}

// Options tune the analyzer thresholds. Zero values fall back to the defaults
// used across the engine.
type Options struct {
	BudgetMax      decimal.Decimal
	EconomyMax     decimal.Decimal
	GreatDealPct   decimal.Decimal
	ExceptionalPct decimal.Decimal
	OutlierStdDevs float64
}

// Analyzer computes point-in-time cost metrics over batches of priced items.
// It holds no per-call state; every method is a pure function of its inputs.
type Analyzer struct {
	opts Options
}

var (
	defaultBudgetMax      = decimal.NewFromInt(300)
	defaultEconomyMax     = decimal.NewFromInt(600)
	defaultGreatDealPct   = decimal.NewFromInt(20)
	defaultExceptionalPct = decimal.NewFromInt(30)

	// minScoreHours floors the duration term so near-zero durations do not
	// blow up the effectiveness score.
	minScoreHours  = decimal.NewFromFloat(0.1)
	minutesPerHour = decimal.NewFromInt(60)
	hundred        = decimal.NewFromInt(100)
)

// New constructs an analyzer, filling unset options with defaults.
func New(opts Options) *Analyzer {
	if opts.BudgetMax.IsZero() {
		opts.BudgetMax = defaultBudgetMax
	}
	if opts.EconomyMax.IsZero() {
		opts.EconomyMax = defaultEconomyMax
	}
	if opts.GreatDealPct.IsZero() {
		opts.GreatDealPct = defaultGreatDealPct
	}
	if opts.ExceptionalPct.IsZero() {
		opts.ExceptionalPct = defaultExceptionalPct
	}
	if opts.OutlierStdDevs <= 0 {
		opts.OutlierStdDevs = 2.0
	}
	return &Analyzer{opts: opts}
}

// TierOf maps an absolute price onto a tier. Boundary values belong to the
// economy tier on both ends.
func (a *Analyzer) TierOf(price decimal.Decimal) Tier {
	switch {
	case price.LessThan(a.opts.BudgetMax):
		return TierBudget
	case price.GreaterThan(a.opts.EconomyMax):
		return TierPremium
	default:
		return TierEconomy
	}
}

// CategorizeByTier returns annotated copies with only the tier populated.
func (a *Analyzer) CategorizeByTier(items []PricedItem) []AnnotatedItem {
	out := make([]AnnotatedItem, 0, len(items))
	for _, item := range items {
		out = append(out, AnnotatedItem{
			PricedItem: item,
			Metrics:    CostMetrics{Tier: a.TierOf(normalizePrice(item.Price))},
		})
	}
	return out
}

// EffectivenessScore computes price per hour of duration. Lower is better.
// Missing or non-positive durations score as one minute.
func (a *Analyzer) EffectivenessScore(item PricedItem) decimal.Decimal {
	minutes := item.DurationMinutes
	if minutes <= 0 {
		minutes = 1
	}
	hours := decimal.NewFromInt(int64(minutes)).Div(minutesPerHour)
	if hours.LessThan(minScoreHours) {
		hours = minScoreHours
	}
	return normalizePrice(item.Price).Div(hours)
}

// CheapestItem picks the minimum by (price, id). The id tiebreak keeps the
// winner deterministic when prices collide. Returns false for an empty batch.
func (a *Analyzer) CheapestItem(items []PricedItem) (PricedItem, bool) {
	return minItem(items, func(item PricedItem) decimal.Decimal {
		return normalizePrice(item.Price)
	})
}

// BestValueItem picks the minimum by (effectiveness score, id).
func (a *Analyzer) BestValueItem(items []PricedItem) (PricedItem, bool) {
	return minItem(items, a.EffectivenessScore)
}

// AveragePrice is the arithmetic mean of the batch; zero for an empty batch.
func (a *Analyzer) AveragePrice(items []PricedItem) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(normalizePrice(item.Price))
	}
	return sum.Div(decimal.NewFromInt(int64(len(items))))
}

// PriceOutliers reports items more than OutlierStdDevs population standard
// deviations away from the batch mean.
func (a *Analyzer) PriceOutliers(items []PricedItem) Outliers {
	result := Outliers{
		Cheap:        []PricedItem{},
		Expensive:    []PricedItem{},
		AveragePrice: a.AveragePrice(items),
	}
	if len(items) == 0 {
		return result
	}

	std := populationStdDev(items, result.AveragePrice)
	result.StdDev = std

	spread := std.Mul(decimal.NewFromFloat(a.opts.OutlierStdDevs))
	low := result.AveragePrice.Sub(spread)
	high := result.AveragePrice.Add(spread)
	for _, item := range items {
		price := normalizePrice(item.Price)
		switch {
		case price.LessThan(low):
			result.Cheap = append(result.Cheap, item)
		case price.GreaterThan(high):
			result.Expensive = append(result.Expensive, item)
		}
	}
	return result
}

// AddCostMetrics runs the full annotation pass against the batch's own mean.
func (a *Analyzer) AddCostMetrics(items []PricedItem) []AnnotatedItem {
	return a.AddCostMetricsAgainst(items, a.AveragePrice(items))
}

// AddCostMetricsAgainst annotates every item with tier, score, savings and
// deal flags, using the supplied reference average. Exactly one item per
// non-empty batch carries the cheapest flag and exactly one the best-value
// flag.
func (a *Analyzer) AddCostMetricsAgainst(items []PricedItem, average decimal.Decimal) []AnnotatedItem {
	out := make([]AnnotatedItem, 0, len(items))
	if len(items) == 0 {
		return out
	}

	cheapestIdx := minIndex(items, func(item PricedItem) decimal.Decimal {
		return normalizePrice(item.Price)
	})
	bestValueIdx := minIndex(items, a.EffectivenessScore)

	for i, item := range items {
		price := normalizePrice(item.Price)
		savings := SavingsPercent(price, average)

		metrics := CostMetrics{
			Tier:                a.TierOf(price),
			EffectivenessScore:  a.EffectivenessScore(item),
			SavingsVsAveragePct: savings,
			GreatDeal:           savings.GreaterThan(a.opts.GreatDealPct),
			ExceptionalSavings:  savings.GreaterThan(a.opts.ExceptionalPct),
			Cheapest:            i == cheapestIdx,
			BestValue:           i == bestValueIdx,
		}
		metrics.DealIndicator = indicatorFor(metrics)
		out = append(out, AnnotatedItem{PricedItem: item, Metrics: metrics})
	}
	return out
}

// DealLevel maps a savings percentage onto the shared deal vocabulary.
func (a *Analyzer) DealLevel(savingsPct decimal.Decimal) string {
	switch {
	case savingsPct.GreaterThan(a.opts.ExceptionalPct):
		return DealExceptional
	case savingsPct.GreaterThan(a.opts.GreatDealPct):
		return DealGreat
	default:
		return DealGood
	}
}

// SavingsPercent computes savings of price relative to reference as a
// percentage. A non-positive reference yields zero rather than an error.
func SavingsPercent(price, reference decimal.Decimal) decimal.Decimal {
	if reference.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return reference.Sub(price).Div(reference).Mul(hundred)
}

// indicatorFor selects the highest-priority applicable label.
func indicatorFor(m CostMetrics) string {
	switch {
	case m.Cheapest:
		return IndicatorCheapest
	case m.BestValue:
		return IndicatorBestValue
	case m.ExceptionalSavings:
		return IndicatorExceptionalSavings
	case m.GreatDeal:
		return IndicatorGreatDeal
	default:
		return ""
	}
}

func minItem(items []PricedItem, key func(PricedItem) decimal.Decimal) (PricedItem, bool) {
	idx := minIndex(items, key)
	if idx < 0 {
		return PricedItem{}, false
	}
	return items[idx], true
}

func minIndex(items []PricedItem, key func(PricedItem) decimal.Decimal) int {
	if len(items) == 0 {
		return -1
	}
	best := 0
	bestKey := key(items[0])
	for i, item := range items[1:] {
		k := key(item)
		switch k.Cmp(bestKey) {
		case -1:
			best, bestKey = i+1, k
		case 0:
			if item.ID < items[best].ID {
				best, bestKey = i+1, k
			}
		}
	}
	return best
}

func populationStdDev(items []PricedItem, mean decimal.Decimal) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	meanF := mean.InexactFloat64()
	var variance float64
	for _, item := range items {
		diff := normalizePrice(item.Price).InexactFloat64() - meanF
		variance += diff * diff
	}
	variance /= float64(len(items))
	return decimal.NewFromFloat(math.Sqrt(variance))
}

// normalizePrice clamps malformed negative prices to zero; the analyzer does
// not own its input data and never rejects it.
func normalizePrice(price decimal.Decimal) decimal.Decimal {
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// SortByPrice orders annotated items ascending by (price, id) for display.
func SortByPrice(items []AnnotatedItem) {
	sort.Slice(items, func(i, j int) bool {
		cmp := items[i].Price.Cmp(items[j].Price)
		if cmp == 0 {
			return items[i].ID < items[j].ID
		}
		return cmp < 0
	})
}
