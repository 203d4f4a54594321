package pricing

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

// BestPrice is the lowest positive price across variants
func BestPrice(prices PriceVariantsMap) (float64, bool) {
	best, found := 0.0, false
	for _, p := range prices {
		if p <= 0 {
			continue
		}
		if !found || p < best {
			best, found = p, true
		}
	}
	return best, found
}

// PriceRangeSummary describes the spread of market prices across variants
type PriceRangeSummary struct {
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	HasRange     bool    `json:"has_range"`
	VariantCount int     `json:"variant_count"`
	PriceSpread  float64 `json:"price_spread"`
}

// PriceRange summarizes per-variant market prices. Non-positive prices are
// ignored; returns nil when none remain.
func PriceRange(prices []float64) *PriceRangeSummary {
	var s *PriceRangeSummary
	for _, p := range prices {
		if p <= 0 {
			continue
		}
		if s == nil {
			s = &PriceRangeSummary{Min: p, Max: p}
		}
		s.Min = math.Min(s.Min, p)
		s.Max = math.Max(s.Max, p)
		s.VariantCount++
	}
	if s == nil {
		return nil
	}
	s.HasRange = s.Min != s.Max
	s.PriceSpread = (s.Max - s.Min) / s.Min * 100
	return s
}

// PriceRangeOf is PriceRange over the values of a variants map
func PriceRangeOf(prices PriceVariantsMap) *PriceRangeSummary {
	values := make([]float64, 0, len(prices))
	for _, p := range prices {
		values = append(values, p)
	}
	return PriceRange(values)
}

// DisplayThresholds decide when a range is worth showing
type DisplayThresholds struct {
	VariancePercent float64
	PriceUSD        float64
}

// DefaultDisplayThresholds returns the 50% / $5 defaults
func DefaultDisplayThresholds() DisplayThresholds {
	return DisplayThresholds{
		VariancePercent: DefaultVarianceThresholdPercent,
		PriceUSD:        DefaultPriceThresholdUSD,
	}
}

// ShouldShowRange reports whether the spread crosses either threshold
func ShouldShowRange(s *PriceRangeSummary, t DisplayThresholds) bool {
	if s == nil || !s.HasRange {
		return false
	}
	return s.PriceSpread > t.VariancePercent || s.Max-s.Min > t.PriceUSD
}

// Holding is a collection entry together with the price records of its card
type Holding struct {
	ItemID  uint
	CardID  string
	Name    string
	Entry   CollectionEntry
	Records []PriceRecord
}

// EntryValue is resolved price times quantity
func EntryValue(h Holding) (float64, bool) {
	price, ok := ResolvePrice(h.Records, h.Entry)
	if !ok {
		return 0, false
	}
	return price * float64(h.Entry.EffectiveQuantity()), true
}

// CalculateCollectionValue sums entry values, rounded to cents. Entries
// without a resolvable price contribute nothing.
func CalculateCollectionValue(holdings []Holding) float64 {
	total := decimal.Zero
	for _, h := range holdings {
		price, ok := ResolvePrice(h.Records, h.Entry)
		if !ok {
			continue
		}
		qty := decimal.NewFromInt(int64(h.Entry.EffectiveQuantity()))
		total = total.Add(decimal.NewFromFloat(price).Mul(qty))
	}
	return total.Round(2).InexactFloat64()
}

// Ranked pairs an item with the metric it was ranked by
type Ranked[T any] struct {
	Item   T       `json:"item"`
	Metric float64 `json:"metric"`
}

// TopN keeps items whose metric is defined and positive, sorts them by
// metric descending (stable for ties) and truncates to n. n <= 0 keeps all.
func TopN[T any](items []T, n int, metric func(T) (float64, bool)) []Ranked[T] {
	ranked := make([]Ranked[T], 0, len(items))
	for _, item := range items {
		m, ok := metric(item)
		if !ok || m <= 0 {
			continue
		}
		ranked = append(ranked, Ranked[T]{Item: item, Metric: m})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Metric > ranked[j].Metric
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// TopGems ranks holdings by their total value
func TopGems(holdings []Holding, n int) []Ranked[Holding] {
	return TopN(holdings, n, EntryValue)
}

// Mover is a holding with its price change over a window
type Mover struct {
	Holding       Holding `json:"holding"`
	PercentChange float64 `json:"percent_change"`
	Price         float64 `json:"price"`
}

// HoldingChange is the percent change of the holding's own
// variant/condition series over the given window.
func HoldingChange(h Holding, window Window) (float64, bool) {
	rec := FindRecord(h.Records, h.Entry.VariantPattern)
	if rec == nil {
		return 0, false
	}
	condition := rec.ConditionFor(h.Entry.Condition)
	points := HistoryToChart(rec.RawHistory[window], string(MapVariant(h.Entry.Variant)), string(condition))
	return PercentChange(points)
}

// TopMovers ranks priced holdings by the magnitude of their price change,
// so big drops rank alongside big gains.
func TopMovers(holdings []Holding, window Window, n int) []Mover {
	var movers []Mover
	for _, h := range holdings {
		price, ok := ResolvePrice(h.Records, h.Entry)
		if !ok {
			continue
		}
		change, ok := HoldingChange(h, window)
		if !ok || change == 0 {
			continue
		}
		movers = append(movers, Mover{Holding: h, PercentChange: change, Price: price})
	}
	ranked := TopN(movers, n, func(m Mover) (float64, bool) {
		return math.Abs(m.PercentChange), true
	})
	out := make([]Mover, len(ranked))
	for i, r := range ranked {
		out[i] = r.Item
	}
	return out
}

// SeriesVolatility is the coefficient of variation (stddev / mean) of a series
func SeriesVolatility(points []ChartPoint) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}
	data := make(stats.Float64Data, len(points))
	for i, p := range points {
		data[i] = p.Value
	}
	mean, err := stats.Mean(data)
	if err != nil || mean == 0 {
		return 0, false
	}
	sd, err := stats.StandardDeviation(data)
	if err != nil {
		return 0, false
	}
	return sd / mean, true
}

// CardPrices is a catalog card with its extracted variant prices
type CardPrices struct {
	CardID string
	Name   string
	Prices PriceVariantsMap
}

// CardValue is a card with its best price
type CardValue struct {
	CardID string  `json:"card_id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
}

// SetSummary aggregates best prices over the cards of a set
type SetSummary struct {
	CardCount    int        `json:"card_count"`
	PricedCount  int        `json:"priced_count"`
	TotalValue   float64    `json:"total_value"`
	MedianPrice  *float64   `json:"median_price,omitempty"`
	MostValuable *CardValue `json:"most_valuable,omitempty"`
}

// SummarizeSet totals the best price of every priced card of a set
func SummarizeSet(cards []CardPrices) SetSummary {
	summary := SetSummary{CardCount: len(cards)}
	total := decimal.Zero
	var best stats.Float64Data
	for _, c := range cards {
		price, ok := BestPrice(c.Prices)
		if !ok {
			continue
		}
		summary.PricedCount++
		best = append(best, price)
		total = total.Add(decimal.NewFromFloat(price))
		if summary.MostValuable == nil || price > summary.MostValuable.Price {
			summary.MostValuable = &CardValue{CardID: c.CardID, Name: c.Name, Price: price}
		}
	}
	summary.TotalValue = total.Round(2).InexactFloat64()
	if median, err := stats.Median(best); err == nil {
		summary.MedianPrice = &median
	}
	return summary
}
