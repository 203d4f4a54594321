package pricing

import (
	"math"
	"sort"
	"time"
)

// SliceHistory keeps only the entries of a full history that fall inside
// the last days days. Conditions and variants left empty are dropped.
func SliceHistory(full VariantConditionHistory, days int, now time.Time) VariantConditionHistory {
	out := make(VariantConditionHistory)
	cutoff := dayOf(now).AddDate(0, 0, -days)
	for variant, conditions := range full {
		for condition, entries := range conditions {
			var kept []HistoryEntry
			for _, e := range entries {
				day, ok := parseDay(e.Date)
				if !ok || day.Before(cutoff) {
					continue
				}
				kept = append(kept, e)
			}
			if len(kept) == 0 {
				continue
			}
			if out[variant] == nil {
				out[variant] = make(map[string][]HistoryEntry)
			}
			out[variant][condition] = kept
		}
	}
	return out
}

// TrackedKeys lists the variants and the distinct conditions present in a
// history, both sorted.
func TrackedKeys(history VariantConditionHistory) (variants, conditions []string) {
	seen := make(map[string]struct{})
	for variant, byCondition := range history {
		variants = append(variants, variant)
		for condition := range byCondition {
			if _, ok := seen[condition]; ok {
				continue
			}
			seen[condition] = struct{}{}
			conditions = append(conditions, condition)
		}
	}
	sort.Strings(variants)
	sort.Strings(conditions)
	return variants, conditions
}

// PrimarySeries picks the history used for headline percent changes:
// Normal if present (else the first variant by name), Near Mint if present
// (else the first condition by name).
func PrimarySeries(history VariantConditionHistory) (variant, condition string, entries []HistoryEntry) {
	if len(history) == 0 {
		return "", "", nil
	}
	variant = string(PriceVariantNormal)
	if _, ok := history[variant]; !ok {
		variant = firstKey(history)
	}
	conditions := history[variant]
	if len(conditions) == 0 {
		return variant, "", nil
	}
	condition = string(PriceConditionNearMint)
	if _, ok := conditions[condition]; !ok {
		condition = firstKey(conditions)
	}
	return variant, condition, conditions[condition]
}

func firstKey[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// WindowChanges computes the percent change over the trailing 7/30/90/180
// entries of a daily series and over the whole series for 365. Windows with
// an undefined change are absent from the result. Values are rounded to two
// decimals.
func WindowChanges(entries []HistoryEntry) map[Window]float64 {
	sorted := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.Market != nil {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	out := make(map[Window]float64)
	for _, w := range AllWindows() {
		tail := sorted
		if w != Window365D && len(sorted) > int(w) {
			tail = sorted[len(sorted)-int(w):]
		}
		points := make([]ChartPoint, len(tail))
		for i, e := range tail {
			points[i] = ChartPoint{Date: e.Date, Value: *e.Market}
		}
		if change, ok := PercentChange(points); ok {
			out[w] = math.Round(change*100) / 100
		}
	}
	return out
}

// ChartRequest selects the series to draw for a price record. An empty
// Grade means raw (ungraded) history.
type ChartRequest struct {
	Variant    string
	Condition  string
	Grade      Grade
	WindowDays int
}

// ChartSeries is a finished, render-ready series
type ChartSeries struct {
	Points        []ChartPoint `json:"points"`
	Ticks         []string     `json:"ticks"`
	PercentChange *float64     `json:"percent_change"`
	Volatility    *float64     `json:"volatility,omitempty"`
}

// BuildChart produces the chart for one record. Points is never nil.
func BuildChart(record *PriceRecord, req ChartRequest, now time.Time) ChartSeries {
	if req.WindowDays <= 0 {
		req.WindowDays = int(Window30D)
	}
	points := []ChartPoint{}
	opts := FinalizeOptions{WindowDays: req.WindowDays, Now: now}

	if record != nil {
		if req.Grade == "" {
			history := record.RawHistory[WindowFor(req.WindowDays)]
			points = HistoryToChart(history, req.Variant, req.Condition)
		} else {
			points = GradeHistoryToChart(record.EbayPriceHistory, req.Grade, req.WindowDays, now)
			opts.Graded = true
			if summary, ok := record.Grades[req.Grade]; ok {
				if price, ok := summary.HeadlinePrice(); ok {
					opts.TodayPrice = &price
				}
			}
		}
	}

	points = FinalizeSeries(points, opts)
	series := ChartSeries{Points: points, Ticks: AxisTicks(points)}
	if change, ok := PercentChange(points); ok {
		series.PercentChange = &change
	}
	if vol, ok := SeriesVolatility(points); ok {
		series.Volatility = &vol
	}
	return series
}
