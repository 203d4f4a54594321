package pricing

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// TodayLabel marks the synthetic point carrying the current headline price
const TodayLabel = "Today"

// ChartPoint is one chart-ready observation
type ChartPoint struct {
	Date   string  `json:"date"`
	Value  float64 `json:"value"`
	Volume *int    `json:"volume"`
	Label  string  `json:"label,omitempty"`
}

// parseDay reads the calendar day from a date or timestamp string
func parseDay(s string) (time.Time, bool) {
	if len(s) < len(dateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// HistoryToChart flattens history[variant][condition] into chart points.
// The feed delivers entries in ascending date order; that order is kept.
// Entries without a market price are skipped.
func HistoryToChart(history VariantConditionHistory, variant, condition string) []ChartPoint {
	points := []ChartPoint{}
	if history == nil {
		return points
	}
	entries, ok := history[variant][condition]
	if !ok {
		return points
	}
	for _, e := range entries {
		if e.Market == nil {
			continue
		}
		points = append(points, ChartPoint{
			Date:   e.Date,
			Value:  *e.Market,
			Volume: e.Volume,
		})
	}
	return points
}

// GradeHistoryToChart projects the graded aggregates of one grade inside the
// window ending at now. Graded history is sparse and unordered, so the result
// is sorted by date.
func GradeHistoryToChart(history GradeHistory, grade Grade, windowDays int, now time.Time) []ChartPoint {
	points := []ChartPoint{}
	byDate, ok := history[grade]
	if !ok {
		return points
	}
	cutoff := dayOf(now).AddDate(0, 0, -windowDays)
	for date, agg := range byDate {
		day, ok := parseDay(date)
		if !ok || day.Before(cutoff) {
			continue
		}
		value := agg.SevenDayAverage
		if value == nil {
			value = agg.Average
		}
		if value == nil {
			continue
		}
		points = append(points, ChartPoint{
			Date:   date,
			Value:  *value,
			Volume: agg.Count,
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return points
}

// FinalizeOptions controls the post-processing applied to a series
type FinalizeOptions struct {
	// Graded enables the synthetic "today" point
	Graded bool
	// TodayPrice is the current headline price for the grade, if any
	TodayPrice *float64
	WindowDays int
	Now        time.Time
}

// FinalizeSeries appends the graded "today" point and turns a single point
// into a flat two-point line. Empty series stay empty and series of two or
// more points are otherwise left alone.
func FinalizeSeries(points []ChartPoint, opts FinalizeOptions) []ChartPoint {
	out := make([]ChartPoint, len(points), len(points)+2)
	copy(out, points)

	if opts.Graded && len(out) > 0 && opts.TodayPrice != nil {
		today := dayOf(opts.Now)
		last, ok := parseDay(out[len(out)-1].Date)
		if !ok || !last.Equal(today) {
			out = append(out, ChartPoint{
				Date:  today.Format(dateLayout),
				Value: *opts.TodayPrice,
				Label: TodayLabel,
			})
		}
	}

	if len(out) == 1 {
		only := out[0]
		start := only.Date
		if day, ok := parseDay(only.Date); ok {
			start = day.AddDate(0, 0, -opts.WindowDays).Format(dateLayout)
		}
		out = []ChartPoint{{Date: start, Value: only.Value}, only}
	}
	return out
}

// PercentChange is the change from the first to the last point, in percent.
// Undefined (false) for fewer than two points or a zero starting value.
func PercentChange(points []ChartPoint) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}
	first, last := points[0].Value, points[len(points)-1].Value
	if first == 0 {
		return 0, false
	}
	return (last - first) / first * 100, true
}

// AxisTicks picks x-axis labels: every date for short series, otherwise
// four evenly spaced samples ending at the last point.
func AxisTicks(points []ChartPoint) []string {
	n := len(points)
	if n <= 5 {
		ticks := make([]string, n)
		for i, p := range points {
			ticks[i] = p.Date
		}
		return ticks
	}
	idx := []int{0, n / 3, 2 * n / 3, n - 1}
	ticks := make([]string, len(idx))
	for i, at := range idx {
		ticks[i] = points[at].Date
	}
	return ticks
}
