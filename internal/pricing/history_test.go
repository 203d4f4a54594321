package pricing

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var fixedNow = time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)

func TestHistoryToChart(t *testing.T) {
	history := VariantConditionHistory{
		"Holofoil": {
			"Near Mint": {
				{Date: "2024-06-01", Market: ptr(10.0), Volume: ptr(3)},
				{Date: "2024-06-02"},
				{Date: "2024-06-03", Market: ptr(12.5)},
			},
		},
	}

	got := HistoryToChart(history, "Holofoil", "Near Mint")
	if len(got) != 2 {
		t.Fatalf("HistoryToChart() returned %d points, want 2", len(got))
	}
	if got[0].Date != "2024-06-01" || got[0].Value != 10.0 || got[0].Volume == nil || *got[0].Volume != 3 {
		t.Errorf("first point = %+v", got[0])
	}
	if got[1].Date != "2024-06-03" || got[1].Value != 12.5 || got[1].Volume != nil {
		t.Errorf("second point = %+v", got[1])
	}
}

func TestHistoryToChartMissing(t *testing.T) {
	tests := []struct {
		name      string
		history   VariantConditionHistory
		variant   string
		condition string
	}{
		{"nil history", nil, "Normal", "Near Mint"},
		{"missing variant", VariantConditionHistory{"Holofoil": {}}, "Normal", "Near Mint"},
		{"missing condition", VariantConditionHistory{"Normal": {"Damaged": nil}}, "Normal", "Near Mint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HistoryToChart(tt.history, tt.variant, tt.condition)
			if got == nil || len(got) != 0 {
				t.Errorf("HistoryToChart() = %#v, want empty non-nil slice", got)
			}
		})
	}
}

func TestGradeHistoryToChart(t *testing.T) {
	history := GradeHistory{
		GradePSA10: {
			"2024-06-10": {Average: ptr(200.0), SevenDayAverage: ptr(190.0), Count: ptr(2)},
			"2024-05-01": {Average: ptr(150.0)},
			"2024-06-01": {Average: ptr(180.0)},
			"2024-06-05": {},
			"garbage":    {Average: ptr(1.0)},
		},
	}

	got := GradeHistoryToChart(history, GradePSA10, 30, fixedNow)
	want := []ChartPoint{
		{Date: "2024-06-01", Value: 180.0},
		{Date: "2024-06-10", Value: 190.0, Volume: ptr(2)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GradeHistoryToChart() = %+v, want %+v", got, want)
	}

	if got := GradeHistoryToChart(history, GradePSA8, 30, fixedNow); got == nil || len(got) != 0 {
		t.Errorf("missing grade = %#v, want empty non-nil slice", got)
	}
}

func TestFinalizeSeriesSinglePoint(t *testing.T) {
	in := []ChartPoint{{Date: "2024-06-15", Value: 7.0}}

	got := FinalizeSeries(in, FinalizeOptions{WindowDays: 30, Now: fixedNow})
	if len(got) != 2 {
		t.Fatalf("FinalizeSeries() returned %d points, want 2", len(got))
	}
	if got[0].Value != got[1].Value {
		t.Errorf("flattened values differ: %v vs %v", got[0].Value, got[1].Value)
	}
	if got[0].Date != "2024-05-16" {
		t.Errorf("synthetic start date = %s, want 2024-05-16", got[0].Date)
	}
	if got[1].Date != "2024-06-15" {
		t.Errorf("last date = %s, want 2024-06-15", got[1].Date)
	}
	if len(in) != 1 {
		t.Error("input slice should not be modified")
	}
}

func TestFinalizeSeriesLeavesOthersAlone(t *testing.T) {
	if got := FinalizeSeries(nil, FinalizeOptions{WindowDays: 30, Now: fixedNow}); len(got) != 0 {
		t.Errorf("empty series became %+v", got)
	}

	two := []ChartPoint{{Date: "2024-06-01", Value: 1}, {Date: "2024-06-02", Value: 2}}
	if got := FinalizeSeries(two, FinalizeOptions{WindowDays: 30, Now: fixedNow}); !reflect.DeepEqual(got, two) {
		t.Errorf("two point series changed to %+v", got)
	}
}

func TestFinalizeSeriesGradedToday(t *testing.T) {
	today := 250.0
	points := []ChartPoint{{Date: "2024-06-01", Value: 200}}

	got := FinalizeSeries(points, FinalizeOptions{Graded: true, TodayPrice: &today, WindowDays: 30, Now: fixedNow})
	if len(got) != 2 {
		t.Fatalf("FinalizeSeries() returned %d points, want 2", len(got))
	}
	last := got[1]
	if last.Date != "2024-06-15" || last.Value != 250 || last.Label != TodayLabel {
		t.Errorf("today point = %+v", last)
	}

	// already ends today
	endsToday := []ChartPoint{{Date: "2024-06-10", Value: 1}, {Date: "2024-06-15", Value: 2}}
	got = FinalizeSeries(endsToday, FinalizeOptions{Graded: true, TodayPrice: &today, WindowDays: 30, Now: fixedNow})
	if len(got) != 2 {
		t.Errorf("series ending today gained points: %+v", got)
	}

	// an empty graded series never gains a today point
	got = FinalizeSeries(nil, FinalizeOptions{Graded: true, TodayPrice: &today, WindowDays: 30, Now: fixedNow})
	if len(got) != 0 {
		t.Errorf("empty graded series = %+v, want empty", got)
	}

	// raw series never gain a today point
	got = FinalizeSeries(endsToday[:1], FinalizeOptions{TodayPrice: &today, WindowDays: 7, Now: fixedNow})
	if len(got) != 2 || got[1].Label != "" || got[0].Date != "2024-06-03" {
		t.Errorf("raw series = %+v", got)
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name   string
		points []ChartPoint
		want   float64
		wantOK bool
	}{
		{"empty", nil, 0, false},
		{"single", []ChartPoint{{Value: 5}}, 0, false},
		{"zero start", []ChartPoint{{Value: 0}, {Value: 5}}, 0, false},
		{"up", []ChartPoint{{Value: 100}, {Value: 50}, {Value: 125}}, 25, true},
		{"down", []ChartPoint{{Value: 200}, {Value: 150}}, -25, true},
		{"flat", []ChartPoint{{Value: 3}, {Value: 3}}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PercentChange(tt.points)
			if ok != tt.wantOK || !approxEqual(got, tt.want) {
				t.Errorf("PercentChange() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAxisTicks(t *testing.T) {
	mk := func(n int) []ChartPoint {
		points := make([]ChartPoint, n)
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range points {
			points[i] = ChartPoint{Date: start.AddDate(0, 0, i).Format("2006-01-02")}
		}
		return points
	}

	if got := AxisTicks(mk(3)); len(got) != 3 {
		t.Errorf("AxisTicks(3) = %v, want all three dates", got)
	}

	got := AxisTicks(mk(9))
	want := []string{"2024-01-01", "2024-01-04", "2024-01-07", "2024-01-09"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AxisTicks(9) = %v, want %v", got, want)
	}
}

func TestSliceHistory(t *testing.T) {
	full := VariantConditionHistory{
		"Normal": {
			"Near Mint": {
				{Date: "2024-05-01", Market: ptr(1.0)},
				{Date: "2024-06-10", Market: ptr(2.0)},
			},
			"Damaged": {
				{Date: "2024-01-01", Market: ptr(0.1)},
			},
		},
		"Holofoil": {
			"Near Mint": {{Date: "2023-01-01", Market: ptr(9.0)}},
		},
	}

	got := SliceHistory(full, 7, fixedNow)
	if len(got) != 1 {
		t.Fatalf("SliceHistory() kept %d variants, want 1", len(got))
	}
	entries := got["Normal"]["Near Mint"]
	if len(entries) != 1 || entries[0].Date != "2024-06-10" {
		t.Errorf("Normal/Near Mint = %+v", entries)
	}
	if _, ok := got["Normal"]["Damaged"]; ok {
		t.Error("empty condition should be dropped")
	}
}

func TestTrackedKeysAndPrimarySeries(t *testing.T) {
	history := VariantConditionHistory{
		"Reverse Holofoil": {"Lightly Played": {{Date: "2024-06-01", Market: ptr(1.0)}}},
		"Holofoil": {
			"Near Mint": {{Date: "2024-06-01", Market: ptr(5.0)}},
			"Damaged":   {{Date: "2024-06-01", Market: ptr(2.0)}},
		},
	}

	variants, conditions := TrackedKeys(history)
	if !reflect.DeepEqual(variants, []string{"Holofoil", "Reverse Holofoil"}) {
		t.Errorf("variants = %v", variants)
	}
	if !reflect.DeepEqual(conditions, []string{"Damaged", "Lightly Played", "Near Mint"}) {
		t.Errorf("conditions = %v", conditions)
	}

	variant, condition, entries := PrimarySeries(history)
	if variant != "Holofoil" || condition != "Near Mint" || len(entries) != 1 {
		t.Errorf("PrimarySeries() = %s, %s, %d entries", variant, condition, len(entries))
	}

	history["Normal"] = map[string][]HistoryEntry{"Damaged": {{Date: "2024-06-01", Market: ptr(0.1)}}}
	variant, condition, _ = PrimarySeries(history)
	if variant != "Normal" || condition != "Damaged" {
		t.Errorf("PrimarySeries() with Normal = %s, %s", variant, condition)
	}

	if v, c, e := PrimarySeries(nil); v != "" || c != "" || e != nil {
		t.Errorf("PrimarySeries(nil) = %q, %q, %v", v, c, e)
	}
}

func TestWindowChanges(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]HistoryEntry, 0, 10)
	for i := 0; i < 10; i++ {
		entries = append(entries, HistoryEntry{
			Date:   start.AddDate(0, 0, i).Format("2006-01-02"),
			Market: ptr(float64(10 + i)),
		})
	}

	got := WindowChanges(entries)
	// trailing 7 entries: 13 -> 19
	if !approxEqual(got[Window7D], 46.15) {
		t.Errorf("7d change = %v, want 46.15", got[Window7D])
	}
	// whole series: 10 -> 19
	for _, w := range []Window{Window30D, Window90D, Window180D, Window365D} {
		if !approxEqual(got[w], 90) {
			t.Errorf("%dd change = %v, want 90", w, got[w])
		}
	}

	if got := WindowChanges(entries[:1]); len(got) != 0 {
		t.Errorf("single entry changes = %v, want none", got)
	}
}

func TestBuildChartRaw(t *testing.T) {
	record := &PriceRecord{
		RawHistory: map[Window]VariantConditionHistory{
			Window30D: {
				"Normal": {"Near Mint": {
					{Date: "2024-06-01", Market: ptr(2.0)},
					{Date: "2024-06-14", Market: ptr(3.0)},
				}},
			},
		},
	}

	got := BuildChart(record, ChartRequest{Variant: "Normal", Condition: "Near Mint"}, fixedNow)
	if len(got.Points) != 2 {
		t.Fatalf("BuildChart() points = %+v", got.Points)
	}
	if got.PercentChange == nil || !approxEqual(*got.PercentChange, 50) {
		t.Errorf("percent change = %v, want 50", got.PercentChange)
	}
	if len(got.Ticks) != 2 {
		t.Errorf("ticks = %v", got.Ticks)
	}
}

func TestBuildChartGraded(t *testing.T) {
	record := &PriceRecord{
		Grades: map[Grade]GradeSummary{
			GradePSA10: {SmartMarketPrice: &SmartMarketPrice{Price: ptr(300.0)}, AvgPrice: ptr(250.0)},
		},
		EbayPriceHistory: GradeHistory{
			GradePSA10: {"2024-06-01": {Average: ptr(200.0)}},
		},
	}

	got := BuildChart(record, ChartRequest{Grade: GradePSA10, WindowDays: 30}, fixedNow)
	if len(got.Points) != 2 {
		t.Fatalf("BuildChart() points = %+v", got.Points)
	}
	if got.Points[1].Value != 300 || got.Points[1].Label != TodayLabel {
		t.Errorf("today point = %+v", got.Points[1])
	}
	if got.PercentChange == nil || !approxEqual(*got.PercentChange, 50) {
		t.Errorf("percent change = %v, want 50", got.PercentChange)
	}
}

func TestBuildChartNilRecord(t *testing.T) {
	got := BuildChart(nil, ChartRequest{Variant: "Normal", Condition: "Near Mint"}, fixedNow)
	if got.Points == nil || len(got.Points) != 0 {
		t.Errorf("points = %#v, want empty non-nil slice", got.Points)
	}
	if got.PercentChange != nil {
		t.Errorf("percent change = %v, want nil", *got.PercentChange)
	}
}
