package pricing

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PriceStyle selects how many decimals a price is shown with
type PriceStyle int

const (
	// PriceStyleExact always shows cents
	PriceStyleExact PriceStyle = iota
	// PriceStyleCompact drops cents at or above CompactPriceCutoff
	PriceStyleCompact
)

var usd = message.NewPrinter(language.English)

// FormatPrice renders a USD amount, e.g. "$12.99" or "$1,235"
func FormatPrice(v float64, style PriceStyle) string {
	if style == PriceStyleCompact && math.Abs(v) >= CompactPriceCutoff {
		return usd.Sprintf("$%.0f", v)
	}
	return usd.Sprintf("$%.2f", v)
}

// FormatPercentChange renders a signed change with one decimal, e.g. "+4.2%"
func FormatPercentChange(v float64) string {
	rounded := math.Round(v*10) / 10
	switch {
	case rounded > 0:
		return usd.Sprintf("+%.1f%%", rounded)
	case rounded < 0:
		return usd.Sprintf("%.1f%%", rounded)
	default:
		return "0.0%"
	}
}

// FormatPriceRange renders "$min - $max •count", or the single price when
// there is no range.
func FormatPriceRange(s *PriceRangeSummary) string {
	if s == nil {
		return ""
	}
	if !s.HasRange {
		return FormatPrice(s.Min, PriceStyleExact)
	}
	return usd.Sprintf("%s - %s •%d", FormatPrice(s.Min, PriceStyleExact), FormatPrice(s.Max, PriceStyleExact), s.VariantCount)
}

// FormatSmartPrice shows a range when the spread crosses a threshold,
// otherwise the lowest price.
func FormatSmartPrice(s *PriceRangeSummary, t DisplayThresholds) string {
	if s == nil {
		return ""
	}
	if ShouldShowRange(s, t) {
		return FormatPriceRange(s)
	}
	return FormatPrice(s.Min, PriceStyleExact)
}
