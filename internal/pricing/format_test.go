package pricing

import (
	"testing"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		value float64
		style PriceStyle
		want  string
	}{
		{12.99, PriceStyleExact, "$12.99"},
		{0.15, PriceStyleExact, "$0.15"},
		{0, PriceStyleExact, "$0.00"},
		{999.99, PriceStyleCompact, "$999.99"},
		{1234.56, PriceStyleCompact, "$1,235"},
		{1234.5, PriceStyleExact, "$1,234.50"},
	}

	for _, tt := range tests {
		if got := FormatPrice(tt.value, tt.style); got != tt.want {
			t.Errorf("FormatPrice(%v, %d) = %s, want %s", tt.value, tt.style, got, tt.want)
		}
	}
}

func TestFormatPercentChange(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{4.2, "+4.2%"},
		{4.24, "+4.2%"},
		{-3.1, "-3.1%"},
		{0, "0.0%"},
		{0.01, "0.0%"},
		{-0.01, "0.0%"},
	}

	for _, tt := range tests {
		if got := FormatPercentChange(tt.value); got != tt.want {
			t.Errorf("FormatPercentChange(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestFormatPriceRange(t *testing.T) {
	got := FormatPriceRange(PriceRange([]float64{0.15, 1.30, 4.10, 20.42}))
	if want := "$0.15 - $20.42 •4"; got != want {
		t.Errorf("FormatPriceRange() = %s, want %s", got, want)
	}

	if got := FormatPriceRange(PriceRange([]float64{3.5})); got != "$3.50" {
		t.Errorf("FormatPriceRange(single) = %s, want $3.50", got)
	}
	if got := FormatPriceRange(nil); got != "" {
		t.Errorf("FormatPriceRange(nil) = %q, want empty", got)
	}
}

func TestFormatSmartPrice(t *testing.T) {
	thresholds := DefaultDisplayThresholds()

	if got := FormatSmartPrice(PriceRange([]float64{10, 11}), thresholds); got != "$10.00" {
		t.Errorf("tight range = %s, want $10.00", got)
	}
	if got := FormatSmartPrice(PriceRange([]float64{0.15, 20.42}), thresholds); got != "$0.15 - $20.42 •2" {
		t.Errorf("wide range = %s", got)
	}
}
