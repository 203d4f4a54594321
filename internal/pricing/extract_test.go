package pricing

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestExtractMarketPricesNullInputs(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"empty array", []any{}},
		{"empty object", map[string]any{}},
		{"empty object text", "{}"},
		{"empty array text", "[]"},
		{"null text", "null"},
		{"blank text", "   "},
		{"invalid json", "[{"},
		{"not an array", `{"subTypeName":"Normal","marketPrice":1}`},
		{"number", 42},
		{"typed empty", []RawPriceRecord{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractMarketPrices(tt.raw); got != nil {
				t.Errorf("ExtractMarketPrices(%v) = %v, want nil", tt.raw, got)
			}
		})
	}
}

func TestExtractMarketPricesExcludesZero(t *testing.T) {
	raw := []any{
		map[string]any{"subTypeName": "Normal", "marketPrice": 0.0},
		map[string]any{"subTypeName": "Holo", "marketPrice": 1.3},
	}

	got := ExtractMarketPrices(raw)
	want := PriceVariantsMap{"Holo": 1.3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMarketPrices() = %v, want %v", got, want)
	}
}

func TestExtractMarketPricesFromJSONText(t *testing.T) {
	text := `[
		{"subTypeName":"Normal","marketPrice":0.15},
		{"subTypeName":"Holofoil","marketPrice":1.30,"variantPattern":"base"},
		{"subTypeName":"Reverse Holofoil","marketPrice":20.42,"variantPattern":"master_ball"},
		{"subTypeName":"Reverse Holofoil","marketPrice":4.10,"variantPattern":"poke_ball"}
	]`

	want := PriceVariantsMap{
		"Normal":                         0.15,
		"Holofoil":                       1.30,
		"Reverse Holofoil (Master Ball)": 20.42,
		"Reverse Holofoil (Poké Ball)":   4.10,
	}

	for name, raw := range map[string]any{
		"string":      text,
		"bytes":       []byte(text),
		"raw message": json.RawMessage(text),
	} {
		t.Run(name, func(t *testing.T) {
			got := ExtractMarketPrices(raw)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("ExtractMarketPrices() = %v, want %v", got, want)
			}
		})
	}
}

func TestExtractMarketPricesDoubleEncoded(t *testing.T) {
	inner := `[{"subTypeName":"Normal","marketPrice":2.5}]`
	encoded, err := json.Marshal(inner)
	if err != nil {
		t.Fatal(err)
	}

	got := ExtractMarketPrices(encoded)
	want := PriceVariantsMap{"Normal": 2.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMarketPrices(double encoded) = %v, want %v", got, want)
	}

	// a third level of encoding is not unwrapped
	twice, _ := json.Marshal(string(encoded))
	if got := ExtractMarketPrices(twice); got != nil {
		t.Errorf("ExtractMarketPrices(triple encoded) = %v, want nil", got)
	}
}

func TestExtractMarketPricesSkipsInvalidElements(t *testing.T) {
	raw := []any{
		"not an object",
		map[string]any{"marketPrice": 1.0},
		map[string]any{"subTypeName": "", "marketPrice": 1.0},
		map[string]any{"subTypeName": strings.Repeat("x", MaxSubTypeNameLen+1), "marketPrice": 1.0},
		map[string]any{"subTypeName": "Negative", "marketPrice": -3.0},
		map[string]any{"subTypeName": "Stringly", "marketPrice": "3.00"},
		map[string]any{"subTypeName": 7, "marketPrice": 3.0},
		map[string]any{"subTypeName": "Normal", "marketPrice": 0.99},
	}

	got := ExtractMarketPrices(raw)
	want := PriceVariantsMap{"Normal": 0.99}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMarketPrices() = %v, want %v", got, want)
	}
}

func TestExtractMarketPricesOversizedText(t *testing.T) {
	var b strings.Builder
	b.WriteString(`[{"subTypeName":"Normal","marketPrice":1}`)
	for b.Len() <= MaxRawPayloadChars {
		b.WriteString(`,{"subTypeName":"Filler","marketPrice":1}`)
	}
	b.WriteString("]")

	got, status := ExtractMarketPricesWithStatus(b.String())
	if got != nil {
		t.Errorf("expected nil for oversized payload, got %v", got)
	}
	if status != ExtractOversized {
		t.Errorf("status = %s, want %s", status, ExtractOversized)
	}
}

func TestExtractMarketPricesCapsElementCount(t *testing.T) {
	raw := make([]RawPriceRecord, 0, MaxRawRecords+1)
	for i := 0; i < MaxRawRecords; i++ {
		raw = append(raw, RawPriceRecord{SubTypeName: "Filler", MarketPrice: 0})
	}
	raw = append(raw, RawPriceRecord{SubTypeName: "Late", MarketPrice: 9.99})

	if got := ExtractMarketPrices(raw); got != nil {
		t.Errorf("element past the cap should be ignored, got %v", got)
	}
}

func TestExtractMarketPricesReservedKeys(t *testing.T) {
	text := `[
		{"subTypeName":"__proto__","marketPrice":5},
		{"subTypeName":"constructor","marketPrice":5},
		{"subTypeName":"Normal","marketPrice":1,"__proto__":{"polluted":true}}
	]`

	got := ExtractMarketPrices(text)
	want := PriceVariantsMap{"Normal": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMarketPrices() = %v, want %v", got, want)
	}
}

func TestExtractMarketPricesSanitizesPattern(t *testing.T) {
	raw := []RawPriceRecord{
		{SubTypeName: "Normal", MarketPrice: 1, VariantPattern: `<script>"x"</script>`},
		{SubTypeName: "Holofoil", MarketPrice: 2, VariantPattern: "  energy_symbol  "},
	}

	got := ExtractMarketPrices(raw)
	for key := range got {
		if strings.ContainsAny(key, `<>"'&`) {
			t.Errorf("key %q contains unsafe characters", key)
		}
	}
	if _, ok := got["Holofoil (Energy Symbol)"]; !ok {
		t.Errorf("expected title-cased pattern label, got %v", got)
	}
}

func TestExtractMarketPricesIsIdempotent(t *testing.T) {
	text := `[{"subTypeName":"Normal","marketPrice":0.15},{"subTypeName":"Holofoil","marketPrice":1.3}]`

	first := ExtractMarketPrices(text)
	second := ExtractMarketPrices(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated extraction differs: %v vs %v", first, second)
	}
}

func TestExtractMarketPricesAllPositive(t *testing.T) {
	raw := []RawPriceRecord{
		{SubTypeName: "A", MarketPrice: 0},
		{SubTypeName: "B", MarketPrice: 0.01},
		{SubTypeName: "C", MarketPrice: -1},
		{SubTypeName: "D", MarketPrice: 100},
	}
	for key, price := range ExtractMarketPrices(raw) {
		if price <= 0 {
			t.Errorf("%s has non-positive price %f", key, price)
		}
	}
}

func TestExtractStatus(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want ExtractStatus
	}{
		{"nil", nil, ExtractEmpty},
		{"garbage", "{{", ExtractMalformed},
		{"object", `{"a":1}`, ExtractMalformed},
		{"no valid entries", `[{"subTypeName":"Normal","marketPrice":0}]`, ExtractEmpty},
		{"ok", `[{"subTypeName":"Normal","marketPrice":1}]`, ExtractOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := ExtractMarketPricesWithStatus(tt.raw); got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPatternLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"poke_ball", "Poké Ball"},
		{"master_ball", "Master Ball"},
		{"base", ""},
		{"", ""},
		{"  ", ""},
		{"energy_symbol", "Energy Symbol"},
		{"cosmos-holo", "Cosmos Holo"},
	}

	for _, tt := range tests {
		if got := PatternLabel(tt.in); got != tt.want {
			t.Errorf("PatternLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizePatternLengthCap(t *testing.T) {
	got := SanitizePattern(strings.Repeat("a", MaxPatternLen*2))
	if len([]rune(got)) != MaxPatternLen {
		t.Errorf("SanitizePattern length = %d, want %d", len([]rune(got)), MaxPatternLen)
	}
}

func TestClassifyPattern(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Pikachu (Master Ball Pattern)", "master_ball"},
		{"Bulbasaur (Poke Ball Pattern)", "poke_ball"},
		{"Squirtle (Poké Ball Pattern)", "poke_ball"},
		{"Charmander - Pokeball Reverse", "poke_ball"},
		{"Mew ex", BasePattern},
	}
	for _, tt := range tests {
		if got := ClassifyPattern(tt.name); got != tt.want {
			t.Errorf("ClassifyPattern(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
