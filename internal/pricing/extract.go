package pricing

import (
	"bytes"
	"encoding/json"
	"math"
	"unicode/utf8"
)

// RawPriceRecord is one sellable sub-variant as delivered by the pricing feed
type RawPriceRecord struct {
	SubTypeName    string  `json:"subTypeName"`
	MarketPrice    float64 `json:"marketPrice"`
	LowPrice       float64 `json:"lowPrice"`
	MidPrice       float64 `json:"midPrice"`
	HighPrice      float64 `json:"highPrice"`
	DirectLowPrice float64 `json:"directLowPrice"`
	VariantPattern string  `json:"variantPattern,omitempty"`
}

// PriceVariantsMap maps a variant key (sub-type plus optional pattern label)
// to a strictly positive market price.
type PriceVariantsMap map[string]float64

// ExtractStatus explains why extraction produced what it did. It is only
// meant for telemetry; callers of ExtractMarketPrices only ever see nil.
type ExtractStatus string

const (
	ExtractOK        ExtractStatus = "ok"
	ExtractEmpty     ExtractStatus = "empty"
	ExtractMalformed ExtractStatus = "malformed"
	ExtractOversized ExtractStatus = "oversized"
)

var reservedKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

func isReservedKey(k string) bool {
	_, ok := reservedKeys[k]
	return ok
}

// ExtractMarketPrices normalizes a raw per-card price payload into a
// variant -> market price map. Returns nil when no usable price exists.
func ExtractMarketPrices(raw any) PriceVariantsMap {
	prices, _ := ExtractMarketPricesWithStatus(raw)
	return prices
}

// ExtractMarketPricesWithStatus is ExtractMarketPrices plus the reason for the result
func ExtractMarketPricesWithStatus(raw any) (PriceVariantsMap, ExtractStatus) {
	switch v := raw.(type) {
	case nil:
		return nil, ExtractEmpty
	case string:
		return extractFromText([]byte(v), true)
	case []byte:
		return extractFromText(v, true)
	case json.RawMessage:
		return extractFromText(v, true)
	case []RawPriceRecord:
		return extractTyped(v)
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return extractGeneric(items)
	case []any:
		return extractGeneric(v)
	default:
		return nil, ExtractMalformed
	}
}

// extractFromText parses JSON text. A payload that decodes to a JSON string
// (double encoding) is decoded one more time when allowNested is set.
func extractFromText(text []byte, allowNested bool) (PriceVariantsMap, ExtractStatus) {
	if utf8.RuneCount(text) > MaxRawPayloadChars {
		return nil, ExtractOversized
	}
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ExtractEmpty
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, ExtractMalformed
	}
	if dec.More() {
		return nil, ExtractMalformed
	}

	switch v := decoded.(type) {
	case []any:
		return extractGeneric(scrubReserved(v).([]any))
	case string:
		if allowNested {
			return extractFromText([]byte(v), false)
		}
	}
	return nil, ExtractMalformed
}

// scrubReserved removes prototype-sensitive keys from every decoded object
func scrubReserved(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if isReservedKey(k) {
				delete(t, k)
				continue
			}
			t[k] = scrubReserved(child)
		}
		return t
	case []any:
		for i := range t {
			t[i] = scrubReserved(t[i])
		}
		return t
	default:
		return v
	}
}

func extractGeneric(items []any) (PriceVariantsMap, ExtractStatus) {
	if len(items) > MaxRawRecords {
		items = items[:MaxRawRecords]
	}
	out := make(PriceVariantsMap)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, ok := obj["subTypeName"].(string)
		if !ok {
			continue
		}
		price, ok := toFloat(obj["marketPrice"])
		if !ok {
			continue
		}
		pattern, _ := obj["variantPattern"].(string)
		addPrice(out, name, price, pattern)
	}
	return finish(out)
}

func extractTyped(records []RawPriceRecord) (PriceVariantsMap, ExtractStatus) {
	if len(records) > MaxRawRecords {
		records = records[:MaxRawRecords]
	}
	out := make(PriceVariantsMap)
	for _, r := range records {
		addPrice(out, r.SubTypeName, r.MarketPrice, r.VariantPattern)
	}
	return finish(out)
}

func addPrice(out PriceVariantsMap, name string, price float64, pattern string) {
	if name == "" || utf8.RuneCountInString(name) > MaxSubTypeNameLen {
		return
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return
	}
	// zero is a valid feed value but means "no price"
	if price == 0 {
		return
	}
	key := VariantKey(name, pattern)
	if isReservedKey(key) {
		return
	}
	out[key] = price
}

func finish(out PriceVariantsMap) (PriceVariantsMap, ExtractStatus) {
	if len(out) == 0 {
		return nil, ExtractEmpty
	}
	return out, ExtractOK
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
