package pricing

import (
	"sort"
)

// PriceSource records which rule of the resolver produced a price
type PriceSource string

const (
	SourceExact         PriceSource = "exact"
	SourceCurrentMarket PriceSource = "current_market"
	SourceMarketAverage PriceSource = "market_average"
	SourceNone          PriceSource = "none"
)

// Resolution is the resolver's answer plus the rule that produced it
type Resolution struct {
	Price  float64
	Source PriceSource
}

// Found reports whether a price was resolved
func (r Resolution) Found() bool {
	return r.Source != SourceNone
}

func samePattern(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FindRecord returns the record for exactly this variant pattern, or nil.
// There is no fallback to another pattern's record.
func FindRecord(records []PriceRecord, pattern *string) *PriceRecord {
	for i := range records {
		if samePattern(records[i].VariantPattern, pattern) {
			return &records[i]
		}
	}
	return nil
}

// ResolvePrice returns the current price of a collection entry.
// The second return is false when no price is available.
func ResolvePrice(records []PriceRecord, entry CollectionEntry) (float64, bool) {
	r := ResolvePriceDetailed(records, entry)
	return r.Price, r.Found()
}

// ResolvePriceDetailed resolves a price in strict priority order:
// exact variant/condition quote, record's current market price,
// then the cross-variant market average.
func ResolvePriceDetailed(records []PriceRecord, entry CollectionEntry) Resolution {
	rec := FindRecord(records, entry.VariantPattern)
	if rec == nil {
		return Resolution{Source: SourceNone}
	}

	if price, ok := rec.QuotedPrice(MapVariant(entry.Variant), rec.ConditionFor(entry.Condition)); ok {
		return Resolution{Price: price, Source: SourceExact}
	}
	if rec.CurrentMarketPrice != nil && *rec.CurrentMarketPrice > 0 {
		return Resolution{Price: *rec.CurrentMarketPrice, Source: SourceCurrentMarket}
	}
	if rec.PricesRaw != nil && rec.PricesRaw.Market != nil && *rec.PricesRaw.Market > 0 {
		return Resolution{Price: *rec.PricesRaw.Market, Source: SourceMarketAverage}
	}
	return Resolution{Source: SourceNone}
}

// ConditionFor maps a collection condition to the record's condition key.
// Unknown conditions use the condition the record's market price belongs to.
func (r *PriceRecord) ConditionFor(c Condition) PriceCondition {
	if mapped, ok := MapCondition(c); ok {
		return mapped
	}
	if r.CurrentMarketPriceCondition != "" {
		return PriceCondition(r.CurrentMarketPriceCondition)
	}
	return PriceConditionNearMint
}

// QuotedPrice looks up prices_raw.variants[variant][condition].price
func (r *PriceRecord) QuotedPrice(variant PriceVariant, condition PriceCondition) (float64, bool) {
	if r.PricesRaw == nil || r.PricesRaw.Variants == nil {
		return 0, false
	}
	conditions, ok := r.PricesRaw.Variants[string(variant)]
	if !ok {
		return 0, false
	}
	quote, ok := conditions[string(condition)]
	if !ok || quote.Price == nil || *quote.Price <= 0 {
		return 0, false
	}
	return *quote.Price, true
}

// MarketPrices flattens a set of records into a PriceVariantsMap using the
// near-mint quote of every variant, keyed like the extractor keys them.
func MarketPrices(records []PriceRecord) PriceVariantsMap {
	out := make(PriceVariantsMap)
	for i := range records {
		rec := &records[i]
		pattern := ""
		if rec.VariantPattern != nil {
			pattern = *rec.VariantPattern
		}
		if rec.PricesRaw == nil {
			continue
		}
		for variant := range rec.PricesRaw.Variants {
			if price, ok := rec.QuotedPrice(PriceVariant(variant), PriceConditionNearMint); ok {
				out[VariantKey(variant, pattern)] = price
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// VariantOption lets a client pick "Normal" under the base record apart
// from "Normal" under a stamped record.
type VariantOption struct {
	DisplayName   string  `json:"display_name"`
	VariantKey    string  `json:"variant_key"`
	SourcePattern *string `json:"source_pattern"`
}

var variantOrder = map[string]int{
	string(PriceVariantNormal):               0,
	string(PriceVariantHolofoil):             1,
	string(PriceVariantReverseHolofoil):      2,
	string(PriceVariantFirstEditionHolofoil): 3,
}

// VariantOptions lists every priced variant across records. Base record
// options come first, then patterns alphabetically; variants within a
// record follow the feed's usual ordering.
func VariantOptions(records []PriceRecord) []VariantOption {
	sorted := make([]*PriceRecord, 0, len(records))
	for i := range records {
		if records[i].PricesRaw != nil && len(records[i].PricesRaw.Variants) > 0 {
			sorted = append(sorted, &records[i])
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].VariantPattern, sorted[j].VariantPattern
		if pi == nil || pj == nil {
			return pi == nil && pj != nil
		}
		return *pi < *pj
	})

	var options []VariantOption
	for _, rec := range sorted {
		names := make([]string, 0, len(rec.PricesRaw.Variants))
		for name := range rec.PricesRaw.Variants {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			oi, iok := variantOrder[names[i]]
			oj, jok := variantOrder[names[j]]
			switch {
			case iok && jok:
				return oi < oj
			case iok != jok:
				return iok
			default:
				return names[i] < names[j]
			}
		})

		pattern := ""
		if rec.VariantPattern != nil {
			pattern = *rec.VariantPattern
		}
		for _, name := range names {
			options = append(options, VariantOption{
				DisplayName:   VariantKey(name, pattern),
				VariantKey:    name,
				SourcePattern: rec.VariantPattern,
			})
		}
	}
	return options
}
