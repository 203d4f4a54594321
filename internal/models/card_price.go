package models

import (
	"bytes"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/codyseavey/tcg-portfolio/internal/pricing"
)

// CardPriceRecord is the synced pricing snapshot for one card and one variant
// pattern. VariantPattern is "" for the base card; the unique index keeps at
// most one row per (card, pattern).
type CardPriceRecord struct {
	ID                          uint           `json:"id" gorm:"primaryKey"`
	CardID                      string         `json:"card_id" gorm:"not null;uniqueIndex:idx_card_variant_pattern"`
	VariantPattern              string         `json:"variant_pattern" gorm:"not null;default:'';uniqueIndex:idx_card_variant_pattern"`
	TCGPlayerProductID          string         `json:"tcgplayer_product_id" gorm:"column:tcgplayer_product_id"`
	CurrentMarketPrice          *float64       `json:"current_market_price"`
	CurrentMarketPriceCondition string         `json:"current_market_price_condition"`
	PricesRaw                   datatypes.JSON `json:"prices_raw,omitempty"`
	PSA10                       datatypes.JSON `json:"psa10,omitempty" gorm:"column:psa10"`
	PSA9                        datatypes.JSON `json:"psa9,omitempty" gorm:"column:psa9"`
	PSA8                        datatypes.JSON `json:"psa8,omitempty" gorm:"column:psa8"`
	RawHistory7d                datatypes.JSON `json:"raw_history_7d,omitempty" gorm:"column:raw_history_7d"`
	RawHistory30d               datatypes.JSON `json:"raw_history_30d,omitempty" gorm:"column:raw_history_30d"`
	RawHistory90d               datatypes.JSON `json:"raw_history_90d,omitempty" gorm:"column:raw_history_90d"`
	RawHistory180d              datatypes.JSON `json:"raw_history_180d,omitempty" gorm:"column:raw_history_180d"`
	RawHistory365d              datatypes.JSON `json:"raw_history_365d,omitempty" gorm:"column:raw_history_365d"`
	RawHistoryVariantsTracked   datatypes.JSON `json:"raw_history_variants_tracked,omitempty"`
	RawHistoryConditionsTracked datatypes.JSON `json:"raw_history_conditions_tracked,omitempty"`
	EbayPriceHistory            datatypes.JSON `json:"ebay_price_history,omitempty"`
	Change7dPercent             *float64       `json:"change_7d_percent" gorm:"column:change_7d_percent"`
	Change30dPercent            *float64       `json:"change_30d_percent" gorm:"column:change_30d_percent"`
	Change90dPercent            *float64       `json:"change_90d_percent" gorm:"column:change_90d_percent"`
	Change180dPercent           *float64       `json:"change_180d_percent" gorm:"column:change_180d_percent"`
	Change365dPercent           *float64       `json:"change_365d_percent" gorm:"column:change_365d_percent"`
	PriceUpdatedAt              *time.Time     `json:"price_updated_at"`
	CreatedAt                   time.Time      `json:"created_at"`
	UpdatedAt                   time.Time      `json:"updated_at"`
}

// NormalizePattern maps the API/feed forms of "no pattern" (nil, "", "base")
// to the stored base value "" and sanitizes everything else.
func NormalizePattern(p *string) string {
	if p == nil {
		return ""
	}
	cleaned := pricing.SanitizePattern(*p)
	if cleaned == pricing.BasePattern {
		return ""
	}
	return cleaned
}

// PatternPtr is the inverse of NormalizePattern: "" becomes nil
func PatternPtr(stored string) *string {
	if stored == "" || stored == pricing.BasePattern {
		return nil
	}
	p := stored
	return &p
}

func (r *CardPriceRecord) historyColumn(w pricing.Window) *datatypes.JSON {
	switch w {
	case pricing.Window7D:
		return &r.RawHistory7d
	case pricing.Window30D:
		return &r.RawHistory30d
	case pricing.Window90D:
		return &r.RawHistory90d
	case pricing.Window180D:
		return &r.RawHistory180d
	default:
		return &r.RawHistory365d
	}
}

func (r *CardPriceRecord) changeColumn(w pricing.Window) **float64 {
	switch w {
	case pricing.Window7D:
		return &r.Change7dPercent
	case pricing.Window30D:
		return &r.Change30dPercent
	case pricing.Window90D:
		return &r.Change90dPercent
	case pricing.Window180D:
		return &r.Change180dPercent
	default:
		return &r.Change365dPercent
	}
}

func (r *CardPriceRecord) gradeColumn(g pricing.Grade) *datatypes.JSON {
	switch g {
	case pricing.GradePSA10:
		return &r.PSA10
	case pricing.GradePSA9:
		return &r.PSA9
	default:
		return &r.PSA8
	}
}

// ChangePercent returns the stored percent change for a window
func (r *CardPriceRecord) ChangePercent(w pricing.Window) *float64 {
	return *r.changeColumn(w)
}

// SetChanges stores precomputed window changes; missing windows become NULL
func (r *CardPriceRecord) SetChanges(changes map[pricing.Window]float64) {
	for _, w := range pricing.AllWindows() {
		col := r.changeColumn(w)
		if v, ok := changes[w]; ok {
			*col = &v
		} else {
			*col = nil
		}
	}
}

// ToPricing converts the stored row into the pricing core's record. Columns
// that are missing or fail to decode are left empty.
func (r *CardPriceRecord) ToPricing() pricing.PriceRecord {
	rec := pricing.PriceRecord{
		VariantPattern:              PatternPtr(r.VariantPattern),
		CurrentMarketPrice:          r.CurrentMarketPrice,
		CurrentMarketPriceCondition: r.CurrentMarketPriceCondition,
	}

	var raw pricing.RawPrices
	if decodeJSON(r.PricesRaw, &raw) {
		rec.PricesRaw = &raw
	}

	for _, g := range []pricing.Grade{pricing.GradePSA10, pricing.GradePSA9, pricing.GradePSA8} {
		var summary pricing.GradeSummary
		if decodeJSON(*r.gradeColumn(g), &summary) {
			if rec.Grades == nil {
				rec.Grades = make(map[pricing.Grade]pricing.GradeSummary)
			}
			rec.Grades[g] = summary
		}
	}

	for _, w := range pricing.AllWindows() {
		var history pricing.VariantConditionHistory
		if decodeJSON(*r.historyColumn(w), &history) && len(history) > 0 {
			if rec.RawHistory == nil {
				rec.RawHistory = make(map[pricing.Window]pricing.VariantConditionHistory)
			}
			rec.RawHistory[w] = history
		}
	}

	decodeJSON(r.RawHistoryVariantsTracked, &rec.VariantsTracked)
	decodeJSON(r.RawHistoryConditionsTracked, &rec.ConditionsTracked)

	var ebay pricing.GradeHistory
	if decodeJSON(r.EbayPriceHistory, &ebay) && len(ebay) > 0 {
		rec.EbayPriceHistory = ebay
	}
	return rec
}

// SetHistory stores one history window
func (r *CardPriceRecord) SetHistory(w pricing.Window, history pricing.VariantConditionHistory) {
	*r.historyColumn(w) = EncodeJSON(history)
}

// SetGrade stores one graded summary column from the feed's raw JSON
func (r *CardPriceRecord) SetGrade(g pricing.Grade, raw json.RawMessage) {
	*r.gradeColumn(g) = rawColumn(raw)
}

// EncodeJSON marshals v for a JSON column. Empty maps/slices and nil are
// stored as NULL.
func EncodeJSON[T any](v T) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return rawColumn(b)
}

func rawColumn(b []byte) datatypes.JSON {
	trimmed := bytes.TrimSpace(b)
	switch string(trimmed) {
	case "", "null", "{}", "[]":
		return nil
	}
	return datatypes.JSON(trimmed)
}

// decodeJSON decodes a JSON column into dst, tolerating a value that was
// stored JSON-encoded a second time as a string.
func decodeJSON(col datatypes.JSON, dst any) bool {
	data := bytes.TrimSpace(col)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return false
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return false
		}
		data = []byte(inner)
	}
	return json.Unmarshal(data, dst) == nil
}
