package pricing

// Grade identifies a professional grade bucket in the feed ("psa10", ...)
type Grade string

const (
	GradePSA10 Grade = "psa10"
	GradePSA9  Grade = "psa9"
	GradePSA8  Grade = "psa8"
)

// Window is a pre-sliced history window, in days
type Window int

const (
	Window7D   Window = 7
	Window30D  Window = 30
	Window90D  Window = 90
	Window180D Window = 180
	Window365D Window = 365
)

// AllWindows returns the history windows the feed is sliced into, shortest first
func AllWindows() []Window {
	return []Window{Window7D, Window30D, Window90D, Window180D, Window365D}
}

// WindowFor returns the smallest stored window covering days
func WindowFor(days int) Window {
	for _, w := range AllWindows() {
		if int(w) >= days {
			return w
		}
	}
	return Window365D
}

// ConditionQuote is a single variant/condition price in prices_raw
type ConditionQuote struct {
	Price    *float64 `json:"price,omitempty"`
	Listings *int     `json:"listings,omitempty"`
}

// RawPrices is the nested prices_raw blob of a price record
type RawPrices struct {
	Market   *float64                             `json:"market,omitempty"`
	Variants map[string]map[string]ConditionQuote `json:"variants,omitempty"`
}

// SmartMarketPrice is the feed's confidence-scored estimate for a grade
type SmartMarketPrice struct {
	Price      *float64 `json:"price,omitempty"`
	Confidence string   `json:"confidence,omitempty"`
}

// GradeSummary is the psa10/psa9/psa8 aggregate of recent graded sales
type GradeSummary struct {
	SmartMarketPrice *SmartMarketPrice `json:"smartMarketPrice,omitempty"`
	AvgPrice         *float64          `json:"avgPrice,omitempty"`
	MedianPrice      *float64          `json:"medianPrice,omitempty"`
	Count            *int              `json:"count,omitempty"`
}

// HeadlinePrice is the quoted price for a grade: smart market price, else average.
func (g GradeSummary) HeadlinePrice() (float64, bool) {
	if g.SmartMarketPrice != nil && g.SmartMarketPrice.Price != nil {
		return *g.SmartMarketPrice.Price, true
	}
	if g.AvgPrice != nil {
		return *g.AvgPrice, true
	}
	return 0, false
}

// HistoryEntry is one dated raw (ungraded) price observation
type HistoryEntry struct {
	Date   string   `json:"date"`
	Market *float64 `json:"market,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Mid    *float64 `json:"mid,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Volume *int     `json:"volume,omitempty"`
}

// VariantConditionHistory is variant -> condition -> dated entries
type VariantConditionHistory map[string]map[string][]HistoryEntry

// GradeAggregate is one day of graded sales for a single grade
type GradeAggregate struct {
	Average         *float64 `json:"average,omitempty"`
	SevenDayAverage *float64 `json:"sevenDayAverage,omitempty"`
	Count           *int     `json:"count,omitempty"`
}

// GradeHistory is grade -> date -> aggregate, sparse and unordered
type GradeHistory map[Grade]map[string]GradeAggregate

// PriceRecord is the per variant-pattern pricing snapshot for one card.
// A nil VariantPattern is the base card.
type PriceRecord struct {
	VariantPattern              *string
	CurrentMarketPrice          *float64
	CurrentMarketPriceCondition string
	PricesRaw                   *RawPrices
	Grades                      map[Grade]GradeSummary
	RawHistory                  map[Window]VariantConditionHistory
	VariantsTracked             []string
	ConditionsTracked           []string
	EbayPriceHistory            GradeHistory
}

// CollectionEntry is the part of a collection item the resolver needs
type CollectionEntry struct {
	Variant        Variant
	Condition      Condition
	VariantPattern *string
	Quantity       int
}

// EffectiveQuantity treats a missing or non-positive quantity as one copy
func (e CollectionEntry) EffectiveQuantity() int {
	if e.Quantity < 1 {
		return 1
	}
	return e.Quantity
}
