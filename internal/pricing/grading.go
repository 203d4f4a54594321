package pricing

import "sort"

// GradingTier classifies whether sending a card for grading is expected to pay off
type GradingTier string

const (
	// TierSafeBet is profitable at both the conservative (PSA 9) and optimistic (PSA 10) outcome
	TierSafeBet GradingTier = "SAFE_BET"
	// TierGamble is profitable only at PSA 10
	TierGamble GradingTier = "GAMBLE"
	TierNone   GradingTier = "NONE"
)

func (t GradingTier) rank() int {
	switch t {
	case TierSafeBet:
		return 0
	case TierGamble:
		return 1
	default:
		return 2
	}
}

// GradingEconomics is the profit picture of grading one raw copy
type GradingEconomics struct {
	MarketPrice float64     `json:"market_price"`
	GradingFee  float64     `json:"grading_fee"`
	PSA10Price  *float64    `json:"psa10_price"`
	PSA9Price   *float64    `json:"psa9_price"`
	PSA8Price   *float64    `json:"psa8_price"`
	ProfitPSA10 *float64    `json:"profit_psa10"`
	ProfitPSA9  *float64    `json:"profit_psa9"`
	ProfitPSA8  *float64    `json:"profit_psa8"`
	ROIPercent  *float64    `json:"roi_percent"`
	Tier        GradingTier `json:"tier"`
}

// ClassifyGrading derives the tier from already computed profits
func ClassifyGrading(profitPSA10, profitPSA9 *float64) GradingTier {
	if profitPSA10 == nil || *profitPSA10 <= 0 {
		return TierNone
	}
	if profitPSA9 != nil && *profitPSA9 > 0 {
		return TierSafeBet
	}
	return TierGamble
}

// EvaluateGrading computes profit_at_psaN = psaN - market - fee for each grade
// with a headline price. The second return is false when the raw market
// price is missing, since nothing can be computed without it.
func EvaluateGrading(marketPrice float64, grades map[Grade]GradeSummary, fee float64) (GradingEconomics, bool) {
	if marketPrice <= 0 {
		return GradingEconomics{Tier: TierNone}, false
	}
	econ := GradingEconomics{MarketPrice: marketPrice, GradingFee: fee}

	profit := func(g Grade) (*float64, *float64) {
		summary, ok := grades[g]
		if !ok {
			return nil, nil
		}
		price, ok := summary.HeadlinePrice()
		if !ok || price <= 0 {
			return nil, nil
		}
		p := price - marketPrice - fee
		return &price, &p
	}
	econ.PSA10Price, econ.ProfitPSA10 = profit(GradePSA10)
	econ.PSA9Price, econ.ProfitPSA9 = profit(GradePSA9)
	econ.PSA8Price, econ.ProfitPSA8 = profit(GradePSA8)

	if econ.ProfitPSA10 != nil {
		if cost := marketPrice + fee; cost > 0 {
			roi := *econ.ProfitPSA10 / cost * 100
			econ.ROIPercent = &roi
		}
	}
	econ.Tier = ClassifyGrading(econ.ProfitPSA10, econ.ProfitPSA9)
	return econ, true
}

// GradingCandidate is a card with its grading economics
type GradingCandidate struct {
	CardID    string           `json:"card_id"`
	Name      string           `json:"name"`
	Economics GradingEconomics `json:"economics"`
}

// GradingOpportunities keeps SAFE_BET and GAMBLE candidates and orders them
// by tier first, then by PSA 10 profit descending. Ties keep input order.
func GradingOpportunities(candidates []GradingCandidate, n int) []GradingCandidate {
	out := make([]GradingCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Economics.Tier == TierNone || c.Economics.ProfitPSA10 == nil {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Economics.Tier.rank(), out[j].Economics.Tier.rank()
		if ri != rj {
			return ri < rj
		}
		return *out[i].Economics.ProfitPSA10 > *out[j].Economics.ProfitPSA10
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
