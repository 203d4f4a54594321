package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/codyseavey/tcg-portfolio/internal/pricing"
)

type Card struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null;index"`
	SetID       string `json:"set_id" gorm:"index"`
	SetName     string `json:"set_name"`
	CardNumber  string `json:"card_number"`
	Rarity      string `json:"rarity"`
	ImageURL    string `json:"image_url"`
	TCGPlayerID string `json:"tcgplayer_id" gorm:"index"`
	// TCGPlayerPrices is the raw per-variant price array from the catalog.
	// Older rows hold it JSON-encoded a second time as a string.
	TCGPlayerPrices datatypes.JSON `json:"tcgplayer_prices,omitempty"`
	PriceUpdatedAt  *time.Time     `json:"price_updated_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// MarketPrices extracts the variant -> market price map from TCGPlayerPrices
func (c *Card) MarketPrices() (pricing.PriceVariantsMap, pricing.ExtractStatus) {
	if len(c.TCGPlayerPrices) == 0 {
		return nil, pricing.ExtractEmpty
	}
	return pricing.ExtractMarketPricesWithStatus(json.RawMessage(c.TCGPlayerPrices))
}

type CardSearchResult struct {
	Cards      []Card `json:"cards"`
	TotalCount int    `json:"total_count"`
	HasMore    bool   `json:"has_more"`
}
