package models

import (
	"time"

	"github.com/codyseavey/tcg-portfolio/internal/pricing"
)

type CollectionItem struct {
	ID             uint              `json:"id" gorm:"primaryKey;autoIncrement"`
	CardID         string            `json:"card_id" gorm:"not null;index"`
	Card           Card              `json:"card" gorm:"foreignKey:CardID"`
	Quantity       int               `json:"quantity" gorm:"default:1"`
	Variant        pricing.Variant   `json:"variant" gorm:"default:'normal'"`
	Condition      pricing.Condition `json:"condition" gorm:"default:'near_mint'"`
	VariantPattern string            `json:"variant_pattern" gorm:"not null;default:''"`
	Notes          string            `json:"notes"`
	AddedAt        time.Time         `json:"added_at"`
}

// Entry is the part of the item the price resolver works with
func (i *CollectionItem) Entry() pricing.CollectionEntry {
	return pricing.CollectionEntry{
		Variant:        i.Variant,
		Condition:      i.Condition,
		VariantPattern: PatternPtr(i.VariantPattern),
		Quantity:       i.Quantity,
	}
}

type CollectionStats struct {
	TotalCards    int     `json:"total_cards"`
	UniqueCards   int     `json:"unique_cards"`
	TotalValue    float64 `json:"total_value"`
	PricedItems   int     `json:"priced_items"`
	UnpricedItems int     `json:"unpriced_items"`
}

type AddToCollectionRequest struct {
	CardID         string            `json:"card_id" binding:"required"`
	Quantity       int               `json:"quantity"`
	Variant        pricing.Variant   `json:"variant"`
	Condition      pricing.Condition `json:"condition"`
	VariantPattern *string           `json:"variant_pattern"`
	Notes          string            `json:"notes"`
}

type UpdateCollectionRequest struct {
	Quantity       *int               `json:"quantity"`
	Variant        *pricing.Variant   `json:"variant"`
	Condition      *pricing.Condition `json:"condition"`
	VariantPattern *string            `json:"variant_pattern"`
	Notes          *string            `json:"notes"`
}

// CollectionUpdateResponse includes the updated item plus operation info
type CollectionUpdateResponse struct {
	Item      CollectionItem `json:"item"`
	Operation string         `json:"operation"` // "updated", "split", "merged"
	Message   string         `json:"message,omitempty"`
}

// ValuedCollectionItem is a collection item with its resolved price
type ValuedCollectionItem struct {
	CollectionItem
	Price       *float64            `json:"price"`
	PriceSource pricing.PriceSource `json:"price_source"`
	Value       float64             `json:"value"`
	DisplayName string              `json:"display_name"`
}
