package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/tcg-portfolio/internal/config"
	"github.com/codyseavey/tcg-portfolio/internal/database"
	"github.com/codyseavey/tcg-portfolio/internal/models"
	"github.com/codyseavey/tcg-portfolio/internal/pricing"
)

func fp(v float64) *float64 {
	return &v
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestPriceService(db *gorm.DB) *PriceService {
	return NewPriceService(db, config.PricingConfig{
		GradingFeeUSD:            pricing.DefaultGradingFeeUSD,
		VarianceThresholdPercent: pricing.DefaultVarianceThresholdPercent,
		PriceThresholdUSD:        pricing.DefaultPriceThresholdUSD,
		CacheSize:                64,
	}, PriceStalenessThreshold)
}

// normalQuote builds a price record with a single Normal/Near Mint quote
func normalQuote(cardID, pattern string, price float64, updatedAt time.Time) models.CardPriceRecord {
	rec := models.CardPriceRecord{
		CardID:                      cardID,
		VariantPattern:              pattern,
		CurrentMarketPrice:          fp(price - 2),
		CurrentMarketPriceCondition: string(pricing.PriceConditionNearMint),
		PriceUpdatedAt:              &updatedAt,
	}
	rec.PricesRaw = models.EncodeJSON(pricing.RawPrices{
		Variants: map[string]map[string]pricing.ConditionQuote{
			"Normal": {"Near Mint": {Price: fp(price)}},
		},
	})
	return rec
}

func createCard(t *testing.T, db *gorm.DB, card models.Card) {
	t.Helper()
	require.NoError(t, db.Create(&card).Error)
}

func createItem(t *testing.T, db *gorm.DB, item models.CollectionItem) models.CollectionItem {
	t.Helper()
	if item.Variant == "" {
		item.Variant = pricing.VariantNormal
	}
	if item.Condition == "" {
		item.Condition = pricing.ConditionNearMint
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}
