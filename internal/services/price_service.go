package services

import (
	"fmt"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/tcg-portfolio/internal/config"
	"github.com/codyseavey/tcg-portfolio/internal/metrics"
	"github.com/codyseavey/tcg-portfolio/internal/models"
	"github.com/codyseavey/tcg-portfolio/internal/pricing"
)

const (
	// PriceStalenessThreshold is how old a price can be before it's considered stale
	PriceStalenessThreshold = 24 * time.Hour

	defaultCacheSize = 2048
)

// priceRecordColumns are overwritten when a synced record replaces an existing one
var priceRecordColumns = []string{
	"tcgplayer_product_id",
	"current_market_price",
	"current_market_price_condition",
	"prices_raw",
	"psa10", "psa9", "psa8",
	"raw_history_7d", "raw_history_30d", "raw_history_90d", "raw_history_180d", "raw_history_365d",
	"raw_history_variants_tracked",
	"raw_history_conditions_tracked",
	"ebay_price_history",
	"change_7d_percent", "change_30d_percent", "change_90d_percent", "change_180d_percent", "change_365d_percent",
	"price_updated_at",
	"updated_at",
}

// PriceService answers every pricing question from the stored price records.
// It never calls the feed; PriceSyncWorker keeps the records current.
type PriceService struct {
	db         *gorm.DB
	cache      *lru.Cache[string, []pricing.PriceRecord]
	staleAfter time.Duration
	gradingFee float64
	thresholds pricing.DisplayThresholds
	now        func() time.Time
}

// NewPriceService creates a new price service
func NewPriceService(db *gorm.DB, cfg config.PricingConfig, staleAfter time.Duration) *PriceService {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []pricing.PriceRecord](size)
	if err != nil {
		log.Fatalf("Price service: failed to create record cache: %v", err)
	}
	if staleAfter <= 0 {
		staleAfter = PriceStalenessThreshold
	}
	fee := cfg.GradingFeeUSD
	if fee <= 0 {
		fee = pricing.DefaultGradingFeeUSD
	}
	return &PriceService{
		db:         db,
		cache:      cache,
		staleAfter: staleAfter,
		gradingFee: fee,
		thresholds: cfg.Thresholds(),
		now:        time.Now,
	}
}

// RecordsForCard returns the card's price records, one per variant pattern
func (s *PriceService) RecordsForCard(cardID string) ([]pricing.PriceRecord, error) {
	byCard, err := s.recordsForCards([]string{cardID})
	if err != nil {
		return nil, err
	}
	return byCard[cardID], nil
}

func (s *PriceService) recordsForCards(cardIDs []string) (map[string][]pricing.PriceRecord, error) {
	out := make(map[string][]pricing.PriceRecord, len(cardIDs))
	var missing []string
	seen := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if recs, ok := s.cache.Get(id); ok {
			metrics.PriceCacheLookups.WithLabelValues("hit").Inc()
			out[id] = recs
			continue
		}
		metrics.PriceCacheLookups.WithLabelValues("miss").Inc()
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var rows []models.CardPriceRecord
	if err := s.db.Where("card_id IN ?", missing).Order("card_id, variant_pattern").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load price records: %w", err)
	}
	for i := range rows {
		out[rows[i].CardID] = append(out[rows[i].CardID], rows[i].ToPricing())
	}
	for _, id := range missing {
		// cache the empty result too, so unpriced cards don't hit the DB every time
		s.cache.Add(id, out[id])
	}
	return out, nil
}

// Invalidate drops cached records for a card
func (s *PriceService) Invalidate(cardID string) {
	s.cache.Remove(cardID)
}

// SaveRecords upserts synced price records on (card_id, variant_pattern) and
// refreshes the catalog price array of every touched card.
func (s *PriceService) SaveRecords(records []models.CardPriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	touched := make(map[string]bool)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range records {
			rec := records[i]
			rec.ID = 0
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "card_id"}, {Name: "variant_pattern"}},
				DoUpdates: clause.AssignmentColumns(priceRecordColumns),
			}).Create(&rec).Error
			if err != nil {
				return fmt.Errorf("failed to save price record for %s: %w", rec.CardID, err)
			}
			touched[rec.CardID] = true
		}

		now := s.now()
		for cardID := range touched {
			var rows []models.CardPriceRecord
			if err := tx.Where("card_id = ?", cardID).Find(&rows).Error; err != nil {
				return fmt.Errorf("failed to reload price records for %s: %w", cardID, err)
			}
			updates := models.Card{
				PriceUpdatedAt:  &now,
				TCGPlayerPrices: models.EncodeJSON(RawPriceRecords(rows)),
			}
			if err := tx.Model(&models.Card{}).Where("id = ?", cardID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update card %s: %w", cardID, err)
			}
		}
		return nil
	})

	for cardID := range touched {
		s.Invalidate(cardID)
	}
	return err
}

// NeedsRefresh reports whether a card has no price records or only stale ones
func (s *PriceService) NeedsRefresh(cardID string) bool {
	var newest models.CardPriceRecord
	err := s.db.Where("card_id = ?", cardID).Order("price_updated_at DESC").First(&newest).Error
	if err != nil {
		return true
	}
	return !s.isFresh(newest.PriceUpdatedAt)
}

func (s *PriceService) isFresh(updatedAt *time.Time) bool {
	if updatedAt == nil {
		return false
	}
	return s.now().Sub(*updatedAt) < s.staleAfter
}

// ResolveItem resolves the unit price of one collection item
func (s *PriceService) ResolveItem(item *models.CollectionItem) (pricing.Resolution, error) {
	records, err := s.RecordsForCard(item.CardID)
	if err != nil {
		return pricing.Resolution{Source: pricing.SourceNone}, err
	}
	res := pricing.ResolvePriceDetailed(records, item.Entry())
	metrics.PriceResolutionsTotal.WithLabelValues(string(res.Source)).Inc()
	return res, nil
}

// ValuedItems prices every item and returns the collection totals with them
func (s *PriceService) ValuedItems(items []models.CollectionItem) ([]models.ValuedCollectionItem, models.CollectionStats, error) {
	holdings, err := s.holdings(items)
	if err != nil {
		return nil, models.CollectionStats{}, err
	}

	stats := models.CollectionStats{TotalValue: pricing.CalculateCollectionValue(holdings)}
	unique := make(map[string]bool)
	valued := make([]models.ValuedCollectionItem, len(items))
	for i := range items {
		h := holdings[i]
		qty := h.Entry.EffectiveQuantity()
		stats.TotalCards += qty
		unique[items[i].CardID] = true

		res := pricing.ResolvePriceDetailed(h.Records, h.Entry)
		metrics.PriceResolutionsTotal.WithLabelValues(string(res.Source)).Inc()
		v := models.ValuedCollectionItem{
			CollectionItem: items[i],
			PriceSource:    res.Source,
			DisplayName:    DisplayName(&items[i]),
		}
		if res.Found() {
			price := res.Price
			v.Price = &price
			v.Value = price * float64(qty)
			stats.PricedItems++
		} else {
			stats.UnpricedItems++
		}
		valued[i] = v
	}
	stats.UniqueCards = len(unique)
	return valued, stats, nil
}

// CollectionStats prices the whole collection
func (s *PriceService) CollectionStats() (models.CollectionStats, error) {
	var items []models.CollectionItem
	if err := s.db.Preload("Card").Find(&items).Error; err != nil {
		return models.CollectionStats{}, fmt.Errorf("failed to load collection: %w", err)
	}
	_, stats, err := s.ValuedItems(items)
	if err != nil {
		return stats, err
	}
	metrics.UpdateCollectionMetrics(stats.TotalCards, stats.TotalValue, stats.UnpricedItems)
	return stats, nil
}

// CollectionValue is the total value of the collection
func (s *PriceService) CollectionValue() (float64, error) {
	stats, err := s.CollectionStats()
	return stats.TotalValue, err
}

func (s *PriceService) holdings(items []models.CollectionItem) ([]pricing.Holding, error) {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].CardID
	}
	byCard, err := s.recordsForCards(ids)
	if err != nil {
		return nil, err
	}
	holdings := make([]pricing.Holding, len(items))
	for i := range items {
		holdings[i] = pricing.Holding{
			ItemID:  items[i].ID,
			CardID:  items[i].CardID,
			Name:    DisplayName(&items[i]),
			Entry:   items[i].Entry(),
			Records: byCard[items[i].CardID],
		}
	}
	return holdings, nil
}

func (s *PriceService) collectionHoldings() ([]pricing.Holding, []models.CollectionItem, error) {
	var items []models.CollectionItem
	if err := s.db.Preload("Card").Order("id").Find(&items).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load collection: %w", err)
	}
	holdings, err := s.holdings(items)
	return holdings, items, err
}

// DisplayName is the card name plus its pattern label, e.g. "Pikachu (Poké Ball)"
func DisplayName(item *models.CollectionItem) string {
	name := item.Card.Name
	if name == "" {
		name = item.CardID
	}
	if item.VariantPattern == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, pricing.PatternLabel(item.VariantPattern))
}

// CardPriceSummary is everything the card detail view shows about prices
type CardPriceSummary struct {
	CardID         string                     `json:"card_id"`
	Prices         pricing.PriceVariantsMap   `json:"prices"`
	BestPrice      *float64                   `json:"best_price"`
	Range          *pricing.PriceRangeSummary `json:"range,omitempty"`
	ShowRange      bool                       `json:"show_range"`
	Display        string                     `json:"display"`
	Options        []pricing.VariantOption    `json:"variant_options"`
	Changes        map[string]float64         `json:"changes,omitempty"`
	Grading        *pricing.GradingEconomics  `json:"grading,omitempty"`
	PriceUpdatedAt *time.Time                 `json:"price_updated_at"`
	Stale          bool                       `json:"stale"`
}

// CardSummary builds the price summary for a card. Prices come from the
// synced records when there are any, otherwise from the catalog price array.
func (s *PriceService) CardSummary(card *models.Card) (*CardPriceSummary, error) {
	records, err := s.RecordsForCard(card.ID)
	if err != nil {
		return nil, err
	}

	summary := &CardPriceSummary{
		CardID:         card.ID,
		Options:        pricing.VariantOptions(records),
		PriceUpdatedAt: card.PriceUpdatedAt,
		Stale:          !s.isFresh(card.PriceUpdatedAt),
	}

	summary.Prices = pricing.MarketPrices(records)
	if summary.Prices == nil {
		prices, status := card.MarketPrices()
		metrics.PriceExtractionsTotal.WithLabelValues(string(status)).Inc()
		summary.Prices = prices
	}

	if best, ok := pricing.BestPrice(summary.Prices); ok {
		summary.BestPrice = &best
	}
	summary.Range = pricing.PriceRangeOf(summary.Prices)
	summary.ShowRange = pricing.ShouldShowRange(summary.Range, s.thresholds)
	summary.Display = pricing.FormatSmartPrice(summary.Range, s.thresholds)

	if base := pricing.FindRecord(records, nil); base != nil {
		summary.Changes = s.baseChanges(card.ID)
		market := 0.0
		if base.CurrentMarketPrice != nil {
			market = *base.CurrentMarketPrice
		} else if summary.BestPrice != nil {
			market = *summary.BestPrice
		}
		if econ, ok := pricing.EvaluateGrading(market, base.Grades, s.gradingFee); ok {
			summary.Grading = &econ
		}
	}
	return summary, nil
}

func (s *PriceService) baseChanges(cardID string) map[string]float64 {
	var row models.CardPriceRecord
	if err := s.db.Where("card_id = ? AND variant_pattern = ?", cardID, "").First(&row).Error; err != nil {
		return nil
	}
	changes := make(map[string]float64)
	for _, w := range pricing.AllWindows() {
		if v := row.ChangePercent(w); v != nil {
			changes[fmt.Sprintf("%dd", w)] = *v
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

// CardChart draws one series for a card and pattern
func (s *PriceService) CardChart(cardID string, pattern *string, req pricing.ChartRequest) (pricing.ChartSeries, error) {
	records, err := s.RecordsForCard(cardID)
	if err != nil {
		return pricing.ChartSeries{}, err
	}
	return pricing.BuildChart(pricing.FindRecord(records, pattern), req, s.now()), nil
}

// RankedHolding is the API view of a ranked collection item
type RankedHolding struct {
	ItemID         uint              `json:"item_id"`
	CardID         string            `json:"card_id"`
	Name           string            `json:"name"`
	ImageURL       string            `json:"image_url"`
	Variant        pricing.Variant   `json:"variant"`
	Condition      pricing.Condition `json:"condition"`
	VariantPattern *string           `json:"variant_pattern"`
	Quantity       int               `json:"quantity"`
	Price          float64           `json:"price"`
	Value          float64           `json:"value"`
	PercentChange  *float64          `json:"percent_change,omitempty"`
}

func rankedHolding(h pricing.Holding, images map[uint]string) RankedHolding {
	return RankedHolding{
		ItemID:         h.ItemID,
		CardID:         h.CardID,
		Name:           h.Name,
		ImageURL:       images[h.ItemID],
		Variant:        h.Entry.Variant,
		Condition:      h.Entry.Condition,
		VariantPattern: h.Entry.VariantPattern,
		Quantity:       h.Entry.EffectiveQuantity(),
	}
}

func imagesByItem(items []models.CollectionItem) map[uint]string {
	images := make(map[uint]string, len(items))
	for i := range items {
		images[items[i].ID] = items[i].Card.ImageURL
	}
	return images
}

// TopGems returns the n most valuable collection entries
func (s *PriceService) TopGems(n int) ([]RankedHolding, error) {
	holdings, items, err := s.collectionHoldings()
	if err != nil {
		return nil, err
	}
	images := imagesByItem(items)
	ranked := pricing.TopGems(holdings, n)
	out := make([]RankedHolding, len(ranked))
	for i, r := range ranked {
		rh := rankedHolding(r.Item, images)
		rh.Value = r.Metric
		rh.Price = r.Metric / float64(rh.Quantity)
		out[i] = rh
	}
	return out, nil
}

// TopMovers returns the n collection entries whose price moved most over the window
func (s *PriceService) TopMovers(window pricing.Window, n int) ([]RankedHolding, error) {
	holdings, items, err := s.collectionHoldings()
	if err != nil {
		return nil, err
	}
	images := imagesByItem(items)
	movers := pricing.TopMovers(holdings, window, n)
	out := make([]RankedHolding, len(movers))
	for i, m := range movers {
		rh := rankedHolding(m.Holding, images)
		change := m.PercentChange
		rh.Price = m.Price
		rh.Value = m.Price * float64(rh.Quantity)
		rh.PercentChange = &change
		out[i] = rh
	}
	return out, nil
}

// GradingOpportunities evaluates grading for every distinct card in the collection
func (s *PriceService) GradingOpportunities(n int) ([]pricing.GradingCandidate, error) {
	var ids []string
	if err := s.db.Model(&models.CollectionItem{}).Distinct().Pluck("card_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to load collection cards: %w", err)
	}
	if len(ids) == 0 {
		return []pricing.GradingCandidate{}, nil
	}

	var cards []models.Card
	if err := s.db.Where("id IN ?", ids).Order("name").Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("failed to load collection cards: %w", err)
	}
	byCard, err := s.recordsForCards(ids)
	if err != nil {
		return nil, err
	}

	var candidates []pricing.GradingCandidate
	for _, card := range cards {
		base := pricing.FindRecord(byCard[card.ID], nil)
		if base == nil || base.CurrentMarketPrice == nil {
			continue
		}
		econ, ok := pricing.EvaluateGrading(*base.CurrentMarketPrice, base.Grades, s.gradingFee)
		if !ok {
			continue
		}
		candidates = append(candidates, pricing.GradingCandidate{CardID: card.ID, Name: card.Name, Economics: econ})
	}
	return pricing.GradingOpportunities(candidates, n), nil
}

// SetSummary totals the best prices of every catalog card in a set
func (s *PriceService) SetSummary(setID string) (pricing.SetSummary, error) {
	var cards []models.Card
	if err := s.db.Where("set_id = ?", setID).Order("card_number").Find(&cards).Error; err != nil {
		return pricing.SetSummary{}, fmt.Errorf("failed to load set %s: %w", setID, err)
	}
	if len(cards) == 0 {
		return pricing.SetSummary{}, nil
	}

	ids := make([]string, len(cards))
	for i := range cards {
		ids[i] = cards[i].ID
	}
	byCard, err := s.recordsForCards(ids)
	if err != nil {
		return pricing.SetSummary{}, err
	}

	priced := make([]pricing.CardPrices, len(cards))
	for i := range cards {
		prices := pricing.MarketPrices(byCard[cards[i].ID])
		if prices == nil {
			prices, _ = cards[i].MarketPrices()
		}
		priced[i] = pricing.CardPrices{CardID: cards[i].ID, Name: cards[i].Name, Prices: prices}
	}
	return pricing.SummarizeSet(priced), nil
}

// PriceCoverage counts how much of the catalog carries synced price data
type PriceCoverage struct {
	Sets            int64 `json:"sets"`
	Cards           int64 `json:"cards"`
	PriceRecords    int64 `json:"price_records"`
	WithMarketPrice int64 `json:"with_market_price"`
	WithPSA10       int64 `json:"with_psa10"`
	WithHistory     int64 `json:"with_history"`
	RecentlyUpdated int64 `json:"recently_updated"`
}

// Coverage reports price record coverage; RecentlyUpdated counts records
// refreshed within the staleness threshold.
func (s *PriceService) Coverage() (PriceCoverage, error) {
	var c PriceCoverage
	records := func() *gorm.DB { return s.db.Model(&models.CardPriceRecord{}) }
	counts := []struct {
		query *gorm.DB
		dst   *int64
	}{
		{s.db.Model(&models.Card{}).Where("set_id <> ?", "").Distinct("set_id"), &c.Sets},
		{s.db.Model(&models.Card{}), &c.Cards},
		{records(), &c.PriceRecords},
		{records().Where("current_market_price IS NOT NULL"), &c.WithMarketPrice},
		{records().Where("psa10 IS NOT NULL"), &c.WithPSA10},
		{records().Where("raw_history_365d IS NOT NULL"), &c.WithHistory},
		{records().Where("price_updated_at >= ?", s.now().Add(-s.staleAfter)), &c.RecentlyUpdated},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dst).Error; err != nil {
			return PriceCoverage{}, fmt.Errorf("failed to count price coverage: %w", err)
		}
	}
	return c, nil
}
