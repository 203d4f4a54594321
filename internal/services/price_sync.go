package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-portfolio/internal/config"
	"github.com/codyseavey/tcg-portfolio/internal/metrics"
	"github.com/codyseavey/tcg-portfolio/internal/models"
	"github.com/codyseavey/tcg-portfolio/internal/pricing"
)

const (
	// defaultBatchSize is the number of cards to update per batch
	defaultBatchSize = 100

	defaultSyncInterval = 15 * time.Minute
)

var (
	// "(Poke Ball Pattern)", "[Master Ball]" and similar product suffixes
	productSuffix = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	// " - 025/165" number suffix some feed names carry
	numberSuffix = regexp.MustCompile(`\s+-\s+[0-9A-Za-z]+/[0-9A-Za-z]+$`)
)

// UnmatchedCard represents a card that couldn't be matched for price updates
type UnmatchedCard struct {
	CardID     string `json:"card_id"`
	Name       string `json:"name"`
	CardNumber string `json:"card_number"`
	SetName    string `json:"set_name"`
	Reason     string `json:"reason"`
}

// PriceSyncWorker keeps the price records of collection cards current
type PriceSyncWorker struct {
	priceService   *PriceService
	client         *PriceTrackerClient
	db             *gorm.DB
	updateInterval time.Duration
	batchSize      int
	maxDistance    int
	mu             sync.RWMutex

	// Priority queue for user-requested refreshes
	urgentQueue []string
	urgentMu    sync.Mutex

	// Stats (reset at midnight)
	cardsUpdatedToday int
	lastUpdateTime    time.Time
	lastStatsDay      time.Time

	unmatchedCards []UnmatchedCard
	now            func() time.Time
}

type PriceStatus struct {
	LastUpdateTime    time.Time       `json:"last_update_time"`
	NextUpdateTime    time.Time       `json:"next_update_time"`
	CardsUpdatedToday int             `json:"cards_updated_today"`
	BatchSize         int             `json:"batch_size"`
	QueueSize         int             `json:"queue_size"`
	FeedConfigured    bool            `json:"feed_configured"`
	UnmatchedCards    []UnmatchedCard `json:"unmatched_cards,omitempty"`
}

func NewPriceSyncWorker(priceService *PriceService, client *PriceTrackerClient, db *gorm.DB, cfg config.SyncConfig) *PriceSyncWorker {
	w := &PriceSyncWorker{
		priceService:   priceService,
		client:         client,
		db:             db,
		updateInterval: cfg.Interval,
		batchSize:      cfg.BatchSize,
		maxDistance:    cfg.MatchMaxDistance,
		now:            time.Now,
	}
	if w.updateInterval <= 0 {
		w.updateInterval = defaultSyncInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	return w
}

// QueueRefresh adds a card to the high-priority refresh queue and returns
// its 1-indexed position
func (w *PriceSyncWorker) QueueRefresh(cardID string) int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	for i, id := range w.urgentQueue {
		if id == cardID {
			return i + 1
		}
	}
	w.urgentQueue = append(w.urgentQueue, cardID)
	metrics.PriceQueueSize.Set(float64(len(w.urgentQueue)))
	log.Printf("Price sync: queued refresh for card %s (queue size: %d)", cardID, len(w.urgentQueue))
	return len(w.urgentQueue)
}

// GetQueueSize returns current urgent queue size
func (w *PriceSyncWorker) GetQueueSize() int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()
	return len(w.urgentQueue)
}

// resetDailyStatsIfNeeded resets cardsUpdatedToday at midnight
func (w *PriceSyncWorker) resetDailyStatsIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if w.lastStatsDay.Before(today) {
		if !w.lastStatsDay.IsZero() {
			log.Printf("Price sync: daily stats reset (previous day: %d cards updated)", w.cardsUpdatedToday)
		}
		w.cardsUpdatedToday = 0
		w.lastStatsDay = today
	}
}

// Start runs a batch immediately and then on every interval until ctx is done
func (w *PriceSyncWorker) Start(ctx context.Context) {
	log.Printf("Price sync started: will update %d cards every %v", w.batchSize, w.updateInterval)

	if updated, err := w.UpdateBatch(ctx); err != nil {
		log.Printf("Price sync: initial batch update failed: %v", err)
	} else {
		log.Printf("Price sync: initial batch updated %d cards", updated)
	}

	ticker := time.NewTicker(w.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Price sync stopping...")
			return
		case <-ticker.C:
			if updated, err := w.UpdateBatch(ctx); err != nil {
				log.Printf("Price sync: batch update failed: %v", err)
			} else if updated > 0 {
				log.Printf("Price sync: batch updated %d cards", updated)
			}
		}
	}
}

// UpdateBatch updates a batch of cards with priority ordering:
// 1. User-requested refreshes
// 2. Collection cards without price records
// 3. Collection cards with oldest prices
func (w *PriceSyncWorker) UpdateBatch(ctx context.Context) (int, error) {
	w.resetDailyStatsIfNeeded()

	if !w.client.Configured() {
		log.Println("Price sync: no price feed API key configured, skipping batch")
		return 0, nil
	}

	cards := w.selectCards()
	if len(cards) == 0 {
		log.Println("Price sync: no cards to update")
		return 0, nil
	}
	log.Printf("Price sync: updating prices for %d cards", len(cards))
	return w.syncCards(ctx, cards)
}

func (w *PriceSyncWorker) selectCards() []models.Card {
	var cardsToUpdate []models.Card
	var cardIDs []string

	w.urgentMu.Lock()
	urgentIDs := w.urgentQueue
	if len(urgentIDs) > w.batchSize {
		urgentIDs = urgentIDs[:w.batchSize]
		w.urgentQueue = w.urgentQueue[w.batchSize:]
	} else {
		w.urgentQueue = nil
	}
	metrics.PriceQueueSize.Set(float64(len(w.urgentQueue)))
	w.urgentMu.Unlock()

	if len(urgentIDs) > 0 {
		var urgentCards []models.Card
		w.db.Where("id IN ?", urgentIDs).Find(&urgentCards)
		cardsToUpdate = append(cardsToUpdate, urgentCards...)
		for _, c := range urgentCards {
			cardIDs = append(cardIDs, c.ID)
		}
		log.Printf("Price sync: processing %d urgent refresh requests", len(urgentCards))
	}

	remaining := w.batchSize - len(cardsToUpdate)

	if remaining > 0 {
		var noPriceCards []models.Card
		query := `
			SELECT DISTINCT c.* FROM cards c
			INNER JOIN collection_items ci ON ci.card_id = c.id
			LEFT JOIN card_price_records cpr ON cpr.card_id = c.id
			WHERE cpr.id IS NULL
		`
		if len(cardIDs) > 0 {
			w.db.Raw(query+" AND c.id NOT IN (?) LIMIT ?", cardIDs, remaining).Scan(&noPriceCards)
		} else {
			w.db.Raw(query+" LIMIT ?", remaining).Scan(&noPriceCards)
		}
		cardsToUpdate = append(cardsToUpdate, noPriceCards...)
		for _, c := range noPriceCards {
			cardIDs = append(cardIDs, c.ID)
		}
		remaining -= len(noPriceCards)
	}

	if remaining > 0 {
		var oldestCards []models.Card
		query := `
			SELECT DISTINCT c.* FROM cards c
			INNER JOIN collection_items ci ON ci.card_id = c.id
		`
		if len(cardIDs) > 0 {
			w.db.Raw(query+" WHERE c.id NOT IN (?) ORDER BY c.price_updated_at ASC NULLS FIRST LIMIT ?",
				cardIDs, remaining).Scan(&oldestCards)
		} else {
			w.db.Raw(query+" ORDER BY c.price_updated_at ASC NULLS FIRST LIMIT ?",
				remaining).Scan(&oldestCards)
		}
		cardsToUpdate = append(cardsToUpdate, oldestCards...)
	}
	return cardsToUpdate
}

// syncCards fetches feed data for the cards (a whole set at a time where the
// set is known) and stores one price record per matched product.
func (w *PriceSyncWorker) syncCards(ctx context.Context, cards []models.Card) (int, error) {
	start := time.Now()

	bySet := make(map[string][]models.Card)
	var loose []models.Card
	for _, card := range cards {
		if card.SetID != "" {
			bySet[card.SetID] = append(bySet[card.SetID], card)
		} else {
			loose = append(loose, card)
		}
	}

	var records []models.CardPriceRecord
	var unmatched []UnmatchedCard
	var lastErr error
	now := w.now()

	for setID, setCards := range bySet {
		feed, err := w.client.FetchSet(ctx, setID)
		if err != nil {
			// intermittent, the cards stay eligible for the next batch
			log.Printf("Price sync: failed to fetch set %s: %v (will retry)", setID, err)
			lastErr = err
			continue
		}
		recs, missed := w.matchAndTransform(setCards, feed, now)
		records = append(records, recs...)
		unmatched = append(unmatched, missed...)
	}

	for _, card := range loose {
		if card.TCGPlayerID == "" {
			unmatched = append(unmatched, unmatchedCard(card, "Card has neither a set id nor a TCGPlayer id"))
			continue
		}
		page, err := w.client.FetchCards(ctx, FeedQuery{TCGPlayerID: card.TCGPlayerID, WithHistory: true})
		if err != nil {
			log.Printf("Price sync: failed to fetch %s: %v (will retry)", card.Name, err)
			lastErr = err
			continue
		}
		recs, missed := w.matchAndTransform([]models.Card{card}, page.Cards, now)
		records = append(records, recs...)
		unmatched = append(unmatched, missed...)
	}

	if err := w.priceService.SaveRecords(records); err != nil {
		return 0, err
	}

	updatedCards := make(map[string]bool)
	for _, r := range records {
		updatedCards[r.CardID] = true
		w.ClearUnmatchedCard(r.CardID)
	}
	updated := len(updatedCards)
	w.trackUnmatched(unmatched)

	w.mu.Lock()
	w.cardsUpdatedToday += updated
	w.lastUpdateTime = w.now()
	today := w.cardsUpdatedToday
	w.mu.Unlock()

	metrics.PriceUpdatesTotal.Add(float64(updated))
	metrics.PriceUpdatesToday.Set(float64(today))
	metrics.PriceBatchDuration.Observe(time.Since(start).Seconds())

	var cardCount int64
	if w.db.Model(&models.Card{}).Count(&cardCount).Error == nil {
		metrics.CardDatabaseSize.Set(float64(cardCount))
	}
	if _, err := w.priceService.CollectionStats(); err != nil {
		log.Printf("Price sync: failed to refresh collection metrics: %v", err)
	}

	if updated == 0 && lastErr != nil {
		return 0, lastErr
	}
	log.Printf("Price sync: stored %d price records for %d cards", len(records), updated)
	return updated, nil
}

func (w *PriceSyncWorker) matchAndTransform(cards []models.Card, feed []FeedCard, now time.Time) ([]models.CardPriceRecord, []UnmatchedCard) {
	var records []models.CardPriceRecord
	var unmatched []UnmatchedCard
	for _, card := range cards {
		products, strategy := MatchFeedCards(card, feed, w.maxDistance)
		if len(products) == 0 {
			log.Printf("ERROR: Price sync: UNMATCHED CARD - %s (#%s) from set %q", card.Name, card.CardNumber, card.SetName)
			unmatched = append(unmatched, unmatchedCard(card, "Card not found in price feed (checked by TCGPlayer id, number and name)"))
			continue
		}
		metrics.PriceMatchesTotal.WithLabelValues(strategy).Inc()

		if card.TCGPlayerID == "" {
			if id := string(products[0].TCGPlayerID); id != "" {
				if err := w.db.Model(&models.Card{}).Where("id = ?", card.ID).Update("tcg_player_id", id).Error; err != nil {
					log.Printf("Price sync: failed to store TCGPlayer id %s for %s: %v", id, card.Name, err)
				} else {
					log.Printf("Price sync: discovered TCGPlayer id %s for %s", id, card.Name)
				}
			}
		}
		for _, p := range products {
			records = append(records, TransformCard(p, card.ID, now))
		}
	}
	return records, unmatched
}

func unmatchedCard(card models.Card, reason string) UnmatchedCard {
	return UnmatchedCard{
		CardID:     card.ID,
		Name:       card.Name,
		CardNumber: card.CardNumber,
		SetName:    card.SetName,
		Reason:     reason,
	}
}

func (w *PriceSyncWorker) trackUnmatched(cards []UnmatchedCard) {
	w.mu.Lock()
	defer w.mu.Unlock()
	existing := make(map[string]bool)
	for _, c := range w.unmatchedCards {
		existing[c.CardID] = true
	}
	for _, c := range cards {
		if !existing[c.CardID] {
			w.unmatchedCards = append(w.unmatchedCards, c)
			existing[c.CardID] = true
		}
	}
	metrics.PriceUnmatchedCards.Set(float64(len(w.unmatchedCards)))
}

// SyncStats counts what one set sync did
type SyncStats struct {
	Fetched int `json:"cards_fetched"`
	Matched int `json:"cards_matched"`
	Updated int `json:"cards_updated"`
	Skipped int `json:"cards_skipped"`
	Errors  int `json:"errors"`
}

// Add accumulates o into s
func (s *SyncStats) Add(o SyncStats) {
	s.Fetched += o.Fetched
	s.Matched += o.Matched
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.Errors += o.Errors
}

// SyncSet imports every product of a set: catalog cards are created or
// refreshed from the base products and price records stored for all of them.
// With dryRun nothing is written; the records that would be stored are logged.
func (w *PriceSyncWorker) SyncSet(ctx context.Context, setID string, dryRun bool) (SyncStats, error) {
	var stats SyncStats
	if !w.client.Configured() {
		return stats, fmt.Errorf("price feed API key is not configured")
	}
	feed, err := w.client.FetchSet(ctx, setID)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch set %s: %w", setID, err)
	}
	stats.Fetched = len(feed)

	var cards []models.Card
	for _, fc := range feed {
		if pricing.ClassifyPattern(fc.Name) != pricing.BasePattern || fc.TCGPlayerID == "" {
			continue
		}
		card := fc.ToCard()
		if card.SetID == "" {
			card.SetID = setID
		}
		if !dryRun {
			err := w.db.Where(models.Card{ID: card.ID}).
				Assign(models.Card{
					Name:        card.Name,
					SetID:       card.SetID,
					SetName:     card.SetName,
					CardNumber:  card.CardNumber,
					Rarity:      card.Rarity,
					ImageURL:    card.ImageURL,
					TCGPlayerID: card.TCGPlayerID,
				}).
				FirstOrCreate(&card).Error
			if err != nil {
				log.Printf("Price sync: failed to save card %s: %v", card.ID, err)
				stats.Errors++
				continue
			}
		}
		cards = append(cards, card)
	}

	records, unmatched := w.matchAndTransform(cards, feed, w.now())
	w.trackUnmatched(unmatched)
	stats.Skipped = len(unmatched)
	stats.Matched = len(cards) - len(unmatched)

	if dryRun {
		for _, r := range records {
			market := "none"
			if r.CurrentMarketPrice != nil {
				market = pricing.FormatPrice(*r.CurrentMarketPrice, pricing.PriceStyleExact)
			}
			log.Printf("Price sync: [dry run] would store %s pattern=%q market=%s (%s)",
				r.CardID, r.VariantPattern, market, r.CurrentMarketPriceCondition)
		}
		log.Printf("Price sync: [dry run] set %s: %d price records for %d cards not written", setID, len(records), stats.Matched)
		return stats, nil
	}

	if err := w.priceService.SaveRecords(records); err != nil {
		stats.Errors += stats.Matched
		return stats, err
	}
	stats.Updated = stats.Matched
	log.Printf("Price sync: set %s synced (%d cards, %d price records)", setID, stats.Updated, len(records))
	return stats, nil
}

// CatalogSetIDs lists the distinct set ids of catalog cards
func (w *PriceSyncWorker) CatalogSetIDs() ([]string, error) {
	var ids []string
	err := w.db.Model(&models.Card{}).
		Where("set_id <> ?", "").
		Distinct().
		Order("set_id").
		Pluck("set_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog sets: %w", err)
	}
	return ids, nil
}

// GetStatus returns the current status
func (w *PriceSyncWorker) GetStatus() PriceStatus {
	queueSize := w.GetQueueSize()

	w.mu.RLock()
	defer w.mu.RUnlock()

	unmatched := make([]UnmatchedCard, len(w.unmatchedCards))
	copy(unmatched, w.unmatchedCards)
	return PriceStatus{
		LastUpdateTime:    w.lastUpdateTime,
		NextUpdateTime:    w.lastUpdateTime.Add(w.updateInterval),
		CardsUpdatedToday: w.cardsUpdatedToday,
		BatchSize:         w.batchSize,
		QueueSize:         queueSize,
		FeedConfigured:    w.client.Configured(),
		UnmatchedCards:    unmatched,
	}
}

// ClearUnmatchedCard removes a card from the unmatched list (e.g., after manual fix)
func (w *PriceSyncWorker) ClearUnmatchedCard(cardID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, c := range w.unmatchedCards {
		if c.CardID == cardID {
			w.unmatchedCards = append(w.unmatchedCards[:i], w.unmatchedCards[i+1:]...)
			break
		}
	}
	metrics.PriceUnmatchedCards.Set(float64(len(w.unmatchedCards)))
}

// ClearAllUnmatchedCards clears the unmatched cards list
func (w *PriceSyncWorker) ClearAllUnmatchedCards() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unmatchedCards = nil
	metrics.PriceUnmatchedCards.Set(0)
}

// MatchFeedCards finds the feed products of a catalog card: its base product
// plus any pattern products with the same number and name. The base product
// is found by TCGPlayer id, then by number and exact name, then by number and
// a name within maxDistance edits. The strategy that matched is returned.
func MatchFeedCards(card models.Card, feed []FeedCard, maxDistance int) ([]FeedCard, string) {
	var base *FeedCard
	strategy := ""

	if card.TCGPlayerID != "" {
		for i := range feed {
			if string(feed[i].TCGPlayerID) == card.TCGPlayerID {
				base = &feed[i]
				strategy = "tcgplayer_id"
				break
			}
		}
	}

	name := normalizeNameForPriceMatch(card.Name)
	number := normalizeCardNumber(card.CardNumber)

	if base == nil && number != "" {
		bestDistance := maxDistance + 1
		for i := range feed {
			fc := &feed[i]
			if pricing.ClassifyPattern(fc.Name) != pricing.BasePattern || normalizeCardNumber(fc.CardNumber) != number {
				continue
			}
			d := levenshtein.ComputeDistance(name, normalizeNameForPriceMatch(fc.Name))
			if d < bestDistance {
				base, bestDistance = fc, d
			}
		}
		if base != nil {
			strategy = "number"
			if bestDistance > 0 {
				strategy = "fuzzy_name"
			}
		}
	}

	if base == nil {
		return nil, ""
	}

	products := []FeedCard{*base}
	baseName := normalizeNameForPriceMatch(base.Name)
	baseNumber := normalizeCardNumber(base.CardNumber)
	for i := range feed {
		fc := &feed[i]
		if fc == base || pricing.ClassifyPattern(fc.Name) == pricing.BasePattern {
			continue
		}
		if normalizeCardNumber(fc.CardNumber) == baseNumber && normalizeNameForPriceMatch(fc.Name) == baseName {
			products = append(products, *fc)
		}
	}
	return products, strategy
}

// normalizeNameForPriceMatch normalizes card names for matching against feed data
func normalizeNameForPriceMatch(name string) string {
	name = productSuffix.ReplaceAllString(name, "")
	name = numberSuffix.ReplaceAllString(name, "")
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "♀", " f")     // Nidoran♀ -> nidoran f
	name = strings.ReplaceAll(name, "♂", " m")     // Nidoran♂ -> nidoran m
	name = strings.ReplaceAll(name, "δ", " delta") // Deoxys δ -> deoxys delta
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(stripMarks, name); err == nil {
		name = stripped // Pokémon -> pokemon
	}
	name = strings.ReplaceAll(name, "'", "")  // Farfetch'd -> farfetchd
	name = strings.ReplaceAll(name, "’", "")  // Curly apostrophe
	name = strings.ReplaceAll(name, ".", "")  // Mr. Mime -> mr mime
	name = strings.ReplaceAll(name, "-", " ") // Ho-Oh -> ho oh
	return strings.Join(strings.Fields(name), " ")
}

// normalizeCardNumber compares "025/165", "25" and "025" equal
func normalizeCardNumber(number string) string {
	number = strings.TrimSpace(number)
	if i := strings.Index(number, "/"); i >= 0 {
		number = number[:i]
	}
	trimmed := strings.TrimLeft(number, "0")
	if trimmed == "" && number != "" {
		return "0"
	}
	return strings.ToLower(trimmed)
}
