package services

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-portfolio/internal/config"
	"github.com/codyseavey/tcg-portfolio/internal/models"
)

func TestNormalizeNameForPriceMatch(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Pikachu", "pikachu"},
		{"Nidoran♀", "nidoran f"},
		{"Flabébé", "flabebe"},
		{"Farfetch'd", "farfetchd"},
		{"Mr. Mime", "mr mime"},
		{"Ho-Oh", "ho oh"},
		{"Pikachu (Poke Ball Pattern)", "pikachu"},
		{"Pikachu - 025/198", "pikachu"},
		{"Charizard ex  [Master Ball]", "charizard ex"},
	}
	for _, tt := range tests {
		if got := normalizeNameForPriceMatch(tt.input); got != tt.expected {
			t.Errorf("normalizeNameForPriceMatch(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeCardNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"025/198", "25"},
		{"25", "25"},
		{"000", "0"},
		{"TG05", "tg05"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeCardNumber(tt.input); got != tt.expected {
			t.Errorf("normalizeCardNumber(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestMatchFeedCards(t *testing.T) {
	feed := []FeedCard{
		{TCGPlayerID: "100", Name: "Pikachu", CardNumber: "025/198"},
		{TCGPlayerID: "101", Name: "Pikachu (Poke Ball Pattern)", CardNumber: "025/198"},
		{TCGPlayerID: "102", Name: "Pikachu (Master Ball Pattern)", CardNumber: "025/198"},
		{TCGPlayerID: "200", Name: "Raichu", CardNumber: "026/198"},
		{TCGPlayerID: "300", Name: "Mr. Mime", CardNumber: "122/198"},
	}

	tests := []struct {
		name     string
		card     models.Card
		ids      []FlexibleID
		strategy string
	}{
		{"by tcgplayer id", models.Card{Name: "Whatever", TCGPlayerID: "200"}, []FlexibleID{"200"}, "tcgplayer_id"},
		{"by number with patterns", models.Card{Name: "Pikachu", CardNumber: "25"}, []FlexibleID{"100", "101", "102"}, "number"},
		{"fuzzy name", models.Card{Name: "Mr Mimee", CardNumber: "122"}, []FlexibleID{"300"}, "fuzzy_name"},
		{"name too far", models.Card{Name: "Mewtwo", CardNumber: "122"}, nil, ""},
		{"no number", models.Card{Name: "Pikachu"}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, strategy := MatchFeedCards(tt.card, feed, 2)
			var ids []FlexibleID
			for _, p := range products {
				ids = append(ids, p.TCGPlayerID)
			}
			if strategy != tt.strategy {
				t.Errorf("strategy = %q, want %q", strategy, tt.strategy)
			}
			require.Equal(t, tt.ids, ids)
		})
	}
}

func TestQueueRefreshDeduplicates(t *testing.T) {
	w := NewPriceSyncWorker(nil, nil, nil, config.SyncConfig{})
	require.Equal(t, 1, w.QueueRefresh("a"))
	require.Equal(t, 2, w.QueueRefresh("b"))
	require.Equal(t, 1, w.QueueRefresh("a"))
	require.Equal(t, 2, w.GetQueueSize())
}

func TestUpdateBatchWithoutAPIKeyIsNoop(t *testing.T) {
	db := newTestDB(t)
	client := NewPriceTrackerClient(config.PriceFeedConfig{BaseURL: "http://127.0.0.1:1"})
	w := NewPriceSyncWorker(newTestPriceService(db), client, db, config.SyncConfig{})

	updated, err := w.UpdateBatch(context.Background())
	require.NoError(t, err)
	require.Zero(t, updated)
	require.False(t, w.GetStatus().FeedConfigured)
}

func TestUpdateBatchSyncsCollectionCards(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sv1", r.URL.Query().Get("setId"))
		w.Write([]byte(`{"data": [
			` + pikachuFeedJSON + `,
			{"tcgPlayerId": 12346, "name": "Pikachu (Poke Ball Pattern)", "cardNumber": "025/198",
			 "prices": {"market": 9, "variants": {"Normal": {"Near Mint": {"price": 9}}}}},
			{"tcgPlayerId": 12400, "name": "Raichu", "cardNumber": "026/198"}
		], "metadata": {"total": 3, "count": 3, "hasMore": false}}`))
	}))
	defer server.Close()

	db := newTestDB(t)
	svc := newTestPriceService(db)
	createCard(t, db, models.Card{ID: "c1", Name: "Pikachu", SetID: "sv1", SetName: "Scarlet & Violet", CardNumber: "025/198"})
	createCard(t, db, models.Card{ID: "c2", Name: "Missingno", SetID: "sv1", CardNumber: "999"})
	createCard(t, db, models.Card{ID: "c3", Name: "Not collected", SetID: "sv1", CardNumber: "026"})
	createItem(t, db, models.CollectionItem{CardID: "c1"})
	createItem(t, db, models.CollectionItem{CardID: "c2"})

	w := NewPriceSyncWorker(svc, newTestTrackerClient(server.URL), db, config.SyncConfig{BatchSize: 10, MatchMaxDistance: 2})
	updated, err := w.UpdateBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	var rows []models.CardPriceRecord
	require.NoError(t, db.Order("variant_pattern").Find(&rows).Error)
	require.Len(t, rows, 2)
	require.Equal(t, "c1", rows[0].CardID)
	require.Equal(t, "", rows[0].VariantPattern)
	require.Equal(t, "poke_ball", rows[1].VariantPattern)

	var card models.Card
	require.NoError(t, db.First(&card, "id = ?", "c1").Error)
	require.Equal(t, "12345", card.TCGPlayerID)
	require.NotNil(t, card.PriceUpdatedAt)

	status := w.GetStatus()
	require.Equal(t, 1, status.CardsUpdatedToday)
	require.Len(t, status.UnmatchedCards, 1)
	require.Equal(t, "c2", status.UnmatchedCards[0].CardID)

	w.ClearAllUnmatchedCards()
	require.Empty(t, w.GetStatus().UnmatchedCards)
}

func TestSyncSetImportsCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			` + pikachuFeedJSON + `,
			{"tcgPlayerId": 12346, "name": "Pikachu (Poke Ball Pattern)", "cardNumber": "025/198"}
		], "metadata": {"total": 2, "count": 2, "hasMore": false}}`))
	}))
	defer server.Close()

	db := newTestDB(t)
	w := NewPriceSyncWorker(newTestPriceService(db), newTestTrackerClient(server.URL), db, config.SyncConfig{})
	w.now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }

	stats, err := w.SyncSet(context.Background(), "sv1", false)
	require.NoError(t, err)
	require.Equal(t, SyncStats{Fetched: 2, Matched: 1, Updated: 1}, stats)

	var card models.Card
	require.NoError(t, db.First(&card, "id = ?", "12345").Error)
	require.Equal(t, "Pikachu", card.Name)
	require.Equal(t, "sv1", card.SetID)
	require.Equal(t, "https://cdn/pikachu.png", card.ImageURL)

	var count int64
	require.NoError(t, db.Model(&models.CardPriceRecord{}).Where("card_id = ?", "12345").Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func setFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			` + pikachuFeedJSON + `,
			{"tcgPlayerId": 12346, "name": "Pikachu (Poke Ball Pattern)", "cardNumber": "025/198"}
		], "metadata": {"total": 2, "count": 2, "hasMore": false}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSyncSetDryRunWritesNothing(t *testing.T) {
	server := setFeedServer(t)
	db := newTestDB(t)
	w := NewPriceSyncWorker(newTestPriceService(db), newTestTrackerClient(server.URL), db, config.SyncConfig{})

	stats, err := w.SyncSet(context.Background(), "sv1", true)
	require.NoError(t, err)
	require.Equal(t, SyncStats{Fetched: 2, Matched: 1}, stats)

	var cards, records int64
	require.NoError(t, db.Model(&models.Card{}).Count(&cards).Error)
	require.NoError(t, db.Model(&models.CardPriceRecord{}).Count(&records).Error)
	require.Zero(t, cards)
	require.Zero(t, records)
}

func TestSyncStatsAdd(t *testing.T) {
	total := SyncStats{Fetched: 2, Matched: 1, Updated: 1}
	total.Add(SyncStats{Fetched: 3, Matched: 2, Skipped: 1, Errors: 1})
	require.Equal(t, SyncStats{Fetched: 5, Matched: 3, Updated: 1, Skipped: 1, Errors: 1}, total)
}

func TestCatalogSetIDs(t *testing.T) {
	db := newTestDB(t)
	w := NewPriceSyncWorker(newTestPriceService(db), nil, db, config.SyncConfig{})
	createCard(t, db, models.Card{ID: "a", Name: "A", SetID: "sv2"})
	createCard(t, db, models.Card{ID: "b", Name: "B", SetID: "sv1"})
	createCard(t, db, models.Card{ID: "c", Name: "C", SetID: "sv1"})
	createCard(t, db, models.Card{ID: "d", Name: "D"})

	ids, err := w.CatalogSetIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"sv1", "sv2"}, ids)
}

func TestMatchAndTransformLogsFailedIDUpdate(t *testing.T) {
	db := newTestDB(t)
	createCard(t, db, models.Card{ID: "c1", Name: "Pikachu", SetID: "sv1", CardNumber: "025/198"})
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		tx.AddError(errors.New("disk full"))
	}))

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	w := NewPriceSyncWorker(newTestPriceService(db), nil, db, config.SyncConfig{})
	feed := []FeedCard{{TCGPlayerID: "12345", Name: "Pikachu", CardNumber: "025/198"}}
	records, unmatched := w.matchAndTransform([]models.Card{{ID: "c1", Name: "Pikachu", CardNumber: "025/198"}}, feed, time.Now())
	require.Len(t, records, 1)
	require.Empty(t, unmatched)
	require.Contains(t, buf.String(), "failed to store TCGPlayer id 12345 for Pikachu: disk full")
	require.NotContains(t, buf.String(), "discovered TCGPlayer id")
}
