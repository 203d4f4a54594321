package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-portfolio/internal/database"
	"github.com/codyseavey/tcg-portfolio/internal/models"
	"github.com/codyseavey/tcg-portfolio/internal/services"
)

const maxSearchResults = 50

type CardHandler struct {
	priceTracker *services.PriceTrackerClient
}

// cacheCardsAsync saves cards to the database asynchronously so they can be
// referenced when adding to collection. Cards found through the price feed
// only exist in the catalog after this.
func cacheCardsAsync(cards []models.Card) {
	if len(cards) == 0 {
		return
	}
	// Copy cards slice to avoid data race with response serialization
	cardsToCache := make([]models.Card, len(cards))
	copy(cardsToCache, cards)
	go func(cards []models.Card) {
		db := database.GetDB()
		if err := db.Save(&cards).Error; err != nil {
			log.Printf("Warning: failed to cache %d cards: %v", len(cards), err)
		}
	}(cardsToCache)
}

func NewCardHandler(priceTracker *services.PriceTrackerClient) *CardHandler {
	return &CardHandler{priceTracker: priceTracker}
}

// SearchCards searches the local catalog by name, falling back to the price
// feed when nothing is cached locally
func (h *CardHandler) SearchCards(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	setIDs := parseSetIDs(c.Query("set_ids"))

	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	db := database.GetDB()
	var cards []models.Card
	q := db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%")
	if len(setIDs) > 0 {
		q = q.Where("LOWER(set_id) IN ?", setIDs)
	}
	if err := q.Order("name, card_number").Limit(maxSearchResults + 1).Find(&cards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(cards) > 0 || !h.priceTracker.Configured() {
		result := &models.CardSearchResult{Cards: cards, TotalCount: len(cards)}
		if len(cards) > maxSearchResults {
			result.Cards = cards[:maxSearchResults]
			result.TotalCount = maxSearchResults
			result.HasMore = true
		}
		c.JSON(http.StatusOK, result)
		return
	}

	result, err := h.priceTracker.SearchCards(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if len(setIDs) > 0 {
		allowed := make(map[string]struct{}, len(setIDs))
		for _, id := range setIDs {
			allowed[id] = struct{}{}
		}
		filtered := make([]models.Card, 0, len(result.Cards))
		for i := range result.Cards {
			if _, ok := allowed[strings.ToLower(result.Cards[i].SetID)]; ok {
				filtered = append(filtered, result.Cards[i])
			}
		}
		result.Cards = filtered
		result.TotalCount = len(filtered)
		result.HasMore = false
	}

	// Cache cards so they can be added to collection
	cacheCardsAsync(result.Cards)

	c.JSON(http.StatusOK, result)
}

func parseSetIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *CardHandler) GetCard(c *gin.Context) {
	id := c.Param("id")

	db := database.GetDB()
	var card models.Card
	if err := db.First(&card, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	c.JSON(http.StatusOK, card)
}
