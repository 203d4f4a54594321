package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-portfolio/internal/database"
	"github.com/codyseavey/tcg-portfolio/internal/models"
	"github.com/codyseavey/tcg-portfolio/internal/pricing"
	"github.com/codyseavey/tcg-portfolio/internal/services"
)

type PriceHandler struct {
	syncWorker   *services.PriceSyncWorker
	priceService *services.PriceService
}

func NewPriceHandler(syncWorker *services.PriceSyncWorker, priceService *services.PriceService) *PriceHandler {
	return &PriceHandler{
		syncWorker:   syncWorker,
		priceService: priceService,
	}
}

// GetPriceStatus returns the sync worker status
func (h *PriceHandler) GetPriceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.syncWorker.GetStatus())
}

// ClearUnmatchedCard drops one card from the unmatched report
func (h *PriceHandler) ClearUnmatchedCard(c *gin.Context) {
	h.syncWorker.ClearUnmatchedCard(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *PriceHandler) ClearAllUnmatchedCards(c *gin.Context) {
	h.syncWorker.ClearAllUnmatchedCards()
	c.Status(http.StatusNoContent)
}

// RefreshCardPrice queues a card for the next sync batch
func (h *PriceHandler) RefreshCardPrice(c *gin.Context) {
	cardID := c.Param("id")

	var card models.Card
	if err := database.GetDB().First(&card, "id = ?", cardID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}

	position := h.syncWorker.QueueRefresh(card.ID)
	c.JSON(http.StatusAccepted, gin.H{
		"card_id":        card.ID,
		"queue_position": position,
	})
}

// GetCardPrices returns the price summary of a card
func (h *PriceHandler) GetCardPrices(c *gin.Context) {
	var card models.Card
	if err := database.GetDB().First(&card, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}

	summary, err := h.priceService.CardSummary(&card)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetCardChart returns one price history series for a card. variant and
// condition accept either the collection vocabulary ("reverse_holo",
// "lightly_played") or the feed's ("Reverse Holofoil", "Lightly Played").
func (h *PriceHandler) GetCardChart(c *gin.Context) {
	req := pricing.ChartRequest{
		Variant:   chartVariant(c.DefaultQuery("variant", string(pricing.PriceVariantNormal))),
		Condition: chartCondition(c.DefaultQuery("condition", string(pricing.PriceConditionNearMint))),
	}

	switch grade := pricing.Grade(c.Query("grade")); grade {
	case "", pricing.GradePSA10, pricing.GradePSA9, pricing.GradePSA8:
		req.Grade = grade
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "grade must be one of psa10, psa9, psa8"})
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 || days > int(pricing.Window365D) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
		return
	}
	req.WindowDays = days

	var pattern *string
	if raw, ok := c.GetQuery("pattern"); ok {
		pattern = models.PatternPtr(models.NormalizePattern(&raw))
	}

	series, err := h.priceService.CardChart(c.Param("id"), pattern, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, series)
}

// GetSetSummary returns priced-card totals for a catalog set
func (h *PriceHandler) GetSetSummary(c *gin.Context) {
	summary, err := h.priceService.SetSummary(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if summary.CardCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "set not found"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func chartVariant(v string) string {
	if pricing.Variant(v).Valid() {
		return string(pricing.MapVariant(pricing.Variant(v)))
	}
	return v
}

func chartCondition(v string) string {
	if cond := pricing.Condition(v); cond.Valid() {
		if mapped, ok := pricing.MapCondition(cond); ok {
			return string(mapped)
		}
	}
	return v
}
