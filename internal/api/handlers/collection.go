package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-portfolio/internal/database"
	"github.com/codyseavey/tcg-portfolio/internal/models"
	"github.com/codyseavey/tcg-portfolio/internal/pricing"
	"github.com/codyseavey/tcg-portfolio/internal/services"
)

// Maximum quantity allowed per collection item
const maxQuantity = 9999

const (
	defaultRankLimit = 10
	maxRankLimit     = 100
)

type CollectionHandler struct {
	priceService    *services.PriceService
	snapshotService *services.SnapshotService
}

func NewCollectionHandler(priceService *services.PriceService, snapshot *services.SnapshotService) *CollectionHandler {
	return &CollectionHandler{
		priceService:    priceService,
		snapshotService: snapshot,
	}
}

// GetCollection returns every item with its resolved price
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	db := database.GetDB()

	var items []models.CollectionItem
	query := db.Preload("Card").Order("added_at DESC")

	if setID := c.Query("set_id"); setID != "" {
		query = query.Joins("JOIN cards ON cards.id = collection_items.card_id").
			Where("cards.set_id = ?", setID)
	}

	if err := query.Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	valued, _, err := h.priceService.ValuedItems(items)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, valued)
}

func validateAttributes(variant *pricing.Variant, condition *pricing.Condition) string {
	if variant != nil && !variant.Valid() {
		return fmt.Sprintf("invalid variant %q", *variant)
	}
	if condition != nil && !condition.Valid() {
		return fmt.Sprintf("invalid condition %q", *condition)
	}
	return ""
}

func validateQuantity(quantity int) string {
	if quantity < 1 {
		return "quantity must be positive"
	}
	if quantity > maxQuantity {
		return fmt.Sprintf("quantity exceeds maximum allowed (%d)", maxQuantity)
	}
	return ""
}

// findStack looks up another item of the same card with identical variant,
// condition and pattern
func findStack(db *gorm.DB, cardID string, variant pricing.Variant, condition pricing.Condition, pattern string, excludeID uint) (models.CollectionItem, error) {
	var target models.CollectionItem
	q := db.Where("card_id = ? AND variant = ? AND condition = ? AND variant_pattern = ?",
		cardID, variant, condition, pattern)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	err := q.First(&target).Error
	return target, err
}

func (h *CollectionHandler) AddToCollection(c *gin.Context) {
	var req models.AddToCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()

	var card models.Card
	if err := db.First(&card, "id = ?", req.CardID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card not found, please search for it first"})
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if msg := validateQuantity(quantity); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	variant := req.Variant
	if variant == "" {
		variant = pricing.VariantNormal
	}
	condition := req.Condition
	if condition == "" {
		condition = pricing.ConditionNearMint
	}
	if msg := validateAttributes(&variant, &condition); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	pattern := models.NormalizePattern(req.VariantPattern)

	// Merge into an existing identical stack
	if existingItem, err := findStack(db, req.CardID, variant, condition, pattern, 0); err == nil {
		if existingItem.Quantity+quantity > maxQuantity {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("quantity exceeds maximum allowed (%d)", maxQuantity)})
			return
		}
		existingItem.Quantity += quantity
		if err := db.Save(&existingItem).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		db.Preload("Card").First(&existingItem, existingItem.ID)
		c.JSON(http.StatusOK, existingItem)
		return
	}

	item := models.CollectionItem{
		CardID:         req.CardID,
		Quantity:       quantity,
		Variant:        variant,
		Condition:      condition,
		VariantPattern: pattern,
		Notes:          req.Notes,
		AddedAt:        time.Now(),
	}
	if err := db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	db.Preload("Card").First(&item, item.ID)
	c.JSON(http.StatusCreated, item)
}

func (h *CollectionHandler) UpdateCollectionItem(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req models.UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := validateAttributes(req.Variant, req.Condition); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if req.Quantity != nil {
		if msg := validateQuantity(*req.Quantity); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
	}

	db := database.GetDB()

	var item models.CollectionItem
	if err := db.First(&item, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	newVariant := item.Variant
	if req.Variant != nil {
		newVariant = *req.Variant
	}
	newCondition := item.Condition
	if req.Condition != nil {
		newCondition = *req.Condition
	}
	newPattern := item.VariantPattern
	if req.VariantPattern != nil {
		newPattern = models.NormalizePattern(req.VariantPattern)
	}
	attributeChanging := newVariant != item.Variant || newCondition != item.Condition || newPattern != item.VariantPattern

	if !attributeChanging {
		if req.Quantity != nil {
			item.Quantity = *req.Quantity
		}
		if req.Notes != nil {
			item.Notes = *req.Notes
		}
		if err := db.Save(&item).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		db.Preload("Card").First(&item, item.ID)
		c.JSON(http.StatusOK, models.CollectionUpdateResponse{Item: item, Operation: "updated"})
		return
	}

	var resp models.CollectionUpdateResponse
	err = db.Transaction(func(tx *gorm.DB) error {
		target, findErr := findStack(tx, item.CardID, newVariant, newCondition, newPattern, item.ID)

		if item.Quantity > 1 {
			// Stack with qty > 1: split off 1 copy with the new attributes
			originalQty := item.Quantity
			if findErr == nil {
				target.Quantity++
				if err := tx.Save(&target).Error; err != nil {
					return err
				}
			} else {
				target = models.CollectionItem{
					CardID:         item.CardID,
					Quantity:       1,
					Variant:        newVariant,
					Condition:      newCondition,
					VariantPattern: newPattern,
					AddedAt:        time.Now(),
				}
				if err := tx.Create(&target).Error; err != nil {
					return err
				}
			}
			item.Quantity--
			if err := tx.Save(&item).Error; err != nil {
				return err
			}
			resp = models.CollectionUpdateResponse{
				Item:      target,
				Operation: "split",
				Message:   fmt.Sprintf("Split 1 card from stack of %d", originalQty),
			}
			return nil
		}

		// Single item: merge into an existing stack
		if findErr == nil {
			target.Quantity++
			if err := tx.Save(&target).Error; err != nil {
				return err
			}
			if err := tx.Delete(&item).Error; err != nil {
				return err
			}
			resp = models.CollectionUpdateResponse{Item: target, Operation: "merged", Message: "Merged into existing stack"}
			return nil
		}

		// No existing stack to merge into - update in place
		item.Variant = newVariant
		item.Condition = newCondition
		item.VariantPattern = newPattern
		if req.Notes != nil {
			item.Notes = *req.Notes
		}
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		resp = models.CollectionUpdateResponse{Item: item, Operation: "updated"}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	db.Preload("Card").First(&resp.Item, resp.Item.ID)
	c.JSON(http.StatusOK, resp)
}

func (h *CollectionHandler) DeleteCollectionItem(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result := database.GetDB().Delete(&models.CollectionItem{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *CollectionHandler) GetStats(c *gin.Context) {
	stats, err := h.priceService.CollectionStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetValueHistory returns collection value snapshots for charting
func (h *CollectionHandler) GetValueHistory(c *gin.Context) {
	if h.snapshotService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot service not available"})
		return
	}

	resp, err := h.snapshotService.GetValueHistory(c.DefaultQuery("period", "month"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TakeSnapshot records today's value snapshot on demand
func (h *CollectionHandler) TakeSnapshot(c *gin.Context) {
	if h.snapshotService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot service not available"})
		return
	}
	if err := h.snapshotService.TakeSnapshot(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.snapshotService.GetLastSnapshot())
}

func rankLimit(c *gin.Context) (int, bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRankLimit)))
	if err != nil || limit < 1 || limit > maxRankLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxRankLimit)})
		return 0, false
	}
	return limit, true
}

// GetTopGems returns the most valuable collection entries
func (h *CollectionHandler) GetTopGems(c *gin.Context) {
	limit, ok := rankLimit(c)
	if !ok {
		return
	}
	gems, err := h.priceService.TopGems(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gems)
}

// GetTopMovers returns the entries with the largest price change over ?days
func (h *CollectionHandler) GetTopMovers(c *gin.Context) {
	limit, ok := rankLimit(c)
	if !ok {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > int(pricing.Window365D) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
		return
	}
	window := pricing.WindowFor(days)
	movers, err := h.priceService.TopMovers(window, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"window_days": int(window), "movers": movers})
}

// GetGradingOpportunities returns collection cards worth sending for grading
func (h *CollectionHandler) GetGradingOpportunities(c *gin.Context) {
	limit, ok := rankLimit(c)
	if !ok {
		return
	}
	candidates, err := h.priceService.GradingOpportunities(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, candidates)
}
