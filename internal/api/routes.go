package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/tcg-portfolio/internal/api/handlers"
	"github.com/codyseavey/tcg-portfolio/internal/config"
	"github.com/codyseavey/tcg-portfolio/internal/services"
)

// Services are the collaborators the HTTP layer needs
type Services struct {
	PriceService *services.PriceService
	PriceTracker *services.PriceTrackerClient
	SyncWorker   *services.PriceSyncWorker
	Snapshots    *services.SnapshotService
}

func SetupRouter(cfg config.ServerConfig, svc Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), RequestID(), RequestMetrics())

	frontendPath := cfg.FrontendDistPath
	serveFrontend := frontendPath != "" && dirExists(frontendPath)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))

	cardHandler := handlers.NewCardHandler(svc.PriceTracker)
	collectionHandler := handlers.NewCollectionHandler(svc.PriceService, svc.Snapshots)
	priceHandler := handlers.NewPriceHandler(svc.SyncWorker, svc.PriceService)

	api := router.Group("/api")
	{
		cards := api.Group("/cards")
		{
			cards.GET("/search", cardHandler.SearchCards)
			cards.GET("/:id", cardHandler.GetCard)
			cards.GET("/:id/prices", priceHandler.GetCardPrices)
			cards.GET("/:id/chart", priceHandler.GetCardChart)
			cards.POST("/:id/refresh-price", priceHandler.RefreshCardPrice)
		}

		collection := api.Group("/collection")
		{
			collection.GET("", collectionHandler.GetCollection)
			collection.POST("", collectionHandler.AddToCollection)
			collection.PUT("/:id", collectionHandler.UpdateCollectionItem)
			collection.DELETE("/:id", collectionHandler.DeleteCollectionItem)
			collection.GET("/stats", collectionHandler.GetStats)
			collection.GET("/value-history", collectionHandler.GetValueHistory)
			collection.POST("/snapshot", collectionHandler.TakeSnapshot)
			collection.GET("/top-gems", collectionHandler.GetTopGems)
			collection.GET("/top-movers", collectionHandler.GetTopMovers)
			collection.GET("/grading", collectionHandler.GetGradingOpportunities)
		}

		prices := api.Group("/prices")
		{
			prices.GET("/status", priceHandler.GetPriceStatus)
			prices.DELETE("/unmatched", priceHandler.ClearAllUnmatchedCards)
			prices.DELETE("/unmatched/:id", priceHandler.ClearUnmatchedCard)
		}

		sets := api.Group("/sets")
		{
			sets.GET("/:id/summary", priceHandler.GetSetSummary)
		}
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if serveFrontend {
		indexPath := filepath.Join(frontendPath, "index.html")

		router.Static("/assets", filepath.Join(frontendPath, "assets"))
		router.StaticFile("/vite.svg", filepath.Join(frontendPath, "vite.svg"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
