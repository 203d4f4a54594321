package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/codyseavey/tcg-portfolio/internal/config"
	"github.com/codyseavey/tcg-portfolio/internal/database"
	"github.com/codyseavey/tcg-portfolio/internal/services"
)

var rootCMD = &cobra.Command{
	Use:   "tcg-portfolio",
	Short: "Pokemon TCG collection tracker and pricing backend",
	Long: `Tracks a Pokemon TCG collection, keeps card prices in sync with the
price feed and values the portfolio. Configuration comes from an optional
tcg-portfolio.yaml file and TCGP_* environment variables.`,
}

func Execute() {
	err := rootCMD.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.AddCommand(serveCMD, syncCMD, snapshotCMD)
}

// app holds everything the subcommands share
type app struct {
	cfg          config.Config
	priceService *services.PriceService
	tracker      *services.PriceTrackerClient
	syncWorker   *services.PriceSyncWorker
	snapshots    *services.SnapshotService
}

func bootstrap() *app {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := database.Initialize(cfg.Database.DSN, database.ParseLogLevel(cfg.Database.LogLevel)); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := database.GetDB()

	priceService := services.NewPriceService(db, cfg.Pricing, cfg.Sync.StaleAfter)
	tracker := services.NewPriceTrackerClient(cfg.PriceFeed)
	if !tracker.Configured() {
		log.Println("Warning: TCGP_PRICE_FEED_API_KEY not set, price sync is disabled")
	}

	return &app{
		cfg:          cfg,
		priceService: priceService,
		tracker:      tracker,
		syncWorker:   services.NewPriceSyncWorker(priceService, tracker, db, cfg.Sync),
		snapshots:    services.NewSnapshotService(db, priceService, cfg.Snapshot.Schedule),
	}
}
