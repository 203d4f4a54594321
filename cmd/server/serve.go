package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/codyseavey/tcg-portfolio/internal/api"
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and background workers",
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap()
		gin.SetMode(a.cfg.Server.GinMode)

		// Create a cancellable context for graceful shutdown
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if a.cfg.Sync.Enabled {
			go runWithRecovery(ctx, "price sync", a.syncWorker.Start)
		}
		if a.cfg.Snapshot.Enabled {
			go runWithRecovery(ctx, "snapshot service", func(ctx context.Context) {
				if err := a.snapshots.Start(ctx); err != nil {
					log.Printf("Snapshot service: %v", err)
				}
			})
		}

		router := api.SetupRouter(a.cfg.Server, api.Services{
			PriceService: a.priceService,
			PriceTracker: a.tracker,
			SyncWorker:   a.syncWorker,
			Snapshots:    a.snapshots,
		})

		srv := &http.Server{
			Addr:    ":" + a.cfg.Server.Port,
			Handler: router,
		}

		go func() {
			log.Printf("Starting server on port %s", a.cfg.Server.Port)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		// Wait for interrupt signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		// Cancel the context to stop the workers
		cancel()

		// Give outstanding requests a deadline to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}

		log.Println("Server exited")
	},
}

// runWithRecovery restarts a worker 30 seconds after it panics
func runWithRecovery(ctx context.Context, name string, run func(context.Context)) {
	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("PANIC in %s: %v - restarting in 30 seconds", name, r)
				}
			}()
			run(ctx)
		}()

		select {
		case <-ctx.Done():
			return // Graceful shutdown
		case <-time.After(30 * time.Second):
			log.Printf("Restarting %s after panic recovery...", name)
		}
	}
}
