package main

import (
	"context"
	"fmt"
	"log"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/codyseavey/tcg-portfolio/internal/services"
)

var (
	syncAll    bool
	syncStats  bool
	syncDryRun bool
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Width(28)
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
)

var syncCMD = &cobra.Command{
	Use:   "sync [set-id...]",
	Short: "Sync prices from the price feed",
	Long: `Without arguments, runs one sync batch over the collection. With set ids,
imports every card of each set into the catalog together with its prices.
--all does that for every set already in the catalog, --stats reports
price coverage and --dry-run fetches and matches without writing anything.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap()
		ctx := context.Background()

		if syncStats {
			coverage, err := a.priceService.Coverage()
			if err != nil {
				log.Fatalf("Failed to read price coverage: %v", err)
			}
			printCoverage(coverage)
			return
		}

		setIDs := args
		if syncAll {
			ids, err := a.syncWorker.CatalogSetIDs()
			if err != nil {
				log.Fatalf("Failed to list sets: %v", err)
			}
			if len(ids) == 0 {
				fmt.Println(warnStyle.Render("No sets in the catalog, import one with: sync <set-id>"))
				return
			}
			setIDs = ids
		}

		if len(setIDs) == 0 {
			if syncDryRun {
				log.Fatal("--dry-run needs set ids or --all")
			}
			updated, err := a.syncWorker.UpdateBatch(ctx)
			if err != nil {
				log.Fatalf("Price sync failed: %v", err)
			}
			fmt.Printf("Updated prices for %d cards\n", updated)
			return
		}

		var total services.SyncStats
		for i, setID := range setIDs {
			fmt.Println(titleStyle.Render(fmt.Sprintf("[%d/%d] Set %s", i+1, len(setIDs), setID)))
			stats, err := a.syncWorker.SyncSet(ctx, setID, syncDryRun)
			if err != nil {
				log.Printf("Failed to sync set %s: %v", setID, err)
				stats.Errors++
			}
			fmt.Println(dimStyle.Render(fmt.Sprintf("  Fetched: %d | Matched: %d | Updated: %d | Skipped: %d | Errors: %d",
				stats.Fetched, stats.Matched, stats.Updated, stats.Skipped, stats.Errors)))
			total.Add(stats)
		}

		printSyncSummary(total, syncDryRun)
		if unmatched := a.syncWorker.GetStatus().UnmatchedCards; len(unmatched) > 0 {
			fmt.Println(warnStyle.Render(fmt.Sprintf("%d cards could not be matched:", len(unmatched))))
			for _, c := range unmatched {
				fmt.Printf("  - %s (#%s): %s\n", c.Name, c.CardNumber, c.Reason)
			}
		}
	},
}

func init() {
	syncCMD.Flags().BoolVar(&syncAll, "all", false, "sync every set in the catalog")
	syncCMD.Flags().BoolVar(&syncStats, "stats", false, "show price coverage and exit")
	syncCMD.Flags().BoolVar(&syncDryRun, "dry-run", false, "fetch and match without writing")
}

func printSyncSummary(s services.SyncStats, dryRun bool) {
	fmt.Println()
	fmt.Println(titleStyle.Render("Sync summary"))
	fmt.Println(labelStyle.Render("Cards fetched from feed") + fmt.Sprint(s.Fetched))
	fmt.Println(labelStyle.Render("Cards matched") + goodStyle.Render(fmt.Sprint(s.Matched)))
	fmt.Println(labelStyle.Render("Cards updated") + goodStyle.Render(fmt.Sprint(s.Updated)))
	fmt.Println(labelStyle.Render("Cards skipped (no match)") + warnStyle.Render(fmt.Sprint(s.Skipped)))
	fmt.Println(labelStyle.Render("Errors") + badStyle.Render(fmt.Sprint(s.Errors)))
	if dryRun {
		fmt.Println(warnStyle.Render("Dry run: nothing was written"))
	}
}

func printCoverage(c services.PriceCoverage) {
	pct := func(n int64) string {
		if c.PriceRecords == 0 {
			return "0%"
		}
		return fmt.Sprintf("%.1f%%", float64(n)/float64(c.PriceRecords)*100)
	}
	row := func(label string, n int64, share string) {
		fmt.Println(labelStyle.Render(label) + goodStyle.Render(fmt.Sprintf("%8d", n)) + "  " + warnStyle.Render(share))
	}

	fmt.Println(titleStyle.Render("Price coverage"))
	row("Sets in catalog", c.Sets, "-")
	row("Catalog cards", c.Cards, "-")
	row("Price records", c.PriceRecords, "100%")
	row("With market price", c.WithMarketPrice, pct(c.WithMarketPrice))
	row("With PSA10 data", c.WithPSA10, pct(c.WithPSA10))
	row("With price history", c.WithHistory, pct(c.WithHistory))
	row("Recently updated", c.RecentlyUpdated, pct(c.RecentlyUpdated))
}
