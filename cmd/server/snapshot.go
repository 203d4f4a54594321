package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/codyseavey/tcg-portfolio/internal/pricing"
)

var snapshotCMD = &cobra.Command{
	Use:   "snapshot",
	Short: "Record today's collection value snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		a := bootstrap()
		if err := a.snapshots.TakeSnapshot(); err != nil {
			log.Fatalf("Failed to take snapshot: %v", err)
		}
		last := a.snapshots.GetLastSnapshot()
		if last == nil {
			return
		}
		fmt.Printf("%s: %d cards (%d unique), value %s, %d unpriced\n",
			last.SnapshotDate.Format("2006-01-02"), last.TotalCards, last.UniqueCards,
			pricing.FormatPrice(last.TotalValue, pricing.PriceStyleExact), last.UnpricedItems)

		history, err := a.snapshots.GetValueHistory("month")
		if err == nil && history.Change != nil {
			fmt.Printf("30-day change: %s\n", pricing.FormatPercentChange(*history.Change))
		}
	},
}
