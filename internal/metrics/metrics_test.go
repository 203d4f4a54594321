package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestUpdateCollectionMetrics(t *testing.T) {
	UpdateCollectionMetrics(12, 250.75, 3)

	if got := testutil.ToFloat64(CollectionCardsTotal); got != 12 {
		t.Errorf("CollectionCardsTotal = %v, want 12", got)
	}
	if got := testutil.ToFloat64(CollectionValueUSD); got != 250.75 {
		t.Errorf("CollectionValueUSD = %v, want 250.75", got)
	}
	if got := testutil.ToFloat64(CollectionUnpricedItems); got != 3 {
		t.Errorf("CollectionUnpricedItems = %v, want 3", got)
	}
}

func TestResolutionCounter(t *testing.T) {
	before := testutil.ToFloat64(PriceResolutionsTotal.WithLabelValues("exact"))
	PriceResolutionsTotal.WithLabelValues("exact").Inc()
	if got := testutil.ToFloat64(PriceResolutionsTotal.WithLabelValues("exact")); got != before+1 {
		t.Errorf("exact resolutions = %v, want %v", got, before+1)
	}
}
