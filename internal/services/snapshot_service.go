package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-portfolio/internal/metrics"
	"github.com/codyseavey/tcg-portfolio/internal/models"
)

// DefaultSnapshotSchedule is 11 PM every day
const DefaultSnapshotSchedule = "0 23 * * *"

// SnapshotService handles collection value snapshots
type SnapshotService struct {
	db           *gorm.DB
	priceService *PriceService
	schedule     string
	mu           sync.Mutex
	lastSnapshot time.Time
	now          func() time.Time
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(db *gorm.DB, priceService *PriceService, schedule string) *SnapshotService {
	if schedule == "" {
		schedule = DefaultSnapshotSchedule
	}
	return &SnapshotService{
		db:           db,
		priceService: priceService,
		schedule:     schedule,
		now:          time.Now,
	}
}

// Start takes today's snapshot if it is missing, then snapshots on the cron
// schedule until ctx is done
func (s *SnapshotService) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if err := s.TakeSnapshot(); err != nil {
			log.Printf("Snapshot service: failed to take snapshot: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", s.schedule, err)
	}

	log.Printf("Snapshot service started: will record collection value on %q", s.schedule)
	if !s.hasSnapshotForDate(s.now()) {
		if err := s.TakeSnapshot(); err != nil {
			log.Printf("Snapshot service: failed to take startup snapshot: %v", err)
		}
	}

	c.Start()
	<-ctx.Done()
	log.Println("Snapshot service stopping...")
	<-c.Stop().Done()
	return nil
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// hasSnapshotForDate checks if a snapshot exists for the given date
func (s *SnapshotService) hasSnapshotForDate(date time.Time) bool {
	start, end := dayBounds(date)
	var count int64
	s.db.Model(&models.CollectionValueSnapshot{}).
		Where("snapshot_date >= ? AND snapshot_date < ?", start, end).
		Count(&count)
	return count > 0
}

// TakeSnapshot records the current collection value, replacing today's
// snapshot if one exists
func (s *SnapshotService) TakeSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snapshotDate, end := dayBounds(now)

	stats, err := s.priceService.CollectionStats()
	if err != nil {
		metrics.SnapshotsTotal.WithLabelValues("failed").Inc()
		return err
	}

	snapshot := models.CollectionValueSnapshot{
		SnapshotDate:  snapshotDate,
		TotalCards:    stats.TotalCards,
		UniqueCards:   stats.UniqueCards,
		TotalValue:    stats.TotalValue,
		PricedItems:   stats.PricedItems,
		UnpricedItems: stats.UnpricedItems,
		CreatedAt:     now,
	}

	result := s.db.Where("snapshot_date >= ? AND snapshot_date < ?", snapshotDate, end).
		Assign(map[string]any{
			"total_cards":    snapshot.TotalCards,
			"unique_cards":   snapshot.UniqueCards,
			"total_value":    snapshot.TotalValue,
			"priced_items":   snapshot.PricedItems,
			"unpriced_items": snapshot.UnpricedItems,
		}).
		FirstOrCreate(&snapshot)
	if result.Error != nil {
		metrics.SnapshotsTotal.WithLabelValues("failed").Inc()
		return result.Error
	}

	s.lastSnapshot = now
	metrics.SnapshotsTotal.WithLabelValues("success").Inc()
	log.Printf("Snapshot service: recorded value snapshot for %s (total: $%.2f, cards: %d)",
		snapshotDate.Format("2006-01-02"), stats.TotalValue, stats.TotalCards)
	return nil
}

// GetHistory retrieves value snapshots for a given period
func (s *SnapshotService) GetHistory(period string) ([]models.CollectionValueSnapshot, error) {
	var snapshots []models.CollectionValueSnapshot

	now := s.now()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = now.AddDate(0, -1, 0)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{} // No filter
	default:
		startDate = now.AddDate(0, -1, 0) // Default to 1 month
	}

	query := s.db.Order("snapshot_date ASC")
	if !startDate.IsZero() {
		start, _ := dayBounds(startDate)
		query = query.Where("snapshot_date >= ?", start)
	}

	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}
	if snapshots == nil {
		snapshots = []models.CollectionValueSnapshot{}
	}
	return snapshots, nil
}

// GetValueHistory is GetHistory plus the percent change across the period
func (s *SnapshotService) GetValueHistory(period string) (*models.ValueHistoryResponse, error) {
	snapshots, err := s.GetHistory(period)
	if err != nil {
		return nil, err
	}
	if period == "" {
		period = "month"
	}
	resp := &models.ValueHistoryResponse{Snapshots: snapshots, Period: period}
	if len(snapshots) >= 2 {
		first := snapshots[0].TotalValue
		last := snapshots[len(snapshots)-1].TotalValue
		if first > 0 {
			change := (last - first) / first * 100
			resp.Change = &change
		}
	}
	return resp, nil
}

// GetLastSnapshot returns the most recent snapshot
func (s *SnapshotService) GetLastSnapshot() *models.CollectionValueSnapshot {
	var snapshot models.CollectionValueSnapshot
	if err := s.db.Order("snapshot_date DESC").First(&snapshot).Error; err != nil {
		return nil
	}
	return &snapshot
}
