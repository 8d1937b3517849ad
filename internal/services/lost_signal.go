package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"waitwhat-backend/internal/models"
)

const (
	spikeBucketCount = 10
	spikeBucketWidth = 30 * time.Second
	spikeWindow      = spikeBucketCount * spikeBucketWidth
)

type LostSignalService struct {
	lostEvents LostEventStore
	now        func() time.Time
}

func NewLostSignalService(lostEvents LostEventStore, now func() time.Time) *LostSignalService {
	if now == nil {
		now = time.Now
	}
	return &LostSignalService{lostEvents: lostEvents, now: now}
}

func (s *LostSignalService) GetLostSpikeStats(ctx context.Context, sessionID uuid.UUID) (*models.LostSpikeStats, error) {
	now := s.now()
	timestamps, err := s.lostEvents.TimestampsSince(ctx, sessionID, now.Add(-spikeWindow))
	if err != nil {
		return nil, err
	}
	stats := ComputeLostSpikeStats(timestamps, now)
	return &stats, nil
}

// ComputeLostSpikeStats histograms lost events over the five minutes before
// now. Bucket i covers [now-(10-i)*30s, now-(9-i)*30s), oldest first.
func ComputeLostSpikeStats(timestamps []time.Time, now time.Time) models.LostSpikeStats {
	stats := models.LostSpikeStats{
		Buckets:    make([]int, spikeBucketCount),
		ComputedAt: now,
	}
	windowStart := now.Add(-spikeWindow)

	for _, t := range timestamps {
		if t.After(now) {
			continue
		}
		age := now.Sub(t)
		if age <= time.Minute {
			stats.Last60sCount++
		}
		if age <= spikeWindow {
			stats.Last5mCount++
		}

		offset := t.Sub(windowStart)
		if offset < 0 {
			continue
		}
		if i := int(offset / spikeBucketWidth); i < spikeBucketCount {
			stats.Buckets[i]++
		}
	}
	return stats
}
