package services

import (
	"context"
	"testing"
	"time"

	"waitwhat-backend/internal/models"
)

func TestComputeLostSpikeStats_Buckets(t *testing.T) {
	now := testEpoch

	tests := []struct {
		name    string
		ago     []time.Duration
		buckets map[int]int
		last60  int
		last5m  int
	}{
		{
			name:    "one per recent bucket",
			ago:     []time.Duration{15 * time.Second, 45 * time.Second, 75 * time.Second},
			buckets: map[int]int{9: 1, 8: 1, 7: 1},
			last60:  2,
			last5m:  3,
		},
		{
			name:    "30s boundary belongs to the newer bucket",
			ago:     []time.Duration{30 * time.Second},
			buckets: map[int]int{9: 1},
			last60:  1,
			last5m:  1,
		},
		{
			name:    "oldest edge is bucket 0",
			ago:     []time.Duration{300 * time.Second, 269 * time.Second},
			buckets: map[int]int{0: 1, 1: 1},
			last5m:  2,
		},
		{
			name:   "outside window ignored",
			ago:    []time.Duration{301 * time.Second, -time.Second},
			last5m: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ts []time.Time
			for _, d := range tc.ago {
				ts = append(ts, now.Add(-d))
			}

			stats := ComputeLostSpikeStats(ts, now)

			if len(stats.Buckets) != 10 {
				t.Fatalf("Expected 10 buckets, got %d", len(stats.Buckets))
			}
			for i, got := range stats.Buckets {
				if want := tc.buckets[i]; got != want {
					t.Errorf("bucket[%d]: expected %d, got %d", i, want, got)
				}
			}
			if stats.Last60sCount != tc.last60 {
				t.Errorf("last60s: expected %d, got %d", tc.last60, stats.Last60sCount)
			}
			if stats.Last5mCount != tc.last5m {
				t.Errorf("last5m: expected %d, got %d", tc.last5m, stats.Last5mCount)
			}
		})
	}
}

func TestLostSignalService_ReadsStore(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	repos := newTestRepos()
	sess := createTestSession(ctx, repos, "calm-otter-01", clock.Now())

	for _, d := range []time.Duration{10 * time.Minute, 20 * time.Second, 5 * time.Second} {
		repos.LostEvents.Append(ctx, &models.LostEvent{SessionID: sess.ID, StudentID: "amy", CreatedAt: clock.Now().Add(-d)})
	}

	stats, err := NewLostSignalService(repos.LostEvents, clock.Now).GetLostSpikeStats(ctx, sess.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Last5mCount != 2 || stats.Buckets[9] != 2 {
		t.Errorf("Expected two recent events in the newest bucket, got %+v", stats)
	}
	if !stats.ComputedAt.Equal(clock.Now()) {
		t.Errorf("Expected computed_at to be now, got %s", stats.ComputedAt)
	}
}
