package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/internal/health"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vitals.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(metric health.Metric, value float64, at time.Time) health.NormalizedRecord {
	return health.NormalizedRecord{
		UserID:      "u1",
		Metric:      metric,
		Value:       value,
		CollectedAt: at,
		Source:      health.SourceAggregator,
		SourceLabel: "Samsung Health",
	}
}

func TestStore_InsertAndReadBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

	records := []health.NormalizedRecord{
		record(health.MetricSteps, 4200, at),
		record(health.MetricHeartRate, 71, at.Add(time.Hour)),
		{
			UserID: "u1", Metric: health.MetricBloodPressure,
			Systolic: 121, Diastolic: 79,
			CollectedAt: at.Add(2 * time.Hour),
			Source:      health.SourceRadioLink, SourceLabel: "BP Monitor",
		},
	}

	inserted, err := s.InsertRecords(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	got, err := s.RecordsForDay(ctx, "u1", at)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, health.MetricSteps, got[0].Metric)
	assert.Equal(t, 4200.0, got[0].Value)
	assert.Equal(t, at, got[0].CollectedAt)
	assert.Equal(t, "Samsung Health", got[0].SourceLabel)

	bp := got[2]
	assert.Equal(t, 121, bp.Systolic)
	assert.Equal(t, 79, bp.Diastolic)
	assert.Equal(t, health.SourceRadioLink, bp.Source)
}

func TestStore_DuplicatesIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

	batch := []health.NormalizedRecord{record(health.MetricSteps, 4200, at)}

	inserted, err := s.InsertRecords(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	// Re-syncing the same window produces the same rows.
	inserted, err = s.InsertRecords(ctx, batch)
	require.NoError(t, err)
	assert.Zero(t, inserted)

	got, err := s.RecordsForDay(ctx, "u1", at)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_RecordsScopedToDayAndUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	other := record(health.MetricSteps, 100, at)
	other.UserID = "u2"

	_, err := s.InsertRecords(ctx, []health.NormalizedRecord{
		record(health.MetricSteps, 4200, at),
		record(health.MetricSteps, 9999, at.AddDate(0, 0, -1)),
		other,
	})
	require.NoError(t, err)

	got, err := s.RecordsForDay(ctx, "u1", at)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4200.0, got[0].Value)
}

func TestStore_LastCollectedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LastCollectedAt(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	_, err = s.InsertRecords(ctx, []health.NormalizedRecord{
		record(health.MetricSteps, 100, at.Add(-time.Hour)),
		record(health.MetricHeartRate, 70, at),
	})
	require.NoError(t, err)

	last, ok, err := s.LastCollectedAt(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at, last)
}

func TestStore_SummaryUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	first := health.DailySummary{
		UserID: "u1", Day: day,
		Steps: 4000, HeartRate: 70, OxygenPct: 95, OxygenEstimated: true,
	}
	require.NoError(t, s.UpsertSummary(ctx, first))

	// A later cycle fully replaces the earlier computation.
	second := first
	second.Steps = 8200
	second.OxygenPct = 98
	second.OxygenEstimated = false
	require.NoError(t, s.UpsertSummary(ctx, second))

	got, ok, err := s.SummaryForDay(ctx, "u1", day)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 8200, got.Steps)
	assert.Equal(t, 98, got.OxygenPct)
	assert.False(t, got.OxygenEstimated)
}

func TestStore_LatestSummary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestSummary(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, d := range []int{8, 10, 9} {
		day := time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.UpsertSummary(ctx, health.DailySummary{
			UserID: "u1", Day: day, Steps: d * 1000,
		}))
	}

	got, ok, err := s.LatestSummary(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, got.Day.Day())
	assert.Equal(t, 10000, got.Steps)
}

func TestOfflineCache(t *testing.T) {
	t.Run("drain returns buffered records oldest first", func(t *testing.T) {
		c := NewOfflineCache[health.NormalizedRecord](8, quietLogger())
		at := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

		c.Add(record(health.MetricSteps, 1, at))
		c.Add(record(health.MetricSteps, 2, at.Add(time.Minute)))

		got := c.Drain()
		require.Len(t, got, 2)
		assert.Equal(t, 1.0, got[0].Value)
		assert.Equal(t, 2.0, got[1].Value)
		assert.Empty(t, c.Drain())
	})

	t.Run("overflow drops oldest and counts losses", func(t *testing.T) {
		c := NewOfflineCache[int](4, quietLogger())
		for i := 0; i < 10; i++ {
			c.Add(i)
		}
		got := c.Drain()
		assert.NotEmpty(t, got)
		assert.Greater(t, c.Overwritten(), int64(0))
		// The newest record always survives.
		assert.Equal(t, 9, got[len(got)-1])
	})
}
