package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestErrorRepositoryCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewErrorRepository(TestDB(t))

	t.Run("RejectsMissingFingerprint", func(t *testing.T) {
		err := repo.Create(ctx, &AggregatedError{ErrorType: "NoMethodError"})
		require.ErrorIs(t, err, ErrMissingFingerprint)
	})

	t.Run("RejectsMissingErrorType", func(t *testing.T) {
		err := repo.Create(ctx, &AggregatedError{Fingerprint: "fp-1"})
		require.ErrorIs(t, err, ErrMissingErrorType)
	})

	t.Run("CreatesAndAssignsID", func(t *testing.T) {
		record := &AggregatedError{
			Fingerprint: "fp-1",
			TenantID:    "acme",
			ErrorType:   "NoMethodError",
			FirstSeenAt: time.Now().UTC(),
			LastSeenAt:  time.Now().UTC(),
			Status:      StatusNew,
		}
		require.NoError(t, repo.Create(ctx, record))
		require.NotZero(t, record.ID)
	})

	t.Run("DuplicateKeyIsUniqueViolation", func(t *testing.T) {
		dup := &AggregatedError{
			Fingerprint: "fp-1",
			TenantID:    "acme",
			ErrorType:   "NoMethodError",
			FirstSeenAt: time.Now().UTC(),
			LastSeenAt:  time.Now().UTC(),
			Status:      StatusNew,
		}
		err := repo.Create(ctx, dup)
		require.ErrorIs(t, err, ErrUniqueViolation)
	})

	t.Run("SameFingerprintOtherTenantAllowed", func(t *testing.T) {
		other := &AggregatedError{
			Fingerprint: "fp-1",
			TenantID:    "globex",
			ErrorType:   "NoMethodError",
			FirstSeenAt: time.Now().UTC(),
			LastSeenAt:  time.Now().UTC(),
			Status:      StatusNew,
		}
		require.NoError(t, repo.Create(ctx, other))
	})
}

func TestErrorRepositoryMatchLookups(t *testing.T) {
	ctx := context.Background()
	gdb := TestDB(t)
	repo := NewErrorRepository(gdb)
	now := time.Now().UTC()

	fresh := SeedAggregatedError(t, gdb, "acme", "fp-fresh", "NoMethodError", now.Add(-time.Hour))
	stale := SeedAggregatedError(t, gdb, "acme", "fp-stale", "ArgumentError", now.Add(-72*time.Hour))
	require.NoError(t, gdb.Model(stale).Update("last_seen_at", now.Add(-72*time.Hour)).Error)

	resolved := SeedAggregatedError(t, gdb, "acme", "fp-resolved", "Net::ReadTimeout", now.Add(-time.Hour))
	require.NoError(t, gdb.Model(resolved).
		Updates(map[string]interface{}{"status": StatusResolved, "resolved": true}).Error)

	t.Run("ActiveMatchWithinWindow", func(t *testing.T) {
		got, err := repo.FindActiveMatch(ctx, "acme", "fp-fresh", 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, fresh.ID, got.ID)
	})

	t.Run("ActiveMatchMissesOutsideWindow", func(t *testing.T) {
		_, err := repo.FindActiveMatch(ctx, "acme", "fp-stale", 24*time.Hour)
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("ActiveMatchMissesResolved", func(t *testing.T) {
		_, err := repo.FindActiveMatch(ctx, "acme", "fp-resolved", 24*time.Hour)
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("ActiveMatchScopedToTenant", func(t *testing.T) {
		_, err := repo.FindActiveMatch(ctx, "globex", "fp-fresh", 24*time.Hour)
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("TerminalMatchFindsResolved", func(t *testing.T) {
		got, err := repo.FindTerminalMatch(ctx, "acme", "fp-resolved")
		require.NoError(t, err)
		assert.Equal(t, resolved.ID, got.ID)
	})

	t.Run("TerminalMatchSkipsActive", func(t *testing.T) {
		_, err := repo.FindTerminalMatch(ctx, "acme", "fp-fresh")
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("AnyMatchIgnoresStateAndAge", func(t *testing.T) {
		got, err := repo.FindAnyMatch(ctx, "acme", "fp-stale")
		require.NoError(t, err)
		assert.Equal(t, stale.ID, got.ID)
	})
}

func TestErrorRepositoryListAndTotals(t *testing.T) {
	ctx := context.Background()
	gdb := TestDB(t)
	repo := NewErrorRepository(gdb)
	now := time.Now().UTC()

	a := SeedAggregatedError(t, gdb, "acme", "fp-a", "NoMethodError", now.Add(-2*time.Hour))
	b := SeedAggregatedError(t, gdb, "acme", "fp-b", "NoMethodError", now.Add(-time.Hour))
	SeedAggregatedError(t, gdb, "globex", "fp-c", "ArgumentError", now)
	require.NoError(t, gdb.Model(a).Update("occurrence_count", 10).Error)
	require.NoError(t, gdb.Model(b).Update("occurrence_count", 3).Error)

	t.Run("ListByTenantOrdersByRecency", func(t *testing.T) {
		records, err := repo.ListByTenant(ctx, "acme", 0)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "fp-b", records[0].Fingerprint)
		assert.Equal(t, "fp-a", records[1].Fingerprint)
	})

	t.Run("ListByTenantHonorsLimit", func(t *testing.T) {
		records, err := repo.ListByTenant(ctx, "acme", 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("TotalOccurrencesSumsAcrossTenants", func(t *testing.T) {
		total, err := repo.TotalOccurrences(ctx, "NoMethodError")
		require.NoError(t, err)
		assert.Equal(t, int64(13), total)
	})

	t.Run("TotalOccurrencesUnknownTypeIsZero", func(t *testing.T) {
		total, err := repo.TotalOccurrences(ctx, "Missing")
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestErrorRepositoryOccurrenceQueries(t *testing.T) {
	ctx := context.Background()
	gdb := TestDB(t)
	repo := NewErrorRepository(gdb)

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	agg := SeedAggregatedError(t, gdb, "acme", "fp-occ", "NoMethodError", day)

	// Two in one hour bucket, one in the next, on web; one worker row.
	SeedOccurrences(t, gdb, agg.ID, "NoMethodError", "web", []time.Time{
		day.Add(10 * time.Hour),
		day.Add(10*time.Hour + 15*time.Minute),
		day.Add(11 * time.Hour),
	})
	SeedOccurrences(t, gdb, agg.ID, "NoMethodError", "worker", []time.Time{
		day.Add(10 * time.Hour),
	})

	from := day
	to := day.Add(24 * time.Hour)

	t.Run("OccurrenceTimesScopedAndSorted", func(t *testing.T) {
		times, err := repo.OccurrenceTimes(ctx, "NoMethodError", "web", from, to)
		require.NoError(t, err)
		require.Len(t, times, 3)
		assert.True(t, times[0].Before(times[1]))
		assert.True(t, times[1].Before(times[2]))
	})

	t.Run("CountsByPeriodHourly", func(t *testing.T) {
		counts, err := repo.CountsByPeriod(ctx, "NoMethodError", "web", PeriodHourly, from, to)
		require.NoError(t, err)
		require.Len(t, counts, 2)
		assert.Equal(t, "2026-08-28 10", counts[0].Period)
		assert.Equal(t, int64(2), counts[0].Count)
		assert.Equal(t, "2026-08-28 11", counts[1].Period)
		assert.Equal(t, int64(1), counts[1].Count)
	})

	t.Run("CountsByPeriodDaily", func(t *testing.T) {
		counts, err := repo.CountsByPeriod(ctx, "NoMethodError", "web", PeriodDaily, from, to)
		require.NoError(t, err)
		require.Len(t, counts, 1)
		assert.Equal(t, "2026-08-28", counts[0].Period)
		assert.Equal(t, int64(3), counts[0].Count)
	})

	t.Run("CountsByPeriodRejectsUnknownPeriod", func(t *testing.T) {
		_, err := repo.CountsByPeriod(ctx, "NoMethodError", "web", "monthly", from, to)
		require.ErrorIs(t, err, ErrInvalidPeriodType)
	})

	t.Run("DistinctTypePlatforms", func(t *testing.T) {
		keys, err := repo.DistinctTypePlatforms(ctx, from, to)
		require.NoError(t, err)
		require.Len(t, keys, 2)
	})

	t.Run("RecentOccurrencesWindowed", func(t *testing.T) {
		occs, err := repo.RecentOccurrences(ctx, day.Add(10*time.Hour+5*time.Minute), to)
		require.NoError(t, err)
		require.Len(t, occs, 2, "from bound is inclusive, rows before it excluded")
	})

	t.Run("RecordOccurrenceDefaultsTimestamp", func(t *testing.T) {
		occ := &ErrorOccurrence{AggregatedErrorID: agg.ID, Fingerprint: "fp-occ", ErrorType: "NoMethodError"}
		require.NoError(t, repo.RecordOccurrence(ctx, occ))
		assert.False(t, occ.OccurredAt.IsZero())
	})
}

func TestCascadeRepository(t *testing.T) {
	ctx := context.Background()
	gdb := TestDB(t)
	repo := NewCascadeRepository(gdb)
	detected := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	t.Run("RejectsMissingEndpoint", func(t *testing.T) {
		_, err := repo.Upsert(ctx, "", "ChildError", 5, 10, detected)
		require.ErrorIs(t, err, ErrMissingCascadeEndpoint)
	})

	t.Run("FirstDetectionCreatesEdge", func(t *testing.T) {
		edge, err := repo.Upsert(ctx, "PG::ConnectionBad", "ActiveRecord::StatementInvalid", 12.0, 10, detected)
		require.NoError(t, err)
		assert.Equal(t, int64(1), edge.Frequency)
		assert.InDelta(t, 12.0, edge.AvgDelaySeconds, 0.001)
		require.NotNil(t, edge.CascadeProbability)
		assert.InDelta(t, 0.1, *edge.CascadeProbability, 0.001)
	})

	t.Run("RedetectionFoldsDelayIntoMean", func(t *testing.T) {
		edge, err := repo.Upsert(ctx, "PG::ConnectionBad", "ActiveRecord::StatementInvalid", 18.0, 20, detected.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), edge.Frequency)
		assert.InDelta(t, 15.0, edge.AvgDelaySeconds, 0.001)
		require.NotNil(t, edge.CascadeProbability)
		assert.InDelta(t, 0.1, *edge.CascadeProbability, 0.001)
	})

	t.Run("ZeroParentTotalLeavesProbabilityUnset", func(t *testing.T) {
		edge, err := repo.Upsert(ctx, "OrphanParent", "ChildError", 3.0, 0, detected)
		require.NoError(t, err)
		assert.Nil(t, edge.CascadeProbability)
	})

	t.Run("ListByParentOrdersByFrequency", func(t *testing.T) {
		_, err := repo.Upsert(ctx, "PG::ConnectionBad", "Net::ReadTimeout", 2.0, 20, detected)
		require.NoError(t, err)

		edges, err := repo.ListByParent(ctx, "PG::ConnectionBad")
		require.NoError(t, err)
		require.Len(t, edges, 2)
		assert.Equal(t, "ActiveRecord::StatementInvalid", edges[0].ChildType)
	})

	t.Run("GetMissingEdge", func(t *testing.T) {
		_, err := repo.Get(ctx, "Nope", "Nada")
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("ConcurrentDetectionsKeepOneEdge", func(t *testing.T) {
		var g errgroup.Group
		for i := 0; i < 8; i++ {
			g.Go(func() error {
				_, upsertErr := repo.Upsert(ctx, "Redis::TimeoutError", "Sidekiq::JobRetry", 10.0, 40, detected)
				return upsertErr
			})
		}
		require.NoError(t, g.Wait())

		var count int64
		require.NoError(t, gdb.Model(&CascadePattern{}).
			Where("parent_type = ?", "Redis::TimeoutError").
			Count(&count).Error)
		assert.Equal(t, int64(1), count)

		edge, err := repo.Get(ctx, "Redis::TimeoutError", "Sidekiq::JobRetry")
		require.NoError(t, err)
		assert.Equal(t, int64(8), edge.Frequency)
		assert.InDelta(t, 10.0, edge.AvgDelaySeconds, 0.001)
		require.NotNil(t, edge.CascadeProbability)
		assert.InDelta(t, 0.2, *edge.CascadeProbability, 0.001)
	})
}
