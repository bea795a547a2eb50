package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrz1836/go-faultline/internal/db"
)

func newDetector(t *testing.T, cfg Config) (*Detector, *gorm.DB, db.ErrorRepository, db.BaselineRepository) {
	t.Helper()
	gdb := db.TestDB(t)
	errRepo := db.NewErrorRepository(gdb)
	baseRepo := db.NewBaselineRepository(gdb)
	return NewDetector(errRepo, baseRepo, cfg, logrus.New()), gdb, errRepo, baseRepo
}

func TestClassifyMultiplier(t *testing.T) {
	tests := []struct {
		multiplier float64
		expected   Level
	}{
		{0, LevelNormal},
		{1.5, LevelNormal},
		{1.99, LevelNormal},
		{2.0, LevelElevated},
		{3.0, LevelElevated},
		{4.99, LevelElevated},
		{5.0, LevelHigh},
		{7.0, LevelHigh},
		{9.99, LevelHigh},
		{10.0, LevelCritical},
		{12.0, LevelCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClassifyMultiplier(tt.multiplier), "multiplier=%v", tt.multiplier)
	}
}

func TestComputeStats(t *testing.T) {
	t.Run("EmptyInput", func(t *testing.T) {
		stats := Compute(nil)
		require.Zero(t, stats.SampleSize)
		require.Zero(t, stats.Mean)
		require.Zero(t, stats.StdDev)
	})

	t.Run("ConstantSeries", func(t *testing.T) {
		counts := []db.PeriodCount{
			{Period: "a", Count: 4}, {Period: "b", Count: 4}, {Period: "c", Count: 4},
		}
		stats := Compute(counts)
		require.Equal(t, int64(12), stats.Total)
		require.InDelta(t, 4.0, stats.Mean, 0.001)
		require.InDelta(t, 0.0, stats.StdDev, 0.001)
		require.Equal(t, 3, stats.SampleSize)
	})

	t.Run("KnownSeries", func(t *testing.T) {
		counts := []db.PeriodCount{
			{Period: "a", Count: 2}, {Period: "b", Count: 4},
			{Period: "c", Count: 4}, {Period: "d", Count: 4},
			{Period: "e", Count: 5}, {Period: "f", Count: 5},
			{Period: "g", Count: 7}, {Period: "h", Count: 9},
		}
		stats := Compute(counts)
		require.InDelta(t, 5.0, stats.Mean, 0.001)
		require.InDelta(t, 2.0, stats.StdDev, 0.001) // classic population stddev example
		require.InDelta(t, 9.0, stats.P99, 0.001)
	})

	t.Run("Percentiles", func(t *testing.T) {
		counts := make([]db.PeriodCount, 100)
		for i := range counts {
			counts[i] = db.PeriodCount{Period: "p", Count: int64(i + 1)}
		}
		stats := Compute(counts)
		require.InDelta(t, 95.0, stats.P95, 0.001)
		require.InDelta(t, 99.0, stats.P99, 0.001)
	})
}

func TestRefreshUpsertsBaseline(t *testing.T) {
	ctx := context.Background()
	detector, gdb, _, baseRepo := newDetector(t, DefaultConfig())

	// Five days of history at 4/day for NoMethodError on web. Anchor at
	// midday so a cluster never straddles a daily bucket boundary.
	midday := time.Now().UTC().Truncate(24 * time.Hour).Add(12 * time.Hour)
	agg := db.SeedAggregatedError(t, gdb, "", "fp-base", "NoMethodError", midday)
	for day := 1; day <= 5; day++ {
		dayStart := midday.Add(-time.Duration(day) * 24 * time.Hour)
		db.SeedOccurrences(t, gdb, agg.ID, "NoMethodError", "web", []time.Time{
			dayStart, dayStart.Add(time.Hour), dayStart.Add(2 * time.Hour), dayStart.Add(3 * time.Hour),
		})
	}

	b, err := detector.Refresh(ctx, "NoMethodError", "web", db.PeriodDaily)
	require.NoError(t, err)
	require.Equal(t, 5, b.SampleSize)
	require.InDelta(t, 4.0, b.Mean, 0.001)
	require.InDelta(t, 0.0, b.StdDev, 0.001)

	t.Run("RecomputesInPlace", func(t *testing.T) {
		extra := midday.Add(-6 * 24 * time.Hour)
		db.SeedOccurrences(t, gdb, agg.ID, "NoMethodError", "web", []time.Time{extra})

		again, refreshErr := detector.Refresh(ctx, "NoMethodError", "web", db.PeriodDaily)
		require.NoError(t, refreshErr)
		require.Equal(t, b.ID, again.ID, "same row recomputed, not duplicated")
		require.Equal(t, 6, again.SampleSize)

		stored, getErr := baseRepo.Get(ctx, "NoMethodError", "web", db.PeriodDaily)
		require.NoError(t, getErr)
		require.Equal(t, 6, stored.SampleSize)
	})
}

func TestCheckAnomaly(t *testing.T) {
	ctx := context.Background()
	detector, _, _, baseRepo := newDetector(t, DefaultConfig())

	t.Run("NoBaselineIsNeutral", func(t *testing.T) {
		info := detector.CheckAnomaly(ctx, "UnknownError", "web", 50)
		require.Equal(t, LevelNone, info.Level)
	})

	require.NoError(t, baseRepo.Upsert(ctx, &db.Baseline{
		ErrorType:   "NoMethodError",
		Platform:    "web",
		PeriodType:  db.PeriodDaily,
		PeriodStart: time.Now().Add(-30 * 24 * time.Hour),
		PeriodEnd:   time.Now(),
		Mean:        10,
		StdDev:      2,
		SampleSize:  30,
	}))

	t.Run("ClassifiesAgainstMean", func(t *testing.T) {
		info := detector.CheckAnomaly(ctx, "NoMethodError", "web", 70)
		require.Equal(t, LevelHigh, info.Level) // 7x the mean
		require.InDelta(t, 7.0, info.Multiplier, 0.001)
		require.InDelta(t, 30.0, info.StdDevDistance, 0.001) // (70-10)/2
	})

	t.Run("NormalCount", func(t *testing.T) {
		info := detector.CheckAnomaly(ctx, "NoMethodError", "web", 12)
		require.Equal(t, LevelNormal, info.Level)
	})

	t.Run("DegenerateBaselineIsNeutral", func(t *testing.T) {
		require.NoError(t, baseRepo.Upsert(ctx, &db.Baseline{
			ErrorType:  "DeadError",
			Platform:   "web",
			PeriodType: db.PeriodDaily,
			Mean:       0,
			StdDev:     0,
			SampleSize: 0,
		}))
		info := detector.CheckAnomaly(ctx, "DeadError", "web", 100)
		require.Equal(t, LevelNone, info.Level, "zero sample size never divides")
	})
}

func TestShouldAlert(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	current := base
	detector, _, _, _ := newDetector(t, Config{
		AlertLevels:   []Level{LevelHigh, LevelCritical},
		AlertCooldown: time.Hour,
	})
	detector.WithNowFunc(func() time.Time { return current })

	high := AnomalyInfo{ErrorType: "NoMethodError", Platform: "web", Level: LevelHigh}

	t.Run("LevelAllowList", func(t *testing.T) {
		require.False(t, detector.ShouldAlert(AnomalyInfo{Level: LevelElevated}))
		require.False(t, detector.ShouldAlert(AnomalyInfo{Level: LevelNormal}))
		require.False(t, detector.ShouldAlert(AnomalyInfo{Level: LevelNone}))
		require.True(t, detector.ShouldAlert(high))
	})

	t.Run("PerKeyCooldown", func(t *testing.T) {
		current = base.Add(30 * time.Minute)
		require.False(t, detector.ShouldAlert(high), "inside cooldown")

		otherPlatform := high
		otherPlatform.Platform = "worker"
		require.True(t, detector.ShouldAlert(otherPlatform), "cooldown is per (type, platform)")

		current = base.Add(2 * time.Hour)
		require.True(t, detector.ShouldAlert(high), "outside cooldown")
	})
}
