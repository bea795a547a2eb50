package pattern

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

func newAnalyzer(t *testing.T) (*Analyzer, *gorm.DB) {
	t.Helper()
	gdb := db.TestDB(t)
	return NewAnalyzer(db.NewErrorRepository(gdb), logrus.New()), gdb
}

func TestAnalyzeDetectsBurstFromStoredHistory(t *testing.T) {
	ctx := context.Background()
	analyzer, gdb := newAnalyzer(t)

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	agg := db.SeedAggregatedError(t, gdb, "acme", "fp-burst", "Redis::TimeoutError", base)

	// Six occurrences 10s apart form one burst; a seventh an hour later
	// stays outside it.
	times := make([]time.Time, 0, 7)
	for i := 0; i < 6; i++ {
		times = append(times, base.Add(time.Duration(i)*10*time.Second))
	}
	times = append(times, base.Add(time.Hour))
	db.SeedOccurrences(t, gdb, agg.ID, "Redis::TimeoutError", "worker", times)

	report, err := analyzer.Analyze(ctx, "Redis::TimeoutError", "worker", base.Add(-time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 7, report.SampleSize)
	require.Len(t, report.Bursts, 1)
	assert.Equal(t, 6, report.Bursts[0].Count)
	assert.Equal(t, IntensityLow, report.Bursts[0].Intensity)
}

func TestAnalyzeClassifiesBusinessHoursRhythm(t *testing.T) {
	ctx := context.Background()
	analyzer, gdb := newAnalyzer(t)

	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	agg := db.SeedAggregatedError(t, gdb, "acme", "fp-rhythm", "NoMethodError", day)

	// Concentrate occurrences in hours 10-12, minutes apart so no burst
	// forms.
	var times []time.Time
	for _, hour := range []int{10, 11, 12} {
		for i := 0; i < 10; i++ {
			times = append(times, day.Add(time.Duration(hour)*time.Hour+time.Duration(i*5)*time.Minute))
		}
	}
	db.SeedOccurrences(t, gdb, agg.ID, "NoMethodError", "web", times)

	report, err := analyzer.Analyze(ctx, "NoMethodError", "web", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, KindBusinessHours, report.Cyclical.Kind)
	assert.ElementsMatch(t, []int{10, 11, 12}, report.Cyclical.PeakHours)
	assert.Empty(t, report.Bursts)
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	ctx := context.Background()
	analyzer, _ := newAnalyzer(t)

	from := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	report, err := analyzer.Analyze(ctx, "Ghost::Error", "web", from, from.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.SampleSize)
	assert.Equal(t, KindNone, report.Cyclical.Kind)
	assert.Empty(t, report.Bursts)
}

func TestScanAllCoversEveryDetectionKey(t *testing.T) {
	ctx := context.Background()
	analyzer, gdb := newAnalyzer(t)

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	web := db.SeedAggregatedError(t, gdb, "acme", "fp-web", "NoMethodError", base)
	worker := db.SeedAggregatedError(t, gdb, "acme", "fp-worker", "Net::OpenTimeout", base)

	var burstTimes []time.Time
	for i := 0; i < 5; i++ {
		burstTimes = append(burstTimes, base.Add(time.Duration(i)*20*time.Second))
	}
	db.SeedOccurrences(t, gdb, web.ID, "NoMethodError", "web", burstTimes)
	db.SeedOccurrences(t, gdb, worker.ID, "Net::OpenTimeout", "worker", []time.Time{base.Add(time.Minute)})

	reports, err := analyzer.ScanAll(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byType := make(map[string]*Report, len(reports))
	for _, r := range reports {
		byType[r.ErrorType] = r
	}
	require.Contains(t, byType, "NoMethodError")
	require.Contains(t, byType, "Net::OpenTimeout")
	assert.Len(t, byType["NoMethodError"].Bursts, 1)
	assert.Empty(t, byType["Net::OpenTimeout"].Bursts)
}
