package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/go-faultline/internal/aggregate"
	"github.com/mrz1836/go-faultline/internal/baseline"
	"github.com/mrz1836/go-faultline/internal/db"
	"github.com/mrz1836/go-faultline/internal/filter"
	"github.com/mrz1836/go-faultline/internal/fingerprint"
	"github.com/mrz1836/go-faultline/internal/severity"
	"github.com/mrz1836/go-faultline/internal/signal"
	"github.com/mrz1836/go-faultline/internal/throttle"
)

type recordingDispatcher struct {
	mu        sync.Mutex
	delivered []*aggregate.Result
	anomalies []*baseline.AnomalyInfo
	fail      bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, result *aggregate.Result, anomaly *baseline.AnomalyInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return assert.AnError
	}
	d.delivered = append(d.delivered, result)
	d.anomalies = append(d.anomalies, anomaly)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}

func newPipeline(t *testing.T, filterCfg filter.Config, dispatcher Dispatcher) (*Pipeline, *throttle.Notifier) {
	t.Helper()
	logger := logrus.New()
	gdb := db.TestDB(t)
	errRepo := db.NewErrorRepository(gdb)
	baseRepo := db.NewBaselineRepository(gdb)

	classifier := severity.NewClassifier(nil)
	engine := aggregate.NewEngine(errRepo, fingerprint.New(logger), classifier, aggregate.Config{}, logger)
	throttler := throttle.NewNotifier(throttle.DefaultConfig(), logger)
	detector := baseline.NewDetector(errRepo, baseRepo, baseline.DefaultConfig(), logger)
	gate := filter.New(filterCfg, classifier, logger)

	return NewPipeline(gate, engine, throttler, detector, dispatcher, errRepo, logger), throttler
}

func captureSignal() *signal.ErrorSignal {
	return &signal.ErrorSignal{
		Type:     "NoMethodError",
		Message:  "undefined method `find' for nil",
		TenantID: "acme",
		Platform: "web",
	}
}

func TestCaptureFirstOccurrenceDispatches(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	pipeline, _ := newPipeline(t, filter.Config{}, dispatcher)

	pipeline.Capture(context.Background(), captureSignal())

	require.Equal(t, 1, dispatcher.count())
	assert.True(t, dispatcher.delivered[0].FirstOccurrence())
	assert.Nil(t, dispatcher.anomalies[0], "no baseline yet, no anomaly attached")
}

func TestCaptureRepeatsStayQuietUntilMilestone(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	pipeline, _ := newPipeline(t, filter.Config{}, dispatcher)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		pipeline.Capture(ctx, captureSignal())
	}

	// One dispatch for the first occurrence, one for the count=10
	// milestone; occurrences 2 through 9 stay inside the cooldown.
	require.Equal(t, 2, dispatcher.count())
	assert.Equal(t, int64(10), dispatcher.delivered[1].Record.OccurrenceCount)
}

func TestCaptureIgnoredTypeDropsSignal(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	pipeline, _ := newPipeline(t, filter.Config{IgnoreTypes: []string{"NoMethodError"}}, dispatcher)

	pipeline.Capture(context.Background(), captureSignal())

	assert.Zero(t, dispatcher.count())
}

func TestCaptureMalformedSignalIsSafe(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	pipeline, _ := newPipeline(t, filter.Config{}, dispatcher)
	ctx := context.Background()

	sig := captureSignal()
	sig.Type = ""
	pipeline.Capture(ctx, sig)

	require.NotPanics(t, func() { pipeline.Capture(ctx, nil) })
	assert.Zero(t, dispatcher.count())
}

func TestCaptureDispatchFailureLeavesCooldownOpen(t *testing.T) {
	dispatcher := &recordingDispatcher{fail: true}
	pipeline, throttler := newPipeline(t, filter.Config{}, dispatcher)

	pipeline.Capture(context.Background(), captureSignal())

	assert.Zero(t, dispatcher.count())
	assert.Zero(t, throttler.Size(), "failed dispatch never starts the cooldown")
}

func TestCaptureNilDispatcherStillAdvancesThrottle(t *testing.T) {
	pipeline, throttler := newPipeline(t, filter.Config{}, nil)

	pipeline.Capture(context.Background(), captureSignal())

	assert.Equal(t, 1, throttler.Size())
}
