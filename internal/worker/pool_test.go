package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	name string
	runs atomic.Int32
	err  error
}

func (t *countingTask) Execute(_ context.Context) error {
	t.runs.Add(1)
	return t.err
}

func (t *countingTask) Name() string { return t.name }

type panicTask struct{}

func (panicTask) Execute(_ context.Context) error { panic("boom") }
func (panicTask) Name() string                    { return "panic-task" }

func collectReports(t *testing.T, pool *Pool, n int) []Report {
	t.Helper()
	reports := make([]Report, 0, n)
	timeout := time.After(5 * time.Second)
	for len(reports) < n {
		select {
		case r := <-pool.Reports():
			reports = append(reports, r)
		case <-timeout:
			t.Fatalf("timed out waiting for %d reports, got %d", n, len(reports))
		}
	}
	return reports
}

func TestPoolExecutesSubmittedTasks(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Start(context.Background())
	defer pool.Shutdown()

	task := &countingTask{name: "refresh"}
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(task))
	}

	reports := collectReports(t, pool, 5)
	assert.Equal(t, int32(5), task.runs.Load())
	for _, r := range reports {
		assert.Equal(t, "refresh", r.Task)
		assert.NoError(t, r.Err)
	}
}

func TestPoolReportsTaskErrors(t *testing.T) {
	pool := NewPool(1, 4)
	pool.Start(context.Background())
	defer pool.Shutdown()

	wantErr := errors.New("scan failed")
	require.NoError(t, pool.Submit(&countingTask{name: "scan", err: wantErr}))

	reports := collectReports(t, pool, 1)
	require.ErrorIs(t, reports[0].Err, wantErr)
}

func TestPoolRecoversFromPanics(t *testing.T) {
	pool := NewPool(1, 4)
	pool.Start(context.Background())
	defer pool.Shutdown()

	require.NoError(t, pool.Submit(panicTask{}))
	after := &countingTask{name: "after"}
	require.NoError(t, pool.Submit(after))

	reports := collectReports(t, pool, 2)
	require.ErrorIs(t, reports[0].Err, ErrTaskPanicked)
	assert.Equal(t, "panic-task", reports[0].Task)
	assert.Equal(t, int32(1), after.runs.Load(), "worker survives the panic")
}

func TestPoolQueueFull(t *testing.T) {
	pool := NewPool(1, 1)
	// Not started: the single queue slot fills immediately.
	require.NoError(t, pool.Submit(&countingTask{name: "first"}))
	require.ErrorIs(t, pool.Submit(&countingTask{name: "second"}), ErrQueueFull)
}

func TestPoolSubmitBatch(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Start(context.Background())

	tasks := []Task{
		&countingTask{name: "a"},
		&countingTask{name: "b"},
		&countingTask{name: "c"},
	}
	require.NoError(t, pool.SubmitBatch(tasks))
	collectReports(t, pool, 3)

	pool.Shutdown()
	stats := pool.Snapshot()
	assert.Equal(t, int64(3), stats.Processed)
	assert.Zero(t, stats.Active)
	assert.Zero(t, stats.Queued)
}
