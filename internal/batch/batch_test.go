package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunKeepsIndexAlignment(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	results := Run(context.Background(), items, Options{Workers: 3}, func(_ context.Context, n int) Result[int] {
		if n%4 == 0 {
			return Soft(fmt.Sprint(n), n, errors.New("flaky"))
		}
		return OK(fmt.Sprint(n), n*n)
	})

	require.Len(t, results, len(items))
	for i, n := range items {
		assert.Equal(t, fmt.Sprint(n), results[i].Key)
	}
	assert.Equal(t, 9, results[2].Value)
	assert.Equal(t, SoftFailure, results[3].Outcome)

	s := Summarize("square", results)
	assert.Equal(t, Summary{Stage: "square", Total: 8, Resolved: 6, Failed: 2}, s)
}

func TestRunBoundsParallelism(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 20)
	Run(context.Background(), items, Options{Workers: 2}, func(_ context.Context, _ int) Result[struct{}] {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return OK("", struct{}{})
	})
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunStopsSpawningAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	items := make([]int, 10)

	results := Run(ctx, items, Options{Workers: 1}, func(itemCtx context.Context, _ int) Result[int] {
		if started.Add(1) == 1 {
			cancel()
			time.Sleep(5 * time.Millisecond)
			// 正在运行的工作项不随外部 ctx 取消
			assert.NoError(t, itemCtx.Err())
		}
		return OK("x", 1)
	})

	s := Summarize("cancel", results)
	assert.Equal(t, 1, s.Resolved)
	assert.Equal(t, 9, s.Skipped)
	assert.ErrorIs(t, results[9].Err, context.Canceled)
}

func TestRunCancelNeverExceedsWorkers(t *testing.T) {
	for workers := 1; workers <= 3; workers++ {
		ctx, cancel := context.WithCancel(context.Background())
		var started atomic.Int32
		items := make([]int, 10)

		results := Run(ctx, items, Options{Workers: workers}, func(context.Context, int) Result[int] {
			if started.Add(1) == 1 {
				cancel()
			}
			time.Sleep(2 * time.Millisecond)
			return OK("x", 1)
		})

		s := Summarize("cancel", results)
		assert.LessOrEqual(t, int(started.Load()), workers, "workers=%d", workers)
		assert.Equal(t, int(started.Load()), s.Resolved)
		assert.Equal(t, len(items)-s.Resolved, s.Skipped)
	}
}

func TestRunItemTimeout(t *testing.T) {
	results := Run(context.Background(), []int{1}, Options{ItemTimeout: 10 * time.Millisecond}, func(ctx context.Context, _ int) Result[int] {
		<-ctx.Done()
		return Fatal[int]("slow", ctx.Err())
	})
	assert.Equal(t, FatalFailure, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}
