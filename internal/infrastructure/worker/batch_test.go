package worker

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/rxntd/pkg/errors"
)

func TestNewBatchProcessor_Defaults(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	assert.NotNil(t, bp)
}

func TestProcess_NilFunc(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	_, err := bp.Process(context.Background(), []string{"a"}, nil)
	assert.Error(t, err)
}

func TestProcess_Empty(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	res, err := bp.Process(context.Background(), nil, func(ctx context.Context, item string) (string, error) {
		return item, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
	assert.Empty(t, res.Results)
}

func TestProcess_AllSuccess(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	items := []string{"a", "b", "c"}
	fn := func(ctx context.Context, item string) (string, error) {
		return item + "_processed", nil
	}

	res, err := bp.Process(context.Background(), items, fn)
	assert.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, "a_processed", res.Results[0].Result)
}

func TestProcess_AllFailure(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	items := []string{"a", "b"}
	fn := func(ctx context.Context, item string) (string, error) {
		return "", errors.New("failed")
	}

	res, err := bp.Process(context.Background(), items, fn)
	assert.NoError(t, err)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
	assert.Error(t, res.Results[0].Error)
	assert.Equal(t, ItemStatusFailed, res.Results[1].Status)
}

func TestProcess_PreservesSubmissionOrder(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithMaxConcurrency(8))
	items := make([]int, 200)
	for i := range items {
		items[i] = i
	}
	fn := func(ctx context.Context, item int) (int, error) {
		time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
		return item * 10, nil
	}

	res, err := bp.Process(context.Background(), items, fn)
	require.NoError(t, err)
	require.Len(t, res.Results, len(items))
	for i, r := range res.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, i*10, r.Result)
	}
}

func TestProcess_ConcurrencyLimit(t *testing.T) {
	var concurrentCount int32
	var maxConcurrent int32

	bp := NewBatchProcessor[int, int](WithMaxConcurrency(2))
	items := []int{1, 2, 3, 4, 5}

	fn := func(ctx context.Context, item int) (int, error) {
		curr := atomic.AddInt32(&concurrentCount, 1)
		defer atomic.AddInt32(&concurrentCount, -1)
		for {
			max := atomic.LoadInt32(&maxConcurrent)
			if curr <= max || atomic.CompareAndSwapInt32(&maxConcurrent, max, curr) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return item * 2, nil
	}

	_, err := bp.Process(context.Background(), items, fn)
	assert.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxConcurrent), int32(2))
}

func TestProcess_PanicBecomesFailure(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithMaxConcurrency(2))
	fn := func(ctx context.Context, item int) (int, error) {
		if item == 2 {
			panic("boom")
		}
		return item, nil
	}

	res, err := bp.Process(context.Background(), []int{1, 2, 3}, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, ItemStatusFailed, res.Results[1].Status)
	assert.ErrorIs(t, res.Results[1].Error, ErrPanic)
	assert.Equal(t, 3, res.Results[2].Result)
}

func TestProcess_ItemTimeout(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithItemTimeout(10 * time.Millisecond))
	items := []int{1}

	fn := func(ctx context.Context, item int) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			return item, nil
		}
	}

	res, err := bp.Process(context.Background(), items, fn)
	assert.NoError(t, err)
	assert.Equal(t, 1, res.FailureCount)
	assert.Equal(t, ItemStatusTimeout, res.Results[0].Status)
}

func TestProcess_ItemTimeoutIgnoredContext(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithItemTimeout(10*time.Millisecond), WithMaxConcurrency(2))

	start := time.Now()
	res, err := bp.Process(context.Background(), []int{1, 2}, func(_ context.Context, item int) (int, error) {
		time.Sleep(300 * time.Millisecond)
		return item, nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 2, res.FailureCount)
	for _, r := range res.Results {
		assert.Equal(t, ItemStatusTimeout, r.Status)
		assert.ErrorIs(t, r.Error, context.DeadlineExceeded)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bp := NewBatchProcessor[int, int]()
	var calls int32
	res, err := bp.Process(ctx, []int{1, 2, 3}, func(ctx context.Context, item int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return item, nil
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCancelled))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	require.Len(t, res.Results, 3)
	for _, r := range res.Results {
		assert.Equal(t, ItemStatusCancelled, r.Status)
	}
}

func TestBatchResult_Values(t *testing.T) {
	bp := NewBatchProcessor[int, string]()
	res, err := bp.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, item int) (string, error) {
		if item == 2 {
			return "", errors.New("bad")
		}
		return "ok", nil
	})
	require.NoError(t, err)

	var fallbackIdx []int
	values := res.Values(func(i int, err error) string {
		fallbackIdx = append(fallbackIdx, i)
		return ""
	})
	assert.Equal(t, []string{"ok", "", "ok"}, values)
	assert.Equal(t, []int{1}, fallbackIdx)
}

func TestItemStatus_String(t *testing.T) {
	assert.Equal(t, "SUCCESS", ItemStatusSuccess.String())
	assert.Equal(t, "FAILED", ItemStatusFailed.String())
	assert.Equal(t, "TIMEOUT", ItemStatusTimeout.String())
	assert.Equal(t, "CANCELLED", ItemStatusCancelled.String())
	assert.Equal(t, "UNKNOWN(9)", ItemStatus(9).String())
}
