package parallel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanges(t *testing.T) {
	cases := []struct {
		n, workers int
		want       []Range
	}{
		{0, 4, nil},
		{1, 4, []Range{{0, 0}}},
		{4, 1, []Range{{0, 3}}},
		{4, 0, []Range{{0, 3}}},
		{5, 2, []Range{{0, 2}, {3, 4}}},
		{7, 3, []Range{{0, 2}, {3, 4}, {5, 6}}},
		{3, 8, []Range{{0, 0}, {1, 1}, {2, 2}}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Ranges(c.n, c.workers), "n=%d workers=%d", c.n, c.workers)
	}
}

func TestRanges_CoverDisjoint(t *testing.T) {
	for n := 1; n < 40; n++ {
		for workers := 1; workers < 12; workers++ {
			seen := make([]int, n)
			ranges := Ranges(n, workers)
			require.LessOrEqual(t, len(ranges), workers)
			for _, r := range ranges {
				require.Positive(t, r.Len())
				for i := r.Start; i <= r.End; i++ {
					seen[i]++
				}
			}
			for i, c := range seen {
				require.Equal(t, 1, c, "n=%d workers=%d index %d", n, workers, i)
			}
		}
	}
}

func TestRun_VisitsEveryIndexOnce(t *testing.T) {
	const n = 1000
	var counts [n]int32
	cfg := Config{Workers: 7}

	err := Run(context.Background(), cfg, n, func(start, end int) error {
		for i := start; i <= end; i++ {
			atomic.AddInt32(&counts[i], 1)
		}
		return nil
	})
	require.NoError(t, err)
	for i, c := range counts {
		assert.Equal(t, int32(1), c, "index %d", i)
	}
}

func TestRun_RespectsWorkerLimit(t *testing.T) {
	var running, peak int32
	var mu sync.Mutex
	cfg := Config{Workers: 3}

	err := Run(context.Background(), cfg, 3, func(start, end int) error {
		cur := atomic.AddInt32(&running, 1)
		mu.Lock()
		peak = max(peak, cur)
		mu.Unlock()
		atomic.AddInt32(&running, -1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(3))
}

func TestRun_MinChunkSize(t *testing.T) {
	var calls int32
	cfg := Config{Workers: 8, MinChunkSize: 10}

	require.NoError(t, Run(context.Background(), cfg, 25, func(start, end int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	assert.Equal(t, int32(3), calls)
}

func TestRun_FirstError(t *testing.T) {
	boom := errors.New("boom")
	cfg := Config{Workers: 4}

	err := Run(context.Background(), cfg, 8, func(start, end int) error {
		if start == 0 {
			return boom
		}
		return nil
	})
	assert.True(t, errors.Is(err, boom))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32

	for _, workers := range []int{1, 4} {
		err := Run(ctx, Config{Workers: workers}, 8, func(start, end int) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
		assert.True(t, errors.Is(err, context.Canceled), "workers=%d", workers)
	}
	assert.Zero(t, calls)
}

func TestRun_Empty(t *testing.T) {
	err := Run(context.Background(), DefaultConfig(), 0, func(start, end int) error {
		t.Fatal("fn called for empty batch")
		return nil
	})
	assert.NoError(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, 1, cfg.MinChunkSize)
}

func BenchmarkRun(b *testing.B) {
	cfg := DefaultConfig()
	data := make([]float64, 1<<16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Run(context.Background(), cfg, len(data), func(start, end int) error {
			for j := start; j <= end; j++ {
				data[j] += 1
			}
			return nil
		})
	}
}
