// Package parallel splits a batch into disjoint inclusive index ranges and
// runs them concurrently.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls how a batch is partitioned.
type Config struct {
	Workers      int // Maximum number of ranges in flight.
	MinChunkSize int // Minimum batch elements per range.
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return Config{
		Workers:      runtime.NumCPU(),
		MinChunkSize: 1,
	}
}

// Range is an inclusive [Start, End] span of batch indices.
type Range struct {
	Start, End int
}

func (r Range) Len() int { return r.End - r.Start + 1 }

// Ranges partitions [0, n) into at most workers contiguous, disjoint
// inclusive ranges whose lengths differ by at most one.
func Ranges(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	workers = min(max(workers, 1), n)
	base, extra := n/workers, n%workers
	out := make([]Range, 0, workers)
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < extra {
			size++
		}
		out = append(out, Range{Start: start, End: start + size - 1})
		start += size
	}
	return out
}

// Run calls fn once per range of [0, n) with at most cfg.Workers calls in
// flight. It returns the first error from fn, or ctx.Err() if ctx was
// cancelled before every range was started. A range already running is
// never interrupted.
func Run(ctx context.Context, cfg Config, n int, fn func(start, end int) error) error {
	workers := max(cfg.Workers, 1)
	if cfg.MinChunkSize > 1 {
		workers = min(workers, (n+cfg.MinChunkSize-1)/cfg.MinChunkSize)
	}
	ranges := Ranges(n, workers)

	if len(ranges) == 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ranges[0].Start, ranges[0].End)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, r := range ranges {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(r.Start, r.End)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
