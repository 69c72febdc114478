package sim

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/spherique/internal/config"
)

// Ensemble runs independent copies of one configuration with consecutive
// seeds.
type Ensemble struct {
	cfg       config.Config
	numRuns   int
	seedStart uint64
	metrics   func() []Metric
}

// NewEnsemble builds an ensemble. newMetrics, if non-nil, is called once per
// run so metrics are never shared between goroutines.
func NewEnsemble(cfg config.Config, numRuns int, seedStart uint64, newMetrics func() []Metric) *Ensemble {
	return &Ensemble{cfg: cfg, numRuns: numRuns, seedStart: seedStart, metrics: newMetrics}
}

func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			cfg := e.cfg
			cfg.Seed = e.seedStart + uint64(i)

			s, err := New(cfg)
			if err != nil {
				return err
			}
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}
			results[i] = s.Run()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParallelFor executes fn over [0, n) in contiguous chunks of at least
// minChunk elements.
func ParallelFor(n, minChunk int, fn func(start, end int)) {
	workers := runtime.NumCPU()
	if n <= minChunk || workers <= 1 {
		fn(0, n)
		return
	}

	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(start, end)
		}()
	}
	wg.Wait()
}
