package sim

import (
	"context"
	"sync"

	"github.com/san-kum/neonportal/internal/field"
)

// Ensemble runs the same force model and core schedule over several seeds
// concurrently.
type Ensemble struct {
	params  field.Params
	metrics func() []Metric
}

// NewEnsemble builds an ensemble. metrics is called once per run so each
// simulator owns fresh accumulators.
func NewEnsemble(params field.Params, metrics func() []Metric) *Ensemble {
	return &Ensemble{params: params, metrics: metrics}
}

func (e *Ensemble) Run(ctx context.Context, seeds []uint32, cfg Config, cores CoreFunc) ([]*Result, error) {
	results := make([]*Result, len(seeds))
	errs := make([]error, len(seeds))

	var wg sync.WaitGroup
	for i, seed := range seeds {
		wg.Add(1)
		go func(idx int, seed uint32) {
			defer wg.Done()

			f, err := field.New(seed, e.params)
			if err != nil {
				errs[idx] = err
				return
			}
			s := New(f, NewClock(0, 0))
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}
			results[idx], errs[idx] = s.Run(ctx, cfg, cores)
		}(i, seed)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
