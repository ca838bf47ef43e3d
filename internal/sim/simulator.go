package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/field"
)

// Simulator drives a field along the shared clock.
type Simulator struct {
	field     *field.Field
	clock     *Clock
	metrics   []Metric
	observers []Observer
	validate  bool
}

func New(f *field.Field, clock *Clock) *Simulator {
	return &Simulator{
		field:     f,
		clock:     clock,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) SetValidate(v bool)     { s.validate = v }

func (s *Simulator) Field() *field.Field { return s.field }
func (s *Simulator) Clock() *Clock       { return s.clock }

// Advance runs every step owed at nowMs around cores. On desync nothing is
// stepped and the error wraps dynamo.ErrDesync.
func (s *Simulator) Advance(nowMs int64, cores []dynamo.Vec3) (int, error) {
	owed, err := s.clock.Due(nowMs)
	if err != nil {
		return 0, err
	}
	for i := int64(0); i < owed; i++ {
		s.step(cores)
	}
	if s.validate && owed > 0 {
		if err := s.field.Validate(); err != nil {
			return int(owed), err
		}
	}
	return int(owed), nil
}

// Restart rewinds the field to its seeded state on a new epoch.
func (s *Simulator) Restart(epoch int64) {
	s.field.Reset()
	s.clock.Reset(epoch)
	for _, m := range s.metrics {
		m.Reset()
	}
}

func (s *Simulator) step(cores []dynamo.Vec3) {
	s.field.Step(cores)
	s.clock.Advance(1)
	for _, m := range s.metrics {
		m.Observe(s.field, cores)
	}
	for _, obs := range s.observers {
		obs.OnStep(s.clock.Step(), s.field, cores)
	}
}

// Run steps the field headlessly, independent of wall time.
func (s *Simulator) Run(ctx context.Context, cfg Config, cores CoreFunc) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	result := &Result{
		Seed:    s.field.Seed(),
		Series:  make(map[string][]float64),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	record := func() {
		if cfg.Record {
			pos := make([]float64, len(s.field.Positions()))
			copy(pos, s.field.Positions())
			result.Snapshots = append(result.Snapshots, Snapshot{Step: s.clock.Step(), Positions: pos})
		}
		for _, m := range s.metrics {
			result.Series[m.Name()] = append(result.Series[m.Name()], m.Value())
		}
	}

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		s.step(cores(s.clock.Step()))
		result.StepsTaken++

		if cfg.Validate {
			if err := s.field.Validate(); err != nil {
				result.Errors = append(result.Errors, err)
				break
			}
		}
		if cfg.SampleEvery > 0 && result.StepsTaken%cfg.SampleEvery == 0 {
			record()
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func validateConfig(cfg Config) error {
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d: %w", cfg.Steps, dynamo.ErrParameterBounds)
	}
	if cfg.SampleEvery < 0 {
		return fmt.Errorf("sample interval must not be negative: %w", dynamo.ErrParameterBounds)
	}
	return nil
}
