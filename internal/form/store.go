// Package form holds the input state of a prediction session: the metric
// snapshot and the connection target.
package form

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/Joserraldo/diabetes/internal/domain"
)

var (
	ErrUnknownMetric = errors.New("unknown metric")
	ErrOutOfDomain   = errors.New("value outside metric domain")
	ErrTargetFrozen  = errors.New("connection target is frozen")
)

// Store is owned by a single goroutine; it does no locking.
type Store struct {
	snapshot domain.Snapshot
	target   domain.Target
	frozen   bool
}

func NewStore(target domain.Target) *Store {
	return &Store{
		snapshot: domain.DefaultSnapshot(),
		target:   target,
	}
}

// Snapshot returns a copy of every current metric value.
func (s *Store) Snapshot() domain.Snapshot {
	return s.snapshot.Clone()
}

// Set replaces one metric value. Continuous values are clamped to the
// metric's range and snapped to its step grid, the way a range control would
// emit them. Discrete values must already be in the domain.
func (s *Store) Set(key domain.MetricKey, value float64) (float64, error) {
	m, ok := domain.LookupMetric(key)
	if !ok {
		return 0, fmt.Errorf("set %q: %w", key, ErrUnknownMetric)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("set %s=%v: %w", key, value, ErrOutOfDomain)
	}
	if m.Kind == domain.KindDiscrete {
		if !m.InDomain(value) {
			return 0, fmt.Errorf("set %s=%v: %w", key, value, ErrOutOfDomain)
		}
		s.snapshot[key] = value
		return value, nil
	}
	v := Clamp(m, value)
	s.snapshot[key] = v
	return v, nil
}

// Step moves a metric by delta control steps. Continuous metrics stop at
// their bounds; discrete metrics cycle through their choices.
func (s *Store) Step(key domain.MetricKey, delta int) (float64, error) {
	m, ok := domain.LookupMetric(key)
	if !ok {
		return 0, fmt.Errorf("step %q: %w", key, ErrUnknownMetric)
	}
	cur := s.snapshot[key]
	if m.Kind == domain.KindDiscrete {
		v := cycleChoice(m, cur, delta)
		s.snapshot[key] = v
		return v, nil
	}
	v := Clamp(m, cur+float64(delta)*m.Step)
	s.snapshot[key] = v
	return v, nil
}

func (s *Store) Target() domain.Target { return s.target }

func (s *Store) Frozen() bool { return s.frozen }

func (s *Store) SetHost(host string) error {
	if s.frozen {
		return fmt.Errorf("set host: %w", ErrTargetFrozen)
	}
	s.target.Host = host
	return nil
}

func (s *Store) SetPort(port string) error {
	if s.frozen {
		return fmt.Errorf("set port: %w", ErrTargetFrozen)
	}
	s.target.Port = port
	return nil
}

// Freeze makes the target read-only; entering the data-entry screen does this.
func (s *Store) Freeze() { s.frozen = true }

func (s *Store) Unfreeze() { s.frozen = false }

// Clamp bounds v to the metric's range and rounds it onto the step grid that
// starts at Min.
func Clamp(m domain.Metric, v float64) float64 {
	if m.Kind != domain.KindContinuous {
		return v
	}
	if v <= m.Min {
		return m.Min
	}
	if v >= m.Max {
		return m.Max
	}
	if m.Step > 0 {
		n := math.Round((v - m.Min) / m.Step)
		v = m.Min + n*m.Step
	}
	v = roundTo(v, stepDecimals(m.Step))
	return math.Min(math.Max(v, m.Min), m.Max)
}

func cycleChoice(m domain.Metric, cur float64, delta int) float64 {
	n := len(m.Choices)
	if n == 0 {
		return cur
	}
	idx := 0
	for i, c := range m.Choices {
		if c.Value == cur {
			idx = i
			break
		}
	}
	idx = ((idx+delta)%n + n) % n
	return m.Choices[idx].Value
}

func stepDecimals(step float64) int {
	if step <= 0 {
		return 6
	}
	s := strconv.FormatFloat(step, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return len(s) - i - 1
		}
	}
	return 0
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
