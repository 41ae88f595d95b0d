// Package metric builds the nodal size field that drives a remesh. Three
// strategies are available: distance to a level set, the recovered Hessian
// of one or more solution fields, and an a posteriori error estimate.
package metric

import (
	"fmt"
	"math"

	"github.com/notargets/remesh/config"
	rerrors "github.com/notargets/remesh/errors"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/sizing"
)

// Strategy computes a raw metric for a mesh. Build clamps and verifies it.
type Strategy interface {
	Name() string
	ComputeMetric(m *mesh.Mesh, b sizing.Bounds) (*SizeField, error)
}

type options struct {
	estimator ErrorEstimator
}

// Option configures New.
type Option func(*options)

// WithErrorEstimator supplies the estimator required by the error-driven
// strategy.
func WithErrorEstimator(e ErrorEstimator) Option {
	return func(o *options) { o.estimator = e }
}

// New creates the strategy selected by cfg. Missing capabilities are
// reported here, before any remesh is attempted.
func New(cfg config.StrategyConfig, opts ...Option) (Strategy, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	switch c := cfg.(type) {
	case config.LevelSetConfig:
		return NewLevelSet(c), nil
	case config.HessianConfig:
		return NewHessian(c), nil
	case config.SPRConfig:
		if o.estimator == nil {
			return nil, rerrors.NewDependencyError(c.StrategyName(), "an error estimator")
		}
		return NewSPR(c, o.estimator), nil
	case nil:
		return nil, rerrors.NewValidationError("strategy", nil, "no strategy configured")
	default:
		return nil, rerrors.NewValidationError("strategy", cfg.StrategyName(), "unsupported")
	}
}

// Build computes the metric of m with strategy s, clamps every tensor to
// the bounds and verifies the result.
func Build(s Strategy, m *mesh.Mesh, b sizing.Bounds) (*SizeField, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	f, err := s.ComputeMetric(m, b)
	if err != nil {
		return nil, fmt.Errorf("%s metric: %w", s.Name(), err)
	}
	if f.Len() != m.NumNodes() {
		return nil, fmt.Errorf("%s metric has %d tensors for %d nodes", s.Name(), f.Len(), m.NumNodes())
	}
	for i, t := range f.Tensors {
		if t == nil {
			return nil, fmt.Errorf("%s metric: node %d has no tensor", s.Name(), i)
		}
		if f.Tensors[i], err = Clamp(t, b.Min, b.Max); err != nil {
			return nil, fmt.Errorf("%s metric: node %d: %w", s.Name(), i, err)
		}
	}
	if err := f.Verify(b); err != nil {
		return nil, fmt.Errorf("%s metric: %w", s.Name(), err)
	}
	return f, nil
}

// Interpolate maps a distance ratio in [0, 1] onto [lo, hi] with the given
// law. Constant returns lo strictly inside the layer and hi at its edge and
// beyond.
func Interpolate(law config.Interpolation, lo, hi, ratio float64) float64 {
	ratio = math.Min(math.Max(ratio, 0), 1)
	switch law {
	case config.InterpolationLinear:
		return lo + (hi-lo)*ratio
	case config.InterpolationExponential:
		return lo * math.Pow(hi/lo, ratio)
	default:
		if ratio < 1 {
			return lo
		}
		return hi
	}
}

// enforceCurrent limits sizes to the current NODAL_H, when present.
func enforceCurrent(m *mesh.Mesh, i int, h float64) float64 {
	cur, ok := m.NonHistorical[mesh.NodalH]
	if !ok || cur[i] <= 0 {
		return h
	}
	return math.Min(h, cur[i])
}
