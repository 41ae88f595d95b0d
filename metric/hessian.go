package metric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/sizing"
)

// Hessian sizes elements so that the linear interpolation error of each
// metric variable stays near a target, using M = (c/eps)|H|. Vector
// variables contribute one metric per component and all metrics are
// intersected.
type Hessian struct {
	cfg config.HessianConfig
}

// NewHessian creates the Hessian strategy.
func NewHessian(cfg config.HessianConfig) *Hessian {
	cfg.NonHistorical = config.PadFlags(cfg.NonHistorical, len(cfg.Variables))
	if cfg.Anisotropy != nil {
		a := *cfg.Anisotropy
		cfg.Anisotropy = &a
	}
	return &Hessian{cfg: cfg}
}

func (s *Hessian) Name() string { return config.StrategyHessian }

// Config returns the strategy configuration.
func (s *Hessian) Config() config.HessianConfig { return s.cfg }

// SetAnisotropyDistance replaces the anisotropic boundary layer thickness
// used by the relative aspect ratio law.
func (s *Hessian) SetAnisotropyDistance(d float64) {
	if s.cfg.Anisotropy != nil {
		s.cfg.Anisotropy.BoundaryLayerMaxDistance = d
	}
}

func (s *Hessian) ComputeMetric(m *mesh.Mesh, b sizing.Bounds) (*SizeField, error) {
	var relDist []float64
	if s.cfg.RelativeToVariable && s.cfg.Anisotropy != nil {
		ref := s.cfg.Anisotropy.ReferenceVariable
		var ok bool
		if relDist, ok = m.Field(ref); !ok {
			return nil, fmt.Errorf("anisotropy variable %s not found on mesh %s", ref, m.Name)
		}
	}

	var f *SizeField
	for v, name := range s.cfg.Variables {
		nonHistorical := s.cfg.NonHistorical[v]
		comps, err := m.Components(name, nonHistorical)
		if err != nil {
			return nil, err
		}
		for _, comp := range comps {
			H, err := m.NodalHessian(comp, nonHistorical)
			if err != nil {
				return nil, err
			}
			g, err := s.fieldMetric(m, H, b, relDist)
			if err != nil {
				return nil, fmt.Errorf("variable %s: %w", comp, err)
			}
			if f == nil {
				f = g
				continue
			}
			for i := range f.Tensors {
				if f.Tensors[i], err = Intersect(f.Tensors[i], g.Tensors[i]); err != nil {
					return nil, fmt.Errorf("variable %s, node %d: %w", comp, i, err)
				}
			}
		}
	}
	if f == nil {
		return nil, fmt.Errorf("no metric variables")
	}
	return f, nil
}

// fieldMetric converts the nodal Hessians of one scalar into metrics.
func (s *Hessian) fieldMetric(m *mesh.Mesh, H []*mat.SymDense, b sizing.Bounds, relDist []float64) (*SizeField, error) {
	type spectrum struct {
		vals []float64
		vecs *mat.Dense
	}
	spectra := make([]spectrum, len(H))
	var maxAbs float64
	for i, h := range H {
		vals, vecs, err := eigen(h, true)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		for k := range vals {
			vals[k] = math.Abs(vals[k])
			maxAbs = math.Max(maxAbs, vals[k])
		}
		spectra[i] = spectrum{vals, vecs}
	}

	c := s.cfg.MeshDependentConstant
	eps := s.cfg.InterpolationError
	if s.cfg.EstimateInterpolationError {
		maxAbs = m.Communicator().MaxAll(maxAbs)
		if maxAbs > 0 {
			eps = c * b.Min * b.Min * maxAbs
		}
	}
	var scale float64
	if maxAbs > 0 {
		if !(eps > 0) {
			return nil, fmt.Errorf("interpolation error %g must be positive", eps)
		}
		scale = c / eps
	}
	floor := 1 / (b.Max * b.Max)

	f := NewSizeField(m.Dim, m.NumNodes())
	for i, sp := range spectra {
		lo := floor
		if s.cfg.EnforceCurrent {
			if h := enforceCurrent(m, i, b.Max); h < b.Max {
				lo = 1 / (h * h)
			}
		}
		vals := make([]float64, len(sp.vals))
		var top float64
		for k, v := range sp.vals {
			vals[k] = math.Max(scale*v, lo)
			top = math.Max(top, vals[k])
		}

		if s.cfg.Anisotropy == nil {
			// Isotropic metric from the largest eigenvalue
			for k := range vals {
				vals[k] = top
			}
		} else {
			r := s.cfg.Anisotropy.HminOverHmax
			if relDist != nil {
				a := s.cfg.Anisotropy
				r = Interpolate(a.Interpolation, a.HminOverHmax, 1, math.Abs(relDist[i])/a.BoundaryLayerMaxDistance)
			}
			// Aspect ratio limit: size ratio at most 1/r
			for k := range vals {
				vals[k] = math.Max(vals[k], top*r*r)
			}
		}
		f.Tensors[i] = recompose(sp.vecs, vals)
	}
	return f, nil
}
