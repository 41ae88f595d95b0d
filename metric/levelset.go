package metric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/sizing"
)

// gradTol is the gradient norm below which the level-set normal is
// undefined and the metric stays isotropic.
const gradTol = 1e-12

// LevelSet sizes elements by their distance to the zero level of a scalar
// field: fine near the interface, coarse beyond the boundary layer, and
// optionally stretched along the interface.
type LevelSet struct {
	cfg config.LevelSetConfig
}

// NewLevelSet creates the level-set strategy.
func NewLevelSet(cfg config.LevelSetConfig) *LevelSet {
	if cfg.Anisotropy != nil {
		a := *cfg.Anisotropy
		cfg.Anisotropy = &a
	}
	return &LevelSet{cfg: cfg}
}

func (s *LevelSet) Name() string { return config.StrategyLevelSet }

// Config returns the strategy configuration.
func (s *LevelSet) Config() config.LevelSetConfig { return s.cfg }

// SetAnisotropyDistance replaces the anisotropic boundary layer thickness.
// It has no effect when anisotropy is off.
func (s *LevelSet) SetAnisotropyDistance(d float64) {
	if s.cfg.Anisotropy != nil {
		s.cfg.Anisotropy.BoundaryLayerMaxDistance = d
	}
}

// ScalarVariable returns the level-set variable whose gradient the caller
// must refresh before ComputeMetric.
func (s *LevelSet) ScalarVariable() string { return s.cfg.ScalarVariable }

// GradientVariable returns the name the level-set gradient is stored under.
func (s *LevelSet) GradientVariable() string { return s.cfg.GradientVariable }

func (s *LevelSet) ComputeMetric(m *mesh.Mesh, b sizing.Bounds) (*SizeField, error) {
	dist, ok := m.Field(s.cfg.Sizing.ReferenceVariable)
	if !ok {
		return nil, fmt.Errorf("distance variable %s not found on mesh %s", s.cfg.Sizing.ReferenceVariable, m.Name)
	}

	var (
		grad      []r3.Vec
		anisoDist []float64
	)
	if s.cfg.Anisotropy != nil {
		var err error
		if grad, err = s.gradient(m); err != nil {
			return nil, err
		}
		anisoDist = dist
		if ref := s.cfg.Anisotropy.ReferenceVariable; ref != "" {
			if anisoDist, ok = m.Field(ref); !ok {
				return nil, fmt.Errorf("anisotropy variable %s not found on mesh %s", ref, m.Name)
			}
		}
	}

	f := NewSizeField(m.Dim, m.NumNodes())
	sz := s.cfg.Sizing
	for i := range f.Tensors {
		h := Interpolate(sz.Interpolation, b.Min, b.Max, math.Abs(dist[i])/sz.BoundaryLayerMaxDistance)
		if s.cfg.EnforceCurrent {
			h = enforceCurrent(m, i, h)
		}

		if grad == nil || r3.Norm(grad[i]) <= gradTol {
			f.Tensors[i] = Isotropic(m.Dim, h)
			continue
		}
		a := s.cfg.Anisotropy
		r := Interpolate(a.Interpolation, a.HminOverHmax, 1, math.Abs(anisoDist[i])/a.BoundaryLayerMaxDistance)
		f.Tensors[i] = stretched(m.Dim, r3.Unit(grad[i]), h, h/r)
	}
	return f, nil
}

func (s *LevelSet) gradient(m *mesh.Mesh) ([]r3.Vec, error) {
	for _, nonHistorical := range []bool{false, true} {
		if m.IsVector(s.cfg.GradientVariable, nonHistorical) {
			return m.Vector(s.cfg.GradientVariable, nonHistorical)
		}
	}
	return nil, fmt.Errorf("gradient variable %s not found on mesh %s", s.cfg.GradientVariable, m.Name)
}

// stretched returns the tensor with size hn along the unit normal n and ht
// in every tangential direction: n n^T/hn^2 + (I - n n^T)/ht^2.
func stretched(dim int, n r3.Vec, hn, ht float64) *mat.SymDense {
	t := Isotropic(dim, ht)
	t.SymRankOne(t, 1/(hn*hn)-1/(ht*ht), vec(n, dim))
	return t
}
