package metric

import (
	"fmt"
	"math"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/sizing"
)

// errorTol is the nodal error below which a node is considered exact and
// gets the largest admissible size.
const errorTol = 1e-14

// SPR is the error-driven strategy. Each node is rescaled by the ratio of
// the target element error to its estimated error.
type SPR struct {
	cfg       config.SPRConfig
	estimator ErrorEstimator
}

// NewSPR creates the error-driven strategy around an estimator.
func NewSPR(cfg config.SPRConfig, estimator ErrorEstimator) *SPR {
	return &SPR{cfg: cfg, estimator: estimator}
}

func (s *SPR) Name() string { return config.StrategySPR }

// Config returns the strategy configuration.
func (s *SPR) Config() config.SPRConfig { return s.cfg }

// Estimate runs the error estimator.
func (s *SPR) Estimate(m *mesh.Mesh) (*ErrorEstimate, error) {
	est, err := s.estimator.Estimate(m)
	if err != nil {
		return nil, err
	}
	if len(est.NodalError) != m.NumNodes() {
		return nil, fmt.Errorf("error estimate has %d nodal values for %d nodes", len(est.NodalError), m.NumNodes())
	}
	return est, nil
}

// TargetError returns the element error the new mesh should equidistribute.
func (s *SPR) TargetError(m *mesh.Mesh, est *ErrorEstimate) float64 {
	comm := m.Communicator()
	if s.cfg.SetTargetNumberOfElements {
		return math.Sqrt(est.ErrorNorm * est.ErrorNorm / float64(s.cfg.TargetNumberOfElements))
	}
	n := comm.SumAll(float64(m.NumElements()))
	return s.cfg.InterpolationError * math.Sqrt((est.EnergyNorm*est.EnergyNorm+est.ErrorNorm*est.ErrorNorm)/n)
}

func (s *SPR) ComputeMetric(m *mesh.Mesh, b sizing.Bounds) (*SizeField, error) {
	est, err := s.Estimate(m)
	if err != nil {
		return nil, err
	}
	current, ok := m.NonHistorical[mesh.NodalH]
	if !ok {
		current = m.ComputeNodalH()
	}
	target := s.TargetError(m, est)

	h := make([]float64, m.NumNodes())
	for i, eta := range est.NodalError {
		if eta <= errorTol || current[i] <= 0 {
			h[i] = b.Max
			continue
		}
		h[i] = b.Clamp(current[i] * target / eta)
	}

	if s.cfg.PerformNodalHAveraging {
		h = averageNeighbours(m, h)
	}

	f := NewSizeField(m.Dim, m.NumNodes())
	for i := range f.Tensors {
		f.Tensors[i] = Isotropic(m.Dim, h[i])
	}
	return f, nil
}

// averageNeighbours replaces every size by the mean over the node and its
// edge neighbours.
func averageNeighbours(m *mesh.Mesh, h []float64) []float64 {
	out := make([]float64, len(h))
	for i, nb := range m.NodeNeighbours() {
		sum := h[i]
		for _, j := range nb {
			sum += h[j]
		}
		out[i] = sum / float64(len(nb)+1)
	}
	return out
}
