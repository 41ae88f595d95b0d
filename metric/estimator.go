package metric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/remesh/mesh"
)

// ErrorEstimate is an a posteriori error estimate of the current solution.
type ErrorEstimate struct {
	NodalError []float64 // error indicator per node, on the element error scale
	ErrorNorm  float64   // global error norm
	EnergyNorm float64   // global solution norm
}

// Relative returns the global error relative to the total norm, in [0, 1].
func (e *ErrorEstimate) Relative() float64 {
	total := math.Hypot(e.ErrorNorm, e.EnergyNorm)
	if total == 0 {
		return 0
	}
	return e.ErrorNorm / total
}

// ErrorEstimator produces an error estimate for a mesh and its fields.
type ErrorEstimator interface {
	Estimate(m *mesh.Mesh) (*ErrorEstimate, error)
}

// GradientRecoveryEstimator measures, element by element, the difference
// between the recovered nodal gradient of a scalar field and the constant
// element gradient of its linear interpolant.
type GradientRecoveryEstimator struct {
	Variable      string
	NonHistorical bool
}

// NewGradientRecoveryEstimator creates an estimator for variable.
func NewGradientRecoveryEstimator(variable string, nonHistorical bool) *GradientRecoveryEstimator {
	return &GradientRecoveryEstimator{Variable: variable, NonHistorical: nonHistorical}
}

func (g *GradientRecoveryEstimator) Estimate(m *mesh.Mesh) (*ErrorEstimate, error) {
	values, ok := m.Value(g.Variable, g.NonHistorical)
	if !ok {
		return nil, fmt.Errorf("error estimator: variable %s not found on mesh %s", g.Variable, m.Name)
	}
	recovered, err := m.RecoverGradient(values)
	if err != nil {
		return nil, fmt.Errorf("error estimator: %w", err)
	}
	elemGrad, geo, err := m.ElementGradients(values)
	if err != nil {
		return nil, fmt.Errorf("error estimator: %w", err)
	}

	comm := m.Communicator()
	elemErr2 := make([]float64, m.NumElements())
	var err2, energy2 float64
	for k, el := range m.Elements {
		var mean r3.Vec
		for _, n := range el.Nodes {
			mean = r3.Add(mean, recovered[n])
		}
		mean = r3.Scale(1/float64(len(el.Nodes)), mean)
		diff := r3.Sub(mean, elemGrad[k])
		elemErr2[k] = r3.Dot(diff, diff) * geo[k].Measure
		err2 += elemErr2[k]
		energy2 += r3.Dot(elemGrad[k], elemGrad[k]) * geo[k].Measure
	}

	// Nodal indicator: root mean square of the incident element errors
	nodal := make([]float64, m.NumNodes())
	for n, elems := range m.NodeElements() {
		if len(elems) == 0 {
			continue
		}
		var sum float64
		for _, k := range elems {
			sum += elemErr2[k]
		}
		nodal[n] = math.Sqrt(sum / float64(len(elems)))
	}

	return &ErrorEstimate{
		NodalError: nodal,
		ErrorNorm:  math.Sqrt(comm.SumAll(err2)),
		EnergyNorm: math.Sqrt(comm.SumAll(energy2)),
	}, nil
}
