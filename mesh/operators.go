package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// degenerateTol is the smallest admissible |det J| relative to the element
// edge length to the power of the dimension.
const degenerateTol = 1e-12

// ElementGeometry is the measure (area or volume) of an element and the
// constant gradients of its linear shape functions.
type ElementGeometry struct {
	Measure   float64
	Gradients []r3.Vec // one per vertex
}

// Geometry computes the measure and shape-function gradients of element k.
func (m *Mesh) Geometry(k int) (ElementGeometry, error) {
	el := m.Elements[k]
	d := el.Type.Dim()
	x0 := m.Nodes[el.Nodes[0]]

	// Columns of J are the edge vectors from vertex 0
	J := mat.NewDense(d, d, nil)
	var scale float64
	for j := 1; j <= d; j++ {
		e := r3.Sub(m.Nodes[el.Nodes[j]], x0)
		scale = math.Max(scale, r3.Norm(e))
		for i := 0; i < d; i++ {
			J.Set(i, j-1, Coord(e, i))
		}
	}
	det := mat.Det(J)
	if math.Abs(det) <= degenerateTol*math.Pow(scale, float64(d)) {
		return ElementGeometry{}, fmt.Errorf("element %d is degenerate (det J = %g)", k, det)
	}

	var Jinv mat.Dense
	if err := Jinv.Inverse(J); err != nil {
		return ElementGeometry{}, fmt.Errorf("element %d: %w", k, err)
	}

	// Row j-1 of J^-1 is the gradient of shape function j
	grads := make([]r3.Vec, d+1)
	for j := 1; j <= d; j++ {
		var g r3.Vec
		g.X = Jinv.At(j-1, 0)
		g.Y = Jinv.At(j-1, 1)
		if d == 3 {
			g.Z = Jinv.At(j-1, 2)
		}
		grads[j] = g
		grads[0] = r3.Sub(grads[0], g)
	}

	fact := 2.0
	if d == 3 {
		fact = 6.0
	}
	return ElementGeometry{Measure: math.Abs(det) / fact, Gradients: grads}, nil
}

// geometries computes the geometry of every element.
func (m *Mesh) geometries() ([]ElementGeometry, error) {
	out := make([]ElementGeometry, len(m.Elements))
	for k := range m.Elements {
		g, err := m.Geometry(k)
		if err != nil {
			return nil, fmt.Errorf("mesh %s: %w", m.Name, err)
		}
		out[k] = g
	}
	return out, nil
}

// ComputeNodalH stores in NODAL_H the length of the shortest edge incident
// to each node and returns the values.
func (m *Mesh) ComputeNodalH() []float64 {
	h := make([]float64, len(m.Nodes))
	for i := range h {
		h[i] = math.Inf(1)
	}
	for _, e := range m.Edges() {
		l := r3.Norm(r3.Sub(m.Nodes[e.A], m.Nodes[e.B]))
		h[e.A] = math.Min(h[e.A], l)
		h[e.B] = math.Min(h[e.B], l)
	}
	// Isolated nodes carry no size
	for i := range h {
		if math.IsInf(h[i], 1) {
			h[i] = 0
		}
	}
	m.NonHistorical[NodalH] = h
	return h
}

// ComputeNodalArea stores in NODAL_AREA the lumped measure of each node,
// an equal share of every incident element.
func (m *Mesh) ComputeNodalArea() ([]float64, error) {
	geo, err := m.geometries()
	if err != nil {
		return nil, err
	}
	return m.nodalArea(geo), nil
}

func (m *Mesh) nodalArea(geo []ElementGeometry) []float64 {
	area := make([]float64, len(m.Nodes))
	for k, el := range m.Elements {
		share := geo[k].Measure / float64(len(el.Nodes))
		for _, n := range el.Nodes {
			area[n] += share
		}
	}
	m.NonHistorical[NodalArea] = area
	return area
}

// ElementGradients returns the constant gradient of the linear
// interpolant of values on every element.
func (m *Mesh) ElementGradients(values []float64) ([]r3.Vec, []ElementGeometry, error) {
	if len(values) != len(m.Nodes) {
		return nil, nil, fmt.Errorf("got %d values for %d nodes", len(values), len(m.Nodes))
	}
	geo, err := m.geometries()
	if err != nil {
		return nil, nil, err
	}
	out := make([]r3.Vec, len(m.Elements))
	for k, el := range m.Elements {
		var g r3.Vec
		for i, n := range el.Nodes {
			g = r3.Add(g, r3.Scale(values[n], geo[k].Gradients[i]))
		}
		out[k] = g
	}
	return out, geo, nil
}

// RecoverGradient returns nodal gradients obtained by averaging the element
// gradients of the linear interpolant, weighted by element measure. NODAL_AREA
// is updated as a side effect.
func (m *Mesh) RecoverGradient(values []float64) ([]r3.Vec, error) {
	eg, geo, err := m.ElementGradients(values)
	if err != nil {
		return nil, err
	}
	area := m.nodalArea(geo)
	out := make([]r3.Vec, len(m.Nodes))
	for k, el := range m.Elements {
		share := geo[k].Measure / float64(len(el.Nodes))
		for _, n := range el.Nodes {
			out[n] = r3.Add(out[n], r3.Scale(share, eg[k]))
		}
	}
	for n := range out {
		if area[n] > 0 {
			out[n] = r3.Scale(1/area[n], out[n])
		}
	}
	return out, nil
}

// ComputeNodalGradient recovers the gradient of a scalar field and stores
// it as a historical vector field named gradient.
func (m *Mesh) ComputeNodalGradient(scalar string, nonHistorical bool, gradient string) error {
	values, ok := m.Value(scalar, nonHistorical)
	if !ok {
		return fmt.Errorf("scalar variable %s not found on mesh %s", scalar, m.Name)
	}
	g, err := m.RecoverGradient(values)
	if err != nil {
		return fmt.Errorf("gradient of %s: %w", scalar, err)
	}
	return m.SetVector(gradient, false, g)
}

// RecoverHessian returns the symmetric nodal Hessian of a scalar field,
// obtained by recovering the gradient twice and symmetrizing.
func (m *Mesh) RecoverHessian(values []float64) ([]*mat.SymDense, error) {
	grad, err := m.RecoverGradient(values)
	if err != nil {
		return nil, err
	}
	d := m.Dim
	// rows[i][n] is the gradient of component i of the gradient at node n
	rows := make([][]r3.Vec, d)
	comp := make([]float64, len(m.Nodes))
	for i := 0; i < d; i++ {
		for n, g := range grad {
			comp[n] = Coord(g, i)
		}
		if rows[i], err = m.RecoverGradient(comp); err != nil {
			return nil, err
		}
	}

	out := make([]*mat.SymDense, len(m.Nodes))
	for n := range out {
		H := mat.NewSymDense(d, nil)
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				H.SetSym(i, j, 0.5*(Coord(rows[i][n], j)+Coord(rows[j][n], i)))
			}
		}
		out[n] = H
	}
	return out, nil
}

// NodalHessian recovers the Hessian of a scalar field held in the selected
// store.
func (m *Mesh) NodalHessian(name string, nonHistorical bool) ([]*mat.SymDense, error) {
	values, ok := m.Value(name, nonHistorical)
	if !ok {
		return nil, fmt.Errorf("variable %s not found on mesh %s", name, m.Name)
	}
	H, err := m.RecoverHessian(values)
	if err != nil {
		return nil, fmt.Errorf("hessian of %s: %w", name, err)
	}
	return H, nil
}
