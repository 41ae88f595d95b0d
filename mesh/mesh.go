// Package mesh holds the linear simplex mesh the remeshing controller
// operates on: node coordinates, element connectivity, nodal fields,
// sub-model-parts and the modified flag, together with the nodal recovery
// operators (characteristic size, lumped area, gradient and Hessian).
package mesh

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Nodal variable names written by the mesh operators.
const (
	NodalH    = "NODAL_H"
	NodalArea = "NODAL_AREA"
)

// SubModelPart is a named group of nodes, elements and boundary
// conditions. A condition is the node list of a boundary face.
type SubModelPart struct {
	Name       string
	Nodes      []int
	Elements   []int
	Conditions [][]int
}

// Mesh is a conforming simplex mesh. Nodal fields live in two stores:
// Historical holds solution-step values and NonHistorical holds data values.
// Vector fields are stored per component as NAME_X, NAME_Y and NAME_Z.
type Mesh struct {
	Name          string
	Dim           int
	Nodes         []r3.Vec
	Elements      []Element
	Blocked       []bool // per node
	SubModelParts map[string]*SubModelPart
	Historical    map[string][]float64
	NonHistorical map[string][]float64
	Step          int
	Time          float64
	Comm          Communicator

	modified bool
}

// New creates a mesh and validates its topology. Every element must be the
// simplex of the mesh dimension; surface meshes are rejected.
func New(name string, dim int, nodes []r3.Vec, elements []Element) (*Mesh, error) {
	m := &Mesh{
		Name:          name,
		Dim:           dim,
		Nodes:         nodes,
		Elements:      elements,
		Blocked:       make([]bool, len(nodes)),
		SubModelParts: make(map[string]*SubModelPart),
		Historical:    make(map[string][]float64),
		NonHistorical: make(map[string][]float64),
		Comm:          SerialCommunicator{},
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks dimensions, element types, node references and field
// lengths.
func (m *Mesh) Validate() error {
	if m.Dim != 2 && m.Dim != 3 {
		return fmt.Errorf("mesh %s: dimension %d is not 2 or 3", m.Name, m.Dim)
	}
	nn := len(m.Nodes)
	if len(m.Blocked) != nn {
		return fmt.Errorf("mesh %s: %d blocked flags for %d nodes", m.Name, len(m.Blocked), nn)
	}
	for k, el := range m.Elements {
		if el.Type.Dim() != m.Dim {
			return fmt.Errorf("mesh %s: element %d is a %dD %s in a %dD mesh",
				m.Name, k, el.Type.Dim(), el.Type, m.Dim)
		}
		if len(el.Nodes) != el.Type.NumVertices() {
			return fmt.Errorf("mesh %s: element %d has %d nodes, %s needs %d",
				m.Name, k, len(el.Nodes), el.Type, el.Type.NumVertices())
		}
		for _, n := range el.Nodes {
			if n < 0 || n >= nn {
				return fmt.Errorf("mesh %s: element %d references node %d of %d", m.Name, k, n, nn)
			}
		}
	}
	for _, store := range []map[string][]float64{m.Historical, m.NonHistorical} {
		for name, v := range store {
			if len(v) != nn {
				return fmt.Errorf("mesh %s: field %s has %d values for %d nodes", m.Name, name, len(v), nn)
			}
		}
	}
	return nil
}

// NumNodes returns the number of nodes.
func (m *Mesh) NumNodes() int { return len(m.Nodes) }

// NumElements returns the number of elements.
func (m *Mesh) NumElements() int { return len(m.Elements) }

// IsModified reports whether the topology changed since the flag was last
// cleared.
func (m *Mesh) IsModified() bool { return m.modified }

// SetModified sets or clears the modified flag.
func (m *Mesh) SetModified(v bool) { m.modified = v }

// Coord returns component i (0=x, 1=y, 2=z) of a position.
func Coord(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Suffixes returns the component suffixes used for vector fields.
func (m *Mesh) Suffixes() []string {
	if m.Dim == 2 {
		return []string{"_X", "_Y"}
	}
	return []string{"_X", "_Y", "_Z"}
}

func (m *Mesh) store(nonHistorical bool) map[string][]float64 {
	if nonHistorical {
		return m.NonHistorical
	}
	return m.Historical
}

// Value returns a scalar field from the selected store.
func (m *Mesh) Value(name string, nonHistorical bool) ([]float64, bool) {
	v, ok := m.store(nonHistorical)[name]
	return v, ok
}

// Field returns a scalar field, looking in the historical store first.
func (m *Mesh) Field(name string) ([]float64, bool) {
	if v, ok := m.Historical[name]; ok {
		return v, true
	}
	v, ok := m.NonHistorical[name]
	return v, ok
}

// SetValue stores a scalar field in the selected store.
func (m *Mesh) SetValue(name string, nonHistorical bool, values []float64) error {
	if len(values) != len(m.Nodes) {
		return fmt.Errorf("field %s has %d values for %d nodes", name, len(values), len(m.Nodes))
	}
	m.store(nonHistorical)[name] = values
	return nil
}

// IsVector reports whether name is stored as a vector field in the selected
// store.
func (m *Mesh) IsVector(name string, nonHistorical bool) bool {
	st := m.store(nonHistorical)
	if _, ok := st[name]; ok {
		return false
	}
	_, ok := st[name+"_X"]
	return ok
}

// Components expands a field name into the scalar names holding it: the
// name itself for scalars, NAME_X, NAME_Y[, NAME_Z] for vectors.
func (m *Mesh) Components(name string, nonHistorical bool) ([]string, error) {
	st := m.store(nonHistorical)
	if _, ok := st[name]; ok {
		return []string{name}, nil
	}
	if !m.IsVector(name, nonHistorical) {
		kind := "historical"
		if nonHistorical {
			kind = "non-historical"
		}
		return nil, fmt.Errorf("%s variable %s not found on mesh %s", kind, name, m.Name)
	}
	var out []string
	for _, s := range m.Suffixes() {
		if _, ok := st[name+s]; !ok {
			return nil, fmt.Errorf("vector variable %s is missing component %s", name, name+s)
		}
		out = append(out, name+s)
	}
	return out, nil
}

// Vector returns the per-node vector of a field stored by components.
func (m *Mesh) Vector(name string, nonHistorical bool) ([]r3.Vec, error) {
	comps, err := m.Components(name, nonHistorical)
	if err != nil {
		return nil, err
	}
	if len(comps) == 1 {
		return nil, fmt.Errorf("variable %s is a scalar", name)
	}
	st := m.store(nonHistorical)
	out := make([]r3.Vec, len(m.Nodes))
	for i := range out {
		out[i].X = st[comps[0]][i]
		out[i].Y = st[comps[1]][i]
		if len(comps) == 3 {
			out[i].Z = st[comps[2]][i]
		}
	}
	return out, nil
}

// SetVector stores a vector field by components.
func (m *Mesh) SetVector(name string, nonHistorical bool, values []r3.Vec) error {
	if len(values) != len(m.Nodes) {
		return fmt.Errorf("field %s has %d values for %d nodes", name, len(values), len(m.Nodes))
	}
	st := m.store(nonHistorical)
	for i, s := range m.Suffixes() {
		comp := make([]float64, len(values))
		for n, v := range values {
			comp[n] = Coord(v, i)
		}
		st[name+s] = comp
	}
	return nil
}

// AddSubModelPart registers a named group, replacing any previous one.
func (m *Mesh) AddSubModelPart(smp *SubModelPart) {
	m.SubModelParts[smp.Name] = smp
}

// SubModelPart returns a named group.
func (m *Mesh) SubModelPart(name string) (*SubModelPart, error) {
	smp, ok := m.SubModelParts[name]
	if !ok {
		return nil, fmt.Errorf("sub model part %s not found in %s", name, m.Name)
	}
	return smp, nil
}

// Bounds returns the axis-aligned bounding box of the nodes.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Nodes) == 0 {
		return r3.Box{}
	}
	b := r3.Box{Min: m.Nodes[0], Max: m.Nodes[0]}
	for _, p := range m.Nodes[1:] {
		b.Min = r3.Vec{X: min(b.Min.X, p.X), Y: min(b.Min.Y, p.Y), Z: min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: max(b.Max.X, p.X), Y: max(b.Max.Y, p.Y), Z: max(b.Max.Z, p.Z)}
	}
	return b
}

// String returns a summary of the mesh.
func (m *Mesh) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("=== Mesh %s Summary ===\n", m.Name))
	sb.WriteString(fmt.Sprintf("  Dimension: %d\n", m.Dim))
	sb.WriteString(fmt.Sprintf("  Number of nodes: %d\n", len(m.Nodes)))
	sb.WriteString(fmt.Sprintf("  Number of elements: %d\n", len(m.Elements)))

	var blockedNodes, blockedElems int
	for _, b := range m.Blocked {
		if b {
			blockedNodes++
		}
	}
	for _, el := range m.Elements {
		if el.Blocked {
			blockedElems++
		}
	}
	if blockedNodes > 0 || blockedElems > 0 {
		sb.WriteString(fmt.Sprintf("  Blocked: %d nodes, %d elements\n", blockedNodes, blockedElems))
	}

	b := m.Bounds()
	sb.WriteString(fmt.Sprintf("  Bounds: [%.4f, %.4f] x [%.4f, %.4f]", b.Min.X, b.Max.X, b.Min.Y, b.Max.Y))
	if m.Dim == 3 {
		sb.WriteString(fmt.Sprintf(" x [%.4f, %.4f]", b.Min.Z, b.Max.Z))
	}
	sb.WriteString("\n")

	if h, ok := m.NonHistorical[NodalH]; ok && len(h) > 0 {
		sb.WriteString(fmt.Sprintf("  NODAL_H range: [%.4g, %.4g]\n", floats.Min(h), floats.Max(h)))
	}

	if len(m.SubModelParts) > 0 {
		sb.WriteString("  Sub model parts:\n")
		for _, name := range sortedKeys(m.SubModelParts) {
			smp := m.SubModelParts[name]
			sb.WriteString(fmt.Sprintf("    %s: %d nodes, %d elements, %d conditions\n",
				name, len(smp.Nodes), len(smp.Elements), len(smp.Conditions)))
		}
	}

	for _, store := range []struct {
		label  string
		fields map[string][]float64
	}{{"Historical", m.Historical}, {"Non-historical", m.NonHistorical}} {
		if len(store.fields) > 0 {
			sb.WriteString(fmt.Sprintf("  %s fields: %s\n", store.label,
				strings.Join(sortedKeys(store.fields), ", ")))
		}
	}

	return sb.String()
}

func sortedKeys[V any](mp map[string]V) []string {
	keys := make([]string, 0, len(mp))
	for k := range mp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
