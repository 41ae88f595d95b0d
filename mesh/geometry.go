package mesh

import "fmt"

// Geometry is the shape of a linear simplex element.
type Geometry uint8

const (
	Tri Geometry = iota
	Tet
)

func (g Geometry) String() string {
	switch g {
	case Tri:
		return "Tri"
	case Tet:
		return "Tet"
	default:
		return fmt.Sprintf("Geometry(%d)", uint8(g))
	}
}

// NumVertices returns the number of vertices of the geometry.
func (g Geometry) NumVertices() int {
	if g == Tet {
		return 4
	}
	return 3
}

// Dim returns the local space dimension of the geometry.
func (g Geometry) Dim() int {
	if g == Tet {
		return 3
	}
	return 2
}

// GeometryForDim returns the simplex used by meshes of dimension dim.
func GeometryForDim(dim int) (Geometry, error) {
	switch dim {
	case 2:
		return Tri, nil
	case 3:
		return Tet, nil
	}
	return 0, fmt.Errorf("no simplex geometry for dimension %d", dim)
}

// Local vertex lists of each face. In 2D a face is an edge.
var faceVertices = map[Geometry][][]int{
	Tri: {
		{0, 1}, // Face 0
		{1, 2}, // Face 1
		{2, 0}, // Face 2
	},
	Tet: {
		{0, 1, 2}, // Face 0
		{0, 1, 3}, // Face 1
		{1, 2, 3}, // Face 2
		{0, 2, 3}, // Face 3
	},
}

// Local vertex pairs of each edge.
var edgeVertices = map[Geometry][][2]int{
	Tri: {{0, 1}, {1, 2}, {2, 0}},
	Tet: {{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}},
}

// Element is a linear simplex referencing mesh nodes by index.
type Element struct {
	Type    Geometry
	Nodes   []int
	Blocked bool // excluded from refinement
}

// Faces returns the global node lists of the element's faces.
func (e Element) Faces() [][]int {
	local := faceVertices[e.Type]
	out := make([][]int, len(local))
	for f, lv := range local {
		out[f] = make([]int, len(lv))
		for i, v := range lv {
			out[f][i] = e.Nodes[v]
		}
	}
	return out
}

// Edges returns the global node pairs of the element's edges.
func (e Element) Edges() [][2]int {
	local := edgeVertices[e.Type]
	out := make([][2]int, len(local))
	for i, lv := range local {
		out[i] = [2]int{e.Nodes[lv[0]], e.Nodes[lv[1]]}
	}
	return out
}
