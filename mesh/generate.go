package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// SkinName is the sub-model-part holding the boundary of generated and
// loaded meshes.
const SkinName = "Skin"

// NewStructuredSquare builds a triangulated square [0,length]^2 with n cells
// per side. Each cell is split along its rising diagonal.
func NewStructuredSquare(name string, n int, length float64) (*Mesh, error) {
	if n < 1 {
		return nil, fmt.Errorf("structured square needs at least one cell per side, got %d", n)
	}
	if length <= 0 {
		return nil, fmt.Errorf("structured square needs a positive side length, got %g", length)
	}
	h := length / float64(n)
	id := func(i, j int) int { return j*(n+1) + i }

	nodes := make([]r3.Vec, 0, (n+1)*(n+1))
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			nodes = append(nodes, r3.Vec{X: float64(i) * h, Y: float64(j) * h})
		}
	}

	elements := make([]Element, 0, 2*n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a, b, c, d := id(i, j), id(i+1, j), id(i+1, j+1), id(i, j+1)
			elements = append(elements,
				Element{Type: Tri, Nodes: []int{a, b, c}},
				Element{Type: Tri, Nodes: []int{a, c, d}},
			)
		}
	}

	m, err := New(name, 2, nodes, elements)
	if err != nil {
		return nil, err
	}
	m.addSkin()
	return m, nil
}

// NewStructuredCube builds a tetrahedral cube [0,length]^3 with n cells per
// side. Each hexahedral cell is split into six tetrahedra sharing its main
// diagonal.
func NewStructuredCube(name string, n int, length float64) (*Mesh, error) {
	if n < 1 {
		return nil, fmt.Errorf("structured cube needs at least one cell per side, got %d", n)
	}
	if length <= 0 {
		return nil, fmt.Errorf("structured cube needs a positive side length, got %g", length)
	}
	h := length / float64(n)
	id := func(i, j, k int) int { return (k*(n+1)+j)*(n+1) + i }

	nodes := make([]r3.Vec, 0, (n+1)*(n+1)*(n+1))
	for k := 0; k <= n; k++ {
		for j := 0; j <= n; j++ {
			for i := 0; i <= n; i++ {
				nodes = append(nodes, r3.Vec{X: float64(i) * h, Y: float64(j) * h, Z: float64(k) * h})
			}
		}
	}

	// Axis orderings of the six paths from corner (0,0,0) to (1,1,1)
	paths := [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	elements := make([]Element, 0, 6*n*n*n)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				for _, p := range paths {
					c := [3]int{i, j, k}
					tet := []int{id(c[0], c[1], c[2])}
					for _, axis := range p {
						c[axis]++
						tet = append(tet, id(c[0], c[1], c[2]))
					}
					elements = append(elements, Element{Type: Tet, Nodes: tet})
				}
			}
		}
	}

	m, err := New(name, 3, nodes, elements)
	if err != nil {
		return nil, err
	}
	m.addSkin()
	return m, nil
}

// addSkin registers the boundary faces and nodes as the Skin sub-model-part.
func (m *Mesh) addSkin() {
	m.AddSubModelPart(&SubModelPart{
		Name:       SkinName,
		Nodes:      m.BoundaryNodes(),
		Conditions: m.BoundaryFaces(),
	})
}
