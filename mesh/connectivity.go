package mesh

import (
	"sort"
)

// Edge is an undirected mesh edge with A < B.
type Edge struct {
	A, B int
}

// NewEdge returns the canonical edge between two nodes.
func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// faceKey is the sorted node signature of a face, padded with -1 in 2D.
type faceKey [3]int

func newFaceKey(nodes []int) faceKey {
	k := faceKey{-1, -1, -1}
	copy(k[:], nodes)
	s := k[:len(nodes)]
	sort.Ints(s)
	return k
}

// Connectivity holds element-to-element and element-to-face adjacency.
// Boundary faces connect an element to itself, matching the convention of
// the DG face connectors.
type Connectivity struct {
	EToE [][]int
	EToF [][]int
}

// BuildConnectivity matches faces by their sorted node signatures.
func (m *Mesh) BuildConnectivity() Connectivity {
	K := len(m.Elements)
	c := Connectivity{EToE: make([][]int, K), EToF: make([][]int, K)}

	type faceOwner struct {
		elem, face int
	}
	faceMap := make(map[faceKey]faceOwner)

	for e, el := range m.Elements {
		faces := el.Faces()
		c.EToE[e] = make([]int, len(faces))
		c.EToF[e] = make([]int, len(faces))
		for f, nodes := range faces {
			// Self-connection by default
			c.EToE[e][f] = e
			c.EToF[e][f] = f

			key := newFaceKey(nodes)
			if existing, found := faceMap[key]; found {
				c.EToE[e][f] = existing.elem
				c.EToF[e][f] = existing.face
				c.EToE[existing.elem][existing.face] = e
				c.EToF[existing.elem][existing.face] = f
				delete(faceMap, key)
			} else {
				faceMap[key] = faceOwner{e, f}
			}
		}
	}
	return c
}

// BoundaryFaces returns the node lists of faces owned by a single element.
func (m *Mesh) BoundaryFaces() [][]int {
	c := m.BuildConnectivity()
	var out [][]int
	for e, el := range m.Elements {
		faces := el.Faces()
		for f := range faces {
			if c.EToE[e][f] == e && c.EToF[e][f] == f {
				out = append(out, faces[f])
			}
		}
	}
	return out
}

// BoundaryNodes returns the sorted nodes lying on boundary faces.
func (m *Mesh) BoundaryNodes() []int {
	seen := make(map[int]bool)
	for _, face := range m.BoundaryFaces() {
		for _, n := range face {
			seen[n] = true
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Edges returns the unique edges of the mesh in a deterministic order.
func (m *Mesh) Edges() []Edge {
	seen := make(map[Edge]bool)
	var out []Edge
	for _, el := range m.Elements {
		for _, e := range el.Edges() {
			key := NewEdge(e[0], e[1])
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// EdgeElements maps each edge to the elements sharing it.
func (m *Mesh) EdgeElements() map[Edge][]int {
	out := make(map[Edge][]int)
	for k, el := range m.Elements {
		for _, e := range el.Edges() {
			key := NewEdge(e[0], e[1])
			out[key] = append(out[key], k)
		}
	}
	return out
}

// NodeNeighbours returns, for every node, the sorted nodes sharing an edge
// with it.
func (m *Mesh) NodeNeighbours() [][]int {
	out := make([][]int, len(m.Nodes))
	for _, e := range m.Edges() {
		out[e.A] = append(out[e.A], e.B)
		out[e.B] = append(out[e.B], e.A)
	}
	for _, nb := range out {
		sort.Ints(nb)
	}
	return out
}

// NodeElements returns, for every node, the elements containing it.
func (m *Mesh) NodeElements() [][]int {
	out := make([][]int, len(m.Nodes))
	for k, el := range m.Elements {
		for _, n := range el.Nodes {
			out[n] = append(out[n], k)
		}
	}
	return out
}
