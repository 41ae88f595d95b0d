package mesh

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/notargets/gocfd/DG3D/mesh/readers"
	"gonum.org/v1/gonum/spatial/r3"
)

// Load reads a simplex mesh file through the gocfd readers. Triangle-only
// files become 2D meshes and tetrahedron-only files 3D meshes; anything
// else is rejected. The boundary is registered as the Skin sub-model-part.
func Load(path string) (*Mesh, error) {
	msh, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh %s: %w", path, err)
	}
	if len(msh.EtoV) == 0 {
		return nil, fmt.Errorf("mesh file %s has no elements", path)
	}

	// All elements must share one simplex type
	nv := len(msh.EtoV[0])
	for k, ev := range msh.EtoV {
		if len(ev) != nv {
			return nil, fmt.Errorf("mesh file %s mixes element types (element %d has %d vertices, element 0 has %d)",
				path, k, len(ev), nv)
		}
	}
	var geom Geometry
	switch nv {
	case 3:
		geom = Tri
	case 4:
		geom = Tet
	default:
		return nil, fmt.Errorf("mesh file %s: elements with %d vertices are not simplices", path, nv)
	}

	nodes := make([]r3.Vec, len(msh.Vertices))
	for i, v := range msh.Vertices {
		var p r3.Vec
		if len(v) > 0 {
			p.X = v[0]
		}
		if len(v) > 1 {
			p.Y = v[1]
		}
		if len(v) > 2 {
			p.Z = v[2]
		}
		if geom == Tri && p.Z != 0 {
			return nil, fmt.Errorf("mesh file %s: triangle mesh is not planar (node %d has z = %g)", path, i, p.Z)
		}
		nodes[i] = p
	}

	elements := make([]Element, len(msh.EtoV))
	for k, ev := range msh.EtoV {
		elements[k] = Element{Type: geom, Nodes: append([]int(nil), ev...)}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := New(name, geom.Dim(), nodes, elements)
	if err != nil {
		return nil, err
	}
	m.addSkin()
	return m, nil
}
