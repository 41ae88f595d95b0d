package debugio

import (
	"bytes"
	"fmt"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
)

// GiDWriter writes ASCII GiD post-process files: <name>.post.msh with the
// mesh and <name>.post.res with the nodal results. Node and element ids are
// 1-based.
type GiDWriter struct {
	Framework config.Framework
}

func (w *GiDWriter) Write(dir, prefix string, label int, m *mesh.Mesh, f *metric.SizeField) ([]string, error) {
	data, err := collect(m, f, w.Framework)
	if err != nil {
		return nil, err
	}
	name := FileName(prefix, m.Name, label)

	msh := new(bytes.Buffer)
	gidMesh(msh, m)
	mshPath, err := writeFile(dir, name+".post.msh", msh)
	if err != nil {
		return nil, err
	}

	res := new(bytes.Buffer)
	gidResults(res, label, data)
	resPath, err := writeFile(dir, name+".post.res", res)
	if err != nil {
		return nil, err
	}
	return []string{mshPath, resPath}, nil
}

func gidElemType(m *mesh.Mesh) string {
	if m.Dim == 3 {
		return "Tetrahedra"
	}
	return "Triangle"
}

func gidMesh(buf *bytes.Buffer, m *mesh.Mesh) {
	nnode := 3
	if m.Dim == 3 {
		nnode = 4
	}
	fmt.Fprintf(buf, "MESH \"%s\" dimension %d ElemType %s Nnode %d\n", m.Name, m.Dim, gidElemType(m), nnode)

	buf.WriteString("Coordinates\n")
	for i, p := range m.Nodes {
		fmt.Fprintf(buf, "%d %23.15e %23.15e %23.15e\n", i+1, p.X, p.Y, p.Z)
	}
	buf.WriteString("End Coordinates\n")

	buf.WriteString("Elements\n")
	for k, el := range m.Elements {
		fmt.Fprintf(buf, "%d", k+1)
		for _, n := range el.Nodes {
			fmt.Fprintf(buf, " %d", n+1)
		}
		// Blocked elements go to their own material so they can be told apart
		mat := 1
		if el.Blocked {
			mat = 2
		}
		fmt.Fprintf(buf, " %d\n", mat)
	}
	buf.WriteString("End Elements\n")
}

func gidResults(buf *bytes.Buffer, step int, d *nodalData) {
	buf.WriteString("GiD Post Results File 1.0\n")

	for _, name := range d.scalars {
		fmt.Fprintf(buf, "Result \"%s\" \"Remesh\" %d Scalar OnNodes\n", name, step)
		buf.WriteString("Values\n")
		for i, v := range d.values[name] {
			fmt.Fprintf(buf, "%d %.15e\n", i+1, v)
		}
		buf.WriteString("End Values\n")
	}

	if d.vector != nil {
		n := d.vectorName
		fmt.Fprintf(buf, "Result \"%s\" \"Remesh\" %d Vector OnNodes\n", n, step)
		fmt.Fprintf(buf, "ComponentNames \"%s_X\", \"%s_Y\", \"%s_Z\"\n", n, n, n)
		buf.WriteString("Values\n")
		for i, v := range d.vector {
			fmt.Fprintf(buf, "%d %.15e %.15e %.15e\n", i+1, v[0], v[1], v[2])
		}
		buf.WriteString("End Values\n")
	}

	if d.tensors != nil {
		fmt.Fprintf(buf, "Result \"%s\" \"Remesh\" %d Matrix OnNodes\n", MetricTensor, step)
		buf.WriteString("Values\n")
		for i, t := range d.tensors {
			fmt.Fprintf(buf, "%d %.15e %.15e %.15e %.15e %.15e %.15e\n", i+1, t[0], t[1], t[2], t[3], t[4], t[5])
		}
		buf.WriteString("End Values\n")
	}
}
