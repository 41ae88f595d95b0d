package debugio

import (
	"bytes"
	"fmt"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
)

// VTK cell type codes.
const (
	vtkTriangle = 5
	vtkTetra    = 10
)

// VTKWriter writes an ASCII VTK XML unstructured grid, <name>.vtu.
type VTKWriter struct {
	Framework config.Framework
}

func (w *VTKWriter) Write(dir, prefix string, label int, m *mesh.Mesh, f *metric.SizeField) ([]string, error) {
	data, err := collect(m, f, w.Framework)
	if err != nil {
		return nil, err
	}

	geo := new(bytes.Buffer)
	vtkTopology(geo, m)
	dat := new(bytes.Buffer)
	vtkPointData(dat, data)
	vtkCellData(dat, m)

	var out bytes.Buffer
	out.WriteString("<?xml version=\"1.0\"?>\n<VTKFile type=\"UnstructuredGrid\" version=\"0.1\" byte_order=\"LittleEndian\">\n<UnstructuredGrid>\n")
	fmt.Fprintf(&out, "<Piece NumberOfPoints=\"%d\" NumberOfCells=\"%d\">\n", m.NumNodes(), m.NumElements())
	out.Write(geo.Bytes())
	out.Write(dat.Bytes())
	out.WriteString("</Piece>\n</UnstructuredGrid>\n</VTKFile>\n")

	path, err := writeFile(dir, FileName(prefix, m.Name, label)+".vtu", &out)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func vtkTopology(buf *bytes.Buffer, m *mesh.Mesh) {
	// coordinates
	buf.WriteString("<Points>\n<DataArray type=\"Float64\" NumberOfComponents=\"3\" format=\"ascii\">\n")
	for _, p := range m.Nodes {
		fmt.Fprintf(buf, "%23.15e %23.15e %23.15e ", p.X, p.Y, p.Z)
	}
	buf.WriteString("\n</DataArray>\n</Points>\n")

	// connectivities
	buf.WriteString("<Cells>\n<DataArray type=\"Int32\" Name=\"connectivity\" format=\"ascii\">\n")
	for _, el := range m.Elements {
		for _, n := range el.Nodes {
			fmt.Fprintf(buf, "%d ", n)
		}
	}

	// offsets
	buf.WriteString("\n</DataArray>\n<DataArray type=\"Int32\" Name=\"offsets\" format=\"ascii\">\n")
	var offset int
	for _, el := range m.Elements {
		offset += len(el.Nodes)
		fmt.Fprintf(buf, "%d ", offset)
	}

	// types
	buf.WriteString("\n</DataArray>\n<DataArray type=\"UInt8\" Name=\"types\" format=\"ascii\">\n")
	for _, el := range m.Elements {
		code := vtkTriangle
		if el.Type == mesh.Tet {
			code = vtkTetra
		}
		fmt.Fprintf(buf, "%d ", code)
	}
	buf.WriteString("\n</DataArray>\n</Cells>\n")
}

func vtkPointData(buf *bytes.Buffer, d *nodalData) {
	buf.WriteString("<PointData>\n")
	for _, name := range d.scalars {
		fmt.Fprintf(buf, "<DataArray type=\"Float64\" Name=\"%s\" NumberOfComponents=\"1\" format=\"ascii\">\n", name)
		for _, v := range d.values[name] {
			fmt.Fprintf(buf, "%23.15e ", v)
		}
		buf.WriteString("\n</DataArray>\n")
	}
	if d.vector != nil {
		fmt.Fprintf(buf, "<DataArray type=\"Float64\" Name=\"%s\" NumberOfComponents=\"3\" format=\"ascii\">\n", d.vectorName)
		for _, v := range d.vector {
			fmt.Fprintf(buf, "%23.15e %23.15e %23.15e ", v[0], v[1], v[2])
		}
		buf.WriteString("\n</DataArray>\n")
	}
	if d.tensors != nil {
		fmt.Fprintf(buf, "<DataArray type=\"Float64\" Name=\"%s\" NumberOfComponents=\"9\" format=\"ascii\">\n", MetricTensor)
		for _, t := range d.tensors {
			// row-major full tensor from xx yy zz xy yz xz
			fmt.Fprintf(buf, "%23.15e %23.15e %23.15e %23.15e %23.15e %23.15e %23.15e %23.15e %23.15e ",
				t[0], t[3], t[5], t[3], t[1], t[4], t[5], t[4], t[2])
		}
		buf.WriteString("\n</DataArray>\n")
	}
	buf.WriteString("</PointData>\n")
}

func vtkCellData(buf *bytes.Buffer, m *mesh.Mesh) {
	buf.WriteString("<CellData>\n")
	buf.WriteString("<DataArray type=\"Int32\" Name=\"blocked\" NumberOfComponents=\"1\" format=\"ascii\">\n")
	for _, el := range m.Elements {
		b := 0
		if el.Blocked {
			b = 1
		}
		fmt.Fprintf(buf, "%d ", b)
	}
	buf.WriteString("\n</DataArray>\n</CellData>\n")
}
