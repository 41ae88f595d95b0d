package debugio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
)

func snapshotMesh(t *testing.T) (*mesh.Mesh, *metric.SizeField) {
	t.Helper()
	m, err := mesh.NewStructuredSquare("fluid", 1, 1)
	require.NoError(t, err)
	require.NoError(t, m.SetValue("DISTANCE", false, []float64{-0.5, 0.5, -0.5, 0.5}))
	require.NoError(t, m.SetVector("VELOCITY", false, []r3.Vec{{X: 1}, {X: 2}, {X: 3}, {X: 4}}))
	require.NoError(t, m.SetVector("DISPLACEMENT", true, make([]r3.Vec, 4)))
	m.Elements[1].Blocked = true

	f := metric.NewSizeField(2, m.NumNodes())
	for i := range f.Tensors {
		f.Tensors[i] = metric.Isotropic(2, 0.5)
	}
	return m, f
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "BEFORE_REMESHING_fluid_STEP_3", FileName(Before, "fluid", 3))
	assert.Equal(t, "AFTER_REMESHING_MainModelPart_STEP_0", FileName(After, "MainModelPart", 0))
}

func TestNew(t *testing.T) {
	assert.Nil(t, New(config.DebugNone, config.Eulerian))
	assert.IsType(t, &GiDWriter{}, New(config.DebugGiD, config.Eulerian))
	assert.IsType(t, &VTKWriter{}, New(config.DebugVTK, config.Lagrangian))
	assert.Equal(t, "VELOCITY", KinematicVariable(config.Eulerian))
	assert.Equal(t, "DISPLACEMENT", KinematicVariable(config.Lagrangian))
}

func TestGiDWriter(t *testing.T) {
	m, f := snapshotMesh(t)
	dir := filepath.Join(t.TempDir(), "debug")

	files, err := New(config.DebugGiD, config.Eulerian).Write(dir, Before, 2, m, f)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "BEFORE_REMESHING_fluid_STEP_2.post.msh"), files[0])
	assert.Equal(t, filepath.Join(dir, "BEFORE_REMESHING_fluid_STEP_2.post.res"), files[1])

	msh := read(t, files[0])
	assert.True(t, strings.HasPrefix(msh, "MESH \"fluid\" dimension 2 ElemType Triangle Nnode 3\n"))
	assert.Contains(t, msh, "Coordinates\n1 ")
	assert.Contains(t, msh, "Elements\n1 1 2 4 1\n2 1 4 3 2\nEnd Elements\n")

	res := read(t, files[1])
	assert.True(t, strings.HasPrefix(res, "GiD Post Results File 1.0\n"))
	assert.Contains(t, res, "Result \"DISTANCE\" \"Remesh\" 2 Scalar OnNodes")
	assert.Contains(t, res, "Result \"VELOCITY\" \"Remesh\" 2 Vector OnNodes")
	assert.Contains(t, res, "ComponentNames \"VELOCITY_X\", \"VELOCITY_Y\", \"VELOCITY_Z\"")
	assert.Contains(t, res, "Result \"METRIC_SIZE\" \"Remesh\" 2 Scalar OnNodes")
	assert.Contains(t, res, "Result \"METRIC_TENSOR\" \"Remesh\" 2 Matrix OnNodes")
	assert.Contains(t, res, "4 4.000000000000000e+00 0.000000000000000e+00 0.000000000000000e+00\n")
	// Components are written inside the vector result only
	assert.NotContains(t, res, "Result \"VELOCITY_X\"")
	// The Eulerian snapshot keeps the displacement as plain scalars
	assert.Contains(t, res, "Result \"DISPLACEMENT_X\"")
	assert.Equal(t, 6, strings.Count(res, "End Values"))
}

func TestVTKWriter(t *testing.T) {
	m, f := snapshotMesh(t)
	dir := t.TempDir()

	files, err := New(config.DebugVTK, config.Lagrangian).Write(dir, After, 7, m, f)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "AFTER_REMESHING_fluid_STEP_7.vtu"), files[0])

	vtu := read(t, files[0])
	assert.True(t, strings.HasPrefix(vtu, "<?xml version=\"1.0\"?>\n<VTKFile type=\"UnstructuredGrid\""))
	assert.Contains(t, vtu, "<Piece NumberOfPoints=\"4\" NumberOfCells=\"2\">")
	assert.Contains(t, vtu, "Name=\"connectivity\" format=\"ascii\">\n0 1 3 0 3 2 \n")
	assert.Contains(t, vtu, "Name=\"offsets\" format=\"ascii\">\n3 6 \n")
	assert.Contains(t, vtu, "Name=\"types\" format=\"ascii\">\n5 5 \n")
	assert.Contains(t, vtu, "Name=\"DISPLACEMENT\" NumberOfComponents=\"3\"")
	assert.Contains(t, vtu, "Name=\"VELOCITY_X\" NumberOfComponents=\"1\"")
	assert.Contains(t, vtu, "Name=\"METRIC_TENSOR\" NumberOfComponents=\"9\"")
	assert.Contains(t, vtu, "Name=\"blocked\" NumberOfComponents=\"1\" format=\"ascii\">\n0 1 \n")
	assert.True(t, strings.HasSuffix(vtu, "</Piece>\n</UnstructuredGrid>\n</VTKFile>\n"))
}

func TestWriterWithoutSizeField(t *testing.T) {
	m, _ := snapshotMesh(t)
	files, err := (&VTKWriter{}).Write(t.TempDir(), After, 1, m, nil)
	require.NoError(t, err)
	vtu := read(t, files[0])
	assert.NotContains(t, vtu, MetricSize)
	assert.NotContains(t, vtu, MetricTensor)
}

func TestWriterErrors(t *testing.T) {
	m, _ := snapshotMesh(t)
	short := metric.NewSizeField(2, 1)
	_, err := (&GiDWriter{}).Write(t.TempDir(), Before, 1, m, short)
	assert.Error(t, err)

	// A regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	_, err = (&VTKWriter{}).Write(filepath.Join(blocker, "sub"), Before, 1, m, nil)
	assert.Error(t, err)
}
