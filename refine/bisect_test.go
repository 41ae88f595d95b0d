package refine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
)

func uniformField(m *mesh.Mesh, h float64) *metric.SizeField {
	f := metric.NewSizeField(m.Dim, m.NumNodes())
	for i := range f.Tensors {
		f.Tensors[i] = metric.Isotropic(m.Dim, h)
	}
	return f
}

// assertConforming checks that the mesh tiles the unit square without
// hanging nodes: edges with a single element form exactly the perimeter.
func assertConforming(t *testing.T, m *mesh.Mesh, area float64) {
	t.Helper()
	require.NoError(t, m.Validate())

	var total float64
	for k := range m.Elements {
		g, err := m.Geometry(k)
		require.NoError(t, err)
		total += g.Measure
	}
	assert.InDelta(t, area, total, 1e-12)

	var perimeter float64
	for e, elems := range m.EdgeElements() {
		require.LessOrEqual(t, len(elems), 2)
		if len(elems) == 1 {
			perimeter += r3.Norm(r3.Sub(m.Nodes[e.A], m.Nodes[e.B]))
		}
	}
	assert.InDelta(t, 4*math.Sqrt(area), perimeter, 1e-12)
}

func maxEdge(m *mesh.Mesh) (lo, hi float64) {
	lo = math.Inf(1)
	for _, e := range m.Edges() {
		l := r3.Norm(r3.Sub(m.Nodes[e.A], m.Nodes[e.B]))
		lo, hi = math.Min(lo, l), math.Max(hi, l)
	}
	return lo, hi
}

func TestBisectUniform(t *testing.T) {
	m, err := mesh.NewStructuredSquare("square", 2, 1)
	require.NoError(t, err)
	lin := make([]float64, m.NumNodes())
	for i, p := range m.Nodes {
		lin[i] = p.X + 2*p.Y
	}
	require.NoError(t, m.SetValue("LIN", false, lin))

	b := New(Options{}, nil)
	require.NoError(t, b.Remesh(context.Background(), m, uniformField(m, 0.25)))

	assertConforming(t, m, 1)
	_, hi := maxEdge(m)
	assert.LessOrEqual(t, hi, math.Sqrt2*0.25+1e-12)

	st := b.Stats()
	assert.Greater(t, st.Passes, 0)
	assert.Equal(t, m.NumNodes(), st.Nodes)
	assert.Equal(t, m.NumElements(), st.Elements)
	assert.Greater(t, st.Elements, 8)

	// Midpoint interpolation is exact for linear fields
	got, _ := m.Value("LIN", false)
	require.Len(t, got, m.NumNodes())
	for i, p := range m.Nodes {
		assert.InDelta(t, p.X+2*p.Y, got[i], 1e-12)
	}

	// The skin still covers the boundary with two-node conditions
	skin := m.SubModelParts[mesh.SkinName]
	var length float64
	for _, c := range skin.Conditions {
		require.Len(t, c, 2)
		length += r3.Norm(r3.Sub(m.Nodes[c[0]], m.Nodes[c[1]]))
	}
	assert.InDelta(t, 4.0, length, 1e-12)
	assert.ElementsMatch(t, m.BoundaryNodes(), skin.Nodes)
}

func TestBisectNothingToDo(t *testing.T) {
	m, err := mesh.NewStructuredSquare("square", 2, 1)
	require.NoError(t, err)
	b := New(Options{}, nil)
	require.NoError(t, b.Remesh(context.Background(), m, uniformField(m, 10)))
	assert.Equal(t, 0, b.Stats().Passes)
	assert.Equal(t, 9, m.NumNodes())
	assert.Equal(t, 8, m.NumElements())
}

func TestBisectBlocked(t *testing.T) {
	t.Run("element", func(t *testing.T) {
		m, err := mesh.NewStructuredSquare("square", 2, 1)
		require.NoError(t, err)
		m.Elements[0].Blocked = true
		kept := append([]int(nil), m.Elements[0].Nodes...)

		require.NoError(t, New(Options{}, nil).Remesh(context.Background(), m, uniformField(m, 0.2)))
		assertConforming(t, m, 1)
		var found bool
		for _, el := range m.Elements {
			if el.Blocked {
				assert.Equal(t, kept, el.Nodes)
				found = true
			}
		}
		assert.True(t, found)
		assert.Greater(t, m.NumElements(), 8)
	})

	t.Run("contour nodes", func(t *testing.T) {
		m, err := mesh.NewStructuredSquare("square", 4, 1)
		require.NoError(t, err)
		skin := m.SubModelParts[mesh.SkinName]
		m.BlockNodes(skin)

		require.NoError(t, New(Options{}, nil).Remesh(context.Background(), m, uniformField(m, 0.05)))
		assertConforming(t, m, 1)
		assert.Len(t, skin.Conditions, 16)
		assert.Len(t, skin.Nodes, 16)
		assert.Greater(t, m.NumElements(), 32)
	})
}

func TestBisectForceMinMax(t *testing.T) {
	t.Run("force min", func(t *testing.T) {
		m, err := mesh.NewStructuredSquare("square", 2, 1)
		require.NoError(t, err)
		b := New(Options{ForceMin: true, MinSize: 0.3}, nil)
		require.NoError(t, b.Remesh(context.Background(), m, uniformField(m, 0.01)))
		assertConforming(t, m, 1)
		lo, _ := maxEdge(m)
		assert.GreaterOrEqual(t, lo, 0.3)
		assert.Greater(t, b.Stats().Passes, 0)
	})

	t.Run("force max", func(t *testing.T) {
		m, err := mesh.NewStructuredSquare("square", 2, 1)
		require.NoError(t, err)
		b := New(Options{ForceMax: true, MaxSize: 0.4}, nil)
		require.NoError(t, b.Remesh(context.Background(), m, uniformField(m, 10)))
		assertConforming(t, m, 1)
		_, hi := maxEdge(m)
		assert.LessOrEqual(t, hi, 0.4)
	})

	t.Run("sizes replaced", func(t *testing.T) {
		m, err := mesh.NewStructuredSquare("square", 2, 1)
		require.NoError(t, err)
		b := New(Options{ForceMax: true, MaxSize: 10}, nil)
		b.SetSizes(0.01, 0.4)
		require.NoError(t, b.Remesh(context.Background(), m, uniformField(m, 10)))
		assertConforming(t, m, 1)
		_, hi := maxEdge(m)
		assert.LessOrEqual(t, hi, 0.4)
	})
}

func TestBisectSubModelPartElements(t *testing.T) {
	m, err := mesh.NewStructuredSquare("square", 1, 1)
	require.NoError(t, err)
	m.AddSubModelPart(&mesh.SubModelPart{Name: "Lower", Nodes: []int{0, 1, 3}, Elements: []int{0}})

	require.NoError(t, New(Options{}, nil).Remesh(context.Background(), m, uniformField(m, 0.5)))
	lower := m.SubModelParts["Lower"]
	var area float64
	for _, k := range lower.Elements {
		g, err := m.Geometry(k)
		require.NoError(t, err)
		area += g.Measure
	}
	assert.InDelta(t, 0.5, area, 1e-12)
}

func TestBisectErrors(t *testing.T) {
	cube, err := mesh.NewStructuredCube("cube", 1, 1)
	require.NoError(t, err)
	b := New(Options{}, nil)
	assert.Error(t, b.Remesh(context.Background(), cube, uniformField(cube, 0.1)))

	sq, err := mesh.NewStructuredSquare("square", 1, 1)
	require.NoError(t, err)
	assert.Error(t, b.Remesh(context.Background(), sq, nil))
	assert.Error(t, b.Remesh(context.Background(), sq, metric.NewSizeField(2, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Remesh(ctx, sq, uniformField(sq, 0.1)), context.Canceled)
}

func TestOptionsFromSettings(t *testing.T) {
	s := config.Default(2)
	s.ForceMin = true
	o := OptionsFromSettings(s)
	assert.True(t, o.ForceMin)
	assert.Equal(t, s.MinimalSize, o.MinSize)
	assert.False(t, o.ForceMax)
	assert.Equal(t, s.MaximalSize, o.MaxSize)
}
