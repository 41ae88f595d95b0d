package metric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/sizing"
)

// sizeTol is the relative slack allowed when checking sizes against bounds.
const sizeTol = 1e-9

// SizeField holds one symmetric positive definite metric tensor per node.
// An eigenvalue lambda of a tensor prescribes the size 1/sqrt(lambda) along
// its eigenvector.
type SizeField struct {
	Dim     int
	Tensors []*mat.SymDense
}

// NewSizeField allocates an empty field for n nodes.
func NewSizeField(dim, n int) *SizeField {
	return &SizeField{Dim: dim, Tensors: make([]*mat.SymDense, n)}
}

// Len returns the number of nodal tensors.
func (f *SizeField) Len() int { return len(f.Tensors) }

// Sizes returns the eigen-sizes of node i in ascending order.
func (f *SizeField) Sizes(i int) ([]float64, error) {
	return Sizes(f.Tensors[i])
}

// MinSizes returns the smallest eigen-size of every node.
func (f *SizeField) MinSizes() []float64 {
	out := make([]float64, len(f.Tensors))
	for i := range f.Tensors {
		s, err := f.Sizes(i)
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = s[0]
	}
	return out
}

// Range returns the smallest and largest eigen-size over the field.
func (f *SizeField) Range() (lo, hi float64, err error) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range f.Tensors {
		s, err := f.Sizes(i)
		if err != nil {
			return 0, 0, fmt.Errorf("node %d: %w", i, err)
		}
		lo = math.Min(lo, s[0])
		hi = math.Max(hi, s[len(s)-1])
	}
	return lo, hi, nil
}

// Verify checks that every eigen-size lies within b.
func (f *SizeField) Verify(b sizing.Bounds) error {
	for i := range f.Tensors {
		if f.Tensors[i] == nil {
			return fmt.Errorf("node %d has no metric", i)
		}
		s, err := f.Sizes(i)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		if s[0] < b.Min*(1-sizeTol) || s[len(s)-1] > b.Max*(1+sizeTol) {
			return fmt.Errorf("node %d sizes %v outside %s", i, s, b)
		}
	}
	return nil
}

// EdgeLength returns the length of the segment p-q measured in the mean
// metric of its end nodes a and b.
func (f *SizeField) EdgeLength(a, b int, p, q r3.Vec) float64 {
	e := vec(r3.Sub(q, p), f.Dim)
	m := f.Midpoint(a, b)
	return math.Sqrt(mat.Inner(e, m, e))
}

// Midpoint returns the metric interpolated halfway between nodes a and b.
func (f *SizeField) Midpoint(a, b int) *mat.SymDense {
	m := mat.NewSymDense(f.Dim, nil)
	m.AddSym(f.Tensors[a], f.Tensors[b])
	m.ScaleSym(0.5, m)
	return m
}

// Append adds the tensor of a new node.
func (f *SizeField) Append(t *mat.SymDense) {
	f.Tensors = append(f.Tensors, t)
}

// Isotropic returns I/h^2.
func Isotropic(dim int, h float64) *mat.SymDense {
	t := mat.NewSymDense(dim, nil)
	v := 1 / (h * h)
	for i := 0; i < dim; i++ {
		t.SetSym(i, i, v)
	}
	return t
}

// FromDirections builds the tensor with size sizes[k] along the orthonormal
// directions dirs[k].
func FromDirections(dim int, dirs []r3.Vec, sizes []float64) *mat.SymDense {
	t := mat.NewSymDense(dim, nil)
	for k, d := range dirs {
		t.SymRankOne(t, 1/(sizes[k]*sizes[k]), vec(d, dim))
	}
	return t
}

// Sizes returns the eigen-sizes of t in ascending order. A non-positive
// eigenvalue gives an infinite size.
func Sizes(t mat.Symmetric) ([]float64, error) {
	vals, _, err := eigen(t, false)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	// Values are ascending, so sizes come out descending
	for k, v := range vals {
		s := math.Inf(1)
		if v > 0 {
			s = 1 / math.Sqrt(v)
		}
		out[len(vals)-1-k] = s
	}
	return out, nil
}

// Clamp limits the eigen-sizes of t to [hmin, hmax].
func Clamp(t mat.Symmetric, hmin, hmax float64) (*mat.SymDense, error) {
	vals, vecs, err := eigen(t, true)
	if err != nil {
		return nil, err
	}
	lo, hi := 1/(hmax*hmax), 1/(hmin*hmin)
	for k := range vals {
		vals[k] = math.Min(math.Max(vals[k], lo), hi)
	}
	return recompose(vecs, vals), nil
}

// Intersect returns the metric prescribing, in every direction, the smaller
// of the sizes prescribed by a and b. a must be positive definite.
func Intersect(a, b mat.Symmetric) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return nil, fmt.Errorf("metric is not positive definite")
	}
	var L mat.TriDense
	chol.LTo(&L)
	var Linv mat.Dense
	if err := Linv.Inverse(&L); err != nil {
		return nil, fmt.Errorf("inverting metric factor: %w", err)
	}

	// In the basis where a is the identity, b becomes C = L^-1 b L^-T
	var tmp, c mat.Dense
	tmp.Mul(&Linv, b)
	c.Mul(&tmp, Linv.T())
	n := a.SymmetricDim()
	cs := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cs.SetSym(i, j, 0.5*(c.At(i, j)+c.At(j, i)))
		}
	}

	vals, q, err := eigen(cs, true)
	if err != nil {
		return nil, err
	}
	for k := range vals {
		vals[k] = math.Max(1, vals[k])
	}
	var r mat.Dense
	r.Mul(&L, q)
	return recompose(&r, vals), nil
}

func eigen(t mat.Symmetric, vectors bool) ([]float64, *mat.Dense, error) {
	var es mat.EigenSym
	if !es.Factorize(t, vectors) {
		return nil, nil, fmt.Errorf("eigen decomposition failed")
	}
	vals := es.Values(nil)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, fmt.Errorf("metric has non-finite eigenvalue %v", v)
		}
	}
	if !vectors {
		return vals, nil, nil
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	return vals, &vecs, nil
}

// recompose returns sum_k vals[k] * c_k c_k^T over the columns c_k of cols.
func recompose(cols *mat.Dense, vals []float64) *mat.SymDense {
	t := mat.NewSymDense(len(vals), nil)
	for k, v := range vals {
		t.SymRankOne(t, v, cols.ColView(k))
	}
	return t
}

func vec(v r3.Vec, dim int) *mat.VecDense {
	out := mat.NewVecDense(dim, nil)
	for i := 0; i < dim; i++ {
		out.SetVec(i, mesh.Coord(v, i))
	}
	return out
}
