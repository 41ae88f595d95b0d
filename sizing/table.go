package sizing

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat/distuv"
)

// Extent and resolution of the standard-normal table.
const (
	TableMaxZ = 4.0
	TableStep = 0.01
)

// Table is a precomputed standard-normal cumulative table over Z in
// [0, TableMaxZ], looked up by linear interpolation in both directions.
// Negative arguments use the symmetry of the distribution.
type Table struct {
	Z    []float64
	Prob []float64

	forward interp.PiecewiseLinear // Z -> Prob
	inverse interp.PiecewiseLinear // Prob -> Z
}

// NewTable tabulates the standard-normal CDF.
func NewTable() *Table {
	n := int(math.Round(TableMaxZ/TableStep)) + 1
	t := &Table{
		Z:    make([]float64, n),
		Prob: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		z := float64(i) * TableStep
		t.Z[i] = z
		t.Prob[i] = distuv.UnitNormal.CDF(z)
	}
	// Both columns are strictly increasing, so Fit cannot fail
	_ = t.forward.Fit(t.Z, t.Prob)
	_ = t.inverse.Fit(t.Prob, t.Z)
	return t
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// DefaultTable returns the shared table.
func DefaultTable() *Table {
	defaultTableOnce.Do(func() { defaultTable = NewTable() })
	return defaultTable
}

// CDF returns the probability that a standard-normal variable is below z.
// Beyond the table the end values are used.
func (t *Table) CDF(z float64) float64 {
	if z < 0 {
		return 1 - t.forward.Predict(-z)
	}
	return t.forward.Predict(z)
}

// Quantile returns z such that CDF(z) = p, for p in (0, 1). Probabilities
// beyond the table saturate at +/-TableMaxZ.
func (t *Table) Quantile(p float64) float64 {
	if p < 0.5 {
		return -t.inverse.Predict(1 - p)
	}
	return t.inverse.Predict(p)
}

// Value returns the value below which a fraction p of a normal
// distribution with the given mean and standard deviation lies.
func (t *Table) Value(p, mean, stdev float64) float64 {
	return mean + t.Quantile(p)*stdev
}
