package sizing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/remesh/config"
	rerrors "github.com/notargets/remesh/errors"
)

func TestTable(t *testing.T) {
	tb := NewTable()
	require.Len(t, tb.Z, 401)
	assert.Equal(t, 0.0, tb.Z[0])
	assert.InDelta(t, 4.0, tb.Z[400], 1e-12)

	t.Run("monotonic", func(t *testing.T) {
		for i := 1; i < len(tb.Prob); i++ {
			assert.Greater(t, tb.Prob[i], tb.Prob[i-1])
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		for _, z := range []float64{0.25, 1, 1.645, 2.5} {
			assert.InDelta(t, 1, tb.CDF(z)+tb.CDF(-z), 1e-12)
			assert.InDelta(t, 0, tb.Quantile(tb.CDF(z))+tb.Quantile(tb.CDF(-z)), 1e-9)
		}
		assert.InDelta(t, 0.5, tb.CDF(0), 1e-15)
		assert.InDelta(t, 0, tb.Quantile(0.5), 1e-12)
	})

	t.Run("known quantiles", func(t *testing.T) {
		assert.InDelta(t, 1.6449, tb.Quantile(0.95), 1e-3)
		assert.InDelta(t, 2.0537, tb.Quantile(0.98), 1e-3)
		assert.InDelta(t, -1.2816, tb.Quantile(0.10), 1e-3)
		assert.InDelta(t, 0.8413, tb.CDF(1), 1e-4)
	})

	t.Run("saturates", func(t *testing.T) {
		assert.InDelta(t, TableMaxZ, tb.Quantile(0.9999999), 1e-12)
		assert.InDelta(t, -TableMaxZ, tb.Quantile(1e-9), 1e-12)
	})

	assert.Same(t, DefaultTable(), DefaultTable())
}

func TestComputeBoundsRatio(t *testing.T) {
	t.Run("uniform mean", func(t *testing.T) {
		samples := make([]float64, 25)
		for i := range samples {
			samples[i] = 0.5
		}
		b, err := ComputeBounds(samples, Config{Type: config.RemeshRatio, Refer: config.ReferMean, MinRatio: 1, MaxRatio: 3})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, b.Min, 1e-15)
		assert.InDelta(t, 1.5, b.Max, 1e-15)
	})

	t.Run("median of even sample", func(t *testing.T) {
		b, err := ComputeBounds([]float64{1, 2, 4, 100}, Config{Type: config.RemeshRatio, Refer: config.ReferMedian, MinRatio: 0.5, MaxRatio: 2})
		require.NoError(t, err)
		assert.InDelta(t, 1.5, b.Min, 1e-15)
		assert.InDelta(t, 6.0, b.Max, 1e-15)
	})

	t.Run("ordered ratios give ordered sizes", func(t *testing.T) {
		samples := []float64{0.1, 0.3, 0.2, 0.7, 0.05}
		for _, r := range [][2]float64{{0.5, 0.5}, {0.2, 1}, {1, 3}, {2, 10}} {
			for _, refer := range []config.ReferType{config.ReferMean, config.ReferMedian} {
				b, err := ComputeBounds(samples, Config{Type: config.RemeshRatio, Refer: refer, MinRatio: r[0], MaxRatio: r[1]})
				require.NoError(t, err)
				assert.LessOrEqual(t, b.Min, b.Max)
			}
		}
	})

	t.Run("inverted ratios", func(t *testing.T) {
		_, err := ComputeBounds([]float64{1}, Config{Type: config.RemeshRatio, MinRatio: 2, MaxRatio: 1})
		assert.True(t, rerrors.Is(err, rerrors.ErrInvalidInput))
	})
}

func TestComputeBoundsPercentage(t *testing.T) {
	cfg := Config{Type: config.RemeshPercentage, MinPercentage: 50, MaxPercentage: 98}

	t.Run("zero variance collapses to the sample", func(t *testing.T) {
		b, err := ComputeBounds([]float64{0.3, 0.3, 0.3, 0.3}, cfg)
		require.NoError(t, err)
		assert.Equal(t, 0.3, b.Min)
		assert.Equal(t, 0.3, b.Max)
	})

	t.Run("single sample", func(t *testing.T) {
		b, err := ComputeBounds([]float64{0.7}, cfg)
		require.NoError(t, err)
		assert.Equal(t, Bounds{Min: 0.7, Max: 0.7}, b)
		assert.False(t, math.IsNaN(b.Min))
	})

	t.Run("normal percentiles", func(t *testing.T) {
		samples := []float64{0.8, 0.9, 1.0, 1.1, 1.2}
		b, err := ComputeBounds(samples, cfg)
		require.NoError(t, err)
		sd := math.Sqrt(0.025)
		assert.InDelta(t, 1.0, b.Min, 1e-9)
		assert.InDelta(t, 1.0+2.0537*sd, b.Max, 1e-3)
	})

	t.Run("lower tail below zero", func(t *testing.T) {
		samples := []float64{0.01, 0.02, 5, 10}
		b, err := ComputeBounds(samples, Config{Type: config.RemeshPercentage, MinPercentage: 5, MaxPercentage: 95})
		require.NoError(t, err)
		assert.Equal(t, 0.01, b.Min)
		assert.Greater(t, b.Max, b.Min)
	})
}

func TestComputeBoundsInvalid(t *testing.T) {
	cfg := Config{Type: config.RemeshRatio, MinRatio: 1, MaxRatio: 3}

	_, err := ComputeBounds(nil, cfg)
	assert.True(t, rerrors.Is(err, rerrors.ErrInvalidInput))

	_, err = ComputeBounds([]float64{1, math.NaN()}, cfg)
	assert.True(t, rerrors.Is(err, rerrors.ErrInvalidInput))

	_, err = ComputeBounds([]float64{0, 0}, cfg)
	assert.True(t, rerrors.Is(err, rerrors.ErrInvalidInput))

	_, err = ComputeBounds([]float64{1}, Config{Type: config.RemeshType(9)})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	st, err := Describe([]float64{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, st.N)
	assert.InDelta(t, 2, st.Mean, 1e-15)
	assert.InDelta(t, 1, st.StdDev, 1e-15)
	assert.Equal(t, 2.0, st.Median)
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 3.0, st.Max)
}

func TestBoundsHelpers(t *testing.T) {
	b := Bounds{Min: 0.1, Max: 1}
	assert.NoError(t, b.Validate())
	assert.Equal(t, 0.1, b.Clamp(0.01))
	assert.Equal(t, 1.0, b.Clamp(4))
	assert.Equal(t, 0.5, b.Clamp(0.5))
	assert.Equal(t, "[0.1, 1]", b.String())
	assert.Error(t, Bounds{Min: 2, Max: 1}.Validate())
	assert.Error(t, Bounds{Min: 0, Max: 1}.Validate())
}

func TestConfigFromSettings(t *testing.T) {
	s := config.Default(2)
	s.AutomaticRemeshParameters.AutomaticRemeshType = "Percentage"
	r, err := config.Resolve(s, 2)
	require.NoError(t, err)
	cfg := ConfigFromSettings(r)
	assert.Equal(t, config.RemeshPercentage, cfg.Type)
	assert.Equal(t, 50.0, cfg.MinPercentage)
	assert.Equal(t, 98.0, cfg.MaxPercentage)
}
