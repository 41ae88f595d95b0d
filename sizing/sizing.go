// Package sizing derives the admissible element size range of a remesh from
// the current nodal characteristic sizes, either as ratios of a central
// value or as percentiles of a fitted normal distribution.
package sizing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/remesh/config"
	rerrors "github.com/notargets/remesh/errors"
)

// Bounds is the admissible size range. Both values are positive and
// Min <= Max.
type Bounds struct {
	Min float64
	Max float64
}

// Validate checks the bounds invariant.
func (b Bounds) Validate() error {
	if !(b.Min > 0) || !(b.Max > 0) {
		return rerrors.NewValidationError("size bounds", b, "sizes must be positive")
	}
	if b.Min > b.Max {
		return rerrors.NewValidationError("size bounds", b, "minimum exceeds maximum")
	}
	return nil
}

// Clamp limits a size to the bounds.
func (b Bounds) Clamp(h float64) float64 {
	return math.Min(math.Max(h, b.Min), b.Max)
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g, %g]", b.Min, b.Max)
}

// Config selects the statistic used to derive Bounds.
type Config struct {
	Type          config.RemeshType
	Refer         config.ReferType
	MinRatio      float64
	MaxRatio      float64
	MinPercentage float64 // 0-100
	MaxPercentage float64 // 0-100
	Table         *Table  // nil uses DefaultTable
}

// ConfigFromSettings extracts the automatic sizing configuration.
func ConfigFromSettings(r *config.Resolved) Config {
	p := r.Settings.AutomaticRemeshParameters
	return Config{
		Type:          r.RemeshType,
		Refer:         r.ReferType,
		MinRatio:      p.MinSizeRatio,
		MaxRatio:      p.MaxSizeRatio,
		MinPercentage: p.MinSizeCurrentPercentage,
		MaxPercentage: p.MaxSizeCurrentPercentage,
	}
}

// Stats summarizes a sample of nodal sizes.
type Stats struct {
	N      int
	Mean   float64
	StdDev float64 // sample deviation, 0 for a single sample
	Median float64
	Min    float64
	Max    float64
}

// Describe computes the summary statistics of samples.
func Describe(samples []float64) (Stats, error) {
	if len(samples) == 0 {
		return Stats{}, fmt.Errorf("%w: no size samples", rerrors.ErrInvalidInput)
	}
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Stats{}, fmt.Errorf("%w: size sample %d is %v", rerrors.ErrInvalidInput, i, v)
		}
	}
	s := Stats{
		N:      len(samples),
		Median: median(samples),
		Min:    floats.Min(samples),
		Max:    floats.Max(samples),
	}
	if len(samples) == 1 {
		s.Mean = samples[0]
		return s, nil
	}
	s.Mean, s.StdDev = stat.MeanStdDev(samples, nil)
	return s, nil
}

// ComputeBounds derives the size range from the nodal size samples.
func ComputeBounds(samples []float64, cfg Config) (Bounds, error) {
	st, err := Describe(samples)
	if err != nil {
		return Bounds{}, err
	}

	var b Bounds
	switch cfg.Type {
	case config.RemeshRatio:
		if cfg.MinRatio > cfg.MaxRatio {
			return Bounds{}, rerrors.NewValidationError("min_size_ratio", cfg.MinRatio, "exceeds max_size_ratio")
		}
		ref := st.Mean
		if cfg.Refer == config.ReferMedian {
			ref = st.Median
		}
		b = Bounds{Min: ref * cfg.MinRatio, Max: ref * cfg.MaxRatio}

	case config.RemeshPercentage:
		if cfg.MinPercentage > cfg.MaxPercentage {
			return Bounds{}, rerrors.NewValidationError("min_size_current_percentage", cfg.MinPercentage,
				"exceeds max_size_current_percentage")
		}
		if st.StdDev == 0 {
			b = Bounds{Min: st.Mean, Max: st.Mean}
			break
		}
		table := cfg.Table
		if table == nil {
			table = DefaultTable()
		}
		b = Bounds{
			Min: table.Value(cfg.MinPercentage/100, st.Mean, st.StdDev),
			Max: table.Value(cfg.MaxPercentage/100, st.Mean, st.StdDev),
		}
		// A wide distribution can push the lower tail below zero
		if b.Min <= 0 {
			b.Min = smallestPositive(samples)
			b.Max = math.Max(b.Max, b.Min)
		}

	default:
		return Bounds{}, rerrors.NewValidationError("automatic_remesh_type", cfg.Type, "unsupported")
	}

	if err := b.Validate(); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

func median(samples []float64) float64 {
	s := make([]float64, len(samples))
	copy(s, samples)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return 0.5 * (s[n/2-1] + s[n/2])
}

func smallestPositive(samples []float64) float64 {
	out := math.Inf(1)
	for _, v := range samples {
		if v > 0 && v < out {
			out = v
		}
	}
	if math.IsInf(out, 1) {
		return 0
	}
	return out
}
