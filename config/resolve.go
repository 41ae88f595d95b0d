package config

import (
	"fmt"
	"math"
	"strings"

	rerrors "github.com/notargets/remesh/errors"
)

// Strategy names accepted in Settings.Strategy.
const (
	StrategyLevelSet = "LevelSet"
	StrategyHessian  = "Hessian"
	StrategySPR      = "superconvergent_patch_recovery"
)

// RemeshType selects how automatic sizes are derived.
type RemeshType int

const (
	RemeshRatio RemeshType = iota
	RemeshPercentage
)

func (t RemeshType) String() string {
	switch t {
	case RemeshRatio:
		return "Ratio"
	case RemeshPercentage:
		return "Percentage"
	default:
		return fmt.Sprintf("RemeshType(%d)", int(t))
	}
}

// ReferType is the central value used by ratio sizing.
type ReferType int

const (
	ReferMean ReferType = iota
	ReferMedian
)

func (r ReferType) String() string {
	switch r {
	case ReferMean:
		return "Mean"
	case ReferMedian:
		return "Median"
	default:
		return fmt.Sprintf("ReferType(%d)", int(r))
	}
}

// Interpolation is the law mapping a distance ratio in [0,1] onto a size
// or an anisotropic ratio.
type Interpolation int

const (
	InterpolationConstant Interpolation = iota
	InterpolationLinear
	InterpolationExponential
)

func (i Interpolation) String() string {
	switch i {
	case InterpolationConstant:
		return "constant"
	case InterpolationLinear:
		return "linear"
	case InterpolationExponential:
		return "exponential"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
}

// Framework selects the kinematic description written to debug output.
type Framework int

const (
	Eulerian Framework = iota
	Lagrangian
)

func (f Framework) String() string {
	if f == Lagrangian {
		return "Lagrangian"
	}
	return "Eulerian"
}

// DebugMode selects the before/after snapshot format.
type DebugMode int

const (
	DebugNone DebugMode = iota
	DebugGiD
	DebugVTK
)

func (d DebugMode) String() string {
	switch d {
	case DebugGiD:
		return "GiD"
	case DebugVTK:
		return "VTK"
	default:
		return ""
	}
}

// StrategyConfig is the resolved, strategy-specific configuration. It is
// implemented only by LevelSetConfig, HessianConfig and SPRConfig.
type StrategyConfig interface {
	StrategyName() string
	isStrategyConfig()
}

// SizingConfig is the resolved isotropic size law.
type SizingConfig struct {
	ReferenceVariable        string
	BoundaryLayerMaxDistance float64
	Interpolation            Interpolation
}

// AnisotropyConfig is the resolved anisotropic ratio law.
type AnisotropyConfig struct {
	ReferenceVariable         string
	HminOverHmax              float64
	BoundaryLayerMaxDistance  float64
	BoundaryLayerMinSizeRatio float64
	Interpolation             Interpolation
}

// LevelSetConfig configures the level-set strategy.
type LevelSetConfig struct {
	ScalarVariable   string
	GradientVariable string
	Sizing           SizingConfig
	EnforceCurrent   bool
	Anisotropy       *AnisotropyConfig // nil when anisotropy is off
}

// HessianConfig configures the Hessian strategy. NonHistorical always has
// the same length as Variables.
type HessianConfig struct {
	Variables                  []string
	NonHistorical              []bool
	EstimateInterpolationError bool
	InterpolationError         float64
	MeshDependentConstant      float64
	EnforceCurrent             bool
	Anisotropy                 *AnisotropyConfig // nil when anisotropy is off
	RelativeToVariable         bool
}

// SPRConfig configures the error-driven strategy and its refinement loop.
type SPRConfig struct {
	ErrorThreshold            float64
	InterpolationError        float64
	SetTargetNumberOfElements bool
	TargetNumberOfElements    int
	PerformNodalHAveraging    bool
	MaxIterations             int
}

func (LevelSetConfig) StrategyName() string { return StrategyLevelSet }
func (HessianConfig) StrategyName() string  { return StrategyHessian }
func (SPRConfig) StrategyName() string      { return StrategySPR }

func (LevelSetConfig) isStrategyConfig() {}
func (HessianConfig) isStrategyConfig()  {}
func (SPRConfig) isStrategyConfig()      {}

// Resolved is the validated, typed view of Settings for a mesh dimension.
type Resolved struct {
	Settings   Settings
	Dim        int
	Strategy   StrategyConfig
	RemeshType RemeshType
	ReferType  ReferType
	Framework  Framework
	DebugMode  DebugMode
}

// Resolve validates s for a mesh of dimension dim and builds the typed
// view. All problems are reported together as ValidationErrors.
func Resolve(s *Settings, dim int) (*Resolved, error) {
	if s == nil {
		return nil, ValidationErrors{newValidationError("settings", nil, "settings are required")}
	}
	var errs ValidationErrors
	r := &Resolved{Settings: *s, Dim: dim}

	if dim != 2 && dim != 3 {
		errs = append(errs, newValidationError("dimension", dim, "must be 2 or 3"))
	}

	errs = append(errs, s.validateSizes()...)
	errs = append(errs, s.validateSchedule()...)

	var err *rerrors.ValidationError
	if r.Framework, err = parseFramework(s.Framework); err != nil {
		errs = append(errs, err)
	}
	if r.DebugMode, err = parseDebugMode(s.DebugMode); err != nil {
		errs = append(errs, err)
	}

	// Statistical sizing is only checked when it is used
	if s.AutomaticRemesh {
		if r.RemeshType, err = parseRemeshType(s.AutomaticRemeshParameters.AutomaticRemeshType); err != nil {
			errs = append(errs, err)
		}
		if r.ReferType, err = parseReferType(s.AutomaticRemeshParameters.ReferType); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, s.validateAutomatic()...)
	}

	var serrs ValidationErrors
	r.Strategy, serrs = s.resolveStrategy(dim)
	errs = append(errs, serrs...)

	if len(errs) > 0 {
		return nil, errs
	}
	return r, nil
}

func (s *Settings) validateSizes() ValidationErrors {
	var errs ValidationErrors
	if s.MinimalSize <= 0 {
		errs = append(errs, newValidationError("minimal_size", s.MinimalSize, "must be positive"))
	}
	if s.MaximalSize <= 0 {
		errs = append(errs, newValidationError("maximal_size", s.MaximalSize, "must be positive"))
	}
	if s.MinimalSize > s.MaximalSize {
		errs = append(errs, newValidationError("minimal_size", s.MinimalSize,
			fmt.Sprintf("exceeds maximal_size %g", s.MaximalSize)))
	}
	if s.BlockingThresholdSize && s.ThresholdSizes.MinimalSize > s.ThresholdSizes.MaximalSize {
		errs = append(errs, newValidationError("threshold_sizes.minimal_size", s.ThresholdSizes.MinimalSize,
			"exceeds threshold_sizes.maximal_size"))
	}
	return errs
}

func (s *Settings) validateSchedule() ValidationErrors {
	var errs ValidationErrors
	if s.StepFrequency < 0 {
		errs = append(errs, newValidationError("step_frequency", s.StepFrequency, "must not be negative"))
	}
	if s.InitialStep < 0 {
		errs = append(errs, newValidationError("initial_step", s.InitialStep, "must not be negative"))
	}
	return errs
}

func (s *Settings) validateAutomatic() ValidationErrors {
	var errs ValidationErrors
	p := s.AutomaticRemeshParameters
	if p.MinSizeRatio <= 0 {
		errs = append(errs, newValidationError("automatic_remesh_parameters.min_size_ratio", p.MinSizeRatio, "must be positive"))
	}
	if p.MinSizeRatio > p.MaxSizeRatio {
		errs = append(errs, newValidationError("automatic_remesh_parameters.min_size_ratio", p.MinSizeRatio,
			fmt.Sprintf("exceeds max_size_ratio %g", p.MaxSizeRatio)))
	}
	for _, pct := range []struct {
		field string
		value float64
	}{
		{"automatic_remesh_parameters.min_size_current_percentage", p.MinSizeCurrentPercentage},
		{"automatic_remesh_parameters.max_size_current_percentage", p.MaxSizeCurrentPercentage},
	} {
		if pct.value <= 0 || pct.value >= 100 {
			errs = append(errs, newValidationError(pct.field, pct.value, "must lie strictly between 0 and 100"))
		}
	}
	if p.MinSizeCurrentPercentage > p.MaxSizeCurrentPercentage {
		errs = append(errs, newValidationError("automatic_remesh_parameters.min_size_current_percentage",
			p.MinSizeCurrentPercentage, "exceeds max_size_current_percentage"))
	}
	return errs
}

func (s *Settings) resolveStrategy(dim int) (StrategyConfig, ValidationErrors) {
	var errs ValidationErrors

	var aniso *AnisotropyConfig
	if s.AnisotropyRemeshing {
		var aerrs ValidationErrors
		aniso, aerrs = s.resolveAnisotropy()
		errs = append(errs, aerrs...)
	}

	switch s.Strategy {
	case StrategyLevelSet:
		p := s.LevelSetStrategyParameters
		if p.ScalarVariable == "" {
			errs = append(errs, newValidationError("level_set_strategy_parameters.scalar_variable", nil, "is required"))
		}
		if p.GradientVariable == "" {
			errs = append(errs, newValidationError("level_set_strategy_parameters.gradient_variable", nil, "is required"))
		}
		interp, err := parseInterpolation("sizing_parameters.interpolation", s.SizingParameters.Interpolation)
		if err != nil {
			errs = append(errs, err)
		}
		if s.SizingParameters.BoundaryLayerMaxDistance <= 0 {
			errs = append(errs, newValidationError("sizing_parameters.boundary_layer_max_distance",
				s.SizingParameters.BoundaryLayerMaxDistance, "must be positive"))
		}
		ref := s.SizingParameters.ReferenceVariableName
		if ref == "" {
			ref = p.ScalarVariable
		}
		return LevelSetConfig{
			ScalarVariable:   p.ScalarVariable,
			GradientVariable: p.GradientVariable,
			Sizing: SizingConfig{
				ReferenceVariable:        ref,
				BoundaryLayerMaxDistance: s.SizingParameters.BoundaryLayerMaxDistance,
				Interpolation:            interp,
			},
			EnforceCurrent: s.EnforceCurrent,
			Anisotropy:     aniso,
		}, errs

	case StrategyHessian:
		p := s.HessianStrategyParameters
		if len(p.MetricVariable) == 0 {
			errs = append(errs, newValidationError("hessian_strategy_parameters.metric_variable", nil, "list is empty"))
		}
		for i, name := range p.MetricVariable {
			if name == "" {
				errs = append(errs, newValidationError(
					fmt.Sprintf("hessian_strategy_parameters.metric_variable[%d]", i), nil, "is empty"))
			}
		}
		if p.InterpolationError <= 0 && !p.EstimateInterpolationError {
			errs = append(errs, newValidationError("hessian_strategy_parameters.interpolation_error",
				p.InterpolationError, "must be positive"))
		}
		if p.MeshDependentConstant < 0 {
			errs = append(errs, newValidationError("hessian_strategy_parameters.mesh_dependent_constant",
				p.MeshDependentConstant, "must not be negative"))
		}
		if s.EnforceAnisotropyRelative && aniso == nil {
			errs = append(errs, newValidationError("enforce_anisotropy_relative_variable", true,
				"requires anisotropy_remeshing"))
		}
		return HessianConfig{
			Variables:                  append([]string(nil), p.MetricVariable...),
			NonHistorical:              PadFlags(p.NonHistoricalMetricVariable, len(p.MetricVariable)),
			EstimateInterpolationError: p.EstimateInterpolationError,
			InterpolationError:         p.InterpolationError,
			MeshDependentConstant:      resolveMeshConstant(p.MeshDependentConstant, dim),
			EnforceCurrent:             s.EnforceCurrent,
			Anisotropy:                 aniso,
			RelativeToVariable:         s.EnforceAnisotropyRelative,
		}, errs

	case StrategySPR:
		p := s.ErrorStrategyParameters
		if p.ErrorMetricParameters.ErrorThreshold <= 0 {
			errs = append(errs, newValidationError("error_strategy_parameters.error_metric_parameters.error_threshold",
				p.ErrorMetricParameters.ErrorThreshold, "must be positive"))
		}
		if p.ErrorMetricParameters.InterpolationError <= 0 {
			errs = append(errs, newValidationError("error_strategy_parameters.error_metric_parameters.interpolation_error",
				p.ErrorMetricParameters.InterpolationError, "must be positive"))
		}
		if p.MaxIterations < 0 {
			errs = append(errs, newValidationError("error_strategy_parameters.max_iterations", p.MaxIterations,
				"must not be negative"))
		}
		if p.SetTargetNumberOfElements && p.TargetNumberOfElements <= 0 {
			errs = append(errs, newValidationError("error_strategy_parameters.target_number_of_elements",
				p.TargetNumberOfElements, "must be positive"))
		}
		return SPRConfig{
			ErrorThreshold:            p.ErrorMetricParameters.ErrorThreshold,
			InterpolationError:        p.ErrorMetricParameters.InterpolationError,
			SetTargetNumberOfElements: p.SetTargetNumberOfElements,
			TargetNumberOfElements:    p.TargetNumberOfElements,
			PerformNodalHAveraging:    p.PerformNodalHAveraging,
			MaxIterations:             p.MaxIterations,
		}, errs

	default:
		errs = append(errs, newValidationError("strategy", s.Strategy,
			fmt.Sprintf("must be one of %s", strings.Join(ValidStrategies(), ", "))))
		return nil, errs
	}
}

func (s *Settings) resolveAnisotropy() (*AnisotropyConfig, ValidationErrors) {
	var errs ValidationErrors
	p := s.AnisotropyParameters
	interp, err := parseInterpolation("anisotropy_parameters.interpolation", p.Interpolation)
	if err != nil {
		errs = append(errs, err)
	}
	if p.HminOverHmaxAnisotropicRatio <= 0 || p.HminOverHmaxAnisotropicRatio > 1 {
		errs = append(errs, newValidationError("anisotropy_parameters.hmin_over_hmax_anisotropic_ratio",
			p.HminOverHmaxAnisotropicRatio, "must lie in (0, 1]"))
	}
	if p.BoundaryLayerMaxDistance <= 0 {
		errs = append(errs, newValidationError("anisotropy_parameters.boundary_layer_max_distance",
			p.BoundaryLayerMaxDistance, "must be positive"))
	}
	return &AnisotropyConfig{
		ReferenceVariable:         p.ReferenceVariableName,
		HminOverHmax:              p.HminOverHmaxAnisotropicRatio,
		BoundaryLayerMaxDistance:  p.BoundaryLayerMaxDistance,
		BoundaryLayerMinSizeRatio: p.BoundaryLayerMinSizeRatio,
		Interpolation:             interp,
	}, errs
}

// PadFlags returns flags extended with false up to length n. Longer lists
// are truncated to n.
func PadFlags(flags []bool, n int) []bool {
	out := make([]bool, n)
	copy(out, flags)
	return out
}

// resolveMeshConstant replaces an explicit zero with 0.5*(d/(d+1))^2.
func resolveMeshConstant(c float64, dim int) float64 {
	if c == 0 {
		d := float64(dim)
		return 0.5 * math.Pow(d/(d+1), 2)
	}
	return c
}

// ValidStrategies returns the accepted strategy names.
func ValidStrategies() []string {
	return []string{StrategyLevelSet, StrategyHessian, StrategySPR}
}

func parseRemeshType(s string) (RemeshType, *rerrors.ValidationError) {
	switch s {
	case "Ratio":
		return RemeshRatio, nil
	case "Percentage":
		return RemeshPercentage, nil
	}
	return 0, newValidationError("automatic_remesh_parameters.automatic_remesh_type", s, "must be Ratio or Percentage")
}

func parseReferType(s string) (ReferType, *rerrors.ValidationError) {
	switch s {
	case "Mean":
		return ReferMean, nil
	case "Median":
		return ReferMedian, nil
	}
	return 0, newValidationError("automatic_remesh_parameters.refer_type", s, "must be Mean or Median")
}

func parseInterpolation(field, s string) (Interpolation, *rerrors.ValidationError) {
	switch strings.ToLower(s) {
	case "constant":
		return InterpolationConstant, nil
	case "linear":
		return InterpolationLinear, nil
	case "exponential":
		return InterpolationExponential, nil
	}
	return 0, newValidationError(field, s, "must be constant, linear or exponential")
}

func parseFramework(s string) (Framework, *rerrors.ValidationError) {
	switch s {
	case "Eulerian", "":
		return Eulerian, nil
	case "Lagrangian":
		return Lagrangian, nil
	}
	return 0, newValidationError("framework", s, "must be Eulerian or Lagrangian")
}

func parseDebugMode(s string) (DebugMode, *rerrors.ValidationError) {
	switch s {
	case "":
		return DebugNone, nil
	case "GiD":
		return DebugGiD, nil
	case "VTK":
		return DebugVTK, nil
	}
	return 0, newValidationError("debug_mode", s, `must be "", GiD or VTK`)
}
