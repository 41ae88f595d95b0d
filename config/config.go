// Package config holds the remeshing controller settings. Settings mirror
// the parameter tree of the remeshing process and are read with viper, so
// JSON, YAML and TOML files are all accepted.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Settings is the complete, unvalidated parameter tree of the controller.
// Call Resolve to validate it and obtain the typed view.
type Settings struct {
	ModelPartName              string                    `mapstructure:"model_part_name"`              // Name of the mesh being remeshed
	Filename                   string                    `mapstructure:"filename"`                     // Base name for remesher output
	Strategy                   string                    `mapstructure:"strategy"`                     // LevelSet, Hessian or superconvergent_patch_recovery
	LevelSetStrategyParameters LevelSetParameters        `mapstructure:"level_set_strategy_parameters"` // LevelSet inputs
	ErrorStrategyParameters    ErrorStrategyParameters   `mapstructure:"error_strategy_parameters"`    // error-driven loop inputs
	HessianStrategyParameters  HessianParameters         `mapstructure:"hessian_strategy_parameters"`  // Hessian inputs
	EnforceCurrent             bool                      `mapstructure:"enforce_current"`              // never grow beyond the current NODAL_H
	InitialStep                int                       `mapstructure:"initial_step"`                 // first solution step allowed to remesh
	StepFrequency              int                       `mapstructure:"step_frequency"`               // steps between remeshes; 0 disables
	AutomaticRemesh            bool                      `mapstructure:"automatic_remesh"`             // derive sizes from NODAL_H statistics
	AutomaticRemeshParameters  AutomaticRemeshParameters `mapstructure:"automatic_remesh_parameters"`  // statistics used when automatic
	InitialRemeshing           bool                      `mapstructure:"initial_remeshing"`            // remesh once during initialization only
	FixContourModelParts       []string                  `mapstructure:"fix_contour_model_parts"`      // sub-model-parts whose nodes are blocked
	FixConditionsModelParts    []string                  `mapstructure:"fix_conditions_model_parts"`   // sub-model-parts whose boundary nodes are blocked
	FixElementsModelParts      []string                  `mapstructure:"fix_elements_model_parts"`     // sub-model-parts whose elements are blocked
	ForceMin                   bool                      `mapstructure:"force_min"`                    // remesher must not go below MinimalSize
	MinimalSize                float64                   `mapstructure:"minimal_size"`                 // smallest admissible size
	ForceMax                   bool                      `mapstructure:"force_max"`                    // remesher must not exceed MaximalSize
	MaximalSize                float64                   `mapstructure:"maximal_size"`                 // largest admissible size
	BlockingThresholdSize      bool                      `mapstructure:"blocking_threshold_size"`      // block elements outside ThresholdSizes
	ThresholdSizes             ThresholdSizes            `mapstructure:"threshold_sizes"`              // bounds used for blocking
	SizingParameters           SizingParameters          `mapstructure:"sizing_parameters"`            // isotropic size law
	AnisotropyRemeshing        bool                      `mapstructure:"anisotropy_remeshing"`         // build anisotropic tensors
	EnforceAnisotropyRelative  bool                      `mapstructure:"enforce_anisotropy_relative_variable"`
	AnisotropyParameters       AnisotropyParameters      `mapstructure:"anisotropy_parameters"` // anisotropic ratio law
	Framework                  string                    `mapstructure:"framework"`             // Eulerian or Lagrangian
	DebugMode                  string                    `mapstructure:"debug_mode"`            // "", GiD or VTK
	EchoLevel                  int                       `mapstructure:"echo_level"`            // log verbosity
}

// LevelSetParameters names the level-set fields.
type LevelSetParameters struct {
	ScalarVariable   string `mapstructure:"scalar_variable"`
	GradientVariable string `mapstructure:"gradient_variable"`
}

// ErrorStrategyParameters controls the error-driven refinement loop.
type ErrorStrategyParameters struct {
	ErrorMetricParameters     ErrorMetricParameters `mapstructure:"error_metric_parameters"`
	SetTargetNumberOfElements bool                  `mapstructure:"set_target_number_of_elements"`
	TargetNumberOfElements    int                   `mapstructure:"target_number_of_elements"`
	PerformNodalHAveraging    bool                  `mapstructure:"perform_nodal_h_averaging"`
	MaxIterations             int                   `mapstructure:"max_iterations"`
}

// ErrorMetricParameters holds the error tolerances.
type ErrorMetricParameters struct {
	ErrorThreshold     float64 `mapstructure:"error_threshold"`     // stop refining at or below this estimate
	InterpolationError float64 `mapstructure:"interpolation_error"` // relative target error per node
}

// HessianParameters controls the Hessian strategy.
type HessianParameters struct {
	MetricVariable              []string `mapstructure:"metric_variable"`
	NonHistoricalMetricVariable []bool   `mapstructure:"non_historical_metric_variable"`
	EstimateInterpolationError  bool     `mapstructure:"estimate_interpolation_error"`
	InterpolationError          float64  `mapstructure:"interpolation_error"`
	MeshDependentConstant       float64  `mapstructure:"mesh_dependent_constant"`
}

// AutomaticRemeshParameters controls how sizes are derived from NODAL_H.
type AutomaticRemeshParameters struct {
	AutomaticRemeshType      string  `mapstructure:"automatic_remesh_type"` // Ratio or Percentage
	MinSizeRatio             float64 `mapstructure:"min_size_ratio"`
	MaxSizeRatio             float64 `mapstructure:"max_size_ratio"`
	ReferType                string  `mapstructure:"refer_type"` // Mean or Median
	MinSizeCurrentPercentage float64 `mapstructure:"min_size_current_percentage"`
	MaxSizeCurrentPercentage float64 `mapstructure:"max_size_current_percentage"`
}

// ThresholdSizes bound the elements left untouched when blocking is on.
type ThresholdSizes struct {
	MinimalSize float64 `mapstructure:"minimal_size"`
	MaximalSize float64 `mapstructure:"maximal_size"`
}

// SizingParameters is the isotropic size law of the level-set strategy.
type SizingParameters struct {
	ReferenceVariableName    string  `mapstructure:"reference_variable_name"`
	BoundaryLayerMaxDistance float64 `mapstructure:"boundary_layer_max_distance"`
	Interpolation            string  `mapstructure:"interpolation"` // constant, linear or exponential
}

// AnisotropyParameters is the anisotropic ratio law.
type AnisotropyParameters struct {
	ReferenceVariableName        string  `mapstructure:"reference_variable_name"`
	HminOverHmaxAnisotropicRatio float64 `mapstructure:"hmin_over_hmax_anisotropic_ratio"`
	BoundaryLayerMaxDistance     float64 `mapstructure:"boundary_layer_max_distance"`
	BoundaryLayerMinSizeRatio    float64 `mapstructure:"boundary_layer_min_size_ratio"`
	Interpolation                string  `mapstructure:"interpolation"`
}

// MeshDependentConstant returns the default Hessian constant for a spatial
// dimension: 2/9 in 2D and 9/32 in 3D.
func MeshDependentConstant(dim int) float64 {
	if dim == 2 {
		return 2.0 / 9.0
	}
	return 9.0 / 32.0
}

// Default returns the default settings for a mesh of the given dimension.
func Default(dim int) *Settings {
	return &Settings{
		ModelPartName: "MainModelPart",
		Filename:      "out",
		Strategy:      "LevelSet",
		LevelSetStrategyParameters: LevelSetParameters{
			ScalarVariable:   "DISTANCE",
			GradientVariable: "DISTANCE_GRADIENT",
		},
		ErrorStrategyParameters: ErrorStrategyParameters{
			ErrorMetricParameters: ErrorMetricParameters{
				ErrorThreshold:     0.05,
				InterpolationError: 0.04,
			},
			SetTargetNumberOfElements: false,
			TargetNumberOfElements:    1000,
			PerformNodalHAveraging:    false,
			MaxIterations:             3,
		},
		HessianStrategyParameters: HessianParameters{
			MetricVariable:              []string{"DISTANCE"},
			NonHistoricalMetricVariable: []bool{false},
			EstimateInterpolationError:  false,
			InterpolationError:          0.04,
			MeshDependentConstant:       MeshDependentConstant(dim),
		},
		EnforceCurrent:  true,
		InitialStep:     1,
		StepFrequency:   0,
		AutomaticRemesh: true,
		AutomaticRemeshParameters: AutomaticRemeshParameters{
			AutomaticRemeshType:      "Ratio",
			MinSizeRatio:             1.0,
			MaxSizeRatio:             3.0,
			ReferType:                "Mean",
			MinSizeCurrentPercentage: 50.0,
			MaxSizeCurrentPercentage: 98.0,
		},
		InitialRemeshing:        false,
		FixContourModelParts:    []string{},
		FixConditionsModelParts: []string{},
		FixElementsModelParts:   []string{},
		MinimalSize:             0.1,
		MaximalSize:             10.0,
		BlockingThresholdSize:   false,
		ThresholdSizes: ThresholdSizes{
			MinimalSize: 0.1,
			MaximalSize: 10.0,
		},
		SizingParameters: SizingParameters{
			ReferenceVariableName:    "DISTANCE",
			BoundaryLayerMaxDistance: 1.0,
			Interpolation:            "constant",
		},
		AnisotropyRemeshing:       true,
		EnforceAnisotropyRelative: false,
		AnisotropyParameters: AnisotropyParameters{
			ReferenceVariableName:        "DISTANCE",
			HminOverHmaxAnisotropicRatio: 0.01,
			BoundaryLayerMaxDistance:     1.0,
			BoundaryLayerMinSizeRatio:    2.0,
			Interpolation:                "Linear",
		},
		Framework: "Eulerian",
		DebugMode: "",
		EchoLevel: 3,
	}
}

// SetDefaults registers the defaults for dimension dim with v.
func SetDefaults(v *viper.Viper, dim int) {
	d := Default(dim)

	v.SetDefault("model_part_name", d.ModelPartName)
	v.SetDefault("filename", d.Filename)
	v.SetDefault("strategy", d.Strategy)

	// Level set
	v.SetDefault("level_set_strategy_parameters.scalar_variable", d.LevelSetStrategyParameters.ScalarVariable)
	v.SetDefault("level_set_strategy_parameters.gradient_variable", d.LevelSetStrategyParameters.GradientVariable)

	// Error loop
	esp := d.ErrorStrategyParameters
	v.SetDefault("error_strategy_parameters.error_metric_parameters.error_threshold", esp.ErrorMetricParameters.ErrorThreshold)
	v.SetDefault("error_strategy_parameters.error_metric_parameters.interpolation_error", esp.ErrorMetricParameters.InterpolationError)
	v.SetDefault("error_strategy_parameters.set_target_number_of_elements", esp.SetTargetNumberOfElements)
	v.SetDefault("error_strategy_parameters.target_number_of_elements", esp.TargetNumberOfElements)
	v.SetDefault("error_strategy_parameters.perform_nodal_h_averaging", esp.PerformNodalHAveraging)
	v.SetDefault("error_strategy_parameters.max_iterations", esp.MaxIterations)

	// Hessian
	hsp := d.HessianStrategyParameters
	v.SetDefault("hessian_strategy_parameters.metric_variable", hsp.MetricVariable)
	v.SetDefault("hessian_strategy_parameters.non_historical_metric_variable", hsp.NonHistoricalMetricVariable)
	v.SetDefault("hessian_strategy_parameters.estimate_interpolation_error", hsp.EstimateInterpolationError)
	v.SetDefault("hessian_strategy_parameters.interpolation_error", hsp.InterpolationError)
	v.SetDefault("hessian_strategy_parameters.mesh_dependent_constant", hsp.MeshDependentConstant)

	// Scheduling
	v.SetDefault("enforce_current", d.EnforceCurrent)
	v.SetDefault("initial_step", d.InitialStep)
	v.SetDefault("step_frequency", d.StepFrequency)
	v.SetDefault("initial_remeshing", d.InitialRemeshing)

	// Automatic sizing
	arp := d.AutomaticRemeshParameters
	v.SetDefault("automatic_remesh", d.AutomaticRemesh)
	v.SetDefault("automatic_remesh_parameters.automatic_remesh_type", arp.AutomaticRemeshType)
	v.SetDefault("automatic_remesh_parameters.min_size_ratio", arp.MinSizeRatio)
	v.SetDefault("automatic_remesh_parameters.max_size_ratio", arp.MaxSizeRatio)
	v.SetDefault("automatic_remesh_parameters.refer_type", arp.ReferType)
	v.SetDefault("automatic_remesh_parameters.min_size_current_percentage", arp.MinSizeCurrentPercentage)
	v.SetDefault("automatic_remesh_parameters.max_size_current_percentage", arp.MaxSizeCurrentPercentage)

	// Blocking
	v.SetDefault("fix_contour_model_parts", d.FixContourModelParts)
	v.SetDefault("fix_conditions_model_parts", d.FixConditionsModelParts)
	v.SetDefault("fix_elements_model_parts", d.FixElementsModelParts)
	v.SetDefault("blocking_threshold_size", d.BlockingThresholdSize)
	v.SetDefault("threshold_sizes.minimal_size", d.ThresholdSizes.MinimalSize)
	v.SetDefault("threshold_sizes.maximal_size", d.ThresholdSizes.MaximalSize)

	// Sizes
	v.SetDefault("force_min", d.ForceMin)
	v.SetDefault("minimal_size", d.MinimalSize)
	v.SetDefault("force_max", d.ForceMax)
	v.SetDefault("maximal_size", d.MaximalSize)
	v.SetDefault("sizing_parameters.reference_variable_name", d.SizingParameters.ReferenceVariableName)
	v.SetDefault("sizing_parameters.boundary_layer_max_distance", d.SizingParameters.BoundaryLayerMaxDistance)
	v.SetDefault("sizing_parameters.interpolation", d.SizingParameters.Interpolation)

	// Anisotropy
	ap := d.AnisotropyParameters
	v.SetDefault("anisotropy_remeshing", d.AnisotropyRemeshing)
	v.SetDefault("enforce_anisotropy_relative_variable", d.EnforceAnisotropyRelative)
	v.SetDefault("anisotropy_parameters.reference_variable_name", ap.ReferenceVariableName)
	v.SetDefault("anisotropy_parameters.hmin_over_hmax_anisotropic_ratio", ap.HminOverHmaxAnisotropicRatio)
	v.SetDefault("anisotropy_parameters.boundary_layer_max_distance", ap.BoundaryLayerMaxDistance)
	v.SetDefault("anisotropy_parameters.boundary_layer_min_size_ratio", ap.BoundaryLayerMinSizeRatio)
	v.SetDefault("anisotropy_parameters.interpolation", ap.Interpolation)

	// Output
	v.SetDefault("framework", d.Framework)
	v.SetDefault("debug_mode", d.DebugMode)
	v.SetDefault("echo_level", d.EchoLevel)
}

// Unmarshal decodes the settings held by v. Defaults are not registered;
// call SetDefaults first.
func Unmarshal(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

// Load reads a settings file on top of the defaults for dimension dim.
// An empty path returns the defaults.
func Load(path string, dim int) (*Settings, error) {
	v := viper.New()
	SetDefaults(v, dim)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}
	return Unmarshal(v)
}
