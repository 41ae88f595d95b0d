package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/logging"
	"github.com/notargets/remesh/mesh"
)

// newRootCmd builds the command tree around its own viper instance so that
// every invocation starts from clean settings.
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "remesh",
		Short: "Adaptive remeshing driver",
		Long: `remesh drives the adaptive remeshing controller over a mesh read from
file or generated as a structured unit square. Settings are read from a
JSON, YAML or TOML file on top of the defaults, and REMESH_* environment
variables override individual keys.`,
		SilenceUsage: true,
	}

	// Global flags
	root.PersistentFlags().StringP("config", "c", "", "settings file (JSON, YAML or TOML)")
	root.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR), defaults to the echo_level setting")
	root.PersistentFlags().String("mesh", "", "mesh file; a structured unit square is generated when empty")
	root.PersistentFlags().Int("grid", 8, "cells per side of the generated unit square")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("mesh", root.PersistentFlags().Lookup("mesh"))
	_ = v.BindPFlag("grid", root.PersistentFlags().Lookup("grid"))

	root.AddCommand(newBoundsCmd(v), newRunCmd(v))
	return root
}

// loadMesh reads the mesh file or generates the unit square.
func loadMesh(v *viper.Viper) (*mesh.Mesh, error) {
	if path := v.GetString("mesh"); path != "" {
		return mesh.Load(path)
	}
	return mesh.NewStructuredSquare("MainModelPart", v.GetInt("grid"), 1)
}

// loadSettings layers defaults for dim, the settings file, the environment
// and bound flags, in increasing priority.
func loadSettings(v *viper.Viper, dim int) (*config.Settings, error) {
	config.SetDefaults(v, dim)

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("REMESH")
	// REMESH_SIZING_PARAMETERS_INTERPOLATION for sizing_parameters.interpolation
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return config.Unmarshal(v)
}

// newLogger honours --log-level and falls back to the echo level.
func newLogger(cmd *cobra.Command, v *viper.Viper, s *config.Settings) *logging.Logger {
	if level := v.GetString("log_level"); level != "" {
		return logging.NewLogger(cmd.ErrOrStderr(), logging.ParseLevel(level))
	}
	return logging.FromEchoLevel(cmd.ErrOrStderr(), s.EchoLevel)
}

// setLevelSet stores the signed distance to a circle (a sphere in 3D) of
// the given radius centred in the mesh as DISTANCE, and a smooth step
// across it as TEMPERATURE.
func setLevelSet(m *mesh.Mesh, radius float64) error {
	b := m.Bounds()
	cx, cy, cz := 0.5*(b.Min.X+b.Max.X), 0.5*(b.Min.Y+b.Max.Y), 0.5*(b.Min.Z+b.Max.Z)

	d := make([]float64, m.NumNodes())
	temp := make([]float64, m.NumNodes())
	for i, p := range m.Nodes {
		d[i] = math.Sqrt((p.X-cx)*(p.X-cx)+(p.Y-cy)*(p.Y-cy)+(p.Z-cz)*(p.Z-cz)) - radius
		temp[i] = 1 + math.Tanh(d[i]/(0.2*radius))
	}
	if err := m.SetValue("DISTANCE", false, d); err != nil {
		return err
	}
	return m.SetValue("TEMPERATURE", false, temp)
}
