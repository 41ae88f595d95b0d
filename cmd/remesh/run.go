package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
	"github.com/notargets/remesh/remesh"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the remeshing controller through a number of steps",
		Long: `Sets a circular level set (DISTANCE) and a smooth step across it
(TEMPERATURE) on the mesh, then calls the controller hooks for every
step: initialize once, then initialize-step, finalize-step and after-output
for each step. A summary of the mesh is printed after every remesh.

With --dry-run the size field is built and reported but the mesh is left
untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(cmd, v)
		},
	}

	cmd.Flags().Int("steps", 1, "number of solution steps")
	cmd.Flags().Float64("radius", 0.25, "radius of the level-set circle")
	cmd.Flags().Bool("dry-run", false, "build the size field without remeshing")
	cmd.Flags().String("debug-dir", ".", "directory of debug snapshots")

	// Setting overrides
	cmd.Flags().String("strategy", "", "remeshing strategy (LevelSet, Hessian, superconvergent_patch_recovery)")
	cmd.Flags().Int("step-frequency", 0, "steps between remeshes")
	cmd.Flags().String("debug-mode", "", "debug snapshot format (GiD or VTK)")
	_ = v.BindPFlag("strategy", cmd.Flags().Lookup("strategy"))
	_ = v.BindPFlag("step_frequency", cmd.Flags().Lookup("step-frequency"))
	_ = v.BindPFlag("debug_mode", cmd.Flags().Lookup("debug-mode"))
	return cmd
}

func runSteps(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()
	steps, _ := flags.GetInt("steps")
	radius, _ := flags.GetFloat64("radius")
	dryRun, _ := flags.GetBool("dry-run")
	debugDir, _ := flags.GetString("debug-dir")

	m, err := loadMesh(v)
	if err != nil {
		return err
	}
	s, err := loadSettings(v, m.Dim)
	if err != nil {
		return err
	}
	m.Name = s.ModelPartName
	if err := setLevelSet(m, radius); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	opts := []remesh.Option{
		remesh.WithLogger(newLogger(cmd, v, s)),
		remesh.WithDebugDir(debugDir),
		remesh.WithErrorEstimator(metric.NewGradientRecoveryEstimator("TEMPERATURE", false)),
	}
	if dryRun {
		opts = append(opts, remesh.WithRemesher(remesh.RemesherFunc(
			func(_ context.Context, m *mesh.Mesh, f *metric.SizeField) error {
				lo, hi, err := f.Range()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "dry run: size field over %d nodes in [%.4g, %.4g]\n", f.Len(), lo, hi)
				return nil
			})))
	}

	c, err := remesh.New(m, *s, opts...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ev, err := c.ExecuteInitialize(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "size bounds %s\n", ev.Bounds)
	report(cmd, m, 0, ev)

	for step := 1; step <= steps; step++ {
		m.Step = step
		m.Time += 1

		ev, err := c.ExecuteInitializeSolutionStep(ctx)
		if err != nil {
			return err
		}
		report(cmd, m, step, ev)

		if err := c.ExecuteFinalizeSolutionStep(ctx); err != nil {
			return err
		}
		if ev, err = c.ExecuteAfterOutputStep(ctx); err != nil {
			return err
		}
		report(cmd, m, step, ev)
		if ev.Cycle > 0 {
			fmt.Fprintf(out, "step %d: error cycle %d, estimate %.4g, converged %t, exceeded %t\n",
				step, ev.Cycle, ev.ErrorEstimate, ev.Converged, ev.Exceeded)
		}
	}

	st := c.Status()
	fmt.Fprintf(out, "finished %d steps, scheduler %s, %d steps since the last remesh\n", steps, st.State, st.Counter)
	return nil
}

func report(cmd *cobra.Command, m *mesh.Mesh, step int, ev remesh.Event) {
	out := cmd.OutOrStdout()
	switch {
	case ev.Remeshed:
		fmt.Fprintf(out, "step %d: remeshed\n%s", step, m)
	case ev.ConsumedModified:
		fmt.Fprintf(out, "step %d: modified mesh acknowledged\n", step)
	}
}
