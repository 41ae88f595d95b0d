package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/sizing"
)

func newBoundsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "bounds",
		Short: "Show NODAL_H statistics and the size bounds",
		Long: `Computes the characteristic nodal size (the shortest incident edge) of
every node and prints its statistics together with the size bounds the
controller would use: derived from the statistics when automatic_remesh is
on, taken from minimal_size and maximal_size otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBounds(cmd, v)
		},
	}
}

func runBounds(cmd *cobra.Command, v *viper.Viper) error {
	m, err := loadMesh(v)
	if err != nil {
		return err
	}
	s, err := loadSettings(v, m.Dim)
	if err != nil {
		return err
	}
	r, err := config.Resolve(s, m.Dim)
	if err != nil {
		return err
	}

	h := m.ComputeNodalH()
	st, err := sizing.Describe(h)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "NODAL_H STATISTICS")
	fmt.Fprintln(out, strings.Repeat("─", 40))
	fmt.Fprintf(out, "Nodes:   %d\n", st.N)
	fmt.Fprintf(out, "Mean:    %.6g\n", st.Mean)
	fmt.Fprintf(out, "StdDev:  %.6g\n", st.StdDev)
	fmt.Fprintf(out, "Median:  %.6g\n", st.Median)
	fmt.Fprintf(out, "Range:   [%.6g, %.6g]\n", st.Min, st.Max)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "SIZE BOUNDS")
	fmt.Fprintln(out, strings.Repeat("─", 40))
	if !s.AutomaticRemesh {
		b := sizing.Bounds{Min: s.MinimalSize, Max: s.MaximalSize}
		fmt.Fprintf(out, "Manual:  %s\n", b)
		return nil
	}
	b, err := sizing.ComputeBounds(h, sizing.ConfigFromSettings(r))
	if err != nil {
		return err
	}
	switch r.RemeshType {
	case config.RemeshRatio:
		fmt.Fprintf(out, "Ratio (%s, %g to %g): %s\n", r.ReferType,
			s.AutomaticRemeshParameters.MinSizeRatio, s.AutomaticRemeshParameters.MaxSizeRatio, b)
	default:
		fmt.Fprintf(out, "Percentage (%g%% to %g%%): %s\n",
			s.AutomaticRemeshParameters.MinSizeCurrentPercentage, s.AutomaticRemeshParameters.MaxSizeCurrentPercentage, b)
	}
	return nil
}
