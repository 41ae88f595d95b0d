package schedule

import (
	"fmt"

	"github.com/notargets/remesh/config"
)

// Outcome is the result of one convergence cycle.
type Outcome struct {
	Cycle     int
	Estimate  float64
	Active    bool // the loop keeps refining on later steps
	Converged bool // the estimate reached the threshold
	Exceeded  bool // max iterations were used up above the threshold
}

func (o Outcome) String() string {
	switch {
	case o.Converged:
		return fmt.Sprintf("converged after %d cycles (error %g)", o.Cycle, o.Estimate)
	case o.Exceeded:
		return fmt.Sprintf("stopped after %d cycles without converging (error %g)", o.Cycle, o.Estimate)
	default:
		return fmt.Sprintf("cycle %d (error %g)", o.Cycle, o.Estimate)
	}
}

// ConvergenceLoop re-triggers refinement while the estimated error stays
// above a threshold, for at most MaxIterations cycles.
type ConvergenceLoop struct {
	Threshold     float64
	MaxIterations int

	active   bool
	cycle    int
	estimate float64
}

// NewConvergenceLoop creates an active loop.
func NewConvergenceLoop(threshold float64, maxIterations int) *ConvergenceLoop {
	return &ConvergenceLoop{Threshold: threshold, MaxIterations: maxIterations, active: true}
}

// LoopFromStrategy returns the convergence loop of an error-driven
// strategy and nil for the others.
func LoopFromStrategy(cfg config.StrategyConfig) *ConvergenceLoop {
	c, ok := cfg.(config.SPRConfig)
	if !ok {
		return nil
	}
	return NewConvergenceLoop(c.ErrorThreshold, c.MaxIterations)
}

// Observe records the latest error estimate.
func (l *ConvergenceLoop) Observe(estimate float64) { l.estimate = estimate }

// Estimate returns the latest observed estimate.
func (l *ConvergenceLoop) Estimate() float64 { return l.estimate }

// Cycle returns the number of completed cycles.
func (l *ConvergenceLoop) Cycle() int { return l.cycle }

// Active reports whether the loop is still running.
func (l *ConvergenceLoop) Active() bool { return l.active }

// ShouldRefine reports whether the current estimate calls for a refinement.
func (l *ConvergenceLoop) ShouldRefine() bool {
	return l.active && l.estimate > l.Threshold
}

// Advance closes the current cycle. The loop deactivates once the estimate
// is within the threshold or the cycle count passes MaxIterations.
func (l *ConvergenceLoop) Advance() Outcome {
	if !l.active {
		return l.outcome()
	}
	l.cycle++
	converged := l.estimate <= l.Threshold
	if converged || l.cycle > l.MaxIterations {
		l.active = false
	}
	out := l.outcome()
	out.Converged = converged
	out.Exceeded = !converged && !l.active
	return out
}

// Reset reactivates the loop with a zero cycle count.
func (l *ConvergenceLoop) Reset() {
	l.active = true
	l.cycle = 0
}

func (l *ConvergenceLoop) outcome() Outcome {
	return Outcome{Cycle: l.cycle, Estimate: l.estimate, Active: l.active}
}
