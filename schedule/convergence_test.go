package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/remesh/config"
)

func TestConvergenceLoopHalvingError(t *testing.T) {
	loop := NewConvergenceLoop(0.05, 3)
	estimate := 0.2
	var refinements int
	var last Outcome

	for step := 1; step <= 10 && loop.Active(); step++ {
		loop.Observe(estimate)
		if loop.ShouldRefine() {
			refinements++
			estimate /= 2
		}
		last = loop.Advance()
	}

	assert.Equal(t, 2, refinements)
	assert.True(t, last.Converged)
	assert.False(t, last.Exceeded)
	assert.False(t, loop.Active())
	assert.Equal(t, 0.05, loop.Estimate())
	assert.Contains(t, last.String(), "converged")
}

func TestConvergenceLoopExceeded(t *testing.T) {
	loop := NewConvergenceLoop(0.01, 2)
	var refinements int
	var outcomes []Outcome
	for loop.Active() {
		loop.Observe(0.5)
		if loop.ShouldRefine() {
			refinements++
		}
		outcomes = append(outcomes, loop.Advance())
	}

	// Cycles 1..MaxIterations+1 refine, then the loop gives up
	assert.Equal(t, 3, refinements)
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Active)
	assert.False(t, outcomes[2].Active)
	assert.True(t, outcomes[2].Exceeded)
	assert.False(t, outcomes[2].Converged)
	assert.Contains(t, outcomes[2].String(), "without converging")

	// A finished loop is inert
	loop.Observe(1)
	assert.False(t, loop.ShouldRefine())
	assert.Equal(t, 3, loop.Advance().Cycle)

	loop.Reset()
	assert.True(t, loop.Active())
	assert.Equal(t, 0, loop.Cycle())
	assert.Equal(t, "cycle 0 (error 1)", loop.outcome().String())
}

func TestConvergenceLoopAlreadyConverged(t *testing.T) {
	loop := NewConvergenceLoop(0.05, 3)
	loop.Observe(0.01)
	assert.False(t, loop.ShouldRefine())
	out := loop.Advance()
	assert.True(t, out.Converged)
	assert.Equal(t, 1, out.Cycle)
}

func TestLoopFromStrategy(t *testing.T) {
	assert.Nil(t, LoopFromStrategy(config.LevelSetConfig{}))
	loop := LoopFromStrategy(config.SPRConfig{ErrorThreshold: 0.05, MaxIterations: 3})
	require.NotNil(t, loop)
	assert.Equal(t, 0.05, loop.Threshold)
	assert.Equal(t, 3, loop.MaxIterations)
	assert.True(t, loop.Active())
}
