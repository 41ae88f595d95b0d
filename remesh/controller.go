// Package remesh drives adaptive remeshing of a simulation mesh. A
// Controller is called from the host's step loop through process hooks; it
// decides when to remesh, builds the size field with the configured
// strategy and runs the remesher through an Executor.
package remesh

import (
	"context"
	"fmt"
	"os"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/debugio"
	rerrors "github.com/notargets/remesh/errors"
	"github.com/notargets/remesh/logging"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
	"github.com/notargets/remesh/refine"
	"github.com/notargets/remesh/schedule"
	"github.com/notargets/remesh/sizing"
)

// Event reports what a hook did.
type Event struct {
	Remeshed         bool
	ConsumedModified bool // an externally set modified flag was cleared
	Cycle            int  // error-driven cycles completed
	Converged        bool
	Exceeded         bool // the error-driven loop ran out of iterations
	ErrorEstimate    float64
	Bounds           sizing.Bounds
}

type options struct {
	remesher  Remesher
	estimator metric.ErrorEstimator
	log       *logging.Logger
	debugDir  string
}

// Option configures a Controller.
type Option func(*options)

// WithRemesher sets the remesher. Triangle meshes default to longest-edge
// bisection; tetrahedral meshes require one.
func WithRemesher(r Remesher) Option {
	return func(o *options) { o.remesher = r }
}

// WithErrorEstimator sets the estimator of the error-driven strategy.
func WithErrorEstimator(e metric.ErrorEstimator) Option {
	return func(o *options) { o.estimator = e }
}

// WithLogger sets the logger. The default logs to stderr at the settings'
// echo level.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithDebugDir sets the directory of debug snapshots.
func WithDebugDir(dir string) Option {
	return func(o *options) { o.debugDir = dir }
}

// anisotropic strategies take their boundary layer thickness from the
// automatic size bounds.
type anisotropic interface {
	SetAnisotropyDistance(d float64)
}

// sizeLimited remeshers enforce minimal and maximal sizes of their own and
// are kept in step with the automatic size bounds.
type sizeLimited interface {
	SetSizes(min, max float64)
}

// Controller is the remeshing process of one mesh. It is not safe for
// concurrent use.
type Controller struct {
	mesh      *mesh.Mesh
	cfg       *config.Resolved
	strategy  metric.Strategy
	scheduler *schedule.Scheduler
	executor  *Executor
	log       *logging.Logger
	estimate  *metric.ErrorEstimate
}

// New validates the settings against m and assembles the controller. Every
// configuration problem is reported here.
func New(m *mesh.Mesh, s config.Settings, opts ...Option) (*Controller, error) {
	if m == nil {
		return nil, rerrors.NewValidationError("mesh", nil, "a mesh is required")
	}
	o := options{debugDir: "."}
	for _, opt := range opts {
		opt(&o)
	}

	r, err := config.Resolve(&s, m.Dim)
	if err != nil {
		return nil, err
	}
	if err := checkModelParts(m, &r.Settings); err != nil {
		return nil, err
	}

	log := o.log
	if log == nil {
		log = logging.FromEchoLevel(os.Stderr, s.EchoLevel)
	}
	log = log.WithModelPart(m.Name).With("strategy", s.Strategy)

	var mopts []metric.Option
	if o.estimator != nil {
		mopts = append(mopts, metric.WithErrorEstimator(o.estimator))
	}
	strategy, err := metric.New(r.Strategy, mopts...)
	if err != nil {
		return nil, err
	}

	remesher := o.remesher
	if remesher == nil {
		if m.Dim != 2 {
			return nil, rerrors.NewDependencyError(s.Strategy, fmt.Sprintf("a remesher for %dD meshes", m.Dim))
		}
		remesher = refine.New(refine.OptionsFromSettings(&r.Settings), log)
	}

	ex := NewExecutor(m, strategy, remesher, sizing.Bounds{Min: s.MinimalSize, Max: s.MaximalSize}, log)
	ex.Debug = debugio.New(r.DebugMode, r.Framework)
	ex.DebugDir = o.debugDir

	return &Controller{
		mesh:      m,
		cfg:       r,
		strategy:  strategy,
		scheduler: schedule.New(schedule.ConfigFromSettings(&r.Settings), schedule.LoopFromStrategy(r.Strategy)),
		executor:  ex,
		log:       log,
	}, nil
}

func checkModelParts(m *mesh.Mesh, s *config.Settings) error {
	var errs []error
	for _, group := range []struct {
		field string
		names []string
	}{
		{"fix_contour_model_parts", s.FixContourModelParts},
		{"fix_conditions_model_parts", s.FixConditionsModelParts},
		{"fix_elements_model_parts", s.FixElementsModelParts},
	} {
		for _, name := range group.names {
			if _, ok := m.SubModelParts[name]; !ok {
				errs = append(errs, rerrors.NewValidationError(group.field, name,
					fmt.Sprintf("sub model part not found in %s", m.Name)))
			}
		}
	}
	return rerrors.Join(errs...)
}

// Mesh returns the controlled mesh.
func (c *Controller) Mesh() *mesh.Mesh { return c.mesh }

// Strategy returns the metric strategy.
func (c *Controller) Strategy() metric.Strategy { return c.strategy }

// Bounds returns the current size bounds.
func (c *Controller) Bounds() sizing.Bounds { return c.executor.Bounds }

// Status returns the scheduler bookkeeping.
func (c *Controller) Status() schedule.Status { return c.scheduler.Status() }

// ErrorEstimate returns the last error estimate, or nil.
func (c *Controller) ErrorEstimate() *metric.ErrorEstimate { return c.estimate }

// ExecuteInitialize computes NODAL_H, derives automatic size bounds, blocks
// the fixed sub-model-parts and performs the initial remesh when
// configured. A mesh already marked modified is not remeshed; its flag is
// cleared instead.
func (c *Controller) ExecuteInitialize(ctx context.Context) (Event, error) {
	m := c.mesh
	s := &c.cfg.Settings
	log := c.log.WithPhase("initialize")

	h := m.ComputeNodalH()
	if s.AutomaticRemesh {
		b, err := sizing.ComputeBounds(h, sizing.ConfigFromSettings(c.cfg))
		if err != nil {
			return Event{}, rerrors.NewStageError("automatic sizing", m.Step, err)
		}
		c.executor.Bounds = b
		log.Info("Automatic size bounds", "type", c.cfg.RemeshType.String(), "bounds", b.String())

		if r, ok := c.executor.Remesher.(sizeLimited); ok {
			r.SetSizes(b.Min, b.Max)
		}

		if a, ok := c.strategy.(anisotropic); ok && s.AnisotropyRemeshing {
			d := b.Min * s.AnisotropyParameters.BoundaryLayerMinSizeRatio
			a.SetAnisotropyDistance(d)
			log.Debug("Anisotropy boundary layer", "distance", d)
		}
	}

	for _, name := range s.FixContourModelParts {
		m.BlockNodes(m.SubModelParts[name])
	}
	for _, name := range s.FixConditionsModelParts {
		m.BlockConditions(m.SubModelParts[name])
	}
	for _, name := range s.FixElementsModelParts {
		m.BlockElements(m.SubModelParts[name])
	}

	ev := Event{Bounds: c.executor.Bounds}
	if !s.InitialRemeshing {
		return ev, nil
	}
	if m.IsModified() {
		m.SetModified(false)
		ev.ConsumedModified = true
		return ev, nil
	}
	c.scheduler.Force()
	return c.refine(ctx, ev)
}

// ExecuteInitializeSolutionStep remeshes when the scheduler triggers for the
// mesh's current step.
func (c *Controller) ExecuteInitializeSolutionStep(ctx context.Context) (Event, error) {
	m := c.mesh
	ev := Event{Bounds: c.executor.Bounds}

	d := c.scheduler.Decide(m.Step, m.IsModified())
	if d.ConsumedModified {
		m.SetModified(false)
		ev.ConsumedModified = true
		c.log.Debug("Mesh modified externally", "step", m.Step)
		return ev, nil
	}
	if !d.Trigger {
		return ev, nil
	}

	s := &c.cfg.Settings
	if s.BlockingThresholdSize {
		n := m.BlockThresholdSizeElements(s.ThresholdSizes.MinimalSize, s.ThresholdSizes.MaximalSize)
		c.log.Debug("Blocked elements outside threshold sizes", "count", n)
	}
	return c.refine(ctx, ev)
}

// ExecuteFinalizeSolutionStep estimates the error of the solution for the
// error-driven strategy.
func (c *Controller) ExecuteFinalizeSolutionStep(ctx context.Context) error {
	spr, ok := c.strategy.(*metric.SPR)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	est, err := spr.Estimate(c.mesh)
	if err != nil {
		return rerrors.NewStageError("error estimation", c.mesh.Step, err)
	}
	c.estimate = est
	c.scheduler.Loop().Observe(est.Relative())
	c.log.Info("Estimated error", "step", c.mesh.Step, "error", est.Relative(),
		"error_norm", est.ErrorNorm, "energy_norm", est.EnergyNorm)
	return nil
}

// ExecuteAfterOutputStep runs one cycle of the error-driven loop: it
// refines while the estimate is above the threshold and stops once the
// estimate is met or the iterations are used up.
func (c *Controller) ExecuteAfterOutputStep(ctx context.Context) (Event, error) {
	ev := Event{Bounds: c.executor.Bounds}
	loop := c.scheduler.Loop()
	if loop == nil || !loop.Active() {
		return ev, nil
	}

	if loop.ShouldRefine() {
		c.scheduler.Force()
		var err error
		if ev, err = c.refine(ctx, ev); err != nil {
			return ev, err
		}
	}

	out := loop.Advance()
	ev.Cycle = out.Cycle
	ev.Converged = out.Converged
	ev.Exceeded = out.Exceeded
	ev.ErrorEstimate = out.Estimate
	switch {
	case out.Exceeded:
		c.log.Warn(rerrors.ErrConvergenceExceeded.Error(), "outcome", out.String(),
			"max_iterations", loop.MaxIterations, "threshold", loop.Threshold)
	case out.Converged:
		c.log.Info("Error estimate converged", "outcome", out.String())
	}
	return ev, nil
}

// refine runs the executor for a triggered scheduler.
func (c *Controller) refine(ctx context.Context, ev Event) (Event, error) {
	c.scheduler.Begin()
	if _, err := c.executor.ExecuteRefinement(ctx, c.mesh.Step); err != nil {
		if !reachedRemesher(err) {
			c.scheduler.Abort()
			return ev, err
		}
		// The step counter restarts even though the remesh failed
		c.scheduler.Complete()
		ev.Remeshed = !rerrors.Is(err, rerrors.ErrNative)
		return ev, err
	}
	c.scheduler.Complete()
	ev.Remeshed = true
	return ev, nil
}
