package remesh

import (
	"context"

	"github.com/notargets/remesh/debugio"
	rerrors "github.com/notargets/remesh/errors"
	"github.com/notargets/remesh/logging"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
	"github.com/notargets/remesh/sizing"
)

// Refinement stages reported in StageErrors.
const (
	StageStart     = "start"
	StageNodalH    = "nodal size"
	StageGradient  = "gradient"
	StageMetric    = "metric"
	StageDebug     = "debug output"
	StageRemesh    = "remesh"
	StageRecompute = "recompute"
)

// Remesher rebuilds the mesh topology from a size field. It is the native
// kernel of a refinement: the mesh is changed in place, nodal fields are
// interpolated onto the new nodes and sub-model-parts are kept consistent.
type Remesher interface {
	Remesh(ctx context.Context, m *mesh.Mesh, f *metric.SizeField) error
}

// RemesherFunc adapts a function to the Remesher interface.
type RemesherFunc func(ctx context.Context, m *mesh.Mesh, f *metric.SizeField) error

func (fn RemesherFunc) Remesh(ctx context.Context, m *mesh.Mesh, f *metric.SizeField) error {
	return fn(ctx, m, f)
}

// Executor runs one refinement of a mesh.
type Executor struct {
	Mesh     *mesh.Mesh
	Strategy metric.Strategy
	Remesher Remesher
	Bounds   sizing.Bounds
	Debug    debugio.Writer // nil disables snapshots
	DebugDir string

	log *logging.Logger
}

// NewExecutor creates an Executor. A nil logger discards output.
func NewExecutor(m *mesh.Mesh, s metric.Strategy, r Remesher, b sizing.Bounds, log *logging.Logger) *Executor {
	if log == nil {
		log = logging.Nop()
	}
	return &Executor{
		Mesh:     m,
		Strategy: s,
		Remesher: r,
		Bounds:   b,
		DebugDir: ".",
		log:      log,
	}
}

// ExecuteRefinement recomputes NODAL_H and, for the level-set strategy, the
// gradient of the level set, builds the size field and hands it to the
// remesher. After the remesh the derived fields are recomputed on the new
// mesh and the mesh is marked modified. label names the debug snapshots.
//
// Failures before the remesher runs leave the mesh untouched and are
// returned as StageErrors. A remesher failure is wrapped with ErrNative.
// A failure on the new mesh is reported at StageRecompute.
func (e *Executor) ExecuteRefinement(ctx context.Context, label int) (*metric.SizeField, error) {
	m := e.Mesh
	if err := ctx.Err(); err != nil {
		return nil, rerrors.NewStageError(StageStart, m.Step, err)
	}

	m.ComputeNodalH()
	if err := e.computeGradient(); err != nil {
		return nil, rerrors.NewStageError(StageGradient, m.Step, err)
	}

	e.log.Info("Calculating the metrics", "strategy", e.Strategy.Name(), "bounds", e.Bounds.String())
	f, err := metric.Build(e.Strategy, m, e.Bounds)
	if err != nil {
		return nil, rerrors.NewStageError(StageMetric, m.Step, err)
	}
	if lo, hi, err := f.Range(); err == nil {
		e.log.Debug("Size field", "min_size", lo, "max_size", hi)
	}

	if err := e.snapshot(debugio.Before, label, f); err != nil {
		return nil, rerrors.NewStageError(StageDebug, m.Step, err)
	}

	nodes, elements := m.NumNodes(), m.NumElements()
	e.log.Info("Remeshing", "nodes", nodes, "elements", elements)
	if err := e.Remesher.Remesh(ctx, m, f); err != nil {
		return nil, rerrors.NewStageError(StageRemesh, m.Step, rerrors.Native(err))
	}

	// The topology has changed from here on, so the mesh is marked even
	// when recomputing derived fields fails
	defer m.SetModified(true)

	if err := e.snapshot(debugio.After, label, nil); err != nil {
		e.log.Warn("Failed to write debug output", "prefix", debugio.After, "error", err)
	}

	if err := e.computeGradient(); err != nil {
		return f, rerrors.NewStageError(StageRecompute, m.Step, err)
	}
	m.ComputeNodalH()

	e.log.Info("Remesh finished",
		"nodes", m.NumNodes(), "elements", m.NumElements(),
		"added_nodes", m.NumNodes()-nodes, "added_elements", m.NumElements()-elements)
	return f, nil
}

// computeGradient stores the recovered gradient of the level set for the
// level-set strategy and does nothing for the others.
func (e *Executor) computeGradient() error {
	ls, ok := e.Strategy.(*metric.LevelSet)
	if !ok {
		return nil
	}
	scalar := ls.ScalarVariable()
	_, historical := e.Mesh.Historical[scalar]
	return e.Mesh.ComputeNodalGradient(scalar, !historical, ls.GradientVariable())
}

func (e *Executor) snapshot(prefix string, label int, f *metric.SizeField) error {
	if e.Debug == nil {
		return nil
	}
	files, err := e.Debug.Write(e.DebugDir, prefix, label, e.Mesh, f)
	if err != nil {
		return err
	}
	e.log.Debug("Wrote debug output", "files", files)
	return nil
}

// reachedRemesher reports whether err was raised once the remesher had been
// called, when the topology may already have changed.
func reachedRemesher(err error) bool {
	var serr *rerrors.StageError
	if !rerrors.As(err, &serr) {
		return false
	}
	return serr.Stage == StageRemesh || serr.Stage == StageRecompute
}
