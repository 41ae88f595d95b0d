package remesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/remesh/config"
	rerrors "github.com/notargets/remesh/errors"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
	"github.com/notargets/remesh/sizing"
)

func TestExecuteRefinement(t *testing.T) {
	newExecutor := func(t *testing.T, r Remesher) (*Executor, *mesh.Mesh) {
		t.Helper()
		m := circleMesh(t, 2)
		s, err := metric.New(config.HessianConfig{
			Variables:             []string{"DISTANCE"},
			InterpolationError:    0.04,
			MeshDependentConstant: config.MeshDependentConstant(2),
		})
		require.NoError(t, err)
		return NewExecutor(m, s, r, sizing.Bounds{Min: 0.1, Max: 1}, nil), m
	}

	t.Run("hands the clamped field to the remesher", func(t *testing.T) {
		var seen *metric.SizeField
		ex, m := newExecutor(t, RemesherFunc(func(_ context.Context, _ *mesh.Mesh, f *metric.SizeField) error {
			seen = f
			return nil
		}))
		f, err := ex.ExecuteRefinement(context.Background(), 4)
		require.NoError(t, err)
		assert.Same(t, seen, f)
		require.NoError(t, f.Verify(ex.Bounds))
		assert.True(t, m.IsModified())
		// No gradient is needed outside the level-set strategy
		assert.False(t, m.IsVector("DISTANCE_GRADIENT", false))
	})

	t.Run("canceled", func(t *testing.T) {
		rec := &recorder{}
		ex, m := newExecutor(t, rec)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ex.ExecuteRefinement(ctx, 1)
		assert.ErrorIs(t, err, context.Canceled)
		var serr *rerrors.StageError
		require.True(t, rerrors.As(err, &serr))
		assert.Equal(t, StageStart, serr.Stage)
		assert.Equal(t, 0, rec.calls)
		assert.False(t, m.IsModified())
	})

	t.Run("invalid bounds", func(t *testing.T) {
		rec := &recorder{}
		ex, m := newExecutor(t, rec)
		ex.Bounds = sizing.Bounds{Min: 2, Max: 1}
		_, err := ex.ExecuteRefinement(context.Background(), 1)
		assert.ErrorIs(t, err, rerrors.ErrInvalidInput)
		var serr *rerrors.StageError
		require.True(t, rerrors.As(err, &serr))
		assert.Equal(t, StageMetric, serr.Stage)
		assert.Equal(t, 0, rec.calls)
		assert.False(t, m.IsModified())
	})

	t.Run("native error keeps its cause", func(t *testing.T) {
		cause := rerrors.New("out of memory")
		ex, _ := newExecutor(t, &recorder{err: cause})
		_, err := ex.ExecuteRefinement(context.Background(), 1)
		assert.ErrorIs(t, err, rerrors.ErrNative)
		assert.ErrorIs(t, err, cause)
	})
}
