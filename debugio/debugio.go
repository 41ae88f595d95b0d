// Package debugio writes before/after remeshing snapshots of a mesh, its
// nodal fields and the size field, as GiD post files or VTK unstructured
// grids.
package debugio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
)

// Snapshot prefixes.
const (
	Before = "BEFORE_"
	After  = "AFTER_"
)

// MetricSize and MetricTensor name the size field results.
const (
	MetricSize   = "METRIC_SIZE"
	MetricTensor = "METRIC_TENSOR"
)

// Writer writes one snapshot and returns the created files.
type Writer interface {
	Write(dir, prefix string, label int, m *mesh.Mesh, f *metric.SizeField) ([]string, error)
}

// New returns the writer for a debug mode, or nil when debugging is off.
func New(mode config.DebugMode, framework config.Framework) Writer {
	switch mode {
	case config.DebugGiD:
		return &GiDWriter{Framework: framework}
	case config.DebugVTK:
		return &VTKWriter{Framework: framework}
	default:
		return nil
	}
}

// FileName returns the base name of a snapshot.
func FileName(prefix, modelPart string, label int) string {
	return fmt.Sprintf("%sREMESHING_%s_STEP_%d", prefix, modelPart, label)
}

// KinematicVariable is the vector field written for a framework.
func KinematicVariable(f config.Framework) string {
	if f == config.Lagrangian {
		return "DISPLACEMENT"
	}
	return "VELOCITY"
}

// nodalData gathers what a snapshot writes: every scalar field, the
// kinematic vector field when present, and the size field.
type nodalData struct {
	scalars    []string // sorted names
	values     map[string][]float64
	vectorName string
	vector     [][3]float64
	tensors    [][6]float64 // xx yy zz xy yz xz
}

func collect(m *mesh.Mesh, f *metric.SizeField, framework config.Framework) (*nodalData, error) {
	d := &nodalData{values: make(map[string][]float64)}

	kin := KinematicVariable(framework)
	kinComps := make(map[string]bool)
	for _, nonHistorical := range []bool{false, true} {
		if !m.IsVector(kin, nonHistorical) {
			continue
		}
		v, err := m.Vector(kin, nonHistorical)
		if err != nil {
			return nil, err
		}
		d.vectorName = kin
		d.vector = make([][3]float64, len(v))
		for i, p := range v {
			d.vector[i] = [3]float64{p.X, p.Y, p.Z}
		}
		comps, _ := m.Components(kin, nonHistorical)
		for _, c := range comps {
			kinComps[c] = true
		}
		break
	}

	// Historical values shadow non-historical ones of the same name
	for _, store := range []map[string][]float64{m.NonHistorical, m.Historical} {
		for name, v := range store {
			if !kinComps[name] {
				d.values[name] = v
			}
		}
	}

	if f != nil {
		if f.Len() != m.NumNodes() {
			return nil, fmt.Errorf("size field has %d tensors for %d nodes", f.Len(), m.NumNodes())
		}
		d.values[MetricSize] = f.MinSizes()
		d.tensors = make([][6]float64, f.Len())
		for i, t := range f.Tensors {
			var c [6]float64
			c[0], c[1], c[3] = t.At(0, 0), t.At(1, 1), t.At(0, 1)
			if f.Dim == 3 {
				c[2], c[4], c[5] = t.At(2, 2), t.At(1, 2), t.At(0, 2)
			}
			d.tensors[i] = c
		}
	}

	for name := range d.values {
		d.scalars = append(d.scalars, name)
	}
	sort.Strings(d.scalars)
	return d, nil
}

func writeFile(dir, name string, buf *bytes.Buffer) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
