package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ElementSize returns the longest edge of element k.
func (m *Mesh) ElementSize(k int) float64 {
	var h float64
	for _, e := range m.Elements[k].Edges() {
		h = math.Max(h, r3.Norm(r3.Sub(m.Nodes[e[0]], m.Nodes[e[1]])))
	}
	return h
}

// BlockThresholdSizeElements blocks every element whose size lies outside
// [minSize, maxSize] and returns how many were blocked.
func (m *Mesh) BlockThresholdSizeElements(minSize, maxSize float64) int {
	var count int
	for k := range m.Elements {
		h := m.ElementSize(k)
		if h < minSize || h > maxSize {
			if !m.Elements[k].Blocked {
				count++
			}
			m.Elements[k].Blocked = true
		}
	}
	return count
}

// BlockNodes blocks the nodes of a sub-model-part.
func (m *Mesh) BlockNodes(smp *SubModelPart) {
	for _, n := range smp.Nodes {
		m.Blocked[n] = true
	}
}

// BlockConditions blocks the nodes of a sub-model-part's conditions.
func (m *Mesh) BlockConditions(smp *SubModelPart) {
	for _, c := range smp.Conditions {
		for _, n := range c {
			m.Blocked[n] = true
		}
	}
}

// BlockElements blocks the elements of a sub-model-part.
func (m *Mesh) BlockElements(smp *SubModelPart) {
	for _, k := range smp.Elements {
		m.Elements[k].Blocked = true
	}
}
