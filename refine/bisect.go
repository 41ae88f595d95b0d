// Package refine is a reference remesher: metric-driven, conforming
// longest-edge bisection of triangle meshes. It only refines; elements
// coarser than the metric asks for are left alone.
package refine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/remesh/config"
	"github.com/notargets/remesh/logging"
	"github.com/notargets/remesh/mesh"
	"github.com/notargets/remesh/metric"
)

// splitLength is the metric edge length above which an edge is bisected.
const splitLength = math.Sqrt2

// DefaultMaxPasses bounds the number of refinement sweeps.
const DefaultMaxPasses = 16

// Options controls edge selection.
type Options struct {
	ForceMin  bool // never create edges shorter than MinSize
	MinSize   float64
	ForceMax  bool // always split edges longer than MaxSize
	MaxSize   float64
	MaxPasses int // 0 uses DefaultMaxPasses
}

// OptionsFromSettings builds the options from the force_min/force_max
// settings.
func OptionsFromSettings(s *config.Settings) Options {
	return Options{
		ForceMin: s.ForceMin,
		MinSize:  s.MinimalSize,
		ForceMax: s.ForceMax,
		MaxSize:  s.MaximalSize,
	}
}

// Stats summarizes the last Remesh call.
type Stats struct {
	Passes     int
	SplitEdges int
	Nodes      int
	Elements   int
}

// Bisector refines a 2D mesh until no edge is longer than the metric allows.
type Bisector struct {
	opts  Options
	log   *logging.Logger
	stats Stats
}

// New creates a Bisector. A nil logger discards output.
func New(opts Options, log *logging.Logger) *Bisector {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = DefaultMaxPasses
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Bisector{opts: opts, log: log.WithPhase("bisection")}
}

// SetSizes replaces the size limits used by ForceMin and ForceMax, for
// bounds that are only known once the mesh has been measured.
func (b *Bisector) SetSizes(min, max float64) {
	b.opts.MinSize = min
	b.opts.MaxSize = max
}

// Stats returns the statistics of the last Remesh call.
func (b *Bisector) Stats() Stats { return b.stats }

// Remesh refines m in place so that edges measured in f are at most
// sqrt(2) long. Nodal fields are interpolated linearly onto new nodes and
// sub-model-parts are updated. Blocked elements keep their edges, as do
// edges joining two blocked nodes.
func (b *Bisector) Remesh(ctx context.Context, m *mesh.Mesh, f *metric.SizeField) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Dim != 2 {
		return fmt.Errorf("bisection supports triangle meshes only, mesh %s is %dD", m.Name, m.Dim)
	}
	if f == nil || f.Len() != m.NumNodes() {
		return fmt.Errorf("size field does not match mesh %s with %d nodes", m.Name, m.NumNodes())
	}

	// New nodes extend a private copy of the field
	sf := &metric.SizeField{Dim: f.Dim, Tensors: append(f.Tensors[:0:0], f.Tensors...)}

	b.stats = Stats{}
	for pass := 1; pass <= b.opts.MaxPasses; pass++ {
		marked := b.mark(m, sf)
		if len(marked) == 0 {
			break
		}
		split(m, sf, marked)
		b.stats.Passes++
		b.stats.SplitEdges += len(marked)
		b.log.Debug("Refinement pass", "pass", pass, "split_edges", len(marked),
			"nodes", m.NumNodes(), "elements", m.NumElements())
	}
	b.stats.Nodes = m.NumNodes()
	b.stats.Elements = m.NumElements()

	if err := m.Validate(); err != nil {
		return fmt.Errorf("refined mesh is invalid: %w", err)
	}
	return nil
}

// mark selects the edges to split in this pass and closes the selection so
// that every element with a marked edge also has its longest edge marked.
func (b *Bisector) mark(m *mesh.Mesh, sf *metric.SizeField) map[mesh.Edge]bool {
	frozen := make(map[mesh.Edge]bool)
	for _, el := range m.Elements {
		if el.Blocked {
			for _, e := range elementEdges(el) {
				frozen[e] = true
			}
		}
	}

	marked := make(map[mesh.Edge]bool)
	for _, e := range m.Edges() {
		if frozen[e] || (m.Blocked[e.A] && m.Blocked[e.B]) {
			frozen[e] = true
			continue
		}
		p, q := m.Nodes[e.A], m.Nodes[e.B]
		l := r3.Norm(r3.Sub(q, p))
		want := sf.EdgeLength(e.A, e.B, p, q) > splitLength
		if b.opts.ForceMin && l < 2*b.opts.MinSize {
			want = false
		}
		if b.opts.ForceMax && l > b.opts.MaxSize {
			want = true
		}
		if want {
			marked[e] = true
		}
	}

	longest := make([]mesh.Edge, len(m.Elements))
	for k, el := range m.Elements {
		longest[k] = longestEdge(m, elementEdges(el))
	}

	// Marks are only added on unfrozen edges and only removed by freezing,
	// so the sweep terminates
	for changed := true; changed; {
		changed = false
		for k, el := range m.Elements {
			edges := elementEdges(el)
			if !anyMarked(marked, edges) || marked[longest[k]] {
				continue
			}
			if !frozen[longest[k]] {
				marked[longest[k]] = true
				changed = true
				continue
			}
			// The element cannot be bisected, so none of its edges may split
			for _, e := range edges {
				if marked[e] {
					delete(marked, e)
					frozen[e] = true
					changed = true
				}
			}
		}
	}
	return marked
}

// split inserts the midpoints of the marked edges and rebuilds elements and
// sub-model-parts.
func split(m *mesh.Mesh, sf *metric.SizeField, marked map[mesh.Edge]bool) {
	edges := make([]mesh.Edge, 0, len(marked))
	for e := range marked {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})

	mids := make(map[mesh.Edge]int, len(edges))
	for _, e := range edges {
		id := len(m.Nodes)
		m.Nodes = append(m.Nodes, r3.Scale(0.5, r3.Add(m.Nodes[e.A], m.Nodes[e.B])))
		m.Blocked = append(m.Blocked, false)
		for _, store := range []map[string][]float64{m.Historical, m.NonHistorical} {
			for name, v := range store {
				store[name] = append(v, 0.5*(v[e.A]+v[e.B]))
			}
		}
		sf.Append(sf.Midpoint(e.A, e.B))
		mids[e] = id
	}

	elements := make([]mesh.Element, 0, len(m.Elements)+2*len(edges))
	children := make([][]int, len(m.Elements))
	for k, el := range m.Elements {
		start := len(elements)
		elements = bisect(elements, m, el, mids)
		for i := start; i < len(elements); i++ {
			children[k] = append(children[k], i)
		}
	}
	m.Elements = elements

	for _, smp := range m.SubModelParts {
		updateSubModelPart(smp, m, edges, mids, children)
	}
}

// bisect splits el along its longest marked edge and recurses on both
// halves until no marked edge is left.
func bisect(out []mesh.Element, m *mesh.Mesh, el mesh.Element, mids map[mesh.Edge]int) []mesh.Element {
	best, bestLen := -1, 0.0
	for i := 0; i < 3; i++ {
		e := mesh.NewEdge(el.Nodes[i], el.Nodes[(i+1)%3])
		if _, ok := mids[e]; !ok {
			continue
		}
		if l := edgeLength(m, e); best < 0 || l > bestLen {
			best, bestLen = i, l
		}
	}
	if best < 0 {
		return append(out, el)
	}
	a, b, c := el.Nodes[best], el.Nodes[(best+1)%3], el.Nodes[(best+2)%3]
	mid := mids[mesh.NewEdge(a, b)]
	out = bisect(out, m, mesh.Element{Type: el.Type, Nodes: []int{a, mid, c}, Blocked: el.Blocked}, mids)
	return bisect(out, m, mesh.Element{Type: el.Type, Nodes: []int{mid, b, c}, Blocked: el.Blocked}, mids)
}

// updateSubModelPart splits the conditions of smp and maps its elements to
// their children. Midpoints join the group through split conditions or
// child elements; groups holding only nodes take the midpoint of every
// split edge whose two ends they contain.
func updateSubModelPart(smp *mesh.SubModelPart, m *mesh.Mesh, edges []mesh.Edge, mids map[mesh.Edge]int, children [][]int) {
	member := make(map[int]bool, len(smp.Nodes))
	for _, n := range smp.Nodes {
		member[n] = true
	}
	add := func(n int) {
		if !member[n] {
			member[n] = true
			smp.Nodes = append(smp.Nodes, n)
		}
	}

	var conds [][]int
	for _, c := range smp.Conditions {
		if len(c) == 2 {
			if mid, ok := mids[mesh.NewEdge(c[0], c[1])]; ok {
				conds = append(conds, []int{c[0], mid}, []int{mid, c[1]})
				add(mid)
				continue
			}
		}
		conds = append(conds, c)
	}
	smp.Conditions = conds

	var elems []int
	for _, k := range smp.Elements {
		elems = append(elems, children[k]...)
	}
	smp.Elements = elems

	if len(conds) == 0 && len(elems) == 0 {
		for _, e := range edges {
			if member[e.A] && member[e.B] {
				add(mids[e])
			}
		}
		return
	}
	firstNew := len(m.Nodes) - len(edges)
	for _, k := range elems {
		for _, n := range m.Elements[k].Nodes {
			if n >= firstNew {
				add(n)
			}
		}
	}
}

func elementEdges(el mesh.Element) []mesh.Edge {
	pairs := el.Edges()
	out := make([]mesh.Edge, len(pairs))
	for i, p := range pairs {
		out[i] = mesh.NewEdge(p[0], p[1])
	}
	return out
}

// longestEdge breaks ties by edge order so that the choice is deterministic.
func longestEdge(m *mesh.Mesh, edges []mesh.Edge) mesh.Edge {
	best := edges[0]
	bestLen := edgeLength(m, best)
	for _, e := range edges[1:] {
		l := edgeLength(m, e)
		if l > bestLen || (l == bestLen && (e.A < best.A || (e.A == best.A && e.B < best.B))) {
			best, bestLen = e, l
		}
	}
	return best
}

func anyMarked(marked map[mesh.Edge]bool, edges []mesh.Edge) bool {
	for _, e := range edges {
		if marked[e] {
			return true
		}
	}
	return false
}

func edgeLength(m *mesh.Mesh, e mesh.Edge) float64 {
	return r3.Norm(r3.Sub(m.Nodes[e.B], m.Nodes[e.A]))
}
