package dependency

import (
	"golang.org/x/tools/go/ssa"

	"github.com/veriweft/weft/utils/slices"
)

// An allocationNode wraps an allocation in the allocation graph, annotated
// with its hop distance from the originating sink. Edges point child →
// parent: parents are the allocations feeding the node's content.
type allocationNode struct {
	alloc   Allocation
	parents []*allocationNode
	level   uint64
}

// addParent appends a parent edge. The caller must ensure no duplicate is
// stored.
func (n *allocationNode) addParent(p *allocationNode) {
	n.parents = append(n.parents, p)
}

// An AllocationGraph is the derived DAG of allocation ancestry used to
// select the core allocations dominating others. The graph owns its nodes;
// it is a short-lived object constructed per interpolation query.
type AllocationGraph struct {
	sinks []*allocationNode
	nodes []*allocationNode
}

func NewAllocationGraph() *AllocationGraph {
	return &AllocationGraph{}
}

// newNode creates a graph node for the allocation and marks the allocation
// core.
func (g *AllocationGraph) newNode(alloc Allocation, level uint64) *allocationNode {
	alloc.markCore()
	n := &allocationNode{alloc: alloc, level: level}
	g.nodes = append(g.nodes, n)
	return n
}

func (g *AllocationGraph) nodeOf(alloc Allocation) *allocationNode {
	n, _ := slices.Find(g.nodes, func(n *allocationNode) bool {
		return n.alloc == alloc
	})
	return n
}

func (g *AllocationGraph) hasSink(alloc Allocation) bool {
	_, found := slices.Find(g.sinks, func(n *allocationNode) bool {
		return n.alloc == alloc
	})
	return found
}

// AddNewSink inserts a sink node at level 0 for the allocation, unless a
// sink for it already exists, and marks the allocation core.
func (g *AllocationGraph) AddNewSink(candidate Allocation) {
	if g.hasSink(candidate) {
		return
	}
	g.sinks = append(g.sinks, g.newNode(candidate, 0))
}

// AddNewEdge inserts a parent edge from the node of source into the node of
// target, creating the source node one level above the target and the
// target node at level 0 when absent. Callers must not add duplicate edges
// and must have seeded a sink first.
func (g *AllocationGraph) AddNewEdge(source, target Allocation) {
	tn := g.nodeOf(target)
	if tn == nil {
		tn = g.newNode(target, 0)
	}
	sn := g.nodeOf(source)
	if sn == nil {
		sn = g.newNode(source, tn.level+1)
	}
	tn.addParent(sn)
}

// ConsumeSinkNode removes every sink whose allocation equals the given one;
// the parents of each removed sink become sinks themselves, deduplicated
// against the current sinks by allocation identity.
func (g *AllocationGraph) ConsumeSinkNode(alloc Allocation) {
	var kept []*allocationNode
	var promoted []*allocationNode
	for _, s := range g.sinks {
		if s.alloc == alloc {
			promoted = append(promoted, s.parents...)
		} else {
			kept = append(kept, s)
		}
	}

	for _, p := range promoted {
		dup := slices.Contains(kept, p, func(a, b *allocationNode) bool {
			return a.alloc == b.alloc
		})
		if !dup {
			kept = append(kept, p)
		}
	}
	g.sinks = kept
}

// ConsumeSinksWithAllocations is iterated ConsumeSinkNode over the list.
func (g *AllocationGraph) ConsumeSinksWithAllocations(allocs []Allocation) {
	for _, a := range allocs {
		g.ConsumeSinkNode(a)
	}
}

// SinkAllocations returns the allocations of the current sinks.
func (g *AllocationGraph) SinkAllocations() map[Allocation]bool {
	res := make(map[Allocation]bool, len(g.sinks))
	for _, s := range g.sinks {
		res[s.alloc] = true
	}
	return res
}

// SinksWithAllocations returns the subset of sink allocations contained in
// the list.
func (g *AllocationGraph) SinksWithAllocations(allocs []Allocation) map[Allocation]bool {
	res := make(map[Allocation]bool)
	for _, s := range g.sinks {
		if slices.Contains(allocs, s.alloc, func(a, b Allocation) bool { return a == b }) {
			res[s.alloc] = true
		}
	}
	return res
}

/* Core marking */

// An allocationSource pairs a direct flow predecessor with the allocation
// mediating or backing it.
type allocationSource struct {
	value *VersionedValue
	alloc Allocation
}

func (dep *Dependency) allocationSourcesOf(edges []*FlowsTo) (res []allocationSource) {
	for _, ft := range edges {
		a := ft.via
		if a == nil {
			a = dep.resolveAllocation(ft.source)
		}
		res = append(res, allocationSource{value: ft.source, alloc: a})
	}
	return
}

// directLocalAllocationSources is directAllocationSources restricted to the
// edges of this node.
func (dep *Dependency) directLocalAllocationSources(target *VersionedValue) []allocationSource {
	var edges []*FlowsTo
	for _, ft := range dep.flows {
		if ft.target == target {
			edges = append(edges, ft)
		}
	}
	return dep.allocationSourcesOf(edges)
}

// directAllocationSources returns, for each direct flow predecessor of
// target across the chain, the allocation associated with the edge: the
// mediating store/load allocation when present, the predecessor's pointer
// equality otherwise, or nil.
func (dep *Dependency) directAllocationSources(target *VersionedValue) []allocationSource {
	return dep.allocationSourcesOf(dep.directFlowEdges(target))
}

// MarkAllValues marks the seed value and everything that flows into it as
// core, and grows the allocation graph with the allocations justifying
// those flows.
func (dep *Dependency) MarkAllValues(g *AllocationGraph, value *VersionedValue) {
	dep.buildAllocationGraph(g, value)
	value.markCore()
	for _, src := range dep.allFlowSources(value) {
		src.markCore()
	}
}

// MarkAllValuesFor resolves the latest versioned value of the IR value and
// marks from it; without a versioned value this is a no-op.
func (dep *Dependency) MarkAllValuesFor(g *AllocationGraph, value ssa.Value) {
	if vv := dep.getLatestValueNoConstantCheck(value); vv != nil {
		dep.MarkAllValues(g, vv)
	}
}

// graphBuilder carries the traversal state of one buildAllocationGraph run.
// The graph performs no duplicate-edge check, so the builder dedups edges
// itself.
type graphBuilder struct {
	visited map[*VersionedValue]bool
	edges   map[[2]Allocation]bool
}

// buildAllocationGraph seeds the graph with the cells holding the seed value
// and recurses through the flow predecessors.
func (dep *Dependency) buildAllocationGraph(g *AllocationGraph, value *VersionedValue) {
	for _, a := range dep.storageAllocations(value) {
		g.AddNewSink(a)
	}
	b := &graphBuilder{
		visited: make(map[*VersionedValue]bool),
		edges:   make(map[[2]Allocation]bool),
	}
	dep.recursivelyBuildAllocationGraph(g, value, nil, b)
}

// recursivelyBuildAllocationGraph walks the direct allocation sources of
// value: each source allocation becomes a sink (at the outermost level) or a
// parent edge of the current allocation, and the recursion continues with it
// as the new current allocation. Cycles terminate through the visited set.
func (dep *Dependency) recursivelyBuildAllocationGraph(
	g *AllocationGraph,
	value *VersionedValue,
	curAlloc Allocation,
	b *graphBuilder,
) {
	if b.visited[value] {
		return
	}
	b.visited[value] = true

	for _, src := range dep.directAllocationSources(value) {
		src.value.markCore()

		next := curAlloc
		if src.alloc != nil {
			src.alloc.markCore()
			if curAlloc == nil {
				g.AddNewSink(src.alloc)
			} else if e := [2]Allocation{src.alloc, curAlloc}; !b.edges[e] {
				b.edges[e] = true
				g.AddNewEdge(src.alloc, curAlloc)
			}
			next = src.alloc
		}

		dep.recursivelyBuildAllocationGraph(g, src.value, next, b)
	}
}

// ComputeCoreAllocations finalizes, for this node and every ancestor, the
// set of core-marked allocations that dominate the others along the chain:
// the node captures the graph sinks among its own allocations, then consumes
// them so that ancestor allocations surface as sinks for the parent walk.
func (dep *Dependency) ComputeCoreAllocations(g *AllocationGraph) {
	var coreOwn []Allocation
	for _, a := range dep.allocations {
		if a.IsCore() {
			coreOwn = append(coreOwn, a)
		}
	}

	dep.coreAllocations = g.SinksWithAllocations(coreOwn)
	g.ConsumeSinksWithAllocations(coreOwn)

	if dep.parent != nil {
		dep.parent.ComputeCoreAllocations(g)
	}
}
