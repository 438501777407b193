package dependency

import (
	"golang.org/x/tools/go/ssa"

	"github.com/veriweft/weft/analysis/symexpr"
	"github.com/veriweft/weft/utils/worklist"
)

// A Dependency node accumulates the value-dependency relations created by
// the instructions executed in one interpolation-tree node. Nodes form a
// singly linked chain through parent: relations of ancestors are visible,
// and versioning resolves which entry is current. The analysis is
// flow-insensitive; the relations hold somewhere along the current path
// prefix.
type Dependency struct {
	ctx    *Context
	parent *Dependency

	// argumentValues holds the versioned values to be bound as the
	// parameters of the next callee.
	argumentValues []*VersionedValue

	// equalities binds versioned values to the allocations whose address
	// they hold.
	equalities []*PointerEquality

	// stores maps each allocation to the latest value deposited in it within
	// this node; storesOrder preserves insertion order for the projection.
	stores      map[Allocation]*VersionedValue
	storesOrder []Allocation

	// storageOf is the inverse of stores.
	storageOf map[*VersionedValue][]Allocation

	// flows is the list of flowsTo edges created by this node.
	flows []*FlowsTo

	// Owning containers of everything this node created.
	values      []*VersionedValue
	allocations []Allocation

	// coreAllocations are the core-marked allocations owned by this node
	// that were graph sinks when ComputeCoreAllocations reached it.
	coreAllocations map[Allocation]bool

	// incoming is the basic block of the last-executed instruction,
	// consulted to resolve phi nodes.
	incoming *ssa.BasicBlock
}

// New creates a fresh dependency node. The parent, if any, is not owned; a
// node with a parent shares the parent's engine context and ctx may be nil.
func New(ctx *Context, parent *Dependency) *Dependency {
	if parent != nil {
		ctx = parent.ctx
	}
	if ctx == nil {
		ctx = NewContext()
	}
	return &Dependency{
		ctx:             ctx,
		parent:          parent,
		stores:          make(map[Allocation]*VersionedValue),
		storageOf:       make(map[*VersionedValue][]Allocation),
		coreAllocations: make(map[Allocation]bool),
	}
}

// Parent returns the previous node of the chain, or nil at the root.
func (dep *Dependency) Parent() *Dependency {
	return dep.parent
}

// Context returns the engine context shared along the chain.
func (dep *Dependency) Context() *Context {
	return dep.ctx
}

/* Versioned values */

func (dep *Dependency) getNewVersionedValue(value ssa.Value, expr symexpr.Expr) *VersionedValue {
	vv := NewVersionedValue(value, expr)
	dep.values = append(dep.values, vv)
	return vv
}

// GetLatestValue returns the newest versioned value of the IR value visible
// from this node. A constant expression always yields a fresh versioned
// value: constants are never reused, which keeps them core-free.
func (dep *Dependency) GetLatestValue(value ssa.Value, expr symexpr.Expr) *VersionedValue {
	if expr != nil {
		if _, ok := symexpr.IsConstant(expr); ok {
			return dep.getNewVersionedValue(value, expr)
		}
	}
	return dep.getLatestValueNoConstantCheck(value)
}

// getLatestValueNoConstantCheck is like GetLatestValue but skips the
// constant short-circuit; used where a constant pointer still needs a
// representative. Returns nil when no version exists.
func (dep *Dependency) getLatestValueNoConstantCheck(value ssa.Value) *VersionedValue {
	for n := dep; n != nil; n = n.parent {
		for i := len(n.values) - 1; i >= 0; i-- {
			if n.values[i].HasValue(value) {
				return n.values[i]
			}
		}
	}
	return nil
}

/* Allocations */

func (dep *Dependency) newAllocation(site ssa.Value, address symexpr.Expr) Allocation {
	var a Allocation
	if IsEnvironmentAllocation(site) {
		a = newEnvironmentAllocation(dep.ctx, site, address)
	} else {
		a = NewVersionedAllocation(site, address)
	}
	dep.allocations = append(dep.allocations, a)
	return a
}

// getLatestAllocation walks this node then its ancestors and returns the
// most recent allocation matching (site, address), if any.
func (dep *Dependency) getLatestAllocation(site ssa.Value, address symexpr.Expr) Allocation {
	for n := dep; n != nil; n = n.parent {
		for i := len(n.allocations) - 1; i >= 0; i-- {
			if n.allocations[i].HasAllocationSite(site, address) {
				return n.allocations[i]
			}
		}
	}
	return nil
}

// getInitialAllocation returns the allocation for (site, address) already
// visible from this node, creating a fresh one owned by this node otherwise.
func (dep *Dependency) getInitialAllocation(site ssa.Value, address symexpr.Expr) Allocation {
	if a := dep.getLatestAllocation(site, address); a != nil {
		return a
	}
	return dep.newAllocation(site, address)
}

// getNewAllocationVersion always mints a fresh version of the allocation;
// used when a destructive write demands one.
func (dep *Dependency) getNewAllocationVersion(site ssa.Value, address symexpr.Expr) Allocation {
	a := NewVersionedAllocation(site, address)
	dep.allocations = append(dep.allocations, a)
	return a
}

/* Relation construction */

func (dep *Dependency) addPointerEquality(value *VersionedValue, alloc Allocation) {
	dep.equalities = append(dep.equalities, NewPointerEquality(value, alloc))
}

// hasPointerEquality reports whether any versioned value visible from this
// node is bound to the allocation.
func (dep *Dependency) hasPointerEquality(alloc Allocation) bool {
	for n := dep; n != nil; n = n.parent {
		for _, eq := range n.equalities {
			if eq.alloc == alloc {
				return true
			}
		}
	}
	return false
}

// updateStore records value as the current content of alloc in this node.
func (dep *Dependency) updateStore(alloc Allocation, value *VersionedValue) {
	if _, ok := dep.stores[alloc]; !ok {
		dep.storesOrder = append(dep.storesOrder, alloc)
	}
	dep.stores[alloc] = value
	dep.storageOf[value] = append(dep.storageOf[value], alloc)
}

func (dep *Dependency) addDependency(source, target *VersionedValue) {
	dep.flows = append(dep.flows, NewFlowsTo(source, target, nil))
}

func (dep *Dependency) addDependencyViaAllocation(source, target *VersionedValue, via Allocation) {
	dep.flows = append(dep.flows, NewFlowsTo(source, target, via))
}

/* Relation queries */

// storedValue returns the current content of alloc visible from this node.
func (dep *Dependency) storedValue(alloc Allocation) (*VersionedValue, bool) {
	for n := dep; n != nil; n = n.parent {
		if v, ok := n.stores[alloc]; ok {
			return v, true
		}
	}
	return nil, false
}

// storageAllocations returns every allocation the value is currently stored
// in, across the chain.
func (dep *Dependency) storageAllocations(value *VersionedValue) (res []Allocation) {
	for n := dep; n != nil; n = n.parent {
		for _, a := range n.storageOf[value] {
			if cur, _ := dep.storedValue(a); cur == value {
				res = append(res, a)
			}
		}
	}
	return
}

// resolveAllocation returns the allocation whose address the value holds, if
// any. The closest node wins; within a node the earliest inserted equality
// wins.
func (dep *Dependency) resolveAllocation(value *VersionedValue) Allocation {
	for n := dep; n != nil; n = n.parent {
		for _, eq := range n.equalities {
			if a := eq.Equals(value); a != nil {
				return a
			}
		}
	}
	return nil
}

// valuesPointingTo returns the versioned values bound to the allocation by a
// pointer equality, across the chain.
func (dep *Dependency) valuesPointingTo(alloc Allocation) (res []*VersionedValue) {
	for n := dep; n != nil; n = n.parent {
		for _, eq := range n.equalities {
			if eq.alloc == alloc {
				res = append(res, eq.value)
			}
		}
	}
	return
}

/* Closure queries */

// directLocalFlowSources returns the one-step flow predecessors of target
// recorded in this node only.
func (dep *Dependency) directLocalFlowSources(target *VersionedValue) (res []*VersionedValue) {
	for _, ft := range dep.flows {
		if ft.target == target {
			res = append(res, ft.source)
		}
	}
	return
}

// directFlowSources returns the one-step flow predecessors of target across
// the chain. Edges live in the node that created them.
func (dep *Dependency) directFlowSources(target *VersionedValue) (res []*VersionedValue) {
	for n := dep; n != nil; n = n.parent {
		res = append(res, n.directLocalFlowSources(target)...)
	}
	return
}

// directFlowEdges returns the incoming flowsTo edges of target across the
// chain.
func (dep *Dependency) directFlowEdges(target *VersionedValue) (res []*FlowsTo) {
	for n := dep; n != nil; n = n.parent {
		for _, ft := range n.flows {
			if ft.target == target {
				res = append(res, ft)
			}
		}
	}
	return
}

// allFlowSources returns every value that could flow to target, transitively
// across the chain. The flow relation may be cyclic; traversal carries a
// visited set. The result excludes target itself unless it sits on a cycle.
func (dep *Dependency) allFlowSources(target *VersionedValue) (res []*VersionedValue) {
	seen := make(map[*VersionedValue]bool)
	worklist.Start(target, func(next *VersionedValue, add func(el *VersionedValue)) {
		for _, src := range dep.directFlowSources(next) {
			if !seen[src] {
				seen[src] = true
				res = append(res, src)
				add(src)
			}
		}
	})
	return
}

// allFlowSourcesEnds returns the closure terminals: transitive sources of
// target that have no incoming flow edge themselves.
func (dep *Dependency) allFlowSourcesEnds(target *VersionedValue) (res []*VersionedValue) {
	for _, src := range dep.allFlowSources(target) {
		if len(dep.directFlowSources(src)) == 0 {
			res = append(res, src)
		}
	}
	return
}

// resolveAllocationTransitively returns the allocations whose address the
// value, or any value it transitively depends on, holds.
func (dep *Dependency) resolveAllocationTransitively(value *VersionedValue) (res []Allocation) {
	seen := make(map[Allocation]bool)
	for _, v := range append([]*VersionedValue{value}, dep.allFlowSources(value)...) {
		if a := dep.resolveAllocation(v); a != nil && !seen[a] {
			seen[a] = true
			res = append(res, a)
		}
	}
	return
}

/* Indirection */

// An indTarget is one ind(v, m, i) witness: allocation m reachable from the
// queried value by i steps of memory indirection.
type indTarget struct {
	alloc Allocation
	level int
}

// indirectionTargets enumerates the ind(v, m, i) pairs derivable for v: at
// level 0 the allocations resolved through the depends* closure, and at
// level i+1 the targets of pointers to the cells holding a level-i value.
// The traversal is cycle-safe and deduplicates allocations at their lowest
// level.
func (dep *Dependency) indirectionTargets(value *VersionedValue) (res []indTarget) {
	seenVals := make(map[*VersionedValue]bool)
	seenAllocs := make(map[Allocation]bool)

	frontier := []*VersionedValue{value}
	for level := 0; len(frontier) > 0; level++ {
		var next []*VersionedValue
		for _, v := range frontier {
			if seenVals[v] {
				continue
			}
			seenVals[v] = true

			closure := append([]*VersionedValue{v}, dep.allFlowSources(v)...)
			for _, u := range closure {
				if a := dep.resolveAllocation(u); a != nil && !seenAllocs[a] {
					seenAllocs[a] = true
					res = append(res, indTarget{alloc: a, level: level})
				}
				// Cells that contain u are dereferenced one level deeper.
				for _, cell := range dep.storageAllocations(u) {
					next = append(next, dep.valuesPointingTo(cell)...)
				}
			}
		}
		frontier = next
	}
	return
}
