package dependency

import (
	"testing"

	"github.com/veriweft/weft/analysis/symexpr"
)

func alloc(name string, addr uint64) *VersionedAllocation {
	return NewVersionedAllocation(&fakeValue{name}, symexpr.NewConstant(addr, symexpr.W64))
}

func TestGraphSinkDedup(t *testing.T) {
	g := NewAllocationGraph()
	m := alloc("m", 1)

	g.AddNewSink(m)
	g.AddNewSink(m)
	if len(g.sinks) != 1 {
		t.Fatalf("expected 1 sink, got %d", len(g.sinks))
	}
	if !m.IsCore() {
		t.Error("sink allocation not marked core")
	}
}

func TestGraphEdgeLevels(t *testing.T) {
	g := NewAllocationGraph()
	m1, m2, m3 := alloc("m1", 1), alloc("m2", 2), alloc("m3", 3)

	g.AddNewSink(m1)
	g.AddNewEdge(m2, m1)
	g.AddNewEdge(m3, m2)

	n1, n2, n3 := g.nodeOf(m1), g.nodeOf(m2), g.nodeOf(m3)
	if n1.level != 0 || n2.level != 1 || n3.level != 2 {
		t.Errorf("levels are %d/%d/%d, want 0/1/2", n1.level, n2.level, n3.level)
	}
	if len(n1.parents) != 1 || n1.parents[0] != n2 {
		t.Error("edge m2 -> m1 not recorded as a parent of the sink")
	}
	for _, m := range []*VersionedAllocation{m1, m2, m3} {
		if !m.IsCore() {
			t.Errorf("%s not marked core by graph insertion", m)
		}
	}
}

func TestGraphConsumeSink(t *testing.T) {
	g := NewAllocationGraph()
	m1, m2, m3 := alloc("m1", 1), alloc("m2", 2), alloc("m3", 3)

	g.AddNewSink(m1)
	g.AddNewEdge(m2, m1)
	g.AddNewEdge(m3, m1)

	g.ConsumeSinkNode(m1)

	sinks := g.SinkAllocations()
	if len(sinks) != 2 || !sinks[m2] || !sinks[m3] {
		t.Fatalf("sinks after consumption are %v, want the parents", sinks)
	}

	// Consuming an allocation with no matching sink changes nothing.
	g.ConsumeSinkNode(m1)
	if len(g.SinkAllocations()) != 2 {
		t.Error("consuming a non-sink changed the sinks")
	}
}

func TestGraphConsumePromotionDedup(t *testing.T) {
	g := NewAllocationGraph()
	m1, m2, shared := alloc("m1", 1), alloc("m2", 2), alloc("shared", 3)

	g.AddNewSink(m1)
	g.AddNewSink(m2)
	g.AddNewEdge(shared, m1)

	// shared feeds m1; m2 stays a sink. Consuming m1 promotes shared, which
	// is checked against the kept sinks and joins m2.
	g.ConsumeSinksWithAllocations([]Allocation{m1})
	sinks := g.SinkAllocations()
	if len(sinks) != 2 || !sinks[m2] || !sinks[shared] {
		t.Fatalf("sinks are %v, want m2 and shared", sinks)
	}
}

func TestGraphSinksWithAllocations(t *testing.T) {
	g := NewAllocationGraph()
	m1, m2 := alloc("m1", 1), alloc("m2", 2)
	g.AddNewSink(m1)
	g.AddNewSink(m2)

	got := g.SinksWithAllocations([]Allocation{m1})
	if len(got) != 1 || !got[m1] {
		t.Errorf("filtered sinks are %v, want only m1", got)
	}
}

func TestMarkAllValuesForMissingValue(t *testing.T) {
	dep := New(nil, nil)
	g := NewAllocationGraph()

	// Without a versioned value the marking is a no-op.
	dep.MarkAllValuesFor(g, &fakeValue{"absent"})
	if len(g.nodes) != 0 {
		t.Error("marking an absent value grew the graph")
	}
}

func TestMarkAllValuesGraphShape(t *testing.T) {
	dep := New(nil, nil)

	// Model: t flows from s through cell m (a store/load pair), and s flows
	// from r through cell n.
	r := dep.getNewVersionedValue(&fakeValue{"r"}, sym("r"))
	s := dep.getNewVersionedValue(&fakeValue{"s"}, sym("s"))
	tt := dep.getNewVersionedValue(&fakeValue{"t"}, sym("t"))
	m := alloc("m", 1)
	n := alloc("n", 2)
	dep.allocations = append(dep.allocations, m, n)
	dep.addDependencyViaAllocation(s, tt, m)
	dep.addDependencyViaAllocation(r, s, n)

	g := NewAllocationGraph()
	dep.MarkAllValues(g, tt)

	// m seeds the sink, n is its ancestor.
	sinks := g.SinkAllocations()
	if len(sinks) != 1 || !sinks[m] {
		t.Fatalf("sinks are %v, want only m", sinks)
	}
	mn := g.nodeOf(n)
	if mn == nil || mn.level != 1 {
		t.Fatal("ancestor allocation missing from the graph")
	}

	// Everything on the flow is core.
	for _, vv := range []*VersionedValue{r, s, tt} {
		if !vv.IsCore() {
			t.Errorf("%s not core", vv)
		}
	}
	// Invariant: every core sink has the core bit set.
	for a := range sinks {
		if !a.IsCore() {
			t.Errorf("sink %s lacks the core bit", a)
		}
	}

	// The node's own allocations dominate: the sink m is the core set.
	dep.ComputeCoreAllocations(g)
	if len(dep.coreAllocations) != 1 || !dep.coreAllocations[m] {
		t.Errorf("core allocations are %v, want only m", dep.coreAllocations)
	}
}

func TestDirectAllocationSourcesLocality(t *testing.T) {
	parent := New(nil, nil)
	child := New(nil, parent)

	target := parent.getNewVersionedValue(&fakeValue{"t"}, sym("t"))
	s := parent.getNewVersionedValue(&fakeValue{"s"}, sym("s"))
	m := alloc("m", 1)
	parent.allocations = append(parent.allocations, m)
	parent.addDependencyViaAllocation(s, target, m)

	u := child.getNewVersionedValue(&fakeValue{"u"}, sym("u"))
	child.addDependency(u, target)

	if got := child.directLocalAllocationSources(target); len(got) != 1 || got[0].value != u {
		t.Errorf("local sources are %v, want only the child edge", got)
	}
	if got := child.directAllocationSources(target); len(got) != 2 {
		t.Errorf("chain sources are %v, want both edges", got)
	}
}

func TestComputeCoreAllocationsAcrossChain(t *testing.T) {
	parent := New(nil, nil)
	child := New(nil, parent)

	mp := alloc("mp", 1)
	mc := alloc("mc", 2)
	parent.allocations = append(parent.allocations, mp)
	child.allocations = append(child.allocations, mc)

	g := NewAllocationGraph()
	g.AddNewSink(mc)
	g.AddNewEdge(mp, mc)

	child.ComputeCoreAllocations(g)

	// The child captures its own sink; consuming it surfaces the parent's
	// allocation as a sink for the ancestor walk.
	if len(child.coreAllocations) != 1 || !child.coreAllocations[mc] {
		t.Errorf("child core set is %v, want only mc", child.coreAllocations)
	}
	if len(parent.coreAllocations) != 1 || !parent.coreAllocations[mp] {
		t.Errorf("parent core set is %v, want only mp", parent.coreAllocations)
	}
}
