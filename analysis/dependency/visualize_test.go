package dependency

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

func TestAllocationGraphDot(t *testing.T) {
	g := NewAllocationGraph()
	m1, m2, m3 := alloc("m1", 1), alloc("m2", 2), alloc("m3", 3)

	g.AddNewSink(m1)
	g.AddNewEdge(m2, m1)
	g.AddNewEdge(m3, m1)

	gold := goldie.New(t)
	gold.Assert(t, "allocation-graph", []byte(g.DotGraph("alloc").String()))
}
