package dependency

import (
	"fmt"

	"github.com/veriweft/weft/utils/dot"
)

// plainLabel renders an allocation without color escapes, for dot output.
func plainLabel(a Allocation) string {
	site := "unknown"
	if a.Site() != nil {
		site = a.Site().Name()
	}
	if _, ok := a.(*EnvironmentAllocation); ok {
		site = "environ " + site
	}
	return fmt.Sprintf("%s @ %s", site, a.Address())
}

// DotGraph builds the dot representation of the allocation graph. Nodes and
// edges follow insertion order, so the output is deterministic.
func (g *AllocationGraph) DotGraph(title string) *dot.DotGraph {
	dg := &dot.DotGraph{
		Title:   title,
		Options: map[string]string{"rankdir": "BT"},
	}

	nodes := make(map[*allocationNode]*dot.DotNode, len(g.nodes))
	for i, n := range g.nodes {
		attrs := dot.DotAttrs{
			"label": fmt.Sprintf("%s\nlevel %d", plainLabel(n.alloc), n.level),
		}
		if g.hasSink(n.alloc) {
			attrs["style"] = "filled"
			attrs["fillcolor"] = "honeydew"
		}
		dn := &dot.DotNode{ID: fmt.Sprintf("a%d", i), Attrs: attrs}
		nodes[n] = dn
		dg.Nodes = append(dg.Nodes, dn)
	}

	for _, n := range g.nodes {
		for _, p := range n.parents {
			dg.Edges = append(dg.Edges, &dot.DotEdge{
				From:  nodes[n],
				To:    nodes[p],
				Attrs: dot.DotAttrs{},
			})
		}
	}

	return dg
}

// Visualize renders the allocation graph to an image file next to the given
// path prefix and returns the generated file name.
func (g *AllocationGraph) Visualize(outfname string, format string) (string, error) {
	return dot.DotToImage(outfname, format, []byte(g.DotGraph("allocation-graph").String()))
}
