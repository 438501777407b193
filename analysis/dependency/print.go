package dependency

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/veriweft/weft/utils/indenter"
)

// colorize is used for pretty-printing.
var colorize = struct {
	Site  func(...interface{}) string
	Addr  func(...interface{}) string
	Value func(...interface{}) string
	Core  func(...interface{}) string
}{
	Site:  color.New(color.FgHiGreen).SprintFunc(),
	Addr:  color.New(color.FgHiCyan).SprintFunc(),
	Value: color.New(color.FgHiYellow).SprintFunc(),
	Core:  color.New(color.FgHiRed).SprintFunc(),
}

// makeTabs renders the indentation prefix for the given chain depth.
func makeTabs(tabNum int) string {
	return strings.Repeat("\t", tabNum)
}

func siteName(a *allocation) string {
	if a.site == nil {
		return "unknown"
	}
	return a.site.Name()
}

func (a *VersionedAllocation) String() string {
	core := ""
	if a.core {
		core = colorize.Core("!")
	}
	return fmt.Sprintf("‹%s%s @ %s›", core, colorize.Site(siteName(&a.allocation)), colorize.Addr(a.address))
}

func (a *EnvironmentAllocation) String() string {
	core := ""
	if a.core {
		core = colorize.Core("!")
	}
	return fmt.Sprintf("‹%senviron %s @ %s›", core, colorize.Site(siteName(&a.allocation)), colorize.Addr(a.address))
}

func (vv *VersionedValue) String() string {
	core := ""
	if vv.core {
		core = colorize.Core("!")
	}
	name := "environment"
	if vv.value != nil {
		name = vv.value.Name()
	}
	return fmt.Sprintf("‹%s%s = %s›", core, colorize.Site(name), colorize.Value(vv.expr))
}

func (pe *PointerEquality) String() string {
	return fmt.Sprintf("%s == %s", pe.value, pe.alloc)
}

func (ft *FlowsTo) String() string {
	if ft.via != nil {
		return fmt.Sprintf("%s -> %s via %s", ft.source, ft.target, ft.via)
	}
	return fmt.Sprintf("%s -> %s", ft.source, ft.target)
}

// String renders the relations of this node only.
func (dep *Dependency) String() string {
	section := func(title string, lines []string) func() string {
		return func() string {
			if len(lines) == 0 {
				return title + " (none)"
			}
			return indenter.Start(title).NestStrings(lines...).End("")
		}
	}

	var eqs, sts, fls []string
	for _, eq := range dep.equalities {
		eqs = append(eqs, eq.String())
	}
	for _, a := range dep.storesOrder {
		sts = append(sts, fmt.Sprintf("%s <- %s", a, dep.stores[a]))
	}
	for _, ft := range dep.flows {
		fls = append(fls, ft.String())
	}

	return indenter.Start("dependency node").NestThunked(
		section("equalities:", eqs),
		section("stores:", sts),
		section("flows:", fls),
	).End("")
}

// Print writes the diagnostic rendition of the chain to the stream, the
// current node first and each ancestor one tab deeper.
func (dep *Dependency) Print(w io.Writer) {
	dep.print(w, 0)
}

func (dep *Dependency) print(w io.Writer, tabNum int) {
	tabs := makeTabs(tabNum)
	for _, line := range strings.Split(dep.String(), "\n") {
		fmt.Fprintf(w, "%s%s\n", tabs, line)
	}
	if dep.parent != nil {
		fmt.Fprintf(w, "%s--- parent ---\n", tabs)
		dep.parent.print(w, tabNum+1)
	}
}

// Print writes the graph to the stream: each sink followed by its ancestor
// tree, one tab deeper per level. A shared ancestor's line appears at each
// occurrence; its own ancestors are printed only under the first one.
func (g *AllocationGraph) Print(w io.Writer) {
	printed := make(map[*allocationNode]bool)
	for _, s := range g.sinks {
		g.printNode(w, s, printed, 0)
	}
}

func (g *AllocationGraph) printNode(w io.Writer, n *allocationNode, printed map[*allocationNode]bool, tabNum int) {
	fmt.Fprintf(w, "%s%s (level %d)\n", makeTabs(tabNum), n.alloc, n.level)
	if printed[n] {
		return
	}
	printed[n] = true
	for _, p := range n.parents {
		g.printNode(w, p, printed, tabNum+1)
	}
}
