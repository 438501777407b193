package dot

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"
)

// DotAttrs maps dot attribute names to values.
type DotAttrs map[string]string

func (a DotAttrs) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, a[k]))
	}
	return strings.Join(parts, " ")
}

type DotNode struct {
	ID    string
	Attrs DotAttrs
}

func (n *DotNode) String() string {
	return n.ID
}

type DotEdge struct {
	From  *DotNode
	To    *DotNode
	Attrs DotAttrs
}

type DotGraph struct {
	Title   string
	Options map[string]string
	Nodes   []*DotNode
	Edges   []*DotEdge
}

// String renders the graph in dot syntax. Nodes and edges are emitted in
// insertion order so the output is deterministic.
func (g *DotGraph) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "digraph %q {\n", g.Title)
	fmt.Fprintf(&b, "\tlabel=%q;\n", g.Title)

	keys := make([]string, 0, len(g.Options))
	for k := range g.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\t%s=%q;\n", k, g.Options[k])
	}

	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "\t%q [ %s ]\n", n.ID, n.Attrs)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "\t%q -> %q [ %s ]\n", e.From.ID, e.To.ID, e.Attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

// DotToImage renders the given dot source to an image file, returning the
// path of the generated file.
func DotToImage(outfname string, format string, dot []byte) (string, error) {
	g := graphviz.New()
	graph, err := graphviz.ParseBytes(dot)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := graph.Close(); err != nil {
			log.Fatal(err)
		}
		g.Close()
	}()

	var img string
	if outfname == "" {
		img = filepath.Join(os.TempDir(), fmt.Sprintf("weft-export.%s", format))
	} else {
		img = fmt.Sprintf("%s.%s", outfname, format)
	}
	if err := g.RenderFilename(graph, graphviz.Format(format), img); err != nil {
		return "", err
	}
	return img, nil
}
