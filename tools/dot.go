package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"html"
	"io"
	"strings"

	. "github.com/Comcast/uimachine/core"

	"gopkg.in/yaml.v2"
)

// globalNode is the name used for the source of global transitions.
const globalNode = "*"

// Dot writes a Graphviz dot file for the given machine.
//
// The optional fromNode and toNode can be names of nodes during a
// transition.  If non-zero, then the edge between them will be red,
// and the toNode will be red.
func Dot(spec *Spec, w io.Writer, fromNode, toNode string) error {
	p := func(format string, args ...interface{}) {
		fmt.Fprintf(w, format, args...)
	}

	p("digraph G {\n")
	p(`  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	for _, name := range order(spec) {
		n := spec.Nodes[name]
		if n == nil {
			continue
		}
		label := html.EscapeString(name)
		if 0 < len(n.Tags) {
			label += `<BR/><FONT POINT-SIZE="8">` + html.EscapeString(strings.Join(n.Tags, ", ")) + `</FONT>`
		}
		if n.Doc != "" {
			doc := n.Doc
			if 40 < len(doc) {
				period := strings.Index(doc, ". ")
				if 0 < period {
					doc = doc[0 : period+1]
				}
			}
			label += `<BR/><FONT POINT-SIZE="8">` + html.EscapeString(doc) + `</FONT>`
		}
		if 0 < len(n.Activities) {
			label += `<BR/><FONT POINT-SIZE="8"><I>` + html.EscapeString(strings.Join(n.Activities, ", ")) + `</I></FONT>`
		}

		var (
			fillcolor = "#99ddc8"
			color     = "black"
			style     = "rounded,filled"
		)
		if name == spec.Initial {
			style += ",bold"
		}
		if n.Final() {
			fillcolor = "#52aa5e"
			style += ",dashed"
		}
		if toNode == name {
			color = "red"
			fillcolor = "#f98b8b"
		}
		p("  %q [style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			name, style, color, fillcolor, label)
	}

	es := edges(spec)
	for _, e := range es {
		if e.Global {
			p("  %q [shape=\"circle\", style=\"dotted\", label=\"*\"]\n", globalNode)
			break
		}
	}

	for _, e := range es {
		from, to := e.From, e.To
		if e.Global {
			from = globalNode
		}
		if to == "" {
			to = from
		}

		label := html.EscapeString(e.Event)
		if 1 < e.Count {
			label = fmt.Sprintf("%d/%d %s", e.Index+1, e.Count, label)
		}
		if g := e.Transition.Guard; g != nil {
			label += `<FONT POINT-SIZE="8"><BR ALIGN="LEFT"/>` + guardLabel(g) + `</FONT>`
		}
		if as := e.Transition.Actions; 0 < len(as) {
			label += `<FONT POINT-SIZE="8"><BR ALIGN="LEFT"/>/ ` + html.EscapeString(strings.Join(as, ", ")) + `</FONT>`
		}

		var (
			color = "black"
			style = "solid"
		)
		if fromNode == e.From && toNode == e.To && toNode != "" {
			color = "red"
		}
		if e.To == "" {
			style = "dashed"
		}

		p("  %q -> %q [ color=\"%s\" style=\"%s\" label = <%s> ]\n",
			from, to, color, style, label)
	}

	p("}\n")
	return nil
}

// guardLabel renders a guard as YAML, which reads well for
// composites.
func guardLabel(g *GuardRef) string {
	if g.Leaf() {
		return "[" + html.EscapeString(g.Name) + "]"
	}
	bs, err := yaml.Marshal(g)
	if err != nil {
		return html.EscapeString(err.Error())
	}
	s := html.EscapeString(strings.TrimSpace(string(bs)))
	return strings.Replace(s, "\n", `<BR ALIGN="LEFT"/>`, -1)
}
