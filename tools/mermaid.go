/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tools

import (
	"fmt"
	"io"
	"strings"

	. "github.com/Comcast/uimachine/core"
)

type MermaidOpts struct {
	// ShowGuards adds each transition's guard to its label.
	ShowGuards bool `json:"showGuards"`

	// ShowActions adds each transition's actions to its label.
	ShowActions bool `json:"showActions"`

	// FinalFill is the fill color of final nodes.
	FinalFill string `json:"finalFill,omitempty"`

	// CurrentFill is the fill color of the toNode given to
	// Mermaid.
	CurrentFill string `json:"currentFill,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given graph.
func Mermaid(spec *Spec, w io.Writer, opts *MermaidOpts, fromNode, toNode string) error {

	if opts == nil {
		opts = &MermaidOpts{
			ShowGuards:  true,
			FinalFill:   "#bcf2db",
			CurrentFill: "#f98b8b",
		}
	}

	fmt.Fprintf(w, "graph TB\n")

	nids := make(map[string]string)
	num := 0

	node := func(name string) string {
		if nid, already := nids[name]; already {
			return nid
		}
		num++
		nid := fmt.Sprintf("n%d", num)
		nids[name] = nid

		n := spec.Nodes[name]
		switch {
		case name == globalNode:
			fmt.Fprintf(w, "  %s((\"*\"))\n", nid)
		case n != nil && n.Final():
			fmt.Fprintf(w, "  %s([\"%s\"])\n", nid, name)
			if opts.FinalFill != "" {
				fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.FinalFill)
			}
		default:
			fmt.Fprintf(w, "  %s(\"%s\")\n", nid, name)
		}
		if name == toNode && opts.CurrentFill != "" {
			fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.CurrentFill)
		}

		return nid
	}

	for _, name := range order(spec) {
		node(name)
	}

	for _, e := range edges(spec) {
		from := e.From
		if e.Global {
			from = globalNode
		}
		to := e.To
		if to == "" {
			to = from
		}

		label := e.Event
		if opts.ShowGuards && e.Transition.Guard != nil {
			label += " [" + e.Transition.Guard.String() + "]"
		}
		if opts.ShowActions && 0 < len(e.Transition.Actions) {
			label += " / " + strings.Join(e.Transition.Actions, ", ")
		}
		label = strings.Replace(label, `"`, `'`, -1)

		open, arrow := "--", "-->"
		if fromNode != "" && fromNode == e.From && toNode == e.To {
			open, arrow = "==", "==>"
		}

		fmt.Fprintf(w, "  %s %s \"%s\" %s %s\n", node(from), open, label, arrow, node(to))
	}

	fmt.Fprintf(w, "\n")

	return nil
}
