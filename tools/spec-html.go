package tools

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/Comcast/uimachine/core"

	md "github.com/russross/blackfriday/v2"
)

func names(ns core.Names) string {
	return html.EscapeString(strings.Join(ns, ", "))
}

// RenderSpecHTML writes an HTML fragment documenting the spec.  Doc
// fields are Markdown.
func RenderSpecHTML(s *core.Spec, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="specDoc doc">%s</div>`, md.Run([]byte(s.Doc)))

	{ // Root
		f(`<div class="root"><table>`)
		row := func(label string, ns core.Names) {
			if 0 < len(ns) {
				f(`<tr><td>%s</td><td><code>%s</code></td></tr>`, label, names(ns))
			}
		}
		f(`<tr><td>initial</td><td><a href="#%s"><code>%s</code></a></td></tr>`,
			html.EscapeString(s.Initial), html.EscapeString(s.Initial))
		row("created", s.Created)
		row("entry", s.Entry)
		row("exit", s.Exit)
		row("activities", s.Activities)
		row("computed", s.Computed)
		for _, w := range s.Watch {
			if w != nil {
				f(`<tr><td>watch <code>%s</code></td><td><code>%s</code></td></tr>`,
					html.EscapeString(w.Field), names(w.Actions))
			}
		}
		f(`</table></div>`)
	}

	transitions := func(label string, ts core.Transitions) {
		for i, t := range ts {
			if t == nil {
				continue
			}
			f(`<tr><td><div class="event">%s</div></td><td><div class="transitionNum">%d</div></td><td>`,
				html.EscapeString(label), i)
			f(`<table>`)
			if t.Guard != nil {
				f(`<tr><td>guard</td><td><code>%s</code></td></tr>`, html.EscapeString(t.Guard.String()))
			}
			if t.Target != "" {
				f(`<tr><td>target</td><td><a href="#%s"><code>%s</code></a></td></tr>`,
					html.EscapeString(t.Target), html.EscapeString(t.Target))
			}
			if 0 < len(t.Actions) {
				f(`<tr><td>actions</td><td><code>%s</code></td></tr>`, names(t.Actions))
			}
			f(`</table>`)
			f(`</td></tr>`)
		}
	}

	{ // Nodes
		f(`<div class="nodes"><table>`)
		for _, id := range order(s) {
			node := s.Nodes[id]
			if node == nil {
				continue
			}
			f(`<tr class="node"><td><span id="%s" class="nodeName">%s</span></td><td>`,
				html.EscapeString(id), html.EscapeString(id))

			if node.Doc != "" {
				f(`<div class="nodeDoc doc">%s</div>`, md.Run([]byte(node.Doc)))
			}
			if node.Final() {
				f(`<div>type: <span class="nodeType">final</span></div>`)
			}
			if 0 < len(node.Tags) {
				f(`<div>tags: <span class="tags">%s</span></div>`, names(node.Tags))
			}
			if 0 < len(node.Entry) {
				f(`<div>entry: <code>%s</code></div>`, names(node.Entry))
			}
			if 0 < len(node.Exit) {
				f(`<div>exit: <code>%s</code></div>`, names(node.Exit))
			}
			if 0 < len(node.Activities) {
				f(`<div>activities: <code>%s</code></div>`, names(node.Activities))
			}
			if 0 < len(node.On) || 0 < len(node.After) {
				f(`<div class="transitions">`)
				f(`<table>`)
				for _, evt := range node.EventTypes() {
					transitions(evt, node.On[evt])
				}
				for _, key := range node.AfterKeys() {
					transitions(core.AfterPrefix+key, node.After[key])
				}
				f(`</table>`)
				f(`</div>`)
			}
			f(`</td></tr>`)
		}
		f(`</table></div>`)
	}

	if 0 < len(s.On) {
		f(`<div class="global"><table>`)
		for _, evt := range globalEvents(s) {
			transitions(evt, s.On[evt])
		}
		f(`</table></div>`)
	}

	return nil
}

func RenderSpecPage(s *core.Spec, out io.Writer, cssFiles []string, includeGraph bool) error {

	if cssFiles == nil {
		cssFiles = []string{"/static/spec-html.css"}
	}

	js, err := json.Marshal(s)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, html.EscapeString(s.Name))

	if includeGraph {
		fmt.Fprintf(out, `
  <script src="https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.min.js"></script>
  <script>
  var thisSpec = %s;
  mermaid.initialize({startOnLoad: true});
  </script>
`, js)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, html.EscapeString(s.Name))

	if includeGraph {
		fmt.Fprintf(out, `<div id="graph" class="mermaid">`+"\n")
		var buf strings.Builder
		if err = Mermaid(s, &buf, nil, "", ""); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s</div>\n", html.EscapeString(buf.String()))
	}

	if err = RenderSpecHTML(s, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadAndRenderSpecPage parses the YAML or JSON spec in the file and
// calls RenderSpecPage.  The spec isn't compiled.
func ReadAndRenderSpecPage(filename string, cssFiles []string, out io.Writer, includeGraph bool) error {
	specSrc, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	spec, err := core.ParseSpec(specSrc)
	if err != nil {
		return err
	}
	return RenderSpecPage(spec, out, cssFiles, includeGraph)
}
