package tools

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderSpecHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSpecHTML(lintSpec(t), &buf); err != nil {
		t.Fatal(err)
	}
	s := buf.String()

	for _, want := range []string{
		"<em>problems</em>",
		`<span id="idle" class="nodeName">idle</span>`,
		"<code>and(isReady, not(isBusy))</code>",
		`<a href="#busy"><code>busy</code></a>`,
		"after:patience",
		`<span class="nodeType">final</span>`,
		`<div class="global">`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in\n%s", want, s)
		}
	}
}

func TestReadAndRenderSpecPage(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "lint.yaml")
	if err := os.WriteFile(filename, []byte(lintSrc), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := ReadAndRenderSpecPage(filename, []string{"spec.css"}, &buf, true); err != nil {
		t.Fatal(err)
	}
	s := buf.String()

	for _, want := range []string{
		"<title>lint</title>",
		`<link href="spec.css" rel="stylesheet">`,
		`<div id="graph" class="mermaid">`,
		"graph TB",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in\n%s", want, s)
		}
	}
}
