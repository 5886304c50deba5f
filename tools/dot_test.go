package tools

import (
	"bytes"
	"strings"
	"testing"
)

func TestDot(t *testing.T) {
	var buf bytes.Buffer
	if err := Dot(turnstile(t), &buf, "locked", "unlocked"); err != nil {
		t.Fatal(err)
	}
	s := buf.String()

	for _, want := range []string{
		"digraph G {",
		`"locked" -> "unlocked" [ color="red"`,
		`"unlocked" -> "locked"`,
		"after:timeout",
		// Internal transitions loop back dashed.
		`"unlocked" -> "unlocked" [ color="black" style="dashed"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in\n%s", want, s)
		}
	}
	if !strings.HasSuffix(s, "}\n") {
		t.Fatal(s)
	}
}

func TestDotGuards(t *testing.T) {
	var buf bytes.Buffer
	if err := Dot(lintSpec(t), &buf, "", ""); err != nil {
		t.Fatal(err)
	}
	s := buf.String()

	for _, want := range []string{
		`"*" [shape="circle"`,
		`"*" -> "idle"`,
		"1/2 GO",
		"isReady",
		"isBusy",
		"/ start",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in\n%s", want, s)
		}
	}
}
