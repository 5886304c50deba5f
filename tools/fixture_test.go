package tools

import (
	"context"
	"testing"

	"github.com/Comcast/uimachine/core"
)

// lintSrc has a few things for Analyze to complain about.
const lintSrc = `
name: lint
doc: |
  A spec with *problems*.
initial: idle
states:
  idle:
    tags: [waiting]
    on:
      GO:
        - target: busy
          actions: [start]
        - target: idle
      STOP:
        guard:
          and: [isReady, {not: isBusy}]
        target: done
  busy:
    doc: Doing things.
    activities: [spin]
    after:
      "100": idle
      patience: nowhere
  orphan:
    entry: [hello]
  stuck: {}
  done:
    type: final
on:
  RESET:
    target: idle
    actions: [clear]
`

func lintSpec(t *testing.T) *core.Spec {
	spec, err := core.ParseSpec([]byte(lintSrc))
	if err != nil {
		t.Fatal(err)
	}
	return spec
}

func turnstile(t *testing.T) *core.Spec {
	spec, err := core.TurnstileSpec(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return spec
}
