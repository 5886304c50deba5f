package core

import (
	"context"
	"testing"
)

func TestStateSnapshot(t *testing.T) {
	ctx := context.Background()
	spec, err := TurnstileSpec(ctx)
	if err != nil {
		t.Fatal(err)
	}
	spec.Computed = Names{"broke"}
	spec.Implementation().Computed["broke"] = func(bs Bindings) interface{} {
		n, _ := bs["coins"].(int)
		return n == 0
	}

	st := NewState(spec, "locked", Bindings{"coins": 0}, false)
	if !st.HasTag("closed") || st.HasTag("open") {
		t.Fatal(st.Tags)
	}
	if !st.Matches("unlocked", "locked") {
		t.Fatal(st.Value)
	}

	if v, ok := st.Computed("broke"); !ok || v != true {
		t.Fatal(v, ok)
	}

	cp := st.Copy()
	cp.Context["coins"] = 3
	if v, _ := st.Computed("broke"); v != true {
		t.Fatal("copy shared context")
	}
	if v, _ := cp.Computed("broke"); v != false {
		t.Fatal("computed is stale")
	}

	if d := cp.Derived(); d["broke"] != false {
		t.Fatal(d)
	}
}
