package core

import (
	"context"
	"strings"
	"testing"
)

func TestWatchChanged(t *testing.T) {
	var ran []string
	record := func(name string) ActionFunc {
		return func(ctx context.Context, bs Bindings, evt Event, meta *Meta) error {
			ran = append(ran, name+":"+evt.Type())
			return nil
		}
	}

	spec := &Spec{
		Initial: "idle",
		Nodes: map[string]*Node{
			"idle": {},
		},
		Computed: Names{"label"},
		Watch: []*Watch{
			{Field: "date", Equal: "sameDay", Actions: Names{"dateChanged"}},
			{Field: "items", Actions: Names{"itemsChanged"}},
			{Field: "label", Actions: Names{"labelChanged"}},
		},
	}

	impl := NewImplementation()
	impl.Actions["dateChanged"] = record("date")
	impl.Actions["itemsChanged"] = record("items")
	impl.Actions["labelChanged"] = record("label")
	impl.Equals["sameDay"] = func(a, b interface{}) bool {
		x, _ := a.(string)
		y, _ := b.(string)
		return len(x) >= 10 && len(y) >= 10 && x[:10] == y[:10]
	}
	impl.Computed["label"] = func(bs Bindings) interface{} {
		s, _ := bs["date"].(string)
		return strings.ToUpper(s)
	}
	if err := spec.Compile(context.Background(), impl, nil, false); err != nil {
		t.Fatal(err)
	}

	bs := Bindings{
		"date":  "2024-03-01T08:00",
		"items": []interface{}{"a"},
	}
	before, errs := spec.Capture(bs)
	if errs != nil {
		t.Fatal(errs)
	}

	// Same day, so "date" is unchanged, but the computed label
	// differs.  The slice is changed in place.
	bs["date"] = "2024-03-01T09:00"
	bs["items"].([]interface{})[0] = "b"
	after, _ := spec.Capture(bs)

	changed, errs := spec.Changed(before, after)
	if errs != nil {
		t.Fatal(errs)
	}
	if len(changed) != 2 || changed[0] != 1 || changed[1] != 2 {
		t.Fatal(changed)
	}

	meta := NewMeta("m", nil, nil, nil, nil)
	if errs := spec.RunWatches(context.Background(), changed, bs, NewEvent("SET"), meta); errs != nil {
		t.Fatal(errs)
	}
	if strings.Join(ran, ",") != "items:SET,label:SET" {
		t.Fatal(ran)
	}

	again, _ := spec.Capture(bs)
	if changed, _ := spec.Changed(after, again); len(changed) != 0 {
		t.Fatal(changed)
	}
}

func TestWatchPanics(t *testing.T) {
	spec := &Spec{
		Initial: "idle",
		Nodes: map[string]*Node{
			"idle": {},
		},
		Computed: Names{"label"},
		Watch: []*Watch{
			{Field: "label", Actions: Names{"noted"}},
			{Field: "date", Equal: "sameDay", Actions: Names{"noted"}},
			{Field: "n", Actions: Names{"noted"}},
		},
	}

	impl := NewImplementation()
	impl.Actions["noted"] = func(ctx context.Context, bs Bindings, evt Event, meta *Meta) error {
		return nil
	}
	impl.Computed["label"] = func(bs Bindings) interface{} {
		return bs["date"].(string)
	}
	impl.Equals["sameDay"] = func(a, b interface{}) bool {
		return a.(string)[:10] == b.(string)[:10]
	}
	if err := spec.Compile(context.Background(), impl, nil, false); err != nil {
		t.Fatal(err)
	}

	bs := Bindings{
		"date": 42,
		"n":    1,
	}
	before, errs := spec.Capture(bs)
	if len(errs) != 1 {
		t.Fatal(errs)
	}
	if we, is := errs[0].(*WatchError); !is || we.Field != "label" {
		t.Fatalf("%#v", errs[0])
	}

	bs["date"] = 43
	bs["n"] = 2
	after, _ := spec.Capture(bs)

	changed, errs := spec.Changed(before, after)
	if len(errs) != 1 {
		t.Fatal(errs)
	}
	if we, is := errs[0].(*WatchError); !is || we.Field != "date" {
		t.Fatalf("%#v", errs[0])
	}
	if len(changed) != 1 || changed[0] != 2 {
		t.Fatal(changed)
	}
}
