package monitor

import "testing"

func TestMergeByKey(t *testing.T) {
	type item struct{ name string }

	left := []item{{"a"}, {"c"}, {"e"}}
	right := []string{"b", "c", "d"}

	steps := mergeByKey(left, right,
		func(i item) string { return i.name },
		func(s string) string { return s })

	want := []struct {
		side mergeSide
		key  string
	}{
		{onlyInLeft, "a"},
		{onlyInRight, "b"},
		{inBoth, "c"},
		{onlyInRight, "d"},
		{onlyInLeft, "e"},
	}

	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i, w := range want {
		got := steps[i]
		if got.Side != w.side {
			t.Errorf("step %d: side = %v, want %v", i, got.Side, w.side)
		}
		switch w.side {
		case onlyInLeft:
			if got.Left.name != w.key {
				t.Errorf("step %d: left.name = %q, want %q", i, got.Left.name, w.key)
			}
		case onlyInRight:
			if got.Right != w.key {
				t.Errorf("step %d: right = %q, want %q", i, got.Right, w.key)
			}
		case inBoth:
			if got.Left.name != w.key || got.Right != w.key {
				t.Errorf("step %d: left/right = %q/%q, want %q", i, got.Left.name, got.Right, w.key)
			}
		}
	}
}

func TestMergeByKeyEmptySides(t *testing.T) {
	steps := mergeByKey[string, string, string](nil, []string{"a", "b"},
		func(s string) string { return s },
		func(s string) string { return s })
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	for _, s := range steps {
		if s.Side != onlyInRight {
			t.Errorf("got side %v, want onlyInRight", s.Side)
		}
	}

	steps = mergeByKey[string, string, string]([]string{"a", "b"}, nil,
		func(s string) string { return s },
		func(s string) string { return s })
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	for _, s := range steps {
		if s.Side != onlyInLeft {
			t.Errorf("got side %v, want onlyInLeft", s.Side)
		}
	}
}
