package configtree_test

import (
	"errors"
	"testing"

	"github.com/adamwoolhether/paysdk/configtree"
	"github.com/google/go-cmp/cmp"
)

func TestMerge(t *testing.T) {
	testCases := map[string]struct {
		base       configtree.Tree
		overlay    configtree.Tree
		appendOnly bool
		exp        configtree.Tree
	}{
		"nestedHeaders": {
			base:    configtree.Tree{"headers": configtree.Tree{"a": "1"}},
			overlay: configtree.Tree{"headers": configtree.Tree{"b": "2"}},
			exp:     configtree.Tree{"headers": configtree.Tree{"a": "1", "b": "2"}},
		},
		"scalarOverwrite": {
			base:    configtree.Tree{"mode": "sandbox", "port": 443},
			overlay: configtree.Tree{"mode": "live"},
			exp:     configtree.Tree{"mode": "live", "port": 443},
		},
		"scalarAppendOnly": {
			base:       configtree.Tree{"mode": "sandbox"},
			overlay:    configtree.Tree{"mode": "live", "port": 8443},
			appendOnly: true,
			exp:        configtree.Tree{"mode": "sandbox", "port": 8443},
		},
		"scalarReplacesMapping": {
			base:    configtree.Tree{"x": configtree.Tree{"n": 1}},
			overlay: configtree.Tree{"x": 5},
			exp:     configtree.Tree{"x": 5},
		},
		"mappingReplacesScalar": {
			base:    configtree.Tree{"x": 5},
			overlay: configtree.Tree{"x": configtree.Tree{"n": 1}},
			exp:     configtree.Tree{"x": configtree.Tree{"n": 1}},
		},
		"nilOverwritesMapping": {
			base:    configtree.Tree{"x": configtree.Tree{"n": 1}},
			overlay: configtree.Tree{"x": nil},
			exp:     configtree.Tree{"x": nil},
		},
		"slicesReplacedWholesale": {
			base:    configtree.Tree{"scopes": []any{"a", "b", "c"}},
			overlay: configtree.Tree{"scopes": []any{"z"}},
			exp:     configtree.Tree{"scopes": []any{"z"}},
		},
		"appendOnlyDoesNotDescend": {
			base:       configtree.Tree{"headers": configtree.Tree{"a": "1"}},
			overlay:    configtree.Tree{"headers": configtree.Tree{"a": "2", "b": "2"}},
			appendOnly: true,
			exp:        configtree.Tree{"headers": configtree.Tree{"a": "1"}},
		},
		"nestedMergeIgnoresAppendOnly": {
			base: configtree.Tree{
				"opts": configtree.Tree{"deep": configtree.Tree{"a": "1"}},
			},
			overlay: configtree.Tree{
				"new":  "v",
				"opts": configtree.Tree{"deep": configtree.Tree{"a": "2"}},
			},
			exp: configtree.Tree{
				"new":  "v",
				"opts": configtree.Tree{"deep": configtree.Tree{"a": "2"}},
			},
		},
		"emptyOverlay": {
			base:    configtree.Tree{"a": 1},
			overlay: configtree.Tree{},
			exp:     configtree.Tree{"a": 1},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var opts []configtree.MergeOption
			if tc.appendOnly {
				opts = append(opts, configtree.AppendOnly())
			}

			got, err := configtree.Merge(tc.base, tc.overlay, opts...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("merge mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.exp, tc.base); diff != "" {
				t.Errorf("base not merged in place (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_InvalidArguments(t *testing.T) {
	var nilTree configtree.Tree

	testCases := map[string]struct {
		base    any
		overlay any
		err     error
	}{
		"overlaySlice":  {base: configtree.Tree{}, overlay: []any{}, err: configtree.ErrSequence},
		"baseSlice":     {base: []any{}, overlay: configtree.Tree{}, err: configtree.ErrSequence},
		"baseArray":     {base: [2]int{}, overlay: configtree.Tree{}, err: configtree.ErrSequence},
		"baseNil":       {base: nil, overlay: configtree.Tree{}, err: configtree.ErrNotMapping},
		"overlayNil":    {base: configtree.Tree{}, overlay: nil, err: configtree.ErrNotMapping},
		"typedNil":      {base: nilTree, overlay: configtree.Tree{}, err: configtree.ErrNotMapping},
		"baseScalar":    {base: "sandbox", overlay: configtree.Tree{}, err: configtree.ErrNotMapping},
		"overlayScalar": {base: configtree.Tree{}, overlay: 42, err: configtree.ErrNotMapping},
		"intKeys":       {base: configtree.Tree{}, overlay: map[int]string{1: "a"}, err: configtree.ErrNotMapping},
		"typedNilMap":   {base: map[string]string(nil), overlay: configtree.Tree{}, err: configtree.ErrNotMapping},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := configtree.Merge(tc.base, tc.overlay)
			if !errors.Is(err, tc.err) {
				t.Errorf("exp err: %v, got: %v", tc.err, err)
			}
		})
	}
}

func TestMerge_TypedMaps(t *testing.T) {
	testCases := map[string]struct {
		base    any
		overlay any
		exp     configtree.Tree
	}{
		"nestedBothTyped": {
			base:    configtree.Tree{"h": map[string]string{"a": "1"}},
			overlay: configtree.Tree{"h": map[string]string{"b": "2"}},
			exp:     configtree.Tree{"h": configtree.Tree{"a": "1", "b": "2"}},
		},
		"typedOverlayIntoTree": {
			base:    configtree.Tree{"headers": configtree.Tree{"Accept": "application/json"}},
			overlay: configtree.Tree{"headers": map[string]string{"X-Trace": "1"}},
			exp:     configtree.Tree{"headers": configtree.Tree{"Accept": "application/json", "X-Trace": "1"}},
		},
		"typedOverlayWinsOnLeaf": {
			base:    configtree.Tree{"headers": configtree.Tree{"Accept": "application/json"}},
			overlay: configtree.Tree{"headers": map[string]string{"Accept": "text/plain"}},
			exp:     configtree.Tree{"headers": configtree.Tree{"Accept": "text/plain"}},
		},
		"typedTopLevel": {
			base:    map[string]string{"mode": "sandbox"},
			overlay: map[string]int{"port": 8443},
			exp:     configtree.Tree{"mode": "sandbox", "port": 8443},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := configtree.Merge(tc.base, tc.overlay)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("merge mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	x := configtree.Tree{
		"mode":    "live",
		"port":    443,
		"headers": configtree.Tree{"Accept": "application/json"},
		"scopes":  []any{"openid", configtree.Tree{"nested": true}},
		"none":    nil,
	}

	base, err := configtree.CloneTree(x)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}

	got, err := configtree.Merge(base, x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(x, got); diff != "" {
		t.Errorf("merge(clone(x), x) != x (-want +got):\n%s", diff)
	}
}

func TestMerge_DeepCopiesOverlay(t *testing.T) {
	nested := configtree.Tree{"a": "1"}
	list := []any{"x"}
	overlay := configtree.Tree{"headers": nested, "list": list}

	base, err := configtree.Merge(configtree.Tree{}, overlay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nested["a"] = "mutated"
	nested["b"] = "added"
	list[0] = "mutated"

	exp := configtree.Tree{
		"headers": configtree.Tree{"a": "1"},
		"list":    []any{"x"},
	}
	if diff := cmp.Diff(exp, base); diff != "" {
		t.Errorf("base shares state with overlay (-want +got):\n%s", diff)
	}
}

func TestMerge_RejectsCycles(t *testing.T) {
	cyclic := configtree.Tree{"name": "loop"}
	cyclic["self"] = cyclic

	base := configtree.Tree{"keep": true}
	_, err := configtree.Merge(base, configtree.Tree{"c": cyclic})
	if !errors.Is(err, configtree.ErrCycle) {
		t.Fatalf("exp err: %v, got: %v", configtree.ErrCycle, err)
	}

	if diff := cmp.Diff(configtree.Tree{"keep": true}, base); diff != "" {
		t.Errorf("base modified on failure (-want +got):\n%s", diff)
	}
}

func TestMerge_SharedSubtreeIsNotACycle(t *testing.T) {
	shared := configtree.Tree{"v": 1}
	overlay := configtree.Tree{"a": shared, "b": shared}

	got, err := configtree.Merge(configtree.Tree{}, overlay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exp := configtree.Tree{"a": configtree.Tree{"v": 1}, "b": configtree.Tree{"v": 1}}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestClone(t *testing.T) {
	orig := configtree.Tree{"a": []any{configtree.Tree{"b": "c"}}}

	cpy, err := configtree.CloneTree(orig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cpy["a"].([]any)[0].(configtree.Tree)["b"] = "changed"

	if orig["a"].([]any)[0].(configtree.Tree)["b"] != "c" {
		t.Error("clone shares nested state with original")
	}

	if v, err := configtree.Clone(nil); v != nil || err != nil {
		t.Errorf("expected nil clone of nil, got %v, %v", v, err)
	}
}
