// Package configtree layers nested configuration mappings on top of
// each other.
//
// A [Tree] is a map[string]any, the shape produced by decoding JSON or
// YAML into an untyped value. Any other map with string keys, such as a
// map[string]string of headers, is a mapping too and is merged key by
// key. Slices are opaque leaves; they are replaced wholesale, never
// merged element by element.
package configtree

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mitchellh/copystructure"
)

var (
	ErrNotMapping = errors.New("merge argument must be a mapping")
	ErrSequence   = errors.New("merge is unsupported for sequences")
	ErrCycle      = errors.New("value references itself")
)

// Tree is a nested configuration mapping.
type Tree = map[string]any

// MergeOption is a functional option for [Merge].
type MergeOption func(opts *mergeOpts)

type mergeOpts struct {
	appendOnly bool
}

// AppendOnly leaves keys already present in base untouched; only
// keys base lacks are copied over. It applies to the top level only,
// nested mappings under a colliding key are never visited.
func AppendOnly() MergeOption {
	return func(opts *mergeOpts) {
		opts.appendOnly = true
	}
}

// Merge copies overlay into base and returns base.
//
// Keys missing from base receive a deep clone of the overlay value.
// Colliding keys whose values are both mappings are merged recursively,
// with the overlay winning on leaf conflicts; any other collision is
// resolved by replacing the base value with a clone of the overlay's.
// With [AppendOnly], colliding keys are skipped.
//
// Both arguments must be non-nil mappings. A base that is not a Tree
// is copied into a new Tree, which is returned; the original is left
// as is. Nested mappings in base that are not Trees are replaced by
// merged Tree copies. Overlay values must be
// acyclic; a self-referencing overlay is rejected with [ErrCycle] before
// base is modified.
func Merge(base, overlay any, opts ...MergeOption) (Tree, error) {
	var settings mergeOpts
	for _, opt := range opts {
		opt(&settings)
	}

	b, err := asTree("base", base)
	if err != nil {
		return nil, err
	}
	o, err := asTree("overlay", overlay)
	if err != nil {
		return nil, err
	}

	if err := checkAcyclic(o); err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}

	if err := merge(b, o, settings.appendOnly); err != nil {
		return nil, err
	}

	return b, nil
}

func merge(base, overlay Tree, appendOnly bool) error {
	for k, ov := range overlay {
		bv, ok := base[k]
		if ok && appendOnly {
			continue
		}

		if ok {
			bTree, bIsTree := toTree(bv)
			oTree, oIsTree := toTree(ov)
			if bIsTree && oIsTree {
				if _, native := bv.(Tree); !native {
					base[k] = bTree
				}
				if err := merge(bTree, oTree, false); err != nil {
					return fmt.Errorf("key[%s]: %w", k, err)
				}
				continue
			}
		}

		cloned, err := Clone(ov)
		if err != nil {
			return fmt.Errorf("key[%s]: %w", k, err)
		}
		base[k] = cloned
	}

	return nil
}

// Clone returns a deep copy of v. Mappings and slices are copied
// recursively; scalars are copied by value.
func Clone(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if err := checkAcyclic(v); err != nil {
		return nil, err
	}

	cpy, err := copystructure.Copy(v)
	if err != nil {
		return nil, fmt.Errorf("cloning %T: %w", v, err)
	}

	return cpy, nil
}

// CloneTree is [Clone] for a whole tree.
func CloneTree(t Tree) (Tree, error) {
	if t == nil {
		return nil, nil
	}

	cpy, err := Clone(t)
	if err != nil {
		return nil, err
	}

	return cpy.(Tree), nil
}

func asTree(name string, v any) (Tree, error) {
	if v == nil {
		return nil, fmt.Errorf("%s is nil: %w", name, ErrNotMapping)
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return nil, fmt.Errorf("%s is %T: %w", name, v, ErrSequence)
	}

	t, ok := toTree(v)
	if !ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map && rv.IsNil() {
			return nil, fmt.Errorf("%s is nil: %w", name, ErrNotMapping)
		}
		return nil, fmt.Errorf("%s is %T: %w", name, v, ErrNotMapping)
	}

	return t, nil
}

// toTree reports whether v is a non-nil map with string keys. A Tree is
// returned as is; other maps are copied one level deep into a new Tree.
func toTree(v any) (Tree, bool) {
	if t, ok := v.(Tree); ok {
		return t, t != nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return nil, false
	}

	t := make(Tree, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		t[iter.Key().String()] = iter.Value().Interface()
	}

	return t, true
}

// checkAcyclic walks v and fails if a map or slice is reachable from
// itself.
func checkAcyclic(v any) error {
	return walk(reflect.ValueOf(v), map[uintptr]bool{})
}

func walk(rv reflect.Value, onPath map[uintptr]bool) error {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Pointer {
			break
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer:
		if rv.IsNil() || (rv.Kind() == reflect.Slice && rv.Len() == 0) {
			return nil
		}
		ptr := rv.Pointer()
		if onPath[ptr] {
			return ErrCycle
		}
		onPath[ptr] = true
		defer delete(onPath, ptr)
	}

	switch rv.Kind() {
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if err := walk(iter.Value(), onPath); err != nil {
				return fmt.Errorf("key[%v]: %w", iter.Key(), err)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			if err := walk(rv.Index(i), onPath); err != nil {
				return fmt.Errorf("index[%d]: %w", i, err)
			}
		}
	case reflect.Pointer:
		return walk(rv.Elem(), onPath)
	}

	return nil
}
