package lotbook

import (
	"iter"
	"maps"
	"slices"
)

// overlay stages changes to a table of records keyed by ID, on top of a
// base map that it only touches on flush.
type overlay[T any] struct {
	base  map[string]T
	put   map[string]T
	del   map[string]bool
	order []string // put keys in first-write order
}

func newOverlay[T any](base map[string]T) *overlay[T] {
	return &overlay[T]{base: base, put: make(map[string]T), del: make(map[string]bool)}
}

func (o *overlay[T]) get(id string) (T, bool) {
	var zero T
	if id == "" || o.del[id] {
		return zero, false
	}
	if v, ok := o.put[id]; ok {
		return v, true
	}
	v, ok := o.base[id]
	return v, ok
}

func (o *overlay[T]) set(id string, v T) {
	if _, ok := o.put[id]; !ok {
		o.order = append(o.order, id)
	}
	o.put[id] = v
	delete(o.del, id)
}

func (o *overlay[T]) remove(id string) {
	delete(o.put, id)
	o.del[id] = true
}

// all iterates over the visible records in key order.
func (o *overlay[T]) all() iter.Seq2[string, T] {
	keys := make(map[string]bool, len(o.base)+len(o.put))
	for k := range o.base {
		keys[k] = true
	}
	for k := range o.put {
		keys[k] = true
	}
	sorted := slices.Sorted(maps.Keys(keys))
	return func(yield func(string, T) bool) {
		for _, k := range sorted {
			v, ok := o.get(k)
			if !ok {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// changes returns the records written and the base records removed.
func (o *overlay[T]) changes() (puts []T, dels []string) {
	for _, k := range o.order {
		if v, ok := o.put[k]; ok {
			puts = append(puts, v)
		}
	}
	for k := range o.del {
		if _, ok := o.base[k]; ok {
			dels = append(dels, k)
		}
	}
	slices.Sort(dels)
	return puts, dels
}

func (o *overlay[T]) flush() {
	for k, v := range o.put {
		o.base[k] = v
	}
	for k := range o.del {
		delete(o.base, k)
	}
}
