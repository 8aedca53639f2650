package collection

import (
	"slices"
	"sync"
)

// View is a live projection over a source of records. Every read re-evaluates
// the source, so mutations are visible as soon as they are committed.
// A nil predicate shows every record; a nil comparator keeps source order.
type View[T Entity[T]] struct {
	mu     sync.RWMutex
	source func() []T
	filter func(T) bool
	cmp    func(a, b T) int
}

// NewView returns a view reading from source.
func NewView[T Entity[T]](source func() []T) *View[T] {
	return &View[T]{source: source}
}

// SetFilter replaces the predicate. Passing nil clears it.
func (v *View[T]) SetFilter(pred func(T) bool) {
	v.mu.Lock()
	v.filter = pred
	v.mu.Unlock()
}

// SetComparator replaces the presentation order. Passing nil restores source order.
func (v *View[T]) SetComparator(cmp func(a, b T) int) {
	v.mu.Lock()
	v.cmp = cmp
	v.mu.Unlock()
}

// Items returns the filtered records in presentation order.
func (v *View[T]) Items() []T {
	v.mu.RLock()
	filter, cmp := v.filter, v.cmp
	v.mu.RUnlock()

	all := v.source()
	out := all[:0:0]
	for _, e := range all {
		if filter == nil || filter(e) {
			out = append(out, e)
		}
	}
	if cmp != nil {
		slices.SortStableFunc(out, cmp)
	}
	return out
}

// Len returns the number of records passing the filter.
func (v *View[T]) Len() int { return len(v.Items()) }

// All returns every record in source order, ignoring filter and comparator.
func (v *View[T]) All() []T { return v.source() }

// Find looks up a record by identity key across the unfiltered source.
func (v *View[T]) Find(key string) (T, bool) {
	for _, e := range v.source() {
		if e.IdentityKey() == key {
			return e, true
		}
	}
	var zero T
	return zero, false
}

// ContainsIdentity reports whether the source holds a record with e's identity.
func (v *View[T]) ContainsIdentity(e T) bool {
	_, ok := v.Find(e.IdentityKey())
	return ok
}

// ContainsValue reports whether the source holds a record equal in value to e.
func (v *View[T]) ContainsValue(e T) bool {
	found, ok := v.Find(e.IdentityKey())
	return ok && found.Equal(e)
}
