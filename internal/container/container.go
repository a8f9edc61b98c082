// Package container provides a small keyed collection over entities that
// carry an integer index, a canonical name, and a display alias.
package container

import "sort"

// Entity is the capability set an element must expose to live in a
// Container: a stable integer index, a case-sensitive name used for
// lookups, an alias used for display, and a way to be reindexed when
// appended to a container.
type Entity interface {
	Idx() int
	SetIdx(idx int)
	Name() string
	Alias() string
}

// Container is an ordered keyed collection mapping an integer index to an
// entity. Iteration order is always key-ascending.
type Container[T Entity] struct {
	items map[int]T
}

// New creates an empty container.
func New[T Entity]() *Container[T] {
	return &Container[T]{items: make(map[int]T)}
}

// FromList builds a container from a slice, assigning indices 0..n-1 in
// slice order; any index an element already carries is overwritten.
func FromList[T Entity](items []T) *Container[T] {
	c := New[T]()
	for i, it := range items {
		it.SetIdx(i)
		c.items[i] = it
	}
	return c
}

// Add inserts or replaces the entity at its own Idx().
func (c *Container[T]) Add(item T) {
	c.items[item.Idx()] = item
}

// AddTwo inserts two entities in one call, a convenience used by callers
// that always update a primary/secondary pair together.
func (c *Container[T]) AddTwo(a, b T) {
	c.Add(a)
	c.Add(b)
}

// Find returns the entity at idx, or ok=false if absent.
func (c *Container[T]) Find(idx int) (T, bool) {
	v, ok := c.items[idx]
	return v, ok
}

// MustFind returns the entity at idx, panicking if absent. Use only where
// idx is known-valid by construction (e.g. iterating the container's own
// Keys()).
func (c *Container[T]) MustFind(idx int) T {
	v, ok := c.items[idx]
	if !ok {
		panic("container: index not found")
	}
	return v
}

// LookupError reports a FindByName failure: no match, or (Ambiguous) more
// than one.
type LookupError struct {
	Name      string
	Ambiguous bool
}

func (e *LookupError) Error() string {
	if e.Ambiguous {
		return "ambiguous name: " + e.Name
	}
	return "name not found: " + e.Name
}

// FindByName returns the element whose Name() case-sensitively equals
// name, iff there is exactly one such match.
func (c *Container[T]) FindByName(name string) (T, error) {
	var zero T
	var match T
	found := false
	for _, idx := range c.Keys() {
		it := c.items[idx]
		if it.Name() == name {
			if found {
				return zero, &LookupError{Name: name, Ambiguous: true}
			}
			match = it
			found = true
		}
	}
	if !found {
		return zero, &LookupError{Name: name}
	}
	return match, nil
}

// Keys returns all indices in ascending order.
func (c *Container[T]) Keys() []int {
	keys := make([]int, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Elems returns all elements ordered by ascending index.
func (c *Container[T]) Elems() []T {
	keys := c.Keys()
	out := make([]T, len(keys))
	for i, k := range keys {
		out[i] = c.items[k]
	}
	return out
}

// Clone returns a shallow copy of c: a new container with the same
// index-to-entity mapping, safe to mutate independently of the original.
// Used whenever an algorithm needs to try a speculative change (a move,
// a tentative placement) without disturbing the snapshot other
// candidates are still being evaluated against.
func (c *Container[T]) Clone() *Container[T] {
	out := New[T]()
	for k, v := range c.items {
		out.items[k] = v
	}
	return out
}

// Size returns the number of elements.
func (c *Container[T]) Size() int {
	return len(c.items)
}

// Empty reports whether the container has no elements.
func (c *Container[T]) Empty() bool {
	return len(c.items) == 0
}

// Map applies f to every element in ascending-index order and returns a
// new container with the results, reusing each result's own Idx().
func Map[T Entity, U Entity](c *Container[T], f func(T) U) *Container[U] {
	out := New[U]()
	for _, it := range c.Elems() {
		out.Add(f(it))
	}
	return out
}

// Fold reduces the container's elements in ascending-index order.
func Fold[T Entity, A any](c *Container[T], init A, f func(A, T) A) A {
	acc := init
	for _, it := range c.Elems() {
		acc = f(acc, it)
	}
	return acc
}
