package planner

import "sync/atomic"

// Chain is a persistent, singly-linked cons list shared across sibling
// plans. It is the substrate spec.md §4.1 describes: every plan's Steps,
// Links, Unsafes and OpenConditions field is a *Chain[T] whose
// tail is shared, copy-free, with every ancestor and sibling plan that
// has the same suffix.
//
// Grounded on solver.go's SolverState: a persistent, pooled, refcounted
// chain of copy-on-write nodes (parent pointer + one changed slot), here
// generalized from "one modified domain" to "one cons head of any T."
// In a language with generational GC this would collapse to an ordinary
// linked list; kept explicit here (with an atomic refCount, and no node
// pooling) so deletion timing is visible and testable, matching the
// teacher's own choice to make SolverState's lifetime explicit rather than
// rely purely on the collector.
type Chain[T any] struct {
	head T
	tail *Chain[T]

	refCount atomic.Int64
}

// Cons prepends head to the chain, returning a new node whose tail is c.
// c (if non-nil) gains a reference; the caller owns the returned chain and
// must Release it (directly or via a holder's own release) when done.
func Cons[T any](head T, tail *Chain[T]) *Chain[T] {
	n := &Chain[T]{head: head, tail: tail}
	n.refCount.Store(1)
	if tail != nil {
		tail.retain()
	}
	return n
}

func (c *Chain[T]) retain() {
	if c != nil {
		c.refCount.Add(1)
	}
}

// Release drops one reference to c and, transitively, to its tail chain
// when the count reaches zero. Safe to call on nil.
func (c *Chain[T]) Release() {
	for c != nil {
		if c.refCount.Add(-1) > 0 {
			return
		}
		next := c.tail
		c.tail = nil
		c = next
	}
}

// Head returns the value at the front of the chain; ok is false for nil.
func (c *Chain[T]) Head() (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	return c.head, true
}

// Tail returns the rest of the chain (nil at the end).
func (c *Chain[T]) Tail() *Chain[T] {
	if c == nil {
		return nil
	}
	return c.tail
}

// Length returns the number of elements in the chain.
func (c *Chain[T]) Length() int {
	n := 0
	for ; c != nil; c = c.tail {
		n++
	}
	return n
}

// Each calls f for every element from head to tail, stopping early if f
// returns false.
func (c *Chain[T]) Each(f func(T) bool) {
	for ; c != nil; c = c.tail {
		if !f(c.head) {
			return
		}
	}
}

// ToSlice materializes the chain into a slice, head first.
func (c *Chain[T]) ToSlice() []T {
	out := make([]T, 0, c.Length())
	c.Each(func(v T) bool { out = append(out, v); return true })
	return out
}

// Contains reports whether any element satisfies eq(element, target).
func Contains[T any](c *Chain[T], target T, eq func(a, b T) bool) bool {
	found := false
	c.Each(func(v T) bool {
		if eq(v, target) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Remove returns a new chain with the first element satisfying
// eq(element, target) removed, or c unchanged (refcount bumped) if no
// element matches. The new chain shares structure with c wherever
// possible: only the nodes strictly before the removed element are
// copied.
func Remove[T any](c *Chain[T], target T, eq func(a, b T) bool) *Chain[T] {
	if !Contains(c, target, eq) {
		c.retain()
		return c
	}
	var remove func(n *Chain[T]) *Chain[T]
	remove = func(n *Chain[T]) *Chain[T] {
		if eq(n.head, target) {
			n.tail.retain()
			return n.tail
		}
		rest := remove(n.tail)
		out := Cons(n.head, rest)
		rest.Release() // Cons retained it; drop our temporary reference
		return out
	}
	return remove(c)
}

// FromSlice builds a chain from a slice, in order (first element is the
// new head... last element ends up deepest). Used by tests and by plan
// construction helpers that build an initial set of elements at once.
func FromSlice[T any](vals []T) *Chain[T] {
	var c *Chain[T]
	for i := len(vals) - 1; i >= 0; i-- {
		n := Cons(vals[i], c)
		c.Release()
		c = n
	}
	return c
}
