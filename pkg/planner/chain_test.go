package planner

import "testing"

func TestChain_ConsToSlice(t *testing.T) {
	c := FromSlice([]int{1, 2, 3})
	defer c.Release()

	got := c.ToSlice()
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("ToSlice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToSlice()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if got := c.Length(); got != 3 {
		t.Errorf("Length() = %d, want 3", got)
	}
}

func TestChain_HeadTailEmpty(t *testing.T) {
	var c *Chain[int]
	if _, ok := c.Head(); ok {
		t.Errorf("Head() on nil chain reported ok=true")
	}
	if c.Tail() != nil {
		t.Errorf("Tail() on nil chain is non-nil")
	}
	if c.Length() != 0 {
		t.Errorf("Length() on nil chain = %d, want 0", c.Length())
	}
}

func TestChain_Contains(t *testing.T) {
	c := FromSlice([]int{10, 20, 30})
	defer c.Release()

	eq := func(a, b int) bool { return a == b }
	if !Contains(c, 20, eq) {
		t.Errorf("Contains(20) = false, want true")
	}
	if Contains(c, 99, eq) {
		t.Errorf("Contains(99) = true, want false")
	}
}

func TestChain_RemoveMiddle(t *testing.T) {
	c := FromSlice([]int{1, 2, 3})
	defer c.Release()

	eq := func(a, b int) bool { return a == b }
	trimmed := Remove(c, 2, eq)
	defer trimmed.Release()

	got := trimmed.ToSlice()
	want := []int{1, 3}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Remove(2) = %v, want %v", got, want)
	}
	// The original chain is untouched by Remove.
	if got := c.ToSlice(); len(got) != 3 {
		t.Errorf("original chain mutated by Remove: %v", got)
	}
}

func TestChain_RemoveNoMatch(t *testing.T) {
	c := FromSlice([]int{1, 2, 3})
	defer c.Release()

	eq := func(a, b int) bool { return a == b }
	same := Remove(c, 99, eq)
	defer same.Release()

	got := same.ToSlice()
	if len(got) != 3 {
		t.Errorf("Remove(99) = %v, want unchanged [1 2 3]", got)
	}
}

func TestChain_SharedTailRefcounting(t *testing.T) {
	tail := FromSlice([]int{3, 4})
	a := Cons(1, tail)
	b := Cons(2, tail)
	tail.Release() // drop FromSlice's own reference; a and b still hold theirs

	a.Release()
	// b's view of the shared tail must survive a's release.
	got := b.ToSlice()
	want := []int{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ToSlice() after sibling release = %v, want %v", got, want)
		}
	}
	b.Release()
}
