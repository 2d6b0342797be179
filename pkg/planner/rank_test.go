package planner

import "testing"

func TestRankVector_Less(t *testing.T) {
	a := RankVector{1, 5}
	b := RankVector{1, 6}
	if !a.Less(b) {
		t.Errorf("Less: ties on the first component should fall through to the second")
	}
	if b.Less(a) {
		t.Errorf("Less: b should not sort before a")
	}
}

func TestRankVector_LessShorterWinsTie(t *testing.T) {
	a := RankVector{1}
	b := RankVector{1, 2}
	if !a.Less(b) {
		t.Errorf("a shorter vector tied on the common prefix should sort first")
	}
}

func TestRankVector_Weighted(t *testing.T) {
	v := RankVector{10, 2}
	kinds := []RankComponentKind{RankAddCost, RankStepsPlusOpen}
	out := v.Weighted(kinds, 2)
	if out[0] != 20 {
		t.Errorf("heuristic-derived component not scaled: out[0] = %v, want 20", out[0])
	}
	if out[1] != 2 {
		t.Errorf("structural component should not be scaled: out[1] = %v, want 2", out[1])
	}
}

func TestParseRankSpec_SingleToken(t *testing.T) {
	spec, err := ParseRankSpec("ADD", 1)
	if err != nil {
		t.Fatalf("ParseRankSpec failed: %v", err)
	}
	if len(spec.Components) != 1 || spec.Components[0] != RankAddCost {
		t.Errorf("Components = %v, want [RankAddCost]", spec.Components)
	}
}

func TestParseRankSpec_Composed(t *testing.T) {
	spec, err := ParseRankSpec("ADD/LIFO", 1)
	if err != nil {
		t.Fatalf("ParseRankSpec failed: %v", err)
	}
	want := []RankComponentKind{RankAddCost, RankLIFO}
	if len(spec.Components) != len(want) {
		t.Fatalf("Components = %v, want %v", spec.Components, want)
	}
	for i := range want {
		if spec.Components[i] != want[i] {
			t.Errorf("Components[%d] = %v, want %v", i, spec.Components[i], want[i])
		}
	}
}

func TestParseRankSpec_UnknownToken(t *testing.T) {
	if _, err := ParseRankSpec("BOGUS", 1); err == nil {
		t.Errorf("expected an error for an unrecognized heuristic token")
	}
}

func TestParseRankSpec_Empty(t *testing.T) {
	if _, err := ParseRankSpec("", 1); err == nil {
		t.Errorf("expected an error for an empty heuristic spec")
	}
}
