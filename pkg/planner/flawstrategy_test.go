package planner

import "testing"

func TestParseFlawOrder_Shorthand(t *testing.T) {
	cases := map[string]int{
		"UCPOP": 1,
		"LCFR":  2,
		"MC":    2,
		"ZLIFO": 2,
	}
	for text, wantCriteria := range cases {
		fo, err := ParseFlawOrder("t", text)
		if err != nil {
			t.Fatalf("ParseFlawOrder(%q) failed: %v", text, err)
		}
		if len(fo.Criteria) != wantCriteria {
			t.Errorf("ParseFlawOrder(%q).Criteria has %d entries, want %d", text, len(fo.Criteria), wantCriteria)
		}
	}
}

func TestParseFlawOrder_ExplicitCriteria(t *testing.T) {
	fo, err := ParseFlawOrder("t", "{n,s,o}LIFO")
	if err != nil {
		t.Fatalf("ParseFlawOrder failed: %v", err)
	}
	if len(fo.Criteria) != 1 {
		t.Fatalf("expected 1 criterion, got %d", len(fo.Criteria))
	}
	c := fo.Criteria[0]
	if !c.Mask.NonSeparableThreat || !c.Mask.SeparableThreat || !c.Mask.AnyOpenCondition {
		t.Errorf("mask not fully parsed: %+v", c.Mask)
	}
	if c.Tactic != tacticLIFO {
		t.Errorf("tactic = %v, want tacticLIFO", c.Tactic)
	}
}

func TestParseFlawOrder_RefinementCap(t *testing.T) {
	fo, err := ParseFlawOrder("t", "{o}3LIFO")
	if err != nil {
		t.Fatalf("ParseFlawOrder failed: %v", err)
	}
	if fo.Criteria[0].Cap != 3 {
		t.Errorf("Cap = %d, want 3", fo.Criteria[0].Cap)
	}
}

func TestParseFlawOrder_ReuseModifier(t *testing.T) {
	fo, err := ParseFlawOrder("t", "{o}LCADDR")
	if err != nil {
		t.Fatalf("ParseFlawOrder failed: %v", err)
	}
	c := fo.Criteria[0]
	if c.Tactic != tacticLC || !c.Reuse {
		t.Errorf("expected LC tactic with reuse, got tactic=%v reuse=%v", c.Tactic, c.Reuse)
	}
}

func TestParseFlawOrder_MissingMaskBraces(t *testing.T) {
	if _, err := ParseFlawOrder("t", "LIFO"); err == nil {
		t.Errorf("expected an error for a criterion missing its {mask}")
	}
}

func TestParseFlawOrder_UnknownFlawLetter(t *testing.T) {
	if _, err := ParseFlawOrder("t", "{q}LIFO"); err == nil {
		t.Errorf("expected an error for an unknown flaw-kind letter")
	}
}

func TestParseFlawOrder_ThreatMaskRejectsHeuristicTactic(t *testing.T) {
	if _, err := ParseFlawOrder("t", "{n,s}LCADD"); err == nil {
		t.Errorf("expected an error combining a threat-only mask with a heuristic-ranked tactic")
	}
}

func TestParseFlawOrder_ComposedCriteria(t *testing.T) {
	fo, err := ParseFlawOrder("t", "{n,s}LIFO/{o}LR")
	if err != nil {
		t.Fatalf("ParseFlawOrder failed: %v", err)
	}
	if len(fo.Criteria) != 2 {
		t.Fatalf("expected 2 composed criteria, got %d", len(fo.Criteria))
	}
	if fo.Criteria[1].Tactic != tacticLR {
		t.Errorf("second criterion tactic = %v, want tacticLR", fo.Criteria[1].Tactic)
	}
}
