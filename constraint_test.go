package pinyin

import "testing"

func newFacadeWithPhrase(t *testing.T, library uint8, id uint32, text string) *FacadePhraseIndex {
	t.Helper()
	f := NewFacadePhraseIndex()
	sub := NewSubPhraseIndex()
	sub.AddPhraseItem(NewToken(library, id), mustItem(t, text, 1))
	f.LoadLibrary(library, sub)
	return f
}

func TestAddConstraintRejectsOverrun(t *testing.T) {
	f := newFacadeWithPhrase(t, 1, 1, "你好")
	cs := NewConstraints(2)
	length, err := cs.AddConstraint(1, NewToken(1, 1), f)
	if err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}
	if length != 0 {
		t.Errorf("expected 0 (would overrun); got %d", length)
	}
	for i, c := range cs {
		if c.Kind != ConstraintNone {
			t.Errorf("expected constraints unchanged at %d; got %v", i, c.Kind)
		}
	}
}

func TestAddConstraintPinsAndBlocks(t *testing.T) {
	f := newFacadeWithPhrase(t, 1, 1, "你好")
	cs := NewConstraints(3)
	length, err := cs.AddConstraint(0, NewToken(1, 1), f)
	if err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}
	if length != 2 {
		t.Fatalf("expected length 2; got %d", length)
	}
	if cs[0].Kind != ConstraintPinned {
		t.Errorf("expected position 0 PINNED; got %v", cs[0].Kind)
	}
	if cs[1].Kind != ConstraintBlocked || cs[1].Owner != 0 {
		t.Errorf("expected position 1 BLOCKED{0}; got %v owner=%d", cs[1].Kind, cs[1].Owner)
	}
	if cs[2].Kind != ConstraintNone {
		t.Errorf("expected position 2 NONE; got %v", cs[2].Kind)
	}
}

func TestAddConstraintOverlapRejected(t *testing.T) {
	f := NewFacadePhraseIndex()
	sub := NewSubPhraseIndex()
	sub.AddPhraseItem(NewToken(1, 1), mustItem(t, "你好", 1))
	sub.AddPhraseItem(NewToken(1, 2), mustItem(t, "好的", 1))
	f.LoadLibrary(1, sub)

	cs := NewConstraints(2)
	if _, err := cs.AddConstraint(0, NewToken(1, 1), f); err != nil {
		t.Fatalf("first AddConstraint: %v", err)
	}
	length, err := cs.AddConstraint(1, NewToken(1, 2), f)
	if err != nil {
		t.Fatalf("second AddConstraint: %v", err)
	}
	if length != 0 {
		t.Errorf("expected the overrunning second PINNED to be rejected with 0; got %d", length)
	}
	if cs[0].Kind != ConstraintPinned || cs[0].Token != NewToken(1, 1) {
		t.Errorf("expected the first PINNED to remain untouched; got %v", cs[0])
	}
}

func TestClearConstraintClearsWholeSpan(t *testing.T) {
	f := newFacadeWithPhrase(t, 1, 1, "你好")
	cs := NewConstraints(2)
	cs.AddConstraint(0, NewToken(1, 1), f)
	cs.ClearConstraint(1) // touches the BLOCKED tail
	for i, c := range cs {
		if c.Kind != ConstraintNone {
			t.Errorf("expected position %d cleared; got %v", i, c.Kind)
		}
	}
}

func TestValidateConstraintTruncatesAndExpands(t *testing.T) {
	f := newFacadeWithPhrase(t, 1, 1, "你好")
	cs := NewConstraints(4)
	cs.AddConstraint(2, NewToken(1, 1), f)

	keys := []SyllableKey{key(1, 1, 1), key(1, 1, 1), key(1, 1, 1)}
	got := ValidateConstraint(cs, keys, 0, f)
	if len(got) != 3 {
		t.Fatalf("expected length 3; got %d", len(got))
	}
	if got[2].Kind != ConstraintNone {
		t.Errorf("expected the overrunning PINNED to be cleared; got %v", got[2].Kind)
	}

	longer := []SyllableKey{key(1, 1, 1), key(1, 1, 1), key(1, 1, 1), key(1, 1, 1), key(1, 1, 1)}
	got2 := ValidateConstraint(got, longer, 0, f)
	if len(got2) != 5 {
		t.Fatalf("expected length 5 after expansion; got %d", len(got2))
	}
	if got2[4].Kind != ConstraintNone {
		t.Errorf("expected appended slots to be NONE; got %v", got2[4].Kind)
	}
}
