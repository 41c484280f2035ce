package pinyin

import "testing"

func TestFacadePhraseIndexDelegatesByLibrary(t *testing.T) {
	f := NewFacadePhraseIndex()
	lib1 := NewSubPhraseIndex()
	lib1.AddPhraseItem(NewToken(1, 1), mustItem(t, "你", 10))
	lib2 := NewSubPhraseIndex()
	lib2.AddPhraseItem(NewToken(2, 1), mustItem(t, "好", 20))

	if err := f.LoadLibrary(1, lib1); err != nil {
		t.Fatalf("LoadLibrary(1): %v", err)
	}
	if err := f.LoadLibrary(2, lib2); err != nil {
		t.Fatalf("LoadLibrary(2): %v", err)
	}
	if got := f.TotalFreq(); got != 30 {
		t.Errorf("expected total 30; got %d", got)
	}

	s, ok := f.PhraseString(NewToken(2, 1))
	if !ok || s != "好" {
		t.Errorf("expected (\"好\", true); got (%q, %v)", s, ok)
	}

	f.UnloadLibrary(1)
	if got := f.TotalFreq(); got != 20 {
		t.Errorf("expected total 20 after unload; got %d", got)
	}
	if _, ok := f.GetPhraseItem(NewToken(1, 1)); ok {
		t.Error("expected library 1 token absent after unload")
	}
}

func TestFacadePhraseIndexUnigramPossibility(t *testing.T) {
	f := NewFacadePhraseIndex()
	lib := NewSubPhraseIndex()
	tok := NewToken(1, 1)
	lib.AddPhraseItem(tok, mustItem(t, "你", 25))
	lib.AddPhraseItem(NewToken(1, 2), mustItem(t, "好", 75))
	f.LoadLibrary(1, lib)

	if p := f.UnigramPossibility(tok); p != 0.25 {
		t.Errorf("expected 0.25; got %v", p)
	}
	if p := f.UnigramPossibility(NewToken(1, 99)); p != 0 {
		t.Errorf("expected 0 for absent token; got %v", p)
	}
}

func TestFacadePhraseIndexRangeLifecycle(t *testing.T) {
	f := NewFacadePhraseIndex()
	f.LoadLibrary(1, NewSubPhraseIndex())
	f.LoadLibrary(3, NewSubPhraseIndex())

	rs := f.PrepareRanges()
	if rs[1] == nil || rs[3] == nil {
		t.Fatal("expected scratch slices for loaded libraries")
	}
	if rs[2] != nil {
		t.Error("expected no scratch slice for an unloaded library")
	}
	rs[1] = append(rs[1], TokenRange{Begin: NewToken(1, 0), End: NewToken(1, 10)})
	ClearRanges(rs)
	if len(rs[1]) != 0 {
		t.Errorf("expected ClearRanges to truncate to 0; got len %d", len(rs[1]))
	}
	DestroyRanges(rs)
	if rs[1] != nil {
		t.Error("expected DestroyRanges to nil out every slice")
	}
}
