package pinyin

import "testing"

func TestSingleGramInsertGetSetRemove(t *testing.T) {
	g := NewSingleGram()
	g.SetTotalFreq(100)

	if err := g.InsertFreq(Token(30), 10); err != nil {
		t.Fatalf("InsertFreq: %v", err)
	}
	if err := g.InsertFreq(Token(10), 20); err != nil {
		t.Fatalf("InsertFreq: %v", err)
	}
	if err := g.InsertFreq(Token(20), 5); err != nil {
		t.Fatalf("InsertFreq: %v", err)
	}
	if err := g.InsertFreq(Token(10), 99); err == nil {
		t.Error("expected InsertFreq on existing token to fail")
	}

	all := g.RetrieveAll()
	wantOrder := []Token{10, 20, 30}
	for i, tf := range all {
		if tf.Token != wantOrder[i] {
			t.Errorf("expected ascending token order %v at %d; got %v", wantOrder, i, tf.Token)
		}
	}

	if f, ok := g.GetFreq(Token(20)); !ok || f != 5 {
		t.Errorf("expected (5, true); got (%d, %v)", f, ok)
	}
	if err := g.SetFreq(Token(20), 50); err != nil {
		t.Fatalf("SetFreq: %v", err)
	}
	if f, _ := g.GetFreq(Token(20)); f != 50 {
		t.Errorf("expected 50 after SetFreq; got %d", f)
	}
	if err := g.SetFreq(Token(999), 1); err == nil {
		t.Error("expected SetFreq on missing token to fail")
	}

	freq, ok := g.RemoveFreq(Token(10))
	if !ok || freq != 20 {
		t.Errorf("expected (20, true); got (%d, %v)", freq, ok)
	}
	if _, ok := g.GetFreq(Token(10)); ok {
		t.Error("expected token 10 absent after removal")
	}
}

func TestSingleGramSearchRange(t *testing.T) {
	g := NewSingleGram()
	g.SetTotalFreq(40)
	g.InsertFreq(NewToken(1, 1), 10)
	g.InsertFreq(NewToken(1, 2), 10)
	g.InsertFreq(NewToken(2, 1), 20)

	got := g.Search(TokenRange{Begin: NewToken(1, 0), End: NewToken(2, 0)})
	if len(got) != 2 {
		t.Fatalf("expected 2 results in library 1; got %d", len(got))
	}
	for _, tp := range got {
		if tp.Prob != 0.25 {
			t.Errorf("expected prob 0.25; got %v", tp.Prob)
		}
	}
}

func TestSingleGramMaskOut(t *testing.T) {
	g := NewSingleGram()
	g.SetTotalFreq(30)
	g.InsertFreq(NewToken(1, 1), 10)
	g.InsertFreq(NewToken(2, 1), 20)

	removed := g.MaskOut(0xff000000, uint32(NewToken(1, 0)))
	if removed != 1 {
		t.Fatalf("expected 1 removed; got %d", removed)
	}
	if g.GetTotalFreq() != 20 {
		t.Errorf("expected total 20 after mask_out; got %d", g.GetTotalFreq())
	}
	if _, ok := g.GetFreq(NewToken(1, 1)); ok {
		t.Error("expected library-1 entry removed")
	}
}

func TestMergeSingleGramUserWinsSystemFillsGaps(t *testing.T) {
	system := NewSingleGram()
	system.SetTotalFreq(100)
	system.InsertFreq(NewToken(1, 1), 60)
	system.InsertFreq(NewToken(1, 2), 40)

	user := NewSingleGram()
	user.SetTotalFreq(5)
	user.InsertFreq(NewToken(1, 1), 5)

	merged := mergeSingleGram(system, user)
	if f, ok := merged.GetFreq(NewToken(1, 1)); !ok || f != 5 {
		t.Errorf("expected user's entry (5) to win; got (%d, %v)", f, ok)
	}
	if f, ok := merged.GetFreq(NewToken(1, 2)); !ok || f != 40 {
		t.Errorf("expected system's entry to fill the gap; got (%d, %v)", f, ok)
	}
	if merged.GetTotalFreq() != 45 {
		t.Errorf("expected total 45 (5 + 40); got %d", merged.GetTotalFreq())
	}

	if m := mergeSingleGram(nil, nil); m.GetTotalFreq() != 0 {
		t.Errorf("expected empty merge of two nils; got total %d", m.GetTotalFreq())
	}
	if m := mergeSingleGram(system, nil); m.GetTotalFreq() != 100 {
		t.Errorf("expected system-only merge to retain its total; got %d", m.GetTotalFreq())
	}
}
