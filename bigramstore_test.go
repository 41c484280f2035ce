package pinyin

import (
	"path/filepath"
	"testing"
)

func TestBigramDBAttachCreateVerifiesMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bigram.db")
	db, err := Attach(path, AttachCreate)
	if err != nil {
		t.Fatalf("Attach(create): %v", err)
	}
	db.Close()

	reopened, err := Attach(path, AttachReadWrite)
	if err != nil {
		t.Fatalf("Attach(readwrite) on existing file: %v", err)
	}
	reopened.Close()
}

func TestBigramDBStoreLoadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bigram.db")
	db, err := Attach(path, AttachCreate)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer db.Close()

	prev := NewToken(1, 1)
	g := NewSingleGram()
	g.SetTotalFreq(10)
	g.InsertFreq(NewToken(1, 2), 10)

	if err := db.Store(prev, g); err != nil {
		t.Fatalf("Store: %v", err)
	}
	loaded, err := db.Load(prev, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.GetTotalFreq() != 10 {
		t.Errorf("expected total 10; got %d", loaded.GetTotalFreq())
	}

	if err := db.Remove(prev); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := db.Load(prev, true); err == nil {
		t.Error("expected Load to fail after Remove")
	}
}

func TestBigramDBGetAllItemsSkipsMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bigram.db")
	db, err := Attach(path, AttachCreate)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer db.Close()

	g := NewSingleGram()
	g.SetTotalFreq(1)
	g.InsertFreq(NewToken(1, 1), 1)
	db.Store(NewToken(1, 5), g)
	db.Store(NewToken(1, 6), g)

	items, err := db.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 real items (magic sentinel skipped); got %d", len(items))
	}
}

func TestBigramStoreTrainCreatesAndIncrementsUserEntry(t *testing.T) {
	sysPath := filepath.Join(t.TempDir(), "sys.db")
	userPath := filepath.Join(t.TempDir(), "user.db")
	sys, err := Attach(sysPath, AttachCreate)
	if err != nil {
		t.Fatalf("Attach(system): %v", err)
	}
	defer sys.Close()
	usr, err := Attach(userPath, AttachCreate)
	if err != nil {
		t.Fatalf("Attach(user): %v", err)
	}
	defer usr.Close()

	prev, cur := SentenceStart, NewToken(1, 1)
	sysGram := NewSingleGram()
	sysGram.SetTotalFreq(50)
	sysGram.InsertFreq(cur, 20)
	if err := sys.Store(prev, sysGram); err != nil {
		t.Fatalf("Store(system): %v", err)
	}

	store := &BigramStore{System: sys, User: usr}
	if err := store.Train(prev, cur, TrainingFactor); err != nil {
		t.Fatalf("Train: %v", err)
	}

	g, err := usr.Load(prev, true)
	if err != nil {
		t.Fatalf("Load(user) after train: %v", err)
	}
	if f, ok := g.GetFreq(cur); !ok || f != 20+TrainingFactor {
		t.Errorf("expected freq %d; got (%d, %v)", 20+TrainingFactor, f, ok)
	}
	if g.GetTotalFreq() != 50+TrainingFactor {
		t.Errorf("expected total %d; got %d", 50+TrainingFactor, g.GetTotalFreq())
	}
}

func TestBigramStoreTrainPreservesTotalAgainstMultiSuccessorSystemRow(t *testing.T) {
	sysPath := filepath.Join(t.TempDir(), "sys.db")
	userPath := filepath.Join(t.TempDir(), "user.db")
	sys, err := Attach(sysPath, AttachCreate)
	if err != nil {
		t.Fatalf("Attach(system): %v", err)
	}
	defer sys.Close()
	usr, err := Attach(userPath, AttachCreate)
	if err != nil {
		t.Fatalf("Attach(user): %v", err)
	}
	defer usr.Close()

	prev := SentenceStart
	a, b := NewToken(1, 1), NewToken(1, 2)
	sysGram := NewSingleGram()
	sysGram.InsertFreq(a, 10)
	sysGram.InsertFreq(b, 5)
	sysGram.SetTotalFreq(15)
	if err := sys.Store(prev, sysGram); err != nil {
		t.Fatalf("Store(system): %v", err)
	}

	store := &BigramStore{System: sys, User: usr}
	if err := store.Train(prev, b, 23); err != nil {
		t.Fatalf("Train: %v", err)
	}

	sum := func(g *SingleGram) uint32 {
		var s uint32
		for _, tf := range g.RetrieveAll() {
			s += tf.Freq
		}
		return s
	}

	userRow, err := usr.Load(prev, true)
	if err != nil {
		t.Fatalf("Load(user): %v", err)
	}
	if got, want := userRow.GetTotalFreq(), sum(userRow); got != want {
		t.Errorf("user row total %d != entries sum %d right after Train", got, want)
	}

	merged := store.MergedSingleGram(prev)
	if got, want := merged.GetTotalFreq(), sum(merged); got != want {
		t.Errorf("merged view total %d != entries sum %d (system mass double-counted)", got, want)
	}
	if f, ok := merged.GetFreq(a); !ok || f != 10 {
		t.Errorf("expected untouched successor a to carry its original freq 10; got (%d, %v)", f, ok)
	}
	if f, ok := merged.GetFreq(b); !ok || f != 5+23 {
		t.Errorf("expected trained successor b to carry 28; got (%d, %v)", f, ok)
	}
}

func TestBigramStoreMergedSingleGram(t *testing.T) {
	sysPath := filepath.Join(t.TempDir(), "sys.db")
	userPath := filepath.Join(t.TempDir(), "user.db")
	sys, _ := Attach(sysPath, AttachCreate)
	defer sys.Close()
	usr, _ := Attach(userPath, AttachCreate)
	defer usr.Close()

	prev := NewToken(1, 1)
	sysGram := NewSingleGram()
	sysGram.SetTotalFreq(10)
	sysGram.InsertFreq(NewToken(1, 2), 10)
	sys.Store(prev, sysGram)

	store := &BigramStore{System: sys, User: usr}
	merged := store.MergedSingleGram(prev)
	if f, ok := merged.GetFreq(NewToken(1, 2)); !ok || f != 10 {
		t.Errorf("expected system entry to surface through an empty user layer; got (%d, %v)", f, ok)
	}
}
