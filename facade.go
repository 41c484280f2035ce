package pinyin

import "fmt"

// TokenRange is a half-open [Begin, End) range of tokens within one
// library, as reported by the external phonetic index (spec.md §6).
type TokenRange struct {
	Begin, End Token
}

// FacadePhraseIndex is a fixed-size array of Sub-Phrase Indices (one
// per library, 1..MaxLibrary), presenting a single token-keyed
// surface and a combined unigram total. Library 0 is reserved and
// never populated (spec.md §4.2, §9 "array of Option<SubIndex>").
type FacadePhraseIndex struct {
	subs  [MaxLibrary + 1]*SubPhraseIndex
	total uint32
}

// NewFacadePhraseIndex returns an empty facade.
func NewFacadePhraseIndex() *FacadePhraseIndex {
	return &FacadePhraseIndex{}
}

// TotalFreq returns the global unigram total across every loaded
// library.
func (f *FacadePhraseIndex) TotalFreq() uint32 { return f.total }

func (f *FacadePhraseIndex) sub(library uint8) (*SubPhraseIndex, error) {
	if library == 0 || int(library) >= len(f.subs) {
		return nil, newError(KindRange, "library", fmt.Errorf("library %d out of range", library))
	}
	s := f.subs[library]
	if s == nil {
		return nil, newError(KindRange, "library", fmt.Errorf("library %d not loaded", library))
	}
	return s, nil
}

// LoadLibrary installs an already-built Sub-Phrase Index at the given
// library slot, e.g. after SubPhraseIndex.Load or while merging a
// mutable user delta on top of an immutable base image.
func (f *FacadePhraseIndex) LoadLibrary(library uint8, sub *SubPhraseIndex) error {
	if library == 0 || int(library) >= len(f.subs) {
		return newError(KindRange, "LoadLibrary", nil)
	}
	if old := f.subs[library]; old != nil {
		f.total -= old.PhraseIndexTotalFreq()
	}
	f.subs[library] = sub
	f.total += sub.PhraseIndexTotalFreq()
	return nil
}

// UnloadLibrary removes a library from the facade.
func (f *FacadePhraseIndex) UnloadLibrary(library uint8) {
	if int(library) < len(f.subs) && f.subs[library] != nil {
		f.total -= f.subs[library].PhraseIndexTotalFreq()
		f.subs[library] = nil
	}
}

// GetRange returns the [begin, end) token range spanning every
// possible id in library, for callers that want to hand the whole
// library to the phonetic index.
func (f *FacadePhraseIndex) GetRange(library uint8) (TokenRange, error) {
	if _, err := f.sub(library); err != nil {
		return TokenRange{}, err
	}
	return TokenRange{Begin: NewToken(library, 0), End: NewToken(library, idMask)}, nil
}

// GetPhraseItem delegates to token's owning library.
func (f *FacadePhraseIndex) GetPhraseItem(token Token) (*PhraseItem, bool) {
	s, err := f.sub(token.Library())
	if err != nil {
		return nil, false
	}
	return s.GetPhraseItem(token)
}

// PhraseString decodes token's phrase text directly, the convenience
// spec.md §6's convert_to_utf8 API surface item implies at the
// per-token level (see SPEC_FULL.md §4).
func (f *FacadePhraseIndex) PhraseString(token Token) (string, bool) {
	item, ok := f.GetPhraseItem(token)
	if !ok {
		return "", false
	}
	return item.Text(), true
}

// AddPhraseItem delegates to token's owning library and keeps the
// global total in sync.
func (f *FacadePhraseIndex) AddPhraseItem(token Token, item *PhraseItem) error {
	s, err := f.sub(token.Library())
	if err != nil {
		return err
	}
	before := s.PhraseIndexTotalFreq()
	if err := s.AddPhraseItem(token, item); err != nil {
		return err
	}
	f.total += s.PhraseIndexTotalFreq() - before
	return nil
}

// RemovePhraseItem delegates to token's owning library and keeps the
// global total in sync.
func (f *FacadePhraseIndex) RemovePhraseItem(token Token) (*PhraseItem, error) {
	s, err := f.sub(token.Library())
	if err != nil {
		return nil, err
	}
	before := s.PhraseIndexTotalFreq()
	item, err := s.RemovePhraseItem(token)
	if err != nil {
		return nil, err
	}
	f.total -= before - s.PhraseIndexTotalFreq()
	return item, nil
}

// AddUnigramFrequency delegates to token's owning library and keeps
// the global total in sync.
func (f *FacadePhraseIndex) AddUnigramFrequency(token Token, delta int64) error {
	s, err := f.sub(token.Library())
	if err != nil {
		return err
	}
	before := s.PhraseIndexTotalFreq()
	if err := s.AddUnigramFrequency(token, delta); err != nil {
		return err
	}
	f.total = uint32(int64(f.total) + (int64(s.PhraseIndexTotalFreq()) - int64(before)))
	return nil
}

// UnigramPossibility returns item(token).unigram_freq / global_total,
// the per-extension unigram probability used throughout the decoder
// (spec.md §4.5). Returns 0 if token is absent or the global total is
// 0.
func (f *FacadePhraseIndex) UnigramPossibility(token Token) float32 {
	if f.total == 0 {
		return 0
	}
	item, ok := f.GetPhraseItem(token)
	if !ok {
		return 0
	}
	return float32(item.UnigramFrequency()) / float32(f.total)
}

// RangeSet is per-library scratch space for candidate token ranges,
// reused across decoder columns to avoid reallocating on every
// lookup (spec.md §4.2 "range preparation").
type RangeSet [][]TokenRange

// PrepareRanges allocates an empty dynamic array of ranges for every
// library currently loaded in f.
func (f *FacadePhraseIndex) PrepareRanges() RangeSet {
	rs := make(RangeSet, len(f.subs))
	for i, s := range f.subs {
		if s != nil {
			rs[i] = make([]TokenRange, 0, 4)
		}
	}
	return rs
}

// ClearRanges truncates every per-library slice to length 0, keeping
// their backing arrays for reuse.
func ClearRanges(rs RangeSet) {
	for i := range rs {
		if rs[i] != nil {
			rs[i] = rs[i][:0]
		}
	}
}

// DestroyRanges releases rs's backing arrays.
func DestroyRanges(rs RangeSet) {
	for i := range rs {
		rs[i] = nil
	}
}
