package pinyin

import "sort"

// PhoneticIndex is the external phonetic-to-token index the decoder
// consumes (spec.md §6): given a run of syllable keys starting at a
// lattice column, it reports the candidate token ranges (one slice per
// library) that could plausibly span that run, so the decoder never
// has to scan every token in every library at every column.
//
// This package treats PhoneticIndex as a boundary: building one from a
// real pinyin parse table is out of scope (spec.md §1 Non-goals), but
// the decoder needs a concrete type to call, so PhoneticIndex is
// defined here as the seam and MapPhoneticIndex below as a small
// reference/test implementation.
type PhoneticIndex interface {
	// Search reports, for the syllable run keys, the candidate token
	// ranges per library under opts. rs is reused scratch space from
	// FacadePhraseIndex.PrepareRanges; Search appends into it and
	// returns the same value. The returned bool is false when keys is
	// empty or no library has any candidate.
	Search(keys []SyllableKey, opts Options, rs RangeSet) (RangeSet, bool)
}

// phoneticEntry is one (syllable run, library, range) fact fed to
// MapPhoneticIndex.
type phoneticEntry struct {
	keys    []SyllableKey
	library uint8
	r       TokenRange
}

// MapPhoneticIndex is a straightforward in-memory PhoneticIndex keyed
// by exact syllable-key sequence, suitable for tests and small
// deployments that build their candidate table ahead of time rather
// than deriving it from a fuzzy pinyin parser.
type MapPhoneticIndex struct {
	entries map[string][]phoneticEntry
}

// NewMapPhoneticIndex returns an empty index.
func NewMapPhoneticIndex() *MapPhoneticIndex {
	return &MapPhoneticIndex{entries: make(map[string][]phoneticEntry)}
}

func keysToString(keys []SyllableKey) string {
	b := make([]byte, len(keys)*2)
	for i, k := range keys {
		b[i*2] = byte(k)
		b[i*2+1] = byte(k >> 8)
	}
	return string(b)
}

// Add registers that library's range r is a candidate for the exact
// syllable run keys.
func (m *MapPhoneticIndex) Add(keys []SyllableKey, library uint8, r TokenRange) {
	k := keysToString(keys)
	owned := append([]SyllableKey(nil), keys...)
	m.entries[k] = append(m.entries[k], phoneticEntry{keys: owned, library: library, r: r})
}

// Search implements PhoneticIndex by exact-match lookup, then widening
// to tone-insensitive candidates already registered under the same
// initial/final sequence when opts requests it.
func (m *MapPhoneticIndex) Search(keys []SyllableKey, opts Options, rs RangeSet) (RangeSet, bool) {
	if len(keys) == 0 {
		return rs, false
	}
	if rs == nil {
		rs = make(RangeSet, MaxLibrary+1)
	}
	found := false
	for _, e := range m.entries[keysToString(keys)] {
		appendRange(rs, e.library, e.r)
		found = true
	}
	const ignoreTone Options = 1
	if opts&ignoreTone != 0 {
		for _, candidates := range m.entries {
			for _, e := range candidates {
				if len(e.keys) != len(keys) {
					continue
				}
				if sameUpToTone(e.keys, keys) {
					appendRange(rs, e.library, e.r)
					found = true
				}
			}
		}
	}
	return rs, found
}

func sameUpToTone(a, b []SyllableKey) bool {
	for i := range a {
		if a[i].Initial() != b[i].Initial() || a[i].Final() != b[i].Final() {
			return false
		}
	}
	return true
}

func appendRange(rs RangeSet, library uint8, r TokenRange) {
	if int(library) >= len(rs) {
		return
	}
	if rs[library] == nil {
		rs[library] = make([]TokenRange, 0, 1)
	}
	i := sort.Search(len(rs[library]), func(i int) bool { return rs[library][i].Begin >= r.Begin })
	if i < len(rs[library]) && rs[library][i] == r {
		return
	}
	rs[library] = append(rs[library], TokenRange{})
	copy(rs[library][i+1:], rs[library][i:])
	rs[library][i] = r
}
