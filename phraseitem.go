package pinyin

import (
	"encoding/binary"
	"math"
)

// Phrase Item binary layout (spec.md §3), inside a Sub-Phrase Index
// content buffer:
//
//	u8  length             (Unicode codepoints, <= MaxPhraseLen)
//	u8  pronunciation_count
//	u32 unigram_count
//	length  * u32 codepoint   (full-width: dictionaries are not BMP-only)
//	pronunciation_count * (length * u16 syllable key, u32 count)
const (
	itemHeaderLen   = 1 + 1 + 4
	codepointWidth  = 4
	syllableWidth   = 2
	pronCountOffset = 2
)

// PhraseItem is a view or owned copy of one Phrase Item record. Read
// accessors work on either; AppendPronunciation/RemoveNthPronunciation/
// SetPhrase require an owned (growable) record — see doc on those
// methods and SubPhraseIndex.AddPhraseItem/RemovePhraseItem for the
// grow/shrink workflow forced by the content buffer's append-only
// layout.
type PhraseItem struct {
	buf []byte
}

// NewPhraseItem constructs a fresh, empty (no pronunciations) Phrase
// Item for the given phrase text. len(codepoints) must be in
// [1, MaxPhraseLen].
func NewPhraseItem(codepoints []rune) (*PhraseItem, error) {
	if len(codepoints) == 0 || len(codepoints) > MaxPhraseLen {
		return nil, newError(KindRange, "NewPhraseItem", nil)
	}
	buf := make([]byte, itemHeaderLen+len(codepoints)*codepointWidth)
	buf[0] = byte(len(codepoints))
	for i, r := range codepoints {
		binary.LittleEndian.PutUint32(buf[itemHeaderLen+i*codepointWidth:], uint32(r))
	}
	return &PhraseItem{buf: buf}, nil
}

// phraseItemView wraps a borrowed slice (no copy) of a content
// buffer. Used by SubPhraseIndex.GetPhraseItem for read-mostly access.
func phraseItemView(raw []byte) *PhraseItem { return &PhraseItem{buf: raw} }

func (p *PhraseItem) Length() uint8             { return p.buf[0] }
func (p *PhraseItem) PronunciationCount() uint8  { return p.buf[1] }
func (p *PhraseItem) UnigramFrequency() uint32 {
	return binary.LittleEndian.Uint32(p.buf[pronCountOffset:])
}

func (p *PhraseItem) codepointsOffset() int { return itemHeaderLen }
func (p *PhraseItem) pronOffset() int {
	return itemHeaderLen + int(p.Length())*codepointWidth
}
func (p *PhraseItem) pronStride() int {
	return int(p.Length())*syllableWidth + 4
}

// byteLen returns the total encoded size of this item.
func (p *PhraseItem) byteLen() int {
	return p.pronOffset() + int(p.PronunciationCount())*p.pronStride()
}

// PhraseCodepoints copies the phrase's text into out, which must have
// len(out) == Length().
func (p *PhraseItem) PhraseCodepoints(out []rune) error {
	if len(out) != int(p.Length()) {
		return newError(KindRange, "PhraseCodepoints", nil)
	}
	off := p.codepointsOffset()
	for i := range out {
		out[i] = rune(binary.LittleEndian.Uint32(p.buf[off+i*codepointWidth:]))
	}
	return nil
}

// Text returns the phrase as a Go string.
func (p *PhraseItem) Text() string {
	rs := make([]rune, p.Length())
	p.PhraseCodepoints(rs)
	return string(rs)
}

// NthPronunciation copies the i'th pronunciation's syllable keys into
// outKeys (len(outKeys) == Length()) and returns its count.
func (p *PhraseItem) NthPronunciation(i int, outKeys []SyllableKey) (uint32, error) {
	if i < 0 || i >= int(p.PronunciationCount()) {
		return 0, newError(KindRange, "NthPronunciation", nil)
	}
	if len(outKeys) != int(p.Length()) {
		return 0, newError(KindRange, "NthPronunciation", nil)
	}
	base := p.pronOffset() + i*p.pronStride()
	for j := range outKeys {
		outKeys[j] = SyllableKey(binary.LittleEndian.Uint16(p.buf[base+j*syllableWidth:]))
	}
	freq := binary.LittleEndian.Uint32(p.buf[base+int(p.Length())*syllableWidth:])
	return freq, nil
}

// totalPronunciationCount sums every pronunciation's count; this is
// the weight base for pinyin-match likelihood (spec.md §3 invariant).
func (p *PhraseItem) totalPronunciationCount() uint32 {
	var total uint32
	n := int(p.Length())
	stride := p.pronStride()
	base := p.pronOffset()
	for i := 0; i < int(p.PronunciationCount()); i++ {
		total += binary.LittleEndian.Uint32(p.buf[base+i*stride+n*syllableWidth:])
	}
	return total
}

// PinyinPossibility returns the fraction of this phrase item's total
// pronunciation weight contributed by pronunciations matching keys
// under opts. Returns 0 when the total is 0 (spec.md §4.2).
func (p *PhraseItem) PinyinPossibility(opts Options, keys []SyllableKey) float32 {
	total := p.totalPronunciationCount()
	if total == 0 {
		return 0
	}
	var matched uint32
	n := int(p.Length())
	stride := p.pronStride()
	base := p.pronOffset()
	for i := 0; i < int(p.PronunciationCount()); i++ {
		pronBase := base + i*stride
		if pronunciationMatches(p.buf[pronBase:pronBase+n*syllableWidth], keys, opts) {
			matched += binary.LittleEndian.Uint32(p.buf[pronBase+n*syllableWidth:])
		}
	}
	return float32(matched) / float32(total)
}

func pronunciationMatches(raw []byte, keys []SyllableKey, opts Options) bool {
	if len(keys)*syllableWidth != len(raw) {
		return false
	}
	for i, k := range keys {
		stored := SyllableKey(binary.LittleEndian.Uint16(raw[i*syllableWidth:]))
		if !matchKey(stored, k, opts) {
			return false
		}
	}
	return true
}

// IncreasePinyinPossibility finds the pronunciation matching keys
// under opts and adds delta to its count, in place (no resize needed,
// safe on a borrowed view). Reports whether a match was found; a
// would-overflow add is skipped and reported via the error return
// (KindOverflow), leaving the stored count unchanged.
func (p *PhraseItem) IncreasePinyinPossibility(opts Options, keys []SyllableKey, delta uint32) (bool, error) {
	n := int(p.Length())
	if len(keys) != n {
		return false, nil
	}
	stride := p.pronStride()
	base := p.pronOffset()
	for i := 0; i < int(p.PronunciationCount()); i++ {
		pronBase := base + i*stride
		if pronunciationMatches(p.buf[pronBase:pronBase+n*syllableWidth], keys, opts) {
			freqOff := pronBase + n*syllableWidth
			cur := binary.LittleEndian.Uint32(p.buf[freqOff:])
			next, ok := addU32(cur, delta)
			if !ok {
				return true, newError(KindOverflow, "IncreasePinyinPossibility", nil)
			}
			binary.LittleEndian.PutUint32(p.buf[freqOff:], next)
			return true, nil
		}
	}
	return false, nil
}

// AppendPronunciation appends a new pronunciation to an owned Phrase
// Item. len(keys) must equal Length(). The item grows; callers
// holding a borrowed view (from GetPhraseItem) must first
// SubPhraseIndex.RemovePhraseItem it to obtain an owned copy, then
// re-add it with SubPhraseIndex.AddPhraseItem — the content buffer is
// append-only, so growing in place is never safe on a live view.
func (p *PhraseItem) AppendPronunciation(keys []SyllableKey, freq uint32) error {
	if len(keys) != int(p.Length()) {
		return newError(KindRange, "AppendPronunciation", nil)
	}
	if p.PronunciationCount() == math.MaxUint8 {
		return newError(KindOverflow, "AppendPronunciation", nil)
	}
	rec := make([]byte, len(keys)*syllableWidth+4)
	for i, k := range keys {
		binary.LittleEndian.PutUint16(rec[i*syllableWidth:], uint16(k))
	}
	binary.LittleEndian.PutUint32(rec[len(keys)*syllableWidth:], freq)
	p.buf = append(p.buf, rec...)
	p.buf[1]++
	return nil
}

// RemoveNthPronunciation removes the i'th pronunciation from an owned
// Phrase Item.
func (p *PhraseItem) RemoveNthPronunciation(i int) error {
	if i < 0 || i >= int(p.PronunciationCount()) {
		return newError(KindRange, "RemoveNthPronunciation", nil)
	}
	stride := p.pronStride()
	base := p.pronOffset() + i*stride
	p.buf = append(p.buf[:base], p.buf[base+stride:]...)
	p.buf[1]--
	return nil
}

// SetPhrase overwrites the phrase text of a freshly constructed item
// (PronunciationCount() == 0). Using it on an item that already has
// pronunciations is a logic error, since the syllable-key width of
// every existing pronunciation is tied to the old length.
func (p *PhraseItem) SetPhrase(codepoints []rune) error {
	if p.PronunciationCount() != 0 {
		return newError(KindLogic, "SetPhrase", nil)
	}
	if len(codepoints) == 0 || len(codepoints) > MaxPhraseLen {
		return newError(KindRange, "SetPhrase", nil)
	}
	buf := make([]byte, itemHeaderLen+len(codepoints)*codepointWidth)
	copy(buf[pronCountOffset:itemHeaderLen], p.buf[pronCountOffset:itemHeaderLen])
	buf[0] = byte(len(codepoints))
	for i, r := range codepoints {
		binary.LittleEndian.PutUint32(buf[itemHeaderLen+i*codepointWidth:], uint32(r))
	}
	p.buf = buf
	return nil
}

// setUnigramFrequencyInPlace is used by SubPhraseIndex.AddUnigramFrequency to
// update the header field in place, in the content buffer itself.
func setUnigramFrequencyInPlace(raw []byte, v uint32) {
	binary.LittleEndian.PutUint32(raw[pronCountOffset:], v)
}

func addU32(a, b uint32) (uint32, bool) {
	sum := a + b
	if sum < a {
		return a, false
	}
	return sum, true
}
