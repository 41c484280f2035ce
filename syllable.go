package pinyin

// MaxPhraseLen is the largest number of Unicode codepoints (and
// syllables) a single phrase may have.
const MaxPhraseLen = 16

// SyllableKey packs one syllable's (initial, final, tone) triple into
// a u16, as produced by the external pinyin surface parser (out of
// scope per spec.md §1; consumed here as an opaque comparable value).
type SyllableKey uint16

const (
	initialShift = 11 // bits 11..15: initial (5 bits, <=31 initials)
	finalShift   = 3  // bits 3..10: final (8 bits, <=255 finals)
	toneMask     = 0x7 // bits 0..2: tone (0..7)
)

// NewSyllableKey packs an (initial, final, tone) triple. initial and
// final are small dense indices assigned by the external pinyin
// table; tone is 0 (neutral/unspecified) through 5.
func NewSyllableKey(initial, final uint8, tone uint8) SyllableKey {
	return SyllableKey(uint16(initial)<<initialShift | uint16(final)<<finalShift | uint16(tone&toneMask))
}

func (k SyllableKey) Initial() uint8 { return uint8(k >> initialShift) }
func (k SyllableKey) Final() uint8   { return uint8(k>>finalShift) & 0xff }
func (k SyllableKey) Tone() uint8    { return uint8(k) & toneMask }

// Options is the opaque fuzzy/tone-matching bit-set forwarded to the
// phonetic index and to pinyin-possibility comparisons. Its bit
// layout is defined by the external phonetic index; this package
// never interprets individual bits.
type Options uint32

// matchKey reports whether a stored syllable key matches a query key
// under the given match options. Exact equality is always a match;
// when options carries the tone-insensitive bit (bit 0, by
// convention shared with the external phonetic index) initial/final
// must still match but tone is ignored.
func matchKey(stored, query SyllableKey, opts Options) bool {
	if stored == query {
		return true
	}
	const ignoreTone Options = 1
	if opts&ignoreTone != 0 {
		return stored.Initial() == query.Initial() && stored.Final() == query.Final()
	}
	return false
}

// Pronunciation is one fixed-width pronunciation record: up to
// MaxPhraseLen syllable keys (only the first Len are meaningful) and
// the training-corpus count observed for this phrase under this
// pronunciation.
type Pronunciation struct {
	Len   uint8
	Keys  [MaxPhraseLen]SyllableKey
	Count uint32
}

// Matches reports whether q matches this pronunciation's keys under
// opts; q must have exactly Len keys, otherwise it never matches.
func (p *Pronunciation) Matches(q []SyllableKey, opts Options) bool {
	if len(q) != int(p.Len) {
		return false
	}
	for i, k := range q {
		if !matchKey(p.Keys[i], k, opts) {
			return false
		}
	}
	return true
}
