package pinyin

import (
	"encoding/binary"
	"sort"
)

const (
	sgEntrySize  = 8 // u32 token, u32 freq
	sgHeaderSize = 4 // u32 total_freq
)

// SingleGram is the bigram row for one previous-token: its total and
// its (successor, count) array, kept sorted ascending by successor
// token with no duplicates (spec.md §3/§4.3). The zero value is an
// empty, valid SingleGram.
type SingleGram struct {
	buf []byte
}

// NewSingleGram returns an empty SingleGram with zero total.
func NewSingleGram() *SingleGram {
	return &SingleGram{buf: make([]byte, sgHeaderSize)}
}

// singleGramFromBytes wraps a byte image without copying (used when
// loading from the Bigram Store).
func singleGramFromBytes(b []byte) *SingleGram { return &SingleGram{buf: b} }

// Bytes returns the packed byte image of g, suitable for storing back
// into the Bigram Store.
func (g *SingleGram) Bytes() []byte { return g.buf }

func (g *SingleGram) count() int { return (len(g.buf) - sgHeaderSize) / sgEntrySize }

func (g *SingleGram) entryOffset(i int) int { return sgHeaderSize + i*sgEntrySize }

func (g *SingleGram) tokenAt(i int) Token {
	return Token(binary.LittleEndian.Uint32(g.buf[g.entryOffset(i):]))
}

func (g *SingleGram) freqAt(i int) uint32 {
	return binary.LittleEndian.Uint32(g.buf[g.entryOffset(i)+4:])
}

func (g *SingleGram) setEntryAt(i int, t Token, freq uint32) {
	off := g.entryOffset(i)
	binary.LittleEndian.PutUint32(g.buf[off:], uint32(t))
	binary.LittleEndian.PutUint32(g.buf[off+4:], freq)
}

// GetTotalFreq returns the stored total.
func (g *SingleGram) GetTotalFreq() uint32 {
	return binary.LittleEndian.Uint32(g.buf)
}

// SetTotalFreq overwrites the stored total.
func (g *SingleGram) SetTotalFreq(v uint32) {
	binary.LittleEndian.PutUint32(g.buf, v)
}

// search returns the index of token via binary search, and whether it
// was found; when not found, the index is where it would be inserted
// to keep the array sorted.
func (g *SingleGram) search(token Token) (int, bool) {
	n := g.count()
	i := sort.Search(n, func(i int) bool { return g.tokenAt(i) >= token })
	if i < n && g.tokenAt(i) == token {
		return i, true
	}
	return i, false
}

// GetFreq looks up token's frequency.
func (g *SingleGram) GetFreq(token Token) (uint32, bool) {
	i, ok := g.search(token)
	if !ok {
		return 0, false
	}
	return g.freqAt(i), true
}

// SetFreq overwrites the frequency of an already-present token. Fails
// with KindLogic if token is absent.
func (g *SingleGram) SetFreq(token Token, freq uint32) error {
	i, ok := g.search(token)
	if !ok {
		return newError(KindLogic, "SetFreq", nil)
	}
	g.setEntryAt(i, token, freq)
	return nil
}

// InsertFreq inserts a new token, keeping the array sorted. Fails
// with KindLogic if token is already present.
func (g *SingleGram) InsertFreq(token Token, freq uint32) error {
	i, ok := g.search(token)
	if ok {
		return newError(KindLogic, "InsertFreq", nil)
	}
	off := g.entryOffset(i)
	rec := make([]byte, sgEntrySize)
	binary.LittleEndian.PutUint32(rec, uint32(token))
	binary.LittleEndian.PutUint32(rec[4:], freq)
	g.buf = append(g.buf, rec...)
	copy(g.buf[off+sgEntrySize:], g.buf[off:len(g.buf)-sgEntrySize])
	copy(g.buf[off:], rec)
	return nil
}

// RemoveFreq removes token's entry, if present.
func (g *SingleGram) RemoveFreq(token Token) (uint32, bool) {
	i, ok := g.search(token)
	if !ok {
		return 0, false
	}
	freq := g.freqAt(i)
	off := g.entryOffset(i)
	g.buf = append(g.buf[:off], g.buf[off+sgEntrySize:]...)
	return freq, true
}

// Search yields (token, freq/total) for every successor in
// [r.Begin, r.End), in ascending token order. Returns nil if the
// total is 0.
func (g *SingleGram) Search(r TokenRange) []TokenProb {
	total := g.GetTotalFreq()
	if total == 0 {
		return nil
	}
	n := g.count()
	start := sort.Search(n, func(i int) bool { return g.tokenAt(i) >= r.Begin })
	var out []TokenProb
	for i := start; i < n && g.tokenAt(i) < r.End; i++ {
		out = append(out, TokenProb{Token: g.tokenAt(i), Prob: float32(g.freqAt(i)) / float32(total)})
	}
	return out
}

// TokenProb pairs a token with a probability, as returned by
// SingleGram.Search.
type TokenProb struct {
	Token Token
	Prob  float32
}

// RetrieveAll returns every (token, freq) pair in ascending token
// order.
func (g *SingleGram) RetrieveAll() []TokenFreq {
	n := g.count()
	out := make([]TokenFreq, n)
	for i := 0; i < n; i++ {
		out[i] = TokenFreq{Token: g.tokenAt(i), Freq: g.freqAt(i)}
	}
	return out
}

// TokenFreq pairs a token with a raw frequency.
type TokenFreq struct {
	Token Token
	Freq  uint32
}

// MaskOut removes every successor token t with (t & mask) == value,
// subtracting their frequencies from the total. Returns the number of
// entries removed.
func (g *SingleGram) MaskOut(mask uint32, value uint32) int {
	n := g.count()
	kept := make([]byte, sgHeaderSize, len(g.buf))
	var removedFreq uint64
	removed := 0
	for i := 0; i < n; i++ {
		t, f := g.tokenAt(i), g.freqAt(i)
		if uint32(t)&mask == value {
			removed++
			removedFreq += uint64(f)
			continue
		}
		rec := make([]byte, sgEntrySize)
		binary.LittleEndian.PutUint32(rec, uint32(t))
		binary.LittleEndian.PutUint32(rec[4:], f)
		kept = append(kept, rec...)
	}
	total := g.GetTotalFreq()
	if removedFreq > uint64(total) {
		total = 0
	} else {
		total -= uint32(removedFreq)
	}
	binary.LittleEndian.PutUint32(kept, total)
	g.buf = kept
	return removed
}

// mergeSingleGram combines a system (read-only) and user (read-write)
// SingleGram for one previous-token: the user's total and entries win
// outright; every token present in system but absent from user is
// added on top, and its frequency folded into the total (spec.md
// §4.4). Either argument may be nil.
func mergeSingleGram(system, user *SingleGram) *SingleGram {
	if user == nil && system == nil {
		return NewSingleGram()
	}
	if system == nil {
		clone := make([]byte, len(user.buf))
		copy(clone, user.buf)
		return &SingleGram{buf: clone}
	}
	if user == nil {
		clone := make([]byte, len(system.buf))
		copy(clone, system.buf)
		return &SingleGram{buf: clone}
	}
	merged := &SingleGram{buf: make([]byte, len(user.buf))}
	copy(merged.buf, user.buf)
	total := user.GetTotalFreq()
	sys := system.RetrieveAll()
	for _, tf := range sys {
		if _, ok := merged.GetFreq(tf.Token); ok {
			continue
		}
		merged.InsertFreq(tf.Token, tf.Freq)
		total += tf.Freq
	}
	merged.SetTotalFreq(total)
	return merged
}
