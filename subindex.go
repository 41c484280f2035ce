package pinyin

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// contentSentinel is the reserved "absent" offset; offset 0 in the
// content buffer is never a real Phrase Item.
const contentSentinel = 0

// SubPhraseIndex is a per-library table mapping (token & idMask) to an
// offset into a content buffer of concatenated Phrase Items, plus the
// aggregate unigram total over every live item (spec.md §3/§4.2).
type SubPhraseIndex struct {
	index   *MemoryChunk // u32 offset per in-library id
	content *MemoryChunk // concatenated Phrase Items; content[0] reserved
	total   uint32
}

// NewSubPhraseIndex returns an empty Sub-Phrase Index.
func NewSubPhraseIndex() *SubPhraseIndex {
	content := NewMemoryChunk()
	content.SetSize(8) // reserve offset 0 so a real item never lands there
	return &SubPhraseIndex{index: NewMemoryChunk(), content: content}
}

// PhraseIndexTotalFreq returns the aggregate unigram total.
func (s *SubPhraseIndex) PhraseIndexTotalFreq() uint32 { return s.total }

func (s *SubPhraseIndex) slotOffset(id uint32) int { return int(id) * 4 }

func (s *SubPhraseIndex) ensureSlot(id uint32) {
	need := s.slotOffset(id) + 4
	if s.index.Size() < need {
		s.index.SetSize(need)
	}
}

func (s *SubPhraseIndex) offsetOf(id uint32) uint32 {
	off := s.slotOffset(id)
	if off+4 > s.index.Size() {
		return contentSentinel
	}
	return binary.LittleEndian.Uint32(s.index.AsSlice()[off:])
}

func (s *SubPhraseIndex) setOffsetOf(id uint32, offset uint32) {
	s.ensureSlot(id)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], offset)
	s.index.SetContent(s.slotOffset(id), b[:])
}

// AddUnigramFrequency adds delta (positive or negative) to token's
// unigram count and to the Sub-Phrase Index's total. Fails with
// KindRange if token is absent, KindOverflow if the add would
// overflow or underflow the u32 field (in which case neither the item
// nor the total are modified).
func (s *SubPhraseIndex) AddUnigramFrequency(token Token, delta int64) error {
	offset := s.offsetOf(token.Id())
	if offset == contentSentinel {
		return newError(KindRange, "AddUnigramFrequency", nil)
	}
	item := phraseItemView(s.content.AsSlice()[offset:])
	cur := int64(item.UnigramFrequency())
	next := cur + delta
	if next < 0 || next > int64(^uint32(0)) {
		return newError(KindOverflow, "AddUnigramFrequency", nil)
	}
	setUnigramFrequencyInPlace(s.content.AsMutSlice()[offset:], uint32(next))
	s.total = uint32(int64(s.total) + delta)
	return nil
}

// GetPhraseItem returns a borrowed view of token's Phrase Item.
// Reports false if token is absent.
func (s *SubPhraseIndex) GetPhraseItem(token Token) (*PhraseItem, bool) {
	offset := s.offsetOf(token.Id())
	if offset == contentSentinel {
		return nil, false
	}
	raw := s.content.AsSlice()[offset:]
	item := phraseItemView(raw)
	return phraseItemView(raw[:item.byteLen():item.byteLen()]), true
}

// AddPhraseItem appends item's bytes to the end of the content
// buffer, records the new offset for token, and adds item's unigram
// frequency to the running total. If token already has an item, the
// old bytes are left as unreachable garbage in content (never
// revisited, since the index now points elsewhere) — callers that
// want to replace must RemovePhraseItem first if they care about
// reclaiming the dead bytes (the design favors append-only simplicity
// over compaction, matching the teacher's content-buffer-as-log
// style; this type provides no operation that reclaims dead bytes).
func (s *SubPhraseIndex) AddPhraseItem(token Token, item *PhraseItem) error {
	offset := uint32(s.content.Size())
	s.content.InsertContent(s.content.Size(), item.buf)
	s.setOffsetOf(token.Id(), offset)
	next, ok := addU32(s.total, item.UnigramFrequency())
	if !ok {
		return newError(KindOverflow, "AddPhraseItem", nil)
	}
	s.total = next
	return nil
}

// RemovePhraseItem clears token's slot (writing back the absent
// sentinel) and returns an owned copy of the removed Phrase Item.
func (s *SubPhraseIndex) RemovePhraseItem(token Token) (*PhraseItem, error) {
	offset := s.offsetOf(token.Id())
	if offset == contentSentinel {
		return nil, newError(KindRange, "RemovePhraseItem", nil)
	}
	raw := s.content.AsSlice()[offset:]
	view := phraseItemView(raw)
	n := view.byteLen()
	owned := make([]byte, n)
	copy(owned, raw[:n])
	s.setOffsetOf(token.Id(), contentSentinel)
	s.total -= view.UnigramFrequency()
	return &PhraseItem{buf: owned}, nil
}

// checksum returns an xxhash digest of the index+content buffers,
// stored alongside the on-disk image (§6) so FormatError can be
// raised on a corrupted file at attach time rather than later, deep
// inside a decode.
func (s *SubPhraseIndex) checksum() uint64 {
	h := xxhash.New()
	h.Write(s.index.AsSlice())
	h.Write(s.content.AsSlice())
	return h.Sum64()
}

const subIndexPad = '#'

// Save writes the Sub-Phrase Index on-disk image (spec.md §6): a
// fixed header (total, index_begin, content_begin, end), '#'
// separators, the index buffer, the content buffer, and a trailing
// xxhash checksum used to detect corruption on Load.
func (s *SubPhraseIndex) Save(path string) error {
	out := NewMemoryChunk()
	header := make([]byte, 16)
	indexBegin := uint32(len(header) + 1)
	contentBegin := indexBegin + uint32(s.index.Size()) + 1
	end := contentBegin + uint32(s.content.Size()) + 1
	binary.LittleEndian.PutUint32(header[0:], s.total)
	binary.LittleEndian.PutUint32(header[4:], indexBegin)
	binary.LittleEndian.PutUint32(header[8:], contentBegin)
	binary.LittleEndian.PutUint32(header[12:], end)
	out.SetContent(0, header)
	out.SetContent(len(header), []byte{subIndexPad})
	out.SetContent(int(indexBegin), s.index.AsSlice())
	out.SetContent(int(indexBegin)+s.index.Size(), []byte{subIndexPad})
	out.SetContent(int(contentBegin), s.content.AsSlice())
	out.SetContent(int(contentBegin)+s.content.Size(), []byte{subIndexPad})
	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], s.checksum())
	out.SetContent(int(end), sum[:])
	return out.Save(path)
}

// Load replaces this Sub-Phrase Index's contents from the on-disk
// image at path, verifying the trailing checksum.
func (s *SubPhraseIndex) Load(path string) error {
	raw := NewMemoryChunk()
	if err := raw.Load(path); err != nil {
		return err
	}
	buf := raw.AsSlice()
	if len(buf) < 16+8+2 {
		return newError(KindFormat, "Load", nil)
	}
	total := binary.LittleEndian.Uint32(buf[0:])
	indexBegin := binary.LittleEndian.Uint32(buf[4:])
	contentBegin := binary.LittleEndian.Uint32(buf[8:])
	end := binary.LittleEndian.Uint32(buf[12:])
	if int(end)+8 > len(buf) {
		return newError(KindFormat, "Load", nil)
	}
	index := NewMemoryChunk()
	index.SetContent(0, buf[indexBegin:contentBegin-1])
	content := NewMemoryChunk()
	content.SetContent(0, buf[contentBegin:end-1])
	loaded := &SubPhraseIndex{index: index, content: content, total: total}
	want := binary.LittleEndian.Uint64(buf[end:])
	if loaded.checksum() != want {
		return newError(KindFormat, "Load", nil)
	}
	*s = *loaded
	return nil
}
