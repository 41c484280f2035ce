package pinyin

import (
	"container/heap"
	"math"
)

// DefaultBeamWidth is the decoder's default beam cap W (spec.md §4.5,
// §9: exposed as a construction parameter rather than a fixed
// constant).
const DefaultBeamWidth = 32

// TrainingFactor is the fixed per-confirmation increment applied to
// matched pronunciation counts, unigram counts, and bigram frequencies
// during on-line training (spec.md §4.5).
const TrainingFactor = 20

// hypothesis is one surviving (prev-token, landing-token,
// log-probability, backpointer) record at a decoder column (spec.md
// §3).
type hypothesis struct {
	prev    Token
	token   Token
	logPoss float64
	back    int
}

// step is one lattice column: an index from landing-token to its slot
// in content, and the content vector itself (spec.md §3).
type step struct {
	index   map[Token]int
	content []hypothesis
}

// emitOrMerge is the single emission rule used throughout the column
// advance: within a step, landing-token values are unique; a new
// hypothesis with a strictly greater log_poss replaces the existing
// one for that landing token, otherwise the existing hypothesis wins
// (spec.md §3 invariant, §4.5 step 3c "equal keeps the existing
// entry").
func emitOrMerge(s *step, landing Token, h hypothesis) {
	if i, ok := s.index[landing]; ok {
		if s.content[i].logPoss >= h.logPoss {
			return
		}
		s.content[i] = h
		return
	}
	s.index[landing] = len(s.content)
	s.content = append(s.content, h)
}

// hypHeap is a min-heap over hypothesis.logPoss, used to select the
// top-W beam without sorting the whole column (spec.md §9's
// replacement for a "winner tree").
type hypHeap []hypothesis

func (h hypHeap) Len() int            { return len(h) }
func (h hypHeap) Less(i, j int) bool  { return h[i].logPoss < h[j].logPoss }
func (h hypHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hypHeap) Push(x interface{}) { *h = append(*h, x.(hypothesis)) }
func (h *hypHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// selectTopW returns the w hypotheses in content with the greatest
// logPoss (unordered). If len(content) <= w, content is returned
// unchanged.
func selectTopW(content []hypothesis, w int) []hypothesis {
	if len(content) <= w {
		return content
	}
	h := make(hypHeap, 0, w)
	for _, c := range content {
		if len(h) < w {
			heap.Push(&h, c)
		} else if c.logPoss > h[0].logPoss {
			heap.Pop(&h)
			heap.Push(&h, c)
		}
	}
	return []hypothesis(h)
}

// Decoder is the Pinyin Lattice Decoder: owns no persistent state
// across calls, only the shared read-mostly resources it searches
// over (spec.md §2 item 7, §4.5).
type Decoder struct {
	phonetic  PhoneticIndex
	phrase    *FacadePhraseIndex
	bigram    *BigramStore
	lambda    float64
	beamWidth int
}

// NewDecoder wires a decoder to its phonetic index, phrase index, and
// bigram store, with the bigram/unigram mixture weight lambda and the
// default beam width.
func NewDecoder(phonetic PhoneticIndex, phrase *FacadePhraseIndex, bigram *BigramStore, lambda float64) *Decoder {
	return &Decoder{phonetic: phonetic, phrase: phrase, bigram: bigram, lambda: lambda, beamWidth: DefaultBeamWidth}
}

// SetBeamWidth overrides the beam cap W; w <= 0 is ignored.
func (d *Decoder) SetBeamWidth(w int) {
	if w > 0 {
		d.beamWidth = w
	}
}

func (d *Decoder) beamW() int {
	if d.beamWidth <= 0 {
		return DefaultBeamWidth
	}
	return d.beamWidth
}

func constraintAt(cs Constraints, i int) Constraint {
	if i < 0 || i >= len(cs) {
		return Constraint{Kind: ConstraintNone}
	}
	return cs[i]
}

func allNone(cs Constraints, start, length int) bool {
	for i := start; i < start+length; i++ {
		if constraintAt(cs, i).Kind != ConstraintNone {
			return false
		}
	}
	return true
}

// buildTableCache fills cache[1..cacheLen] with the candidate token
// ranges (per library) whose pronunciation matches keys[k:k+L]
// exactly, growing L until the phonetic index reports no further
// match (spec.md §4.5 step 1). pool is the per-L scratch space
// prepared once per GetBestMatch call (facade.go's PrepareRanges) and
// cleared here for reuse across columns rather than reallocated.
func (d *Decoder) buildTableCache(keys []SyllableKey, k, n int, opts Options, pool []RangeSet) ([]RangeSet, int) {
	maxL := MaxPhraseLen
	if n-k < maxL {
		maxL = n - k
	}
	cache := pool[:maxL+1]
	cacheLen := 0
	for L := 1; L <= maxL; L++ {
		ClearRanges(cache[L])
		rs, found := d.phonetic.Search(keys[k:k+L], opts, cache[L])
		if !found {
			break
		}
		cache[L] = rs
		cacheLen = L
	}
	return cache, cacheLen
}

// scoreBigram computes the bigram path's three factors for extending
// prev with candidate t over the syllable run keys. ok is false when
// both bigram_poss and unigram_poss are negligible, or the pinyin
// match is negligible — in all of these cases the caller must skip
// the extension (spec.md §4.5 step 3b).
func (d *Decoder) scoreBigram(prev, t Token, keys []SyllableKey, opts Options) (bigramPoss, unigramPoss, pinyinPoss float64, ok bool) {
	merged := d.bigram.MergedSingleGram(prev)
	if total := merged.GetTotalFreq(); total > 0 {
		if f, has := merged.GetFreq(t); has {
			bigramPoss = float64(f) / float64(total)
		}
	}
	unigramPoss = float64(d.phrase.UnigramPossibility(t))
	if bigramPoss < epsilon && unigramPoss < epsilon {
		return 0, 0, 0, false
	}
	item, has := d.phrase.GetPhraseItem(t)
	if !has {
		return 0, 0, 0, false
	}
	pinyinPoss = float64(item.PinyinPossibility(opts, keys))
	if pinyinPoss < epsilon {
		return 0, 0, 0, false
	}
	return bigramPoss, unigramPoss, pinyinPoss, true
}

// extendPinned applies the constraint-forced extension of spec.md
// §4.5 step 4: the only legal extension at a PINNED position is its
// constraint token, scored with the bigram-path formula, falling back
// to the unigram-only formula when bigram_poss is 0. Emits whenever the
// token is in the phrase index and its span fits within keys, so the
// pinned token propagates; otherwise nothing is emitted.
func (d *Decoder) extendPinned(steps []step, k int, h hypothesis, c Constraint, keys []SyllableKey, opts Options) {
	t := c.Token
	item, ok := d.phrase.GetPhraseItem(t)
	if !ok {
		return
	}
	length := int(item.Length())
	if k+length > len(keys) {
		return
	}
	sub := keys[k : k+length]
	pinyinPoss := float64(item.PinyinPossibility(opts, sub))
	merged := d.bigram.MergedSingleGram(h.token)
	var bigramPoss float64
	if total := merged.GetTotalFreq(); total > 0 {
		if f, has := merged.GetFreq(t); has {
			bigramPoss = float64(f) / float64(total)
		}
	}
	unigramPoss := float64(d.phrase.UnigramPossibility(t))
	var newLog float64
	if bigramPoss > 0 {
		mix := d.lambda*bigramPoss + (1-d.lambda)*unigramPoss
		newLog = h.logPoss + math.Log(mix*pinyinPoss)
	} else {
		newLog = h.logPoss + math.Log(unigramPoss*pinyinPoss*(1-d.lambda))
	}
	emitOrMerge(&steps[k+length], t, hypothesis{prev: h.token, token: t, logPoss: newLog, back: k})
}

// advanceColumn processes one column k: forms the beam, then extends
// every surviving hypothesis per its constraint (spec.md §4.5 steps
// 2-4).
func (d *Decoder) advanceColumn(steps []step, k int, keys []SyllableKey, constraints Constraints, opts Options, pool []RangeSet) {
	n := len(keys)
	cache, cacheLen := d.buildTableCache(keys, k, n, opts, pool)

	beam := steps[k].content
	if len(beam) > d.beamW() {
		beam = selectTopW(beam, d.beamW())
	}
	if len(beam) == 0 {
		return
	}
	maxIdx := 0
	for i := 1; i < len(beam); i++ {
		if beam[i].logPoss > beam[maxIdx].logPoss {
			maxIdx = i
		}
	}
	hMax := beam[maxIdx]

	for i, h := range beam {
		c := constraintAt(constraints, k)
		switch c.Kind {
		case ConstraintBlocked:
			continue
		case ConstraintPinned:
			d.extendPinned(steps, k, h, c, keys, opts)
		default:
			p := h.token
			isMax := i == maxIdx
			for L := 1; L <= cacheLen; L++ {
				if k+L > n || !allNone(constraints, k, L) {
					continue
				}
				rs := cache[L]
				sub := keys[k : k+L]
				for lib := range rs {
					for _, r := range rs[lib] {
						for id := r.Begin.Id(); id < r.End.Id(); id++ {
							t := NewToken(uint8(lib), id)
							bigramPoss, unigramPoss, pinyinPoss, ok := d.scoreBigram(p, t, sub, opts)
							if !ok {
								continue
							}
							mix := d.lambda*bigramPoss + (1-d.lambda)*unigramPoss
							newLog := h.logPoss + math.Log(mix*pinyinPoss)
							emitOrMerge(&steps[k+L], t, hypothesis{prev: p, token: t, logPoss: newLog, back: k})
							if isMax && unigramPoss >= epsilon {
								uLog := hMax.logPoss + math.Log(unigramPoss*pinyinPoss*(1-d.lambda))
								emitOrMerge(&steps[k+L], t, hypothesis{prev: p, token: t, logPoss: uLog, back: k})
							}
						}
					}
				}
			}
		}
	}
}

// GetBestMatch runs the full beam search over keys and backtraces the
// winning sentence (spec.md §4.5). Returns false with a zero-filled
// results vector if no hypothesis survives to the last column.
func (d *Decoder) GetBestMatch(prefixes []Token, keys []SyllableKey, constraints Constraints, opts Options) (bool, []Token) {
	n := len(keys)
	if n == 0 {
		return true, []Token{}
	}
	steps := make([]step, n+1)
	for i := range steps {
		steps[i].index = make(map[Token]int)
	}
	for _, pfx := range prefixes {
		emitOrMerge(&steps[0], pfx, hypothesis{prev: NullToken, token: pfx, logPoss: 0, back: -1})
	}

	pool := make([]RangeSet, MaxPhraseLen+1)
	for l := 1; l <= MaxPhraseLen; l++ {
		pool[l] = d.phrase.PrepareRanges()
	}
	defer func() {
		for _, rs := range pool {
			DestroyRanges(rs)
		}
	}()
	for k := 0; k < n; k++ {
		d.advanceColumn(steps, k, keys, constraints, opts, pool)
	}
	results := make([]Token, n+1)
	if len(steps[n].content) == 0 {
		return false, results
	}
	best := steps[n].content[0]
	for _, h := range steps[n].content[1:] {
		if h.logPoss > best.logPoss {
			best = h
		}
	}
	cur := best
	for cur.back != -1 {
		pos := cur.back
		results[pos] = cur.token
		idx, ok := steps[pos].index[cur.prev]
		if !ok {
			break
		}
		cur = steps[pos].content[idx]
	}
	return true, results
}

// Train feeds constraint-confirmed transitions back into the user
// bigram layer and the Facade Phrase Index (spec.md §4.5 "Training").
// Training activates at every PINNED position, covering the pair
// leading into it and the pair leading out to the next non-null
// token, so a pinned word's successor is learned too.
func (d *Decoder) Train(keys []SyllableKey, constraints Constraints, results []Token) error {
	type landed struct {
		pos   int
		token Token
	}
	var seq []landed
	for i, t := range results {
		if t != NullToken {
			seq = append(seq, landed{pos: i, token: t})
		}
	}
	train := func(prev, cur Token, pos, length int) {
		if item, ok := d.phrase.GetPhraseItem(cur); ok && length > 0 && pos+length <= len(keys) {
			item.IncreasePinyinPossibility(Options(0), keys[pos:pos+length], TrainingFactor)
		}
		d.phrase.AddUnigramFrequency(cur, TrainingFactor)
		d.bigram.Train(prev, cur, TrainingFactor)
	}
	lengthOf := func(t Token) int {
		if item, ok := d.phrase.GetPhraseItem(t); ok {
			return int(item.Length())
		}
		return 0
	}
	for j, e := range seq {
		if constraintAt(constraints, e.pos).Kind != ConstraintPinned {
			continue
		}
		prev := SentenceStart
		if j > 0 {
			prev = seq[j-1].token
		}
		train(prev, e.token, e.pos, lengthOf(e.token))
		if j+1 < len(seq) {
			next := seq[j+1]
			train(e.token, next.token, next.pos, lengthOf(next.token))
		}
	}
	return nil
}

// ConvertToUTF8 reassembles the phrase string for a results vector,
// joining each non-null entry's text with delimiter (spec.md §6
// convert_to_utf8).
func ConvertToUTF8(facade *FacadePhraseIndex, results []Token, delimiter string) string {
	var out string
	first := true
	for _, t := range results {
		if t == NullToken {
			continue
		}
		s, ok := facade.PhraseString(t)
		if !ok {
			continue
		}
		if !first {
			out += delimiter
		}
		out += s
		first = false
	}
	return out
}
