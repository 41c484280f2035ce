package pinyin

// epsilon is the zero-possibility threshold used when deciding whether
// a stored pinyin no longer matches a PINNED constraint's keys.
const epsilon = 1e-9

// ConstraintKind is the per-position user directive of spec.md §3.
type ConstraintKind int

const (
	ConstraintNone ConstraintKind = iota
	ConstraintPinned
	ConstraintBlocked
)

// Constraint is one syllable position's constraint. For
// ConstraintPinned, Token and Len describe the pinned phrase starting
// here; for ConstraintBlocked, Owner is the position of the PINNED
// entry this position falls inside.
type Constraint struct {
	Kind  ConstraintKind
	Token Token
	Len   int
	Owner int
}

// Constraints is the length-N per-position constraint array consumed
// and produced by the decoder (spec.md §3/§4.5).
type Constraints []Constraint

// NewConstraints returns n NONE constraints.
func NewConstraints(n int) Constraints {
	return make(Constraints, n)
}

// AddConstraint pins position i to token, whose phrase length is
// looked up in facade. Rejects (returning 0, unchanged) if the phrase
// would run past the end of the sequence. Any existing constraints
// overlapping [i, i+len) are cleared first.
func (cs Constraints) AddConstraint(i int, token Token, facade *FacadePhraseIndex) (int, error) {
	item, ok := facade.GetPhraseItem(token)
	if !ok {
		return 0, newError(KindRange, "AddConstraint", nil)
	}
	length := int(item.Length())
	if i < 0 || i+length > len(cs) {
		return 0, nil
	}
	// Clear any existing constraints in [i, i+length).
	for j := i; j < i+length; j++ {
		cs.clearAt(j)
	}
	cs[i] = Constraint{Kind: ConstraintPinned, Token: token, Len: length}
	for j := i + 1; j < i+length; j++ {
		cs[j] = Constraint{Kind: ConstraintBlocked, Owner: i}
	}
	return length, nil
}

// clearAt clears whatever constraint touches position j, pinned or
// blocked, removing the whole owning span.
func (cs Constraints) clearAt(j int) {
	if j < 0 || j >= len(cs) {
		return
	}
	switch cs[j].Kind {
	case ConstraintPinned:
		cs.clearSpan(j, cs[j].Len)
	case ConstraintBlocked:
		owner := cs[j].Owner
		cs.clearSpan(owner, cs[owner].Len)
	}
}

func (cs Constraints) clearSpan(start, length int) {
	for k := start; k < start+length && k < len(cs); k++ {
		cs[k] = Constraint{}
	}
}

// ClearConstraint clears the constraint (PINNED or BLOCKED) touching
// position i, removing the whole pinned span it belongs to.
func (cs Constraints) ClearConstraint(i int) {
	cs.clearAt(i)
}

// ValidateConstraint resizes cs to len(keys) (padding with NONE, or
// truncating), then drops any PINNED entry whose span would now
// overrun the sequence or whose stored token no longer matches
// keys[i:i+len] under opts (spec.md §4.5).
func ValidateConstraint(cs Constraints, keys []SyllableKey, opts Options, facade *FacadePhraseIndex) Constraints {
	n := len(keys)
	if len(cs) != n {
		resized := make(Constraints, n)
		copy(resized, cs)
		cs = resized
	}
	for i := 0; i < n; i++ {
		if cs[i].Kind != ConstraintPinned {
			continue
		}
		length := cs[i].Len
		if i+length > n {
			cs.clearSpan(i, length)
			continue
		}
		item, ok := facade.GetPhraseItem(cs[i].Token)
		if !ok {
			cs.clearSpan(i, length)
			continue
		}
		if item.PinyinPossibility(opts, keys[i:i+length]) < epsilon {
			cs.clearSpan(i, length)
		}
	}
	return cs
}
