package pinyin

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	bolt "go.etcd.io/bbolt"
)

// AttachFlag controls how a BigramDB's backing file is opened.
type AttachFlag int

const (
	AttachReadOnly AttachFlag = iota
	AttachReadWrite
	AttachCreate
)

var (
	bigramBucket = []byte("bigram")
	magicKey     = make([]byte, 8) // two zero tokens, the reserved sentinel key
	bigramMagic  = []byte("#big")
)

// BigramDB is one on-disk key/value layer of the Bigram Store: key =
// 4-byte previous-token, value = Single-Gram byte image (spec.md
// §3/§6), backed by go.etcd.io/bbolt (see SPEC_FULL.md §3 for why
// bbolt over badger here).
type BigramDB struct {
	db       *bolt.DB
	readOnly bool
}

// Attach opens (and for AttachCreate, initializes) a Bigram DB file at
// path under the given flags.
func Attach(path string, flags AttachFlag) (*BigramDB, error) {
	opts := &bolt.Options{ReadOnly: flags == AttachReadOnly}
	if flags == AttachCreate {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, newError(KindIO, "Attach", err)
		}
	}
	db, err := bolt.Open(path, 0o644, opts)
	if err != nil {
		return nil, newError(KindIO, "Attach", err)
	}
	store := &BigramDB{db: db, readOnly: flags == AttachReadOnly}
	if flags == AttachCreate {
		if err := db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists(bigramBucket)
			if err != nil {
				return err
			}
			if b.Get(magicKey) == nil {
				return b.Put(magicKey, bigramMagic)
			}
			return nil
		}); err != nil {
			db.Close()
			return nil, newError(KindIO, "Attach", err)
		}
	}
	if err := store.verifyMagic(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *BigramDB) verifyMagic() error {
	var got []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bigramBucket)
		if b == nil {
			return newError(KindFormat, "verifyMagic", nil)
		}
		v := b.Get(magicKey)
		if v == nil {
			return newError(KindFormat, "verifyMagic", nil)
		}
		got = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return err
	}
	for i, b := range bigramMagic {
		if got[i] != b {
			return newError(KindFormat, "verifyMagic", nil)
		}
	}
	return nil
}

func tokenKey(t Token) []byte {
	var k [4]byte
	binary.LittleEndian.PutUint32(k[:], uint32(t))
	return k[:]
}

// Load reads token's Single-Gram. The copy parameter is accepted for
// interface fidelity with spec.md §4.4 but is always honored as true:
// bbolt's value slices are only valid for the lifetime of the read
// transaction, so "borrow without copy, then no concurrent write" —
// safe in the original's raw-mmap K/V backend — cannot be expressed
// across this call boundary without holding a transaction open past
// Load's return, which would block the single-writer model (spec.md
// §5).
func (s *BigramDB) Load(token Token, copy bool) (*SingleGram, error) {
	var out *SingleGram
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bigramBucket)
		if b == nil {
			return newError(KindFormat, "Load", nil)
		}
		v := b.Get(tokenKey(token))
		if v == nil {
			return newError(KindRange, "Load", nil)
		}
		buf := make([]byte, len(v))
		copyBytes(buf, v)
		out = singleGramFromBytes(buf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func copyBytes(dst, src []byte) { copy(dst, src) }

// Store overwrites token's Single-Gram value.
func (s *BigramDB) Store(token Token, g *SingleGram) error {
	if s.readOnly {
		return newError(KindLogic, "Store", nil)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bigramBucket)
		if err != nil {
			return err
		}
		return b.Put(tokenKey(token), g.Bytes())
	})
}

// Remove deletes token's entry, if any.
func (s *BigramDB) Remove(token Token) error {
	if s.readOnly {
		return newError(KindLogic, "Remove", nil)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bigramBucket)
		if b == nil {
			return nil
		}
		return b.Delete(tokenKey(token))
	})
}

// GetAllItems enumerates every real bigram key (the magic sentinel is
// skipped).
func (s *BigramDB) GetAllItems() ([]Token, error) {
	var tokens []Token
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bigramBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			if len(k) == 4 {
				tokens = append(tokens, Token(binary.LittleEndian.Uint32(k)))
			}
			return nil
		})
	})
	return tokens, err
}

// MaskOut applies spec.md §4.4's bulk masking: keys matching the mask
// outright are removed; other keys have mask_out applied to their
// Single-Gram's successors, storing back the result (or removing the
// key if it ends up empty).
func (s *BigramDB) MaskOut(mask, value uint32) error {
	if s.readOnly {
		return newError(KindLogic, "MaskOut", nil)
	}
	tokens, err := s.GetAllItems()
	if err != nil {
		return err
	}
	for _, prev := range tokens {
		if uint32(prev)&mask == value {
			if err := s.Remove(prev); err != nil {
				return err
			}
			continue
		}
		g, err := s.Load(prev, true)
		if err != nil {
			return err
		}
		g.MaskOut(mask, value)
		if len(g.RetrieveAll()) == 0 {
			if err := s.Remove(prev); err != nil {
				return err
			}
			continue
		}
		if err := s.Store(prev, g); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying bbolt file handle.
func (s *BigramDB) Close() error { return s.db.Close() }

// BigramStore is the merge view over a read-only system layer and a
// read-write user layer (spec.md §3/§4.4).
type BigramStore struct {
	System *BigramDB
	User   *BigramDB
}

// MergedSingleGram returns the merged view for prev: user entries win
// outright, system supplies only the successors user is missing.
func (b *BigramStore) MergedSingleGram(prev Token) *SingleGram {
	var sys, usr *SingleGram
	if b.System != nil {
		if g, err := b.System.Load(prev, true); err == nil {
			sys = g
		}
	}
	if b.User != nil {
		if g, err := b.User.Load(prev, true); err == nil {
			usr = g
		}
	}
	return mergeSingleGram(sys, usr)
}

// Train applies a single load-merge-store transaction on the user
// layer for the (prev, cur) pair, adding delta to cur's frequency
// (initializing the user row from the system layer's total/entries if
// this is the first time prev is trained) per spec.md §4.5. A would-
// overflow total aborts only this one update.
func (b *BigramStore) Train(prev, cur Token, delta uint32) error {
	if b.User == nil {
		return newError(KindLogic, "Train", nil)
	}
	g, err := b.User.Load(prev, true)
	if err != nil {
		// First time prev is trained: seed the user row as a full copy
		// of the system row, not just the one entry being trained, so
		// its total stays consistent with its own entries and
		// mergeSingleGram's "add missing" step never re-adds mass
		// this row already carries.
		g = NewSingleGram()
		if b.System != nil {
			if sys, serr := b.System.Load(prev, true); serr == nil {
				for _, tf := range sys.RetrieveAll() {
					g.InsertFreq(tf.Token, tf.Freq)
				}
				g.SetTotalFreq(sys.GetTotalFreq())
			}
		}
	}
	existing, hasCur := g.GetFreq(cur)
	if !hasCur {
		if err := g.InsertFreq(cur, 0); err != nil {
			return err
		}
		existing = 0
	}
	newTotal, ok := addU32(g.GetTotalFreq(), delta)
	if !ok {
		glog.Warningf("bigram train: total overflow for prev=%v, skipping update", prev)
		return newError(KindOverflow, "Train", nil)
	}
	newFreq, ok := addU32(existing, delta)
	if !ok {
		glog.Warningf("bigram train: freq overflow for prev=%v cur=%v, skipping update", prev, cur)
		return newError(KindOverflow, "Train", nil)
	}
	g.SetTotalFreq(newTotal)
	if err := g.SetFreq(cur, newFreq); err != nil {
		return err
	}
	return b.User.Store(prev, g)
}
