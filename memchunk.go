package pinyin

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// chunkMode records how a MemoryChunk currently holds its bytes. A
// chunk starts life in one of owned/borrowed/subSlice and may
// transition from borrowed to owned on first mutation (see upgrade).
type chunkMode int

const (
	modeOwned chunkMode = iota
	modeBorrowed
	modeSubSlice
)

// MemoryChunk is a growable byte buffer with three back-ends: an
// owned, malloc-grown slice; a borrowed region (typically a mapped
// file) that is copy-on-write on mutation; and a non-owning sub-slice
// view of another MemoryChunk. This mirrors the teacher's MappedFile
// (model.go/hashed.go), generalized to also cover owned buffers and
// sub-views instead of only read-only mmap'd model files.
type MemoryChunk struct {
	mode chunkMode
	// buf is the live view of the bytes, regardless of mode.
	buf []byte
	// owned is the backing array when mode == modeOwned; len(owned) is
	// the capacity, buf is owned[:size].
	owned []byte
	// mapping is non-nil when this chunk (or the chunk it was bound
	// from) owns an mmap'd region that must be unmapped on Close.
	mapping mmap.MMap
	file    *os.File
	// releaser is called once when a modeBorrowed chunk bound via
	// SetChunk is Closed, rebound, or upgraded to an owned copy by its
	// first mutation (Close semantics for an externally-owned region).
	releaser func()
}

// NewMemoryChunk returns an empty, owned MemoryChunk.
func NewMemoryChunk() *MemoryChunk {
	return &MemoryChunk{mode: modeOwned}
}

// Size returns the number of live bytes.
func (c *MemoryChunk) Size() int { return len(c.buf) }

// Capacity returns the number of bytes available before the next
// growth needs to reallocate. Borrowed and sub-slice chunks report
// their current size as their capacity, since growing them always
// upgrades to an owned buffer first.
func (c *MemoryChunk) Capacity() int {
	if c.mode == modeOwned {
		return cap(c.owned)
	}
	return len(c.buf)
}

// AsSlice returns a read-only view of the chunk's bytes.
func (c *MemoryChunk) AsSlice() []byte { return c.buf }

// AsMutSlice returns a mutable view of the chunk's bytes. Calling this
// on a borrowed chunk does not itself copy; callers that intend to
// write through the returned slice on a borrowed chunk must not do so
// directly — use SetContent/InsertContent/etc., which upgrade first.
func (c *MemoryChunk) AsMutSlice() []byte { return c.buf }

// upgrade copies a borrowed or sub-slice chunk into an owned buffer.
// No-op if already owned. Must be called before any size-changing or
// in-place-mutating operation.
func (c *MemoryChunk) upgrade() {
	if c.mode == modeOwned {
		return
	}
	owned := make([]byte, len(c.buf))
	copy(owned, c.buf)
	c.releaseBacking()
	c.mode = modeOwned
	c.owned = owned
	c.buf = owned
}

func (c *MemoryChunk) releaseBacking() {
	if c.mapping != nil {
		c.mapping.Unmap()
		c.mapping = nil
	}
	if c.file != nil {
		c.file.Close()
		c.file = nil
	}
	if c.releaser != nil {
		c.releaser()
		c.releaser = nil
	}
}

// grow ensures cap(c.owned) >= n, doubling capacity (or growing to n,
// whichever is larger) per spec.md §4.1's growth policy.
func (c *MemoryChunk) grow(n int) {
	if cap(c.owned) >= n {
		return
	}
	want := cap(c.owned) * 2
	if want < n {
		want = n
	}
	next := make([]byte, len(c.owned), want)
	copy(next, c.owned)
	c.owned = next
}

// SetSize extends or truncates the chunk to exactly n bytes, zero
// filling any newly exposed bytes.
func (c *MemoryChunk) SetSize(n int) {
	c.upgrade()
	old := len(c.owned)
	if n > cap(c.owned) {
		c.grow(n)
	}
	c.owned = c.owned[:n]
	if n > old {
		for i := old; i < n; i++ {
			c.owned[i] = 0
		}
	}
	c.buf = c.owned
}

// SetContent overwrites the bytes at offset with b, extending the
// chunk (zero-filling any gap before offset) if necessary.
func (c *MemoryChunk) SetContent(offset int, b []byte) {
	c.upgrade()
	end := offset + len(b)
	if end > len(c.owned) {
		c.SetSize(end)
	}
	copy(c.owned[offset:end], b)
}

// InsertContent shifts the tail at offset right by len(b) and writes b
// into the gap.
func (c *MemoryChunk) InsertContent(offset int, b []byte) {
	c.upgrade()
	oldSize := len(c.owned)
	c.SetSize(oldSize + len(b))
	copy(c.owned[offset+len(b):], c.owned[offset:oldSize])
	copy(c.owned[offset:offset+len(b)], b)
}

// RemoveContent shifts the tail after offset+length left by length
// bytes, shrinking the chunk.
func (c *MemoryChunk) RemoveContent(offset, length int) error {
	if offset+length > len(c.buf) {
		return newError(KindRange, "RemoveContent", nil)
	}
	c.upgrade()
	copy(c.owned[offset:], c.owned[offset+length:])
	c.SetSize(len(c.owned) - length)
	return nil
}

// GetContent copies length bytes starting at offset into out, which
// must have len(out) == length.
func (c *MemoryChunk) GetContent(offset int, out []byte) error {
	if offset+len(out) > len(c.buf) {
		return newError(KindRange, "GetContent", nil)
	}
	copy(out, c.buf[offset:offset+len(out)])
	return nil
}

// SetChunk binds the chunk to an externally owned, borrowed region.
// releaser, if non-nil, is invoked when the chunk is later Closed or
// upgraded away from this region. Any subsequent growth/mutation
// transparently copies the region into an owned buffer first.
func (c *MemoryChunk) SetChunk(region []byte, releaser func()) {
	c.releaseBacking()
	c.mode = modeBorrowed
	c.buf = region
	c.releaser = releaser
}

// SubSlice returns a non-owning view over [offset, offset+length) of
// c. The returned chunk must not outlive c, and any mutation of it
// upgrades only the sub-slice's own copy, never c.
func (c *MemoryChunk) SubSlice(offset, length int) (*MemoryChunk, error) {
	if offset+length > len(c.buf) {
		return nil, newError(KindRange, "SubSlice", nil)
	}
	return &MemoryChunk{mode: modeSubSlice, buf: c.buf[offset : offset+length : offset+length]}, nil
}

// Load replaces the chunk's content with the file at path, mapped
// copy-on-write (private) so in-memory writes never touch disk until an
// explicit upgrade+Save. This is the "borrowed" path of spec.md §4.1;
// ground truth is the teacher's OpenMappedFile (model.go) generalized
// from syscall.Mmap to the portable edsrzf/mmap-go wrapper (see
// DESIGN.md).
func (c *MemoryChunk) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return newError(KindIO, "Load", err)
	}
	m, err := mmap.Map(f, mmap.COPY, 0)
	if err != nil {
		f.Close()
		return newError(KindIO, "Load", err)
	}
	c.releaseBacking()
	c.mode = modeBorrowed
	c.mapping = m
	c.file = f
	c.buf = []byte(m)
	return nil
}

// Save writes the chunk's current bytes to path and syncs them to
// disk.
func (c *MemoryChunk) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return newError(KindIO, "Save", err)
	}
	defer f.Close()
	if _, err := f.Write(c.buf); err != nil {
		return newError(KindIO, "Save", err)
	}
	if err := f.Sync(); err != nil {
		return newError(KindIO, "Save", err)
	}
	return nil
}

// Compact shrinks an owned chunk's capacity down to its size. No-op
// for borrowed or sub-slice chunks.
func (c *MemoryChunk) Compact() {
	if c.mode != modeOwned {
		return
	}
	shrunk := make([]byte, len(c.owned))
	copy(shrunk, c.owned)
	c.owned = shrunk
	c.buf = c.owned
}

// Close releases any mapped file or external-region resources held by
// the chunk. Safe to call multiple times.
func (c *MemoryChunk) Close() error {
	c.releaseBacking()
	return nil
}
