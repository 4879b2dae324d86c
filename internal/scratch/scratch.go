// Package scratch implements the daemon's single-slot reusable buffer
// pool (spec.md §2.2, §5 "shared resources"). The dispatcher is
// single-threaded and cooperative, so there is exactly one holder at a
// time and no synchronization is needed; a holder must Release before
// another handler may Get.
package scratch

// BytePool is a single reusable byte-buffer slot.
type BytePool struct {
	buf   []byte
	held  bool
	owner string
}

// Get loans the buffer to owner, growing it to at least n bytes.
// Panics if the buffer is already on loan — callers must Release
// before requesting it again, matching the "cooperatively loaned"
// invariant in spec.md §5.
func (p *BytePool) Get(owner string, n int) []byte {
	if p.held {
		panic("scratch: byte pool already on loan to " + p.owner)
	}
	if cap(p.buf) < n {
		p.buf = make([]byte, n)
	}
	p.buf = p.buf[:n]
	p.held = true
	p.owner = owner
	return p.buf
}

// Release returns the buffer to the pool.
func (p *BytePool) Release() {
	p.held = false
	p.owner = ""
}

// IndexPool is a single reusable slot for a []int scratch buffer
// (e.g. name-component offset lists during parsing).
type IndexPool struct {
	buf   []int
	held  bool
	owner string
}

// Get loans the index buffer to owner, growing it to at least n ints.
func (p *IndexPool) Get(owner string, n int) []int {
	if p.held {
		panic("scratch: index pool already on loan to " + p.owner)
	}
	if cap(p.buf) < n {
		p.buf = make([]int, n)
	}
	p.buf = p.buf[:n]
	p.held = true
	p.owner = owner
	return p.buf
}

// Release returns the index buffer to the pool.
func (p *IndexPool) Release() {
	p.held = false
	p.owner = ""
}
