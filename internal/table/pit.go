package table

import (
	"github.com/ccnx-go/ccnd/internal/wire"
)

// PitFlags are the per-PIT-entry flags from spec.md §3.
type PitFlags uint8

const (
	PitUnsent PitFlags = 1 << iota
	PitWait1
	PitStuffed1
)

// pitSentinel holds the first and last entries of the doubly-linked
// list threading every pending Interest whose longest prefix match is
// a given PrefixEntry (spec.md §3). The list is nil-terminated at both
// ends, not circular, and has no sentinel node of its own.
type pitSentinel struct {
	next, prev *PitEntry
}

func (s *pitSentinel) initSentinel() {
	s.next = (*PitEntry)(nil)
	s.prev = (*PitEntry)(nil)
}

func (s *pitSentinel) empty() bool { return s.next == nil }

func (s *pitSentinel) pushBack(e *PitEntry) {
	if s.next == nil {
		s.next, s.prev = e, e
		e.listNext, e.listPrev = nil, nil
		return
	}
	e.listPrev = s.prev
	e.listNext = nil
	s.prev.listNext = e
	s.prev = e
}

func (s *pitSentinel) remove(e *PitEntry) {
	if e.listPrev != nil {
		e.listPrev.listNext = e.listNext
	} else if s.next == e {
		s.next = e.listNext
	}
	if e.listNext != nil {
		e.listNext.listPrev = e.listPrev
	} else if s.prev == e {
		s.prev = e.listPrev
	}
	e.listNext, e.listPrev = nil, nil
}

func (s *pitSentinel) forEach(fn func(*PitEntry)) {
	for e := s.next; e != nil; {
		n := e.listNext
		fn(e)
		e = n
	}
}

// OutboundSet is the small ordered multiset of faceids a PIT entry
// still has to try (spec.md §3 "the still-outstanding outbound
// face-id set").
type OutboundSet struct {
	faces []uint64
}

func NewOutboundSet(faces ...uint64) OutboundSet {
	return OutboundSet{faces: append([]uint64(nil), faces...)}
}

func (o *OutboundSet) Len() int { return len(o.faces) }

func (o *OutboundSet) Contains(face uint64) bool {
	for _, f := range o.faces {
		if f == face {
			return true
		}
	}
	return false
}

// Remove drops face from the set if present.
func (o *OutboundSet) Remove(face uint64) {
	for i, f := range o.faces {
		if f == face {
			o.faces = append(o.faces[:i], o.faces[i+1:]...)
			return
		}
	}
}

// PopFront removes and returns the first face-id in the set.
func (o *OutboundSet) PopFront() (uint64, bool) {
	if len(o.faces) == 0 {
		return 0, false
	}
	f := o.faces[0]
	o.faces = o.faces[1:]
	return f, true
}

// Reverse reverses iteration order in place (spec.md §4.5 "iterate the
// inbound set in reverse order before returning so that history
// reordering prepends the recent-source preference").
func (o *OutboundSet) Reverse() {
	for i, j := 0, len(o.faces)-1; i < j; i, j = i+1, j-1 {
		o.faces[i], o.faces[j] = o.faces[j], o.faces[i]
	}
}

// Intersect restricts the set to faces also present in other.
func (o *OutboundSet) Intersect(other *OutboundSet) {
	kept := o.faces[:0]
	for _, f := range o.faces {
		if other.Contains(f) {
			kept = append(kept, f)
		}
	}
	o.faces = kept
}

// Faces returns a copy of the remaining face-ids, in order.
func (o *OutboundSet) Faces() []uint64 {
	return append([]uint64(nil), o.faces...)
}

// PitEntry is one pending Interest (spec.md §3 "Pending interest
// entry"). Prefix and PIT-hash membership are this struct's only
// owners; it is reachable from exactly one PrefixEntry's pending
// Interest list and from the PIT hash under its nonce (spec.md §8 invariant 4).
type PitEntry struct {
	RawInterest []byte // owned encoded Interest bytes
	Nonce       [wire.NonceLen]byte
	InFace      uint64
	Flags       PitFlags
	ResidualUs  int64
	Outbound    OutboundSet

	// SentAtUs is the wall-clock microsecond timestamp of this entry's
	// first actual send (the UNSENT -> WAIT1 transition), used to
	// measure the round trip once a ContentObject satisfies it
	// (spec.md §4.5's predictive-response statistics). Zero until sent.
	SentAtUs int64

	prefixKey string // weak back-reference to the owning PrefixEntry

	listNext, listPrev *PitEntry // sibling pointers in the prefix's list, nil at the ends
}

// PrefixKey returns the raw bytes of the prefix entry this PIT entry
// is threaded on.
func (e *PitEntry) PrefixKey() string { return e.prefixKey }

// PIT is the Pending Interest Table: a hash table keyed by Interest
// nonce (spec.md §2 item 6).
type PIT struct {
	entries map[[wire.NonceLen]byte]*PitEntry
}

// NewPIT builds an empty PIT.
func NewPIT() *PIT {
	return &PIT{entries: make(map[[wire.NonceLen]byte]*PitEntry)}
}

// Lookup returns the PIT entry for nonce, or nil.
func (p *PIT) Lookup(nonce [wire.NonceLen]byte) *PitEntry {
	return p.entries[nonce]
}

// Len reports the number of live PIT entries, exposed for
// internal/metrics.
func (p *PIT) Len() int { return len(p.entries) }

// Insert adds e to the PIT hash and threads it onto pe's pending
// Interest list.
func (p *PIT) Insert(pe *PrefixEntry, e *PitEntry) {
	e.prefixKey = pe.key
	p.entries[e.Nonce] = e
	pe.pit.pushBack(e)
}

// Remove unthreads e from its prefix's list and drops it from the PIT
// hash (spec.md §3 "Lifecycle: ... consumed when a matching
// ContentObject arrives ... or when its countdown reaches zero").
func (p *PIT) Remove(tree *NameTree, e *PitEntry) {
	delete(p.entries, e.Nonce)
	if pe, ok := tree.entries[e.prefixKey]; ok {
		pe.pit.remove(e)
	}
}

// ForEachOnPrefix invokes fn for every PIT entry threaded onto pe's
// pending-Interest list. fn may remove the current entry.
func (pe *PrefixEntry) ForEachOnPrefix(fn func(*PitEntry)) {
	pe.pit.forEach(fn)
}
