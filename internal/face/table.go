package face

import "net"

// slotBits is the width of the slot portion of a faceid; the
// generation occupies the bits above it (spec.md §3 "Faceid
// allocation").
const slotBits = 24

const maxSlots = 1<<slotBits - 1

// MakeFaceID packs a (generation, slot) pair into the composite faceid
// spec.md §3 describes.
func MakeFaceID(generation, slot uint64) uint64 {
	return (generation << slotBits) | slot
}

func splitFaceID(id uint64) (generation, slot uint64) {
	return id >> slotBits, id & maxSlots
}

type slotEntry struct {
	face       *Face
	generation uint64
	occupied   bool
}

// Table is the face table: a slotted array indexed by faceid, plus a
// secondary hash keyed by receive descriptor and a tertiary hash keyed
// by peer address for datagram demultiplexing (spec.md §3 item 3).
type Table struct {
	slots []slotEntry
	rover int

	byRecvFD map[int]*Face
	byPeer   map[string]*Face // key: PeerAddr().String()

	lastUndecidedSlot int // -1 if none
}

// NewTable builds an empty face table.
func NewTable() *Table {
	return &Table{
		byRecvFD:          make(map[int]*Face),
		byPeer:            make(map[string]*Face),
		lastUndecidedSlot: -1,
	}
}

// Enroll assigns f the first free slot at or after the rover, wrapping
// around the array, growing the array by ~1.5x if every slot is
// occupied (capped at 2^slotBits - 1 slots). Enroll leaves the slot's
// generation as it is; Remove advances it (spec.md §4.2).
func (t *Table) Enroll(f *Face) (faceID uint64, ok bool) {
	if len(t.slots) == 0 {
		t.slots = make([]slotEntry, 16)
	}
	start := t.rover
	for i := 0; i < len(t.slots); i++ {
		idx := (start + i) % len(t.slots)
		if !t.slots[idx].occupied {
			return t.place(f, idx), true
		}
	}
	// every slot occupied: grow.
	oldLen := len(t.slots)
	newLen := oldLen + oldLen/2
	if newLen <= oldLen {
		newLen = oldLen + 1
	}
	if newLen > maxSlots {
		newLen = maxSlots
	}
	if newLen <= oldLen {
		return 0, false // at capacity
	}
	grown := make([]slotEntry, newLen)
	copy(grown, t.slots)
	t.slots = grown
	return t.place(f, oldLen), true
}

func (t *Table) place(f *Face, idx int) uint64 {
	gen := t.slots[idx].generation
	t.slots[idx] = slotEntry{face: f, generation: gen, occupied: true}
	t.rover = (idx + 1) % len(t.slots)
	faceID := MakeFaceID(gen, uint64(idx))
	f.ID = faceID
	if f.Flags.Has(FlagUndecided) {
		t.lastUndecidedSlot = idx
	} else {
		t.lastUndecidedSlot = -1
	}
	if rfd := f.Transport.RecvFD(); rfd >= 0 {
		t.byRecvFD[rfd] = f
	}
	return faceID
}

// Lookup returns the face for faceID only if the slot is occupied and
// the stored generation matches exactly; stale faceids silently miss
// (spec.md §4.2).
func (t *Table) Lookup(faceID uint64) *Face {
	gen, slot := splitFaceID(faceID)
	if slot >= uint64(len(t.slots)) {
		return nil
	}
	e := t.slots[slot]
	if !e.occupied || e.generation != gen {
		return nil
	}
	return e.face
}

// LookupByRecvFD finds the face currently associated with a receive
// descriptor, used by the dispatcher's poll loop.
func (t *Table) LookupByRecvFD(fd int) *Face {
	return t.byRecvFD[fd]
}

// LookupByPeer finds the face associated with a datagram peer address,
// for UDP demultiplexing.
func (t *Table) LookupByPeer(addr net.Addr) *Face {
	if addr == nil {
		return nil
	}
	return t.byPeer[addr.String()]
}

// BindPeer registers f under addr in the tertiary hash.
func (t *Table) BindPeer(addr net.Addr, f *Face) {
	if addr != nil {
		t.byPeer[addr.String()] = f
	}
}

// Remove tears down the face occupying faceID. If this was the most
// recently allocated UNDECIDED face, the slot is recycled without
// advancing the generation so the rover backs up onto it; otherwise
// the generation is bumped so stale faceids never resolve to the
// face that reuses the slot (spec.md §3, §4.2).
func (t *Table) Remove(faceID uint64) {
	gen, slot := splitFaceID(faceID)
	if slot >= uint64(len(t.slots)) {
		return
	}
	e := &t.slots[slot]
	if !e.occupied || e.generation != gen {
		return
	}
	f := e.face
	if rfd := f.Transport.RecvFD(); rfd >= 0 {
		delete(t.byRecvFD, rfd)
	}
	if addr := f.Transport.PeerAddr(); addr != nil {
		delete(t.byPeer, addr.String())
	}
	wasLastUndecided := t.lastUndecidedSlot == int(slot)
	if wasLastUndecided {
		e.occupied = false
		e.face = nil
		t.rover = int(slot)
	} else {
		e.occupied = false
		e.face = nil
		e.generation++
	}
	t.lastUndecidedSlot = -1
}

// ForEach invokes fn for every currently-occupied face.
func (t *Table) ForEach(fn func(*Face)) {
	for _, e := range t.slots {
		if e.occupied {
			fn(e.face)
		}
	}
}
