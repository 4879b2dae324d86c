package face

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFace(flags Flags) *Face {
	return NewFace(NewLoopbackTransport(func([]byte) {}), flags, 8192)
}

func TestEnrollAssignsLowestFreeSlot(t *testing.T) {
	tbl := NewTable()
	f1 := newTestFace(0)
	f2 := newTestFace(0)

	id1, ok := tbl.Enroll(f1)
	require.True(t, ok)
	id2, ok := tbl.Enroll(f2)
	require.True(t, ok)

	assert.NotEqual(t, id1, id2)
	assert.Same(t, f1, tbl.Lookup(id1))
	assert.Same(t, f2, tbl.Lookup(id2))
}

func TestLookupMissesStaleFaceIDAfterGenerationBump(t *testing.T) {
	tbl := NewTable()
	f1 := newTestFace(0) // not UNDECIDED: removal bumps generation
	id1, _ := tbl.Enroll(f1)

	tbl.Remove(id1)
	assert.Nil(t, tbl.Lookup(id1))

	// fill the other 15 of the 16 initial slots so the rover wraps back
	// to the freed slot 0
	for i := 1; i < 16; i++ {
		tbl.Enroll(newTestFace(0))
	}

	f2 := newTestFace(0)
	id2, _ := tbl.Enroll(f2)

	gen1, slot1 := splitFaceID(id1)
	gen2, slot2 := splitFaceID(id2)
	assert.Equal(t, slot1, slot2) // slot reused
	assert.Greater(t, gen2, gen1) // generation bumped
	assert.Nil(t, tbl.Lookup(id1))
	assert.Same(t, f2, tbl.Lookup(id2))
}

func TestUndecidedTeardownRecyclesSlotWithoutGenerationBump(t *testing.T) {
	tbl := NewTable()
	f1 := newTestFace(FlagUndecided)
	id1, _ := tbl.Enroll(f1)

	tbl.Remove(id1)

	f2 := newTestFace(0)
	id2, _ := tbl.Enroll(f2)

	gen1, slot1 := splitFaceID(id1)
	gen2, slot2 := splitFaceID(id2)
	assert.Equal(t, slot1, slot2)
	assert.Equal(t, gen1, gen2)
}

func TestLookupByPeerDemultiplexesDatagrams(t *testing.T) {
	tbl := NewTable()
	f := newTestFace(FlagDgram)
	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 1234}
	tbl.BindPeer(addr, f)

	assert.Same(t, f, tbl.LookupByPeer(addr))
	assert.Nil(t, tbl.LookupByPeer(&net.UDPAddr{IP: net.ParseIP("192.0.2.2"), Port: 1234}))
}

func TestForEachVisitsOnlyOccupiedSlots(t *testing.T) {
	tbl := NewTable()
	f1 := newTestFace(0)
	f2 := newTestFace(0)
	id1, _ := tbl.Enroll(f1)
	tbl.Enroll(f2)
	tbl.Remove(id1)

	var seen []*Face
	tbl.ForEach(func(f *Face) { seen = append(seen, f) })
	require.Len(t, seen, 1)
	assert.Same(t, f2, seen[0])
}
