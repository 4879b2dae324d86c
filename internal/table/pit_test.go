package table

import (
	"testing"

	"github.com/ccnx-go/ccnd/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkNonce(b byte) [wire.NonceLen]byte {
	var n [wire.NonceLen]byte
	n[0] = b
	return n
}

func TestPitInsertAndLookup(t *testing.T) {
	tree := NewNameTree()
	pe := tree.Seek(wire.NameFromStr("/a"), -1)
	pit := NewPIT()

	e := &PitEntry{Nonce: mkNonce(1), InFace: 9}
	pit.Insert(pe, e)

	assert.Same(t, e, pit.Lookup(mkNonce(1)))
	assert.Equal(t, pe.Key(), e.PrefixKey())

	var seen []*PitEntry
	pe.ForEachOnPrefix(func(pe *PitEntry) { seen = append(seen, pe) })
	require.Len(t, seen, 1)
	assert.Same(t, e, seen[0])
}

func TestPitRemoveUnthreadsAndDeletes(t *testing.T) {
	tree := NewNameTree()
	pe := tree.Seek(wire.NameFromStr("/a"), -1)
	pit := NewPIT()

	e1 := &PitEntry{Nonce: mkNonce(1)}
	e2 := &PitEntry{Nonce: mkNonce(2)}
	pit.Insert(pe, e1)
	pit.Insert(pe, e2)

	pit.Remove(tree, e1)

	assert.Nil(t, pit.Lookup(mkNonce(1)))
	assert.NotNil(t, pit.Lookup(mkNonce(2)))

	var seen []*PitEntry
	pe.ForEachOnPrefix(func(pe *PitEntry) { seen = append(seen, pe) })
	require.Len(t, seen, 1)
	assert.Same(t, e2, seen[0])
}

func TestPitMultipleEntriesPreserveOrder(t *testing.T) {
	tree := NewNameTree()
	pe := tree.Seek(wire.NameFromStr("/a"), -1)
	pit := NewPIT()

	e1 := &PitEntry{Nonce: mkNonce(1)}
	e2 := &PitEntry{Nonce: mkNonce(2)}
	e3 := &PitEntry{Nonce: mkNonce(3)}
	pit.Insert(pe, e1)
	pit.Insert(pe, e2)
	pit.Insert(pe, e3)

	var seen []*PitEntry
	pe.ForEachOnPrefix(func(pe *PitEntry) { seen = append(seen, pe) })
	require.Len(t, seen, 3)
	assert.Same(t, e1, seen[0])
	assert.Same(t, e2, seen[1])
	assert.Same(t, e3, seen[2])
}

func TestPitForEachAllowsRemovalDuringIteration(t *testing.T) {
	tree := NewNameTree()
	pe := tree.Seek(wire.NameFromStr("/a"), -1)
	pit := NewPIT()

	e1 := &PitEntry{Nonce: mkNonce(1)}
	e2 := &PitEntry{Nonce: mkNonce(2)}
	pit.Insert(pe, e1)
	pit.Insert(pe, e2)

	var seen []*PitEntry
	pe.ForEachOnPrefix(func(e *PitEntry) {
		seen = append(seen, e)
		pit.Remove(tree, e)
	})

	require.Len(t, seen, 2)
	assert.True(t, pe.pit.empty())
	assert.Nil(t, pit.Lookup(mkNonce(1)))
	assert.Nil(t, pit.Lookup(mkNonce(2)))
}

func TestOutboundSetReverseAndIntersect(t *testing.T) {
	o := NewOutboundSet(1, 2, 3)
	o.Reverse()
	assert.Equal(t, []uint64{3, 2, 1}, o.Faces())

	other := NewOutboundSet(1, 3)
	o.Intersect(&other)
	assert.Equal(t, []uint64{3, 1}, o.Faces())
}

func TestOutboundSetPopFrontAndRemove(t *testing.T) {
	o := NewOutboundSet(1, 2, 3)
	f, ok := o.PopFront()
	require.True(t, ok)
	assert.Equal(t, uint64(1), f)
	assert.Equal(t, 2, o.Len())

	o.Remove(3)
	assert.False(t, o.Contains(3))
	assert.Equal(t, []uint64{2}, o.Faces())

	o2 := NewOutboundSet()
	_, ok = o2.PopFront()
	assert.False(t, ok)
}
