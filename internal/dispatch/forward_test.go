package dispatch

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ccnx-go/ccnd/internal/sched"
	"github.com/ccnx-go/ccnd/internal/table"
	"github.com/ccnx-go/ccnd/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	flags  map[uint64]uint16
	mtus   map[uint64]int
	sent   []sentInterest
	queued []queuedContent
}

type sentInterest struct {
	faceID uint64
	raw    []byte
}

type queuedContent struct {
	faceID    uint64
	class     int
	accession uint64
}

func newFakeSender(faces map[uint64]uint16) *fakeSender {
	return &fakeSender{flags: faces}
}

func (s *fakeSender) SendInterest(faceID uint64, raw []byte) error {
	s.sent = append(s.sent, sentInterest{faceID, raw})
	return nil
}

func (s *fakeSender) QueueContent(faceID uint64, class int, accession uint64) {
	s.queued = append(s.queued, queuedContent{faceID, class, accession})
}

func (s *fakeSender) FaceFlags(faceID uint64) (uint16, bool) {
	f, ok := s.flags[faceID]
	return f, ok
}

func (s *fakeSender) FaceMTU(faceID uint64) (int, bool) {
	if s.mtus == nil {
		_, ok := s.flags[faceID]
		return 0, ok
	}
	m, ok := s.mtus[faceID]
	return m, ok
}

func newTestForwarder(faces map[uint64]uint16) (*Forwarder, *fakeSender) {
	tree := table.NewNameTree()
	pit := table.NewPIT()
	cs := table.NewCS(0, nil, rand.New(rand.NewSource(1)))
	clock := time.Now()
	s := sched.NewWithClock(func() time.Time { return clock })
	sender := newFakeSender(faces)
	fwd := NewForwarder(tree, pit, cs, s, sender, rand.New(rand.NewSource(2)))
	return fwd, sender
}

func TestHandleInterestForwardsToFibFaces(t *testing.T) {
	fwd, sender := newTestForwarder(map[uint64]uint16{1: 0, 2: 0})
	pe := fwd.Tree.Seek(wire.NameFromStr("/a"), -1)
	pe.AddForwardingEntry(2, table.FlagActive|table.FlagChildInherit, 300)

	it := &wire.Interest{Name: wire.NameFromStr("/a/b"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: -1}
	err := fwd.HandleInterest(1, it)
	require.NoError(t, err)

	assert.Equal(t, 1, fwd.Sched.Len())
	fwd.Sched.RunOnce()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, uint64(2), sender.sent[0].faceID)
}

func TestHandleInterestDuplicateNonceSuppressed(t *testing.T) {
	fwd, sender := newTestForwarder(map[uint64]uint16{1: 0, 2: 0, 3: 0})
	pe := fwd.Tree.Seek(wire.NameFromStr("/a"), -1)
	pe.AddForwardingEntry(2, table.FlagActive, 300)

	nonce := []byte{1, 2, 3, 4, 5, 6}
	it := &wire.Interest{Name: wire.NameFromStr("/a"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: -1, Nonce: nonce}
	require.NoError(t, fwd.HandleInterest(1, it))

	var nonceArr [wire.NonceLen]byte
	copy(nonceArr[:], nonce)
	entry := fwd.Pit.Lookup(nonceArr)
	require.NotNil(t, entry)

	dup := &wire.Interest{Name: wire.NameFromStr("/a"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: -1, Nonce: nonce}
	require.NoError(t, fwd.HandleInterest(3, dup))

	assert.Same(t, entry, fwd.Pit.Lookup(nonceArr))
	_ = sender
}

func TestHandleInterestLinkLocalScopeRejectedFromNonLocalFace(t *testing.T) {
	fwd, _ := newTestForwarder(map[uint64]uint16{1: 0})
	it := &wire.Interest{Name: wire.NameFromStr("/a"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: wire.ScopeLinkLocal}
	err := fwd.HandleInterest(1, it)
	assert.Error(t, err)
}

func TestHandleInterestLinkLocalScopeAcceptedFromLocalFace(t *testing.T) {
	fwd, _ := newTestForwarder(map[uint64]uint16{1: FaceFlagLocal})
	it := &wire.Interest{Name: wire.NameFromStr("/a"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: wire.ScopeLinkLocal}
	err := fwd.HandleInterest(1, it)
	assert.NoError(t, err)
}

func TestHandleInterestHostLocalNeverPropagates(t *testing.T) {
	fwd, sender := newTestForwarder(map[uint64]uint16{1: 0, 2: 0})
	pe := fwd.Tree.Seek(wire.NameFromStr("/a"), -1)
	pe.AddForwardingEntry(2, table.FlagActive, 300)

	it := &wire.Interest{Name: wire.NameFromStr("/a"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: wire.ScopeHostLocal}
	require.NoError(t, fwd.HandleInterest(1, it))
	assert.Equal(t, 0, fwd.Sched.Len())
	assert.Empty(t, sender.sent)
}

func TestHandleInterestAnswersFromContentStore(t *testing.T) {
	fwd, sender := newTestForwarder(map[uint64]uint16{1: 0})
	co := &wire.ContentObject{Name: wire.NameFromStr("/a/b"), Content: []byte("x")}
	entry, _, err := fwd.CS.Insert(co)
	require.NoError(t, err)

	it := &wire.Interest{Name: wire.NameFromStr("/a"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: -1}
	require.NoError(t, fwd.HandleInterest(1, it))

	require.Len(t, sender.queued, 1)
	assert.Equal(t, uint64(1), sender.queued[0].faceID)
	assert.Equal(t, entry.Accession, sender.queued[0].accession)
}

func TestHandleContentObjectConsumesMatchingPitEntries(t *testing.T) {
	fwd, sender := newTestForwarder(map[uint64]uint16{1: 0, 2: 0})

	it := &wire.Interest{Name: wire.NameFromStr("/a/b"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: -1, Nonce: []byte{9, 9, 9, 9, 9, 9}}
	pe := fwd.Tree.Seek(it.Name, -1)
	var nonceArr [wire.NonceLen]byte
	copy(nonceArr[:], it.Nonce)
	pitEntry := &table.PitEntry{RawInterest: wire.EncodeInterest(it), Nonce: nonceArr, InFace: 2, Outbound: table.NewOutboundSet()}
	fwd.Pit.Insert(pe, pitEntry)

	co := &wire.ContentObject{Name: wire.NameFromStr("/a/b"), Content: []byte("hello")}
	require.NoError(t, fwd.HandleContentObject(1, co))

	require.Len(t, sender.queued, 1)
	assert.Equal(t, uint64(2), sender.queued[0].faceID)
	assert.Nil(t, fwd.Pit.Lookup(nonceArr))
}

func TestComputeOutboundExcludesSourceFace(t *testing.T) {
	fwd, _ := newTestForwarder(map[uint64]uint16{1: 0, 2: 0})
	pe := fwd.Tree.Seek(wire.NameFromStr("/a"), -1)
	pe.AddForwardingEntry(1, table.FlagActive, 300)
	pe.AddForwardingEntry(2, table.FlagActive, 300)

	out := fwd.computeOutbound(pe, 1, -1, 0)
	assert.False(t, out.Contains(1))
	assert.True(t, out.Contains(2))
}
