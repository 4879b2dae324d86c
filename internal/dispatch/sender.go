package dispatch

import (
	"math/rand"

	"github.com/ccnx-go/ccnd/internal/face"
	"github.com/ccnx-go/ccnd/internal/sched"
	"github.com/ccnx-go/ccnd/internal/table"
	"github.com/ccnx-go/ccnd/internal/wire"
)

// FaceSender is the concrete Sender a Dispatcher binds to its
// Forwarder: it turns "send to faceid" decisions into real transport
// writes and face-queue pushes (spec.md §4.6, §4.7).
type FaceSender struct {
	Faces *face.Table
	CS    *table.CS
	Sched *sched.Scheduler
	Rnd   *rand.Rand
}

// NewFaceSender builds a FaceSender bound to the live face table and
// Content Store.
func NewFaceSender(faces *face.Table, cs *table.CS, s *sched.Scheduler, rnd *rand.Rand) *FaceSender {
	return &FaceSender{Faces: faces, CS: cs, Sched: s, Rnd: rnd}
}

// SendInterest writes raw directly to faceID's transport, bypassing
// the content queues (spec.md §3). A short write is buffered for the
// dispatcher's next writable callback; other errors are ignored here
// since face teardown is the dispatcher's responsibility once it
// observes the failure on its own poll of the descriptor.
func (s *FaceSender) SendInterest(faceID uint64, raw []byte) error {
	f := s.Faces.Lookup(faceID)
	if f == nil || f.Flags.Has(face.FlagDoNotSend) {
		return nil
	}
	if err := f.Transport.Send(raw); err != nil {
		f.OutBuf = raw
		f.OutCursor = 0
		return err
	}
	return nil
}

// QueueContent pushes accession onto faceID's delay-class queue and
// arms that queue's sender callback if it is not already running
// (spec.md §4.6).
func (s *FaceSender) QueueContent(faceID uint64, class int, accession uint64) {
	f := s.Faces.Lookup(faceID)
	if f == nil || f.Flags.Has(face.FlagDoNotSend) {
		return
	}
	q := f.Queues[class]
	q.Push(accession)
	s.armQueue(f, q)
}

func (s *FaceSender) armQueue(f *face.Face, q *face.Queue) {
	if q.HasPendingSend() {
		return
	}
	var cb sched.Callback
	cb = func(cancelled bool) int64 {
		if cancelled {
			return 0
		}
		_, yielded := q.Drain(func(accession uint64, sizeBytes int) error {
			return s.sendAccession(f, accession)
		})
		_ = yielded
		if q.Len() == 0 {
			q.ClearPendingSend()
			return 0
		}
		return q.NextDelay(s.Rnd)
	}
	q.ArmPendingSend(s.Sched.Schedule(0, cb))
}

// sendAccession resolves a cached accession back to wire bytes and
// sends it, matching the "content" leg of spec.md §4.6.
func (s *FaceSender) sendAccession(f *face.Face, accession uint64) error {
	entry := s.CS.LookupByAccession(accession)
	if entry == nil {
		return nil // evicted before its turn; not an error
	}
	raw := wire.EncodeContentObject(entry.Object)
	return f.Transport.Send(raw)
}

// FaceFlags reports the subset of face.Flags the forwarder needs, as
// the plain uint16 bit layout dispatch.Forwarder expects.
func (s *FaceSender) FaceFlags(faceID uint64) (uint16, bool) {
	f := s.Faces.Lookup(faceID)
	if f == nil {
		return 0, false
	}
	return uint16(f.Flags), true
}

// FaceMTU reports faceID's configured path MTU, for interest stuffing.
func (s *FaceSender) FaceMTU(faceID uint64) (int, bool) {
	f := s.Faces.Lookup(faceID)
	if f == nil {
		return 0, false
	}
	return f.MTU, true
}
