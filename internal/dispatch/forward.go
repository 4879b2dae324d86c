// Package dispatch wires the face table to the PIT/FIB/Content Store
// and drives the top-level event loop (spec.md §4.5, §4.7). The
// forwarding logic in this file is transport-agnostic: it decides what
// to send and to which faceids, and calls back into a Sender the
// dispatcher supplies.
package dispatch

import (
	"bytes"
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"time"

	"github.com/ccnx-go/ccnd/internal/sched"
	"github.com/ccnx-go/ccnd/internal/table"
	"github.com/ccnx-go/ccnd/internal/wire"
)

// maxRedundantUnicast and maxRedundantBroadcast bound how many times a
// near-duplicate Interest from the same face is tolerated before being
// dropped outright (spec.md §4.5 "adjust_outbound_for_existing_interests").
const (
	maxRedundantUnicast   = 3
	maxRedundantBroadcast = 0
)

// defaultInterestLifetimeUs is the bounded countdown an Interest
// receives absent any other signal (spec.md §5 "typically ~4 s").
const defaultInterestLifetimeUs int64 = 4_000_000

// rearmFractionDivisor implements the "~1/4-lifetime re-arm" from
// spec.md §4.5.
const rearmFractionDivisor = 4

// controlExtraDelayUs is added before sending to a CONTROL-flagged
// face (spec.md §4.5 "extra 60 ms delay to let the controller
// intercede").
const controlExtraDelayUs int64 = 60_000

// coincidenceDelayUs and coincidenceDelaySameFaceUs are the extra
// deliberate delay added on top of a prefix's predicted response time
// whenever a genuinely matching Interest is already pending, so the
// earlier consumer's fetch has a chance to satisfy this one before we
// independently propagate (spec.md §4.5, §8 scenario 3 "only one copy
// is forwarded upstream").
const (
	coincidenceDelayUs         int64 = 10_000
	coincidenceDelaySameFaceUs int64 = 20_000
)

// Sender is how the forwarder actually moves bytes once it has decided
// where they go; the dispatcher's event loop supplies the concrete
// implementation bound to real faces.
type Sender interface {
	// SendInterest transmits raw (an encoded Interest envelope) to
	// faceID. Interests bypass the per-face content queues entirely
	// (spec.md §3 "three output content queues" holds only content
	// accessions).
	SendInterest(faceID uint64, raw []byte) error
	// QueueContent enqueues a cached accession for transmission to
	// faceID on the given delay class.
	QueueContent(faceID uint64, class int, accession uint64)
	// FaceFlags reports the flag bits the forwarder needs to classify a
	// face (LOCAL/FRIENDLY/CONTROL and the like); returns ok=false if
	// the face no longer exists.
	FaceFlags(faceID uint64) (flags uint16, ok bool)
	// FaceMTU reports the path MTU configured for faceID, for interest
	// stuffing; returns ok=false if the face no longer exists.
	FaceMTU(faceID uint64) (mtu int, ok bool)
}

// Flag bits mirrored from internal/face.Flags, duplicated here (as
// plain uint16) so this package does not import internal/face and
// create a cycle with the dispatcher that imports both.
const (
	FaceFlagFriendly uint16 = 1 << 2
	FaceFlagLocal    uint16 = 1 << 3
	FaceFlagMcast    uint16 = 1 << 6
	FaceFlagControl  uint16 = 1 << 7
)

func isFriendly(flags uint16) bool { return flags&(FaceFlagFriendly|FaceFlagLocal) != 0 }
func isLocal(flags uint16) bool    { return flags&FaceFlagLocal != 0 }
func isControl(flags uint16) bool  { return flags&FaceFlagControl != 0 }

// broadcastLike reports whether a face with these flags behaves like a broadcast medium
// for redundancy-limiting purposes (spec.md §4.5 "3 on unicast, 0 on
// broadcast-like faces").
func broadcastLike(flags uint16) bool { return flags&FaceFlagMcast != 0 }

// Forwarder holds the tables and services the Interest/ContentObject
// processing paths need (spec.md §2 items 4-8, minus face table and
// poll, which the dispatcher owns directly).
type Forwarder struct {
	Tree  *table.NameTree
	Pit   *table.PIT
	CS    *table.CS
	Sched *sched.Scheduler
	Send  Sender
	Rnd   *mrand.Rand

	InterestLifetimeUs int64
}

// NewForwarder builds a Forwarder with spec-default timing constants.
func NewForwarder(tree *table.NameTree, pit *table.PIT, cs *table.CS, s *sched.Scheduler, sender Sender, rnd *mrand.Rand) *Forwarder {
	return &Forwarder{
		Tree: tree, Pit: pit, CS: cs, Sched: s, Send: sender, Rnd: rnd,
		InterestLifetimeUs: defaultInterestLifetimeUs,
	}
}

// errOutOfScope is returned for an Interest that fails the scope check
// of spec.md §4.5 step 1.
var errOutOfScope = outOfScopeError{}

type outOfScopeError struct{}

func (outOfScopeError) Error() string { return "dispatch: interest out of scope" }

func randomNonce() []byte {
	n := make([]byte, wire.NonceLen)
	for i := range n {
		b, _ := rand.Int(rand.Reader, big.NewInt(256))
		n[i] = byte(b.Int64())
	}
	return n
}

// HandleInterest implements spec.md §4.5 steps 1-4: scope check,
// duplicate suppression, CS answer, and outbound-set computation
// followed by PIT insertion and the first propagate step.
func (f *Forwarder) HandleInterest(inFace uint64, it *wire.Interest) error {
	inFlags, ok := f.Send.FaceFlags(inFace)
	if !ok {
		return nil // face torn down between receipt and processing
	}
	if it.Scope == wire.ScopeLinkLocal && !isLocal(inFlags) {
		return errOutOfScope
	}

	if !it.HasNonce() {
		it.Nonce = randomNonce()
	}
	var nonce [wire.NonceLen]byte
	copy(nonce[:], it.Nonce)

	if existing := f.Pit.Lookup(nonce); existing != nil {
		existing.Outbound.Remove(inFace)
		return nil
	}

	pe := f.Tree.Seek(it.Name, -1)

	alreadyPendingForSource := false
	pe.ForEachOnPrefix(func(e *table.PitEntry) {
		if e.InFace == inFace {
			alreadyPendingForSource = true
		}
	})

	if it.AnswerFrom&wire.AnswerNewOnly == 0 {
		if entry, hit := f.CS.Match(it); hit {
			f.Send.QueueContent(inFace, int(classASAP), entry.Accession)
			if alreadyPendingForSource {
				return nil
			}
			// fall through: still propagate upstream so other
			// responders may hear it, per spec.md §4.5 step 3.
		}
	}

	if it.Scope == wire.ScopeHostLocal {
		return nil // host-local: never leaves this node
	}

	outbound := f.computeOutbound(pe, inFace, it.Scope, inFlags)
	outbound.Reverse()

	drop, coincidenceDelay := f.adjustOutboundForExisting(pe, it, &outbound, inFace, inFlags)
	if drop {
		return nil
	}

	pe2 := &table.PitEntry{
		RawInterest: wire.EncodeInterest(it),
		Nonce:       nonce,
		InFace:      inFace,
		Flags:       table.PitUnsent,
		ResidualUs:  f.InterestLifetimeUs,
		Outbound:    outbound,
	}
	f.Pit.Insert(pe, pe2)
	f.schedulePropagate(pe2, coincidenceDelay)
	return nil
}

// computeOutbound materialises the candidate face set for one
// Interest: the longest-matching prefix's forward-to set, minus the
// source face, and (for link-local scope) minus every non-FRIENDLY
// face (spec.md §4.5 step 4).
func (f *Forwarder) computeOutbound(pe *table.PrefixEntry, inFace uint64, scope int, inFlags uint16) table.OutboundSet {
	fwd := pe.ForwardTo()
	faces := make([]uint64, 0, len(fwd))
	for faceID := range fwd {
		if faceID == inFace {
			continue
		}
		if scope == wire.ScopeLinkLocal {
			if flags, ok := f.Send.FaceFlags(faceID); !ok || !isFriendly(flags) {
				continue
			}
		}
		faces = append(faces, faceID)
	}
	return table.NewOutboundSet(faces...)
}

// interestsMatchExceptNonce reports whether a and b are the same
// Interest modulo nonce (spec.md §4.5 "match everything except
// nonce"): same name, suffix-component bounds, order, answer-from,
// scope, exclude set, and publisher.
func interestsMatchExceptNonce(a, b *wire.Interest) bool {
	if !a.Name.Equal(b.Name) {
		return false
	}
	if a.MinSuffixComponents != b.MinSuffixComponents || a.MaxSuffixComponents != b.MaxSuffixComponents {
		return false
	}
	if a.Order != b.Order || a.AnswerFrom != b.AnswerFrom || a.Scope != b.Scope {
		return false
	}
	if !bytes.Equal(a.Publisher, b.Publisher) {
		return false
	}
	if len(a.Exclude) != len(b.Exclude) {
		return false
	}
	for i := range a.Exclude {
		if !a.Exclude[i].Equal(b.Exclude[i]) {
			return false
		}
	}
	return true
}

// adjustOutboundForExisting implements spec.md §4.5
// "adjust_outbound_for_existing_interests": among the pending Interests
// genuinely similar to it (same name and selectors, differing only by
// nonce), restrict our outbound set to their remaining outbound
// (another consumer will already fetch it), report that this Interest
// should be dropped outright past the redundancy limit, and return the
// extra deliberate delay this Interest's propagation should absorb:
// each such coincidence adds its own predictedRTT-plus-pause delay.
func (f *Forwarder) adjustOutboundForExisting(pe *table.PrefixEntry, it *wire.Interest, outbound *table.OutboundSet, inFace uint64, inFlags uint16) (drop bool, extraDelayUs int64) {
	maxRedundant := maxRedundantUnicast
	if broadcastLike(inFlags) {
		maxRedundant = maxRedundantBroadcast
	}

	redundantFromSameFace := 0
	pe.ForEachOnPrefix(func(existing *table.PitEntry) {
		existingIt, err := decodeForMatch(existing.RawInterest)
		if err != nil || !interestsMatchExceptNonce(it, existingIt) {
			return
		}
		if existing.InFace == inFace {
			redundantFromSameFace++
		}
		outbound.Intersect(&existing.Outbound)

		delay := pe.PredictedRTT() + coincidenceDelayUs
		if existing.InFace == inFace {
			delay = pe.PredictedRTT() + coincidenceDelaySameFaceUs
		}
		extraDelayUs += delay
	})
	return redundantFromSameFace > maxRedundant, extraDelayUs
}

type delayClass int

const (
	classASAP delayClass = iota
	classNormal
	classSlow
)

// maxStuffedInterests bounds how many sibling pending Interests one
// propagate tick will opportunistically fold into the same outgoing
// frame, alongside pe's own (spec.md GLOSSARY "interest stuffing").
const maxStuffedInterests = 8

// schedulePropagate arms the PIT entry's propagate callback, which
// sends to one outbound face per invocation (spec.md §4.5). extraDelayUs
// holds the entry's first firing back by that many microseconds, the
// deliberate pause spec.md §4.5 requires on a genuine coincidence with
// an existing similar Interest.
func (f *Forwarder) schedulePropagate(pe *table.PitEntry, extraDelayUs int64) {
	var cb sched.Callback
	cb = func(cancelled bool) int64 {
		if cancelled {
			return 0
		}
		faceID, ok := pe.Outbound.PopFront()
		if !ok {
			// drained: re-arm at ~1/4 lifetime or reap if exhausted.
			pe.ResidualUs -= f.InterestLifetimeUs / rearmFractionDivisor
			if pe.ResidualUs <= 0 {
				f.Pit.Remove(f.Tree, pe)
				return 0
			}
			return f.InterestLifetimeUs / rearmFractionDivisor
		}
		flags, ok := f.Send.FaceFlags(faceID)
		if !ok {
			return 1 // face gone; try the rest of the set on the next tick
		}
		raw := pe.RawInterest
		firstSend := pe.Flags&table.PitUnsent != 0
		if firstSend {
			raw = f.stuffSiblings(pe, faceID, raw)
		}
		f.Send.SendInterest(faceID, raw)
		if firstSend {
			pe.Flags = pe.Flags&^table.PitUnsent | table.PitWait1
			pe.SentAtUs = time.Now().UnixMicro()
		}
		delay := int64(500) + f.Rnd.Int63n(8192)
		if isControl(flags) {
			delay += controlExtraDelayUs
		}
		return delay
	}
	if extraDelayUs < 0 {
		extraDelayUs = 0
	}
	f.Sched.Schedule(extraDelayUs, cb)
}

// stuffSiblings opportunistically folds other pending Interests on the
// same prefix that are also still UNSENT toward faceID into raw, up to
// the face's path MTU, marking each folded entry PitStuffed1 and
// consuming its claim on faceID so propagate does not resend it
// (spec.md GLOSSARY "interest stuffing", §6 "path MTU for interest
// stuffing").
func (f *Forwarder) stuffSiblings(pe *table.PitEntry, faceID uint64, raw []byte) []byte {
	mtu, ok := f.Send.FaceMTU(faceID)
	if !ok || mtu <= len(raw) {
		return raw
	}
	it, err := decodeForMatch(pe.RawInterest)
	if err != nil {
		return raw
	}
	prefixEntry := f.Tree.LongestMatch(it.Name)
	if prefixEntry == nil {
		return raw
	}

	budget := mtu - len(raw)
	stuffed := 0
	var extra [][]byte
	prefixEntry.ForEachOnPrefix(func(sib *table.PitEntry) {
		if stuffed >= maxStuffedInterests || sib == pe || budget <= 0 {
			return
		}
		if sib.Flags&table.PitUnsent == 0 || !sib.Outbound.Contains(faceID) {
			return
		}
		if len(sib.RawInterest) > budget {
			return
		}
		budget -= len(sib.RawInterest)
		extra = append(extra, sib.RawInterest)
		sib.Outbound.Remove(faceID)
		sib.Flags = sib.Flags&^table.PitUnsent | table.PitWait1 | table.PitStuffed1
		sib.SentAtUs = time.Now().UnixMicro()
		stuffed++
	})
	if len(extra) == 0 {
		return raw
	}
	out := append([]byte(nil), raw...)
	for _, e := range extra {
		out = append(out, e...)
	}
	return out
}

// HandleContentObject implements spec.md §4.5 "Matching incoming
// content to PIT": admit to the CS, then walk prefix lengths from the
// full name down to the empty prefix matching and consuming every
// waiting PIT entry whose Interest is satisfied. inFace is the face the
// ContentObject arrived on, fed into the longest matching prefix's
// predictive-response statistics (spec.md §4.5's closing line).
func (f *Forwarder) HandleContentObject(inFace uint64, co *wire.ContentObject) error {
	entry, _, err := f.CS.Insert(co)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil // admission disabled
	}

	now := time.Now().UnixMicro()
	recorded := false
	for k := len(co.Name); k >= 0; k-- {
		pe := f.Tree.Lookup(co.Name.Prefix(k))
		if pe == nil {
			continue
		}
		var toConsume []*table.PitEntry
		pe.ForEachOnPrefix(func(e *table.PitEntry) {
			it, perr := decodeForMatch(e.RawInterest)
			if perr != nil {
				return
			}
			if it.MatchesSelectors(entry.Object.StoredName()) {
				toConsume = append(toConsume, e)
			}
		})
		for _, e := range toConsume {
			f.Send.QueueContent(e.InFace, int(classASAP), entry.Accession)
			if !recorded && e.SentAtUs > 0 {
				pe.RecordContentSource(inFace, now-e.SentAtUs)
				recorded = true
			}
			f.Pit.Remove(f.Tree, e)
		}
	}
	return nil
}

// decodeForMatch re-parses a PIT entry's stored raw Interest bytes to
// recover its selectors for matching incoming content (spec.md §3
// "pointer to the raw encoded Interest bytes").
func decodeForMatch(raw []byte) (*wire.Interest, error) {
	var dec wire.Decoder
	dec.Feed(raw)
	env, ok, err := dec.Next()
	if err != nil {
		return nil, err
	}
	if !ok || env.Interest == nil {
		return nil, wire.ErrMalformed
	}
	return env.Interest, nil
}
