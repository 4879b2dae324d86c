// Package face implements the daemon's face table and per-face output
// queues (spec.md §3 "Face", §4.2, §4.6). A face is a transport
// endpoint: a unix-stream or TCP connection, a UDP unicast or
// multicast flow, a websocket connection, or the special loopback
// face0 that hands bytes directly to the internal client instead of a
// socket.
package face

import (
	"net"

	"github.com/ccnx-go/ccnd/internal/wire"
)

// Flags are the per-face flags from spec.md §3.
type Flags uint16

const (
	FlagLinkFramed Flags = 1 << iota
	FlagDgram
	FlagFriendly
	FlagLocal
	FlagInet
	FlagInet6
	FlagMcast
	FlagControl
	FlagDoNotSend
	FlagUndecided
	FlagPermanent
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Transport abstracts the byte-level send/receive primitive under a
// Face. Implementations live in transport_*.go.
type Transport interface {
	// Send writes b. A stream transport reports a short write as an
	// error; no transport keeps a copy of unsent bytes for a retry.
	Send(b []byte) error
	// RecvFD is the descriptor the dispatcher polls for readability;
	// -1 for transports (like face0) with no backing descriptor.
	RecvFD() int
	// SendFD is the descriptor the dispatcher polls for writability
	// when an outbound buffer is pending; may equal RecvFD.
	SendFD() int
	PeerAddr() net.Addr
	Close() error
}

// Face is one transport endpoint (spec.md §3 "Face").
type Face struct {
	ID        uint64
	Transport Transport
	Flags     Flags

	// inbound parsing state: bytes not yet consumed by a full envelope.
	InBuf wire.Decoder

	// outbound: non-nil only when a prior send was partial (spec.md §3).
	OutBuf    []byte
	OutCursor int

	Queues [3]*Queue // indexed by DelayClass

	PendingInterestCount int
	ActivityCount        int
	SurplusSendCount     int

	// MTU bounds how large a single outbound envelope may be before it
	// must be fragmented by the caller (not done here).
	MTU int
}

// Kind reports the pacing-relevant classification spec.md §4.6 names:
// local, datagram, unicast-link, multicast, or stream/TCP.
type Kind int

const (
	KindLocal Kind = iota
	KindDatagram
	KindUnicastLink
	KindMulticast
	KindStream
)

func (f *Face) Kind() Kind {
	switch {
	case f.Flags.Has(FlagLocal):
		return KindLocal
	case f.Flags.Has(FlagMcast):
		return KindMulticast
	case f.Flags.Has(FlagDgram):
		return KindDatagram
	default:
		return KindStream
	}
}

// NewFace wraps a transport with fresh per-face state: one queue per
// delay class and an empty inbound decoder.
func NewFace(t Transport, flags Flags, mtu int) *Face {
	f := &Face{Transport: t, Flags: flags, MTU: mtu}
	for dc := range f.Queues {
		f.Queues[dc] = newQueue(DelayClass(dc), f.Kind())
	}
	return f
}

// Friendly reports whether administrative RPCs may be accepted from
// this face (spec.md §4.4 "rate-gated to friendly faces only").
func (f *Face) Friendly() bool {
	return f.Flags.Has(FlagLocal) || f.Flags.Has(FlagFriendly)
}
