package face

import "net"

// loopbackAddr is the constant peer address reported by the internal
// client's face.
type loopbackAddr struct{}

func (loopbackAddr) Network() string { return "internal" }
func (loopbackAddr) String() string  { return "face0" }

// LoopbackTransport backs face0, the internal client's face (spec.md
// §4.7 "writes to it are not placed on a socket but handed to the
// in-process message handler"). Send hands the bytes to a callback
// instead of a descriptor; there is no backing fd to poll.
type LoopbackTransport struct {
	onSend func(b []byte)
}

// NewLoopbackTransport builds a LoopbackTransport that calls onSend for
// every envelope written to it.
func NewLoopbackTransport(onSend func(b []byte)) *LoopbackTransport {
	return &LoopbackTransport{onSend: onSend}
}

func (t *LoopbackTransport) Send(b []byte) error {
	t.onSend(b)
	return nil
}

func (t *LoopbackTransport) RecvFD() int        { return -1 }
func (t *LoopbackTransport) SendFD() int        { return -1 }
func (t *LoopbackTransport) PeerAddr() net.Addr { return loopbackAddr{} }
func (t *LoopbackTransport) Close() error       { return nil }
