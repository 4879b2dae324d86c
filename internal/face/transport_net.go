package face

import (
	"errors"
	"net"
	"syscall"

	"github.com/gorilla/websocket"
)

// fdOf extracts the underlying file descriptor from a net.Conn so the
// dispatcher's epoll set can poll it directly (spec.md §5 "blocking
// system calls are forbidden except ... the central poll"). Returns -1
// if the descriptor cannot be extracted.
func fdOf(c syscall.Conn) int {
	raw, err := c.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	raw.Control(func(p uintptr) { fd = int(p) })
	return fd
}

// streamTransport backs a unix-stream or TCP face: a connected,
// bidirectional byte stream.
type streamTransport struct {
	conn net.Conn
	fd   int
}

// NewStreamTransportForDispatch wraps an accepted unix-stream or TCP
// connection as a Transport; exported for the dispatcher's accept path.
func NewStreamTransportForDispatch(conn net.Conn) Transport {
	return newStreamTransport(conn)
}

// NewDatagramTransportForDispatch wraps the shared UDP socket plus one
// peer address as a Transport; exported for the dispatcher's UDP
// demultiplexing path.
func NewDatagramTransportForDispatch(conn net.PacketConn, peer net.Addr) Transport {
	return newDatagramTransport(conn, peer)
}

func newStreamTransport(conn net.Conn) *streamTransport {
	fd := -1
	if sc, ok := conn.(syscall.Conn); ok {
		fd = fdOf(sc)
	}
	return &streamTransport{conn: conn, fd: fd}
}

func (t *streamTransport) Send(b []byte) error {
	n, err := t.conn.Write(b)
	if err != nil {
		return err
	}
	if n < len(b) {
		// spec.md §7 "Transient send short-write on a stream face ->
		// buffer the tail for deferred write"; the caller (Face) owns
		// OutBuf/OutCursor and retries via the dispatcher's writable
		// callback, so report the shortfall as an error the caller can
		// distinguish.
		return errShortWrite
	}
	return nil
}

var errShortWrite = errors.New("face: short write")

func (t *streamTransport) RecvFD() int        { return t.fd }
func (t *streamTransport) SendFD() int        { return t.fd }
func (t *streamTransport) PeerAddr() net.Addr { return t.conn.RemoteAddr() }
func (t *streamTransport) Close() error       { return t.conn.Close() }

// datagramTransport backs a connected UDP unicast or multicast face:
// one net.PacketConn shared by many peer addresses, demultiplexed by
// the face table's tertiary hash (spec.md §3 item 3).
type datagramTransport struct {
	conn net.PacketConn
	peer net.Addr
	fd   int
}

func newDatagramTransport(conn net.PacketConn, peer net.Addr) *datagramTransport {
	fd := -1
	if sc, ok := conn.(syscall.Conn); ok {
		fd = fdOf(sc)
	}
	return &datagramTransport{conn: conn, peer: peer, fd: fd}
}

func (t *datagramTransport) Send(b []byte) error {
	n, err := t.conn.WriteTo(b, t.peer)
	if err != nil {
		return err
	}
	if n < len(b) {
		// a short datagram send is not reported to the caller, not
		// logged, and not retried.
		return nil
	}
	return nil
}

func (t *datagramTransport) RecvFD() int        { return t.fd }
func (t *datagramTransport) SendFD() int        { return t.fd }
func (t *datagramTransport) PeerAddr() net.Addr { return t.peer }
func (t *datagramTransport) Close() error       { return nil } // socket is shared; listener owns it

// websocketTransport backs a face reached over a gorilla/websocket
// connection, framing each envelope as one binary message.
type websocketTransport struct {
	conn *websocket.Conn
	fd   int
}

// NewWebsocketTransportForDispatch wraps an upgraded websocket
// connection as a Transport; exported for the dispatcher's websocket
// accept path.
func NewWebsocketTransportForDispatch(conn *websocket.Conn) Transport {
	return newWebsocketTransport(conn)
}

func newWebsocketTransport(conn *websocket.Conn) *websocketTransport {
	fd := -1
	if nc := conn.UnderlyingConn(); nc != nil {
		if sc, ok := nc.(syscall.Conn); ok {
			fd = fdOf(sc)
		}
	}
	return &websocketTransport{conn: conn, fd: fd}
}

func (t *websocketTransport) Send(b []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (t *websocketTransport) RecvFD() int        { return t.fd }
func (t *websocketTransport) SendFD() int        { return t.fd }
func (t *websocketTransport) PeerAddr() net.Addr { return t.conn.RemoteAddr() }
func (t *websocketTransport) Close() error       { return t.conn.Close() }
