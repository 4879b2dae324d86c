package face

import (
	"net"
	"net/http"
	"syscall"

	"github.com/gorilla/websocket"
)

// StreamListener wraps a unix-stream or TCP net.Listener so the
// dispatcher can poll its descriptor directly alongside faces, rather
// than running a dedicated accept goroutine (spec.md §5 "no second
// task of execution can observe intermediate state").
type StreamListener struct {
	ln net.Listener
	fd int
}

// ListenUnix starts a unix-stream listener at path. It does not remove
// an existing file at path; cmd/ccnd removes the socket file before
// calling it and again on exit.
func ListenUnix(path string) (*StreamListener, error) {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return wrapListener(ln)
}

// ListenTCP starts a TCP listener on addr (e.g. ":6363" or
// "[::]:6363").
func ListenTCP(addr string) (*StreamListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return wrapListener(ln)
}

func wrapListener(ln net.Listener) (*StreamListener, error) {
	fd := -1
	if sc, ok := ln.(syscall.Conn); ok {
		fd = fdOf(sc)
	}
	return &StreamListener{ln: ln, fd: fd}, nil
}

// FD is the descriptor the dispatcher adds to its poll set.
func (l *StreamListener) FD() int { return l.fd }

// Accept accepts one pending connection, called by the dispatcher only
// after poll reports this listener's fd readable.
func (l *StreamListener) Accept() (net.Conn, error) { return l.ln.Accept() }

func (l *StreamListener) Close() error { return l.ln.Close() }

// UDPListener owns one bound UDP socket shared by every unicast and
// multicast datagram face reached through it (spec.md §3 item 3
// "tertiary hash keyed by peer socket address").
type UDPListener struct {
	conn *net.UDPConn
	fd   int
}

// ListenUDP binds a UDP socket on addr.
func ListenUDP(addr string) (*UDPListener, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &UDPListener{conn: conn, fd: fdOf(conn)}, nil
}

// JoinMulticastUDP binds to group on the given interface for multicast
// reception (spec.md §1 "IPv4/IPv6 UDP ... multicast").
func JoinMulticastUDP(group *net.UDPAddr, iface *net.Interface) (*UDPListener, error) {
	conn, err := net.ListenMulticastUDP("udp", iface, group)
	if err != nil {
		return nil, err
	}
	return &UDPListener{conn: conn, fd: fdOf(conn)}, nil
}

func (l *UDPListener) FD() int { return l.fd }

// ReadFrom reads one pending datagram, called by the dispatcher only
// after poll reports this listener's fd readable.
func (l *UDPListener) ReadFrom(buf []byte) (int, net.Addr, error) {
	return l.conn.ReadFrom(buf)
}

// Conn exposes the shared socket so per-peer datagramTransports can
// write back to it.
func (l *UDPListener) Conn() *net.UDPConn { return l.conn }

func (l *UDPListener) Close() error { return l.conn.Close() }

// WebsocketListener runs an http.Server accepting websocket upgrade
// requests. Unlike the stream and UDP listeners, accepted connections
// are delivered asynchronously through a channel the dispatcher drains
// once per tick, since net/http's Serve loop cannot be folded into a
// single epoll set (spec.md §5's single-thread rule binds the core's
// own state machine, not this narrow bridge from an http.Server's
// internal goroutines).
type WebsocketListener struct {
	srv      *http.Server
	upgrader websocket.Upgrader
	accepted chan *websocket.Conn
}

// ListenWebsocket starts an http.Server on addr upgrading every request
// at path to a websocket connection.
func ListenWebsocket(addr, path string) (*WebsocketListener, error) {
	l := &WebsocketListener{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		accepted: make(chan *websocket.Conn, 16),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		l.accepted <- conn
	})
	l.srv = &http.Server{Addr: addr, Handler: mux}
	go l.srv.ListenAndServe()
	return l, nil
}

// TryAccept returns one upgraded connection if one is ready, else nil.
func (l *WebsocketListener) TryAccept() *websocket.Conn {
	select {
	case conn := <-l.accepted:
		return conn
	default:
		return nil
	}
}

func (l *WebsocketListener) Close() error { return l.srv.Close() }
