package dispatch

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ccnx-go/ccnd/internal/corelog"
	"github.com/ccnx-go/ccnd/internal/face"
	"github.com/ccnx-go/ccnd/internal/wire"
)

// logName satisfies corelog.Named for this package's own log lines.
type logName string

func (n logName) String() string { return string(n) }

const logDispatch = logName("dispatch")

// Dispatcher is the top-level event loop (spec.md §4.7): each tick it
// runs the scheduler, rebuilds the epoll set if the face population
// changed, polls, and dispatches readable/writable faces and
// listeners.
type Dispatcher struct {
	epfd int

	Faces     *face.Table
	Forwarder *Forwarder

	unixLn *face.StreamListener
	tcpLn  *face.StreamListener
	udpLn  *face.UDPListener
	wsLn   *face.WebsocketListener

	registered map[int]bool // fds currently added to the epoll set
	quit       bool
}

// NewDispatcher builds a Dispatcher bound to the given tables and
// listeners. Any listener may be nil if that transport is disabled.
func NewDispatcher(faces *face.Table, fwd *Forwarder, unixLn, tcpLn *face.StreamListener, udpLn *face.UDPListener, wsLn *face.WebsocketListener) (*Dispatcher, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		epfd: epfd, Faces: faces, Forwarder: fwd,
		unixLn: unixLn, tcpLn: tcpLn, udpLn: udpLn, wsLn: wsLn,
		registered: make(map[int]bool),
	}
	return d, nil
}

// Close releases the epoll descriptor.
func (d *Dispatcher) Close() error { return unix.Close(d.epfd) }

// Stop requests the loop exit after the current tick.
func (d *Dispatcher) Stop() { d.quit = true }

func (d *Dispatcher) addFD(fd int) {
	if fd < 0 || d.registered[fd] {
		return
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT, Fd: int32(fd)}
	if unix.EpollCtl(d.epfd, unix.EPOLL_CTL_ADD, fd, &ev) == nil {
		d.registered[fd] = true
	}
}

func (d *Dispatcher) removeFD(fd int) {
	if fd < 0 || !d.registered[fd] {
		return
	}
	unix.EpollCtl(d.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(d.registered, fd)
}

// rebuildPollSet adds every currently-occupied face's descriptors plus
// the fixed listener slots, matching whatever the epoll set is missing
// (spec.md §5 "resized lazily when |faces| + fixed_listeners !=
// |fds|").
func (d *Dispatcher) rebuildPollSet() {
	want := make(map[int]bool, len(d.registered))
	if d.unixLn != nil {
		want[d.unixLn.FD()] = true
	}
	if d.tcpLn != nil {
		want[d.tcpLn.FD()] = true
	}
	if d.udpLn != nil {
		want[d.udpLn.FD()] = true
	}
	d.Faces.ForEach(func(f *face.Face) {
		want[f.Transport.RecvFD()] = true
		want[f.Transport.SendFD()] = true
	})
	delete(want, -1)

	for fd := range want {
		if !d.registered[fd] {
			d.addFD(fd)
		}
	}
	for fd := range d.registered {
		if !want[fd] {
			d.removeFD(fd)
		}
	}
}

// RunOnce executes one dispatcher tick: run the scheduler, compute the
// poll timeout, rebuild the epoll set if needed, poll, dispatch
// (spec.md §4.7).
func (d *Dispatcher) RunOnce() error {
	nextUs := d.Forwarder.Sched.RunOnce()
	d.acceptWebsocket()
	d.rebuildPollSet()

	timeoutMs := -1
	if nextUs >= 0 {
		timeoutMs = int(nextUs/1000) + 1
	}

	var events [64]unix.EpollEvent
	n, err := unix.EpollWait(d.epfd, events[:], timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		readable := events[i].Events&unix.EPOLLIN != 0
		writable := events[i].Events&unix.EPOLLOUT != 0
		d.dispatchFD(fd, readable, writable)
	}
	return nil
}

// Run loops RunOnce until Stop is called or an unrecoverable poll
// error occurs.
func (d *Dispatcher) Run() error {
	for !d.quit {
		if err := d.RunOnce(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) dispatchFD(fd int, readable, writable bool) {
	switch {
	case d.unixLn != nil && fd == d.unixLn.FD():
		d.acceptStream(d.unixLn, face.FlagLocal|face.FlagUndecided)
	case d.tcpLn != nil && fd == d.tcpLn.FD():
		d.acceptStream(d.tcpLn, face.FlagInet|face.FlagUndecided)
	case d.udpLn != nil && fd == d.udpLn.FD():
		d.dispatchUDP()
	default:
		if f := d.Faces.LookupByRecvFD(fd); f != nil {
			if readable {
				d.readFace(f)
			}
			if writable {
				d.writeFace(f)
			}
		}
	}
}

func (d *Dispatcher) acceptStream(ln *face.StreamListener, flags face.Flags) {
	conn, err := ln.Accept()
	if err != nil {
		corelog.Log.Warn(logDispatch, "accept failed", "err", err)
		return
	}
	f := face.NewFace(newTransportAdapter(conn), flags, defaultMTU)
	if _, ok := d.Faces.Enroll(f); !ok {
		corelog.Log.Warn(logDispatch, "face table full, rejecting connection")
		conn.Close()
	}
}

// acceptWebsocket drains any upgraded connections the websocket
// listener's goroutine has handed off since the last tick (spec.md §5's
// one documented exception to single-threaded dispatch: net/http's
// serve loop cannot be folded into the epoll set, so upgraded
// connections cross a channel instead).
func (d *Dispatcher) acceptWebsocket() {
	if d.wsLn == nil {
		return
	}
	for {
		conn := d.wsLn.TryAccept()
		if conn == nil {
			return
		}
		f := face.NewFace(face.NewWebsocketTransportForDispatch(conn), face.FlagInet|face.FlagUndecided, defaultMTU)
		if _, ok := d.Faces.Enroll(f); !ok {
			corelog.Log.Warn(logDispatch, "face table full, rejecting websocket connection")
			conn.Close()
		}
	}
}

func (d *Dispatcher) dispatchUDP() {
	buf := make([]byte, defaultMTU)
	n, addr, err := d.udpLn.ReadFrom(buf)
	if err != nil {
		return
	}
	f := d.Faces.LookupByPeer(addr)
	if f == nil {
		f = face.NewFace(newDatagramAdapter(d.udpLn, addr), face.FlagDgram|face.FlagUndecided, defaultMTU)
		if _, ok := d.Faces.Enroll(f); !ok {
			return
		}
		d.Faces.BindPeer(addr, f)
	}
	f.InBuf.Feed(buf[:n])
	d.drainEnvelopes(f)
}

// readFace reads one chunk from a stream/websocket face and drains
// every complete envelope the incremental decoder can now produce
// (spec.md §4.7, §6 "partial frames stay in the face's inbound
// buffer").
func (d *Dispatcher) readFace(f *face.Face) {
	buf := make([]byte, 65536)
	n, err := syscallRead(f.Transport.RecvFD(), buf)
	if err != nil || n == 0 {
		d.teardown(f)
		return
	}
	f.InBuf.Feed(buf[:n])
	d.drainEnvelopes(f)
}

func (d *Dispatcher) drainEnvelopes(f *face.Face) {
	for {
		env, ok, err := f.InBuf.Next()
		if err != nil {
			if errors.Is(err, wire.ErrOversize) {
				corelog.Log.Warn(logDispatch, "oversize envelope dropped", "face", f.ID)
				continue
			}
			if f.Kind() == face.KindDatagram || f.Kind() == face.KindMulticast {
				corelog.Log.Warn(logDispatch, "malformed datagram dropped", "face", f.ID)
				return
			}
			corelog.Log.Warn(logDispatch, "malformed stream frame, closing face", "face", f.ID)
			d.teardown(f)
			return
		}
		if !ok {
			return
		}
		d.dispatchEnvelope(f, env)
	}
}

func (d *Dispatcher) dispatchEnvelope(f *face.Face, env wire.Envelope) {
	f.ActivityCount++
	switch env.Kind {
	case wire.KindInterest:
		d.Forwarder.HandleInterest(f.ID, env.Interest)
	case wire.KindContentObject, wire.KindContentObjectLegacy:
		d.Forwarder.HandleContentObject(f.ID, env.ContentObject)
	case wire.KindPDU:
		f.Flags |= face.FlagLinkFramed
		var inner wire.Decoder
		inner.Feed(env.PDUPayload)
		if nested, ok, err := inner.Next(); err == nil && ok {
			d.dispatchEnvelope(f, nested)
		}
	case wire.KindInject:
		// administrative, local-only; dropped here without
		// processing.
	}
}

func (d *Dispatcher) writeFace(f *face.Face) {
	if f.OutBuf == nil {
		return
	}
	err := f.Transport.Send(f.OutBuf[f.OutCursor:])
	if err == nil {
		f.OutBuf = nil
		f.OutCursor = 0
		return
	}
	if errors.Is(err, syscall.EPIPE) {
		f.Flags |= face.FlagDoNotSend
		f.OutBuf = nil
		f.OutCursor = 0
		return
	}
}

func (d *Dispatcher) teardown(f *face.Face) {
	for _, q := range f.Queues {
		q.Cancel(d.Forwarder.Sched)
	}
	d.Faces.Remove(f.ID)
	d.Forwarder.Tree.RemoveFace(f.ID)
	f.Transport.Close()
}

// ReapIdleFace tears faceID down if it is still enrolled and not
// PERMANENT, for the idle-datagram-face reaper (spec.md §5, §8
// scenario 6).
func (d *Dispatcher) ReapIdleFace(faceID uint64) {
	f := d.Faces.Lookup(faceID)
	if f == nil || f.Flags.Has(face.FlagPermanent) {
		return
	}
	corelog.Log.Info(logDispatch, "reaping idle datagram face", "face", faceID)
	d.teardown(f)
}

const defaultMTU = 8800

// syscallRead is readFace's read primitive: a thin wrapper over
// unix.Read on the face's receive descriptor.
func syscallRead(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// newTransportAdapter and newDatagramAdapter bridge face.Transport to
// the listener types without an import cycle (face owns the transport
// constructors; dispatch only needs net.Conn/UDPListener plumbing).
func newTransportAdapter(conn net.Conn) face.Transport {
	return face.NewStreamTransportForDispatch(conn)
}

func newDatagramAdapter(ln *face.UDPListener, addr net.Addr) face.Transport {
	return face.NewDatagramTransportForDispatch(ln.Conn(), addr)
}
