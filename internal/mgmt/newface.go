package mgmt

import (
	"fmt"
	"net"

	"github.com/ccnx-go/ccnd/internal/face"
	"github.com/ccnx-go/ccnd/internal/wire"
)

// newfaceMTU matches the dispatcher's default for faces it accepts
// itself (internal/dispatch.defaultMTU), kept independent here so
// mgmt does not need to import internal/dispatch.
const newfaceMTU = 8800

// handleNewface implements spec.md §6 "create outbound face (udp/tcp,
// addr, port)": dials out, wraps the connection as a Transport, and
// enrolls a new face, reporting the assigned faceid.
func (c *Client) handleNewface(it *wire.Interest) (*wire.ContentObject, bool) {
	np := c.nodePrefix()
	var p newfaceParams
	if err := decodeParams(it.Name[len(np)+1:], &p); err != nil {
		return c.controlError(it.Name, err), true
	}

	addr := net.JoinHostPort(p.Addr, fmt.Sprint(p.Port))
	transport, err := c.dial(p.Network, addr)
	if err != nil {
		return c.controlError(it.Name, fmt.Errorf("newface: dial %s %s: %w", p.Network, addr, err)), true
	}

	flags := face.FlagInet
	if p.Network == "udp" {
		flags |= face.FlagDgram
	}
	f := face.NewFace(transport, flags, newfaceMTU)
	faceID, ok := c.Faces.Enroll(f)
	if !ok {
		transport.Close()
		return c.controlError(it.Name, fmt.Errorf("newface: face table full")), true
	}

	return c.sign(&wire.ContentObject{
		Name:    it.Name,
		Type:    wire.ContentTypeControl,
		Content: []byte(fmt.Sprintf("faceid=%d;network=%s;addr=%s", faceID, p.Network, addr)),
	}), true
}

func (c *Client) dial(network, addr string) (face.Transport, error) {
	if c.Dial != nil {
		return c.Dial(network, addr)
	}
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	if network == "udp" {
		pc := conn.(net.PacketConn)
		return face.NewDatagramTransportForDispatch(pc, conn.RemoteAddr()), nil
	}
	return face.NewStreamTransportForDispatch(conn), nil
}
