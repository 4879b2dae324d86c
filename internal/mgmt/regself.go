package mgmt

import (
	"fmt"

	"github.com/ccnx-go/ccnd/internal/table"
	"github.com/ccnx-go/ccnd/internal/wire"
)

// regSelfDefaultLifetimeSeconds is the expiry a reg/self registration
// receives absent any other signal; the consumer is expected to renew
// before a forwarding entry this short-lived ages out (spec.md §3
// "Forwarding entry" lifecycle).
const regSelfDefaultLifetimeSeconds = 60

// handleRegSelf implements spec.md §6 "register requester as consumer
// of a prefix": the prefix is bound to the requesting face itself, so
// content published there reaches whoever asked for it.
func (c *Client) handleRegSelf(inFace uint64, it *wire.Interest) (*wire.ContentObject, bool) {
	var p regSelfParams
	if err := decodeParams(it.Name[len(regSelfDir):], &p); err != nil {
		return c.controlError(it.Name, err), true
	}

	prefix := wire.NameFromStr(p.Prefix)
	pe := c.Tree.Seek(prefix, -1)
	fe := pe.AddForwardingEntry(inFace, table.FlagActive, regSelfDefaultLifetimeSeconds)

	return c.sign(&wire.ContentObject{
		Name:    it.Name,
		Type:    wire.ContentTypeControl,
		Content: []byte(fmt.Sprintf("faceid=%d;flags=%d;lifetime=%d", fe.FaceID, fe.Flags, fe.ExpirySeconds)),
	}), true
}

// controlError builds an unsigned-content-but-still-signed failure
// echo; the daemon never leaves a control RPC unanswered (spec.md §7
// "Resource exhaustion ... return failure to caller").
func (c *Client) controlError(name wire.Name, err error) *wire.ContentObject {
	return c.sign(&wire.ContentObject{
		Name:    name,
		Type:    wire.ContentTypeControl,
		Content: []byte("error: " + err.Error()),
	})
}
