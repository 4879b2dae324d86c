package mgmt

import (
	"fmt"

	"github.com/ccnx-go/ccnd/internal/table"
	"github.com/ccnx-go/ccnd/internal/wire"
)

// prefixregDefaultLifetimeSeconds is used when a prefixreg request
// omits a lifetime (spec.md §9 end-to-end scenario 5 shows an explicit
// lifetime, but the parameter itself is optional).
const prefixregDefaultLifetimeSeconds = 300

// handlePrefixreg implements spec.md §6 "bind a faceid to a prefix
// with flags + lifetime" and the end-to-end scenario 5: a FRIENDLY
// local client pointing a prefix at an arbitrary existing faceid.
func (c *Client) handlePrefixreg(it *wire.Interest) (*wire.ContentObject, bool) {
	np := c.nodePrefix()
	var p prefixregParams
	if err := decodeParams(it.Name[len(np)+1:], &p); err != nil {
		return c.controlError(it.Name, err), true
	}
	if c.Faces.Lookup(p.FaceID) == nil {
		return c.controlError(it.Name, fmt.Errorf("prefixreg: no such faceid %d", p.FaceID)), true
	}

	lifetime := p.Lifetime
	if lifetime <= 0 {
		lifetime = prefixregDefaultLifetimeSeconds
	}

	prefix := wire.NameFromStr(p.Prefix)
	pe := c.Tree.Seek(prefix, -1)
	fe := pe.AddForwardingEntry(p.FaceID, table.FibFlags(p.Flags)|table.FlagActive, lifetime)

	return c.sign(&wire.ContentObject{
		Name:    it.Name,
		Type:    wire.ContentTypeControl,
		Content: []byte(fmt.Sprintf("faceid=%d;flags=%d;lifetime=%d", fe.FaceID, fe.Flags, fe.ExpirySeconds)),
	}), true
}
