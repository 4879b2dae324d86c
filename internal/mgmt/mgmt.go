// Package mgmt implements the internal client: a loopback endpoint
// that answers the four well-known control Interests from spec.md §6
// (ping, reg/self, newface, prefixreg) with signed ContentObjects. It
// has no socket of its own — the dispatcher hands it Interests that
// resolved to face0 in the FIB and re-injects its replies as if they
// had arrived as ContentObjects on that same face (spec.md §9 "internal
// client").
package mgmt

import (
	"net/url"

	"github.com/gorilla/schema"

	"github.com/ccnx-go/ccnd/internal/corelog"
	"github.com/ccnx-go/ccnd/internal/face"
	"github.com/ccnx-go/ccnd/internal/security"
	"github.com/ccnx-go/ccnd/internal/table"
	"github.com/ccnx-go/ccnd/internal/wire"
)

// logName satisfies corelog.Named for mgmt's own log lines.
type logName string

func (n logName) String() string { return string(n) }

const logMgmt = logName("mgmt")

// well-known prefixes, per spec.md §6's control-RPC table.
var (
	pingName   = wire.NameFromStr("/ccn/ping")
	regSelfDir = wire.NameFromStr("/ccn/reg/self")
)

const (
	verbNewface   = "newface"
	verbPrefixreg = "prefixreg"
	verbList      = "list"
	verbCs        = "cs"
)

// pingFreshnessRootSeconds and pingFreshnessChildSeconds are the two
// freshness values spec.md §6 names for the ping response ("freshness
// 60 s root / 5 s").
const (
	pingFreshnessRootSeconds  = 60
	pingFreshnessChildSeconds = 5
)

var schemaDecoder = schema.NewDecoder()

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

// Client is the internal client bound to the live face table and
// name-prefix tree, signing every response with Signer.
type Client struct {
	Tree   *table.NameTree
	Faces  *face.Table
	CS     *table.CS
	Signer *security.Signer

	// Dial opens an outbound connection for newface; overridable in
	// tests. network is "tcp" or "udp".
	Dial func(network, addr string) (face.Transport, error)
}

// NewClient builds a Client bound to the daemon's live tables.
func NewClient(tree *table.NameTree, faces *face.Table, cs *table.CS, signer *security.Signer, dial func(network, addr string) (face.Transport, error)) *Client {
	return &Client{Tree: tree, Faces: faces, CS: cs, Signer: signer, Dial: dial}
}

// nodePrefix returns /ccn/<node-id hex>, the prefix under which
// newface and prefixreg are addressed (spec.md §6).
func (c *Client) nodePrefix() wire.Name {
	return wire.NameFromStr("/ccn/" + c.Signer.NodeIDHex())
}

// Matches reports whether it.Name falls under one of the four
// well-known control prefixes this client answers.
func (c *Client) Matches(name wire.Name) bool {
	if pingName.Equal(name) {
		return true
	}
	if regSelfDir.IsPrefixOf(name) {
		return true
	}
	np := c.nodePrefix()
	return np.IsPrefixOf(name) && len(name) > len(np)
}

// Handle dispatches a control Interest that arrived from inFace,
// rejecting newface/prefixreg from non-FRIENDLY faces per spec.md §6,
// and returns the signed ContentObject answer.
func (c *Client) Handle(inFace uint64, inFriendly bool, it *wire.Interest) (*wire.ContentObject, bool) {
	switch {
	case pingName.Equal(it.Name):
		return c.handlePing(), true
	case regSelfDir.IsPrefixOf(it.Name):
		if !inFriendly {
			corelog.Log.Warn(logMgmt, "reg/self from non-friendly face rejected", "face", inFace)
			return nil, false
		}
		return c.handleRegSelf(inFace, it)
	default:
		np := c.nodePrefix()
		if !np.IsPrefixOf(it.Name) || len(it.Name) <= len(np) {
			return nil, false
		}
		if !inFriendly {
			corelog.Log.Warn(logMgmt, "control RPC from non-friendly face rejected", "face", inFace)
			return nil, false
		}
		verb := it.Name[len(np)].String()
		switch verb {
		case verbNewface:
			return c.handleNewface(it)
		case verbPrefixreg:
			return c.handlePrefixreg(it)
		case verbList:
			return c.handleList(it), true
		case verbCs:
			return c.handleCs(it)
		default:
			corelog.Log.Warn(logMgmt, "unknown control verb", "verb", verb)
			return nil, false
		}
	}
}

// handlePing answers spec.md §9 scenario 1: an empty-body signed
// ContentObject with 60 s freshness.
func (c *Client) handlePing() *wire.ContentObject {
	return c.sign(&wire.ContentObject{
		Name:             pingName,
		Type:             wire.ContentTypeControl,
		HasFreshness:     true,
		FreshnessSeconds: pingFreshnessRootSeconds,
	})
}

// decodeParams parses the flat key=value&key=value component trailing
// a control verb into dst via gorilla/schema, the way the struct-tag
// decode turns a form-encoded blob into a typed struct.
func decodeParams(rest wire.Name, dst any) error {
	raw := ""
	if len(rest) > 0 {
		raw = rest[0].String()
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return err
	}
	return schemaDecoder.Decode(dst, values)
}

// sign computes co's digest and attaches Signature/KeyLocator, the
// "producing signed ContentObjects" half of spec.md §1.
func (c *Client) sign(co *wire.ContentObject) *wire.ContentObject {
	digest := co.Digest()
	co.Signature = c.Signer.Sign(digest)
	if pub, err := c.Signer.PublicKey(); err == nil {
		co.KeyLocator = pub
	}
	return co
}
