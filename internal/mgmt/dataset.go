package mgmt

import (
	"fmt"
	"strings"

	"github.com/ccnx-go/ccnd/internal/face"
	"github.com/ccnx-go/ccnd/internal/wire"
)

// csConfigParams carries the optional capacity/admit/serve overrides a
// "cs config" request may set; a nil pointer leaves that setting
// untouched (spec.md §9's note that admit/serve toggles are an
// operator knob, not a per-request one).
type csConfigParams struct {
	Capacity *int  `schema:"capacity"`
	Admit    *bool `schema:"admit"`
	Serve    *bool `schema:"serve"`
}

// handleList answers `<node-prefix>/list`, a read-only snapshot of
// every enrolled face and its counters, mirroring
// fw/mgmt/forwarder-status.go's dataset-of-faces shape.
func (c *Client) handleList(it *wire.Interest) *wire.ContentObject {
	var lines []string
	c.Faces.ForEach(func(f *face.Face) {
		lines = append(lines, fmt.Sprintf(
			"faceid=%d;flags=%d;pending=%d;activity=%d;surplus=%d",
			f.ID, f.Flags, f.PendingInterestCount, f.ActivityCount, f.SurplusSendCount))
	})
	return c.sign(&wire.ContentObject{
		Name:    it.Name,
		Type:    wire.ContentTypeControl,
		Content: []byte(strings.Join(lines, "\n")),
	})
}

// handleCs answers `<node-prefix>/cs/info` (read capacity/admit/serve)
// and `<node-prefix>/cs/config` (set them), the two sub-verbs
// fw/mgmt/cs.go exposes for the Content Store.
func (c *Client) handleCs(it *wire.Interest) (*wire.ContentObject, bool) {
	np := c.nodePrefix()
	rest := it.Name[len(np)+1:]
	if len(rest) == 0 {
		return c.controlError(it.Name, fmt.Errorf("cs: missing sub-verb")), true
	}
	switch rest[0].String() {
	case "info":
		return c.sign(&wire.ContentObject{
			Name: it.Name,
			Type: wire.ContentTypeControl,
			Content: []byte(fmt.Sprintf("capacity=%d;admit=%t;serve=%t",
				c.CS.Capacity, c.CS.Admit, c.CS.Serve)),
		}), true
	case "config":
		var p csConfigParams
		if err := decodeParams(rest[1:], &p); err != nil {
			return c.controlError(it.Name, err), true
		}
		if p.Capacity != nil {
			c.CS.Capacity = *p.Capacity
		}
		if p.Admit != nil {
			c.CS.Admit = *p.Admit
		}
		if p.Serve != nil {
			c.CS.Serve = *p.Serve
		}
		return c.sign(&wire.ContentObject{
			Name: it.Name,
			Type: wire.ContentTypeControl,
			Content: []byte(fmt.Sprintf("capacity=%d;admit=%t;serve=%t",
				c.CS.Capacity, c.CS.Admit, c.CS.Serve)),
		}), true
	default:
		return c.controlError(it.Name, fmt.Errorf("cs: unknown sub-verb %q", rest[0].String())), true
	}
}
