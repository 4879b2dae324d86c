package wire

import (
	"bytes"
	"strings"
)

// Name component type tags, matching the reference forwarder's
// vocabulary (std/encoding/component.go) minus the convention-specific
// ones this daemon doesn't need.
const (
	TypeGenericComponent     TLNum = 0x08
	TypeImplicitSha256Digest TLNum = 0x01
)

// DigestComponentLen is the wire size of the synthesised terminal
// digest component: 4-byte type+length header + 32-byte SHA-256
// digest (spec.md §3 "CS indexing invariants").
const DigestComponentLen = 36

// Component is one element of a Name: a type tag plus raw value
// bytes.
type Component struct {
	Typ TLNum
	Val []byte
}

// NewGenericComponent builds a generic (type 0x08) name component from
// a UTF-8 string.
func NewGenericComponent(s string) Component {
	return Component{Typ: TypeGenericComponent, Val: []byte(s)}
}

// Equal reports whether two components have the same type and value.
func (c Component) Equal(o Component) bool {
	return c.Typ == o.Typ && bytes.Equal(c.Val, o.Val)
}

// Compare orders components first by type, then by value length, then
// by value bytes,
// giving the canonical NDN component ordering used by the Content
// Store's name-ordered skiplist (spec.md §4.3).
func (c Component) Compare(o Component) int {
	if c.Typ != o.Typ {
		if c.Typ < o.Typ {
			return -1
		}
		return 1
	}
	if len(c.Val) != len(o.Val) {
		if len(c.Val) < len(o.Val) {
			return -1
		}
		return 1
	}
	return bytes.Compare(c.Val, o.Val)
}

// EncodingLength returns the wire size of the component.
func (c Component) EncodingLength() int {
	return c.Typ.EncodingLength() + TLNum(len(c.Val)).EncodingLength() + len(c.Val)
}

// EncodeInto writes the component's TLV encoding into buf (which must
// be at least EncodingLength() bytes) and returns the bytes consumed.
func (c Component) EncodeInto(buf []byte) int {
	n := c.Typ.EncodeInto(buf)
	n += TLNum(len(c.Val)).EncodeInto(buf[n:])
	n += copy(buf[n:], c.Val)
	return n
}

func (c Component) String() string {
	return string(c.Val)
}

// Name is an ordered sequence of components.
type Name []Component

// NameFromStr parses a slash-separated name string ("/a/b/c") into a
// Name of generic components. Empty segments are skipped, so both "/"
// and "" parse to the empty (root) name.
func NameFromStr(s string) Name {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	n := make(Name, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		n = append(n, NewGenericComponent(p))
	}
	return n
}

func (n Name) String() string {
	var sb strings.Builder
	for _, c := range n {
		sb.WriteByte('/')
		sb.WriteString(c.String())
	}
	if len(n) == 0 {
		return "/"
	}
	return sb.String()
}

// Equal reports whether two names have exactly the same components.
func (n Name) Equal(o Name) bool {
	if len(n) != len(o) {
		return false
	}
	for i := range n {
		if !n[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether n is a prefix of (or equal to) o. The
// empty name is a prefix of every name (spec.md §8 "Empty prefix `/`
// matches every name").
func (n Name) IsPrefixOf(o Name) bool {
	if len(n) > len(o) {
		return false
	}
	for i := range n {
		if !n[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Compare orders two names component-by-component (shorter-is-smaller
// on a shared prefix), the canonical order the Content Store's
// skiplist is built over.
func (n Name) Compare(o Name) int {
	for i := 0; i < len(n) && i < len(o); i++ {
		if c := n[i].Compare(o[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(n) < len(o):
		return -1
	case len(n) > len(o):
		return 1
	default:
		return 0
	}
}

// Prefix returns the first k components of n. Panics if k > len(n).
func (n Name) Prefix(k int) Name {
	return n[:k:k]
}

// Append returns a new Name with c appended.
func (n Name) Append(c Component) Name {
	out := make(Name, len(n)+1)
	copy(out, n)
	out[len(n)] = c
	return out
}

// Bytes returns the raw concatenated wire encoding of every component
// in the name, used as the hash-table / skiplist key bytes.
func (n Name) Bytes() []byte {
	total := 0
	for _, c := range n {
		total += c.EncodingLength()
	}
	buf := make([]byte, total)
	off := 0
	for _, c := range n {
		off += c.EncodeInto(buf[off:])
	}
	return buf
}

// Clone returns a deep copy of the name.
func (n Name) Clone() Name {
	out := make(Name, len(n))
	for i, c := range n {
		v := make([]byte, len(c.Val))
		copy(v, c.Val)
		out[i] = Component{Typ: c.Typ, Val: v}
	}
	return out
}
