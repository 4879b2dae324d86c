package wire

import "crypto/sha256"

// ContentType distinguishes ordinary data from key/control objects,
// per spec.md §6.
type ContentType uint8

const (
	ContentTypeData ContentType = iota
	ContentTypeKey
	ContentTypeControl
)

// MaxFreshnessSeconds caps FreshnessSeconds at ~35 minutes (spec.md
// §4.3 step 5); objects with a freshness up to and including this get
// a freshness timer, objects beyond it are accepted but no timer is
// armed (spec.md §8 boundary case).
const MaxFreshnessSeconds = 35 * 60

// ContentObject is the core's in-memory representation of a parsed
// ContentObject envelope, before the Content Store synthesises and
// splices in the terminal digest component (spec.md §4.3 step 1).
type ContentObject struct {
	Name Name

	Publisher        []byte
	Type             ContentType
	FreshnessSeconds uint32 // meaningful only when HasFreshness is set
	HasFreshness     bool
	FinalBlockID     *Component

	Content []byte

	// Signature, when non-nil, is a signature over Digest() produced by
	// internal/security (spec.md §1 "producing signed ContentObjects").
	// Unsigned objects (ordinary cached data) leave this nil.
	Signature  []byte
	KeyLocator []byte

	// Raw is the original wire encoding, preserved byte-for-byte so
	// the round-trip law in spec.md §8 holds.
	Raw []byte
}

// Digest computes the 32-byte SHA-256 digest of the object, covering
// the name, signed-info fields, and content — the same digest the
// codec is expected to provide per spec.md §4.3 step 1.
func (co *ContentObject) Digest() [32]byte {
	h := sha256.New()
	h.Write(co.Name.Bytes())
	h.Write(co.Publisher)
	h.Write([]byte{byte(co.Type)})
	if co.HasFreshness {
		h.Write([]byte{
			byte(co.FreshnessSeconds >> 24), byte(co.FreshnessSeconds >> 16),
			byte(co.FreshnessSeconds >> 8), byte(co.FreshnessSeconds),
		})
	}
	if co.FinalBlockID != nil {
		h.Write(co.FinalBlockID.Val)
	}
	h.Write(co.Content)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// DigestComponent returns the synthesised terminal name component
// carrying the object's digest: a ImplicitSha256Digest-typed
// component whose wire encoding is always DigestComponentLen bytes
// (spec.md §3 "CS indexing invariants").
func (co *ContentObject) DigestComponent() Component {
	d := co.Digest()
	return Component{Typ: TypeImplicitSha256Digest, Val: d[:]}
}

// StoredName returns the internal, store-indexed name: the wire name
// plus the synthesised terminal digest component (spec.md §4.3 step 1).
func (co *ContentObject) StoredName() Name {
	return co.Name.Append(co.DigestComponent())
}

// ExciseDigest returns the wire-form name obtained by stripping a
// trailing ImplicitSha256Digest component, the inverse of StoredName,
// satisfying the round-trip law in spec.md §8.
func ExciseDigest(stored Name) Name {
	if len(stored) == 0 {
		return stored
	}
	last := stored[len(stored)-1]
	if last.Typ != TypeImplicitSha256Digest {
		return stored
	}
	return stored[:len(stored)-1]
}
