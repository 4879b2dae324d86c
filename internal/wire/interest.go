package wire

// Order is the order-preference bit of an Interest's selectors:
// leftmost-child (default) or rightmost-child semantics when more
// than one cached ContentObject matches (spec.md §4.3).
type Order uint8

const (
	OrderLeftmost Order = iota
	OrderRightmost
)

// AnswerFrom is the bitmask of "answer-from" selector bits spec.md §6
// names: new-only, cached, stale-ok, expire-on-answer.
type AnswerFrom uint8

const (
	AnswerNewOnly        AnswerFrom = 1 << iota // do not answer from the Content Store at all
	AnswerCached                                // the Content Store may answer
	AnswerStaleOK                               // a STALE cache entry is still a valid answer
	AnswerExpireOnAnswer                        // mark the matched entry STALE once it answers this Interest
)

// Scope values, per spec.md §6.
const (
	ScopeHostLocal    = 0
	ScopeLinkLocal    = 1
	ScopeUnrestricted = 2 // and above
)

const NonceLen = 6

// Interest is the core's in-memory representation of a parsed
// Interest envelope.
type Interest struct {
	Name Name

	MinSuffixComponents int // -1 if absent
	MaxSuffixComponents int // -1 if absent
	Order               Order
	AnswerFrom          AnswerFrom
	Scope               int // -1 if absent (treated as unrestricted)
	Exclude             []Component
	Publisher           []byte // optional
	Nonce               []byte // 0 or NonceLen bytes
	Magic               uint8
}

// HasNonce reports whether the Interest carries an explicit nonce.
func (i *Interest) HasNonce() bool {
	return len(i.Nonce) == NonceLen
}

// MatchesSelectors reports whether a candidate name (the full name of
// a stored ContentObject, terminal digest component included) matches
// this Interest's prefix, suffix-count, and exclude selectors. Scope
// and answer-from are evaluated by the caller against face/PIT state,
// not here, since they aren't properties of the name alone.
func (i *Interest) MatchesSelectors(candidate Name) bool {
	if !i.Name.IsPrefixOf(candidate) {
		return false
	}
	suffixLen := len(candidate) - len(i.Name)
	if i.MinSuffixComponents >= 0 && suffixLen < i.MinSuffixComponents {
		return false
	}
	if i.MaxSuffixComponents >= 0 && suffixLen > i.MaxSuffixComponents {
		return false
	}
	if suffixLen > 0 {
		nextComp := candidate[len(i.Name)]
		for _, ex := range i.Exclude {
			if nextComp.Equal(ex) {
				return false
			}
		}
	}
	return true
}
