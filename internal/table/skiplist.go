package table

import (
	"math/rand"

	"github.com/ccnx-go/ccnd/internal/wire"
)

// maxSkiplistHeight caps tower height at 30 (spec.md §4.3 step 4).
const maxSkiplistHeight = 30

// skiplistP is the geometric distribution parameter (p = 1/4).
const skiplistP = 4

type skipNode struct {
	name      wire.Name
	accession uint64
	next      []*skipNode
}

// skiplist is the Content Store's name-ordered index, used for
// prefix/next-sibling navigation (spec.md §4.3 step 4). Entries are
// always at a height >= 1 (spec.md §3 "CS indexing invariants").
type skiplist struct {
	head   *skipNode // sentinel; never holds data
	height int
	rnd    *rand.Rand
}

func newSkiplist(rnd *rand.Rand) *skiplist {
	return &skiplist{
		head:   &skipNode{next: make([]*skipNode, maxSkiplistHeight)},
		height: 1,
		rnd:    rnd,
	}
}

// randomHeight draws from a geometric distribution with p = 1/4,
// capped at maxSkiplistHeight (spec.md §4.3 step 4).
func (s *skiplist) randomHeight() int {
	h := 1
	for h < maxSkiplistHeight && s.rnd.Intn(skiplistP) == 0 {
		h++
	}
	return h
}

// findBefore walks top-down accumulating, at each level, the last node
// whose name sorts strictly before key. It powers insert, "next in
// name order", and "first candidate matching prefix" (spec.md §4.3).
func (s *skiplist) findBefore(key wire.Name) []*skipNode {
	preds := make([]*skipNode, maxSkiplistHeight)
	cur := s.head
	for lvl := s.height - 1; lvl >= 0; lvl-- {
		for cur.next[lvl] != nil && cur.next[lvl].name.Compare(key) < 0 {
			cur = cur.next[lvl]
		}
		preds[lvl] = cur
	}
	return preds
}

// insert adds (name, accession) to the skiplist. Duplicate names do
// not occur in practice (every stored name carries a unique digest
// component) but insert tolerates them by simply adding another node.
func (s *skiplist) insert(name wire.Name, accession uint64) {
	preds := s.findBefore(name)
	h := s.randomHeight()
	if h > s.height {
		for lvl := s.height; lvl < h; lvl++ {
			preds[lvl] = s.head
		}
		s.height = h
	}
	node := &skipNode{name: name, accession: accession, next: make([]*skipNode, h)}
	for lvl := 0; lvl < h; lvl++ {
		node.next[lvl] = preds[lvl].next[lvl]
		preds[lvl].next[lvl] = node
	}
}

// remove deletes the node with the given (name, accession) pair.
func (s *skiplist) remove(name wire.Name, accession uint64) bool {
	preds := s.findBefore(name)
	cur := preds[0].next[0]
	for cur != nil && cur.name.Compare(name) == 0 && cur.accession != accession {
		cur = cur.next[0]
	}
	if cur == nil || cur.name.Compare(name) != 0 || cur.accession != accession {
		return false
	}
	for lvl := 0; lvl < len(cur.next); lvl++ {
		if preds[lvl].next[lvl] == cur {
			preds[lvl].next[lvl] = cur.next[lvl]
		}
	}
	return true
}

// firstAtOrAfter returns the first node at or after key in name order,
// or nil.
func (s *skiplist) firstAtOrAfter(key wire.Name) *skipNode {
	preds := s.findBefore(key)
	return preds[0].next[0]
}

// walkPrefix invokes fn for every node whose name shares the given
// prefix, in ascending name order, until fn returns false or the
// prefix is exhausted.
//
// The reference forwarder jumps directly to the next sibling when
// rightmost-child order is requested, via find_before on a synthesised
// "next sibling" name (spec.md §4.3); this implementation always walks
// the full prefix bucket and lets the caller pick leftmost or
// rightmost from the candidates. That trades the sibling-jump
// optimisation for simplicity — a performance difference only, not a
// semantic one, since the candidate set and selection rule are
// unchanged.
func (s *skiplist) walkPrefix(prefix wire.Name, fn func(name wire.Name, accession uint64) bool) {
	node := s.firstAtOrAfter(prefix)
	for node != nil && prefix.IsPrefixOf(node.name) {
		if !fn(node.name, node.accession) {
			return
		}
		node = node.next[0]
	}
}
