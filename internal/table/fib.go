// Package table implements the daemon's three interlinked tables:
// the name-prefix table (FIB + per-prefix PIT head, spec.md §4.4), the
// Pending Interest Table (spec.md §4.5), and the Content Store
// (spec.md §4.3). All three are single-threaded: callers run on the
// dispatcher goroutine and no locking is done here.
package table

import (
	"math/rand"

	"github.com/ccnx-go/ccnd/internal/wire"
)

// FibFlags are the per-forwarding-entry flags from spec.md §3.
type FibFlags uint8

const (
	FlagActive FibFlags = 1 << iota
	FlagChildInherit
	FlagAdvertise
	flagRefreshed // internal: touched since the last ageing pass
)

// AgeingPeriodSeconds is how often forwarding-entry expiry is
// decremented (spec.md §3 "decremented every 5s by the ageing task").
const AgeingPeriodSeconds = 5

// ReapRoundsBeforeDelete is how many ageing rounds an eligible-to-reap
// prefix survives before deletion (spec.md §4.4 "two ageing rounds").
const ReapRoundsBeforeDelete = 2

// defaultPredictedRTTUs and predictedRTTJitterUs seed a freshly-created
// root prefix's predictive-response timer (spec.md §3 "initial ~8 192
// ± random jitter"). Non-root entries instead inherit their parent's
// value on Seek.
const (
	defaultPredictedRTTUs = 8192
	predictedRTTJitterUs  = 1024
)

// predictedRTTEwmaShift weights RecordContentSource's running average
// toward history (7 parts old value to 1 part new sample).
const predictedRTTEwmaShift = 3

// ForwardingEntry is a (faceid, flags, expiry) triple (spec.md §3).
type ForwardingEntry struct {
	FaceID        uint64
	Flags         FibFlags
	ExpirySeconds int
}

// Active reports whether the entry is currently usable for forwarding.
func (fe *ForwardingEntry) Active() bool {
	return fe.Flags&FlagActive != 0
}

// ChildInherit reports whether descendants should inherit this entry
// when materialising their forward-to sets.
func (fe *ForwardingEntry) ChildInherit() bool {
	return fe.Flags&FlagChildInherit != 0
}

// PrefixEntry is one entry of the name-prefix table: a specific Name
// prefix's forwarding entries, its materialised forward-to set, its
// link to the next-shorter prefix, and the head of its pending
// Interest list (spec.md §3 "Name-prefix entry").
type PrefixEntry struct {
	key    string // raw prefix bytes, used as the table's hash key
	Name   wire.Name
	fib    []*ForwardingEntry
	parent *PrefixEntry // weak back-reference, traversal only
	tree   *NameTree

	forwardTo    map[uint64]struct{}
	fgen         uint64
	children     int
	reapRounds   int
	predictedRTT int64 // microseconds
	src, osrc    uint64

	pit pitSentinel // first and last entries of the pending Interest list
}

// Key returns the raw prefix bytes used as this entry's table key.
func (pe *PrefixEntry) Key() string { return pe.key }

// FIB returns the prefix's own forwarding entries (not ancestors').
func (pe *PrefixEntry) FIB() []*ForwardingEntry { return pe.fib }

// Parent returns the next-shorter prefix entry in the table, or nil at
// the root.
func (pe *PrefixEntry) Parent() *PrefixEntry { return pe.parent }

// NameTree is the FIB: a hash table of PrefixEntry keyed by raw prefix
// bytes, plus the table-wide forward-to generation counter.
type NameTree struct {
	entries      map[string]*PrefixEntry
	forwardToGen uint64
	rnd          *rand.Rand
}

// NewNameTree builds an empty name-prefix table.
func NewNameTree() *NameTree {
	return &NameTree{
		entries: make(map[string]*PrefixEntry),
		rnd:     rand.New(rand.NewSource(1)),
	}
}

// jitteredPredictedRTT returns defaultPredictedRTTUs plus or minus up
// to predictedRTTJitterUs.
func (t *NameTree) jitteredPredictedRTT() int64 {
	return defaultPredictedRTTUs - predictedRTTJitterUs + t.rnd.Int63n(2*predictedRTTJitterUs+1)
}

// Len reports the number of prefix entries currently materialised,
// including ones with no forwarding entries (exposed for
// internal/metrics).
func (t *NameTree) Len() int { return len(t.entries) }

// bumpForwardToGen invalidates every prefix's materialised forward-to
// set (spec.md §4.4: "bumped whenever any forwarding entry changes or
// a face disappears").
func (t *NameTree) bumpForwardToGen() {
	t.forwardToGen++
}

// Lookup returns the exact prefix entry for name, or nil if it has
// never been seeked into existence.
func (t *NameTree) Lookup(name wire.Name) *PrefixEntry {
	return t.entries[string(name.Bytes())]
}

// LongestMatch walks from the full name down to the empty prefix,
// returning the first (longest) prefix entry that exists in the
// table, or nil if even the root has never been created.
func (t *NameTree) LongestMatch(name wire.Name) *PrefixEntry {
	for k := len(name); k >= 0; k-- {
		if pe, ok := t.entries[string(name.Prefix(k).Bytes())]; ok {
			return pe
		}
	}
	return nil
}

// Seek walks name component by component, creating every missing
// ancestor (spec.md §4.4 "nameprefix_seek"), and returns the entry for
// the full name (or its first ncomps components if ncomps >= 0).
func (t *NameTree) Seek(name wire.Name, ncomps int) *PrefixEntry {
	if ncomps < 0 || ncomps > len(name) {
		ncomps = len(name)
	}
	var parent *PrefixEntry
	for k := 0; k <= ncomps; k++ {
		prefix := name.Prefix(k)
		key := string(prefix.Bytes())
		pe, ok := t.entries[key]
		if !ok {
			pe = &PrefixEntry{
				key:    key,
				Name:   prefix.Clone(),
				parent: parent,
				tree:   t,
			}
			pe.pit.initSentinel()
			if parent != nil {
				pe.predictedRTT = parent.predictedRTT
				pe.src, pe.osrc = parent.src, parent.osrc
				parent.children++
			} else {
				pe.predictedRTT = t.jitteredPredictedRTT()
			}
			t.entries[key] = pe
		}
		parent = pe
	}
	return parent
}

// ForwardTo returns the materialised union of this prefix's own
// ACTIVE forwarding entries and every ancestor's CHILD-INHERIT active
// entries (spec.md §4.4 "forward_to"), re-materialising lazily when
// stale.
func (pe *PrefixEntry) ForwardTo() map[uint64]struct{} {
	if pe.forwardTo != nil && pe.fgen == pe.tree.forwardToGen {
		return pe.forwardTo
	}
	set := make(map[uint64]struct{})
	for _, fe := range pe.fib {
		if fe.Active() {
			set[fe.FaceID] = struct{}{}
		}
	}
	for anc := pe.parent; anc != nil; anc = anc.parent {
		for _, fe := range anc.fib {
			if fe.Active() && fe.ChildInherit() {
				set[fe.FaceID] = struct{}{}
			}
		}
	}
	pe.forwardTo = set
	pe.fgen = pe.tree.forwardToGen
	return set
}

// AddForwardingEntry installs or refreshes a (faceid, flags, expiry)
// triple, as an administrative prefixreg would (spec.md §4.4).
func (pe *PrefixEntry) AddForwardingEntry(faceID uint64, flags FibFlags, expirySeconds int) *ForwardingEntry {
	for _, fe := range pe.fib {
		if fe.FaceID == faceID {
			fe.Flags = flags | flagRefreshed
			fe.ExpirySeconds = expirySeconds
			pe.tree.bumpForwardToGen()
			return fe
		}
	}
	fe := &ForwardingEntry{FaceID: faceID, Flags: flags | flagRefreshed, ExpirySeconds: expirySeconds}
	pe.fib = append(pe.fib, fe)
	pe.tree.bumpForwardToGen()
	return fe
}

// RemoveForwardingEntry deletes the entry for faceID, if present.
func (pe *PrefixEntry) RemoveForwardingEntry(faceID uint64) {
	for i, fe := range pe.fib {
		if fe.FaceID == faceID {
			pe.fib = append(pe.fib[:i], pe.fib[i+1:]...)
			pe.tree.bumpForwardToGen()
			return
		}
	}
}

// RemoveFace drops every forwarding entry pointing at faceID across
// the whole table and bumps forward_to_gen once (spec.md §8 invariant
// 6: "a face's forward_to set contains only faceids that currently
// resolve").
func (t *NameTree) RemoveFace(faceID uint64) {
	changed := false
	for _, pe := range t.entries {
		for i := 0; i < len(pe.fib); i++ {
			if pe.fib[i].FaceID == faceID {
				pe.fib = append(pe.fib[:i], pe.fib[i+1:]...)
				i--
				changed = true
			}
		}
	}
	if changed {
		t.bumpForwardToGen()
	}
}

// Age runs one ageing pass (spec.md §3 "decremented every 5s"):
// decrement the expiry of every forwarding entry not refreshed since
// the previous pass, drop entries whose expiry has reached zero, clear
// the refreshed bit, and reap eligible empty prefixes.
func (t *NameTree) Age() {
	changed := false
	for _, pe := range t.entries {
		kept := pe.fib[:0]
		for _, fe := range pe.fib {
			if fe.Flags&flagRefreshed == 0 {
				fe.ExpirySeconds -= AgeingPeriodSeconds
			}
			fe.Flags &^= flagRefreshed
			if fe.ExpirySeconds <= 0 {
				changed = true
				continue
			}
			kept = append(kept, fe)
		}
		pe.fib = kept
	}
	if changed {
		t.bumpForwardToGen()
	}
	t.reapPass()
}

// RecordContentSource updates the predictive-response statistics for
// the prefix that produced a match, the closing step of spec.md §4.5:
// faceID becomes the most-recent source (the prior one slides to
// osrc), and predictedRTT folds in the observed round-trip with an
// exponential moving average.
func (pe *PrefixEntry) RecordContentSource(faceID uint64, observedRTTUs int64) {
	if faceID != pe.src {
		pe.osrc = pe.src
		pe.src = faceID
	}
	pe.predictedRTT += (observedRTTUs - pe.predictedRTT) >> predictedRTTEwmaShift
}

// PredictedRTT returns the prefix's current predicted-response timer,
// in microseconds.
func (pe *PrefixEntry) PredictedRTT() int64 { return pe.predictedRTT }

// eligibleForReap reports whether pe has no forwarding entries, no
// children, no live PIT entries, and no known content source
// (spec.md §4.4).
func (pe *PrefixEntry) eligibleForReap() bool {
	return len(pe.fib) == 0 && pe.children == 0 && pe.pit.empty() && pe.src == 0
}

func (t *NameTree) reapPass() {
	for key, pe := range t.entries {
		if pe.parent == nil {
			continue // never reap the root
		}
		if !pe.eligibleForReap() {
			pe.reapRounds = 0
			continue
		}
		pe.reapRounds++
		if pe.reapRounds >= ReapRoundsBeforeDelete {
			if pe.parent != nil {
				pe.parent.children--
			}
			delete(t.entries, key)
		}
	}
}
