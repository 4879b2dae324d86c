package table

import (
	"bytes"
	"errors"
	"math/rand"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/ccnx-go/ccnd/internal/sched"
	"github.com/ccnx-go/ccnd/internal/wire"
)

// CsFlags are the per-content-entry flags from spec.md §3.
type CsFlags uint8

const (
	CsSlowSend CsFlags = 1 << iota
	CsStale
	CsPrecious
)

// ErrKeyCollision is reported when two different ContentObjects hash
// to the same CS bucket but have different key bytes (spec.md §4.3
// step 2, §7 "Content-store key collision"). Both copies are
// discarded.
var ErrKeyCollision = errors.New("table: content store key collision")

// CsEntry is one cached, decoded ContentObject (spec.md §3 "Content
// entry").
type CsEntry struct {
	Accession uint64
	Object    *wire.ContentObject
	StoredKey []byte // StoredName().Bytes(), the CS hash key
	Flags     CsFlags

	freshnessTimer sched.Handle
	hasTimer       bool
}

func (e *CsEntry) Stale() bool    { return e.Flags&CsStale != 0 }
func (e *CsEntry) Precious() bool { return e.Flags&CsPrecious != 0 }

// Scheduler is the subset of internal/sched.Scheduler the Content
// Store needs to arm/cancel freshness timers (spec.md §4.3 step 5).
type Scheduler interface {
	Schedule(delayUs int64, cb sched.Callback) sched.Handle
	Cancel(h sched.Handle)
}

type csBucket []*CsEntry

// CS is the Content Store (spec.md §4.3).
type CS struct {
	byHash    map[uint64]csBucket
	direct    []*CsEntry // accession-indexed window, sliding base
	base      uint64
	straggler map[uint64]*CsEntry
	sk        *skiplist
	nextAcc   uint64

	Capacity int
	Admit    bool
	Serve    bool

	sched Scheduler
	rnd   *rand.Rand

	Hits, Misses uint64
}

// evictWorkLimit bounds the per-run work of the cooperative cleaner
// (spec.md §4.3 "Eviction").
const evictWorkLimit = 256

// NewCS builds an empty Content Store with the given capacity.
func NewCS(capacity int, sched Scheduler, rnd *rand.Rand) *CS {
	return &CS{
		byHash:    make(map[uint64]csBucket),
		straggler: make(map[uint64]*CsEntry),
		sk:        newSkiplist(rnd),
		Capacity:  capacity,
		Admit:     true,
		Serve:     true,
		sched:     sched,
		rnd:       rnd,
	}
}

// Len reports the number of live entries.
func (cs *CS) Len() int {
	n := 0
	for _, b := range cs.byHash {
		n += len(b)
	}
	return n
}

// Insert admits a fully-parsed ContentObject, performing the sequence
// from spec.md §4.3: digest + splice, hash insert (or duplicate/
// collision handling), accession assignment, skiplist insert, and
// freshness timer arming. Returns the stored entry and whether it was
// already present (a duplicate, now marked fresh).
func (cs *CS) Insert(co *wire.ContentObject) (entry *CsEntry, duplicate bool, err error) {
	if !cs.Admit {
		return nil, false, nil
	}
	storedName := co.StoredName()
	key := storedName.Bytes()
	h := xxhash.Sum64(key)
	bucket := cs.byHash[h]

	for _, existing := range bucket {
		if bytes.Equal(existing.StoredKey, key) {
			existing.Flags &^= CsStale
			return existing, true, nil
		}
	}
	if len(bucket) > 0 {
		// 64-bit hash collision between genuinely different keys:
		// conservative per spec.md §4.3 step 2 — discard both.
		for _, existing := range bucket {
			cs.evictEntry(existing)
		}
		delete(cs.byHash, h)
		return nil, false, ErrKeyCollision
	}

	e := &CsEntry{
		Accession: cs.nextAcc,
		Object:    co,
		StoredKey: key,
	}
	cs.nextAcc++

	cs.byHash[h] = append(cs.byHash[h], e)
	cs.storeByAccession(e)
	cs.sk.insert(storedName, e.Accession)

	if co.HasFreshness {
		cs.armFreshness(e, co.FreshnessSeconds)
	}

	if cs.Capacity > 0 && cs.Len() > cs.Capacity {
		cs.Evict()
	}

	return e, false, nil
}

// storeByAccession places e into the direct accession-indexed array.
// When e's accession lies past the window it first runs
// sweepSparsePrefix, then grows the window by ~1.5x+20 slots if there
// is still no room (spec.md §4.3 step 3). The sweep does not look at
// how densely a region is occupied.
func (cs *CS) storeByAccession(e *CsEntry) {
	idx := e.Accession - cs.base
	if idx < uint64(len(cs.direct)) {
		cs.direct[idx] = e
		return
	}
	cs.sweepSparsePrefix()
	idx = e.Accession - cs.base
	if idx < uint64(len(cs.direct)) {
		cs.direct[idx] = e
		return
	}
	newLen := int(float64(len(cs.direct))*1.5) + 20
	if uint64(newLen) <= idx {
		newLen = int(idx) + 1
	}
	grown := make([]*CsEntry, newLen)
	copy(grown, cs.direct)
	cs.direct = grown
	cs.direct[idx] = e
}

// sweepSparsePrefix moves the oldest quarter of the direct window out
// of it: live entries in that quarter go to the straggler table and
// the sliding base advances past it, however many of its slots are
// occupied.
func (cs *CS) sweepSparsePrefix() {
	if len(cs.direct) == 0 {
		return
	}
	cutoff := len(cs.direct) / 4
	if cutoff == 0 {
		return
	}
	for i := 0; i < cutoff; i++ {
		if e := cs.direct[i]; e != nil {
			cs.straggler[e.Accession] = e
		}
	}
	cs.direct = cs.direct[cutoff:]
	cs.base += uint64(cutoff)
}

// LookupByAccession finds a live entry by its accession number, or nil
// if it has been evicted.
func (cs *CS) LookupByAccession(accession uint64) *CsEntry {
	return cs.lookupByAccession(accession)
}

// lookupByAccession finds an entry by accession via the direct array
// or the straggler table — exactly one holds it (spec.md §3 "CS
// indexing invariants").
func (cs *CS) lookupByAccession(accession uint64) *CsEntry {
	if accession >= cs.base {
		idx := accession - cs.base
		if idx < uint64(len(cs.direct)) {
			return cs.direct[idx]
		}
	}
	return cs.straggler[accession]
}

func (cs *CS) removeByAccession(accession uint64) {
	if accession >= cs.base {
		idx := accession - cs.base
		if idx < uint64(len(cs.direct)) {
			cs.direct[idx] = nil
			return
		}
	}
	delete(cs.straggler, accession)
}

// armFreshness schedules the STALE transition for e, capping the
// timer at MaxFreshnessSeconds; freshness beyond the cap is accepted
// but never gets a timer (spec.md §8 boundary case).
func (cs *CS) armFreshness(e *CsEntry, freshnessSeconds uint32) {
	if freshnessSeconds > wire.MaxFreshnessSeconds {
		return
	}
	if cs.sched == nil {
		return
	}
	delayUs := int64(freshnessSeconds) * 1_000_000
	e.hasTimer = true
	e.freshnessTimer = cs.sched.Schedule(delayUs, func(cancelled bool) int64 {
		if cancelled {
			return 0
		}
		cs.onFreshnessExpired(e)
		return 0
	})
}

func (cs *CS) onFreshnessExpired(e *CsEntry) {
	e.hasTimer = false
	if cs.Capacity > 0 && cs.Len() > cs.Capacity {
		cs.evictEntry(e)
		return
	}
	e.Flags |= CsStale
}

// evictEntry removes e from every index: hash table, accession array
// / straggler, and skiplist (spec.md §3 "CS indexing invariants").
func (cs *CS) evictEntry(e *CsEntry) {
	h := xxhash.Sum64(e.StoredKey)
	bucket := cs.byHash[h]
	for i, cand := range bucket {
		if cand == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(cs.byHash, h)
	} else {
		cs.byHash[h] = bucket
	}
	cs.removeByAccession(e.Accession)
	cs.sk.remove(e.Object.StoredName(), e.Accession)
	if e.hasTimer && cs.sched != nil {
		cs.sched.Cancel(e.freshnessTimer)
		e.hasTimer = false
	}
}

// liveAccessionsOrdered returns, in ascending order, every straggler
// accession followed by every accession of the direct window,
// including window slots that hold no entry. Straggler entries are always older than the
// direct window (sweepSparsePrefix only moves entries out ahead of
// advancing cs.base), so a plain sorted-straggler-then-direct-range
// concatenation is accession-ordered overall.
func (cs *CS) liveAccessionsOrdered() []uint64 {
	accs := make([]uint64, 0, len(cs.straggler)+len(cs.direct))
	for acc := range cs.straggler {
		accs = append(accs, acc)
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i] < accs[j] })
	for acc := cs.base; acc < cs.base+uint64(len(cs.direct)); acc++ {
		accs = append(accs, acc)
	}
	return accs
}

// Evict runs one cooperative cleaner pass (spec.md §4.3 "Eviction"):
// phase (a) removes STALE, non-PRECIOUS entries up to a work limit;
// phase (b), if still over capacity, marks the oldest non-PRECIOUS
// non-STALE entries STALE so the next round can evict them. Both
// phases walk every live entry, including ones swept into the
// straggler table, so a straggler-resident entry is never permanently
// unevictable (spec.md §3 "CS indexing invariants").
func (cs *CS) Evict() {
	if cs.Capacity <= 0 {
		return
	}
	accs := cs.liveAccessionsOrdered()
	work := 0
	for _, acc := range accs {
		if work >= evictWorkLimit || cs.Len() <= cs.Capacity {
			break
		}
		e := cs.lookupByAccession(acc)
		if e == nil || e.Precious() || !e.Stale() {
			continue
		}
		cs.evictEntry(e)
		work++
	}
	if cs.Len() <= cs.Capacity {
		return
	}
	work = 0
	for _, acc := range accs {
		if work >= evictWorkLimit || cs.Len() <= cs.Capacity {
			break
		}
		e := cs.lookupByAccession(acc)
		if e == nil || e.Precious() || e.Stale() {
			continue
		}
		e.Flags |= CsStale
		work++
	}
}

// Match implements spec.md §4.3 "Matching for a received Interest":
// walk forward in name order from find_before(interest.Name) while
// the candidate shares the requested prefix, select at most one
// answer (leftmost or rightmost per the Interest's order preference),
// ties broken by name order.
func (cs *CS) Match(it *wire.Interest) (*CsEntry, bool) {
	var best *CsEntry
	cs.sk.walkPrefix(it.Name, func(name wire.Name, accession uint64) bool {
		e := cs.lookupByAccession(accession)
		if e == nil {
			return true // stale skiplist pointer racing an eviction; tolerated
		}
		if e.Stale() && it.AnswerFrom&wire.AnswerStaleOK == 0 {
			return true
		}
		if !it.MatchesSelectors(name) {
			return true
		}
		if best == nil {
			best = e
		} else if it.Order == wire.OrderRightmost {
			best = e
		}
		return true
	})
	if best == nil {
		cs.Misses++
		return nil, false
	}
	cs.Hits++
	if it.AnswerFrom&wire.AnswerExpireOnAnswer != 0 {
		best.Flags |= CsStale
	}
	return best, true
}
