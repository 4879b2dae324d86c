// Package sched implements the daemon's single scheduler: a min-heap
// of timed callbacks driven by the dispatcher's cooperative event
// loop (spec.md §4.1, §5). It is not reentrant and every callback runs
// on the single dispatcher goroutine — no locks are taken anywhere in
// this package.
package sched

import (
	"container/heap"
	"time"
)

// Callback is invoked when a scheduled event comes due, or once more
// at cancellation time with cancelled=true so it can release any
// resources it owned (spec.md §5 "Cancellation"). A positive return
// value re-arms the event that many microseconds in the future; zero
// (or any return value when cancelled) removes it.
type Callback func(cancelled bool) (rearmUs int64)

// NoNextEvent is the sentinel RunOnce returns for "no pending work".
const NoNextEvent int64 = -1

// Handle identifies a scheduled event for Cancel.
type Handle struct {
	item *item
}

type item struct {
	due     time.Time
	seq     uint64 // insertion order, for FIFO tie-breaking
	cb      Callback
	index   int
	pending bool
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Scheduler owns the min-heap and the monotonic clock used to order
// events. Clock is swappable for test reproducibility.
type Scheduler struct {
	h     itemHeap
	seq   uint64
	clock func() time.Time
}

// New builds an empty Scheduler using the real wall clock.
func New() *Scheduler {
	return &Scheduler{clock: time.Now}
}

// NewWithClock builds a Scheduler using the supplied clock function,
// for deterministic tests.
func NewWithClock(clock func() time.Time) *Scheduler {
	return &Scheduler{clock: clock}
}

// Schedule arms cb to fire delayUs microseconds from now and returns a
// handle that Cancel can use to abort it early.
func (s *Scheduler) Schedule(delayUs int64, cb Callback) Handle {
	it := &item{
		due: s.clock().Add(time.Duration(delayUs) * time.Microsecond),
		seq: s.seq,
		cb:  cb,
	}
	s.seq++
	it.pending = true
	heap.Push(&s.h, it)
	return Handle{item: it}
}

// Cancel aborts a scheduled event if it is still pending, invoking its
// callback once more with cancelled=true. Cancelling an already-fired
// or already-cancelled handle is a no-op.
func (s *Scheduler) Cancel(h Handle) {
	it := h.item
	if it == nil || !it.pending || it.index < 0 {
		return
	}
	heap.Remove(&s.h, it.index)
	it.pending = false
	it.cb(true)
}

// RunOnce executes every callback whose due time has passed (relative
// to the scheduler's clock) and returns the number of microseconds
// until the next pending event, or NoNextEvent if the heap is empty.
// A callback may re-arm itself by returning a positive delay.
func (s *Scheduler) RunOnce() int64 {
	now := s.clock()
	for s.h.Len() > 0 {
		next := s.h[0]
		if next.due.After(now) {
			break
		}
		heap.Pop(&s.h)
		next.pending = false
		if rearm := next.cb(false); rearm > 0 {
			next.due = now.Add(time.Duration(rearm) * time.Microsecond)
			next.seq = s.seq
			s.seq++
			next.pending = true
			heap.Push(&s.h, next)
		}
	}
	if s.h.Len() == 0 {
		return NoNextEvent
	}
	d := s.h[0].due.Sub(now)
	if d < 0 {
		d = 0
	}
	return d.Microseconds()
}

// Len reports the number of events currently pending.
func (s *Scheduler) Len() int { return s.h.Len() }
