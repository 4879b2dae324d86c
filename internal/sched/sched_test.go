package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleFiresOnce(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewWithClock(func() time.Time { return now })

	fired := 0
	s.Schedule(1000, func(cancelled bool) int64 {
		assert.False(t, cancelled)
		fired++
		return 0
	})

	assert.Equal(t, int64(1000), s.RunOnce())
	assert.Equal(t, 0, fired)

	now = now.Add(1001 * time.Microsecond)
	next := s.RunOnce()
	assert.Equal(t, 1, fired)
	assert.Equal(t, NoNextEvent, next)
}

func TestCancelInvokesOnceWithFlag(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewWithClock(func() time.Time { return now })

	calls := 0
	var lastCancelled bool
	h := s.Schedule(5000, func(cancelled bool) int64 {
		calls++
		lastCancelled = cancelled
		return 0
	})

	s.Cancel(h)
	assert.Equal(t, 1, calls)
	assert.True(t, lastCancelled)

	// cancelling again, or letting time pass, must not fire it again
	s.Cancel(h)
	now = now.Add(time.Hour)
	s.RunOnce()
	assert.Equal(t, 1, calls)
}

func TestRearmRepeats(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewWithClock(func() time.Time { return now })

	n := 0
	s.Schedule(100, func(cancelled bool) int64 {
		n++
		if n < 3 {
			return 100
		}
		return 0
	})

	for i := 0; i < 3; i++ {
		now = now.Add(101 * time.Microsecond)
		s.RunOnce()
	}
	assert.Equal(t, 3, n)
	assert.Equal(t, NoNextEvent, s.RunOnce())
}

func TestFIFOTieBreak(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewWithClock(func() time.Time { return now })

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		s.Schedule(10, func(cancelled bool) int64 {
			order = append(order, i)
			return 0
		})
	}
	now = now.Add(20 * time.Microsecond)
	s.RunOnce()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
