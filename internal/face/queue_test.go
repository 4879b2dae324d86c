package face

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushAndDrainOrder(t *testing.T) {
	q := newQueue(DelayASAP, KindLocal)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	var sent []uint64
	cost, yielded := q.Drain(func(acc uint64, size int) error {
		sent = append(sent, acc)
		return nil
	})

	assert.Equal(t, []uint64{1, 2}, sent) // burstMax = 2
	assert.False(t, yielded)
	assert.Greater(t, cost, int64(0))
	assert.Equal(t, 1, q.Len())
}

func TestQueueDrainStopsOnSendError(t *testing.T) {
	q := newQueue(DelayASAP, KindLocal)
	q.Push(1)
	q.Push(2)

	_, yielded := q.Drain(func(acc uint64, size int) error {
		return errors.New("broken pipe")
	})
	assert.True(t, yielded)
	assert.Equal(t, 0, q.run)
}

func TestQueuePreferredProviderDropsJitter(t *testing.T) {
	q := newQueue(DelayNormal, KindUnicastLink)
	q.run = preferredProviderMin
	rnd := rand.New(rand.NewSource(1))

	assert.Equal(t, q.pacing.baseUs, q.NextDelay(rnd))
}

func TestQueueNextDelayIncludesJitterBeforeThreshold(t *testing.T) {
	q := newQueue(DelayNormal, KindUnicastLink)
	rnd := rand.New(rand.NewSource(1))

	d := q.NextDelay(rnd)
	require.GreaterOrEqual(t, d, q.pacing.baseUs)
	assert.Less(t, d, q.pacing.baseUs+q.pacing.jitterUs)
}

func TestLocalFacePacingHasNoDelay(t *testing.T) {
	q := newQueue(DelayASAP, KindLocal)
	rnd := rand.New(rand.NewSource(1))
	assert.Equal(t, int64(0), q.NextDelay(rnd))
}
