package table

import (
	"math/rand"
	"testing"

	"github.com/ccnx-go/ccnd/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkContent(name string, content string) *wire.ContentObject {
	return &wire.ContentObject{Name: wire.NameFromStr(name), Content: []byte(content)}
}

func TestCsInsertAndDuplicate(t *testing.T) {
	cs := NewCS(0, nil, rand.New(rand.NewSource(1)))

	co := mkContent("/a/b/c", "hello")
	e1, dup1, err := cs.Insert(co)
	require.NoError(t, err)
	assert.False(t, dup1)
	assert.Equal(t, uint64(0), e1.Accession)

	e2, dup2, err := cs.Insert(co)
	require.NoError(t, err)
	assert.True(t, dup2)
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, cs.Len())
}

func TestCsAccessionsIncrease(t *testing.T) {
	cs := NewCS(0, nil, rand.New(rand.NewSource(1)))
	var last uint64
	for i, n := range []string{"/a", "/b", "/c"} {
		e, _, err := cs.Insert(mkContent(n, "x"))
		require.NoError(t, err)
		if i > 0 {
			assert.Greater(t, e.Accession, last)
		}
		last = e.Accession
	}
}

func TestCsMatchLeftmostVsRightmost(t *testing.T) {
	cs := NewCS(0, nil, rand.New(rand.NewSource(1)))
	_, _, err := cs.Insert(mkContent("/a/1", "x"))
	require.NoError(t, err)
	_, _, err = cs.Insert(mkContent("/a/2", "x"))
	require.NoError(t, err)
	_, _, err = cs.Insert(mkContent("/a/3", "x"))
	require.NoError(t, err)

	left := &wire.Interest{Name: wire.NameFromStr("/a"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Order: wire.OrderLeftmost}
	e, ok := cs.Match(left)
	require.True(t, ok)
	assert.True(t, wire.ExciseDigest(e.Object.StoredName()).Equal(wire.NameFromStr("/a/1")))

	right := &wire.Interest{Name: wire.NameFromStr("/a"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Order: wire.OrderRightmost}
	e, ok = cs.Match(right)
	require.True(t, ok)
	assert.True(t, wire.ExciseDigest(e.Object.StoredName()).Equal(wire.NameFromStr("/a/3")))
}

func TestCsMatchNoneOutsidePrefix(t *testing.T) {
	cs := NewCS(0, nil, rand.New(rand.NewSource(1)))
	_, _, err := cs.Insert(mkContent("/x/1", "x"))
	require.NoError(t, err)

	it := &wire.Interest{Name: wire.NameFromStr("/a"), MinSuffixComponents: -1, MaxSuffixComponents: -1}
	_, ok := cs.Match(it)
	assert.False(t, ok)
}

func TestCsFreshnessAboveCapGetsNoTimer(t *testing.T) {
	cs := NewCS(0, nil, rand.New(rand.NewSource(1)))
	co := mkContent("/a", "x")
	co.HasFreshness = true
	co.FreshnessSeconds = wire.MaxFreshnessSeconds + 1
	e, _, err := cs.Insert(co)
	require.NoError(t, err)
	assert.False(t, e.hasTimer)
}

func TestCsEvictionTwoPhase(t *testing.T) {
	cs := NewCS(2, nil, rand.New(rand.NewSource(1)))
	e1, _, err := cs.Insert(mkContent("/a", "x"))
	require.NoError(t, err)
	e1.Flags |= CsStale

	_, _, err = cs.Insert(mkContent("/b", "x"))
	require.NoError(t, err)
	_, _, err = cs.Insert(mkContent("/c", "x"))
	require.NoError(t, err)

	// over capacity triggered an automatic Evict() during the third
	// insert; the only STALE non-precious entry should be gone.
	assert.LessOrEqual(t, cs.Len(), 2)
	assert.Nil(t, cs.lookupByAccession(e1.Accession))
}

func TestCsPreciousSurvivesEviction(t *testing.T) {
	cs := NewCS(1, nil, rand.New(rand.NewSource(1)))
	e1, _, err := cs.Insert(mkContent("/a", "x"))
	require.NoError(t, err)
	e1.Flags |= CsStale | CsPrecious

	_, _, err = cs.Insert(mkContent("/b", "x"))
	require.NoError(t, err)

	assert.NotNil(t, cs.lookupByAccession(e1.Accession))
}
