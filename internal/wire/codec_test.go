package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterestRoundTripModuloNonce(t *testing.T) {
	it := &Interest{
		Name:                NameFromStr("/a/b/c"),
		MinSuffixComponents: 1,
		MaxSuffixComponents: 3,
		Order:               OrderRightmost,
		AnswerFrom:          AnswerCached | AnswerStaleOK,
		Scope:               1,
		Nonce:               []byte{1, 2, 3, 4, 5, 6},
		Magic:               1,
	}

	buf := EncodeInterest(it)
	var d Decoder
	d.Feed(buf)
	env, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, KindInterest, env.Kind)

	got := env.Interest
	got.Nonce = nil
	it.Nonce = nil

	reEncoded := EncodeInterest(got)
	var d2 Decoder
	d2.Feed(reEncoded)
	env2, ok2, err2 := d2.Next()
	require.NoError(t, err2)
	require.True(t, ok2)

	assert.True(t, env2.Interest.Name.Equal(it.Name))
	assert.Equal(t, it.MinSuffixComponents, env2.Interest.MinSuffixComponents)
	assert.Equal(t, it.MaxSuffixComponents, env2.Interest.MaxSuffixComponents)
	assert.Equal(t, it.Order, env2.Interest.Order)
	assert.Equal(t, it.AnswerFrom, env2.Interest.AnswerFrom)
	assert.Equal(t, it.Scope, env2.Interest.Scope)
	assert.False(t, env2.Interest.HasNonce())
}

func TestContentObjectDigestRoundTrip(t *testing.T) {
	co := &ContentObject{
		Name:    NameFromStr("/a/b/c"),
		Content: []byte("hello world"),
	}
	wireBytes := EncodeContentObject(co)

	var d Decoder
	d.Feed(wireBytes)
	env, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	parsed := env.ContentObject

	stored := parsed.StoredName()
	assert.Equal(t, len(parsed.Name)+1, len(stored))
	assert.Equal(t, DigestComponentLen, stored[len(stored)-1].EncodingLength())

	excised := ExciseDigest(stored)
	assert.True(t, excised.Equal(parsed.Name))
}

func TestPartialFrameAcrossFeeds(t *testing.T) {
	it := &Interest{Name: NameFromStr("/x"), MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: -1}
	buf := EncodeInterest(it)

	var d Decoder
	d.Feed(buf[:len(buf)/2])
	_, ok, err := d.Next()
	require.NoError(t, err)
	require.False(t, ok)
	assert.Equal(t, len(buf)/2, d.Pending())

	d.Feed(buf[len(buf)/2:])
	env, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, env.Interest.Name.Equal(it.Name))
	assert.Equal(t, 0, d.Pending())
}

func TestOversizeEnvelopeDropped(t *testing.T) {
	name := make([]byte, MaxEnvelopeSize+10)
	it := &Interest{Name: Name{{Typ: TypeGenericComponent, Val: name}}, MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: -1}
	buf := EncodeInterest(it)

	var d Decoder
	d.Feed(buf)
	_, ok, err := d.Next()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrOversize)
}

func TestEmptyPrefixMatchesEveryName(t *testing.T) {
	var root Name
	assert.True(t, root.IsPrefixOf(NameFromStr("/a/b/c")))
	assert.True(t, root.IsPrefixOf(nil))
}

func TestMaxSuffixZeroMatchesExactOnly(t *testing.T) {
	it := &Interest{Name: NameFromStr("/a/b"), MinSuffixComponents: -1, MaxSuffixComponents: 0}
	assert.True(t, it.MatchesSelectors(NameFromStr("/a/b")))
	assert.False(t, it.MatchesSelectors(NameFromStr("/a/b/c")))
}
