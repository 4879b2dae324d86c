package security_test

import (
	"testing"

	"github.com/ccnx-go/ccnd/internal/security"
	"github.com/stretchr/testify/require"
)

func TestNewSignerProducesVerifiableSignature(t *testing.T) {
	s, err := security.NewSigner()
	require.NoError(t, err)

	digest := [32]byte{1, 2, 3}
	sig := s.Sign(digest)

	pub, err := s.PublicKey()
	require.NoError(t, err)
	require.True(t, security.Verify(pub, digest, sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	s1, err := security.NewSigner()
	require.NoError(t, err)
	s2, err := security.NewSigner()
	require.NoError(t, err)

	digest := [32]byte{9, 9, 9}
	sig := s1.Sign(digest)

	pub2, err := s2.PublicKey()
	require.NoError(t, err)
	require.False(t, security.Verify(pub2, digest, sig))
}

func TestLoadSignerRoundTripsSecret(t *testing.T) {
	s1, err := security.NewSigner()
	require.NoError(t, err)

	secret, err := s1.Secret()
	require.NoError(t, err)

	s2, err := security.LoadSigner(secret)
	require.NoError(t, err)
	require.Equal(t, s1.NodeID(), s2.NodeID())

	digest := [32]byte{4, 5, 6}
	sig := s2.Sign(digest)
	pub1, err := s1.PublicKey()
	require.NoError(t, err)
	require.True(t, security.Verify(pub1, digest, sig))
}

func TestLoadSignerRejectsMalformedKey(t *testing.T) {
	_, err := security.LoadSigner([]byte("not a key"))
	require.Error(t, err)
}

func TestNodeIDHexIsLowercase32Bytes(t *testing.T) {
	s, err := security.NewSigner()
	require.NoError(t, err)
	require.Len(t, s.NodeIDHex(), 64)
}
