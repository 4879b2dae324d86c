// Package security provides the Ed25519 signer and node-id derivation
// the internal client uses to sign administrative ContentObjects
// (spec.md §1 "producing signed ContentObjects", §6 "<node-id> is the
// 32-byte SHA-256 of the daemon's public key").
package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// Signer signs administrative ContentObject digests with a daemon-held
// Ed25519 key and reports the node-id derived from its public half.
type Signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey

	nodeID [32]byte
}

// NewSigner generates a fresh Ed25519 keypair and derives the node-id.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newSigner(pub, priv), nil
}

// LoadSigner reconstructs a Signer from a PKCS#8-encoded private key,
// the same encoding std/security/signer's Ed25519Signer.Secret
// produces, so the keystore file format matches the teacher's.
func LoadSigner(pkcs8 []byte) (*Signer, error) {
	key, err := x509.ParsePKCS8PrivateKey(pkcs8)
	if err != nil {
		return nil, fmt.Errorf("security: parse keystore: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("security: keystore does not hold an Ed25519 key")
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("security: unable to derive public key")
	}
	return newSigner(pub, priv), nil
}

func newSigner(pub ed25519.PublicKey, priv ed25519.PrivateKey) *Signer {
	return &Signer{pub: pub, priv: priv, nodeID: sha256.Sum256(pub)}
}

// NodeID returns the 32-byte SHA-256 of the signer's public key, used
// to address `/ccn/<node-id>/newface` and `/ccn/<node-id>/prefixreg`
// (spec.md §6).
func (s *Signer) NodeID() [32]byte { return s.nodeID }

// NodeIDHex renders the node-id as the lowercase hex string used in
// well-known control-Interest names.
func (s *Signer) NodeIDHex() string {
	return fmt.Sprintf("%x", s.nodeID[:])
}

// Sign produces a detached Ed25519 signature over digest, the 32-byte
// SHA-256 a ContentObject's Digest method computes.
func (s *Signer) Sign(digest [32]byte) []byte {
	return ed25519.Sign(s.priv, digest[:])
}

// PublicKey returns the PKIX/X.509-encoded public key, suitable as a
// KeyLocator value, matching std/security/signer's ed25519Signer.Public.
func (s *Signer) PublicKey() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(s.pub)
}

// Secret returns the PKCS#8-encoded private key for persistence to a
// keystore file.
func (s *Signer) Secret() ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(s.priv)
}

// Verify reports whether sig is a valid Ed25519 signature over digest
// under pub (PKIX/X.509-encoded, as PublicKey returns).
func Verify(pub []byte, digest [32]byte, sig []byte) bool {
	key, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return false
	}
	edKey, ok := key.(ed25519.PublicKey)
	if !ok {
		return false
	}
	return ed25519.Verify(edKey, digest[:], sig)
}
