// Package omemo implements the OMEMO end-to-end encryption engine:
// identity and bundle publication, device-registry reconciliation, and
// the per-device double-ratchet sessions used to opportunistically
// encrypt message bodies (spec §4.5).
package omemo

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"github.com/prose-im/prose-core-go/internal/repo"
)

// IdentityKeyPair is the long-lived Curve25519 key pair a device signs
// its pre-keys with and uses as the first Diffie-Hellman input of every
// session it establishes.
type IdentityKeyPair struct {
	Private [32]byte
	Public  [32]byte
}

func generateX25519KeyPair() (priv, pub [32]byte, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	pubSlice, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return
	}
	copy(pub[:], pubSlice)
	return
}

func GenerateIdentityKeyPair() (IdentityKeyPair, error) {
	priv, pub, err := generateX25519KeyPair()
	if err != nil {
		return IdentityKeyPair{}, err
	}
	return IdentityKeyPair{Private: priv, Public: pub}, nil
}

// GeneratePreKey produces a single one-time pre-key with local id id.
func GeneratePreKey(id uint32) (repo.PreKey, error) {
	priv, pub, err := generateX25519KeyPair()
	if err != nil {
		return repo.PreKey{}, err
	}
	return repo.PreKey{ID: id, PublicKey: pub[:], PrivateKey: priv[:]}, nil
}

// GeneratePreKeyPool produces count sequentially-numbered one-time
// pre-keys starting at startID, the pool an identity publishes alongside
// its bundle (spec §4.5 "a pool of one-time pre-keys").
func GeneratePreKeyPool(startID uint32, count int) ([]repo.PreKey, error) {
	out := make([]repo.PreKey, 0, count)
	for i := 0; i < count; i++ {
		pk, err := GeneratePreKey(startID + uint32(i))
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}

// GenerateSignedPreKey produces a fresh signed pre-key, XEdDSA-signed
// with identity, with local id id.
func GenerateSignedPreKey(identity IdentityKeyPair, id uint32) (repo.SignedPreKey, error) {
	priv, pub, err := generateX25519KeyPair()
	if err != nil {
		return repo.SignedPreKey{}, err
	}
	var random [64]byte
	if _, err := rand.Read(random[:]); err != nil {
		return repo.SignedPreKey{}, err
	}
	sig, err := xeddsaSign(identity.Private, pub[:], random[:])
	if err != nil {
		return repo.SignedPreKey{}, err
	}
	return repo.SignedPreKey{ID: id, PublicKey: pub[:], PrivateKey: priv[:], Signature: sig}, nil
}
