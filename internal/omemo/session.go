package omemo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/prose-im/prose-core-go/internal/repo"
)

var (
	errOutOfOrderGap  = errors.New("omemo: message counter too far ahead")
	errUnknownCounter = errors.New("omemo: no key for message counter")
)

// maxSkippedKeys bounds how many message keys a single inbound message may
// skip past the receive counter before it is refused, the usual
// double-ratchet guard against an adversary forcing unbounded memory
// growth in one step. Keys already stashed are not counted against it.
const maxSkippedKeys = 1000

func dh(priv, pub [32]byte) ([]byte, error) {
	return curve25519.X25519(priv[:], pub[:])
}

// deriveRootAndChain runs the X3DH key agreement's final HKDF step over
// the concatenated DH outputs, producing the new session's root key and
// its first chain key (spec §4.5 "obtain a session (create by fetching
// bundle if absent)").
func deriveRootAndChain(dhOutputs ...[]byte) (rootKey, chainKey []byte, err error) {
	var ikm []byte
	for _, d := range dhOutputs {
		ikm = append(ikm, d...)
	}
	r := hkdf.New(sha256.New, ikm, nil, []byte("OMEMO X3DH Root"))
	out := make([]byte, 64)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, nil, err
	}
	return out[:32], out[32:], nil
}

// InitiateSession runs the initiator (sending) side of X3DH against a
// peer bundle: DH(IKa, SPKb), DH(EKa, IKb), DH(EKa, SPKb), and
// DH(EKa, OPKb) when a one-time pre-key was offered.
func InitiateSession(self IdentityKeyPair, peerBareJID string, peerDeviceID uint32, peerIdentityPub, peerSignedPreKeyPub [32]byte, peerOneTimePreKeyPub *[32]byte) (session *repo.SessionState, ephemeralPub [32]byte, err error) {
	ephemeralPriv, ephemeralPub, err := generateX25519KeyPair()
	if err != nil {
		return nil, [32]byte{}, err
	}

	dh1, err := dh(self.Private, peerSignedPreKeyPub)
	if err != nil {
		return nil, [32]byte{}, err
	}
	dh2, err := dh(ephemeralPriv, peerIdentityPub)
	if err != nil {
		return nil, [32]byte{}, err
	}
	dh3, err := dh(ephemeralPriv, peerSignedPreKeyPub)
	if err != nil {
		return nil, [32]byte{}, err
	}
	outputs := [][]byte{dh1, dh2, dh3}
	if peerOneTimePreKeyPub != nil {
		dh4, err := dh(ephemeralPriv, *peerOneTimePreKeyPub)
		if err != nil {
			return nil, [32]byte{}, err
		}
		outputs = append(outputs, dh4)
	}

	root, chain, err := deriveRootAndChain(outputs...)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return &repo.SessionState{
		BareJID: peerBareJID, DeviceID: peerDeviceID,
		RootKey: root, SendingChain: chain, ReceivingChain: chain,
		RemoteIdentityKey: peerIdentityPub[:],
	}, ephemeralPub, nil
}

// AcceptSession runs the responder side of X3DH when a pre-keyed
// envelope arrives: the roles of each DH term mirror InitiateSession with
// sender and receiver keys swapped.
func AcceptSession(self IdentityKeyPair, signedPreKey repo.SignedPreKey, oneTimePreKey *repo.PreKey, peerBareJID string, peerDeviceID uint32, peerIdentityPub, peerEphemeralPub [32]byte) (*repo.SessionState, error) {
	var signedPriv [32]byte
	copy(signedPriv[:], signedPreKey.PrivateKey)

	dh1, err := dh(signedPriv, peerIdentityPub)
	if err != nil {
		return nil, err
	}
	dh2, err := dh(self.Private, peerEphemeralPub)
	if err != nil {
		return nil, err
	}
	dh3, err := dh(signedPriv, peerEphemeralPub)
	if err != nil {
		return nil, err
	}
	outputs := [][]byte{dh1, dh2, dh3}
	if oneTimePreKey != nil {
		var otPriv [32]byte
		copy(otPriv[:], oneTimePreKey.PrivateKey)
		dh4, err := dh(otPriv, peerEphemeralPub)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, dh4)
	}

	root, chain, err := deriveRootAndChain(outputs...)
	if err != nil {
		return nil, err
	}
	return &repo.SessionState{
		BareJID: peerBareJID, DeviceID: peerDeviceID,
		RootKey: root, SendingChain: chain, ReceivingChain: chain,
		RemoteIdentityKey: peerIdentityPub[:],
	}, nil
}

// chainStep derives this step's message key and the next chain key from
// the current chain key, the symmetric-key ratchet KDF Signal-derived
// protocols use: HMAC-SHA256 keyed by the chain key over two distinct
// constant inputs.
func chainStep(chainKey []byte) (messageKey, nextChainKey []byte) {
	mac := hmac.New(sha256.New, chainKey)
	mac.Write([]byte{0x01})
	messageKey = mac.Sum(nil)

	mac = hmac.New(sha256.New, chainKey)
	mac.Write([]byte{0x02})
	nextChainKey = mac.Sum(nil)
	return
}

func aeadNonce(counter uint32) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[chacha20poly1305.NonceSize-4:], counter)
	return nonce
}

// RatchetEncrypt advances the session's sending chain by one step and
// seals plaintext (the per-message content key, in OMEMO's usage) under
// the derived message key, returning the wire counter alongside the
// ciphertext (spec §4.5 "encrypt the content key under that session").
func RatchetEncrypt(s *repo.SessionState, plaintext []byte) (counter uint32, ciphertext []byte, err error) {
	messageKey, nextChain := chainStep(s.SendingChain)
	aead, err := chacha20poly1305.New(messageKey[:chacha20poly1305.KeySize])
	if err != nil {
		return 0, nil, err
	}
	counter = s.SendCounter
	ciphertext = aead.Seal(nil, aeadNonce(counter), plaintext, nil)

	s.SendingChain = nextChain
	s.SendCounter++
	return counter, ciphertext, nil
}

// RatchetDecrypt opens a ciphertext sealed by RatchetEncrypt at the given
// counter, catching the receiving chain up to that counter and stashing
// any skipped message keys for out-of-order delivery (spec §4.5
// "decrypt the content key using the session").
func RatchetDecrypt(s *repo.SessionState, counter uint32, ciphertext []byte) ([]byte, error) {
	if counter < s.ReceiveCounter {
		key, ok := s.SkippedKeys[skippedKeyID(counter)]
		if !ok {
			return nil, errUnknownCounter
		}
		delete(s.SkippedKeys, skippedKeyID(counter))
		return open(key, counter, ciphertext)
	}

	if int(counter-s.ReceiveCounter) > maxSkippedKeys {
		return nil, errOutOfOrderGap
	}

	chain := s.ReceivingChain
	if s.SkippedKeys == nil {
		s.SkippedKeys = map[string][]byte{}
	}
	for i := s.ReceiveCounter; i < counter; i++ {
		messageKey, next := chainStep(chain)
		s.SkippedKeys[skippedKeyID(i)] = messageKey
		chain = next
	}
	messageKey, next := chainStep(chain)

	plaintext, err := open(messageKey, counter, ciphertext)
	if err != nil {
		return nil, err
	}

	s.ReceivingChain = next
	s.PreviousCounter = s.ReceiveCounter
	s.ReceiveCounter = counter + 1
	return plaintext, nil
}

func open(messageKey []byte, counter uint32, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(messageKey[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, aeadNonce(counter), ciphertext, nil)
}

func skippedKeyID(counter uint32) string {
	return fmt.Sprintf("%d", counter)
}
