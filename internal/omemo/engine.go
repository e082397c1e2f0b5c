package omemo

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/modules"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// ErrNoDevices is returned when a recipient has no known active device
// (spec §4.5 "If any recipient has zero active devices, fail").
var ErrNoDevices = errors.New("omemo: recipient has no active devices")

// preKeyPoolSize is how many one-time pre-keys the pool is topped back
// up to whenever one is consumed.
const preKeyPoolSize = 100

// Engine is the OMEMO encryption engine: identity/bundle lifecycle,
// device-registry reconciliation (delegated to repo.IdentityRepo), and
// per-(peer, device) double-ratchet session management (spec §4.5).
type Engine struct {
	selfBareJID string

	identities     *repo.IdentityRepo
	sessions       *repo.SessionRepo
	preKeys        *repo.PreKeyRepo
	signedPreKeys  *repo.SignedPreKeyRepo
	trust          *repo.TrustRepo
	localIdentity  *repo.LocalIdentityRepo

	pubsub *modules.PubSub
	log    zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	identity IdentityKeyPair
	deviceID uint32
}

func NewEngine(selfBareJID string, identities *repo.IdentityRepo, sessions *repo.SessionRepo, preKeys *repo.PreKeyRepo, signedPreKeys *repo.SignedPreKeyRepo, trust *repo.TrustRepo, localIdentity *repo.LocalIdentityRepo, pubsub *modules.PubSub, log zerolog.Logger) *Engine {
	return &Engine{
		selfBareJID: selfBareJID, identities: identities, sessions: sessions,
		preKeys: preKeys, signedPreKeys: signedPreKeys, trust: trust,
		localIdentity: localIdentity, pubsub: pubsub,
		log:   log.With().Str("component", "omemo").Logger(),
		locks: map[string]*sync.Mutex{},
	}
}

// Bootstrap loads the local identity, generating and publishing it (plus
// a signed pre-key and a fresh pre-key pool) on first run (spec §4.5
// "Identity and bundle publication").
func (e *Engine) Bootstrap(ctx context.Context) error {
	existing, ok, err := e.localIdentity.Get(ctx)
	if err != nil {
		return err
	}
	if ok {
		e.identity = IdentityKeyPair{}
		copy(e.identity.Private[:], existing.IdentityPrivateKey)
		copy(e.identity.Public[:], existing.IdentityPublicKey)
		e.deviceID = existing.DeviceID
		return nil
	}

	identity, err := GenerateIdentityKeyPair()
	if err != nil {
		return err
	}
	var deviceIDBytes [4]byte
	if _, err := rand.Read(deviceIDBytes[:]); err != nil {
		return err
	}
	deviceID := uint32(deviceIDBytes[0])<<24 | uint32(deviceIDBytes[1])<<16 | uint32(deviceIDBytes[2])<<8 | uint32(deviceIDBytes[3])

	e.identity = identity
	e.deviceID = deviceID
	if err := e.localIdentity.Save(ctx, repo.LocalIdentity{
		DeviceID: deviceID, IdentityPrivateKey: identity.Private[:], IdentityPublicKey: identity.Public[:],
	}); err != nil {
		return err
	}

	signedPreKey, err := GenerateSignedPreKey(identity, 1)
	if err != nil {
		return err
	}
	if err := e.signedPreKeys.Save(ctx, signedPreKey); err != nil {
		return err
	}

	preKeys, err := GeneratePreKeyPool(1, preKeyPoolSize)
	if err != nil {
		return err
	}
	for _, pk := range preKeys {
		if err := e.preKeys.Save(ctx, pk); err != nil {
			return err
		}
	}

	if err := e.publishBundleAndDeviceList(ctx); err != nil {
		return err
	}
	if err := e.identities.Save(ctx, repo.DeviceIdentity{
		BareJID: e.selfBareJID, DeviceID: deviceID, Active: true, Trust: repo.TrustTrusted, IsSelf: true, LastSeen: nowMillis(),
	}); err != nil {
		return err
	}
	return nil
}

func (e *Engine) publishBundleAndDeviceList(ctx context.Context) error {
	signedPreKey, ok, err := e.signedPreKeys.Get(ctx)
	if err != nil || !ok {
		return fmt.Errorf("omemo: no signed pre-key to publish: %w", err)
	}
	preKeys, err := e.preKeys.All(ctx)
	if err != nil {
		return err
	}
	wire := toWireBundle(e.identity, *signedPreKey, preKeys)
	if err := publishBundle(ctx, e.pubsub, e.selfBareJID, e.deviceID, wire); err != nil {
		return err
	}

	selves, err := e.identities.ForPeer(ctx, e.selfBareJID)
	if err != nil {
		return err
	}
	ids := []uint32{e.deviceID}
	for _, d := range selves {
		if d.Active && d.DeviceID != e.deviceID {
			ids = append(ids, d.DeviceID)
		}
	}
	return publishDeviceList(ctx, e.pubsub, e.selfBareJID, ids)
}

// TrustDevice records an explicit trust decision for a peer device,
// overriding the undecided default new devices reconcile in with (spec
// §4.5 "Device registry").
func (e *Engine) TrustDevice(ctx context.Context, bareJID string, deviceID uint32, level repo.TrustLevel) error {
	return e.trust.Set(ctx, bareJID, deviceID, level)
}

// DeviceTrust returns the current trust decision for a peer device,
// repo.TrustUndecided if none has been recorded.
func (e *Engine) DeviceTrust(ctx context.Context, bareJID string, deviceID uint32) (repo.TrustLevel, error) {
	return e.trust.Get(ctx, bareJID, deviceID)
}

// ReconcileDeviceList applies an inbound devicelist pubsub event for
// bareJID, the front door for spec §4.5's "Device registry" reconciliation.
func (e *Engine) ReconcileDeviceList(ctx context.Context, bareJID string, list *stanza.OMEMODeviceList) error {
	ids := make([]uint32, 0, len(list.Devices))
	for _, d := range list.Devices {
		ids = append(ids, d.ID)
	}
	return e.identities.Reconcile(ctx, bareJID, ids, nowMillis())
}

func (e *Engine) deviceLock(bareJID string, deviceID uint32) *sync.Mutex {
	key := fmt.Sprintf("%s|%d", bareJID, deviceID)
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	return m
}

// Encrypt builds an OMEMO envelope encrypting body for every active
// device of every recipient plus the local account's own other devices
// (spec §4.5 "Outbound encryption").
func (e *Engine) Encrypt(ctx context.Context, recipients []string, body string) (*stanza.OMEMOEnvelope, error) {
	targets := append([]string(nil), recipients...)
	targets = append(targets, e.selfBareJID)

	var deviceTargets []repo.DeviceIdentity
	for _, bareJID := range targets {
		devices, err := e.identities.ForPeer(ctx, bareJID)
		if err != nil {
			return nil, err
		}
		active := 0
		for _, d := range devices {
			if !d.Active || (d.IsSelf && d.BareJID == e.selfBareJID && d.DeviceID == e.deviceID) {
				continue
			}
			active++
			if d.Trust == repo.TrustUntrusted {
				continue
			}
			deviceTargets = append(deviceTargets, d)
		}
		if active == 0 && bareJID != e.selfBareJID {
			return nil, fmt.Errorf("%w: %s", ErrNoDevices, bareJID)
		}
	}

	contentKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(contentKey); err != nil {
		return nil, err
	}
	iv := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(contentKey)
	if err != nil {
		return nil, err
	}
	bodyCiphertext := aead.Seal(nil, iv, []byte(body), nil)

	header := stanza.OMEMOHeader{SID: e.deviceID, IV: base64.StdEncoding.EncodeToString(iv)}
	for _, d := range deviceTargets {
		wrapped, err := e.wrapContentKeyForDevice(ctx, d.BareJID, d.DeviceID, contentKey)
		if err != nil {
			e.log.Warn().Err(err).Str("peer", d.BareJID).Uint32("device", d.DeviceID).Msg("failed to encrypt to device, skipping")
			continue
		}
		header.Keys = append(header.Keys, *wrapped)
	}
	if len(header.Keys) == 0 {
		return nil, ErrNoDevices
	}

	return &stanza.OMEMOEnvelope{Header: header, Payload: base64.StdEncoding.EncodeToString(bodyCiphertext)}, nil
}

// wrapContentKeyForDevice obtains (or establishes) the session with
// (bareJID, deviceID) and ratchet-encrypts contentKey under it, returning
// whether the session needed pre-key material this time (spec §4.5
// "producing a per-device key envelope with a pre-key flag when the
// session is new").
func (e *Engine) wrapContentKeyForDevice(ctx context.Context, bareJID string, deviceID uint32, contentKey []byte) (*stanza.OMEMOKey, error) {
	lock := e.deviceLock(bareJID, deviceID)
	lock.Lock()
	defer lock.Unlock()

	session, ok, err := e.sessions.Get(ctx, bareJID, deviceID)
	if err != nil {
		return nil, err
	}

	key := &stanza.OMEMOKey{RID: deviceID}
	if !ok {
		fetched, ferr := fetchBundle(ctx, e.pubsub, bareJID, deviceID)
		if ferr != nil {
			return nil, ferr
		}
		var ephemeralPub [32]byte
		session, ephemeralPub, err = InitiateSession(e.identity, bareJID, deviceID, fetched.identityKey, fetched.signedPreKey, fetched.oneTimePreKey)
		if err != nil {
			return nil, err
		}
		key.PreKey = true
		key.EphemeralKey = base64.StdEncoding.EncodeToString(ephemeralPub[:])
		if fetched.oneTimePreKey != nil {
			key.OneTimePreKeyID = fetched.oneTimePreKeyID
		}
	}

	counter, ciphertext, err := RatchetEncrypt(session, contentKey)
	if err != nil {
		return nil, err
	}
	if err := e.sessions.Save(ctx, *session); err != nil {
		return nil, err
	}

	key.Value = base64.StdEncoding.EncodeToString(encodeWrappedKey(counter, ciphertext))
	return key, nil
}

// Decrypt recovers the plaintext body from an inbound envelope sent by
// (fromBareJID, header.SID), repairing a failed pre-keyed session once by
// re-fetching the sender's bundle (spec §4.5 "Inbound decryption").
func (e *Engine) Decrypt(ctx context.Context, fromBareJID string, env *stanza.OMEMOEnvelope) (string, error) {
	var myKey *stanza.OMEMOKey
	for i := range env.Header.Keys {
		if env.Header.Keys[i].RID == e.deviceID {
			myKey = &env.Header.Keys[i]
			break
		}
	}
	if myKey == nil {
		return "", fmt.Errorf("omemo: envelope not addressed to this device")
	}

	contentKey, err := e.unwrapContentKey(ctx, fromBareJID, env.Header.SID, myKey)
	if err != nil {
		return "", err
	}

	iv, err := base64.StdEncoding.DecodeString(env.Header.IV)
	if err != nil {
		return "", err
	}
	bodyCiphertext, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(contentKey)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, iv, bodyCiphertext, nil)
	if err != nil {
		return "", fmt.Errorf("omemo: body decryption failed: %w", err)
	}
	return string(plaintext), nil
}

func (e *Engine) unwrapContentKey(ctx context.Context, bareJID string, deviceID uint32, key *stanza.OMEMOKey) ([]byte, error) {
	lock := e.deviceLock(bareJID, deviceID)
	lock.Lock()
	defer lock.Unlock()

	counter, ciphertext, err := decodeWrappedKey(key.Value)
	if err != nil {
		return nil, err
	}

	session, ok, err := e.sessions.Get(ctx, bareJID, deviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		session, err = e.acceptFromPreKeyedEnvelope(ctx, bareJID, deviceID, key)
		if err != nil {
			return nil, err
		}
	}

	plaintext, err := RatchetDecrypt(session, counter, ciphertext)
	if err != nil {
		if key.PreKey {
			e.log.Warn().Str("peer", bareJID).Uint32("device", deviceID).Msg("pre-keyed decrypt failed, repairing session and retrying once")
			repaired, rerr := e.acceptFromPreKeyedEnvelope(ctx, bareJID, deviceID, key)
			if rerr != nil {
				return nil, err
			}
			plaintext, err = RatchetDecrypt(repaired, counter, ciphertext)
			if err != nil {
				return nil, fmt.Errorf("omemo: decrypt failed after repair attempt: %w", err)
			}
			session = repaired
		} else {
			return nil, err
		}
	}

	if err := e.sessions.Save(ctx, *session); err != nil {
		return nil, err
	}
	if key.PreKey && key.OneTimePreKeyID != 0 {
		if err := e.replenishConsumedPreKey(ctx, key.OneTimePreKeyID); err != nil {
			e.log.Warn().Err(err).Msg("failed to replenish consumed pre-key")
		}
	}
	return plaintext, nil
}

// acceptFromPreKeyedEnvelope derives a fresh receiving session from a
// pre-keyed envelope's embedded ephemeral key, the responder side of
// X3DH (spec §4.5 "If decryption fails and the envelope is pre-keyed,
// fetch the peer bundle, rebuild the session, and retry once").
func (e *Engine) acceptFromPreKeyedEnvelope(ctx context.Context, bareJID string, deviceID uint32, key *stanza.OMEMOKey) (*repo.SessionState, error) {
	if !key.PreKey || key.EphemeralKey == "" {
		return nil, fmt.Errorf("omemo: no session and envelope is not pre-keyed")
	}
	fetched, err := fetchBundle(ctx, e.pubsub, bareJID, deviceID)
	if err != nil {
		return nil, err
	}
	peerIdentity := fetched.identityKey
	peerEphemeral, err := decodeKey(key.EphemeralKey)
	if err != nil {
		return nil, err
	}
	signedPreKey, ok, err := e.signedPreKeys.Get(ctx)
	if err != nil || !ok {
		return nil, fmt.Errorf("omemo: no local signed pre-key: %w", err)
	}
	var oneTimePreKey *repo.PreKey
	if key.OneTimePreKeyID != 0 {
		if pk, ok, gerr := e.preKeys.Get(ctx, key.OneTimePreKeyID); gerr == nil && ok {
			oneTimePreKey = pk
			if derr := e.preKeys.Consume(ctx, key.OneTimePreKeyID); derr != nil {
				e.log.Warn().Err(derr).Msg("failed to consume used pre-key")
			}
		}
	}
	return AcceptSession(e.identity, *signedPreKey, oneTimePreKey, bareJID, deviceID, peerIdentity, peerEphemeral)
}

// replenishConsumedPreKey tops the local one-time pre-key pool back up
// and republishes the bundle so future initiators still see a full pool
// (spec §4.5 "If a one-time pre-key was consumed, replace it and
// republish the bundle").
func (e *Engine) replenishConsumedPreKey(ctx context.Context, consumedID uint32) error {
	all, err := e.preKeys.All(ctx)
	if err != nil {
		return err
	}
	var maxID uint32
	for _, pk := range all {
		if pk.ID > maxID {
			maxID = pk.ID
		}
	}
	fresh, err := GeneratePreKey(maxID + 1)
	if err != nil {
		return err
	}
	if err := e.preKeys.Save(ctx, fresh); err != nil {
		return err
	}
	return e.publishBundleAndDeviceList(ctx)
}

func encodeWrappedKey(counter uint32, ciphertext []byte) []byte {
	out := make([]byte, 4+len(ciphertext))
	out[0] = byte(counter >> 24)
	out[1] = byte(counter >> 16)
	out[2] = byte(counter >> 8)
	out[3] = byte(counter)
	copy(out[4:], ciphertext)
	return out
}

func decodeWrappedKey(b64 string) (counter uint32, ciphertext []byte, err error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return 0, nil, err
	}
	if len(raw) < 4 {
		return 0, nil, fmt.Errorf("omemo: malformed wrapped key")
	}
	counter = uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
	return counter, raw[4:], nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }
