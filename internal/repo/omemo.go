package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prose-im/prose-core-go/internal/store"
)

// TrustLevel is a peer device's trust state (spec §4.5 "Device registry").
type TrustLevel string

const (
	TrustUndecided TrustLevel = "undecided"
	TrustTrusted   TrustLevel = "trusted"
	TrustUntrusted TrustLevel = "untrusted"
)

// DeviceIdentity is one observed device for a bare identifier, tracked
// through device-list reconciliation (spec §4.5 "Device registry").
// Devices are never deleted: a device missing from a fresh list is marked
// inactive rather than removed, so that a later reappearance restores
// its existing session instead of starting fresh.
type DeviceIdentity struct {
	BareJID  string     `json:"bare_jid"`
	DeviceID uint32     `json:"device_id"`
	Active   bool       `json:"active"`
	Trust    TrustLevel `json:"trust"`
	LastSeen int64      `json:"last_seen_ms"`
	IsSelf   bool       `json:"is_self"`
}

func deviceKey(bareJID string, deviceID uint32) string {
	return fmt.Sprintf("%s|%d", bareJID, deviceID)
}

type IdentityRepo struct {
	db *store.Database
}

func NewIdentityRepo(db *store.Database) *IdentityRepo {
	return &IdentityRepo{db: db}
}

func (r *IdentityRepo) Get(ctx context.Context, bareJID string, deviceID uint32) (*DeviceIdentity, bool, error) {
	var out *DeviceIdentity
	err := r.db.View(ctx, []string{CollectionOMEMOIdentities}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOIdentities)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(deviceKey(bareJID, deviceID))
		if err != nil || !ok {
			return err
		}
		var d DeviceIdentity
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		out = &d
		return nil
	})
	return out, out != nil, err
}

// ForPeer returns every device the store has ever observed for a bare
// identifier, active and inactive alike.
func (r *IdentityRepo) ForPeer(ctx context.Context, bareJID string) ([]DeviceIdentity, error) {
	var out []DeviceIdentity
	err := r.db.View(ctx, []string{CollectionOMEMOIdentities}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOIdentities)
		if err != nil {
			return err
		}
		values, err := c.GetAll(store.All(), store.Forward, 0)
		if err != nil {
			return err
		}
		for _, v := range values {
			var d DeviceIdentity
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.BareJID == bareJID {
				out = append(out, d)
			}
		}
		return nil
	})
	return out, err
}

func (r *IdentityRepo) Save(ctx context.Context, d DeviceIdentity) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionOMEMOIdentities}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOIdentities)
		if err != nil {
			return err
		}
		return c.Put(deviceKey(d.BareJID, d.DeviceID), raw)
	})
}

// Reconcile applies an inbound device-list: known ids are activated,
// unknown ids are inserted active, and ids missing from the list are
// marked inactive without deleting their stored state (spec §4.5
// "Device registry" reconciliation rules).
func (r *IdentityRepo) Reconcile(ctx context.Context, bareJID string, liveIDs []uint32, nowMs int64) error {
	live := make(map[uint32]bool, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = true
	}
	return r.db.Update(ctx, []string{CollectionOMEMOIdentities}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOIdentities)
		if err != nil {
			return err
		}
		existing := map[uint32]DeviceIdentity{}
		values, err := c.GetAll(store.All(), store.Forward, 0)
		if err != nil {
			return err
		}
		for _, v := range values {
			var d DeviceIdentity
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.BareJID == bareJID {
				existing[d.DeviceID] = d
			}
		}
		for id := range live {
			d, known := existing[id]
			if !known {
				d = DeviceIdentity{BareJID: bareJID, DeviceID: id, Trust: TrustUndecided}
			}
			d.Active = true
			d.LastSeen = nowMs
			raw, err := json.Marshal(d)
			if err != nil {
				return err
			}
			if err := c.Put(deviceKey(bareJID, id), raw); err != nil {
				return err
			}
		}
		for id, d := range existing {
			if live[id] {
				continue
			}
			d.Active = false
			raw, err := json.Marshal(d)
			if err != nil {
				return err
			}
			if err := c.Put(deviceKey(bareJID, id), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// SessionState is one double-ratchet session's persisted state for a
// (peer bare id, peer device id) pair (spec §4.5 "OMEMO session state").
type SessionState struct {
	BareJID           string            `json:"bare_jid"`
	DeviceID          uint32            `json:"device_id"`
	RootKey           []byte            `json:"root_key"`
	SendingChain      []byte            `json:"sending_chain"`
	ReceivingChain    []byte            `json:"receiving_chain"`
	SendCounter       uint32            `json:"send_counter"`
	ReceiveCounter    uint32            `json:"receive_counter"`
	PreviousCounter   uint32            `json:"previous_counter"`
	SkippedKeys       map[string][]byte `json:"skipped_keys,omitempty"`
	RemoteIdentityKey []byte            `json:"remote_identity_key"`
}

type SessionRepo struct {
	db *store.Database
}

func NewSessionRepo(db *store.Database) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Get(ctx context.Context, bareJID string, deviceID uint32) (*SessionState, bool, error) {
	var out *SessionState
	err := r.db.View(ctx, []string{CollectionOMEMOSessions}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOSessions)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(deviceKey(bareJID, deviceID))
		if err != nil || !ok {
			return err
		}
		var s SessionState
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		out = &s
		return nil
	})
	return out, out != nil, err
}

func (r *SessionRepo) Save(ctx context.Context, s SessionState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionOMEMOSessions}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOSessions)
		if err != nil {
			return err
		}
		return c.Put(deviceKey(s.BareJID, s.DeviceID), raw)
	})
}

func (r *SessionRepo) Delete(ctx context.Context, bareJID string, deviceID uint32) error {
	return r.db.Update(ctx, []string{CollectionOMEMOSessions}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOSessions)
		if err != nil {
			return err
		}
		return c.Delete(deviceKey(bareJID, deviceID))
	})
}

// PreKey is one unconsumed one-time pre-key from the local device's pool
// (spec §4.5 "Identity and bundle publication").
type PreKey struct {
	ID         uint32 `json:"id"`
	PublicKey  []byte `json:"public_key"`
	PrivateKey []byte `json:"private_key"`
}

type PreKeyRepo struct {
	db *store.Database
}

func NewPreKeyRepo(db *store.Database) *PreKeyRepo {
	return &PreKeyRepo{db: db}
}

func (r *PreKeyRepo) All(ctx context.Context) ([]PreKey, error) {
	var out []PreKey
	err := r.db.View(ctx, []string{CollectionOMEMOPreKeys}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOPreKeys)
		if err != nil {
			return err
		}
		values, err := c.GetAll(store.All(), store.Forward, 0)
		if err != nil {
			return err
		}
		for _, v := range values {
			var pk PreKey
			if err := json.Unmarshal(v, &pk); err != nil {
				return err
			}
			out = append(out, pk)
		}
		return nil
	})
	return out, err
}

func (r *PreKeyRepo) Get(ctx context.Context, id uint32) (*PreKey, bool, error) {
	var out *PreKey
	err := r.db.View(ctx, []string{CollectionOMEMOPreKeys}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOPreKeys)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(fmt.Sprintf("%d", id))
		if err != nil || !ok {
			return err
		}
		var pk PreKey
		if err := json.Unmarshal(raw, &pk); err != nil {
			return err
		}
		out = &pk
		return nil
	})
	return out, out != nil, err
}

func (r *PreKeyRepo) Save(ctx context.Context, pk PreKey) error {
	raw, err := json.Marshal(pk)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionOMEMOPreKeys}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOPreKeys)
		if err != nil {
			return err
		}
		return c.Put(fmt.Sprintf("%d", pk.ID), raw)
	})
}

// Consume removes a pre-key from the pool, as happens when it is used to
// accept an inbound pre-keyed envelope; the caller is then expected to
// generate and save a replacement (spec §4.5 "a fresh pre-key replaces
// it and the bundle is republished").
func (r *PreKeyRepo) Consume(ctx context.Context, id uint32) error {
	return r.db.Update(ctx, []string{CollectionOMEMOPreKeys}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOPreKeys)
		if err != nil {
			return err
		}
		return c.Delete(fmt.Sprintf("%d", id))
	})
}

// SignedPreKey is the local device's current signed pre-key.
type SignedPreKey struct {
	ID         uint32 `json:"id"`
	PublicKey  []byte `json:"public_key"`
	PrivateKey []byte `json:"private_key"`
	Signature  []byte `json:"signature"`
}

const signedPreKeyKey = "current"

type SignedPreKeyRepo struct {
	db *store.Database
}

func NewSignedPreKeyRepo(db *store.Database) *SignedPreKeyRepo {
	return &SignedPreKeyRepo{db: db}
}

func (r *SignedPreKeyRepo) Get(ctx context.Context) (*SignedPreKey, bool, error) {
	var out *SignedPreKey
	err := r.db.View(ctx, []string{CollectionOMEMOSignedPreKeys}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOSignedPreKeys)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(signedPreKeyKey)
		if err != nil || !ok {
			return err
		}
		var spk SignedPreKey
		if err := json.Unmarshal(raw, &spk); err != nil {
			return err
		}
		out = &spk
		return nil
	})
	return out, out != nil, err
}

func (r *SignedPreKeyRepo) Save(ctx context.Context, spk SignedPreKey) error {
	raw, err := json.Marshal(spk)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionOMEMOSignedPreKeys}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOSignedPreKeys)
		if err != nil {
			return err
		}
		return c.Put(signedPreKeyKey, raw)
	})
}

// TrustRecord is the persisted trust decision for one peer device, kept
// in its own collection (spec §4.8 "omemo-trust") separate from the
// device registry so a trust decision survives even if the registry
// entry is rebuilt from a fresh device-list reconciliation.
type TrustRecord struct {
	BareJID  string     `json:"bare_jid"`
	DeviceID uint32     `json:"device_id"`
	Level    TrustLevel `json:"level"`
}

type TrustRepo struct {
	db *store.Database
}

func NewTrustRepo(db *store.Database) *TrustRepo {
	return &TrustRepo{db: db}
}

func (r *TrustRepo) Get(ctx context.Context, bareJID string, deviceID uint32) (TrustLevel, error) {
	var level TrustLevel = TrustUndecided
	err := r.db.View(ctx, []string{CollectionOMEMOTrust}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOTrust)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(deviceKey(bareJID, deviceID))
		if err != nil || !ok {
			return err
		}
		var rec TrustRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		level = rec.Level
		return nil
	})
	return level, err
}

func (r *TrustRepo) Set(ctx context.Context, bareJID string, deviceID uint32, level TrustLevel) error {
	rec := TrustRecord{BareJID: bareJID, DeviceID: deviceID, Level: level}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionOMEMOTrust}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOTrust)
		if err != nil {
			return err
		}
		return c.Put(deviceKey(bareJID, deviceID), raw)
	})
}

// LocalIdentity is the local account's own long-lived identity key pair
// and device id, generated once on first login (spec §4.5 "On first
// login the engine generates an identity key pair").
type LocalIdentity struct {
	DeviceID           uint32 `json:"device_id"`
	IdentityPrivateKey []byte `json:"identity_private_key"`
	IdentityPublicKey  []byte `json:"identity_public_key"`
}

const localIdentityKey = "local"

type LocalIdentityRepo struct {
	db *store.Database
}

func NewLocalIdentityRepo(db *store.Database) *LocalIdentityRepo {
	return &LocalIdentityRepo{db: db}
}

func (r *LocalIdentityRepo) Get(ctx context.Context) (*LocalIdentity, bool, error) {
	var out *LocalIdentity
	err := r.db.View(ctx, []string{CollectionOMEMOLocal}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOLocal)
		if err != nil {
			return err
		}
		raw, ok, err := c.Get(localIdentityKey)
		if err != nil || !ok {
			return err
		}
		var li LocalIdentity
		if err := json.Unmarshal(raw, &li); err != nil {
			return err
		}
		out = &li
		return nil
	})
	return out, out != nil, err
}

func (r *LocalIdentityRepo) Save(ctx context.Context, li LocalIdentity) error {
	raw, err := json.Marshal(li)
	if err != nil {
		return err
	}
	return r.db.Update(ctx, []string{CollectionOMEMOLocal}, func(tx *store.Tx) error {
		c, err := tx.Collection(CollectionOMEMOLocal)
		if err != nil {
			return err
		}
		return c.Put(localIdentityKey, raw)
	})
}
