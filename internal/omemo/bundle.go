package omemo

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/prose-im/prose-core-go/internal/repo"
	"github.com/prose-im/prose-core-go/internal/xmpp/modules"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

func bundleNode(deviceID uint32) string {
	return stanza.NSOMEMOBundlesPrefix + fmt.Sprintf("%d", deviceID)
}

func toWireBundle(identity IdentityKeyPair, signedPreKey repo.SignedPreKey, preKeys []repo.PreKey) *stanza.OMEMOBundle {
	wire := &stanza.OMEMOBundle{
		IdentityKey: base64.StdEncoding.EncodeToString(identity.Public[:]),
		SignedPreKeyPublic: stanza.OMEMOSignedPreKeyPublic{
			SignedPreKeyID: signedPreKey.ID,
			Value:          base64.StdEncoding.EncodeToString(signedPreKey.PublicKey),
		},
		SignedPreKeySignature: base64.StdEncoding.EncodeToString(signedPreKey.Signature),
	}
	for _, pk := range preKeys {
		wire.PreKeys = append(wire.PreKeys, stanza.OMEMOPreKeyPublic{
			PreKeyID: pk.ID,
			Value:    base64.StdEncoding.EncodeToString(pk.PublicKey),
		})
	}
	return wire
}

// fetchedBundle is a peer's bundle decoded back into raw key bytes, plus
// one arbitrarily-chosen one-time pre-key consumed for this session
// (spec §4.5 "obtain a session (create by fetching bundle if absent)").
type fetchedBundle struct {
	identityKey   [32]byte
	signedPreKey  [32]byte
	signature     []byte
	oneTimePreKey *[32]byte
	oneTimePreKeyID uint32
}

func decodeKey(b64 string) ([32]byte, error) {
	var out [32]byte
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("omemo: key must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func fetchBundle(ctx context.Context, pubsub *modules.PubSub, peerBareJID string, deviceID uint32) (*fetchedBundle, error) {
	items, err := pubsub.Items(ctx, peerBareJID, bundleNode(deviceID), 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("omemo: empty bundle for %s device %d", peerBareJID, deviceID)
	}
	var wire stanza.OMEMOBundle
	if err := xml.Unmarshal(items[0].Payload, &wire); err != nil {
		return nil, err
	}

	identityKey, err := decodeKey(wire.IdentityKey)
	if err != nil {
		return nil, err
	}
	signedPreKey, err := decodeKey(wire.SignedPreKeyPublic.Value)
	if err != nil {
		return nil, err
	}
	signature, err := base64.StdEncoding.DecodeString(wire.SignedPreKeySignature)
	if err != nil {
		return nil, err
	}
	if !xeddsaVerify(identityKey, signedPreKey[:], signature) {
		return nil, fmt.Errorf("omemo: signed pre-key signature invalid for %s device %d", peerBareJID, deviceID)
	}

	fb := &fetchedBundle{identityKey: identityKey, signedPreKey: signedPreKey, signature: signature}
	if len(wire.PreKeys) > 0 {
		chosen := wire.PreKeys[0]
		key, err := decodeKey(chosen.Value)
		if err != nil {
			return nil, err
		}
		fb.oneTimePreKey = &key
		fb.oneTimePreKeyID = chosen.PreKeyID
	}
	return fb, nil
}

func publishBundle(ctx context.Context, pubsub *modules.PubSub, selfBareJID string, deviceID uint32, wire *stanza.OMEMOBundle) error {
	payload, err := xml.Marshal(wire)
	if err != nil {
		return err
	}
	_, err = pubsub.Publish(ctx, selfBareJID, bundleNode(deviceID), "current", payload, nil)
	return err
}

func publishDeviceList(ctx context.Context, pubsub *modules.PubSub, selfBareJID string, deviceIDs []uint32) error {
	list := &stanza.OMEMODeviceList{}
	for _, id := range deviceIDs {
		list.Devices = append(list.Devices, stanza.OMEMODevice{ID: id})
	}
	payload, err := xml.Marshal(list)
	if err != nil {
		return err
	}
	_, err = pubsub.Publish(ctx, selfBareJID, stanza.NSOMEMODeviceList, "current", payload, nil)
	return err
}
