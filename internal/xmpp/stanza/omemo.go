package stanza

import "encoding/xml"

// OMEMOEnvelope is the eu.siacs.conversations.axolotl encrypted payload:
// one ratchet-encrypted copy of the message key per recipient device, the
// IV used to encrypt the body, and the AEAD ciphertext itself (spec §4.5
// step 4, "emit an encrypted payload containing the sending device id, IV,
// the envelope list, and the ciphertext").
type OMEMOEnvelope struct {
	XMLName xml.Name `xml:"eu.siacs.conversations.axolotl encrypted"`
	Header  OMEMOHeader `xml:"header"`
	Payload string   `xml:"payload,omitempty"`
}

type OMEMOHeader struct {
	SID  uint32       `xml:"sid,attr"`
	IV   string       `xml:"iv"`
	Keys []OMEMOKey   `xml:"key"`
}

// OMEMOKey is one recipient device's copy of the message key, ratchet- or
// pre-key-encrypted depending on PreKey. A pre-keyed key additionally
// carries the sender's ephemeral public key and the one-time pre-key id
// it consumed, the X3DH material the recipient needs to derive the
// session for the first time (spec §4.5 "create by fetching bundle if
// absent").
type OMEMOKey struct {
	RID          uint32 `xml:"rid,attr"`
	PreKey       bool   `xml:"prekey,attr,omitempty"`
	EphemeralKey string `xml:"ek,attr,omitempty"`
	OneTimePreKeyID uint32 `xml:"pkid,attr,omitempty"`
	Value        string `xml:",chardata"`
}

// OMEMODeviceList is the urn:xmpp:... devicelist pubsub item payload: the
// complete set of device ids a JID has announced.
type OMEMODeviceList struct {
	XMLName xml.Name     `xml:"eu.siacs.conversations.axolotl:devicelist list"`
	Devices []OMEMODevice `xml:"device"`
}

type OMEMODevice struct {
	ID uint32 `xml:"id,attr"`
}

// OMEMOBundle is a device's published key bundle: identity key, signed
// pre-key (with signature), and the current batch of one-time pre-keys.
type OMEMOBundle struct {
	XMLName      xml.Name          `xml:"eu.siacs.conversations.axolotl:bundles:deviceid bundle"`
	SignedPreKeyPublic OMEMOSignedPreKeyPublic `xml:"signedPreKeyPublic"`
	SignedPreKeySignature string        `xml:"signedPreKeySignature"`
	IdentityKey  string            `xml:"identityKey"`
	PreKeys      []OMEMOPreKeyPublic `xml:"prekeys>preKeyPublic"`
}

type OMEMOSignedPreKeyPublic struct {
	SignedPreKeyID uint32 `xml:"signedPreKeyId,attr"`
	Value          string `xml:",chardata"`
}

type OMEMOPreKeyPublic struct {
	PreKeyID uint32 `xml:"preKeyId,attr"`
	Value    string `xml:",chardata"`
}
