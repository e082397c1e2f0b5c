package modules

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"

	"github.com/rs/xid"

	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// Disco answers capabilities discovery (disco#info) for the runtime's own
// identity and computes the caps-hash advertised on outbound presence
// (XEP-0115, spec §4.2 "capability tag").
type Disco struct {
	rt         *runtime.Runtime
	identities []stanza.DiscoIdentity
	features   []string
}

func NewDisco(rt *runtime.Runtime, identities []stanza.DiscoIdentity, features []string) *Disco {
	sorted := append([]string(nil), features...)
	sort.Strings(sorted)
	return &Disco{rt: rt, identities: identities, features: sorted}
}

func (m *Disco) Module() *runtime.Module {
	return &runtime.Module{Name: "disco", OnIQ: m.onIQ}
}

func (m *Disco) onIQ(iq *stanza.IQ) {
	if iq.DiscoInfo == nil || iq.Type != stanza.IQGet {
		return
	}
	reply := &stanza.IQ{To: iq.From, Id: iq.Id, Type: stanza.IQResult, DiscoInfo: m.info()}
	_ = m.rt.Send(context.Background(), reply)
}

func (m *Disco) info() *stanza.DiscoInfoQuery {
	q := &stanza.DiscoInfoQuery{Identities: m.identities}
	for _, f := range m.features {
		q.Features = append(q.Features, stanza.DiscoFeature{Var: f})
	}
	return q
}

// CapsHash computes the XEP-0115 ver string: base64(sha1(identities, each
// "category/type//name<", in the order given, then features, each "<"-
// terminated, in sorted order)).
func (m *Disco) CapsHash() string {
	var b strings.Builder
	for _, id := range m.identities {
		b.WriteString(id.Category + "/" + id.Type + "//" + id.Name + "<")
	}
	for _, f := range m.features {
		b.WriteString(f + "<")
	}
	sum := sha1.Sum([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Query requests disco#info from jidStr.
func (m *Disco) Query(ctx context.Context, jidStr, node string) (*stanza.DiscoInfoQuery, error) {
	iq := &stanza.IQ{To: jidStr, Id: xid.New().String(), Type: stanza.IQGet, DiscoInfo: &stanza.DiscoInfoQuery{Node: node}}
	res, err := m.rt.SendIQ(ctx, iq)
	if err != nil {
		return nil, err
	}
	return res.DiscoInfo, nil
}

// QueryItems requests disco#items from jidStr (used to enumerate a MUC
// service's public rooms, among other things).
func (m *Disco) QueryItems(ctx context.Context, jidStr, node string) (*stanza.DiscoItemsQuery, error) {
	iq := &stanza.IQ{To: jidStr, Id: xid.New().String(), Type: stanza.IQGet, DiscoItems: &stanza.DiscoItemsQuery{Node: node}}
	res, err := m.rt.SendIQ(ctx, iq)
	if err != nil {
		return nil, err
	}
	return res.DiscoItems, nil
}
