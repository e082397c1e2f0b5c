package modules

import (
	"context"

	"github.com/rs/xid"

	"github.com/prose-im/prose-core-go/internal/xmpp/runtime"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// Upload requests HTTP upload slots (XEP-0363, spec §6 "request upload
// slot(file name, file size, mime type?)").
type Upload struct {
	rt      *runtime.Runtime
	service string
}

func NewUpload(rt *runtime.Runtime, service string) *Upload {
	return &Upload{rt: rt, service: service}
}

func (m *Upload) RequestSlot(ctx context.Context, filename string, size int64, contentType string) (*stanza.UploadSlot, error) {
	iq := &stanza.IQ{
		To: m.service, Id: xid.New().String(), Type: stanza.IQGet,
		Upload: &stanza.UploadRequest{Filename: filename, Size: size, ContentType: contentType},
	}
	res, err := m.rt.SendIQ(ctx, iq)
	if err != nil {
		return nil, err
	}
	return res.UploadSlot, nil
}
