package transport

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
)

// TCP is a Transport over a direct TLS-wrapped TCP socket, the native
// client shape (spec §4.1 "browser-side or native TCP/TLS"). Stdlib
// net/crypto/tls is the only correct choice here: no pack example brings a
// third-party TLS-socket library, and the spec explicitly scopes the exact
// transport realization out.
type TCP struct {
	addr string
	log  zerolog.Logger

	mu      sync.Mutex
	conn    net.Conn
	decoder *xml.Decoder
}

func NewTCP(addr string, log zerolog.Logger) *TCP {
	return &TCP{addr: addr, log: log.With().Str("transport", "tcp").Logger()}
}

func (t *TCP) Connect(ctx context.Context, identifier jid.JID, credential Credential, sink Sink) error {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: identifier.Domain}}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.decoder = xml.NewDecoder(conn)
	t.mu.Unlock()

	if _, err := fmt.Fprintf(conn, `<stream:stream to="%s" version="1.0" xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams">`, identifier.Domain); err != nil {
		conn.Close()
		return err
	}

	go t.readLoop(sink)
	return nil
}

func (t *TCP) readLoop(sink Sink) {
	for {
		t.mu.Lock()
		dec := t.decoder
		t.mu.Unlock()
		if dec == nil {
			return
		}

		tok, err := dec.Token()
		if err != nil {
			sink(DisconnectedEvent(err))
			return
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local == "stream" {
			continue
		}

		s, err := decodeElement(dec, start)
		if err != nil {
			t.log.Warn().Err(err).Msg("dropping malformed stanza")
			continue
		}
		if s == nil {
			continue
		}
		sink(StanzaEvent(s))
	}
}

func (t *TCP) Send(ctx context.Context, s any) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: tcp not connected")
	}
	raw, err := xml.Marshal(s)
	if err != nil {
		return err
	}
	_, err = conn.Write(raw)
	return err
}

func (t *TCP) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.decoder = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	fmt.Fprint(conn, "</stream:stream>")
	return conn.Close()
}
