package transport

import (
	"context"
	"encoding/xml"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
)

// WebSocket is a Transport over RFC 7395 XMPP subprotocol framing, the
// shape a browser or any sandboxed embedding application is stuck with.
// Grounded on the teacher's coder/websocket dependency; the teacher itself
// has no call site (the module is pulled in transitively through its
// Matrix client stack), so the read/write loop below follows the
// library's own public Dial/Read/Write/Close surface.
type WebSocket struct {
	url string
	log zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebSocket(url string, log zerolog.Logger) *WebSocket {
	return &WebSocket{url: url, log: log.With().Str("transport", "websocket").Logger()}
}

func (w *WebSocket) Connect(ctx context.Context, identifier jid.JID, credential Credential, sink Sink) error {
	conn, _, err := websocket.Dial(ctx, w.url, &websocket.DialOptions{
		Subprotocols: []string{"xmpp"},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	}
	conn.SetReadLimit(16 << 20)

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	if err := negotiateStream(ctx, w, identifier, credential); err != nil {
		conn.Close(websocket.StatusProtocolError, "negotiation failed")
		return err
	}

	go w.readLoop(ctx, sink)
	return nil
}

func (w *WebSocket) readLoop(ctx context.Context, sink Sink) {
	for {
		w.mu.Lock()
		conn := w.conn
		w.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			sink(DisconnectedEvent(err))
			return
		}

		s, err := decodeFrame(data)
		if err != nil {
			w.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if s == nil {
			continue
		}
		sink(StanzaEvent(s))
	}
}

func (w *WebSocket) Send(ctx context.Context, s any) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: websocket not connected")
	}
	raw, err := xml.Marshal(s)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, raw)
}

func (w *WebSocket) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "disconnecting")
}

// decodeFrame parses one inbound framed element into its typed stanza, or
// returns (nil, nil) for stream-management noise (whitespace pings,
// <open/>/<close/> framing) the runtime doesn't need to see.
func decodeFrame(data []byte) (any, error) {
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.XMLName.Local {
	case "message":
		var m stanza.Message
		if err := xml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case "presence":
		var p stanza.Presence
		if err := xml.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "iq":
		var iq stanza.IQ
		if err := xml.Unmarshal(data, &iq); err != nil {
			return nil, err
		}
		return &iq, nil
	default:
		return nil, nil
	}
}

// negotiateStream sends the RFC 7395 <open/> frame addressed to
// identifier's domain and returns. It performs no SASL exchange and binds
// no resource; credential is not used.
func negotiateStream(ctx context.Context, w *WebSocket, identifier jid.JID, credential Credential) error {
	open := fmt.Sprintf(`<open xmlns="urn:ietf:params:xml:ns:xmpp-framing" to="%s" version="1.0"/>`, identifier.Domain)
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: websocket not connected")
	}
	return conn.Write(ctx, websocket.MessageText, []byte(open))
}
