// Package runtime drives a single duplex stream of XML stanzas: it exposes
// request/response semantics over an inherently asynchronous protocol,
// dispatches inbound stanzas to module handlers, and maintains liveness
// (spec §4.1).
package runtime

import (
	"context"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/prose-im/prose-core-go/internal/jid"
	"github.com/prose-im/prose-core-go/internal/xmpp/stanza"
	"github.com/prose-im/prose-core-go/internal/xmpp/transport"
)

const (
	defaultSweepInterval = 2 * time.Second
	defaultTimeout       = 15 * time.Second
	defaultPingInterval  = 60 * time.Second
)

// Runtime aggregates the protocol layer's long-lived state: the transport,
// the module registry, the pending-continuation list, and the two
// liveness tickers. Mirrors the "Runtime aggregates long-lived state"
// shape with explicit accessor methods rather than exported fields.
type Runtime struct {
	transport transport.Transport
	log       zerolog.Logger

	sweepInterval time.Duration
	timeout       time.Duration
	pingInterval  time.Duration

	mu    sync.Mutex
	state State
	self  jid.JID

	modules []*Module
	pending *pendingList
	cron    *cronlib.Cron
	cancel  context.CancelFunc

	// OnDisconnect, if set, fires once per transition into Disconnected
	// triggered by a transport-side event (not by a caller's own
	// Disconnect call) so a facade layer can surface the typed
	// `disconnected(cause?)` event without polling State().
	OnDisconnect func(cause error)
}

// Options tunes the runtime's liveness tickers; a zero Options (or
// passing nil to New) keeps the defaults. Exposed so internal/config's
// T_timeout/T_ping overrides can reach the runtime.
type Options struct {
	SweepInterval time.Duration
	Timeout       time.Duration
	PingInterval  time.Duration
}

// New constructs a Runtime over t. Modules must be registered before
// Connect is called.
func New(t transport.Transport, log zerolog.Logger, opts *Options) *Runtime {
	r := &Runtime{
		transport:     t,
		log:           log.With().Str("component", "xmpp-runtime").Logger(),
		pending:       newPendingList(),
		cron:          cronlib.New(),
		sweepInterval: defaultSweepInterval,
		timeout:       defaultTimeout,
		pingInterval:  defaultPingInterval,
	}
	if opts != nil {
		if opts.SweepInterval > 0 {
			r.sweepInterval = opts.SweepInterval
		}
		if opts.Timeout > 0 {
			r.timeout = opts.Timeout
		}
		if opts.PingInterval > 0 {
			r.pingInterval = opts.PingInterval
		}
	}
	return r
}

func (r *Runtime) Register(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = append(r.modules, m)
}

func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Connect opens the transport and starts the dispatch, sweep, and
// keep-alive loops.
func (r *Runtime) Connect(ctx context.Context, self jid.JID, credential transport.Credential) error {
	if r.State() != Disconnected {
		return &ConnectError{Kind: ConnectErrorGeneric, Message: "runtime: already connected or connecting"}
	}
	r.setState(Connecting)
	r.mu.Lock()
	r.self = self
	r.mu.Unlock()

	if err := r.transport.Connect(ctx, self, credential, r.onEvent); err != nil {
		r.setState(Disconnected)
		return &ConnectError{Kind: ConnectErrorGeneric, Message: err.Error()}
	}
	r.setState(Connected)

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	if _, err := r.cron.AddFunc("@every "+r.sweepInterval.String(), func() { r.pending.sweep(time.Now(), r.timeout) }); err != nil {
		r.log.Warn().Err(err).Msg("failed to schedule continuation sweep")
	}
	if _, err := r.cron.AddFunc("@every "+r.pingInterval.String(), func() { r.sendPing(runCtx) }); err != nil {
		r.log.Warn().Err(err).Msg("failed to schedule keep-alive ping")
	}
	r.cron.Start()

	return nil
}

// Disconnect closes the transport, stops the tickers, and fails every
// pending continuation.
func (r *Runtime) Disconnect(ctx context.Context) error {
	r.setState(Disconnecting)
	r.cron.Stop()
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	err := r.transport.Disconnect(ctx)
	r.pending.failAll(ErrDisconnected)
	r.setState(Disconnected)
	return err
}

func (r *Runtime) sendPing(ctx context.Context) {
	id := xid.New().String()
	iq := &stanza.IQ{Id: id, Type: stanza.IQGet, Ping: &stanza.Ping{}}
	_, err := r.sendAndAwait(ctx, id, iq, SingleIQReducer(id))
	if err != nil {
		r.log.Warn().Err(err).Msg("keep-alive ping failed, disconnecting")
		_ = r.Disconnect(context.Background())
	}
}

// onEvent is the transport.Sink the runtime hands to Connect; it is the
// single logical dispatch point for everything arriving off the wire.
func (r *Runtime) onEvent(e transport.Event) {
	switch {
	case e.Disconnected:
		r.pending.failAll(ErrDisconnected)
		r.setState(Disconnected)
		if r.OnDisconnect != nil {
			r.OnDisconnect(e.Cause)
		}
	case e.Stanza != nil:
		r.dispatch(e.Stanza)
	}
}

func (r *Runtime) dispatch(element any) {
	r.pending.offer(element)

	r.mu.Lock()
	mods := append([]*Module(nil), r.modules...)
	r.mu.Unlock()

	switch v := element.(type) {
	case *stanza.Presence:
		for _, m := range mods {
			if m.OnPresence != nil {
				m.OnPresence(v)
			}
		}
	case *stanza.Message:
		if v.PubSubEvent != nil {
			for _, m := range mods {
				if m.OnPubSubEvent != nil {
					m.OnPubSubEvent(v.From, v.PubSubEvent)
				}
			}
			return
		}
		for _, m := range mods {
			if m.OnMessage != nil {
				m.OnMessage(v)
			}
		}
	case *stanza.IQ:
		for _, m := range mods {
			if m.OnIQ != nil {
				m.OnIQ(v)
			}
		}
	default:
		r.log.Warn().Msg("dropping stanza of unrecognized type")
	}
}

// Send writes a stanza without awaiting a response.
func (r *Runtime) Send(ctx context.Context, s any) error {
	return r.transport.Send(ctx, s)
}

// SendIQ sends iq, first giving it a fresh Id if it has none, and awaits
// its correlated response or error.
func (r *Runtime) SendIQ(ctx context.Context, iq *stanza.IQ) (*stanza.IQ, error) {
	if iq.Id == "" {
		iq.Id = xid.New().String()
	}
	result, err := r.sendAndAwait(ctx, iq.Id, iq, SingleIQReducer(iq.Id))
	if err != nil {
		return nil, err
	}
	return result.(*stanza.IQ), nil
}

// SendComposite registers reducer as a multi-step pending continuation
// before sending s, for requests (MUC join, MAM paging) that accumulate
// several stanzas before completing (spec §4.1 "Composite requests").
func (r *Runtime) SendComposite(ctx context.Context, id string, s any, reducer Reducer) (any, error) {
	return r.sendAndAwait(ctx, id, s, reducer)
}

func (r *Runtime) sendAndAwait(ctx context.Context, id string, s any, reducer Reducer) (any, error) {
	pc := r.pending.add(id, reducer, time.Now())

	if err := r.transport.Send(ctx, s); err != nil {
		r.pending.remove(pc)
		return nil, err
	}

	select {
	case res := <-pc.done:
		return res.value, res.err
	case <-ctx.Done():
		r.pending.remove(pc)
		return nil, ctx.Err()
	}
}
