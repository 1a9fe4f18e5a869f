// Package participant wires the Algorithm Set, routing information, FSM
// and timeout manager into one cooperative event-loop actor per overlay
// member (§2, §4.2, §5). Every mutation of a participant's state happens
// inside Run's single goroutine: inbound envelopes (over
// internal/transport/tcp), bootstrap discovery replies (over
// internal/transport/bootstrap) and fired timeouts are all funneled
// through one channel rather than touching the Algorithm Context from
// whichever goroutine first observed them, the same "single-threaded with
// respect to its own state" discipline the teacher's node/worker.go
// applies to its own request queue.
package participant

import (
	"context"
	"fmt"
	"net"
	"time"

	"minhton/internal/algorithm"
	"minhton/internal/domain"
	"minhton/internal/fsm"
	"minhton/internal/logger"
	"minhton/internal/message"
	"minhton/internal/routinginfo"
	"minhton/internal/storage"
	"minhton/internal/timeout"
	"minhton/internal/transport/bootstrap"
	"minhton/internal/transport/tcp"
)

// Config configures a Participant at construction.
type Config struct {
	// Self carries the participant's UUID and network address; Position is
	// left at the zero value until bootstrap assigns one (join) or this
	// node promotes itself to root.
	Self domain.NodeInfo
	// Fanout is the tree's branching factor, fixed for the overlay's
	// lifetime and only meaningful once this node has a position (§3).
	Fanout uint16
	// Listener is the already-bound TCP listener §6.1 traffic arrives on.
	Listener net.Listener
	// BootstrapGroup is the multicast group/port used for entry-point
	// discovery (bootstrap.DefaultGroup if empty).
	BootstrapGroup string
	// DSNLevel is the configured Distributed Service Node hierarchy depth
	// (§4.7); 0 disables entity search aggregation.
	DSNLevel uint32
	// Generator produces this node's identity-bearing UUIDs (§6.4).
	Generator domain.Generator
	// Logger receives structured diagnostics; defaults to a no-op logger.
	Logger logger.Logger
	// DialTimeout bounds outbound TCP connection attempts.
	DialTimeout time.Duration
	// IdleConnTTL evicts pooled outbound connections idle this long.
	IdleConnTTL time.Duration
}

// Participant is the actor described above. Construct with New, then call
// Run in its own goroutine.
type Participant struct {
	ctx *algorithm.Context
	set algorithm.Set
	lgr logger.Logger

	fanout         uint16
	bootstrapGroup string

	server    *tcp.Server
	pool      *tcp.Pool
	announcer *bootstrap.Announcer
	prober    *bootstrap.Prober

	events chan any

	retries map[timeout.Key]int
}

type inboundEnvelope struct {
	env message.Envelope
}

type timeoutFired struct {
	key   timeout.Key
	retry fsm.EventKind
	exhausted fsm.EventKind
}

type discoverRequest struct {
	env   message.Envelope
	reply chan discoverOutcome
}

type discoverOutcome struct {
	env message.Envelope
	ok  bool
}

// New assembles a participant's Context and transports but does not start
// serving; call Run to enter the event loop.
func New(cfg Config, set algorithm.Set) (*Participant, error) {
	if cfg.Logger == nil {
		cfg.Logger = &logger.NopLogger{}
	}
	if cfg.Generator == nil {
		cfg.Generator = domain.NewRandomGenerator()
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.IdleConnTTL == 0 {
		cfg.IdleConnTTL = 15 * time.Second
	}

	routing := routinginfo.New(cfg.Self)
	algoCtx := &algorithm.Context{
		Self:     cfg.Self,
		Routing:  routing,
		Data:     storage.New(cfg.Logger.Named("storage")),
		Machine:  fsm.New(),
		Timeouts: timeout.New(),
		UUIDs:    cfg.Generator,
		EventIDs: message.NewEventIDGenerator(),
		Logger:   cfg.Logger,
		DSNLevel: cfg.DSNLevel,
	}

	p := &Participant{
		ctx:            algoCtx,
		set:            set,
		lgr:            cfg.Logger,
		fanout:         cfg.Fanout,
		bootstrapGroup: cfg.BootstrapGroup,
		events:         make(chan any, 256),
		retries:        make(map[timeout.Key]int),
	}

	p.pool = tcp.NewPool(p.handleTCP, cfg.DialTimeout, cfg.IdleConnTTL, tcp.WithPoolLogger(cfg.Logger.Named("tcp-pool")))
	if cfg.Listener != nil {
		p.server = tcp.New(cfg.Listener, p.handleTCP, tcp.WithServerLogger(cfg.Logger.Named("tcp-server")))
	}

	announcer, err := bootstrap.NewAnnouncer(cfg.BootstrapGroup, p.handleDiscover, cfg.Logger.Named("bootstrap-announcer"))
	if err != nil {
		return nil, fmt.Errorf("participant: join multicast group: %w", err)
	}
	p.announcer = announcer

	prober, err := bootstrap.NewProber(cfg.BootstrapGroup)
	if err != nil {
		announcer.Close()
		return nil, fmt.Errorf("participant: open discovery socket: %w", err)
	}
	p.prober = prober

	return p, nil
}

// Context exposes the participant's algorithm Context, read-only use
// intended (status reporting, cmd/minhtonctl introspection).
func (p *Participant) Context() *algorithm.Context { return p.ctx }

func (p *Participant) handleTCP(_ context.Context, env message.Envelope) {
	select {
	case p.events <- inboundEnvelope{env: env}:
	default:
		p.lgr.Warn("event queue full, dropping inbound envelope", logger.F("type", env.Body.Type()))
	}
}

func (p *Participant) handleDiscover(ctx context.Context, env message.Envelope) (message.Envelope, bool) {
	reply := make(chan discoverOutcome, 1)
	select {
	case p.events <- discoverRequest{env: env, reply: reply}:
	case <-ctx.Done():
		return message.Envelope{}, false
	}
	select {
	case out := <-reply:
		return out.env, out.ok
	case <-ctx.Done():
		return message.Envelope{}, false
	}
}

// Run serves TCP connections and the event loop until ctx is cancelled.
// It first attempts to discover an existing entry point; failing that, it
// promotes itself to the tree root (§4.3).
func (p *Participant) Run(ctx context.Context) error {
	if p.server != nil {
		go func() {
			if err := p.server.Serve(ctx); err != nil && ctx.Err() == nil {
				p.lgr.Error("tcp server stopped", logger.F("err", err))
			}
		}()
	}
	go func() {
		if err := p.announcer.Serve(ctx); err != nil && ctx.Err() == nil {
			p.lgr.Error("bootstrap announcer stopped", logger.F("err", err))
		}
	}()

	p.ctx.Machine.ForceState(fsm.WaitForBootstrapResponse)
	go p.bootstrapOnce(ctx)

	return p.loop(ctx)
}

// bootstrapOnce runs the startup discovery handshake once and feeds its
// outcome back into the event loop as an ordinary inbound envelope (a
// discovered BootstrapResponse) or a synthetic exhaustion timeout (no
// entry point found, self-promote to root).
func (p *Participant) bootstrapOnce(ctx context.Context) {
	eventID := p.ctx.NextEventID()

	reply, err := p.prober.Discover(ctx, p.ctx.Self, eventID)
	if err != nil {
		select {
		case p.events <- timeoutFired{
			key:       timeout.Key{EventID: eventID, Kind: timeout.BootstrapResponse},
			exhausted: fsm.EventTimeoutBootstrapResponseExhausted,
		}:
		case <-ctx.Done():
		}
		return
	}
	select {
	case p.events <- inboundEnvelope{env: reply}:
	case <-ctx.Done():
	}
}

// armOnSend maps an outbound message type that expects a response to the
// timeout it should be tracked under, plus the Retry/Exhausted events to
// raise on the FSM when it fires (§4.3, §4.4, §7.5). Handlers never arm
// timers themselves; arming happens once here, after the message has
// actually been transmitted, keyed by the RefEventID the handler chose
// when building the Outbound so the eventual reply's own RefEventID (which
// echoes that same id) can cancel the right timer.
var armOnSend = map[message.Type]struct {
	kind      timeout.Type
	retry     fsm.EventKind
	exhausted fsm.EventKind
}{
	message.TypeJoin: {
		kind: timeout.JoinAcceptResponse,
		retry: fsm.EventTimeoutJoinAcceptResponseRetry, exhausted: fsm.EventTimeoutJoinAcceptResponseExhausted,
	},
	message.TypeJoinAccept: {
		kind: timeout.JoinAcceptAckResponse,
		retry: fsm.EventTimeoutJoinAcceptAckResponseRetry, exhausted: fsm.EventTimeoutJoinAcceptAckResponseExhausted,
	},
	// The leave-with-replacement chain (FindReplacement/ReplacementOffer/
	// ReplacementAck, §4.4) does not yet echo a stable correlation id
	// through forwarding hops the way Join/JoinAccept now do, and
	// internal/algorithm/leave.go never cancels a timeout.Key itself;
	// arming a timer here for those types with no matching cancel would
	// just fire spurious retries against a protocol that already
	// completed. Left out pending that wiring (see DESIGN.md).
}

const maxProtocolRetries = 1
const defaultProtocolTimeout = 3 * time.Second

func (p *Participant) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.ctx.Timeouts.CancelAll()
			p.pool.Close()
			p.announcer.Close()
			p.prober.Close()
			if p.server != nil {
				p.server.Close()
			}
			return ctx.Err()

		case evt := <-p.events:
			p.dispatch(ctx, evt)
		}
	}
}

func (p *Participant) dispatch(ctx context.Context, evt any) {
	switch e := evt.(type) {
	case inboundEnvelope:
		p.handleEnvelope(ctx, e.env)

	case discoverRequest:
		reply, ok := algorithmBootstrapDiscoverReply(p.ctx, e.env)
		e.reply <- discoverOutcome{env: reply, ok: ok}

	case timeoutFired:
		p.handleTimeoutFired(ctx, e)

	case leaveRequest:
		out, err := algorithm.Leave{}.InitiateLeave(p.ctx)
		if err != nil {
			p.lgr.Warn("InitiateLeave failed", logger.F("err", err))
			return
		}
		out = append(out, p.ctx.DrainPending()...)
		p.sendAll(ctx, out)
	}
}

// algorithmBootstrapDiscoverReply runs exactly the logic
// algorithm.Bootstrap.handleBootstrapDiscover would, inline, since the
// UDP announcer needs a synchronous reply rather than an Outbound routed
// back out over the event loop's normal fan-out.
func algorithmBootstrapDiscoverReply(c *algorithm.Context, env message.Envelope) (message.Envelope, bool) {
	if !c.Self.Initialised() {
		return message.Envelope{}, false
	}
	resp := &message.BootstrapResponse{NodeToJoin: c.Self}
	return message.Envelope{
		Sender:     c.Self,
		Target:     env.Sender,
		EventID:    c.NextEventID(),
		RefEventID: env.EventID,
		Body:       resp,
	}, true
}

func (p *Participant) handleEnvelope(ctx context.Context, env message.Envelope) {
	if env.Body == nil {
		return
	}
	kind, ok := algorithm.DispatchKind(env.Body.Type())
	if !ok {
		p.lgr.Warn("no algorithm bound to message type", logger.F("type", env.Body.Type()))
		return
	}
	algo := p.set.For(kind)
	if algo == nil {
		p.lgr.Warn("no handler registered for algorithm", logger.F("kind", kind.String()))
		return
	}

	out, err := algo.Handle(p.ctx, env)
	if err != nil {
		p.lgr.Warn("handler returned error", logger.F("type", env.Body.Type()), logger.F("err", err))
	}
	out = append(out, p.ctx.DrainPending()...)
	p.sendAll(ctx, out)
}

func (p *Participant) handleTimeoutFired(ctx context.Context, t timeoutFired) {
	if t.key.Kind == timeout.BootstrapResponse {
		p.becomeRoot()
		return
	}

	n := p.retries[t.key]
	if n < maxProtocolRetries {
		p.retries[t.key] = n + 1
		if _, err := p.ctx.Machine.Apply(t.retry, 0); err != nil {
			p.lgr.Warn("retry transition rejected", logger.F("err", err))
		}
		return
	}
	delete(p.retries, t.key)
	if _, err := p.ctx.Machine.Apply(t.exhausted, 0); err != nil {
		p.lgr.Warn("exhausted transition rejected", logger.F("err", err))
	}
}

// becomeRoot promotes a lone participant when discovery finds no existing
// entry point (§4.3): it assigns itself position (0,0) at the configured
// fanout and moves straight to Connected.
func (p *Participant) becomeRoot() {
	root := domain.Root(p.fanout)
	p.ctx.Self.Position = root
	p.ctx.Routing.SetSelfPosition(root)
	if _, err := p.ctx.Machine.Apply(fsm.EventTimeoutBootstrapResponseExhausted, 0); err != nil {
		p.lgr.Error("failed to promote to root", logger.F("err", err))
		return
	}
	p.lgr.Info("no entry point discovered, promoted to root", logger.FNode("self", p.ctx.Self))
}

func (p *Participant) sendAll(ctx context.Context, out []algorithm.Outbound) {
	for _, o := range out {
		p.send(ctx, o)
	}
}

func (p *Participant) send(ctx context.Context, o algorithm.Outbound) {
	if !o.To.Network.IsValid() {
		p.lgr.Warn("dropping outbound with no network address", logger.F("type", o.Body.Type()))
		return
	}

	env := message.Envelope{
		Sender:     p.ctx.Self,
		Target:     o.To,
		EventID:    p.ctx.NextEventID(),
		RefEventID: o.RefEventID,
		Body:       o.Body,
	}
	if err := env.Validate(); err != nil {
		p.lgr.Warn("refusing to send invalid envelope", logger.F("err", err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, defaultProtocolTimeout)
	err := p.pool.Send(sendCtx, o.To.Network, env)
	cancel()
	if err != nil {
		p.lgr.Warn("send failed", logger.F("to", o.To.Network.String()), logger.F("err", err))
		return
	}

	if spec, ok := armOnSend[o.Body.Type()]; ok {
		key := timeout.Key{EventID: o.RefEventID, Kind: spec.kind}
		p.ctx.Timeouts.Arm(key, defaultProtocolTimeout, func() {
			select {
			case p.events <- timeoutFired{key: key, retry: spec.retry, exhausted: spec.exhausted}:
			default:
			}
		})
	}
}

// InitiateLeave asks this participant to begin leaving the overlay
// gracefully (§4.4), posting the resulting outbound messages the same way
// an inbound envelope's handling would.
func (p *Participant) InitiateLeave(ctx context.Context) {
	select {
	case p.events <- leaveRequest{}:
	case <-ctx.Done():
	}
}

type leaveRequest struct{}
