package gateway

import (
	"context"
	"sync"
	"time"

	libsem "github.com/nabbar/golib/semaphore"

	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/session"
	"github.com/un9021/uniset2/sm"
	"github.com/un9021/uniset2/wire"
)

// WSGate is the S-stream realization: a process-wide table of peer
// sessions guarded by a reader/writer lock (spec.md §5's `wsocks`),
// accepting upgrades off-loop and reconciling R/egress on-loop.
type WSGate struct {
	*Core

	mu       sync.RWMutex
	sessions map[registry.SubscriberID]*session.Stream
	nextID   registry.SubscriberID

	// sem is the admission gate SPEC_FULL.md §2.1 names: one worker slot
	// per live session, claimed with NewWorkerTry at Accept time and
	// released by Remove. The session table itself still tracks identity
	// and state; sem exists only to make "are we full" an atomic
	// claim/release instead of a check-then-act on len(sessions).
	sem libsem.Semaphore

	maxSessions int
	maxSend     int
	queueK      int
	sendTime    time.Duration
	pingTime    time.Duration
}

// NewWSGate builds an empty session table over core and binds the
// ingress dispatcher's subscriber lookup to it (see Core.SetSubscribers).
func NewWSGate(core *Core, maxSessions, maxSend, queueK int, sendTime, pingTime time.Duration) *WSGate {
	g := &WSGate{
		Core:        core,
		sessions:    make(map[registry.SubscriberID]*session.Stream),
		sem:         libsem.New(context.Background(), int64(maxSessions), false),
		maxSessions: maxSessions,
		maxSend:     maxSend,
		queueK:      queueK,
		sendTime:    sendTime,
		pingTime:    pingTime,
	}
	core.SetSubscribers(g.Subscribers)
	return g
}

// Run starts the SM dispatch loop and the send-tick/ping-tick timers
// (spec.md §4.6, §4.9), each a github.com/nabbar/golib/runner/ticker
// instance so start/stop/uptime bookkeeping follows the teacher's own
// ticker idiom rather than a hand-rolled time.Ticker select loop.
func (g *WSGate) Run(ctx context.Context) error {
	defer g.sem.DeferMain()

	sendTicker := NewTicker(g.sendTime, func(ctx context.Context, _ *time.Ticker) error {
		g.ReconcileAll(ctx)
		g.DrainTick()
		return nil
	})
	pingTicker := NewTicker(g.pingTime, func(ctx context.Context, _ *time.Ticker) error {
		g.PingTick()
		return nil
	})

	if err := sendTicker.Start(ctx); err != nil {
		return err
	}
	if err := pingTicker.Start(ctx); err != nil {
		_ = sendTicker.Stop(ctx)
		return err
	}
	defer sendTicker.Stop(ctx)
	defer pingTicker.Stop(ctx)

	beatTicker, err := g.Core.StartHeartbeat(ctx)
	if err != nil {
		return err
	}
	defer beatTicker.Stop(ctx)

	return g.Core.Run(ctx, Hooks{
		OnSensorUpdate: func(id sm.SensorId) {
			snap, ok := g.Core.cache.Get(id)
			if !ok {
				return
			}
			g.Broadcast(wire.Event{Snapshot: snap})
		},
		OnDrain: func() {
			for _, s := range g.snapshot() {
				s.SetState(session.StateDraining)
			}
		},
	})
}

// Count reports the number of currently tracked sessions (new, open or
// draining), used to enforce maxSessions at handshake time.
func (g *WSGate) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// AtCapacity reports whether the session table is already full, letting
// the HTTP layer return a proper 503 before performing the protocol
// upgrade (spec.md §6), rather than having to close a freshly upgraded
// connection. This is a best-effort peek for that early-out: the
// authoritative, race-free admission check is the sem.NewWorkerTry claim
// inside Accept.
func (g *WSGate) AtCapacity() bool {
	return g.Count() >= g.maxSessions
}

// Accept registers a freshly-upgraded connection as a new stream
// session. A session occupies one worker slot of g.sem for as long as
// it is tracked, claimed here with NewWorkerTry and released by Remove,
// so maxSessions is enforced as an atomic claim rather than a
// check-then-act on the table length (SPEC_FULL.md §2.1). It is the
// HTTP accept thread pool's only mutation of the session table, always
// followed by Wakeup so the loop picks the change up on its next
// iteration (spec.md §4.9, §5). Returns false when no slot is free; the
// connection is already upgraded by then, so the caller closes it.
func (g *WSGate) Accept(conn session.Conn, format wire.Format, subscribe []sm.SensorId) (*session.Stream, bool) {
	if !g.sem.NewWorkerTry() {
		return nil, false
	}

	g.mu.Lock()
	g.nextID++
	id := g.nextID
	s := session.NewStream(id, conn, format, g.maxSend, g.queueK)
	g.sessions[id] = s
	g.mu.Unlock()

	for _, sid := range subscribe {
		g.Core.reg.Add(id, sid)
	}

	if g.Core.metrics != nil {
		g.Core.metrics.SessionsActive.WithLabelValues("ws").Set(float64(g.Count()))
	}

	g.Core.log.Info("session accepted", "subscriber", id, "trace", s.TraceID(), "format", format)
	g.Wakeup()
	return s, true
}

// Remove tears the session down, drops it (and its registry entries)
// from the table, and releases the g.sem slot it claimed in Accept.
// Safe to call multiple times.
func (g *WSGate) Remove(id registry.SubscriberID) {
	g.mu.Lock()
	s, ok := g.sessions[id]
	if ok {
		delete(g.sessions, id)
	}
	g.mu.Unlock()

	if !ok {
		return
	}

	g.sem.DeferWorker()
	s.Cancel()
	g.Core.reg.RemoveSubscriber(id)
	g.Core.log.Info("session removed", "subscriber", id, "trace", s.TraceID())

	if g.Core.metrics != nil {
		g.Core.metrics.SessionsActive.WithLabelValues("ws").Set(float64(g.Count()))
	}
}

func (g *WSGate) snapshot() []*session.Stream {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*session.Stream, 0, len(g.sessions))
	for _, s := range g.sessions {
		out = append(out, s)
	}
	return out
}

// Subscribers returns every session id currently holding an entry for
// sensor id, used as the ingress.Dispatcher fan-out predicate.
func (g *WSGate) Subscribers(id sm.SensorId) []registry.SubscriberID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []registry.SubscriberID
	for sid := range g.sessions {
		for _, e := range g.Core.reg.Entries(sid) {
			if e.ID == id {
				out = append(out, sid)
				break
			}
		}
	}
	return out
}

// Broadcast fans ev out to every session currently subscribed to its
// sensor id, enqueuing the serialized event in each session's own
// format (spec.md §4.4: "for each attached session, enqueue").
func (g *WSGate) Broadcast(ev wire.Event) {
	targets := g.Subscribers(ev.Snapshot.ID)
	if len(targets) == 0 {
		return
	}

	byID := make(map[registry.SubscriberID]*session.Stream, len(targets))
	for _, s := range g.snapshot() {
		byID[s.ID()] = s
	}

	for _, id := range targets {
		s, ok := byID[id]
		if !ok {
			continue
		}
		accepted, shouldWarn, err := s.EnqueueEvent(ev)
		if err != nil {
			continue
		}
		if g.Core.metrics != nil {
			if accepted {
				g.Core.metrics.Notifications.WithLabelValues("ws").Inc()
			} else {
				g.Core.metrics.EgressDropped.WithLabelValues("ws").Inc()
			}
		}
		if shouldWarn {
			g.Core.log.Warn("egress queue overflow", "session", s.ID())
		}
	}
}

// DrainTick walks every session and writes up to maxSend buffers each,
// per spec.md §4.6's send-tick row.
func (g *WSGate) DrainTick() {
	for _, s := range g.snapshot() {
		if err := s.DrainTick(g.maxSend); err != nil {
			g.Remove(s.ID())
		}
	}
}

// PingTick arms the keepalive on every idle session, per spec.md §4.6.
func (g *WSGate) PingTick() {
	for _, s := range g.snapshot() {
		if err := s.PingTick(); err != nil {
			g.Remove(s.ID())
		}
	}
}

// ReconcileAll runs R.reconcile for every tracked session, matching
// spec.md §4.2's "on next loop tick" contract, and returns the synthetic
// error notifications produced so the caller can broadcast them.
func (g *WSGate) ReconcileAll(ctx context.Context) []registry.Notification {
	var all []registry.Notification
	for _, s := range g.snapshot() {
		notes := g.Core.reg.Reconcile(s.ID(), g.Core.smi)
		all = append(all, notes...)
		if g.Core.metrics != nil {
			for _, n := range notes {
				if n.Err != "" {
					g.Core.metrics.SMCallErrors.WithLabelValues("reconcile").Inc()
				}
			}
		}
	}
	return all
}
