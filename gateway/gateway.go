// Package gateway wires SensorDirectory, SubscriptionRegistry,
// ValueCache, IngressDispatcher, EgressQueue, SessionManager and
// HeartbeatEmitter into the event loop (E) common to UDPSender and
// UWebSocketGate (spec.md §2, §4.9).
package gateway

import (
	"context"
	"sync"
	"time"

	runticker "github.com/nabbar/golib/runner/ticker"

	"github.com/un9021/uniset2/directory"
	liberr "github.com/un9021/uniset2/errors"
	"github.com/un9021/uniset2/heartbeat"
	"github.com/un9021/uniset2/ingress"
	"github.com/un9021/uniset2/logger"
	"github.com/un9021/uniset2/metrics"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/sm"
	"github.com/un9021/uniset2/valuecache"
)

// Config collects the timeouts and limits every gateway realization
// shares (spec.md §5, §6). A negative value means "wait indefinitely";
// zero is resolved to the listed default, by appconfig when loading and
// again by New for callers that build a Config directly.
type Config struct {
	NodeID, ProcID int32

	SMReadyTimeout  time.Duration // default 15s
	ActivateTimeout time.Duration // default 20s

	IsLocalWork bool
}

func (c Config) withDefaults() Config {
	if c.SMReadyTimeout == 0 {
		c.SMReadyTimeout = 15 * time.Second
	}
	if c.ActivateTimeout == 0 {
		c.ActivateTimeout = 20 * time.Second
	}
	return c
}

// Core is the shared machinery of E: the SM message loop, R/V/I wiring,
// H, and the requestShutdown sink of spec.md §9 (replacing the source's
// self-raised SIGTERM). Each transport realization (udpsender, wsgate)
// embeds a Core and supplies its own session-table/egress plumbing.
type Core struct {
	cfg Config
	log logger.Logger

	smi        sm.Interface
	dir        *directory.Directory
	reg        *registry.Registry
	cache      *valuecache.Cache
	dispatcher *ingress.Dispatcher
	beat       *heartbeat.Emitter
	metrics    *metrics.Registry

	wakeup   chan struct{}
	shutdown chan error

	mu       sync.Mutex
	started  bool
}

// SetMetrics attaches a metrics.Registry this Core and its realizations
// report into; a nil registry (the default) disables reporting entirely.
func (c *Core) SetMetrics(m *metrics.Registry) { c.metrics = m }

// Hooks lets a realization react to ingress outcomes (session draining
// on FoldUp/Finish, re-subscribing on StartUp/WatchDog) without Core
// knowing about sessions.
type Hooks struct {
	OnStartUp      func(ctx context.Context)
	OnDrain        func()
	OnWatchDog     func()
	OnLogRotate    func()
	OnSensorUpdate func(id sm.SensorId)
}

// New builds a Core. subscribers resolves which registry subscribers
// currently reference a sensor id, feeding ingress's fan-out decision.
func New(cfg Config, log logger.Logger, smi sm.Interface, dir *directory.Directory, reg *registry.Registry, cache *valuecache.Cache, beat *heartbeat.Emitter, subscribers func(id sm.SensorId) []registry.SubscriberID) *Core {
	cfg = cfg.withDefaults()
	return &Core{
		cfg:        cfg,
		log:        log,
		smi:        smi,
		dir:        dir,
		reg:        reg,
		cache:      cache,
		dispatcher: ingress.New(cache, cfg.IsLocalWork, subscribers),
		beat:       beat,
		wakeup:     make(chan struct{}, 1),
		shutdown:   make(chan error, 1),
	}
}

func (c *Core) Registry() *registry.Registry    { return c.reg }
func (c *Core) Cache() *valuecache.Cache        { return c.cache }
func (c *Core) Directory() *directory.Directory { return c.dir }

// SetSubscribers binds the session-table lookup the ingress dispatcher
// uses to decide whether a SensorInfo message has any interested
// session at all, see WSGate.Subscribers.
func (c *Core) SetSubscribers(fn func(id sm.SensorId) []registry.SubscriberID) {
	c.dispatcher.SetSubscribers(fn)
}

// Wakeup posts the inter-thread signal of spec.md §4.9/§5: any mutation
// of R/V/Q from off-loop code (the HTTP accept pool) must call this so
// the loop picks the change up on its next iteration, rather than
// mutating loop-owned state directly.
func (c *Core) Wakeup() {
	select {
	case c.wakeup <- struct{}{}:
	default:
	}
}

// RequestShutdown is the single sink of spec.md §9, replacing the
// source's self-raised SIGTERM: any collaborator that decides the
// process must end posts a reason here instead of touching signals.
func (c *Core) RequestShutdown(reason error) {
	select {
	case c.shutdown <- reason:
	default:
	}
}

// WaitReady blocks (up to SMReadyTimeout, or indefinitely if negative)
// for SM to become reachable; a failure here is a fatal SMUnreadyError
// per spec.md §7.
func (c *Core) WaitReady(ctx context.Context) liberr.Error {
	if !c.smi.WaitSMReady(ctx, c.cfg.SMReadyTimeout) {
		return liberr.ErrSMUnready.Error()
	}
	return nil
}

// Run is the single-threaded cooperative multiplexer of E: it selects
// over SM's message port, the wakeup signal, and ctx.Done(), dispatching
// every SM message through I and invoking the matching Hook. Timers
// (send-tick, ping-tick, heartbeat) are realization-owned
// github.com/nabbar/golib/runner/ticker instances started alongside Run,
// since each already serializes its own callback internally and only
// ever touches mutex-guarded R/V/Q state (see DESIGN.md for why this
// departs from a single OS thread without breaking spec.md §5's
// no-concurrent-mutation rule).
func (c *Core) Run(ctx context.Context, hooks Hooks) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case reason := <-c.shutdown:
			return reason

		case <-c.wakeup:
			continue

		case msg, ok := <-c.smi.Messages():
			if !ok {
				c.RequestShutdown(liberr.ErrSMUnready.Error())
				continue
			}
			c.handle(ctx, msg, hooks)
		}
	}
}

func (c *Core) handle(ctx context.Context, msg sm.Message, hooks Hooks) {
	res := c.dispatcher.Dispatch(ctx, msg)

	switch res.Outcome {
	case ingress.OutcomeStartUp:
		c.reg.AskAll()
		if hooks.OnStartUp != nil {
			hooks.OnStartUp(ctx)
		}

	case ingress.OutcomeFoldUpOrFinish:
		c.reg.UnaskAll()
		if hooks.OnDrain != nil {
			hooks.OnDrain()
		}

	case ingress.OutcomeWatchDogReissued:
		c.reg.AskAll()
		if hooks.OnWatchDog != nil {
			hooks.OnWatchDog()
		}

	case ingress.OutcomeLogRotate:
		if hooks.OnLogRotate != nil {
			hooks.OnLogRotate()
		}

	case ingress.OutcomeSensorUpdated:
		if hooks.OnSensorUpdate != nil {
			hooks.OnSensorUpdate(res.SensorID)
		}
	}
}

// NewTicker is a thin constructor alias kept at package scope so
// realizations never import runner/ticker directly; it exists purely to
// keep the dependency surface of this package visible in one place.
func NewTicker(interval time.Duration, fn func(ctx context.Context, tck *time.Ticker) error) *runticker.Ticker {
	return runticker.New(interval, fn)
}

// StartHeartbeat starts H on its own Period, writing c.beat.Tick against
// this Core's SM interface (spec.md §4.8). It is a no-op ticker when H
// is disabled, kept running anyway so Stop has something to call.
func (c *Core) StartHeartbeat(ctx context.Context) (*runticker.Ticker, error) {
	period := c.beat.Period
	if period <= 0 {
		period = time.Second
	}
	t := NewTicker(period, func(ctx context.Context, _ *time.Ticker) error {
		if err := c.beat.Tick(c.smi); err != nil && c.metrics != nil {
			c.metrics.HeartbeatFailures.Inc()
		}
		return nil
	})
	if err := t.Start(ctx); err != nil {
		return nil, err
	}
	return t, nil
}
