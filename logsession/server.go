package logsession

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/un9021/uniset2/gateway"
	"github.com/un9021/uniset2/logger"
	"github.com/un9021/uniset2/registry"
)

// Server is the standalone S-log realization's accept loop: it has no SM
// dependency at all (original_source's LogSession is plain TCPSession,
// not wired to shared memory), just a listener, an Aggregator and a
// session table drained on its own ticker, matching the send-tick idiom
// the other two realizations use.
type Server struct {
	ln  net.Listener
	agg Aggregator
	log logger.Logger

	maxSend, queueK                        int
	sessTimeout, cmdTimeout, outTimeout, delay time.Duration

	mu       sync.RWMutex
	sessions map[registry.SubscriberID]*LogSession
	nextID   registry.SubscriberID
}

// Config collects the timeouts named in spec.md §5 and reused here per
// SPEC_FULL.md §4.10 rather than inventing new ones.
type Config struct {
	MaxSend, QueueK                            int
	SessTimeout, CmdTimeout, OutTimeout, Delay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSend == 0 {
		c.MaxSend = 64
	}
	if c.QueueK == 0 {
		c.QueueK = 10
	}
	if c.CmdTimeout == 0 {
		c.CmdTimeout = 2 * time.Second
	}
	if c.OutTimeout == 0 {
		c.OutTimeout = 5 * time.Second
	}
	if c.Delay == 0 {
		c.Delay = 200 * time.Millisecond
	}
	return c
}

// NewServer binds ln for accepting log-tail peers. agg resolves the
// named log streams the start command references.
func NewServer(ln net.Listener, agg Aggregator, log logger.Logger, cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		ln:          ln,
		agg:         agg,
		log:         log,
		maxSend:     cfg.MaxSend,
		queueK:      cfg.QueueK,
		sessTimeout: cfg.SessTimeout,
		cmdTimeout:  cfg.CmdTimeout,
		outTimeout:  cfg.OutTimeout,
		delay:       cfg.Delay,
		sessions:    make(map[registry.SubscriberID]*LogSession),
	}
}

// Run accepts peers until ctx is cancelled, draining every attached
// session on its own delay-paced ticker — the same
// github.com/nabbar/golib/runner/ticker idiom gateway.Core uses for its
// send/ping timers, so the accept loop and the drain loop stay on the
// teacher's preferred timer abstraction rather than a bare time.Ticker.
func (s *Server) Run(ctx context.Context) error {
	drain := gateway.NewTicker(s.delay, func(ctx context.Context, _ *time.Ticker) error {
		s.drainAll()
		return nil
	})
	if err := drain.Start(ctx); err != nil {
		return err
	}
	defer drain.Stop(ctx)

	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		s.accept(conn)
	}
}

func (s *Server) accept(conn net.Conn) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	sess := New(id, conn, s.maxSend, s.queueK, s.log, s.sessTimeout, s.cmdTimeout, s.outTimeout, s.delay)
	s.sessions[id] = sess
	s.mu.Unlock()

	if err := sess.Open(s.agg); err != nil {
		s.log.Warn("log session open failed", "err", err)
		s.remove(id)
		return
	}
}

func (s *Server) remove(id registry.SubscriberID) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if ok {
		_ = sess.Close()
	}
}

func (s *Server) drainAll() {
	for _, sess := range s.snapshot() {
		if !sess.CheckAlive() {
			s.remove(sess.ID())
			continue
		}
		if err := sess.DrainTick(s.maxSend); err != nil {
			s.remove(sess.ID())
		}
	}
}

func (s *Server) snapshot() []*LogSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*LogSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Count reports the number of currently attached sessions.
func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
