package logsession

import (
	"net"
	"sync"
	"time"

	"github.com/un9021/uniset2/egress"
	"github.com/un9021/uniset2/logger"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/session"
	"github.com/un9021/uniset2/wire"
)

// Aggregator is the log source a LogSession tails, standing in for
// original_source's LogAgregator: a named collection of log streams that
// can be leveled and rotated independently. A gateway process wires its
// own ambient logger.Logger(s) behind this interface.
type Aggregator interface {
	// Subscribe starts tailing logName (or the aggregator's default
	// stream if logName is empty), returning a channel of rendered
	// lines and an unsubscribe func. The channel is closed once cancel
	// is called.
	Subscribe(logName string) (lines <-chan string, cancel func(), err error)
	SetLevel(logName string, level int32) error
	AddLevel(logName string, level int32) error
	DelLevel(logName string, level int32) error
	Rotate(logName string) error
	SetLogFile(logName string, enabled bool) error
}

// LogSession is S's third realization (SPEC_FULL.md §4.10): it starts
// open and goes straight to closed on Cancel/Close, with no `new`
// handshake and no draining state — the one-time command read happens
// inline in Open instead of through an HTTP Upgrade.
type LogSession struct {
	session.Base

	conn net.Conn
	log  logger.Logger

	cmdTimeout  time.Duration
	sessTimeout time.Duration
	outTimeout  time.Duration
	delay       time.Duration

	unsubscribe func()
	closeOnce   sync.Once
	closed      chan struct{}
}

// New wraps an already-accepted TCP connection. maxSend/k size the
// egress queue's soft/hard caps the same way the other two variants do
// (spec.md §4.5).
func New(id registry.SubscriberID, conn net.Conn, maxSend, k int, log logger.Logger, sessTimeout, cmdTimeout, outTimeout, delay time.Duration) *LogSession {
	s := &LogSession{
		Base:        session.NewBase(id, egress.New(maxSend, k), wire.FormatTXT),
		conn:        conn,
		log:         log,
		cmdTimeout:  cmdTimeout,
		sessTimeout: sessTimeout,
		outTimeout:  outTimeout,
		delay:       delay,
		closed:      make(chan struct{}),
	}
	s.SetState(session.StateOpen)
	return s
}

// Open performs the one-time command read and attaches to agg, per
// original_source's run(): "Команды могут посылаться только в начале
// сессии" (commands may only be sent at the start of the session). A
// peer that sends nothing within cmdTimeout, or whose envelope fails to
// parse, simply proceeds straight to tailing — this is not fatal to the
// session (spec.md §7 PeerProtocolError is logged, not escalated).
func (s *LogSession) Open(agg Aggregator) error {
	logName := s.readStartCommand(agg)

	lines, cancel, err := agg.Subscribe(logName)
	if err != nil {
		return err
	}
	s.unsubscribe = cancel

	go s.pump(lines)
	return nil
}

func (s *LogSession) readStartCommand(agg Aggregator) (logName string) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cmdTimeout))
	defer s.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, EnvelopeSize)
	n, err := readFull(s.conn, buf)
	if err != nil || n < EnvelopeSize {
		return ""
	}

	env, perr := DecodeEnvelope(buf)
	if perr != nil {
		s.log.Warn("bad log session envelope", "err", perr)
		return ""
	}

	s.applyCommand(agg, env)
	return env.LogName
}

func (s *LogSession) applyCommand(agg Aggregator, env Envelope) {
	var err error
	switch env.Command {
	case CmdSetLevel:
		err = agg.SetLevel(env.LogName, env.Data)
	case CmdAddLevel:
		err = agg.AddLevel(env.LogName, env.Data)
	case CmdDelLevel:
		err = agg.DelLevel(env.LogName, env.Data)
	case CmdRotate:
		err = agg.Rotate(env.LogName)
	case CmdOffLogFile:
		err = agg.SetLogFile(env.LogName, false)
	case CmdOnLogFile:
		err = agg.SetLogFile(env.LogName, true)
	default:
		s.log.Warn("unknown log session command", "cmd", env.Command)
		return
	}
	if err != nil {
		s.log.Warn("log session command failed", "cmd", env.Command, "err", err)
	}
}

// pump appends every line the aggregator emits to the egress queue as
// its own buffer, matching original_source's logOnEvent appending to
// lbuf under its own lock — here the queue's own mutex plays that role.
func (s *LogSession) pump(lines <-chan string) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				s.Cancel()
				return
			}
			_, shouldWarn := s.Queue.Enqueue([]byte(line))
			if shouldWarn {
				s.log.Warn("log session queue overflow", "session", s.ID())
			}
		case <-s.closed:
			return
		}
	}
}

// DrainTick writes up to maxSend queued lines to the peer, tearing the
// session down on any write error (spec.md §7 TransportError).
func (s *LogSession) DrainTick(maxSend int) error {
	if s.Cancelled() {
		return nil
	}

	buffers := s.Queue.Drain(maxSend)
	for _, b := range buffers {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.outTimeout))
		if _, err := s.conn.Write(b.Remaining()); err != nil {
			s.Cancel()
			return err
		}
		s.Queue.Advance(len(b.Remaining()))
	}
	return nil
}

// Drain writes every queued line in one call, ignoring maxSend.
func (s *LogSession) Drain() error {
	return s.DrainTick(0)
}

// CheckAlive peeks one byte off the connection (non-destructively, via a
// short read deadline) purely to detect peer disconnect, matching
// original_source's isPending(pendingInput, 10)/peek check — the session
// never acts on anything the peer sends past the start command.
func (s *LogSession) CheckAlive() bool {
	_ = s.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	defer s.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 1)
	n, err := s.conn.Read(buf)
	if n > 0 {
		return true
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}

func (s *LogSession) Close() error {
	s.Cancel()
	var err error
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
