package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/un9021/uniset2/egress"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/wire"
)

// Conn is the subset of *websocket.Conn a Stream needs, narrowed so
// tests can drive Stream/WSGate against a fake peer instead of a real
// upgraded socket.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Stream is the WebSocket realization of S (spec.md §4.6). Reading runs
// on its own goroutine (the HTTP accept pool's lone blocking exception
// per spec.md §5) and hands parsed commands to the event loop over a
// channel; writing happens only from DrainTick/PingTick, both called by
// the loop on its own timers so no two goroutines ever touch the
// connection for writes at once.
type Stream struct {
	Base

	conn      Conn
	commands  chan Command
	closed    chan struct{}
	closeOnce sync.Once
}

// NewStream wraps an already-upgraded connection. maxSend/k size the
// egress queue's soft/hard caps per spec.md §4.5.
func NewStream(id registry.SubscriberID, conn Conn, format wire.Format, maxSend, k int) *Stream {
	s := &Stream{
		Base:     NewBase(id, egress.New(maxSend, k), format),
		conn:     conn,
		commands: make(chan Command, 32),
		closed:   make(chan struct{}),
	}
	s.SetState(StateOpen)
	return s
}

// Commands is the channel the event loop selects on for peer-issued R
// mutations (spec.md §4.9).
func (s *Stream) Commands() <-chan Command { return s.commands }

// ReadPump blocks reading text frames until the connection errors or
// closes, translating the stream command grammar into Commands. It
// never writes to conn itself (writes are loop-owned) and exits quietly
// once the session is cancelled.
func (s *Stream) ReadPump() {
	defer close(s.commands)

	for {
		if s.Cancelled() {
			return
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.Cancel()
			return
		}

		s.Touch()

		line := string(data)
		if line == "." {
			continue // bare ping character, ignored per spec.md §4.6
		}

		cmd, err := ParseCommand(line)
		if err != nil {
			// malformed command: dropped without being logged, session
			// continues (spec.md §7 PeerProtocolError)
			continue
		}

		select {
		case s.commands <- cmd:
		case <-s.closed:
			return
		}
	}
}

// EnqueueEvent serializes ev in the session's negotiated format and
// enqueues it; the bool results mirror egress.Queue.Enqueue.
func (s *Stream) EnqueueEvent(ev wire.Event) (accepted, shouldWarn bool, err error) {
	var payload []byte
	switch s.Format {
	case wire.FormatJSON:
		payload, err = wire.EncodeJSON(ev)
		if err != nil {
			return false, false, err
		}
	case wire.FormatTXT:
		payload = wire.EncodeTXT(ev)
	case wire.FormatRAW:
		payload = wire.EncodeRAW(ev)
	}

	accepted, shouldWarn = s.Queue.Enqueue(payload)
	return accepted, shouldWarn, nil
}

// DrainTick writes up to maxSend queued buffers as one WebSocket frame
// each. A write failure tears down the session (spec.md §7
// TransportError); partial writes are not meaningful for a frame-based
// transport, so each drained buffer is written whole or not at all.
func (s *Stream) DrainTick(maxSend int) error {
	if s.Cancelled() {
		return nil
	}

	buffers := s.Queue.Drain(maxSend)
	for _, b := range buffers {
		if err := s.conn.WriteMessage(websocket.TextMessage, b.Remaining()); err != nil {
			s.Cancel()
			return err
		}
		s.Queue.Advance(len(b.Remaining()))
	}
	return nil
}

// PingTick arms the keepalive: if the queue is empty, a 1-byte ping is
// written directly (bypassing the queue, since it is not subscriber
// data); otherwise the ping timer is considered disarmed for this tick
// (spec.md §4.6 state table).
func (s *Stream) PingTick() error {
	if s.Cancelled() || !s.Queue.Empty() {
		return nil
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(".")); err != nil {
		s.Cancel()
		return err
	}
	return nil
}

// Drain writes every queued buffer in one call, ignoring maxSend.
func (s *Stream) Drain() error {
	return s.DrainTick(0)
}

// IdleFor reports how long it has been since any inbound activity, used
// by the loop to enforce pingSec-based teardown.
func (s *Stream) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity())
}

func (s *Stream) Close() error {
	s.Cancel()
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}
