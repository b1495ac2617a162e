package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/un9021/uniset2/sm"
	"github.com/un9021/uniset2/wire"
)

// fakeConn is a minimal session.Conn double: WriteMessage records every
// frame written, ReadMessage replays a scripted sequence of inbound lines
// before blocking until closed.
type fakeConn struct {
	mu      sync.Mutex
	writes  [][]byte
	reads   []string
	readPos int
	closed  bool
	wantErr error
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wantErr != nil {
		return f.wantErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readPos < len(f.reads) {
		line := f.reads[f.readPos]
		f.readPos++
		return 0, []byte(line), nil
	}
	return 0, nil, errors.New("fakeConn: no more scripted reads")
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

func TestNewStreamStartsOpen(t *testing.T) {
	conn := &fakeConn{}
	s := NewStream(1, conn, wire.FormatJSON, 8, 32)
	if s.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %v", s.State())
	}
	if s.ID() != 1 {
		t.Fatalf("expected id 1, got %v", s.ID())
	}
}

func TestEnqueueEventThenDrainTickWritesFrame(t *testing.T) {
	conn := &fakeConn{}
	s := NewStream(1, conn, wire.FormatTXT, 8, 32)

	accepted, shouldWarn, err := s.EnqueueEvent(wire.Event{Snapshot: sm.Snapshot{ID: 42, Value: 7}})
	if err != nil || !accepted || shouldWarn {
		t.Fatalf("unexpected enqueue result: accepted=%v shouldWarn=%v err=%v", accepted, shouldWarn, err)
	}

	if err := s.DrainTick(8); err != nil {
		t.Fatalf("DrainTick: %v", err)
	}

	writes := conn.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(writes))
	}
}

func TestDrainTickTearsDownSessionOnWriteFailure(t *testing.T) {
	conn := &fakeConn{wantErr: errors.New("broken pipe")}
	s := NewStream(1, conn, wire.FormatTXT, 8, 32)
	s.EnqueueEvent(wire.Event{Snapshot: sm.Snapshot{ID: 1, Value: 1}})

	if err := s.DrainTick(8); err == nil {
		t.Fatalf("expected DrainTick to surface the write error")
	}
	if !s.Cancelled() {
		t.Fatalf("expected session cancelled after a transport error")
	}
}

func TestPingTickSkipsWhenQueueNonEmpty(t *testing.T) {
	conn := &fakeConn{}
	s := NewStream(1, conn, wire.FormatTXT, 8, 32)
	s.EnqueueEvent(wire.Event{Snapshot: sm.Snapshot{ID: 1, Value: 1}})

	if err := s.PingTick(); err != nil {
		t.Fatalf("PingTick: %v", err)
	}
	if len(conn.Writes()) != 0 {
		t.Fatalf("expected no ping frame while the queue has data, got %d writes", len(conn.Writes()))
	}
}

func TestPingTickWritesPingWhenQueueEmpty(t *testing.T) {
	conn := &fakeConn{}
	s := NewStream(1, conn, wire.FormatTXT, 8, 32)

	if err := s.PingTick(); err != nil {
		t.Fatalf("PingTick: %v", err)
	}
	writes := conn.Writes()
	if len(writes) != 1 || string(writes[0]) != "." {
		t.Fatalf("expected a single %q ping frame, got %v", ".", writes)
	}
}

func TestReadPumpParsesCommandsAndIgnoresBarePing(t *testing.T) {
	conn := &fakeConn{reads: []string{".", "bad command", "ask:7"}}
	s := NewStream(1, conn, wire.FormatTXT, 8, 32)

	done := make(chan struct{})
	go func() {
		s.ReadPump()
		close(done)
	}()

	select {
	case cmd, ok := <-s.Commands():
		if !ok {
			t.Fatalf("expected a parsed command, channel closed instead")
		}
		if cmd.Kind != CmdAsk || len(cmd.IDs) != 1 || cmd.IDs[0] != sm.SensorId(7) {
			t.Fatalf("expected ask:7, got %+v", cmd)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a parsed command")
	}

	s.Cancel()
	conn.Close()
	<-done
}

func TestStreamCloseClosesConnOnce(t *testing.T) {
	conn := &fakeConn{}
	s := NewStream(1, conn, wire.FormatTXT, 8, 32)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !conn.closed {
		t.Fatalf("expected underlying conn closed")
	}
	if !s.Cancelled() {
		t.Fatalf("expected session cancelled after Close")
	}
}
