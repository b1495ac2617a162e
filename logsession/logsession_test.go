package logsession

import (
	"net"
	"testing"
	"time"

	"github.com/un9021/uniset2/logger"
)

type fakeAggregator struct {
	lines      chan string
	lastCmd    Cmd
	lastName   string
	lastLevel  int32
	subscribed string
}

func newFakeAggregator() *fakeAggregator {
	return &fakeAggregator{lines: make(chan string, 8)}
}

func (f *fakeAggregator) Subscribe(logName string) (<-chan string, func(), error) {
	f.subscribed = logName
	return f.lines, func() { close(f.lines) }, nil
}

func (f *fakeAggregator) SetLevel(name string, level int32) error {
	f.lastCmd, f.lastName, f.lastLevel = CmdSetLevel, name, level
	return nil
}
func (f *fakeAggregator) AddLevel(name string, level int32) error {
	f.lastCmd, f.lastName, f.lastLevel = CmdAddLevel, name, level
	return nil
}
func (f *fakeAggregator) DelLevel(name string, level int32) error {
	f.lastCmd, f.lastName, f.lastLevel = CmdDelLevel, name, level
	return nil
}
func (f *fakeAggregator) Rotate(name string) error {
	f.lastCmd, f.lastName = CmdRotate, name
	return nil
}
func (f *fakeAggregator) SetLogFile(name string, enabled bool) error {
	if enabled {
		f.lastCmd = CmdOnLogFile
	} else {
		f.lastCmd = CmdOffLogFile
	}
	f.lastName = name
	return nil
}

func TestOpenAppliesStartCommandThenTails(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	agg := newFakeAggregator()
	sess := New(1, server, 8, 10, logger.Default(), time.Second, time.Second, time.Second, 10*time.Millisecond)

	go func() {
		env := EncodeEnvelope(Envelope{Command: CmdSetLevel, Data: 3, LogName: "main"})
		_, _ = client.Write(env)
	}()

	if err := sess.Open(agg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()

	if agg.lastCmd != CmdSetLevel || agg.lastName != "main" || agg.lastLevel != 3 {
		t.Fatalf("command not applied: %+v", agg)
	}
	if agg.subscribed != "main" {
		t.Fatalf("expected subscribe to 'main', got %q", agg.subscribed)
	}

	agg.lines <- "hello world\n"

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := client.Read(buf)
		readDone <- buf[:n]
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if err := sess.DrainTick(8); err != nil {
			t.Fatalf("DrainTick: %v", err)
		}
		select {
		case got := <-readDone:
			if string(got) != "hello world\n" {
				t.Fatalf("got %q", got)
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("timed out waiting for drained line")
}

func TestOpenWithNoCommandProceedsReadOnly(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	agg := newFakeAggregator()
	sess := New(2, server, 8, 10, logger.Default(), time.Second, 20*time.Millisecond, time.Second, 10*time.Millisecond)
	defer sess.Close()

	if err := sess.Open(agg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if agg.lastCmd != 0 {
		t.Fatalf("expected no command applied, got %v", agg.lastCmd)
	}
	if agg.subscribed != "" {
		t.Fatalf("expected subscribe to default stream, got %q", agg.subscribed)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	agg := newFakeAggregator()
	sess := New(3, server, 8, 10, logger.Default(), time.Second, 20*time.Millisecond, time.Second, 10*time.Millisecond)
	if err := sess.Open(agg); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
