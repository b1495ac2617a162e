package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/un9021/uniset2/directory"
	"github.com/un9021/uniset2/heartbeat"
	"github.com/un9021/uniset2/logger"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/sm"
	"github.com/un9021/uniset2/valuecache"
)

// fakeWriter is a session.Writer double that records every pack written.
type fakeWriter struct {
	mu    sync.Mutex
	packs [][]byte
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	w.packs = append(w.packs, cp)
	return len(p), nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.packs)
}

func newTestCore(t *testing.T, cfg Config) *Core {
	t.Helper()

	dir, errs := directory.Build(
		[]directory.Record{{Name: "s1", ID: "1"}, {Name: "s2", ID: "2"}},
		directory.Filter{}, nil, true,
	)
	if len(errs) != 0 {
		t.Fatalf("unexpected directory build errors: %v", errs)
	}

	cache, err := valuecache.New(16)
	if err != nil {
		t.Fatalf("valuecache.New: %v", err)
	}

	smi := sm.NewMock(true)
	beat := heartbeat.New(sm.NoSensor, 0, 0)
	reg := registry.New()
	return New(cfg, logger.Default(), smi, dir, reg, cache, beat, nil)
}

func newTestUDPSender(t *testing.T) (*UDPSender, *fakeWriter, *sm.Mock) {
	t.Helper()
	core := newTestCore(t, Config{IsLocalWork: true})
	w := &fakeWriter{}
	u := NewUDPSender(core, w, 20*time.Millisecond)
	return u, w, core.smi.(*sm.Mock)
}

func TestNewUDPSenderSubscribesEveryDirectoryEntry(t *testing.T) {
	u, _, _ := newTestUDPSender(t)

	entries := u.Core.reg.Entries(registry.SubscriberID(0))
	if len(entries) != 2 {
		t.Fatalf("expected both directory entries subscribed under SubscriberID(0), got %d", len(entries))
	}
}

func TestUDPSenderRunTicksAndWritesPacks(t *testing.T) {
	u, w, _ := newTestUDPSender(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Run(ctx, 10*time.Millisecond) }()

	deadline := time.After(time.Second)
	for w.count() == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("timed out waiting for a datagram tick to write a pack")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for Run to return after ctx cancel")
	}
}

func TestUDPSenderRunRequestsShutdownAfterSustainedWriteFailures(t *testing.T) {
	core := newTestCore(t, Config{IsLocalWork: true, ActivateTimeout: 10 * time.Millisecond})
	u := NewUDPSender(core, failingWriter{}, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := u.Run(ctx, time.Millisecond)
	if err == nil {
		t.Fatalf("expected Run to return the shutdown reason after sustained write failures")
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errBroken
}
