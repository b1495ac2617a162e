package session

import (
	"github.com/un9021/uniset2/directory"
	"github.com/un9021/uniset2/egress"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/valuecache"
	"github.com/un9021/uniset2/wire"
)

// Writer is the transport the datagram session broadcasts over; it is
// satisfied by github.com/nabbar/golib/socket/client/udp's client, kept
// narrow here so the session can be tested without a real socket.
type Writer interface {
	Write(p []byte) (int, error)
}

// Datagram is the UDP broadcaster realization of S (spec.md §4.7): a
// single long-lived session, no peer handshake, no command ingress. It
// only ever occupies open→closed.
type Datagram struct {
	Base

	writer  Writer
	nodeID  int32
	procID  int32
	dir     *directory.Directory
	cache   *valuecache.Cache
}

// NewDatagram builds the one process-wide datagram session. The embedded
// egress queue has a hard cap of 1 and is never used: Tick writes each
// datagram straight to the writer, since there is no per-peer pacing to
// enforce, only the tick interval itself.
func NewDatagram(writer Writer, nodeID, procID int32, dir *directory.Directory, cache *valuecache.Cache) *Datagram {
	d := &Datagram{
		Base:   NewBase(registry.SubscriberID(0), egress.New(1, 1), wire.FormatRAW),
		writer: writer,
		nodeID: nodeID,
		procID: procID,
		dir:    dir,
		cache:  cache,
	}
	d.SetState(StateOpen)
	return d
}

// Tick renders the current directory+cache state into one datagram and
// writes it. A short write aborts the tick without touching the cache;
// values are simply retransmitted whole on the next tick (spec.md §4.7,
// §8 scenario 4). A write error is reported for the caller's retry/
// termination-request policy (spec.md §4.7, §7).
func (d *Datagram) Tick() error {
	if d.Cancelled() {
		return nil
	}

	entries := make([]wire.PackEntry, 0, d.dir.Len())
	for _, e := range d.dir.Entries() {
		snap, ok := d.cache.Get(e.ID)
		value := int64(0)
		if ok {
			value = snap.Value
		}
		entries = append(entries, wire.PackEntry{ID: e.ID, Value: value})
	}

	buf := wire.EncodePack(d.nodeID, d.procID, entries)

	n, err := d.writer.Write(buf)
	if err != nil {
		return err
	}
	if n < len(buf) {
		return errShortWrite(n, len(buf))
	}
	return nil
}

type shortWriteError struct {
	wrote, want int
}

func (e *shortWriteError) Error() string {
	return "session: short datagram write"
}

func errShortWrite(wrote, want int) error {
	return &shortWriteError{wrote: wrote, want: want}
}
