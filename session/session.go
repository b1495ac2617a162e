package session

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/un9021/uniset2/egress"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/wire"
)

// State is the handshake/lifecycle state machine of spec.md §3: stream
// sessions run new→open→draining→closed; the datagram session only ever
// occupies open→closed.
type State uint8

const (
	StateNew State = iota
	StateOpen
	StateDraining
	StateClosed
)

// Variant is the narrow capability set every session realization shares
// (spec.md §9: "tagged variants or a narrow trait, not deep inheritance").
type Variant interface {
	ID() registry.SubscriberID
	State() State
	Cancelled() bool
	Cancel()
	LastActivity() time.Time
	Touch()
}

// Base is embedded by every concrete session; it owns the fields common
// to stream and datagram alike: the subscriber id into R, the egress
// queue, handshake state and the monotonic cancellation flag.
type Base struct {
	id        registry.SubscriberID
	trace     uuid.UUID
	Queue     *egress.Queue
	Format    wire.Format
	state     atomic.Int32
	cancelled atomic.Bool
	activity  atomic.Int64 // unix nanos
}

func NewBase(id registry.SubscriberID, q *egress.Queue, format wire.Format) Base {
	b := Base{id: id, trace: uuid.New(), Queue: q, Format: format}
	b.state.Store(int32(StateNew))
	b.Touch()
	return b
}

func (b *Base) ID() registry.SubscriberID { return b.id }

// TraceID is a process-lifetime-unique identifier for this session,
// stable across the table-key reuse that registry.SubscriberID permits
// once a session is removed; used only for log correlation.
func (b *Base) TraceID() uuid.UUID { return b.trace }

func (b *Base) State() State { return State(b.state.Load()) }

func (b *Base) SetState(s State) { b.state.Store(int32(s)) }

// Cancel is idempotent and monotonic (spec.md §5): once set, no further
// reads, writes or timers may fire for this session.
func (b *Base) Cancel() {
	if b.cancelled.CompareAndSwap(false, true) {
		b.SetState(StateClosed)
		b.Queue.Release()
	}
}

func (b *Base) Cancelled() bool { return b.cancelled.Load() }

func (b *Base) Touch() { b.activity.Store(time.Now().UnixNano()) }

func (b *Base) LastActivity() time.Time { return time.Unix(0, b.activity.Load()) }
