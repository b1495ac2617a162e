package sm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	liberr "github.com/un9021/uniset2/errors"
)

// Interface is the gateway's entire contract with SM: ask/unask/set a
// sensor, observe liveness, read the heartbeat/local-work flags, and
// receive the message-port stream. SM's own storage and calibration
// engine stay out of scope (spec.md §1).
type Interface interface {
	WaitSMReady(ctx context.Context, timeout time.Duration) bool
	WaitSMWorking(ctx context.Context, testID SensorId, timeout, poll time.Duration) bool
	IsLocalWork() bool

	Ask(id SensorId) liberr.Error
	Unask(id SensorId) liberr.Error
	Set(id SensorId, value int64) liberr.Error
	LocalSaveValue(id SensorId, value int64) liberr.Error

	Messages() <-chan Message
	Close() error
}

// wireSnapshot/wireMsg are the JSON forms published/consumed on the NATS
// subjects; Message itself is kept Go-shaped for the rest of the gateway.
type wireMsg struct {
	Kind   MessageKind       `json:"kind"`
	Sensor wireSnapshot      `json:"sensor,omitempty"`
	System SystemCommandKind `json:"system,omitempty"`
}

type wireSnapshot struct {
	ID        SensorId `json:"id"`
	Value     int64    `json:"value"`
	Undefined bool     `json:"undefined"`
	Supplier  SensorId `json:"supplier"`
	Node      int32    `json:"node"`
	SMSec     int64    `json:"sm_sec"`
	SMNsec    int64    `json:"sm_nsec"`
	Kind      SensorKind `json:"kind"`
}

// natsClient is the production Interface implementation: SM's message port
// is a NATS subject ("<shmID>.events"); ask/unask/set are NATS requests
// against "<shmID>.ask"/"<shmID>.unask"/"<shmID>.set". This gives the
// abstract SM message port of spec.md §4.4 a concrete, embeddable-server
// transport (github.com/nats-io/nats.go + nats-server/v2 are both direct
// teacher dependencies).
type natsClient struct {
	conn      *nats.Conn
	shmID     string
	localWork bool

	sub *nats.Subscription
	out chan Message

	ready int32
}

// NewNATSClient dials url and subscribes to shmID's event subject. localWork
// mirrors shm->isLocalwork() in UDPSender.cc: true when the gateway process
// co-hosts SM, which changes how WatchDog is handled (spec.md §4.4).
func NewNATSClient(url, shmID string, localWork bool) (Interface, error) {
	conn, err := nats.Connect(url, nats.Name("uniset2-gateway"))
	if err != nil {
		return nil, err
	}

	c := &natsClient{
		conn:      conn,
		shmID:     shmID,
		localWork: localWork,
		out:       make(chan Message, 256),
	}

	sub, err := conn.Subscribe(shmID+".events", c.onEvent)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.sub = sub

	return c, nil
}

func (c *natsClient) onEvent(m *nats.Msg) {
	var w wireMsg
	if err := json.Unmarshal(m.Data, &w); err != nil {
		return
	}

	msg := Message{Kind: w.Kind, System: w.System}
	if w.Kind == MsgSensorInfo {
		msg.Sensor = Snapshot{
			ID:        w.Sensor.ID,
			Value:     w.Sensor.Value,
			Undefined: w.Sensor.Undefined,
			Supplier:  w.Sensor.Supplier,
			Node:      w.Sensor.Node,
			SMTime:    time.Unix(w.Sensor.SMSec, w.Sensor.SMNsec),
			Kind:      w.Sensor.Kind,
		}
	}

	select {
	case c.out <- msg:
	default:
		// message port is polled each loop tick (spec.md §4.4); a full
		// buffer here means the loop has fallen behind, and this incoming
		// message is dropped while the older buffered ones are kept.
	}
}

func (c *natsClient) Messages() <-chan Message { return c.out }

func (c *natsClient) IsLocalWork() bool { return c.localWork }

func (c *natsClient) WaitSMReady(ctx context.Context, timeout time.Duration) bool {
	return c.waitFlag(ctx, c.shmID+".ready", timeout, 50*time.Millisecond)
}

func (c *natsClient) WaitSMWorking(ctx context.Context, testID SensorId, timeout, poll time.Duration) bool {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return c.waitFlag(ctx, fmt.Sprintf("%s.working.%d", c.shmID, testID), timeout, poll)
}

func (c *natsClient) waitFlag(ctx context.Context, subject string, timeout, poll time.Duration) bool {
	deadline := time.Now().Add(timeout)
	if timeout < 0 {
		deadline = time.Time{} // wait indefinitely, per spec.md §5
	}

	for {
		if _, err := c.conn.Request(subject, nil, poll); err == nil {
			atomic.StoreInt32(&c.ready, 1)
			return true
		}

		select {
		case <-ctx.Done():
			return false
		default:
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return false
		}
	}
}

func (c *natsClient) Ask(id SensorId) liberr.Error {
	return c.call(c.shmID+".ask", id, 0)
}

func (c *natsClient) Unask(id SensorId) liberr.Error {
	return c.call(c.shmID+".unask", id, 0)
}

func (c *natsClient) Set(id SensorId, value int64) liberr.Error {
	return c.call(c.shmID+".set", id, value)
}

func (c *natsClient) LocalSaveValue(id SensorId, value int64) liberr.Error {
	return c.call(c.shmID+".set", id, value)
}

func (c *natsClient) call(subject string, id SensorId, value int64) liberr.Error {
	payload, _ := json.Marshal(wireSnapshot{ID: id, Value: value})

	if _, err := c.conn.Request(subject, payload, 2*time.Second); err != nil {
		return liberr.ErrSMCall.ErrorParent(err)
	}

	return nil
}

func (c *natsClient) Close() error {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	c.conn.Close()
	return nil
}
