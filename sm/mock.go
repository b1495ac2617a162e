package sm

import (
	"context"
	"sync"
	"time"

	liberr "github.com/un9021/uniset2/errors"
)

// Mock is an in-process Interface used by component tests that need an SM
// collaborator without a NATS broker. It records every Ask/Unask/Set call
// and lets tests push Messages directly onto the channel the gateway reads.
type Mock struct {
	mu        sync.Mutex
	localWork bool
	ready     bool
	working   bool
	failCalls bool

	asked   []SensorId
	unasked []SensorId
	sets    map[SensorId]int64

	ch chan Message
}

func NewMock(localWork bool) *Mock {
	return &Mock{
		localWork: localWork,
		ready:     true,
		working:   true,
		sets:      make(map[SensorId]int64),
		ch:        make(chan Message, 256),
	}
}

func (m *Mock) SetFailCalls(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCalls = fail
}

func (m *Mock) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

func (m *Mock) SetWorking(working bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.working = working
}

func (m *Mock) Push(msg Message) { m.ch <- msg }

func (m *Mock) Asked() []SensorId {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SensorId, len(m.asked))
	copy(out, m.asked)
	return out
}

func (m *Mock) Unasked() []SensorId {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SensorId, len(m.unasked))
	copy(out, m.unasked)
	return out
}

func (m *Mock) Messages() <-chan Message { return m.ch }

func (m *Mock) IsLocalWork() bool { return m.localWork }

func (m *Mock) WaitSMReady(ctx context.Context, timeout time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *Mock) WaitSMWorking(ctx context.Context, testID SensorId, timeout, poll time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.working
}

func (m *Mock) Ask(id SensorId) liberr.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCalls {
		return liberr.ErrSMCall.Error()
	}
	m.asked = append(m.asked, id)
	return nil
}

func (m *Mock) Unask(id SensorId) liberr.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCalls {
		return liberr.ErrSMCall.Error()
	}
	m.unasked = append(m.unasked, id)
	return nil
}

func (m *Mock) Set(id SensorId, value int64) liberr.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCalls {
		return liberr.ErrSMCall.Error()
	}
	m.sets[id] = value
	return nil
}

func (m *Mock) LocalSaveValue(id SensorId, value int64) liberr.Error {
	return m.Set(id, value)
}

func (m *Mock) Close() error { return nil }
