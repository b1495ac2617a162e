// Package registry implements SubscriptionRegistry (R): the authoritative
// live state of which sensor ids a subscriber wants notifications about,
// and the pending ask/unask/set commands still owed to SM (spec.md §4.2).
package registry

import (
	"sync"

	liberr "github.com/un9021/uniset2/errors"
	"github.com/un9021/uniset2/sm"
)

// SubscriberID identifies one subscriber: a session index for the stream
// variant, or a single well-known constant for the datagram variant, which
// spec.md §9 notes keeps a single-subscriber assumption distinct from the
// stream variant's session list.
type SubscriberID uint64

// Entry is one (subscriber, sensor id) row (spec.md §3 SubscriptionEntry).
type Entry struct {
	ID             sm.SensorId
	PendingCommand sm.PendingCommand
	LastValue      int64
	LastError      string
	PackPosition   *int
}

// Notification is the synthetic or real event handed to egress after a
// reconcile pass: either a normal value update or an error surfaced from a
// failed SM call (spec.md §4.2, §7 SMCallError).
type Notification struct {
	Subscriber SubscriberID
	ID         sm.SensorId
	Value      int64
	Undefined  bool
	Err        string
}

// Registry holds every subscriber's entries keyed by sensor id.
type Registry struct {
	mu       sync.Mutex
	entries  map[SubscriberID]map[sm.SensorId]*Entry
}

func New() *Registry {
	return &Registry{entries: make(map[SubscriberID]map[sm.SensorId]*Entry)}
}

func (r *Registry) subMap(sub SubscriberID) map[sm.SensorId]*Entry {
	m, ok := r.entries[sub]
	if !ok {
		m = make(map[sm.SensorId]*Entry)
		r.entries[sub] = m
	}
	return m
}

// Add inserts an entry with pendingCommand=ask if absent; if present, it
// re-queues ask only when the previous command was unask (spec.md §4.2).
func (r *Registry) Add(sub SubscriberID, id sm.SensorId) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.subMap(sub)
	e, ok := m[id]
	if !ok {
		m[id] = &Entry{ID: id, PendingCommand: sm.PendingCommand{Kind: sm.CmdAsk}}
		return
	}

	if e.PendingCommand.Kind == sm.CmdUnask {
		e.PendingCommand = sm.PendingCommand{Kind: sm.CmdAsk}
	}
}

// Del marks the entry for unask; it survives reconcile until SM has
// acknowledged (or failed) the unask.
func (r *Registry) Del(sub SubscriberID, id sm.SensorId) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.subMap(sub)
	e, ok := m[id]
	if !ok {
		return
	}
	e.PendingCommand = sm.PendingCommand{Kind: sm.CmdUnask}
}

// Set queues a setValue command and stashes v into LastValue immediately
// so local reads observe the intended value ahead of SM's round trip.
func (r *Registry) Set(sub SubscriberID, id sm.SensorId, v int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.subMap(sub)
	e, ok := m[id]
	if !ok {
		e = &Entry{ID: id}
		m[id] = e
	}
	e.PendingCommand = sm.PendingCommand{Kind: sm.CmdSet, Value: v}
	e.LastValue = v
}

// Remove deletes one entry outright, bypassing reconciliation, without
// waiting for an SM round trip. Session close uses RemoveSubscriber.
func (r *Registry) Remove(sub SubscriberID, id sm.SensorId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subMap(sub), id)
}

// RemoveSubscriber drops every entry owned by sub, e.g. on session close.
func (r *Registry) RemoveSubscriber(sub SubscriberID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sub)
}

// Entries returns a snapshot of sub's entries for read-only inspection
// (e.g. egress serialization of PackPosition).
func (r *Registry) Entries(sub SubscriberID) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.entries[sub]
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, *e)
	}
	return out
}

// Reconcile executes every pending command for sub against smi exactly
// once, clears it, and returns the synthetic notifications produced by
// any command that failed (spec.md §4.2). Replaying with all commands
// already clear is a no-op, satisfying idempotence.
func (r *Registry) Reconcile(sub SubscriberID, smi sm.Interface) []Notification {
	r.mu.Lock()
	entries := r.subMap(sub)
	pending := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.PendingCommand.Kind != sm.CmdNone {
			pending = append(pending, e)
		}
	}
	r.mu.Unlock()

	var notifications []Notification
	for _, e := range pending {
		var err liberr.Error
		kind := e.PendingCommand.Kind

		switch kind {
		case sm.CmdAsk:
			err = smi.Ask(e.ID)
		case sm.CmdUnask:
			err = smi.Unask(e.ID)
		case sm.CmdSet:
			err = smi.Set(e.ID, e.PendingCommand.Value)
		}

		r.mu.Lock()
		if err != nil {
			e.LastError = err.Error()
			notifications = append(notifications, Notification{
				Subscriber: sub,
				ID:         e.ID,
				Undefined:  true,
				Err:        e.LastError,
			})
			e.PendingCommand = sm.PendingCommand{Kind: sm.CmdNone}
		} else {
			e.LastError = ""
			if kind == sm.CmdUnask {
				// the entry survives only until SM acknowledges the unask
				// (spec.md §4.2); a successful unask retires it entirely.
				delete(r.subMap(sub), e.ID)
			} else {
				e.PendingCommand = sm.PendingCommand{Kind: sm.CmdNone}
			}
		}
		r.mu.Unlock()
	}

	return notifications
}

// AskAll queues an ask command for every entry currently present across
// every subscriber, used on StartUp/WatchDog-in-remote-mode (spec.md §4.4).
func (r *Registry) AskAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.entries {
		for _, e := range m {
			e.PendingCommand = sm.PendingCommand{Kind: sm.CmdAsk}
		}
	}
}

// UnaskAll queues an unask command for every entry, used on FoldUp/Finish.
func (r *Registry) UnaskAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.entries {
		for _, e := range m {
			e.PendingCommand = sm.PendingCommand{Kind: sm.CmdUnask}
		}
	}
}
