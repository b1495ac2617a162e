// Package ingress implements IngressDispatcher (I): the SM message-port
// poller that classifies inbound messages and drives the registry/cache/
// egress pipeline (spec.md §4.4).
package ingress

import (
	"context"

	liberr "github.com/un9021/uniset2/errors"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/sm"
	"github.com/un9021/uniset2/valuecache"
)

// Outcome tags what Dispatch did with one message, so the caller (the
// event loop) can drive session lifecycle transitions without this
// package knowing about sessions at all.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeSensorUpdated
	OutcomeStartUp
	OutcomeFoldUpOrFinish
	OutcomeWatchDogReissued
	OutcomeLogRotate
	OutcomeUnknownDropped
)

// Result is what one Dispatch call produces.
type Result struct {
	Outcome Outcome
	SensorID sm.SensorId
	Fatal   liberr.Error // set only on a fatal dispatch failure
}

// Dispatcher wires I to its collaborators. IsLocalWork mirrors
// shm->isLocalwork() in the original source: WatchDog is ignored in
// local mode since the gateway shares a process with SM (spec.md §4.4).
type Dispatcher struct {
	cache        *valuecache.Cache
	isLocalWork  bool
	subscribers  func(id sm.SensorId) []registry.SubscriberID
}

// New builds a Dispatcher. subscribers resolves which subscribers (R
// keys) currently reference a sensor id, so a SensorInfo message can be
// fanned out without ingress needing R's full internals. It may be nil
// at construction time and bound later via SetSubscribers, since the
// session table that answers it is often built after the dispatcher
// (see gateway.Core/WSGate).
func New(cache *valuecache.Cache, isLocalWork bool, subscribers func(id sm.SensorId) []registry.SubscriberID) *Dispatcher {
	return &Dispatcher{cache: cache, isLocalWork: isLocalWork, subscribers: subscribers}
}

// SetSubscribers binds (or rebinds) the subscriber-resolution callback.
func (d *Dispatcher) SetSubscribers(subscribers func(id sm.SensorId) []registry.SubscriberID) {
	d.subscribers = subscribers
}

// Dispatch classifies one message per spec.md §4.4. StartUp is handled
// as its own terminal case — it does not fall through into FoldUp/Finish
// (see DESIGN.md's resolution of the StartUp fallthrough open question).
func (d *Dispatcher) Dispatch(ctx context.Context, msg sm.Message) Result {
	switch msg.Kind {
	case sm.MsgSensorInfo:
		if d.subscribers != nil && len(d.subscribers(msg.Sensor.ID)) == 0 {
			return Result{Outcome: OutcomeNone}
		}
		d.cache.Update(msg.Sensor)
		return Result{Outcome: OutcomeSensorUpdated, SensorID: msg.Sensor.ID}

	case sm.MsgSystemCommand:
		switch msg.System {
		case sm.CmdStartUp:
			return Result{Outcome: OutcomeStartUp}

		case sm.CmdFoldUp, sm.CmdFinish:
			return Result{Outcome: OutcomeFoldUpOrFinish}

		case sm.CmdWatchDog:
			if d.isLocalWork {
				return Result{Outcome: OutcomeNone}
			}
			return Result{Outcome: OutcomeWatchDogReissued}

		case sm.CmdLogRotate:
			return Result{Outcome: OutcomeLogRotate}

		default:
			return Result{Outcome: OutcomeUnknownDropped}
		}

	default:
		return Result{Outcome: OutcomeUnknownDropped}
	}
}
