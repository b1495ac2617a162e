// Package heartbeat implements HeartbeatEmitter (H): a periodic writer of
// a liveness counter into SM, with a fallback to observing SM's own
// TestMode_S sensor when no heartbeat sensor is configured (spec.md §4.8).
package heartbeat

import (
	"time"

	"github.com/un9021/uniset2/sm"
)

// TestModeSensor is the well-known fallback liveness sensor observed
// when no heartbeat id is configured (spec.md §4.8).
const TestModeSensor sm.SensorId = -1

// Emitter writes Max to ID every Period; SM is expected to decrement it
// on its own schedule. A write failure is simply retried on the next
// tick, never escalated (spec.md §4.8, §7).
type Emitter struct {
	ID     sm.SensorId
	Max    int64
	Period time.Duration

	enabled bool
}

// New builds an Emitter. A zero id disables H entirely; callers should
// instead observe TestModeSensor via the normal subscription path.
func New(id sm.SensorId, max int64, period time.Duration) *Emitter {
	return &Emitter{ID: id, Max: max, Period: period, enabled: id != sm.NoSensor}
}

func (e *Emitter) Enabled() bool { return e.enabled }

// Tick performs one heartbeat write. It is a no-op when H is disabled.
// A failure is returned for the caller to count but is never escalated
// here; the next tick retries unconditionally (spec.md §4.8, §7).
func (e *Emitter) Tick(smi sm.Interface) error {
	if !e.enabled {
		return nil
	}
	if err := smi.LocalSaveValue(e.ID, e.Max); err != nil {
		return err
	}
	return nil
}
