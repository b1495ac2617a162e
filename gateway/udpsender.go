package gateway

import (
	"context"
	"time"

	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/session"
)

// UDPSender is the S-datagram realization: a single long-lived broadcast
// session ticked at SendTime, with no peer ingress at all (spec.md §4.7).
type UDPSender struct {
	*Core

	ds *session.Datagram
}

// NewUDPSender wires a Core to the one datagram session. Every directory
// entry is subscribed under a single well-known SubscriberID(0), matching
// the datagram variant's single-subscriber assumption (spec.md §9).
func NewUDPSender(core *Core, writer session.Writer, sendTime time.Duration) *UDPSender {
	ds := session.NewDatagram(writer, core.cfg.NodeID, core.cfg.ProcID, core.dir, core.cache)

	for _, e := range core.dir.Entries() {
		core.reg.Add(registry.SubscriberID(0), e.ID)
	}

	return &UDPSender{Core: core, ds: ds}
}

// Run starts the SM dispatch loop, the broadcast ticker and H together,
// all as github.com/nabbar/golib/runner/ticker instances; it returns when
// the dispatch loop stops (ctx cancellation, requestShutdown, or a send
// failure past ActivateTimeout).
func (u *UDPSender) Run(ctx context.Context, sendTime time.Duration) error {
	if sendTime <= 0 {
		sendTime = time.Second
	}
	if u.Core.metrics != nil {
		u.Core.metrics.SessionsActive.WithLabelValues("udp").Set(1)
		defer u.Core.metrics.SessionsActive.WithLabelValues("udp").Set(0)
	}

	var firstFailure time.Time

	sendTicker := NewTicker(sendTime, func(ctx context.Context, _ *time.Ticker) error {
		notes := u.Core.reg.Reconcile(registry.SubscriberID(0), u.Core.smi)
		if u.Core.metrics != nil {
			for _, n := range notes {
				if n.Err != "" {
					u.Core.metrics.SMCallErrors.WithLabelValues("reconcile").Inc()
				}
			}
		}

		if err := u.ds.Tick(); err != nil {
			u.Core.log.Warn("datagram tick failed", "err", err)
			if firstFailure.IsZero() {
				firstFailure = time.Now()
			} else if time.Since(firstFailure) > u.Core.cfg.ActivateTimeout {
				u.Core.RequestShutdown(err)
			}
			return nil
		}
		if u.Core.metrics != nil {
			u.Core.metrics.Notifications.WithLabelValues("udp").Add(float64(len(u.Core.dir.Entries())))
		}
		firstFailure = time.Time{}
		return nil
	})
	if err := sendTicker.Start(ctx); err != nil {
		return err
	}
	defer sendTicker.Stop(ctx)

	beatTicker, err := u.Core.StartHeartbeat(ctx)
	if err != nil {
		return err
	}
	defer beatTicker.Stop(ctx)

	return u.Core.Run(ctx, Hooks{
		OnStartUp: func(ctx context.Context) {},
		OnDrain:   func() { u.ds.Cancel() },
	})
}
