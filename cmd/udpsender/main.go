// Command udpsender runs the UDPSender realization of spec.md §1: a
// datagram broadcaster of the directory's sensor values, paced by
// SendTime and backed by SM over NATS.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	libptc "github.com/nabbar/golib/network/protocol"
	sckclt "github.com/nabbar/golib/socket/client"
	sckcfg "github.com/nabbar/golib/socket/config"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/un9021/uniset2/appconfig"
	"github.com/un9021/uniset2/directory"
	"github.com/un9021/uniset2/gateway"
	"github.com/un9021/uniset2/heartbeat"
	"github.com/un9021/uniset2/logger"
	"github.com/un9021/uniset2/metrics"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/session"
	"github.com/un9021/uniset2/sm"
	"github.com/un9021/uniset2/valuecache"
)

func main() {
	var configPath, sensorsPath, natsURL, shmID, metricsAddr string
	var localWork bool

	cmd := &cobra.Command{
		Use:   "udpsender",
		Short: "broadcast directory sensor values as UDP datagrams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, sensorsPath, natsURL, shmID, metricsAddr, localWork)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "configuration file path")
	cmd.Flags().StringVar(&sensorsPath, "sensors", "", "sensor directory records file (JSON)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS URL for the SM message port")
	cmd.Flags().StringVar(&shmID, "shm-id", "", "SM process identifier")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on; empty disables")
	cmd.Flags().BoolVar(&localWork, "local-work", false, "set when this process co-hosts SM (disables WatchDog reissue)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, sensorsPath, natsURL, shmID, metricsAddr string, localWork bool) error {
	log := logger.Default().Named("udpsender")

	opts, err := appconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	records, err := appconfig.LoadRecords(sensorsPath)
	if err != nil {
		return fmt.Errorf("load sensor records: %w", err)
	}
	if shmID == "" {
		shmID = opts.Name
	}

	dir, skipped := directory.Build(records, opts.Filter(), nil, true)
	for _, e := range skipped {
		log.Warn("sensor record skipped", "err", e)
	}

	smi, err := sm.NewNATSClient(natsURL, shmID, localWork)
	if err != nil {
		return fmt.Errorf("connect to SM: %w", err)
	}
	defer smi.Close()

	cache, err := valuecache.New(4096)
	if err != nil {
		return fmt.Errorf("build value cache: %w", err)
	}
	reg := registry.New()
	beat := heartbeat.New(sm.SensorId(opts.HeartbeatID), opts.HeartbeatMax, opts.HeartbeatTime)

	core := gateway.New(gateway.Config{
		NodeID:          opts.NodeID,
		ProcID:          opts.ProcID,
		SMReadyTimeout:  opts.SMReadyTimeout,
		ActivateTimeout: opts.ActivateTimeout,
		IsLocalWork:     smi.IsLocalWork(),
	}, log, smi, dir, reg, cache, beat, func(sm.SensorId) []registry.SubscriberID {
		return []registry.SubscriberID{registry.SubscriberID(0)}
	})

	mtr := metrics.New()
	core.SetMetrics(mtr)

	cli, err := sckclt.New(sckcfg.Client{Network: libptc.NetworkUDP, Address: fmt.Sprintf("%s:%d", opts.Host, opts.Port)}, nil)
	if err != nil {
		return fmt.Errorf("dial udp broadcast address: %w", err)
	}
	defer cli.Close()

	sender := gateway.NewUDPSender(core, asWriter(cli), opts.SendTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if rerr := core.WaitReady(ctx); rerr != nil {
		return fmt.Errorf("SM not ready: %w", rerr)
	}

	// The datagram send/heartbeat loop and the metrics listener are
	// independent failure domains; an errgroup runs them side by side
	// and cancels the shared context the moment either one quits, so a
	// dead metrics endpoint never outlives the sender and vice versa.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sender.Run(gctx, opts.SendTime) })

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: mtr.Handler()}
		g.Go(func() error {
			if serr := srv.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", serr)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
	}

	return g.Wait()
}

// asWriter narrows cli down to session.Writer without this package
// needing to know the concrete socket.Client shape beyond Write.
func asWriter(cli interface{ Write([]byte) (int, error) }) session.Writer {
	return cli
}
