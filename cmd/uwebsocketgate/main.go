// Command uwebsocketgate runs the UWebSocketGate realization of
// spec.md §1: a WebSocket/HTTP gateway that fans sensor events out to
// attached stream sessions, backed by SM over NATS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/un9021/uniset2/appconfig"
	"github.com/un9021/uniset2/directory"
	"github.com/un9021/uniset2/frontend"
	"github.com/un9021/uniset2/gateway"
	"github.com/un9021/uniset2/heartbeat"
	"github.com/un9021/uniset2/httpserver"
	"github.com/un9021/uniset2/logger"
	"github.com/un9021/uniset2/metrics"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/sm"
	"github.com/un9021/uniset2/valuecache"
)

func main() {
	var configPath, sensorsPath, natsURL, shmID string
	var localWork bool

	cmd := &cobra.Command{
		Use:   "uwebsocketgate",
		Short: "serve sensor events to WebSocket clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, sensorsPath, natsURL, shmID, localWork)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "configuration file path")
	cmd.Flags().StringVar(&sensorsPath, "sensors", "", "sensor directory records file (JSON)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS URL for the SM message port")
	cmd.Flags().StringVar(&shmID, "shm-id", "", "SM process identifier")
	cmd.Flags().BoolVar(&localWork, "local-work", false, "set when this process co-hosts SM")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, sensorsPath, natsURL, shmID string, localWork bool) error {
	log := logger.Default().Named("uwebsocketgate")

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
	}, log, smi, dir, reg, cache, beat, nil)

	mtr := metrics.New()
	core.SetMetrics(mtr)

	gate := gateway.NewWSGate(core, opts.WSMax, opts.WSMaxSend, 0, opts.WSSendTime, opts.WSHeartbeatTime)

	handler := frontend.New(frontend.Config{CORSAllow: opts.HTTPServerCORSAllow}, gate, log).WithMetrics(mtr)

	srvCfg := httpserver.ServerConfig{
		Name:   opts.Name,
		Listen: fmt.Sprintf("%s:%d", opts.HTTPServerHost, opts.HTTPServerPort),
		Expose: fmt.Sprintf("http://%s:%d", opts.HTTPServerHost, opts.HTTPServerPort),
	}
	httpSrv := srvCfg.Server()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if rerr := core.WaitReady(ctx); rerr != nil {
		return fmt.Errorf("SM not ready: %w", rerr)
	}

	if herr := httpSrv.Listen(handler.Engine()); herr != nil {
		return fmt.Errorf("listen: %w", herr)
	}
	defer httpSrv.Shutdown()

	return gate.Run(ctx)
}
