// Command logsession runs the standalone S-log realization of spec.md
// §1: a TCP log-tail server with no SM dependency, serving whatever
// named streams the process publishes into a logagg.Aggregator.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/un9021/uniset2/appconfig"
	"github.com/un9021/uniset2/logagg"
	"github.com/un9021/uniset2/logger"
	"github.com/un9021/uniset2/logsession"
)

func main() {
	var configPath, listen string

	cmd := &cobra.Command{
		Use:   "logsession",
		Short: "serve log-tail sessions over TCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, listen)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "configuration file path")
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:9000", "TCP address to accept log-tail peers on")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, listen string) error {
	log := logger.Default().Named("logsession")

	opts, err := appconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	agg := logagg.New(log)

	srv := logsession.NewServer(ln, agg, log, logsession.Config{
		OutTimeout: opts.SendTimeout,
		CmdTimeout: opts.Timeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
