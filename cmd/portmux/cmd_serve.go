package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/portmux/portmux/internal/errx"
	"github.com/portmux/portmux/pkg/api"
	"github.com/portmux/portmux/pkg/proxy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the routing proxy",
	Long: `Run the routing proxy on one or more listen addresses.

Each inbound request must carry a routing key: the X-Portmux-Port header
(with an optional X-Portmux-Workspace header), or a Host header of the
form <workspace>-<port>.<suffix>. Requests naming a workspace are dialed
on that workspace's shadow loopback address; requests with only a port go
to the configured upstream host.`,
	Example: `  portmux serve
  portmux serve --listen 0.0.0.0:8080 --listen 127.0.0.1:9090
  PORTMUX_SERVE_LISTEN=0.0.0.0:80 portmux serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringSlice("listen", []string{"0.0.0.0:8080", "127.0.0.1:8080"},
		"Listen address (host:port, can be repeated or comma-separated)")
	serveCmd.Flags().String("upstream-host", api.DefaultUpstreamHost,
		"Dial host for routing keys without a workspace")
	serveCmd.Flags().Duration("dial-timeout", api.DefaultDialTimeout,
		"Timeout for upstream TCP connects")
	viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("serve.upstream-host", serveCmd.Flags().Lookup("upstream-host"))
	viper.BindPFlag("serve.dial-timeout", serveCmd.Flags().Lookup("dial-timeout"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	listens, err := api.ParseListenAddrs(viper.GetStringSlice("serve.listen"))
	if err != nil {
		return errx.Wrap(ErrInvalidListen, err)
	}
	listens = api.DedupeListenAddrs(listens)

	cfg := &api.Config{
		ListenAddrs:  listens,
		UpstreamHost: viper.GetString("serve.upstream-host"),
		DialTimeout:  viper.GetDuration("serve.dial-timeout"),
	}

	events := make(chan api.Event, 64)
	go logEvents(events)

	srv, err := proxy.New(cfg, &proxy.Options{Logger: slog.Default(), Events: events})
	if err != nil {
		return errx.Wrap(ErrStartProxy, err)
	}
	srv.Start()

	slog.Info("portmux started", "upstream_host", cfg.GetUpstreamHost(), "listeners", len(listens))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down")
	return srv.Close()
}

// logEvents turns the proxy's tunnel events into structured log lines.
func logEvents(events <-chan api.Event) {
	for ev := range events {
		tun := ev.Tunnel
		if tun == nil {
			continue
		}
		if tun.Rejected {
			slog.Warn("tunnel rejected",
				"id", tun.ID, "kind", tun.Kind,
				"workspace", tun.Workspace, "port", tun.Port,
				"reason", tun.Reason)
			continue
		}
		slog.Info("tunnel",
			"id", tun.ID, "kind", tun.Kind,
			"workspace", tun.Workspace, "port", tun.Port,
			"target", tun.Target, "status", tun.StatusCode,
			"duration_ms", tun.DurationMS)
	}
}
