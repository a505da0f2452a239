package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/portmux/portmux/internal/errx"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "portmux",
	Short: "Per-workspace loopback port multiplexer",
	Long: `portmux lets many workspaces on one host bind the same loopback ports
without colliding, and exposes all of them through a single routing proxy.

Inside a workspace, the portmux-shim LD_PRELOAD library transparently
rewrites loopback socket addresses to a per-workspace shadow address.
The proxy reproduces the same mapping from the routing key carried on
each request (X-Portmux-Workspace / X-Portmux-Port headers, or a
<workspace>-<port>.<suffix> Host), so no registry or IPC is needed.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-json", rootCmd.PersistentFlags().Lookup("log-json"))

	viper.SetEnvPrefix("PORTMUX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return errx.With(ErrLogLevel, " %q", viper.GetString("log-level"))
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if viper.GetBool("log-json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
