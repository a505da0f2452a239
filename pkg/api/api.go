// Package api holds the shared types, header names, and environment variable
// names that the proxy, the interception shim, and the CLI agree on.
package api

import "time"

// Routing headers consumed by the proxy. Both are scrubbed before the request
// is forwarded upstream.
const (
	HeaderPort      = "X-Portmux-Port"
	HeaderWorkspace = "X-Portmux-Workspace"
)

// Environment variables read by the interception shim.
const (
	// EnvWorkspaceRoot is the directory prefix workspaces live under
	// (e.g. /root). Unset disables isolation entirely.
	EnvWorkspaceRoot = "PORTMUX_WORKSPACE_ROOT"

	// EnvWorkspace pins the workspace name explicitly, overriding
	// working-directory detection.
	EnvWorkspace = "PORTMUX_WORKSPACE"

	// EnvShimDisable set to "1" turns the shim into a no-op.
	EnvShimDisable = "PORTMUX_SHIM_DISABLE"

	// EnvShimLog set to "1" enables shim diagnostics on stderr.
	EnvShimLog = "PORTMUX_SHIM_LOG"
)

// DefaultUpstreamHost is the dial host for routing keys without a workspace.
const DefaultUpstreamHost = "127.0.0.1"

// DefaultDialTimeout bounds the upstream TCP connect for every tunnel.
const DefaultDialTimeout = 5 * time.Second

// Config describes one proxy instance.
type Config struct {
	// ListenAddrs are host:port pairs the proxy serves on. Already
	// deduplicated by the caller (see DedupeListenAddrs).
	ListenAddrs []string `json:"listen_addrs"`

	// UpstreamHost is the dial host used when a routing key carries no
	// workspace. Defaults to 127.0.0.1.
	UpstreamHost string `json:"upstream_host,omitempty"`

	// DialTimeout bounds the upstream connect. Zero means
	// DefaultDialTimeout.
	DialTimeout time.Duration `json:"-"`
}

// GetUpstreamHost returns the configured upstream host or the default.
func (c *Config) GetUpstreamHost() string {
	if c != nil && c.UpstreamHost != "" {
		return c.UpstreamHost
	}
	return DefaultUpstreamHost
}

// GetDialTimeout returns the configured dial timeout or the default.
func (c *Config) GetDialTimeout() time.Duration {
	if c != nil && c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return DefaultDialTimeout
}
