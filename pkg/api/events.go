package api

// Event is emitted by the proxy for each completed exchange or tunnel.
// Delivery is best-effort: the proxy never blocks the data path on a slow
// consumer.
type Event struct {
	Type      string       `json:"type"`
	Timestamp int64        `json:"timestamp"`
	Tunnel    *TunnelEvent `json:"tunnel,omitempty"`
}

// TunnelEvent describes one proxied HTTP exchange, upgrade session, or
// CONNECT tunnel.
type TunnelEvent struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"` // "http", "upgrade", or "connect"
	Workspace  string `json:"workspace,omitempty"`
	Port       uint16 `json:"port"`
	Target     string `json:"target"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Rejected   bool   `json:"rejected"`
	Reason     string `json:"reason,omitempty"`
}
