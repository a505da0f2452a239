// Package route extracts the (workspace, port) routing key from an inbound
// proxy request and turns it into a dial target.
//
// Two forms are accepted, in order: the X-Portmux-Port / X-Portmux-Workspace
// header pair, and a Host header shaped like <workspace>-<port>.<suffix>.
// A CONNECT request's own authority is never consulted; CONNECT is purely a
// tunnel-establishment handshake here.
package route

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/portmux/portmux/internal/errx"
	"github.com/portmux/portmux/pkg/api"
	"github.com/portmux/portmux/pkg/shadow"
)

// Key selects the upstream for one inbound request. An empty Workspace
// denotes a direct, non-isolated connection to the configured upstream host.
type Key struct {
	Workspace string
	Port      uint16
}

// Extract derives the routing key for req. Headers win over the Host form.
// The port must parse as an integer in 1..65535 wherever it comes from.
func Extract(req *http.Request) (Key, error) {
	workspace := strings.TrimSpace(req.Header.Get(api.HeaderWorkspace))

	if raw := req.Header.Get(api.HeaderPort); raw != "" {
		port, err := parsePort(strings.TrimSpace(raw))
		if err != nil {
			return Key{}, err
		}
		return Key{Workspace: workspace, Port: port}, nil
	}

	if ws, port, ok := parseHost(req.Host); ok {
		if workspace == "" {
			workspace = ws
		}
		return Key{Workspace: workspace, Port: port}, nil
	}

	return Key{}, errx.With(ErrMissingRoute, ": no %s header and no <workspace>-<port> Host", api.HeaderPort)
}

// DialAddr computes the host:port the tunnel engine should connect to: the
// workspace's shadow address when one is named, else the configured upstream
// host.
func (k Key) DialAddr(upstreamHost string) (string, error) {
	port := strconv.Itoa(int(k.Port))
	if k.Workspace == "" {
		return net.JoinHostPort(upstreamHost, port), nil
	}
	addr, err := shadow.Addr(k.Workspace)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(addr.String(), port), nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return 0, errx.With(ErrBadPort, " %q", s)
	}
	return uint16(n), nil
}

// parseHost matches <workspace>-<port>.<suffix>. The first label is split at
// its last hyphen; anything after the first dot is ignored. A trailing :port
// on the Host header is stripped first.
//
// Host names are case-insensitive on the wire, so the whole host is folded
// to lowercase before splitting: host-derived workspace names are always
// lowercase, and clients may send the Host in any case. The header form
// passes the workspace name through verbatim (see the case note on
// shadow.Addr).
func parseHost(host string) (string, uint16, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", 0, false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	label, rest, found := strings.Cut(host, ".")
	if !found || rest == "" {
		return "", 0, false
	}

	dash := strings.LastIndex(label, "-")
	if dash <= 0 || dash == len(label)-1 {
		return "", 0, false
	}
	port, err := parsePort(label[dash+1:])
	if err != nil {
		return "", 0, false
	}
	return label[:dash], port, true
}
