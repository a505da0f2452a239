package api

import (
	"net"
	"strconv"
	"strings"

	"github.com/portmux/portmux/internal/errx"
)

// ParseListenAddrs normalizes listen address flags. Each value may hold
// several comma-separated host:port pairs. Hosts must be IP literals (or
// empty, meaning the v4 wildcard); ports must be in 1..65535.
func ParseListenAddrs(values []string) ([]string, error) {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(values))

	for _, raw := range values {
		for _, item := range strings.Split(raw, ",") {
			spec := strings.TrimSpace(item)
			if spec == "" {
				continue
			}

			host, portStr, err := net.SplitHostPort(spec)
			if err != nil {
				return nil, errx.With(ErrListenAddrFormat, " %q: %w", spec, err)
			}
			if host == "" {
				host = "0.0.0.0"
			}
			if net.ParseIP(host) == nil {
				return nil, errx.With(ErrListenAddrFormat, " %q: host must be an IP literal", spec)
			}
			port, err := strconv.Atoi(portStr)
			if err != nil || port < 1 || port > 65535 {
				return nil, errx.With(ErrListenAddrPort, " %q", portStr)
			}

			addr := net.JoinHostPort(host, strconv.Itoa(port))
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			result = append(result, addr)
		}
	}

	if len(result) == 0 {
		return nil, ErrNoListenAddrs
	}
	return result, nil
}

// DedupeListenAddrs drops IPv4 listen addresses already covered by a wildcard
// bind on the same port, so 0.0.0.0:8080 plus 127.0.0.1:8080 does not fail
// with an address-in-use error at startup.
func DedupeListenAddrs(addrs []string) []string {
	wildcardPorts := make(map[string]struct{})
	for _, addr := range addrs {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			continue
		}
		if ip := net.ParseIP(host); ip != nil && ip.Equal(net.IPv4zero) {
			wildcardPorts[port] = struct{}{}
		}
	}

	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			result = append(result, addr)
			continue
		}
		ip := net.ParseIP(host)
		if ip != nil && ip.To4() != nil && !ip.Equal(net.IPv4zero) {
			if _, covered := wildcardPorts[port]; covered {
				continue
			}
		}
		result = append(result, addr)
	}
	return result
}
