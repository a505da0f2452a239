package proxy

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/portmux/portmux/pkg/api"
	"github.com/portmux/portmux/pkg/route"
)

// Hop-by-hop headers stripped on both directions of a plain HTTP exchange
// (RFC 7230 §6.1 plus the de-facto Proxy-Connection).
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
	"Proxy-Connection",
}

// handleConn serves one client connection: a sequence of plain HTTP
// exchanges, or a single upgrade/CONNECT tunnel.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)

	for {
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}

		key, err := route.Extract(req)
		if err != nil {
			s.logger.Debug("rejecting request", "err", err, "remote", conn.RemoteAddr().String())
			s.emit(&api.TunnelEvent{ID: uuid.NewString(), Kind: "http", Rejected: true, Reason: err.Error()})
			writeHTTPError(conn, http.StatusBadRequest, err.Error())
			return
		}

		target, err := key.DialAddr(s.cfg.GetUpstreamHost())
		if err != nil {
			writeHTTPError(conn, http.StatusBadRequest, err.Error())
			return
		}

		switch {
		case req.Method == http.MethodConnect:
			s.handleConnect(conn, br, key, target)
			return
		case isUpgrade(req):
			s.handleUpgrade(conn, br, req, key, target)
			return
		default:
			if !s.handleHTTP(conn, req, key, target) {
				return
			}
		}
	}
}

// handleHTTP forwards one plain exchange and reports whether the client
// connection can be reused for the next request.
func (s *Server) handleHTTP(conn net.Conn, req *http.Request, key route.Key, target string) bool {
	start := time.Now()
	id := uuid.NewString()

	upstream, err := net.DialTimeout("tcp", target, s.cfg.GetDialTimeout())
	if err != nil {
		s.logger.Debug("upstream dial failed", "target", target, "err", err)
		s.emit(&api.TunnelEvent{
			ID: id, Kind: "http", Workspace: key.Workspace, Port: key.Port,
			Target: target, Method: req.Method, Path: req.URL.Path,
			Rejected: true, Reason: "dial: " + err.Error(),
		})
		writeHTTPError(conn, http.StatusBadGateway, "upstream unavailable")
		return false
	}
	defer upstream.Close()

	scrubRoutingHeaders(req.Header)
	stripHopByHop(req.Header)

	if err := req.Write(upstream); err != nil {
		return false
	}

	resp, err := http.ReadResponse(bufio.NewReader(upstream), req)
	if err != nil {
		writeHTTPError(conn, http.StatusBadGateway, "upstream protocol error")
		return false
	}
	defer resp.Body.Close()

	stripHopByHop(resp.Header)

	if err := writeResponse(conn, resp); err != nil {
		return false
	}

	s.logger.Debug("proxied http",
		"method", req.Method, "path", req.URL.Path,
		"workspace", key.Workspace, "port", key.Port,
		"status", resp.StatusCode)
	s.emit(&api.TunnelEvent{
		ID: id, Kind: "http", Workspace: key.Workspace, Port: key.Port,
		Target: target, Method: req.Method, Path: req.URL.Path,
		StatusCode: resp.StatusCode, DurationMS: time.Since(start).Milliseconds(),
	})

	return !req.Close && !resp.Close
}

// handleUpgrade forwards an upgrade handshake (e.g. WebSocket). Only a 101
// from the upstream switches the connection into relay mode; any other
// response is forwarded as a normal exchange and the connection closes.
func (s *Server) handleUpgrade(conn net.Conn, br *bufio.Reader, req *http.Request, key route.Key, target string) {
	start := time.Now()
	id := uuid.NewString()

	upstream, err := net.DialTimeout("tcp", target, s.cfg.GetDialTimeout())
	if err != nil {
		s.emit(&api.TunnelEvent{
			ID: id, Kind: "upgrade", Workspace: key.Workspace, Port: key.Port,
			Target: target, Rejected: true, Reason: "dial: " + err.Error(),
		})
		writeHTTPError(conn, http.StatusBadGateway, "upstream unavailable")
		return
	}
	defer upstream.Close()

	// The upstream needs Connection/Upgrade intact to answer the
	// handshake; only the headers that are meaningless past this hop go.
	scrubRoutingHeaders(req.Header)
	for _, name := range []string{"Proxy-Connection", "Keep-Alive", "Te", "Trailers", "Transfer-Encoding"} {
		req.Header.Del(name)
	}

	if err := req.Write(upstream); err != nil {
		return
	}

	upstreamBR := bufio.NewReader(upstream)
	resp, err := http.ReadResponse(upstreamBR, req)
	if err != nil {
		writeHTTPError(conn, http.StatusBadGateway, "upstream protocol error")
		return
	}

	if resp.StatusCode != http.StatusSwitchingProtocols {
		defer resp.Body.Close()
		stripHopByHop(resp.Header)
		writeResponse(conn, resp)
		s.emit(&api.TunnelEvent{
			ID: id, Kind: "upgrade", Workspace: key.Workspace, Port: key.Port,
			Target: target, StatusCode: resp.StatusCode,
			DurationMS: time.Since(start).Milliseconds(),
		})
		return
	}

	if err := resp.Write(conn); err != nil {
		return
	}

	s.logger.Debug("upgrade tunnel established",
		"workspace", key.Workspace, "port", key.Port, "target", target)

	// Bytes the peers sent eagerly are sitting in the bufio readers;
	// the relay must drain those before the raw conns.
	relay(newBufferedConn(br, conn), newBufferedConn(upstreamBR, upstream))

	s.emit(&api.TunnelEvent{
		ID: id, Kind: "upgrade", Workspace: key.Workspace, Port: key.Port,
		Target: target, StatusCode: resp.StatusCode,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// handleConnect repurposes CONNECT as a tunnel-establishment handshake: the
// request-line authority is ignored, the routed target is dialed, and after
// the 200 every byte in both directions is relayed opaquely.
func (s *Server) handleConnect(conn net.Conn, br *bufio.Reader, key route.Key, target string) {
	start := time.Now()
	id := uuid.NewString()

	upstream, err := net.DialTimeout("tcp", target, s.cfg.GetDialTimeout())
	if err != nil {
		s.emit(&api.TunnelEvent{
			ID: id, Kind: "connect", Workspace: key.Workspace, Port: key.Port,
			Target: target, Rejected: true, Reason: "dial: " + err.Error(),
		})
		writeHTTPError(conn, http.StatusBadGateway, "upstream unavailable")
		return
	}
	defer upstream.Close()

	if _, err := io.WriteString(conn, "HTTP/1.1 200 Connection established\r\n\r\n"); err != nil {
		return
	}

	s.logger.Debug("connect tunnel established",
		"workspace", key.Workspace, "port", key.Port, "target", target)

	relay(newBufferedConn(br, conn), upstream)

	s.emit(&api.TunnelEvent{
		ID: id, Kind: "connect", Workspace: key.Workspace, Port: key.Port,
		Target: target, DurationMS: time.Since(start).Milliseconds(),
	})
}

func isUpgrade(req *http.Request) bool {
	if !strings.Contains(strings.ToLower(req.Header.Get("Connection")), "upgrade") {
		return false
	}
	return req.Header.Get("Upgrade") != ""
}

func scrubRoutingHeaders(h http.Header) {
	h.Del(api.HeaderPort)
	h.Del(api.HeaderWorkspace)
}

func stripHopByHop(h http.Header) {
	// Headers named by the Connection header are hop-by-hop too.
	for _, value := range h.Values("Connection") {
		for _, token := range strings.Split(value, ",") {
			if name := strings.TrimSpace(token); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

func writeHTTPError(conn net.Conn, status int, message string) {
	resp := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		status, http.StatusText(status), len(message), message)
	io.WriteString(conn, resp)
}

func writeResponse(conn net.Conn, resp *http.Response) error {
	bw := bufio.NewWriterSize(conn, 64*1024)
	if err := resp.Write(bw); err != nil {
		return err
	}
	return bw.Flush()
}
