// Package sdk is a small client library for programs that talk to services
// through a portmux proxy.
//
// Usage:
//
//	client := sdk.New("127.0.0.1:8080").WithWorkspace("workspace-1")
//
//	// HTTP: the request URL's port becomes the routing port.
//	resp, err := client.HTTPClient().Get("http://localhost:3000/api/items")
//
//	// Raw TCP: a CONNECT tunnel to the workspace's port.
//	conn, err := client.Dial(ctx, 5432)
package sdk

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/portmux/portmux/internal/errx"
	"github.com/portmux/portmux/pkg/api"
)

// Client routes traffic through one portmux proxy. The zero value is not
// usable; construct with New.
type Client struct {
	proxyAddr string
	workspace string
	timeout   time.Duration
}

// New creates a Client for the proxy listening at proxyAddr (host:port).
func New(proxyAddr string) *Client {
	return &Client{
		proxyAddr: proxyAddr,
		timeout:   api.DefaultDialTimeout,
	}
}

// WithWorkspace pins all traffic to the named workspace's address space.
// Without it the proxy connects to its configured upstream host directly.
func (c *Client) WithWorkspace(name string) *Client {
	c.workspace = name
	return c
}

// WithTimeout sets the dial and handshake timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// HTTPClient returns an http.Client that sends every request through the
// proxy. The port of each request URL is carried as the routing port; the
// URL's host is otherwise ignored.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{
		Transport: &roundTripper{client: c, base: http.DefaultTransport},
		Timeout:   c.timeout,
	}
}

// Dial opens a raw TCP tunnel to the given port via a CONNECT handshake and
// returns the connection once the proxy reports the tunnel established.
func (c *Client) Dial(ctx context.Context, port uint16) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddr)
	if err != nil {
		return nil, errx.Wrap(ErrProxyUnreachable, err)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    nil,
		Host:   net.JoinHostPort("localhost", strconv.Itoa(int(port))),
		Header: http.Header{},
	}
	req.Header.Set(api.HeaderPort, strconv.Itoa(int(port)))
	if c.workspace != "" {
		req.Header.Set(api.HeaderWorkspace, c.workspace)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else if c.timeout > 0 {
		conn.SetDeadline(time.Now().Add(c.timeout))
	}

	if _, err := fmt.Fprintf(conn, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n", req.Host, req.Host); err != nil {
		conn.Close()
		return nil, errx.Wrap(ErrTunnelRejected, err)
	}
	if err := req.Header.Write(conn); err != nil {
		conn.Close()
		return nil, errx.Wrap(ErrTunnelRejected, err)
	}
	if _, err := conn.Write([]byte("\r\n")); err != nil {
		conn.Close()
		return nil, errx.Wrap(ErrTunnelRejected, err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, errx.Wrap(ErrTunnelRejected, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, errx.With(ErrTunnelRejected, ": proxy returned %s", resp.Status)
	}

	conn.SetDeadline(time.Time{})
	return &tunnelConn{Conn: conn, reader: br}, nil
}

type roundTripper struct {
	client *Client
	base   http.RoundTripper
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	port := req.URL.Port()
	if port == "" {
		if req.URL.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	out := req.Clone(req.Context())
	out.Header.Set(api.HeaderPort, port)
	if rt.client.workspace != "" {
		out.Header.Set(api.HeaderWorkspace, rt.client.workspace)
	}
	out.URL.Scheme = "http"
	out.URL.Host = rt.client.proxyAddr
	return rt.base.RoundTrip(out)
}

// tunnelConn drains bytes the response reader buffered past the CONNECT
// reply before reading from the socket.
type tunnelConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *tunnelConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

func (c *tunnelConn) CloseWrite() error {
	if tc, ok := c.Conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return c.Conn.Close()
}
