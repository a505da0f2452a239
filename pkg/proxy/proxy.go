// Package proxy implements the routing reverse proxy: one externally
// reachable listener multiplexing HTTP, WebSocket-style upgrades, and raw
// CONNECT tunnels into per-workspace shadow address spaces.
//
// The proxy never holds routing state. Each inbound request carries its own
// (workspace, port) key, and the dial target is recomputed from the same
// translation function the interception shim applies inside workspaces.
package proxy

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/portmux/portmux/internal/errx"
	"github.com/portmux/portmux/pkg/api"
)

// Options carries the optional collaborators a Server can be wired with.
type Options struct {
	// Logger receives structured proxy logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Events receives a TunnelEvent per exchange/tunnel. Sends are
	// non-blocking; a full channel drops events rather than stalling the
	// data path.
	Events chan api.Event
}

// Server accepts client connections on one or more listeners and tunnels
// each to its routed upstream. Every connection is handled by its own
// goroutine; connections share no mutable state.
type Server struct {
	cfg    *api.Config
	logger *slog.Logger
	events chan api.Event

	listeners []net.Listener

	mu     sync.Mutex
	closed bool
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup

	totalConns  atomic.Uint64
	activeConns atomic.Int64
}

// Stats is a snapshot of connection counters.
type Stats struct {
	TotalConnections  uint64 `json:"total_connections"`
	ActiveConnections int64  `json:"active_connections"`
}

// New binds all configured listen addresses. Binding everything up front
// keeps startup failures (ports in use, bad addresses) out of the serve
// path. Close any returned *Server even when Start was never called.
func New(cfg *api.Config, opts *Options) (*Server, error) {
	if cfg == nil || len(cfg.ListenAddrs) == 0 {
		return nil, ErrNoListeners
	}

	s := &Server{
		cfg:    cfg,
		logger: slog.Default(),
		conns:  make(map[net.Conn]struct{}),
	}
	if opts != nil {
		if opts.Logger != nil {
			s.logger = opts.Logger
		}
		s.events = opts.Events
	}

	for _, addr := range cfg.ListenAddrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, bound := range s.listeners {
				bound.Close()
			}
			return nil, errx.With(ErrListen, " %s: %w", addr, err)
		}
		s.listeners = append(s.listeners, ln)
	}

	return s, nil
}

// Start launches one accept loop per listener and returns immediately.
func (s *Server) Start() {
	for _, ln := range s.listeners {
		s.wg.Add(1)
		go func(ln net.Listener) {
			defer s.wg.Done()
			s.acceptLoop(ln)
		}(ln)
		s.logger.Info("proxy listening", "addr", ln.Addr().String())
	}
}

// Addrs returns the bound listener addresses. Useful when listening on
// port 0.
func (s *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, ln := range s.listeners {
		addrs = append(addrs, ln.Addr())
	}
	return addrs
}

// Stats returns a snapshot of the connection counters.
func (s *Server) Stats() Stats {
	return Stats{
		TotalConnections:  s.totalConns.Load(),
		ActiveConnections: s.activeConns.Load(),
	}
}

// Close stops the listeners, closes every accepted connection, and waits for
// the handler goroutines to finish. Closing the accepted connections matters:
// a handler blocked reading an idle keep-alive client would otherwise hold
// shutdown hostage until that client went away.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	var errs []error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		s.totalConns.Add(1)
		s.activeConns.Add(1)
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			defer s.activeConns.Add(-1)
			defer s.untrack(conn)
			s.handleConn(conn)
		}(conn)
	}
}

// track registers an accepted connection for teardown in Close. Returns
// false when the server is already closed; the caller must drop the conn.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) emit(ev *api.TunnelEvent) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- api.Event{Type: "tunnel", Timestamp: time.Now().Unix(), Tunnel: ev}:
	default:
	}
}
