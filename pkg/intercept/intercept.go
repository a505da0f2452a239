// Package intercept implements the address-rewrite capability behind the
// LD_PRELOAD shim.
//
// All interposed socket calls funnel into a Rewriter with exactly two
// variants: pass-through for processes outside any workspace, and
// shadow-rewrite for processes inside one. The package itself is pure Go and
// operates on sockaddr_in byte layouts; the FFI surface lives in
// cmd/portmux-shim.
package intercept

import (
	"github.com/portmux/portmux/internal/errx"
	"github.com/portmux/portmux/pkg/shadow"
)

var (
	loopback = [4]byte{127, 0, 0, 1}
	wildcard = [4]byte{0, 0, 0, 0}
)

// Rewriter maps IPv4 socket addresses between a workspace's logical view
// (plain 127.0.0.1) and its shadow address space. Implementations are
// stateless after construction and safe for concurrent use from any thread
// of the intercepted process.
type Rewriter interface {
	// RewriteConnect maps an outbound destination address. Returns the
	// address to use and whether it was changed.
	RewriteConnect(sa SockaddrInet4) (SockaddrInet4, bool)

	// RewriteBind maps a local bind address. Wildcard binds are captured
	// too, keeping workspace servers off external interfaces.
	RewriteBind(sa SockaddrInet4) (SockaddrInet4, bool)

	// Restore back-translates an address reported to the application
	// (getsockname, getpeername, accept) so code that introspects its
	// own sockets still sees plain loopback.
	Restore(sa SockaddrInet4) (SockaddrInet4, bool)
}

// PassThrough returns the Rewriter used outside any workspace: every address
// is left untouched.
func PassThrough() Rewriter {
	return passThrough{}
}

type passThrough struct{}

func (passThrough) RewriteConnect(sa SockaddrInet4) (SockaddrInet4, bool) { return sa, false }
func (passThrough) RewriteBind(sa SockaddrInet4) (SockaddrInet4, bool)    { return sa, false }
func (passThrough) Restore(sa SockaddrInet4) (SockaddrInet4, bool)        { return sa, false }

// ShadowRewrite returns the Rewriter for a named workspace. Construction
// fails if no shadow address can be derived; callers must then fail the
// intercepted syscall rather than fall back to the unrewritten address.
func ShadowRewrite(workspace string) (Rewriter, error) {
	addr, err := shadow.Addr(workspace)
	if err != nil {
		return nil, errx.Wrap(ErrShadowAddr, err)
	}
	return &shadowRewriter{addr: addr.As4()}, nil
}

type shadowRewriter struct {
	addr [4]byte
}

func (r *shadowRewriter) RewriteConnect(sa SockaddrInet4) (SockaddrInet4, bool) {
	if sa.Addr != loopback {
		return sa, false
	}
	sa.Addr = r.addr
	return sa, true
}

func (r *shadowRewriter) RewriteBind(sa SockaddrInet4) (SockaddrInet4, bool) {
	if sa.Addr != loopback && sa.Addr != wildcard {
		return sa, false
	}
	sa.Addr = r.addr
	return sa, true
}

func (r *shadowRewriter) Restore(sa SockaddrInet4) (SockaddrInet4, bool) {
	if sa.Addr != r.addr {
		return sa, false
	}
	sa.Addr = loopback
	return sa, true
}
