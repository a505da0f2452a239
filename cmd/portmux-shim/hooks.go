//go:build linux && cgo

// portmux-shim is the LD_PRELOAD library that gives a workspace process its
// own loopback address space.
//
// Build with:
//
//	go build -buildmode=c-shared -o portmux-shim.so ./cmd/portmux-shim
//
// The C side (interpose.c) interposes the libc socket calls and forwards
// IPv4 sockaddrs here; everything below is a thin dispatch into
// pkg/intercept. The workspace is re-resolved on every call so a shell that
// changes directory moves to the right address space immediately.
package main

/*
#cgo LDFLAGS: -ldl

#include <stddef.h>
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/portmux/portmux/pkg/api"
	"github.com/portmux/portmux/pkg/intercept"
	"github.com/portmux/portmux/pkg/shadow"
	"github.com/portmux/portmux/pkg/workspace"
)

// Rewrite kinds, mirrored by the PORTMUX_REWRITE_* defines in interpose.c.
const (
	rewriteKindBind    = 0
	rewriteKindConnect = 1
	rewriteKindRestore = 2
)

// Return codes, mirrored in interpose.c. A fault means the syscall must
// fail (EADDRNOTAVAIL) rather than proceed with the unrewritten address.
const (
	rewriteUnchanged = C.int(0)
	rewriteApplied   = C.int(1)
	rewriteFault     = C.int(-1)
)

func currentRewriter() (intercept.Rewriter, error) {
	if os.Getenv(api.EnvShimDisable) == "1" {
		return intercept.PassThrough(), nil
	}
	name, ok := workspace.FromEnv().Resolve()
	if !ok {
		return intercept.PassThrough(), nil
	}
	return intercept.ShadowRewrite(name)
}

//export portmuxRewriteSockaddr
func portmuxRewriteSockaddr(kind C.int, sa unsafe.Pointer, salen C.uint) C.int {
	if sa == nil || salen < intercept.SockaddrInet4Len {
		return rewriteUnchanged
	}
	raw := unsafe.Slice((*byte)(sa), int(salen))

	parsed, ok := intercept.ParseSockaddrInet4(raw)
	if !ok {
		return rewriteUnchanged
	}

	rw, err := currentRewriter()
	if err != nil {
		return rewriteFault
	}

	var out intercept.SockaddrInet4
	var changed bool
	switch int(kind) {
	case rewriteKindBind:
		out, changed = rw.RewriteBind(parsed)
	case rewriteKindConnect:
		out, changed = rw.RewriteConnect(parsed)
	case rewriteKindRestore:
		out, changed = rw.Restore(parsed)
	default:
		return rewriteUnchanged
	}

	if !changed {
		return rewriteUnchanged
	}
	out.Put(raw)
	return rewriteApplied
}

// portmuxShadowAddr writes the current workspace's shadow address into out
// (4 bytes). Returns 1 when a workspace is active, 0 when not, -1 on fault.
// Used by the getaddrinfo interposer to redirect localhost lookups.
//
//export portmuxShadowAddr
func portmuxShadowAddr(out unsafe.Pointer) C.int {
	if out == nil {
		return rewriteFault
	}
	if os.Getenv(api.EnvShimDisable) == "1" {
		return rewriteUnchanged
	}
	name, ok := workspace.FromEnv().Resolve()
	if !ok {
		return rewriteUnchanged
	}
	addr, err := shadow.Addr(name)
	if err != nil {
		return rewriteFault
	}
	octets := addr.As4()
	copy(unsafe.Slice((*byte)(out), 4), octets[:])
	return rewriteApplied
}

func main() {}
