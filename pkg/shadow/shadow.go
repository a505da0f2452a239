// Package shadow derives per-workspace loopback addresses.
//
// Every workspace name maps to a deterministic IPv4 address inside 127/8.
// The mapping is a pure function: any process (the interception shim inside a
// workspace, or the proxy outside of it) computes the same address from the
// same name with no shared state, registry, or IPC. Ports are never part of
// the mapping; the kernel's address+port uniqueness check is what enforces
// isolation between workspaces.
package shadow

import (
	"hash/fnv"
	"net/netip"
)

// Addr returns the shadow loopback address for a workspace name.
//
// The name is hashed (FNV-1a, case-sensitive) into the low three octets of a
// 127.x.y.z address. Case sensitivity means callers deriving names from
// case-insensitive sources must normalize before calling; the routing
// layer's Host form folds to lowercase for exactly this reason. Degenerate results are perturbed deterministically: a
// last octet of 0 becomes 1, 255 becomes 254, and the value that would equal
// plain 127.0.0.1 is nudged to 127.0.1.1 so shadow addresses never collide
// with the non-isolated default loopback.
func Addr(workspace string) (netip.Addr, error) {
	if workspace == "" {
		return netip.Addr{}, ErrEmptyWorkspace
	}

	h := fnv.New32a()
	h.Write([]byte(workspace))
	sum := h.Sum32()

	b1 := byte(sum >> 16)
	b2 := byte(sum >> 8)
	b3 := byte(sum)

	switch b3 {
	case 0:
		b3 = 1
	case 255:
		b3 = 254
	}
	if b1 == 0 && b2 == 0 && b3 == 1 {
		b2 = 1
	}

	return netip.AddrFrom4([4]byte{127, b1, b2, b3}), nil
}

// AddrPort returns the shadow address joined with a logical port. The port is
// carried through unchanged.
func AddrPort(workspace string, port uint16) (netip.AddrPort, error) {
	addr, err := Addr(workspace)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(addr, port), nil
}
