package intercept

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// SockaddrInet4Len is the size of a raw sockaddr_in.
const SockaddrInet4Len = 16

// SockaddrInet4 is the decoded form of a sockaddr_in: just the pieces the
// rewrite layer cares about. The port stays in host byte order here and is
// never modified by any rewrite.
type SockaddrInet4 struct {
	Port uint16
	Addr [4]byte
}

// ParseSockaddrInet4 decodes a raw sockaddr_in. Returns false for
// non-AF_INET families or truncated buffers; such addresses must pass
// through the shim untouched.
//
// Layout: sa_family(2, native) + sin_port(2, big-endian) + sin_addr(4) +
// padding(8).
func ParseSockaddrInet4(raw []byte) (SockaddrInet4, bool) {
	if len(raw) < SockaddrInet4Len {
		return SockaddrInet4{}, false
	}
	if binary.NativeEndian.Uint16(raw[0:2]) != unix.AF_INET {
		return SockaddrInet4{}, false
	}
	var sa SockaddrInet4
	sa.Port = binary.BigEndian.Uint16(raw[2:4])
	copy(sa.Addr[:], raw[4:8])
	return sa, true
}

// Put encodes the address back into a raw sockaddr_in buffer in place,
// preserving the caller's padding bytes.
func (sa SockaddrInet4) Put(raw []byte) {
	if len(raw) < SockaddrInet4Len {
		return
	}
	binary.NativeEndian.PutUint16(raw[0:2], unix.AF_INET)
	binary.BigEndian.PutUint16(raw[2:4], sa.Port)
	copy(raw[4:8], sa.Addr[:])
}
