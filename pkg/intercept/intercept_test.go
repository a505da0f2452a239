package intercept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portmux/portmux/pkg/shadow"
)

func shadowOctets(t *testing.T, name string) [4]byte {
	t.Helper()
	addr, err := shadow.Addr(name)
	require.NoError(t, err)
	return addr.As4()
}

func TestShadowRewriteConnect(t *testing.T) {
	rw, err := ShadowRewrite("workspace-1")
	require.NoError(t, err)

	out, changed := rw.RewriteConnect(SockaddrInet4{Port: 3000, Addr: [4]byte{127, 0, 0, 1}})
	assert.True(t, changed)
	assert.Equal(t, shadowOctets(t, "workspace-1"), out.Addr)
	assert.EqualValues(t, 3000, out.Port, "port must never be rewritten")

	// Non-loopback destinations pass through.
	ext := SockaddrInet4{Port: 443, Addr: [4]byte{93, 184, 216, 34}}
	out, changed = rw.RewriteConnect(ext)
	assert.False(t, changed)
	assert.Equal(t, ext, out)

	// Another workspace's shadow address is not a logical loopback either.
	other := SockaddrInet4{Port: 80, Addr: shadowOctets(t, "workspace-2")}
	_, changed = rw.RewriteConnect(other)
	assert.False(t, changed)
}

func TestShadowRewriteBindCapturesWildcard(t *testing.T) {
	rw, err := ShadowRewrite("workspace-1")
	require.NoError(t, err)

	want := shadowOctets(t, "workspace-1")

	out, changed := rw.RewriteBind(SockaddrInet4{Port: 8000, Addr: [4]byte{127, 0, 0, 1}})
	assert.True(t, changed)
	assert.Equal(t, want, out.Addr)

	out, changed = rw.RewriteBind(SockaddrInet4{Port: 8000, Addr: [4]byte{0, 0, 0, 0}})
	assert.True(t, changed)
	assert.Equal(t, want, out.Addr)

	out, changed = rw.RewriteBind(SockaddrInet4{Port: 8000, Addr: [4]byte{10, 0, 0, 5}})
	assert.False(t, changed)
	assert.Equal(t, [4]byte{10, 0, 0, 5}, out.Addr)
}

func TestShadowRestoreRoundTrip(t *testing.T) {
	rw, err := ShadowRewrite("workspace-1")
	require.NoError(t, err)

	orig := SockaddrInet4{Port: 9000, Addr: [4]byte{127, 0, 0, 1}}
	rewritten, changed := rw.RewriteBind(orig)
	require.True(t, changed)

	restored, changed := rw.Restore(rewritten)
	assert.True(t, changed)
	assert.Equal(t, orig, restored)

	// Addresses that are not this workspace's shadow stay as-is.
	foreign := SockaddrInet4{Port: 9000, Addr: shadowOctets(t, "workspace-2")}
	_, changed = rw.Restore(foreign)
	assert.False(t, changed)
}

func TestPassThroughTouchesNothing(t *testing.T) {
	rw := PassThrough()
	sa := SockaddrInet4{Port: 80, Addr: [4]byte{127, 0, 0, 1}}

	out, changed := rw.RewriteConnect(sa)
	assert.False(t, changed)
	assert.Equal(t, sa, out)
	out, changed = rw.RewriteBind(sa)
	assert.False(t, changed)
	assert.Equal(t, sa, out)
	out, changed = rw.Restore(sa)
	assert.False(t, changed)
	assert.Equal(t, sa, out)
}

func TestShadowRewriteEmptyWorkspace(t *testing.T) {
	_, err := ShadowRewrite("")
	require.ErrorIs(t, err, ErrShadowAddr)
	require.ErrorIs(t, err, shadow.ErrEmptyWorkspace)
}

func TestSockaddrInet4Codec(t *testing.T) {
	raw := make([]byte, SockaddrInet4Len)
	SockaddrInet4{Port: 3000, Addr: [4]byte{127, 0, 0, 1}}.Put(raw)

	sa, ok := ParseSockaddrInet4(raw)
	require.True(t, ok)
	assert.EqualValues(t, 3000, sa.Port)
	assert.Equal(t, [4]byte{127, 0, 0, 1}, sa.Addr)

	// Big-endian port on the wire.
	assert.Equal(t, byte(0x0b), raw[2])
	assert.Equal(t, byte(0xb8), raw[3])

	_, ok = ParseSockaddrInet4(raw[:8])
	assert.False(t, ok, "truncated sockaddr must not parse")

	raw[0] = 0
	raw[1] = 0
	_, ok = ParseSockaddrInet4(raw)
	assert.False(t, ok, "non-AF_INET family must not parse")
}
