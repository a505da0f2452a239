package shadow

import (
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddrKnownValues(t *testing.T) {
	cases := map[string]string{
		"workspace-1": "127.231.100.144",
		"workspace-2": "127.231.105.73",
		"A":           "127.11.246.204",
		"B":           "127.11.251.133",
		"alpha":       "127.139.109.171",
		"demo":        "127.253.53.54",
	}
	for name, want := range cases {
		addr, err := Addr(name)
		require.NoError(t, err)
		assert.Equal(t, want, addr.String(), "workspace %q", name)
	}
}

func TestAddrDeterministic(t *testing.T) {
	first, err := Addr("workspace-7")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		again, err := Addr("workspace-7")
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestAddrDistinctNames(t *testing.T) {
	seen := make(map[netip.Addr]string)
	for i := 1; i <= 200; i++ {
		name := fmt.Sprintf("workspace-%d", i)
		addr, err := Addr(name)
		require.NoError(t, err)
		if prev, ok := seen[addr]; ok {
			t.Fatalf("collision: %q and %q both map to %s", prev, name, addr)
		}
		seen[addr] = name
	}
}

func TestAddrCaseSensitive(t *testing.T) {
	lower, err := Addr("alpha")
	require.NoError(t, err)
	upper, err := Addr("Alpha")
	require.NoError(t, err)
	assert.NotEqual(t, lower, upper)
}

func TestAddrStaysInUsableRange(t *testing.T) {
	localhost := netip.MustParseAddr("127.0.0.1")
	for i := 0; i < 100000; i++ {
		addr, err := Addr(fmt.Sprintf("ws-%d", i))
		require.NoError(t, err)
		octets := addr.As4()
		require.EqualValues(t, 127, octets[0])
		require.NotEqualValues(t, 0, octets[3], "addr %s has reserved last octet", addr)
		require.NotEqualValues(t, 255, octets[3], "addr %s has reserved last octet", addr)
		require.NotEqual(t, localhost, addr)
	}
}

func TestAddrEmptyName(t *testing.T) {
	_, err := Addr("")
	require.ErrorIs(t, err, ErrEmptyWorkspace)
}

func TestAddrPortPreservesPort(t *testing.T) {
	ap, err := AddrPort("workspace-1", 3000)
	require.NoError(t, err)
	assert.Equal(t, "127.231.100.144:3000", ap.String())

	_, err = AddrPort("", 3000)
	require.ErrorIs(t, err, ErrEmptyWorkspace)
}
