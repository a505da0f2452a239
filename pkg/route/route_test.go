package route

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portmux/portmux/pkg/api"
	"github.com/portmux/portmux/pkg/shadow"
)

func newRequest(t *testing.T, headers map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://proxy.local/path", nil)
	for k, v := range headers {
		if k == "Host" {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}
	return req
}

func TestExtractFromHeaders(t *testing.T) {
	key, err := Extract(newRequest(t, map[string]string{
		api.HeaderWorkspace: "workspace-1",
		api.HeaderPort:      "3000",
	}))
	require.NoError(t, err)
	assert.Equal(t, Key{Workspace: "workspace-1", Port: 3000}, key)
}

func TestExtractPortOnlyHeader(t *testing.T) {
	key, err := Extract(newRequest(t, map[string]string{api.HeaderPort: "8080"}))
	require.NoError(t, err)
	assert.Equal(t, Key{Port: 8080}, key)
}

func TestExtractFromHost(t *testing.T) {
	cases := []struct {
		host string
		want Key
	}{
		{"workspace-1-3000.localhost", Key{Workspace: "workspace-1", Port: 3000}},
		{"a-3000.localhost", Key{Workspace: "a", Port: 3000}},
		{"a-3000.localhost:8080", Key{Workspace: "a", Port: 3000}},
		{"demo-80.proxy.example.com", Key{Workspace: "demo", Port: 80}},
	}
	for _, tc := range cases {
		key, err := Extract(newRequest(t, map[string]string{"Host": tc.host}))
		require.NoError(t, err, "host %q", tc.host)
		assert.Equal(t, tc.want, key, "host %q", tc.host)
	}
}

func TestExtractHostIsCaseInsensitive(t *testing.T) {
	// Host is case-insensitive on the wire; any casing of the same host
	// must land on the same routing key (and so the same shadow address).
	want := Key{Workspace: "alpha", Port: 3000}
	for _, host := range []string{"alpha-3000.localhost", "Alpha-3000.LOCALHOST", "ALPHA-3000.localhost"} {
		key, err := Extract(newRequest(t, map[string]string{"Host": host}))
		require.NoError(t, err, "host %q", host)
		assert.Equal(t, want, key, "host %q", host)
	}
}

func TestExtractHeaderWinsOverHost(t *testing.T) {
	key, err := Extract(newRequest(t, map[string]string{
		"Host":         "other-9999.localhost",
		api.HeaderPort: "3000",
	}))
	require.NoError(t, err)
	assert.Equal(t, Key{Port: 3000}, key)
}

func TestExtractBadPort(t *testing.T) {
	for _, port := range []string{"0", "65536", "-1", "http", ""} {
		headers := map[string]string{api.HeaderPort: port}
		_, err := Extract(newRequest(t, headers))
		require.Error(t, err, "port %q", port)
		if port != "" {
			assert.ErrorIs(t, err, ErrBadPort, "port %q", port)
		}
	}
}

func TestExtractMissingRoute(t *testing.T) {
	cases := []map[string]string{
		{"Host": "example.com"},
		{"Host": "api-v2.example.com"},
		{"Host": "no-dots-here"},
		{},
	}
	for _, headers := range cases {
		_, err := Extract(newRequest(t, headers))
		assert.ErrorIs(t, err, ErrMissingRoute, "headers %v", headers)
	}
}

func TestDialAddr(t *testing.T) {
	direct := Key{Port: 5432}
	addr, err := direct.DialAddr("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5432", addr)

	isolated := Key{Workspace: "workspace-1", Port: 3000}
	addr, err = isolated.DialAddr("127.0.0.1")
	require.NoError(t, err)

	want, err := shadow.AddrPort("workspace-1", 3000)
	require.NoError(t, err)
	assert.Equal(t, want.String(), addr)
}
