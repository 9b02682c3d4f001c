package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/require"
)

func entry(port int) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry("studio", "_nolook._tcp", Domain)
	e.HostName = "studio.local."
	e.Port = port
	return e
}

func TestFromEntryPrefersIPv4(t *testing.T) {
	e := entry(8000)
	e.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	e.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}

	ep, ok := FromEntry(e)
	require.True(t, ok)
	require.Equal(t, "studio", ep.Instance)
	require.Equal(t, "http://192.168.1.20:8000", ep.URL())
}

func TestFromEntryIPv6AndHostnameFallbacks(t *testing.T) {
	e := entry(8443)
	e.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	e.Text = []string{"path=/ignored", "scheme=HTTPS"}

	ep, ok := FromEntry(e)
	require.True(t, ok)
	require.Equal(t, "https://[fe80::1]:8443", ep.URL())

	ep, ok = FromEntry(entry(8000))
	require.True(t, ok)
	require.Equal(t, "http://studio.local:8000", ep.URL())
}

func TestFromEntryRejectsUnusable(t *testing.T) {
	_, ok := FromEntry(nil)
	require.False(t, ok)

	_, ok = FromEntry(entry(0))
	require.False(t, ok)

	e := entry(8000)
	e.HostName = ""
	_, ok = FromEntry(e)
	require.False(t, ok)
}
