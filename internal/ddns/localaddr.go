package ddns

import (
	"context"
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// LocalInterfaces is the allow-list consulted by LocalAddress.
var LocalInterfaces = []string{"en0", "en1", "eth0", "wlan0"}

// LocalAddress returns the IPv4 address of the first enumerated interface
// whose name is allow-listed.
// It is unrelated to the update cycle and never consulted by the Agent.
func LocalAddress(ctx context.Context) (string, bool) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return "", false
	}
	return pickLocalAddress(ifaces, LocalInterfaces)
}

func pickLocalAddress(ifaces psnet.InterfaceStatList, allow []string) (string, bool) {
	for _, iface := range ifaces {
		if !contains(allow, iface.Name) {
			continue
		}
		for _, a := range iface.Addrs {
			if ip := parseIPv4(a.Addr); ip != "" {
				return ip, true
			}
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// parseIPv4 accepts either a bare address or CIDR notation.
func parseIPv4(s string) string {
	s = strings.TrimSpace(s)
	if host, _, err := net.ParseCIDR(s); err == nil {
		s = host.String()
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return ""
	}
	return ip.To4().String()
}
