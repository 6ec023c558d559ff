// Package privacy provides helpers for handling personally identifiable
// information in operational logs. Audit records keep the full client
// address; everything that goes to regular logs is anonymized first.
package privacy

import "net/netip"

// AnonymizeIP truncates an IP address to remove the host-identifying
// portion. IPv4 addresses lose the last octet (masked to /24); IPv6
// addresses keep only the /48 prefix.
//
// Returns "invalid" for unparseable addresses and "unknown" for empty ones.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}

	bits := 48
	if addr.Is4() || addr.Is4In6() {
		addr = addr.Unmap()
		bits = 24
	}

	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
