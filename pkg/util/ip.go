package util

import (
	"net"
	"strings"
)

// UnassignedIPv4 is what the console reports for an interface without an address.
const UnassignedIPv4 = "0.0.0.0"

// IsValidIPv4 checks if a string is a valid IPv4 address
func IsValidIPv4(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	return ip != nil && ip.To4() != nil
}

// IsAssignedIPv4 reports whether the console shows a real address (non-empty, non-zero).
func IsAssignedIPv4(ipStr string) bool {
	ipStr = strings.TrimSpace(ipStr)
	return IsValidIPv4(ipStr) && ipStr != UnassignedIPv4
}

// ParseNetmask parses a dotted-quad netmask and returns its prefix length.
// Non-contiguous masks are rejected.
func ParseNetmask(mask string) (int, bool) {
	ip := net.ParseIP(mask)
	if ip == nil || ip.To4() == nil {
		return 0, false
	}
	ones, bits := net.IPMask(ip.To4()).Size()
	if bits == 0 {
		return 0, false
	}
	return ones, true
}

// ComputeNetworkAddr returns the network address for a given IP and mask
func ComputeNetworkAddr(ipStr string, maskLen int) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	ip = ip.To4()
	if ip == nil {
		return ""
	}

	mask := net.CIDRMask(maskLen, 32)
	network := ip.Mask(mask)
	return network.String()
}

// SameSubnet reports whether a and b fall in the same IPv4 network under mask.
func SameSubnet(a, b, mask string) bool {
	maskLen, ok := ParseNetmask(mask)
	if !ok {
		return false
	}
	na := ComputeNetworkAddr(a, maskLen)
	return na != "" && na == ComputeNetworkAddr(b, maskLen)
}
