package util

import (
	"net"
	"strconv"
)

// IsValidIPv4 reports whether s is a syntactically valid dotted-quad
// IPv4 address.  IPv6 and hostname forms are rejected; destination
// addresses in this system are always numeric IPv4.
func IsValidIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// IsValidPort reports whether p is a usable TCP port.
func IsValidPort(p int) bool {
	return p >= 1 && p <= 65535
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.  Used by
// tests that need a listener address.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
