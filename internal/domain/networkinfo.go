package domain

import "net/netip"

// NetworkInfo is an IPv4 address and port; it may be uninitialised, in
// which case IsValid reports false and no other field should be trusted.
type NetworkInfo struct {
	Addr netip.Addr
	Port uint16
}

// IsValid reports whether the network info carries a usable IPv4 endpoint.
func (n NetworkInfo) IsValid() bool {
	return n.Addr.IsValid() && n.Addr.Is4() && n.Port != 0
}

// String renders the endpoint as host:port, or "<uninitialized>".
func (n NetworkInfo) String() string {
	if !n.IsValid() {
		return "<uninitialized>"
	}
	return netip.AddrPortFrom(n.Addr, n.Port).String()
}

// NetworkInfoFromString parses a "host:port" address into a NetworkInfo.
func NetworkInfoFromString(s string) (NetworkInfo, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return NetworkInfo{}, err
	}
	return NetworkInfo{Addr: ap.Addr(), Port: ap.Port()}, nil
}
