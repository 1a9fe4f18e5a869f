// Package bootstrap implements the overlay's entry-point discovery
// transport (§4.3, §6.2): a joining node multicasts a BootstrapDiscover
// datagram to a well-known group and unicasts back whichever
// BootstrapResponse arrives first. Unlike internal/transport/tcp this is
// UDP and request/response rather than a persistent framed stream, so it
// gets its own small package instead of reusing tcp.Server/tcp.Pool.
//
// The Go standard library's net.ListenMulticastUDP is sufficient for
// joining the multicast group; no third-party networking dependency is
// grounded for this piece anywhere in the example pack.
package bootstrap

import (
	"net"
	"time"
)

// DefaultGroup is the multicast group and port every participant joins to
// discover (or be discovered by) an entry point, unless overridden by
// config.BootstrapConfig.
const DefaultGroup = "224.1.1.1:11999"

// discoverRepeats bounds how many times a Prober re-sends BootstrapDiscover
// before giving up, mirroring the original source's bounded rediscovery
// attempts rather than retrying forever.
const discoverRepeats = 5

// discoverInterval is the wait between successive BootstrapDiscover
// re-sends and the read deadline applied to each attempt.
const discoverInterval = 2 * time.Second

// joinMulticastGroup resolves addr and joins it on every multicast-capable
// interface, returning a connection ready to Read incoming datagrams.
func joinMulticastGroup(addr string) (*net.UDPConn, error) {
	groupAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenMulticastUDP("udp4", nil, groupAddr)
}
