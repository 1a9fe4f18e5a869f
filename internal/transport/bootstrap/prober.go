package bootstrap

import (
	"context"
	"fmt"
	"net"
	"time"

	"minhton/internal/domain"
	"minhton/internal/message"
	"minhton/internal/minhtonerr"
)

// Prober sends BootstrapDiscover to the multicast group and waits for a
// unicast BootstrapResponse on its own socket, retrying up to
// discoverRepeats times (§4.3 step 0).
type Prober struct {
	groupAddr *net.UDPAddr
	conn      *net.UDPConn
}

// NewProber resolves group (DefaultGroup if empty) and binds an ephemeral
// local UDP socket to send from and listen for replies on.
func NewProber(group string) (*Prober, error) {
	if group == "" {
		group = DefaultGroup
	}
	groupAddr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, err
	}
	return &Prober{groupAddr: groupAddr, conn: conn}, nil
}

// Close releases the local socket.
func (p *Prober) Close() error { return p.conn.Close() }

// Discover multicasts a BootstrapDiscover envelope built around self and
// eventID, retrying every discoverInterval until a well-formed
// BootstrapResponse arrives, ctx is cancelled, or discoverRepeats attempts
// are exhausted.
func (p *Prober) Discover(ctx context.Context, self domain.NodeInfo, eventID uint64) (message.Envelope, error) {
	env := message.Envelope{
		Sender:  self,
		EventID: eventID,
		Body:    &message.BootstrapDiscover{DiscoveryMessage: "minhton-discover"},
	}
	data, err := message.Serialize(env)
	if err != nil {
		return message.Envelope{}, err
	}

	for attempt := 0; attempt < discoverRepeats; attempt++ {
		select {
		case <-ctx.Done():
			return message.Envelope{}, ctx.Err()
		default:
		}
		if _, err := p.conn.WriteToUDP(data, p.groupAddr); err != nil {
			return message.Envelope{}, fmt.Errorf("%w: multicast discover: %v", minhtonerr.ErrTransportFatal, err)
		}

		deadline := time.Now().Add(discoverInterval)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		_ = p.conn.SetReadDeadline(deadline)

		buf := make([]byte, 64*1024)
		n, _, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			continue // timed out this attempt, retry
		}
		reply, derr := message.Deserialize(buf[:n])
		if derr != nil {
			continue
		}
		if reply.Body != nil && reply.Body.Type() == message.TypeBootstrapResponse {
			return reply, nil
		}
	}
	return message.Envelope{}, fmt.Errorf("%w: no bootstrap response after %d attempts", minhtonerr.ErrTimeout, discoverRepeats)
}
