package bootstrap

import (
	"context"
	"net"

	"minhton/internal/logger"
	"minhton/internal/message"
)

// DiscoverHandler answers one inbound BootstrapDiscover envelope, returning
// the BootstrapResponse envelope to unicast back (ok == false means stay
// silent -- the usual case for a node that has not itself finished
// joining, per algorithm.Bootstrap.handleBootstrapDiscover).
type DiscoverHandler func(ctx context.Context, env message.Envelope) (reply message.Envelope, ok bool)

// Announcer joins the multicast discovery group and answers
// BootstrapDiscover datagrams for as long as Serve runs.
type Announcer struct {
	conn    *net.UDPConn
	handler DiscoverHandler
	lgr     logger.Logger
}

// NewAnnouncer joins group (DefaultGroup if empty) and returns an
// Announcer ready to Serve.
func NewAnnouncer(group string, handler DiscoverHandler, lgr logger.Logger) (*Announcer, error) {
	if group == "" {
		group = DefaultGroup
	}
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	conn, err := joinMulticastGroup(group)
	if err != nil {
		return nil, err
	}
	return &Announcer{conn: conn, handler: handler, lgr: lgr}, nil
}

// Close leaves the multicast group.
func (a *Announcer) Close() error { return a.conn.Close() }

// Serve reads discovery datagrams until ctx is done or the socket errors,
// replying unicast to whichever source address sent them.
func (a *Announcer) Serve(ctx context.Context) error {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, src, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		env, derr := message.Deserialize(buf[:n])
		if derr != nil {
			a.lgr.Warn("dropping undecodable discovery datagram", logger.F("src", src.String()), logger.F("err", derr))
			continue
		}
		if env.Body == nil || env.Body.Type() != message.TypeBootstrapDiscover {
			continue
		}
		reply, ok := a.handler(ctx, env)
		if !ok {
			continue
		}
		data, serr := message.Serialize(reply)
		if serr != nil {
			a.lgr.Warn("failed to serialize bootstrap response", logger.F("err", serr))
			continue
		}
		if _, werr := a.conn.WriteToUDP(data, src); werr != nil {
			a.lgr.Warn("failed to send bootstrap response", logger.F("src", src.String()), logger.F("err", werr))
		}
	}
}
