package tcp

import (
	"context"
	"errors"
	"io"
	"net"

	"minhton/internal/ctxutil"
	"minhton/internal/logger"
	"minhton/internal/message"
)

// Handler processes one inbound envelope. It is invoked from a
// connection's single reader goroutine, one envelope at a time -- it must
// not block on anything but local computation, matching §2's
// single-threaded actor model per participant.
type Handler func(ctx context.Context, env message.Envelope)

// readBufferSize is the chunk size handed to FramingManager.ProcessNewData
// per Read call; it bounds nothing about message size, only how much of a
// large message is reassembled per syscall.
const readBufferSize = 64 * 1024

// runReadLoop decodes framed envelopes off conn until it errors or ctx is
// done, dispatching each to handler. It is shared by Server (inbound
// connections) and Pool (outbound connections reused bidirectionally),
// since both sides of a persistent peer connection read and write
// envelopes the same way.
func runReadLoop(ctx context.Context, conn net.Conn, handler Handler, lgr logger.Logger) {
	remote := conn.RemoteAddr().String()
	framer := NewFramingManager()
	buf := make([]byte, readBufferSize)

	for {
		if err := ctxutil.CheckContext(ctx); err != nil {
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := framer.ProcessNewData(buf[:n]); ferr != nil {
				lgr.Warn("framing error, closing connection", logger.F("remote", remote), logger.F("err", ferr))
				return
			}
			for {
				packet, ok := framer.NextPacket()
				if !ok {
					break
				}
				env, derr := message.Deserialize(packet)
				if derr != nil {
					lgr.Warn("dropping undecodable envelope", logger.F("remote", remote), logger.F("err", derr))
					continue
				}
				handler(ctx, env)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				lgr.Debug("connection read failed", logger.F("remote", remote), logger.F("err", err))
			}
			return
		}
	}
}

// writeEnvelope serializes env and writes it framed to conn.
func writeEnvelope(conn net.Conn, env message.Envelope) error {
	data, err := message.Serialize(env)
	if err != nil {
		return err
	}
	_, err = conn.Write(FrameMessage(data))
	return err
}
