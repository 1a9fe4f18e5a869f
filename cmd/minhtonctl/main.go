// Command minhtonctl is an interactive client for probing a running
// participant's entity-search surface (§4.7), grounded on the teacher's
// cmd/client liner REPL, adapted from the DHT's put/get/delete vocabulary
// to MINHTON's query/inquire/subscribe one. Since the overlay's wire
// protocol is fire-and-forget rather than request/response RPC, the
// client runs its own small inbound listener and correlates replies onto
// it by the RefEventID they echo, the same role a participant's own TCP server plays for
// its peers.
package main

import (
	"minhton/internal/domain"
	"minhton/internal/message"
	"minhton/internal/transport/tcp"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "address of a MINHTON participant (entry point)")
	timeout := flag.Duration("timeout", 5*time.Second, "round-trip timeout")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	c, err := newClient()
	if err != nil {
		log.Fatalf("failed to start local listener: %v", err)
	}
	defer c.close()

	currentAddr := *addr
	fmt.Printf("minhton interactive client. Target %s\n", currentAddr)
	fmt.Println("Available commands: query/inquire/subscribe/unsubscribe/use/exit")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(fmt.Sprintf("minhton[%s]> ", currentAddr))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Aborted")
				continue
			}
			break
		}
		line.AppendHistory(input)

		args := strings.Fields(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		cmd := args[0]
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)

		switch cmd {
		case "query":
			if len(args) < 2 {
				fmt.Println("Usage: query <key-or-prefix> [all|some]")
				break
			}
			scope := message.ScopeSome
			if len(args) >= 3 && args[2] == "all" {
				scope = message.ScopeAll
			}
			start := time.Now()
			reply, err := c.request(ctx, currentAddr, &message.FindQueryRequest{Query: args[1], Scope: scope})
			delay := time.Since(start)
			if err != nil {
				fmt.Printf("query failed: %v | latency=%s\n", err, delay)
				break
			}
			answer, ok := reply.(*message.FindQueryAnswer)
			if !ok {
				fmt.Printf("unexpected reply type %T\n", reply)
				break
			}
			fmt.Printf("matched %d node(s) | latency=%s\n", len(answer.Nodes), delay)
			for _, n := range answer.Nodes {
				fmt.Printf("  - %s\n", n.String())
			}

		case "inquire":
			if len(args) < 2 {
				fmt.Println("Usage: inquire <key> [key...]")
				break
			}
			start := time.Now()
			reply, err := c.request(ctx, currentAddr, &message.AttributeInquiryRequest{Keys: args[1:]})
			delay := time.Since(start)
			if err != nil {
				fmt.Printf("inquire failed: %v | latency=%s\n", err, delay)
				break
			}
			answer, ok := reply.(*message.AttributeInquiryAnswer)
			if !ok {
				fmt.Printf("unexpected reply type %T\n", reply)
				break
			}
			fmt.Printf("%d attribute(s) from %s | latency=%s\n", len(answer.Attributes), answer.Node.String(), delay)
			for _, a := range answer.Attributes {
				fmt.Printf("  - %s = %s (ts=%d)\n", a.Key, a.Value, a.Timestamp)
			}

		case "subscribe", "unsubscribe":
			if len(args) < 2 {
				fmt.Printf("Usage: %s <key> [key...]\n", cmd)
				break
			}
			if err := c.send(ctx, currentAddr, &message.SubscriptionOrder{Keys: args[1:], Subscribe: cmd == "subscribe"}); err != nil {
				fmt.Printf("%s failed: %v\n", cmd, err)
			} else {
				fmt.Println("ok")
			}

		case "use":
			if len(args) < 2 {
				fmt.Println("Usage: use <addr>")
				break
			}
			currentAddr = args[1]
			fmt.Printf("switched target to %s\n", currentAddr)

		case "exit", "quit":
			fmt.Println("Bye!")
			cancel()
			return

		default:
			fmt.Printf("unknown command: %s\n", cmd)
		}

		cancel()
	}
}

// client is a minimal standalone participant: just enough of §6.1's
// framing and §6.3's envelope handling to send one request and wait for
// its correlated reply, without the FSM/routing machinery a real
// participant carries.
type client struct {
	listener net.Listener
	self     domain.NetworkInfo
	ids      *message.EventIDGenerator

	mu      sync.Mutex
	pending map[uint64]chan message.Envelope
}

func newClient() (*client, error) {
	lis, err := net.Listen("tcp4", "0.0.0.0:0")
	if err != nil {
		return nil, err
	}
	self, err := domain.NetworkInfoFromString(lis.Addr().String())
	if err != nil {
		lis.Close()
		return nil, err
	}

	c := &client{
		listener: lis,
		self:     self,
		ids:      message.NewEventIDGenerator(),
		pending:  make(map[uint64]chan message.Envelope),
	}
	go c.acceptLoop()
	return c, nil
}

func (c *client) close() error { return c.listener.Close() }

func (c *client) acceptLoop() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		go c.readOne(conn)
	}
}

// readOne decodes exactly the replies a participant would ever send us
// unsolicited over a fresh connection: one envelope per inbound dial.
func (c *client) readOne(conn net.Conn) {
	defer conn.Close()
	framer := tcp.NewFramingManager()
	buf := make([]byte, 64*1024)
	for !framer.HasPackets() {
		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := framer.ProcessNewData(buf[:n]); ferr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
	packet, _ := framer.NextPacket()
	env, err := message.Deserialize(packet)
	if err != nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[env.RefEventID]
	if ok {
		delete(c.pending, env.RefEventID)
	}
	c.mu.Unlock()
	if ok {
		ch <- env
	}
}

// dummyFanout is used only so a self-identifying NodeInfo passes
// domain.NodeInfo.Initialised(); this client has no real tree position.
const dummyFanout = 2

// request dials addr, sends body correlated under a freshly minted event
// id, and blocks for the reply sharing that id as its RefEventID.
func (c *client) request(ctx context.Context, addr string, body message.Variant) (message.Variant, error) {
	ch := make(chan message.Envelope, 1)
	eventID := c.ids.Next()
	c.mu.Lock()
	c.pending[eventID] = ch
	c.mu.Unlock()

	if err := c.dialAndSend(ctx, addr, eventID, body); err != nil {
		c.mu.Lock()
		delete(c.pending, eventID)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case env := <-ch:
		return env.Body, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, eventID)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// send dials addr and writes body without waiting for a reply, for
// messages the protocol never answers (SubscriptionOrder).
func (c *client) send(ctx context.Context, addr string, body message.Variant) error {
	return c.dialAndSend(ctx, addr, c.ids.Next(), body)
}

func (c *client) dialAndSend(ctx context.Context, addr string, eventID uint64, body message.Variant) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	env := message.Envelope{
		Sender: domain.NodeInfo{
			Position: domain.LogicalPosition{Fanout: dummyFanout},
			Network:  c.self,
		},
		Target:  fullyInitialisedTarget(),
		EventID: eventID,
		Body:    body,
	}
	data, err := message.Serialize(env)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	_, err = conn.Write(tcp.FrameMessage(data))
	return err
}

// fullyInitialisedTarget satisfies Envelope.Validate's Target check: this
// client does not track the addressee's real logical position, and the
// receiving participant never inspects env.Target for routing (it already
// is the addressee), only Validate cares that it looks initialised.
func fullyInitialisedTarget() domain.NodeInfo {
	return domain.NodeInfo{
		Position: domain.LogicalPosition{Fanout: dummyFanout},
		Network:  domain.NetworkInfo{Addr: netip.MustParseAddr("127.0.0.1"), Port: 1},
	}
}
