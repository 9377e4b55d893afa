package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicmouse/internal/protocol"
)

// Handler receives the accepted state updates of a Client, in order, from the
// client's receive goroutine.
type Handler interface {
	MouseMove(x, y int32)
	MouseButton(button protocol.Button, down bool)
	Visibility(visible bool)
}

// ClientState is the lifecycle position of a Client.
type ClientState int32

const (
	StateIdle ClientState = iota
	StateBound
	StateAnnounced
	StateReceiving
	StateStopped
)

func (s ClientState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBound:
		return "bound"
	case StateAnnounced:
		return "announced"
	case StateReceiving:
		return "receiving"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Discovery methods for ClientConfig.Discovery.
const (
	DiscoveryBroadcast = "broadcast"
	DiscoveryMDNS      = "mdns"
)

// ClientConfig configures a subscriber connection.
type ClientConfig struct {
	// Server is the pad address. The unspecified address of either family
	// means "discover"; its port is the discovery port.
	Server Endpoint
	// Local is the bind address. Invalid means the wildcard of the server's family.
	Local Endpoint
	// Timeout bounds discovery. 0 waits forever.
	Timeout time.Duration
	// RateLimit is the pause between discovery rounds.
	RateLimit time.Duration
	// Discovery selects DiscoveryBroadcast (default) or DiscoveryMDNS.
	Discovery string
	// DiscoveryTargets replaces the interface broadcast addresses.
	DiscoveryTargets []Endpoint
	// Viewport, when not empty, is sent in a Subscription instead of a plain
	// Connect so the pad translates moves into this rect.
	Viewport protocol.Rect
}

// Client is the subscriber side of the protocol. It registers with a pad and
// hands sequenced state updates to a Handler, dropping stale ones.
type Client struct {
	logger  zerolog.Logger
	handler Handler
	server  Endpoint
	conn    *net.UDPConn
	seq     Sequencer
	state   atomic.Int32
	wg      sync.WaitGroup
}

// Connect discovers the pad if needed, binds a socket, registers and starts
// receiving. The returned client must be closed.
func Connect(ctx context.Context, config ClientConfig, handler Handler) (*Client, error) {
	if handler == nil {
		return nil, fmt.Errorf("nil handler: %w", ErrInvalidArgument)
	}
	if !config.Server.IsValid() {
		return nil, fmt.Errorf("server address not set: %w", ErrInvalidArgument)
	}

	c := &Client{
		logger:  log.With().Str("module", "client").Logger(),
		handler: handler,
	}

	server := config.Server
	if server.IsUnspecified() {
		var err error
		server, err = discover(ctx, config)
		if err != nil {
			return nil, err
		}
	}
	c.server = server

	local := config.Local
	if !local.IsValid() {
		local = Unspecified(server.Family(), 0)
	}
	if local.Family() != server.Family() {
		if !local.IsUnspecified() {
			return nil, fmt.Errorf("local %s, server %s: %w", local, server, ErrAddressFamilyMismatch)
		}
		local = Unspecified(server.Family(), local.Port())
	}

	conn, err := net.ListenUDP(server.Family().network(), local.UDPAddr())
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w: %v", local, ErrTransport, err)
	}
	c.conn = conn
	c.state.Store(int32(StateBound))

	// Large read buffer for burst receives
	conn.SetReadBuffer(1 << 20) // 1 MB

	hello := &protocol.Packet{Type: protocol.MsgConnect}
	if !config.Viewport.Empty() {
		hello = &protocol.Packet{Type: protocol.MsgSubscription, Viewport: config.Viewport}
	}
	if _, err := conn.WriteToUDPAddrPort(protocol.Encode(hello), server.AddrPort()); err != nil {
		conn.Close()
		c.state.Store(int32(StateStopped))
		return nil, fmt.Errorf("register with %s: %w: %v", server, ErrTransport, err)
	}
	c.state.Store(int32(StateAnnounced))

	c.logger.Info().
		Str("server", server.String()).
		Str("local", c.LocalEndpoint().String()).
		Str("hello", hello.Type.String()).
		Msg("registered")

	c.state.Store(int32(StateReceiving))
	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

func discover(ctx context.Context, config ClientConfig) (Endpoint, error) {
	if config.Discovery == DiscoveryMDNS {
		return Browse(ctx, config.Timeout)
	}

	local := config.Local
	if local.IsValid() && local.Family() != FamilyV4 {
		if !local.IsUnspecified() {
			return Endpoint{}, fmt.Errorf("broadcast discovery from %s: %w", local, ErrAddressFamilyMismatch)
		}
		local = Endpoint{}
	}
	if local.IsValid() {
		local = local.WithPort(0)
	}

	return Discover(ctx, DiscoveryConfig{
		Port:      config.Server.Port(),
		Local:     local,
		Timeout:   config.Timeout,
		RateLimit: config.RateLimit,
		Targets:   config.DiscoveryTargets,
	})
}

// Server returns the pad endpoint the client registered with.
func (c *Client) Server() Endpoint {
	return c.server
}

// LocalEndpoint returns the bound address.
func (c *Client) LocalEndpoint() Endpoint {
	return endpointFromUDPAddr(c.conn.LocalAddr().(*net.UDPAddr))
}

// State returns the current lifecycle state.
func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// LastSequence returns the last accepted sequence number.
func (c *Client) LastSequence() uint32 {
	return c.seq.Last()
}

// readLoop decodes datagrams, gates state updates on their sequence number
// and dispatches the accepted ones. A read error ends the loop.
func (c *Client) readLoop() {
	defer c.wg.Done()

	buf := make([]byte, protocol.MaxPacketSize)
	for {
		n, _, err := c.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if c.State() != StateStopped && !errors.Is(err, net.ErrClosed) {
				c.logger.Err(err).Msg("read failed, receive loop stopped")
			}
			return
		}

		pkt, ok := protocol.Decode(buf[:n])
		if !ok {
			c.logger.Debug().Int("size", n).Msg("dropping undecodable datagram")
			continue
		}
		if !pkt.Type.IsState() {
			continue
		}
		if !c.seq.Accept(pkt.Seq) {
			c.logger.Debug().Uint32("seq", pkt.Seq).Uint32("last", c.seq.Last()).Msg("dropping stale update")
			continue
		}

		c.dispatch(&pkt)
	}
}

func (c *Client) dispatch(pkt *protocol.Packet) {
	switch pkt.Type {
	case protocol.MsgMouseMove:
		c.handler.MouseMove(pkt.X, pkt.Y)
	case protocol.MsgMouseButton:
		c.handler.MouseButton(pkt.Button, pkt.Down)
	case protocol.MsgVisibility:
		c.handler.Visibility(pkt.Visible)
	}
}

// Close stops receiving and waits for the receive goroutine to exit.
func (c *Client) Close() error {
	if ClientState(c.state.Swap(int32(StateStopped))) == StateStopped {
		return nil
	}
	err := c.conn.Close()
	c.wg.Wait()
	c.logger.Info().Msg("stopped")
	return err
}
