package network

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/kataras/go-events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicmouse/internal/protocol"
)

// DefaultPort is used when a server is configured with port 0.
const DefaultPort = 47600

// ServerConfig configures the pad-side server.
type ServerConfig struct {
	// Address is the local bind address. Port 0 means DefaultPort.
	Address Endpoint
	// AnnouncePort is advertised in Announce replies so subscribers can be
	// pointed at a port other than the one discovery reached. 0 means
	// "use the source port".
	AnnouncePort uint16
}

// Server is the pad side of the protocol. It answers discovery, keeps the
// subscriber registry, and fans sequenced mouse state out to subscribers.
type Server struct {
	logger   zerolog.Logger
	emmiter  events.EventEmmiter
	config   ServerConfig
	conn     *net.UDPConn
	registry *Registry
	seq      uint32 // atomic, shared by every state message kind
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a server. Call Start to bind it.
func NewServer(config ServerConfig) *Server {
	return &Server{
		logger:   log.With().Str("module", "server").Logger(),
		emmiter:  events.New(),
		config:   config,
		registry: NewRegistry(),
	}
}

// Start binds the UDP socket and begins answering discovery and registrations.
func (s *Server) Start() error {
	addr := s.config.Address
	if !addr.IsValid() {
		addr = Unspecified(FamilyV4, DefaultPort)
	}
	if addr.Port() == 0 {
		addr = addr.WithPort(DefaultPort)
	}

	conn, err := net.ListenUDP(addr.Family().network(), addr.UDPAddr())
	if err != nil {
		return fmt.Errorf("bind %s: %w: %v", addr, ErrTransport, err)
	}
	s.conn = conn

	// 1 MB write buffer for burst writes
	conn.SetWriteBuffer(1 << 20)

	s.logger.Info().Str("address", s.LocalEndpoint().String()).Msg("listening")

	s.running.Store(true)
	s.wg.Add(1)
	go s.readLoop()

	return nil
}

// LocalEndpoint returns the bound address.
func (s *Server) LocalEndpoint() Endpoint {
	if s.conn == nil {
		return Endpoint{}
	}
	return endpointFromUDPAddr(s.conn.LocalAddr().(*net.UDPAddr))
}

// readLoop answers Discover and registers Connect/Subscription senders. Any
// other datagram is ignored.
func (s *Server) readLoop() {
	defer s.wg.Done()

	buf := make([]byte, protocol.MaxPacketSize)
	for {
		n, remote, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if s.running.Load() && !errors.Is(err, net.ErrClosed) {
				s.logger.Err(err).Msg("read failed, receive loop stopped")
			}
			return
		}

		pkt, ok := protocol.Decode(buf[:n])
		if !ok {
			s.logger.Debug().Int("size", n).Str("from", remote.String()).Msg("dropping undecodable datagram")
			continue
		}

		from := NewEndpoint(remote)
		switch pkt.Type {
		case protocol.MsgDiscover:
			announce := &protocol.Packet{
				Type: protocol.MsgAnnounce,
				Seq:  s.Sequence(),
				Port: s.config.AnnouncePort,
			}
			if _, err := s.conn.WriteToUDPAddrPort(protocol.Encode(announce), from.AddrPort()); err != nil {
				s.logger.Debug().Err(err).Str("to", from.String()).Msg("announce failed")
			}

		case protocol.MsgConnect:
			if s.registry.Add(from) {
				s.subscriberAdded(from)
			}

		case protocol.MsgSubscription:
			if s.registry.Subscribe(from, pkt.Viewport) {
				s.subscriberAdded(from)
			}
		}
	}
}

func (s *Server) subscriberAdded(ep Endpoint) {
	s.logger.Info().Str("endpoint", ep.String()).Msg("subscriber added")
	s.emmiter.Emit("subscriber_added", ep)
}

// MouseMove broadcasts a global cursor position.
func (s *Server) MouseMove(x, y int32) uint32 {
	return s.Broadcast(&protocol.Packet{Type: protocol.MsgMouseMove, X: x, Y: y})
}

// MouseButton broadcasts a button transition.
func (s *Server) MouseButton(button protocol.Button, down bool) uint32 {
	return s.Broadcast(&protocol.Packet{Type: protocol.MsgMouseButton, Button: button, Down: down})
}

// Visibility broadcasts whether subscribers should show the cursor.
func (s *Server) Visibility(visible bool) uint32 {
	return s.Broadcast(&protocol.Packet{Type: protocol.MsgVisibility, Visible: visible})
}

// Broadcast stamps pkt with the next sequence number and delivers it to every
// subscriber. Subscribers that cannot be reached are dropped. It returns the
// sequence number used.
func (s *Server) Broadcast(pkt *protocol.Packet) uint32 {
	pkt.Seq = atomic.AddUint32(&s.seq, 1)
	if !s.running.Load() {
		return pkt.Seq
	}

	for _, ep := range s.registry.Deliver(s.conn, pkt) {
		s.logger.Info().Str("endpoint", ep.String()).Msg("subscriber unreachable, removed")
		s.emmiter.Emit("subscriber_removed", ep)
	}
	return pkt.Seq
}

// Sequence returns the last sequence number used.
func (s *Server) Sequence() uint32 {
	return atomic.LoadUint32(&s.seq)
}

// Subscribers returns a snapshot of the registered subscribers.
func (s *Server) Subscribers() []Endpoint {
	return s.registry.Endpoints()
}

// HasSubscribers returns true if at least one subscriber is registered.
func (s *Server) HasSubscribers() bool {
	return s.registry.Len() > 0
}

func (s *Server) OnSubscriberAdded(listener func(ep Endpoint)) {
	s.emmiter.On("subscriber_added", func(payload ...any) {
		listener(payload[0].(Endpoint))
	})
}

func (s *Server) OnSubscriberRemoved(listener func(ep Endpoint)) {
	s.emmiter.On("subscriber_removed", func(payload ...any) {
		listener(payload[0].(Endpoint))
	})
}

// Stop closes the socket and waits for the receive loop to exit.
func (s *Server) Stop() {
	if !s.running.Swap(false) {
		return
	}
	s.conn.Close()
	s.wg.Wait()
	s.logger.Info().Msg("stopped")
}
