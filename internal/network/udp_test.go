package network

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"magicmouse/internal/protocol"
)

type event struct {
	kind    protocol.MsgID
	x, y    int32
	button  protocol.Button
	down    bool
	visible bool
}

type chanHandler chan event

func (h chanHandler) MouseMove(x, y int32) {
	h <- event{kind: protocol.MsgMouseMove, x: x, y: y}
}

func (h chanHandler) MouseButton(b protocol.Button, down bool) {
	h <- event{kind: protocol.MsgMouseButton, button: b, down: down}
}

func (h chanHandler) Visibility(v bool) {
	h <- event{kind: protocol.MsgVisibility, visible: v}
}

func (h chanHandler) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-h:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event{}
	}
}

// freePort returns a UDP port that was free a moment ago.
func freePort(t *testing.T) uint16 {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	return uint16(conn.LocalAddr().(*net.UDPAddr).Port)
}

func startServer(t *testing.T, announcePort uint16) *Server {
	t.Helper()
	s := NewServer(ServerConfig{
		Address:      EndpointFrom(netip.MustParseAddr("127.0.0.1"), freePort(t)),
		AnnouncePort: announcePort,
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientReceivesFromServer(t *testing.T) {
	s := startServer(t, 0)

	added := make(chan Endpoint, 1)
	s.OnSubscriberAdded(func(ep Endpoint) { added <- ep })

	h := make(chanHandler, 16)
	c, err := Connect(context.Background(), ClientConfig{Server: s.LocalEndpoint()}, h)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if c.State() != StateReceiving {
		t.Errorf("state = %s, want receiving", c.State())
	}

	select {
	case ep := <-added:
		if ep.Port() != c.LocalEndpoint().Port() {
			t.Errorf("added %s, client is %s", ep, c.LocalEndpoint())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never registered")
	}

	seq := s.MouseMove(100, -20)
	if ev := h.next(t); ev.kind != protocol.MsgMouseMove || ev.x != 100 || ev.y != -20 {
		t.Errorf("got %+v", ev)
	}
	s.MouseButton(protocol.ButtonRight, true)
	if ev := h.next(t); ev.kind != protocol.MsgMouseButton || ev.button != protocol.ButtonRight || !ev.down {
		t.Errorf("got %+v", ev)
	}
	s.Visibility(false)
	if ev := h.next(t); ev.kind != protocol.MsgVisibility || ev.visible {
		t.Errorf("got %+v", ev)
	}

	if c.LastSequence() != seq+2 {
		t.Errorf("LastSequence = %d, want %d", c.LastSequence(), seq+2)
	}
}

func TestClientDropsStaleSequence(t *testing.T) {
	// fake pad that sends hand-made sequence numbers
	pad, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer pad.Close()

	h := make(chanHandler, 16)
	c, err := Connect(context.Background(), ClientConfig{
		Server: endpointFromUDPAddr(pad.LocalAddr().(*net.UDPAddr)),
	}, h)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	buf := make([]byte, 64)
	pad.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, from, err := pad.ReadFromUDPAddrPort(buf)
	if err != nil {
		t.Fatalf("no connect received: %v", err)
	}
	if pkt, ok := protocol.Decode(buf[:n]); !ok || pkt.Type != protocol.MsgConnect {
		t.Fatalf("first datagram = %x", buf[:n])
	}

	send := func(p protocol.Packet) {
		pad.WriteToUDPAddrPort(protocol.Encode(&p), from)
	}
	send(protocol.Packet{Type: protocol.MsgMouseMove, Seq: 5, X: 1})
	send(protocol.Packet{Type: protocol.MsgMouseMove, Seq: 3, X: 2})
	send(protocol.Packet{Type: protocol.MsgMouseMove, Seq: 5, X: 3})
	send(protocol.Packet{Type: protocol.MsgAnnounce, Seq: 100})
	send(protocol.Packet{Type: protocol.MsgMouseMove, Seq: 6, X: 4})

	if ev := h.next(t); ev.x != 1 {
		t.Errorf("first event x = %d, want 1", ev.x)
	}
	if ev := h.next(t); ev.x != 4 {
		t.Errorf("second event x = %d, want 4", ev.x)
	}
	if c.LastSequence() != 6 {
		t.Errorf("LastSequence = %d, want 6", c.LastSequence())
	}
}

func TestSubscriptionViewport(t *testing.T) {
	s := startServer(t, 0)

	h := make(chanHandler, 16)
	c, err := Connect(context.Background(), ClientConfig{
		Server:   s.LocalEndpoint(),
		Viewport: protocol.Rect{Left: 1000, Top: 500, Width: 800, Height: 600},
	}, h)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	waitFor(t, "subscriber", s.HasSubscribers)
	s.MouseMove(1100, 650)
	if ev := h.next(t); ev.x != 100 || ev.y != 150 {
		t.Errorf("got %d,%d want 100,150", ev.x, ev.y)
	}
}

func TestServerPrunesOnSendFailure(t *testing.T) {
	s := startServer(t, 0)

	removed := make(chan Endpoint, 1)
	s.OnSubscriberRemoved(func(ep Endpoint) { removed <- ep })

	// an IPv6 endpoint cannot be reached from an IPv4 socket
	s.registry.Add(mustEndpoint(t, "[2001:db8::1]:9"))
	s.MouseMove(1, 1)

	select {
	case ep := <-removed:
		if ep.Family() != FamilyV6 {
			t.Errorf("removed %s", ep)
		}
	case <-time.After(time.Second):
		t.Fatal("unreachable subscriber not pruned")
	}
	if s.HasSubscribers() {
		t.Errorf("subscribers = %v", s.Subscribers())
	}
}

func TestSequenceSharedAcrossKinds(t *testing.T) {
	s := startServer(t, 0)
	a := s.MouseMove(0, 0)
	b := s.MouseButton(protocol.ButtonLeft, true)
	c := s.Visibility(true)
	if b != a+1 || c != b+1 || s.Sequence() != c {
		t.Errorf("sequence = %d,%d,%d (current %d)", a, b, c, s.Sequence())
	}
}

func TestConnectFamilyMismatch(t *testing.T) {
	_, err := Connect(context.Background(), ClientConfig{
		Server: mustEndpoint(t, "127.0.0.1:47600"),
		Local:  mustEndpoint(t, "[::1]:0"),
	}, make(chanHandler))
	if !errors.Is(err, ErrAddressFamilyMismatch) {
		t.Errorf("err = %v, want family mismatch", err)
	}
}

func TestConnectInvalidArgument(t *testing.T) {
	_, err := Connect(context.Background(), ClientConfig{}, make(chanHandler))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want invalid argument", err)
	}
}

func TestConnectDiscoversServer(t *testing.T) {
	s := startServer(t, 0)

	h := make(chanHandler, 4)
	c, err := Connect(context.Background(), ClientConfig{
		Server:           Unspecified(FamilyV4, s.LocalEndpoint().Port()),
		Timeout:          2 * time.Second,
		RateLimit:        20 * time.Millisecond,
		DiscoveryTargets: []Endpoint{s.LocalEndpoint()},
	}, h)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if c.Server() != s.LocalEndpoint() {
		t.Errorf("discovered %s, want %s", c.Server(), s.LocalEndpoint())
	}
	waitFor(t, "subscriber", s.HasSubscribers)
}

func TestDiscoverAnnouncedPort(t *testing.T) {
	s := startServer(t, 4242)

	ep, err := Discover(context.Background(), DiscoveryConfig{
		Timeout: 2 * time.Second,
		Targets: []Endpoint{s.LocalEndpoint()},
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if ep.Port() != 4242 || ep.Addr() != s.LocalEndpoint().Addr() {
		t.Errorf("Discover = %s, want 127.0.0.1:4242", ep)
	}
}

// silentTarget counts Discover requests and never answers.
func silentTarget(t *testing.T) (Endpoint, *atomic.Int32) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	var requests atomic.Int32
	go func() {
		buf := make([]byte, 64)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if pkt, ok := protocol.Decode(buf[:n]); ok && pkt.Type == protocol.MsgDiscover {
				requests.Add(1)
			}
		}
	}()
	return endpointFromUDPAddr(conn.LocalAddr().(*net.UDPAddr)), &requests
}

func TestDiscoverTimeout(t *testing.T) {
	target, requests := silentTarget(t)

	start := time.Now()
	_, err := Discover(context.Background(), DiscoveryConfig{
		Timeout:   500 * time.Millisecond,
		RateLimit: 100 * time.Millisecond,
		Targets:   []Endpoint{target},
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) || !IsTimeout(err) {
		t.Fatalf("err = %v, want timeout", err)
	}
	if errors.Is(err, ErrTransport) {
		t.Error("timeout reported as transport error")
	}
	if elapsed < 500*time.Millisecond {
		t.Errorf("gave up after %v", elapsed)
	}

	// let the last request land
	time.Sleep(50 * time.Millisecond)
	if n := requests.Load(); n < 1 || n > 5 {
		t.Errorf("sent %d requests, want 1..5", n)
	}
}

func TestDiscoverAllTargetsFail(t *testing.T) {
	// an IPv6 target cannot be written from the IPv4 discovery socket
	target := EndpointFrom(netip.MustParseAddr("::1"), 47600)

	start := time.Now()
	_, err := Discover(context.Background(), DiscoveryConfig{
		Port:      47600,
		Timeout:   2 * time.Second,
		RateLimit: 100 * time.Millisecond,
		Targets:   []Endpoint{target},
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if IsTimeout(err) {
		t.Error("unreachable targets reported as timeout")
	}
	if elapsed > time.Second {
		t.Errorf("gave up after %v, want well before the timeout", elapsed)
	}
}

func TestDiscoverWithoutTimeoutWaitsForCancel(t *testing.T) {
	target, _ := silentTarget(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := Discover(ctx, DiscoveryConfig{
		RateLimit: 50 * time.Millisecond,
		Targets:   []Endpoint{target},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context deadline", err)
	}
}

func TestClientCloseJoins(t *testing.T) {
	s := startServer(t, 0)
	c, err := Connect(context.Background(), ClientConfig{Server: s.LocalEndpoint()}, make(chanHandler, 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if c.State() != StateStopped {
		t.Errorf("state = %s", c.State())
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestEndpointParsing(t *testing.T) {
	ep := mustEndpoint(t, "[::ffff:192.168.0.4]:80")
	if ep.Family() != FamilyV4 || ep.String() != "192.168.0.4:80" {
		t.Errorf("mapped endpoint = %s (%s)", ep, ep.Family())
	}
	if !Unspecified(FamilyV6, 1).IsUnspecified() {
		t.Error("[::] not unspecified")
	}
	if _, err := ParseEndpoint("not-an-address"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v", err)
	}
	if _, err := ParseFamily(5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseFamily(5) err = %v", err)
	}
}
