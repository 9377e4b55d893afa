package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"magicmouse/internal/protocol"
)

// DefaultRateLimit is the pause between discovery rounds when none is configured.
const DefaultRateLimit = 100 * time.Millisecond

// DiscoveryConfig controls a broadcast discovery run.
type DiscoveryConfig struct {
	// Port the pad listens on. 0 means DefaultPort.
	Port uint16
	// Local is the IPv4 address to send Discover requests from. Invalid means 0.0.0.0:0.
	Local Endpoint
	// Timeout bounds the whole run. 0 waits until found or cancelled.
	Timeout time.Duration
	// RateLimit is the pause between discovery rounds.
	RateLimit time.Duration
	// Targets replaces the interface broadcast addresses when set.
	Targets []Endpoint
}

// Discover broadcasts Discover requests until a pad answers with an Announce
// and returns the pad's endpoint. The first answer wins. A non-zero announced
// port replaces the port the answer came from.
func Discover(ctx context.Context, config DiscoveryConfig) (Endpoint, error) {
	logger := log.With().Str("module", "discovery").Logger()

	port := config.Port
	if port == 0 {
		port = DefaultPort
	}
	rate := config.RateLimit
	if rate <= 0 {
		rate = DefaultRateLimit
	}

	targets := append([]Endpoint(nil), config.Targets...)
	if len(targets) == 0 {
		var err error
		targets, err = BroadcastAddresses(port)
		if err != nil {
			return Endpoint{}, fmt.Errorf("list interfaces: %w: %v", ErrTransport, err)
		}
		if len(targets) == 0 {
			return Endpoint{}, fmt.Errorf("no interface with an IPv4 address: %w", ErrTransport)
		}
	}

	local := config.Local
	if !local.IsValid() {
		local = Unspecified(FamilyV4, 0)
	}
	if local.Family() != FamilyV4 {
		return Endpoint{}, fmt.Errorf("discovery from %s: %w", local, ErrAddressFamilyMismatch)
	}

	lc := net.ListenConfig{Control: setBroadcast}
	pc, err := lc.ListenPacket(ctx, "udp4", local.String())
	if err != nil {
		return Endpoint{}, fmt.Errorf("bind %s: %w: %v", local, ErrTransport, err)
	}
	conn := pc.(*net.UDPConn)

	found := make(chan Endpoint, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		buf := make([]byte, protocol.MaxPacketSize)
		for {
			n, remote, err := conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				return
			}
			pkt, ok := protocol.Decode(buf[:n])
			if !ok || pkt.Type != protocol.MsgAnnounce {
				continue
			}

			ep := NewEndpoint(remote)
			if pkt.Port != 0 {
				ep = ep.WithPort(pkt.Port)
			}
			found <- ep
			return
		}
	}()

	// The receiver must not outlive the call.
	defer func() {
		conn.Close()
		wg.Wait()
	}()

	start := time.Now()
	request := protocol.Encode(&protocol.Packet{Type: protocol.MsgDiscover})
	wait := time.NewTimer(rate)
	defer wait.Stop()

	var deadline <-chan time.Time
	if config.Timeout > 0 {
		timer := time.NewTimer(config.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for round := 1; ; round++ {
		select {
		case ep := <-found:
			logger.Info().Str("server", ep.String()).Int("rounds", round-1).Msg("server found")
			return ep, nil
		default:
		}
		if config.Timeout > 0 && time.Since(start) >= config.Timeout {
			return Endpoint{}, fmt.Errorf("after %d rounds: %w", round-1, ErrTimeout)
		}

		live := targets[:0]
		for _, target := range targets {
			if _, err := conn.WriteToUDPAddrPort(request, target.AddrPort()); err != nil {
				logger.Debug().Err(err).Str("target", target.String()).Msg("dropping discovery target")
				continue
			}
			live = append(live, target)
		}
		targets = live
		if len(targets) == 0 {
			return Endpoint{}, fmt.Errorf("no reachable discovery target: %w", ErrTransport)
		}

		wait.Reset(rate)
		select {
		case ep := <-found:
			logger.Info().Str("server", ep.String()).Int("rounds", round).Msg("server found")
			return ep, nil
		case <-deadline:
			return Endpoint{}, fmt.Errorf("after %d rounds: %w", round, ErrTimeout)
		case <-ctx.Done():
			return Endpoint{}, ctx.Err()
		case <-wait.C:
		}
	}
}

// BroadcastAddresses returns the IPv4 directed broadcast address of every
// interface that is up, loopback included, with the given port.
func BroadcastAddresses(port uint16) ([]Endpoint, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var eps []Endpoint
	seen := make(map[Endpoint]bool)
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			bcast, ok := broadcastAddr(ipnet)
			if !ok {
				continue // not an ipv4 address
			}
			ep := EndpointFrom(bcast, port)
			if !seen[ep] {
				seen[ep] = true
				eps = append(eps, ep)
			}
		}
	}
	return eps, nil
}

// broadcastAddr computes ip | ^mask for an IPv4 network.
func broadcastAddr(ipnet *net.IPNet) (netip.Addr, bool) {
	ip := ipnet.IP.To4()
	if ip == nil {
		return netip.Addr{}, false
	}
	mask := ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return netip.Addr{}, false
	}

	var b [4]byte
	for i := range b {
		b[i] = ip[i] | ^mask[i]
	}
	return netip.AddrFrom4(b), true
}

// IsTimeout reports whether err ended a discovery run without an answer.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
