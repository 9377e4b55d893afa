package network

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

// MDNSService is the DNS-SD service type pads advertise.
const MDNSService = "_magicmouse._udp"

const mdnsDomain = "local."

// Advertiser publishes a pad over mDNS until Shutdown.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the pad under MDNSService. instance identifies this pad
// in the TXT record.
func Advertise(instance string, port uint16) (*Advertiser, error) {
	host, _ := os.Hostname()
	server, err := zeroconf.Register(
		fmt.Sprintf("magicmouse-%s", host),
		MDNSService,
		mdnsDomain,
		int(port),
		[]string{"txtv=1", "id=" + instance},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("register mdns service: %w: %v", ErrTransport, err)
	}

	log.Info().Str("module", "mdns").Str("service", MDNSService).Uint16("port", port).Msg("service registered")
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
}

// Browse looks up the first pad advertised over mDNS. Timeout 0 waits until
// ctx is cancelled.
func Browse(ctx context.Context, timeout time.Duration) (Endpoint, error) {
	logger := log.With().Str("module", "mdns").Logger()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return Endpoint{}, fmt.Errorf("mdns resolver: %w: %v", ErrTransport, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, MDNSService, mdnsDomain, entries); err != nil {
		return Endpoint{}, fmt.Errorf("mdns browse: %w: %v", ErrTransport, err)
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return Endpoint{}, ctx.Err()
			}
			for _, ip := range entry.AddrIPv4 {
				addr, ok := netip.AddrFromSlice(ip.To4())
				if !ok {
					continue
				}
				ep := EndpointFrom(addr, uint16(entry.Port))
				logger.Info().Str("instance", entry.Instance).Str("server", ep.String()).Msg("server found")
				return ep, nil
			}
		case <-deadline:
			return Endpoint{}, fmt.Errorf("mdns: %w", ErrTimeout)
		case <-ctx.Done():
			return Endpoint{}, ctx.Err()
		}
	}
}
