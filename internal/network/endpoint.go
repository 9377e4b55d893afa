// Package network implements the pad/subscriber UDP protocol: the pad-side
// broadcast server and subscriber registry, and the subscriber-side discovery
// and sequence-gated receiver.
package network

import (
	"fmt"
	"net"
	"net/netip"
)

// Family is an IP address family.
type Family uint8

const (
	FamilyV4 Family = 4
	FamilyV6 Family = 6
)

func (f Family) String() string {
	switch f {
	case FamilyV4:
		return "ipv4"
	case FamilyV6:
		return "ipv6"
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// network returns the net package network name for a UDP socket of this family.
func (f Family) network() string {
	if f == FamilyV6 {
		return "udp6"
	}
	return "udp4"
}

// ParseFamily maps 4/6 to a Family.
func ParseFamily(n int) (Family, error) {
	switch n {
	case 4:
		return FamilyV4, nil
	case 6:
		return FamilyV6, nil
	}
	return 0, fmt.Errorf("address family %d: %w", n, ErrInvalidArgument)
}

// Endpoint is an IPv4 or IPv6 address and port. IPv4-mapped IPv6 addresses
// are stored as IPv4, so the same peer compares equal whichever socket family
// it was seen on. Endpoints are comparable and usable as map keys.
type Endpoint struct {
	ap netip.AddrPort
}

// NewEndpoint normalizes ap into an Endpoint.
func NewEndpoint(ap netip.AddrPort) Endpoint {
	return Endpoint{ap: netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())}
}

// EndpointFrom builds an Endpoint from an address and port.
func EndpointFrom(addr netip.Addr, port uint16) Endpoint {
	return NewEndpoint(netip.AddrPortFrom(addr, port))
}

// ParseEndpoint parses "ip:port" or "[ip6]:port".
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q: %w", s, ErrInvalidArgument)
	}
	return NewEndpoint(ap), nil
}

// Unspecified returns the wildcard address of the family with the given port.
func Unspecified(f Family, port uint16) Endpoint {
	if f == FamilyV6 {
		return EndpointFrom(netip.IPv6Unspecified(), port)
	}
	return EndpointFrom(netip.IPv4Unspecified(), port)
}

func endpointFromUDPAddr(a *net.UDPAddr) Endpoint {
	if a == nil {
		return Endpoint{}
	}
	return NewEndpoint(a.AddrPort())
}

func (e Endpoint) AddrPort() netip.AddrPort { return e.ap }
func (e Endpoint) Addr() netip.Addr         { return e.ap.Addr() }
func (e Endpoint) Port() uint16             { return e.ap.Port() }
func (e Endpoint) IsValid() bool            { return e.ap.IsValid() }

// Family reports the endpoint's address family.
func (e Endpoint) Family() Family {
	if e.ap.Addr().Is4() {
		return FamilyV4
	}
	return FamilyV6
}

// IsUnspecified reports whether the address is the wildcard address.
func (e Endpoint) IsUnspecified() bool {
	return e.ap.Addr().IsUnspecified()
}

// WithPort returns a copy with a different port.
func (e Endpoint) WithPort(port uint16) Endpoint {
	return Endpoint{ap: netip.AddrPortFrom(e.ap.Addr(), port)}
}

// UDPAddr converts to a *net.UDPAddr for the net package.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(e.ap)
}

func (e Endpoint) String() string {
	return e.ap.String()
}
