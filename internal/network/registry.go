package network

import (
	"net/netip"
	"sort"
	"sync"

	"magicmouse/internal/protocol"
)

// PacketWriter sends one datagram. *net.UDPConn satisfies it.
type PacketWriter interface {
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
}

type subscriber struct {
	viewport protocol.Rect
}

// Registry is the set of subscribers a server fans state out to. A subscriber
// stays registered until a send to it fails.
type Registry struct {
	mu   sync.Mutex
	subs map[Endpoint]subscriber
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[Endpoint]subscriber)}
}

// Add registers ep with no viewport. It reports false if ep was already present.
func (r *Registry) Add(ep Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[ep]; exists {
		return false
	}
	r.subs[ep] = subscriber{}
	return true
}

// Subscribe registers ep with a viewport, updating the viewport if ep is
// already present. It reports whether ep is new.
func (r *Registry) Subscribe(ep Endpoint, viewport protocol.Rect) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.subs[ep]
	r.subs[ep] = subscriber{viewport: viewport}
	return !exists
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Contains reports whether ep is registered.
func (r *Registry) Contains(ep Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[ep]
	return ok
}

// Endpoints returns a sorted snapshot of the registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	r.mu.Lock()
	eps := make([]Endpoint, 0, len(r.subs))
	for ep := range r.subs {
		eps = append(eps, ep)
	}
	r.mu.Unlock()

	sort.Slice(eps, func(i, j int) bool {
		return eps[i].AddrPort().Compare(eps[j].AddrPort()) < 0
	})
	return eps
}

// Deliver sends pkt to every subscriber, one attempt each, and removes the
// subscribers whose send failed. It returns the removed endpoints.
//
// Subscribers with a viewport receive mouse moves relative to its top-left
// corner.
func (r *Registry) Deliver(w PacketWriter, pkt *protocol.Packet) []Endpoint {
	data := protocol.Encode(pkt)

	r.mu.Lock()
	defer r.mu.Unlock()

	var pruned []Endpoint
	for ep, sub := range r.subs {
		out := data
		if pkt.Type == protocol.MsgMouseMove && !sub.viewport.Empty() {
			moved := *pkt
			moved.X -= sub.viewport.Left
			moved.Y -= sub.viewport.Top
			out = protocol.Encode(&moved)
		}

		if _, err := w.WriteToUDPAddrPort(out, ep.AddrPort()); err != nil {
			delete(r.subs, ep)
			pruned = append(pruned, ep)
		}
	}
	return pruned
}
