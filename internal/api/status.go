package api

import (
	"magicmouse/internal/network"
	"magicmouse/internal/pad"
	"magicmouse/internal/protocol"
)

// PadStatus assembles the status of a running pad.
type PadStatus struct {
	Instance string
	Version  string
	Server   *network.Server
	Pad      *pad.Pad
}

// Status implements StatusSource.
func (p *PadStatus) Status() protocol.StatusPayload {
	st := protocol.StatusPayload{
		Instance:    p.Instance,
		Version:     p.Version,
		Subscribers: []string{},
	}
	if p.Server != nil {
		st.Address = p.Server.LocalEndpoint().String()
		st.Sequence = p.Server.Sequence()
		for _, ep := range p.Server.Subscribers() {
			st.Subscribers = append(st.Subscribers, ep.String())
		}
	}
	if p.Pad != nil {
		st.Capturing = p.Pad.State() == pad.StateActive
	}
	return st
}

// Attach forwards server and pad events to the feed.
func (s *Server) Attach(srv *network.Server, p *pad.Pad) {
	if srv != nil {
		srv.OnSubscriberAdded(func(ep network.Endpoint) {
			s.Broadcast(protocol.Message{
				Type:    protocol.TypeSubscriberAdded,
				Payload: protocol.SubscriberPayload{Endpoint: ep.String()},
			})
		})
		srv.OnSubscriberRemoved(func(ep network.Endpoint) {
			s.Broadcast(protocol.Message{
				Type:    protocol.TypeSubscriberRemoved,
				Payload: protocol.SubscriberPayload{Endpoint: ep.String()},
			})
		})
	}
	if p != nil {
		p.OnCapture(func(active bool) {
			s.Broadcast(protocol.Message{
				Type:    protocol.TypeCapture,
				Payload: protocol.CapturePayload{Active: active},
			})
		})
	}
}
