package network

import "sync/atomic"

// Sequencer drops state updates that arrive late or twice. It accepts a
// sequence number only if it is strictly greater than the last one accepted.
type Sequencer struct {
	last atomic.Uint32
}

// Accept reports whether seq is newer than every sequence number accepted so
// far, and records it if so.
func (s *Sequencer) Accept(seq uint32) bool {
	for {
		last := s.last.Load()
		if seq <= last {
			return false
		}
		if s.last.CompareAndSwap(last, seq) {
			return true
		}
	}
}

// Last returns the last accepted sequence number, 0 before any.
func (s *Sequencer) Last() uint32 {
	return s.last.Load()
}

// Reset forgets the last accepted number.
func (s *Sequencer) Reset() {
	s.last.Store(0)
}
