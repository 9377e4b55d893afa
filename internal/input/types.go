// Package input connects the protocol to the local pointer: capture sources on
// the pad, and cursor injection on subscribers.
package input

import (
	"errors"

	"magicmouse/internal/protocol"
)

// ErrUnsupported is returned by platform adapters that are not available on
// the running OS.
var ErrUnsupported = errors.New("input: not supported on this platform")

// EventType is the kind of a captured event
type EventType string

const (
	EventMove   EventType = "mouse_move"
	EventButton EventType = "mouse_btn"
	EventKey    EventType = "key"
	EventResize EventType = "resize"
)

// Event represents a captured pointer or keyboard event
type Event struct {
	Type      EventType       `json:"type"`
	X         int32           `json:"x,omitempty"`       // mouse_move, local capture coordinates
	Y         int32           `json:"y,omitempty"`       // mouse_move
	Button    protocol.Button `json:"btn,omitempty"`     // mouse_btn
	Pressed   bool            `json:"pressed,omitempty"` // mouse_btn, key
	Key       string          `json:"key,omitempty"`     // key, by name ("Pause")
	Width     int32           `json:"width,omitempty"`   // resize
	Height    int32           `json:"height,omitempty"`  // resize
	Timestamp int64           `json:"ts"`                // Unix ms timestamp
}

// Capture is a source of local input events on the pad. While grabbed, the
// source keeps the cursor on the capture surface and swallows the events
// instead of letting them reach the local desktop.
type Capture interface {
	Start() error
	Stop() error
	Events() <-chan Event
	Grab(grab bool) error
}

// Cursor moves the pad's own cursor, used when the treadmill wraps it.
type Cursor interface {
	Warp(x, y int32) error
}

// Injector drives the local cursor on a subscriber.
type Injector interface {
	MoveTo(x, y int32) error
	Button(button protocol.Button, down bool) error
	SetCursorVisible(visible bool) error
}
