//go:build !darwin && !windows

package input

import (
	"magicmouse/internal/protocol"
)

// Stub implementation for platforms without an injector

// OSInjector represents a stub input injector
type OSInjector struct{}

// NewInjector creates a new stub injector
func NewInjector() *OSInjector {
	return &OSInjector{}
}

// MoveTo moves the cursor to an absolute position (stub)
func (i *OSInjector) MoveTo(x, y int32) error {
	return ErrUnsupported
}

// Warp moves the cursor without generating events (stub)
func (i *OSInjector) Warp(x, y int32) error {
	return ErrUnsupported
}

// Button injects a mouse button event (stub)
func (i *OSInjector) Button(button protocol.Button, down bool) error {
	return ErrUnsupported
}

// SetCursorVisible shows or hides the cursor (stub)
func (i *OSInjector) SetCursorVisible(visible bool) error {
	return ErrUnsupported
}
