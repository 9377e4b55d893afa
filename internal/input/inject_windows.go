//go:build windows

package input

import (
	"fmt"

	"golang.org/x/sys/windows"

	"magicmouse/internal/protocol"
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procSetCursorPos = user32.NewProc("SetCursorPos")
	procMouseEvent   = user32.NewProc("mouse_event")
	procShowCursor   = user32.NewProc("ShowCursor")
)

const (
	MOUSEEVENTF_LEFTDOWN   = 0x0002
	MOUSEEVENTF_LEFTUP     = 0x0004
	MOUSEEVENTF_RIGHTDOWN  = 0x0008
	MOUSEEVENTF_RIGHTUP    = 0x0010
	MOUSEEVENTF_MIDDLEDOWN = 0x0020
	MOUSEEVENTF_MIDDLEUP   = 0x0040
	MOUSEEVENTF_XDOWN      = 0x0080
	MOUSEEVENTF_XUP        = 0x0100

	XBUTTON1 = 0x0001
	XBUTTON2 = 0x0002
)

type winButton struct {
	down, up uintptr
	data     uintptr
}

var winButtons = map[protocol.Button]winButton{
	protocol.ButtonLeft:   {MOUSEEVENTF_LEFTDOWN, MOUSEEVENTF_LEFTUP, 0},
	protocol.ButtonRight:  {MOUSEEVENTF_RIGHTDOWN, MOUSEEVENTF_RIGHTUP, 0},
	protocol.ButtonMiddle: {MOUSEEVENTF_MIDDLEDOWN, MOUSEEVENTF_MIDDLEUP, 0},
	protocol.ButtonX1:     {MOUSEEVENTF_XDOWN, MOUSEEVENTF_XUP, XBUTTON1},
	protocol.ButtonX2:     {MOUSEEVENTF_XDOWN, MOUSEEVENTF_XUP, XBUTTON2},
}

// OSInjector drives the cursor through user32.
type OSInjector struct{}

// NewInjector creates a new user32 injector
func NewInjector() *OSInjector {
	return &OSInjector{}
}

// MoveTo moves the cursor to an absolute position
func (i *OSInjector) MoveTo(x, y int32) error {
	r, _, err := procSetCursorPos.Call(uintptr(x), uintptr(y))
	if r == 0 {
		return fmt.Errorf("SetCursorPos: %w", err)
	}
	return nil
}

// Warp moves the cursor, identical to MoveTo on Windows
func (i *OSInjector) Warp(x, y int32) error {
	return i.MoveTo(x, y)
}

// Button injects a button transition at the current cursor position
func (i *OSInjector) Button(button protocol.Button, down bool) error {
	b, ok := winButtons[button]
	if !ok {
		return fmt.Errorf("unsupported button %s", button)
	}
	flags := b.up
	if down {
		flags = b.down
	}
	procMouseEvent.Call(flags, 0, 0, b.data, 0)
	return nil
}

// SetCursorVisible shows or hides the cursor. ShowCursor keeps a display
// counter, so it is called until the counter is on the requested side of zero.
func (i *OSInjector) SetCursorVisible(visible bool) error {
	show := uintptr(0)
	if visible {
		show = 1
	}
	for n := 0; n < 16; n++ {
		r, _, _ := procShowCursor.Call(show)
		count := int32(r)
		if visible == (count >= 0) {
			return nil
		}
	}
	return fmt.Errorf("ShowCursor: display counter did not settle")
}
