//go:build darwin

package input

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <ApplicationServices/ApplicationServices.h>

// Check if we have accessibility permissions
static bool hasAccessibilityPermissions() {
    return AXIsProcessTrusted();
}

static void postMouseEvent(CGEventType type, CGFloat x, CGFloat y, CGMouseButton button) {
    CGEventRef event = CGEventCreateMouseEvent(NULL, type, CGPointMake(x, y), button);
    if (event == NULL) {
        return;
    }
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

static CGPoint currentMousePosition() {
    CGEventRef event = CGEventCreate(NULL);
    CGPoint cursor = CGEventGetLocation(event);
    CFRelease(event);
    return cursor;
}

// Move the cursor without generating a mouse event
static void warpCursor(CGFloat x, CGFloat y) {
    CGWarpMouseCursorPosition(CGPointMake(x, y));
    CGAssociateMouseAndMouseCursorPosition(true);
}

static void setCursorVisible(bool visible) {
    if (visible) {
        CGDisplayShowCursor(kCGDirectMainDisplay);
    } else {
        CGDisplayHideCursor(kCGDirectMainDisplay);
    }
}
*/
import "C"

import (
	"fmt"
	"sync"

	"magicmouse/internal/protocol"
)

// OSInjector drives the cursor through CoreGraphics.
type OSInjector struct {
	mu      sync.Mutex
	pressed map[protocol.Button]bool
}

// NewInjector creates a new CoreGraphics injector
func NewInjector() *OSInjector {
	return &OSInjector{pressed: make(map[protocol.Button]bool)}
}

func checkAccessibility() error {
	if !bool(C.hasAccessibilityPermissions()) {
		return fmt.Errorf("accessibility permission required for input injection")
	}
	return nil
}

type cgButton struct {
	button C.CGMouseButton
	down   C.CGEventType
	up     C.CGEventType
	drag   C.CGEventType
}

var cgButtons = map[protocol.Button]cgButton{
	protocol.ButtonLeft:   {C.kCGMouseButtonLeft, C.kCGEventLeftMouseDown, C.kCGEventLeftMouseUp, C.kCGEventLeftMouseDragged},
	protocol.ButtonRight:  {C.kCGMouseButtonRight, C.kCGEventRightMouseDown, C.kCGEventRightMouseUp, C.kCGEventRightMouseDragged},
	protocol.ButtonMiddle: {C.kCGMouseButtonCenter, C.kCGEventOtherMouseDown, C.kCGEventOtherMouseUp, C.kCGEventOtherMouseDragged},
	protocol.ButtonX1:     {3, C.kCGEventOtherMouseDown, C.kCGEventOtherMouseUp, C.kCGEventOtherMouseDragged},
	protocol.ButtonX2:     {4, C.kCGEventOtherMouseDown, C.kCGEventOtherMouseUp, C.kCGEventOtherMouseDragged},
}

// MoveTo moves the cursor to an absolute position, as a drag while a button is held.
func (i *OSInjector) MoveTo(x, y int32) error {
	if err := checkAccessibility(); err != nil {
		return err
	}

	i.mu.Lock()
	eventType := C.CGEventType(C.kCGEventMouseMoved)
	button := C.CGMouseButton(C.kCGMouseButtonLeft)
	for _, b := range []protocol.Button{protocol.ButtonLeft, protocol.ButtonRight, protocol.ButtonMiddle, protocol.ButtonX1, protocol.ButtonX2} {
		if i.pressed[b] {
			eventType = cgButtons[b].drag
			button = cgButtons[b].button
			break
		}
	}
	i.mu.Unlock()

	C.postMouseEvent(eventType, C.CGFloat(x), C.CGFloat(y), button)
	return nil
}

// Warp moves the cursor without generating an event
func (i *OSInjector) Warp(x, y int32) error {
	C.warpCursor(C.CGFloat(x), C.CGFloat(y))
	return nil
}

// Button injects a button transition at the current cursor position
func (i *OSInjector) Button(button protocol.Button, down bool) error {
	if err := checkAccessibility(); err != nil {
		return err
	}
	b, ok := cgButtons[button]
	if !ok {
		return fmt.Errorf("unsupported button %s", button)
	}

	i.mu.Lock()
	i.pressed[button] = down
	i.mu.Unlock()

	eventType := b.up
	if down {
		eventType = b.down
	}
	pos := C.currentMousePosition()
	C.postMouseEvent(eventType, pos.x, pos.y, b.button)
	return nil
}

// SetCursorVisible shows or hides the cursor on the main display
func (i *OSInjector) SetCursorVisible(visible bool) error {
	C.setCursorVisible(C.bool(visible))
	return nil
}
