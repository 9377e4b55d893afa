package protocol

import "strings"

// Button is the canonical mouse button, independent of any wire revision.
type Button uint8

const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonRight
	ButtonMiddle
	ButtonX1
	ButtonX2
)

var buttonNames = [...]string{"none", "left", "right", "middle", "x1", "x2"}

func (b Button) String() string {
	if int(b) < len(buttonNames) {
		return buttonNames[b]
	}
	return "none"
}

// ParseButton maps a name such as "left" or "x1" to a Button.
func ParseButton(s string) (Button, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range buttonNames {
		if name == s {
			return Button(i), true
		}
	}
	return ButtonNone, false
}

// WireRevision identifies the button mapping in use on the wire.
const WireRevision = 1

// wireButtons is the revision 1 mapping. The values are single bits so a
// future revision can carry several pressed buttons in one byte.
var wireButtons = map[Button]uint8{
	ButtonLeft:   0x01,
	ButtonRight:  0x02,
	ButtonMiddle: 0x10,
	ButtonX1:     0x20,
	ButtonX2:     0x40,
}

var buttonsByWire = func() map[uint8]Button {
	m := make(map[uint8]Button, len(wireButtons))
	for b, w := range wireButtons {
		m[w] = b
	}
	return m
}()

// EncodeButton returns the wire value of b, 0 for ButtonNone or unknown buttons.
func EncodeButton(b Button) uint8 {
	return wireButtons[b]
}

// DecodeButton maps a wire value back to a Button. Unknown values yield ButtonNone.
func DecodeButton(w uint8) Button {
	if b, ok := buttonsByWire[w]; ok {
		return b
	}
	return ButtonNone
}
