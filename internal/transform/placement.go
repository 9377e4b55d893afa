package transform

import (
	"strings"
)

// Flags controls how a subscriber maps global positions onto its screen.
type Flags uint32

const (
	// FlagClip clamps positions into the visible region.
	FlagClip Flags = 1 << iota
	// FlagLocalOffset subtracts the configured offset before anything else.
	FlagLocalOffset
	// FlagHideRemote hides the cursor while it is outside the visible region.
	FlagHideRemote
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagClip, "clip"},
	{FlagLocalOffset, "local_offset"},
	{FlagHideRemote, "hide_remote"},
}

func (f Flags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseFlags parses a "clip|hide_remote" style list. Unknown names are
// reported through ok=false; known names are still applied.
func ParseFlags(s string) (f Flags, ok bool) {
	ok = true
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' || r == ' ' }) {
		found := false
		for _, fn := range flagNames {
			if strings.EqualFold(part, fn.name) {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found && part != "none" {
			ok = false
		}
	}
	return f, ok
}

// Placement describes where a subscriber's screen sits in the pad's global
// coordinate space.
type Placement struct {
	OffsetX int32
	OffsetY int32
	Width   int32
	Height  int32
	Flags   Flags
}

// Inside reports whether a local position lies in the visible region.
// A region with a zero dimension contains everything.
func (p Placement) Inside(x, y int32) bool {
	if p.Width <= 0 || p.Height <= 0 {
		return true
	}
	return x >= 0 && x <= p.Width && y >= 0 && y <= p.Height
}

// Apply maps a global position to a local one. inside is computed before
// clipping so callers can hide a cursor that has left the screen.
func (p Placement) Apply(x, y int32) (lx, ly int32, inside bool) {
	lx, ly = x, y
	if p.Flags&FlagLocalOffset != 0 {
		lx -= p.OffsetX
		ly -= p.OffsetY
	}
	inside = p.Inside(lx, ly)
	if p.Flags&FlagClip != 0 {
		lx, ly = p.Clip(lx, ly)
	}
	return lx, ly, inside
}

// Clip clamps a local position into [0,Width]×[0,Height]. A zero dimension
// leaves that axis untouched.
func (p Placement) Clip(x, y int32) (int32, int32) {
	if p.Width > 0 {
		x = clamp(x, 0, p.Width)
	}
	if p.Height > 0 {
		y = clamp(y, 0, p.Height)
	}
	return x, y
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
