// Package transform maps cursor positions between the pad's capture surface,
// its unbounded global coordinate space, and each subscriber's screen.
package transform

import "sync"

// Treadmill lets a cursor that is confined to a W×H capture surface move
// without bounds. When the cursor leaves an edge it is put back on the
// opposite edge and the distance travelled is added to an accumulator, so
// local position plus accumulator is a global position that never jumps.
type Treadmill struct {
	mu     sync.Mutex
	width  int32
	height int32
	dx     int32
	dy     int32
}

// NewTreadmill creates a treadmill for a capture surface of the given size.
func NewTreadmill(width, height int32) *Treadmill {
	return &Treadmill{width: width, height: height}
}

// Resize sets the capture surface size. The accumulator is kept.
func (t *Treadmill) Resize(width, height int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.width = width
	t.height = height
}

// Size returns the capture surface size.
func (t *Treadmill) Size() (int32, int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width, t.height
}

// Wrap returns the local position the cursor should be moved to. In-range
// positions are returned unchanged; wrapped reports whether the caller must
// warp the cursor. An axis with a zero size never wraps.
func (t *Treadmill) Wrap(x, y int32) (wx, wy int32, wrapped bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wx, wy = x, y
	if t.width > 0 {
		switch {
		case x < 0:
			wx = t.width - 1
			t.dx -= t.width
			wrapped = true
		case x >= t.width:
			wx = 0
			t.dx += t.width
			wrapped = true
		}
	}
	if t.height > 0 {
		switch {
		case y < 0:
			wy = t.height - 1
			t.dy -= t.height
			wrapped = true
		case y >= t.height:
			wy = 0
			t.dy += t.height
			wrapped = true
		}
	}
	return wx, wy, wrapped
}

// Global translates a local position into global coordinates.
func (t *Treadmill) Global(x, y int32) (int32, int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return x + t.dx, y + t.dy
}

// Offset returns the accumulator.
func (t *Treadmill) Offset() (int32, int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dx, t.dy
}

// Reset clears the accumulator.
func (t *Treadmill) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dx, t.dy = 0, 0
}
