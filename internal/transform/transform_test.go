package transform

import "testing"

func TestWrapLeftEdge(t *testing.T) {
	tm := NewTreadmill(1920, 1080)

	x, y, wrapped := tm.Wrap(-5, 500)
	if !wrapped || x != 1919 || y != 500 {
		t.Fatalf("Wrap(-5,500) = %d,%d,%v", x, y, wrapped)
	}
	if dx, dy := tm.Offset(); dx != -1920 || dy != 0 {
		t.Errorf("offset = %d,%d, want -1920,0", dx, dy)
	}
}

func TestWrapRightAndBottomEdge(t *testing.T) {
	tm := NewTreadmill(1920, 1080)

	x, y, wrapped := tm.Wrap(1920, 1080)
	if !wrapped || x != 0 || y != 0 {
		t.Fatalf("Wrap(1920,1080) = %d,%d,%v", x, y, wrapped)
	}
	if dx, dy := tm.Offset(); dx != 1920 || dy != 1080 {
		t.Errorf("offset = %d,%d, want 1920,1080", dx, dy)
	}
	if gx, gy := tm.Global(10, 20); gx != 1930 || gy != 1100 {
		t.Errorf("Global(10,20) = %d,%d", gx, gy)
	}
}

func TestWrapInRangeIsIdentity(t *testing.T) {
	tm := NewTreadmill(800, 600)
	for _, p := range [][2]int32{{0, 0}, {799, 599}, {400, 300}} {
		for i := 0; i < 2; i++ {
			x, y, wrapped := tm.Wrap(p[0], p[1])
			if wrapped || x != p[0] || y != p[1] {
				t.Errorf("Wrap(%v) = %d,%d,%v", p, x, y, wrapped)
			}
		}
	}
	if dx, dy := tm.Offset(); dx != 0 || dy != 0 {
		t.Errorf("offset changed: %d,%d", dx, dy)
	}
}

func TestWrapZeroSizeDisabled(t *testing.T) {
	tm := NewTreadmill(0, 0)
	x, y, wrapped := tm.Wrap(-100, 5000)
	if wrapped || x != -100 || y != 5000 {
		t.Errorf("Wrap on zero size = %d,%d,%v", x, y, wrapped)
	}
}

func TestResetAndResize(t *testing.T) {
	tm := NewTreadmill(100, 100)
	tm.Wrap(-1, -1)
	tm.Resize(200, 50)
	if w, h := tm.Size(); w != 200 || h != 50 {
		t.Errorf("Size = %d,%d", w, h)
	}
	if dx, dy := tm.Offset(); dx != -100 || dy != -100 {
		t.Errorf("resize dropped offset: %d,%d", dx, dy)
	}
	tm.Reset()
	if dx, dy := tm.Offset(); dx != 0 || dy != 0 {
		t.Errorf("offset after reset = %d,%d", dx, dy)
	}
}

func TestPlacementApply(t *testing.T) {
	tests := []struct {
		name   string
		p      Placement
		x, y   int32
		lx, ly int32
		inside bool
	}{
		{"no flags", Placement{Width: 100, Height: 100}, 150, -3, 150, -3, false},
		{"offset", Placement{OffsetX: 1920, Width: 1280, Height: 1024, Flags: FlagLocalOffset}, 2000, 10, 80, 10, true},
		{"clip", Placement{Width: 100, Height: 100, Flags: FlagClip}, 150, -3, 100, 0, false},
		{"offset and clip", Placement{OffsetX: -500, OffsetY: 50, Width: 400, Height: 300, Flags: FlagClip | FlagLocalOffset}, -600, 20, 0, 0, false},
		{"edge inclusive", Placement{Width: 100, Height: 100, Flags: FlagClip}, 100, 100, 100, 100, true},
		{"unbounded", Placement{Flags: FlagClip}, -7, 9, -7, 9, true},
	}

	for _, tt := range tests {
		lx, ly, inside := tt.p.Apply(tt.x, tt.y)
		if lx != tt.lx || ly != tt.ly || inside != tt.inside {
			t.Errorf("%s: Apply(%d,%d) = %d,%d,%v, want %d,%d,%v",
				tt.name, tt.x, tt.y, lx, ly, inside, tt.lx, tt.ly, tt.inside)
		}
	}
}

func TestClipIdempotent(t *testing.T) {
	p := Placement{Width: 640, Height: 480, Flags: FlagClip}
	for _, pt := range [][2]int32{{-10, -10}, {700, 500}, {320, 240}, {640, 0}} {
		x1, y1 := p.Clip(pt[0], pt[1])
		x2, y2 := p.Clip(x1, y1)
		if x1 != x2 || y1 != y2 {
			t.Errorf("Clip not idempotent for %v: %d,%d then %d,%d", pt, x1, y1, x2, y2)
		}
	}
}

func TestParseFlags(t *testing.T) {
	f, ok := ParseFlags("clip|hide_remote")
	if !ok || f != FlagClip|FlagHideRemote {
		t.Errorf("ParseFlags = %v, %v", f, ok)
	}
	if f.String() != "clip|hide_remote" {
		t.Errorf("String = %q", f.String())
	}
	if _, ok := ParseFlags("clip,bogus"); ok {
		t.Error("unknown flag accepted")
	}
	if f, ok := ParseFlags(""); !ok || f != 0 || f.String() != "none" {
		t.Errorf("empty = %v %v", f, ok)
	}
}
