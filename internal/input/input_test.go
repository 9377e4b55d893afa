package input

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"magicmouse/internal/protocol"
	"magicmouse/internal/transform"
)

type recordingInjector struct {
	moves   [][2]int32
	buttons []protocol.Button
	visible []bool
}

func (r *recordingInjector) MoveTo(x, y int32) error {
	r.moves = append(r.moves, [2]int32{x, y})
	return nil
}

func (r *recordingInjector) Button(b protocol.Button, down bool) error {
	r.buttons = append(r.buttons, b)
	return nil
}

func (r *recordingInjector) SetCursorVisible(v bool) error {
	r.visible = append(r.visible, v)
	return nil
}

// TestParseEvent tests that script lines are parsed correctly
func TestParseEvent(t *testing.T) {
	tests := []struct {
		line  string
		want  Event
		delay time.Duration
		ok    bool
		err   bool
	}{
		{line: "move 10 -5", want: Event{Type: EventMove, X: 10, Y: -5}, ok: true},
		{line: "resize 1920 1080", want: Event{Type: EventResize, Width: 1920, Height: 1080}, ok: true},
		{line: "down left", want: Event{Type: EventButton, Button: protocol.ButtonLeft, Pressed: true}, ok: true},
		{line: "UP x2", want: Event{Type: EventButton, Button: protocol.ButtonX2}, ok: true},
		{line: "key Pause", want: Event{Type: EventKey, Key: "Pause", Pressed: true}, ok: true},
		{line: "keydown Ctrl", want: Event{Type: EventKey, Key: "Ctrl", Pressed: true}, ok: true},
		{line: "keyup Ctrl", want: Event{Type: EventKey, Key: "Ctrl"}, ok: true},
		{line: "keyup", err: true},
		{line: "sleep 20", delay: 20 * time.Millisecond},
		{line: "  # comment"},
		{line: ""},
		{line: "move 1", err: true},
		{line: "down thumb", err: true},
		{line: "jump 1 2", err: true},
	}

	for _, tt := range tests {
		ev, delay, ok, err := ParseEvent(tt.line)
		if (err != nil) != tt.err {
			t.Errorf("%q: err = %v", tt.line, err)
			continue
		}
		if ev != tt.want || delay != tt.delay || ok != tt.ok {
			t.Errorf("%q: got %+v %v %v", tt.line, ev, delay, ok)
		}
	}
}

// TestScriptCapture tests that a script is delivered in order and the channel closes
func TestScriptCapture(t *testing.T) {
	s := NewScriptCapture(strings.NewReader("resize 800 600\nbogus\nmove 1 2\nsleep 1\ndown right\n"))
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	var got []EventType
	for ev := range s.Events() {
		got = append(got, ev.Type)
	}
	want := []EventType{EventResize, EventMove, EventButton}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	s.Grab(true)
	if !s.Grabbed() {
		t.Error("Grab not recorded")
	}
}

// TestScriptKeyTaps tests that "key" presses and releases while keydown holds
func TestScriptKeyTaps(t *testing.T) {
	s := NewScriptCapture(strings.NewReader("key Ctrl\nkeydown Alt\nkeyup Alt\n"))
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	var got []string
	for ev := range s.Events() {
		got = append(got, fmt.Sprintf("%s %v", ev.Key, ev.Pressed))
	}
	want := "Ctrl true,Ctrl false,Alt true,Alt false"
	if strings.Join(got, ",") != want {
		t.Errorf("events = %v, want %s", got, want)
	}
}

// TestReplayerPlacement tests that moves are offset and clipped
func TestReplayerPlacement(t *testing.T) {
	inj := &recordingInjector{}
	r := NewReplayer(inj, transform.Placement{
		OffsetX: 1920,
		Width:   1280,
		Height:  1024,
		Flags:   transform.FlagLocalOffset | transform.FlagClip,
	})

	r.MouseMove(2000, 100)
	r.MouseMove(100, 100)
	r.MouseButton(protocol.ButtonLeft, true)

	if len(inj.moves) != 2 || inj.moves[0] != [2]int32{80, 100} || inj.moves[1] != [2]int32{0, 100} {
		t.Errorf("moves = %v", inj.moves)
	}
	if len(inj.buttons) != 1 || inj.buttons[0] != protocol.ButtonLeft {
		t.Errorf("buttons = %v", inj.buttons)
	}
	if len(inj.visible) != 0 {
		t.Errorf("visibility changed without hide_remote: %v", inj.visible)
	}
}

// TestReplayerHideRemote tests that the cursor hides while off screen
func TestReplayerHideRemote(t *testing.T) {
	inj := &recordingInjector{}
	r := NewReplayer(inj, transform.Placement{
		Width:  100,
		Height: 100,
		Flags:  transform.FlagHideRemote,
	})

	r.MouseMove(50, 50)  // shown
	r.MouseMove(500, 50) // hidden, not moved
	r.MouseMove(600, 50) // still hidden
	r.MouseMove(10, 10)  // shown again
	r.Visibility(false)  // pad released the cursor
	r.MouseMove(20, 20)  // moved but stays hidden

	if len(inj.moves) != 3 {
		t.Errorf("moves = %v, want 3", inj.moves)
	}
	want := []bool{true, false, true, false}
	if len(inj.visible) != len(want) {
		t.Fatalf("visibility = %v, want %v", inj.visible, want)
	}
	for i := range want {
		if inj.visible[i] != want[i] {
			t.Errorf("visibility[%d] = %v, want %v", i, inj.visible[i], want[i])
		}
	}
}
