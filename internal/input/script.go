package input

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicmouse/internal/protocol"
)

// ScriptCapture is a Capture that reads events from text, one per line:
//
//	resize 1920 1080
//	move 100 200
//	down left
//	up left
//	key Pause
//	keydown Ctrl
//	keyup Ctrl
//	sleep 50
//
// "key" taps the key: a press immediately followed by its release. Use
// keydown and keyup to hold a modifier across other lines. Blank lines and
// lines starting with '#' are skipped. It drives headless pads, such as one
// fed from a pipe, and tests.
type ScriptCapture struct {
	logger zerolog.Logger
	src    io.Reader
	events chan Event
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	grabbed bool
}

// NewScriptCapture creates a capture source reading from r.
func NewScriptCapture(r io.Reader) *ScriptCapture {
	return &ScriptCapture{
		logger: log.With().Str("module", "script").Logger(),
		src:    r,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

// ParseEvent parses one script line. ok is false for blank and comment lines.
func ParseEvent(line string) (ev Event, delay time.Duration, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Event{}, 0, false, nil
	}

	fields := strings.Fields(line)
	args := fields[1:]
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%q: want %d arguments, got %d", fields[0], n, len(args))
		}
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "move", "resize":
		if err := need(2); err != nil {
			return Event{}, 0, false, err
		}
		a, err1 := strconv.ParseInt(args[0], 10, 32)
		b, err2 := strconv.ParseInt(args[1], 10, 32)
		if err1 != nil || err2 != nil {
			return Event{}, 0, false, fmt.Errorf("%q: bad coordinates", line)
		}
		if strings.EqualFold(fields[0], "move") {
			return Event{Type: EventMove, X: int32(a), Y: int32(b)}, 0, true, nil
		}
		return Event{Type: EventResize, Width: int32(a), Height: int32(b)}, 0, true, nil

	case "down", "up":
		if err := need(1); err != nil {
			return Event{}, 0, false, err
		}
		b, ok := protocol.ParseButton(args[0])
		if !ok || b == protocol.ButtonNone {
			return Event{}, 0, false, fmt.Errorf("%q: unknown button", line)
		}
		return Event{Type: EventButton, Button: b, Pressed: strings.EqualFold(fields[0], "down")}, 0, true, nil

	case "key", "keydown", "keyup":
		if err := need(1); err != nil {
			return Event{}, 0, false, err
		}
		return Event{Type: EventKey, Key: args[0], Pressed: !strings.EqualFold(fields[0], "keyup")}, 0, true, nil

	case "sleep":
		if err := need(1); err != nil {
			return Event{}, 0, false, err
		}
		ms, err := strconv.Atoi(args[0])
		if err != nil || ms < 0 {
			return Event{}, 0, false, fmt.Errorf("%q: bad duration", line)
		}
		return Event{}, time.Duration(ms) * time.Millisecond, false, nil
	}

	return Event{}, 0, false, fmt.Errorf("unknown command %q", fields[0])
}

// Start begins reading the script in the background. The events channel is
// closed when the script ends or Stop is called.
func (s *ScriptCapture) Start() error {
	go s.run()
	return nil
}

func (s *ScriptCapture) run() {
	defer close(s.events)

	scanner := bufio.NewScanner(s.src)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		ev, delay, ok, err := ParseEvent(scanner.Text())
		if err != nil {
			s.logger.Warn().Err(err).Int("line", lineNo).Msg("skipping line")
			continue
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-s.done:
				return
			}
		}
		if !ok {
			continue
		}

		ev.Timestamp = time.Now().UnixMilli()
		if !s.emit(ev) {
			return
		}
		if isTap(scanner.Text()) {
			ev.Pressed = false
			if !s.emit(ev) {
				return
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Err(err).Msg("script read failed")
	}
}

func (s *ScriptCapture) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// isTap reports whether a line is a "key" command, which releases the key
// right after pressing it.
func isTap(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && strings.EqualFold(fields[0], "key")
}

// Stop ends the script early.
func (s *ScriptCapture) Stop() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Events returns the event channel.
func (s *ScriptCapture) Events() <-chan Event {
	return s.events
}

// Grab records the grab state; a script has no desktop to take over.
func (s *ScriptCapture) Grab(grab bool) error {
	s.mu.Lock()
	s.grabbed = grab
	s.mu.Unlock()
	s.logger.Debug().Bool("grab", grab).Msg("grab")
	return nil
}

// Grabbed reports the last grab state.
func (s *ScriptCapture) Grabbed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grabbed
}
