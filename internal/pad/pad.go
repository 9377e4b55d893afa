// Package pad turns local pointer input into broadcast mouse state. The pad
// is idle until the first click on its capture surface, then grabs the
// pointer and streams global positions until the cancel key releases it.
package pad

import (
	"sync"
	"sync/atomic"

	"github.com/kataras/go-events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicmouse/internal/hotkey"
	"magicmouse/internal/input"
	"magicmouse/internal/protocol"
	"magicmouse/internal/transform"
)

// DefaultCancelKey releases capture.
const DefaultCancelKey = "Pause"

// Broadcaster fans mouse state out to subscribers. *network.Server satisfies it.
type Broadcaster interface {
	MouseMove(x, y int32) uint32
	MouseButton(button protocol.Button, down bool) uint32
	Visibility(visible bool) uint32
}

// State is the capture state of a pad.
type State int32

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "idle"
}

// Config configures a pad.
type Config struct {
	// Width and Height are the capture surface size. Capture cannot start
	// until both are known, either from here or from a resize event.
	Width  int32
	Height int32
	// CancelKey is the hotkey that releases capture.
	CancelKey string
}

// Pad is the capture state machine sitting between a capture source and a
// broadcaster.
type Pad struct {
	logger    zerolog.Logger
	emmiter   events.EventEmmiter
	config    Config
	capture   input.Capture
	cursor    input.Cursor
	server    Broadcaster
	treadmill *transform.Treadmill
	hotkeys   *hotkey.Manager
	state     atomic.Int32

	wg           sync.WaitGroup
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	doneOnce     sync.Once
}

// New creates a pad. cursor may be nil when the capture source cannot be warped.
func New(config Config, capture input.Capture, cursor input.Cursor, server Broadcaster) *Pad {
	if config.CancelKey == "" {
		config.CancelKey = DefaultCancelKey
	}

	p := &Pad{
		logger:    log.With().Str("module", "pad").Logger(),
		emmiter:   events.New(),
		config:    config,
		capture:   capture,
		cursor:    cursor,
		server:    server,
		treadmill: transform.NewTreadmill(config.Width, config.Height),
		hotkeys:   hotkey.NewManager(),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	p.hotkeys.Register(config.CancelKey, p.Release)
	return p
}

// Start starts the capture source and processes its events in the background.
func (p *Pad) Start() error {
	if err := p.capture.Start(); err != nil {
		return err
	}

	p.logger.Info().Str("cancel_key", p.config.CancelKey).Msg("waiting for first click")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.doneOnce.Do(func() { close(p.done) })

		events := p.capture.Events()
		for {
			select {
			case <-p.shutdown:
				return
			case ev, ok := <-events:
				if !ok {
					p.logger.Info().Msg("capture source ended")
					return
				}
				p.Handle(ev)
			}
		}
	}()

	return nil
}

// Done is closed when the capture source runs dry or the pad shuts down.
func (p *Pad) Done() <-chan struct{} {
	return p.done
}

// Handle processes one captured event.
func (p *Pad) Handle(ev input.Event) {
	switch ev.Type {
	case input.EventResize:
		p.treadmill.Resize(ev.Width, ev.Height)
		p.logger.Debug().Int32("width", ev.Width).Int32("height", ev.Height).Msg("capture surface resized")

	case input.EventKey:
		p.hotkeys.UpdateState(ev.Key, ev.Pressed)

	case input.EventButton:
		if p.State() == StateIdle {
			if ev.Pressed && p.sizeKnown() {
				// the activating click is not forwarded
				p.Activate()
			}
			return
		}
		p.server.MouseButton(ev.Button, ev.Pressed)

	case input.EventMove:
		if p.State() != StateActive {
			return
		}
		x, y, wrapped := p.treadmill.Wrap(ev.X, ev.Y)
		if wrapped && p.cursor != nil {
			if err := p.cursor.Warp(x, y); err != nil {
				p.logger.Debug().Err(err).Msg("warp failed")
			}
		}
		gx, gy := p.treadmill.Global(x, y)
		p.server.MouseMove(gx, gy)
	}
}

func (p *Pad) sizeKnown() bool {
	w, h := p.treadmill.Size()
	return w > 0 && h > 0
}

// Activate grabs the pointer and shows the cursor on subscribers.
func (p *Pad) Activate() {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateActive)) {
		return
	}
	if err := p.capture.Grab(true); err != nil {
		p.logger.Warn().Err(err).Msg("grab failed")
	}
	p.server.Visibility(true)
	p.logger.Info().Msg("capture active")
	p.emmiter.Emit("capture", true)
}

// Release gives the pointer back and hides the cursor on subscribers.
func (p *Pad) Release() {
	if !p.state.CompareAndSwap(int32(StateActive), int32(StateIdle)) {
		return
	}
	if err := p.capture.Grab(false); err != nil {
		p.logger.Warn().Err(err).Msg("ungrab failed")
	}
	p.server.Visibility(false)
	p.logger.Info().Msg("capture released")
	p.emmiter.Emit("capture", false)
}

// State returns the capture state.
func (p *Pad) State() State {
	return State(p.state.Load())
}

// Offset returns the treadmill accumulator.
func (p *Pad) Offset() (int32, int32) {
	return p.treadmill.Offset()
}

func (p *Pad) OnCapture(listener func(active bool)) {
	p.emmiter.On("capture", func(payload ...any) {
		listener(payload[0].(bool))
	})
}

// Shutdown releases capture, stops the source and waits for the event loop.
// Calls after the first are no-ops.
func (p *Pad) Shutdown() error {
	var err error
	p.shutdownOnce.Do(func() {
		p.logger.Info().Msgf("shutdown")

		p.Release()
		close(p.shutdown)
		err = p.capture.Stop()
		p.wg.Wait()
		p.doneOnce.Do(func() { close(p.done) })
	})
	return err
}
