package input

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicmouse/internal/protocol"
	"magicmouse/internal/transform"
)

// Replayer applies a subscriber's placement to incoming pad state and drives
// an Injector with the result.
type Replayer struct {
	logger    zerolog.Logger
	injector  Injector
	placement transform.Placement

	mu      sync.Mutex
	visible bool // pad says the cursor is shown
	inside  bool // last position fell inside the visible region
	shown   bool // what the injector was last told
	known   bool // shown reflects a real SetCursorVisible call
}

// NewReplayer creates a replayer. The cursor is treated as visible until the
// pad says otherwise.
func NewReplayer(injector Injector, placement transform.Placement) *Replayer {
	return &Replayer{
		logger:    log.With().Str("module", "replay").Logger(),
		injector:  injector,
		placement: placement,
		visible:   true,
		inside:    true,
	}
}

// Placement returns the placement in use.
func (r *Replayer) Placement() transform.Placement {
	return r.placement
}

// MouseMove maps a global position and moves the local cursor, or hides it
// when hide-remote is set and the position is off screen.
func (r *Replayer) MouseMove(x, y int32) {
	lx, ly, inside := r.placement.Apply(x, y)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.inside = inside
	if r.placement.Flags&transform.FlagHideRemote != 0 {
		r.applyVisibility()
		if !inside {
			return
		}
	}

	if err := r.injector.MoveTo(lx, ly); err != nil {
		r.logger.Debug().Err(err).Int32("x", lx).Int32("y", ly).Msg("move failed")
	}
}

// MouseButton replays a button transition at the current cursor position.
func (r *Replayer) MouseButton(button protocol.Button, down bool) {
	if err := r.injector.Button(button, down); err != nil {
		r.logger.Debug().Err(err).Str("button", button.String()).Bool("down", down).Msg("button failed")
	}
}

// Visibility records whether the pad is showing the cursor.
func (r *Replayer) Visibility(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.visible = visible
	r.applyVisibility()
}

func (r *Replayer) applyVisibility() {
	want := r.visible
	if r.placement.Flags&transform.FlagHideRemote != 0 {
		want = want && r.inside
	}
	if r.known && r.shown == want {
		return
	}
	if err := r.injector.SetCursorVisible(want); err != nil {
		r.logger.Debug().Err(err).Bool("visible", want).Msg("visibility change failed")
		return
	}
	r.shown = want
	r.known = true
}
