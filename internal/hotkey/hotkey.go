// Package hotkey matches key combinations such as the pad's cancel key
// against a stream of key and button transitions.
package hotkey

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// aliases maps alternative key names to the name used for matching.
var aliases = map[string]string{
	"BREAK":   "PAUSE",
	"CONTROL": "CTRL",
	"OPTION":  "ALT",
	"CMD":     "META",
	"WIN":     "META",
	"ESCAPE":  "ESC",
}

// Normalize upper-cases a key name and resolves aliases.
func Normalize(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	if alias, ok := aliases[key]; ok {
		return alias
	}
	return key
}

// Manager handles hotkey registration and matching
type Manager struct {
	logger       zerolog.Logger
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // map of current keys/buttons pressed
}

type registeredHotkey struct {
	parts    []string // e.g., ["CTRL", "ALT", "PAUSE"]
	original string
	callback func()
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		logger:       log.With().Str("module", "hotkey").Logger(),
		currentState: make(map[string]bool),
	}
}

// Register registers a hotkey string (e.g. "Pause", "Ctrl+Alt+Esc") and a callback.
func (m *Manager) Register(hotkeyStr string, callback func()) (int, error) {
	if hotkeyStr == "" {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.Split(hotkeyStr, "+")
	for i, p := range parts {
		parts[i] = Normalize(p)
	}

	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: hotkeyStr,
		callback: callback,
	})

	return len(m.hotkeys) - 1, nil
}

// Clear removes all registered hotkeys and forgets pressed keys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
	m.currentState = make(map[string]bool)
}

// UpdateState updates the internal state of a key or button and checks for
// matches. It reports whether a hotkey fired. Callbacks run on the caller's
// goroutine after the state lock is released.
func (m *Manager) UpdateState(key string, isDown bool) bool {
	m.mu.Lock()
	key = Normalize(key)
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	m.mu.Unlock()

	if !isDown {
		return false
	}

	matched := m.checkMatches(key)
	for _, hk := range matched {
		m.logger.Info().Str("hotkey", hk.original).Msg("hotkey triggered")
		hk.callback()
	}
	return len(matched) > 0
}

// Tap reports a key that is pressed and released in one event, as sources
// without key-up events deliver it.
func (m *Manager) Tap(key string) bool {
	fired := m.UpdateState(key, true)
	m.UpdateState(key, false)
	return fired
}

// checkMatches returns the hotkeys whose parts are all held and that include
// the key that just went down, so holding a combination fires it once.
func (m *Manager) checkMatches(key string) []*registeredHotkey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*registeredHotkey
	for _, hk := range m.hotkeys {
		match := true
		involved := false
		// All parts of the hotkey must be in currentState
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
			if part == key {
				involved = true
			}
		}

		if match && involved {
			matched = append(matched, hk)
		}
	}
	return matched
}
