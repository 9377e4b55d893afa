// Package tray shows the pad's capture state in the system tray.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Disabled bool
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	items   []*MenuItem
	tooltip string
	onReady func()
	onExit  func()
	readyCh chan struct{}
	quitCh  chan struct{}
}

// New creates a new system tray
func New(tooltip string) *Tray {
	t := &Tray{
		items:   make([]*MenuItem, 0),
		tooltip: tooltip,
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}

	t.onReady = func() {
		systray.SetTitle("MagicMouse")
		systray.SetTooltip(t.Tooltip())
		systray.SetIcon(getIcon())
		close(t.readyCh)
	}

	t.onExit = func() {
		close(t.quitCh)
	}

	return t
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	id := len(t.items)
	menuItem := &MenuItem{
		ID:       id,
		Title:    title,
		Callback: callback,
	}
	t.items = append(t.items, menuItem)
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.items = append(t.items, nil) // nil indicates separator
}

// Tooltip returns the current tooltip text
func (t *Tray) Tooltip() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tooltip
}

// SetTooltip updates the tooltip, e.g. with the subscriber count
func (t *Tray) SetTooltip(tooltip string) {
	t.mu.Lock()
	t.tooltip = tooltip
	t.mu.Unlock()

	if t.ready() {
		systray.SetTooltip(tooltip)
	}
}

// SetItemEnabled enables or greys out a menu item
func (t *Tray) SetItemEnabled(id int, enabled bool) {
	mi := t.item(id)
	if mi == nil {
		return
	}

	t.mu.Lock()
	mi.Disabled = !enabled
	item := mi.item
	t.mu.Unlock()

	if item == nil {
		return
	}
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

// SetItemTitle renames a menu item
func (t *Tray) SetItemTitle(id int, title string) {
	mi := t.item(id)
	if mi == nil {
		return
	}

	t.mu.Lock()
	mi.Title = title
	item := mi.item
	t.mu.Unlock()

	if item != nil {
		item.SetTitle(title)
	}
}

func (t *Tray) item(id int) *MenuItem {
	if id >= 0 && id < len(t.items) {
		return t.items[id]
	}
	return nil
}

func (t *Tray) ready() bool {
	select {
	case <-t.readyCh:
		return true
	default:
		return false
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.onReady()

	// Wait for ready signal
	<-t.readyCh

	// Create menu items
	for _, menuItem := range t.items {
		if menuItem == nil {
			// Separator
			systray.AddSeparator()
		} else {
			t.mu.Lock()
			item := systray.AddMenuItem(menuItem.Title, "")
			if menuItem.Disabled {
				item.Disable()
			}
			menuItem.item = item
			t.mu.Unlock()

			if menuItem.Callback != nil {
				go t.dispatch(item.ClickedCh, menuItem.Callback)
			}
		}
	}
}

// dispatch runs callback for every click until the tray exits
func (t *Tray) dispatch(clicked <-chan struct{}, callback func()) {
	for {
		select {
		case <-clicked:
			callback()
		case <-t.quitCh:
			return
		}
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	// A valid 16x16 32-bit ICO file with correct size and DIB header
	icon := make([]byte, 1118)
	// ICO Header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon Directory
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00, // Size: 1024 (pixels) + 40 (header) + 32 (mask) = 1096 bytes
		0x16, 0x00, 0x00, 0x00, // Offset
	})
	// DIB Header
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // Size
		0x10, 0x00, 0x00, 0x00, // Width
		0x20, 0x00, 0x00, 0x00, // Height (16 * 2 for icon)
		0x01, 0x00, // Planes
		0x20, 0x00, // BPP
		0x00, 0x00, 0x00, 0x00, // Compression
		0x00, 0x04, 0x00, 0x00, // Image Size
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	// The rest (pixels and mask) can stay 0 for transparency
	return icon
}
