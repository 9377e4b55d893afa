package hotkey

import "testing"

func TestSingleKey(t *testing.T) {
	m := NewManager()
	fired := 0
	m.Register("Pause", func() { fired++ })

	if m.UpdateState("a", true) {
		t.Error("unrelated key fired")
	}
	if !m.UpdateState("PAUSE", true) {
		t.Error("Pause did not fire")
	}
	m.UpdateState("pause", false)
	if !m.Tap("Break") {
		t.Error("Break alias did not fire")
	}
	if fired != 2 {
		t.Errorf("fired %d times, want 2", fired)
	}
}

func TestCombination(t *testing.T) {
	m := NewManager()
	fired := 0
	m.Register("Ctrl+Alt+Esc", func() { fired++ })

	m.UpdateState("Control", true)
	m.UpdateState("Alt", true)
	if fired != 0 {
		t.Fatal("fired before the combination was complete")
	}
	m.UpdateState("Escape", true)
	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}

	// an unrelated key while the combination is held does not refire
	m.UpdateState("B", true)
	if fired != 1 {
		t.Errorf("refired on unrelated key")
	}
}

func TestClear(t *testing.T) {
	m := NewManager()
	m.Register("Pause", func() { t.Error("cleared hotkey fired") })
	m.UpdateState("Ctrl", true)
	m.Clear()
	m.Tap("Pause")

	fired := false
	m.Register("Ctrl+Pause", func() { fired = true })
	m.Tap("Pause")
	if fired {
		t.Error("Clear kept pressed keys")
	}
}

func TestCallbackMayRegister(t *testing.T) {
	m := NewManager()
	m.Register("F1", func() {
		// callbacks run without the lock held
		m.Register("F2", func() {})
	})
	m.Tap("F1")
}
