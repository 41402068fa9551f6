package hotkey

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	gohook "github.com/robotn/gohook"
	"go.uber.org/zap"
)

const (
	capsLock = 0x003A
	leftCtrl = 0x001D
	keyG     = 0x0022
	keyH     = 0x0023
)

func mustCombo(t *testing.T, hotkeyConfig string) Combo {
	t.Helper()
	c, err := Parse(hotkeyConfig)
	if err != nil {
		t.Fatalf("Parse(%q): %v", hotkeyConfig, err)
	}
	return c
}

func TestMatcherSingleKey(t *testing.T) {
	m := newMatcher(mustCombo(t, "CapsLock"))

	if !m.handle(gohook.KeyHold, capsLock) {
		t.Fatal("Expected trigger on first press")
	}
	// OS auto-repeat while held.
	for i := 0; i < 5; i++ {
		if m.handle(gohook.KeyHold, capsLock) || m.handle(gohook.KeyDown, capsLock) {
			t.Fatal("Auto-repeat must not trigger")
		}
	}
	if m.handle(gohook.KeyUp, capsLock) {
		t.Fatal("Release must not trigger")
	}
	if !m.handle(gohook.KeyHold, capsLock) {
		t.Fatal("Expected trigger on second press")
	}
}

func TestMatcherIgnoresOtherKeys(t *testing.T) {
	m := newMatcher(mustCombo(t, "CapsLock"))
	for _, code := range []uint16{keyG, keyH, leftCtrl} {
		if m.handle(gohook.KeyHold, code) {
			t.Fatalf("Key %#x must not trigger", code)
		}
	}
}

func TestMatcherCombination(t *testing.T) {
	m := newMatcher(mustCombo(t, "Ctrl+G"))

	if m.handle(gohook.KeyHold, keyG) {
		t.Fatal("G alone must not trigger")
	}
	m.handle(gohook.KeyUp, keyG)

	if m.handle(gohook.KeyHold, leftCtrl) {
		t.Fatal("Ctrl alone must not trigger")
	}
	if !m.handle(gohook.KeyHold, keyG) {
		t.Fatal("Expected trigger on Ctrl+G")
	}
	m.handle(gohook.KeyUp, keyG)
	// Ctrl still held: tapping G again is a new trigger.
	if !m.handle(gohook.KeyHold, keyG) {
		t.Fatal("Expected second trigger with Ctrl held")
	}
}

func TestMatcherRightModifier(t *testing.T) {
	m := newMatcher(mustCombo(t, "Ctrl+G"))
	m.handle(gohook.KeyHold, 0x0E1D)
	if !m.handle(gohook.KeyHold, keyG) {
		t.Fatal("Right Ctrl should satisfy ctrl")
	}
}

func TestHookListenerDeliversTriggers(t *testing.T) {
	events := make(chan gohook.Event, 8)
	var ended int32
	l := newHookListener(mustCombo(t, "CapsLock"), zap.NewNop().Sugar())
	l.start = func() chan gohook.Event { return events }
	l.end = func() { atomic.StoreInt32(&ended, 1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 8)
	if err := l.Start(ctx, func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("Start: %v", err)
	}

	events <- gohook.Event{Kind: gohook.KeyHold, Keycode: capsLock}
	events <- gohook.Event{Kind: gohook.KeyHold, Keycode: capsLock}
	events <- gohook.Event{Kind: gohook.KeyUp, Keycode: capsLock}
	events <- gohook.Event{Kind: gohook.KeyHold, Keycode: capsLock}

	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for trigger %d", i+1)
		}
	}
	select {
	case <-fired:
		t.Fatal("Unexpected extra trigger")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ended) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Hook was not stopped after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHookListenerStartFailure(t *testing.T) {
	l := newHookListener(mustCombo(t, "CapsLock"), zap.NewNop().Sugar())
	l.start = func() chan gohook.Event { return nil }
	l.end = func() {}

	if err := l.Start(context.Background(), func() {}); err == nil {
		t.Fatal("Expected error when hook returns nil channel")
	}
}
