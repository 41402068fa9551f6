package hotkey

import (
	"context"
	"errors"
	"runtime"

	gohook "github.com/robotn/gohook"
	"go.uber.org/zap"
)

// hookListener watches every key event through a low-level keyboard hook.
// It can bind keys the OS will not register, Caps Lock included.
type hookListener struct {
	combo Combo
	log   *zap.SugaredLogger
	start func() chan gohook.Event
	end   func()
}

func newHookListener(combo Combo, log *zap.SugaredLogger) *hookListener {
	return &hookListener{
		combo: combo,
		log:   log,
		start: gohook.Start,
		end:   gohook.End,
	}
}

func (l *hookListener) Backend() string { return BackendHook }

func (l *hookListener) Start(ctx context.Context, fire func()) error {
	ready := make(chan error, 1)

	go func() {
		// The hook dispatch loop owns this OS thread for the life of the process.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer func() {
			if r := recover(); r != nil {
				l.log.Errorw("panic in hotkey loop", "panic", r)
			}
		}()

		evChan := l.start()
		if evChan == nil {
			ready <- errors.New("keyboard hook failed to start")
			return
		}
		ready <- nil
		l.log.Infow("hotkey listener started", "hotkey", l.combo.Raw, "backend", BackendHook)

		l.dispatch(ctx, evChan, fire)
		l.end()
		l.log.Infow("hotkey listener stopped")
	}()

	return <-ready
}

func (l *hookListener) dispatch(ctx context.Context, events <-chan gohook.Event, fire func()) {
	m := newMatcher(l.combo)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if m.handle(ev.Kind, ev.Keycode) {
				l.log.Debugw("hotkey pressed", "hotkey", l.combo.Raw)
				fire()
			}
		}
	}
}

type keyState struct {
	name    string
	codes   []uint16
	pressed bool
}

// matcher tracks which combo keys are held. A trigger fires on the event that
// makes the last required key go down; repeats of a held key are ignored.
type matcher struct {
	keys []keyState
}

func newMatcher(combo Combo) *matcher {
	m := &matcher{keys: make([]keyState, 0, len(combo.Keys))}
	for _, k := range combo.Keys {
		m.keys = append(m.keys, keyState{name: k.Name, codes: k.Codes})
	}
	return m
}

func (m *matcher) handle(kind uint8, code uint16) bool {
	idx := m.index(code)
	if idx < 0 {
		return false
	}
	switch kind {
	case gohook.KeyDown, gohook.KeyHold:
		if m.keys[idx].pressed {
			return false
		}
		m.keys[idx].pressed = true
		return m.allPressed()
	case gohook.KeyUp:
		m.keys[idx].pressed = false
	}
	return false
}

func (m *matcher) index(code uint16) int {
	for i := range m.keys {
		for _, c := range m.keys[i].codes {
			if c == code {
				return i
			}
		}
	}
	return -1
}

func (m *matcher) allPressed() bool {
	for i := range m.keys {
		if !m.keys[i].pressed {
			return false
		}
	}
	return true
}
