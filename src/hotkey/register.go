package hotkey

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"
)

// registerListener asks the OS to deliver one registered combination.
// It needs at least one modifier and cannot bind lock keys.
type registerListener struct {
	combo Combo
	log   *zap.SugaredLogger
	hk    *hotkey.Hotkey
}

func newRegisterListener(combo Combo, log *zap.SugaredLogger) (*registerListener, error) {
	mods, key, err := toRegistration(combo)
	if err != nil {
		return nil, err
	}
	return &registerListener{
		combo: combo,
		log:   log,
		hk:    hotkey.New(mods, key),
	}, nil
}

func toRegistration(combo Combo) ([]hotkey.Modifier, hotkey.Key, error) {
	names := combo.Modifiers()
	if len(names) == 0 {
		return nil, 0, fmt.Errorf("%w: %q needs a modifier for the %s backend", ErrInvalidHotkey, combo.Raw, BackendRegister)
	}
	mods := make([]hotkey.Modifier, 0, len(names))
	for _, n := range names {
		mod, ok := modifierMap[n]
		if !ok {
			return nil, 0, fmt.Errorf("%w: modifier %q is not supported on this platform", ErrInvalidHotkey, n)
		}
		mods = append(mods, mod)
	}
	key, ok := keyMap[combo.Main()]
	if !ok {
		return nil, 0, fmt.Errorf("%w: key %q cannot be registered with the %s backend", ErrInvalidHotkey, combo.Main(), BackendRegister)
	}
	return mods, key, nil
}

func (l *registerListener) Backend() string { return BackendRegister }

func (l *registerListener) Start(ctx context.Context, fire func()) error {
	if err := l.hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", l.combo.Raw, err)
	}
	l.log.Infow("hotkey listener started", "hotkey", l.combo.Raw, "backend", BackendRegister)

	go func() {
		defer func() {
			if err := l.hk.Unregister(); err != nil {
				l.log.Warnw("failed to unregister hotkey", "error", err)
			}
			l.log.Infow("hotkey listener stopped")
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-l.hk.Keydown():
				if !ok {
					return
				}
				fire()
			}
		}
	}()
	return nil
}

// RunOnMainThread runs fn while the main thread services OS hotkey calls.
// macOS requires this; elsewhere it is harmless.
func RunOnMainThread(fn func()) {
	mainthread.Init(fn)
}

var keyMap = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"enter":  hotkey.KeyReturn,
	"tab":    hotkey.KeyTab,
	"esc":    hotkey.KeyEscape,
	"delete": hotkey.KeyDelete,
	"a":      hotkey.KeyA,
	"b":      hotkey.KeyB,
	"c":      hotkey.KeyC,
	"d":      hotkey.KeyD,
	"e":      hotkey.KeyE,
	"f":      hotkey.KeyF,
	"g":      hotkey.KeyG,
	"h":      hotkey.KeyH,
	"i":      hotkey.KeyI,
	"j":      hotkey.KeyJ,
	"k":      hotkey.KeyK,
	"l":      hotkey.KeyL,
	"m":      hotkey.KeyM,
	"n":      hotkey.KeyN,
	"o":      hotkey.KeyO,
	"p":      hotkey.KeyP,
	"q":      hotkey.KeyQ,
	"r":      hotkey.KeyR,
	"s":      hotkey.KeyS,
	"t":      hotkey.KeyT,
	"u":      hotkey.KeyU,
	"v":      hotkey.KeyV,
	"w":      hotkey.KeyW,
	"x":      hotkey.KeyX,
	"y":      hotkey.KeyY,
	"z":      hotkey.KeyZ,
	"0":      hotkey.Key0,
	"1":      hotkey.Key1,
	"2":      hotkey.Key2,
	"3":      hotkey.Key3,
	"4":      hotkey.Key4,
	"5":      hotkey.Key5,
	"6":      hotkey.Key6,
	"7":      hotkey.Key7,
	"8":      hotkey.Key8,
	"9":      hotkey.Key9,
	"f1":     hotkey.KeyF1,
	"f2":     hotkey.KeyF2,
	"f3":     hotkey.KeyF3,
	"f4":     hotkey.KeyF4,
	"f5":     hotkey.KeyF5,
	"f6":     hotkey.KeyF6,
	"f7":     hotkey.KeyF7,
	"f8":     hotkey.KeyF8,
	"f9":     hotkey.KeyF9,
	"f10":    hotkey.KeyF10,
	"f11":    hotkey.KeyF11,
	"f12":    hotkey.KeyF12,
}
