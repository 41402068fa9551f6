package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	BackendHook     = "hook"
	BackendRegister = "register"
)

var ErrInvalidHotkey = errors.New("invalid hotkey")

// Listener delivers trigger presses to fire. Start returns once the OS hook
// is active; delivery stops when ctx is cancelled. fire must not block.
type Listener interface {
	Start(ctx context.Context, fire func()) error
	Backend() string
}

// Key is one member of a hotkey combination with the libuiohook keycodes
// that satisfy it (left and right variants for modifiers).
type Key struct {
	Name  string
	Codes []uint16
}

// Combo is a parsed hotkey such as "CapsLock" or "Ctrl+Alt+G".
type Combo struct {
	Raw  string
	Keys []Key
}

func (c Combo) String() string { return c.Raw }

// Main returns the non-modifier key of the combination.
func (c Combo) Main() string {
	for _, k := range c.Keys {
		if !isModifier(k.Name) {
			return k.Name
		}
	}
	return ""
}

// Modifiers returns the modifier names in the order they were written.
func (c Combo) Modifiers() []string {
	var mods []string
	for _, k := range c.Keys {
		if isModifier(k.Name) {
			mods = append(mods, k.Name)
		}
	}
	return mods
}

// New builds the listener for backend.
func New(backend, hotkeyConfig string, log *zap.SugaredLogger) (Listener, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	combo, err := Parse(hotkeyConfig)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendHook:
		return newHookListener(combo, log), nil
	case BackendRegister:
		return newRegisterListener(combo, log)
	default:
		return nil, fmt.Errorf("unknown hotkey backend %q", backend)
	}
}

// Parse converts "Ctrl+Alt+q" style strings into a Combo. Names are case-insensitive.
func Parse(hotkeyConfig string) (Combo, error) {
	names := parseHotkey(hotkeyConfig)
	if len(names) == 0 {
		return Combo{}, fmt.Errorf("%w: empty hotkey", ErrInvalidHotkey)
	}

	combo := Combo{Raw: strings.TrimSpace(hotkeyConfig)}
	seen := make(map[string]bool)
	mainKeys := 0
	for _, name := range names {
		if name == "" {
			return Combo{}, fmt.Errorf("%w: %q has an empty key", ErrInvalidHotkey, hotkeyConfig)
		}
		codes := keyNameToKeycodes(name)
		if codes == nil {
			return Combo{}, fmt.Errorf("%w: unknown key %q in %q", ErrInvalidHotkey, name, hotkeyConfig)
		}
		if seen[name] {
			return Combo{}, fmt.Errorf("%w: %q repeats %q", ErrInvalidHotkey, hotkeyConfig, name)
		}
		seen[name] = true
		if !isModifier(name) {
			mainKeys++
		}
		combo.Keys = append(combo.Keys, Key{Name: name, Codes: codes})
	}
	if mainKeys > 1 {
		return Combo{}, fmt.Errorf("%w: %q has more than one non-modifier key", ErrInvalidHotkey, hotkeyConfig)
	}
	return combo, nil
}

// parseHotkey splits a hotkey string on "+" and normalizes modifier aliases.
func parseHotkey(hotkeyConfig string) []string {
	hotkeyConfig = strings.TrimSpace(hotkeyConfig)
	if hotkeyConfig == "" {
		return nil
	}
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			keys = append(keys, "ctrl")
		case "alt", "option":
			keys = append(keys, "alt")
		case "win", "cmd", "super", "meta":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, canonicalName(part))
		}
	}
	return keys
}

func isModifier(name string) bool {
	switch name {
	case "ctrl", "alt", "shift", "cmd":
		return true
	}
	return false
}

// keycodes are libuiohook virtual keycodes as reported in gohook.Event.Keycode.
// They are the same on every platform, unlike Rawcode.
var keycodes = map[string][]uint16{
	"ctrl":  {0x001D, 0x0E1D},
	"alt":   {0x0038, 0x0E38},
	"shift": {0x002A, 0x0036},
	"cmd":   {0x0E5B, 0x0E5C},

	"capslock":    {0x003A},
	"scrolllock":  {0x0046},
	"numlock":     {0x0045},
	"pause":       {0x0E45},
	"printscreen": {0x0E37},

	"esc":       {0x0001},
	"space":     {0x0039},
	"enter":     {0x001C},
	"tab":       {0x000F},
	"backspace": {0x000E},
	"insert":    {0x0E52},
	"delete":    {0x0E53},
	"home":      {0x0E47},
	"end":       {0x0E4F},
	"pageup":    {0x0E49},
	"pagedown":  {0x0E51},

	"f1": {0x003B}, "f2": {0x003C}, "f3": {0x003D}, "f4": {0x003E},
	"f5": {0x003F}, "f6": {0x0040}, "f7": {0x0041}, "f8": {0x0042},
	"f9": {0x0043}, "f10": {0x0044}, "f11": {0x0057}, "f12": {0x0058},

	"a": {0x001E}, "b": {0x0030}, "c": {0x002E}, "d": {0x0020},
	"e": {0x0012}, "f": {0x0021}, "g": {0x0022}, "h": {0x0023},
	"i": {0x0017}, "j": {0x0024}, "k": {0x0025}, "l": {0x0026},
	"m": {0x0032}, "n": {0x0031}, "o": {0x0018}, "p": {0x0019},
	"q": {0x0010}, "r": {0x0013}, "s": {0x001F}, "t": {0x0014},
	"u": {0x0016}, "v": {0x002F}, "w": {0x0011}, "x": {0x002D},
	"y": {0x0015}, "z": {0x002C},

	"1": {0x0002}, "2": {0x0003}, "3": {0x0004}, "4": {0x0005}, "5": {0x0006},
	"6": {0x0007}, "7": {0x0008}, "8": {0x0009}, "9": {0x000A}, "0": {0x000B},
}

var keyAliases = map[string]string{
	"caps":   "capslock",
	"scroll": "scrolllock",
	"break":  "pause",
	"prtsc":  "printscreen",
	"escape": "esc",
	"return": "enter",
	"del":    "delete",
	"ins":    "insert",
	"pgup":   "pageup",
	"pgdn":   "pagedown",
}

// keyNameToKeycodes returns nil for names it does not know.
func keyNameToKeycodes(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := keyAliases[name]; ok {
		name = alias
	}
	return keycodes[name]
}

// canonicalName resolves aliases so both backends agree on key names.
func canonicalName(name string) string {
	if alias, ok := keyAliases[name]; ok {
		return alias
	}
	return name
}
