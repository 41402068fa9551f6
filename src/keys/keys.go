package keys

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	BackendRobotgo = "robotgo"
	BackendKeybd   = "keybd"
)

// Simulator synthesizes the platform copy and paste chords in the focused window.
type Simulator interface {
	Copy() error
	Paste() error
}

// KeySequence is the chord layout for one platform.
type KeySequence struct {
	Modifier string
	CopyKey  string
	PasteKey string
}

func (s KeySequence) String() string {
	return fmt.Sprintf("%s+%s / %s+%s", s.Modifier, s.CopyKey, s.Modifier, s.PasteKey)
}

// SequenceFor returns the copy/paste chords used on goos.
func SequenceFor(goos string) KeySequence {
	mod := "ctrl"
	if goos == "darwin" {
		mod = "cmd"
	}
	return KeySequence{Modifier: mod, CopyKey: "c", PasteKey: "v"}
}

// New builds the named backend for the running platform.
func New(backend string) (Simulator, error) {
	seq := SequenceFor(runtime.GOOS)
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendRobotgo:
		return newRobotgoSimulator(seq), nil
	case BackendKeybd:
		sim, err := newKeybdSimulator(seq)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize keybd_event: %w", err)
		}
		return sim, nil
	default:
		return nil, fmt.Errorf("unknown input backend %q", backend)
	}
}
