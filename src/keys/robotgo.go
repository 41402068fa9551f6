package keys

import (
	"github.com/go-vgo/robotgo"
)

type tapFunc func(key string, args ...interface{}) error

type robotgoSimulator struct {
	seq KeySequence
	tap tapFunc
}

func newRobotgoSimulator(seq KeySequence) *robotgoSimulator {
	return &robotgoSimulator{seq: seq, tap: robotgo.KeyTap}
}

func (r *robotgoSimulator) Copy() error {
	return r.tap(r.seq.CopyKey, r.seq.Modifier)
}

func (r *robotgoSimulator) Paste() error {
	return r.tap(r.seq.PasteKey, r.seq.Modifier)
}
