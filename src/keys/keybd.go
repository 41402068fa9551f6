package keys

import (
	"sync"

	"github.com/micmonay/keybd_event"
)

type keybdSimulator struct {
	mu  sync.Mutex
	seq KeySequence
	kb  keybd_event.KeyBonding
}

func newKeybdSimulator(seq KeySequence) (*keybdSimulator, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	return &keybdSimulator{seq: seq, kb: kb}, nil
}

func (k *keybdSimulator) Copy() error {
	return k.chord(keybd_event.VK_C)
}

func (k *keybdSimulator) Paste() error {
	return k.chord(keybd_event.VK_V)
}

func (k *keybdSimulator) chord(key int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.kb.Clear()
	k.kb.SetKeys(key)
	setModifier(&k.kb)
	return k.kb.Launching()
}
