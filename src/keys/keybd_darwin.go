//go:build darwin

package keys

import "github.com/micmonay/keybd_event"

func setModifier(kb *keybd_event.KeyBonding) {
	kb.HasSuper(true)
}
