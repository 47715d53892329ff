package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"

	"github.com/local/screenassist/internal/keybind"
)

var letterKeys = [...]hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
	hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
	hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
	hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
	hotkey.KeyY, hotkey.KeyZ,
}

var digitKeys = [...]hotkey.Key{
	hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
	hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
}

var functionKeys = [...]hotkey.Key{
	hotkey.KeyF1, hotkey.KeyF2, hotkey.KeyF3, hotkey.KeyF4,
	hotkey.KeyF5, hotkey.KeyF6, hotkey.KeyF7, hotkey.KeyF8,
	hotkey.KeyF9, hotkey.KeyF10, hotkey.KeyF11, hotkey.KeyF12,
}

// native converts a parsed binding to the platform's modifiers and key code.
func native(b keybind.Binding) ([]hotkey.Modifier, hotkey.Key, error) {
	mods := make([]hotkey.Modifier, 0, len(b.Mods))
	for _, m := range b.Mods {
		switch m {
		case keybind.ModCtrl:
			mods = append(mods, hotkey.ModCtrl)
		case keybind.ModShift:
			mods = append(mods, hotkey.ModShift)
		case keybind.ModAlt:
			mods = append(mods, modAlt)
		}
	}
	switch {
	case len(b.Key) == 1 && b.Key[0] >= 'a' && b.Key[0] <= 'z':
		return mods, letterKeys[b.Key[0]-'a'], nil
	case len(b.Key) == 1 && b.Key[0] >= '0' && b.Key[0] <= '9':
		return mods, digitKeys[b.Key[0]-'0'], nil
	}
	if n := keybind.FunctionKey(b.Key); n > 0 {
		return mods, functionKeys[n-1], nil
	}
	return nil, 0, fmt.Errorf("no key code for %q", b.Key)
}
