package hotkey

import "golang.design/x/hotkey"

// Mod1 is Alt on the usual X11 keymap.
const modAlt = hotkey.Mod1
