// Package keybind parses global hotkey bindings such as "<ctrl>+<shift>+s".
// It does not import the native hotkey library.
package keybind

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Mod is a portable modifier key.
type Mod int

const (
	ModCtrl Mod = iota
	ModShift
	ModAlt
)

func (m Mod) String() string {
	return [...]string{"ctrl", "shift", "alt"}[m]
}

// Binding is a parsed key combination such as ctrl+shift+s.
type Binding struct {
	Mods []Mod
	Key  string
}

func (b Binding) String() string {
	parts := make([]string, 0, len(b.Mods)+1)
	for _, m := range b.Mods {
		parts = append(parts, m.String())
	}
	return strings.Join(append(parts, b.Key), "+")
}

var modNames = map[string]Mod{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
}

// ParseBinding accepts "<ctrl>+<shift>+s" and "ctrl+shift+s". Exactly one
// non-modifier key is required: a-z, 0-9 or f1-f12.
func ParseBinding(s string) (Binding, error) {
	var b Binding
	seen := map[Mod]bool{}
	for _, raw := range strings.Split(s, "+") {
		tok := strings.ToLower(strings.TrimSpace(raw))
		tok = strings.TrimSuffix(strings.TrimPrefix(tok, "<"), ">")
		if tok == "" {
			return Binding{}, fmt.Errorf("binding %q: empty key", s)
		}
		if m, ok := modNames[tok]; ok {
			if !seen[m] {
				seen[m] = true
				b.Mods = append(b.Mods, m)
			}
			continue
		}
		if !validKey(tok) {
			return Binding{}, fmt.Errorf("binding %q: unsupported key %q", s, tok)
		}
		if b.Key != "" {
			return Binding{}, fmt.Errorf("binding %q: more than one key", s)
		}
		b.Key = tok
	}
	if b.Key == "" {
		return Binding{}, fmt.Errorf("binding %q: no key", s)
	}
	sort.Slice(b.Mods, func(i, j int) bool { return b.Mods[i] < b.Mods[j] })
	return b, nil
}

func validKey(k string) bool {
	if len(k) == 1 {
		c := k[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	return FunctionKey(k) > 0
}

// FunctionKey returns n for "fn" with n in 1..12, or 0.
func FunctionKey(k string) int {
	if len(k) < 2 || k[0] != 'f' {
		return 0
	}
	n, err := strconv.Atoi(k[1:])
	if err != nil || n < 1 || n > 12 || strconv.Itoa(n) != k[1:] {
		return 0
	}
	return n
}
