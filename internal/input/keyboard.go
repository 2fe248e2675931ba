package input

import (
	"fmt"
	"strings"
	"unicode"
)

// Modifier is a held modifier key.
type Modifier int

const (
	ModShift Modifier = iota
	ModControl
	ModAlt
	ModMeta
)

func (m Modifier) String() string {
	switch m {
	case ModShift:
		return "Shift"
	case ModControl:
		return "Control"
	case ModAlt:
		return "Alt"
	case ModMeta:
		return "Meta"
	}
	return "Unknown"
}

// ParseModifier resolves a modifier name or alias.
func ParseModifier(s string) (Modifier, error) {
	switch strings.ToLower(s) {
	case "shift":
		return ModShift, nil
	case "control", "ctrl":
		return ModControl, nil
	case "alt":
		return ModAlt, nil
	case "meta", "cmd", "command", "win", "windows":
		return ModMeta, nil
	default:
		return 0, fmt.Errorf("unknown modifier %q", s)
	}
}

// ParseModifiers resolves a list of modifier names.
func ParseModifiers(names []string) ([]Modifier, error) {
	mods := make([]Modifier, 0, len(names))
	for _, n := range names {
		m, err := ParseModifier(n)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// specialKeys maps lowercase key names (and aliases) to their canonical name.
var specialKeys = map[string]string{
	"enter":       "Enter",
	"return":      "Enter",
	"tab":         "Tab",
	"backspace":   "Backspace",
	"delete":      "Delete",
	"del":         "Delete",
	"escape":      "Escape",
	"esc":         "Escape",
	"space":       "Space",
	" ":           "Space",
	"up":          "ArrowUp",
	"arrowup":     "ArrowUp",
	"down":        "ArrowDown",
	"arrowdown":   "ArrowDown",
	"left":        "ArrowLeft",
	"arrowleft":   "ArrowLeft",
	"right":       "ArrowRight",
	"arrowright":  "ArrowRight",
	"home":        "Home",
	"end":         "End",
	"pageup":      "PageUp",
	"pagedown":    "PageDown",
	"insert":      "Insert",
	"ins":         "Insert",
	"capslock":    "CapsLock",
	"numlock":     "NumLock",
	"scrolllock":  "ScrollLock",
	"printscreen": "PrintScreen",
	"prtsc":       "PrintScreen",
	"pause":       "Pause",
	"contextmenu": "ContextMenu",
	"f1":          "F1",
	"f2":          "F2",
	"f3":          "F3",
	"f4":          "F4",
	"f5":          "F5",
	"f6":          "F6",
	"f7":          "F7",
	"f8":          "F8",
	"f9":          "F9",
	"f10":         "F10",
	"f11":         "F11",
	"f12":         "F12",
}

// ErrInvalidKey reports an unrecognized key name.
type ErrInvalidKey struct {
	Key string
}

func (e *ErrInvalidKey) Error() string {
	return fmt.Sprintf("invalid key %q", e.Key)
}

// NormalizeKey validates a key name and returns its canonical form.
// Single printable runes are valid as-is; longer names must be a known
// special key or modifier.
func NormalizeKey(key string) (string, error) {
	if key == "" {
		return "", &ErrInvalidKey{Key: key}
	}
	runes := []rune(key)
	if len(runes) == 1 && runes[0] != ' ' {
		return key, nil
	}
	if canonical, ok := specialKeys[strings.ToLower(key)]; ok {
		return canonical, nil
	}
	if m, err := ParseModifier(key); err == nil {
		return m.String(), nil
	}
	return "", &ErrInvalidKey{Key: key}
}

// CharDelayMultiplier scales the base inter-key delay for a character.
// High-frequency letters sit under practiced fingers and come out faster;
// symbols require a reach or a chord and come out slower.
func CharDelayMultiplier(r rune) float64 {
	if unicode.IsUpper(r) {
		return 1.2
	}
	switch r {
	case 'e', 't', 'a', 'o', 'i', 'n', 's', 'h', 'r':
		return 0.8
	case 'l', 'd', 'c', 'u', 'm', 'w', 'f', 'g', 'y', 'p', 'b':
		return 1.0
	case 'v', 'k', 'j', 'x', 'q', 'z':
		return 1.2
	case ' ':
		return 0.7
	case '.', ',':
		return 1.0
	case '!', '?', ':', ';':
		return 1.3
	case '@', '#', '$', '%', '^', '&', '*':
		return 1.5
	}
	if unicode.IsDigit(r) {
		return 1.1
	}
	return 1.0
}
