// Package hotkey maps configured key combinations to compositor keybinds and
// activation callbacks.
package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Combo is a parsed key combination. The zero value means "disabled".
type Combo struct {
	Mods []string
	Key  string
}

var modifierOrder = []string{"SUPER", "CTRL", "ALT", "SHIFT"}

var modifierAliases = map[string]string{
	"super":   "SUPER",
	"win":     "SUPER",
	"meta":    "SUPER",
	"mod4":    "SUPER",
	"ctrl":    "CTRL",
	"control": "CTRL",
	"alt":     "ALT",
	"mod1":    "ALT",
	"shift":   "SHIFT",
}

var namedKeys = map[string]string{
	"print":       "Print",
	"printscreen": "Print",
	"prtsc":       "Print",
	"esc":         "Escape",
	"escape":      "Escape",
	"space":       "space",
	"enter":       "Return",
	"return":      "Return",
	"tab":         "Tab",
	"backspace":   "BackSpace",
	"delete":      "Delete",
	"del":         "Delete",
	"insert":      "Insert",
	"home":        "Home",
	"end":         "End",
	"pageup":      "Prior",
	"pagedown":    "Next",
	"pause":       "Pause",
}

// ParseCombo parses "Super+Shift+S" style input. Empty input yields the zero
// Combo.
func ParseCombo(raw string) (Combo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Combo{}, nil
	}

	parts := strings.Split(raw, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return Combo{}, fmt.Errorf("invalid key combination %q: empty token", raw)
		}
	}

	seen := make(map[string]bool, len(parts)-1)
	for _, part := range parts[:len(parts)-1] {
		mod, ok := modifierAliases[strings.ToLower(part)]
		if !ok {
			return Combo{}, fmt.Errorf("invalid key combination %q: unknown modifier %q", raw, part)
		}
		seen[mod] = true
	}

	key, err := normalizeKey(parts[len(parts)-1])
	if err != nil {
		return Combo{}, fmt.Errorf("invalid key combination %q: %w", raw, err)
	}

	combo := Combo{Key: key}
	for _, mod := range modifierOrder {
		if seen[mod] {
			combo.Mods = append(combo.Mods, mod)
		}
	}
	return combo, nil
}

// MustParseCombo panics on invalid input. Intended for constants and tests.
func MustParseCombo(raw string) Combo {
	combo, err := ParseCombo(raw)
	if err != nil {
		panic(err)
	}
	return combo
}

func normalizeKey(token string) (string, error) {
	lower := strings.ToLower(token)
	if _, isMod := modifierAliases[lower]; isMod {
		return "", fmt.Errorf("missing key after modifier %q", token)
	}

	if len(token) == 1 {
		ch := token[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return string(ch - 'a' + 'A'), nil
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			return token, nil
		}
	}

	if named, ok := namedKeys[lower]; ok {
		return named, nil
	}

	if strings.HasPrefix(lower, "f") {
		if n, err := strconv.Atoi(lower[1:]); err == nil && n >= 1 && n <= 24 {
			return "F" + strconv.Itoa(n), nil
		}
	}

	return "", fmt.Errorf("unsupported key %q", token)
}

// IsZero reports whether c is the disabled combination.
func (c Combo) IsZero() bool {
	return c.Key == ""
}

// Equal reports whether c and other describe the same combination.
func (c Combo) Equal(other Combo) bool {
	return c.String() == other.String()
}

// String renders the canonical user-facing form ("Super+Shift+S").
func (c Combo) String() string {
	if c.IsZero() {
		return ""
	}
	parts := make([]string, 0, len(c.Mods)+1)
	for _, mod := range c.Mods {
		parts = append(parts, displayModifier(mod))
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}

// HyprMods renders the modifier field of a Hyprland bind ("SUPER SHIFT").
func (c Combo) HyprMods() string {
	return strings.Join(c.Mods, " ")
}

// HyprKey renders the key field of a Hyprland bind.
func (c Combo) HyprKey() string {
	return c.Key
}

func displayModifier(mod string) string {
	switch mod {
	case "SUPER":
		return "Super"
	case "CTRL":
		return "Ctrl"
	case "ALT":
		return "Alt"
	case "SHIFT":
		return "Shift"
	default:
		return mod
	}
}
