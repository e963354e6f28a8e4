package monitor

import (
	"sort"
	"strings"
)

// Signal is the tag of an integrity-relevant host event.
type Signal string

const (
	SignalTabSwitch        Signal = "tab_switch"
	SignalFullscreenExit   Signal = "fullscreen_exit"
	SignalRightClick       Signal = "right_click"
	SignalCopyAttempt      Signal = "copy_attempt"
	SignalCutAttempt       Signal = "cut_attempt"
	SignalPasteAttempt     Signal = "paste_attempt"
	SignalKeyboardShortcut Signal = "keyboard_shortcut"
	SignalWindowBlur       Signal = "window_blur"
)

var knownSignals = map[Signal]bool{
	SignalTabSwitch:        true,
	SignalFullscreenExit:   true,
	SignalRightClick:       true,
	SignalCopyAttempt:      true,
	SignalCutAttempt:       true,
	SignalPasteAttempt:     true,
	SignalKeyboardShortcut: true,
	SignalWindowBlur:       true,
}

// ParseSignal maps a wire tag to a Signal.
func ParseSignal(tag string) (Signal, bool) {
	s := Signal(strings.ToLower(strings.TrimSpace(tag)))
	return s, knownSignals[s]
}

// deniedShortcuts holds canonical key combos that count as a violation:
// clipboard, print/save/view-source, and devtools.
var deniedShortcuts = map[string]bool{
	"ctrl+c":       true,
	"ctrl+x":       true,
	"ctrl+v":       true,
	"ctrl+p":       true,
	"ctrl+s":       true,
	"ctrl+u":       true,
	"ctrl+shift+c": true,
	"ctrl+shift+i": true,
	"ctrl+shift+j": true,
	"meta+c":       true,
	"meta+x":       true,
	"meta+v":       true,
	"meta+p":       true,
	"meta+s":       true,
	"meta+u":       true,
	"alt+meta+c":   true,
	"alt+meta+i":   true,
	"alt+meta+j":   true,
	"f12":          true,
	"printscreen":  true,
}

var modifierRank = map[string]int{"ctrl": 0, "alt": 1, "shift": 2, "meta": 3}

var keyAliases = map[string]string{
	"control": "ctrl",
	"cmd":     "meta",
	"command": "meta",
	"win":     "meta",
	"super":   "meta",
	"option":  "alt",
	"prtsc":   "printscreen",
	"print":   "printscreen",
}

// NormalizeCombo canonicalizes a key combo such as "Shift+Ctrl+I" into
// "ctrl+shift+i": lowercase, aliases resolved, modifiers in a fixed order.
func NormalizeCombo(raw string) string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(raw)), "+")
	var mods []string
	var keys []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if a, ok := keyAliases[p]; ok {
			p = a
		}
		if _, ok := modifierRank[p]; ok {
			mods = append(mods, p)
		} else {
			keys = append(keys, p)
		}
	}
	sort.Slice(mods, func(i, j int) bool { return modifierRank[mods[i]] < modifierRank[mods[j]] })
	return strings.Join(append(mods, keys...), "+")
}

// IsDeniedShortcut reports whether a raw key combo is on the denylist.
func IsDeniedShortcut(raw string) bool {
	return deniedShortcuts[NormalizeCombo(raw)]
}
