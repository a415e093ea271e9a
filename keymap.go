package main

import (
	"fmt"
	"sort"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// KeyChar maps an evdev keycode to its normal and shifted characters.
type KeyChar struct {
	Normal  string
	Shifted string
}

// KeyCharMap maps evdev key codes to their character representations
// for a US/International keyboard layout. Keys present here produce a
// visible character in the foreground application, so they count toward
// the erase budget of a chord correction.
var KeyCharMap = map[evdev.EvCode]KeyChar{
	evdev.KEY_A: {"a", "A"}, evdev.KEY_B: {"b", "B"},
	evdev.KEY_C: {"c", "C"}, evdev.KEY_D: {"d", "D"},
	evdev.KEY_E: {"e", "E"}, evdev.KEY_F: {"f", "F"},
	evdev.KEY_G: {"g", "G"}, evdev.KEY_H: {"h", "H"},
	evdev.KEY_I: {"i", "I"}, evdev.KEY_J: {"j", "J"},
	evdev.KEY_K: {"k", "K"}, evdev.KEY_L: {"l", "L"},
	evdev.KEY_M: {"m", "M"}, evdev.KEY_N: {"n", "N"},
	evdev.KEY_O: {"o", "O"}, evdev.KEY_P: {"p", "P"},
	evdev.KEY_Q: {"q", "Q"}, evdev.KEY_R: {"r", "R"},
	evdev.KEY_S: {"s", "S"}, evdev.KEY_T: {"t", "T"},
	evdev.KEY_U: {"u", "U"}, evdev.KEY_V: {"v", "V"},
	evdev.KEY_W: {"w", "W"}, evdev.KEY_X: {"x", "X"},
	evdev.KEY_Y: {"y", "Y"}, evdev.KEY_Z: {"z", "Z"},

	evdev.KEY_1: {"1", "!"}, evdev.KEY_2: {"2", "@"},
	evdev.KEY_3: {"3", "#"}, evdev.KEY_4: {"4", "$"},
	evdev.KEY_5: {"5", "%"}, evdev.KEY_6: {"6", "^"},
	evdev.KEY_7: {"7", "&"}, evdev.KEY_8: {"8", "*"},
	evdev.KEY_9: {"9", "("}, evdev.KEY_0: {"0", ")"},

	evdev.KEY_MINUS:      {"-", "_"},
	evdev.KEY_EQUAL:      {"=", "+"},
	evdev.KEY_LEFTBRACE:  {"[", "{"},
	evdev.KEY_RIGHTBRACE: {"]", "}"},
	evdev.KEY_SEMICOLON:  {";", ":"},
	evdev.KEY_APOSTROPHE: {"'", "\""},
	evdev.KEY_GRAVE:      {"`", "~"},
	evdev.KEY_BACKSLASH:  {"\\", "|"},
	evdev.KEY_COMMA:      {",", "<"},
	evdev.KEY_DOT:        {".", ">"},
	evdev.KEY_SLASH:      {"/", "?"},
	evdev.KEY_SPACE:      {" ", " "},
}

// keyNames maps dictionary key names to evdev codes. Names are stored
// lowercase without the KEY_ prefix; ParseKeyName normalizes input
// accordingly, so "KEY_T", "T" and "t" all resolve to KEY_T.
var keyNames = map[string]evdev.EvCode{
	"a": evdev.KEY_A, "b": evdev.KEY_B, "c": evdev.KEY_C,
	"d": evdev.KEY_D, "e": evdev.KEY_E, "f": evdev.KEY_F,
	"g": evdev.KEY_G, "h": evdev.KEY_H, "i": evdev.KEY_I,
	"j": evdev.KEY_J, "k": evdev.KEY_K, "l": evdev.KEY_L,
	"m": evdev.KEY_M, "n": evdev.KEY_N, "o": evdev.KEY_O,
	"p": evdev.KEY_P, "q": evdev.KEY_Q, "r": evdev.KEY_R,
	"s": evdev.KEY_S, "t": evdev.KEY_T, "u": evdev.KEY_U,
	"v": evdev.KEY_V, "w": evdev.KEY_W, "x": evdev.KEY_X,
	"y": evdev.KEY_Y, "z": evdev.KEY_Z,

	"0": evdev.KEY_0, "1": evdev.KEY_1, "2": evdev.KEY_2,
	"3": evdev.KEY_3, "4": evdev.KEY_4, "5": evdev.KEY_5,
	"6": evdev.KEY_6, "7": evdev.KEY_7, "8": evdev.KEY_8,
	"9": evdev.KEY_9,

	"space":      evdev.KEY_SPACE,
	"minus":      evdev.KEY_MINUS,
	"equal":      evdev.KEY_EQUAL,
	"leftbrace":  evdev.KEY_LEFTBRACE,
	"rightbrace": evdev.KEY_RIGHTBRACE,
	"semicolon":  evdev.KEY_SEMICOLON,
	"apostrophe": evdev.KEY_APOSTROPHE,
	"grave":      evdev.KEY_GRAVE,
	"backslash":  evdev.KEY_BACKSLASH,
	"comma":      evdev.KEY_COMMA,
	"dot":        evdev.KEY_DOT,
	"slash":      evdev.KEY_SLASH,
	"enter":      evdev.KEY_ENTER,
	"tab":        evdev.KEY_TAB,
	"esc":        evdev.KEY_ESC,
	"backspace":  evdev.KEY_BACKSPACE,
}

// codeNames is the reverse of keyNames, built once at startup.
var codeNames = make(map[evdev.EvCode]string, len(keyNames))

// keyStroke is what the synthesizer needs to type one character.
type keyStroke struct {
	code  evdev.EvCode
	shift bool
}

// charKeys maps a printable character back to the key stroke producing
// it, derived from KeyCharMap.
var charKeys = make(map[rune]keyStroke, len(KeyCharMap)*2)

func init() {
	for name, code := range keyNames {
		codeNames[code] = name
	}
	for code, kc := range KeyCharMap {
		if r := singleRune(kc.Normal); r != 0 {
			charKeys[r] = keyStroke{code: code}
		}
	}
	// Shifted variants second, so unshifted wins on collision (space).
	for code, kc := range KeyCharMap {
		r := singleRune(kc.Shifted)
		if r == 0 {
			continue
		}
		if _, ok := charKeys[r]; !ok {
			charKeys[r] = keyStroke{code: code, shift: true}
		}
	}
}

func singleRune(s string) rune {
	if len(s) != 1 {
		return 0
	}
	return rune(s[0])
}

// ParseKeyName resolves a dictionary key name to its evdev code.
func ParseKeyName(name string) (evdev.EvCode, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "key_")
	code, ok := keyNames[n]
	return code, ok
}

// KeyName returns the dictionary name of a key code, or a numeric
// fallback for codes outside the table.
func KeyName(code evdev.EvCode) string {
	if n, ok := codeNames[code]; ok {
		return n
	}
	return fmt.Sprintf("key_%d", code)
}

// CanonicalChord builds the order-independent, duplicate-free lookup
// key for a set of key codes: sorted names joined with "+". Holding
// {T,H} in either press order yields the same string.
func CanonicalChord(codes []evdev.EvCode) string {
	seen := make(map[evdev.EvCode]bool, len(codes))
	names := make([]string, 0, len(codes))
	for _, c := range codes {
		if seen[c] {
			continue
		}
		seen[c] = true
		names = append(names, KeyName(c))
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}

// ParseChordKeys parses a "t+h" style key list into evdev codes.
// Returns an error naming the first unknown key.
func ParseChordKeys(s string) ([]evdev.EvCode, error) {
	parts := strings.Split(s, "+")
	codes := make([]evdev.EvCode, 0, len(parts))
	for _, p := range parts {
		code, ok := ParseKeyName(p)
		if !ok {
			return nil, fmt.Errorf("unknown key name %q", strings.TrimSpace(p))
		}
		codes = append(codes, code)
	}
	return codes, nil
}
