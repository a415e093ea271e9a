package main

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
)

func TestHasKeyboardCaps(t *testing.T) {
	full := []evdev.EvCode{evdev.KEY_A, evdev.KEY_Z, evdev.KEY_SPACE, evdev.KEY_ENTER}
	assert.True(t, hasKeyboardCaps(full))

	// A mouse with a couple of buttons, a power button, a bare numpad:
	// none of these carry the representative alphabetic keys + space.
	assert.False(t, hasKeyboardCaps([]evdev.EvCode{evdev.BTN_LEFT, evdev.BTN_RIGHT}))
	assert.False(t, hasKeyboardCaps([]evdev.EvCode{evdev.KEY_POWER}))
	assert.False(t, hasKeyboardCaps([]evdev.EvCode{evdev.KEY_A, evdev.KEY_Z}))
	assert.False(t, hasKeyboardCaps(nil))
}
