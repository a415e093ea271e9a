package main

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalChordOrderIndependent(t *testing.T) {
	a := CanonicalChord([]evdev.EvCode{evdev.KEY_A, evdev.KEY_S})
	b := CanonicalChord([]evdev.EvCode{evdev.KEY_S, evdev.KEY_A})
	assert.Equal(t, a, b)
	assert.Equal(t, "a+s", a)
}

func TestCanonicalChordDeduplicates(t *testing.T) {
	got := CanonicalChord([]evdev.EvCode{evdev.KEY_T, evdev.KEY_H, evdev.KEY_T})
	assert.Equal(t, "h+t", got)
}

func TestParseKeyNameVariants(t *testing.T) {
	for _, name := range []string{"t", "T", "KEY_T", "key_t", " t "} {
		code, ok := ParseKeyName(name)
		require.True(t, ok, "name %q", name)
		assert.Equal(t, evdev.EvCode(evdev.KEY_T), code)
	}

	code, ok := ParseKeyName("space")
	require.True(t, ok)
	assert.Equal(t, evdev.EvCode(evdev.KEY_SPACE), code)

	_, ok = ParseKeyName("notakey")
	assert.False(t, ok)
}

func TestParseChordKeys(t *testing.T) {
	codes, err := ParseChordKeys("t + h")
	require.NoError(t, err)
	assert.Equal(t, []evdev.EvCode{evdev.KEY_T, evdev.KEY_H}, codes)

	_, err = ParseChordKeys("t+bogus")
	assert.ErrorContains(t, err, "bogus")
}

func TestCharKeysRoundTrip(t *testing.T) {
	ks, ok := charKeys['a']
	require.True(t, ok)
	assert.Equal(t, evdev.EvCode(evdev.KEY_A), ks.code)
	assert.False(t, ks.shift)

	ks, ok = charKeys['A']
	require.True(t, ok)
	assert.Equal(t, evdev.EvCode(evdev.KEY_A), ks.code)
	assert.True(t, ks.shift)

	// Space maps unshifted even though both columns contain it.
	ks, ok = charKeys[' ']
	require.True(t, ok)
	assert.Equal(t, evdev.EvCode(evdev.KEY_SPACE), ks.code)
	assert.False(t, ks.shift)
}

func TestKeyNameFallback(t *testing.T) {
	assert.Equal(t, "t", KeyName(evdev.KEY_T))
	assert.Equal(t, "key_9999", KeyName(evdev.EvCode(9999)))
}
