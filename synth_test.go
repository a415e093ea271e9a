package main

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeSink records injection calls; mux tests read it from another
// goroutine, hence the mutex.
type fakeSink struct {
	mu         sync.Mutex
	backspaces []int
	texts      []string
	closes     int

	backspaceErr error
	textErr      error
}

func (f *fakeSink) SendBackspace(count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backspaceErr != nil {
		return f.backspaceErr
	}
	f.backspaces = append(f.backspaces, count)
	return nil
}

func (f *fakeSink) SendText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return f.textErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeSink) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeSink) snapshot() ([]int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.backspaces...), append([]string(nil), f.texts...)
}

func TestSubstituteErasesThenInjects(t *testing.T) {
	sink := &fakeSink{}
	s := NewSynthesizer(sink, zap.NewNop().Sugar())

	s.Substitute(Entry{Output: "through"}, 2)

	bs, texts := sink.snapshot()
	assert.Equal(t, []int{2}, bs)
	assert.Equal(t, []string{"through"}, texts)
}

func TestSubstituteZeroErase(t *testing.T) {
	sink := &fakeSink{}
	s := NewSynthesizer(sink, zap.NewNop().Sugar())

	s.Substitute(Entry{Output: "x"}, 0)

	bs, texts := sink.snapshot()
	assert.Empty(t, bs, "no backspaces requested")
	assert.Equal(t, []string{"x"}, texts)
}

func TestSubstituteSuffixEatsSeparator(t *testing.T) {
	sink := &fakeSink{}
	s := NewSynthesizer(sink, zap.NewNop().Sugar())

	// The word before the chord is separated by a space the user
	// typed; a suffix joins across it with one extra backspace.
	s.Substitute(Entry{Output: "ing", Kind: KindSuffix}, 3)

	bs, texts := sink.snapshot()
	assert.Equal(t, []int{4}, bs)
	assert.Equal(t, []string{"ing"}, texts)
}

func TestSubstitutePrefixAndChordEraseExactly(t *testing.T) {
	for _, kind := range []EntryKind{KindChord, KindException, KindPrefix} {
		sink := &fakeSink{}
		s := NewSynthesizer(sink, zap.NewNop().Sugar())

		s.Substitute(Entry{Output: "pre", Kind: kind}, 2)

		bs, texts := sink.snapshot()
		assert.Equal(t, []int{2}, bs, "kind %d erases only the chord's own characters", kind)
		assert.Equal(t, []string{"pre"}, texts)
	}
}

func TestSubstituteAbandonsOnBackspaceError(t *testing.T) {
	sink := &fakeSink{backspaceErr: errors.New("sink gone")}
	s := NewSynthesizer(sink, zap.NewNop().Sugar())

	s.Substitute(Entry{Output: "through"}, 2)

	_, texts := sink.snapshot()
	assert.Empty(t, texts, "raw keystrokes stay as typed when erase fails")
}

func TestSubstituteSurvivesTextError(t *testing.T) {
	sink := &fakeSink{textErr: errors.New("rejected")}
	s := NewSynthesizer(sink, zap.NewNop().Sugar())

	// Must not panic; the error is logged and dropped.
	s.Substitute(Entry{Output: "through"}, 1)
}
