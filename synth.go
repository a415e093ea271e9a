package main

import (
	"fmt"
	"time"

	"github.com/bendahl/uinput"
	"go.uber.org/zap"
)

// Sink is the outbound injection interface: ordered erase and text
// requests against a virtual input device. Tests substitute a fake.
type Sink interface {
	SendBackspace(count int) error
	SendText(text string) error
	Close() error
}

// uinputSink types through a kernel uinput virtual keyboard.
type uinputSink struct {
	kbd   uinput.Keyboard
	delay time.Duration
}

// virtualKeyboardName is the uinput device name. Discovery skips any
// device carrying this name so we never read back our own injections.
const virtualKeyboardName = "zipchord"

// NewUinputSink creates the virtual keyboard used for corrections.
func NewUinputSink(delay time.Duration) (Sink, error) {
	kbd, err := uinput.CreateKeyboard("/dev/uinput", []byte(virtualKeyboardName))
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}
	return &uinputSink{kbd: kbd, delay: delay}, nil
}

func (s *uinputSink) SendBackspace(count int) error {
	for i := 0; i < count; i++ {
		if err := s.kbd.KeyPress(uinput.KeyBackspace); err != nil {
			return fmt.Errorf("backspace: %w", err)
		}
		time.Sleep(s.delay)
	}
	return nil
}

func (s *uinputSink) SendText(text string) error {
	for _, r := range text {
		ks, ok := charKeys[r]
		if !ok {
			return fmt.Errorf("no key mapping for %q", r)
		}
		if ks.shift {
			if err := s.kbd.KeyDown(uinput.KeyLeftshift); err != nil {
				return fmt.Errorf("shift down: %w", err)
			}
		}
		err := s.kbd.KeyPress(int(ks.code))
		if ks.shift {
			// Release shift even when the press failed.
			if upErr := s.kbd.KeyUp(uinput.KeyLeftshift); err == nil {
				err = upErr
			}
		}
		if err != nil {
			return fmt.Errorf("type %q: %w", r, err)
		}
		time.Sleep(s.delay)
	}
	return nil
}

func (s *uinputSink) Close() error {
	return s.kbd.Close()
}

// Synthesizer performs the retroactive correction for a matched chord:
// erase the raw characters the chord keys already delivered, then
// inject the replacement. It only ever runs from the single-threaded
// resolution path, so one synthesis is always complete before the next
// begins; events arriving meanwhile queue in the multiplexer channel
// and are replayed afterwards.
type Synthesizer struct {
	sink Sink
	log  *zap.SugaredLogger
}

// NewSynthesizer wraps a sink.
func NewSynthesizer(sink Sink, log *zap.SugaredLogger) *Synthesizer {
	return &Synthesizer{sink: sink, log: log}
}

// Substitute erases `erase` characters and injects the entry's output.
// The entry kind decides how the output joins its neighbors: a suffix
// joins the word before the chord, so one extra backspace eats the
// separating space the user typed; a prefix joins the word the user
// types next, which needs no action beyond omitting any trailing
// space. A sink failure abandons the correction: the raw keystrokes
// remain as typed and the daemon carries on.
func (s *Synthesizer) Substitute(entry Entry, erase int) {
	if entry.Kind == KindSuffix && erase > 0 {
		erase++
	}
	if erase > 0 {
		if err := s.sink.SendBackspace(erase); err != nil {
			s.log.Warnf("inject backspaces: %v (leaving raw input)", err)
			return
		}
	}
	if err := s.sink.SendText(entry.Output); err != nil {
		s.log.Warnf("inject text: %v", err)
	}
}
