package main

import (
	"context"
	"testing"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// startMux runs a multiplexer without a device manager; events are fed
// straight into the channel the readers would use.
func startMux(t *testing.T, dict *Dictionary) (chan KeyEvent, chan int, *Multiplexer, *fakeSink) {
	t.Helper()
	log := zap.NewNop().Sugar()
	sink := &fakeSink{}
	timing := NewTimingModel(testTimingConfig())
	tracker := NewTracker(timing, dict, NewSynthesizer(sink, log), log)

	events := make(chan KeyEvent, 16)
	gone := make(chan int, 4)
	mux := NewMultiplexer(nil, tracker, timing, dict, sink, events, gone, time.Hour, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mux.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return events, gone, mux, sink
}

func TestMultiplexerChordEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeDict(t, dir, "d.zc", "[chords]\nt+h => through\n")
	dict := loadDict(t, dir)

	events, _, _, sink := startMux(t, dict)

	now := time.Now()
	events <- press(0, evdev.KEY_T, now)
	events <- press(0, evdev.KEY_H, now.Add(5*time.Millisecond))
	events <- release(0, evdev.KEY_T, now.Add(20*time.Millisecond))
	events <- release(0, evdev.KEY_H, now.Add(24*time.Millisecond))

	require.Eventually(t, func() bool {
		_, texts := sink.snapshot()
		return len(texts) == 1
	}, time.Second, 5*time.Millisecond, "deadline timer resolves the session")

	bs, texts := sink.snapshot()
	assert.Equal(t, []int{2}, bs)
	assert.Equal(t, []string{"through"}, texts)
}

func TestMultiplexerDeviceGoneForceReleases(t *testing.T) {
	dir := t.TempDir()
	writeDict(t, dir, "d.zc", "[chords]\nt+h => through\n")
	dict := loadDict(t, dir)

	events, gone, _, sink := startMux(t, dict)

	now := time.Now()
	events <- press(0, evdev.KEY_T, now)
	events <- press(1, evdev.KEY_H, now.Add(4*time.Millisecond))
	events <- release(0, evdev.KEY_T, now.Add(15*time.Millisecond))
	gone <- 1 // device 1 unplugged while H is held

	require.Eventually(t, func() bool {
		_, texts := sink.snapshot()
		return len(texts) == 1
	}, time.Second, 5*time.Millisecond, "session settles despite the disconnect")

	_, texts := sink.snapshot()
	assert.Equal(t, []string{"through"}, texts)
}

func TestMultiplexerReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeDict(t, dir, "d.zc", "[chords]\nt+h => the\n")
	dict := loadDict(t, dir)

	_, _, mux, _ := startMux(t, dict)

	writeDict(t, dir, "d.zc", "[chords]\nt+h => through\na+n => and\n")
	mux.Reload()

	require.Eventually(t, func() bool {
		return dict.Snapshot().Len() == 2
	}, time.Second, 5*time.Millisecond)

	e, ok := dict.Snapshot().Resolve("h+t")
	require.True(t, ok)
	assert.Equal(t, "through", e.Output)
}

func TestMultiplexerClosesSinkOnShutdown(t *testing.T) {
	log := zap.NewNop().Sugar()
	sink := &fakeSink{}
	timing := NewTimingModel(testTimingConfig())
	dict := loadDict(t, t.TempDir())
	tracker := NewTracker(timing, dict, NewSynthesizer(sink, log), log)

	events := make(chan KeyEvent, 1)
	gone := make(chan int, 1)
	mux := NewMultiplexer(nil, tracker, timing, dict, sink, events, gone, time.Hour, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mux.Run(ctx)
		close(done)
	}()

	cancel()
	<-done
	assert.Equal(t, 1, sink.closeCount())
}

func TestMultiplexerTimingReset(t *testing.T) {
	log := zap.NewNop().Sugar()
	sink := &fakeSink{}
	timing := NewTimingModel(testTimingConfig())
	dict := loadDict(t, t.TempDir())
	tracker := NewTracker(timing, dict, NewSynthesizer(sink, log), log)

	// Pre-warm the model before the loop starts.
	for i := 0; i < 10; i++ {
		timing.Observe(90 * time.Millisecond)
	}
	require.Equal(t, 10, timing.Samples())

	events := make(chan KeyEvent, 1)
	gone := make(chan int, 1)
	mux := NewMultiplexer(nil, tracker, timing, dict, sink, events, gone, time.Hour, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mux.Run(ctx)
		close(done)
	}()

	mux.ResetTiming()
	time.Sleep(50 * time.Millisecond) // let the loop drain the request
	cancel()
	<-done

	// Safe to inspect now: the loop goroutine has exited.
	assert.Equal(t, 0, timing.Samples())
	assert.Equal(t, 40*time.Millisecond, timing.Timeout())
}
