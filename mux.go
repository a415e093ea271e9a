package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Multiplexer is the single resolution loop. It merges key events from
// all device readers with the chord deadline timer, hotplug rescans and
// out-of-band control requests. The tracker, timing model, dictionary
// swap and synthesizer all run on this one goroutine, so event ordering
// alone guarantees correctness; no locks are involved.
type Multiplexer struct {
	log     *zap.SugaredLogger
	devices *DeviceManager
	tracker *Tracker
	timing  *TimingModel
	dict    *Dictionary
	sink    Sink

	events <-chan KeyEvent
	gone   <-chan int
	reload chan struct{}
	reset  chan struct{}

	rescanInterval time.Duration
}

// NewMultiplexer wires the loop. devices may be nil in tests. The
// multiplexer owns the sink for the shutdown path: Run closes it after
// the device handles.
func NewMultiplexer(
	devices *DeviceManager,
	tracker *Tracker,
	timing *TimingModel,
	dict *Dictionary,
	sink Sink,
	events <-chan KeyEvent,
	gone <-chan int,
	rescanInterval time.Duration,
	log *zap.SugaredLogger,
) *Multiplexer {
	return &Multiplexer{
		log:            log,
		devices:        devices,
		tracker:        tracker,
		timing:         timing,
		dict:           dict,
		sink:           sink,
		events:         events,
		gone:           gone,
		reload:         make(chan struct{}, 1),
		reset:          make(chan struct{}, 1),
		rescanInterval: rescanInterval,
	}
}

// Reload requests a dictionary reload from the loop. Non-blocking;
// coalesces with a pending request.
func (m *Multiplexer) Reload() {
	select {
	case m.reload <- struct{}{}:
	default:
	}
}

// ResetTiming requests a timing model reset from the loop.
func (m *Multiplexer) ResetTiming() {
	select {
	case m.reset <- struct{}{}:
	default:
	}
}

// Run drives the loop until ctx is cancelled, then closes all device
// handles and the injection sink and returns ctx.Err().
func (m *Multiplexer) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	rescan := time.NewTicker(m.rescanInterval)
	defer rescan.Stop()

	for {
		select {
		case <-ctx.Done():
			if m.devices != nil {
				m.devices.Close()
			}
			if err := m.sink.Close(); err != nil {
				m.log.Debugf("close sink: %v", err)
			}
			return ctx.Err()

		case ev := <-m.events:
			m.tracker.HandleEvent(ev)
			m.rearm(timer)

		case id := <-m.gone:
			if m.devices != nil {
				m.devices.Remove(id)
			}
			m.tracker.ForceReleaseDevice(id, time.Now())
			m.rearm(timer)

		case <-timer.C:
			m.tracker.ResolveDeadline(time.Now())
			m.rearm(timer)

		case <-rescan.C:
			if m.devices != nil {
				m.devices.Rescan()
			}

		case <-m.reload:
			if err := m.dict.Reload(); err != nil {
				m.log.Warnf("reload dictionary: %v (keeping previous)", err)
				break
			}
			lib := m.dict.Snapshot()
			m.log.Infof("dictionary reloaded: %d entries", lib.Len())

		case <-m.reset:
			m.timing.Reset()
			m.log.Infof("timing model reset")
		}
	}
}

// rearm reprograms the deadline timer from the tracker's view. A zero
// deadline stops the timer entirely.
func (m *Multiplexer) rearm(timer *time.Timer) {
	deadline := m.tracker.Deadline()
	if deadline.IsZero() {
		timer.Stop()
		return
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	timer.Reset(d)
}
