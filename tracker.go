package main

import (
	"sort"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"go.uber.org/zap"
)

// MaxChordKeys caps the number of keys tracked in one session. Presses
// beyond the cap still refresh the deadline but are not recorded.
const MaxChordKeys = 8

// minQuiescence is the floor of the settle wait after the last release.
const minQuiescence = 5 * time.Millisecond

// pressRecord tracks one key held during the current session.
type pressRecord struct {
	device   int
	code     evdev.EvCode
	pressed  time.Time
	released time.Time // zero while physically held
}

// Tracker is the chord resolution state machine. It is Idle when no
// session is open and Accumulating while at least one pressRecord
// exists. All methods run on the multiplexer goroutine; the tracker
// holds no locks.
//
// A session settles when every tracked key has been released and a
// quiescence interval (a quarter of the adaptive timeout, floored at
// minQuiescence) passes with no new press; a press during quiescence
// rejoins the session. The sliding press deadline (last press plus the
// adaptive timeout) is the stuck-key safety net: if it expires first
// the session resolves with whatever accumulated.
type Tracker struct {
	log    *zap.SugaredLogger
	timing *TimingModel
	dict   *Dictionary
	synth  *Synthesizer

	records  []pressRecord
	deadline time.Time

	// lastResolved is the final press time of the previous session,
	// kept so sequential typing across session boundaries still feeds
	// the cadence estimate.
	lastResolved time.Time
}

// NewTracker wires the state machine to its collaborators.
func NewTracker(timing *TimingModel, dict *Dictionary, synth *Synthesizer, log *zap.SugaredLogger) *Tracker {
	return &Tracker{log: log, timing: timing, dict: dict, synth: synth}
}

// HandleEvent feeds one key event into the state machine. Repeat
// actions are already filtered by the device readers; anything that is
// not a plain press or release is ignored here as well.
func (t *Tracker) HandleEvent(ev KeyEvent) {
	switch ev.Action {
	case ActionPress:
		t.onPress(ev)
	case ActionRelease:
		t.onRelease(ev)
	}
}

func (t *Tracker) onPress(ev KeyEvent) {
	if i := t.find(ev.Code); i >= 0 {
		// Duplicate press before release: refresh the timestamp only.
		t.records[i].pressed = ev.Time
		t.records[i].released = time.Time{}
	} else if len(t.records) < MaxChordKeys {
		t.records = append(t.records, pressRecord{
			device:  ev.Device,
			code:    ev.Code,
			pressed: ev.Time,
		})
	}
	t.deadline = ev.Time.Add(t.timing.Timeout())
}

func (t *Tracker) onRelease(ev KeyEvent) {
	i := t.find(ev.Code)
	if i < 0 {
		// Key was pressed before we started observing; nothing to do.
		return
	}
	t.records[i].released = ev.Time
	if t.allReleased() {
		t.deadline = ev.Time.Add(t.quiescence())
	}
}

// Deadline reports when the multiplexer timer should next fire, or the
// zero time when the tracker is Idle.
func (t *Tracker) Deadline() time.Time {
	if len(t.records) == 0 {
		return time.Time{}
	}
	return t.deadline
}

// ResolveDeadline runs the resolution due at now. A stale timer fire
// (deadline moved forward since it was armed) is a no-op.
func (t *Tracker) ResolveDeadline(now time.Time) {
	if len(t.records) == 0 || now.Before(t.deadline) {
		return
	}
	t.resolve(!t.allReleased())
}

// ForceReleaseDevice releases every key the given device contributed,
// so a disconnect never leaves the session stuck on a phantom press.
func (t *Tracker) ForceReleaseDevice(device int, now time.Time) {
	touched := false
	for i := range t.records {
		if t.records[i].device == device && t.records[i].released.IsZero() {
			t.records[i].released = now
			touched = true
		}
	}
	if touched && t.allReleased() {
		t.deadline = now.Add(t.quiescence())
	}
}

// resolve closes the current session: canonicalize the ever-held key
// set, consult the dictionary, hand a match to the synthesizer, feed
// the observed cadence back to the timing model, return to Idle.
// A one-key session is ordinary typing and is never looked up; it
// still feeds the cadence estimate.
func (t *Tracker) resolve(forced bool) {
	if len(t.records) >= 2 {
		t.lookup(forced)
	}
	t.feedTiming()
	t.records = t.records[:0]
	t.deadline = time.Time{}
}

func (t *Tracker) lookup(forced bool) {
	codes := make([]evdev.EvCode, len(t.records))
	for i, r := range t.records {
		codes[i] = r.code
	}
	chord := CanonicalChord(codes)

	if entry, ok := t.dict.Snapshot().Resolve(chord); ok {
		erase := 0
		for _, c := range codes {
			if _, printable := KeyCharMap[c]; printable {
				erase++
			}
		}
		t.log.Debugf("chord %s -> %q (erase %d, forced=%v)", chord, entry.Output, erase, forced)
		t.synth.Substitute(entry, erase)
	} else {
		// Passthrough: the keys already reached the foreground.
		t.log.Debugf("no match for %s, passing through", chord)
	}
}

// feedTiming reports this session's inter-press intervals, plus the gap
// from the previous session's last press, to the timing model. Even a
// non-chord session refines the estimate: it is the user's genuine
// sequential typing speed. Intervals the model considers outliers are
// discarded there.
func (t *Tracker) feedTiming() {
	times := make([]time.Time, len(t.records))
	for i, r := range t.records {
		times[i] = r.pressed
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	prev := t.lastResolved
	for _, pt := range times {
		if !prev.IsZero() {
			t.timing.Observe(pt.Sub(prev))
		}
		prev = pt
	}
	t.lastResolved = prev
}

func (t *Tracker) find(code evdev.EvCode) int {
	for i := range t.records {
		if t.records[i].code == code {
			return i
		}
	}
	return -1
}

func (t *Tracker) allReleased() bool {
	for i := range t.records {
		if t.records[i].released.IsZero() {
			return false
		}
	}
	return true
}

func (t *Tracker) quiescence() time.Duration {
	q := t.timing.Timeout() / 4
	if q < minQuiescence {
		q = minQuiescence
	}
	return q
}
