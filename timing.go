package main

import "time"

// TimingConfig holds the parameters of the adaptive timeout model.
type TimingConfig struct {
	// Alpha is the EWMA smoothing constant for inter-key intervals.
	Alpha float64
	// Multiplier scales the smoothed interval into the chord timeout.
	Multiplier float64
	// BaseTimeout is used until WarmupSamples intervals were observed.
	BaseTimeout time.Duration
	// MinTimeout and MaxTimeout clamp the computed timeout.
	MinTimeout time.Duration
	MaxTimeout time.Duration
	// WarmupSamples is the number of observations before the computed
	// timeout replaces BaseTimeout.
	WarmupSamples int
}

// TimingModel tracks the user's natural typing cadence as an
// exponentially-weighted moving average of inter-keystroke intervals
// and derives the chord-vs-sequential decision timeout from it. Keys
// pressed closer together than the timeout are chord candidates.
type TimingModel struct {
	cfg     TimingConfig
	avg     time.Duration
	samples int
}

// NewTimingModel creates a model bootstrapped with BaseTimeout as the
// initial cadence estimate.
func NewTimingModel(cfg TimingConfig) *TimingModel {
	m := &TimingModel{cfg: cfg}
	m.Reset()
	return m
}

// Observe feeds one inter-keystroke interval into the moving average.
// Non-positive intervals and intervals far above MaxTimeout are
// discarded: a pause between words is not typing cadence.
func (m *TimingModel) Observe(interval time.Duration) {
	if interval <= 0 || interval > m.cfg.MaxTimeout*4 {
		return
	}
	a := m.cfg.Alpha
	m.avg = time.Duration(float64(m.avg)*(1-a) + float64(interval)*a)
	m.samples++
}

// Timeout returns the current adaptive chord timeout:
// clamp(Multiplier * avg, MinTimeout, MaxTimeout). Before warm-up
// completes the conservative BaseTimeout is returned instead.
func (m *TimingModel) Timeout() time.Duration {
	if m.samples < m.cfg.WarmupSamples {
		return m.cfg.BaseTimeout
	}
	t := time.Duration(float64(m.avg) * m.cfg.Multiplier)
	if t < m.cfg.MinTimeout {
		return m.cfg.MinTimeout
	}
	if t > m.cfg.MaxTimeout {
		return m.cfg.MaxTimeout
	}
	return t
}

// Samples reports how many intervals were observed since the last reset.
func (m *TimingModel) Samples() int {
	return m.samples
}

// Reset returns the model to its bootstrap state.
func (m *TimingModel) Reset() {
	m.avg = m.cfg.BaseTimeout
	m.samples = 0
}
