package main

import (
	"fmt"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"go.uber.org/zap"
)

// KeyAction mirrors the evdev key event value.
type KeyAction int32

const (
	ActionRelease KeyAction = 0
	ActionPress   KeyAction = 1
	ActionRepeat  KeyAction = 2
)

// KeyEvent is one key transition from a monitored device, stamped on
// arrival with the monotonic clock.
type KeyEvent struct {
	Device int
	Code   evdev.EvCode
	Action KeyAction
	Time   time.Time
}

// Device is one tracked keyboard. The handle is owned exclusively by
// the DeviceManager; everything else refers to the numeric ID.
type Device struct {
	ID     int
	Path   string
	Name   string
	handle *evdev.InputDevice
}

// DeviceManager discovers keyboard-capable input devices, keeps their
// handles open and runs one reader goroutine per device. Readers only
// forward events onto the shared channel; all bookkeeping (add, remove,
// rescan) happens synchronously on the multiplexer goroutine.
type DeviceManager struct {
	log    *zap.SugaredLogger
	events chan<- KeyEvent
	gone   chan<- int

	devices map[int]*Device
	byPath  map[string]int
	nextID  int
}

// NewDeviceManager creates a manager forwarding events and device-gone
// notices to the given channels.
func NewDeviceManager(events chan<- KeyEvent, gone chan<- int, log *zap.SugaredLogger) *DeviceManager {
	return &DeviceManager{
		log:     log,
		events:  events,
		gone:    gone,
		devices: make(map[int]*Device),
		byPath:  make(map[string]int),
	}
}

// Discover scans /dev/input and opens every device classified as a
// keyboard. Zero keyboards is not an error: hotplug may deliver one
// later.
func (dm *DeviceManager) Discover() error {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return fmt.Errorf("list input devices: %w", err)
	}
	for _, p := range paths {
		dm.tryAdd(p.Path)
	}
	if len(dm.devices) == 0 {
		dm.log.Warnf("no keyboard devices found, waiting for hotplug (are you in the 'input' group?)")
	}
	return nil
}

// Rescan detects hotplug changes: new nodes are opened and classified,
// handles whose node vanished are closed, which makes their reader
// report the device as gone.
func (dm *DeviceManager) Rescan() {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		dm.log.Warnf("rescan input devices: %v", err)
		return
	}
	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p.Path] = true
		if _, ok := dm.byPath[p.Path]; !ok {
			dm.tryAdd(p.Path)
		}
	}
	for path, id := range dm.byPath {
		if !present[path] {
			dm.devices[id].handle.Close()
		}
	}
}

// tryAdd opens and classifies one device node. Open or probe failures
// are non-fatal: log, skip, keep going with the other devices.
func (dm *DeviceManager) tryAdd(path string) {
	dev, err := evdev.Open(path)
	if err != nil {
		dm.log.Debugf("open %s: %v", path, err)
		return
	}
	if !hasKeyboardCaps(dev.CapableEvents(evdev.EV_KEY)) {
		dev.Close()
		return
	}
	name, _ := dev.Name()
	if name == virtualKeyboardName {
		// Our own injection device; reading it back would loop.
		dev.Close()
		return
	}

	d := &Device{ID: dm.nextID, Path: path, Name: name, handle: dev}
	dm.nextID++
	dm.devices[d.ID] = d
	dm.byPath[path] = d.ID
	dm.log.Infof("monitoring keyboard %q (%s)", name, path)

	go dm.read(d)
}

// Remove drops a device from the table and closes its handle. Safe to
// call after the reader already stopped.
func (dm *DeviceManager) Remove(id int) {
	d, ok := dm.devices[id]
	if !ok {
		return
	}
	delete(dm.devices, id)
	delete(dm.byPath, d.Path)
	d.handle.Close()
	dm.log.Infof("keyboard %q (%s) removed", d.Name, d.Path)
}

// Close closes every tracked handle, stopping all readers.
func (dm *DeviceManager) Close() {
	for _, d := range dm.devices {
		d.handle.Close()
	}
}

// read forwards press/release events from one device in kernel delivery
// order. Autorepeat never reaches the tracker: it is dropped here. On a
// read error the device is reported gone and the goroutine exits.
func (dm *DeviceManager) read(d *Device) {
	for {
		ev, err := d.handle.ReadOne()
		if err != nil {
			dm.gone <- d.ID
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		action := KeyAction(ev.Value)
		if action != ActionPress && action != ActionRelease {
			continue
		}
		dm.events <- KeyEvent{
			Device: d.ID,
			Code:   ev.Code,
			Action: action,
			Time:   time.Now(),
		}
	}
}

// hasKeyboardCaps classifies a device as a keyboard when its EV_KEY
// capability bitmap covers representative alphabetic keys and space.
// This guards against mice, power buttons and similar EV_KEY devices.
func hasKeyboardCaps(codes []evdev.EvCode) bool {
	var hasA, hasZ, hasSpace bool
	for _, c := range codes {
		switch c {
		case evdev.KEY_A:
			hasA = true
		case evdev.KEY_Z:
			hasZ = true
		case evdev.KEY_SPACE:
			hasSpace = true
		}
	}
	return hasA && hasZ && hasSpace
}
