// Package evdevin feeds the input queue from Linux evdev devices: it
// scans /dev/input for the button matrix, maps key codes to raw
// buttons, and runs them through the debouncer.
package evdevin

import (
	"fmt"
	"log"
	"time"

	"github.com/holoplot/go-evdev"

	"github.com/sumireader/sumi/internal/errs"
	"github.com/sumireader/sumi/internal/input"
)

// keyMap translates evdev key codes to raw (pre-mapping) buttons.
var keyMap = map[evdev.EvCode]input.Button{
	evdev.KEY_UP:         input.Up,
	evdev.KEY_DOWN:       input.Down,
	evdev.KEY_LEFT:       input.Left,
	evdev.KEY_RIGHT:      input.Right,
	evdev.KEY_ENTER:      input.Center,
	evdev.KEY_OK:         input.Center,
	evdev.KEY_BACK:       input.Back,
	evdev.KEY_ESC:        input.Back,
	evdev.KEY_POWER:      input.Power,
	evdev.KEY_PAGEUP:     input.Left,
	evdev.KEY_PAGEDOWN:   input.Right,
	evdev.KEY_VOLUMEUP:   input.Up, // side rocker on some revisions
	evdev.KEY_VOLUMEDOWN: input.Down,
}

// Reader owns the opened devices and the debouncer feeding the queue.
type Reader struct {
	devices []*evdev.InputDevice
	deb     *input.Debouncer
	mapBtn  func(input.Button) input.Button
	stop    chan struct{}
}

// Open scans /dev/input and opens every device that reports a key we
// care about. mapBtn applies the user's orientation settings to each
// raw button before debouncing; nil leaves buttons unmapped.
func Open(queue *input.Queue, mapBtn func(input.Button) input.Button) (*Reader, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, errs.E(errs.IOError, "evdevin.Open", err)
	}

	r := &Reader{
		deb:    input.NewDebouncer(queue),
		mapBtn: mapBtn,
		stop:   make(chan struct{}),
	}
	for _, ip := range paths {
		dev, err := evdev.Open(ip.Path)
		if err != nil {
			log.Printf("warning: cannot open %s: %v", ip.Path, err)
			continue
		}
		if !reportsButtons(dev) {
			dev.Close()
			continue
		}
		name, _ := dev.Name()
		log.Printf("using input device %s (%s)", ip.Path, name)
		r.devices = append(r.devices, dev)
	}
	if len(r.devices) == 0 {
		return nil, errs.E(errs.FileNotFound, "evdevin.Open",
			fmt.Errorf("no button device found under /dev/input"))
	}
	return r, nil
}

func reportsButtons(dev *evdev.InputDevice) bool {
	codes := dev.CapableEvents(evdev.EV_KEY)
	for _, code := range codes {
		if _, ok := keyMap[code]; ok {
			return true
		}
	}
	return false
}

// Run reads events until Close. One goroutine per device plus a ticker
// that promotes held buttons to long presses.
func (r *Reader) Run() {
	for _, dev := range r.devices {
		go r.readDevice(dev)
	}
	go func() {
		t := time.NewTicker(50 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-r.stop:
				return
			case now := <-t.C:
				r.deb.Tick(now)
			}
		}
	}()
}

func (r *Reader) readDevice(dev *evdev.InputDevice) {
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		ev, err := dev.ReadOne()
		if err != nil {
			log.Printf("warning: input read failed: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		r.handleKey(ev.Code, ev.Value, time.Now())
	}
}

// handleKey translates one key event, applies the orientation mapping
// and feeds the debouncer.
func (r *Reader) handleKey(code evdev.EvCode, value int32, now time.Time) {
	btn, ok := keyMap[code]
	if !ok {
		return
	}
	if r.mapBtn != nil {
		btn = r.mapBtn(btn)
	}
	// Value 2 is auto-repeat; the debouncer derives long presses from
	// hold time itself.
	switch value {
	case 1:
		r.deb.Update(btn, true, now)
	case 0:
		r.deb.Update(btn, false, now)
	}
}

// Close stops the readers and releases the devices.
func (r *Reader) Close() {
	close(r.stop)
	for _, dev := range r.devices {
		dev.Close()
	}
}
