// Package input defines button events, the ordered event queue, key
// debouncing, and the physical-to-logical button mapping.
package input

import (
	"log"
	"sync"
	"time"
)

// Button is a logical button after mapping.
type Button uint8

const (
	Up Button = iota
	Down
	Left
	Right
	Center
	Back
	Power
	buttonCount
)

func (b Button) String() string {
	names := [...]string{"up", "down", "left", "right", "center", "back", "power"}
	if int(b) < len(names) {
		return names[b]
	}
	return "?"
}

// EventType distinguishes press, release and long press.
type EventType uint8

const (
	Press EventType = iota
	Release
	LongPress
)

// Event is one input occurrence.
type Event struct {
	Button Button
	Type   EventType
	At     time.Time
}

// LongPressAfter is the hold duration that promotes a press to LongPress.
const LongPressAfter = 700 * time.Millisecond

// DebounceAfter is the minimum quiet time between edges of one button.
const DebounceAfter = 20 * time.Millisecond

// Queue is a fixed-capacity ring buffer of events. Producers may run on
// any goroutine; the UI goroutine drains in arrival order each tick.
// When full, the oldest event is dropped with a warning.
type Queue struct {
	mu    sync.Mutex
	buf   []Event
	head  int
	count int
}

// NewQueue creates a queue holding up to capacity events.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 32
	}
	return &Queue{buf: make([]Event, capacity)}
}

// Push appends an event, evicting the oldest on overflow.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		log.Printf("warning: input queue full, dropping oldest event")
		q.head = (q.head + 1) % len(q.buf)
		q.count--
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ev
	q.count++
}

// Pop removes and returns the oldest event.
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return Event{}, false
	}
	ev := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return ev, true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Debouncer turns raw per-button level changes into debounced Press,
// Release and LongPress events. Feed it raw edges via Update and clock
// it via Tick; emitted events go to the queue.
type Debouncer struct {
	queue *Queue
	state [buttonCount]struct {
		down      bool
		lastEdge  time.Time
		pressedAt time.Time
		longSent  bool
	}
}

// NewDebouncer wires a debouncer to its output queue.
func NewDebouncer(q *Queue) *Debouncer {
	return &Debouncer{queue: q}
}

// Update feeds a raw button level. Edges inside the debounce window are
// ignored.
func (d *Debouncer) Update(b Button, down bool, now time.Time) {
	if b >= buttonCount {
		return
	}
	st := &d.state[b]
	if down == st.down {
		return
	}
	if now.Sub(st.lastEdge) < DebounceAfter {
		return
	}
	st.lastEdge = now
	st.down = down
	if down {
		st.pressedAt = now
		st.longSent = false
		d.queue.Push(Event{Button: b, Type: Press, At: now})
		return
	}
	// Release after a long press was already reported is swallowed so a
	// long press produces exactly one logical action.
	if !st.longSent {
		d.queue.Push(Event{Button: b, Type: Release, At: now})
	}
}

// Tick promotes held buttons to LongPress once the threshold elapses.
func (d *Debouncer) Tick(now time.Time) {
	for b := Button(0); b < buttonCount; b++ {
		st := &d.state[b]
		if st.down && !st.longSent && now.Sub(st.pressedAt) >= LongPressAfter {
			st.longSent = true
			d.queue.Push(Event{Button: b, Type: LongPress, At: now})
		}
	}
}

// Mapping applies the two user-facing orientation settings: rotation of
// the front button pad in quarter turns, and inversion of the side
// page-turn buttons.
type Mapping struct {
	FrontRotation uint8 // 0-3 quarter turns clockwise
	SideInverted  bool
}

// Apply maps a physical button to its logical meaning.
func (m Mapping) Apply(b Button) Button {
	switch b {
	case Up, Right, Down, Left:
		pad := [...]Button{Up, Right, Down, Left}
		var idx int
		for i, p := range pad {
			if p == b {
				idx = i
				break
			}
		}
		return pad[(idx+int(m.FrontRotation))%4]
	case Center, Back, Power:
		return b
	}
	return b
}

// ApplySide maps the two side buttons (reported as Left/Right) honoring
// the inversion setting.
func (m Mapping) ApplySide(b Button) Button {
	if !m.SideInverted {
		return b
	}
	switch b {
	case Left:
		return Right
	case Right:
		return Left
	}
	return b
}
