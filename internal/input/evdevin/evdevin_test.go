package evdevin

import (
	"testing"
	"time"

	"github.com/holoplot/go-evdev"

	"github.com/sumireader/sumi/internal/input"
)

func testReader(q *input.Queue, mapBtn func(input.Button) input.Button) *Reader {
	return &Reader{
		deb:    input.NewDebouncer(q),
		mapBtn: mapBtn,
		stop:   make(chan struct{}),
	}
}

func TestHandleKeyAppliesMapping(t *testing.T) {
	m := input.Mapping{FrontRotation: 1}
	q := input.NewQueue(8)
	r := testReader(q, func(b input.Button) input.Button {
		return m.ApplySide(m.Apply(b))
	})

	r.handleKey(evdev.KEY_UP, 1, time.Now())

	ev, ok := q.Pop()
	if !ok {
		t.Fatalf("no event queued")
	}
	if ev.Button != input.Right {
		t.Fatalf("Button = %v, want %v", ev.Button, input.Right)
	}
	if ev.Type != input.Press {
		t.Fatalf("Type = %v, want Press", ev.Type)
	}
}

func TestHandleKeySideInversion(t *testing.T) {
	m := input.Mapping{SideInverted: true}
	q := input.NewQueue(8)
	r := testReader(q, func(b input.Button) input.Button {
		return m.ApplySide(m.Apply(b))
	})

	r.handleKey(evdev.KEY_PAGEDOWN, 1, time.Now())

	ev, ok := q.Pop()
	if !ok {
		t.Fatalf("no event queued")
	}
	if ev.Button != input.Left {
		t.Fatalf("Button = %v, want %v", ev.Button, input.Left)
	}
}

func TestHandleKeyNilMappingIsIdentity(t *testing.T) {
	q := input.NewQueue(8)
	r := testReader(q, nil)

	r.handleKey(evdev.KEY_DOWN, 1, time.Now())

	ev, ok := q.Pop()
	if !ok {
		t.Fatalf("no event queued")
	}
	if ev.Button != input.Down {
		t.Fatalf("Button = %v, want %v", ev.Button, input.Down)
	}
}

func TestHandleKeyIgnoresRepeatAndUnknown(t *testing.T) {
	q := input.NewQueue(8)
	r := testReader(q, nil)

	r.handleKey(evdev.KEY_UP, 2, time.Now()) // auto-repeat
	r.handleKey(evdev.KEY_A, 1, time.Now())  // not a device button

	if q.Len() != 0 {
		t.Fatalf("queued %d events, want 0", q.Len())
	}
}
