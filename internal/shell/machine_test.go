package shell

import (
	"fmt"
	"testing"

	"github.com/sumireader/sumi/internal/input"
)

// stubState records its lifecycle calls into a shared trace.
type stubState struct {
	name     string
	trace    *[]string
	enterErr error
	onInput  func(c *Core, m *Machine, ev input.Event)
}

func (s *stubState) Enter(c *Core) error {
	*s.trace = append(*s.trace, "enter "+s.name)
	return s.enterErr
}

func (s *stubState) HandleInput(c *Core, m *Machine, ev input.Event) {
	*s.trace = append(*s.trace, fmt.Sprintf("input %s %v", s.name, ev.Button))
	if s.onInput != nil {
		s.onInput(c, m, ev)
	}
}

func (s *stubState) Render(c *Core) error {
	*s.trace = append(*s.trace, "render "+s.name)
	return nil
}

func (s *stubState) Exit(c *Core) {
	*s.trace = append(*s.trace, "exit "+s.name)
}

func stubMachine(trace *[]string) (*Machine, *Core) {
	c := &Core{Queue: input.NewQueue(8)}
	m := &Machine{
		core: c,
		states: map[StateID]State{
			StateHome:     &stubState{name: "home", trace: trace},
			StateFileList: &stubState{name: "filelist", trace: trace},
			StateError:    &errorState{},
		},
		current:    StateHome,
		needRender: true,
	}
	return m, c
}

func TestMachineEnterExitPairing(t *testing.T) {
	var trace []string
	m, _ := stubMachine(&trace)

	m.Start()
	m.TransitionTo(StateFileList)
	m.TransitionTo(StateHome)

	want := []string{
		"enter home",
		"exit home", "enter filelist",
		"exit filelist", "enter home",
	}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace[%d] = %q, want %q", i, trace[i], want[i])
		}
	}
	if m.Current() != StateHome {
		t.Fatalf("current = %v, want home", m.Current())
	}
}

func TestMachineRejectsReentrantTransition(t *testing.T) {
	var trace []string
	m, _ := stubMachine(&trace)

	// A transition requested from inside Exit arrives while the machine
	// is already mid-transition and must be rejected, not recurse.
	m.states[StateHome] = &hookedState{
		stubState: stubState{name: "home", trace: &trace},
		onExit: func() {
			m.TransitionTo(StateError)
		},
	}

	m.Start()
	m.TransitionTo(StateFileList)

	if m.Current() != StateFileList {
		t.Fatalf("current = %v, want filelist (nested transition rejected)", m.Current())
	}
}

// hookedState lets a test inject behavior into Exit.
type hookedState struct {
	stubState
	onExit func()
}

func (h *hookedState) Exit(c *Core) {
	h.stubState.Exit(c)
	if h.onExit != nil {
		h.onExit()
	}
}

func TestMachineFailedEnterRoutesToError(t *testing.T) {
	var trace []string
	m, _ := stubMachine(&trace)
	m.states[StateFileList] = &stubState{
		name:     "broken",
		trace:    &trace,
		enterErr: fmt.Errorf("no card"),
	}

	m.Start()
	m.TransitionTo(StateFileList)

	if m.Current() != StateError {
		t.Fatalf("current = %v, want error state", m.Current())
	}
	es := m.states[StateError].(*errorState)
	if es.message != "no card" {
		t.Fatalf("error message = %q, want the enter failure", es.message)
	}
}

func TestMachineTickDrainsQueue(t *testing.T) {
	var trace []string
	m, c := stubMachine(&trace)
	m.Start()
	trace = trace[:0]

	c.Queue.Push(input.Event{Button: input.Up, Type: input.Press})
	c.Queue.Push(input.Event{Button: input.Down, Type: input.Press})
	m.Tick()

	if c.Queue.Len() != 0 {
		t.Fatalf("queue not drained: %d left", c.Queue.Len())
	}
	want := []string{"input home up", "input home down", "render home"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace[%d] = %q, want %q", i, trace[i], want[i])
		}
	}

	// No input and nothing dirty: a tick is silent.
	trace = trace[:0]
	m.Tick()
	if len(trace) != 0 {
		t.Fatalf("idle tick did work: %v", trace)
	}

	m.RequestRender()
	m.Tick()
	if len(trace) != 1 || trace[0] != "render home" {
		t.Fatalf("dirty tick = %v, want one render", trace)
	}
}

func TestMachineInputDrivenTransition(t *testing.T) {
	var trace []string
	m, c := stubMachine(&trace)
	home := m.states[StateHome].(*stubState)
	home.onInput = func(c *Core, m *Machine, ev input.Event) {
		if ev.Button == input.Right && ev.Type == input.Press {
			m.TransitionTo(StateFileList)
		}
	}

	m.Start()
	c.Queue.Push(input.Event{Button: input.Right, Type: input.Press})
	m.Tick()

	if m.Current() != StateFileList {
		t.Fatalf("current = %v, want filelist", m.Current())
	}
}
