package shell

import (
	"fmt"
	"log"

	"github.com/sumireader/sumi/internal/input"
)

// StateID names the top-level shell states.
type StateID uint8

const (
	StateStartup StateID = iota
	StateHome
	StateFileList
	StateReader
	StateSettings
	StateSleep
	StateError
	StatePluginList
	StatePluginHost
)

func (s StateID) String() string {
	names := [...]string{
		"startup", "home", "filelist", "reader", "settings",
		"sleep", "error", "pluginlist", "pluginhost",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "?"
}

// State is one shell screen. Enter and Exit are always paired; a
// failed Enter routes to the error state instead of leaving the
// machine stateless.
type State interface {
	Enter(c *Core) error
	HandleInput(c *Core, m *Machine, ev input.Event)
	Render(c *Core) error
	Exit(c *Core)
}

// Machine is the top-level state machine. Transitions are explicit and
// non-reentrant: a transition requested while another is in progress is
// rejected and logged.
type Machine struct {
	core    *Core
	states  map[StateID]State
	current StateID
	entered bool

	inTransition bool
	needRender   bool
}

// NewMachine builds the machine with the standard state set.
func NewMachine(core *Core) *Machine {
	m := &Machine{
		core: core,
		states: map[StateID]State{
			StateStartup:    &startupState{},
			StateHome:       &homeState{},
			StateFileList:   &fileListState{},
			StateReader:     &readerState{},
			StateSettings:   &settingsState{},
			StateSleep:      &sleepState{},
			StateError:      &errorState{},
			StatePluginList: &pluginListState{},
			StatePluginHost: &pluginHostState{},
		},
		current:    StateStartup,
		needRender: true,
	}
	return m
}

// Current returns the active state id.
func (m *Machine) Current() StateID { return m.current }

// Start enters the initial state.
func (m *Machine) Start() {
	if err := m.enter(m.current); err != nil {
		m.Fail(err.Error())
	}
}

// TransitionTo exits the current state and enters the target.
// Transitioning to the current state re-enters it (exit then enter).
// A failed Enter routes to the error state once the transition has
// unwound.
func (m *Machine) TransitionTo(id StateID) {
	if m.inTransition {
		log.Printf("warning: rejected re-entrant transition %s -> %s", m.current, id)
		return
	}
	m.inTransition = true
	if m.entered {
		m.states[m.current].Exit(m.core)
		m.entered = false
	}
	m.current = id
	err := m.enter(id)
	m.inTransition = false
	if err != nil && id != StateError {
		m.Fail(err.Error())
	}
}

// Fail routes to the error state with a user-visible message.
func (m *Machine) Fail(msg string) {
	if es, ok := m.states[StateError].(*errorState); ok {
		es.message = msg
	}
	m.TransitionTo(StateError)
}

func (m *Machine) enter(id StateID) error {
	st, ok := m.states[id]
	if !ok {
		log.Printf("warning: no such state %s", id)
		return fmt.Errorf("no such state %s", id)
	}
	if err := st.Enter(m.core); err != nil {
		log.Printf("warning: failed to enter %s: %v", id, err)
		return err
	}
	m.entered = true
	m.needRender = true
	return nil
}

// RequestRender marks the current state dirty for the next tick.
func (m *Machine) RequestRender() { m.needRender = true }

// Tick drains the input queue into the current state and renders it if
// anything changed. Called once per UI loop iteration.
func (m *Machine) Tick() {
	for {
		ev, ok := m.core.Queue.Pop()
		if !ok {
			break
		}
		if m.entered {
			m.states[m.current].HandleInput(m.core, m, ev)
		}
	}
	if m.needRender && m.entered {
		if err := m.states[m.current].Render(m.core); err != nil {
			log.Printf("warning: render failed in %s: %v", m.current, err)
		}
		m.needRender = false
	}
	if a, ok := m.states[m.current].(advancer); ok && m.entered {
		if id, ready := a.Next(m.core); ready {
			m.TransitionTo(id)
		}
	}
}
