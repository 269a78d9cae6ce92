package reader

import (
	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/display"
)

// RefreshPolicy decides the e-ink update mode per page turn. It is
// local to one reader session; exiting the reader discards it.
type RefreshPolicy struct {
	every   config.RefreshEvery
	counter int
	first   bool
}

// NewRefreshPolicy starts a session with the configured page interval.
func NewRefreshPolicy(every config.RefreshEvery) *RefreshPolicy {
	return &RefreshPolicy{every: every, counter: int(every), first: true}
}

// Next returns the mode for an ordinary page render. The first render
// after entering the reader uses HALF: a FULL here would flash the
// panel several times during boot.
func (p *RefreshPolicy) Next() display.Mode {
	if p.first {
		p.first = false
		p.counter = int(p.every)
		return display.Half
	}
	if p.every == 0 {
		return display.Fast
	}
	if p.counter <= 1 {
		p.counter = int(p.every)
		return display.Half
	}
	p.counter--
	return display.Fast
}

// Manual returns the mode for an explicit "refresh now" action and
// resets the ghosting counter.
func (p *RefreshPolicy) Manual() display.Mode {
	p.counter = int(p.every)
	return display.Full
}
