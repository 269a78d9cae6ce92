// Package sim runs the shell on a desktop window. The e-ink panel is
// emulated by an ebiten texture and the buttons by the keyboard, so the
// whole firmware loop can be exercised without hardware.
package sim

import (
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/input"
	"github.com/sumireader/sumi/internal/shell"
)

// Driver implements display.Driver by keeping an RGBA copy of the last
// refreshed framebuffer for the window to draw.
type Driver struct {
	w, h  int
	rgba  []byte
	dirty bool
}

// NewDriver emulates a panel of the given size.
func NewDriver(w, h int) *Driver {
	d := &Driver{w: w, h: h, rgba: make([]byte, w*h*4)}
	for i := range d.rgba {
		d.rgba[i] = 0xFF
	}
	return d
}

func (d *Driver) Init() error { return nil }

func (d *Driver) Refresh(fb *display.Framebuffer, mode display.Mode) error {
	for y := 0; y < d.h && y < fb.H; y++ {
		for x := 0; x < d.w && x < fb.W; x++ {
			v := byte(0x00)
			if fb.Pixel(x, y) {
				v = 0xFF
			}
			off := (y*d.w + x) * 4
			d.rgba[off] = v
			d.rgba[off+1] = v
			d.rgba[off+2] = v
			d.rgba[off+3] = 0xFF
		}
	}
	d.dirty = true
	// Approximate the physical update latency so refresh pacing feels
	// like the device.
	switch mode {
	case display.Full:
		time.Sleep(120 * time.Millisecond)
	case display.Half:
		time.Sleep(60 * time.Millisecond)
	}
	return nil
}

func (d *Driver) Sleep() error { return nil }
func (d *Driver) Wake() error  { return nil }
func (d *Driver) Close() error { return nil }

// keyBindings maps keyboard keys to raw buttons.
var keyBindings = map[ebiten.Key]input.Button{
	ebiten.KeyArrowUp:    input.Up,
	ebiten.KeyArrowDown:  input.Down,
	ebiten.KeyArrowLeft:  input.Left,
	ebiten.KeyArrowRight: input.Right,
	ebiten.KeyEnter:      input.Center,
	ebiten.KeyBackspace:  input.Back,
	ebiten.KeyEscape:     input.Back,
	ebiten.KeyP:          input.Power,
}

// Game adapts the shell loop to ebiten's tick.
type Game struct {
	core    *shell.Core
	machine *shell.Machine
	drv     *Driver
	deb     *input.Debouncer
	tex     *ebiten.Image
}

// NewGame wires the shell into the window loop. drv must be the driver
// the core renders through.
func NewGame(core *shell.Core, machine *shell.Machine, drv *Driver) *Game {
	return &Game{
		core:    core,
		machine: machine,
		drv:     drv,
		deb:     input.NewDebouncer(core.Queue),
	}
}

func (g *Game) Update() error {
	now := time.Now()
	for key, btn := range keyBindings {
		mapped := g.core.MapButton(btn)
		g.deb.Update(mapped, ebiten.IsKeyPressed(key), now)
	}
	g.deb.Tick(now)

	g.machine.Tick()
	if g.core.Done() {
		return ebiten.Termination
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.tex == nil {
		g.tex = ebiten.NewImage(g.drv.w, g.drv.h)
	}
	if g.drv.dirty {
		g.tex.WritePixels(g.drv.rgba)
		g.drv.dirty = false
	}
	screen.Fill(color.White)
	screen.DrawImage(g.tex, nil)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.drv.w, g.drv.h
}

// Run opens the window and blocks until the shell quits.
func Run(core *shell.Core, machine *shell.Machine, drv *Driver) error {
	ebiten.SetWindowSize(drv.w*3/4, drv.h*3/4)
	ebiten.SetWindowTitle("sumi")
	machine.Start()
	return ebiten.RunGame(NewGame(core, machine, drv))
}
