// Package epd drives the 480x800 e-ink panel over SPI. The waveform
// LUT is selected per refresh mode; the framebuffer is streamed as-is
// since it already matches the panel's packed 1-bit layout.
package epd

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/errs"
)

// Panel controller commands.
const (
	cmdPanelSetting   = 0x00
	cmdPowerOff       = 0x02
	cmdPowerOn        = 0x04
	cmdBoosterSoft    = 0x06
	cmdDeepSleep      = 0x07
	cmdDataStartOld   = 0x10
	cmdDisplayRefresh = 0x12
	cmdDataStartNew   = 0x13
	cmdVcomInterval   = 0x50
	cmdResolution     = 0x61
)

// LUT selector bits in the panel-setting register per refresh mode.
var lutFor = map[display.Mode]byte{
	display.Fast: 0x3F, // register LUT, partial waveform
	display.Half: 0x1F, // register LUT, reduced flash
	display.Full: 0x0F, // OTP LUT, full black-white cycle
}

const busyTimeout = 5 * time.Second

// Config names the wiring. Pin names are gpioreg names.
type Config struct {
	SPIPort  string
	DCPin    string
	ResetPin string
	BusyPin  string
	SpeedHz  physic.Frequency
}

// DefaultConfig matches the production board wiring.
func DefaultConfig() Config {
	return Config{
		SPIPort:  "SPI0.0",
		DCPin:    "GPIO25",
		ResetPin: "GPIO17",
		BusyPin:  "GPIO24",
		SpeedHz:  12 * physic.MegaHertz,
	}
}

// Panel implements display.Driver over SPI.
type Panel struct {
	port  spi.PortCloser
	conn  spi.Conn
	dc    gpio.PinOut
	rst   gpio.PinOut
	busy  gpio.PinIn
	awake bool
}

// Open wires the panel. Call Init before the first Refresh.
func Open(cfg Config) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, errs.E(errs.DisplayFailed, "epd.Open", err)
	}
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, errs.E(errs.DisplayFailed, "epd.Open", err)
	}
	conn, err := port.Connect(cfg.SpeedHz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, errs.E(errs.DisplayFailed, "epd.Open", err)
	}

	p := &Panel{
		port: port,
		conn: conn,
		dc:   gpioreg.ByName(cfg.DCPin),
		rst:  gpioreg.ByName(cfg.ResetPin),
		busy: gpioreg.ByName(cfg.BusyPin),
	}
	if p.dc == nil || p.rst == nil || p.busy == nil {
		port.Close()
		return nil, errs.E(errs.DisplayFailed, "epd.Open",
			fmt.Errorf("gpio pins %s/%s/%s not found", cfg.DCPin, cfg.ResetPin, cfg.BusyPin))
	}
	if err := p.busy.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		port.Close()
		return nil, errs.E(errs.DisplayFailed, "epd.Open", err)
	}
	return p, nil
}

// Init resets the controller and runs the bring-up sequence.
func (p *Panel) Init() error {
	if err := p.reset(); err != nil {
		return err
	}
	seq := []struct {
		cmd  byte
		data []byte
	}{
		{cmdBoosterSoft, []byte{0x17, 0x17, 0x17}},
		{cmdPowerOn, nil},
	}
	for _, s := range seq {
		if err := p.command(s.cmd, s.data...); err != nil {
			return err
		}
	}
	if err := p.waitIdle(); err != nil {
		return err
	}
	if err := p.command(cmdResolution,
		byte(display.PanelWidth>>8), byte(display.PanelWidth&0xFF),
		byte(display.PanelHeight>>8), byte(display.PanelHeight&0xFF)); err != nil {
		return err
	}
	if err := p.command(cmdVcomInterval, 0x97); err != nil {
		return err
	}
	p.awake = true
	return nil
}

// Refresh streams the framebuffer and triggers the waveform for the
// requested mode. Blocks until the physical update completes.
func (p *Panel) Refresh(fb *display.Framebuffer, mode display.Mode) error {
	if !p.awake {
		if err := p.Wake(); err != nil {
			return err
		}
	}
	if err := p.command(cmdPanelSetting, lutFor[mode]); err != nil {
		return err
	}
	if err := p.command(cmdDataStartNew, fb.Pix...); err != nil {
		return err
	}
	if err := p.command(cmdDisplayRefresh); err != nil {
		return err
	}
	return p.waitIdle()
}

// Sleep powers the panel down into deep sleep.
func (p *Panel) Sleep() error {
	if !p.awake {
		return nil
	}
	if err := p.command(cmdPowerOff); err != nil {
		return err
	}
	if err := p.waitIdle(); err != nil {
		return err
	}
	if err := p.command(cmdDeepSleep, 0xA5); err != nil {
		return err
	}
	p.awake = false
	return nil
}

// Wake re-runs the bring-up sequence after deep sleep.
func (p *Panel) Wake() error {
	return p.Init()
}

// Close sleeps the panel and releases the SPI port.
func (p *Panel) Close() error {
	if err := p.Sleep(); err != nil {
		log.Printf("warning: failed to sleep panel: %v", err)
	}
	return p.port.Close()
}

func (p *Panel) reset() error {
	for _, lvl := range []gpio.Level{gpio.Low, gpio.High} {
		if err := p.rst.Out(lvl); err != nil {
			return errs.E(errs.DisplayFailed, "epd.reset", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

// command sends one command byte (DC low) then its data (DC high).
// Large payloads are chunked to the SPI driver's transfer limit.
func (p *Panel) command(cmd byte, data ...byte) error {
	if err := p.dc.Out(gpio.Low); err != nil {
		return errs.E(errs.DisplayFailed, "epd.command", err)
	}
	if err := p.conn.Tx([]byte{cmd}, nil); err != nil {
		return errs.E(errs.DisplayFailed, "epd.command", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := p.dc.Out(gpio.High); err != nil {
		return errs.E(errs.DisplayFailed, "epd.command", err)
	}
	const chunk = 4096
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		if err := p.conn.Tx(data[off:end], nil); err != nil {
			return errs.E(errs.DisplayFailed, "epd.command", err)
		}
	}
	return nil
}

// waitIdle blocks until the BUSY pin releases.
func (p *Panel) waitIdle() error {
	deadline := time.Now().Add(busyTimeout)
	for p.busy.Read() == gpio.Low {
		if time.Now().After(deadline) {
			return errs.E(errs.Timeout, "epd.waitIdle",
				fmt.Errorf("panel busy for more than %v", busyTimeout))
		}
		p.busy.WaitForEdge(50 * time.Millisecond)
	}
	return nil
}
