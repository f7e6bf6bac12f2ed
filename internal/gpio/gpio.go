package gpio

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/go-gpiocdev"
)

const consumer = "reefmon"

// Pin is a single digital output. Polarity is handled by the implementation,
// so "on" always means the equipment is energized.
type Pin interface {
	TurnOn() error
	TurnOff() error
	Set(on bool) error
	Status() (bool, error)
}

// LinePin drives a GPIO line through the kernel character device.
type LinePin struct {
	line   *gpiocdev.Line
	number int
}

var requestLine = func(chip string, cfg PinConfig) (Pin, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(consumer),
		gpiocdev.AsOutput(0),
	}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := gpiocdev.RequestLine(chip, cfg.Number, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request GPIO %d on %s: %w", cfg.Number, chip, err)
	}
	return &LinePin{line: line, number: cfg.Number}, nil
}

func (p *LinePin) TurnOn() error  { return p.Set(true) }
func (p *LinePin) TurnOff() error { return p.Set(false) }

func (p *LinePin) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		return fmt.Errorf("failed to set GPIO %d: %w", p.number, err)
	}
	return nil
}

func (p *LinePin) Status() (bool, error) {
	v, err := p.line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read GPIO %d: %w", p.number, err)
	}
	return v == 1, nil
}

func (p *LinePin) Close() error {
	return p.line.Close()
}

// MemoryPin only remembers its state. It stands in for hardware in safe mode.
type MemoryPin struct {
	mu     sync.Mutex
	name   string
	on     bool
	writes int
	err    error
}

func NewMemoryPin(name string) *MemoryPin {
	return &MemoryPin{name: name}
}

func (p *MemoryPin) TurnOn() error  { return p.Set(true) }
func (p *MemoryPin) TurnOff() error { return p.Set(false) }

func (p *MemoryPin) Set(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.on = on
	p.writes++
	log.Debug().Str("pin", p.name).Bool("on", on).Msg("Memory pin set")
	return nil
}

func (p *MemoryPin) Status() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on, p.err
}

// Writes reports how many times the pin has been driven.
func (p *MemoryPin) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// Fail makes every following call return err, or clears it when err is nil.
func (p *MemoryPin) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}
