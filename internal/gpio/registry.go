package gpio

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jonwingfield/reefmon/internal/config"
)

// Equipment names one of the tank's fixed outputs.
type Equipment string

const (
	Heater     Equipment = "heater"
	Cooler     Equipment = "cooler"
	ATO        Equipment = "ato"
	ReturnPump Equipment = "return_pump"
	Doser      Equipment = "doser"
	FugeLight  Equipment = "fuge_light"
)

var AllEquipment = []Equipment{Heater, Cooler, ATO, ReturnPump, Doser, FugeLight}

type PinConfig struct {
	Number    int
	ActiveLow bool
}

var (
	ErrPinClaimed       = errors.New("pin already claimed")
	ErrUnknownEquipment = errors.New("no pin registered for equipment")
)

// Registry hands out each equipment pin exactly once.
type Registry struct {
	mu      sync.Mutex
	pins    map[Equipment]Pin
	claimed map[Equipment]bool
}

func NewRegistry(pins map[Equipment]Pin) *Registry {
	return &Registry{
		pins:    pins,
		claimed: make(map[Equipment]bool, len(pins)),
	}
}

// PinsFromConfig maps the configured GPIO numbers onto equipment names.
func PinsFromConfig(cfg config.Config) map[Equipment]PinConfig {
	g := cfg.GPIO
	pin := func(n *int) PinConfig {
		return PinConfig{Number: *n, ActiveLow: g.ActiveLow}
	}
	return map[Equipment]PinConfig{
		Heater:     pin(g.Heater),
		Cooler:     pin(g.Cooler),
		ATO:        pin(g.ATOPump),
		ReturnPump: pin(g.ReturnPump),
		Doser:      pin(g.Doser),
		FugeLight:  pin(g.FugeLight),
	}
}

// Open builds the registry for the configured pins. In safe mode every pin is
// a MemoryPin and no hardware is touched.
func Open(chip string, pins map[Equipment]PinConfig, safeMode bool) (*Registry, error) {
	if err := checkConflicts(pins); err != nil {
		return nil, err
	}

	opened := make(map[Equipment]Pin, len(pins))
	for _, e := range AllEquipment {
		cfg, ok := pins[e]
		if !ok {
			continue
		}
		if safeMode {
			opened[e] = NewMemoryPin(string(e))
			continue
		}
		p, err := requestLine(chip, cfg)
		if err != nil {
			closeAll(opened)
			return nil, err
		}
		opened[e] = p
		log.Info().
			Str("equipment", string(e)).
			Int("gpio", cfg.Number).
			Bool("active_low", cfg.ActiveLow).
			Msg("GPIO line requested")
	}
	return NewRegistry(opened), nil
}

func checkConflicts(pins map[Equipment]PinConfig) error {
	used := map[int]Equipment{}
	var conflicts []string
	for _, e := range AllEquipment {
		cfg, ok := pins[e]
		if !ok {
			continue
		}
		if other, exists := used[cfg.Number]; exists {
			conflicts = append(conflicts, fmt.Sprintf("%s and %s both use GPIO %d", other, e, cfg.Number))
			continue
		}
		used[cfg.Number] = e
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return fmt.Errorf("conflicting GPIO pins: %s", strings.Join(conflicts, ", "))
	}
	return nil
}

// Claim checks out the pin for e. A second claim is a programming error.
func (r *Registry) Claim(e Equipment) (Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEquipment, e)
	}
	if r.claimed[e] {
		return nil, fmt.Errorf("%w: %s", ErrPinClaimed, e)
	}
	r.claimed[e] = true
	return p, nil
}

// MustClaim is Claim for startup wiring, where a failure is fatal.
func (r *Registry) MustClaim(e Equipment) Pin {
	p, err := r.Claim(e)
	if err != nil {
		panic(err)
	}
	return p
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return closeAll(r.pins)
}

func closeAll(pins map[Equipment]Pin) error {
	var errs []error
	for _, p := range pins {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
