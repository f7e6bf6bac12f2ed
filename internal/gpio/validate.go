package gpio

import (
	"fmt"

	"github.com/jonwingfield/reefmon/internal/pinctrl"
)

var readLevel = pinctrl.ReadLevel

// ValidateStartupPins refuses to hand the relay board to the controller if
// any output is already energized. Run it before lines are requested. The
// return pump is left running on shutdown, so it is not checked.
func ValidateStartupPins(pins map[Equipment]PinConfig) error {
	for _, e := range AllEquipment {
		cfg, ok := pins[e]
		if !ok || e == ReturnPump {
			continue
		}
		level, err := readLevel(cfg.Number)
		if err != nil {
			return fmt.Errorf("failed to read pin level for %s (GPIO %d): %w", e, cfg.Number, err)
		}
		active := (cfg.ActiveLow && !level) || (!cfg.ActiveLow && level)
		if active {
			return fmt.Errorf("pin %d (%s) is energized at startup", cfg.Number, e)
		}
	}
	return nil
}
