package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int {
	return &i
}

func validGPIO() GPIO {
	return GPIO{
		Heater:     intPtr(17),
		Cooler:     intPtr(27),
		ATOPump:    intPtr(22),
		ReturnPump: intPtr(5),
		Doser:      intPtr(6),
		FugeLight:  intPtr(13),
	}
}

func TestValidate_GPIOValid(t *testing.T) {
	cfg := Config{TickMillis: 10, GPIO: validGPIO()}
	assert.NotPanics(t, cfg.validate)
}

func TestValidate_GPIO_Missing(t *testing.T) {
	gpio := validGPIO()
	gpio.Doser = nil
	cfg := Config{TickMillis: 10, GPIO: gpio}

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic due to missing GPIO config")
		assert.Contains(t, r.(string), "gpio.doser")
	}()

	cfg.validate()
}

func TestValidate_GPIO_Conflict(t *testing.T) {
	gpio := validGPIO()
	gpio.FugeLight = intPtr(17)
	cfg := Config{TickMillis: 10, GPIO: gpio}

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic due to conflicting pin numbers")
		assert.Contains(t, r.(string), "gpio.fuge_light and gpio.heater both use pin 17")
	}()

	cfg.validate()
}

func TestValidate_TickMustDivideSecond(t *testing.T) {
	cfg := Config{TickMillis: 7, GPIO: validGPIO()}
	assert.Panics(t, cfg.validate)
}

func TestValidate_CadenceMustBeTickMultiple(t *testing.T) {
	cfg := Config{TickMillis: 10, GPIO: validGPIO()}
	cfg.Cadence.ATOMs = 1005

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic due to cadence off the tick grid")
		assert.Contains(t, r.(string), "cadence.ato_ms=1005")
	}()

	cfg.validate()
}

func TestValidate_DefaultCadencesFitTick(t *testing.T) {
	cfg := Config{TickMillis: 10, GPIO: validGPIO()}
	cfg.applyDefaults()
	assert.NotPanics(t, cfg.validate)
}

func TestDecodeAppliesDefaults(t *testing.T) {
	raw := `{
		"gpio": {"active_low": true, "heater": 17, "cooler": 27, "ato_pump": 22, "return_pump": 5, "doser": 6, "fuge_light": 13},
		"cadence": {"ato_ms": 5000},
		"mqtt_broker": "tcp://localhost:1883"
	}`

	var cfg Config
	require.NoError(t, cfg.decode(strings.NewReader(raw)))

	assert.Equal(t, 10, cfg.TickMillis)
	assert.Equal(t, 5000, cfg.Cadence.ATOMs)
	assert.Equal(t, 6500, cfg.Cadence.TemperatureSensorMs)
	assert.Equal(t, 0.25, cfg.HysteresisF)
	assert.Equal(t, uint8(0x32), cfg.AVRAddress)
	assert.Equal(t, uint8(0x4d), cfg.PHAddress)
	assert.Equal(t, "gpiochip0", cfg.GPIO.Chip)
	assert.True(t, cfg.GPIO.ActiveLow)
	assert.Equal(t, 22, *cfg.GPIO.ATOPump)
	assert.NotPanics(t, cfg.validate)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLogLevel("debug").String())
	assert.Equal(t, "warn", parseLogLevel("warn").String())
	assert.Equal(t, "info", parseLogLevel("bogus").String())
}
