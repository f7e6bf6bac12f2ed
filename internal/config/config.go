package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
)

type GPIO struct {
	Chip      string `json:"chip"`
	ActiveLow bool   `json:"active_low"`

	// temperature
	Heater *int `json:"heater"`
	Cooler *int `json:"cooler"`

	// water level
	ATOPump    *int `json:"ato_pump"`
	ReturnPump *int `json:"return_pump"`

	// misc
	Doser     *int `json:"doser"`
	FugeLight *int `json:"fuge_light"`
}

// Cadence is how often, in milliseconds of controller uptime, each part of
// the tick runs.
type Cadence struct {
	TemperatureSensorMs int `json:"temperature_sensor_ms"`
	DepthSensorMs       int `json:"depth_sensor_ms"`
	PHSensorMs          int `json:"ph_sensor_ms"`
	LightingMs          int `json:"lighting_ms"`
	TemperatureMs       int `json:"temperature_ms"`
	ATOMs               int `json:"ato_ms"`
	DoserMs             int `json:"doser_ms"`
}

type Config struct {
	ConfigFile string
	DBPath     string
	LogLevel   zerolog.Level
	LogFile    string
	SafeMode   bool

	InstallService bool

	TickMillis  int     `json:"tick_ms"`
	Cadence     Cadence `json:"cadence"`
	HysteresisF float64 `json:"hysteresis_f"`

	AVRAddress uint8  `json:"avr_i2c_address"`
	EnablePH   bool   `json:"enable_ph"`
	PHAddress  uint8  `json:"ph_i2c_address"`
	PH7Cal     uint16 `json:"ph7_cal"`
	PH10Cal    uint16 `json:"ph10_cal"`
	BusRetries int    `json:"bus_retries"`

	SettingsPollSeconds int `json:"settings_poll_seconds"`
	TelemetrySeconds    int `json:"telemetry_interval_seconds"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	MQTTBroker   string `json:"mqtt_broker"`
	MQTTTopic    string `json:"mqtt_topic"`
	MQTTClientID string `json:"mqtt_client_id"`

	NtfyTopic string `json:"ntfy_topic"`

	SystemdUnitPath string `json:"systemd_unit_path"`
	BinaryPath      string `json:"binary_path"`

	GPIO GPIO `json:"gpio"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&cfg.DBPath, "db", "data/reefmon.db", "Path to the SQLite settings database")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Append logs to this file instead of stderr")
	flag.BoolVar(&cfg.SafeMode, "safe-mode", false, "Never touch GPIO hardware")
	flag.BoolVar(&cfg.InstallService, "install-service", false, "Write the systemd unit and exit")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := cfg.decode(file); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.validate()
	return cfg
}

func (cfg *Config) decode(r io.Reader) error {
	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return err
	}
	cfg.applyDefaults()
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.TickMillis == 0 {
		cfg.TickMillis = 10
	}
	c := &cfg.Cadence
	setDefault(&c.TemperatureSensorMs, 6500)
	setDefault(&c.DepthSensorMs, 1000)
	setDefault(&c.PHSensorMs, 10000)
	setDefault(&c.LightingMs, 1000)
	setDefault(&c.TemperatureMs, 1000)
	setDefault(&c.ATOMs, 1000)
	setDefault(&c.DoserMs, 1000)

	if cfg.HysteresisF == 0 {
		cfg.HysteresisF = 0.25
	}
	if cfg.AVRAddress == 0 {
		cfg.AVRAddress = 0x32
	}
	if cfg.PHAddress == 0 {
		cfg.PHAddress = 0x4d
	}
	if cfg.PH7Cal == 0 && cfg.PH10Cal == 0 {
		cfg.PH7Cal, cfg.PH10Cal = 2048, 2980
	}
	if cfg.BusRetries == 0 {
		cfg.BusRetries = 5
	}
	if cfg.SettingsPollSeconds == 0 {
		cfg.SettingsPollSeconds = 5
	}
	if cfg.TelemetrySeconds == 0 {
		cfg.TelemetrySeconds = 30
	}
	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = "gpiochip0"
	}
	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = "reefmon"
	}
}

func setDefault(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	var (
		missingFields []string
		usedPins      = map[int64]string{}
		conflicts     []string
	)

	v := reflect.ValueOf(cfg.GPIO)
	t := reflect.TypeOf(cfg.GPIO)

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() != reflect.Ptr {
			continue
		}
		fieldName := t.Field(i).Tag.Get("json")

		if field.IsNil() {
			missingFields = append(missingFields, "gpio."+fieldName)
			continue
		}

		pin := field.Elem().Int()
		if other, exists := usedPins[pin]; exists {
			conflicts = append(conflicts, fmt.Sprintf("gpio.%s and gpio.%s both use pin %d", fieldName, other, pin))
		} else {
			usedPins[pin] = fieldName
		}
	}

	if len(missingFields) > 0 {
		panic("Missing required GPIO config fields: " + strings.Join(missingFields, ", "))
	}
	if len(conflicts) > 0 {
		panic("Conflicting GPIO pins: " + strings.Join(conflicts, ", "))
	}
	if cfg.TickMillis <= 0 || 1000%cfg.TickMillis != 0 {
		panic(fmt.Sprintf("tick_ms must divide 1000, got %d", cfg.TickMillis))
	}

	var badCadences []string
	cv := reflect.ValueOf(cfg.Cadence)
	ct := cv.Type()
	for i := 0; i < cv.NumField(); i++ {
		ms := int(cv.Field(i).Int())
		if ms < 0 || ms%cfg.TickMillis != 0 {
			badCadences = append(badCadences, fmt.Sprintf("cadence.%s=%d", ct.Field(i).Tag.Get("json"), ms))
		}
	}
	if len(badCadences) > 0 {
		panic(fmt.Sprintf("Cadences must be multiples of tick_ms (%d): %s", cfg.TickMillis, strings.Join(badCadences, ", ")))
	}
}
