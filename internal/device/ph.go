package device

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	DefaultPHAddress = 0x4d

	vRef      = 4.096
	adcSteps  = 4096.0
	opampGain = 1.0

	samplesPerRead = 5
)

// PHConfig holds the raw ADC readings taken with the probe in pH 7 and pH 10
// calibration fluid.
type PHConfig struct {
	PH7Cal  uint16 `json:"ph7_cal"`
	PH10Cal uint16 `json:"ph10_cal"`
}

func DefaultPHConfig() PHConfig {
	return PHConfig{PH7Cal: 2048, PH10Cal: 2980}
}

// Step is the probe slope in mV per pH unit.
func (c PHConfig) Step() float64 {
	return vRef * (float64(c.PH10Cal) - float64(c.PH7Cal)) / adcSteps * 1000.0 / opampGain / 3.0
}

// PH converts a raw 12-bit reading into pH, capped at 10 and rounded to two
// decimals.
func (c PHConfig) PH(raw uint16) float64 {
	mV := float64(raw) / adcSteps * vRef * 1000.0
	offset := (vRef*float64(c.PH7Cal)/adcSteps*1000.0 - mV) / opampGain
	ph := 7.0 - offset/c.Step()
	if ph > 10.0 {
		ph = 10.0
	}
	return math.Round(ph*100) / 100
}

// PHProbe reads an MCP3221 ADC wired to a pH probe amplifier.
type PHProbe struct {
	bus    Bus
	addr   byte
	config PHConfig
}

func NewPHProbe(bus Bus, addr byte, config PHConfig) *PHProbe {
	return &PHProbe{bus: bus, addr: addr, config: config}
}

// Sample returns the mean of several raw ADC reads.
func (p *PHProbe) Sample() (uint16, error) {
	var sum uint32
	for i := 0; i < samplesPerRead; i++ {
		buf, err := p.bus.ReadBytes(p.addr, 2)
		if err != nil {
			return 0, errors.Wrap(err, "read ph adc")
		}
		if len(buf) != 2 {
			return 0, errors.Errorf("read ph adc: short read of %d bytes", len(buf))
		}
		sum += uint32(binary.BigEndian.Uint16(buf))
	}
	return uint16(sum / samplesPerRead), nil
}

// ReadPH samples the probe and converts the result.
func (p *PHProbe) ReadPH() (float64, error) {
	raw, err := p.Sample()
	if err != nil {
		return 0, err
	}
	return p.config.PH(raw), nil
}
