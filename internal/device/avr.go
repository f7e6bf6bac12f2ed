package device

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/jonwingfield/reefmon/internal/checksum"
	"github.com/jonwingfield/reefmon/internal/schedule"
	"github.com/jonwingfield/reefmon/internal/smoothing"
	"github.com/jonwingfield/reefmon/internal/units"
)

const (
	DefaultAVRAddress = 0x32

	opSetChannels        = 0x11
	opGetTemp            = 0x12
	opGetDepth           = 0x13
	opGetAirTempHumidity = 0x14

	depthWindow = 10
)

// AVR talks to the tank's microcontroller, which owns the depth sensor, the
// water and air probes, and the LED drivers.
type AVR struct {
	bus   Bus
	addr  byte
	depth *smoothing.RunningAverage[units.Depth]
}

func NewAVR(bus Bus, addr byte) *AVR {
	return &AVR{
		bus:   bus,
		addr:  addr,
		depth: smoothing.NewRunningAverage[units.Depth](depthWindow),
	}
}

// command writes a single opcode and reads back a checksummed response.
func (a *AVR) command(op byte, width int) ([]byte, error) {
	if err := a.bus.WriteBytes(a.addr, []byte{op}); err != nil {
		return nil, err
	}
	buf, err := a.bus.ReadBytes(a.addr, width)
	if err != nil {
		return nil, err
	}
	if len(buf) != width {
		return nil, errors.Errorf("short read: want %d bytes, got %d", width, len(buf))
	}
	if err := checksum.Verify(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadTemperature returns the water temperature in Celsius.
func (a *AVR) ReadTemperature() (units.Temperature, error) {
	buf, err := a.command(opGetTemp, 3)
	if err != nil {
		return units.Temperature{}, errors.Wrap(err, "read temperature")
	}
	return units.C(float64(binary.BigEndian.Uint16(buf)) * 0.0625), nil
}

// ReadAirTempHumidity returns the air temperature in Celsius and the
// relative humidity in percent.
func (a *AVR) ReadAirTempHumidity() (units.Temperature, float64, error) {
	buf, err := a.command(opGetAirTempHumidity, 5)
	if err != nil {
		return units.Temperature{}, 0, errors.Wrap(err, "read air temp/humidity")
	}
	temp := float64(binary.BigEndian.Uint16(buf[0:2])) / 10.0
	humidity := float64(binary.BigEndian.Uint16(buf[2:4])) / 10.0
	return units.C(temp), humidity, nil
}

// ReadDepth returns the depth averaged over the last ten good readings.
// The first good reading seeds the whole window.
func (a *AVR) ReadDepth() (units.Depth, error) {
	buf, err := a.command(opGetDepth, 3)
	if err != nil {
		return 0, errors.Wrap(err, "read depth")
	}
	a.depth.Push(units.Depth(binary.BigEndian.Uint16(buf)))
	return a.depth.Value(), nil
}

// WriteIntensities sets all six LED channels in one block write.
func (a *AVR) WriteIntensities(values schedule.Intensities) error {
	// opcode, block length, channels, crc over the channels
	packet := make([]byte, 0, 2+schedule.Channels+1)
	packet = append(packet, opSetChannels, schedule.Channels+1)
	packet = append(packet, values[:]...)
	packet = append(packet, 0)
	checksum.Seal(packet[2:])

	if err := a.bus.WriteBytes(a.addr, packet); err != nil {
		return errors.Wrap(err, "write intensities")
	}
	return nil
}
