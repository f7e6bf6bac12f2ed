package device

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/reef-pi/rpi/i2c"
	"github.com/rs/zerolog/log"
)

// Bus is the slice of the I2C capability the device clients need.
// i2c.Bus from reef-pi satisfies it.
type Bus interface {
	ReadBytes(addr byte, num int) ([]byte, error)
	WriteBytes(addr byte, value []byte) error
}

var openI2C = func() (Bus, error) {
	return i2c.New()
}

// OpenBus opens the Pi's I2C bus, retrying while the kernel device comes up.
func OpenBus(maxRetries int) (Bus, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var bus Bus
	err := backoff.Retry(func() error {
		b, err := openI2C()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to open I2C bus")
			return err
		}
		bus = b
		return nil
	}, backoff.WithMaxRetries(bo, uint64(maxRetries)))
	if err != nil {
		return nil, errors.Wrap(err, "open i2c bus")
	}

	log.Info().Msg("I2C bus opened")
	return bus, nil
}
