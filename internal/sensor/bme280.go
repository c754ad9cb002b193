package sensor

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// BME280 reads a Bosch BME280 over I2C through periph.
type BME280 struct {
	bus    i2c.BusCloser
	dev    *bmxx80.Dev
	logger *slog.Logger
}

// OpenBME280 initializes the periph host, opens busName ("" selects the
// default bus, usually /dev/i2c-1) and binds the device at addr.
func OpenBME280(busName string, addr uint16, logger *slog.Logger) (*BME280, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", busName, err)
	}

	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("bme280 init at %#x: %w", addr, err)
	}

	logger.Info("bme280 initialized", "bus", bus.String(), "addr", fmt.Sprintf("%#x", addr))
	return &BME280{bus: bus, dev: dev, logger: logger}, nil
}

func (b *BME280) Read(_ context.Context) (Reading, error) {
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return Reading{}, fmt.Errorf("bme280 sense: %w", err)
	}

	temperature := env.Temperature.Celsius()

	// env.Humidity is stored as a fixed point integer at a precision of 0.00001%rH.
	humidity := float64(env.Humidity) / 100000.0

	b.logger.Debug("bme280 sensed", "temperature_c", temperature, "humidity_pct", humidity)
	return Reading{TemperatureC: &temperature, HumidityPct: &humidity}, nil
}

func (b *BME280) Close() error {
	haltErr := b.dev.Halt()
	closeErr := b.bus.Close()
	if haltErr != nil {
		return fmt.Errorf("bme280 halt: %w", haltErr)
	}
	if closeErr != nil {
		return fmt.Errorf("i2c close: %w", closeErr)
	}
	return nil
}
