// Package sensor reads temperature and humidity from an attached sensor and
// turns raw readings into rounded Fahrenheit samples.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"humidity-monitor/internal/types"
)

// ErrNoReading is returned when the sensor answered without a value.
var ErrNoReading = errors.New("sensor returned no reading")

// Reading is a raw sensor answer. A nil field means the sensor did not
// produce that value on this attempt.
type Reading struct {
	TemperatureC *float64
	HumidityPct  *float64
}

// Sensor is the hardware capability polled once per cycle.
type Sensor interface {
	Read(ctx context.Context) (Reading, error)
}

// TransientError wraps a fault that only aborts the current cycle.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient sensor error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err aborts only the current cycle.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Sampler validates and converts readings from a Sensor.
type Sampler struct {
	sensor Sensor
	now    func() time.Time
}

func NewSampler(s Sensor, now func() time.Time) *Sampler {
	if now == nil {
		now = time.Now
	}
	return &Sampler{sensor: s, now: now}
}

// Sample reads the sensor once. Every failure is returned as a *TransientError;
// there is no retry within the call.
func (s *Sampler) Sample(ctx context.Context) (types.Sample, error) {
	r, err := s.read(ctx)
	if err != nil {
		return types.Sample{}, &TransientError{Err: err}
	}
	if r.TemperatureC == nil || r.HumidityPct == nil {
		return types.Sample{}, &TransientError{Err: ErrNoReading}
	}

	return types.Sample{
		Timestamp:    s.now().Truncate(time.Second),
		TemperatureF: int(math.RoundToEven(CelsiusToFahrenheit(*r.TemperatureC))),
		HumidityPct:  int(math.RoundToEven(*r.HumidityPct)),
	}, nil
}

// read calls the driver, turning a panic inside it into an error.
func (s *Sampler) read(ctx context.Context) (r Reading, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sensor driver panic: %v", p)
		}
	}()
	return s.sensor.Read(ctx)
}

func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
