package sensor

import (
	"context"
	"math"
	"time"
)

// Mock produces smoothly changing readings for development without hardware.
// Every dropEvery-th read (when non-zero) comes back without a humidity value,
// imitating a sensor that occasionally fails to answer.
type Mock struct {
	start     time.Time
	dropEvery int
	reads     int
}

func NewMock(dropEvery int) *Mock {
	return &Mock{start: time.Now(), dropEvery: dropEvery}
}

func (m *Mock) Read(_ context.Context) (Reading, error) {
	m.reads++
	elapsed := time.Since(m.start).Seconds()

	temperature := 21 + 3*math.Sin(elapsed/600)
	if m.dropEvery > 0 && m.reads%m.dropEvery == 0 {
		return Reading{TemperatureC: &temperature}, nil
	}
	humidity := 45 + 10*math.Cos(elapsed/900)
	return Reading{TemperatureC: &temperature, HumidityPct: &humidity}, nil
}
