// Package poller runs the sampling loop: sample, rotate and append the local
// log, mirror remotely, then sleep for the full period.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"humidity-monitor/internal/sensor"
	"humidity-monitor/internal/types"
)

var (
	// ErrLocalLog marks a cycle that sampled but could not write the local log.
	ErrLocalLog = errors.New("local log write failed")
	// ErrTooManyFailures ends Run after the configured number of consecutive
	// local log failures.
	ErrTooManyFailures = errors.New("too many consecutive local log failures")
)

type Sampler interface {
	Sample(ctx context.Context) (types.Sample, error)
}

type LogSink interface {
	Write(s types.Sample) error
}

type RemoteSink interface {
	Upsert(ctx context.Context, s types.Sample) error
}

type TelemetrySink interface {
	Publish(s types.Sample) error
}

// Deps are the capabilities the loop drives. Remote and Telemetry are optional.
type Deps struct {
	Sampler   Sampler
	Clock     Clock
	Log       LogSink
	Remote    RemoteSink
	Telemetry TelemetrySink
	Logger    *slog.Logger

	Period time.Duration
	// MaxConsecutiveFailures > 0 makes Run give up after that many local log
	// failures in a row.
	MaxConsecutiveFailures int
}

type Poller struct {
	deps        Deps
	logger      *slog.Logger
	status      statusTracker
	logFailures int
}

func New(deps Deps) (*Poller, error) {
	if deps.Sampler == nil {
		return nil, errors.New("poller: sampler is required")
	}
	if deps.Log == nil {
		return nil, errors.New("poller: log sink is required")
	}
	if deps.Period <= 0 {
		return nil, fmt.Errorf("poller: period must be positive, got %v", deps.Period)
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{deps: deps, logger: logger}, nil
}

// Run executes cycles until ctx is done, sleeping the full period after every
// cycle whatever its outcome. It only returns ctx.Err() or ErrTooManyFailures.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "period", p.deps.Period)
	for {
		err := p.Cycle(ctx)
		switch {
		case errors.Is(err, ErrLocalLog):
			p.logFailures++
		case err == nil:
			p.logFailures = 0
		}
		if p.deps.MaxConsecutiveFailures > 0 && p.logFailures >= p.deps.MaxConsecutiveFailures {
			return fmt.Errorf("%w (%d in a row): %w", ErrTooManyFailures, p.logFailures, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.deps.Clock.After(p.deps.Period):
		}
	}
}

// Cycle performs one sample, log, mirror and publish pass. A transient sensor
// error ends the cycle before anything is written. Remote and telemetry
// failures are logged and do not fail the cycle.
func (p *Poller) Cycle(ctx context.Context) error {
	s, err := p.deps.Sampler.Sample(ctx)
	if err != nil {
		if sensor.IsTransient(err) {
			p.logger.Warn("sensor read failed", "error", err)
		} else {
			p.logger.Error("sampling failed", "error", err)
		}
		p.status.record(nil, err)
		return err
	}

	if err := p.deps.Log.Write(s); err != nil {
		err = fmt.Errorf("%w: %w", ErrLocalLog, err)
		p.logger.Error("local log write failed", "error", err)
		p.status.record(nil, err)
		return err
	}

	if p.deps.Remote != nil {
		if err := p.deps.Remote.Upsert(ctx, s); err != nil {
			p.logger.Error("remote mirror failed", "error", err)
		}
	}

	if p.deps.Telemetry != nil {
		if err := p.deps.Telemetry.Publish(s); err != nil {
			p.logger.Warn("telemetry publish failed", "error", err)
		}
	}

	p.logger.Debug("cycle complete",
		"temperature_f", s.TemperatureF,
		"humidity_pct", s.HumidityPct,
	)
	p.status.record(&s, nil)
	return nil
}

// Status returns a snapshot of the loop's progress.
func (p *Poller) Status() Status {
	return p.status.snapshot()
}
