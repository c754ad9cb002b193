package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"humidity-monitor/internal/config"
	"humidity-monitor/internal/db"
	"humidity-monitor/internal/db/migrate"
	"humidity-monitor/internal/docstore"
	"humidity-monitor/internal/httpapi"
	"humidity-monitor/internal/logfile"
	"humidity-monitor/internal/logging"
	"humidity-monitor/internal/mirror"
	"humidity-monitor/internal/mqtt"
	"humidity-monitor/internal/poller"
	"humidity-monitor/internal/sensor"
)

// mockDropEvery makes the development sensor miss a humidity reading now and
// then so the transient error path is exercised.
const mockDropEvery = 10

var errLoopStopped = errors.New("poller stopped unexpectedly")

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"samplePeriod", cfg.SamplePeriod,
		"logPath", cfg.LogPath,
		"logSizeLimit", cfg.LogSizeLimit,
		"logRotateCount", cfg.LogRotateCount,
		"site", cfg.Site,
		"location", cfg.Location,
		"mirrorBackend", cfg.MirrorBackend,
		"mirrorEnabled", cfg.MirrorEnabled(),
		"sensorDriver", cfg.SensorDriver,
		"mqttBroker", cfg.MQTTBroker,
		"httpAddr", cfg.HTTPAddr,
	)
	logger := slog.Default()

	// The poller and MQTT goroutines run on this context; cancelling it before
	// returning keeps them from outliving the collaborators closed below.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dev, closeSensor, err := openSensor(cfg, logging.Component(logger, "sensor"))
	if err != nil {
		return err
	}
	defer closeSensor()

	backend, err := openMirror(ctx, cfg, logging.Component(logger, "mirror"))
	if err != nil {
		return err
	}
	defer backend.close()

	clock := poller.SystemClock{}
	deps := poller.Deps{
		Sampler: sensor.NewSampler(dev, clock.Now),
		Clock:   clock,
		Log: logfile.NewWriter(logfile.Options{
			Path:        cfg.LogPath,
			SizeLimit:   cfg.LogSizeLimit,
			RotateCount: cfg.LogRotateCount,
			Stdout:      os.Stdout,
			Logger:      logging.Component(logger, "logfile"),
		}),
		Remote:                 backend.mirror,
		Logger:                 logging.Component(logger, "poller"),
		Period:                 cfg.SamplePeriod,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	}

	if cfg.MQTTBroker != "" {
		client, err := mqtt.NewClient(cfg, logging.Component(logger, "mqtt"))
		if err != nil {
			return err
		}
		defer func() {
			slog.Info("mqtt disconnecting")
			client.Disconnect()
		}()
		// Connect in the background; samples published before the broker is
		// reachable are dropped with a warning.
		go func() {
			if err := client.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("mqtt connection failed (continuing without telemetry)", "error", err)
			}
		}()
		deps.Telemetry = client
	}

	p, err := poller.New(deps)
	if err != nil {
		return err
	}

	pollErr := make(chan error, 1)
	go func() { pollErr <- p.Run(ctx) }()

	if cfg.HTTPAddr == "" {
		return loopResult(ctx, <-pollErr)
	}

	var readings *httpapi.Readings
	if backend.reader != nil {
		readings = &httpapi.Readings{Docs: backend.reader, Site: cfg.Site, Location: cfg.Location}
	}
	srv := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewMux(p, readings))
	httpErr := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		httpErr <- srv.ListenAndServe()
	}()

	var result error
	select {
	case err := <-pollErr:
		result = loopResult(ctx, err)
	case err := <-httpErr:
		cancel()
		<-pollErr
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return errLoopStopped
	}

	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-httpErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return result
}

// loopResult maps the poller's return into Run's: cancellation passes through
// as-is and any other exit, including a nil one, is an error.
func loopResult(ctx context.Context, err error) error {
	if err == nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errLoopStopped
	}
	return err
}

func openSensor(cfg config.Config, logger *slog.Logger) (sensor.Sensor, func(), error) {
	switch cfg.SensorDriver {
	case config.SensorDriverMock:
		logger.Info("using mock sensor", "dropEvery", mockDropEvery)
		return sensor.NewMock(mockDropEvery), func() {}, nil
	case config.SensorDriverBME280:
		dev, err := sensor.OpenBME280(cfg.I2CBus, cfg.BME280Address, logger)
		if err != nil {
			return nil, nil, err
		}
		return dev, func() {
			if err := dev.Close(); err != nil {
				slog.Error("sensor close", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown sensor driver %q", cfg.SensorDriver)
	}
}

type mirrorBackend struct {
	mirror *mirror.Mirror
	// reader is set when mirrored documents can be read back locally.
	reader httpapi.DocumentReader
	close  func()
}

// openMirror builds the remote mirror for the configured backend. Without
// credentials the mirror is returned disabled and never touches a store.
func openMirror(ctx context.Context, cfg config.Config, logger *slog.Logger) (mirrorBackend, error) {
	if !cfg.MirrorEnabled() {
		logger.Info("remote mirror disabled", "backend", cfg.MirrorBackend)
		return mirrorBackend{
			mirror: mirror.New(nil, cfg.Site, cfg.Location, logger),
			close:  func() {},
		}, nil
	}

	switch cfg.MirrorBackend {
	case config.MirrorBackendFirestore:
		store, err := docstore.NewFirestoreStore(ctx, cfg.CredentialPath)
		if err != nil {
			return mirrorBackend{}, err
		}
		return mirrorBackend{
			mirror: mirror.New(store, cfg.Site, cfg.Location, logger),
			close: func() {
				if err := store.Close(); err != nil {
					slog.Error("firestore close", "error", err)
				}
			},
		}, nil

	case config.MirrorBackendSQLite:
		conn, err := db.Open(cfg.SQLitePath, slog.Default())
		if err != nil {
			return mirrorBackend{}, err
		}
		if err := migrate.Run(ctx, conn); err != nil {
			_ = db.Close(conn)
			return mirrorBackend{}, err
		}
		store := docstore.NewSQLiteStore(conn)
		return mirrorBackend{
			mirror: mirror.New(store, cfg.Site, cfg.Location, logger),
			reader: store,
			close: func() {
				if err := db.Close(conn); err != nil {
					slog.Error("db close", "error", err)
				}
			},
		}, nil

	default:
		return mirrorBackend{}, fmt.Errorf("unknown mirror backend %q", cfg.MirrorBackend)
	}
}
