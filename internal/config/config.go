package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	MirrorBackendFirestore = "firestore"
	MirrorBackendSQLite    = "sqlite"

	SensorDriverBME280 = "bme280"
	SensorDriverMock   = "mock"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	SamplePeriod time.Duration

	LogPath        string
	LogSizeLimit   int64
	LogRotateCount int

	// CredentialPath points at the Firestore service account key.
	// An empty value leaves the Firestore mirror disabled.
	CredentialPath string
	Site           string
	Location       string
	MirrorBackend  string
	SQLitePath     string

	SensorDriver  string
	I2CBus        string
	BME280Address uint16

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string

	HTTPAddr string

	MaxConsecutiveFailures int
}

// MirrorEnabled reports whether the configured backend has what it needs to run.
func (c Config) MirrorEnabled() bool {
	switch c.MirrorBackend {
	case MirrorBackendFirestore:
		return c.CredentialPath != ""
	case MirrorBackendSQLite:
		return c.SQLitePath != ""
	}
	return false
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	samplePeriodStr := strings.TrimSpace(os.Getenv("SAMPLE_PERIOD_S"))
	if samplePeriodStr == "" {
		samplePeriodStr = "300"
	}
	samplePeriod, err := parseSeconds(samplePeriodStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SAMPLE_PERIOD_S %q: %w", samplePeriodStr, err)
	}

	logPath := strings.TrimSpace(os.Getenv("LOG_PATH"))
	if logPath == "" {
		logPath = "/var/log/humidity-monitor/humidity.log"
	}

	logSizeLimitStr := strings.TrimSpace(os.Getenv("LOG_SIZE_LIMIT"))
	if logSizeLimitStr == "" {
		logSizeLimitStr = "1000000"
	}
	logSizeLimit, err := strconv.ParseInt(logSizeLimitStr, 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOG_SIZE_LIMIT %q: %w", logSizeLimitStr, err)
	}
	if logSizeLimit < 0 {
		return Config{}, fmt.Errorf("LOG_SIZE_LIMIT must not be negative, got %d", logSizeLimit)
	}

	logRotateCountStr := strings.TrimSpace(os.Getenv("LOG_ROTATE_COUNT"))
	if logRotateCountStr == "" {
		logRotateCountStr = "4"
	}
	logRotateCount, err := strconv.Atoi(logRotateCountStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOG_ROTATE_COUNT %q: %w", logRotateCountStr, err)
	}
	if logRotateCount < 1 {
		return Config{}, fmt.Errorf("LOG_ROTATE_COUNT must be at least 1, got %d", logRotateCount)
	}

	credentialPath := strings.TrimSpace(os.Getenv("APP_SERVICE_KEY"))

	site := strings.TrimSpace(os.Getenv("APP_SITE"))
	if site == "" {
		site = "test_site"
	}

	location := strings.TrimSpace(os.Getenv("APP_LOCATION"))
	if location == "" {
		location = "test_location"
	}

	mirrorBackend := strings.ToLower(strings.TrimSpace(os.Getenv("MIRROR_BACKEND")))
	if mirrorBackend == "" {
		mirrorBackend = MirrorBackendFirestore
	}
	switch mirrorBackend {
	case MirrorBackendFirestore, MirrorBackendSQLite:
	default:
		return Config{}, fmt.Errorf("invalid MIRROR_BACKEND %q (allowed: firestore, sqlite)", mirrorBackend)
	}

	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))

	sensorDriver := strings.ToLower(strings.TrimSpace(os.Getenv("SENSOR_DRIVER")))
	if sensorDriver == "" {
		sensorDriver = SensorDriverBME280
	}
	switch sensorDriver {
	case SensorDriverBME280, SensorDriverMock:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_DRIVER %q (allowed: bme280, mock)", sensorDriver)
	}

	i2cBus := strings.TrimSpace(os.Getenv("I2C_BUS"))

	bme280AddressStr := strings.TrimSpace(os.Getenv("BME280_ADDRESS"))
	if bme280AddressStr == "" {
		bme280AddressStr = "0x76"
	}
	bme280Address, err := strconv.ParseUint(bme280AddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "humidity-monitor"
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))

	maxFailuresStr := strings.TrimSpace(os.Getenv("MAX_CONSECUTIVE_FAILURES"))
	if maxFailuresStr == "" {
		maxFailuresStr = "0"
	}
	maxFailures, err := strconv.Atoi(maxFailuresStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MAX_CONSECUTIVE_FAILURES %q: %w", maxFailuresStr, err)
	}
	if maxFailures < 0 {
		return Config{}, fmt.Errorf("MAX_CONSECUTIVE_FAILURES must not be negative, got %d", maxFailures)
	}

	return Config{
		AppEnv:                 appEnv,
		LogLevel:               level,
		SamplePeriod:           samplePeriod,
		LogPath:                logPath,
		LogSizeLimit:           logSizeLimit,
		LogRotateCount:         logRotateCount,
		CredentialPath:         credentialPath,
		Site:                   site,
		Location:               location,
		MirrorBackend:          mirrorBackend,
		SQLitePath:             sqlitePath,
		SensorDriver:           sensorDriver,
		I2CBus:                 i2cBus,
		BME280Address:          uint16(bme280Address),
		MQTTBroker:             mqttBroker,
		MQTTPort:               mqttPort,
		MQTTClientID:           mqttClientID,
		HTTPAddr:               httpAddr,
		MaxConsecutiveFailures: maxFailures,
	}, nil
}

// maxPeriodSeconds bounds periods to what a time.Duration can hold.
const maxPeriodSeconds = float64(math.MaxInt64) / float64(time.Second)

// parseSeconds converts a float number of seconds into a positive duration.
func parseSeconds(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return 0, fmt.Errorf("must be a positive number of seconds")
	}
	if secs >= maxPeriodSeconds {
		return 0, fmt.Errorf("must be less than %.0f seconds", maxPeriodSeconds)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
