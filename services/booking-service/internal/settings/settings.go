// Package settings reads the booking service's environment.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/queueline/libs/config"
	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/availability"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Settings struct {
	ServiceName string
	Port        string
	GRPCPort    string
	LogLevel    string

	StorageDriver string
	DatabaseURL   string
	DBMaxConns    int
	DBMinConns    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueCacheTTL time.Duration

	KafkaBrokers    string
	OutboxPollEvery time.Duration
	OutboxBatchSize int

	SlotGranularityMinutes int
	SlotOverlapMode        availability.Mode
	QueueBufferMinutes     int

	RateLimitPerMinute int
	RateLimitFailOpen  bool
	CORSAllowedOrigins []string
}

// Load reads every key, collecting all problems into one error.
func Load() (Settings, error) {
	var (
		s    Settings
		errs []error
		err  error
	)
	s.ServiceName = config.String("SERVICE_NAME", "booking-service")
	s.LogLevel = config.String("LOG_LEVEL", "info")
	if s.Port, err = config.Port("PORT", "8083"); err != nil {
		errs = append(errs, err)
	}
	if s.GRPCPort, err = config.Port("GRPC_PORT", "9093"); err != nil {
		errs = append(errs, err)
	}

	s.StorageDriver = strings.ToLower(config.String("STORAGE_DRIVER", DriverPostgres))
	switch s.StorageDriver {
	case DriverPostgres:
		if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			errs = append(errs, err)
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q (got %q)", DriverPostgres, DriverMemory, s.StorageDriver))
	}

	if s.DBMaxConns, err = config.Int("DB_MAX_CONNS", 10); err != nil {
		errs = append(errs, err)
	}
	if s.DBMinConns, err = config.Int("DB_MIN_CONNS", 1); err != nil {
		errs = append(errs, err)
	}

	s.RedisAddr = strings.TrimSpace(config.String("REDIS_ADDR", ""))
	s.RedisPassword = config.String("REDIS_PASSWORD", "")
	if s.RedisDB, err = config.Int("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if s.QueueCacheTTL, err = config.Duration("QUEUE_CACHE_TTL", 5*time.Minute); err != nil {
		errs = append(errs, err)
	}

	s.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	if s.OutboxPollEvery, err = config.Duration("OUTBOX_POLL_EVERY", 2*time.Second); err != nil {
		errs = append(errs, err)
	}
	if s.OutboxBatchSize, err = config.Int("OUTBOX_BATCH_SIZE", 50); err != nil {
		errs = append(errs, err)
	}

	if s.SlotGranularityMinutes, err = config.Int("SLOT_GRANULARITY_MINUTES", availability.DefaultGranularityMinutes); err != nil {
		errs = append(errs, err)
	}
	mode, ok := availability.ParseMode(config.String("SLOT_OVERLAP_MODE", string(availability.ModeInterval)))
	if !ok {
		errs = append(errs, fmt.Errorf("SLOT_OVERLAP_MODE must be %q or %q", availability.ModeInterval, availability.ModeExact))
	}
	s.SlotOverlapMode = mode
	if s.QueueBufferMinutes, err = config.Int("QUEUE_BUFFER_MINUTES", 0); err != nil {
		errs = append(errs, err)
	}

	if s.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		errs = append(errs, err)
	}
	if s.RateLimitFailOpen, err = config.Bool("RATE_LIMIT_FAIL_OPEN", true); err != nil {
		errs = append(errs, err)
	}
	s.CORSAllowedOrigins = config.List("CORS_ALLOWED_ORIGINS")

	if len(errs) == 0 {
		errs = append(errs, s.Validate())
	}
	if err := errors.Join(errs...); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	var errs []error
	if s.SlotGranularityMinutes < 5 || s.SlotGranularityMinutes > 240 {
		errs = append(errs, fmt.Errorf("SLOT_GRANULARITY_MINUTES must be between 5 and 240 (got %d)", s.SlotGranularityMinutes))
	}
	if s.QueueBufferMinutes < 0 {
		errs = append(errs, fmt.Errorf("QUEUE_BUFFER_MINUTES must not be negative (got %d)", s.QueueBufferMinutes))
	}
	if s.OutboxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive (got %d)", s.OutboxBatchSize))
	}
	if s.OutboxPollEvery <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_POLL_EVERY must be positive (got %s)", s.OutboxPollEvery))
	}
	if s.DBMaxConns <= 0 || s.DBMinConns < 0 || s.DBMinConns > s.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS and DB_MAX_CONNS must satisfy 0 <= min <= max, max > 0 (got %d, %d)", s.DBMinConns, s.DBMaxConns))
	}
	if s.RateLimitPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive (got %d)", s.RateLimitPerMinute))
	}
	return errors.Join(errs...)
}
