package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Cluster drivers accepted in CLUSTER_DRIVER. Empty selects single-node mode.
const (
	ClusterNone     = ""
	ClusterSQLite   = "sqlite"
	ClusterPostgres = "pgx"
	ClusterRedis    = "redis"
)

// Config holds the application configuration.
type Config struct {
	ServerPort  int
	LogLevel    string
	LogJSON     bool
	ReadOnly    bool
	CORSOrigins []string
	JWTSecret   string

	EventsMaxCapacity int
	EventsRetention   time.Duration
	TimelineSpan      time.Duration

	ClusterDriver  string
	ClusterDSN     string
	ClusterTimeout time.Duration

	SchedulerName     string
	SchedulerWorkers  int
	SchedulerTimezone string
	JobsFile          string

	MetricsEnabled bool
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		ServerPort:        getInt("PORT", 8080, &errs),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogJSON:           getBool("LOG_JSON", false, &errs),
		ReadOnly:          getBool("READ_ONLY", false, &errs),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		EventsMaxCapacity: getInt("EVENTS_MAX_CAPACITY", 1000, &errs),
		EventsRetention:   getDuration("EVENTS_RETENTION", time.Hour, &errs),
		ClusterDriver:     getEnv("CLUSTER_DRIVER", ClusterNone),
		ClusterDSN:        os.Getenv("CLUSTER_DSN"),
		ClusterTimeout:    getDuration("CLUSTER_TIMEOUT", 2*time.Second, &errs),
		SchedulerName:     getEnv("SCHEDULER_NAME", "schedpanel"),
		SchedulerWorkers:  getInt("SCHEDULER_WORKERS", 10, &errs),
		SchedulerTimezone: getEnv("SCHEDULER_TIMEZONE", "Local"),
		JobsFile:          os.Getenv("JOBS_FILE"),
		MetricsEnabled:    getBool("METRICS_ENABLED", true, &errs),
	}
	cfg.TimelineSpan = getDuration("TIMELINE_SPAN", cfg.EventsRetention, &errs)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks values that parse but cannot work together.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		invalid("PORT %d out of range", c.ServerPort)
	}
	if c.EventsMaxCapacity <= 0 {
		invalid("EVENTS_MAX_CAPACITY must be positive, got %d", c.EventsMaxCapacity)
	}
	if c.EventsRetention <= 0 {
		invalid("EVENTS_RETENTION must be positive, got %s", c.EventsRetention)
	}
	if c.SchedulerWorkers <= 0 {
		invalid("SCHEDULER_WORKERS must be positive, got %d", c.SchedulerWorkers)
	}
	switch c.ClusterDriver {
	case ClusterNone:
	case ClusterSQLite, ClusterPostgres, ClusterRedis:
		if c.ClusterDSN == "" {
			invalid("CLUSTER_DSN is required with CLUSTER_DRIVER=%s", c.ClusterDriver)
		}
		if c.ClusterTimeout <= 0 {
			invalid("CLUSTER_TIMEOUT must be positive, got %s", c.ClusterTimeout)
		}
	default:
		invalid("unknown CLUSTER_DRIVER %q", c.ClusterDriver)
	}
	if _, err := c.Location(); err != nil {
		invalid("SCHEDULER_TIMEZONE %q: %v", c.SchedulerTimezone, err)
	}
	return errors.Join(errs...)
}

// Clustered reports whether events go to a shared store.
func (c *Config) Clustered() bool { return c.ClusterDriver != ClusterNone }

// Location resolves SCHEDULER_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	if c.SchedulerTimezone == "" || c.SchedulerTimezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.SchedulerTimezone)
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, raw))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool, errs *[]error) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, raw))
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, key, raw))
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
