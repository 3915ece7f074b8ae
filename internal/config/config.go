package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"flag-events/pkg/logger"
)

const (
	DefaultBatchSize     = 10
	DefaultFlushInterval = 30 * time.Second
	DefaultQueueCapacity = 1000
)

type Config struct {
	// Processor tuning.
	BatchSize     int
	FlushInterval time.Duration
	QueueCapacity int
	DrainOnStop   bool

	// Collector endpoint for the HTTP dispatcher.
	CollectorURL string

	// Relay daemon.
	ListenAddr string

	// Event context, constant for the lifetime of the process.
	AccountID     string
	ProjectID     string
	Revision      string
	AnonymizeIP   bool
	ClientName    string
	ClientVersion string

	// Optional MySQL archive of dispatched batches.
	ArchiveEnabled bool
	DBUser         string
	DBPassword     string
	DBHost         string
	DBPort         string
	DBName         string
}

func Load() *Config {
	return &Config{
		BatchSize:     getEnvInt("BATCH_SIZE", DefaultBatchSize),
		FlushInterval: getEnvDuration("FLUSH_INTERVAL_MS", DefaultFlushInterval),
		QueueCapacity: getEnvInt("QUEUE_CAPACITY", DefaultQueueCapacity),
		DrainOnStop:   getEnvBool("DRAIN_ON_STOP", false),

		CollectorURL: getEnv("COLLECTOR_URL", ""),
		ListenAddr:   getEnv("LISTEN_ADDR", ":8080"),

		AccountID:     getEnv("ACCOUNT_ID", ""),
		ProjectID:     getEnv("PROJECT_ID", ""),
		Revision:      getEnv("CONFIG_REVISION", "1"),
		AnonymizeIP:   getEnvBool("ANONYMIZE_IP", true),
		ClientName:    getEnv("CLIENT_NAME", "flag-events"),
		ClientVersion: getEnv("CLIENT_VERSION", "0.1.0"),

		ArchiveEnabled: getEnvBool("ARCHIVE_ENABLED", false),
		DBUser:         getEnv("MYSQL_USER", "root"),
		DBPassword:     getEnv("MYSQL_ROOT_PASSWORD", "testpass"),
		DBHost:         getEnv("MYSQL_HOST", "localhost"),
		DBPort:         getEnv("MYSQL_PORT", "3306"),
		DBName:         getEnv("MYSQL_DATABASE", "flagevents"),
	}
}

// Normalize replaces out-of-range processor values with their defaults.
// Invalid settings never fail construction; they are logged and substituted.
func (c *Config) Normalize() {
	log := logger.Get()
	if c.BatchSize <= 0 {
		log.Debugw("invalid batch size, using default",
			"value", c.BatchSize, "default", DefaultBatchSize)
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		log.Debugw("invalid flush interval, using default",
			"value_ms", c.FlushInterval.Milliseconds(),
			"default_ms", DefaultFlushInterval.Milliseconds())
		c.FlushInterval = DefaultFlushInterval
	}
	if c.QueueCapacity <= 0 {
		log.Debugw("invalid queue capacity, using default",
			"value", c.QueueCapacity, "default", DefaultQueueCapacity)
		c.QueueCapacity = DefaultQueueCapacity
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return time.Duration(i) * time.Millisecond
		}
	}
	return fallback
}
