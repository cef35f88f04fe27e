package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server captures process level configuration shared by the HTTP server and
// the operator CLI.
type Server struct {
	Addr        string
	DatabaseURL string
	LogFormat   string
	LogLevel    string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Rollover    RolloverConfig
	GapStatus   GapStatusConfig
}

// RedisConfig configures the optional Redis connection. An empty URL
// disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox relay.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	RelayInterval time.Duration
	RelayBatch    int
}

// RolloverConfig bounds rollover executions.
type RolloverConfig struct {
	Timeout     time.Duration
	Workers     int
	LockTTL     time.Duration
	HTTPTimeout time.Duration
}

// GapStatusConfig carries lifecycle policy switches.
type GapStatusConfig struct {
	RequireEvidenceForDirectVerification bool
}

// Defaults used when neither env nor config file provide a value.
var (
	DefaultAddr            = ":8080"
	DefaultRolloverTimeout = 2 * time.Minute
	DefaultLockTTL         = 5 * time.Minute
	DefaultAuditTopic      = "esgledger.audit"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envString("ESGLEDGER_ADDR", DefaultAddr),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogFormat:   envString("LOG_FORMAT", "json"),
		LogLevel:    envString("LOG_LEVEL", "info"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:         envString("AUDIT_TOPIC", DefaultAuditTopic),
			RelayInterval: envDuration("AUDIT_RELAY_INTERVAL", time.Second),
			RelayBatch:    envInt("AUDIT_RELAY_BATCH", 100),
		},
		Rollover: RolloverConfig{
			Timeout:     envDuration("ROLLOVER_TIMEOUT", DefaultRolloverTimeout),
			Workers:     envInt("ROLLOVER_WORKERS", 4),
			LockTTL:     envDuration("ROLLOVER_LOCK_TTL", DefaultLockTTL),
			HTTPTimeout: envDuration("ROLLOVER_HTTP_TIMEOUT", 3*time.Minute),
		},
		GapStatus: GapStatusConfig{
			RequireEvidenceForDirectVerification: os.Getenv("REQUIRE_EVIDENCE_FOR_DIRECT_VERIFICATION") == "true",
		},
	}
}

// SetDefaults registers the CLI defaults on v. Keys mirror the Server fields.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "info")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("kafka.topic", DefaultAuditTopic)
	v.SetDefault("kafka.relay_interval", time.Second)
	v.SetDefault("kafka.relay_batch", 100)
	v.SetDefault("rollover.timeout", DefaultRolloverTimeout)
	v.SetDefault("rollover.workers", 4)
	v.SetDefault("rollover.lock_ttl", DefaultLockTTL)
	v.SetDefault("gapstatus.require_evidence_for_direct_verification", false)
}

// FromViper reads a Server config from v, typically populated by a YAML file,
// ESGLEDGER_ prefixed env vars and bound CLI flags.
func FromViper(v *viper.Viper) Server {
	return Server{
		Addr:        v.GetString("addr"),
		DatabaseURL: v.GetString("database.url"),
		LogFormat:   v.GetString("logging.format"),
		LogLevel:    v.GetString("logging.level"),
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Kafka: KafkaConfig{
			Brokers:       v.GetStringSlice("kafka.brokers"),
			Topic:         v.GetString("kafka.topic"),
			RelayInterval: v.GetDuration("kafka.relay_interval"),
			RelayBatch:    v.GetInt("kafka.relay_batch"),
		},
		Rollover: RolloverConfig{
			Timeout: v.GetDuration("rollover.timeout"),
			Workers: v.GetInt("rollover.workers"),
			LockTTL: v.GetDuration("rollover.lock_ttl"),
		},
		GapStatus: GapStatusConfig{
			RequireEvidenceForDirectVerification: v.GetBool("gapstatus.require_evidence_for_direct_verification"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
