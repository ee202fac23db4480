package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort string
	JWTSecret  string
	TokenTTL   time.Duration
	Postgres   PostgresConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	Logging    LoggingConfig
	Gemini     GeminiConfig
	Chat       ChatConfig
}

type PostgresConfig struct {
	DSN               string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// RedisConfig enables the financial summary cache when Addr is set.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SummaryTTL time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

// GeminiConfig carries the generative backend credentials and sampling
// parameters. An empty APIKey selects the offline assistant.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	TopP        float32
	TopK        float32
}

const (
	HistoryBackendPostgres = "postgres"
	HistoryBackendMongo    = "mongo"
)

type ChatConfig struct {
	HistoryBackend     string
	PersistenceTimeout time.Duration
	StartTimeout       time.Duration
	OfflineChunkDelay  time.Duration
}

func LoadConfig() (*Config, error) {
	port := envOrDefault("PORT", "8080")
	jwtSecret := envOrDefault("JWT_SECRET", "dev-secret")

	pgPort, _ := strconv.Atoi(envOrDefault("POSTGRES_PORT", "5432"))
	maxConns := parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8)
	minConns := parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1)
	redisDB, _ := strconv.Atoi(envOrDefault("REDIS_DB", "0"))

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("VITE_GEMINI_API_KEY"))
	}

	cfg := &Config{
		ServerPort: port,
		JWTSecret:  jwtSecret,
		TokenTTL:   parseDuration(envOrDefault("JWT_TTL", "24h"), 24*time.Hour),
		Postgres: PostgresConfig{
			DSN:               os.Getenv("POSTGRES_DSN"),
			Host:              envOrDefault("POSTGRES_HOST", "localhost"),
			Port:              pgPort,
			User:              envOrDefault("POSTGRES_USER", "postgres"),
			Password:          envOrDefault("POSTGRES_PASSWORD", "postgres"),
			Database:          envOrDefault("POSTGRES_DB", "finbot"),
			MaxConns:          maxConns,
			MinConns:          minConns,
			MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
			MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE", "30m"), 30*time.Minute),
			HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
			ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Mongo: MongoConfig{
			URI:            os.Getenv("MONGO_URI"),
			Database:       envOrDefault("MONGO_DATABASE", "finbot"),
			ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         redisDB,
			SummaryTTL: parseDuration(envOrDefault("SUMMARY_CACHE_TTL", "5m"), 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
			Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
			EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
			ServiceName:  envOrDefault("SERVICE_NAME", "finbot"),
		},
		Gemini: GeminiConfig{
			APIKey:      apiKey,
			Model:       envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
			Temperature: parseFloat32(envOrDefault("GEMINI_TEMPERATURE", "0.7"), 0.7),
			TopP:        parseFloat32(envOrDefault("GEMINI_TOP_P", "0.9"), 0.9),
			TopK:        parseFloat32(envOrDefault("GEMINI_TOP_K", "40"), 40),
		},
		Chat: ChatConfig{
			HistoryBackend:     strings.ToLower(envOrDefault("CHAT_HISTORY_BACKEND", HistoryBackendPostgres)),
			PersistenceTimeout: parseDuration(envOrDefault("CHAT_PERSIST_TIMEOUT", "10s"), 10*time.Second),
			StartTimeout:       parseDuration(envOrDefault("CHAT_START_TIMEOUT", "30s"), 30*time.Second),
			OfflineChunkDelay:  parseDuration(envOrDefault("OFFLINE_CHUNK_DELAY", "50ms"), 50*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return fmt.Errorf("config: GEMINI_TEMPERATURE must be within [0, 2], got %v", c.Gemini.Temperature)
	}
	if c.Gemini.TopP <= 0 || c.Gemini.TopP > 1 {
		return fmt.Errorf("config: GEMINI_TOP_P must be within (0, 1], got %v", c.Gemini.TopP)
	}
	if c.Gemini.TopK <= 0 {
		return fmt.Errorf("config: GEMINI_TOP_K must be positive, got %v", c.Gemini.TopK)
	}

	switch c.Chat.HistoryBackend {
	case HistoryBackendPostgres:
	case HistoryBackendMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			return fmt.Errorf("config: MONGO_URI is required when CHAT_HISTORY_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("config: unknown CHAT_HISTORY_BACKEND %q", c.Chat.HistoryBackend)
	}

	return nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseFloat32(value string, fallback float32) float32 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
