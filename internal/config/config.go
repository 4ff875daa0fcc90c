package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port            int
	MaxUploadMB     int
	UploadDir       string
	MaxConcurrent   int
	RateLimitPerSec int
	RateLimitBurst  int
	WorkerCount     int
	ConvertTimeout  time.Duration

	LogLevel  string
	LogFormat string

	TraceExporter string // none, stdout or otlp
	OTLPEndpoint  string
	OTLPInsecure  bool
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		MaxUploadMB:     getEnvInt("MAX_UPLOAD_MB", 100),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		MaxConcurrent:   getEnvInt("MAX_CONCURRENT", 50),
		RateLimitPerSec: getEnvInt("RATE_LIMIT", 10),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 20),
		WorkerCount:     getEnvInt("WORKER_COUNT", 10),
		ConvertTimeout:  getEnvDuration("CONVERT_TIMEOUT", 2*time.Minute),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),

		TraceExporter: strings.ToLower(getEnv("TRACE_EXPORTER", "none")),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", ""),
		OTLPInsecure:  getEnvBool("OTLP_INSECURE", false),
	}
	return cfg
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func getEnv(key, defaultValue string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
