package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds shared runtime configuration for the API and the offline exporter.
type Config struct {
	Env         string
	HTTPPort    string
	MetricsAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string

	ProjectsDir      string
	ExportDir        string
	ExportS3Bucket   string
	ExportS3Region   string
	ExportS3Endpoint string
	ExportPathStyle  bool
	FontDir          string

	ExportJobTTL          time.Duration
	JobJanitorInterval    time.Duration
	RenderMaxWorkers      int
	RateLimitCapacity     int
	RateLimitRefill       float64
	AdvancedCooldown      time.Duration
	SSEHeartbeat          time.Duration
	DefaultLanguages      []string
	DefaultWatermarkText  string
	PreviewCacheMaxAgeSec int

	LogLevel          string
	LogFormat         string
	LogFile           string
	LogFileMaxSizeMB  int
	LogFileMaxBackups int
	LogFileMaxAgeDays int
	LogFileCompress   bool
}

// Load reads configuration from environment variables with sane defaults for
// local development. A .env file in the working directory is applied first
// and never overrides variables that are already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),

		ProjectsDir:      getEnv("PROJECTS_DIR", "./data/projects"),
		ExportDir:        getEnv("EXPORT_DIR", "./data/exports"),
		ExportS3Bucket:   getEnv("EXPORT_S3_BUCKET", ""),
		ExportS3Region:   getEnv("EXPORT_S3_REGION", "us-east-1"),
		ExportS3Endpoint: getEnv("EXPORT_S3_ENDPOINT", ""),
		ExportPathStyle:  getEnvBool("EXPORT_S3_PATH_STYLE", false),
		FontDir:          getEnv("FONT_DIR", ""),

		ExportJobTTL:          getEnvDuration("EXPORT_JOB_TTL", 30*time.Minute),
		JobJanitorInterval:    getEnvDuration("EXPORT_JOB_JANITOR_INTERVAL", time.Minute),
		RenderMaxWorkers:      getEnvInt("RENDER_MAX_WORKERS", 0),
		RateLimitCapacity:     getEnvInt("RATE_LIMIT_CAPACITY", 10),
		RateLimitRefill:       getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 0.2),
		AdvancedCooldown:      getEnvDuration("ADVANCED_EXPORT_COOLDOWN", 5*time.Minute),
		SSEHeartbeat:          getEnvDuration("SSE_HEARTBEAT", 15*time.Second),
		DefaultLanguages:      getEnvList("DEFAULT_EXPORT_LANGUAGES", []string{"zh", "en", "pt", "ja", "ko"}),
		DefaultWatermarkText:  getEnv("WATERMARK_TEXT", "appshots"),
		PreviewCacheMaxAgeSec: getEnvInt("PREVIEW_CACHE_MAX_AGE", 300),

		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "json")),
		LogFile:           getEnv("LOG_FILE", ""),
		LogFileMaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE", 50),
		LogFileMaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 3),
		LogFileMaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE", 7),
		LogFileCompress:   getEnvBool("LOG_FILE_COMPRESS", true),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
