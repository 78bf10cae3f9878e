package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const devJWTSecret = "dev-insecure-secret"

// Config represents application configuration loaded from environment variables
// and an optional YAML file named by CONFIG_FILE.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	DBMaxConns       int32
	AutoMigrate      bool
	JWTSecret        string
	JWTTTL           time.Duration
	UploadDir        string
	UploadURLPrefix  string
	MaxUploadBytes   int64
	ProcessingMin    time.Duration
	ProcessingMax    time.Duration
	FailureRate      float64
	MaxInFlightJobs  int
	CORSOrigins      []string
	AuthRatePerMin   int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// UsesMemoryStore reports whether the service runs without Postgres.
func (c *Config) UsesMemoryStore() bool {
	return strings.TrimSpace(c.DatabaseURL) == ""
}

// UsingDevSecret reports whether the built-in development secret is active.
func (c *Config) UsingDevSecret() bool {
	return c.JWTSecret == devJWTSecret
}

// LoadConfig loads configuration and applies defaults where needed.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("JWT_TTL_HOURS", 24*7)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_URL_PREFIX", "/uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("MAX_INFLIGHT_JOBS", 100)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("AUTH_RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("HTTP_READ_TIMEOUT_SECONDS", 15)
	v.SetDefault("HTTP_WRITE_TIMEOUT_SECONDS", 30)
	v.SetDefault("HTTP_IDLE_TIMEOUT_SECONDS", 60)

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	appEnv := v.GetString("APP_ENV")
	minDelay, maxDelay, failureRate := processingDefaults(appEnv)
	v.SetDefault("PROCESSING_MIN_DELAY_MS", minDelay.Milliseconds())
	v.SetDefault("PROCESSING_MAX_DELAY_MS", maxDelay.Milliseconds())
	v.SetDefault("PROCESSING_FAILURE_RATE", failureRate)

	cfg := &Config{
		AppEnv:           appEnv,
		Port:             v.GetString("PORT"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		DBMaxConns:       v.GetInt32("DB_MAX_CONNS"),
		AutoMigrate:      v.GetBool("AUTO_MIGRATE"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTTTL:           time.Hour * time.Duration(v.GetInt("JWT_TTL_HOURS")),
		UploadDir:        v.GetString("UPLOAD_DIR"),
		UploadURLPrefix:  "/" + strings.Trim(v.GetString("UPLOAD_URL_PREFIX"), "/"),
		MaxUploadBytes:   v.GetInt64("MAX_UPLOAD_BYTES"),
		ProcessingMin:    time.Millisecond * time.Duration(v.GetInt("PROCESSING_MIN_DELAY_MS")),
		ProcessingMax:    time.Millisecond * time.Duration(v.GetInt("PROCESSING_MAX_DELAY_MS")),
		FailureRate:      v.GetFloat64("PROCESSING_FAILURE_RATE"),
		MaxInFlightJobs:  v.GetInt("MAX_INFLIGHT_JOBS"),
		CORSOrigins:      splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		AuthRatePerMin:   v.GetInt("AUTH_RATE_LIMIT_PER_MINUTE"),
		HTTPReadTimeout:  time.Second * time.Duration(v.GetInt("HTTP_READ_TIMEOUT_SECONDS")),
		HTTPWriteTimeout: time.Second * time.Duration(v.GetInt("HTTP_WRITE_TIMEOUT_SECONDS")),
		HTTPIdleTimeout:  time.Second * time.Duration(v.GetInt("HTTP_IDLE_TIMEOUT_SECONDS")),
	}

	if cfg.JWTSecret == "" {
		if appEnv != "development" && appEnv != "test" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.ProcessingMin < 0 || cfg.ProcessingMax < cfg.ProcessingMin {
		return nil, fmt.Errorf("invalid processing delay range %s..%s", cfg.ProcessingMin, cfg.ProcessingMax)
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return nil, fmt.Errorf("PROCESSING_FAILURE_RATE must be within [0,1], got %v", cfg.FailureRate)
	}
	if cfg.DBMaxConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	return cfg, nil
}

// processingDefaults returns the simulated latency window and failure rate.
// Test mode keeps suites fast while staying probabilistic.
func processingDefaults(appEnv string) (time.Duration, time.Duration, float64) {
	if appEnv == "test" {
		return 10 * time.Millisecond, 50 * time.Millisecond, 0.05
	}
	return time.Second, 3 * time.Second, 0.2
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
