// Package config loads service configuration from environment variables.
// envconfig maps variables onto the struct fields below.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"serotonyl.ru/plaza-rewards/internal/common"
)

// Config holds ALL application settings.
type Config struct {
	// --- Database ---
	// Inside docker-compose the host is the service name, override DB_HOST=localhost for local runs.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"plaza"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"plaza_rewards"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Tenant-local "today" is computed in this zone.
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"America/Toronto"`

	// Rotating log file; empty means stdout only.
	AppLogFile          string `envconfig:"APP_LOG_FILE"`
	AppLogFileMaxSizeMB int    `envconfig:"APP_LOG_FILE_MAX_SIZE_MB" default:"100"`
	AppLogFileBackups   int    `envconfig:"APP_LOG_FILE_BACKUPS" default:"3"`
	AppLogFileMaxAge    int    `envconfig:"APP_LOG_FILE_MAX_AGE_DAYS" default:"7"`
	AppLogFileCompress  bool   `envconfig:"APP_LOG_FILE_COMPRESS" default:"false"`

	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`

	// --- Admin ---
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
	AdminSessionTTL   time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"24h"`

	// --- Rewards ---
	RewardDailyBase int64 `envconfig:"REWARD_DAILY_BASE" default:"5"`
	// Exact-milestone bonuses, "streak:bonus" pairs.
	RewardStreakBonuses map[int]int64 `envconfig:"REWARD_STREAK_BONUSES" default:"7:20,14:50,30:100"`
	RewardDailyCap      int64         `envconfig:"REWARD_DAILY_CAP" default:"100"`

	// --- Jobs ---
	ReconcileCron string `envconfig:"RECONCILE_CRON" default:"30 2 * * *"`

	// --- Feature Flags ---
	FeatureGrantsEnabled bool `envconfig:"FEATURE_GRANTS_ENABLED" default:"true"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Location returns the tenant timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := common.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if _, err := common.LoadLocation(c.AppTimezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	if c.RewardDailyBase < 0 {
		return fmt.Errorf("REWARD_DAILY_BASE must be >= 0")
	}
	if c.RewardDailyCap < 0 {
		return fmt.Errorf("REWARD_DAILY_CAP must be >= 0")
	}
	for streak, bonus := range c.RewardStreakBonuses {
		if streak < 1 {
			return fmt.Errorf("REWARD_STREAK_BONUSES: streak %d must be >= 1", streak)
		}
		if bonus < 0 {
			return fmt.Errorf("REWARD_STREAK_BONUSES: bonus for day %d must be >= 0", streak)
		}
	}
	if c.AdminSessionTTL <= 0 {
		return fmt.Errorf("ADMIN_SESSION_TTL must be > 0")
	}
	return nil
}

// Load reads the environment and fills Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
