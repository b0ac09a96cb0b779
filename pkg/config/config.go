package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env       string `validate:"oneof=development production test"`
	Port      int    `validate:"min=1,max=65535"`
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	RateLimit  RateLimitConfig
	Report     ReportConfig
	FieldCache FieldCacheConfig
}

type DatabaseConfig struct {
	Driver string `validate:"oneof=postgres mysql sqlite"`
	// DSN overrides the host based settings when set.
	DSN          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int `validate:"min=0"`
	MaxIdleConns int `validate:"min=0"`
	QueryTimeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string `validate:"required"`
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string `validate:"oneof=json console"`
}

// RateLimitConfig throttles report requests per client IP.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64 `validate:"gte=0"`
	Burst   int     `validate:"gte=0"`
	// IdleTTL evicts limiters of clients that stopped sending requests.
	IdleTTL time.Duration
}

// ReportConfig holds everything the session report needs from the host installation.
type ReportConfig struct {
	TablePrefix         string
	PageSize            int `validate:"min=1"`
	MaxPageSize         int `validate:"min=1,gtefield=PageSize"`
	FailOnMissingFields bool
	CityAliases         string
	VenueAliases        string
	RoomAliases         string
	Columns             []string
	NotSpecified        string `validate:"required"`
	Timezone            string `validate:"required"`
	TrainerRoleID       int64  `validate:"gte=0"`
	ViewCapability      string `validate:"required"`
	ManageCapability    string `validate:"required"`
}

// Location resolves the configured report timezone.
func (r ReportConfig) Location() (*time.Location, error) {
	return time.LoadLocation(r.Timezone)
}

// FieldCacheConfig tunes the memo of resolved field ids and schema shape.
type FieldCacheConfig struct {
	TTL              time.Duration
	Channel          string
	BroadcastEnabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DSN:          v.GetString("DB_DSN"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		QueryTimeout: parseDuration(v.GetString("DB_QUERY_TIMEOUT"), 30*time.Second),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("ENABLE_RATE_LIMIT"),
		RPS:     v.GetFloat64("RATE_LIMIT_RPS"),
		Burst:   v.GetInt("RATE_LIMIT_BURST"),
		IdleTTL: parseDuration(v.GetString("RATE_LIMIT_IDLE_TTL"), 10*time.Minute),
	}

	cfg.Report = ReportConfig{
		TablePrefix:         v.GetString("REPORT_TABLE_PREFIX"),
		PageSize:            v.GetInt("REPORT_PAGE_SIZE"),
		MaxPageSize:         v.GetInt("REPORT_MAX_PAGE_SIZE"),
		FailOnMissingFields: v.GetBool("REPORT_FAIL_ON_MISSING_FIELDS"),
		CityAliases:         v.GetString("REPORT_ALIASES_CITY"),
		VenueAliases:        v.GetString("REPORT_ALIASES_VENUE"),
		RoomAliases:         v.GetString("REPORT_ALIASES_ROOM"),
		Columns:             splitAndTrim(v.GetString("REPORT_COLUMNS")),
		NotSpecified:        v.GetString("REPORT_NOT_SPECIFIED"),
		Timezone:            v.GetString("REPORT_TIMEZONE"),
		TrainerRoleID:       v.GetInt64("REPORT_TRAINER_ROLE_ID"),
		ViewCapability:      v.GetString("REPORT_CAPABILITY"),
		ManageCapability:    v.GetString("REPORT_MANAGE_CAPABILITY"),
	}

	cfg.FieldCache = FieldCacheConfig{
		TTL:              parseDuration(v.GetString("FIELD_CACHE_TTL"), 10*time.Minute),
		Channel:          v.GetString("FIELD_CACHE_CHANNEL"),
		BroadcastEnabled: v.GetBool("ENABLE_FIELD_CACHE_BROADCAST"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.Report.Location(); err != nil {
		return fmt.Errorf("invalid configuration: REPORT_TIMEZONE: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "moodle")
	v.SetDefault("DB_PASSWORD", "moodle")
	v.SetDefault("DB_NAME", "moodle")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_QUERY_TIMEOUT", "30s")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_RATE_LIMIT", true)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_IDLE_TTL", "10m")

	v.SetDefault("REPORT_TABLE_PREFIX", "mdl_")
	v.SetDefault("REPORT_PAGE_SIZE", 50)
	v.SetDefault("REPORT_MAX_PAGE_SIZE", 500)
	v.SetDefault("REPORT_FAIL_ON_MISSING_FIELDS", false)
	v.SetDefault("REPORT_ALIASES_CITY", "")
	v.SetDefault("REPORT_ALIASES_VENUE", "")
	v.SetDefault("REPORT_ALIASES_ROOM", "")
	v.SetDefault("REPORT_COLUMNS", "coursefullname,sessionid,timestart,timefinish,totalparticipants")
	v.SetDefault("REPORT_NOT_SPECIFIED", "Not specified")
	v.SetDefault("REPORT_TIMEZONE", "UTC")
	v.SetDefault("REPORT_TRAINER_ROLE_ID", 0)
	v.SetDefault("REPORT_CAPABILITY", "local/f2freport:viewreport")
	v.SetDefault("REPORT_MANAGE_CAPABILITY", "local/f2freport:manage")

	v.SetDefault("FIELD_CACHE_TTL", "10m")
	v.SetDefault("FIELD_CACHE_CHANNEL", "f2freport:fields:invalidate")
	v.SetDefault("ENABLE_FIELD_CACHE_BROADCAST", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
