package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve on minimal images

	"github.com/spf13/viper"
)

const (
	DefaultMaxAgeDays      = 35
	DefaultLineAPIBaseURL  = "https://api.line.me"
	DefaultTimezone        = "Asia/Bangkok"
	DefaultProfileCacheTTL = time.Hour
)

type Config struct {
	HTTPAddr string
	Env      string // "dev" | "prod"

	// DB
	DBPath string // e.g. "./data/database.db"

	// LINE channel credentials. Both must be set for the webhook to serve.
	LineChannelSecret      string
	LineChannelAccessToken string
	LineAPIBaseURL         string

	MaxAgeDays int
	Location   *time.Location

	// Initial operator account, created only when the admins table is empty.
	AdminUsername string
	AdminPassword string

	// Profile-name cache. Empty RedisAddr selects the in-process cache.
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProfileCacheTTL time.Duration

	AdminRateLimitPerMinute int
	LogLevel                string

	v *viper.Viper
}

// FromEnv reads configuration from the environment only.
func FromEnv() Config {
	cfg, _ := load(newViper(), "")
	return cfg
}

// Load reads an optional config file and overlays the environment on top.
// An empty path searches ./config.yaml and ./config/config.yaml; a missing
// file is not an error in that case.
func Load(path string) (Config, error) {
	return load(newViper(), path)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8000")
	v.SetDefault("app_env", "dev")
	v.SetDefault("database_path", "./data/database.db")
	v.SetDefault("line_api_base_url", DefaultLineAPIBaseURL)
	v.SetDefault("max_age_days", DefaultMaxAgeDays)
	v.SetDefault("app_timezone", DefaultTimezone)
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "admin123")
	v.SetDefault("profile_cache_ttl", DefaultProfileCacheTTL.String())
	v.SetDefault("admin_rate_limit_per_minute", 120)
	v.SetDefault("log_level", "info")
	return v
}

func load(v *viper.Viper, path string) (Config, error) {
	var fileErr error
	if path != "" {
		v.SetConfigFile(path)
		fileErr = v.ReadInConfig()
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				fileErr = err
			}
		}
	}

	env := strings.ToLower(getString(v, "app_env", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	tzName := getString(v, "app_timezone", DefaultTimezone)
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.UTC
	}

	ttl, err := time.ParseDuration(getString(v, "profile_cache_ttl", DefaultProfileCacheTTL.String()))
	if err != nil || ttl < 0 {
		ttl = DefaultProfileCacheTTL
	}

	cfg := Config{
		HTTPAddr: getString(v, "http_addr", ":8000"),
		Env:      env,
		DBPath:   getString(v, "database_path", "./data/database.db"),

		LineChannelSecret:      strings.TrimSpace(v.GetString("line_channel_secret")),
		LineChannelAccessToken: strings.TrimSpace(v.GetString("line_channel_access_token")),
		LineAPIBaseURL:         strings.TrimRight(getString(v, "line_api_base_url", DefaultLineAPIBaseURL), "/"),

		MaxAgeDays: getInt(v, "max_age_days", DefaultMaxAgeDays),
		Location:   loc,

		AdminUsername: strings.TrimSpace(v.GetString("admin_username")),
		AdminPassword: strings.TrimSpace(v.GetString("admin_password")),

		RedisAddr:       strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword:   v.GetString("redis_password"),
		RedisDB:         getInt(v, "redis_db", 0),
		ProfileCacheTTL: ttl,

		AdminRateLimitPerMinute: getInt(v, "admin_rate_limit_per_minute", 120),
		LogLevel:                strings.ToLower(getString(v, "log_level", "info")),

		v: v,
	}

	if fileErr != nil {
		return cfg, fmt.Errorf("read config file: %w", fileErr)
	}
	return cfg, nil
}

// LineConfigured reports whether both channel credentials are present.
func (c Config) LineConfigured() bool {
	return c.LineChannelSecret != "" && c.LineChannelAccessToken != ""
}

// CurrentMaxAgeDays re-reads MAX_AGE_DAYS so the freshness policy can be
// changed without a restart. Falls back to the value loaded at startup.
func (c Config) CurrentMaxAgeDays() int {
	if c.v == nil {
		return c.MaxAgeDays
	}
	return getInt(c.v, "max_age_days", c.MaxAgeDays)
}

func getString(v *viper.Viper, key, def string) string {
	s := v.GetString(key)
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func getInt(v *viper.Viper, key string, def int) int {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
