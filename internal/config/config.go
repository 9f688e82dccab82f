package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Env                   string
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	DeductionPerGram      decimal.Decimal
	FallbackRate          decimal.Decimal
	BusinessDayCutoffHour int
	ShopTimezone          string
	LedgerLockTTLSeconds  int
	RateCacheTTLSeconds   int
	LogLevel              string
	LogFormat             string
}

var defaults = map[string]any{
	"app_env":                  "development",
	"port":                     "8080",
	"allowed_origin":           "http://127.0.0.1:3000",
	"redis_db":                 0,
	"access_token_ttl_minutes": 480,
	"deduction_per_gram":       "400",
	"fallback_rate":            "5000",
	"business_day_cutoff_hour": 4,
	"shop_timezone":            "Asia/Kolkata",
	"ledger_lock_ttl_seconds":  5,
	"rate_cache_ttl_seconds":   60,
	"log_level":                "info",
	"log_format":               "json",
}

// Load reads config.toml from the working directory when present; every key
// can be overridden by its upper-case environment variable.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		Env:                   v.GetString("app_env"),
		Port:                  v.GetString("port"),
		AllowedOrigin:         v.GetString("allowed_origin"),
		DatabaseURL:           strings.TrimSpace(v.GetString("database_url")),
		RedisAddr:             strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword:         v.GetString("redis_password"),
		RedisDB:               v.GetInt("redis_db"),
		AuthSecret:            strings.TrimSpace(v.GetString("auth_secret")),
		AccessTokenTTLMinutes: positiveInt(v.GetInt("access_token_ttl_minutes"), 480),
		DeductionPerGram:      positiveDecimal(v.GetString("deduction_per_gram"), decimal.NewFromInt(400)),
		FallbackRate:          positiveDecimal(v.GetString("fallback_rate"), decimal.NewFromInt(5000)),
		BusinessDayCutoffHour: v.GetInt("business_day_cutoff_hour"),
		ShopTimezone:          v.GetString("shop_timezone"),
		LedgerLockTTLSeconds:  positiveInt(v.GetInt("ledger_lock_ttl_seconds"), 5),
		RateCacheTTLSeconds:   positiveInt(v.GetInt("rate_cache_ttl_seconds"), 60),
		LogLevel:              v.GetString("log_level"),
		LogFormat:             v.GetString("log_format"),
	}
	if cfg.BusinessDayCutoffHour < 0 || cfg.BusinessDayCutoffHour > 23 {
		cfg.BusinessDayCutoffHour = 4
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves ShopTimezone, falling back to UTC when it is unknown.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ShopTimezone)
	if err != nil {
		return time.UTC, fmt.Errorf("load shop timezone %q: %w", c.ShopTimezone, err)
	}
	return loc, nil
}

func (c Config) LedgerLockTTL() time.Duration {
	return time.Duration(c.LedgerLockTTLSeconds) * time.Second
}

func (c Config) RateCacheTTL() time.Duration {
	return time.Duration(c.RateCacheTTLSeconds) * time.Second
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func positiveInt(val int, fallback int) int {
	if val < 1 {
		return fallback
	}
	return val
}

func positiveDecimal(raw string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() {
		return fallback
	}
	return d
}
