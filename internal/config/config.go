// Package config loads server configuration.
//
// Sources, lowest precedence first:
//
//  1. built-in defaults
//  2. an optional config.yaml (or the file passed in Options.ConfigFile)
//  3. an optional .env file, loaded into the process environment
//  4. real environment variables
//
// Environment variables keep their plain names (PORT, DB_PATH, JWT_SECRET,
// ...), so the deployment story is the same as setting them by hand.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MinSecretLength matches what the token service accepts.
const MinSecretLength = 16

// Config is everything the server binary needs to start.
type Config struct {
	Port     int    `mapstructure:"port"`
	DBPath   string `mapstructure:"db_path"`
	LogLevel string `mapstructure:"log_level"`

	// TrustedProxies lists the reverse proxies (IPs or CIDRs) whose
	// X-Forwarded-For and X-Real-IP headers are believed. Requests from any
	// other peer are keyed on the socket address, whatever headers they send.
	// TRUSTED_PROXIES takes a comma-separated list.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	Auth   Auth   `mapstructure:"auth"`
	Admin  Admin  `mapstructure:"admin"`
	Redis  Redis  `mapstructure:"redis"`
	GitHub GitHub `mapstructure:"github"`
}

// Auth configures session tokens and sign-in throttling.
type Auth struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`

	// Sign-in attempts allowed per client address.
	LoginPerMinute int `mapstructure:"login_per_minute"`
	LoginBurst     int `mapstructure:"login_burst"`
}

// Admin seeds an administrator account at start-up when both fields are set.
type Admin struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// Redis backs the catalog cache. An empty Addr disables it.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// GitHub enables "Sign in with GitHub" when ClientID and ClientSecret are set.
type GitHub struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
}

// Options says where to look for files. The zero value searches the
// working directory for config.yaml and reads no .env file.
type Options struct {
	ConfigFile string // explicit path; a missing file is an error
	EnvFile    string // e.g. ".env"; a missing file is ignored
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"port":                  "PORT",
	"db_path":               "DB_PATH",
	"log_level":             "LOG_LEVEL",
	"trusted_proxies":       "TRUSTED_PROXIES",
	"auth.jwt_secret":       "JWT_SECRET",
	"auth.token_ttl":        "TOKEN_TTL",
	"auth.cookie_secure":    "COOKIE_SECURE",
	"auth.login_per_minute": "LOGIN_RATE_PER_MINUTE",
	"auth.login_burst":      "LOGIN_RATE_BURST",
	"admin.email":           "ADMIN_EMAIL",
	"admin.password":        "ADMIN_PASSWORD",
	"redis.addr":            "REDIS_ADDR",
	"redis.password":        "REDIS_PASSWORD",
	"redis.db":              "REDIS_DB",
	"redis.prefix":          "REDIS_PREFIX",
	"github.client_id":      "GITHUB_CLIENT_ID",
	"github.client_secret":  "GITHUB_CLIENT_SECRET",
	"github.callback_url":   "GITHUB_CALLBACK_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "data/green-gaming.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("trusted_proxies", []string{})

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.login_per_minute", 10)
	v.SetDefault("auth.login_burst", 5)

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "green-gaming:")

	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.callback_url", "")
}

// Load reads and validates the configuration.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		// godotenv never overrides a variable that is already set.
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", env, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: reading config.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	cfg.Admin.Email = strings.TrimSpace(cfg.Admin.Email)
	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("config: DB_PATH must not be empty")
	}
	if len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters (try: openssl rand -hex 32)", MinSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config: token TTL must be positive, got %s", c.Auth.TokenTTL)
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return errors.New("config: ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.ProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// ProxyPrefixes parses TrustedProxies. A bare address becomes a single-host
// prefix, so "10.0.0.7" and "10.0.0.7/32" mean the same thing.
func (c *Config) ProxyPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, raw := range c.TrustedProxies {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("config: trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("config: trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	return lvl, nil
}

// AdminConfigured reports whether an admin account should be seeded.
func (c *Config) AdminConfigured() bool {
	return c.Admin.Email != "" && c.Admin.Password != ""
}
