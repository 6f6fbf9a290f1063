// Package config loads service settings from ITROOM_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting of the api and migrate binaries.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	// PGDSN selects PostgreSQL; empty keeps all state in memory.
	PGDSN string

	AuthSecret  string
	TokenIssuer string
	TokenTTL    time.Duration

	PermissionCacheTTL  time.Duration
	PermissionCacheSize int

	LogLevel  slog.Level
	LogFormat string

	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64

	// TrustedProxies are peers whose X-Forwarded-For header is believed.
	TrustedProxies []netip.Prefix

	AuditRedactKeys []string

	BootstrapAdminUsername string
	BootstrapAdminPassword string

	ShutdownTimeout time.Duration
}

// Load reads the environment. Errors name the offending variable.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.HTTPAddr = getEnvDefault("ITROOM_HTTP_ADDR", ":8080")
	cfg.GRPCAddr = getEnvDefault("ITROOM_GRPC_ADDR", ":9090")
	cfg.PGDSN = strings.TrimSpace(os.Getenv("ITROOM_PG_DSN"))

	cfg.AuthSecret, err = getEnvRequired("ITROOM_AUTH_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.AuthSecret) < 16 {
		return nil, fmt.Errorf("ITROOM_AUTH_SECRET: must be at least 16 characters")
	}
	cfg.TokenIssuer = getEnvDefault("ITROOM_TOKEN_ISSUER", "itroom")
	cfg.TokenTTL, err = getEnvDuration("ITROOM_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("ITROOM_TOKEN_TTL: %w", err)
	}

	cfg.PermissionCacheTTL, err = getEnvDuration("ITROOM_PERMISSION_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ITROOM_PERMISSION_CACHE_TTL: %w", err)
	}
	if cfg.PermissionCacheTTL <= 0 {
		return nil, fmt.Errorf("ITROOM_PERMISSION_CACHE_TTL: must be positive")
	}
	cfg.PermissionCacheSize, err = getEnvInt("ITROOM_PERMISSION_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("ITROOM_PERMISSION_CACHE_SIZE: %w", err)
	}
	if cfg.PermissionCacheSize < 1 {
		return nil, fmt.Errorf("ITROOM_PERMISSION_CACHE_SIZE: value %d must be at least 1", cfg.PermissionCacheSize)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("ITROOM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("ITROOM_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = strings.ToLower(getEnvDefault("ITROOM_LOG_FORMAT", "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("ITROOM_LOG_FORMAT: invalid value %q, allowed: json, text", cfg.LogFormat)
	}

	cfg.RateLimitRPS, err = getEnvFloat("ITROOM_RATE_LIMIT_RPS", 50)
	if err != nil {
		return nil, fmt.Errorf("ITROOM_RATE_LIMIT_RPS: %w", err)
	}
	cfg.RateLimitBurst, err = getEnvInt("ITROOM_RATE_LIMIT_BURST", 100)
	if err != nil {
		return nil, fmt.Errorf("ITROOM_RATE_LIMIT_BURST: %w", err)
	}
	if cfg.RateLimitRPS < 0 || cfg.RateLimitBurst < 0 {
		return nil, fmt.Errorf("ITROOM_RATE_LIMIT_*: values must not be negative")
	}
	maxBody, err := getEnvInt("ITROOM_MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("ITROOM_MAX_BODY_BYTES: %w", err)
	}
	if maxBody < 1 {
		return nil, fmt.Errorf("ITROOM_MAX_BODY_BYTES: value %d must be positive", maxBody)
	}
	cfg.MaxBodyBytes = int64(maxBody)

	cfg.TrustedProxies, err = parsePrefixes(os.Getenv("ITROOM_TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("ITROOM_TRUSTED_PROXIES: %w", err)
	}

	cfg.AuditRedactKeys = parseCSV(os.Getenv("ITROOM_AUDIT_REDACT_KEYS"))

	cfg.BootstrapAdminUsername = strings.TrimSpace(os.Getenv("ITROOM_BOOTSTRAP_ADMIN_USERNAME"))
	cfg.BootstrapAdminPassword = os.Getenv("ITROOM_BOOTSTRAP_ADMIN_PASSWORD")
	if (cfg.BootstrapAdminUsername == "") != (cfg.BootstrapAdminPassword == "") {
		return nil, fmt.Errorf("ITROOM_BOOTSTRAP_ADMIN_USERNAME and ITROOM_BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}

	cfg.ShutdownTimeout, err = getEnvDuration("ITROOM_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ITROOM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// UsePostgres reports whether a DSN was configured.
func (c *Config) UsePostgres() bool { return c.PGDSN != "" }

func getEnvRequired(key string) (string, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return "", fmt.Errorf("%s: required environment variable is not set", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %q", val)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q (use Go format: 30s, 1h, 15m)", val)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid level %q, allowed: debug, info, warn, error", level)
	}
}

func parseCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePrefixes reads a comma-separated list of CIDRs or bare addresses.
func parsePrefixes(s string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range parseCSV(s) {
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q", part)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q", part)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
