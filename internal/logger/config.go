package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// EnvConfig holds logger configuration loaded from environment variables.
type EnvConfig struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	Output      io.Writer // overrides stdout and file output when set
	ServiceName string

	Environment string // local, dev, prod; only non-local environments write a log file

	LogFile     string
	LogFileOnly bool

	// lumberjack rotation
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// LoadFromEnv loads configuration from environment variables.
// The default log file is LOG_DIR/<service>.log.
// Parameters:
//   - serviceName: default service name when SERVICE_NAME is unset.
// Returns:
//   - *EnvConfig: configuration with defaults applied.
func LoadFromEnv(serviceName string) *EnvConfig {
	if serviceName == "" {
		serviceName = "picgallery"
	}
	serviceName = env("SERVICE_NAME", serviceName, identity)
	logDir := env("LOG_DIR", "./logs", identity)

	return &EnvConfig{
		Level:       env("LOG_LEVEL", "info", identity),
		Format:      env("LOG_FORMAT", "json", identity),
		ServiceName: serviceName,
		Environment: env("APP_ENV", "local", identity),

		LogFile:     env("LOG_FILE", filepath.Join(logDir, serviceName+".log"), identity),
		LogFileOnly: env("LOG_FILE_ONLY", false, strconv.ParseBool),

		MaxSize:    env("LOG_MAX_SIZE", 100, strconv.Atoi),
		MaxBackups: env("LOG_MAX_BACKUPS", 7, strconv.Atoi),
		MaxAge:     env("LOG_MAX_AGE", 30, strconv.Atoi),
		Compress:   env("LOG_COMPRESS", true, strconv.ParseBool),
	}
}

// env reads key and parses it, returning def when unset or unparsable.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func identity(s string) (string, error) { return s, nil }
