// Package config loads desk configuration from flags, environment and an
// optional YAML file through viper.
//
// Every key can be set with a CAREERUP_ environment variable where dots
// become underscores, e.g. CAREERUP_AUTH_PASSWORD for auth.password.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/warp/careerup/subsidy"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "CAREERUP"

// ErrInvalidConfig wraps every problem reported by Load.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Eligibility subsidy.EligibilityPolicy
	Monitor     MonitorConfig
	OCR         OCRConfig
	Logging     LoggingConfig
	// Location decides what "today" is for deadline arithmetic.
	Location *time.Location
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	// Path of the SQLite file. ":memory:" keeps everything in process.
	Path string
}

type AuthConfig struct {
	Password   string
	SessionTTL time.Duration
}

type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

type OCRConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
}

// Enabled reports whether an API key was configured.
func (c OCRConfig) Enabled() bool { return c.APIKey != "" }

type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every key with its default so that AutomaticEnv
// can find them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})

	v.SetDefault("database.path", "careerup.db")

	v.SetDefault("auth.password", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)

	policy := subsidy.DefaultPolicy()
	v.SetDefault("eligibility.threshold_percent", policy.ThresholdPercent.String())
	v.SetDefault("eligibility.borderline_percent", policy.BorderlinePercent.String())
	v.SetDefault("eligibility.attendance_ratio", policy.AttendanceRatio.String())
	v.SetDefault("eligibility.months_per_period", policy.MonthsPerPeriod)

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", time.Hour)

	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.model", "claude-sonnet-4-20250514")
	v.SetDefault("ocr.base_url", "https://api.anthropic.com")
	v.SetDefault("ocr.timeout", 60*time.Second)
	v.SetDefault("ocr.max_attempts", 3)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("timezone", "Asia/Tokyo")
}

// BindEnv makes v read CAREERUP_ variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

// ReadFile reads path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from v and validates it. All problems are reported
// together.
func Load(v *viper.Viper) (*Config, error) {
	var problems []string
	dec := func(key string) decimal.Decimal {
		d, err := decimal.NewFromString(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %q is not a number", key, v.GetString(key)))
		}
		return d
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
		},
		Database: DatabaseConfig{Path: v.GetString("database.path")},
		Auth: AuthConfig{
			Password:   v.GetString("auth.password"),
			SessionTTL: v.GetDuration("auth.session_ttl"),
		},
		Eligibility: subsidy.EligibilityPolicy{
			ThresholdPercent:  dec("eligibility.threshold_percent"),
			BorderlinePercent: dec("eligibility.borderline_percent"),
			AttendanceRatio:   dec("eligibility.attendance_ratio"),
			MonthsPerPeriod:   v.GetInt("eligibility.months_per_period"),
		},
		Monitor: MonitorConfig{
			Enabled:  v.GetBool("monitor.enabled"),
			Interval: v.GetDuration("monitor.interval"),
		},
		OCR: OCRConfig{
			APIKey:      v.GetString("ocr.api_key"),
			Model:       v.GetString("ocr.model"),
			BaseURL:     v.GetString("ocr.base_url"),
			Timeout:     v.GetDuration("ocr.timeout"),
			MaxAttempts: v.GetInt("ocr.max_attempts"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString("logging.level")),
			Format: strings.ToLower(v.GetString("logging.format")),
		},
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		problems = append(problems, fmt.Sprintf("timezone: %v", err))
	}
	cfg.Location = loc

	problems = append(problems, cfg.validate()...)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return cfg, nil
}

func (c *Config) validate() []string {
	var problems []string
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if c.Auth.SessionTTL <= 0 {
		problems = append(problems, "auth.session_ttl must be positive")
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		problems = append(problems, "monitor.interval must be positive")
	}
	if c.OCR.MaxAttempts < 1 {
		problems = append(problems, "ocr.max_attempts must be at least 1")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}
	if err := c.Eligibility.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	return problems
}

// =============================================================================
// LOGGING
// =============================================================================

func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging.level %q must be debug, info, warn or error", level)
}

// NewLogger builds the process logger described by c.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
