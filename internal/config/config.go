package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const devSessionSecret = "dev-secret-change-me-in-production"

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"APP_ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DBFile            string        `mapstructure:"DB_FILE"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	SessionSecret     string        `mapstructure:"SESSION_SECRET"`
	SessionMaxAgeDays int           `mapstructure:"SESSION_MAX_AGE_DAYS"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	TrustedProxies    []string      `mapstructure:"TRUSTED_PROXIES"`
	DoctorName        string        `mapstructure:"DOCTOR_NAME"`
	DoctorEmail       string        `mapstructure:"DOCTOR_EMAIL"`
	DoctorPassword    string        `mapstructure:"DOCTOR_PASSWORD"`
	SMTPHost          string        `mapstructure:"SMTP_HOST"`
	SMTPPort          int           `mapstructure:"SMTP_PORT"`
	SMTPUser          string        `mapstructure:"SMTP_USER"`
	SMTPPass          string        `mapstructure:"SMTP_PASS"`
	SMTPFrom          string        `mapstructure:"SMTP_FROM"`
	NotifyEmail       string        `mapstructure:"NOTIFY_EMAIL"`
	VisitDedupWindow  time.Duration `mapstructure:"VISIT_DEDUP_WINDOW"`
	LoginAttemptsPM   int           `mapstructure:"LOGIN_ATTEMPTS_PER_MINUTE"`
}

var keys = []string{
	"PORT", "APP_ENV", "LOG_LEVEL", "DB_FILE", "DATABASE_URL",
	"SESSION_SECRET", "SESSION_MAX_AGE_DAYS", "CORS_ORIGINS", "TRUSTED_PROXIES",
	"DOCTOR_NAME", "DOCTOR_EMAIL", "DOCTOR_PASSWORD",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM", "NOTIFY_EMAIL",
	"VISIT_DEDUP_WINDOW", "LOGIN_ATTEMPTS_PER_MINUTE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "4000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_FILE", "nutriapp.db")
	v.SetDefault("SESSION_MAX_AGE_DAYS", 7)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("DOCTOR_NAME", "Dra. Nutricionista")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("VISIT_DEDUP_WINDOW", "30m")
	v.SetDefault("LOGIN_ATTEMPTS_PER_MINUTE", 10)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env is fine; the environment alone is enough.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.TrustedProxies = splitList(v.GetString("TRUSTED_PROXIES"))

	if cfg.SessionSecret == "" && !cfg.IsProduction() {
		cfg.SessionSecret = devSessionSecret
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction switches the session cookie to SameSite=None; Secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeDays) * 24 * time.Hour
}

func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != "" && c.NotifyEmail != ""
}

func (c *Config) Validate() error {
	if c.IsProduction() && (c.SessionSecret == "" || c.SessionSecret == devSessionSecret) {
		return fmt.Errorf("SESSION_SECRET is required in production")
	}
	if c.SessionMaxAgeDays <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE_DAYS must be positive, got %d", c.SessionMaxAgeDays)
	}
	if c.VisitDedupWindow < 0 {
		return fmt.Errorf("VISIT_DEDUP_WINDOW must not be negative")
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES: invalid range %q", cidr)
		}
	}
	if c.LoginAttemptsPM <= 0 {
		return fmt.Errorf("LOGIN_ATTEMPTS_PER_MINUTE must be positive, got %d", c.LoginAttemptsPM)
	}
	return nil
}
