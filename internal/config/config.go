// Package config loads the portal configuration from the environment, with
// optional .env files for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Addr        string `env:"PORTAL_ADDR" envDefault:":8070"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"PORTAL_LOG_LEVEL" envDefault:"info"`

	// Gateway-issued actor token verification.
	TokenSecret string `env:"PORTAL_TOKEN_SECRET"`

	// Directory/profile service. Empty disables manager resolution (the
	// matrix fallback then always applies).
	DirectoryURL     string        `env:"PORTAL_DIRECTORY_URL"`
	DirectoryTimeout time.Duration `env:"PORTAL_DIRECTORY_TIMEOUT" envDefault:"5s"`
	DirectoryRetries int           `env:"PORTAL_DIRECTORY_RETRIES" envDefault:"2"`

	// Kafka side channels; empty broker list disables them.
	KafkaBrokers      []string `env:"PORTAL_KAFKA_BROKERS" envSeparator:","`
	AuditTopic        string   `env:"PORTAL_AUDIT_TOPIC" envDefault:"approval.audit"`
	NotificationTopic string   `env:"PORTAL_NOTIFICATION_TOPIC" envDefault:"approval.notifications"`

	// SMTP email delivery; empty addr disables it.
	SMTPAddr     string `env:"PORTAL_SMTP_ADDR"`
	SMTPFrom     string `env:"PORTAL_SMTP_FROM"`
	SMTPUsername string `env:"PORTAL_SMTP_USERNAME"`
	SMTPPassword string `env:"PORTAL_SMTP_PASSWORD"`

	// S3 audit archive; empty bucket disables it.
	ArchiveBucket string `env:"PORTAL_ARCHIVE_BUCKET"`
	ArchivePrefix string `env:"PORTAL_ARCHIVE_PREFIX" envDefault:"approval-portal"`

	AdminLimit int `env:"PORTAL_ADMIN_LIMIT" envDefault:"500"`
}

// Load reads .env/.env.local when present, then the process environment.
func Load() (Config, error) {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", file, err)
			}
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL required")
	}
	if cfg.TokenSecret == "" {
		return Config{}, fmt.Errorf("PORTAL_TOKEN_SECRET required")
	}
	return cfg, nil
}

// Logger builds the process logger from the configured level.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log
}
