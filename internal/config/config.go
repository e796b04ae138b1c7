package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string
	JWTSecret      string

	DatabaseURL string
	RedisURL    string

	// Outbound channel providers
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	MobilePushURL  string
	MobilePushKey  string
	BrowserPushURL string
	SMSProviderURL string
	SMSProviderKey string
	SMSSender      string

	DispatchTimeout time.Duration

	// Reminder scheduler
	DueSoonInterval     time.Duration
	OverdueInterval     time.Duration
	ScheduledInterval   time.Duration
	CleanupInterval     time.Duration
	BeforeDueOffsets    []int // minutes before due date
	AfterDueOffsets     []int // minutes after due date
	ToleranceMinutes    int
	MaxOverdueReminders int
	SchedulerQuietStart string // "HH:MM", empty disables
	SchedulerQuietEnd   string
	SchedulerTimezone   string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		JWTSecret:      getEnv("JWT_SECRET", ""),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASS"),
		EmailFrom:    getEnv("EMAIL_FROM", "no-reply@lifehub.app"),

		MobilePushURL:  os.Getenv("MOBILE_PUSH_URL"),
		MobilePushKey:  os.Getenv("MOBILE_PUSH_KEY"),
		BrowserPushURL: os.Getenv("BROWSER_PUSH_URL"),
		SMSProviderURL: os.Getenv("SMS_PROVIDER_URL"),
		SMSProviderKey: os.Getenv("SMS_PROVIDER_KEY"),
		SMSSender:      getEnv("SMS_SENDER", "LifeHub"),

		SchedulerQuietStart: os.Getenv("SCHEDULER_QUIET_START"),
		SchedulerQuietEnd:   os.Getenv("SCHEDULER_QUIET_END"),
		SchedulerTimezone:   getEnv("SCHEDULER_TZ", "UTC"),
	}

	var err error
	if cfg.DispatchTimeout, err = parseDuration(getEnv("DISPATCH_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_TIMEOUT: %w", err)
	}
	if cfg.DueSoonInterval, err = parseDuration(getEnv("REMINDER_DUE_SOON_INTERVAL", "5m")); err != nil {
		return nil, fmt.Errorf("invalid REMINDER_DUE_SOON_INTERVAL: %w", err)
	}
	if cfg.OverdueInterval, err = parseDuration(getEnv("REMINDER_OVERDUE_INTERVAL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid REMINDER_OVERDUE_INTERVAL: %w", err)
	}
	if cfg.ScheduledInterval, err = parseDuration(getEnv("SCHEDULED_RELEASE_INTERVAL", "1m")); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULED_RELEASE_INTERVAL: %w", err)
	}
	if cfg.CleanupInterval, err = parseDuration(getEnv("REMINDER_CLEANUP_INTERVAL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid REMINDER_CLEANUP_INTERVAL: %w", err)
	}

	if cfg.BeforeDueOffsets, err = parseMinuteList(getEnv("REMINDER_BEFORE_OFFSETS", "1440,240,60,15")); err != nil {
		return nil, fmt.Errorf("invalid REMINDER_BEFORE_OFFSETS: %w", err)
	}
	if cfg.AfterDueOffsets, err = parseMinuteList(getEnv("REMINDER_AFTER_OFFSETS", "60,1440,4320,10080")); err != nil {
		return nil, fmt.Errorf("invalid REMINDER_AFTER_OFFSETS: %w", err)
	}

	if cfg.ToleranceMinutes, err = strconv.Atoi(getEnv("REMINDER_TOLERANCE_MINUTES", "2")); err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TOLERANCE_MINUTES: %w", err)
	}
	if cfg.MaxOverdueReminders, err = strconv.Atoi(getEnv("REMINDER_MAX_OVERDUE", "3")); err != nil {
		return nil, fmt.Errorf("invalid REMINDER_MAX_OVERDUE: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func parseMinuteList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	offsets := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("offset must be positive, got %d", n)
		}
		offsets = append(offsets, n)
	}
	return offsets, nil
}
