package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type config struct {
	APIURL           string
	HTTPTimeout      time.Duration
	PollInterval     time.Duration
	MaxAttempts      int
	TransportRetries int
	NATSURL          string
	LifecycleSubject string
	MetricsAddr      string
	LogFormat        string
	LogLevel         string
}

// loadEnvFile loads envFile when it exists. A missing file is not an error,
// the process environment alone is enough.
func loadEnvFile(envFile string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

func loadConfig() (config, error) {
	cfg := config{
		APIURL:           getenv("BRIEF_API_URL", "http://127.0.0.1:8000"),
		NATSURL:          getenv("NATS_URL", ""),
		LifecycleSubject: getenv("SUBJECT_BRIEF_LIFECYCLE", "briefs.lifecycle"),
		MetricsAddr:      getenv("METRICS_ADDR", ""),
		LogFormat:        getenv("LOG_FORMAT", "text"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
	}

	timeout, err := parsePositiveInt(getenv("BRIEF_HTTP_TIMEOUT", "10"), "BRIEF_HTTP_TIMEOUT")
	if err != nil {
		return config{}, err
	}
	cfg.HTTPTimeout = time.Duration(timeout) * time.Second

	interval, err := parsePositiveInt(getenv("BRIEF_POLL_INTERVAL_MS", "2000"), "BRIEF_POLL_INTERVAL_MS")
	if err != nil {
		return config{}, err
	}
	cfg.PollInterval = time.Duration(interval) * time.Millisecond

	cfg.MaxAttempts, err = parsePositiveInt(getenv("BRIEF_MAX_ATTEMPTS", "60"), "BRIEF_MAX_ATTEMPTS")
	if err != nil {
		return config{}, err
	}

	cfg.TransportRetries, err = parseNonNegativeInt(getenv("BRIEF_TRANSPORT_RETRIES", "0"), "BRIEF_TRANSPORT_RETRIES")
	if err != nil {
		return config{}, err
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return config{}, fmt.Errorf("invalid LOG_FORMAT %q, expected 'text' or 'json'", cfg.LogFormat)
	}

	return cfg, nil
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func parseNonNegativeInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative (got %d)", name, v)
	}
	return v, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
