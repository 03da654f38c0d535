// Package config loads and validates runtime configuration at startup.
// Fail-fast: if a required variable is missing or malformed, the process
// exits before any processing starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the collector service. The
// heuristic fields are empirically tuned cutoffs; they are configuration,
// never derived values.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string // optional; empty disables the fingerprint cache
	SourcesFile string // optional; YAML override of the built-in crawl plan
	CollectHour int    // hour of day the scheduled collection fires
	LogLevel    string
	UserAgent   string

	RequestTimeout time.Duration // page and document downloads
	ProbeTimeout   time.Duration // content-type probes
	Pacing         time.Duration // delay between candidate downloads

	MaxPerSource int // candidates processed per source per run
	MaxPages     int // PDF pages extracted per document
	MinWords     int // classifier word-count gate
	MinScore     int // classifier acceptance score
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	collectHour, err := envInt("COLLECT_HOUR", 6)
	if err != nil {
		return nil, err
	}
	if collectHour < 0 || collectHour > 23 {
		return nil, fmt.Errorf("COLLECT_HOUR must be between 0 and 23, got %d", collectHour)
	}

	requestTimeout, err := envSeconds("REQUEST_TIMEOUT_SEC", 12)
	if err != nil {
		return nil, err
	}
	probeTimeout, err := envSeconds("PROBE_TIMEOUT_SEC", 8)
	if err != nil {
		return nil, err
	}

	pacingMs, err := envInt("PACING_MS", 700)
	if err != nil {
		return nil, err
	}
	if pacingMs < 0 {
		return nil, fmt.Errorf("PACING_MS must be non-negative, got %d", pacingMs)
	}

	maxPerSource, err := envPositive("MAX_PER_SOURCE", 40)
	if err != nil {
		return nil, err
	}
	maxPages, err := envPositive("PDF_MAX_PAGES", 5)
	if err != nil {
		return nil, err
	}
	minWords, err := envPositive("MIN_WORDS", 500)
	if err != nil {
		return nil, err
	}
	minScore, err := envPositive("MIN_SCORE", 3)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:           port,
		DatabaseURL:    dbURL,
		RedisURL:       os.Getenv("REDIS_URL"),
		SourcesFile:    os.Getenv("SOURCES_FILE"),
		CollectHour:    collectHour,
		LogLevel:       logLevel,
		UserAgent:      os.Getenv("USER_AGENT"),
		RequestTimeout: requestTimeout,
		ProbeTimeout:   probeTimeout,
		Pacing:         time.Duration(pacingMs) * time.Millisecond,
		MaxPerSource:   maxPerSource,
		MaxPages:       maxPages,
		MinWords:       minWords,
		MinScore:       minScore,
	}, nil
}

func envInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, s)
	}
	return v, nil
}

func envPositive(name string, def int) (int, error) {
	v, err := envInt(name, def)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %d", name, v)
	}
	return v, nil
}

func envSeconds(name string, def int) (time.Duration, error) {
	v, err := envPositive(name, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}
