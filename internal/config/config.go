package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Failure policies for a bulk generation run.
const (
	FailFast   = "fail-fast"
	BestEffort = "best-effort"
)

// Config holds all generator settings, populated from environment variables.
type Config struct {
	DestDir string

	// Remote index sources, highest priority first.
	IndexSources []string
	IndexTimeout time.Duration
	S3Bucket     string
	S3Region     string
	S3Endpoint   string

	ReferenceTimeout   time.Duration
	ReferenceCacheSize int

	// ReferenceDate is the nominal run date used to locate remote files;
	// CycleRunHours are added to it to pick representative runs.
	ReferenceDate time.Time
	CycleRunHours []int

	Workers       int
	FailurePolicy string

	MirrorBucket string

	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

var knownSources = map[string]bool{"azure": true, "aws": true, "google": true}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	indexTimeout, err := parseDuration("INDEX_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	referenceTimeout, err := parseDuration("REFERENCE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("REFERENCE_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}

	refDate, err := time.Parse("2006-01-02", envOrDefault("REFERENCE_DATE", "2024-05-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFERENCE_DATE: %w", err)
	}

	runHours, err := parseRunHours(envOrDefault("CYCLE_RUN_HOURS", "3,6"))
	if err != nil {
		return nil, err
	}

	sources := parseList(envOrDefault("INDEX_SOURCES", "azure,aws,google"))
	if len(sources) == 0 {
		return nil, errors.New("INDEX_SOURCES is required")
	}
	for _, s := range sources {
		if !knownSources[s] {
			return nil, fmt.Errorf("invalid INDEX_SOURCES entry %q", s)
		}
	}

	policy := envOrDefault("FAILURE_POLICY", FailFast)
	if policy != FailFast && policy != BestEffort {
		return nil, fmt.Errorf("invalid FAILURE_POLICY %q", policy)
	}

	cfg := &Config{
		DestDir:            envOrDefault("DEST_DIR", "data"),
		IndexSources:       sources,
		IndexTimeout:       indexTimeout,
		S3Bucket:           envOrDefault("HRRR_S3_BUCKET", "noaa-hrrr-bdp-pds"),
		S3Region:           envOrDefault("AWS_REGION", "us-east-1"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		ReferenceTimeout:   referenceTimeout,
		ReferenceCacheSize: cacheSize,
		ReferenceDate:      refDate,
		CycleRunHours:      runHours,
		Workers:            workers,
		FailurePolicy:      policy,
		MirrorBucket:       os.Getenv("MIRROR_S3_BUCKET"),
		KafkaBrokers:       parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         envOrDefault("KAFKA_TOPIC", "hrrr-inventory-written"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
	}

	if cfg.DestDir == "" {
		return nil, errors.New("DEST_DIR is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

// KafkaEnabled reports whether inventory notifications should be published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseRunHours(s string) ([]int, error) {
	parts := parseList(s)
	if len(parts) == 0 {
		return nil, errors.New("CYCLE_RUN_HOURS is required")
	}
	hours := make([]int, 0, len(parts))
	for _, p := range parts {
		h, err := strconv.Atoi(p)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("invalid CYCLE_RUN_HOURS entry %q", p)
		}
		hours = append(hours, h)
	}
	return hours, nil
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
