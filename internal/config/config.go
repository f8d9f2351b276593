package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	DBConn        string
	DBTimeout     time.Duration
	LogLevel      string
	Languages     []string
	DisasterTypes []string
	ReportTypes   []string
	CacheSize     int
	CacheDuration time.Duration

	// Object store settings for card image uploads.
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	ImageBucket        string
	ImagesHost         string
	SignedURLExpiry    time.Duration
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	dbTimeout, err := getDuration("DB_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cacheDuration, err := getDuration("CACHE_DURATION_CARDS", time.Minute)
	if err != nil {
		return nil, err
	}
	signedURLExpiry, err := getDuration("SIGNED_URL_EXPIRY", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cacheSize, err := getInt("CACHE_SIZE", 512)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8001"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5432 user=postgres password=postgres dbname=disaster_reports sslmode=disable"),
		DBTimeout:     dbTimeout,
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		Languages:     getList("LANGUAGES", "en,id"),
		DisasterTypes: getList("DISASTER_TYPES", "flood,prep"),
		ReportTypes:   getList("REPORT_TYPES", "drain,desilting,canalrepair,treeclearing,flood"),
		CacheSize:     cacheSize,
		CacheDuration: cacheDuration,

		AWSRegion:          getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:     getEnv("AWS_S3_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_S3_SECRET_ACCESS_KEY", ""),
		ImageBucket:        getEnv("IMAGE_BUCKET", "disaster-card-images"),
		ImagesHost:         getEnv("IMAGES_HOST", "images.disaster-reports.org"),
		SignedURLExpiry:    signedURLExpiry,
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.ImageBucket == "" {
		return nil, fmt.Errorf("IMAGE_BUCKET is required")
	}
	if len(cfg.Languages) == 0 {
		return nil, fmt.Errorf("LANGUAGES is required")
	}
	if len(cfg.DisasterTypes) == 0 {
		return nil, fmt.Errorf("DISASTER_TYPES is required")
	}
	if len(cfg.ReportTypes) == 0 {
		return nil, fmt.Errorf("REPORT_TYPES is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getList(key, defaultVal string) []string {
	raw := getEnv(key, defaultVal)
	parts := strings.Split(raw, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func getInt(key string, defaultVal int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}
