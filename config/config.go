package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	apperr "jmorse87/carscout/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Search defaults (overridable per run from the CLI)
	City             string
	SortResults      string
	SearchDistance   string
	Postal           string
	MinPrice         int
	MaxPrice         int
	Make             string
	Model            string
	MinAutoYear      string
	MinAutoMiles     string
	MaxAutoMiles     string
	Condition1       string
	Condition2       string
	AutoCylinders    string
	AutoTitleStatus  string
	AutoTransmission string
	MaxResults       int
	CategoryPath     string

	// Filter defaults
	MaxMileage      float64
	UnallowedTitles []string
	WeekRange       int

	// Fetching
	Concurrency  int
	PageCacheTTL time.Duration

	// Memcache configuration (empty addr disables the page cache)
	MemcacheAddr string

	// Redis configuration (empty addr disables publishing)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	minPrice, _ := strconv.Atoi(getEnv("MIN_PRICE", "4000"))
	maxPrice, _ := strconv.Atoi(getEnv("MAX_PRICE", "10000"))
	maxResults, _ := strconv.Atoi(getEnv("MAX_RESULTS", "1000"))
	maxMileage, _ := strconv.ParseFloat(getEnv("MAX_MILEAGE", "120000"), 64)
	weekRange, _ := strconv.Atoi(getEnv("WEEK_RANGE", "2"))
	concurrency, _ := strconv.Atoi(getEnv("FETCH_CONCURRENCY", "1"))
	cacheTTL, _ := strconv.Atoi(getEnv("PAGE_CACHE_TTL_SECONDS", "300"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))

	return &Config{
		City:             getEnv("SEARCH_CITY", "sfbay"),
		SortResults:      getEnv("SORT_RESULTS", "pricedsc"),
		SearchDistance:   getEnv("SEARCH_DISTANCE", "10"),
		Postal:           getEnv("SEARCH_POSTAL", "94610"),
		MinPrice:         minPrice,
		MaxPrice:         maxPrice,
		Make:             getEnv("AUTO_MAKE", "toyota"),
		Model:            getEnv("AUTO_MODEL", "corolla"),
		MinAutoYear:      getEnv("MIN_AUTO_YEAR", "2008"),
		MinAutoMiles:     getEnv("MIN_AUTO_MILES", "100000"),
		MaxAutoMiles:     getEnv("MAX_AUTO_MILES", "120000"),
		Condition1:       getEnv("AUTO_CONDITION_1", "30"),
		Condition2:       getEnv("AUTO_CONDITION_2", "40"),
		AutoCylinders:    getEnv("AUTO_CYLINDERS", "2"),
		AutoTitleStatus:  getEnv("AUTO_TITLE_STATUS", "1"),
		AutoTransmission: getEnv("AUTO_TRANSMISSION", "2"),
		MaxResults:       maxResults,
		CategoryPath:     getEnv("CATEGORY_PATH", "eby/cto"),

		MaxMileage:      maxMileage,
		UnallowedTitles: splitList(getEnv("UNALLOWED_TITLES", "salvage,rebuilt")),
		WeekRange:       weekRange,

		Concurrency:  concurrency,
		PageCacheTTL: time.Duration(cacheTTL) * time.Second,

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "listings"),
		RedisStreamMaxLength: redisStreamMaxLength,

		Environment: getEnv("CARSCOUT_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration invariants before any network activity
func (c *Config) Validate() error {
	if strings.TrimSpace(c.City) == "" {
		return apperr.NewConfiguration("city must not be empty", nil)
	}
	if c.MaxResults < 0 {
		return apperr.NewConfiguration("max results must be >= 0", nil)
	}
	if c.MinPrice < 0 || c.MaxPrice < 0 {
		return apperr.NewConfiguration("price bounds must be non-negative", nil)
	}
	if c.MinPrice > c.MaxPrice {
		return apperr.NewConfiguration("min price must not exceed max price", nil)
	}
	if c.MaxMileage <= 0 {
		return apperr.NewConfiguration("max mileage must be positive", nil)
	}
	if c.WeekRange <= 0 {
		return apperr.NewConfiguration("week range must be positive", nil)
	}
	if c.Concurrency < 1 {
		return apperr.NewConfiguration("fetch concurrency must be >= 1", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// splitList splits a comma-separated environment value into trimmed items
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
