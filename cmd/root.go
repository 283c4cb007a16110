package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"jmorse87/carscout/config"
	"jmorse87/carscout/internal/scraper"
	"jmorse87/carscout/logger"
	apperr "jmorse87/carscout/pkg/errors"
	"jmorse87/carscout/services/cache"
	"jmorse87/carscout/services/publisher"
)

var (
	flagVerbose bool
	flagPublish bool
)

var rootCmd = &cobra.Command{
	Use:   "carscout",
	Short: "craigslist car finder",
	Long: "carscout searches a city's craigslist vehicle listings, fetches each " +
		"listing's detail page, and filters the results by mileage, title status " +
		"and recency.",
	SilenceUsage: true,
	RunE:         runScrape,
}

func init() {
	flags := rootCmd.Flags()

	flags.StringP("city", "c", "sfbay", "which city to search")
	flags.String("sort", "pricedsc", "how to sort results")
	flags.String("search-distance", "10", "maximum distance from the search zip")
	flags.String("postal", "94610", "search zip code")
	flags.Int("min-price", 4000, "minimum price")
	flags.Int("max-price", 10000, "maximum price")
	flags.StringP("make", "b", "toyota", "car make (brand)")
	flags.StringP("model", "m", "corolla", "car model")
	flags.String("category-path", "eby/cto", "search category path segment")
	flags.IntP("max-results", "l", 1000, "limit the number of listings fetched")

	// accepted for parity with the search form, not transmitted upstream
	flags.String("min-auto-year", "2008", "minimum model year")
	flags.String("min-auto-miles", "100000", "minimum miles travelled before purchase")
	flags.String("max-auto-miles", "120000", "maximum miles travelled before purchase")
	flags.String("condition-1", "30", "first condition code (30 = excellent)")
	flags.String("condition-2", "40", "second condition code (40 = good)")
	flags.String("auto-cylinders", "2", "cylinder code (2 = 4 cylinders)")
	flags.String("auto-title-status", "1", "title status code (1 = clean)")
	flags.String("auto-transmission", "2", "transmission code (2 = automatic)")

	flags.Float64("max-mileage", 120000, "exclude listings at or above this odometer reading")
	flags.StringSlice("unallowed-titles", []string{"salvage", "rebuilt"}, "title statuses to exclude")
	flags.IntP("weeks", "w", 2, "recency window in weeks")
	flags.Int("concurrency", 1, "detail-page fetch concurrency")

	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "print debug output")
	flags.BoolVar(&flagPublish, "publish", false, "publish filtered listings to Redis")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()
	applyFlags(cmd, cfg)

	if flagVerbose {
		logger.SetVerbose()
	}

	// configuration problems abort before any network activity
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cacheSvc cache.CacheService = cache.NewNoopService()
	if cfg.MemcacheAddr != "" {
		cacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Using memcache page cache at %s", cfg.MemcacheAddr)
	}

	var pub publisher.Publisher = publisher.NewNoopPublisher()
	if flagPublish {
		if cfg.RedisAddr == "" {
			return apperr.NewConfiguration("publishing requested but REDIS_ADDR is not set", nil)
		}
		pub = publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		logger.Info("Publishing filtered listings to Redis at %s (stream: %s)", cfg.RedisAddr, cfg.RedisStream)
	}
	defer pub.Close()

	s := scraper.NewScraper(scraper.ScraperConfig{
		CategoryPath: cfg.CategoryPath,
		Concurrency:  cfg.Concurrency,
		Cache:        cacheSvc,
		PageCacheTTL: cfg.PageCacheTTL,
	})

	records, report, err := s.Run(ctx, queryFromConfig(cfg))
	if err != nil {
		// an empty search page is reportable, not a crash
		if apperr.IsType(err, apperr.ErrorTypeEmptyResults) {
			logger.Warn("no vehicles were returned from the search query")
			printReport(report)
			return nil
		}
		return err
	}

	filter := scraper.NewFilter(cfg.MaxMileage, cfg.UnallowedTitles, cfg.WeekRange)
	kept := filter.Apply(records)

	for i := range kept {
		printListing(i, &kept[i])
	}
	printReport(report)

	return publishListings(pub, kept)
}

// applyFlags overrides the env-derived config with any flag the caller
// set explicitly; untouched flags leave the env/default value in place.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	setString := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	setInt := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}

	setString("city", &cfg.City)
	setString("sort", &cfg.SortResults)
	setString("search-distance", &cfg.SearchDistance)
	setString("postal", &cfg.Postal)
	setInt("min-price", &cfg.MinPrice)
	setInt("max-price", &cfg.MaxPrice)
	setString("make", &cfg.Make)
	setString("model", &cfg.Model)
	setString("category-path", &cfg.CategoryPath)
	setInt("max-results", &cfg.MaxResults)

	setString("min-auto-year", &cfg.MinAutoYear)
	setString("min-auto-miles", &cfg.MinAutoMiles)
	setString("max-auto-miles", &cfg.MaxAutoMiles)
	setString("condition-1", &cfg.Condition1)
	setString("condition-2", &cfg.Condition2)
	setString("auto-cylinders", &cfg.AutoCylinders)
	setString("auto-title-status", &cfg.AutoTitleStatus)
	setString("auto-transmission", &cfg.AutoTransmission)

	if flags.Changed("max-mileage") {
		cfg.MaxMileage, _ = flags.GetFloat64("max-mileage")
	}
	if flags.Changed("unallowed-titles") {
		cfg.UnallowedTitles, _ = flags.GetStringSlice("unallowed-titles")
	}
	setInt("weeks", &cfg.WeekRange)
	setInt("concurrency", &cfg.Concurrency)
}

// queryFromConfig maps the effective configuration onto one SearchQuery
func queryFromConfig(cfg *config.Config) scraper.SearchQuery {
	return scraper.SearchQuery{
		City:             cfg.City,
		SortResults:      cfg.SortResults,
		SearchDistance:   cfg.SearchDistance,
		Postal:           cfg.Postal,
		MinPrice:         cfg.MinPrice,
		MaxPrice:         cfg.MaxPrice,
		Make:             cfg.Make,
		Model:            cfg.Model,
		MinAutoYear:      cfg.MinAutoYear,
		MinAutoMiles:     cfg.MinAutoMiles,
		MaxAutoMiles:     cfg.MaxAutoMiles,
		Condition1:       cfg.Condition1,
		Condition2:       cfg.Condition2,
		AutoCylinders:    cfg.AutoCylinders,
		AutoTitleStatus:  cfg.AutoTitleStatus,
		AutoTransmission: cfg.AutoTransmission,
		MaxResults:       cfg.MaxResults,
	}
}

func printListing(i int, record *scraper.ListingRecord) {
	fmt.Printf("\ncar #%d\n", i)
	fmt.Printf("  url: %s\n", record.URL)
	fmt.Printf("  price: %s\n", record.Price)
	fmt.Printf("  posted: %s\n", record.TimePosted.Format("2006-01-02 15:04:05"))
	fmt.Printf("  title: %s\n", record.PostingTitle)

	keys := make([]string, 0, len(record.Attributes))
	for key := range record.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("  %s: %s\n", key, strings.Join(record.Attributes[key], "; "))
	}
}

func printReport(report *scraper.RunReport) {
	fmt.Printf("\nrows: %d, fetched: %d, failed: %d\n",
		report.RowsFound, report.Fetched, len(report.Failures))
	for _, failure := range report.Failures {
		fmt.Printf("  row %d (%s): %v\n", failure.Index, failure.URL, failure.Err)
	}
	if report.EmptyResults {
		fmt.Println("search returned no result rows")
	}
}

func publishListings(pub publisher.Publisher, records []scraper.ListingRecord) error {
	log := logger.ForPublisher()

	for i := range records {
		data, err := json.Marshal(&records[i])
		if err != nil {
			log.Error().Err(err).Str("id", records[i].ID).Msg("failed to marshal listing")
			continue
		}

		key := records[i].ID
		if key == "" {
			key = records[i].URL
		}
		if err := pub.Publish(key, data); err != nil {
			return apperr.NewPublisher("cli", "failed to publish listing", err)
		}
	}

	return nil
}
