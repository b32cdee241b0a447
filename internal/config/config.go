package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Render     RenderConfig     `yaml:"render" mapstructure:"render"`
	Signals    SignalsConfig    `yaml:"signals" mapstructure:"signals"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Budget     BudgetConfig     `yaml:"budget" mapstructure:"budget"`
	Columns    ColumnsConfig    `yaml:"columns" mapstructure:"columns"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"required"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// StoreConfig configures the checkpoint backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres memory"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Lock        bool   `yaml:"lock" mapstructure:"lock"`
}

// BatchConfig controls chunking and concurrency of a run.
type BatchConfig struct {
	ChunkSize   int  `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gt=0"`
	Workers     int  `yaml:"workers" mapstructure:"workers" validate:"gt=0,lte=64"`
	RetryFailed bool `yaml:"retry_failed" mapstructure:"retry_failed"`
}

// RenderConfig configures the page renderer and worker retry policy.
type RenderConfig struct {
	Driver           string   `yaml:"driver" mapstructure:"driver" validate:"oneof=http chrome"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gt=0"`
	Retries          int      `yaml:"retries" mapstructure:"retries" validate:"gte=0,lte=5"`
	BackoffMillis    int      `yaml:"backoff_millis" mapstructure:"backoff_millis" validate:"gte=0"`
	MaxBackoffMillis int      `yaml:"max_backoff_millis" mapstructure:"max_backoff_millis" validate:"gte=0"`
	BlockResources   bool     `yaml:"block_resources" mapstructure:"block_resources"`
	BlockedPatterns  []string `yaml:"blocked_patterns" mapstructure:"blocked_patterns"`
	UserAgent        string   `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBody          string   `yaml:"max_body" mapstructure:"max_body"`
	HostRPS          float64  `yaml:"host_rps" mapstructure:"host_rps" validate:"gte=0"`
	HostBurst        int      `yaml:"host_burst" mapstructure:"host_burst" validate:"gte=0"`
	ChromePath       string   `yaml:"chrome_path" mapstructure:"chrome_path"`
}

// MaxBodyBytes parses MaxBody ("2MB", "512KB").
func (c RenderConfig) MaxBodyBytes() (int64, error) {
	if c.MaxBody == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxBody)
	if err != nil {
		return 0, eris.Wrapf(err, "config: parse render.max_body %q", c.MaxBody)
	}
	return int64(n), nil
}

// SignalsConfig tunes signal extraction from rendered pages.
type SignalsConfig struct {
	HeavyPage           string `yaml:"heavy_page" mapstructure:"heavy_page"`
	VeryHeavyPage       string `yaml:"very_heavy_page" mapstructure:"very_heavy_page"`
	ManyScripts         int    `yaml:"many_scripts" mapstructure:"many_scripts" validate:"gt=0"`
	TooManyScripts      int    `yaml:"too_many_scripts" mapstructure:"too_many_scripts" validate:"gtfield=ManyScripts"`
	BlockingStylesheets int    `yaml:"blocking_stylesheets" mapstructure:"blocking_stylesheets" validate:"gt=0"`
	SlowMillis          int    `yaml:"slow_millis" mapstructure:"slow_millis" validate:"gt=0"`
	VerySlowMillis      int    `yaml:"very_slow_millis" mapstructure:"very_slow_millis" validate:"gtfield=SlowMillis"`
	LocalSEOMinMarkers  int    `yaml:"local_seo_min_markers" mapstructure:"local_seo_min_markers" validate:"gt=0,lte=5"`
}

// PageBytes parses the heavy and very heavy page thresholds.
func (c SignalsConfig) PageBytes() (heavy, veryHeavy int64, err error) {
	h, err := humanize.ParseBytes(c.HeavyPage)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "config: parse signals.heavy_page %q", c.HeavyPage)
	}
	vh, err := humanize.ParseBytes(c.VeryHeavyPage)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "config: parse signals.very_heavy_page %q", c.VeryHeavyPage)
	}
	return int64(h), int64(vh), nil
}

// ScoringConfig holds pain weights and qualification thresholds.
type ScoringConfig struct {
	Weights            WeightsConfig `yaml:"weights" mapstructure:"weights"`
	Neutral            float64       `yaml:"neutral" mapstructure:"neutral" validate:"gte=0,lte=100"`
	RedMobileBelow     int           `yaml:"red_mobile_below" mapstructure:"red_mobile_below" validate:"gte=0,lte=100"`
	RedPainAtLeast     int           `yaml:"red_pain_at_least" mapstructure:"red_pain_at_least" validate:"gte=0,lte=100"`
	GreenPainBelow     int           `yaml:"green_pain_below" mapstructure:"green_pain_below" validate:"gte=0,lte=100"`
	GreenMobileAtLeast int           `yaml:"green_mobile_at_least" mapstructure:"green_mobile_at_least" validate:"gte=0,lte=100"`
}

// WeightsConfig holds the pain weight per signal, in percent.
type WeightsConfig struct {
	Performance float64 `yaml:"performance" mapstructure:"performance" validate:"gte=0"`
	Technology  float64 `yaml:"technology" mapstructure:"technology" validate:"gte=0"`
	SEO         float64 `yaml:"seo" mapstructure:"seo" validate:"gte=0"`
	Security    float64 `yaml:"security" mapstructure:"security" validate:"gte=0"`
}

// Sum returns the total of all weights.
func (w WeightsConfig) Sum() float64 {
	return w.Performance + w.Technology + w.SEO + w.Security
}

// ClassifierConfig tunes the chain/independence classifier.
type ClassifierConfig struct {
	Chains          []string           `yaml:"chains" mapstructure:"chains"`
	ChainsFile      string             `yaml:"chains_file" mapstructure:"chains_file"`
	OwnerTokens     []string           `yaml:"owner_tokens" mapstructure:"owner_tokens"`
	LocalTokens     []string           `yaml:"local_tokens" mapstructure:"local_tokens"`
	LegalSuffixes   []string           `yaml:"legal_suffixes" mapstructure:"legal_suffixes"`
	ReviewThreshold int                `yaml:"review_threshold" mapstructure:"review_threshold" validate:"gt=0"`
	Points          IndependencePoints `yaml:"points" mapstructure:"points"`
}

// IndependencePoints are the additive points per independence signal.
type IndependencePoints struct {
	OwnerToken    int `yaml:"owner_token" mapstructure:"owner_token" validate:"gte=0"`
	LocalToken    int `yaml:"local_token" mapstructure:"local_token" validate:"gte=0"`
	LowReviews    int `yaml:"low_reviews" mapstructure:"low_reviews" validate:"gte=0"`
	NoLegalSuffix int `yaml:"no_legal_suffix" mapstructure:"no_legal_suffix" validate:"gte=0"`
	NoChainMatch  int `yaml:"no_chain_match" mapstructure:"no_chain_match" validate:"gte=0"`
}

// Total returns the maximum attainable points.
func (p IndependencePoints) Total() int {
	return p.OwnerToken + p.LocalToken + p.LowReviews + p.NoLegalSuffix + p.NoChainMatch
}

// BudgetConfig holds size bands, revenue bases and budget percentages.
type BudgetConfig struct {
	BoutiqueBelow       int                `yaml:"boutique_below" mapstructure:"boutique_below" validate:"gt=0"`
	MidSizeMax          int                `yaml:"mid_size_max" mapstructure:"mid_size_max" validate:"gtfield=BoutiqueBelow"`
	CategoryRevenue     map[string]int     `yaml:"category_revenue" mapstructure:"category_revenue" validate:"required,dive,gt=0"`
	DefaultRevenue      int                `yaml:"default_revenue" mapstructure:"default_revenue" validate:"gt=0"`
	TierMultiplier      map[string]float64 `yaml:"tier_multiplier" mapstructure:"tier_multiplier"`
	PctLow              float64            `yaml:"pct_low" mapstructure:"pct_low" validate:"gt=0"`
	PctHigh             float64            `yaml:"pct_high" mapstructure:"pct_high" validate:"gtefield=PctLow"`
	Urgency             map[string]float64 `yaml:"urgency" mapstructure:"urgency" validate:"dive,gt=0"`
	DefaultUrgency      float64            `yaml:"default_urgency" mapstructure:"default_urgency" validate:"gt=0"`
	HighConfidenceAbove int                `yaml:"high_confidence_above" mapstructure:"high_confidence_above" validate:"gte=0,lte=100"`
}

// ColumnsConfig maps input header names onto canonical field names.
type ColumnsConfig struct {
	Mapping  map[string]string `yaml:"mapping" mapstructure:"mapping"`
	Required []string          `yaml:"required" mapstructure:"required" validate:"min=1"`
}

// OutputConfig configures the output sink.
type OutputConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=csv jsonl"`
}

// MetricsConfig configures the status/metrics server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// MonitoringConfig configures run health alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold" validate:"gte=0,lte=1"`
	MinRendered          int     `yaml:"min_rendered" mapstructure:"min_rendered" validate:"gte=0"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
}

// DefaultChains is the built-in list of national and regional chain names.
var DefaultChains = []string{
	"planet fitness", "in-shape", "in shape", "la fitness", "24 hour fitness",
	"anytime fitness", "crunch fitness", "gold's gym", "world gym",
	"equinox", "lifetime fitness", "life time fitness", "orangetheory", "orange theory",
	"f45", "snap fitness", "curves", "pure barre", "club pilates", "the bar method",
	"solidcore", "corepower yoga", "soulcycle", "cyclebar", "barre3", "burn boot camp",
	"ufc gym", "ymca", "title boxing", "jazzercise", "stroller strides",
	"fitness 19", "charter fitness", "powerhouse gym", "retro fitness", "youfit",
	"fitness connection", "eos fitness", "chuze fitness", "blink fitness",
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home + "/.leadgen")
	}
	if path := os.Getenv("LEADGEN_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	}

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(eris.Wrap(err, "config: unmarshal defaults"))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "leadgen_checkpoint.db")
	v.SetDefault("store.lock", true)

	v.SetDefault("batch.chunk_size", 200)
	v.SetDefault("batch.workers", 5)
	v.SetDefault("batch.retry_failed", false)

	v.SetDefault("render.driver", "http")
	v.SetDefault("render.timeout_secs", 15)
	v.SetDefault("render.retries", 1)
	v.SetDefault("render.backoff_millis", 1000)
	v.SetDefault("render.max_backoff_millis", 5000)
	v.SetDefault("render.block_resources", true)
	v.SetDefault("render.blocked_patterns", []string{
		"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
		"*.woff", "*.woff2", "*.ttf", "*.otf", "*.eot", "*.css",
	})
	v.SetDefault("render.user_agent", "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Mobile Safari/537.36")
	v.SetDefault("render.max_body", "2MB")
	v.SetDefault("render.host_rps", 1.0)
	v.SetDefault("render.host_burst", 2)

	v.SetDefault("signals.heavy_page", "1MB")
	v.SetDefault("signals.very_heavy_page", "3MB")
	v.SetDefault("signals.many_scripts", 15)
	v.SetDefault("signals.too_many_scripts", 30)
	v.SetDefault("signals.blocking_stylesheets", 5)
	v.SetDefault("signals.slow_millis", 3000)
	v.SetDefault("signals.very_slow_millis", 8000)
	v.SetDefault("signals.local_seo_min_markers", 3)

	v.SetDefault("scoring.weights.performance", 40.0)
	v.SetDefault("scoring.weights.technology", 30.0)
	v.SetDefault("scoring.weights.seo", 20.0)
	v.SetDefault("scoring.weights.security", 10.0)
	v.SetDefault("scoring.neutral", 50.0)
	v.SetDefault("scoring.red_mobile_below", 60)
	v.SetDefault("scoring.red_pain_at_least", 65)
	v.SetDefault("scoring.green_pain_below", 35)
	v.SetDefault("scoring.green_mobile_at_least", 80)

	v.SetDefault("classifier.chains", DefaultChains)
	v.SetDefault("classifier.owner_tokens", []string{
		"family", "owner", "owned", "mom", "dad", "brothers", "sisters", "and sons", "& sons",
	})
	v.SetDefault("classifier.local_tokens", []string{
		"local", "community", "neighborhood", "hometown", "town", "valley", "city",
	})
	v.SetDefault("classifier.legal_suffixes", []string{
		"llc", "inc", "corp", "corporation", "co", "ltd", "franchise", "franchising",
	})
	v.SetDefault("classifier.review_threshold", 200)
	v.SetDefault("classifier.points.owner_token", 20)
	v.SetDefault("classifier.points.local_token", 20)
	v.SetDefault("classifier.points.low_reviews", 20)
	v.SetDefault("classifier.points.no_legal_suffix", 20)
	v.SetDefault("classifier.points.no_chain_match", 20)

	v.SetDefault("budget.boutique_below", 50)
	v.SetDefault("budget.mid_size_max", 300)
	v.SetDefault("budget.category_revenue", map[string]int{
		"gym":               30000,
		"fitness":           30000,
		"health club":       45000,
		"crossfit":          25000,
		"boxing":            18000,
		"martial arts":      18000,
		"yoga":              15000,
		"pilates":           20000,
		"barre":             18000,
		"personal training": 12000,
		"bootcamp":          16000,
		"dance":             12000,
	})
	v.SetDefault("budget.default_revenue", 20000)
	v.SetDefault("budget.tier_multiplier", map[string]float64{
		"boutique":          1.0,
		"mid_size":          2.0,
		"large_independent": 4.0,
	})
	v.SetDefault("budget.pct_low", 2.0)
	v.SetDefault("budget.pct_high", 3.5)
	v.SetDefault("budget.urgency", map[string]float64{
		"24 hour":           3.0,
		"crossfit":          2.8,
		"boxing":            2.5,
		"martial arts":      2.5,
		"personal training": 2.3,
		"bootcamp":          2.2,
		"pilates":           2.0,
		"yoga":              2.0,
		"powerlifting":      1.8,
		"fitness":           1.5,
		"gym":               1.5,
		"health club":       1.3,
		"recreation":        1.2,
	})
	v.SetDefault("budget.default_urgency", 1.5)
	v.SetDefault("budget.high_confidence_above", 50)

	v.SetDefault("columns.mapping", map[string]string{
		"gym_name":      "business_name",
		"name":          "business_name",
		"business":      "business_name",
		"title":         "business_name",
		"website":       "website_url",
		"url":           "website_url",
		"site":          "website_url",
		"full_address":  "address",
		"street":        "address",
		"phone_number":  "phone",
		"reviews":       "review_count",
		"reviews_count": "review_count",
		"user_ratings":  "review_count",
		"rating":        "rating",
		"google_rating": "rating",
		"type":          "category",
		"types":         "category",
		"gym_type":      "category",
		"categories":    "category",
	})
	v.SetDefault("columns.required", []string{"business_name"})

	v.SetDefault("output.format", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")

	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_rendered", 20)
	v.SetDefault("monitoring.check_interval_secs", 30)
}

var validate = validator.New()

// Validate checks struct constraints and cross-field rules, collecting every
// problem into a single error.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if sum := c.Scoring.Weights.Sum(); sum < 99.99 || sum > 100.01 {
		errs = append(errs, fmt.Sprintf("scoring.weights must sum to 100, got %.2f", sum))
	}
	if c.Scoring.GreenPainBelow > c.Scoring.RedPainAtLeast {
		errs = append(errs, "scoring.green_pain_below must not exceed scoring.red_pain_at_least")
	}
	if c.Classifier.Points.Total() == 0 {
		errs = append(errs, "classifier.points must not all be zero")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for the postgres driver")
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		errs = append(errs, "store.path is required for the sqlite driver")
	}
	if _, err := c.Render.MaxBodyBytes(); err != nil {
		errs = append(errs, err.Error())
	}
	if h, vh, err := c.Signals.PageBytes(); err != nil {
		errs = append(errs, err.Error())
	} else if vh <= h {
		errs = append(errs, "signals.very_heavy_page must exceed signals.heavy_page")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
