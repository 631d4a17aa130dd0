package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	Sync        SyncConfig
	Resilience  ResilienceConfig
	Routing     RoutingConfig
	Fulfillment FulfillmentConfig
	Calendar    CalendarConfig
	Marketplace MarketplaceConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// SyncConfig holds order synchronization settings
type SyncConfig struct {
	Interval         time.Duration // how often the daemon runs a sync cycle
	BatchSize        int           // default orders per batch before seasonal adjustment
	RequestDelay     time.Duration // default delay between batches before seasonal adjustment
	RequestsPerSec   float64       // default per-channel rate limit
	Burst            int           // rate limiter burst size
	CallTimeout      time.Duration // per platform call timeout
	LockTTL          time.Duration // per (tenant, channel) sync lock TTL
	MaxChannelFanout int           // channels synced concurrently per cycle
}

// ResilienceConfig holds retry and circuit breaker settings
type ResilienceConfig struct {
	MaxAttempts       int           // attempts per operation including the first
	TransientBackoff  time.Duration // base backoff for transient failures
	RateLimitBackoff  time.Duration // base backoff after a rate limit response
	MaxBackoff        time.Duration // backoff ceiling
	FailureThreshold  int           // consecutive failures before the breaker opens
	BreakerCooldown   time.Duration // open duration before a half-open probe
	DeadLetterEnabled bool          // queue exhausted operations for replay
}

// RoutingConfig holds the routing score and processing time constants
type RoutingConfig struct {
	BaseScore       float64 // starting score for every routed order
	PriorityWeight  float64 // score per priority step below the lowest
	RuleWeight      float64 // score per applied rule
	ValueDivisor    float64 // order value normalization divisor
	ValueCap        float64 // maximum score contribution from order value
	ItemThreshold   int     // items included in the base processing time
	ExtraItemHours  float64 // added hours per item beyond the threshold
	ProcessingHours map[int]float64
	DefaultPriority int
	MaxBulkOrders   int // orders accepted per bulk routing request
}

// FulfillmentConfig holds the fulfillment optimizer constants
type FulfillmentConfig struct {
	BaseShippingRate    float64 // base shipping cost in IDR
	HandlingCostPerLine float64 // per-line-item handling cost in IDR
	FullBonus           float64 // score reduction for full availability
	PartialBonus        float64 // score reduction for partial availability
	CostDivisor         float64 // cost normalization divisor
	TimeDivisor         float64 // hours-to-score divisor
	SameDayBonus        float64 // score reduction for same-day capable locations
	SameDayPriorityLE   int     // priority at or below which same-day applies
}

// CalendarConfig holds the regional business calendar settings
type CalendarConfig struct {
	Timezone    string
	OpenHour    int
	CloseHour   int
	WorkDays    []string
	PeakWindows []PeakWindowConfig
	GateEnabled bool // defer syncs outside operational windows
}

// PeakWindowConfig describes one seasonal peak period
type PeakWindowConfig struct {
	Name       string
	Start      string // YYYY-MM-DD
	End        string // YYYY-MM-DD
	Factor     float64
	Observance bool // reduced operations window, timing conflicts defer
}

// MarketplaceConfig holds platform adapter credentials
type MarketplaceConfig struct {
	Tokopedia TokopediaCredentials
}

// TokopediaCredentials holds the Tokopedia Seller API credentials
type TokopediaCredentials struct {
	BaseURL      string
	FsID         string
	ShopID       string
	ClientID     string
	ClientSecret string
	AccessToken  string
	Timeout      time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ORDERSYNC_ prefix (e.g., ORDERSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ORDERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Sync: SyncConfig{
			Interval:         v.GetDuration("sync.interval"),
			BatchSize:        v.GetInt("sync.batch_size"),
			RequestDelay:     v.GetDuration("sync.request_delay"),
			RequestsPerSec:   v.GetFloat64("sync.requests_per_sec"),
			Burst:            v.GetInt("sync.burst"),
			CallTimeout:      v.GetDuration("sync.call_timeout"),
			LockTTL:          v.GetDuration("sync.lock_ttl"),
			MaxChannelFanout: v.GetInt("sync.max_channel_fanout"),
		},
		Resilience: ResilienceConfig{
			MaxAttempts:       v.GetInt("resilience.max_attempts"),
			TransientBackoff:  v.GetDuration("resilience.transient_backoff"),
			RateLimitBackoff:  v.GetDuration("resilience.rate_limit_backoff"),
			MaxBackoff:        v.GetDuration("resilience.max_backoff"),
			FailureThreshold:  v.GetInt("resilience.failure_threshold"),
			BreakerCooldown:   v.GetDuration("resilience.breaker_cooldown"),
			DeadLetterEnabled: v.GetBool("resilience.dead_letter_enabled"),
		},
		Routing: RoutingConfig{
			BaseScore:       v.GetFloat64("routing.base_score"),
			PriorityWeight:  v.GetFloat64("routing.priority_weight"),
			RuleWeight:      v.GetFloat64("routing.rule_weight"),
			ValueDivisor:    v.GetFloat64("routing.value_divisor"),
			ValueCap:        v.GetFloat64("routing.value_cap"),
			ItemThreshold:   v.GetInt("routing.item_threshold"),
			ExtraItemHours:  v.GetFloat64("routing.extra_item_hours"),
			DefaultPriority: v.GetInt("routing.default_priority"),
			MaxBulkOrders:   v.GetInt("routing.max_bulk_orders"),
		},
		Fulfillment: FulfillmentConfig{
			BaseShippingRate:    v.GetFloat64("fulfillment.base_shipping_rate"),
			HandlingCostPerLine: v.GetFloat64("fulfillment.handling_cost_per_line"),
			FullBonus:           v.GetFloat64("fulfillment.full_bonus"),
			PartialBonus:        v.GetFloat64("fulfillment.partial_bonus"),
			CostDivisor:         v.GetFloat64("fulfillment.cost_divisor"),
			TimeDivisor:         v.GetFloat64("fulfillment.time_divisor"),
			SameDayBonus:        v.GetFloat64("fulfillment.same_day_bonus"),
			SameDayPriorityLE:   v.GetInt("fulfillment.same_day_priority_le"),
		},
		Calendar: CalendarConfig{
			Timezone:    v.GetString("calendar.timezone"),
			OpenHour:    v.GetInt("calendar.open_hour"),
			CloseHour:   v.GetInt("calendar.close_hour"),
			WorkDays:    v.GetStringSlice("calendar.work_days"),
			GateEnabled: v.GetBool("calendar.gate_enabled"),
		},
		Marketplace: MarketplaceConfig{
			Tokopedia: TokopediaCredentials{
				BaseURL:      v.GetString("marketplace.tokopedia.base_url"),
				FsID:         v.GetString("marketplace.tokopedia.fs_id"),
				ShopID:       v.GetString("marketplace.tokopedia.shop_id"),
				ClientID:     v.GetString("marketplace.tokopedia.client_id"),
				ClientSecret: v.GetString("marketplace.tokopedia.client_secret"),
				AccessToken:  v.GetString("marketplace.tokopedia.access_token"),
				Timeout:      v.GetDuration("marketplace.tokopedia.timeout"),
			},
		},
	}

	if err := v.UnmarshalKey("calendar.peak_windows", &cfg.Calendar.PeakWindows); err != nil {
		return nil, fmt.Errorf("error parsing calendar.peak_windows: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ordersync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "ordersync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = 5 * time.Minute
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 50
	}
	if cfg.Sync.RequestDelay == 0 {
		cfg.Sync.RequestDelay = 500 * time.Millisecond
	}
	if cfg.Sync.RequestsPerSec == 0 {
		cfg.Sync.RequestsPerSec = 5
	}
	if cfg.Sync.Burst == 0 {
		cfg.Sync.Burst = 10
	}
	if cfg.Sync.CallTimeout == 0 {
		cfg.Sync.CallTimeout = 30 * time.Second
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 5 * time.Minute
	}
	if cfg.Sync.MaxChannelFanout == 0 {
		cfg.Sync.MaxChannelFanout = 4
	}
	if cfg.Resilience.MaxAttempts == 0 {
		cfg.Resilience.MaxAttempts = 3
	}
	if cfg.Resilience.TransientBackoff == 0 {
		cfg.Resilience.TransientBackoff = 500 * time.Millisecond
	}
	if cfg.Resilience.RateLimitBackoff == 0 {
		cfg.Resilience.RateLimitBackoff = 2 * time.Second
	}
	if cfg.Resilience.MaxBackoff == 0 {
		cfg.Resilience.MaxBackoff = 30 * time.Second
	}
	if cfg.Resilience.FailureThreshold == 0 {
		cfg.Resilience.FailureThreshold = 5
	}
	if cfg.Resilience.BreakerCooldown == 0 {
		cfg.Resilience.BreakerCooldown = 60 * time.Second
	}
	if cfg.Routing.BaseScore == 0 {
		cfg.Routing.BaseScore = 100
	}
	if cfg.Routing.PriorityWeight == 0 {
		cfg.Routing.PriorityWeight = 20
	}
	if cfg.Routing.RuleWeight == 0 {
		cfg.Routing.RuleWeight = 10
	}
	if cfg.Routing.ValueDivisor == 0 {
		cfg.Routing.ValueDivisor = 100000
	}
	if cfg.Routing.ValueCap == 0 {
		cfg.Routing.ValueCap = 50
	}
	if cfg.Routing.ItemThreshold == 0 {
		cfg.Routing.ItemThreshold = 10
	}
	if cfg.Routing.ExtraItemHours == 0 {
		cfg.Routing.ExtraItemHours = 0.5
	}
	if cfg.Routing.ProcessingHours == nil {
		cfg.Routing.ProcessingHours = map[int]float64{1: 2, 2: 6, 3: 24, 4: 48, 5: 72}
	}
	if cfg.Routing.DefaultPriority == 0 {
		cfg.Routing.DefaultPriority = 3
	}
	if cfg.Routing.MaxBulkOrders == 0 {
		cfg.Routing.MaxBulkOrders = 500
	}
	if cfg.Fulfillment.BaseShippingRate == 0 {
		cfg.Fulfillment.BaseShippingRate = 20000
	}
	if cfg.Fulfillment.HandlingCostPerLine == 0 {
		cfg.Fulfillment.HandlingCostPerLine = 2000
	}
	if cfg.Fulfillment.FullBonus == 0 {
		cfg.Fulfillment.FullBonus = 30
	}
	if cfg.Fulfillment.PartialBonus == 0 {
		cfg.Fulfillment.PartialBonus = 10
	}
	if cfg.Fulfillment.CostDivisor == 0 {
		cfg.Fulfillment.CostDivisor = 10000
	}
	if cfg.Fulfillment.TimeDivisor == 0 {
		cfg.Fulfillment.TimeDivisor = 24
	}
	if cfg.Fulfillment.SameDayBonus == 0 {
		cfg.Fulfillment.SameDayBonus = 20
	}
	if cfg.Fulfillment.SameDayPriorityLE == 0 {
		cfg.Fulfillment.SameDayPriorityLE = 2
	}
	if cfg.Calendar.Timezone == "" {
		cfg.Calendar.Timezone = "Asia/Jakarta"
	}
	if cfg.Calendar.OpenHour == 0 {
		cfg.Calendar.OpenHour = 8
	}
	if cfg.Calendar.CloseHour == 0 {
		cfg.Calendar.CloseHour = 21
	}
	if len(cfg.Calendar.WorkDays) == 0 {
		cfg.Calendar.WorkDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	}
	if cfg.Marketplace.Tokopedia.Timeout == 0 {
		cfg.Marketplace.Tokopedia.Timeout = 15 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Resilience.MaxAttempts < 1 {
		return fmt.Errorf("resilience.max_attempts must be at least 1")
	}
	if c.Routing.DefaultPriority < 1 || c.Routing.DefaultPriority > 5 {
		return fmt.Errorf("routing.default_priority must be between 1 and 5, got %d", c.Routing.DefaultPriority)
	}
	if c.Calendar.OpenHour < 0 || c.Calendar.OpenHour > 23 ||
		c.Calendar.CloseHour < 0 || c.Calendar.CloseHour > 23 {
		return fmt.Errorf("calendar hours must be between 0 and 23")
	}
	for _, w := range c.Calendar.PeakWindows {
		if w.Factor <= 0 {
			return fmt.Errorf("calendar.peak_windows[%s].factor must be positive", w.Name)
		}
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
