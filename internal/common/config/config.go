// internal/common/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Capacity CapacityConfig `mapstructure:"capacity"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// ProviderConfig configures the upstream scheduling provider client.
type ProviderConfig struct {
	BaseURL                 string  `mapstructure:"base_url"`
	APIToken                string  `mapstructure:"api_token"`
	Timeout                 int     `mapstructure:"timeout"` // milliseconds, per attempt
	MaxRetries              int     `mapstructure:"max_retries"`
	InitialDelay            int     `mapstructure:"initial_delay"` // milliseconds
	BackoffFactor           float64 `mapstructure:"backoff_factor"`
	MaxDelay                int     `mapstructure:"max_delay"`     // milliseconds
	CacheMinTTL             int     `mapstructure:"cache_min_ttl"` // milliseconds
	CacheMaxTTL             int     `mapstructure:"cache_max_ttl"` // milliseconds
	PageSize                int     `mapstructure:"page_size"`
	BreakerFailureThreshold int     `mapstructure:"breaker_failure_threshold"`
	BreakerCooldown         int     `mapstructure:"breaker_cooldown"` // milliseconds
}

// CapacityConfig holds the business rules of the same-day capacity engine.
type CapacityConfig struct {
	Timezone             string             `mapstructure:"timezone"`
	ExpressCutoffHour    int                `mapstructure:"express_cutoff_hour"`
	BookingCutoffMinutes int                `mapstructure:"booking_cutoff_minutes"`
	Slots                []SlotConfig       `mapstructure:"slots"`
	Thresholds           ThresholdConfig    `mapstructure:"thresholds"`
	Technicians          []TechnicianConfig `mapstructure:"technicians"`
	ZipTiers             ZipTierConfig      `mapstructure:"zip_tiers"`
	UICopy               map[string]string  `mapstructure:"ui_copy"`
	CacheTTL             int                `mapstructure:"cache_ttl"`        // milliseconds
	FallbackTTL          int                `mapstructure:"fallback_ttl"`     // milliseconds
	IdentityTTL          int                `mapstructure:"identity_ttl"`     // milliseconds
	FetchTimeout         int                `mapstructure:"fetch_timeout"`    // milliseconds
	RefreshInterval      int                `mapstructure:"refresh_interval"` // milliseconds, 0 disables
}

// SlotConfig is one standard daily booking slot, times as HH:MM local.
type SlotConfig struct {
	Label string `mapstructure:"label"`
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// StartEnd returns the slot bounds as minutes after midnight.
func (s SlotConfig) StartEnd() (int, int, error) {
	start, err := parseClock(s.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("slot %q start: %w", s.Label, err)
	}
	end, err := parseClock(s.End)
	if err != nil {
		return 0, 0, fmt.Errorf("slot %q end: %w", s.Label, err)
	}
	if end <= start {
		return 0, 0, fmt.Errorf("slot %q ends before it starts", s.Label)
	}
	return start, end, nil
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

type ThresholdConfig struct {
	SameDayFeeWaived float64 `mapstructure:"same_day_fee_waived"`
	LimitedSameDay   float64 `mapstructure:"limited_same_day"`
}

// TechnicianConfig identifies a technician. EmployeeID is the stable key;
// Match substrings are only used to bootstrap a missing EmployeeID.
type TechnicianConfig struct {
	Name       string   `mapstructure:"name"`
	EmployeeID string   `mapstructure:"employee_id"`
	Match      []string `mapstructure:"match"`
	Priority   int      `mapstructure:"priority"`
}

type ZipTierConfig struct {
	Tier1 []string `mapstructure:"tier1"`
	Tier2 []string `mapstructure:"tier2"`
	Tier3 []string `mapstructure:"tier3"`
}

// Location loads the operating timezone.
func (c CapacityConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

type CacheConfig struct {
	Backend   string `mapstructure:"backend"` // memory | redis
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuditConfig selects the sinks that receive every capacity decision.
type AuditConfig struct {
	Postgres      bool   `mapstructure:"postgres"`
	Elasticsearch bool   `mapstructure:"elasticsearch"`
	Table         string `mapstructure:"table"`
	Index         string `mapstructure:"index"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// AlertsConfig holds settings for circuit-breaker notifications.
type AlertsConfig struct {
	Region string `mapstructure:"region"`
	SNS    struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		ToEmails  []string `mapstructure:"to_emails"`
	} `mapstructure:"ses"`
	Cooldown int `mapstructure:"cooldown"` // milliseconds
}

// Enabled reports whether any alert channel is configured.
func (a AlertsConfig) Enabled() bool {
	return a.SNS.Enabled || a.SES.Enabled
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
