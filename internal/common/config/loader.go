// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	// PROVIDER_API_TOKEN overrides provider.api_token
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Secrets are commonly injected without the nested key prefix.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Provider.APIToken == "" {
		if val := os.Getenv("PROVIDER_API_TOKEN"); val != "" {
			cfg.Provider.APIToken = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "capacityd"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 5000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	// Provider defaults
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 8000
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = 3
	}
	if cfg.Provider.InitialDelay == 0 {
		cfg.Provider.InitialDelay = 1000
	}
	if cfg.Provider.BackoffFactor == 0 {
		cfg.Provider.BackoffFactor = 2
	}
	if cfg.Provider.MaxDelay == 0 {
		cfg.Provider.MaxDelay = 10000
	}
	if cfg.Provider.CacheMinTTL == 0 {
		cfg.Provider.CacheMinTTL = 60000
	}
	if cfg.Provider.CacheMaxTTL == 0 {
		cfg.Provider.CacheMaxTTL = 90000
	}
	if cfg.Provider.PageSize == 0 {
		cfg.Provider.PageSize = 100
	}
	if cfg.Provider.BreakerFailureThreshold == 0 {
		cfg.Provider.BreakerFailureThreshold = 5
	}
	if cfg.Provider.BreakerCooldown == 0 {
		cfg.Provider.BreakerCooldown = 60000
	}

	// Capacity defaults
	if cfg.Capacity.Timezone == "" {
		cfg.Capacity.Timezone = "America/Los_Angeles"
	}
	if cfg.Capacity.ExpressCutoffHour == 0 {
		cfg.Capacity.ExpressCutoffHour = 15
	}
	if cfg.Capacity.BookingCutoffMinutes == 0 {
		cfg.Capacity.BookingCutoffMinutes = 30
	}
	if len(cfg.Capacity.Slots) == 0 {
		cfg.Capacity.Slots = DefaultSlots()
	}
	if cfg.Capacity.Thresholds.SameDayFeeWaived == 0 {
		cfg.Capacity.Thresholds.SameDayFeeWaived = 0.6
	}
	if cfg.Capacity.Thresholds.LimitedSameDay == 0 {
		cfg.Capacity.Thresholds.LimitedSameDay = 0.3
	}
	if cfg.Capacity.CacheTTL == 0 {
		cfg.Capacity.CacheTTL = 120000
	}
	if cfg.Capacity.FallbackTTL == 0 {
		cfg.Capacity.FallbackTTL = 30000
	}
	if cfg.Capacity.IdentityTTL == 0 {
		cfg.Capacity.IdentityTTL = 86400000
	}
	if cfg.Capacity.FetchTimeout == 0 {
		cfg.Capacity.FetchTimeout = 10000
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "capacityd:"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Audit.Table == "" {
		cfg.Audit.Table = "capacity_decisions"
	}
	if cfg.Audit.Index == "" {
		cfg.Audit.Index = "capacity-decisions"
	}
	if cfg.Audit.Timeout == 0 {
		cfg.Audit.Timeout = 2000
	}

	if cfg.Alerts.Cooldown == 0 {
		cfg.Alerts.Cooldown = 600000
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 0.1
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// DefaultSlots is the three-slot business day.
func DefaultSlots() []SlotConfig {
	return []SlotConfig{
		{Label: "morning", Start: "09:00", End: "12:00"},
		{Label: "midday", Start: "12:00", End: "15:00"},
		{Label: "afternoon", Start: "15:00", End: "18:00"},
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if cfg.Provider.CacheMaxTTL < cfg.Provider.CacheMinTTL {
		return fmt.Errorf("provider.cache_max_ttl must be >= provider.cache_min_ttl")
	}

	if _, err := cfg.Capacity.Location(); err != nil {
		return fmt.Errorf("capacity.timezone: %w", err)
	}
	if cfg.Capacity.ExpressCutoffHour < 0 || cfg.Capacity.ExpressCutoffHour > 23 {
		return fmt.Errorf("capacity.express_cutoff_hour must be between 0 and 23")
	}

	prevEnd := -1
	for _, slot := range cfg.Capacity.Slots {
		start, end, err := slot.StartEnd()
		if err != nil {
			return fmt.Errorf("capacity.slots: %w", err)
		}
		if start < prevEnd {
			return fmt.Errorf("capacity.slots: slot %q overlaps the previous slot", slot.Label)
		}
		prevEnd = end
	}

	if cfg.Capacity.CacheTTL <= 0 {
		return fmt.Errorf("capacity.cache_ttl must be positive")
	}
	if cfg.Capacity.FallbackTTL <= 0 {
		return fmt.Errorf("capacity.fallback_ttl must be positive")
	}
	if cfg.Capacity.IdentityTTL <= 0 {
		return fmt.Errorf("capacity.identity_ttl must be positive")
	}
	// one full provider attempt plus the first backoff must fit, otherwise
	// a hanging upstream is cut off before it can count as a failure
	if minFetch := cfg.Provider.Timeout + cfg.Provider.InitialDelay; cfg.Capacity.FetchTimeout < minFetch {
		return fmt.Errorf("capacity.fetch_timeout (%dms) must be at least provider.timeout + provider.initial_delay (%dms)",
			cfg.Capacity.FetchTimeout, minFetch)
	}

	th := cfg.Capacity.Thresholds
	if th.SameDayFeeWaived > 1 || th.LimitedSameDay < 0 || th.LimitedSameDay > th.SameDayFeeWaived {
		return fmt.Errorf("capacity.thresholds must satisfy 0 <= limited_same_day <= same_day_fee_waived <= 1")
	}

	seen := make(map[string]bool)
	for _, tech := range cfg.Capacity.Technicians {
		if tech.Name == "" {
			return fmt.Errorf("capacity.technicians: name is required")
		}
		if tech.EmployeeID == "" && len(tech.Match) == 0 {
			return fmt.Errorf("capacity.technicians: %s needs employee_id or match", tech.Name)
		}
		key := strings.ToLower(tech.Name)
		if seen[key] {
			return fmt.Errorf("capacity.technicians: duplicate technician %s", tech.Name)
		}
		seen[key] = true
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend)
	}

	if cfg.Audit.Postgres && cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required when audit.postgres is enabled")
	}
	if cfg.Audit.Elasticsearch && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when audit.elasticsearch is enabled")
	}

	if cfg.Alerts.SNS.Enabled && cfg.Alerts.SNS.TopicARN == "" {
		return fmt.Errorf("alerts.sns.topic_arn is required")
	}
	if cfg.Alerts.SES.Enabled && (cfg.Alerts.SES.FromEmail == "" || len(cfg.Alerts.SES.ToEmails) == 0) {
		return fmt.Errorf("alerts.ses.from_email and alerts.ses.to_emails are required")
	}
	if cfg.Alerts.Enabled() && cfg.Alerts.Region == "" {
		return fmt.Errorf("alerts.region is required")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
