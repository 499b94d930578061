package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: https://api.example.test
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Provider.MaxRetries)
	assert.Equal(t, 1000, cfg.Provider.InitialDelay)
	assert.Equal(t, 10000, cfg.Provider.MaxDelay)
	assert.Equal(t, 60000, cfg.Provider.CacheMinTTL)
	assert.Equal(t, 90000, cfg.Provider.CacheMaxTTL)
	assert.Equal(t, 5, cfg.Provider.BreakerFailureThreshold)
	assert.Equal(t, 60000, cfg.Provider.BreakerCooldown)
	assert.Equal(t, 30, cfg.Capacity.BookingCutoffMinutes)
	assert.Len(t, cfg.Capacity.Slots, 3)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.GreaterOrEqual(t, cfg.Capacity.FetchTimeout, cfg.Provider.Timeout+cfg.Provider.InitialDelay)
}

func TestLoadFromFile_ReadsCapacityRules(t *testing.T) {
	path := writeConfig(t, `
provider:
  base_url: https://api.example.test
  max_retries: 5
capacity:
  timezone: America/Chicago
  express_cutoff_hour: 14
  thresholds:
    same_day_fee_waived: 0.7
    limited_same_day: 0.4
  technicians:
    - name: Nate
      employee_id: emp_1
      priority: 1
    - name: Nick
      match: ["nick"]
      priority: 2
  zip_tiers:
    tier1: ["97201"]
    tier2: ["97202"]
  ui_copy:
    SAME_DAY_FEE_WAIVED: hero_same_day_free
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Provider.MaxRetries)
	assert.Equal(t, 14, cfg.Capacity.ExpressCutoffHour)
	assert.InDelta(t, 0.7, cfg.Capacity.Thresholds.SameDayFeeWaived, 1e-9)
	require.Len(t, cfg.Capacity.Technicians, 2)
	assert.Equal(t, "emp_1", cfg.Capacity.Technicians[0].EmployeeID)
	assert.Equal(t, []string{"nick"}, cfg.Capacity.Technicians[1].Match)
	assert.Equal(t, []string{"97201"}, cfg.Capacity.ZipTiers.Tier1)
	// viper lower-cases map keys
	assert.Equal(t, "hero_same_day_free", cfg.Capacity.UICopy["same_day_fee_waived"])

	loc, err := cfg.Capacity.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", loc.String())
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_PROVIDER_TOKEN", "secret-token")
	path := writeConfig(t, `
provider:
  base_url: https://api.example.test
  api_token: ${TEST_PROVIDER_TOKEN}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Provider.APIToken)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing base url",
			body:    "logging:\n  level: debug\n",
			wantErr: "provider.base_url is required",
		},
		{
			name: "bad timezone",
			body: `
provider:
  base_url: https://api.example.test
capacity:
  timezone: Mars/Olympus
`,
			wantErr: "capacity.timezone",
		},
		{
			name: "inverted thresholds",
			body: `
provider:
  base_url: https://api.example.test
capacity:
  thresholds:
    same_day_fee_waived: 0.3
    limited_same_day: 0.6
`,
			wantErr: "capacity.thresholds",
		},
		{
			name: "overlapping slots",
			body: `
provider:
  base_url: https://api.example.test
capacity:
  slots:
    - {label: a, start: "09:00", end: "12:00"}
    - {label: b, start: "11:00", end: "14:00"}
`,
			wantErr: "overlaps",
		},
		{
			name: "technician without identity",
			body: `
provider:
  base_url: https://api.example.test
capacity:
  technicians:
    - name: Jahz
`,
			wantErr: "needs employee_id or match",
		},
		{
			name: "redis backend without address",
			body: `
provider:
  base_url: https://api.example.test
cache:
  backend: redis
`,
			wantErr: "database.redis.address",
		},
		{
			name: "negative cache ttl",
			body: `
provider:
  base_url: https://api.example.test
capacity:
  cache_ttl: -1000
`,
			wantErr: "capacity.cache_ttl must be positive",
		},
		{
			name: "negative fallback ttl",
			body: `
provider:
  base_url: https://api.example.test
capacity:
  fallback_ttl: -30000
`,
			wantErr: "capacity.fallback_ttl must be positive",
		},
		{
			name: "fetch timeout shorter than one attempt",
			body: `
provider:
  base_url: https://api.example.test
  timeout: 8000
  initial_delay: 1000
capacity:
  fetch_timeout: 8500
`,
			wantErr: "capacity.fetch_timeout (8500ms) must be at least",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSlotConfig_StartEnd(t *testing.T) {
	start, end, err := SlotConfig{Label: "m", Start: "09:30", End: "12:00"}.StartEnd()
	require.NoError(t, err)
	assert.Equal(t, 570, start)
	assert.Equal(t, 720, end)

	_, _, err = SlotConfig{Label: "bad", Start: "12:00", End: "09:00"}.StartEnd()
	assert.Error(t, err)
}
