// Package config defines all configuration for the arbitrage bot.
// Config is loaded from a JSON file (default: config.json) with credentials
// overridable via OANDA_* environment variables. Missing keys fall back to
// defaults; unknown keys are ignored.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the JSON file structure.
type Config struct {
	APIKey               string             `mapstructure:"api_key"`
	AccountID            string             `mapstructure:"account_id"`
	PracticeMode         bool               `mapstructure:"practice_mode"`
	CheckInterval        int                `mapstructure:"check_interval"`
	MinProfitThreshold   float64            `mapstructure:"min_profit_threshold"`
	MaxSpreadThreshold   float64            `mapstructure:"max_spread_threshold"`
	MaxConsecutiveLosses int                `mapstructure:"max_consecutive_losses"`
	DailyLossLimitPct    float64            `mapstructure:"daily_loss_limit_pct"`
	CurrenciesToMonitor  []string           `mapstructure:"currencies_to_monitor"`
	MaxRuntime           int                `mapstructure:"max_runtime"`
	RiskPerTrade         RiskTiers          `mapstructure:"risk_per_trade"`
	SessionMultipliers   SessionMultipliers `mapstructure:"session_multipliers"`
	VolatilityWindow     int                `mapstructure:"volatility_window"`
	DataDir              string             `mapstructure:"data_dir"`
}

// RiskTiers sets the per-trade risk fraction by account balance tier.
type RiskTiers struct {
	SmallAccount  float64 `mapstructure:"small_account"`  // balance < 1 000
	MediumAccount float64 `mapstructure:"medium_account"` // balance < 10 000
	LargeAccount  float64 `mapstructure:"large_account"`  // everything above
}

// SessionMultipliers scale position size by market session liquidity.
type SessionMultipliers struct {
	LondonNYOverlap    float64 `mapstructure:"london_ny_overlap"`
	TokyoLondonOverlap float64 `mapstructure:"tokyo_london_overlap"`
	London             float64 `mapstructure:"london"`
	NewYork            float64 `mapstructure:"new_york"`
	Tokyo              float64 `mapstructure:"tokyo"`
	LowLiquidity       float64 `mapstructure:"low_liquidity"`
}

// For returns the multiplier for a session tag, 1.0 for an unknown tag.
func (m SessionMultipliers) For(session string) float64 {
	switch session {
	case "london_ny_overlap":
		return m.LondonNYOverlap
	case "tokyo_london_overlap":
		return m.TokyoLondonOverlap
	case "london":
		return m.London
	case "new_york":
		return m.NewYork
	case "tokyo":
		return m.Tokyo
	case "low_liquidity":
		return m.LowLiquidity
	default:
		return 1.0
	}
}

// Load reads config from a JSON file with env var overrides. A missing file
// is not an error: defaults apply and credentials come from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// File absent — defaults only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Credentials from env take precedence over the file.
	if key := os.Getenv("OANDA_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if id := os.Getenv("OANDA_ACCOUNT_ID"); id != "" {
		cfg.AccountID = id
	}

	sanitize(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("practice_mode", true)
	v.SetDefault("check_interval", 3)
	v.SetDefault("min_profit_threshold", 0.001) // 0.1%
	v.SetDefault("max_spread_threshold", 0.0010)
	v.SetDefault("max_consecutive_losses", 3)
	v.SetDefault("daily_loss_limit_pct", 0.05) // 5% of account
	v.SetDefault("currencies_to_monitor", []string{"USD", "EUR", "GBP", "JPY", "AUD", "CAD", "CHF", "NZD"})
	v.SetDefault("risk_per_trade.small_account", 0.01)
	v.SetDefault("risk_per_trade.medium_account", 0.02)
	v.SetDefault("risk_per_trade.large_account", 0.03)
	v.SetDefault("session_multipliers.london_ny_overlap", 1.2)
	v.SetDefault("session_multipliers.tokyo_london_overlap", 1.1)
	v.SetDefault("session_multipliers.london", 1.0)
	v.SetDefault("session_multipliers.new_york", 1.0)
	v.SetDefault("session_multipliers.tokyo", 0.8)
	v.SetDefault("session_multipliers.low_liquidity", 0.5)
	v.SetDefault("volatility_window", 20)
	v.SetDefault("data_dir", "./data")
}

// sanitize clamps out-of-range values back to defaults rather than failing:
// a malformed tuning knob should not stop the bot the way missing credentials do.
// An empty currency list is replaced by USD/EUR/GBP, not by the full default list.
func sanitize(cfg *Config) {
	if cfg.CheckInterval < 1 {
		cfg.CheckInterval = 3
	}
	if cfg.MinProfitThreshold < 0 {
		cfg.MinProfitThreshold = 0.001
	}
	if cfg.VolatilityWindow < 5 {
		cfg.VolatilityWindow = 20
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if len(cfg.CurrenciesToMonitor) == 0 {
		cfg.CurrenciesToMonitor = []string{"USD", "EUR", "GBP"}
	}
}

// Validate checks the fields without which the bot cannot start.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set OANDA_API_KEY)")
	}
	if c.AccountID == "" {
		return fmt.Errorf("account_id is required (set OANDA_ACCOUNT_ID)")
	}
	return nil
}
