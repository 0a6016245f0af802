package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.PracticeMode {
		t.Error("practice_mode should default to true")
	}
	if cfg.CheckInterval != 3 {
		t.Errorf("check_interval = %d, want 3", cfg.CheckInterval)
	}
	if cfg.MinProfitThreshold != 0.001 {
		t.Errorf("min_profit_threshold = %v, want 0.001", cfg.MinProfitThreshold)
	}
	if cfg.MaxConsecutiveLosses != 3 {
		t.Errorf("max_consecutive_losses = %d, want 3", cfg.MaxConsecutiveLosses)
	}
	if cfg.DailyLossLimitPct != 0.05 {
		t.Errorf("daily_loss_limit_pct = %v, want 0.05", cfg.DailyLossLimitPct)
	}
	if len(cfg.CurrenciesToMonitor) != 8 {
		t.Errorf("currencies_to_monitor has %d entries, want 8", len(cfg.CurrenciesToMonitor))
	}
	if cfg.RiskPerTrade.MediumAccount != 0.02 {
		t.Errorf("risk_per_trade.medium_account = %v, want 0.02", cfg.RiskPerTrade.MediumAccount)
	}
	if cfg.SessionMultipliers.LowLiquidity != 0.5 {
		t.Errorf("session_multipliers.low_liquidity = %v, want 0.5", cfg.SessionMultipliers.LowLiquidity)
	}
	if cfg.VolatilityWindow != 20 {
		t.Errorf("volatility_window = %d, want 20", cfg.VolatilityWindow)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"api_key": "file-key",
		"account_id": "001-001-1234567-001",
		"check_interval": 10,
		"min_profit_threshold": 0.002,
		"currencies_to_monitor": ["USD", "EUR", "GBP"],
		"session_multipliers": {"tokyo": 0.7},
		"some_future_knob": true
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIKey != "file-key" {
		t.Errorf("api_key = %q, want file-key", cfg.APIKey)
	}
	if cfg.CheckInterval != 10 {
		t.Errorf("check_interval = %d, want 10", cfg.CheckInterval)
	}
	if cfg.MinProfitThreshold != 0.002 {
		t.Errorf("min_profit_threshold = %v, want 0.002", cfg.MinProfitThreshold)
	}
	if len(cfg.CurrenciesToMonitor) != 3 {
		t.Errorf("currencies_to_monitor = %v, want 3 entries", cfg.CurrenciesToMonitor)
	}
	if cfg.SessionMultipliers.Tokyo != 0.7 {
		t.Errorf("session_multipliers.tokyo = %v, want 0.7", cfg.SessionMultipliers.Tokyo)
	}
	// Keys the file omits still get defaults.
	if cfg.MaxConsecutiveLosses != 3 {
		t.Errorf("max_consecutive_losses = %d, want default 3", cfg.MaxConsecutiveLosses)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OANDA_API_KEY", "env-key")
	t.Setenv("OANDA_ACCOUNT_ID", "env-account")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"api_key": "file-key", "account_id": "file-account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("api_key = %q, want env override", cfg.APIKey)
	}
	if cfg.AccountID != "env-account" {
		t.Errorf("account_id = %q, want env override", cfg.AccountID)
	}
}

func TestSanitize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"check_interval": 0, "min_profit_threshold": -1, "volatility_window": 2}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CheckInterval != 3 {
		t.Errorf("check_interval = %d, want clamped default 3", cfg.CheckInterval)
	}
	if cfg.MinProfitThreshold != 0.001 {
		t.Errorf("min_profit_threshold = %v, want clamped default", cfg.MinProfitThreshold)
	}
	if cfg.VolatilityWindow != 20 {
		t.Errorf("volatility_window = %d, want clamped default", cfg.VolatilityWindow)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing api_key")
	}
	cfg.APIKey = "k"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing account_id")
	}
	cfg.AccountID = "a"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSessionMultipliersFor(t *testing.T) {
	t.Parallel()

	m := SessionMultipliers{
		LondonNYOverlap:    1.2,
		TokyoLondonOverlap: 1.1,
		London:             1.0,
		NewYork:            1.0,
		Tokyo:              0.8,
		LowLiquidity:       0.5,
	}
	cases := map[string]float64{
		"london_ny_overlap":    1.2,
		"tokyo_london_overlap": 1.1,
		"london":               1.0,
		"new_york":             1.0,
		"tokyo":                0.8,
		"low_liquidity":        0.5,
		"martian_open":         1.0,
	}
	for tag, want := range cases {
		if got := m.For(tag); got != want {
			t.Errorf("For(%q) = %v, want %v", tag, got, want)
		}
	}
}
