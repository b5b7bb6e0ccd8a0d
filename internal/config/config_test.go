package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults should load cleanly: %v", err)
	}
	if cfg.Analysis.BudgetMaxPrice != 300 || cfg.Analysis.EconomyMaxPrice != 600 {
		t.Fatalf("tier defaults = %+v", cfg.Analysis)
	}
	if cfg.Window.Days != 7 || cfg.Window.TopN != 3 {
		t.Fatalf("window defaults = %+v", cfg.Window)
	}
	if cfg.Alerting.PriceThresholdPct != 5.0 {
		t.Fatalf("price threshold default = %v", cfg.Alerting.PriceThresholdPct)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
window:
  days: 3
  top_n: 5
watch:
  prices:
    - item_id: hotel_1
      item_type: hotel
      threshold_pct: 8
  destinations: [Lisbon]
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Window.Days != 3 || cfg.Window.TopN != 5 {
		t.Fatalf("window = %+v", cfg.Window)
	}
	if len(cfg.Watch.Prices) != 1 || cfg.Watch.Prices[0].ItemID != "hotel_1" {
		t.Fatalf("watch prices = %+v", cfg.Watch.Prices)
	}
	if len(cfg.Watch.Destinations) != 1 || cfg.Watch.Destinations[0] != "Lisbon" {
		t.Fatalf("destinations = %+v", cfg.Watch.Destinations)
	}
}

func TestValidateRejectsBrokenThresholds(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Analysis.EconomyMaxPrice = 100
	if err := cfg.Validate(); err == nil {
		t.Fatal("inverted tier thresholds must fail validation")
	}

	cfg, _ = Load("")
	cfg.Alerting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("telegram enabled without credentials must fail validation")
	}

	cfg, _ = Load("")
	cfg.Watch.Prices = []PriceWatch{{ItemType: "hotel"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("price watch without item_id must fail validation")
	}
}
