package config

import (
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestValidate_InvalidPercentile(t *testing.T) {
	cfg := Default()
	cfg.Monitoring.Percentile = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for percentile > 1.0")
	}

	cfg.Monitoring.Percentile = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative percentile")
	}
}

func TestValidate_InvalidWindow(t *testing.T) {
	cfg := Default()
	cfg.Monitoring.Window = -time.Hour
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative window")
	}
}

func TestValidate_InvalidGains(t *testing.T) {
	cfg := Default()
	cfg.Balancer.MinGain = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative min_gain")
	}

	cfg = Default()
	cfg.Balancer.MinGainLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative min_gain_limit")
	}
}

func TestValidate_InvalidFormat(t *testing.T) {
	cfg := Default()
	cfg.Output.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid output format")
	}
}

func TestValidate_TopN_FixesZero(t *testing.T) {
	cfg := Default()
	cfg.Output.TopN = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.TopN != 5 {
		t.Errorf("expected TopN to be fixed to 5, got %d", cfg.Output.TopN)
	}
}

func TestValidate_EnrichCostRequiresRegion(t *testing.T) {
	cfg := Default()
	cfg.Cloud.EnrichCost = true
	cfg.Cloud.Region = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when enrich_cost is set without a region")
	}
}
