package config

import (
	"testing"

	"exclusivewire/internal/domain"
)

func TestTrustBonusDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("marketplace:\n  name: test\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cfg.TrustBonus(); got != 25 {
		t.Fatalf("unset trust_bonus = %d, want the default 25", got)
	}
}

func TestTrustBonusExplicitZero(t *testing.T) {
	cfg, err := FromYAML([]byte("verification:\n  trust_bonus: 0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cfg.TrustBonus(); got != 0 {
		t.Fatalf("explicit zero trust_bonus = %d, want 0", got)
	}
}

func TestTrustBonusNegativeRejected(t *testing.T) {
	if _, err := FromYAML([]byte("verification:\n  trust_bonus: -5\n")); err == nil {
		t.Fatalf("negative trust_bonus accepted")
	}
}

func TestPayoutSplitFallsBackPerPlan(t *testing.T) {
	cfg, err := FromYAML([]byte("plans:\n  Basic:\n    payout_split: 10\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cfg.PayoutSplit(domain.PlanBasic); got != 10 {
		t.Fatalf("Basic split = %d, want the configured 10", got)
	}
	if got := cfg.PayoutSplit(domain.PlanPremium); got != 30 {
		t.Fatalf("Premium split = %d, want the default 30", got)
	}
}
