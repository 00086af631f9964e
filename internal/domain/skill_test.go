package domain

import "testing"

func TestTierPolicy_Classify(t *testing.T) {
	tests := []struct {
		name   string
		policy TierPolicy
		pct    float64
		want   Tier
	}{
		{"standard zero", StandardTiers, 0, TierNovice},
		{"standard 19.9", StandardTiers, 19.9, TierNovice},
		{"standard 20", StandardTiers, 20, TierBeginner},
		{"standard 40", StandardTiers, 40, TierIntermediate},
		{"standard 69", StandardTiers, 69, TierIntermediate},
		{"standard 70", StandardTiers, 70, TierAdvanced},
		{"standard 85", StandardTiers, 85, TierAdvanced},
		{"standard 90", StandardTiers, 90, TierExpert},
		{"standard 100", StandardTiers, 100, TierExpert},
		{"strict 49", StrictTiers, 49, TierNovice},
		{"strict 50", StrictTiers, 50, TierBeginner},
		{"strict 70", StrictTiers, 70, TierIntermediate},
		{"strict 85", StrictTiers, 85, TierAdvanced},
		{"strict 90", StrictTiers, 90, TierExpert},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Classify(tt.pct); got != tt.want {
				t.Errorf("Classify(%v) = %v; want %v", tt.pct, got, tt.want)
			}
		})
	}
}

func TestTierPolicyByName(t *testing.T) {
	p, err := TierPolicyByName("")
	if err != nil || p.Name != PolicyStandard {
		t.Errorf("TierPolicyByName(\"\") = %v, %v; want standard", p.Name, err)
	}
	p, err = TierPolicyByName("strict")
	if err != nil || p.Name != PolicyStrict {
		t.Errorf("TierPolicyByName(strict) = %v, %v; want strict", p.Name, err)
	}
	if _, err := TierPolicyByName("lenient"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestTier_Weak(t *testing.T) {
	for _, tier := range []Tier{TierNovice, TierBeginner} {
		if !tier.Weak() {
			t.Errorf("%v.Weak() = false; want true", tier)
		}
	}
	for _, tier := range []Tier{TierIntermediate, TierAdvanced, TierExpert} {
		if tier.Weak() {
			t.Errorf("%v.Weak() = true; want false", tier)
		}
	}
}
