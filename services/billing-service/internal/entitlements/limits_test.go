package entitlements

import "testing"

func TestLimitsForTier(t *testing.T) {
	free := LimitsForTier("free")
	if free.MaxServices != 5 || free.MaxMonthlyAppointments != 20 {
		t.Fatalf("unexpected free limits: %+v", free)
	}

	solo := LimitsForTier("solo")
	if solo.MaxServices <= free.MaxServices || solo.MaxMonthlyAppointments <= free.MaxMonthlyAppointments {
		t.Fatalf("solo must be above free: %+v", solo)
	}

	studio := LimitsForTier("studio")
	if studio.MaxServices <= solo.MaxServices || studio.MaxMonthlyAppointments <= solo.MaxMonthlyAppointments {
		t.Fatalf("studio must be above solo: %+v", studio)
	}

	// Unknown tiers degrade to free.
	if got := LimitsForTier("enterprise"); got.Tier != "free" {
		t.Fatalf("unknown tier should map to free, got %q", got.Tier)
	}
}
