package campaign

import (
	"testing"

	"ad-autopilot/internal/domain/account"
)

func TestTargetingFor(t *testing.T) {
	t.Run("broad_is_base", func(t *testing.T) {
		spec := TargetingFor(account.PlatformMeta, TargetingBroad)
		if spec["age_min"] != 18 || spec["age_max"] != 65 {
			t.Fatalf("unexpected base spec: %v", spec)
		}
		if _, ok := spec["custom_audiences"]; ok {
			t.Error("broad should not carry custom audiences")
		}
		if _, ok := spec["flexible_spec"]; ok {
			t.Error("broad should not carry flexible_spec")
		}
	})

	t.Run("interest", func(t *testing.T) {
		spec := TargetingFor(account.PlatformMeta, TargetingInterest)
		if _, ok := spec["flexible_spec"]; !ok {
			t.Error("interest should carry flexible_spec")
		}
	})

	t.Run("audience_types", func(t *testing.T) {
		for _, tt := range []TargetingType{TargetingLookalike, TargetingWebsiteVisitors, TargetingEngagedUsers, TargetingCartAbandoners} {
			if _, ok := TargetingFor(account.PlatformMeta, tt)["custom_audiences"]; !ok {
				t.Errorf("%s should carry custom_audiences", tt)
			}
		}
	})

	t.Run("google_has_none", func(t *testing.T) {
		if spec := TargetingFor(account.PlatformGoogle, TargetingInterest); spec != nil {
			t.Errorf("expected nil targeting for google, got %v", spec)
		}
	})
}
