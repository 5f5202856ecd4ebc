package campaign

import "ad-autopilot/internal/domain/account"

// TargetingType 是廣告組合宣告的受眾類型。
type TargetingType string

const (
	TargetingBroad           TargetingType = "broad"
	TargetingInterest        TargetingType = "interest"
	TargetingLookalike       TargetingType = "lookalike"
	TargetingWebsiteVisitors TargetingType = "website_visitors"
	TargetingEngagedUsers    TargetingType = "engaged_users"
	TargetingCartAbandoners  TargetingType = "cart_abandoners"
	TargetingCreativeTest    TargetingType = "creative_test"
	TargetingAudienceTest    TargetingType = "audience_test"
)

// TargetingFor 依平台與受眾類型產生建立時使用的 targeting。
// 受眾清單留空，由受眾同步流程之後補上。Google 廣告群組建立時不帶 targeting。
func TargetingFor(p account.Platform, t TargetingType) map[string]interface{} {
	if p != account.PlatformMeta {
		return nil
	}
	spec := map[string]interface{}{
		"age_min":             18,
		"age_max":             65,
		"publisher_platforms": []string{"facebook", "instagram"},
	}
	switch t {
	case TargetingInterest:
		spec["flexible_spec"] = []map[string]interface{}{{"interests": []interface{}{}}}
	case TargetingLookalike, TargetingWebsiteVisitors, TargetingEngagedUsers, TargetingCartAbandoners:
		spec["custom_audiences"] = []interface{}{}
	}
	return spec
}
