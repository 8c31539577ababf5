package core

// Unlimited marks a quota dimension with no cap.
const Unlimited int64 = -1

// PlanLimits holds the quota caps of a plan tier.
type PlanLimits struct {
	MaxDocuments       int64
	MaxMonthlyRequests int64
}

var planLimits = map[PlanType]PlanLimits{
	PlanFree:       {MaxDocuments: 10, MaxMonthlyRequests: 1000},
	PlanBasic:      {MaxDocuments: 100, MaxMonthlyRequests: 10000},
	PlanPro:        {MaxDocuments: 1000, MaxMonthlyRequests: 100000},
	PlanEnterprise: {MaxDocuments: Unlimited, MaxMonthlyRequests: Unlimited},
}

// LimitsFor returns the quota caps of a plan. Unknown plans get free-tier caps.
func LimitsFor(plan PlanType) PlanLimits {
	limits, ok := planLimits[plan]
	if !ok {
		return planLimits[PlanFree]
	}
	return limits
}
