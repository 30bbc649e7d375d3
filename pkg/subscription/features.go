package subscription

type Plan string
type Status string
type Feature string

const (
	FreeTrial Plan = "free_trial"
	Solo      Plan = "solo"
	Seasonal  Plan = "seasonal"
)

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusPastDue   Status = "past_due"
)

const (
	CSVImport      Feature = "csv_import"
	CSVExport      Feature = "csv_export"
	AutoCategorize Feature = "auto_categorize"
	FormGeneration Feature = "form_generation"
)

type PlanLimits struct {
	MaxTransactions int
	AllowedFeatures map[Feature]bool
}

var PlanFeatures = map[Plan]PlanLimits{
	FreeTrial: {
		MaxTransactions: 100,
		AllowedFeatures: map[Feature]bool{
			CSVImport:      true,
			CSVExport:      false,
			AutoCategorize: false,
			FormGeneration: false,
		},
	},
	Solo: {
		MaxTransactions: 5000,
		AllowedFeatures: map[Feature]bool{
			CSVImport:      true,
			CSVExport:      true,
			AutoCategorize: true,
			FormGeneration: true,
		},
	},
	Seasonal: {
		MaxTransactions: 5000,
		AllowedFeatures: map[Feature]bool{
			CSVImport:      true,
			CSVExport:      true,
			AutoCategorize: true,
			FormGeneration: true,
		},
	},
}

// IsActivePaid is the single gate for paid-only features. A free trial row
// counts as active for trial features but never satisfies this check.
func IsActivePaid(plan Plan, status Status) bool {
	return status == StatusActive && (plan == Solo || plan == Seasonal)
}

// IsPaidPlan reports whether the plan is one of the purchasable tiers.
func IsPaidPlan(plan Plan) bool {
	return plan == Solo || plan == Seasonal
}

func ValidPlan(p string) bool {
	switch Plan(p) {
	case FreeTrial, Solo, Seasonal:
		return true
	}
	return false
}

func CanUseFeature(plan Plan, status Status, feature Feature) bool {
	if status != StatusActive {
		return false
	}
	limits, exists := PlanFeatures[plan]
	if !exists {
		return false
	}
	return limits.AllowedFeatures[feature]
}

func GetPlanLimits(plan Plan) PlanLimits {
	return PlanFeatures[plan]
}
