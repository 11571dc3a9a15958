package metrics

import "carteira/internal/core"

// Health classifies the account balance relative to income.
type Health string

const (
	HealthNoIncome   Health = "no-income"
	HealthNoActivity Health = "no-activity"
	HealthExcellent  Health = "excellent"
	HealthGood       Health = "good"
	HealthThin       Health = "thin"
	HealthAlert      Health = "alert"
)

// Classify applies the tiers in priority order and returns the ratio used
// (zero when there is no income).
func Classify(income, balance core.Money) (Health, float64) {
	if income.IsZero() {
		if balance.IsNegative() {
			return HealthNoIncome, 0
		}
		return HealthNoActivity, 0
	}
	ratio := balance.Decimal().Div(income.Decimal()).InexactFloat64()
	switch {
	case ratio > 0.5:
		return HealthExcellent, ratio
	case ratio > 0.2:
		return HealthGood, ratio
	case ratio > 0:
		return HealthThin, ratio
	default:
		return HealthAlert, ratio
	}
}

func (h Health) Label() string {
	switch h {
	case HealthNoIncome:
		return "Expenses only"
	case HealthNoActivity:
		return "No activity"
	case HealthExcellent:
		return "Excellent"
	case HealthGood:
		return "Good"
	case HealthThin:
		return "Thin margin"
	case HealthAlert:
		return "Alert"
	}
	return string(h)
}

func (h Health) Message() string {
	switch h {
	case HealthNoIncome:
		return "There are expenses but no income recorded."
	case HealthNoActivity:
		return "Add transactions to see your financial health."
	case HealthExcellent:
		return "You are keeping more than half of your income."
	case HealthGood:
		return "Your finances are under control."
	case HealthThin:
		return "Your balance is positive but the margin is thin."
	case HealthAlert:
		return "Spending has caught up with income."
	}
	return ""
}
