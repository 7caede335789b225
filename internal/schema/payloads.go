package schema

import (
	"time"

	"finey/internal/core"
	"finey/internal/crypto"
)

// Field names of the analysis request body.
const (
	FieldAccountIDs    = "accountIds"
	FieldReferenceDate = "referenceDate"
	FieldStartDate     = "startDate"
	FieldEndDate       = "endDate"
)

// Field names of the goal payload.
const (
	FieldGoalName        = "goalName"
	FieldGoalDescription = "goalDescription"
	FieldGoalIcon        = "goalIcon"
	FieldGoalColor       = "goalColor"
	FieldGoalTarget      = "goalTargetAmount"
	FieldGoalDate        = "goalDate"
)

// DateRule accepts YYYY-MM-DD.
func DateRule(v string) string {
	if _, err := core.ParseDate(v); err != nil {
		return "must be a date in YYYY-MM-DD format"
	}
	return ""
}

// PositiveAmount accepts amounts core.ParseAmount understands that are above zero.
func PositiveAmount(v string) string {
	d, err := core.ParseAmount(v)
	if err != nil || !d.IsPositive() {
		return "must be a positive amount"
	}
	return ""
}

// NotBefore accepts dates on or after the day returned by today.
func NotBefore(today func() core.Date) Rule {
	return func(v string) string {
		if reason := DateRule(v); reason != "" {
			return reason
		}
		d, _ := core.ParseDate(v)
		if d.Before(today().Time) {
			return "must not be in the past"
		}
		return ""
	}
}

// AnalysisRequest describes the body shared by the period endpoints.
// Account ids travel sealed under the bank-accounts secret.
var AnalysisRequest = Schema{
	Name: "analysis-request",
	Fields: []Field{
		{Name: FieldAccountIDs, Sensitive: true, Secret: crypto.SecretBankAccounts},
		{Name: FieldReferenceDate, Rule: DateRule},
		{Name: FieldStartDate, Rule: DateRule},
		{Name: FieldEndDate, Rule: DateRule},
	},
}

// Goal returns the goal payload schema with the past-date check anchored to now.
func Goal(now func() time.Time) Schema {
	today := func() core.Date { return core.DateOf(now()) }
	sealed := func(name string, rule Rule) Field {
		return Field{Name: name, Sensitive: true, Secret: crypto.SecretGoals, Required: true, Rule: rule}
	}
	return Schema{
		Name: "goal",
		Fields: []Field{
			sealed(FieldGoalName, nil),
			sealed(FieldGoalDescription, nil),
			sealed(FieldGoalIcon, nil),
			sealed(FieldGoalColor, nil),
			sealed(FieldGoalTarget, PositiveAmount),
			{Name: FieldGoalDate, Required: true, Rule: NotBefore(today)},
		},
	}
}
