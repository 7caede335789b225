package analysis

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// SourceFacts is what a recurrence policy sees about one income source.
type SourceFacts struct {
	Name    string
	Total   decimal.Decimal
	Largest decimal.Decimal
	Count   int
}

// RecurrencePolicy decides whether an income source counts as recurring.
type RecurrencePolicy interface {
	IsRecurring(src SourceFacts) bool
}

var (
	recurringSources = map[string]bool{"Salário": true, "Aluguel": true, "Investimentos": true}
	variableSources  = map[string]bool{"Freelance": true, "Vendas": true, "Transferências": true}
)

// DefaultPolicy flags known salary-like sources as recurring, known
// one-off sources as variable, and anything else by the size of its largest
// single payment.
type DefaultPolicy struct {
	Threshold decimal.Decimal
}

func (p DefaultPolicy) IsRecurring(src SourceFacts) bool {
	switch {
	case recurringSources[src.Name]:
		return true
	case variableSources[src.Name]:
		return false
	}
	return src.Largest.GreaterThanOrEqual(p.Threshold)
}

// CategoryPolicy only trusts the known source names.
type CategoryPolicy struct{}

func (CategoryPolicy) IsRecurring(src SourceFacts) bool {
	return recurringSources[src.Name]
}

// ThresholdPolicy ignores names and looks at the largest payment only.
type ThresholdPolicy struct {
	Threshold decimal.Decimal
}

func (p ThresholdPolicy) IsRecurring(src SourceFacts) bool {
	return src.Largest.GreaterThanOrEqual(p.Threshold)
}

// NoRecurrence treats all income as variable.
type NoRecurrence struct{}

func (NoRecurrence) IsRecurring(SourceFacts) bool { return false }

// DefaultRecurrenceThreshold is the payment size above which an unknown
// source is assumed recurring.
var DefaultRecurrenceThreshold = decimal.NewFromInt(1000)

type PolicyFactory func(threshold decimal.Decimal) RecurrencePolicy

var (
	policiesMu sync.RWMutex
	policies   = map[string]PolicyFactory{
		"default":   func(t decimal.Decimal) RecurrencePolicy { return DefaultPolicy{Threshold: t} },
		"category":  func(decimal.Decimal) RecurrencePolicy { return CategoryPolicy{} },
		"threshold": func(t decimal.Decimal) RecurrencePolicy { return ThresholdPolicy{Threshold: t} },
		"none":      func(decimal.Decimal) RecurrencePolicy { return NoRecurrence{} },
	}
)

// GetRecurrencePolicy builds the named policy.
func GetRecurrencePolicy(name string, threshold decimal.Decimal) (RecurrencePolicy, error) {
	policiesMu.RLock()
	f, ok := policies[name]
	policiesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown recurrence policy: %s", name)
	}
	return f(threshold), nil
}

// RegisterRecurrencePolicy adds or replaces a named policy.
func RegisterRecurrencePolicy(name string, f PolicyFactory) {
	policiesMu.Lock()
	defer policiesMu.Unlock()
	policies[name] = f
}
