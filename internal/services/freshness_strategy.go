// Package services holds the orchestration between the local store, the
// bank aggregator and the broker.
//
// This file implements the strategies that decide whether an account's local
// transactions are fresh enough to answer an analysis request or need a bank
// sync first.

package services

import (
	"fmt"
	"time"

	"finey/internal/core"
	"finey/internal/storage"
)

// FreshnessChecker decides whether an account must be synced before a range
// can be served. state is nil for an account that was never synced.
type FreshnessChecker interface {
	NeedsSync(state *storage.SyncState, r core.DateRange, now time.Time, staleAfter time.Duration) bool
}

// CoverageChecker syncs only when the recorded coverage has gaps for the range.
type CoverageChecker struct{}

func (CoverageChecker) NeedsSync(state *storage.SyncState, r core.DateRange, _ time.Time, _ time.Duration) bool {
	return state == nil || !state.Covers(r)
}

// StaleChecker also re-syncs covered ranges that include today once the last
// sync is older than staleAfter, since today's transactions keep arriving.
type StaleChecker struct{}

func (StaleChecker) NeedsSync(state *storage.SyncState, r core.DateRange, now time.Time, staleAfter time.Duration) bool {
	if state == nil || !state.Covers(r) {
		return true
	}
	today := core.DateOf(now.UTC())
	if today.Before(r.Start.Time) || today.After(r.End.Time) {
		return false
	}
	return now.Sub(state.LastSyncedAt) >= staleAfter
}

// NeverChecker serves whatever the store holds. Used with fixtures and
// DATA_BACKEND=memory, where no aggregator is reachable.
type NeverChecker struct{}

func (NeverChecker) NeedsSync(*storage.SyncState, core.DateRange, time.Time, time.Duration) bool {
	return false
}

var freshnessStrategies = map[string]FreshnessChecker{
	"coverage": CoverageChecker{},
	"stale":    StaleChecker{},
	"never":    NeverChecker{},
}

// GetFreshnessChecker returns the checker registered under name.
func GetFreshnessChecker(name string) (FreshnessChecker, error) {
	checker, ok := freshnessStrategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown sync freshness policy: %s", name)
	}
	return checker, nil
}

// RegisterFreshnessChecker adds or replaces a named checker.
func RegisterFreshnessChecker(name string, checker FreshnessChecker) {
	freshnessStrategies[name] = checker
}
