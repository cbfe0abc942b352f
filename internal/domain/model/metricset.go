package model

import (
	"fmt"
	"strconv"
)

// MetricState is the tri-state availability of a derived metric. Keeping
// "unknown" distinct from "zero" is load-bearing: a candidate with no
// attendance records in the window must never read as 0% attendance.
type MetricState int

const (
	// MetricAvailable means the value was computed from source data.
	MetricAvailable MetricState = iota
	// MetricUnavailable means the source data needed to compute the value
	// was missing for this candidate.
	MetricUnavailable
	// MetricDisabled means the metric is toggled off in configuration and
	// must not reach the prompt.
	MetricDisabled
)

// MetricValue is a numeric metric with explicit availability.
type MetricValue struct {
	state MetricState
	value float64
}

// AvailableMetric wraps a computed value.
func AvailableMetric(v float64) MetricValue {
	return MetricValue{state: MetricAvailable, value: v}
}

// UnavailableMetric marks a metric whose source data is missing.
func UnavailableMetric() MetricValue {
	return MetricValue{state: MetricUnavailable}
}

// DisabledMetric marks a metric toggled off by configuration.
func DisabledMetric() MetricValue {
	return MetricValue{state: MetricDisabled}
}

// State returns the availability state.
func (v MetricValue) State() MetricState { return v.state }

// Available reports whether a computed value is present.
func (v MetricValue) Available() bool { return v.state == MetricAvailable }

// Disabled reports whether the metric was toggled off.
func (v MetricValue) Disabled() bool { return v.state == MetricDisabled }

// Value returns the computed value; ok is false unless the state is available.
func (v MetricValue) Value() (float64, bool) {
	if v.state != MetricAvailable {
		return 0, false
	}
	return v.value, true
}

// Format renders the value with the given precision, or "unknown" when the
// metric is unavailable. Disabled metrics should be filtered before display.
func (v MetricValue) Format(decimals int) string {
	if v.state != MetricAvailable {
		return "unknown"
	}
	if decimals <= 0 {
		return strconv.FormatInt(int64(v.value), 10)
	}
	return fmt.Sprintf("%.*f", decimals, v.value)
}

// MarshalJSON renders the tri-state explicitly so exported decisions keep
// their audit snapshot readable.
func (v MetricValue) MarshalJSON() ([]byte, error) {
	switch v.state {
	case MetricAvailable:
		return []byte(fmt.Sprintf(`{"state":"available","value":%s}`, strconv.FormatFloat(v.value, 'f', -1, 64))), nil
	case MetricUnavailable:
		return []byte(`{"state":"unavailable"}`), nil
	default:
		return []byte(`{"state":"disabled"}`), nil
	}
}

// Metric names the derived metrics, in the vocabulary the policy
// configuration uses for ordering and toggles.
type Metric string

// Derived metric identifiers.
const (
	MetricAttendance       Metric = "attendance"
	MetricRecentLoot       Metric = "recent_loot"
	MetricWishlistPosition Metric = "wishlist_position"
	MetricParses           Metric = "parses"
	MetricIlvlUpgrade      Metric = "ilvl_upgrade"
	MetricTierTokens       Metric = "tier_tokens"
)

// AllMetrics lists every orderable metric, in default priority order.
func AllMetrics() []Metric {
	return []Metric{
		MetricAttendance,
		MetricRecentLoot,
		MetricWishlistPosition,
		MetricParses,
		MetricIlvlUpgrade,
		MetricTierTokens,
	}
}

// MetricSet holds the derived, per-candidate, per-item values computed from
// a CandidateProfile plus run configuration. Identical profile, item and
// configuration always produce an identical set.
type MetricSet struct {
	AttendancePct     MetricValue
	RecentLootCount   MetricValue
	WishlistPosition  MetricValue
	BestParse         MetricValue
	MedianParse       MetricValue
	IlvlUpgrade       MetricValue
	TierTokenProgress MetricValue

	// Flags carried alongside the numeric metrics.
	IsAlt        bool
	Offspec      bool
	TankPriority bool

	// SessionAllocations counts items already won earlier in the same
	// evaluation session (zone mode only; always 0 for single items).
	SessionAllocations int
}
