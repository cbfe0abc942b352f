// Package config defines run configuration and its loading rules.
//
// Conventions follow the rest of the repo: defaults come from New, a YAML
// file and LC_-prefixed environment variables layer on top, and validation
// failures wrap this package's sentinel errors.
package config

import (
	"time"
)

// Policy modes.
const (
	PolicyModeSimple = "simple"
	PolicyModeCustom = "custom"
)

// Config contains everything one evaluation run needs. It is snapshotted
// into the session at run start; later edits never affect a running session.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// GuildID selects the guild on the wishlist/attendance/loot provider.
	GuildID string `koanf:"guild_id"`

	// AttendanceLookbackDays bounds the attendance percentage window.
	AttendanceLookbackDays int `koanf:"attendance_lookback_days"`

	// LootLookbackDays bounds the recent-loot window.
	LootLookbackDays int `koanf:"loot_lookback_days"`

	// Metric toggles. A disabled metric is omitted from the metric set and
	// never reaches the prompt.
	ShowAttendance       bool `koanf:"show_attendance"`
	ShowRecentLoot       bool `koanf:"show_recent_loot"`
	ShowWishlistPosition bool `koanf:"show_wishlist_position"`
	ShowParses           bool `koanf:"show_parses"`
	ShowIlvlUpgrade      bool `koanf:"show_ilvl_upgrade"`
	ShowTierTokens       bool `koanf:"show_tier_tokens"`

	// ShowAltStatus controls whether alt characters are evaluated at all;
	// when false, alts are filtered from the candidate pool.
	ShowAltStatus bool `koanf:"show_alt_status"`

	// ShowRaiderNotes surfaces officer notes in prompts.
	ShowRaiderNotes bool `koanf:"show_raider_notes"`

	// MetricOrder is the priority order for simple-mode policy rules.
	// Metrics missing from the list are appended in default order.
	MetricOrder []string `koanf:"metric_order"`

	// PolicyMode selects "simple" (rendered rule list) or "custom"
	// (operator-authored text).
	PolicyMode string `koanf:"policy_mode"`

	// CustomPolicyText is the operator-authored policy for custom mode.
	CustomPolicyText string `koanf:"custom_policy_text"`

	// CustomPolicyMaxChars caps custom policy text. Oversized text fails
	// the run; it is never truncated.
	CustomPolicyMaxChars int `koanf:"custom_policy_max_chars"`

	// TankPriority prepends the tank-first rule to any policy.
	TankPriority bool `koanf:"tank_priority"`

	// MainsOverAlts prepends the mains-first rule when alts are shown.
	MainsOverAlts bool `koanf:"mains_over_alts"`

	// GearProviderEnabled toggles the equipment provider. When false the
	// run proceeds with no candidate having gear data.
	GearProviderEnabled bool `koanf:"gear_provider_enabled"`

	// ParseZone and ParseZoneLabel select which zone's percentiles feed
	// the parse metrics.
	ParseZone      string `koanf:"parse_zone"`
	ParseZoneLabel string `koanf:"parse_zone_label"`

	// SessionLootCarryover feeds decisions made earlier in a zone run into
	// later items' recent-loot counts.
	SessionLootCarryover bool `koanf:"session_loot_carryover"`

	// ReferenceDate optionally pins the evaluation clock (YYYY-MM-DD) for
	// reproducing past runs. Empty means the session start time.
	ReferenceDate string `koanf:"reference_date"`

	// LLM provider selection and limits.
	LLMProvider    string        `koanf:"llm_provider"`
	LLMModel       string        `koanf:"llm_model"`
	LLMAPIKey      string        `koanf:"llm_api_key"`
	LLMBaseURL     string        `koanf:"llm_base_url"`
	LLMTimeout     time.Duration `koanf:"llm_timeout"`
	LLMMaxRetries  int           `koanf:"llm_max_retries"`
	LLMCallDelay   time.Duration `koanf:"llm_call_delay"`
	PromptMaxChars int           `koanf:"prompt_max_chars"`

	// FetchTimeout bounds each external data fetch.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		AttendanceLookbackDays: 60,
		LootLookbackDays:       14,
		ShowAttendance:         true,
		ShowRecentLoot:         true,
		ShowWishlistPosition:   true,
		ShowParses:             false,
		ShowIlvlUpgrade:        false,
		ShowTierTokens:         false,
		ShowAltStatus:          true,
		ShowRaiderNotes:        false,
		MetricOrder:            nil,
		PolicyMode:             PolicyModeSimple,
		CustomPolicyMaxChars:   4000,
		TankPriority:           false,
		MainsOverAlts:          true,
		GearProviderEnabled:    false,
		SessionLootCarryover:   true,
		LLMProvider:            "anthropic",
		LLMModel:               "claude-sonnet-4-20250514",
		LLMTimeout:             2 * time.Minute,
		LLMMaxRetries:          3,
		LLMCallDelay:           2 * time.Second,
		PromptMaxChars:         24000,
		FetchTimeout:           30 * time.Second,
	}
}
