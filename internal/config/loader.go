package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if LC_CONFIG is set
//  3. env (prefix LC_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("LC_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: LC_GUILD_ID, LC_LOOT_LOOKBACK_DAYS, ...
	// Keys keep their underscores to match the koanf tags on the struct.
	envProvider := env.Provider("LC_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "lc_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that would make a run meaningless. It returns
// an error wrapping ErrInvalidConfig; a run must abort before processing any
// item when validation fails.
func (c *Config) Validate() error {
	if c.PolicyMode != PolicyModeSimple && c.PolicyMode != PolicyModeCustom {
		return fmt.Errorf("%w: unknown policy mode %q", ErrInvalidConfig, c.PolicyMode)
	}
	if c.PolicyMode == PolicyModeCustom && strings.TrimSpace(c.CustomPolicyText) == "" {
		return fmt.Errorf("%w: custom policy mode requires custom_policy_text", ErrInvalidConfig)
	}
	if c.AttendanceLookbackDays <= 0 {
		return fmt.Errorf("%w: attendance_lookback_days must be positive", ErrInvalidConfig)
	}
	if c.LootLookbackDays <= 0 {
		return fmt.Errorf("%w: loot_lookback_days must be positive", ErrInvalidConfig)
	}
	if c.PromptMaxChars <= 0 {
		return fmt.Errorf("%w: prompt_max_chars must be positive", ErrInvalidConfig)
	}
	if c.LLMMaxRetries < 0 {
		return fmt.Errorf("%w: llm_max_retries must not be negative", ErrInvalidConfig)
	}
	if c.ReferenceDate != "" {
		if _, err := time.Parse("2006-01-02", c.ReferenceDate); err != nil {
			return fmt.Errorf("%w: reference_date must be YYYY-MM-DD: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ReferenceTime resolves the evaluation clock: the pinned reference date
// when configured, otherwise the supplied session start time. Lookback
// windows are anchored here, never at wall-clock reads mid-run.
func (c *Config) ReferenceTime(sessionStart time.Time) time.Time {
	if c.ReferenceDate == "" {
		return sessionStart
	}
	t, err := time.Parse("2006-01-02", c.ReferenceDate)
	if err != nil {
		return sessionStart
	}
	return t
}
