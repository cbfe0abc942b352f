// Package source defines the contracts the advisor consumes from the
// external data providers. Authentication, pagination and rate-limit
// backoff live behind these interfaces; the core only sees typed snapshots
// and a retryable fetch error.
package source

import (
	"context"

	"github.com/raidtools/lootcouncil/internal/domain/model"
)

// GuildSource returns the raw wishlist/attendance/loot snapshot for a
// guild. TMB is the eligibility source of truth for candidates.
type GuildSource interface {
	FetchGuildData(ctx context.Context, guildID string) (model.TMBSnapshot, error)
}

// ParseSource returns performance percentiles for characters in one zone.
// A rate-limit failure from the provider must surface as a retryable
// FetchError, never abort the whole run.
type ParseSource interface {
	FetchParses(ctx context.Context, ids []model.Identity, zone string) (model.ParseSnapshot, error)
}

// GearSource returns equipped gear for characters. The provider may be
// disabled entirely; the run then proceeds with no gear data at all.
type GearSource interface {
	FetchEquipped(ctx context.Context, ids []model.Identity) (model.GearSnapshot, error)
}
