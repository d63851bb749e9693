// Package storage defines the narrow read/write contracts the core depends
// on. The query path only reads registry data; registry writes belong to the
// ingestion pipeline; the payment ledger is insert-only.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trustgate/internal/domain"
)

// EntryFilter narrows FindEntries. Zero-valued fields are ignored.
type EntryFilter struct {
	EntityIDs     []uuid.UUID
	Context       string
	RegistrySlugs []string
}

// ScoredEntry is a registry entry joined to its registry and entity, the shape
// both the aggregator and the leaderboard consume.
type ScoredEntry struct {
	Entry        domain.RegistryEntry
	RegistrySlug string
	Context      string
	Entity       domain.Entity
}

// RegistryInfo is a registry plus its entry count, for the listing endpoint.
type RegistryInfo struct {
	Registry   domain.Registry
	EntryCount int64
}

// RegistryStore is the read side required by the core plus the write side
// used exclusively by ingestion. Read order of FindEntries is unspecified;
// callers that need determinism must sort.
type RegistryStore interface {
	FindEntity(ctx context.Context, chain domain.Chain, entityType domain.EntityType, address string) (domain.Entity, error)
	FindEntitiesByAddress(ctx context.Context, address string) ([]domain.Entity, error)
	FindEntries(ctx context.Context, filter EntryFilter) ([]ScoredEntry, error)
	ListRegistries(ctx context.Context) ([]RegistryInfo, error)

	UpsertEntity(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	UpsertRegistry(ctx context.Context, registry domain.Registry) (domain.Registry, error)
	UpsertEntry(ctx context.Context, entry domain.RegistryEntry) (domain.RegistryEntry, error)
	TouchRegistryIngested(ctx context.Context, slug string, at time.Time) error
}

// PaymentLedger is the append-only record of payment attempts. No update or
// delete exists: one terminal row per attempt, written exactly once.
type PaymentLedger interface {
	Append(ctx context.Context, attempt domain.PaymentAttempt) error
}
