package domain

import (
	"time"

	"github.com/google/uuid"
)

// Registry is a named, versioned source of trust signals bound to exactly one
// context. Unique on slug. LastIngestedAt is display metadata only; staleness
// never affects scoring.
type Registry struct {
	ID             uuid.UUID
	Slug           string
	Name           string
	Description    string
	Context        string
	Version        string
	LastIngestedAt *time.Time
}

// RegistryEntry is one scored observation of one entity within one registry.
// Unique on (registry, entity): the latest observation overwrites. Score is
// unbounded; the registry's context defines its meaning.
type RegistryEntry struct {
	ID         uuid.UUID
	RegistryID uuid.UUID
	EntityID   uuid.UUID
	Score      float64
	Attributes map[string]any
	ComputedAt time.Time
}
