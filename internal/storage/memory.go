package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"trustgate/internal/domain"
)

// In-memory stores back local development and unit tests. They intentionally
// favor clarity over performance.
type InMemoryRegistryStore struct {
	mu         sync.RWMutex
	entities   map[uuid.UUID]domain.Entity
	entityKeys map[string]uuid.UUID // chain|type|address -> entity ID
	registries map[uuid.UUID]domain.Registry
	slugs      map[string]uuid.UUID // slug -> registry ID
	entries    map[string]domain.RegistryEntry // registryID|entityID
}

func NewInMemoryRegistryStore() *InMemoryRegistryStore {
	return &InMemoryRegistryStore{
		entities:   make(map[uuid.UUID]domain.Entity),
		entityKeys: make(map[string]uuid.UUID),
		registries: make(map[uuid.UUID]domain.Registry),
		slugs:      make(map[string]uuid.UUID),
		entries:    make(map[string]domain.RegistryEntry),
	}
}

func entityKey(chain domain.Chain, entityType domain.EntityType, address string) string {
	return string(chain) + "|" + string(entityType) + "|" + address
}

func entryKey(registryID, entityID uuid.UUID) string {
	return registryID.String() + "|" + entityID.String()
}

func (s *InMemoryRegistryStore) FindEntity(_ context.Context, chain domain.Chain, entityType domain.EntityType, address string) (domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.entityKeys[entityKey(chain, entityType, address)]; ok {
		return s.entities[id], nil
	}
	return domain.Entity{}, ErrNotFound
}

func (s *InMemoryRegistryStore) FindEntitiesByAddress(_ context.Context, address string) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found []domain.Entity
	for _, entity := range s.entities {
		if entity.Address == address {
			found = append(found, entity)
		}
	}
	return found, nil
}

func (s *InMemoryRegistryStore) FindEntries(_ context.Context, filter EntryFilter) ([]ScoredEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wantEntity := make(map[uuid.UUID]bool, len(filter.EntityIDs))
	for _, id := range filter.EntityIDs {
		wantEntity[id] = true
	}
	wantSlug := make(map[string]bool, len(filter.RegistrySlugs))
	for _, slug := range filter.RegistrySlugs {
		wantSlug[slug] = true
	}

	var matched []ScoredEntry
	for _, entry := range s.entries {
		if len(wantEntity) > 0 && !wantEntity[entry.EntityID] {
			continue
		}
		registry, ok := s.registries[entry.RegistryID]
		if !ok {
			continue
		}
		if filter.Context != "" && registry.Context != filter.Context {
			continue
		}
		if len(wantSlug) > 0 && !wantSlug[registry.Slug] {
			continue
		}
		entity, ok := s.entities[entry.EntityID]
		if !ok {
			continue
		}
		matched = append(matched, ScoredEntry{
			Entry:        entry,
			RegistrySlug: registry.Slug,
			Context:      registry.Context,
			Entity:       entity,
		})
	}
	return matched, nil
}

func (s *InMemoryRegistryStore) ListRegistries(_ context.Context) ([]RegistryInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[uuid.UUID]int64)
	for _, entry := range s.entries {
		counts[entry.RegistryID]++
	}
	infos := make([]RegistryInfo, 0, len(s.registries))
	for id, registry := range s.registries {
		infos = append(infos, RegistryInfo{Registry: registry, EntryCount: counts[id]})
	}
	return infos, nil
}

func (s *InMemoryRegistryStore) UpsertEntity(_ context.Context, entity domain.Entity) (domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityKey(entity.Chain, entity.Type, entity.Address)
	if existingID, ok := s.entityKeys[key]; ok {
		existing := s.entities[existingID]
		if entity.DisplayName != "" {
			existing.DisplayName = entity.DisplayName
		}
		s.entities[existingID] = existing
		return existing, nil
	}
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}
	s.entities[entity.ID] = entity
	s.entityKeys[key] = entity.ID
	return entity, nil
}

func (s *InMemoryRegistryStore) UpsertRegistry(_ context.Context, registry domain.Registry) (domain.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.slugs[registry.Slug]; ok {
		existing := s.registries[existingID]
		existing.Name = registry.Name
		existing.Description = registry.Description
		existing.Context = registry.Context
		existing.Version = registry.Version
		s.registries[existingID] = existing
		return existing, nil
	}
	if registry.ID == uuid.Nil {
		registry.ID = uuid.New()
	}
	s.registries[registry.ID] = registry
	s.slugs[registry.Slug] = registry.ID
	return registry, nil
}

func (s *InMemoryRegistryStore) UpsertEntry(_ context.Context, entry domain.RegistryEntry) (domain.RegistryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey(entry.RegistryID, entry.EntityID)
	if existing, ok := s.entries[key]; ok {
		// Latest observation overwrites, identity is preserved.
		entry.ID = existing.ID
	} else if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.entries[key] = entry
	return entry, nil
}

func (s *InMemoryRegistryStore) TouchRegistryIngested(_ context.Context, slug string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.slugs[slug]
	if !ok {
		return ErrNotFound
	}
	registry := s.registries[id]
	registry.LastIngestedAt = &at
	s.registries[id] = registry
	return nil
}

// InMemoryPaymentLedger is the append-only ledger for development and tests.
type InMemoryPaymentLedger struct {
	mu       sync.Mutex
	attempts []domain.PaymentAttempt
	seen     map[uuid.UUID]bool
}

func NewInMemoryPaymentLedger() *InMemoryPaymentLedger {
	return &InMemoryPaymentLedger{seen: make(map[uuid.UUID]bool)}
}

func (l *InMemoryPaymentLedger) Append(_ context.Context, attempt domain.PaymentAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[attempt.RequestID] {
		return ErrDuplicateAttempt
	}
	l.seen[attempt.RequestID] = true
	l.attempts = append(l.attempts, attempt)
	return nil
}

// Attempts returns a copy of recorded attempts, oldest first.
func (l *InMemoryPaymentLedger) Attempts() []domain.PaymentAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.PaymentAttempt{}, l.attempts...)
}
