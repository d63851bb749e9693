package trust

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"trustgate/internal/domain"
	"trustgate/internal/storage"
	pkgerrors "trustgate/pkg/errors"
)

// Top-N bounds.
const (
	MinTopLimit = 1
	MaxTopLimit = 100
)

// ErrUnknownContext is returned when a request names a context no rule is
// configured for.
var ErrUnknownContext = pkgerrors.New(pkgerrors.CodeNotFound, "unknown context")

// Provenance identifies one registry entry that contributed to a score.
type Provenance struct {
	Registry   string
	RecordID   uuid.UUID
	ComputedAt time.Time
}

// Result is one aggregated trust judgment for an entity within a context.
// EntityID is the stored entity's ID when the entity is known, or the queried
// identifier when it is not (an unknown entity still yields a neutral result).
type Result struct {
	EntityID   string
	Context    string
	Score      float64
	Hint       domain.DecisionHint
	Provenance []Provenance
}

// RankedEntity is one leaderboard row. Score and hint come from the raw entry,
// not a cross-registry mean: top-N is a per-registry view.
type RankedEntity struct {
	EntityID    uuid.UUID
	DisplayName string
	Context     string
	Score       float64
	Hint        domain.DecisionHint
	Registry    string
	ComputedAt  time.Time
}

// Aggregator computes trust judgments from registry store reads.
type Aggregator struct {
	store storage.RegistryStore
	rules *Ruleset
}

// New constructs an Aggregator.
func New(store storage.RegistryStore, rules *Ruleset) *Aggregator {
	return &Aggregator{store: store, rules: rules}
}

// QueryEntity aggregates every matching entry for one (type, address) pair
// within a context. An entity that is absent, or present with no entries in
// the context, yields the neutral result: score 0, review, empty provenance.
// The two cases are deliberately indistinguishable to callers.
func (a *Aggregator) QueryEntity(ctx context.Context, entityType domain.EntityType, address, trustContext string) (Result, error) {
	rule, ok := a.rules.Rule(trustContext)
	if !ok {
		return Result{}, ErrUnknownContext
	}

	entity, err := a.store.FindEntity(ctx, domain.ChainSolana, entityType, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return neutralResult(address, trustContext), nil
		}
		return Result{}, fmt.Errorf("find entity: %w", err)
	}

	entries, err := a.store.FindEntries(ctx, storage.EntryFilter{
		EntityIDs: []uuid.UUID{entity.ID},
		Context:   trustContext,
	})
	if err != nil {
		return Result{}, fmt.Errorf("find entries: %w", err)
	}
	if len(entries) == 0 {
		// Echo the queried identifier, same as the absent-entity path, so the
		// response never reveals whether the entity is stored.
		return neutralResult(address, trustContext), nil
	}

	return aggregate(entity.ID.String(), trustContext, entries, rule), nil
}

// QueryByAddress aggregates entries for every entity sharing an address,
// grouped per context. When trustContext is non-empty only that context is
// considered. Entry reads fan out per entity with shared cancellation.
func (a *Aggregator) QueryByAddress(ctx context.Context, address, trustContext string) ([]Result, error) {
	if trustContext != "" {
		if _, ok := a.rules.Rule(trustContext); !ok {
			return nil, ErrUnknownContext
		}
	}

	entities, err := a.store.FindEntitiesByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("find entities by address: %w", err)
	}
	if len(entities) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no entity found for address")
	}

	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var all []storage.ScoredEntry
	for _, entity := range entities {
		g.Go(func() error {
			entries, err := a.store.FindEntries(ctx, storage.EntryFilter{
				EntityIDs: []uuid.UUID{entity.ID},
				Context:   trustContext,
			})
			if err != nil {
				return fmt.Errorf("find entries for %s: %w", entity.ID, err)
			}
			mu.Lock()
			all = append(all, entries...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byContext := make(map[string][]storage.ScoredEntry)
	for _, entry := range all {
		byContext[entry.Context] = append(byContext[entry.Context], entry)
	}

	contexts := make([]string, 0, len(byContext))
	for name := range byContext {
		contexts = append(contexts, name)
	}
	sort.Strings(contexts)

	results := make([]Result, 0, len(byContext))
	for _, name := range contexts {
		rule, ok := a.rules.Rule(name)
		if !ok {
			// Registry data for an unconfigured context cannot be judged.
			continue
		}
		results = append(results, aggregate(address, name, byContext[name], rule))
	}
	return results, nil
}

// TopEntities returns the top-N leaderboard for a context, optionally
// restricted to an allow-list of registry slugs. Rows are ordered by raw entry
// score descending with ties broken by entry ID ascending.
func (a *Aggregator) TopEntities(ctx context.Context, trustContext string, limit int, registrySlugs []string) ([]RankedEntity, error) {
	if limit < MinTopLimit || limit > MaxTopLimit {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidRequest, "limit must be between %d and %d", MinTopLimit, MaxTopLimit)
	}
	rule, ok := a.rules.Rule(trustContext)
	if !ok {
		return nil, ErrUnknownContext
	}

	entries, err := a.store.FindEntries(ctx, storage.EntryFilter{
		Context:       trustContext,
		RegistrySlugs: registrySlugs,
	})
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Entry.Score != entries[j].Entry.Score {
			return entries[i].Entry.Score > entries[j].Entry.Score
		}
		return entries[i].Entry.ID.String() < entries[j].Entry.ID.String()
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	ranked := make([]RankedEntity, 0, len(entries))
	for _, entry := range entries {
		ranked = append(ranked, RankedEntity{
			EntityID:    entry.Entity.ID,
			DisplayName: entry.Entity.DisplayName,
			Context:     trustContext,
			Score:       entry.Entry.Score,
			Hint:        rule.Hint(entry.Entry.Score),
			Registry:    entry.RegistrySlug,
			ComputedAt:  entry.Entry.ComputedAt,
		})
	}
	return ranked, nil
}

// aggregate computes the equal-weight mean over entries and a deterministic
// provenance ordering (registry slug ascending, record ID as tiebreak).
func aggregate(entityID, trustContext string, entries []storage.ScoredEntry, rule Rule) Result {
	var sum float64
	provenance := make([]Provenance, 0, len(entries))
	for _, entry := range entries {
		sum += entry.Entry.Score
		provenance = append(provenance, Provenance{
			Registry:   entry.RegistrySlug,
			RecordID:   entry.Entry.ID,
			ComputedAt: entry.Entry.ComputedAt,
		})
	}
	sort.Slice(provenance, func(i, j int) bool {
		if provenance[i].Registry != provenance[j].Registry {
			return provenance[i].Registry < provenance[j].Registry
		}
		return provenance[i].RecordID.String() < provenance[j].RecordID.String()
	})

	score := round4(sum / float64(len(entries)))
	return Result{
		EntityID:   entityID,
		Context:    trustContext,
		Score:      score,
		Hint:       rule.Hint(score),
		Provenance: provenance,
	}
}

func neutralResult(entityID, trustContext string) Result {
	return Result{
		EntityID:   entityID,
		Context:    trustContext,
		Score:      0,
		Hint:       domain.DecisionReview,
		Provenance: []Provenance{},
	}
}

// round4 rounds to 4 decimal places, half away from zero.
func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
