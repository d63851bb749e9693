package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"trustgate/internal/domain"
	"trustgate/internal/storage"
)

// RegistryStore implements storage.RegistryStore using PostgreSQL.
type RegistryStore struct {
	pool *Pool
}

// NewRegistryStore creates a new RegistryStore.
func NewRegistryStore(pool *Pool) *RegistryStore {
	return &RegistryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RegistryStore = (*RegistryStore)(nil)

const entityColumns = "id, chain, type, address, display_name, created_at"

func (s *RegistryStore) FindEntity(ctx context.Context, chain domain.Chain, entityType domain.EntityType, address string) (domain.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE chain = $1 AND type = $2 AND address = $3
	`
	entity, err := scanEntity(s.pool.QueryRow(ctx, query, string(chain), string(entityType), address))
	if err != nil {
		if isNotFoundError(err) {
			return domain.Entity{}, storage.ErrNotFound
		}
		return domain.Entity{}, fmt.Errorf("find entity: %w", err)
	}
	return entity, nil
}

func (s *RegistryStore) FindEntitiesByAddress(ctx context.Context, address string) ([]domain.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE address = $1
		ORDER BY type ASC
	`
	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("find entities by address: %w", err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

func (s *RegistryStore) FindEntries(ctx context.Context, filter storage.EntryFilter) ([]storage.ScoredEntry, error) {
	query := `
		SELECT
			re.id, re.registry_id, re.entity_id, re.score, re.attributes, re.computed_at,
			r.slug, r.context,
			e.id, e.chain, e.type, e.address, e.display_name, e.created_at
		FROM registry_entries re
		JOIN registries r ON r.id = re.registry_id
		JOIN entities e ON e.id = re.entity_id
	`
	var conditions []string
	var args []any
	if len(filter.EntityIDs) > 0 {
		args = append(args, filter.EntityIDs)
		conditions = append(conditions, fmt.Sprintf("re.entity_id = ANY($%d)", len(args)))
	}
	if filter.Context != "" {
		args = append(args, filter.Context)
		conditions = append(conditions, fmt.Sprintf("r.context = $%d", len(args)))
	}
	if len(filter.RegistrySlugs) > 0 {
		args = append(args, filter.RegistrySlugs)
		conditions = append(conditions, fmt.Sprintf("r.slug = ANY($%d)", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer rows.Close()

	var scored []storage.ScoredEntry
	for rows.Next() {
		var se storage.ScoredEntry
		var attributes []byte
		err := rows.Scan(
			&se.Entry.ID, &se.Entry.RegistryID, &se.Entry.EntityID, &se.Entry.Score, &attributes, &se.Entry.ComputedAt,
			&se.RegistrySlug, &se.Context,
			&se.Entity.ID, &se.Entity.Chain, &se.Entity.Type, &se.Entity.Address, &se.Entity.DisplayName, &se.Entity.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if len(attributes) > 0 {
			if err := json.Unmarshal(attributes, &se.Entry.Attributes); err != nil {
				return nil, fmt.Errorf("decode entry attributes: %w", err)
			}
		}
		scored = append(scored, se)
	}
	return scored, rows.Err()
}

func (s *RegistryStore) ListRegistries(ctx context.Context) ([]storage.RegistryInfo, error) {
	query := `
		SELECT
			r.id, r.slug, r.name, r.description, r.context, r.version, r.last_ingested_at,
			COUNT(re.id)
		FROM registries r
		LEFT JOIN registry_entries re ON re.registry_id = r.id
		GROUP BY r.id
		ORDER BY r.slug ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list registries: %w", err)
	}
	defer rows.Close()

	var infos []storage.RegistryInfo
	for rows.Next() {
		var info storage.RegistryInfo
		err := rows.Scan(
			&info.Registry.ID, &info.Registry.Slug, &info.Registry.Name, &info.Registry.Description,
			&info.Registry.Context, &info.Registry.Version, &info.Registry.LastIngestedAt,
			&info.EntryCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan registry: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *RegistryStore) UpsertEntity(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	query := `
		INSERT INTO entities (chain, type, address, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chain, type, address) DO UPDATE SET
			display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE entities.display_name END
		RETURNING ` + entityColumns + `
	`
	row := s.pool.QueryRow(ctx, query, string(entity.Chain), string(entity.Type), entity.Address, entity.DisplayName)
	saved, err := scanEntity(row)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("upsert entity: %w", err)
	}
	return saved, nil
}

func (s *RegistryStore) UpsertRegistry(ctx context.Context, registry domain.Registry) (domain.Registry, error) {
	query := `
		INSERT INTO registries (slug, name, description, context, version)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			context = EXCLUDED.context,
			version = EXCLUDED.version
		RETURNING id, slug, name, description, context, version, last_ingested_at
	`
	row := s.pool.QueryRow(ctx, query, registry.Slug, registry.Name, registry.Description, registry.Context, registry.Version)
	var saved domain.Registry
	err := row.Scan(&saved.ID, &saved.Slug, &saved.Name, &saved.Description, &saved.Context, &saved.Version, &saved.LastIngestedAt)
	if err != nil {
		return domain.Registry{}, fmt.Errorf("upsert registry: %w", err)
	}
	return saved, nil
}

func (s *RegistryStore) UpsertEntry(ctx context.Context, entry domain.RegistryEntry) (domain.RegistryEntry, error) {
	attributes, err := json.Marshal(entry.Attributes)
	if err != nil {
		return domain.RegistryEntry{}, fmt.Errorf("encode entry attributes: %w", err)
	}
	query := `
		INSERT INTO registry_entries (registry_id, entity_id, score, attributes, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (registry_id, entity_id) DO UPDATE SET
			score = EXCLUDED.score,
			attributes = EXCLUDED.attributes,
			computed_at = EXCLUDED.computed_at
		RETURNING id, registry_id, entity_id, score, computed_at
	`
	row := s.pool.QueryRow(ctx, query, entry.RegistryID, entry.EntityID, entry.Score, attributes, entry.ComputedAt)
	var saved domain.RegistryEntry
	if err := row.Scan(&saved.ID, &saved.RegistryID, &saved.EntityID, &saved.Score, &saved.ComputedAt); err != nil {
		return domain.RegistryEntry{}, fmt.Errorf("upsert entry: %w", err)
	}
	saved.Attributes = entry.Attributes
	return saved, nil
}

func (s *RegistryStore) TouchRegistryIngested(ctx context.Context, slug string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE registries SET last_ingested_at = $1 WHERE slug = $2`, at, slug)
	if err != nil {
		return fmt.Errorf("touch registry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanEntity(row pgx.Row) (domain.Entity, error) {
	var entity domain.Entity
	err := row.Scan(&entity.ID, &entity.Chain, &entity.Type, &entity.Address, &entity.DisplayName, &entity.CreatedAt)
	return entity, err
}
