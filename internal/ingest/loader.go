// Package ingest loads registry snapshot files into the store. A snapshot is
// JSONL: the first line declares the registry, every following line is one
// scored entity observation. Re-running a snapshot is idempotent; entries
// overwrite on (registry, entity).
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"trustgate/internal/domain"
	"trustgate/internal/storage"
)

// Loader writes snapshot contents through the storage write contract.
type Loader struct {
	store  storage.RegistryStore
	logger *slog.Logger
}

// New constructs a Loader.
func New(store storage.RegistryStore, logger *slog.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

type registryHeader struct {
	Registry struct {
		Slug        string `json:"slug"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Context     string `json:"context"`
		Version     string `json:"version"`
	} `json:"registry"`
}

type entryLine struct {
	Entity struct {
		Type        string `json:"type"`
		Address     string `json:"address"`
		DisplayName string `json:"display_name"`
	} `json:"entity"`
	Score      float64        `json:"score"`
	Attributes map[string]any `json:"attributes"`
	ComputedAt time.Time      `json:"computed_at"`
}

// LoadFile ingests one snapshot file and returns the number of entries
// written.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, fmt.Errorf("read snapshot header: %w", err)
		}
		return 0, fmt.Errorf("snapshot %s is empty", path)
	}
	var header registryHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return 0, fmt.Errorf("parse registry header: %w", err)
	}
	if header.Registry.Slug == "" || header.Registry.Context == "" {
		return 0, fmt.Errorf("registry header in %s requires slug and context", path)
	}

	registry, err := l.store.UpsertRegistry(ctx, domain.Registry{
		Slug:        header.Registry.Slug,
		Name:        header.Registry.Name,
		Description: header.Registry.Description,
		Context:     header.Registry.Context,
		Version:     header.Registry.Version,
	})
	if err != nil {
		return 0, fmt.Errorf("upsert registry %s: %w", header.Registry.Slug, err)
	}

	count := 0
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line entryLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return count, fmt.Errorf("%s:%d: parse entry: %w", path, lineNo, err)
		}
		if err := l.loadEntry(ctx, registry, line); err != nil {
			return count, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read snapshot: %w", err)
	}

	if err := l.store.TouchRegistryIngested(ctx, registry.Slug, time.Now().UTC()); err != nil {
		return count, fmt.Errorf("touch registry %s: %w", registry.Slug, err)
	}

	l.logger.InfoContext(ctx, "snapshot ingested",
		"registry", registry.Slug,
		"context", registry.Context,
		"entries", count,
		"path", path,
	)
	return count, nil
}

func (l *Loader) loadEntry(ctx context.Context, registry domain.Registry, line entryLine) error {
	entityType, err := domain.ParseEntityType(line.Entity.Type)
	if err != nil {
		return err
	}
	if err := domain.ValidateAddress(line.Entity.Address); err != nil {
		return fmt.Errorf("entity %q: %w", line.Entity.Address, err)
	}
	computedAt := line.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now().UTC()
	}

	entity, err := l.store.UpsertEntity(ctx, domain.Entity{
		Chain:       domain.ChainSolana,
		Type:        entityType,
		Address:     line.Entity.Address,
		DisplayName: line.Entity.DisplayName,
	})
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}

	_, err = l.store.UpsertEntry(ctx, domain.RegistryEntry{
		RegistryID: registry.ID,
		EntityID:   entity.ID,
		Score:      line.Score,
		Attributes: line.Attributes,
		ComputedAt: computedAt,
	})
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

// loadConcurrency bounds parallel snapshot files per directory load.
const loadConcurrency = 4

// LoadDir ingests every .jsonl file in a directory, a bounded number at a
// time, and returns the total number of entries written.
func (l *Loader) LoadDir(ctx context.Context, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no .jsonl snapshots in %s", dir)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	counts := make([]int, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			count, err := l.LoadFile(ctx, path)
			counts[i] = count
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, count := range counts {
		total += count
	}
	return total, nil
}
