package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openleague/courtside/internal/league/storage"
)

// KeyedStateStore methods (MetaStore backing tables)

// LoadKeyedState returns all stored entries for the referenced entities.
func (s *Store) LoadKeyedState(ctx context.Context, refs []storage.Ref) (map[storage.Key]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	out := make(map[storage.Key]any)
	for _, ref := range refs {
		if strings.TrimSpace(ref.EntityType) == "" || strings.TrimSpace(ref.EntityID) == "" {
			return nil, fmt.Errorf("entity type and id are required")
		}
		rows, err := s.sqlDB.QueryContext(ctx, `
SELECT field, value_json
FROM keyed_state
WHERE entity_type = ? AND entity_id = ?`, ref.EntityType, ref.EntityID)
		if err != nil {
			return nil, fmt.Errorf("load keyed state: %w", err)
		}
		for rows.Next() {
			var (
				field string
				raw   []byte
			)
			if err := rows.Scan(&field, &raw); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan keyed state: %w", err)
			}
			var value any
			if err := json.Unmarshal(raw, &value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("decode keyed value %s/%s/%s: %w", ref.EntityType, ref.EntityID, field, err)
			}
			out[storage.Key{EntityType: ref.EntityType, EntityID: ref.EntityID, Field: field}] = value
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate keyed state: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

// FlushKeyedState upserts the given entries in a single transaction.
func (s *Store) FlushKeyedState(ctx context.Context, entries map[storage.Key]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixMilli()
	for key, value := range entries {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode keyed value %s/%s/%s: %w", key.EntityType, key.EntityID, key.Field, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO keyed_state (entity_type, entity_id, field, value_json, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (entity_type, entity_id, field)
DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`,
			key.EntityType, key.EntityID, key.Field, raw, now,
		); err != nil {
			return fmt.Errorf("upsert keyed state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit keyed state: %w", err)
	}
	return nil
}
