// Package sqlite provides SQLite-backed persistence for the league journal
// and keyed state.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/openleague/courtside/internal/platform/storage/sqlitemigrate"

	"github.com/openleague/courtside/internal/league/event"
	"github.com/openleague/courtside/internal/league/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed journal and keyed-state persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a league SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendEvent atomically appends an event and returns it with its sequence
// number assigned.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	stored, err := s.AppendEvents(ctx, []event.Event{evt})
	if err != nil {
		return event.Event{}, err
	}
	return stored[0], nil
}

// AppendEvents atomically appends a batch of events in order within a single
// transaction. Either every event is persisted with consecutive sequence
// numbers or none is.
func (s *Store) AppendEvents(ctx context.Context, evts []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(evts) == 0 {
		return nil, nil
	}

	stored := make([]event.Event, 0, len(evts))
	for _, evt := range evts {
		evt.LeagueID = strings.TrimSpace(evt.LeagueID)
		if evt.LeagueID == "" {
			return nil, fmt.Errorf("league id is required")
		}
		if !evt.Type.IsValid() {
			return nil, fmt.Errorf("event type is required")
		}
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}
		evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
		stored = append(stored, evt)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range stored {
		if err := appendInTx(ctx, tx, &stored[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit events: %w", err)
	}
	return stored, nil
}

func appendInTx(ctx context.Context, tx *sql.Tx, evt *event.Event) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO league_event_seq (league_id, next_seq) VALUES (?, 1)`,
		evt.LeagueID,
	); err != nil {
		return fmt.Errorf("init event seq: %w", err)
	}

	var seq int64
	row := tx.QueryRowContext(ctx, `
SELECT next_seq FROM league_event_seq WHERE league_id = ?`, evt.LeagueID)
	if err := row.Scan(&seq); err != nil {
		return fmt.Errorf("get event seq: %w", err)
	}
	evt.Seq = uint64(seq)

	if _, err := tx.ExecContext(ctx, `
UPDATE league_event_seq SET next_seq = next_seq + 1 WHERE league_id = ?`,
		evt.LeagueID,
	); err != nil {
		return fmt.Errorf("increment event seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO league_events (
	league_id,
	seq,
	timestamp,
	event_type,
	effect_id,
	proposal_id,
	payload_json
) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.LeagueID,
		seq,
		evt.Timestamp.UnixMilli(),
		string(evt.Type),
		evt.EffectID,
		evt.ProposalID,
		evt.PayloadJSON,
	); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEventsByTypes returns events of the given types in sequence order.
func (s *Store) ListEventsByTypes(ctx context.Context, leagueID string, types []event.Type) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	leagueID = strings.TrimSpace(leagueID)
	if leagueID == "" {
		return nil, fmt.Errorf("league id is required")
	}
	if len(types) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(types))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(types)+1)
	args = append(args, leagueID)
	for _, t := range types {
		args = append(args, string(t))
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT seq, timestamp, event_type, effect_id, proposal_id, payload_json
FROM league_events
WHERE league_id = ? AND event_type IN (`+placeholders+`)
ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var (
			evt    event.Event
			seq    int64
			millis int64
			etype  string
		)
		evt.LeagueID = leagueID
		if err := rows.Scan(&seq, &millis, &etype, &evt.EffectID, &evt.ProposalID, &evt.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Timestamp = time.UnixMilli(millis).UTC()
		evt.Type = event.Type(etype)
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
