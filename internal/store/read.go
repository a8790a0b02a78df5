package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadEvents returns all events of a session ordered by seq ASC.
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadEvents(ctx context.Context, session string) ([]EventRecord, error) {
	return s.queryEvents(ctx, `
		SELECT session, seq, map_id, kind, source_id, source_kind, old, new
		FROM events
		WHERE session = ?
		ORDER BY seq ASC, id ASC
	`, session)
}

// ReadEventsOfKind returns the events of one kind in a session ordered by seq ASC.
func (s *Store) ReadEventsOfKind(ctx context.Context, session, kind string) ([]EventRecord, error) {
	return s.queryEvents(ctx, `
		SELECT session, seq, map_id, kind, source_id, source_kind, old, new
		FROM events
		WHERE session = ? AND kind = ?
		ORDER BY seq ASC, id ASC
	`, session, kind)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []EventRecord{}
	for rows.Next() {
		var rec EventRecord
		var sourceID int64
		var oldVal, newVal sql.NullString
		if err := rows.Scan(&rec.Session, &rec.Seq, &rec.MapID, &rec.Kind,
			&sourceID, &rec.SourceKind, &oldVal, &newVal); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.SourceID = uint64(sourceID)
		rec.Old = oldVal.String
		rec.New = newVal.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// ReadSessions returns every session in insertion order.
func (s *Store) ReadSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, map_id, label FROM sessions ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.MapID, &sess.Label); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// CountEvents returns the number of events recorded for a session.
func (s *Store) CountEvents(ctx context.Context, session string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE session = ?`, session).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
